package cmd

import (
	"fmt"

	"github.com/ruidosujeira/kona/internal/config"
	"github.com/ruidosujeira/kona/pkg/api"
	"github.com/spf13/cobra"
)

// addBuildFlags registers the flag set shared by `build` and `dev` - both
// run the same bundle, one once and one on every file change.
func addBuildFlags(cmd *cobra.Command) {
	cmd.Flags().String("outdir", "dist", "directory to write chunks and assets into")
	cmd.Flags().String("platform", "browser", "browser | server")
	cmd.Flags().String("format", "esm", "iife | cjs | esm")
	cmd.Flags().Bool("splitting", true, "split dynamic import() targets into separate chunks")
	cmd.Flags().Bool("treeshake", true, "drop modules unreachable from any entry point")
	cmd.Flags().Bool("minify", false, "run the configured minifier over each emitted chunk")
	cmd.Flags().String("sourcemap", "none", "none | inline | external")
	cmd.Flags().StringSlice("external", nil, "specifier or \"prefix*\" pattern to leave unbundled")
	cmd.Flags().StringToString("define", nil, "dotted-identifier=literal compile-time substitution")
	cmd.Flags().Int("workers", 0, "discovery worker pool size (0 = runtime.NumCPU())")
}

func platformFromFlag(s string) (api.Platform, error) {
	switch s {
	case "browser":
		return api.PlatformBrowser, nil
	case "server":
		return api.PlatformServer, nil
	default:
		return 0, fmt.Errorf("unknown --platform %q (want browser or server)", s)
	}
}

func formatFromFlag(s string) (api.Format, error) {
	switch s {
	case "iife":
		return api.FormatIIFE, nil
	case "cjs":
		return api.FormatCJS, nil
	case "esm":
		return api.FormatESM, nil
	default:
		return 0, fmt.Errorf("unknown --format %q (want iife, cjs, or esm)", s)
	}
}

func sourcemapFromFlag(s string) (config.SourceMapMode, error) {
	switch s {
	case "none":
		return config.SourceMapNone, nil
	case "inline":
		return config.SourceMapInline, nil
	case "external":
		return config.SourceMapExternal, nil
	default:
		return 0, fmt.Errorf("unknown --sourcemap %q (want none, inline, or external)", s)
	}
}

// buildOptionsFromFlags assembles api.BuildOptions from the flags
// addBuildFlags registered plus the entry point paths given as positional
// args.
func buildOptionsFromFlags(cmd *cobra.Command, entryPoints []string) (api.BuildOptions, error) {
	flags := cmd.Flags()

	platformStr, _ := flags.GetString("platform")
	platform, err := platformFromFlag(platformStr)
	if err != nil {
		return api.BuildOptions{}, err
	}

	formatStr, _ := flags.GetString("format")
	format, err := formatFromFlag(formatStr)
	if err != nil {
		return api.BuildOptions{}, err
	}

	sourcemapStr, _ := flags.GetString("sourcemap")
	sourcemap, err := sourcemapFromFlag(sourcemapStr)
	if err != nil {
		return api.BuildOptions{}, err
	}

	outdir, _ := flags.GetString("outdir")
	splitting, _ := flags.GetBool("splitting")
	treeshake, _ := flags.GetBool("treeshake")
	minify, _ := flags.GetBool("minify")
	external, _ := flags.GetStringSlice("external")
	define, _ := flags.GetStringToString("define")
	workers, _ := flags.GetInt("workers")

	return api.BuildOptions{
		EntryPoints: entryPoints,
		Outdir:      outdir,
		Platform:    platform,
		Format:      format,
		Splitting:   splitting,
		Treeshake:   treeshake,
		Minify:      minify,
		Sourcemap:   sourcemap,
		External:    external,
		Define:      define,
		Workers:     workers,
	}, nil
}
