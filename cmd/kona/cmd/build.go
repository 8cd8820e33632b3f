package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pterm/pterm"
	"github.com/ruidosujeira/kona/pkg/api"
	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:   "build [entry points]",
	Short: "Run a single production build",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := buildOptionsFromFlags(cmd, args)
		if err != nil {
			return err
		}

		start := time.Now()
		spinner, _ := pterm.DefaultSpinner.Start("Building...")
		result := api.Build(opts)

		for _, w := range result.Warnings {
			pterm.Warning.Printf("%s\n", w.Text)
		}

		if len(result.Errors) > 0 {
			spinner.Fail(fmt.Sprintf("Build failed with %d error(s)", len(result.Errors)))
			for _, e := range result.Errors {
				printMessage(e)
			}
			return fmt.Errorf("build failed")
		}

		if err := writeOutputFiles(opts.Outdir, result.OutputFiles); err != nil {
			spinner.Fail("Failed to write output")
			return err
		}

		spinner.Success(fmt.Sprintf("Wrote %d file(s) to %s in %s",
			len(result.OutputFiles), opts.Outdir, time.Since(start).Round(time.Millisecond)))
		return nil
	},
}

func init() {
	addBuildFlags(buildCmd)
}

func printMessage(m api.Message) {
	if m.Location != nil {
		pterm.Error.Printf("%s:%d:%d: %s\n", m.Location.File, m.Location.Line, m.Location.Column, m.Text)
		return
	}
	pterm.Error.Printf("%s\n", m.Text)
}

// writeOutputFiles writes every in-memory output file to disk under root,
// matching the source material's own api_impl.go pattern of leaving disk
// I/O to the CLI rather than pkg/api itself.
func writeOutputFiles(root string, files []api.OutputFile) error {
	for _, f := range files {
		dest := f.Path
		if !filepath.IsAbs(dest) {
			dest = filepath.Join(root, filepath.Base(f.Path))
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", filepath.Dir(dest), err)
		}
		if err := os.WriteFile(dest, f.Contents, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", dest, err)
		}
	}
	return nil
}
