// Package api is the public entry point spec §2/§6 name: the surface
// cmd/kona (and any embedding Go program) builds against instead of
// reaching into internal/*. It mirrors the source material's pkg/api
// shape - a flat BuildOptions struct, a Build function for one-shot
// builds, and a Context/Rebuild/Watch/Dispose trio for the dev-server
// workflow - translated onto this bundler's own config.Options and
// internal/bundler.Bundle underneath.
package api

import (
	"context"
	"fmt"

	"github.com/ruidosujeira/kona/internal/bundler"
	"github.com/ruidosujeira/kona/internal/config"
	"github.com/ruidosujeira/kona/internal/devserver"
	"github.com/ruidosujeira/kona/internal/fs"
	"github.com/ruidosujeira/kona/internal/logger"
	"github.com/ruidosujeira/kona/internal/plugin"
)

// Platform selects condition-name priority, runtime preamble, and the
// builtin-externals list (spec §4.1).
type Platform = config.Platform

const (
	PlatformBrowser = config.PlatformBrowser
	PlatformServer  = config.PlatformServer
)

// Format is the emission shape (spec §4.6).
type Format = config.Format

const (
	FormatIIFE = config.FormatIIFE
	FormatCJS  = config.FormatCJS
	FormatESM  = config.FormatESM
)

// Plugin is the same enumerated hook surface internal/plugin re-exports;
// kept under this package too so a caller importing only pkg/api never
// needs a second import line to register one.
type Plugin = plugin.Plugin

// Location and Message mirror the source material's diagnostic shape:
// plain data, no behavior, easy to print or marshal from a CLI or a
// dev-server client payload.
type Location struct {
	File     string
	Line     int
	Column   int
	Length   int
	LineText string
}

type Message struct {
	Text     string
	Location *Location
}

func messageFromMsg(m logger.Msg) Message {
	out := Message{Text: m.Data.Text}
	if loc := m.Data.Location; loc != nil {
		out.Location = &Location{
			File: loc.File, Line: loc.Line, Column: loc.Column,
			Length: loc.Length, LineText: loc.LineText,
		}
	}
	return out
}

// OutputFile is one emitted file, content in memory - writing it to disk
// under BuildOptions.Outdir is the caller's job (cmd/kona does it with a
// plain os.WriteFile, matching the source material's own api_impl.go).
type OutputFile struct {
	Path     string
	Contents []byte
}

// BuildOptions is the public configuration surface (spec §6), translated
// 1:1 onto config.Options by toConfigOptions.
type BuildOptions struct {
	EntryPoints []string
	Outdir      string

	Platform Platform
	Format   Format

	Splitting bool
	Treeshake bool

	Minify bool

	Sourcemap config.SourceMapMode

	External []string

	Alias        []config.AliasEntry
	PathMappings []config.PathMapping

	Define map[string]string

	JSX config.JSXOptions

	ResolveExtensions []string

	Plugins []Plugin

	Workers int
}

func (o BuildOptions) toConfigOptions() config.Options {
	return config.Options{
		EntryPoints:       o.EntryPoints,
		Outdir:            o.Outdir,
		Target:            o.Platform,
		Format:            o.Format,
		Splitting:         o.Splitting,
		Treeshake:         o.Treeshake,
		Minify:            o.Minify,
		Sourcemap:         o.Sourcemap,
		External:          o.External,
		Alias:             o.Alias,
		PathMappings:      o.PathMappings,
		Define:            o.Define,
		JSX:               o.JSX,
		ResolveExtensions: o.ResolveExtensions,
		Plugins:           o.Plugins,
		Workers:           o.Workers,
	}
}

// BuildResult is spec §6's one-shot build outcome.
type BuildResult struct {
	Errors      []Message
	Warnings    []Message
	OutputFiles []OutputFile
}

func diagnosticsToMessages(msgs []logger.Msg) (errors []Message, warnings []Message) {
	for _, m := range msgs {
		msg := messageFromMsg(m)
		if m.Kind == logger.Error {
			errors = append(errors, msg)
		} else if m.Kind == logger.Warning {
			warnings = append(warnings, msg)
		}
	}
	return
}

func outputFilesFrom(result *bundler.Result) []OutputFile {
	files := make([]OutputFile, 0, len(result.Files)+1)
	for _, f := range result.Files {
		files = append(files, OutputFile{Path: f.Path, Contents: []byte(f.Code)})
	}
	if len(result.Manifest) > 0 {
		files = append(files, OutputFile{Path: "manifest.json", Contents: result.Manifest})
	}
	return files
}

// Build runs exactly one build and returns its full result (spec §6's
// one-shot entry point). Errors/Warnings are always populated from the
// underlying Bundle's Diagnostics, even on failure, so a caller can print
// every problem found rather than just the first.
func Build(options BuildOptions) BuildResult {
	b, err := bundler.New(fs.RealFS(), options.toConfigOptions())
	if err != nil {
		return BuildResult{Errors: []Message{{Text: err.Error()}}}
	}

	result, err := b.Build(context.Background())
	errs, warnings := diagnosticsToMessages(b.Diagnostics)
	if err != nil {
		if len(errs) == 0 {
			errs = []Message{{Text: err.Error()}}
		}
		return BuildResult{Errors: errs, Warnings: warnings}
	}

	return BuildResult{Errors: errs, Warnings: warnings, OutputFiles: outputFilesFrom(result)}
}

// BuildContext is the long-lived handle behind spec §6's dev-server
// workflow: one Resolver/CacheSet/Plugin registry shared across every
// Rebuild, so an edit-rebuild-edit loop gets the same incremental reuse
// Build's repeat calls do, plus Watch for wiring a internal/devserver
// instance over it directly.
type BuildContext struct {
	bundle *bundler.Bundle
	fsys   fs.FS
	opts   config.Options
}

// Context constructs a BuildContext without running a build yet, matching
// the source material's split between "set up a context" and "run it."
func Context(options BuildOptions) (*BuildContext, error) {
	fsys := fs.RealFS()
	opts := options.toConfigOptions()
	b, err := bundler.New(fsys, opts)
	if err != nil {
		return nil, err
	}
	return &BuildContext{bundle: b, fsys: fsys, opts: opts}, nil
}

// Rebuild runs one build against the context's shared Bundle.
func (c *BuildContext) Rebuild() BuildResult {
	result, err := c.bundle.Build(context.Background())
	errs, warnings := diagnosticsToMessages(c.bundle.Diagnostics)
	if err != nil {
		if len(errs) == 0 {
			errs = []Message{{Text: err.Error()}}
		}
		return BuildResult{Errors: errs, Warnings: warnings}
	}
	return BuildResult{Errors: errs, Warnings: warnings, OutputFiles: outputFilesFrom(result)}
}

// WatchOptions configures the dev server spun up by Watch.
type WatchOptions struct {
	Addr string // e.g. "localhost:8787"
}

// Watch starts internal/devserver's watch-build-notify loop over this
// context's Bundle and blocks serving HTTP/WebSocket connections until ctx
// is canceled (spec §6/§9's hot-reload dispatch layer).
func (c *BuildContext) Watch(ctx context.Context, watch WatchOptions) error {
	srv, err := devserver.New(c.bundle, c.fsys, c.opts, devserver.Options{Addr: watch.Addr})
	if err != nil {
		return fmt.Errorf("starting dev server: %w", err)
	}
	return srv.Run(ctx)
}

// Dispose is a no-op placeholder matching the source material's Context
// API shape: this bundler's Bundle holds no OS resources (file handles,
// goroutines) outside of a Watch call, which already cleans up on ctx
// cancellation, so there's nothing else to release here.
func (c *BuildContext) Dispose() {}
