// Package bundler composes the pipeline's individually-tested phases -
// Resolver, Graph Builder, Tree Shaker, Chunker, Emitter - into the single
// driver spec §2 and §4.4 describe, grounded on the source material's own
// internal/bundler.Bundle: a long-lived value that owns everything an
// incremental build needs to reuse across repeat calls (the resolution
// cache, the transform cache, the module-id cache, the plugin registry),
// with one method that runs the whole pipeline and reports a single
// all-or-nothing result.
//
// Build policy is one-shot (spec §7): any diagnostic of kind Error recorded
// during discovery fails the entire build, and no output files are
// returned - partial output from a graph that contains an unresolved or
// unreadable module is never produced, even though discovery itself
// continues past the first failure so a build reports every error it hit,
// not just the first.
package bundler

import (
	"context"

	"github.com/ruidosujeira/kona/internal/bundlerror"
	"github.com/ruidosujeira/kona/internal/cache"
	"github.com/ruidosujeira/kona/internal/config"
	"github.com/ruidosujeira/kona/internal/emitter"
	"github.com/ruidosujeira/kona/internal/fs"
	"github.com/ruidosujeira/kona/internal/graph"
	"github.com/ruidosujeira/kona/internal/logger"
	"github.com/ruidosujeira/kona/internal/plugin"
	"github.com/ruidosujeira/kona/internal/resolver"
	"github.com/ruidosujeira/kona/internal/shaker"
)

// Result is one build's output: the files the Emitter produced, ready to be
// written under Options.Outdir, plus the Graph that produced them - the dev
// server diffs a Result's Files against the previous one to decide between
// an `update` and a `full-reload` message.
type Result struct {
	Files    []emitter.OutputFile
	Manifest []byte
	Graph    *graph.Graph
	Alive    map[uint32]bool
	Chunks   []*shaker.Chunk
}

// Bundle owns every collaborator whose state is worth keeping across more
// than one build: the Resolver (its resolution and package.json caches),
// the CacheSet (file-read and transform caches), and the Plugin registry
// (its onStart/onEnd hooks run once per Build call, not once per phase).
// Building the same Bundle twice without any input changing reuses every
// cache and reproduces byte-identical output (spec §8 invariant 2).
type Bundle struct {
	FS       fs.FS
	Resolver *resolver.Resolver
	Cache    *cache.CacheSet
	Plugins  *plugin.Registry
	Opts     config.Options

	// resolverLog is the Log the Resolver was constructed against. It's
	// deliberately not recreated per Build: the only diagnostic the
	// Resolver itself ever writes to it is the cross-filesystem-case
	// warning in resolveBare, which never decides build success, so
	// letting it accumulate for the Bundle's lifetime is harmless and
	// keeping it separate from each build's own discovery Log avoids a
	// prior build's warnings resetting the Resolver's plumbing.
	resolverLog logger.Log

	// Diagnostics holds every message (errors and warnings) the most recent
	// Build call recorded, win or lose - pkg/api splits it back into its
	// public Errors/Warnings lists, since Build's own error return collapses
	// a multi-error build down to one wrapped error for normal Go error
	// handling (see logger.MsgsToError).
	Diagnostics []logger.Msg
}

// New constructs a Bundle ready for repeated Build calls. Plugins are set up
// once here (onResolve/onLoad/onTransform/onStart/onEnd), then wired into
// both the Resolver (onResolve) and the Graph Builder (onLoad/onTransform)
// every Build call creates.
func New(fsys fs.FS, opts config.Options) (*Bundle, error) {
	registry, err := plugin.NewRegistry(opts.Plugins)
	if err != nil {
		return nil, err
	}

	resolverLog := logger.NewDeferLog()
	res := resolver.New(fsys, resolverLog, opts)
	res.Plugins = registry

	return &Bundle{
		FS:          fsys,
		Resolver:    res,
		Cache:       cache.NewCacheSet(),
		Plugins:     registry,
		Opts:        opts,
		resolverLog: resolverLog,
	}, nil
}

// Build runs one pass of Resolver → Graph Builder → Tree Shaker → Chunker →
// Emitter (spec §4.4's A-F composition) and returns the assembled output, or
// the build's accumulated errors if discovery failed anywhere.
func (b *Bundle) Build(ctx context.Context) (*Result, error) {
	if len(b.Opts.EntryPoints) == 0 {
		return nil, &bundlerror.ConfigInvalid{Msg: "no entry points configured"}
	}

	if b.Plugins != nil {
		if err := b.Plugins.RunOnStart(); err != nil {
			return nil, err
		}
	}

	buildLog := logger.NewDeferLog()
	gb := graph.New(b.FS, b.Resolver, b.Cache, buildLog, b.Opts)
	gb.Plugins = b.Plugins

	g, err := gb.Build(ctx, b.Opts.EntryPoints)
	if err != nil {
		return nil, err
	}
	b.Diagnostics = buildLog.Done()
	if err := logger.MsgsToError(b.Diagnostics); err != nil {
		return nil, err
	}

	alive := shaker.Shake(g)
	chunks := shaker.BuildChunks(g, alive, b.Opts.Splitting)

	out, err := emitter.EmitAll(g, chunks, b.Opts)
	if err != nil {
		return nil, err
	}

	if b.Plugins != nil {
		if err := b.Plugins.RunOnEnd(); err != nil {
			return nil, err
		}
	}

	return &Result{
		Files:    out.Files,
		Manifest: out.Manifest,
		Graph:    g,
		Alive:    alive,
		Chunks:   chunks,
	}, nil
}
