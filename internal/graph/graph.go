// Package graph implements the Graph Builder (spec §4.4): it turns a set of
// entry point specifiers into a dependency graph of resolved, scanned, and
// transformed Modules, discovering and processing dependencies in parallel
// while guaranteeing that two specifiers resolving to the same absolute path
// always collapse onto one shared Module.
package graph

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"github.com/ruidosujeira/kona/internal/bundlerror"
	"github.com/ruidosujeira/kona/internal/cache"
	"github.com/ruidosujeira/kona/internal/config"
	"github.com/ruidosujeira/kona/internal/fs"
	"github.com/ruidosujeira/kona/internal/logger"
	"github.com/ruidosujeira/kona/internal/plugin"
	"github.com/ruidosujeira/kona/internal/resolver"
	"github.com/ruidosujeira/kona/internal/scan"
	"github.com/ruidosujeira/kona/internal/transform"
)

// EdgeKind classifies a dependency edge the way the tree shaker and chunker
// need to see it (spec §4.4 "Edge kinds"): dynamic edges are chunk
// boundaries, re-export edges keep their target alive like static edges
// (whether a re-exported binding is used is not checked), and type-only edges are tracked for
// completeness but never keep a module alive on their own.
type EdgeKind uint8

const (
	EdgeStatic EdgeKind = iota
	EdgeDynamic
	EdgeRequire
	EdgeReExport
	EdgeReExportAll
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeDynamic:
		return "dynamic"
	case EdgeRequire:
		return "require"
	case EdgeReExport:
		return "re-export"
	case EdgeReExportAll:
		return "re-export-all"
	default:
		return "static"
	}
}

// Edge is one entry in a Module's dependency list. To is only meaningful
// when External is false.
type Edge struct {
	Kind      EdgeKind
	Specifier string
	TypeOnly  bool

	External          bool
	ExternalSpecifier string
	To                uint32
}

// Module is one node of the graph: a resolved file, its import/export table,
// and its transformed code, ready for the shaker and emitter.
type Module struct {
	ID         uint32
	AbsPath    string
	PrettyPath string
	Source     logger.Source

	Table     *scan.Table
	Transform transform.Result
	Pkg       *resolver.PackageJSON

	IsEntry bool
	Edges   []Edge
}

// Graph is the Graph Builder's output: spec §4.4's ModuleGraph.
type Graph struct {
	Modules      map[uint32]*Module
	EntryModules []uint32
}

// SortedModuleIDs returns the graph's module ids in ascending order, the
// deterministic iteration order every downstream pass (shaker, emitter)
// relies on.
func (g *Graph) SortedModuleIDs() []uint32 {
	ids := make([]uint32, 0, len(g.Modules))
	for id := range g.Modules {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Builder owns the collaborators needed to discover and process modules:
// one Resolver (its own resolution cache is mutex-protected, so concurrent
// callers are safe), one CacheSet (content + module-id caches shared across
// an incremental build's lifetime), and the Log every worker reports
// diagnostics into (also safe for concurrent use, see internal/logger).
type Builder struct {
	FS       fs.FS
	Resolver *resolver.Resolver
	Cache    *cache.CacheSet
	Log      logger.Log
	Opts     config.Options

	// Plugins, when set by the driver (internal/bundler), gets a look at
	// every module before it's read from disk (onLoad, first non-null
	// result wins) and at every module's transformed code before the graph
	// re-scans it (onTransform, chained across every matching hook) -
	// spec §6.
	Plugins *plugin.Registry
}

func New(fsys fs.FS, res *resolver.Resolver, caches *cache.CacheSet, log logger.Log, opts config.Options) *Builder {
	return &Builder{FS: fsys, Resolver: res, Cache: caches, Log: log, Opts: opts}
}

// Build discovers every module reachable from entryPoints and returns the
// assembled Graph. Discovery runs on a worker pool bounded by Opts.Workers
// (or runtime.NumCPU() when unset, spec §5 "Discovery workers"). A
// resolution, read, scan, or transform failure on any module is recorded on
// Log and does not stop discovery of the rest of the graph: spec §7's
// one-shot build policy decides afterward, from
// logger.MsgsToError(Log.Done()), whether the overall build has failed.
func (b *Builder) Build(ctx context.Context, entryPoints []string) (*Graph, error) {
	workers := b.Opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers < 1 {
		workers = 1
	}

	sem := make(chan struct{}, workers)
	g, ctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	modules := make(map[uint32]*Module)

	// enqueue schedules discovery of one module on the worker pool, at most
	// once per module id per Build call: the id table in CacheSet outlives a
	// build, so "already scheduled" is tracked here, per build. It is
	// itself what gives modules concurrent dependencies their parallelism:
	// loadModule calls it for every resolved import, so the graph fans out
	// breadth-first across the semaphore-bounded pool rather than walking
	// depth-first on one goroutine. pkg is the owning node_modules package
	// for this path, if resolution passed through one - it comes from the
	// Resolved value the caller already has, since Resolver.Resolve has no
	// standalone "what package owns this path" query.
	scheduled := make(map[uint32]bool)
	var enqueue func(absPath string, id uint32, isEntry bool, pkg *resolver.PackageJSON)
	enqueue = func(absPath string, id uint32, isEntry bool, pkg *resolver.PackageJSON) {
		mu.Lock()
		if scheduled[id] {
			mu.Unlock()
			return
		}
		scheduled[id] = true
		mu.Unlock()
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return ctx.Err()
			}
			defer func() { <-sem }()

			mod, err := b.loadModule(absPath, id, isEntry, pkg, enqueue)
			if err != nil {
				kind := bundlerror.Classify(err)
				if kind == logger.KindNone {
					kind = logger.KindIOUnreadable
				}
				b.Log.AddErrorWithKind(nil, logger.Range{}, kind,
					fmt.Sprintf("%s: %s", absPath, err))
				return nil
			}

			mu.Lock()
			modules[id] = mod
			mu.Unlock()
			return nil
		})
	}

	var entryIDs []uint32
	for _, entry := range entryPoints {
		resolved, err := b.Resolver.Resolve(entry, "")
		if err != nil {
			kind := bundlerror.Classify(err)
			if kind == logger.KindNone {
				kind = logger.KindResolutionNotFound
			}
			b.Log.AddErrorWithKind(nil, logger.Range{}, kind,
				fmt.Sprintf("entry point %q: %s", entry, err))
			continue
		}
		if resolved.Kind == resolver.ResultExternal {
			b.Log.AddErrorWithKind(nil, logger.Range{}, logger.KindConfigInvalid,
				fmt.Sprintf("entry point %q resolved to an external module", entry))
			continue
		}
		id, _ := b.Cache.ModuleIDs.GetOrCreate(resolved.AbsPath)
		entryIDs = append(entryIDs, id)
		enqueue(resolved.AbsPath, id, true, resolved.Pkg)
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Graph{Modules: modules, EntryModules: entryIDs}, nil
}

// loadModule reads, scans, and transforms the file at absPath, then resolves
// every import in its table to either an external marker or a dependency
// edge, calling enqueue for every child module. The ModuleIDCache gives a
// path the same id however many modules import it, and enqueue schedules
// each id once per build, so even if two modules import the same child
// concurrently it is loaded only once (spec §4.4's path-uniqueness invariant).
func (b *Builder) loadModule(absPath string, id uint32, isEntry bool, pkg *resolver.PackageJSON, enqueue func(string, uint32, bool, *resolver.PackageJSON)) (*Module, error) {
	var contents string
	loaded := false
	if b.Plugins != nil {
		result, handled, err := b.Plugins.Load(plugin.OnLoadArgs{Path: absPath})
		if err != nil {
			return nil, &bundlerror.IOUnreadable{Path: absPath, Cause: err}
		}
		if handled && result.Contents != nil {
			contents = *result.Contents
			loaded = true
		}
	}
	if !loaded {
		raw, err := b.Cache.FS.ReadFile(b.FS, absPath)
		if err != nil {
			return nil, &bundlerror.IOUnreadable{Path: absPath, Cause: err}
		}
		contents = raw
	}

	prettyPath := absPath
	if rel, ok := b.FS.Rel(b.FS.Cwd(), absPath); ok {
		prettyPath = rel
	}

	source := logger.Source{AbsPath: absPath, PrettyPath: prettyPath, Contents: contents, ModuleID: id}

	// A first pass over the original text only decides whether this file is
	// TypeScript/JSX - Scan sets both flags from the filename suffix, and
	// the TypeScript one also from syntax heuristics in its body walk. The table the rest
	// of loadModule uses is scanned again below, after transform has run:
	// TypeScript erasure and JSX lowering can delete or shift the very
	// import/export statements being recorded (an "import type" clause
	// disappears entirely), so a table's Range fields must index into the
	// code the Emitter will actually splice - transform.Result.Code - never
	// the pre-erasure original.
	presence, err := scan.Scan(source, absPath)
	if err != nil {
		return nil, fmt.Errorf("scanning: %w", err)
	}

	transformOpts := transform.Options{
		TypeScript: presence.HasTypeScript,
		JSX:        presence.HasJSX,
		JSXOptions: b.Opts.JSX,
		Define:     b.Opts.Define,
	}

	transformKey := cache.TransformKey{
		ContentHash: cache.ContentHash(contents),
		OptionsHash: hashTransformOptions(transformOpts),
	}

	var transformResult transform.Result
	var table *scan.Table
	if cached, ok := b.Cache.Transform.Get(transformKey); ok {
		transformResult = transform.Result{Code: cached.Code, ErasedTS: cached.HasTS, LoweredJSX: cached.HasJSX}
		table, _ = cached.Imports.(*scan.Table)
	}
	if table == nil {
		transformResult, err = transform.Transform(contents, absPath, transformOpts)
		if err != nil {
			return nil, fmt.Errorf("transforming: %w", err)
		}

		if b.Plugins != nil {
			chained, err := b.Plugins.Transform(plugin.OnTransformArgs{Path: absPath, Code: transformResult.Code})
			if err != nil {
				return nil, &bundlerror.TransformFailure{Path: absPath, Cause: err}
			}
			transformResult.Code = chained
		}

		transformedSource := logger.Source{
			AbsPath: absPath, PrettyPath: prettyPath, Contents: transformResult.Code, ModuleID: id,
		}
		table, err = scan.Scan(transformedSource, absPath)
		if err != nil {
			return nil, fmt.Errorf("scanning transformed output: %w", err)
		}

		b.Cache.Transform.Put(transformKey, &cache.TransformOutput{
			Code:    transformResult.Code,
			Imports: table,
			HasJSX:  transformResult.LoweredJSX,
			HasTS:   transformResult.ErasedTS,
		})
	}

	mod := &Module{
		ID:         id,
		AbsPath:    absPath,
		PrettyPath: prettyPath,
		Source:     source,
		Table:      table,
		Transform:  transformResult,
		Pkg:        pkg,
		IsEntry:    isEntry,
	}

	for _, imp := range table.Imports {
		edge := b.resolveEdge(imp, absPath, enqueue)
		mod.Edges = append(mod.Edges, edge)
	}

	return mod, nil
}

// edgeKindFor maps the scanner's ImportKind onto the graph's EdgeKind.
func edgeKindFor(kind scan.ImportKind) EdgeKind {
	switch kind {
	case scan.DynamicCall:
		return EdgeDynamic
	case scan.RequireCall:
		return EdgeRequire
	case scan.ReExport:
		return EdgeReExport
	case scan.ReExportAll:
		return EdgeReExportAll
	default:
		return EdgeStatic
	}
}

// resolveEdge resolves one import table entry to an Edge, minting the
// child's ModuleID (via ModuleIDCache.GetOrCreate) before handing it to
// enqueue, so every edge pointing at a given path agrees on its id even
// if several modules discover that path in the same instant. importerAbsPath
// only needs to be some file inside the importing module's directory -
// Resolver.Resolve immediately takes its Dir() - so the importing module's
// own absolute path is used directly.
func (b *Builder) resolveEdge(imp scan.ImportEntry, importerAbsPath string, enqueue func(string, uint32, bool, *resolver.PackageJSON)) Edge {
	edge := Edge{Kind: edgeKindFor(imp.Kind), Specifier: imp.Specifier, TypeOnly: imp.TypeOnly}

	resolved, err := b.Resolver.Resolve(imp.Specifier, importerAbsPath)
	if err != nil {
		kind := bundlerror.Classify(err)
		if kind == logger.KindNone {
			kind = logger.KindResolutionNotFound
		}
		b.Log.AddErrorWithKind(nil, logger.Range{}, kind,
			fmt.Sprintf("%s: %s", imp.Specifier, err))
		edge.External = true
		edge.ExternalSpecifier = imp.Specifier
		return edge
	}

	if resolved.Kind == resolver.ResultExternal {
		edge.External = true
		edge.ExternalSpecifier = resolved.ExternalSpecifier
		return edge
	}

	id, _ := b.Cache.ModuleIDs.GetOrCreate(resolved.AbsPath)
	edge.To = id
	enqueue(resolved.AbsPath, id, false, resolved.Pkg)
	return edge
}

// hashTransformOptions fingerprints the parts of transform.Options that
// affect output bytes, so the TransformCache is correctly invalidated when
// JSX mode or defines change between builds (spec §4.4 "Cache policy").
func hashTransformOptions(opts transform.Options) uint64 {
	var sb strings.Builder
	if opts.TypeScript {
		sb.WriteString("ts;")
	}
	if opts.JSX {
		fmt.Fprintf(&sb, "jsx:%d:%s:%s:%s;", opts.JSXOptions.Mode, opts.JSXOptions.Factory,
			opts.JSXOptions.Fragment, opts.JSXOptions.ImportSource)
	}
	if len(opts.Define) > 0 {
		keys := make([]string, 0, len(opts.Define))
		for k := range opts.Define {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "d:%s=%s;", k, opts.Define[k])
		}
	}
	return xxhash.Sum64String(sb.String())
}
