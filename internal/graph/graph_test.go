package graph

import (
	"context"
	"testing"

	"github.com/ruidosujeira/kona/internal/cache"
	"github.com/ruidosujeira/kona/internal/config"
	"github.com/ruidosujeira/kona/internal/fs"
	"github.com/ruidosujeira/kona/internal/logger"
	"github.com/ruidosujeira/kona/internal/resolver"
)

func newTestBuilder(files map[string]string, opts config.Options) (*Builder, logger.Log) {
	mock := fs.MockFS(files)
	log := logger.NewDeferLog()
	res := resolver.New(mock, log, opts)
	return New(mock, res, cache.NewCacheSet(), log, opts), log
}

func TestSharedModuleForSamePath(t *testing.T) {
	// Two entry points that both import the same file must collapse onto one
	// Module, never two (spec §4.4's path-uniqueness invariant).
	b, log := newTestBuilder(map[string]string{
		"/p/shared.js": "export const x = 1",
		"/p/a.js":      "import {x} from './shared.js'",
		"/p/b.js":      "import {x} from './shared.js'",
	}, config.Options{Target: config.PlatformBrowser})

	g, err := b.Build(context.Background(), []string{"/p/a.js", "/p/b.js"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if log.HasErrors() {
		t.Fatalf("unexpected diagnostics: %+v", log.Done())
	}

	if len(g.EntryModules) != 2 {
		t.Fatalf("expected 2 entry modules, got %d", len(g.EntryModules))
	}

	sharedIDs := map[uint32]bool{}
	for _, entryID := range g.EntryModules {
		mod := g.Modules[entryID]
		if len(mod.Edges) != 1 {
			t.Fatalf("expected 1 edge for %s, got %d", mod.AbsPath, len(mod.Edges))
		}
		sharedIDs[mod.Edges[0].To] = true
	}
	if len(sharedIDs) != 1 {
		t.Fatalf("expected both entries to point at the same shared module, got ids %v", sharedIDs)
	}

	if len(g.Modules) != 3 {
		t.Fatalf("expected 3 distinct modules in the graph (a, b, shared), got %d", len(g.Modules))
	}
}

func TestDynamicImportIsItsOwnEdgeKind(t *testing.T) {
	b, log := newTestBuilder(map[string]string{
		"/p/lazy.js": "export default 1",
		"/p/main.js": "const mod = () => import('./lazy.js')",
	}, config.Options{Target: config.PlatformBrowser})

	g, err := b.Build(context.Background(), []string{"/p/main.js"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if log.HasErrors() {
		t.Fatalf("unexpected diagnostics: %+v", log.Done())
	}

	main := g.Modules[g.EntryModules[0]]
	if len(main.Edges) != 1 {
		t.Fatalf("expected 1 edge, got %d", len(main.Edges))
	}
	if main.Edges[0].Kind != EdgeDynamic {
		t.Fatalf("expected EdgeDynamic, got %v", main.Edges[0].Kind)
	}
	if main.Edges[0].External {
		t.Fatalf("expected the dynamic import to resolve to a local module")
	}
}

func TestExternalImportProducesNoModule(t *testing.T) {
	b, log := newTestBuilder(map[string]string{
		"/p/main.js": "import fs from 'fs'",
	}, config.Options{Target: config.PlatformServer})

	g, err := b.Build(context.Background(), []string{"/p/main.js"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if log.HasErrors() {
		t.Fatalf("unexpected diagnostics: %+v", log.Done())
	}

	main := g.Modules[g.EntryModules[0]]
	if len(main.Edges) != 1 || !main.Edges[0].External {
		t.Fatalf("expected a single external edge, got %+v", main.Edges)
	}
	if main.Edges[0].ExternalSpecifier != "fs" {
		t.Fatalf("got %+v", main.Edges[0])
	}
	if len(g.Modules) != 1 {
		t.Fatalf("expected only the entry module in the graph, got %d", len(g.Modules))
	}
}

func TestUnresolvableImportReportsDiagnosticWithoutAbortingDiscovery(t *testing.T) {
	b, log := newTestBuilder(map[string]string{
		"/p/sibling.js": "export const ok = 1",
		"/p/main.js": "import {missing} from './does-not-exist.js'\n" +
			"import {ok} from './sibling.js'",
	}, config.Options{Target: config.PlatformBrowser})

	g, err := b.Build(context.Background(), []string{"/p/main.js"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !log.HasErrors() {
		t.Fatalf("expected a resolution error to be logged")
	}

	main := g.Modules[g.EntryModules[0]]
	if len(main.Edges) != 2 {
		t.Fatalf("expected both edges recorded, got %d", len(main.Edges))
	}
	foundSibling := false
	for _, e := range main.Edges {
		if !e.External && g.Modules[e.To] != nil && g.Modules[e.To].AbsPath == "/p/sibling.js" {
			foundSibling = true
		}
	}
	if !foundSibling {
		t.Fatalf("expected the resolvable sibling import to still be discovered: %+v", main.Edges)
	}
}

func TestTypeScriptAndJSXAreTransformedBeforeGraphAssembly(t *testing.T) {
	b, log := newTestBuilder(map[string]string{
		"/p/main.tsx": "export const v: number = 2;\nexport const e = <div>{v}</div>;",
	}, config.Options{Target: config.PlatformBrowser})

	g, err := b.Build(context.Background(), []string{"/p/main.tsx"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if log.HasErrors() {
		t.Fatalf("unexpected diagnostics: %+v", log.Done())
	}

	main := g.Modules[g.EntryModules[0]]
	if !main.Transform.ErasedTS {
		t.Fatalf("expected TypeScript erasure to have run")
	}
	if !main.Transform.LoweredJSX {
		t.Fatalf("expected JSX lowering to have run")
	}
}
