package shaker

import (
	"context"
	"testing"

	"github.com/ruidosujeira/kona/internal/cache"
	"github.com/ruidosujeira/kona/internal/config"
	"github.com/ruidosujeira/kona/internal/fs"
	"github.com/ruidosujeira/kona/internal/graph"
	"github.com/ruidosujeira/kona/internal/logger"
	"github.com/ruidosujeira/kona/internal/resolver"
)

func buildGraph(t *testing.T, files map[string]string, opts config.Options, entries []string) (*graph.Graph, logger.Log) {
	t.Helper()
	mock := fs.MockFS(files)
	log := logger.NewDeferLog()
	res := resolver.New(mock, log, opts)
	b := graph.New(mock, res, cache.NewCacheSet(), log, opts)
	g, err := b.Build(context.Background(), entries)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if log.HasErrors() {
		t.Fatalf("unexpected diagnostics: %+v", log.Done())
	}
	return g, log
}

func TestMinimalESMSingleChunk(t *testing.T) {
	// spec §8 scenario 1
	g, _ := buildGraph(t, map[string]string{
		"/p/a.js": "export const x = 1",
		"/p/b.js": "import {x} from './a.js'; console.log(x)",
	}, config.Options{Target: config.PlatformBrowser}, []string{"/p/b.js"})

	alive := Shake(g)
	if len(alive) != 2 {
		t.Fatalf("expected both modules alive, got %d", len(alive))
	}

	chunks := BuildChunks(g, alive, false)
	if len(chunks) != 1 {
		t.Fatalf("expected exactly one chunk when splitting=false, got %d", len(chunks))
	}
	chunk := chunks[0]
	if len(chunk.ModuleIDs) != 2 {
		t.Fatalf("expected 2 modules in the single chunk, got %d", len(chunk.ModuleIDs))
	}
	// a.js must appear before b.js (dependency before dependent).
	aID, bID := findByPath(g, chunk.ModuleIDs, "/p/a.js"), findByPath(g, chunk.ModuleIDs, "/p/b.js")
	if !(indexOf(chunk.ModuleIDs, aID) < indexOf(chunk.ModuleIDs, bID)) {
		t.Fatalf("expected a.js before b.js in topological order, got %+v", chunk.ModuleIDs)
	}
}

func TestDynamicSplitTwoChunks(t *testing.T) {
	// spec §8 scenario 3
	g, _ := buildGraph(t, map[string]string{
		"/p/e.js": "export default 7",
		"/p/m.js": "const m = await import('./e.js'); console.log(m.default)",
	}, config.Options{Target: config.PlatformBrowser}, []string{"/p/m.js"})

	alive := Shake(g)
	if len(alive) != 2 {
		t.Fatalf("expected both modules alive, got %d", len(alive))
	}

	chunks := BuildChunks(g, alive, true)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks with splitting=true, got %d", len(chunks))
	}

	var mChunk, eChunk *Chunk
	for _, c := range chunks {
		if len(c.EntryModuleIDs) > 0 {
			mChunk = c
		}
		if c.IsDynamicRoot {
			eChunk = c
		}
	}
	if mChunk == nil || eChunk == nil {
		t.Fatalf("expected one entry chunk and one dynamic chunk, got %+v", chunks)
	}
	if len(mChunk.ModuleIDs) != 1 || g.Modules[mChunk.ModuleIDs[0]].AbsPath != "/p/m.js" {
		t.Fatalf("expected m.js alone in the entry chunk, got %+v", mChunk.ModuleIDs)
	}
	if len(eChunk.ModuleIDs) != 1 || g.Modules[eChunk.ModuleIDs[0]].AbsPath != "/p/e.js" {
		t.Fatalf("expected e.js alone in the dynamic chunk, got %+v", eChunk.ModuleIDs)
	}
	if len(eChunk.InboundDynamicChunkIDs) != 1 || eChunk.InboundDynamicChunkIDs[0] != mChunk.ID {
		t.Fatalf("expected the dynamic chunk to record m's chunk as an inbound reference, got %+v", eChunk.InboundDynamicChunkIDs)
	}
}

func TestTreeShakingKeepsModuleWithLiveImport(t *testing.T) {
	// spec §8 scenario 4: at minimum, u.js survives because it has a live
	// named import, even though its package declares sideEffects: false.
	g, _ := buildGraph(t, map[string]string{
		"/p/package.json": `{"sideEffects": false}`,
		"/p/u.js":          "export const keep = 1; export const drop = 2;",
		"/p/main.js":       "import {keep} from './u.js'; console.log(keep)",
	}, config.Options{Target: config.PlatformBrowser}, []string{"/p/main.js"})

	alive := Shake(g)
	uID := findByPath(g, keysSlice(g), "/p/u.js")
	if !alive[uID] {
		t.Fatalf("expected u.js to survive tree-shaking via its live import")
	}
}

func TestDynamicImportForcedLoadDoesNotGetOwnChunk(t *testing.T) {
	// e.js is both statically imported from the entry and dynamically
	// imported from elsewhere; it's already guaranteed to load eagerly, so
	// it should not get a separate dynamic chunk.
	g, _ := buildGraph(t, map[string]string{
		"/p/e.js":    "export default 7",
		"/p/lazy.js": "const m = () => import('./e.js')",
		"/p/main.js": "import './e.js'; import './lazy.js'",
	}, config.Options{Target: config.PlatformBrowser}, []string{"/p/main.js"})

	alive := Shake(g)
	chunks := BuildChunks(g, alive, true)

	for _, c := range chunks {
		if c.IsDynamicRoot && g.Modules[c.DynamicRootID].AbsPath == "/p/e.js" {
			t.Fatalf("e.js should not get its own dynamic chunk since main.js forces it to load statically")
		}
	}
}

func findByPath(g *graph.Graph, ids []uint32, path string) uint32 {
	for _, id := range ids {
		if g.Modules[id] != nil && g.Modules[id].AbsPath == path {
			return id
		}
	}
	return 0
}

func indexOf(ids []uint32, target uint32) int {
	for i, id := range ids {
		if id == target {
			return i
		}
	}
	return -1
}

func keysSlice(g *graph.Graph) []uint32 {
	ids := make([]uint32, 0, len(g.Modules))
	for id := range g.Modules {
		ids = append(ids, id)
	}
	return ids
}
