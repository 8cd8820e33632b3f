// Package shaker implements the Tree Shaker + Chunker component (spec
// §4.5): it computes the set of modules that survive tree-shaking from a
// complete graph.Graph, then assigns every survivor to exactly one chunk
// for code splitting, following esbuild-linker-style chunk assignment
// (reachability-based chunk roots, greatest-lower-bound placement for
// shared modules) but scoped to module-level granularity, the baseline
// this bundler's specification requires.
package shaker

import (
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/ruidosujeira/kona/internal/graph"
)

// Shake computes the surviving module set: the smallest set that contains
// every entry and is closed under "depended upon by a survivor for a reason
// that can execute at runtime." Type-only edges never propagate liveness.
//
// Per-export dead-code elimination is not implemented (module-level shaking
// only, which spec §4.5 explicitly permits as the baseline); the owning
// package's "sideEffects" field (reachable through graph.Module.Pkg) is not
// consulted and does not exclude an otherwise-reachable module; see DESIGN.md
// for the full reasoning. A side-effect-only import (`import 'S'`, scanned
// as EdgeStatic with no bindings) keeps its target alive exactly like any
// other non-type-only edge, which is also how spec §7's resolution of
// "sideEffects: false vs. side-effect-only import" falls out naturally:
// import-kind, not the package descriptor, decides.
func Shake(g *graph.Graph) map[uint32]bool {
	alive := make(map[uint32]bool, len(g.Modules))

	var visit func(id uint32)
	visit = func(id uint32) {
		if alive[id] {
			return
		}
		mod := g.Modules[id]
		if mod == nil {
			return
		}
		alive[id] = true
		for _, edge := range mod.Edges {
			if edge.External || edge.TypeOnly {
				continue
			}
			visit(edge.To)
		}
	}

	for _, id := range g.EntryModules {
		visit(id)
	}

	return alive
}

// Chunk is the Chunker's output unit: spec §4.5's Chunk plus the bookkeeping
// the Emitter needs (topological module order, which entries to invoke in
// the trailer, and which chunk ids dynamically reference it).
type Chunk struct {
	ID string

	// ModuleIDs is topologically sorted: every module appears after its
	// intra-chunk static dependencies, so roots (the chunk's own entry or
	// dynamic-import target) come last.
	ModuleIDs []uint32

	// EntryModuleIDs holds, in path-sorted order, the entry modules this
	// chunk must invoke require() on in its trailer. Empty for non-entry
	// chunks.
	EntryModuleIDs []uint32

	// DynamicRootID is set when this chunk was created for a dynamic
	// import() target; the runtime's dynamic loader resolves to this
	// module's exports once the chunk finishes loading.
	DynamicRootID uint32
	IsDynamicRoot bool

	// InboundDynamicChunkIDs lists the chunk ids of every chunk containing a
	// dynamic import() call that targets this chunk - the reverse of
	// DynamicRootID. The emitter does not read it.
	InboundDynamicChunkIDs []string
}

// BuildChunks assigns every surviving module to exactly one chunk (spec
// §4.5's Chunker contract). When splitting is false, every survivor lands in
// a single chunk regardless of entry/dynamic-import structure, per spec §6's
// `splitting` option.
func BuildChunks(g *graph.Graph, alive map[uint32]bool, splitting bool) []*Chunk {
	if !splitting {
		return []*Chunk{buildSingleChunk(g, alive)}
	}
	return buildSplitChunks(g, alive)
}

func buildSingleChunk(g *graph.Graph, alive map[uint32]bool) *Chunk {
	sortedAlive := sortedIDsByPath(g, keysOf(alive))

	visited := make(map[uint32]bool, len(alive))
	var order []uint32
	var visit func(id uint32)
	visit = func(id uint32) {
		if visited[id] || !alive[id] {
			return
		}
		visited[id] = true
		for _, e := range sortedChildEdges(g, id) {
			if e.External || e.TypeOnly {
				continue
			}
			visit(e.To)
		}
		order = append(order, id)
	}
	for _, id := range sortedAlive {
		visit(id)
	}

	entries := sortedIDsByPath(g, g.EntryModules)
	return &Chunk{
		ID:             chunkID("single"),
		ModuleIDs:      order,
		EntryModuleIDs: entries,
	}
}

// buildSplitChunks implements spec §4.5's full rule: each entry roots an
// entry chunk; each dynamic-import target roots a dynamic chunk unless a
// static path from some entry would force it to load anyway; every other
// survivor goes into the unique root chunk whose static-only reachable set
// contains it, or into its own single-module shared chunk when more than
// one root's reachable set contains it.
func buildSplitChunks(g *graph.Graph, alive map[uint32]bool) []*Chunk {
	entryRoots := sortedIDsByPath(g, g.EntryModules)

	entryReach := make(map[uint32]map[uint32]bool, len(entryRoots))
	for _, root := range entryRoots {
		entryReach[root] = staticReach(g, root, alive)
	}

	forcedByEntry := make(map[uint32]bool)
	for _, reach := range entryReach {
		for id := range reach {
			forcedByEntry[id] = true
		}
	}

	dynamicTargetSet := make(map[uint32]bool)
	for id := range alive {
		mod := g.Modules[id]
		for _, e := range mod.Edges {
			if e.External || e.TypeOnly || e.Kind != graph.EdgeDynamic {
				continue
			}
			if !alive[e.To] {
				continue
			}
			if forcedByEntry[e.To] {
				// Already guaranteed loaded synchronously by some entry; no
				// separate dynamic chunk needed (spec §4.5 "unless already ...
				// via another path that would force load").
				continue
			}
			dynamicTargetSet[e.To] = true
		}
	}
	dynamicRoots := sortedIDsByPathSet(g, dynamicTargetSet)

	dynamicReach := make(map[uint32]map[uint32]bool, len(dynamicRoots))
	for _, root := range dynamicRoots {
		dynamicReach[root] = staticReach(g, root, alive)
	}

	isRoot := make(map[uint32]bool, len(entryRoots)+len(dynamicRoots))
	for _, r := range entryRoots {
		isRoot[r] = true
	}
	for _, r := range dynamicRoots {
		isRoot[r] = true
	}

	// owners[moduleID] = list of root ids whose static-reachable set
	// contains moduleID (sorted, for determinism).
	owners := make(map[uint32][]uint32)
	allRoots := append(append([]uint32{}, entryRoots...), dynamicRoots...)
	for _, root := range allRoots {
		reach := entryReach[root]
		if reach == nil {
			reach = dynamicReach[root]
		}
		for id := range reach {
			owners[id] = append(owners[id], root)
		}
	}
	for id := range owners {
		sort.Slice(owners[id], func(i, j int) bool { return owners[id][i] < owners[id][j] })
	}

	chunks := make(map[uint32]*Chunk, len(allRoots))
	for _, root := range entryRoots {
		chunks[root] = &Chunk{ID: chunkID(g.Modules[root].AbsPath), EntryModuleIDs: []uint32{root}}
	}
	for _, root := range dynamicRoots {
		chunks[root] = &Chunk{ID: chunkID(g.Modules[root].AbsPath), DynamicRootID: root, IsDynamicRoot: true}
	}

	memberOf := make(map[uint32]uint32, len(alive)) // moduleID -> owning root, or the module itself for shared chunks
	var sharedChunks []*Chunk

	for _, id := range sortedIDsByPath(g, keysOf(alive)) {
		if isRoot[id] {
			memberOf[id] = id
			continue
		}
		rootsFor := owners[id]
		switch len(rootsFor) {
		case 0:
			// Unreachable from any root via a static-only path (e.g. only
			// reachable through another dynamic import's subgraph); give it
			// its own shared chunk so it's still emitted exactly once.
			shared := &Chunk{ID: chunkID(g.Modules[id].AbsPath)}
			shared.ModuleIDs = []uint32{id}
			sharedChunks = append(sharedChunks, shared)
			memberOf[id] = id
		case 1:
			memberOf[id] = rootsFor[0]
		default:
			// Ambiguous owner: spec §4.5's simpler acceptable rule places it
			// in its own shared chunk rather than duplicating it.
			shared := &Chunk{ID: chunkID(g.Modules[id].AbsPath)}
			shared.ModuleIDs = []uint32{id}
			sharedChunks = append(sharedChunks, shared)
			memberOf[id] = id
		}
	}

	for root, chunk := range chunks {
		members := map[uint32]bool{}
		for id, owner := range memberOf {
			if owner == root {
				members[id] = true
			}
		}
		members[root] = true
		chunk.ModuleIDs = topoSortWithin(g, root, members)
	}

	for _, id := range keysOf(alive) {
		mod := g.Modules[id]
		ownerRoot := memberOf[id]
		ownerChunk := chunks[ownerRoot]
		if ownerChunk == nil {
			for _, sc := range sharedChunks {
				if len(sc.ModuleIDs) == 1 && sc.ModuleIDs[0] == ownerRoot {
					ownerChunk = sc
				}
			}
		}
		for _, e := range mod.Edges {
			if e.External || e.TypeOnly || e.Kind != graph.EdgeDynamic || !alive[e.To] {
				continue
			}
			target := chunks[e.To]
			if target == nil {
				continue
			}
			if ownerChunk != nil {
				target.InboundDynamicChunkIDs = append(target.InboundDynamicChunkIDs, ownerChunk.ID)
			}
		}
	}

	var out []*Chunk
	for _, root := range entryRoots {
		out = append(out, chunks[root])
	}
	for _, root := range dynamicRoots {
		out = append(out, chunks[root])
	}
	out = append(out, sharedChunks...)
	for _, c := range out {
		sort.Strings(c.InboundDynamicChunkIDs)
	}
	return out
}

// staticReach computes the set of alive modules reachable from root by
// following non-type-only, non-dynamic edges only: a dynamic import() is a
// chunk boundary, so it never extends a root's own synchronous subgraph.
func staticReach(g *graph.Graph, root uint32, alive map[uint32]bool) map[uint32]bool {
	reach := map[uint32]bool{}
	var visit func(id uint32)
	visit = func(id uint32) {
		if reach[id] || !alive[id] {
			return
		}
		reach[id] = true
		mod := g.Modules[id]
		for _, e := range mod.Edges {
			if e.External || e.TypeOnly || e.Kind == graph.EdgeDynamic {
				continue
			}
			visit(e.To)
		}
	}
	visit(root)
	return reach
}

// topoSortWithin returns root's chunk members in dependency-first order,
// restricted to edges whose target is also in members (cross-chunk edges
// are handled by the runtime/manifest, not by intra-chunk ordering).
func topoSortWithin(g *graph.Graph, root uint32, members map[uint32]bool) []uint32 {
	visited := map[uint32]bool{}
	var order []uint32
	var visit func(id uint32)
	visit = func(id uint32) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, e := range sortedChildEdges(g, id) {
			if e.External || e.TypeOnly || e.Kind == graph.EdgeDynamic {
				continue
			}
			if !members[e.To] {
				continue
			}
			visit(e.To)
		}
		order = append(order, id)
	}
	for _, id := range sortedIDsByPathSet(g, members) {
		visit(id)
	}
	return order
}

// sortedChildEdges returns a module's edges sorted by the resolved target's
// absolute path (external edges sort by specifier), the total order every
// iteration over edges must use for deterministic output (spec §4.5
// "Tie-breaking and determinism").
func sortedChildEdges(g *graph.Graph, id uint32) []graph.Edge {
	mod := g.Modules[id]
	edges := make([]graph.Edge, len(mod.Edges))
	copy(edges, mod.Edges)
	sort.Slice(edges, func(i, j int) bool {
		return edgeSortKey(g, edges[i]) < edgeSortKey(g, edges[j])
	})
	return edges
}

func edgeSortKey(g *graph.Graph, e graph.Edge) string {
	if e.External {
		return "\xff" + e.ExternalSpecifier
	}
	if target := g.Modules[e.To]; target != nil {
		return target.AbsPath
	}
	return e.Specifier
}

func keysOf(set map[uint32]bool) []uint32 {
	ids := make([]uint32, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

func sortedIDsByPath(g *graph.Graph, ids []uint32) []uint32 {
	out := append([]uint32{}, ids...)
	sort.Slice(out, func(i, j int) bool {
		mi, mj := g.Modules[out[i]], g.Modules[out[j]]
		if mi == nil || mj == nil {
			return out[i] < out[j]
		}
		return mi.AbsPath < mj.AbsPath
	})
	return out
}

func sortedIDsByPathSet(g *graph.Graph, set map[uint32]bool) []uint32 {
	return sortedIDsByPath(g, keysOf(set))
}

// chunkID derives a stable id from a root's identity (its absolute path, or
// the literal "single" for the no-splitting case) so that chunk ids are
// byte-identical across runs with identical inputs.
func chunkID(seed string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(seed))
}
