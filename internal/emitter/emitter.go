// Package emitter implements the Emitter (spec §4.6): it turns a shaken,
// chunked graph.Graph into concrete output files - one JS file per
// shaker.Chunk, each wrapped in the runtime registry and preamble, plus a
// code-splitting manifest describing where every chunk landed on disk. Like
// internal/runtime, it works by splicing text rather than building an
// output AST: every rewrite it performs is a byte-range replacement driven
// by the Ranges scan.Table recorded against transform.Result.Code.
package emitter

import (
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/ruidosujeira/kona/internal/config"
	"github.com/ruidosujeira/kona/internal/graph"
	"github.com/ruidosujeira/kona/internal/runtime"
	"github.com/ruidosujeira/kona/internal/scan"
	"github.com/ruidosujeira/kona/internal/shaker"
)

// OutputFile is one file the Emitter writes: the rewritten, wrapped JS for
// one chunk.
type OutputFile struct {
	ChunkID string
	Path    string
	Code    string
}

// Result is everything EmitAll produces.
type Result struct {
	Files []OutputFile

	// Manifest is the code-splitting manifest JSON, keyed by chunk id:
	// {"<chunk-id>": {"path": "...", "css": null}} (spec §6). This is
	// separate from - and serves a different reader than - the per-module
	// runtime.ManifestEntry calls embedded in the output JS, which key by
	// module id for the reason documented there.
	Manifest []byte
}

// EmitAll rewrites every surviving module's body and assembles the final
// per-chunk output files plus the manifest. chunks is expected in
// shaker.BuildChunks's own order (entry chunks first); EmitAll preserves
// that order in Result.Files.
func EmitAll(g *graph.Graph, chunks []*shaker.Chunk, opts config.Options) (*Result, error) {
	fileNames := make(map[string]string, len(chunks))
	for _, c := range chunks {
		fileNames[c.ID] = chunkFileName(g, c)
	}

	chunkByModule := make(map[uint32]*shaker.Chunk, len(g.Modules))
	for _, c := range chunks {
		for _, id := range c.ModuleIDs {
			chunkByModule[id] = c
		}
	}

	result := &Result{}
	for _, c := range chunks {
		code, err := emitChunk(g, c, chunkByModule, fileNames, opts)
		if err != nil {
			return nil, fmt.Errorf("emitting chunk %s: %w", c.ID, err)
		}
		if opts.Minify && opts.Minifier != nil {
			minified, err := opts.Minifier.Minify(fileNames[c.ID], []byte(code))
			if err != nil {
				return nil, fmt.Errorf("minifying chunk %s: %w", c.ID, err)
			}
			code = string(minified)
		}
		result.Files = append(result.Files, OutputFile{ChunkID: c.ID, Path: fileNames[c.ID], Code: code})
	}

	manifest, err := buildManifestJSON(chunks, fileNames)
	if err != nil {
		return nil, err
	}
	result.Manifest = manifest
	return result, nil
}

func emitChunk(g *graph.Graph, c *shaker.Chunk, chunkByModule map[uint32]*shaker.Chunk, fileNames map[string]string, opts config.Options) (string, error) {
	var body strings.Builder
	body.WriteString(runtime.Preamble(opts.Target, opts.Splitting))

	dynTargets := map[uint32]bool{}
	for _, id := range c.ModuleIDs {
		mod := g.Modules[id]
		if mod == nil {
			return "", fmt.Errorf("chunk %s references unknown module %d", c.ID, id)
		}
		rewritten, targets := rewriteModule(mod)
		for _, t := range targets {
			dynTargets[t] = true
		}
		body.WriteString(runtime.DefineModule(id, rewritten))
	}

	if len(dynTargets) > 0 {
		ids := make([]uint32, 0, len(dynTargets))
		for id := range dynTargets {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			target := chunkByModule[id]
			if target == nil {
				continue // dynamic target didn't survive shaking (unreachable), nothing to register
			}
			body.WriteString(runtime.ManifestEntry(id, fileNames[target.ID], ""))
		}
	}

	for _, entryID := range c.EntryModuleIDs {
		req := runtime.RequireCall(entryID)
		switch opts.Format {
		case config.FormatCJS:
			fmt.Fprintf(&body, "module.exports = %s;\n", req)
		case config.FormatESM:
			fmt.Fprintf(&body, "export default %s;\n", req)
		default:
			fmt.Fprintf(&body, "%s;\n", req)
		}
	}

	return wrapFormat(body.String(), opts.Format), nil
}

// wrapFormat only adds a shell for IIFE output: a CJS chunk is already its
// own function-wrapped Node module, and an ESM chunk is already its own
// module scope, so top-level `var` declarations in the runtime preamble
// can't leak. An IIFE chunk executes as a plain global <script>, so it
// needs the wrapper to keep its vars off the page's global object.
func wrapFormat(body string, format config.Format) string {
	if format != config.FormatIIFE {
		return body
	}
	return "(function() {\n\"use strict\";\n" + body + "})();\n"
}

// rewriteModule splices mod's transformed code into its final registry-body
// form: import/require/re-export statements become runtime calls, and
// export declarations lose their "export" keyword in favor of a trailer of
// explicit getter definitions. It returns the rewritten body and the
// distinct internal module ids this module dynamically imports, which the
// caller rolls up into the chunk's manifest registrations.
func rewriteModule(mod *graph.Module) (string, []uint32) {
	code := mod.Transform.Code

	type splice struct {
		start, end int32
		text       string
	}
	var splices []splice
	var dynTargets []uint32
	seenDyn := map[uint32]bool{}

	for i, imp := range mod.Table.Imports {
		if i >= len(mod.Edges) {
			break // defensive: scan.Table and graph.Module.Edges are built index-aligned
		}
		edge := mod.Edges[i]

		switch imp.Kind {
		case scan.StaticFrom, scan.StaticSideEffect:
			if imp.TypeOnly {
				splices = append(splices, splice{imp.Range.Loc.Start, imp.Range.End(), ""})
				continue
			}
			tmp := fmt.Sprintf("__kmod%d", i)
			splices = append(splices, splice{imp.Range.Loc.Start, imp.Range.End(), buildImportReplacement(edge, imp.Bindings, tmp)})

		case scan.RequireCall:
			if edge.External {
				continue // a bare require() call stays valid JS wherever it is
			}
			splices = append(splices, splice{imp.Range.Loc.Start, imp.Range.End(), runtime.RequireCall(edge.To)})

		case scan.DynamicCall:
			if edge.External {
				replacement := fmt.Sprintf("Promise.resolve().then(function() { return require(%s); })",
					runtime.QuoteString(edge.ExternalSpecifier))
				splices = append(splices, splice{imp.Range.Loc.Start, imp.Range.End(), replacement})
				continue
			}
			splices = append(splices, splice{imp.Range.Loc.Start, imp.Range.End(), fmt.Sprintf("__kload(%d)", edge.To)})
			if !seenDyn[edge.To] {
				seenDyn[edge.To] = true
				dynTargets = append(dynTargets, edge.To)
			}

		case scan.ReExport, scan.ReExportAll:
			if imp.TypeOnly {
				splices = append(splices, splice{imp.Range.Loc.Start, imp.Range.End(), ""})
				continue
			}
			var matching []scan.ExportEntry
			for _, e := range mod.Table.Exports {
				if e.IsReExport && e.ReExportFrom == imp.Specifier {
					matching = append(matching, e)
				}
			}
			tmp := fmt.Sprintf("__kmod%d", i)
			splices = append(splices, splice{imp.Range.Loc.Start, imp.Range.End(), buildReExportReplacement(edge, matching, tmp)})
		}
	}

	seenExportRange := map[int32]bool{}
	for _, e := range mod.Table.Exports {
		if e.IsReExport || !e.HasLocalBinding {
			continue
		}
		start := e.Range.Loc.Start
		if seenExportRange[start] {
			continue
		}
		seenExportRange[start] = true

		replacement := ""
		if e.Name == "default" && e.LocalName == "" {
			// e.Range covers "export default" only; the source text's own
			// leading space before the expression follows right after, so
			// the replacement text doesn't add its own.
			replacement = "var __default ="
		}
		splices = append(splices, splice{start, e.Range.End(), replacement})
	}

	sort.Slice(splices, func(i, j int) bool { return splices[i].start < splices[j].start })

	var out strings.Builder
	cursor := int32(0)
	for _, sp := range splices {
		if sp.start < cursor {
			continue // overlapping/duplicate splice already covered
		}
		out.WriteString(code[cursor:sp.start])
		out.WriteString(sp.text)
		cursor = sp.end
	}
	out.WriteString(code[cursor:])

	out.WriteString(buildExportsTrailer(mod.Table.Exports))

	return out.String(), dynTargets
}

// requireExprFor returns the expression that pulls in edge's target module,
// whichever side of the bundle boundary it's on.
func requireExprFor(edge graph.Edge) string {
	if edge.External {
		return fmt.Sprintf("require(%s)", runtime.QuoteString(edge.ExternalSpecifier))
	}
	return runtime.RequireCall(edge.To)
}

// buildImportReplacement renders a static import clause as a sequence of
// plain `var` declarations: one bare require() to get at the target's
// exports object, then one declaration per local binding, using the
// platform interop helper default/namespace bindings need.
func buildImportReplacement(edge graph.Edge, bindings []scan.ImportBinding, tmp string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "var %s = %s;\n", tmp, requireExprFor(edge))

	defaultTmp := ""
	for _, b := range bindings {
		switch b.Kind {
		case scan.BindingDefault:
			if defaultTmp == "" {
				defaultTmp = tmp + "_d"
				fmt.Fprintf(&sb, "var %s = %s;\n", defaultTmp, runtime.ImportDefaultCall(tmp))
			}
			fmt.Fprintf(&sb, "var %s = %s.default;\n", b.Local, defaultTmp)
		case scan.BindingNamespace:
			fmt.Fprintf(&sb, "var %s = %s;\n", b.Local, runtime.ImportNamespaceCall(tmp))
		default:
			fmt.Fprintf(&sb, "var %s = %s[%s];\n", b.Local, tmp, runtime.QuoteString(b.Imported))
		}
	}
	return sb.String()
}

// buildReExportReplacement renders "export {a, b as c} from 'x'" and
// "export * from 'x'" clauses: require the source module once, then either
// forward every non-colliding name (export * from) or define a getter per
// re-exported name (export {...} from).
func buildReExportReplacement(edge graph.Edge, exports []scan.ExportEntry, tmp string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "var %s = %s;\n", tmp, requireExprFor(edge))

	for _, e := range exports {
		if e.ReExportSourceName == "*" {
			if e.Name == "*" {
				sb.WriteString(runtime.ExportStarCall("exports", tmp))
			} else {
				// "export * as ns from 'x'": the whole namespace becomes one
				// named export on this module.
				sb.WriteString(runtime.ExportGetter("exports", e.Name, runtime.ImportNamespaceCall(tmp)))
			}
			continue
		}
		sb.WriteString(runtime.ExportGetter("exports", e.Name, fmt.Sprintf("%s[%s]", tmp, runtime.QuoteString(e.ReExportSourceName))))
	}
	return sb.String()
}

// buildExportsTrailer appends the getter definitions for every export this
// module declares locally (re-exports are already wired inline at their
// require() splice point above).
func buildExportsTrailer(exports []scan.ExportEntry) string {
	var sb strings.Builder
	hasLocal := false
	for _, e := range exports {
		if !e.IsReExport && e.HasLocalBinding {
			hasLocal = true
			break
		}
	}
	if !hasLocal {
		return ""
	}

	sb.WriteString(runtime.MarkESModule("exports"))
	for _, e := range exports {
		if e.IsReExport || !e.HasLocalBinding {
			continue
		}
		local := e.LocalName
		if local == "" {
			local = "__default"
		}
		sb.WriteString(runtime.ExportGetter("exports", e.Name, local))
	}
	return sb.String()
}

// chunkFileName derives a deterministic output path: an entry chunk is named
// after its first entry module's basename for readability, a non-entry
// chunk is named after its id alone (a hash of its root module's path). Both append enough of
// the chunk's own id to stay unique across entries that happen to share a
// basename (e.g. two "index.js" entries in different directories).
func chunkFileName(g *graph.Graph, c *shaker.Chunk) string {
	suffix := c.ID
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	if len(c.EntryModuleIDs) > 0 {
		mod := g.Modules[c.EntryModuleIDs[0]]
		base := path.Base(mod.PrettyPath)
		base = strings.TrimSuffix(base, path.Ext(base))
		return fmt.Sprintf("%s-%s.js", base, suffix)
	}
	return fmt.Sprintf("chunk-%s.js", suffix)
}

func buildManifestJSON(chunks []*shaker.Chunk, fileNames map[string]string) ([]byte, error) {
	type entry struct {
		Path string  `json:"path"`
		CSS  *string `json:"css"`
	}
	m := make(map[string]entry, len(chunks))
	for _, c := range chunks {
		m[c.ID] = entry{Path: fileNames[c.ID]}
	}
	out, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling manifest: %w", err)
	}
	return out, nil
}
