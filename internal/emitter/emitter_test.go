package emitter

import (
	"context"
	"strings"
	"testing"

	"github.com/ruidosujeira/kona/internal/cache"
	"github.com/ruidosujeira/kona/internal/config"
	"github.com/ruidosujeira/kona/internal/fs"
	"github.com/ruidosujeira/kona/internal/graph"
	"github.com/ruidosujeira/kona/internal/logger"
	"github.com/ruidosujeira/kona/internal/resolver"
	"github.com/ruidosujeira/kona/internal/shaker"
)

func buildGraph(t *testing.T, files map[string]string, opts config.Options, entries []string) *graph.Graph {
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
	return g
}

func emitFromFiles(t *testing.T, files map[string]string, opts config.Options, entries []string, splitting bool) *Result {
	t.Helper()
	g := buildGraph(t, files, opts, entries)
	alive := shaker.Shake(g)
	chunks := shaker.BuildChunks(g, alive, splitting)
	result, err := EmitAll(g, chunks, opts)
	if err != nil {
		t.Fatalf("EmitAll: %v", err)
	}
	return result
}

func findFile(t *testing.T, result *Result, contains string) OutputFile {
	t.Helper()
	for _, f := range result.Files {
		if strings.Contains(f.Code, contains) {
			return f
		}
	}
	t.Fatalf("no output file contains %q; files: %+v", contains, result.Files)
	return OutputFile{}
}

func TestMinimalESMNamedImportRewritesToRegistryLookup(t *testing.T) {
	result := emitFromFiles(t, map[string]string{
		"/p/a.js": "export const x = 1",
		"/p/b.js": "import {x} from './a.js'; console.log(x)",
	}, config.Options{Target: config.PlatformBrowser}, []string{"/p/b.js"}, false)

	if len(result.Files) != 1 {
		t.Fatalf("expected a single chunk, got %d files", len(result.Files))
	}
	code := result.Files[0].Code
	if !strings.Contains(code, `["x"]`) {
		t.Fatalf("expected a property read for the named binding, got:\n%s", code)
	}
	if strings.Contains(code, "import ") || strings.Contains(code, "export const") {
		t.Fatalf("import/export keywords must not survive emission, got:\n%s", code)
	}
	if !strings.Contains(code, `Object.defineProperty(exports, "x"`) {
		t.Fatalf("expected a.js's module body to define a getter for x, got:\n%s", code)
	}
}

func TestDefaultAndNamespaceImportUseInteropHelpers(t *testing.T) {
	result := emitFromFiles(t, map[string]string{
		"/p/a.js": "export default 7",
		"/p/b.js": "import def, * as ns from './a.js'; console.log(def, ns)",
	}, config.Options{Target: config.PlatformBrowser}, []string{"/p/b.js"}, false)

	code := result.Files[0].Code
	if !strings.Contains(code, "__kimportDefault(") {
		t.Fatalf("expected a default-import interop call, got:\n%s", code)
	}
	if !strings.Contains(code, "__knamespace(") {
		t.Fatalf("expected a namespace-import interop call, got:\n%s", code)
	}
}

func TestExportDefaultBareExpressionSynthesizesBinding(t *testing.T) {
	result := emitFromFiles(t, map[string]string{
		"/p/e.js": "export default 7",
	}, config.Options{Target: config.PlatformBrowser}, []string{"/p/e.js"}, false)

	code := result.Files[0].Code
	if !strings.Contains(code, "var __default = 7") {
		t.Fatalf("expected a synthesized __default binding for the bare expression, got:\n%s", code)
	}
	if !strings.Contains(code, `Object.defineProperty(exports, "default"`) {
		t.Fatalf("expected a default export getter, got:\n%s", code)
	}
}

func TestExportDefaultNamedFunctionKeepsItsName(t *testing.T) {
	result := emitFromFiles(t, map[string]string{
		"/p/e.js": "export default function greet() { return 1; }",
	}, config.Options{Target: config.PlatformBrowser}, []string{"/p/e.js"}, false)

	code := result.Files[0].Code
	if strings.Contains(code, "__default") {
		t.Fatalf("a named default export must not need a synthesized binding, got:\n%s", code)
	}
	if !strings.Contains(code, "function greet()") {
		t.Fatalf("expected the function declaration to survive with its name intact, got:\n%s", code)
	}
}

func TestDynamicImportRegistersManifestAndLoadsLazily(t *testing.T) {
	result := emitFromFiles(t, map[string]string{
		"/p/e.js": "export default 7",
		"/p/m.js": "const m = await import('./e.js'); console.log(m.default)",
	}, config.Options{Target: config.PlatformBrowser}, []string{"/p/m.js"}, true)

	if len(result.Files) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(result.Files))
	}
	entryFile := findFile(t, result, "__kload(")
	if !strings.Contains(entryFile.Code, "__kona.manifest[") {
		t.Fatalf("expected the entry chunk to register a manifest entry for the dynamic target, got:\n%s", entryFile.Code)
	}
	if !strings.Contains(entryFile.Code, "document.createElement") {
		t.Fatalf("expected the browser loader to be present when splitting, got:\n%s", entryFile.Code)
	}
}

func TestReExportNamedWiresGetterThroughSource(t *testing.T) {
	result := emitFromFiles(t, map[string]string{
		"/p/x.js":    "export const a = 1; export const b = 2;",
		"/p/main.js": "export { a, b as c } from './x.js'",
	}, config.Options{Target: config.PlatformBrowser}, []string{"/p/main.js"}, false)

	code := result.Files[0].Code
	if !strings.Contains(code, `Object.defineProperty(exports, "c"`) || !strings.Contains(code, `["b"]`) {
		t.Fatalf("expected a renamed re-export getter reading the source module's \"b\" property, got:\n%s", code)
	}
	if strings.Contains(code, "export {") {
		t.Fatalf("the re-export clause's keyword text must not survive emission, got:\n%s", code)
	}
}

func TestReExportAllUsesExportStarHelper(t *testing.T) {
	result := emitFromFiles(t, map[string]string{
		"/p/x.js":    "export const a = 1;",
		"/p/main.js": "export * from './x.js'",
	}, config.Options{Target: config.PlatformBrowser}, []string{"/p/main.js"}, false)

	code := result.Files[0].Code
	if !strings.Contains(code, "__kexport(exports,") {
		t.Fatalf("expected the export-star helper to be invoked, got:\n%s", code)
	}
}

func TestCJSFormatAssignsModuleExports(t *testing.T) {
	result := emitFromFiles(t, map[string]string{
		"/p/main.js": "export const x = 1;",
	}, config.Options{Target: config.PlatformServer, Format: config.FormatCJS}, []string{"/p/main.js"}, false)

	code := result.Files[0].Code
	if !strings.Contains(code, "module.exports = __kreq(") {
		t.Fatalf("expected a CJS chunk to assign module.exports from its entry require() call, got:\n%s", code)
	}
}

func TestIIFEFormatWrapsInClosure(t *testing.T) {
	result := emitFromFiles(t, map[string]string{
		"/p/main.js": "export const x = 1;",
	}, config.Options{Target: config.PlatformBrowser, Format: config.FormatIIFE}, []string{"/p/main.js"}, false)

	code := result.Files[0].Code
	if !strings.HasPrefix(code, "(function() {") || !strings.HasSuffix(code, "})();\n") {
		t.Fatalf("expected the IIFE format to wrap the whole chunk in a closure, got:\n%s", code)
	}
}

func TestManifestJSONKeyedByChunkID(t *testing.T) {
	result := emitFromFiles(t, map[string]string{
		"/p/main.js": "export const x = 1;",
	}, config.Options{Target: config.PlatformBrowser}, []string{"/p/main.js"}, false)

	if len(result.Files) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(result.Files))
	}
	if !strings.Contains(string(result.Manifest), result.Files[0].ChunkID) {
		t.Fatalf("expected the manifest JSON to be keyed by the chunk's own id, got:\n%s", result.Manifest)
	}
}

func TestTypeOnlyImportLeavesNoTrace(t *testing.T) {
	result := emitFromFiles(t, map[string]string{
		"/p/types.ts": "export interface Foo { x: number }",
		"/p/main.ts":  "import type { Foo } from './types'; export const x: number = 1;",
	}, config.Options{Target: config.PlatformBrowser}, []string{"/p/main.ts"}, false)

	code := result.Files[0].Code
	if strings.Contains(code, "Foo") {
		t.Fatalf("a type-only import must leave no runtime trace, got:\n%s", code)
	}
}
