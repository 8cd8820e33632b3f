package scan

import (
	"testing"

	"github.com/ruidosujeira/kona/internal/logger"
)

func scanSrc(t *testing.T, src string, hint string) *Table {
	t.Helper()
	table, err := Scan(logger.Source{Contents: src}, hint)
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	return table
}

func TestStaticImport(t *testing.T) {
	table := scanSrc(t, `import {x} from './a.js'; console.log(x)`, "b.js")
	if len(table.Imports) != 1 {
		t.Fatalf("expected 1 import, got %d: %+v", len(table.Imports), table.Imports)
	}
	entry := table.Imports[0]
	if entry.Specifier != "./a.js" || entry.Kind != StaticFrom {
		t.Fatalf("got %+v", entry)
	}
	if len(entry.Bindings) != 1 || entry.Bindings[0].Local != "x" || entry.Bindings[0].Kind != BindingNamed {
		t.Fatalf("got bindings %+v", entry.Bindings)
	}
}

func TestSideEffectImport(t *testing.T) {
	table := scanSrc(t, `import './side-effect.css'`, "main.js")
	if len(table.Imports) != 1 || table.Imports[0].Kind != StaticSideEffect {
		t.Fatalf("got %+v", table.Imports)
	}
}

func TestDefaultAndNamespaceImport(t *testing.T) {
	table := scanSrc(t, `import def, * as ns from './a.js'`, "main.js")
	if len(table.Imports) != 1 {
		t.Fatalf("got %+v", table.Imports)
	}
	bindings := table.Imports[0].Bindings
	if len(bindings) != 2 || bindings[0].Local != "def" || bindings[0].Kind != BindingDefault ||
		bindings[1].Local != "ns" || bindings[1].Kind != BindingNamespace {
		t.Fatalf("got bindings %+v", bindings)
	}
}

func TestNamedImportRenameKeepsBothNames(t *testing.T) {
	table := scanSrc(t, `import { a, b as c } from './x.js'`, "main.js")
	bindings := table.Imports[0].Bindings
	if len(bindings) != 2 {
		t.Fatalf("got bindings %+v", bindings)
	}
	if bindings[0].Local != "a" || bindings[0].Imported != "a" {
		t.Fatalf("got %+v", bindings[0])
	}
	if bindings[1].Local != "c" || bindings[1].Imported != "b" {
		t.Fatalf("expected the renamed binding to keep both the exported name %q and the local name %q, got %+v", "b", "c", bindings[1])
	}
}

func TestDynamicImportLiteral(t *testing.T) {
	table := scanSrc(t, `const m = await import('./e.js'); console.log(m.default)`, "m.js")
	if !table.HasDynamicImport {
		t.Fatalf("expected HasDynamicImport")
	}
	if !table.HasTopLevelAwait {
		t.Fatalf("expected HasTopLevelAwait")
	}
	if len(table.Imports) != 1 || table.Imports[0].Kind != DynamicCall || table.Imports[0].Specifier != "./e.js" {
		t.Fatalf("got %+v", table.Imports)
	}
}

func TestDynamicImportNonLiteralProducesNoEdge(t *testing.T) {
	table := scanSrc(t, `const name = pick(); import(name)`, "m.js")
	if !table.HasDynamicImport {
		t.Fatalf("expected HasDynamicImport flag even without a literal edge")
	}
	if len(table.Imports) != 0 {
		t.Fatalf("expected no import edges for a non-literal specifier, got %+v", table.Imports)
	}
}

func TestAwaitInsideFunctionIsNotTopLevel(t *testing.T) {
	table := scanSrc(t, `async function f() { await g() }`, "m.js")
	if table.HasTopLevelAwait {
		t.Fatalf("await nested in a function must not count as top-level")
	}
}

func TestExportNamedDeclaration(t *testing.T) {
	table := scanSrc(t, `export const keep = 1, drop = 2;`, "u.js")
	names := map[string]bool{}
	for _, e := range table.Exports {
		names[e.Name] = true
	}
	if !names["keep"] || !names["drop"] {
		t.Fatalf("got exports %+v", table.Exports)
	}
}

func TestExportDefault(t *testing.T) {
	table := scanSrc(t, `export default 7`, "e.js")
	if len(table.Exports) != 1 || table.Exports[0].Name != "default" {
		t.Fatalf("got %+v", table.Exports)
	}
}

func TestReExportNamed(t *testing.T) {
	table := scanSrc(t, `export { a, b as c } from './x.js'`, "main.js")
	if len(table.Imports) != 1 || table.Imports[0].Kind != ReExport {
		t.Fatalf("got imports %+v", table.Imports)
	}
	if len(table.Exports) != 2 {
		t.Fatalf("got exports %+v", table.Exports)
	}
	if table.Exports[1].Name != "c" || table.Exports[1].ReExportSourceName != "b" {
		t.Fatalf("got %+v", table.Exports[1])
	}
}

func TestReExportAllCycle(t *testing.T) {
	// spec §8: "Re-export cycle: A: export * from B; B: export * from A"
	tableA := scanSrc(t, `export * from './b.js'`, "a.js")
	tableB := scanSrc(t, `export * from './a.js'`, "b.js")
	if len(tableA.Imports) != 1 || tableA.Imports[0].Kind != ReExportAll || tableA.Imports[0].Specifier != "./b.js" {
		t.Fatalf("got %+v", tableA.Imports)
	}
	if len(tableB.Imports) != 1 || tableB.Imports[0].Specifier != "./a.js" {
		t.Fatalf("got %+v", tableB.Imports)
	}
}

func TestTypeOnlyImportDropped(t *testing.T) {
	table := scanSrc(t, `import type { Foo } from './types'`, "main.ts")
	if len(table.Imports) != 1 || !table.Imports[0].TypeOnly {
		t.Fatalf("expected a type-only import edge, got %+v", table.Imports)
	}
}

func TestTypeOnlyExportDropped(t *testing.T) {
	table := scanSrc(t, `export type { Foo } from './types'`, "main.ts")
	if len(table.Exports) != 0 {
		t.Fatalf("type-only export must be dropped entirely, got %+v", table.Exports)
	}
}

func TestRequireCall(t *testing.T) {
	table := scanSrc(t, `const x = require('./a.js')`, "main.js")
	if len(table.Imports) != 1 || table.Imports[0].Kind != RequireCall {
		t.Fatalf("got %+v", table.Imports)
	}
}

func TestJSXAndTypeScriptFlagsFromExtension(t *testing.T) {
	table := scanSrc(t, `export const V: number = 2; export const E = <div>{V}</div>;`, "c.tsx")
	if !table.HasJSX || !table.HasTypeScript {
		t.Fatalf("expected both flags set for .tsx, got %+v", table)
	}
}
