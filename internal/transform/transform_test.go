package transform

import (
	"strings"
	"testing"

	"github.com/ruidosujeira/kona/internal/config"
)

func TestTypeAnnotationErasure(t *testing.T) {
	res, err := Transform("const x: number = 2", "a.ts", Options{TypeScript: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(res.Code, "number") {
		t.Fatalf("expected annotation erased, got %q", res.Code)
	}
	if !res.ErasedTS {
		t.Fatalf("expected ErasedTS flag set")
	}
}

func TestFunctionSignatureErasure(t *testing.T) {
	res, err := Transform("function add(a: number, b: number): number { return a + b }", "a.ts", Options{TypeScript: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(res.Code, "number") {
		t.Fatalf("expected all annotations erased, got %q", res.Code)
	}
}

func TestInterfaceErasure(t *testing.T) {
	res, err := Transform("interface Foo { a: number }\nconst x = 1", "a.ts", Options{TypeScript: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(res.Code, "interface") {
		t.Fatalf("expected interface dropped, got %q", res.Code)
	}
	if !strings.Contains(res.Code, "const x = 1") {
		t.Fatalf("expected surrounding code preserved, got %q", res.Code)
	}
}

func TestTypeAliasErasure(t *testing.T) {
	res, err := Transform("type Foo = { a: number };\nconst x = 1", "a.ts", Options{TypeScript: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(res.Code, "type Foo") {
		t.Fatalf("expected type alias dropped, got %q", res.Code)
	}
}

func TestObjectLiteralColonsPreserved(t *testing.T) {
	res, err := Transform("const obj: Config = { a: 1, b: 2 }", "a.ts", Options{TypeScript: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(res.Code, "{ a: 1, b: 2 }") {
		t.Fatalf("expected object literal keys preserved, got %q", res.Code)
	}
	if strings.Contains(res.Code, "Config") {
		t.Fatalf("expected the declarator's own annotation erased, got %q", res.Code)
	}
}

func TestImportRenameClausePreserved(t *testing.T) {
	res, err := Transform("import { x as y } from './a'", "a.ts", Options{TypeScript: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(res.Code, "{ x as y }") {
		t.Fatalf("expected rename binding preserved verbatim, got %q", res.Code)
	}
}

func TestAsCastErasure(t *testing.T) {
	res, err := Transform("const x = (y as string)", "a.ts", Options{TypeScript: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(res.Code, "as string") {
		t.Fatalf("expected cast erased, got %q", res.Code)
	}
}

func TestNonNullAssertionErasure(t *testing.T) {
	res, err := Transform("const x = y!.z", "a.ts", Options{TypeScript: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(res.Code, "!") {
		t.Fatalf("expected non-null assertion erased, got %q", res.Code)
	}
}

func TestImportTypeStatementDropped(t *testing.T) {
	res, err := Transform("import type { Foo } from './types'\nconst x = 1", "a.ts", Options{TypeScript: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(res.Code, "import") {
		t.Fatalf("expected import type statement dropped, got %q", res.Code)
	}
}

func TestJSXClassicLowering(t *testing.T) {
	// spec §8 scenario 2: "TypeScript + JSX".
	res, err := Transform(
		`export const V: number = 2; export const E = <div>{V}</div>;`,
		"c.tsx",
		Options{TypeScript: true, JSX: true, JSXOptions: config.JSXOptions{Mode: config.JSXModeClassic, Factory: "h"}},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(res.Code, "number") {
		t.Fatalf("expected TypeScript syntax erased, got %q", res.Code)
	}
	if strings.ContainsAny(res.Code, "<>") {
		t.Fatalf("expected no JSX tokens remaining, got %q", res.Code)
	}
	if !strings.Contains(res.Code, `h("div", null, V)`) {
		t.Fatalf("expected lowered call, got %q", res.Code)
	}
}

func TestJSXFragment(t *testing.T) {
	res, err := Transform(`const x = <>hi</>`, "a.jsx", Options{JSX: true, JSXOptions: config.JSXOptions{Factory: "h", Fragment: "Fragment"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(res.Code, `h(Fragment, null, "hi")`) {
		t.Fatalf("got %q", res.Code)
	}
}

func TestJSXAttributesAndSpread(t *testing.T) {
	res, err := Transform(
		`const x = <div id="a" {...rest} hidden>{child}</div>`,
		"a.jsx",
		Options{JSX: true, JSXOptions: config.JSXOptions{Factory: "h"}},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(res.Code, `Object.assign({}, {"id": "a"}, rest, {"hidden": true})`) {
		t.Fatalf("got %q", res.Code)
	}
	if !strings.Contains(res.Code, "child)") {
		t.Fatalf("expected child expression passed through, got %q", res.Code)
	}
}

func TestJSXAutomaticRuntime(t *testing.T) {
	res, err := Transform(`const x = <Foo a={1}>{b}{c}</Foo>`, "a.jsx", Options{
		JSX: true,
		JSXOptions: config.JSXOptions{
			Mode:         config.JSXModeAutomatic,
			ImportSource: "react/jsx-runtime",
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(res.Code, `jsx(Foo, {"a": 1, children: [b, c]})`) {
		t.Fatalf("got %q", res.Code)
	}
}

func TestNestedJSXElements(t *testing.T) {
	res, err := Transform(`const x = <ul><li>one</li><li>two</li></ul>`, "a.jsx", Options{JSX: true, JSXOptions: config.JSXOptions{Factory: "h"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `h("ul", null, h("li", null, "one"), h("li", null, "two"))`
	if !strings.Contains(res.Code, want) {
		t.Fatalf("got %q, want substring %q", res.Code, want)
	}
}

func TestComparisonOperatorIsNotMistakenForJSX(t *testing.T) {
	res, err := Transform(`const ok = a < b && b > a`, "a.jsx", Options{JSX: true, JSXOptions: config.JSXOptions{Factory: "h"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.LoweredJSX {
		t.Fatalf("expected no JSX lowering for a comparison expression, got %q", res.Code)
	}
	if res.Code != `const ok = a < b && b > a` {
		t.Fatalf("expected code unchanged, got %q", res.Code)
	}
}

func TestDefineSubstitution(t *testing.T) {
	res, err := Transform(
		`if (process.env.NODE_ENV !== "production") { console.log(process.env.NODE_ENV) }`,
		"a.js",
		Options{Define: map[string]string{"process.env.NODE_ENV": `"production"`}},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Substituted != 2 {
		t.Fatalf("expected 2 substitutions, got %d in %q", res.Substituted, res.Code)
	}
	if strings.Contains(res.Code, "process.env") {
		t.Fatalf("expected all occurrences substituted, got %q", res.Code)
	}
}

func TestDefineDoesNotMatchInsideStrings(t *testing.T) {
	res, err := Transform(
		`const s = "process.env.NODE_ENV"`,
		"a.js",
		Options{Define: map[string]string{"process.env.NODE_ENV": `"production"`}},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Substituted != 0 {
		t.Fatalf("expected no substitution inside a string literal, got %q", res.Code)
	}
}

func TestDefineSkipsAssignmentTarget(t *testing.T) {
	res, err := Transform(
		`globalThis.FLAG = true; console.log(globalThis.FLAG)`,
		"a.js",
		Options{Define: map[string]string{"globalThis.FLAG": "false"}},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Substituted != 1 {
		t.Fatalf("expected exactly one substitution (the read, not the assignment target), got %d: %q", res.Substituted, res.Code)
	}
	if !strings.HasPrefix(res.Code, "globalThis.FLAG = true") {
		t.Fatalf("expected assignment target left untouched, got %q", res.Code)
	}
}

func TestDefineLongestKeyWins(t *testing.T) {
	res, err := Transform(
		`a.b.c`,
		"a.js",
		Options{Define: map[string]string{"a.b": "1", "a.b.c": "2"}},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Code != "2" {
		t.Fatalf("expected the longer key to win, got %q", res.Code)
	}
}
