// Package runtime holds the small JS preamble emitted at the top of every
// output chunk: a module registry, a memoizing require(id), interop helpers
// for default/namespace imports, and a dynamic-chunk loader (spec §4.6
// "Runtime preamble"). It is embedded as static template data and built by
// plain string concatenation - there is no JS AST on the output side, only
// on the input side (internal/scan), so generating output source this way
// matches the rest of the Emitter's approach.
package runtime

import (
	"fmt"
	"strings"

	"github.com/ruidosujeira/kona/internal/config"
)

// globalRef resolves to the shared global object in every environment this
// bundler targets: browsers, web workers, and Node, without assuming which
// one is running.
const globalRef = `(typeof globalThis !== "undefined" ? globalThis : this)`

// corePreamble declares the module registry and the handful of helpers every
// chunk needs regardless of platform. It is safe to prepend to more than one
// chunk that shares a page/process: __kona itself is created once on the
// global object, and every other declaration here reuses it via `||` instead
// of overwriting it, so a second chunk's copy of this same text is a no-op
// past the first `var __kona = ...` line.
const corePreamble = `var __kona = ` + globalRef + `.__kona || (` + globalRef + `.__kona = { m: {}, c: {}, manifest: {} });
var __kreq = __kona.require || (__kona.require = function(id) {
	var cached = __kona.c[id];
	if (cached) return cached.exports;
	var fn = __kona.m[id];
	if (!fn) throw new Error("Unknown module: " + id);
	var mod = __kona.c[id] = { exports: {} };
	fn(__kreq, mod, mod.exports);
	return mod.exports;
});
var __kimportDefault = __kona.importDefault || (__kona.importDefault = function(mod) {
	return mod && mod.__esModule ? mod : { default: mod };
});
var __knamespace = __kona.toNamespace || (__kona.toNamespace = function(mod) {
	if (mod && mod.__esModule) return mod;
	var ns = {};
	for (var key in mod) {
		if (Object.prototype.hasOwnProperty.call(mod, key)) ns[key] = mod[key];
	}
	ns.default = mod;
	return ns;
});
var __kexport = __kona.exportStar || (__kona.exportStar = function(target, source) {
	for (var key in source) {
		if (key !== "default" && !Object.prototype.hasOwnProperty.call(target, key)) {
			Object.defineProperty(target, key, { enumerable: true, get: function() { return source[key]; } });
		}
	}
	return target;
});
`

// browserLoader fetches a chunk by injecting a <script> tag (and, when the
// chunk has a co-emitted stylesheet, a <link> tag ahead of it). moduleId
// looks up the ManifestEntry for the module the caller actually wants;
// entry.rootModuleId is that same id, kept on the entry so the lookup and
// the post-load require() share one piece of data.
const browserLoader = `var __kload = __kona.load || (__kona.load = function(moduleId) {
	return new Promise(function(resolve, reject) {
		var entry = __kona.manifest[moduleId];
		if (!entry) { reject(new Error("Unknown dynamic import: " + moduleId)); return; }
		if (__kona.c[entry.rootModuleId] || __kona.m[entry.rootModuleId]) {
			resolve(__kreq(entry.rootModuleId));
			return;
		}
		if (entry.css) {
			var link = document.createElement("link");
			link.rel = "stylesheet";
			link.href = entry.css;
			document.head.appendChild(link);
		}
		var script = document.createElement("script");
		script.src = entry.path;
		script.onload = function() { resolve(__kreq(entry.rootModuleId)); };
		script.onerror = function() { reject(new Error("Failed to load chunk: " + entry.path)); };
		document.head.appendChild(script);
	});
});
`

// serverLoader delegates to the host's own require() to pull the chunk file
// onto the heap - that require call's side effect is populating __kona.m, so
// __kreq can then instantiate the target module.
const serverLoader = `var __kload = __kona.load || (__kona.load = function(moduleId) {
	return Promise.resolve().then(function() {
		var entry = __kona.manifest[moduleId];
		if (!entry) throw new Error("Unknown dynamic import: " + moduleId);
		if (!__kona.m[entry.rootModuleId]) require(entry.path);
		return __kreq(entry.rootModuleId);
	});
});
`

// Preamble returns the full runtime text for one chunk: the core registry
// helpers, plus the platform's dynamic-chunk loader when splitting is in
// play. A chunk that contains no dynamic import doesn't need the loader
// half, but including it unconditionally costs nothing once minified and
// keeps every chunk's preamble byte-identical, which is what lets the
// "no-op past the first declaration" sharing above actually hold.
func Preamble(platform config.Platform, splitting bool) string {
	if !splitting {
		return corePreamble
	}
	if platform == config.PlatformServer {
		return corePreamble + serverLoader
	}
	return corePreamble + browserLoader
}

// DefineModule wraps one module's rewritten body as a registry entry.
func DefineModule(id uint32, body string) string {
	return fmt.Sprintf("__kona.m[%d] = function(require, module, exports) {\n%s\n};\n", id, body)
}

// RequireCall returns the expression that instantiates (or reuses) module
// id's exports object.
func RequireCall(id uint32) string {
	return fmt.Sprintf("__kreq(%d)", id)
}

// ImportDefaultCall wraps a required module's exports for default-import
// interop: a CommonJS module's whole exports object becomes the default,
// while an __esModule-flagged module is passed through untouched.
func ImportDefaultCall(requireExpr string) string {
	return fmt.Sprintf("__kimportDefault(%s)", requireExpr)
}

// ImportNamespaceCall wraps a required module's exports for `import * as ns`
// interop.
func ImportNamespaceCall(requireExpr string) string {
	return fmt.Sprintf("__knamespace(%s)", requireExpr)
}

// MarkESModule flags a module's exports object as an ES module, so importers
// know not to wrap it for default-import interop.
func MarkESModule(exportsVar string) string {
	return fmt.Sprintf("Object.defineProperty(%s, \"__esModule\", { value: true });\n", exportsVar)
}

// ExportGetter defines one live-binding export: name is read through expr
// every time an importer accesses it, so later reassignment of the local
// binding (`export let x; x = 2`) is observed the way ES module bindings
// require.
func ExportGetter(exportsVar, name, expr string) string {
	return fmt.Sprintf("Object.defineProperty(%s, %s, { enumerable: true, get: function() { return %s; } });\n",
		exportsVar, jsString(name), expr)
}

// ExportStarCall re-exports every named (non-default) binding of source onto
// target, skipping any name target already defines - spec's stated "the
// earlier wins" precedence for colliding `export * from` specifiers, as a
// consequence of checking hasOwnProperty before each define.
func ExportStarCall(exportsVar, sourceExpr string) string {
	return fmt.Sprintf("__kexport(%s, %s);\n", exportsVar, sourceExpr)
}

// ManifestEntry registers one dynamically-importable module's load-time
// metadata, keyed by that module's own id rather than by its chunk: two
// modules that happen to share a chunk (the "already forced to load
// synchronously" carve-out can put more than one independently
// dynamic-imported module in the same entry chunk) still need independently
// addressable manifest entries, and a module id is already guaranteed
// unique, so it doubles as the load key without inventing a second
// namespace. path is the chunk file the loader must fetch to make this
// module's registry entry available; css is that chunk's co-emitted
// stylesheet, or "" if it has none.
func ManifestEntry(moduleID uint32, path, css string) string {
	cssLit := "null"
	if css != "" {
		cssLit = jsString(css)
	}
	return fmt.Sprintf("__kona.manifest[%d] = { path: %s, css: %s, rootModuleId: %d };\n",
		moduleID, jsString(path), cssLit, moduleID)
}

// QuoteString renders s as a double-quoted JS string literal. Exported so
// the emitter can quote the import specifiers and property names it splices
// into module bodies with the same escaping rules used here.
func QuoteString(s string) string {
	return jsString(s)
}

// jsString renders s as a double-quoted JS string literal, escaping the
// handful of characters that matter for identifiers and paths passed through
// here (chunk ids, module-relative paths, export names) - none of this data
// originates from untrusted input, but quoting it properly is no more code
// than assuming it's safe.
func jsString(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
