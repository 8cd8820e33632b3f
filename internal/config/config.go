// Package config defines the bundler's configuration surface (spec §6): the
// one Options struct that the resolver, graph builder and emitter all read,
// plus the enums, plugin hook types and platform defaults it is built from.
package config

// Platform selects condition-name priority, runtime preamble, and the
// builtin-externals list (spec §4.1 "Package probe").
type Platform uint8

const (
	PlatformBrowser Platform = iota
	PlatformServer
)

// Format is the emission shape (spec §4.6).
type Format uint8

const (
	FormatIIFE Format = iota
	FormatCJS
	FormatESM
)

// SourceMapMode is the configured source-map mode. The Emitter does not read
// it: no source map is produced, whichever mode is set.
type SourceMapMode uint8

const (
	SourceMapNone SourceMapMode = iota
	SourceMapInline
	SourceMapExternal
)

// JSXMode selects classic vs. automatic JSX lowering (spec §4.3).
type JSXMode uint8

const (
	JSXModeClassic JSXMode = iota
	JSXModeAutomatic
)

type JSXOptions struct {
	Mode         JSXMode
	Factory      string // default: "h" (classic) - e.g. Preact/hyperscript style
	Fragment     string // default: "Fragment"
	ImportSource string // for automatic mode, e.g. "react/jsx-runtime"
}

// Minifier is the pluggable post-processor invoked on each emitted chunk
// (spec §6 "minify"). It is a consumed-through-interface collaborator: this
// repo ships no concrete minifier, only the seam. A nil Minifier with
// Minify=true is a documented pass-through, not an error.
type Minifier interface {
	Minify(chunkPath string, code []byte) ([]byte, error)
}

// AliasEntry is one `alias` config entry: a literal-prefix specifier rewrite.
type AliasEntry struct {
	From string
	To   string
}

// PathMapping is one `paths`/tsconfig-style mapping entry: pattern may
// contain a single "*" wildcard, targets are tried in order (spec §4.1 step 3).
type PathMapping struct {
	Pattern string
	Targets []string
}

// Options is the full configuration surface from spec §6.
type Options struct {
	EntryPoints []string
	Outdir      string

	Target Platform
	Format Format

	Splitting bool
	Treeshake bool

	Minify   bool
	Minifier Minifier

	Sourcemap SourceMapMode

	// External literal names and "prefix*" patterns.
	External []string

	Alias        []AliasEntry
	PathMappings []PathMapping

	// Define maps a dotted identifier path to a literal JS replacement
	// (spec §4.3 "Compile-time substitution").
	Define map[string]string

	JSX JSXOptions

	// ResolveExtensions is the extension probe order (spec §4.1 "File probe").
	// When empty, the resolver uses DefaultResolveExtensions(true), the
	// TypeScript-first order, for every project; the JavaScript-only order
	// is not selected automatically.
	ResolveExtensions []string

	Plugins []Plugin

	// Workers bounds the Graph Builder's discovery worker pool (spec §5);
	// zero means "use runtime.NumCPU()".
	Workers int
}

// Plugin is the enumerated hook surface from spec §6, defined here (not in a
// separate internal/plugin package) so config and plugin registration share
// one vocabulary; internal/plugin re-exports these types for callers that
// only want the plugin surface.
type Plugin interface {
	Name() string
	Setup(Build)
}

// Build is what a Plugin's Setup receives to register hooks, and is also
// reused internally as the thing the resolver/graph builder call into.
type Build interface {
	OnResolve(filter string, fn OnResolveFunc)
	OnLoad(filter string, fn OnLoadFunc)
	OnTransform(filter string, fn OnTransformFunc)
	OnStart(fn func() error)
	OnEnd(fn func() error)
}

type OnResolveArgs struct {
	Path       string
	Importer   string
	ResolveDir string
}

type OnResolveResult struct {
	Path       string
	External   bool
	Namespace  string
	PluginData interface{}
}

type OnLoadArgs struct {
	Path      string
	Namespace string
}

type OnLoadResult struct {
	Contents *string
	Loader   string
}

type OnTransformArgs struct {
	Path string
	Code string
}

type OnTransformResult struct {
	Code string
}

type OnResolveFunc func(OnResolveArgs) (OnResolveResult, bool, error)
type OnLoadFunc func(OnLoadArgs) (OnLoadResult, bool, error)
type OnTransformFunc func(OnTransformArgs) (OnTransformResult, error)

func DefaultResolveExtensions(typescript bool) []string {
	if typescript {
		return []string{".tsx", ".ts", ".jsx", ".mjs", ".cjs", ".js", ".json"}
	}
	return []string{".jsx", ".mjs", ".cjs", ".js", ".json"}
}

// ConditionPriority returns the package.json "exports" condition walk order
// for the given platform (spec §4.1 "Exports resolution").
func ConditionPriority(target Platform) []string {
	if target == PlatformBrowser {
		return []string{"browser", "import", "module", "default", "require"}
	}
	return []string{"node", "import", "module", "require", "default"}
}

// DefaultMainFields is the platform-dependent priority order for the
// legacy (non-"exports") package entry point (spec §4.1 "Package probe"
// step 2).
func DefaultMainFields(target Platform) []string {
	if target == PlatformBrowser {
		return []string{"browser", "module", "main"}
	}
	return []string{"main", "module"}
}

// BuiltinExternals lists specifiers that are always external regardless of
// user configuration, per platform (spec §4.1 step 1).
func BuiltinExternals(target Platform) map[string]bool {
	set := map[string]bool{}
	if target == PlatformServer {
		for _, name := range []string{
			"assert", "buffer", "child_process", "cluster", "crypto", "dgram",
			"dns", "events", "fs", "http", "http2", "https", "net", "os",
			"path", "perf_hooks", "process", "querystring", "readline",
			"stream", "string_decoder", "timers", "tls", "tty", "url", "util",
			"v8", "vm", "zlib",
		} {
			set[name] = true
		}
	}
	return set
}
