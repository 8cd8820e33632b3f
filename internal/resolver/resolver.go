// Package resolver implements Node-style module resolution with package
// "exports" conditions (spec §4.1): externals, alias/path-mapping,
// relative/absolute paths, and the bare-specifier node_modules walk, each
// backed by a directory-entry and package.json cache for repeated lookups.
package resolver

import (
	"fmt"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/ruidosujeira/kona/internal/bundlerror"
	"github.com/ruidosujeira/kona/internal/config"
	"github.com/ruidosujeira/kona/internal/fs"
	"github.com/ruidosujeira/kona/internal/logger"
	"github.com/ruidosujeira/kona/internal/plugin"
)

// ResultKind distinguishes an on-disk file from an external reference, the
// two non-error outcomes of Resolve.
type ResultKind uint8

const (
	ResultFile ResultKind = iota
	ResultExternal
)

type Resolved struct {
	Kind ResultKind

	// Valid when Kind == ResultFile.
	AbsPath string
	Pkg     *PackageJSON // the owning package, if any

	// Valid when Kind == ResultExternal.
	ExternalSpecifier string
}

// NotFoundError and AmbiguousError are aliases onto the shared tagged error
// hierarchy (internal/bundlerror), kept under these names so existing
// callers that type-assert *NotFoundError/*AmbiguousError don't need to
// change - a type alias is the same type, not a copy.
type NotFoundError = bundlerror.ResolutionNotFound
type AmbiguousError = bundlerror.ResolutionAmbiguous

type cacheKey struct {
	dir        string
	specifier  string
}

// Resolver owns the resolution cache and the package-descriptor cache for
// the whole build (spec §3 "Ownership"). Resolve is not confined to one
// thread: internal/graph's parallel discovery workers call it directly, and
// resolveMutex and pkgMutex serialize every read and write of the two caches.
type Resolver struct {
	fs  fs.FS
	log logger.Log

	opts config.Options

	conditions map[string]bool

	resolveMutex sync.Mutex
	resolveCache map[cacheKey]Resolved
	resolveErr   map[cacheKey]error

	pkgMutex sync.Mutex
	pkgCache map[string]*PackageJSON

	builtins map[string]bool

	// Plugins, when set by the driver (internal/bundler), gets first look
	// at every specifier: its first non-null onResolve result wins outright
	// (spec §6), and only an unhandled specifier falls through to the
	// built-in five-step algorithm below.
	Plugins *plugin.Registry
}

func New(fsys fs.FS, log logger.Log, opts config.Options) *Resolver {
	conditions := map[string]bool{}
	for _, c := range config.ConditionPriority(opts.Target) {
		conditions[c] = true
	}
	return &Resolver{
		fs:           fsys,
		log:          log,
		opts:         opts,
		conditions:   conditions,
		resolveCache: make(map[cacheKey]Resolved),
		resolveErr:   make(map[cacheKey]error),
		pkgCache:     make(map[string]*PackageJSON),
		builtins:     config.BuiltinExternals(opts.Target),
	}
}

// InvalidatePackageJSON drops a cached package descriptor. Nothing in this
// repository calls it: internal/devserver rebuilds on watcher events without
// dropping any cached descriptor.
func (r *Resolver) InvalidatePackageJSON(absPath string) {
	r.pkgMutex.Lock()
	delete(r.pkgCache, absPath)
	r.pkgMutex.Unlock()
}

// InvalidateDir clears every cached resolution rooted at dir. Nothing in this
// repository calls it: internal/devserver rebuilds on watcher events without
// clearing cached resolutions.
func (r *Resolver) InvalidateDir(dir string) {
	r.resolveMutex.Lock()
	defer r.resolveMutex.Unlock()
	for k := range r.resolveCache {
		if k.dir == dir {
			delete(r.resolveCache, k)
			delete(r.resolveErr, k)
		}
	}
}

// Resolve maps (specifier, importing file) to an absolute path or External,
// per spec §4.1's five-step algorithm. importingFile may be empty for entry
// points, in which case resolution starts from the resolver's cwd.
func (r *Resolver) Resolve(specifier string, importingFile string) (Resolved, error) {
	dir := r.fs.Cwd()
	if importingFile != "" {
		dir = r.fs.Dir(importingFile)
	}

	if r.Plugins != nil {
		result, handled, err := r.Plugins.Resolve(plugin.OnResolveArgs{
			Path: specifier, Importer: importingFile, ResolveDir: dir,
		})
		if err != nil {
			return Resolved{}, err
		}
		if handled {
			if result.External {
				return Resolved{Kind: ResultExternal, ExternalSpecifier: result.Path}, nil
			}
			return Resolved{Kind: ResultFile, AbsPath: result.Path}, nil
		}
	}

	return r.resolveFrom(specifier, dir, 0)
}

const maxAliasRestarts = 10

func (r *Resolver) resolveFrom(specifier string, dir string, restarts int) (Resolved, error) {
	key := cacheKey{dir: dir, specifier: specifier}
	r.resolveMutex.Lock()
	if cached, ok := r.resolveCache[key]; ok {
		r.resolveMutex.Unlock()
		return cached, nil
	}
	if err, ok := r.resolveErr[key]; ok {
		r.resolveMutex.Unlock()
		return Resolved{}, err
	}
	r.resolveMutex.Unlock()

	result, err := r.resolveUncached(specifier, dir, restarts)

	r.resolveMutex.Lock()
	if err != nil {
		r.resolveErr[key] = err
	} else {
		r.resolveCache[key] = result
	}
	r.resolveMutex.Unlock()
	return result, err
}

func (r *Resolver) resolveUncached(specifier string, dir string, restarts int) (Resolved, error) {
	// Step 1: externals.
	if r.isExternal(specifier) {
		return Resolved{Kind: ResultExternal, ExternalSpecifier: specifier}, nil
	}

	// Step 2: alias.
	if restarts < maxAliasRestarts {
		if substituted, ok := applyAlias(r.opts.Alias, specifier); ok {
			return r.resolveFrom(substituted, dir, restarts+1)
		}
	}

	// Step 3: path mapping (tsconfig-style).
	if len(r.opts.PathMappings) > 0 {
		if targets, ok := matchPathMapping(r.opts.PathMappings, specifier); ok {
			for _, target := range targets {
				candidate := target
				if !r.fs.IsAbs(candidate) {
					candidate = r.fs.Join(dir, candidate)
				}
				if resolved, err := r.fileProbe(candidate); err == nil {
					return resolved, nil
				}
			}
		}
	}

	// Step 4: relative / absolute.
	if strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../") || strings.HasPrefix(specifier, "/") {
		candidate := specifier
		if !r.fs.IsAbs(candidate) {
			candidate = r.fs.Join(dir, candidate)
		}
		return r.fileProbe(candidate)
	}

	// Step 5: bare specifier - walk node_modules upward.
	return r.resolveBare(specifier, dir)
}

func (r *Resolver) isExternal(specifier string) bool {
	if strings.HasPrefix(specifier, "node:") {
		return true
	}
	firstSegment := specifier
	if slash := strings.IndexByte(specifier, '/'); slash != -1 && !strings.HasPrefix(specifier, "@") {
		firstSegment = specifier[:slash]
	}
	if r.builtins[firstSegment] || r.builtins[specifier] {
		return true
	}
	for _, pattern := range r.opts.External {
		if pattern == specifier {
			return true
		}
		if strings.HasSuffix(pattern, "*") {
			if ok, _ := doublestar.Match(pattern, specifier); ok {
				return true
			}
		}
	}
	return false
}

func applyAlias(aliases []config.AliasEntry, specifier string) (string, bool) {
	for _, a := range aliases {
		if specifier == a.From {
			return a.To, true
		}
		if strings.HasPrefix(specifier, a.From+"/") {
			return a.To + specifier[len(a.From):], true
		}
	}
	return "", false
}

// matchPathMapping matches a tsconfig-style "*" pattern (capturing one or
// more segments) against specifier, returning the targets with the capture
// substituted in (spec §4.1 step 3).
func matchPathMapping(mappings []config.PathMapping, specifier string) ([]string, bool) {
	for _, m := range mappings {
		star := strings.IndexByte(m.Pattern, '*')
		if star == -1 {
			if m.Pattern == specifier {
				return m.Targets, true
			}
			continue
		}
		prefix, suffix := m.Pattern[:star], m.Pattern[star+1:]
		if strings.HasPrefix(specifier, prefix) && strings.HasSuffix(specifier, suffix) &&
			len(specifier) >= len(prefix)+len(suffix) {
			capture := specifier[len(prefix) : len(specifier)-len(suffix)]
			if capture == "" {
				continue
			}
			targets := make([]string, len(m.Targets))
			for i, t := range m.Targets {
				targets[i] = strings.Replace(t, "*", capture, 1)
			}
			return targets, true
		}
	}
	return nil, false
}

// resolveBare walks upward from dir looking for node_modules/<pkg> at each
// level (spec §4.1 step 5). The walk stops at the filesystem root so a
// symlink cycle (spec §7 Graph.CyclicPackage) cannot loop forever; we bound
// it additionally by a hard iteration count as a defense in depth for
// pathological symlink graphs that never shrink.
func (r *Resolver) resolveBare(specifier string, dir string) (Resolved, error) {
	pkgName, subpath := splitBareSpecifier(specifier)

	const maxWalkSteps = 10000
	seen := dir
	visited := map[string]bool{seen: true}
	for i := 0; i < maxWalkSteps; i++ {
		candidate := r.fs.Join(seen, "node_modules", pkgName)
		if entries, err := r.fs.ReadDirectory(r.fs.Join(seen, "node_modules")); err == nil {
			if _, diff := entries.Get(pkgName); diff != nil {
				// Present under a different case: still usable on
				// case-insensitive filesystems, but report it so a future
				// cross-OS build doesn't silently succeed where it wouldn't.
				r.log.AddRangeWarning(nil, logger.Range{}, fmt.Sprintf(
					"%q resolved to %q with different case under %s", pkgName, diff.Actual, seen))
			}
			if resolved, err := r.packageProbe(candidate, subpath); err == nil {
				return resolved, nil
			}
		}
		parent := r.fs.Dir(seen)
		if parent == seen {
			break
		}
		if visited[parent] {
			// A symlinked node_modules can make Dir() walk back into a
			// directory already visited; the bounded iteration count above
			// is defense in depth for the general case, but a revisit is a
			// genuine cycle, not just a deep tree, and gets its own Kind.
			return Resolved{}, &bundlerror.GraphCyclicPackage{Specifier: specifier, Dir: parent}
		}
		visited[parent] = true
		seen = parent
	}
	return Resolved{}, &NotFoundError{Specifier: specifier, Importer: dir}
}

func splitBareSpecifier(specifier string) (pkgName string, subpath string) {
	if strings.HasPrefix(specifier, "@") {
		if slash := strings.IndexByte(specifier, '/'); slash != -1 {
			if slash2 := strings.IndexByte(specifier[slash+1:], '/'); slash2 != -1 {
				return specifier[:slash+1+slash2], "." + specifier[slash+1+slash2:]
			}
			return specifier, "."
		}
		return specifier, "."
	}
	if slash := strings.IndexByte(specifier, '/'); slash != -1 {
		return specifier[:slash], "." + specifier[slash:]
	}
	return specifier, "."
}

// fileProbe implements spec §4.1's "File probe": exact file, then each
// configured extension, then index+ext inside a directory, then delegate to
// packageProbe if the directory has a package.json.
func (r *Resolver) fileProbe(candidate string) (Resolved, error) {
	if r.isRegularFile(candidate) {
		return Resolved{Kind: ResultFile, AbsPath: candidate}, nil
	}

	exts := r.extensions()
	for _, ext := range exts {
		withExt := candidate + ext
		if r.isRegularFile(withExt) {
			return Resolved{Kind: ResultFile, AbsPath: withExt}, nil
		}
	}

	if r.isDirectory(candidate) {
		for _, ext := range exts {
			indexPath := r.fs.Join(candidate, "index"+ext)
			if r.isRegularFile(indexPath) {
				return Resolved{Kind: ResultFile, AbsPath: indexPath}, nil
			}
		}
		if r.hasPackageJSON(candidate) {
			return r.packageProbe(candidate, ".")
		}
	}

	return Resolved{}, &NotFoundError{Specifier: candidate}
}

func (r *Resolver) extensions() []string {
	if len(r.opts.ResolveExtensions) > 0 {
		return r.opts.ResolveExtensions
	}
	return config.DefaultResolveExtensions(true)
}

func (r *Resolver) isRegularFile(path string) bool {
	dir, base := r.fs.Dir(path), r.fs.Base(path)
	entries, err := r.fs.ReadDirectory(dir)
	if err != nil {
		return false
	}
	entry, _ := entries.Get(base)
	return entry != nil && entry.Kind(r.fs) == fs.FileEntry
}

func (r *Resolver) isDirectory(path string) bool {
	dir, base := r.fs.Dir(path), r.fs.Base(path)
	entries, err := r.fs.ReadDirectory(dir)
	if err != nil {
		return false
	}
	entry, _ := entries.Get(base)
	return entry != nil && entry.Kind(r.fs) == fs.DirEntry
}

func (r *Resolver) hasPackageJSON(dir string) bool {
	return r.isRegularFile(r.fs.Join(dir, "package.json"))
}

// packageProbe implements spec §4.1's "Package probe" priority: "exports"
// is authoritative if present, otherwise browser/module/main, then
// index.<ext>, with the result passed back through the file probe for
// extension/index completion.
func (r *Resolver) packageProbe(pkgDir string, subpath string) (Resolved, error) {
	pkg, err := r.readPackageJSON(pkgDir)
	if err != nil {
		return Resolved{}, err
	}

	if pkg.Exports != nil {
		target, ok := ResolveExports(pkg.Exports, subpath, r.conditions)
		if !ok {
			return Resolved{}, &AmbiguousError{Specifier: subpath, PackageJSON: r.fs.Join(pkgDir, "package.json")}
		}
		full := r.fs.Join(pkgDir, target)
		resolved, err := r.fileProbe(full)
		if err == nil {
			resolved.Pkg = pkg
		}
		return resolved, err
	}

	if subpath != "." {
		// No "exports" map: legacy packages only ever resolve their root entry
		// point through main-field priority; deep imports go straight to the
		// file probe against the literal subpath.
		full := r.fs.Join(pkgDir, subpath)
		return r.fileProbe(full)
	}

	for _, field := range config.DefaultMainFields(r.opts.Target) {
		if entry, ok := pkg.Field(field); ok && entry != "" {
			full := r.fs.Join(pkgDir, entry)
			if resolved, err := r.fileProbe(full); err == nil {
				resolved.Pkg = pkg
				return resolved, nil
			}
		}
	}

	// Fall back to index.<ext> inside the package directory.
	resolved, err := r.fileProbe(r.fs.Join(pkgDir, "index"))
	if err == nil {
		resolved.Pkg = pkg
	}
	return resolved, err
}
