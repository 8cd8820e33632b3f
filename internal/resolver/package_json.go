package resolver

import (
	"encoding/json"
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
)

// PackageJSON is the parsed subset of a package.json the resolver and tree
// shaker care about (spec §3 "Package descriptor"). Plain encoding/json
// suffices here because diagnostics only need to point into the JS/TS
// source that imported the package, never at a byte offset inside
// package.json itself; see DESIGN.md for the full justification.
type PackageJSON struct {
	AbsPath string
	Name    string          `json:"name"`
	Version string          `json:"version"`
	Main    string          `json:"main"`
	Module  string          `json:"module"`
	Browser json.RawMessage `json:"browser"`

	Exports     json.RawMessage `json:"exports"`
	SideEffects json.RawMessage `json:"sideEffects"`
}

func (pkg *PackageJSON) Field(name string) (string, bool) {
	switch name {
	case "main":
		return pkg.Main, pkg.Main != ""
	case "module":
		return pkg.Module, pkg.Module != ""
	case "browser":
		var s string
		if err := json.Unmarshal(pkg.Browser, &s); err == nil && s != "" {
			return s, true
		}
		return "", false
	}
	return "", false
}

func (r *Resolver) readPackageJSON(pkgDir string) (*PackageJSON, error) {
	path := r.fs.Join(pkgDir, "package.json")

	r.pkgMutex.Lock()
	if cached, ok := r.pkgCache[path]; ok {
		r.pkgMutex.Unlock()
		return cached, nil
	}
	r.pkgMutex.Unlock()

	contents, err := r.fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var pkg PackageJSON
	if err := json.Unmarshal([]byte(contents), &pkg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	pkg.AbsPath = path

	r.pkgMutex.Lock()
	r.pkgCache[path] = &pkg
	r.pkgMutex.Unlock()
	return &pkg, nil
}

// HasSideEffects implements spec §4.5's "Side-effect determination": true
// unless the package's "sideEffects" field rules the module out (literal
// false, or a glob list that doesn't match), matched with doublestar so
// "**/*.css"-style globs behave the way every bundler's users expect.
func (pkg *PackageJSON) HasSideEffects(moduleRelPath string) bool {
	if len(pkg.SideEffects) == 0 {
		return true
	}

	var asBool bool
	if err := json.Unmarshal(pkg.SideEffects, &asBool); err == nil {
		return asBool
	}

	var globs []string
	if err := json.Unmarshal(pkg.SideEffects, &globs); err == nil {
		for _, g := range globs {
			pattern := g
			if !doublestar.ValidatePattern(pattern) {
				continue
			}
			if ok, _ := doublestar.Match(pattern, moduleRelPath); ok {
				return true
			}
			// doublestar requires "**/" to cross directory boundaries; a bare
			// "*.css"-style glob from package.json is conventionally meant to
			// match at any depth, so retry with that prefix once.
			if ok, _ := doublestar.Match("**/"+pattern, moduleRelPath); ok {
				return true
			}
		}
		return false
	}

	return true
}
