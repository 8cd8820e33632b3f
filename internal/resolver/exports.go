package resolver

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/ruidosujeira/kona/internal/config"
)

// exportsValue is the generic shape of a parsed "exports" field: a string
// target, an array fallback chain, an object (either subpath keys or
// condition keys), or null. Built from decoded JSON values rather than a
// source-range-preserving parse, since this resolver doesn't need
// diagnostics pointing back into package.json itself.
type exportsValue struct {
	str    string
	isStr  bool
	arr    []exportsValue
	isArr  bool
	obj    map[string]exportsValue
	isObj  bool
	isNull bool
}

func parseExportsValue(raw json.RawMessage) exportsValue {
	var asStr string
	if err := json.Unmarshal(raw, &asStr); err == nil {
		return exportsValue{str: asStr, isStr: true}
	}

	var asArr []json.RawMessage
	if err := json.Unmarshal(raw, &asArr); err == nil {
		out := make([]exportsValue, len(asArr))
		for i, item := range asArr {
			out[i] = parseExportsValue(item)
		}
		return exportsValue{arr: out, isArr: true}
	}

	var asObj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &asObj); err == nil {
		out := make(map[string]exportsValue, len(asObj))
		for k, v := range asObj {
			out[k] = parseExportsValue(v)
		}
		return exportsValue{obj: out, isObj: true}
	}

	return exportsValue{isNull: true}
}

func (v exportsValue) keysStartWithDot() bool {
	for k := range v.obj {
		return strings.HasPrefix(k, ".")
	}
	return false
}

// ResolveExports implements spec §4.1's "Exports resolution" against a raw
// package.json "exports" field for the given requested subpath ("." for the
// package root). It returns the resolved relative target (still to be
// joined onto the package root and passed through the file probe) or false
// if nothing in the exports tree satisfies the requested conditions.
func ResolveExports(raw json.RawMessage, subpath string, conditions map[string]bool) (string, bool) {
	root := parseExportsValue(raw)
	if root.isNull {
		return "", false
	}

	if subpath == "." {
		main := root
		if root.isObj && root.keysStartWithDot() {
			dot, ok := root.obj["."]
			if !ok {
				return "", false
			}
			main = dot
		}
		return resolveTarget(main, "", conditions)
	}

	if !root.isObj || !root.keysStartWithDot() {
		return "", false
	}

	// Literal match first.
	if v, ok := root.obj[subpath]; ok {
		return resolveTarget(v, "", conditions)
	}

	// Pattern keys containing "*", longest prefix (most specific) first.
	type patternKey struct {
		key   string
		value exportsValue
	}
	var patterns []patternKey
	for k, v := range root.obj {
		if strings.Contains(k, "*") || strings.HasSuffix(k, "/") {
			patterns = append(patterns, patternKey{k, v})
		}
	}
	sort.Slice(patterns, func(i, j int) bool {
		return len(patterns[i].key) > len(patterns[j].key)
	})

	for _, p := range patterns {
		if capture, ok := matchExportsPattern(p.key, subpath); ok {
			return resolveTarget(p.value, capture, conditions)
		}
	}

	return "", false
}

// matchExportsPattern matches a subpath key like "./lib/*" or "./lib/"
// (trailing-slash sugar for "./lib/*") against the requested subpath,
// returning the captured wildcard text.
func matchExportsPattern(pattern string, subpath string) (string, bool) {
	if strings.HasSuffix(pattern, "/") && !strings.Contains(pattern, "*") {
		pattern += "*"
	}
	star := strings.IndexByte(pattern, '*')
	if star == -1 {
		return "", false
	}
	prefix, suffix := pattern[:star], pattern[star+1:]
	if !strings.HasPrefix(subpath, prefix) || !strings.HasSuffix(subpath, suffix) {
		return "", false
	}
	if len(subpath) < len(prefix)+len(suffix) {
		return "", false
	}
	return subpath[len(prefix) : len(subpath)-len(suffix)], true
}

// resolveTarget walks a single exports value to a final string target,
// substituting the wildcard capture (if any) and walking condition objects
// in the caller's configured priority order (spec §4.1: "walk the
// configured condition priority list ... and recurse into the first
// matching condition").
func resolveTarget(v exportsValue, capture string, conditions map[string]bool) (string, bool) {
	switch {
	case v.isNull:
		return "", false

	case v.isStr:
		target := v.str
		if capture != "" {
			target = strings.Replace(target, "*", capture, 1)
		}
		return target, true

	case v.isArr:
		for _, item := range v.arr {
			if target, ok := resolveTarget(item, capture, conditions); ok {
				return target, ok
			}
		}
		return "", false

	case v.isObj:
		if v.keysStartWithDot() {
			// A subpath map can't appear as a target; invalid configuration.
			return "", false
		}
		for _, name := range conditionPriorityOrder(conditions) {
			if inner, ok := v.obj[name]; ok {
				if target, ok := resolveTarget(inner, capture, conditions); ok {
					return target, ok
				}
			}
		}
		if inner, ok := v.obj["default"]; ok {
			return resolveTarget(inner, capture, conditions)
		}
		return "", false
	}
	return "", false
}

// conditionPriorityOrder renders the caller's condition set (a map, for O(1)
// membership tests elsewhere) as the ordered walk spec §4.1 requires. The
// set always originates from config.ConditionPriority, and only the
// browser list contains "browser", so that list is returned as is.
func conditionPriorityOrder(conditions map[string]bool) []string {
	target := config.PlatformServer
	if conditions["browser"] {
		target = config.PlatformBrowser
	}
	return config.ConditionPriority(target)
}
