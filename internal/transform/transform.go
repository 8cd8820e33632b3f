// Package transform implements the bundler's Transformer component (spec
// §4.3): TypeScript/JSX syntax erasure plus compile-time `define`
// substitution, run independently per module ahead of graph assembly.
//
// Transform is a pure function of its inputs - the same source and Options
// always produce the same output - so, like internal/scan, it never consults
// a shared cache itself; internal/cache.TransformCache is keyed by exactly
// (content hash, options hash) so callers can memoize it externally.
//
// Define substitution works off a plain dotted-identifier to
// replacement-expression map, consulted while printing. This package does
// not build a full AST; like internal/scan it works directly off source
// text, which is sufficient because erasure and substitution are both
// syntactic rewrites, not type-directed ones.
package transform

import (
	"strings"

	"github.com/ruidosujeira/kona/internal/bundlerror"
	"github.com/ruidosujeira/kona/internal/config"
)

// Options configures one Transform call. TypeScript and JSX are independent
// switches because a .tsx file needs both and a .jsx file needs only JSX.
type Options struct {
	TypeScript bool
	JSX        bool
	JSXOptions config.JSXOptions
	Define     map[string]string
}

// Result is spec §4.3's ParseOutput-adjacent transform output: rewritten
// code plus flags describing what was actually erased, so callers (the
// Graph Builder) can assert "no TypeScript syntax, no JSX tokens remain" per
// spec §8 scenario 2.
type Result struct {
	Code        string
	ErasedTS    bool
	LoweredJSX  bool
	Substituted int // count of define substitutions applied, for diagnostics
}

// Transform runs TypeScript erasure, JSX lowering, and define substitution
// over source, in that order. Each stage is a best-effort syntactic rewrite:
// a stage that finds nothing to do for its switch returns its input
// unchanged.
func Transform(source string, filenameHint string, opts Options) (Result, error) {
	code := source
	result := Result{}

	if opts.TypeScript {
		erased, changed, err := eraseTypeScript(code)
		if err != nil {
			return Result{}, &bundlerror.TransformFailure{Path: filenameHint, Cause: err}
		}
		code = erased
		result.ErasedTS = changed
	}

	if opts.JSX {
		lowered, changed, err := lowerJSX(code, opts.JSXOptions)
		if err != nil {
			return Result{}, &bundlerror.TransformFailure{Path: filenameHint, Cause: err}
		}
		code = lowered
		result.LoweredJSX = changed
	}

	if len(opts.Define) > 0 {
		substituted, count := applyDefines(code, opts.Define)
		code = substituted
		result.Substituted = count
	}

	result.Code = code
	return result, nil
}

// applyDefines walks code token by token, replacing any run of
// dot-separated identifiers that exactly matches a define key with its
// configured literal, as long as the match sits on an identifier boundary
// (spec §4.3: "matches are identifier-boundary only, never inside a string,
// template literal, or comment, and never on the left-hand side of an
// assignment"). Longest-key-first so "a.b.c" takes priority over "a.b" when
// both are configured.
func applyDefines(code string, defines map[string]string) (string, int) {
	if len(defines) == 0 {
		return code, 0
	}

	var keys []string
	for k := range defines {
		keys = append(keys, k)
	}
	sortByLengthDesc(keys)

	var out strings.Builder
	out.Grow(len(code))
	count := 0

	i := 0
	for i < len(code) {
		c := code[i]

		switch {
		case c == '\'' || c == '"' || c == '`':
			j := skipStringLiteral(code, i)
			out.WriteString(code[i:j])
			i = j

		case c == '/' && i+1 < len(code) && code[i+1] == '/':
			j := i
			for j < len(code) && code[j] != '\n' {
				j++
			}
			out.WriteString(code[i:j])
			i = j

		case c == '/' && i+1 < len(code) && code[i+1] == '*':
			j := i + 2
			for j+1 < len(code) && !(code[j] == '*' && code[j+1] == '/') {
				j++
			}
			j += 2
			if j > len(code) {
				j = len(code)
			}
			out.WriteString(code[i:j])
			i = j

		case isIdentStartByte(c) && !precededByDot(code, i):
			matched := false
			for _, key := range keys {
				if matchesDottedPath(code, i, key) {
					end := i + len(key)
					if !followedByAssignment(code, end) {
						out.WriteString(defines[key])
						count++
						i = end
						matched = true
						break
					}
				}
			}
			if !matched {
				j := i
				for j < len(code) && (isIdentPartByte(code[j]) || code[j] == '.') {
					j++
				}
				if j == i {
					j = i + 1
				}
				out.WriteString(code[i:j])
				i = j
			}

		default:
			out.WriteByte(c)
			i++
		}
	}

	return out.String(), count
}

// matchesDottedPath reports whether code[pos:] begins with the dotted
// identifier path key, followed by a non-identifier, non-dot byte (so "abc"
// doesn't match a define for "ab", and "a.bc" doesn't match a define for
// "a.b").
func matchesDottedPath(code string, pos int, key string) bool {
	if pos+len(key) > len(code) || code[pos:pos+len(key)] != key {
		return false
	}
	end := pos + len(key)
	if end < len(code) && (isIdentPartByte(code[end]) || code[end] == '.') {
		return false
	}
	return true
}

func precededByDot(code string, pos int) bool {
	return pos > 0 && code[pos-1] == '.'
}

// followedByAssignment is a heuristic guard against rewriting the left-hand
// side of an assignment (spec §4.3's carve-out); it does not attempt to
// distinguish an assignment target from a comparison, relying on the
// surrounding "=" not being "==", "===", "<=", ">=", or "=>".
func followedByAssignment(code string, pos int) bool {
	j := pos
	for j < len(code) && (code[j] == ' ' || code[j] == '\t') {
		j++
	}
	if j >= len(code) || code[j] != '=' {
		return false
	}
	if j+1 < len(code) && (code[j+1] == '=' || code[j+1] == '>') {
		return false
	}
	return true
}

func sortByLengthDesc(keys []string) {
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && len(keys[j-1]) < len(keys[j]); j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
}

func isIdentStartByte(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPartByte(c byte) bool {
	return isIdentStartByte(c) || (c >= '0' && c <= '9')
}

// skipStringLiteral returns the index just past the string/template literal
// starting at i, honoring backslash escapes and (for template literals)
// balanced ${...} substitutions which may themselves contain nested strings.
func skipStringLiteral(code string, i int) int {
	quote := code[i]
	i++
	for i < len(code) {
		c := code[i]
		if c == '\\' {
			i += 2
			continue
		}
		if c == quote {
			return i + 1
		}
		if quote == '`' && c == '$' && i+1 < len(code) && code[i+1] == '{' {
			i += 2
			depth := 1
			for i < len(code) && depth > 0 {
				switch code[i] {
				case '{':
					depth++
				case '}':
					depth--
				case '\'', '"', '`':
					i = skipStringLiteral(code, i)
					continue
				}
				i++
			}
			continue
		}
		i++
	}
	return i
}
