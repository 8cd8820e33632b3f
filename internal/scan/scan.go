// Package scan implements the bundler's Parser component (spec §4.2): a
// scanner that extracts the import/export tables directly from source text
// without building a full AST, per spec.md's performance note ("a full
// parser remains acceptable" but is not required because only the
// statement-level shape matters downstream). The scanner classifies tokens
// and recognizes statement shapes (import/export/require clauses) in one
// pass that emits tables directly instead of parse-tree nodes.
package scan

import (
	"strings"

	"github.com/ruidosujeira/kona/internal/bundlerror"
	"github.com/ruidosujeira/kona/internal/logger"
)

type ImportKind uint8

const (
	StaticFrom ImportKind = iota
	StaticSideEffect
	DynamicCall
	RequireCall
	ReExport
	ReExportAll
)

// ImportBindingKind distinguishes the three shapes a binding introduced by
// an import clause can take, which the emitter needs to know to generate
// the right runtime interop call: a default import needs
// runtime.ImportDefaultCall, a namespace import needs
// runtime.ImportNamespaceCall, and a named import is a plain property read.
type ImportBindingKind uint8

const (
	BindingNamed ImportBindingKind = iota
	BindingDefault
	BindingNamespace
)

// ImportBinding is one local name introduced by an import clause. Imported
// is the name on the other side of the module boundary ("default" for
// BindingDefault, unused for BindingNamespace, otherwise the exported
// name); Local is the identifier this module's own code actually
// references, which differs from Imported only under an "as" rename.
type ImportBinding struct {
	Kind     ImportBindingKind
	Local    string
	Imported string
}

type ImportEntry struct {
	Specifier string
	Kind      ImportKind
	Bindings  []ImportBinding
	TypeOnly  bool
	Range     logger.Range

	// ReExportAllAs is set for "export * as ns from 'S'".
	ReExportAllAs string
}

type ExportEntry struct {
	Name string // "default" for a default export

	IsReExport         bool
	ReExportFrom       string
	ReExportSourceName string

	// HasLocalBinding entries name a binding that lives in this module's own
	// scope. LocalName is that binding's identifier when it differs from
	// Name (an "as" rename, or a default export of a named function/class);
	// it is empty for a default export of a bare expression, which has no
	// local identifier until the emitter synthesizes one.
	HasLocalBinding bool
	LocalName       string
	TypeOnly        bool

	// Range covers just the "export" (or "export default") keyword text for
	// HasLocalBinding entries, so the emitter can delete exactly that prefix
	// and leave the rest of the declaration statement untouched. Entries
	// sharing one "export const a = 1, b = 2" statement share the same
	// Range; the emitter dedups before splicing. Re-export entries have no
	// Range here - the emitter instead splices the matching ImportEntry's
	// Range, since the whole "export {a} from 'x'" statement is replaced.
	Range logger.Range
}

// Table is spec §4.2's ParseOutput, minus the syntax-error diagnostics
// (those are returned as part of Scan's error, not carried on the table).
type Table struct {
	Imports []ImportEntry
	Exports []ExportEntry

	HasJSX            bool
	HasTypeScript     bool
	HasDynamicImport  bool
	HasTopLevelAwait  bool
}

// Scan runs the single-pass scanner. filenameHint seeds the TypeScript/JSX
// presumption from the file extension (.ts/.tsx/.jsx), which the scanner
// then confirms/extends with lightweight syntax heuristics in the body.
func Scan(source logger.Source, filenameHint string) (*Table, error) {
	s := &scanner{
		src:    source.Contents,
		source: source,
	}
	s.table.HasTypeScript = strings.HasSuffix(filenameHint, ".ts") || strings.HasSuffix(filenameHint, ".tsx")
	s.table.HasJSX = strings.HasSuffix(filenameHint, ".jsx") || strings.HasSuffix(filenameHint, ".tsx")

	if err := s.run(); err != nil {
		return nil, &bundlerror.ParseSyntaxError{Path: filenameHint, Pos: s.pos, Msg: err.Error()}
	}
	return &s.table, nil
}

type scopeKind uint8

const (
	scopeModule scopeKind = iota
	scopeFunction
)

type scanner struct {
	src    string
	source logger.Source
	pos    int
	table  Table

	// bracketStack tracks '{' nesting together with whether that brace
	// introduced a function body, so "await" can be classified as
	// top-level or not (spec §4.2 "a precise scope walk is required").
	// Known limitation: expression-bodied arrow functions without a brace
	// body (`() => await x`) are not tracked as a function scope.
	bracketStack []scopeKind

	pendingFunctionScope bool
}

func (s *scanner) currentScope() scopeKind {
	if len(s.bracketStack) == 0 {
		return scopeModule
	}
	return s.bracketStack[len(s.bracketStack)-1]
}

func (s *scanner) run() error {
	for {
		s.skipSpaceAndComments()
		if s.pos >= len(s.src) {
			return nil
		}

		start := s.pos
		c := s.src[s.pos]

		switch {
		case c == '\'' || c == '"' || c == '`':
			s.skipString(c)

		case c == '{':
			scope := scopeModule
			if s.pendingFunctionScope {
				scope = scopeFunction
				s.pendingFunctionScope = false
			}
			s.bracketStack = append(s.bracketStack, scope)
			s.pos++

		case c == '}':
			if len(s.bracketStack) > 0 {
				s.bracketStack = s.bracketStack[:len(s.bracketStack)-1]
			}
			s.pos++

		case isIdentStart(c):
			word := s.readIdent()
			s.handleWord(word, start)

		default:
			if strings.HasPrefix(s.src[s.pos:], "=>") {
				// Arrow function: the body (brace or expression) is a new
				// function scope. We only track the brace-bodied case
				// precisely (see bracketStack comment above).
				s.pendingFunctionScope = true
				s.pos += 2
			} else {
				s.pos++
			}
		}
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func (s *scanner) readIdent() string {
	start := s.pos
	for s.pos < len(s.src) && isIdentPart(s.src[s.pos]) {
		s.pos++
	}
	return s.src[start:s.pos]
}

func (s *scanner) skipSpaceAndComments() {
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			s.pos++
		case c == '/' && s.pos+1 < len(s.src) && s.src[s.pos+1] == '/':
			for s.pos < len(s.src) && s.src[s.pos] != '\n' {
				s.pos++
			}
		case c == '/' && s.pos+1 < len(s.src) && s.src[s.pos+1] == '*':
			s.pos += 2
			for s.pos+1 < len(s.src) && !(s.src[s.pos] == '*' && s.src[s.pos+1] == '/') {
				s.pos++
			}
			s.pos += 2
			if s.pos > len(s.src) {
				s.pos = len(s.src)
			}
		default:
			return
		}
	}
}

func (s *scanner) skipString(quote byte) {
	s.pos++ // opening quote
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		if c == '\\' {
			s.pos += 2
			continue
		}
		if c == quote {
			s.pos++
			return
		}
		if quote == '`' && c == '$' && s.pos+1 < len(s.src) && s.src[s.pos+1] == '{' {
			// Template literal substitution: skip balanced braces, which may
			// themselves contain strings.
			s.pos += 2
			depth := 1
			for s.pos < len(s.src) && depth > 0 {
				switch s.src[s.pos] {
				case '{':
					depth++
				case '}':
					depth--
				case '\'', '"', '`':
					s.skipString(s.src[s.pos])
					continue
				}
				s.pos++
			}
			continue
		}
		s.pos++
	}
}

// readStringLiteral reads a quoted string starting at the current position
// (after skipping whitespace) and returns its decoded-enough contents. Used
// for specifiers, which never contain escapes that matter for resolution.
func (s *scanner) readStringLiteral() (string, bool) {
	s.skipSpaceAndComments()
	if s.pos >= len(s.src) {
		return "", false
	}
	quote := s.src[s.pos]
	if quote != '\'' && quote != '"' {
		return "", false
	}
	start := s.pos
	s.skipString(quote)
	raw := s.src[start:s.pos]
	if len(raw) < 2 {
		return "", false
	}
	return raw[1 : len(raw)-1], true
}

func (s *scanner) handleWord(word string, start int) {
	switch word {
	case "function":
		s.pendingFunctionScope = true

	case "async":
		// "async function" keeps the pending-function-scope behavior;
		// "async () => " is handled by the "=>" branch in run().

	case "await":
		if s.currentScope() == scopeModule {
			s.table.HasTopLevelAwait = true
		}

	case "import":
		s.scanImport(start)

	case "export":
		s.scanExport(start)

	case "require":
		s.scanRequire(start)
	}

	// Lightweight TypeScript-only syntax heuristics, only needed when the
	// extension didn't already tell us.
	if !s.table.HasTypeScript {
		switch word {
		case "interface", "enum", "namespace", "declare", "implements":
			s.table.HasTypeScript = true
		case "as":
			// "expr as Type" - a strong TS signal when not part of an import/export clause.
			s.table.HasTypeScript = true
		}
	}
}

func rangeFrom(start, end int) logger.Range {
	return logger.Range{Loc: logger.Loc{Start: int32(start)}, Len: int32(end - start)}
}
