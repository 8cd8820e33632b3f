package scan

import "github.com/ruidosujeira/kona/internal/logger"

// This file holds the statement-shape recognizers dispatched from
// scanner.handleWord in scan.go: the "import", "export", and "require"
// clause grammars from spec §4.2's import/export tables.

func (s *scanner) scanImport(start int) {
	s.skipSpaceAndComments()

	if s.pos < len(s.src) && s.src[s.pos] == '(' {
		// Dynamic import() call (spec §4.2 "Dynamic-import handling").
		s.table.HasDynamicImport = true
		s.pos++
		if spec, ok := s.readStringLiteral(); ok {
			s.skipSpaceAndComments()
			if s.pos < len(s.src) && s.src[s.pos] == ')' {
				s.pos++
			}
			s.table.Imports = append(s.table.Imports, ImportEntry{
				Specifier: spec,
				Kind:      DynamicCall,
				Range:     rangeFrom(start, s.pos),
			})
		}
		// A non-literal argument produces no edge; the call is left for the
		// emitter to pass through verbatim (spec §4.2).
		return
	}

	if s.pos < len(s.src) && s.src[s.pos] == '.' {
		return // import.meta - not a module reference
	}

	typeOnly := false
	if isIdentStart(s.peekByte()) {
		save := s.pos
		word := s.readIdent()
		if word == "type" {
			s.skipSpaceAndComments()
			// "import type X from ..." / "import type { X } from ..." - but
			// "import type from './type'" is legal JS where "type" is the
			// default binding, distinguished by what follows.
			if s.pos < len(s.src) && (s.src[s.pos] == '{' || s.src[s.pos] == '*') {
				typeOnly = true
			} else if isIdentStart(s.peekByte()) && !s.matchesKeyword("from") {
				typeOnly = true
			} else {
				s.pos = save
			}
		} else {
			s.pos = save
		}
	}

	var bindings []ImportBinding

	s.skipSpaceAndComments()
	if isIdentStart(s.peekByte()) && !s.matchesKeyword("from") {
		name := s.readIdent()
		bindings = append(bindings, ImportBinding{Kind: BindingDefault, Local: name, Imported: "default"})
		s.skipSpaceAndComments()
		if s.pos < len(s.src) && s.src[s.pos] == ',' {
			s.pos++
		}
	}

	s.skipSpaceAndComments()
	if s.pos < len(s.src) && s.src[s.pos] == '*' {
		s.pos++
		s.skipSpaceAndComments()
		if s.matchesKeyword("as") {
			s.pos += len("as")
			s.skipSpaceAndComments()
			name := s.readIdent()
			bindings = append(bindings, ImportBinding{Kind: BindingNamespace, Local: name})
		}
	} else if s.pos < len(s.src) && s.src[s.pos] == '{' {
		s.pos++
		for {
			s.skipSpaceAndComments()
			if s.pos >= len(s.src) {
				break
			}
			if s.src[s.pos] == '}' {
				s.pos++
				break
			}
			if s.src[s.pos] == ',' {
				s.pos++
				continue
			}
			if !isIdentStart(s.src[s.pos]) {
				s.pos++
				continue
			}
			imported := s.readIdent()
			if imported == "type" {
				s.skipSpaceAndComments()
				if s.pos < len(s.src) && (s.src[s.pos] == ',' || s.src[s.pos] == '}') {
					// "type" used as the imported name itself, not the
					// per-binding type marker.
					bindings = append(bindings, ImportBinding{Kind: BindingNamed, Local: imported, Imported: imported})
				}
				continue
			}
			local := imported
			s.skipSpaceAndComments()
			if s.matchesKeyword("as") {
				s.pos += len("as")
				s.skipSpaceAndComments()
				local = s.readIdent()
			}
			bindings = append(bindings, ImportBinding{Kind: BindingNamed, Local: local, Imported: imported})
		}
	}

	s.skipSpaceAndComments()
	if s.matchesKeyword("from") {
		s.pos += len("from")
	}
	spec, ok := s.readStringLiteral()
	if !ok {
		return
	}

	kind := StaticFrom
	if len(bindings) == 0 {
		kind = StaticSideEffect
	}
	s.table.Imports = append(s.table.Imports, ImportEntry{
		Specifier: spec,
		Kind:      kind,
		Bindings:  bindings,
		TypeOnly:  typeOnly,
		Range:     rangeFrom(start, s.pos),
	})
}

func (s *scanner) scanExport(start int) {
	keywordRange := rangeFrom(start, start+len("export"))
	s.skipSpaceAndComments()

	if s.matchesKeyword("default") {
		s.pos += len("default")
		defaultRange := rangeFrom(start, s.pos)
		save := s.pos
		s.skipSpaceAndComments()
		localName := ""
		if s.matchesKeyword("function") || s.matchesKeyword("class") {
			s.readIdent() // consume "function" or "class"
			s.skipSpaceAndComments()
			if s.pos < len(s.src) && s.src[s.pos] == '*' {
				s.pos++ // generator function
				s.skipSpaceAndComments()
			}
			if isIdentStart(s.peekByte()) {
				localName = s.readIdent()
			}
		}
		s.pos = save
		s.table.Exports = append(s.table.Exports, ExportEntry{
			Name: "default", HasLocalBinding: true, LocalName: localName, Range: defaultRange,
		})
		return
	}

	typeOnly := false
	if s.matchesKeyword("type") {
		save := s.pos
		s.pos += len("type")
		s.skipSpaceAndComments()
		if s.pos < len(s.src) && s.src[s.pos] == '{' {
			typeOnly = true
		} else {
			s.pos = save
		}
	}

	if s.pos < len(s.src) && s.src[s.pos] == '*' {
		s.pos++
		s.skipSpaceAndComments()
		as := ""
		if s.matchesKeyword("as") {
			s.pos += len("as")
			s.skipSpaceAndComments()
			as = s.readIdent()
			s.skipSpaceAndComments()
		}
		if s.matchesKeyword("from") {
			s.pos += len("from")
		}
		spec, ok := s.readStringLiteral()
		if !ok {
			return
		}
		kind := ReExportAll
		s.table.Imports = append(s.table.Imports, ImportEntry{
			Specifier: spec, Kind: kind, ReExportAllAs: as, Range: rangeFrom(start, s.pos),
		})
		if !typeOnly {
			name := "*"
			if as != "" {
				name = as
			}
			s.table.Exports = append(s.table.Exports, ExportEntry{
				Name: name, IsReExport: true, ReExportFrom: spec, ReExportSourceName: "*",
			})
		}
		return
	}

	if s.pos < len(s.src) && s.src[s.pos] == '{' {
		s.pos++
		type clause struct{ local, exported string }
		var clauses []clause
		for {
			s.skipSpaceAndComments()
			if s.pos >= len(s.src) {
				break
			}
			if s.src[s.pos] == '}' {
				s.pos++
				break
			}
			if s.src[s.pos] == ',' {
				s.pos++
				continue
			}
			if !isIdentStart(s.src[s.pos]) {
				s.pos++
				continue
			}
			local := s.readIdent()
			exported := local
			s.skipSpaceAndComments()
			if s.matchesKeyword("as") {
				s.pos += len("as")
				s.skipSpaceAndComments()
				exported = s.readIdent()
			}
			clauses = append(clauses, clause{local, exported})
		}

		s.skipSpaceAndComments()
		if s.matchesKeyword("from") {
			s.pos += len("from")
			spec, ok := s.readStringLiteral()
			if !ok {
				return
			}
			var sourceNames []ImportBinding
			for _, c := range clauses {
				sourceNames = append(sourceNames, ImportBinding{Kind: BindingNamed, Local: c.local, Imported: c.local})
			}
			s.table.Imports = append(s.table.Imports, ImportEntry{
				Specifier: spec, Kind: ReExport, Bindings: sourceNames, Range: rangeFrom(start, s.pos),
			})
			if !typeOnly {
				for _, c := range clauses {
					s.table.Exports = append(s.table.Exports, ExportEntry{
						Name: c.exported, IsReExport: true, ReExportFrom: spec, ReExportSourceName: c.local,
					})
				}
			}
			return
		}

		if !typeOnly {
			// Unlike "export const/let/var ..." this clause declares
			// nothing itself - it only re-states bindings that already
			// exist elsewhere in the module - so its whole statement (not
			// just the "export" keyword) must be removed when the emitter
			// splices it out; the getters it implies are attached from the
			// Name/LocalName pairs recorded here, not from any surviving
			// source text.
			fullRange := rangeFrom(start, s.pos)
			for _, c := range clauses {
				s.table.Exports = append(s.table.Exports, ExportEntry{
					Name: c.exported, LocalName: c.local, HasLocalBinding: true, Range: fullRange,
				})
			}
		}
		return
	}

	// "export const/let/var/function/class Name ..."
	if isIdentStart(s.peekByte()) {
		keyword := s.readIdent()
		switch keyword {
		case "const", "let", "var":
			s.scanDeclaratorNames(keywordRange)
		case "function", "class":
			s.skipSpaceAndComments()
			if s.matchesKeyword("async") {
				// "export async function foo"
				s.pos += len("async")
				s.skipSpaceAndComments()
				s.readIdent() // consume "function"
				s.skipSpaceAndComments()
			}
			if s.pos < len(s.src) && s.src[s.pos] == '*' {
				s.pos++ // generator function
				s.skipSpaceAndComments()
			}
			if isIdentStart(s.peekByte()) {
				name := s.readIdent()
				s.table.Exports = append(s.table.Exports, ExportEntry{
					Name: name, LocalName: name, HasLocalBinding: true, Range: keywordRange,
				})
			}
		}
	}
}

// scanDeclaratorNames handles "export const a = 1, b = 2" - simple
// identifier declarators only; destructuring patterns ("export const {a,b}
// = obj") are not decomposed into individual export names.
func (s *scanner) scanDeclaratorNames(keywordRange logger.Range) {
	for {
		s.skipSpaceAndComments()
		if s.pos >= len(s.src) {
			return
		}
		if !isIdentStart(s.src[s.pos]) {
			return
		}
		name := s.readIdent()
		s.table.Exports = append(s.table.Exports, ExportEntry{
			Name: name, LocalName: name, HasLocalBinding: true, Range: keywordRange,
		})

		// Skip past this declarator's initializer up to the next top-level
		// comma or statement end, respecting nested brackets/strings so a
		// comma inside an object/array initializer doesn't end the loop
		// early.
		depth := 0
		for s.pos < len(s.src) {
			c := s.src[s.pos]
			if c == '\'' || c == '"' || c == '`' {
				s.skipString(c)
				continue
			}
			if c == '(' || c == '[' || c == '{' {
				depth++
			} else if c == ')' || c == ']' || c == '}' {
				if depth == 0 {
					return
				}
				depth--
			} else if depth == 0 && c == ';' {
				return
			} else if depth == 0 && c == ',' {
				s.pos++
				break
			}
			s.pos++
		}
	}
}

func (s *scanner) scanRequire(start int) {
	s.skipSpaceAndComments()
	if s.pos >= len(s.src) || s.src[s.pos] != '(' {
		return
	}
	s.pos++
	if spec, ok := s.readStringLiteral(); ok {
		s.skipSpaceAndComments()
		if s.pos < len(s.src) && s.src[s.pos] == ')' {
			s.pos++
		}
		s.table.Imports = append(s.table.Imports, ImportEntry{
			Specifier: spec, Kind: RequireCall, Range: rangeFrom(start, s.pos),
		})
	}
}

func (s *scanner) peekByte() byte {
	if s.pos >= len(s.src) {
		return 0
	}
	return s.src[s.pos]
}

// matchesKeyword reports whether the identifier starting at the current
// (already whitespace-skipped) position is exactly word, without consuming
// it.
func (s *scanner) matchesKeyword(word string) bool {
	if s.pos+len(word) > len(s.src) || s.src[s.pos:s.pos+len(word)] != word {
		return false
	}
	end := s.pos + len(word)
	return end >= len(s.src) || !isIdentPart(s.src[end])
}
