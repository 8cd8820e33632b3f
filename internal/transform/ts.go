package transform

import "strings"

// eraseTypeScript strips the TypeScript-only syntax forms spec §4.3 lists as
// in scope for erasure: interface declarations, type aliases, ambient
// "declare" statements, "import type"/"export type" clauses, "as" casts,
// non-null assertions, and the type annotations on parameters, variable
// declarators, and function return positions. It is a syntactic pass, not a
// type checker: it never validates that the erased annotations are
// well-formed TypeScript, only that they are shaped like annotations.
//
// Generic type arguments on call/declaration expressions ("foo<T>()",
// "function foo<T>()") are stripped by skipGenericParamList only when the
// bracket-balanced "<...>" closes on "(" or "{" or a following
// extends/implements keyword - "<"/">" are otherwise left untouched since
// they're ambiguous with comparison operators in plain expression position.
// skipToTopLevelSemicolon tracks bracket depth across "{"/"["/"(" so a type
// alias's own nested object-type member doesn't end erasure at its internal
// ";" early. skipTypeAnnotationColon consumes one balanced object-type
// literal directly after the colon before resuming its boundary scan, so a
// colon-annotated return position ("): { x: number } {") only loses its
// type and not the function body brace that follows it.
//
// A bracket-kind stack (parenKind tracks only "(" vs "{" vs "[") and a
// declarator-pending flag are threaded through the scan so a ": Type"
// erasure is only attempted where a type annotation can actually appear -
// directly inside a "(...)" parameter list, or on the name right after
// const/let/var - and never on an object-literal property key, which is
// lexically identical ("ident:") but must never be touched.
func eraseTypeScript(code string) (string, bool, error) {
	var out strings.Builder
	out.Grow(len(code))
	changed := false

	var brackets []byte
	declaratorPending := false
	topBracket := func() byte {
		if len(brackets) == 0 {
			return 0
		}
		return brackets[len(brackets)-1]
	}

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

		case c == '(' || c == '[' || c == '{':
			brackets = append(brackets, c)
			out.WriteByte(c)
			i++
			// A destructuring pattern ("const { a } = ..." / "const [a] =
			// ...") right after const/let/var is not a plain declarator
			// name; don't treat whatever identifier comes next as one.
			declaratorPending = false

		case isIdentStartByte(c):
			word, end := readWord(code, i)
			switch word {
			case "interface":
				j := skipBlockStatement(code, end)
				i = j
				changed = true
				continue

			case "declare":
				j := skipToTopLevelSemicolonOrBrace(code, end)
				i = j
				changed = true
				continue

			case "type":
				if looksLikeTypeAliasHeader(code, end) {
					j := skipToTopLevelSemicolon(code, end)
					i = j
					changed = true
					continue
				}
				out.WriteString(word)
				i = end

			case "import", "export":
				if consumedTypeOnlyClause(code, i, end, &out) {
					j := skipToTopLevelSemicolon(code, end)
					i = j
					changed = true
					continue
				}
				out.WriteString(word)
				i = end
				// A "{ a, b as c }" named-binding clause is not an
				// expression: guard it from the generic "as"-cast and
				// colon-annotation handling below by copying it verbatim.
				if j := skipSpaces(code, i); j < len(code) && code[j] == '{' {
					if closeIdx, err := matchBrace(code, j); err == nil {
						out.WriteString(code[i : closeIdx+1])
						i = closeIdx + 1
					}
				}

			case "const", "let", "var":
				out.WriteString(word)
				i = end
				declaratorPending = true

			case "as":
				j, ok := skipAsCast(code, end)
				if ok {
					i = j
					changed = true
					continue
				}
				out.WriteString(word)
				i = end

			default:
				out.WriteString(word)
				i = end
				// Non-null assertion: identifier immediately followed by "!"
				// not itself followed by "=" (to avoid "!=").
				if i < len(code) && code[i] == '!' && !(i+1 < len(code) && code[i+1] == '=') {
					i++
					changed = true
				}
				// Type annotation: only valid directly inside a parameter
				// list, or on a const/let/var declarator name - never on an
				// object-literal property key, which looks identical.
				if declaratorPending || topBracket() == '(' {
					if j, ok := skipTypeAnnotationColon(code, i); ok {
						i = j
						changed = true
					}
				}
				declaratorPending = false
				// Generic parameter list immediately after a declared name,
				// only in the narrow "name<...>(" or "name<...>{" contexts
				// where "<" cannot be a comparison.
				if j, ok := skipGenericParamList(code, i); ok {
					i = j
					changed = true
				}
			}

		case c == ')' || c == ']' || c == '}':
			if len(brackets) > 0 {
				brackets = brackets[:len(brackets)-1]
			}
			out.WriteByte(c)
			i++
			if c == ')' {
				if j, ok := skipTypeAnnotationColon(code, i); ok {
					i = j
					changed = true
				}
			}

		default:
			out.WriteByte(c)
			i++
		}
	}

	return out.String(), changed, nil
}

func readWord(code string, i int) (string, int) {
	j := i
	for j < len(code) && isIdentPartByte(code[j]) {
		j++
	}
	return code[i:j], j
}

func skipSpaces(code string, i int) int {
	for i < len(code) && (code[i] == ' ' || code[i] == '\t' || code[i] == '\n' || code[i] == '\r') {
		i++
	}
	return i
}

// skipBlockStatement consumes up to and including the next balanced "{...}"
// pair, used to drop an entire "interface Name { ... }" body.
func skipBlockStatement(code string, i int) int {
	j := skipSpaces(code, i)
	for j < len(code) && code[j] != '{' {
		j++
	}
	if j >= len(code) {
		return j
	}
	depth := 0
	for j < len(code) {
		switch code[j] {
		case '\'', '"', '`':
			j = skipStringLiteral(code, j)
			continue
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return j + 1
			}
		}
		j++
	}
	return j
}

// skipToTopLevelSemicolon consumes forward to (and including) the next ";"
// that isn't nested inside (), [], {}, or a string, used for "type X = ...;"
// and "import type ... ;" style statements. If no top-level semicolon is
// found before EOF or a top-level newline outside any bracket, it stops at
// that newline instead (covers ASI'd single-line statements).
func skipToTopLevelSemicolon(code string, i int) int {
	depth := 0
	for i < len(code) {
		c := code[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			i = skipStringLiteral(code, i)
			continue
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			if depth == 0 {
				return i
			}
			depth--
		case depth == 0 && c == ';':
			return i + 1
		case depth == 0 && c == '\n':
			return i
		}
		i++
	}
	return i
}

// skipToTopLevelSemicolonOrBrace is like skipToTopLevelSemicolon but also
// stops after consuming a balanced top-level "{...}" block, for "declare
// namespace Foo { ... }" style statements that have no trailing semicolon.
func skipToTopLevelSemicolonOrBrace(code string, i int) int {
	j := skipSpaces(code, i)
	scan := j
	for scan < len(code) && scan < j+64 {
		if code[scan] == '{' {
			return skipBlockStatement(code, i)
		}
		if code[scan] == ';' || code[scan] == '\n' {
			break
		}
		scan++
	}
	return skipToTopLevelSemicolon(code, i)
}

// looksLikeTypeAliasHeader reports whether "type" at this position starts a
// type-alias declaration ("type Name = ...", "type Name<T> = ...") rather
// than being used as an ordinary identifier.
func looksLikeTypeAliasHeader(code string, afterType int) bool {
	j := skipSpaces(code, afterType)
	if j >= len(code) || !isIdentStartByte(code[j]) {
		return false
	}
	_, j = readWord(code, j)
	j = skipSpaces(code, j)
	if j < len(code) && code[j] == '<' {
		depth := 0
		for j < len(code) {
			if code[j] == '<' {
				depth++
			} else if code[j] == '>' {
				depth--
				if depth == 0 {
					j++
					break
				}
			}
			j++
		}
		j = skipSpaces(code, j)
	}
	return j < len(code) && code[j] == '='
}

// consumedTypeOnlyClause reports whether "import"/"export" at this position
// is immediately followed by a bare "type" keyword marking the whole clause
// type-only ("import type {...} from ..."), as opposed to "type" being used
// as an ordinary default-import binding name.
func consumedTypeOnlyClause(code string, start, afterKeyword int, out *strings.Builder) bool {
	j := skipSpaces(code, afterKeyword)
	word, end := readWord(code, j)
	if word != "type" {
		return false
	}
	k := skipSpaces(code, end)
	if k < len(code) && (code[k] == '{' || code[k] == '*') {
		return true
	}
	return false
}

// skipAsCast consumes a type expression following "as" up to the next
// operator/punctuation boundary that ends an expression position, covering
// "expr as Type" and "expr as const".
func skipAsCast(code string, i int) (int, bool) {
	j := skipSpaces(code, i)
	start := j
	for j < len(code) && (isIdentPartByte(code[j]) || code[j] == '.' || code[j] == ' ') {
		j++
	}
	if j == start {
		return i, false
	}
	// Swallow a following generic instantiation like "as Array<string>".
	k := j
	for k < len(code) && (code[k] == ' ' || code[k] == '\t') {
		k++
	}
	if k < len(code) && code[k] == '<' {
		depth := 0
		for k < len(code) {
			if code[k] == '<' {
				depth++
			} else if code[k] == '>' {
				depth--
				if depth == 0 {
					k++
					break
				}
			}
			k++
		}
		j = k
	}
	return j, true
}

// skipTypeAnnotationColon consumes a ": Type" annotation immediately at i,
// stopping at the next unbracketed "=", ",", ")", ";", "{", or newline - the
// boundary contexts where a parameter, declarator, or return-type annotation
// ends (spec §4.3's "type annotations on declarations are erased"). An
// object-type literal directly after the colon ("): { x: number } {") is
// consumed as one balanced block before that boundary scan resumes, so only
// the type is erased and a following function body "{" still stops the
// annotation rather than being swallowed into it.
func skipTypeAnnotationColon(code string, i int) (int, bool) {
	j := skipSpaces(code, i)
	if j >= len(code) || code[j] != ':' {
		return i, false
	}
	j++
	j = skipSpaces(code, j)
	if j < len(code) && code[j] == '{' {
		if end, err := matchBrace(code, j); err == nil {
			j = end + 1
		}
	}
	depth := 0
	for j < len(code) {
		c := code[j]
		switch {
		case c == '\'' || c == '"' || c == '`':
			j = skipStringLiteral(code, j)
			continue
		case c == '(' || c == '[' || c == '<':
			depth++
		case c == ')' || c == ']' || c == '>':
			if depth == 0 {
				return j, true
			}
			depth--
		case depth == 0 && (c == '=' || c == ',' || c == ';' || c == '{' || c == '\n'):
			return j, true
		}
		j++
	}
	return j, true
}

// skipGenericParamList consumes a "<...>" generic parameter list immediately
// at i, only when followed by "(" or "{" or "extends"/"implements" so a
// bare comparison expression is never mistaken for one.
func skipGenericParamList(code string, i int) (int, bool) {
	if i >= len(code) || code[i] != '<' {
		return i, false
	}
	depth := 0
	j := i
	for j < len(code) {
		switch code[j] {
		case '<':
			depth++
		case '>':
			depth--
			if depth == 0 {
				j++
				goto checkFollow
			}
		case ';', '{':
			return i, false
		}
		j++
	}
	return i, false

checkFollow:
	k := skipSpaces(code, j)
	if k < len(code) && (code[k] == '(' || code[k] == '{') {
		return j, true
	}
	word, _ := readWord(code, k)
	if word == "extends" || word == "implements" {
		return j, true
	}
	return i, false
}
