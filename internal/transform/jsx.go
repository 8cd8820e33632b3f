package transform

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ruidosujeira/kona/internal/config"
)

// jsxChildKind distinguishes the three child forms JSX allows between an
// element's open and close tags.
type jsxChildKind uint8

const (
	jsxChildText jsxChildKind = iota
	jsxChildExpr
	jsxChildElement
)

type jsxChild struct {
	kind jsxChildKind
	text string // jsxChildText: already whitespace-collapsed raw text (not yet JSON-quoted)
	expr string // jsxChildExpr: the {expression} contents verbatim
	node *jsxNode
}

type jsxAttr struct {
	name       string
	value      string // verbatim JS expression text producing the attribute's value
	isSpread   bool
	spreadExpr string
}

type jsxNode struct {
	isFragment bool
	tag        string // dotted tag text, e.g. "div" or "Foo.Bar"; unused when isFragment
	attrs      []jsxAttr
	children   []jsxChild
}

// lowerJSX rewrites every JSX element/fragment literal in code into a call
// to the configured factory (spec §4.3 "JSX lowering"), leaving everything
// else untouched. It is a best-effort single pass: "<" is treated as a JSX
// opener only when the preceding significant token is one where a
// less-than comparison cannot syntactically appear (start of file/block,
// "(", ",", "=", ":", "[", "{", ";", "&&", "||", "!", "return", "yield",
// "default", "typeof", "do", "else", "?", "..."), mirroring how a
// context-free scanner (rather than a full parser) must disambiguate JSX
// from comparison operators.
func lowerJSX(code string, opts config.JSXOptions) (string, bool, error) {
	if opts.Factory == "" {
		opts.Factory = "h"
	}
	if opts.Fragment == "" {
		opts.Fragment = "Fragment"
	}

	var out strings.Builder
	out.Grow(len(code))
	changed := false
	prevSig := ""

	i := 0
	for i < len(code) {
		c := code[i]

		switch {
		case c == '\'' || c == '"' || c == '`':
			j := skipStringLiteral(code, i)
			out.WriteString(code[i:j])
			i = j
			prevSig = string(c)

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

		case isIdentStartByte(c):
			word, end := readWord(code, i)
			out.WriteString(word)
			i = end
			prevSig = word

		case c == '<' && canStartJSX(prevSig, code, i):
			node, end, err := parseJSXElement(code, i)
			if err != nil {
				return "", false, err
			}
			out.WriteString(printJSX(node, opts))
			i = end
			changed = true
			prevSig = ")"

		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			out.WriteByte(c)
			i++

		default:
			if c == '.' && strings.HasPrefix(code[i:], "...") {
				out.WriteString("...")
				prevSig = "..."
				i += 3
				continue
			}
			if (c == '&' && i+1 < len(code) && code[i+1] == '&') || (c == '|' && i+1 < len(code) && code[i+1] == '|') {
				out.WriteString(code[i : i+2])
				prevSig = code[i : i+2]
				i += 2
				continue
			}
			out.WriteByte(c)
			i++
			prevSig = string(c)
		}
	}

	return out.String(), changed, nil
}

func canStartJSX(prevSig string, code string, i int) bool {
	if i+1 >= len(code) {
		return false
	}
	next := code[i+1]
	if !((next >= 'a' && next <= 'z') || (next >= 'A' && next <= 'Z') || next == '>') {
		return false
	}
	switch prevSig {
	case "", "(", ",", "=", ":", "[", "{", ";", "!", "?", "&&", "||", "...",
		"return", "yield", "default", "typeof", "do", "else", "in", "of":
		return true
	}
	return false
}

// parseJSXElement parses one element or fragment starting at code[i] == '<'.
func parseJSXElement(code string, i int) (*jsxNode, int, error) {
	pos := i + 1
	if pos < len(code) && code[pos] == '>' {
		node := &jsxNode{isFragment: true}
		pos++
		children, end, err := parseJSXChildren(code, pos)
		if err != nil {
			return nil, 0, err
		}
		node.children = children
		return node, end, nil
	}

	tagStart := pos
	for pos < len(code) && (isIdentPartByte(code[pos]) || code[pos] == '.') {
		pos++
	}
	if pos == tagStart {
		return nil, 0, fmt.Errorf("invalid JSX tag at offset %d", i)
	}
	node := &jsxNode{tag: code[tagStart:pos]}

	for {
		pos = skipSpaces(code, pos)
		if pos >= len(code) {
			return nil, 0, fmt.Errorf("unterminated JSX tag %q", node.tag)
		}
		if code[pos] == '/' && pos+1 < len(code) && code[pos+1] == '>' {
			return node, pos + 2, nil
		}
		if code[pos] == '>' {
			pos++
			break
		}
		if code[pos] == '{' {
			exprEnd, err := matchBrace(code, pos)
			if err != nil {
				return nil, 0, err
			}
			inner := strings.TrimSpace(code[pos+1 : exprEnd])
			inner = strings.TrimPrefix(inner, "...")
			node.attrs = append(node.attrs, jsxAttr{isSpread: true, spreadExpr: strings.TrimSpace(inner)})
			pos = exprEnd + 1
			continue
		}

		nameStart := pos
		for pos < len(code) && (isIdentPartByte(code[pos]) || code[pos] == '-') {
			pos++
		}
		if pos == nameStart {
			return nil, 0, fmt.Errorf("invalid JSX attribute at offset %d", pos)
		}
		name := code[nameStart:pos]

		pos = skipSpaces(code, pos)
		if pos < len(code) && code[pos] == '=' {
			pos = skipSpaces(code, pos+1)
			if pos >= len(code) {
				return nil, 0, fmt.Errorf("unterminated attribute %q", name)
			}
			switch code[pos] {
			case '"', '\'':
				strEnd := skipStringLiteral(code, pos)
				raw := code[pos+1 : strEnd-1]
				quoted, _ := json.Marshal(raw)
				node.attrs = append(node.attrs, jsxAttr{name: name, value: string(quoted)})
				pos = strEnd
			case '{':
				exprEnd, err := matchBrace(code, pos)
				if err != nil {
					return nil, 0, err
				}
				node.attrs = append(node.attrs, jsxAttr{name: name, value: strings.TrimSpace(code[pos+1 : exprEnd])})
				pos = exprEnd + 1
			default:
				return nil, 0, fmt.Errorf("unsupported attribute value syntax for %q", name)
			}
		} else {
			node.attrs = append(node.attrs, jsxAttr{name: name, value: "true"})
		}
	}

	children, end, err := parseJSXChildren(code, pos)
	if err != nil {
		return nil, 0, err
	}
	node.children = children
	return node, end, nil
}

// matchBrace returns the index of the "}" matching the "{" at code[open],
// treating nested braces and strings (including template-literal
// substitutions) as opaque.
func matchBrace(code string, open int) (int, error) {
	depth := 0
	j := open
	for j < len(code) {
		switch code[j] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return j, nil
			}
		case '\'', '"', '`':
			j = skipStringLiteral(code, j)
			continue
		}
		j++
	}
	return 0, fmt.Errorf("unterminated brace starting at offset %d", open)
}

// parseJSXChildren reads children up to and including the matching closing
// tag ("</Name>" or "</>"), which is not validated against the opening tag
// name - a malformed mismatch is left for a downstream syntax check rather
// than rejected here, since this pass only erases/lowers shapes it
// recognizes.
func parseJSXChildren(code string, pos int) ([]jsxChild, int, error) {
	var children []jsxChild
	textStart := pos

	flushText := func(end int) {
		raw := code[textStart:end]
		collapsed := collapseJSXWhitespace(raw)
		if collapsed != "" {
			children = append(children, jsxChild{kind: jsxChildText, text: collapsed})
		}
	}

	for {
		if pos >= len(code) {
			return nil, 0, fmt.Errorf("unterminated JSX children starting at offset %d", textStart)
		}
		c := code[pos]

		if c == '<' {
			if pos+1 < len(code) && code[pos+1] == '/' {
				flushText(pos)
				pos += 2
				for pos < len(code) && code[pos] != '>' {
					pos++
				}
				return children, pos + 1, nil
			}
			flushText(pos)
			node, end, err := parseJSXElement(code, pos)
			if err != nil {
				return nil, 0, err
			}
			children = append(children, jsxChild{kind: jsxChildElement, node: node})
			pos = end
			textStart = pos
			continue
		}

		if c == '{' {
			flushText(pos)
			exprEnd, err := matchBrace(code, pos)
			if err != nil {
				return nil, 0, err
			}
			inner := strings.TrimSpace(code[pos+1 : exprEnd])
			if inner != "" {
				children = append(children, jsxChild{kind: jsxChildExpr, expr: inner})
			}
			pos = exprEnd + 1
			textStart = pos
			continue
		}

		pos++
	}
}

// collapseJSXWhitespace applies JSX's text-child whitespace rule: lines that
// are entirely whitespace are dropped, each remaining line is trimmed, and
// the survivors are rejoined with a single space.
func collapseJSXWhitespace(raw string) string {
	lines := strings.Split(raw, "\n")
	var kept []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			kept = append(kept, trimmed)
		}
	}
	return strings.Join(kept, " ")
}

// printJSX renders node as a call to the configured factory (spec §4.3:
// classic "h(tag, props, ...children)" or automatic "jsx(tag, props)" with
// children folded into the props object).
func printJSX(node *jsxNode, opts config.JSXOptions) string {
	tagExpr := jsxTagExpr(node, opts)

	switch opts.Mode {
	case config.JSXModeAutomatic:
		return printJSXAutomatic(node, tagExpr, opts)
	default:
		return printJSXClassic(node, tagExpr, opts)
	}
}

func jsxTagExpr(node *jsxNode, opts config.JSXOptions) string {
	if node.isFragment {
		return opts.Fragment
	}
	if isLowerFirst(node.tag) && !strings.Contains(node.tag, ".") {
		quoted, _ := json.Marshal(node.tag)
		return string(quoted)
	}
	return node.tag
}

func isLowerFirst(s string) bool {
	if s == "" {
		return false
	}
	return s[0] >= 'a' && s[0] <= 'z'
}

func printJSXClassic(node *jsxNode, tagExpr string, opts config.JSXOptions) string {
	propsExpr := buildPropsExpr(node.attrs, nil)
	args := []string{tagExpr, propsExpr}
	for _, child := range node.children {
		args = append(args, printJSXChild(child, opts))
	}
	return opts.Factory + "(" + strings.Join(args, ", ") + ")"
}

func printJSXAutomatic(node *jsxNode, tagExpr string, opts config.JSXOptions) string {
	var childrenField string
	switch len(node.children) {
	case 0:
		childrenField = ""
	case 1:
		childrenField = "children: " + printJSXChild(node.children[0], opts)
	default:
		var parts []string
		for _, child := range node.children {
			parts = append(parts, printJSXChild(child, opts))
		}
		childrenField = "children: [" + strings.Join(parts, ", ") + "]"
	}
	propsExpr := buildPropsExpr(node.attrs, extraField(childrenField))
	return "jsx(" + tagExpr + ", " + propsExpr + ")"
}

func extraField(field string) []string {
	if field == "" {
		return nil
	}
	return []string{field}
}

func printJSXChild(child jsxChild, opts config.JSXOptions) string {
	switch child.kind {
	case jsxChildText:
		quoted, _ := json.Marshal(child.text)
		return string(quoted)
	case jsxChildExpr:
		return child.expr
	case jsxChildElement:
		return printJSX(child.node, opts)
	}
	return "null"
}

// buildPropsExpr renders an attribute list (plus any extra literal fields,
// such as an automatic-runtime "children" entry) into a single props
// expression. Consecutive non-spread attributes/fields are grouped into one
// object literal; a "{...expr}" spread attribute becomes its own
// Object.assign argument, preserving left-to-right attribute order (a later
// spread can override an earlier named attribute, matching JSX semantics).
func buildPropsExpr(attrs []jsxAttr, extraFields []string) string {
	var parts []string
	var currentFields []string

	flush := func() {
		if len(currentFields) > 0 {
			parts = append(parts, "{"+strings.Join(currentFields, ", ")+"}")
			currentFields = nil
		}
	}

	for _, a := range attrs {
		if a.isSpread {
			flush()
			parts = append(parts, a.spreadExpr)
			continue
		}
		quotedName, _ := json.Marshal(a.name)
		currentFields = append(currentFields, string(quotedName)+": "+a.value)
	}
	currentFields = append(currentFields, extraFields...)
	flush()

	switch len(parts) {
	case 0:
		return "null"
	case 1:
		if strings.HasPrefix(parts[0], "{") {
			return parts[0]
		}
		return "Object.assign({}, " + parts[0] + ")"
	default:
		return "Object.assign({}, " + strings.Join(parts, ", ") + ")"
	}
}
