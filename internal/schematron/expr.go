package schematron

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/beevik/etree"
)

// The rule vocabulary used by the authority's published rule sets, and what
// the custom-rule interface exposes, is a fixed XPath 1.0 subset: location
// paths, attribute access, not/count/string-length, comparisons, and
// and/or chains. Compile parses a test expression into an evaluable tree;
// anything outside the subset is a compile error attributed to the rule.

// Expr is a compiled test expression.
type Expr struct {
	root node
	src  string
}

// Compile parses a test expression.
func Compile(src string) (*Expr, error) {
	p := &exprParser{src: src}
	p.lex()
	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.tokens) {
		return nil, fmt.Errorf("unexpected token %q in expression", p.tokens[p.pos].text)
	}
	return &Expr{root: n, src: src}, nil
}

// EvalBool evaluates the expression with ctx as the context node.
func (e *Expr) EvalBool(ctx *etree.Element) bool {
	return truthy(e.root.eval(ctx))
}

// ── values ──────────────────────────────────────────────────────────

type value struct {
	nodes []*etree.Element
	attrs []string
	str   *string
	num   *float64
	b     *bool
}

func boolVal(b bool) value   { return value{b: &b} }
func numVal(f float64) value { return value{num: &f} }
func strVal(s string) value  { return value{str: &s} }

func truthy(v value) bool {
	switch {
	case v.b != nil:
		return *v.b
	case v.num != nil:
		return *v.num != 0
	case v.str != nil:
		return *v.str != ""
	default:
		return len(v.nodes) > 0 || len(v.attrs) > 0
	}
}

// stringValues lists the comparable string forms of a value. Node-sets
// compare against any member, per XPath semantics.
func stringValues(v value) []string {
	switch {
	case v.str != nil:
		return []string{*v.str}
	case v.num != nil:
		return []string{strconv.FormatFloat(*v.num, 'f', -1, 64)}
	case v.b != nil:
		if *v.b {
			return []string{"true"}
		}
		return []string{"false"}
	}
	out := make([]string, 0, len(v.nodes)+len(v.attrs))
	for _, n := range v.nodes {
		out = append(out, strings.TrimSpace(n.Text()))
	}
	out = append(out, v.attrs...)
	return out
}

// ── AST ─────────────────────────────────────────────────────────────

type node interface {
	eval(ctx *etree.Element) value
}

type boolOp struct {
	op          string // "and" | "or"
	left, right node
}

func (n *boolOp) eval(ctx *etree.Element) value {
	l := truthy(n.left.eval(ctx))
	if n.op == "and" {
		if !l {
			return boolVal(false)
		}
		return boolVal(truthy(n.right.eval(ctx)))
	}
	if l {
		return boolVal(true)
	}
	return boolVal(truthy(n.right.eval(ctx)))
}

type cmpOp struct {
	op          string
	left, right node
}

func (n *cmpOp) eval(ctx *etree.Element) value {
	l := n.left.eval(ctx)
	r := n.right.eval(ctx)

	lv, rv := stringValues(l), stringValues(r)
	for _, a := range lv {
		for _, b := range rv {
			if compareStrings(n.op, a, b) {
				return boolVal(true)
			}
		}
	}
	// Empty node-set never matches, including for !=.
	return boolVal(false)
}

func compareStrings(op, a, b string) bool {
	af, aerr := strconv.ParseFloat(a, 64)
	bf, berr := strconv.ParseFloat(b, 64)
	if aerr == nil && berr == nil {
		switch op {
		case "=":
			return af == bf
		case "!=":
			return af != bf
		case "<":
			return af < bf
		case "<=":
			return af <= bf
		case ">":
			return af > bf
		case ">=":
			return af >= bf
		}
	}
	switch op {
	case "=":
		return a == b
	case "!=":
		return a != b
	}
	return false
}

type funcCall struct {
	name string
	arg  node
}

func (n *funcCall) eval(ctx *etree.Element) value {
	v := n.arg.eval(ctx)
	switch n.name {
	case "not":
		return boolVal(!truthy(v))
	case "count":
		return numVal(float64(len(v.nodes) + len(v.attrs)))
	case "string-length":
		sv := stringValues(v)
		if len(sv) == 0 {
			return numVal(0)
		}
		// Characters, not bytes. Turkish text is multi-byte in UTF-8.
		return numVal(float64(utf8.RuneCountInString(sv[0])))
	case "normalize-space":
		sv := stringValues(v)
		if len(sv) == 0 {
			return strVal("")
		}
		return strVal(strings.Join(strings.Fields(sv[0]), " "))
	}
	return boolVal(false)
}

type literal struct{ v value }

func (n *literal) eval(*etree.Element) value { return n.v }

type pathExpr struct {
	absolute bool
	steps    []pathStep
}

type pathStep struct {
	name       string // local name, "*", "." or ".."
	attr       bool
	descendant bool // step preceded by //
}

func (n *pathExpr) eval(ctx *etree.Element) value {
	start := ctx
	if n.absolute {
		for start.Parent() != nil {
			start = start.Parent()
		}
	}
	current := []*etree.Element{start}
	var attrs []string

	for i, step := range n.steps {
		if step.attr {
			attrs = nil
			for _, el := range current {
				for _, a := range el.Attr {
					if step.name == "*" || a.Key == step.name {
						attrs = append(attrs, a.Value)
					}
				}
			}
			if i != len(n.steps)-1 {
				return value{}
			}
			return value{attrs: attrs}
		}

		var next []*etree.Element
		for _, el := range current {
			switch {
			case step.name == ".":
				next = append(next, el)
			case step.name == "..":
				if p := el.Parent(); p != nil {
					next = append(next, p)
				}
			case step.descendant:
				// An absolute leading // starts from the document node,
				// which the root element stands in for here, so the root
				// itself is a candidate too.
				if i == 0 && n.absolute && (step.name == "*" || el.Tag == step.name) {
					next = append(next, el)
				}
				collectDescendants(el, step.name, &next)
			default:
				for _, child := range el.ChildElements() {
					if step.name == "*" || child.Tag == step.name {
						next = append(next, child)
					}
				}
			}
		}
		current = next
		if len(current) == 0 {
			break
		}
	}
	return value{nodes: current}
}

func collectDescendants(el *etree.Element, name string, out *[]*etree.Element) {
	for _, child := range el.ChildElements() {
		if name == "*" || child.Tag == name {
			*out = append(*out, child)
		}
		collectDescendants(child, name, out)
	}
}

// ── lexer / parser ──────────────────────────────────────────────────

type token struct {
	kind string // name, number, string, op
	text string
}

type exprParser struct {
	src    string
	tokens []token
	pos    int
	lexErr error
}

func isNameByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' ||
		b == '_' || b == '-' || b == '.' || b == ':'
}

func (p *exprParser) lex() {
	s := p.src
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '\'' || c == '"':
			j := i + 1
			for j < len(s) && s[j] != c {
				j++
			}
			if j >= len(s) {
				p.lexErr = fmt.Errorf("unterminated string literal")
				return
			}
			p.tokens = append(p.tokens, token{"string", s[i+1 : j]})
			i = j + 1
		case c >= '0' && c <= '9':
			j := i
			for j < len(s) && (s[j] >= '0' && s[j] <= '9' || s[j] == '.') {
				j++
			}
			p.tokens = append(p.tokens, token{"number", s[i:j]})
			i = j
		case c == '/' || c == '(' || c == ')' || c == '@' || c == '*':
			if c == '/' && i+1 < len(s) && s[i+1] == '/' {
				p.tokens = append(p.tokens, token{"op", "//"})
				i += 2
			} else {
				p.tokens = append(p.tokens, token{"op", string(c)})
				i++
			}
		case c == '=' || c == '<' || c == '>' || c == '!':
			if i+1 < len(s) && s[i+1] == '=' {
				p.tokens = append(p.tokens, token{"op", s[i : i+2]})
				i += 2
			} else {
				p.tokens = append(p.tokens, token{"op", string(c)})
				i++
			}
		case isNameByte(c):
			j := i
			for j < len(s) && isNameByte(s[j]) {
				j++
			}
			p.tokens = append(p.tokens, token{"name", s[i:j]})
			i = j
		default:
			p.lexErr = fmt.Errorf("unexpected character %q in expression", c)
			return
		}
	}
}

func (p *exprParser) peek() *token {
	if p.pos < len(p.tokens) {
		return &p.tokens[p.pos]
	}
	return nil
}

func (p *exprParser) parseOr() (node, error) {
	if p.lexErr != nil {
		return nil, p.lexErr
	}
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for t := p.peek(); t != nil && t.kind == "name" && t.text == "or"; t = p.peek() {
		p.pos++
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &boolOp{op: "or", left: left, right: right}
	}
	return left, nil
}

func (p *exprParser) parseAnd() (node, error) {
	left, err := p.parseCmp()
	if err != nil {
		return nil, err
	}
	for t := p.peek(); t != nil && t.kind == "name" && t.text == "and"; t = p.peek() {
		p.pos++
		right, err := p.parseCmp()
		if err != nil {
			return nil, err
		}
		left = &boolOp{op: "and", left: left, right: right}
	}
	return left, nil
}

func (p *exprParser) parseCmp() (node, error) {
	left, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	t := p.peek()
	if t != nil && t.kind == "op" {
		switch t.text {
		case "=", "!=", "<", "<=", ">", ">=":
			p.pos++
			right, err := p.parseValue()
			if err != nil {
				return nil, err
			}
			return &cmpOp{op: t.text, left: left, right: right}, nil
		}
	}
	return left, nil
}

var knownFuncs = map[string]bool{
	"not": true, "count": true, "string-length": true, "normalize-space": true,
}

func (p *exprParser) parseValue() (node, error) {
	t := p.peek()
	if t == nil {
		return nil, fmt.Errorf("unexpected end of expression")
	}

	switch t.kind {
	case "string":
		p.pos++
		return &literal{strVal(t.text)}, nil
	case "number":
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q", t.text)
		}
		p.pos++
		return &literal{numVal(f)}, nil
	case "name":
		// Function call?
		if knownFuncs[t.text] && p.pos+1 < len(p.tokens) && p.tokens[p.pos+1].text == "(" {
			name := t.text
			p.pos += 2
			arg, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			end := p.peek()
			if end == nil || end.text != ")" {
				return nil, fmt.Errorf("missing ) after %s(", name)
			}
			p.pos++
			return &funcCall{name: name, arg: arg}, nil
		}
		if t.text == "true" || t.text == "false" {
			if p.pos+2 < len(p.tokens) && p.tokens[p.pos+1].text == "(" && p.tokens[p.pos+2].text == ")" {
				b := t.text == "true"
				p.pos += 3
				return &literal{boolVal(b)}, nil
			}
		}
		return p.parsePath(false)
	case "op":
		switch t.text {
		case "/", "//":
			return p.parsePath(true)
		case "(":
			p.pos++
			inner, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			end := p.peek()
			if end == nil || end.text != ")" {
				return nil, fmt.Errorf("missing closing )")
			}
			p.pos++
			return inner, nil
		case "@":
			return p.parsePath(false)
		}
	}
	return nil, fmt.Errorf("unexpected token %q", t.text)
}

func (p *exprParser) parsePath(absolute bool) (node, error) {
	path := &pathExpr{}
	descendant := false

	if absolute {
		t := p.peek()
		path.absolute = true
		descendant = t.text == "//"
		p.pos++
	}

	for {
		t := p.peek()
		if t == nil {
			break
		}
		if t.kind == "op" && t.text == "@" {
			p.pos++
			nt := p.peek()
			if nt == nil || (nt.kind != "name" && nt.text != "*") {
				return nil, fmt.Errorf("expected attribute name after @")
			}
			p.pos++
			path.steps = append(path.steps, pathStep{name: localPart(nt.text), attr: true, descendant: descendant})
			return path, nil
		}
		if t.kind == "name" || (t.kind == "op" && t.text == "*") {
			path.steps = append(path.steps, pathStep{name: localPart(t.text), descendant: descendant})
			p.pos++
		} else {
			break
		}

		sep := p.peek()
		if sep == nil || sep.kind != "op" || (sep.text != "/" && sep.text != "//") {
			break
		}
		descendant = sep.text == "//"
		p.pos++
	}

	if len(path.steps) == 0 {
		return nil, fmt.Errorf("empty location path")
	}
	return path, nil
}

// localPart strips the namespace prefix: documents and rule files agree on
// local names while prefixes vary between producers.
func localPart(name string) string {
	if i := strings.LastIndex(name, ":"); i >= 0 {
		return name[i+1:]
	}
	return name
}
