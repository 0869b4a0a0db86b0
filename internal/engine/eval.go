package engine

import (
	"context"
	"strconv"
	"strings"
	"unicode"

	"github.com/roach88/enginebridge/internal/wire"
)

// The evaluator accepts a small statement language over the global
// namespace:
//
//	x = expr                  assign a global
//	x.f = expr, x(i) = expr   assign a field or element
//	clear('x'), clear x y     remove globals
//	expr                      evaluate; the last one is the result
//
// Statements are separated by ';', ',' or newlines. Expressions support
// numbers, 'char' literals, [row vectors], {cells}, @name references,
// function calls, field access, indexing and the operators
// + - * / ^ == ~= < > <= >= and unary - and ~, each dispatched to the
// builtin (or object method) of the same name.

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokOp
	tokSep
)

type token struct {
	kind tokenKind
	text string
	num  float64
	pos  int
}

func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case c == '\n' || c == ';':
			toks = append(toks, token{kind: tokSep, text: string(c), pos: i})
			i++
		case c == '%':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case isIdentStart(rune(c)):
			start := i
			for i < len(src) && isIdentPart(rune(src[i])) {
				i++
			}
			toks = append(toks, token{kind: tokIdent, text: src[start:i], pos: start})
		case c >= '0' && c <= '9' || (c == '.' && i+1 < len(src) && src[i+1] >= '0' && src[i+1] <= '9'):
			start := i
			for i < len(src) && (src[i] >= '0' && src[i] <= '9' || src[i] == '.') {
				i++
			}
			if i < len(src) && (src[i] == 'e' || src[i] == 'E') {
				i++
				if i < len(src) && (src[i] == '+' || src[i] == '-') {
					i++
				}
				for i < len(src) && src[i] >= '0' && src[i] <= '9' {
					i++
				}
			}
			f, err := strconv.ParseFloat(src[start:i], 64)
			if err != nil {
				return nil, syntaxError(src, "bad number %q", src[start:i])
			}
			toks = append(toks, token{kind: tokNumber, text: src[start:i], num: f, pos: start})
		case c == '\'' || c == '"':
			start := i
			i++
			var b strings.Builder
			closed := false
			for i < len(src) {
				if src[i] == c {
					if i+1 < len(src) && src[i+1] == c {
						b.WriteByte(c)
						i += 2
						continue
					}
					i++
					closed = true
					break
				}
				b.WriteByte(src[i])
				i++
			}
			if !closed {
				return nil, syntaxError(src, "unterminated string at %d", start)
			}
			toks = append(toks, token{kind: tokString, text: b.String(), pos: start})
		default:
			if i+1 < len(src) {
				two := src[i : i+2]
				switch two {
				case "==", "~=", "<=", ">=":
					toks = append(toks, token{kind: tokOp, text: two, pos: i})
					i += 2
					continue
				}
			}
			if !strings.ContainsRune(".()[]{},=<>+-*/^~@", rune(c)) {
				return nil, syntaxError(src, "unexpected character %q at %d", c, i)
			}
			toks = append(toks, token{kind: tokOp, text: string(c), pos: i})
			i++
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(src)}), nil
}

func isIdentStart(r rune) bool {
	return r == '_' || r < unicode.MaxASCII && unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || r >= '0' && r <= '9'
}

func isIdentifier(s string) bool {
	if s == "" || !isIdentStart(rune(s[0])) {
		return false
	}
	for _, r := range s {
		if !isIdentPart(r) {
			return false
		}
	}
	return true
}

type parser struct {
	e    *Engine
	ctx  context.Context
	src  string
	toks []token
	pos  int
}

func (e *Engine) eval(ctx context.Context, src string) (wire.Value, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{e: e, ctx: ctx, src: src, toks: toks}

	var last wire.Value = wire.Empty{}
	for p.peek().kind != tokEOF {
		if p.separator() {
			continue
		}
		v, isExpr, err := p.statement()
		if err != nil {
			return nil, err
		}
		if isExpr {
			last = v
		}
		if p.peek().kind != tokEOF && !p.separator() {
			return nil, p.unexpected()
		}
	}
	return last, nil
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) peekAt(n int) token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) isOp(text string) bool {
	t := p.peek()
	return t.kind == tokOp && t.text == text
}

func (p *parser) expect(text string) error {
	if !p.isOp(text) {
		return p.unexpected()
	}
	p.pos++
	return nil
}

func (p *parser) separator() bool {
	t := p.peek()
	if t.kind == tokSep || (t.kind == tokOp && t.text == ",") {
		p.pos++
		return true
	}
	return false
}

func (p *parser) unexpected() error {
	t := p.peek()
	if t.kind == tokEOF {
		return syntaxError(p.src, "unexpected end of input")
	}
	return syntaxError(p.src, "unexpected %q at %d", t.text, t.pos)
}

// isAssignment scans the current statement for a top-level '='.
func (p *parser) isAssignment() bool {
	depth := 0
	for i := p.pos; i < len(p.toks); i++ {
		t := p.toks[i]
		switch {
		case t.kind == tokEOF, t.kind == tokSep && depth == 0:
			return false
		case t.kind != tokOp:
		case t.text == "(" || t.text == "[" || t.text == "{":
			depth++
		case t.text == ")" || t.text == "]" || t.text == "}":
			depth--
		case t.text == "," && depth == 0:
			return false
		case t.text == "=" && depth == 0:
			return true
		}
	}
	return false
}

func (p *parser) statement() (wire.Value, bool, error) {
	if t := p.peek(); t.kind == tokIdent && t.text == "clear" {
		if _, isVar := p.e.Globals()["clear"]; !isVar {
			return nil, false, p.clear()
		}
	}
	if p.isAssignment() {
		return nil, false, p.assignment()
	}
	v, err := p.expr()
	return v, true, err
}

func (p *parser) clear() error {
	p.next()
	if p.isOp("(") {
		p.next()
		for !p.isOp(")") {
			t := p.next()
			if t.kind != tokString {
				return syntaxError(p.src, "clear expects variable names")
			}
			p.e.clearGlobal(t.text)
			if p.isOp(",") {
				p.next()
			}
		}
		p.next()
		return nil
	}
	for p.peek().kind == tokIdent {
		p.e.clearGlobal(p.next().text)
	}
	return nil
}

// accessor is one step of an assignment target.
type accessor struct {
	field string
	index []wire.Value // non-nil for x(i)
}

func (p *parser) assignment() error {
	t := p.next()
	if t.kind != tokIdent {
		return syntaxError(p.src, "invalid assignment target")
	}
	var path []accessor
	for {
		switch {
		case p.isOp("."):
			p.next()
			f := p.next()
			if f.kind != tokIdent {
				return syntaxError(p.src, "expected field name after '.'")
			}
			path = append(path, accessor{field: f.text})
			continue
		case p.isOp("("):
			p.next()
			args, err := p.list(")")
			if err != nil {
				return err
			}
			path = append(path, accessor{index: args})
			continue
		}
		break
	}
	if err := p.expect("="); err != nil {
		return err
	}
	v, err := p.expr()
	if err != nil {
		return err
	}

	if len(path) == 0 {
		return p.e.WriteGlobal(p.ctx, t.text, v)
	}
	base, _ := p.e.Globals()[t.text]
	nb, err := p.assignPath(base, path, v)
	if err != nil {
		return err
	}
	return p.e.WriteGlobal(p.ctx, t.text, nb)
}

func (p *parser) assignPath(base wire.Value, path []accessor, v wire.Value) (wire.Value, error) {
	acc := path[0]
	if len(path) > 1 {
		var child wire.Value
		if base != nil {
			c, err := p.access(base, acc)
			if err != nil && acc.index != nil {
				return nil, err
			}
			child = c
		}
		nc, err := p.assignPath(child, path[1:], v)
		if err != nil {
			return nil, err
		}
		v = nc
	}
	if acc.index != nil {
		out, err := p.e.call(p.ctx, "subsasgn", []wire.Value{orEmpty(base), parenSubs("()", acc.index), v}, 1)
		if err != nil {
			return nil, err
		}
		return out[0], nil
	}
	return p.e.subsasgn(base, subscript{kind: ".", field: acc.field}, v)
}

func (p *parser) access(base wire.Value, acc accessor) (wire.Value, error) {
	if acc.index != nil {
		out, err := p.e.call(p.ctx, "subsref", []wire.Value{base, parenSubs("()", acc.index)}, 1)
		if err != nil {
			return nil, err
		}
		return out[0], nil
	}
	return p.e.subsref(base, subscript{kind: ".", field: acc.field})
}

func parenSubs(kind string, index []wire.Value) wire.Struct {
	return wire.Struct{"type": wire.Char(kind), "subs": wire.Cell(index)}
}

func orEmpty(v wire.Value) wire.Value {
	if v == nil {
		return wire.Empty{}
	}
	return v
}

// list parses comma-separated expressions up to the closing token.
func (p *parser) list(closing string) ([]wire.Value, error) {
	items := []wire.Value{}
	for !p.isOp(closing) {
		v, err := p.expr()
		if err != nil {
			return nil, err
		}
		items = append(items, v)
		if p.isOp(",") {
			p.next()
		} else if !p.isOp(closing) {
			return nil, p.unexpected()
		}
	}
	p.next()
	return items, nil
}

var comparisonOps = map[string]string{
	"==": "eq", "~=": "ne", "<": "lt", ">": "gt", "<=": "le", ">=": "ge",
}

func (p *parser) expr() (wire.Value, error) {
	left, err := p.additive()
	if err != nil {
		return nil, err
	}
	if fn, ok := comparisonOps[p.peek().text]; ok && p.peek().kind == tokOp {
		p.next()
		right, err := p.additive()
		if err != nil {
			return nil, err
		}
		return p.apply(fn, left, right)
	}
	return left, nil
}

func (p *parser) additive() (wire.Value, error) {
	left, err := p.multiplicative()
	if err != nil {
		return nil, err
	}
	for p.isOp("+") || p.isOp("-") {
		fn := "plus"
		if p.next().text == "-" {
			fn = "minus"
		}
		right, err := p.multiplicative()
		if err != nil {
			return nil, err
		}
		if left, err = p.apply(fn, left, right); err != nil {
			return nil, err
		}
	}
	return left, nil
}

func (p *parser) multiplicative() (wire.Value, error) {
	left, err := p.unaryExpr()
	if err != nil {
		return nil, err
	}
	for p.isOp("*") || p.isOp("/") {
		fn := "mtimes"
		if p.next().text == "/" {
			fn = "mrdivide"
		}
		right, err := p.unaryExpr()
		if err != nil {
			return nil, err
		}
		if left, err = p.apply(fn, left, right); err != nil {
			return nil, err
		}
	}
	return left, nil
}

func (p *parser) unaryExpr() (wire.Value, error) {
	switch {
	case p.isOp("-"):
		p.next()
		v, err := p.unaryExpr()
		if err != nil {
			return nil, err
		}
		return p.apply("uminus", v)
	case p.isOp("+"):
		p.next()
		return p.unaryExpr()
	case p.isOp("~"):
		p.next()
		v, err := p.unaryExpr()
		if err != nil {
			return nil, err
		}
		return p.apply("not", v)
	}
	base, err := p.postfix()
	if err != nil {
		return nil, err
	}
	if p.isOp("^") {
		p.next()
		exp, err := p.unaryExpr()
		if err != nil {
			return nil, err
		}
		return p.apply("mpower", base, exp)
	}
	return base, nil
}

// apply calls fn with object dispatch and returns its single result.
func (p *parser) apply(fn string, args ...wire.Value) (wire.Value, error) {
	out, err := p.e.call(p.ctx, fn, args, 1)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return wire.Empty{}, nil
	}
	return out[0], nil
}

func (p *parser) postfix() (wire.Value, error) {
	v, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.isOp("."):
			p.next()
			f := p.next()
			if f.kind != tokIdent {
				return nil, syntaxError(p.src, "expected field name after '.'")
			}
			if v, err = p.e.subsref(v, subscript{kind: ".", field: f.text}); err != nil {
				return nil, err
			}
		case p.isOp("("):
			p.next()
			idx, err := p.list(")")
			if err != nil {
				return nil, err
			}
			if v, err = p.apply("subsref", v, parenSubs("()", idx)); err != nil {
				return nil, err
			}
		case p.isOp("{"):
			p.next()
			idx, err := p.list("}")
			if err != nil {
				return nil, err
			}
			if v, err = p.apply("subsref", v, parenSubs("{}", idx)); err != nil {
				return nil, err
			}
		default:
			return v, nil
		}
	}
}

func (p *parser) primary() (wire.Value, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return wire.Double(t.num), nil
	case tokString:
		return wire.Char(t.text), nil
	case tokIdent:
		return p.identifier(t.text)
	case tokOp:
		switch t.text {
		case "(":
			v, err := p.expr()
			if err != nil {
				return nil, err
			}
			return v, p.expect(")")
		case "[":
			return p.row()
		case "{":
			items, err := p.list("}")
			if err != nil {
				return nil, err
			}
			return wire.Cell(items), nil
		case "@":
			name := p.next()
			if name.kind != tokIdent {
				return nil, syntaxError(p.src, "expected function name after '@'")
			}
			return wire.FuncRef{Name: name.text}, nil
		}
	}
	if t.kind != tokEOF {
		p.pos--
	}
	return nil, p.unexpected()
}

// identifier resolves a name: a global variable, else a function call.
func (p *parser) identifier(name string) (wire.Value, error) {
	if v, ok := p.e.Globals()[name]; ok {
		return v, nil
	}
	var args []wire.Value
	called := p.isOp("(")
	if called {
		p.next()
		var err error
		if args, err = p.list(")"); err != nil {
			return nil, err
		}
	}
	out, err := p.e.call(p.ctx, name, args, 1)
	if err != nil {
		if !called && hasCode(err, ErrCodeUndefinedFunction) {
			return nil, undefinedVariable(name)
		}
		return nil, err
	}
	if len(out) == 0 {
		return wire.Empty{}, nil
	}
	return out[0], nil
}

// row parses [a, b c] into a 1xN double row.
func (p *parser) row() (wire.Value, error) {
	var data []float64
	for !p.isOp("]") {
		if p.peek().kind == tokEOF {
			return nil, p.unexpected()
		}
		v, err := p.expr()
		if err != nil {
			return nil, err
		}
		a, err := toArray("[]", v)
		if err != nil {
			return nil, err
		}
		data = append(data, a.Data...)
		if p.isOp(",") {
			p.next()
		}
	}
	p.next()
	if len(data) == 0 {
		return wire.Empty{}, nil
	}
	return wire.Row(data...), nil
}
