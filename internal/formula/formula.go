// Package formula implements the safe Formula Evaluator (spec §4.D): a
// recursive-descent parser producing an AST over a fixed grammar, evaluated
// against an immutable variable binding. It never calls anything resembling
// eval — grounded on the mandate in spec §9 that replaces the Python
// source's `eval(formula, {"__builtins__": {}}, allowed_names)` with a
// proper grammar parser that rejects AST nodes outside the allowed set.
package formula

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ekow-ghana/payroll-core/internal/decimalx"
)

// whitelist is the exact character class named in spec §4.D.
var whitelist = regexp.MustCompile(`^[0-9 .+\-*/(),<>=!_a-zA-Z]*$`)

// Binding is the fixed variable vocabulary a formula may reference.
type Binding struct {
	Basic decimal.Decimal
	Gross decimal.Decimal
}

// Evaluator parses and evaluates formula strings against a Binding. It is
// stateless and safe for concurrent use.
type Evaluator struct{}

func NewEvaluator() *Evaluator { return &Evaluator{} }

// Evaluate parses and evaluates formula, returning a 2dp HALF_UP quantised
// result. Any rejected or failing formula returns a definite zero alongside
// a non-nil error the caller may log — it MUST NOT be treated as fatal
// (spec §7 FormulaEvaluation is never propagated as fatal).
func (e *Evaluator) Evaluate(src string, b Binding) (decimal.Decimal, error) {
	if !whitelist.MatchString(src) {
		return decimalx.Zero, fmt.Errorf("formula contains disallowed characters")
	}

	p := &parser{lex: newLexer(src)}
	p.advance()

	node, err := p.parseTernary()
	if err != nil {
		return decimalx.Zero, err
	}
	if p.tok.kind != tokEOF {
		return decimalx.Zero, fmt.Errorf("unexpected trailing input at %q", p.tok.text)
	}

	val, err := eval(node, b)
	if err != nil {
		return decimalx.Zero, err
	}
	return decimalx.Money(val), nil
}

// ── AST ──────────────────────────────────────────────────────────────────

type nodeKind int

const (
	nodeNumber nodeKind = iota
	nodeBool
	nodeVar
	nodeBinary
	nodeUnary
	nodeCall
	nodeTernary
)

type node struct {
	kind nodeKind

	numVal  decimal.Decimal
	boolVal bool
	varName string

	op          string
	left, right *node

	callName string
	args     []*node

	cond, thenN, elseN *node
}

// allowedFuncs is the fixed function vocabulary (spec §4.D): min, max,
// round, abs.
var allowedFuncs = map[string]bool{"min": true, "max": true, "round": true, "abs": true}

func eval(n *node, b Binding) (decimal.Decimal, error) {
	switch n.kind {
	case nodeNumber:
		return n.numVal, nil
	case nodeBool:
		if n.boolVal {
			return decimal.NewFromInt(1), nil
		}
		return decimal.NewFromInt(0), nil
	case nodeVar:
		switch n.varName {
		case "basic":
			return b.Basic, nil
		case "gross":
			return b.Gross, nil
		case "True":
			return decimal.NewFromInt(1), nil
		case "False":
			return decimal.NewFromInt(0), nil
		default:
			return decimalx.Zero, fmt.Errorf("unknown variable %q", n.varName)
		}
	case nodeUnary:
		v, err := eval(n.left, b)
		if err != nil {
			return decimalx.Zero, err
		}
		switch n.op {
		case "-":
			return v.Neg(), nil
		case "!":
			if v.IsZero() {
				return decimal.NewFromInt(1), nil
			}
			return decimal.NewFromInt(0), nil
		}
		return decimalx.Zero, fmt.Errorf("unknown unary operator %q", n.op)
	case nodeBinary:
		l, err := eval(n.left, b)
		if err != nil {
			return decimalx.Zero, err
		}
		r, err := eval(n.right, b)
		if err != nil {
			return decimalx.Zero, err
		}
		return evalBinary(n.op, l, r)
	case nodeCall:
		return evalCall(n.callName, n.args, b)
	case nodeTernary:
		cond, err := eval(n.cond, b)
		if err != nil {
			return decimalx.Zero, err
		}
		if !cond.IsZero() {
			return eval(n.thenN, b)
		}
		return eval(n.elseN, b)
	}
	return decimalx.Zero, fmt.Errorf("unknown node kind")
}

func evalBinary(op string, l, r decimal.Decimal) (decimal.Decimal, error) {
	switch op {
	case "+":
		return l.Add(r), nil
	case "-":
		return l.Sub(r), nil
	case "*":
		return l.Mul(r), nil
	case "/":
		if r.IsZero() {
			return decimalx.Zero, fmt.Errorf("division by zero")
		}
		return l.Div(r), nil
	case "<":
		return boolDecimal(l.LessThan(r)), nil
	case ">":
		return boolDecimal(l.GreaterThan(r)), nil
	case "<=":
		return boolDecimal(l.LessThanOrEqual(r)), nil
	case ">=":
		return boolDecimal(l.GreaterThanOrEqual(r)), nil
	case "==":
		return boolDecimal(l.Equal(r)), nil
	case "!=":
		return boolDecimal(!l.Equal(r)), nil
	}
	return decimalx.Zero, fmt.Errorf("unknown binary operator %q", op)
}

func boolDecimal(v bool) decimal.Decimal {
	if v {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromInt(0)
}

func evalCall(name string, args []*node, b Binding) (decimal.Decimal, error) {
	if !allowedFuncs[name] {
		return decimalx.Zero, fmt.Errorf("unknown function %q", name)
	}
	vals := make([]decimal.Decimal, len(args))
	for i, a := range args {
		v, err := eval(a, b)
		if err != nil {
			return decimalx.Zero, err
		}
		vals[i] = v
	}

	switch name {
	case "min":
		if len(vals) == 0 {
			return decimalx.Zero, fmt.Errorf("min requires at least one argument")
		}
		m := vals[0]
		for _, v := range vals[1:] {
			if v.LessThan(m) {
				m = v
			}
		}
		return m, nil
	case "max":
		if len(vals) == 0 {
			return decimalx.Zero, fmt.Errorf("max requires at least one argument")
		}
		m := vals[0]
		for _, v := range vals[1:] {
			if v.GreaterThan(m) {
				m = v
			}
		}
		return m, nil
	case "round":
		if len(vals) != 1 {
			return decimalx.Zero, fmt.Errorf("round requires exactly one argument")
		}
		return vals[0].Round(0), nil
	case "abs":
		if len(vals) != 1 {
			return decimalx.Zero, fmt.Errorf("abs requires exactly one argument")
		}
		return vals[0].Abs(), nil
	}
	return decimalx.Zero, fmt.Errorf("unreachable")
}

// ── Lexer ────────────────────────────────────────────────────────────────

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokOp
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokenKind
	text string
}

type lexer struct {
	src []rune
	pos int
}

func newLexer(s string) *lexer { return &lexer{src: []rune(s)} }

func (l *lexer) next() token {
	for l.pos < len(l.src) && l.src[l.pos] == ' ' {
		l.pos++
	}
	if l.pos >= len(l.src) {
		return token{kind: tokEOF}
	}

	c := l.src[l.pos]
	switch {
	case c == '(':
		l.pos++
		return token{kind: tokLParen, text: "("}
	case c == ')':
		l.pos++
		return token{kind: tokRParen, text: ")"}
	case c == ',':
		l.pos++
		return token{kind: tokComma, text: ","}
	case c >= '0' && c <= '9' || c == '.':
		start := l.pos
		for l.pos < len(l.src) && (l.src[l.pos] >= '0' && l.src[l.pos] <= '9' || l.src[l.pos] == '.') {
			l.pos++
		}
		return token{kind: tokNumber, text: string(l.src[start:l.pos])}
	case isIdentStart(c):
		start := l.pos
		for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
			l.pos++
		}
		return token{kind: tokIdent, text: string(l.src[start:l.pos])}
	case strings.ContainsRune("+-*/<>=!", c):
		start := l.pos
		l.pos++
		if l.pos < len(l.src) && l.src[l.pos] == '=' && strings.ContainsRune("<>=!", c) {
			l.pos++
		}
		return token{kind: tokOp, text: string(l.src[start:l.pos])}
	}
	return token{kind: tokOp, text: string(c)}
}

func isIdentStart(c rune) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c rune) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

// ── Parser ───────────────────────────────────────────────────────────────
//
// Grammar (lowest to highest precedence):
//
//	ternary  := comparison ("if" comparison "else" ternary)?
//	comparison := additive ((< | > | <= | >= | == | !=) additive)*
//	additive := term (("+"|"-") term)*
//	term     := unary (("*"|"/") unary)*
//	unary    := "-" unary | "!" unary | primary
//	primary  := number | bool | ident | ident "(" args ")" | "(" ternary ")"

type parser struct {
	lex *lexer
	tok token
}

func (p *parser) advance() { p.tok = p.lex.next() }

func (p *parser) parseTernary() (*node, error) {
	thenExpr, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	if p.tok.kind == tokIdent && p.tok.text == "if" {
		p.advance()
		cond, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		if !(p.tok.kind == tokIdent && p.tok.text == "else") {
			return nil, fmt.Errorf("expected 'else' in ternary expression")
		}
		p.advance()
		elseExpr, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		return &node{kind: nodeTernary, cond: cond, thenN: thenExpr, elseN: elseExpr}, nil
	}
	return thenExpr, nil
}

func (p *parser) parseComparison() (*node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokOp && isComparisonOp(p.tok.text) {
		op := p.tok.text
		p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &node{kind: nodeBinary, op: op, left: left, right: right}
	}
	return left, nil
}

func isComparisonOp(op string) bool {
	switch op {
	case "<", ">", "<=", ">=", "==", "!=":
		return true
	}
	return false
}

func (p *parser) parseAdditive() (*node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokOp && (p.tok.text == "+" || p.tok.text == "-") {
		op := p.tok.text
		p.advance()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &node{kind: nodeBinary, op: op, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseTerm() (*node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokOp && (p.tok.text == "*" || p.tok.text == "/") {
		op := p.tok.text
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &node{kind: nodeBinary, op: op, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (*node, error) {
	if p.tok.kind == tokOp && (p.tok.text == "-" || p.tok.text == "!") {
		op := p.tok.text
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &node{kind: nodeUnary, op: op, left: operand}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (*node, error) {
	switch p.tok.kind {
	case tokNumber:
		v, err := decimal.NewFromString(p.tok.text)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", p.tok.text)
		}
		p.advance()
		return &node{kind: nodeNumber, numVal: v}, nil
	case tokIdent:
		name := p.tok.text
		if name == "if" || name == "else" {
			return nil, fmt.Errorf("unexpected keyword %q", name)
		}
		p.advance()
		if name == "True" {
			return &node{kind: nodeBool, boolVal: true}, nil
		}
		if name == "False" {
			return &node{kind: nodeBool, boolVal: false}, nil
		}
		if p.tok.kind == tokLParen {
			p.advance()
			var args []*node
			if p.tok.kind != tokRParen {
				for {
					arg, err := p.parseTernary()
					if err != nil {
						return nil, err
					}
					args = append(args, arg)
					if p.tok.kind == tokComma {
						p.advance()
						continue
					}
					break
				}
			}
			if p.tok.kind != tokRParen {
				return nil, fmt.Errorf("expected ')' after arguments")
			}
			p.advance()
			if !allowedFuncs[name] {
				return nil, fmt.Errorf("unknown function %q", name)
			}
			return &node{kind: nodeCall, callName: name, args: args}, nil
		}
		return &node{kind: nodeVar, varName: name}, nil
	case tokLParen:
		p.advance()
		inner, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		if p.tok.kind != tokRParen {
			return nil, fmt.Errorf("expected ')'")
		}
		p.advance()
		return inner, nil
	}
	return nil, fmt.Errorf("unexpected token %q", p.tok.text)
}
