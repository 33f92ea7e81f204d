package tango

import (
	"github.com/oliverhaas/tango/value"
)

// The {% if %} condition grammar is a small Pratt parser over the fixed
// operator set. Binding powers match Python's precedence, lower binding
// looser:
//
//	or 6, and 7, not 8 (prefix), in / not in 9,
//	is / is not / == / != / > / >= / < / <= 10
//
// Conditions never raise at render time. Operand resolution misses and
// invalid comparisons collapse the affected subexpression to false;
// and/or short-circuit and yield the deciding operand's value, not a
// coerced boolean.

type condOp int

const (
	opNone condOp = iota
	opOr
	opAnd
	opNot
	opIn
	opNotIn
	opIs
	opIsNot
	opEq
	opNe
	opGt
	opGe
	opLt
	opLe
	opEnd
)

type opInfo struct {
	op     condOp
	bp     int
	prefix bool
}

var condOps = map[string]opInfo{
	"or":     {opOr, 6, false},
	"and":    {opAnd, 7, false},
	"not":    {opNot, 8, true},
	"in":     {opIn, 9, false},
	"not in": {opNotIn, 9, false},
	"is":     {opIs, 10, false},
	"is not": {opIsNot, 10, false},
	"==":     {opEq, 10, false},
	"!=":     {opNe, 10, false},
	">":      {opGt, 10, false},
	">=":     {opGe, 10, false},
	"<":      {opLt, 10, false},
	"<=":     {opLe, 10, false},
}

// condToken is both a token and a node of the parsed condition tree:
// operators take their operands as children during parsing.
type condToken struct {
	op     condOp
	name   string
	bp     int
	prefix bool

	// fe holds the operand for literal tokens (op == opNone).
	fe *FilterExpression

	first  *condToken
	second *condToken
}

// Eval evaluates the condition tree. Faults collapse to false here rather
// than propagating.
func (t *condToken) Eval(ctx *Context) value.Value {
	switch t.op {
	case opNone:
		return t.fe.ResolveIgnore(ctx)
	case opOr:
		x := t.first.Eval(ctx)
		if x.IsTrue() {
			return x
		}
		return t.second.Eval(ctx)
	case opAnd:
		x := t.first.Eval(ctx)
		if !x.IsTrue() {
			return x
		}
		return t.second.Eval(ctx)
	case opNot:
		return value.FromBool(!t.first.Eval(ctx).IsTrue())
	case opIn, opNotIn:
		needle := t.first.Eval(ctx)
		haystack := t.second.Eval(ctx)
		contained, ok := value.Contains(haystack, needle)
		if !ok {
			return value.False()
		}
		if t.op == opNotIn {
			contained = !contained
		}
		return value.FromBool(contained)
	case opIs:
		return value.FromBool(value.SameAs(t.first.Eval(ctx), t.second.Eval(ctx)))
	case opIsNot:
		return value.FromBool(!value.SameAs(t.first.Eval(ctx), t.second.Eval(ctx)))
	case opEq:
		return value.FromBool(value.Equal(t.first.Eval(ctx), t.second.Eval(ctx)))
	case opNe:
		return value.FromBool(!value.Equal(t.first.Eval(ctx), t.second.Eval(ctx)))
	default:
		cmp, ok := value.Compare(t.first.Eval(ctx), t.second.Eval(ctx))
		if !ok {
			return value.False()
		}
		switch t.op {
		case opGt:
			return value.FromBool(cmp > 0)
		case opGe:
			return value.FromBool(cmp >= 0)
		case opLt:
			return value.FromBool(cmp < 0)
		case opLe:
			return value.FromBool(cmp <= 0)
		}
		return value.False()
	}
}

// condParser parses the space-split bits of an if condition.
type condParser struct {
	tokens []*condToken
	pos    int
}

var endToken = &condToken{op: opEnd, bp: 0, name: "end of expression"}

// parseCondition compiles the bits of an {% if %} tag into a condition
// tree. Operand compilation goes through the surrounding parser so filter
// expressions work inside conditions.
func parseCondition(bits []string, p *Parser) (*condToken, error) {
	cp := &condParser{}
	// Fuse the two-word operators before tokenizing.
	for i := 0; i < len(bits); i++ {
		bit := bits[i]
		if i+1 < len(bits) {
			if bit == "is" && bits[i+1] == "not" {
				bit = "is not"
				i++
			} else if bit == "not" && bits[i+1] == "in" {
				bit = "not in"
				i++
			}
		}
		tok, err := cp.makeToken(bit, p)
		if err != nil {
			return nil, err
		}
		cp.tokens = append(cp.tokens, tok)
	}

	expr, err := cp.expression(0)
	if err != nil {
		return nil, err
	}
	if cp.current().op != opEnd {
		return nil, syntaxErrorf("unused %q at end of if expression", cp.current().name)
	}
	return expr, nil
}

func (cp *condParser) makeToken(bit string, p *Parser) (*condToken, error) {
	if info, ok := condOps[bit]; ok {
		return &condToken{op: info.op, name: bit, bp: info.bp, prefix: info.prefix}, nil
	}
	fe, err := p.CompileFilter(bit)
	if err != nil {
		return nil, err
	}
	return &condToken{op: opNone, name: bit, fe: fe}, nil
}

func (cp *condParser) current() *condToken {
	if cp.pos >= len(cp.tokens) {
		return endToken
	}
	return cp.tokens[cp.pos]
}

func (cp *condParser) advance() *condToken {
	t := cp.current()
	cp.pos++
	return t
}

func (cp *condParser) expression(rbp int) (*condToken, error) {
	t := cp.advance()
	left, err := cp.nud(t)
	if err != nil {
		return nil, err
	}
	for rbp < cp.current().bp {
		t = cp.advance()
		left, err = cp.led(t, left)
		if err != nil {
			return nil, err
		}
	}
	return left, nil
}

// nud handles a token in operand position.
func (cp *condParser) nud(t *condToken) (*condToken, error) {
	switch {
	case t.op == opNone:
		return t, nil
	case t.prefix:
		operand, err := cp.expression(t.bp)
		if err != nil {
			return nil, err
		}
		t.first = operand
		return t, nil
	case t.op == opEnd:
		return nil, syntaxErrorf("unexpected end of if expression")
	default:
		return nil, syntaxErrorf("not expecting %q in this position in if expression", t.name)
	}
}

// led handles a token in operator position.
func (cp *condParser) led(t *condToken, left *condToken) (*condToken, error) {
	if t.op == opNone || t.prefix || t.op == opEnd {
		return nil, syntaxErrorf("expecting an operator, found %q in if expression", t.name)
	}
	t.first = left
	second, err := cp.expression(t.bp)
	if err != nil {
		return nil, err
	}
	t.second = second
	return t, nil
}

// describeCondition renders the condition back to source-like text for
// error messages.
func describeCondition(t *condToken) string {
	if t == nil {
		return ""
	}
	if t.op == opNone {
		return t.name
	}
	if t.prefix {
		return "(" + t.name + " " + describeCondition(t.first) + ")"
	}
	return "(" + describeCondition(t.first) + " " + t.name + " " + describeCondition(t.second) + ")"
}
