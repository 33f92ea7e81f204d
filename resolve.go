package tango

import (
	"strconv"
	"strings"

	"github.com/oliverhaas/tango/value"
)

// Variable is a compiled operand: either a literal value or a dotted
// lookup path resolved against the context at render time.
//
// Resolution is silent. A missing key, index, or attribute at any segment
// yields value.Undefined(), never an error; only malformed source text
// fails, at compile time.
type Variable struct {
	lookups   []string
	literal   value.Value
	translate bool
	text      string
}

// NewVariable compiles a variable operand from its source text.
func NewVariable(text string) (*Variable, error) {
	v := &Variable{text: text}
	if text == "" {
		return nil, syntaxErrorf("empty variable")
	}

	if strings.HasPrefix(text, "_(") && strings.HasSuffix(text, ")") {
		v.translate = true
		text = text[2 : len(text)-1]
	}

	if len(text) >= 2 && (text[0] == '\'' || text[0] == '"') {
		if text[len(text)-1] != text[0] {
			return nil, syntaxErrorf("unterminated string literal: %s", v.text)
		}
		v.literal = value.FromString(unescapeLiteral(text[1 : len(text)-1]))
		return v, nil
	}

	first := text[0]
	if first == '-' || first == '.' || (first >= '0' && first <= '9') {
		if i, err := strconv.ParseInt(text, 10, 64); err == nil {
			v.literal = value.FromInt(i)
			return v, nil
		}
		if f, err := strconv.ParseFloat(text, 64); err == nil {
			v.literal = value.FromFloat(f)
			return v, nil
		}
		return nil, syntaxErrorf("could not parse number: %q", v.text)
	}

	if v.translate {
		return nil, syntaxErrorf("translation markers require a string literal: %q", v.text)
	}

	for _, bit := range strings.Split(text, ".") {
		if bit == "" {
			return nil, syntaxErrorf("variables may not begin, end, or contain consecutive dots: %q", v.text)
		}
		if strings.HasPrefix(bit, "_") {
			return nil, syntaxErrorf("variables may not begin with underscores: %q", v.text)
		}
	}
	v.lookups = strings.Split(text, ".")
	return v, nil
}

// mustVariable compiles a variable known to be well-formed; used for the
// operands tags synthesize internally.
func mustVariable(text string) *Variable {
	v, err := NewVariable(text)
	if err != nil {
		panic(err)
	}
	return v
}

func unescapeLiteral(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// IsLiteral reports whether the variable is a compile-time constant.
func (v *Variable) IsLiteral() bool {
	return v.lookups == nil
}

// Literal returns the constant for literal variables, Undefined otherwise.
func (v *Variable) Literal() value.Value {
	if v.lookups != nil {
		return value.Undefined()
	}
	return v.literal
}

// Text returns the original source text of the operand.
func (v *Variable) Text() string {
	return v.text
}

// Resolve evaluates the operand against the context.
func (v *Variable) Resolve(ctx *Context) value.Value {
	if v.lookups == nil {
		return v.literal
	}
	current, ok := ctx.Get(v.lookups[0])
	if !ok {
		return value.Undefined()
	}
	current = maybeCall(current)
	for _, bit := range v.lookups[1:] {
		if current.IsUndefined() {
			return current
		}
		current = maybeCall(resolveSegment(current, bit))
	}
	return current
}

// resolveSegment applies the lookup priority chain to one path segment:
// mapping key, then sequence index when the segment is a non-negative
// integer, then attribute.
func resolveSegment(current value.Value, bit string) value.Value {
	if m, ok := current.AsMap(); ok {
		if v, exists := m[bit]; exists {
			return v
		}
	}
	if idx, err := strconv.ParseInt(bit, 10, 64); err == nil && idx >= 0 {
		if item := current.GetItem(value.FromInt(idx)); !item.IsUndefined() {
			return item
		}
	}
	return current.GetAttr(bit)
}

// maybeCall invokes a resolved callable segment with no arguments.
// Callables marked as altering data resolve to a miss; callables marked
// do-not-call resolve to themselves; call failures resolve to a miss.
func maybeCall(v value.Value) value.Value {
	c, ok := v.AsCallable()
	if !ok {
		return v
	}
	if ad, ok := c.(value.AltersData); ok && ad.AltersData() {
		return value.Undefined()
	}
	if dnc, ok := c.(value.DoNotCall); ok && dnc.DoNotCall() {
		return v
	}
	result, err := c.Call()
	if err != nil {
		return value.Undefined()
	}
	return result
}

// filterCall is one applied filter: its registry entry plus the optional
// compiled argument.
type filterCall struct {
	name  string
	entry *filterEntry
	arg   *Variable
}

// FilterExpression is a compiled `var.path|filter:arg|filter2` expression:
// a Variable plus an ordered filter chain.
type FilterExpression struct {
	variable *Variable
	filters  []filterCall
	text     string
}

// NewFilterExpression compiles a filter expression, checking every filter
// name against the library.
func NewFilterExpression(text string, lib *Library) (*FilterExpression, error) {
	parts := splitOutsideQuotes(text, '|')
	variable, err := NewVariable(strings.TrimSpace(parts[0]))
	if err != nil {
		return nil, err
	}
	fe := &FilterExpression{variable: variable, text: text}
	for _, part := range parts[1:] {
		part = strings.TrimSpace(part)
		nameArg := splitOutsideQuotes(part, ':')
		name := strings.TrimSpace(nameArg[0])
		entry, ok := lib.filter(name)
		if !ok {
			return nil, NewError(ErrUnknownFilter, name)
		}
		fc := filterCall{name: name, entry: entry}
		if len(nameArg) > 1 {
			arg, err := NewVariable(strings.TrimSpace(strings.Join(nameArg[1:], ":")))
			if err != nil {
				return nil, err
			}
			fc.arg = arg
		}
		fe.filters = append(fe.filters, fc)
	}
	return fe, nil
}

// splitOutsideQuotes splits on sep, ignoring separators inside single or
// double quoted runs. Backslash escapes the next character inside quotes.
func splitOutsideQuotes(s string, sep byte) []string {
	var parts []string
	var quote byte
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == sep:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

// Text returns the original source text of the expression.
func (fe *FilterExpression) Text() string {
	return fe.text
}

// Var returns the expression's base variable.
func (fe *FilterExpression) Var() *Variable {
	return fe.variable
}

// HasFilters reports whether any filters apply.
func (fe *FilterExpression) HasFilters() bool {
	return len(fe.filters) > 0
}

// Resolve evaluates the expression. Lookup misses resolve to Undefined;
// filter failures return a filter error.
func (fe *FilterExpression) Resolve(ctx *Context) (value.Value, error) {
	return fe.ResolveWithValue(ctx, fe.variable.Resolve(ctx))
}

// ResolveWithValue applies the filter chain to an already-resolved base
// value. Loop fast paths use this to skip re-resolving the loop variable.
func (fe *FilterExpression) ResolveWithValue(ctx *Context, obj value.Value) (value.Value, error) {
	for _, fc := range fe.filters {
		arg := value.Undefined()
		if fc.arg != nil {
			arg = fc.arg.Resolve(ctx)
		}
		var err error
		obj, err = fc.entry.apply(obj, arg, ctx.Autoescape())
		if err != nil {
			if te, ok := err.(*Error); ok {
				return value.Undefined(), te
			}
			return value.Undefined(), NewError(ErrFilter, fc.name+": "+err.Error())
		}
	}
	return obj, nil
}

// ResolveIgnore evaluates the expression leniently: every failure,
// including filter errors, collapses to Undefined. Tag arguments resolve
// this way so bad data degrades instead of aborting the render.
func (fe *FilterExpression) ResolveIgnore(ctx *Context) value.Value {
	v, err := fe.Resolve(ctx)
	if err != nil {
		return value.Undefined()
	}
	return v
}
