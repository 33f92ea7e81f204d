package tango

import (
	"fmt"
	"strings"

	"github.com/oliverhaas/tango/lexer"
	"github.com/oliverhaas/tango/value"
)

// LoopFrame is the forloop object visible inside a {% for %} body. It
// stores only the iteration index and length; the counter attributes are
// computed on demand. The frame doubles as the state store for tags bound
// to the loop (ifchanged), so their state resets when an outer loop
// restarts the inner one.
type LoopFrame struct {
	i      int
	length int
	parent *LoopFrame

	extra  map[string]value.Value
	states map[Node]any
}

var emptyParentLoop = value.FromMap(map[string]value.Value{})

func (f *LoopFrame) GetAttr(name string) value.Value {
	switch name {
	case "counter0":
		return value.FromInt(int64(f.i))
	case "counter":
		return value.FromInt(int64(f.i) + 1)
	case "revcounter":
		return value.FromInt(int64(f.length - f.i))
	case "revcounter0":
		return value.FromInt(int64(f.length - f.i - 1))
	case "first":
		return value.FromBool(f.i == 0)
	case "last":
		return value.FromBool(f.i == f.length-1)
	case "length":
		return value.FromInt(int64(f.length))
	case "parentloop":
		if f.parent == nil {
			return emptyParentLoop
		}
		return value.FromObject(f.parent)
	}
	if f.extra != nil {
		if v, ok := f.extra[name]; ok {
			return v
		}
	}
	return value.Undefined()
}

func (f *LoopFrame) SetAttr(name string, v value.Value) {
	if f.extra == nil {
		f.extra = make(map[string]value.Value)
	}
	f.extra[name] = v
}

// nodeStates returns the per-node state table bound to this loop
// iteration scope.
func (f *LoopFrame) nodeStates() map[Node]any {
	if f.states == nil {
		f.states = make(map[Node]any)
	}
	return f.states
}

// bodyKind classifies a loop body node at compile time so the render loop
// can dispatch without re-inspecting node types per iteration.
type bodyKind int

const (
	bodyText bodyKind = iota
	// bodyDirectVar is {{ loopvar }} with no filters.
	bodyDirectVar
	// bodyLoopAttr is {{ loopvar.attr }} with no filters.
	bodyLoopAttr
	// bodyLoopAttrFilter is {{ loopvar.attr|... }}.
	bodyLoopAttrFilter
	// bodyLoopIf is an {% if %} over loopvar.attr conditions only.
	bodyLoopIf
	// bodyOther renders through the node's own Render.
	bodyOther
)

type bodyPlan struct {
	kind bodyKind
	node Node

	text string            // bodyText
	fe   *FilterExpression // bodyDirectVar, bodyLoopAttr*
	attr string            // bodyLoopAttr*

	ifBranches []loopIfBranch // bodyLoopIf
	ifSameAttr string         // non-empty when every branch tests one attr
}

// loopIfBranch is one pre-analyzed (condition, body) pair of a classified
// {% if %}: a bare truthiness test or a comparison of loopvar.attr against
// a constant. attr is empty for the else branch.
type loopIfBranch struct {
	attr    string
	op      condOp // opNone for a bare truthiness test
	rhs     value.Value
	nl      NodeList
	text    string
	hasText bool
}

// ForNode renders {% for %}. The body is classified once at compile time;
// per-iteration dispatch runs over the classification, falling back to the
// general node render whenever an element does not fit the analyzed shape.
// The classified paths must stay byte-identical to the general path.
type ForNode struct {
	loopvars  []string
	sequence  *FilterExpression
	reversed  bool
	bodyNodes NodeList
	emptyBody NodeList

	// noCtxWrite means every body node is text or the bare loop variable,
	// so iterations skip the scope write entirely.
	noCtxWrite bool
	plans      []bodyPlan
}

// NewForNode builds a loop node and runs the body classification.
func NewForNode(loopvars []string, sequence *FilterExpression, isReversed bool, body, empty NodeList) *ForNode {
	n := &ForNode{
		loopvars:  loopvars,
		sequence:  sequence,
		reversed:  isReversed,
		bodyNodes: body,
		emptyBody: empty,
	}
	n.classify()
	return n
}

func (n *ForNode) classify() {
	if len(n.loopvars) != 1 {
		return
	}
	loopvar := n.loopvars[0]

	n.noCtxWrite = true
	for _, nd := range n.bodyNodes {
		if _, ok := nd.(*TextNode); ok {
			continue
		}
		if vn, ok := nd.(*VariableNode); ok && isDirectLoopvar(vn.fe, loopvar) {
			continue
		}
		n.noCtxWrite = false
		break
	}

	n.plans = make([]bodyPlan, len(n.bodyNodes))
	for j, nd := range n.bodyNodes {
		plan := bodyPlan{kind: bodyOther, node: nd}
		switch t := nd.(type) {
		case *TextNode:
			plan.kind = bodyText
			plan.text = t.Text
		case *VariableNode:
			plan.fe = t.fe
			if attr, ok := loopAttrOf(t.fe, loopvar); ok {
				plan.attr = attr
				if t.fe.HasFilters() {
					plan.kind = bodyLoopAttrFilter
				} else {
					plan.kind = bodyLoopAttr
				}
			} else if isDirectLoopvar(t.fe, loopvar) {
				plan.kind = bodyDirectVar
			}
		case *IfNode:
			if branches, ok := classifyLoopIf(t, loopvar); ok {
				plan.kind = bodyLoopIf
				plan.ifBranches = branches
				plan.ifSameAttr = commonBranchAttr(branches)
			}
		}
		n.plans[j] = plan
	}
}

// isDirectLoopvar reports whether fe is exactly the bare loop variable
// with no filters.
func isDirectLoopvar(fe *FilterExpression, loopvar string) bool {
	if fe.HasFilters() {
		return false
	}
	v := fe.variable
	return !v.translate && len(v.lookups) == 1 && v.lookups[0] == loopvar
}

// loopAttrOf matches the {{ loopvar.attr }} shape and returns the
// attribute name.
func loopAttrOf(fe *FilterExpression, loopvar string) (string, bool) {
	v := fe.variable
	if v.translate || len(v.lookups) != 2 || v.lookups[0] != loopvar {
		return "", false
	}
	return v.lookups[1], true
}

// classifyLoopIf analyzes an IfNode whose conditions all test
// loopvar.attr, either bare or compared against a constant.
func classifyLoopIf(n *IfNode, loopvar string) ([]loopIfBranch, bool) {
	branches := make([]loopIfBranch, 0, len(n.conditions))
	for _, cn := range n.conditions {
		br := loopIfBranch{nl: cn.nl}
		if len(cn.nl) == 1 {
			if tn, ok := cn.nl[0].(*TextNode); ok {
				br.text = tn.Text
				br.hasText = true
				br.nl = nil
			}
		}
		if cn.cond == nil {
			branches = append(branches, br)
			continue
		}
		cond := cn.cond
		switch {
		case cond.op == opNone:
			attr, ok := bareLoopAttrCond(cond, loopvar)
			if !ok {
				return nil, false
			}
			br.attr = attr
			br.op = opNone
		case cond.op >= opEq && cond.op <= opLe:
			attr, ok := bareLoopAttrCond(cond.first, loopvar)
			if !ok {
				return nil, false
			}
			rhs, ok := constantCond(cond.second)
			if !ok {
				return nil, false
			}
			br.attr = attr
			br.op = cond.op
			br.rhs = rhs
		default:
			return nil, false
		}
		branches = append(branches, br)
	}
	if len(branches) == 0 {
		return nil, false
	}
	return branches, true
}

func bareLoopAttrCond(t *condToken, loopvar string) (string, bool) {
	if t == nil || t.op != opNone || t.fe.HasFilters() {
		return "", false
	}
	return loopAttrOf(t.fe, loopvar)
}

func constantCond(t *condToken) (value.Value, bool) {
	if t == nil || t.op != opNone || t.fe.HasFilters() || !t.fe.variable.IsLiteral() {
		return value.Undefined(), false
	}
	return t.fe.variable.Literal(), true
}

func commonBranchAttr(branches []loopIfBranch) string {
	same := ""
	for _, br := range branches {
		if br.attr == "" {
			continue
		}
		if same == "" {
			same = br.attr
		} else if br.attr != same {
			return ""
		}
	}
	return same
}

func (n *ForNode) Render(ctx *Context) (string, error) {
	parent := ctx.forloop
	release := ctx.Push(nil)
	defer release()
	defer func() { ctx.forloop = parent }()

	seq := n.sequence.ResolveIgnore(ctx)
	items := seq.Iter()
	if len(items) == 0 {
		if n.emptyBody == nil {
			return "", nil
		}
		return n.emptyBody.Render(ctx)
	}
	if n.reversed {
		rev := make([]value.Value, len(items))
		for i, item := range items {
			rev[len(items)-1-i] = item
		}
		items = rev
	}

	frame := &LoopFrame{length: len(items), parent: parent}
	ctx.forloop = frame
	top := ctx.top()
	top["forloop"] = value.FromObject(frame)

	var b strings.Builder

	if len(n.loopvars) > 1 {
		for i, item := range items {
			frame.i = i
			elems, ok := item.AsSlice()
			if !ok || len(elems) != len(n.loopvars) {
				got := 1
				if ok {
					got = len(elems)
				}
				return "", NewError(ErrUnpack, fmt.Sprintf(
					"need %d values to unpack in for loop; got %d", len(n.loopvars), got))
			}
			scope := make(map[string]value.Value, len(elems))
			for k, name := range n.loopvars {
				scope[name] = elems[k]
			}
			inner := ctx.Push(scope)
			s, err := n.bodyNodes.Render(ctx)
			inner()
			if err != nil {
				return "", err
			}
			b.WriteString(s)
		}
		return b.String(), nil
	}

	loopvar := n.loopvars[0]

	if n.noCtxWrite {
		// No scope writes: every body node is text or the bare loop
		// variable, rendered straight off the element. Callable elements
		// take the general path, which auto-calls on resolution.
		for i, item := range items {
			frame.i = i
			if _, isCall := item.AsCallable(); isCall {
				top[loopvar] = item
				for _, plan := range n.plans {
					if plan.kind == bodyText {
						b.WriteString(plan.text)
					} else if err := n.renderFallback(ctx, &b, plan.node); err != nil {
						return "", err
					}
				}
				continue
			}
			for _, plan := range n.plans {
				if plan.kind == bodyText {
					b.WriteString(plan.text)
				} else {
					b.WriteString(renderValue(ctx, item))
				}
			}
		}
		return b.String(), nil
	}

	for i, item := range items {
		frame.i = i
		top[loopvar] = item
		for _, plan := range n.plans {
			if err := n.renderPlan(ctx, &b, plan, item); err != nil {
				return "", err
			}
		}
	}
	return b.String(), nil
}

// renderPlan runs one classified body node for one element.
func (n *ForNode) renderPlan(ctx *Context, b *strings.Builder, plan bodyPlan, item value.Value) error {
	switch plan.kind {
	case bodyText:
		b.WriteString(plan.text)
		return nil

	case bodyDirectVar:
		if _, isCall := item.AsCallable(); isCall {
			return n.renderFallback(ctx, b, plan.node)
		}
		b.WriteString(renderValue(ctx, item))
		return nil

	case bodyLoopAttr:
		av := resolveSegment(item, plan.attr)
		if _, isCall := av.AsCallable(); isCall || av.IsUndefined() {
			return n.renderFallback(ctx, b, plan.node)
		}
		b.WriteString(renderValue(ctx, av))
		return nil

	case bodyLoopAttrFilter:
		av := resolveSegment(item, plan.attr)
		if _, isCall := av.AsCallable(); isCall || av.IsUndefined() {
			return n.renderFallback(ctx, b, plan.node)
		}
		out, err := plan.fe.ResolveWithValue(ctx, av)
		if err != nil {
			return err
		}
		b.WriteString(renderValue(ctx, out))
		return nil

	case bodyLoopIf:
		return n.renderLoopIf(ctx, b, plan, item)

	default:
		return n.renderFallback(ctx, b, plan.node)
	}
}

func (n *ForNode) renderFallback(ctx *Context, b *strings.Builder, nd Node) error {
	s, err := nd.Render(ctx)
	if err != nil {
		return err
	}
	b.WriteString(s)
	return nil
}

func (n *ForNode) renderLoopIf(ctx *Context, b *strings.Builder, plan bodyPlan, item value.Value) error {
	// When every condition tests the same attribute, resolve it once.
	var sharedVal value.Value
	if plan.ifSameAttr != "" {
		sharedVal = resolveSegment(item, plan.ifSameAttr)
		if _, isCall := sharedVal.AsCallable(); isCall {
			return n.renderFallback(ctx, b, plan.node)
		}
	}

	for _, br := range plan.ifBranches {
		var matched bool
		if br.attr == "" {
			matched = true
		} else {
			av := sharedVal
			if plan.ifSameAttr == "" {
				av = resolveSegment(item, br.attr)
				if _, isCall := av.AsCallable(); isCall {
					return n.renderFallback(ctx, b, plan.node)
				}
			}
			switch br.op {
			case opNone:
				matched = av.IsTrue()
			case opEq:
				matched = value.Equal(av, br.rhs)
			case opNe:
				matched = !value.Equal(av, br.rhs)
			default:
				cmp, ok := value.Compare(av, br.rhs)
				if ok {
					switch br.op {
					case opGt:
						matched = cmp > 0
					case opGe:
						matched = cmp >= 0
					case opLt:
						matched = cmp < 0
					case opLe:
						matched = cmp <= 0
					}
				}
			}
		}
		if matched {
			if br.hasText {
				b.WriteString(br.text)
				return nil
			}
			return n.renderFallback(ctx, b, br.nl)
		}
	}
	return nil
}

func compileFor(p *Parser, tok lexer.Token) (Node, error) {
	bits := SplitContents(tok.Contents)
	if len(bits) < 4 {
		return nil, syntaxErrorf("'for' statements should have at least four words: %s", tok.Contents)
	}

	isReversed := bits[len(bits)-1] == "reversed"
	inIndex := len(bits) - 2
	if isReversed {
		inIndex = len(bits) - 3
	}
	if bits[inIndex] != "in" {
		return nil, syntaxErrorf("'for' statements should use the format 'for x in y': %s", tok.Contents)
	}

	var loopvars []string
	for _, chunk := range strings.Split(strings.Join(bits[1:inIndex], " "), ",") {
		name := strings.TrimSpace(chunk)
		if name == "" || strings.ContainsAny(name, " \"'|") {
			return nil, syntaxErrorf("'for' tag received an invalid argument: %s", tok.Contents)
		}
		loopvars = append(loopvars, name)
	}

	sequence, err := p.CompileFilter(bits[inIndex+1])
	if err != nil {
		return nil, err
	}
	body, err := p.Parse("empty", "endfor")
	if err != nil {
		return nil, err
	}
	var empty NodeList
	next := p.NextToken()
	if next.Contents == "empty" {
		empty, err = p.Parse("endfor")
		if err != nil {
			return nil, err
		}
		p.DeleteFirstToken()
	}
	return NewForNode(loopvars, sequence, isReversed, body, empty), nil
}
