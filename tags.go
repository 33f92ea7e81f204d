package tango

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/oliverhaas/tango/lexer"
	"github.com/oliverhaas/tango/value"
)

// condNodelist pairs one condition with its body. A nil condition is the
// else branch.
type condNodelist struct {
	cond *condToken
	nl   NodeList
}

// IfNode renders the first branch whose condition evaluates truthy.
type IfNode struct {
	conditions []condNodelist
}

func (n *IfNode) Render(ctx *Context) (string, error) {
	// Single condition with no elif/else is the common case.
	if len(n.conditions) == 1 {
		cn := n.conditions[0]
		if cn.cond.Eval(ctx).IsTrue() {
			return cn.nl.Render(ctx)
		}
		return "", nil
	}
	for _, cn := range n.conditions {
		if cn.cond == nil || cn.cond.Eval(ctx).IsTrue() {
			return cn.nl.Render(ctx)
		}
	}
	return "", nil
}

func compileIf(p *Parser, tok lexer.Token) (Node, error) {
	bits := SplitContents(tok.Contents)[1:]
	cond, err := parseCondition(bits, p)
	if err != nil {
		return nil, err
	}
	nl, err := p.Parse("elif", "else", "endif")
	if err != nil {
		return nil, err
	}
	conditions := []condNodelist{{cond: cond, nl: nl}}
	next := p.NextToken()

	for strings.HasPrefix(next.Contents, "elif") {
		bits = SplitContents(next.Contents)[1:]
		cond, err = parseCondition(bits, p)
		if err != nil {
			return nil, err
		}
		nl, err = p.Parse("elif", "else", "endif")
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, condNodelist{cond: cond, nl: nl})
		next = p.NextToken()
	}
	if next.Contents == "else" {
		nl, err = p.Parse("endif")
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, condNodelist{nl: nl})
		next = p.NextToken()
	}
	if next.Contents != "endif" {
		return nil, syntaxErrorf("malformed tag: %q", next.Contents)
	}
	return &IfNode{conditions: conditions}, nil
}

// CycleNode emits the next of its declared values each time it renders.
// The iteration index lives in the render context keyed by the node, so
// one compiled node cycles independently in concurrent renders. When all
// values are string literals the node precomputes them, and whether any
// needs escaping, at compile time.
type CycleNode struct {
	values       []*FilterExpression
	variableName string
	silent       bool

	preresolved []string
	needsEscape bool
}

// NewCycleNode builds a cycle node and precomputes the literal fast path.
func NewCycleNode(values []*FilterExpression, variableName string, silent bool) *CycleNode {
	n := &CycleNode{values: values, variableName: variableName, silent: silent}
	if variableName == "" && !silent {
		pre := make([]string, 0, len(values))
		for _, fe := range values {
			if fe.HasFilters() || !fe.variable.IsLiteral() {
				break
			}
			s, ok := fe.variable.Literal().AsString()
			if !ok {
				break
			}
			pre = append(pre, s)
		}
		if len(pre) == len(values) {
			n.preresolved = pre
			for _, s := range pre {
				if strings.IndexAny(s, `&<>"'`) >= 0 {
					n.needsEscape = true
					break
				}
			}
		}
	}
	return n
}

func (n *CycleNode) Render(ctx *Context) (string, error) {
	idx, _ := ctx.RenderContext[n].(int)
	ctx.RenderContext[n] = (idx + 1) % len(n.values)

	if n.preresolved != nil {
		s := n.preresolved[idx]
		if ctx.Autoescape() && n.needsEscape {
			return EscapeHTML(s), nil
		}
		return s, nil
	}

	v, err := n.values[idx].Resolve(ctx)
	if err != nil {
		return "", err
	}
	if n.variableName != "" {
		ctx.SetUpward(n.variableName, v)
	}
	if n.silent {
		return "", nil
	}
	return renderValue(ctx, v), nil
}

// Reset rewinds the cycle so its next render emits the first value again.
func (n *CycleNode) Reset(ctx *Context) {
	ctx.RenderContext[n] = 0
}

func compileCycle(p *Parser, tok lexer.Token) (Node, error) {
	args := SplitContents(tok.Contents)
	if len(args) < 2 {
		return nil, syntaxErrorf("'cycle' tag requires at least two arguments")
	}

	if len(args) == 2 {
		// {% cycle name %} references an earlier named cycle. It returns
		// the same node object, so the reference shares its state.
		name := args[1]
		node, ok := p.namedCycleNodes[name]
		if !ok {
			return nil, syntaxErrorf("named cycle %q does not exist", name)
		}
		p.lastCycleNode = node
		return node, nil
	}

	asForm := false
	silent := false
	if len(args) > 4 {
		if args[len(args)-3] == "as" {
			if args[len(args)-1] != "silent" {
				return nil, syntaxErrorf("only 'silent' flag is allowed after cycle's name, not %q", args[len(args)-1])
			}
			asForm = true
			silent = true
			args = args[:len(args)-1]
		} else if args[len(args)-2] == "as" {
			asForm = true
		}
	}

	var node *CycleNode
	if asForm {
		name := args[len(args)-1]
		values, err := compileFilterList(p, args[1:len(args)-2])
		if err != nil {
			return nil, err
		}
		node = NewCycleNode(values, name, silent)
		if p.namedCycleNodes == nil {
			p.namedCycleNodes = make(map[string]*CycleNode)
		}
		p.namedCycleNodes[name] = node
	} else {
		values, err := compileFilterList(p, args[1:])
		if err != nil {
			return nil, err
		}
		node = NewCycleNode(values, "", false)
	}
	p.lastCycleNode = node
	return node, nil
}

func compileFilterList(p *Parser, bits []string) ([]*FilterExpression, error) {
	fes := make([]*FilterExpression, len(bits))
	for i, bit := range bits {
		fe, err := p.CompileFilter(bit)
		if err != nil {
			return nil, err
		}
		fes[i] = fe
	}
	return fes, nil
}

// ResetCycleNode rewinds the cycle node it references.
type ResetCycleNode struct {
	node *CycleNode
}

func (n *ResetCycleNode) Render(ctx *Context) (string, error) {
	n.node.Reset(ctx)
	return "", nil
}

func compileResetCycle(p *Parser, tok lexer.Token) (Node, error) {
	args := SplitContents(tok.Contents)
	if len(args) > 2 {
		return nil, syntaxErrorf("%q tag accepts at most one argument", args[0])
	}
	if len(args) == 2 {
		node, ok := p.namedCycleNodes[args[1]]
		if !ok {
			return nil, syntaxErrorf("named cycle %q does not exist", args[1])
		}
		return &ResetCycleNode{node: node}, nil
	}
	if p.lastCycleNode == nil {
		return nil, syntaxErrorf("no cycles in template")
	}
	return &ResetCycleNode{node: p.lastCycleNode}, nil
}

// IfChangedNode renders its body only when the watched values (or its own
// rendered output) differ from the previous iteration. Inside a loop the
// state lives on the loop frame, so an outer loop restarting the inner
// one resets it; outside loops it lives in the render context.
type IfChangedNode struct {
	trueBody  NodeList
	falseBody NodeList
	vars      []*FilterExpression
}

func (n *IfChangedNode) Render(ctx *Context) (string, error) {
	states := ctx.RenderContext
	if ctx.forloop != nil {
		states = ctx.forloop.nodeStates()
	}

	var compareTo any
	trueOut := ""
	haveOut := false
	if len(n.vars) > 0 {
		vals := make([]value.Value, len(n.vars))
		for i, fe := range n.vars {
			vals[i] = fe.ResolveIgnore(ctx)
		}
		compareTo = vals
	} else {
		out, err := n.trueBody.Render(ctx)
		if err != nil {
			return "", err
		}
		compareTo = out
		trueOut = out
		haveOut = true
	}

	prev, seen := states[n]
	if !seen || !ifchangedStateEqual(prev, compareTo) {
		states[n] = compareTo
		if haveOut {
			return trueOut, nil
		}
		return n.trueBody.Render(ctx)
	}
	if n.falseBody != nil {
		return n.falseBody.Render(ctx)
	}
	return "", nil
}

func ifchangedStateEqual(a, b any) bool {
	switch av := a.(type) {
	case string:
		bs, ok := b.(string)
		return ok && av == bs
	case []value.Value:
		bv, ok := b.([]value.Value)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !value.Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func compileIfChanged(p *Parser, tok lexer.Token) (Node, error) {
	bits := SplitContents(tok.Contents)
	trueBody, err := p.Parse("else", "endifchanged")
	if err != nil {
		return nil, err
	}
	var falseBody NodeList
	next := p.NextToken()
	if next.Contents == "else" {
		falseBody, err = p.Parse("endifchanged")
		if err != nil {
			return nil, err
		}
		p.DeleteFirstToken()
	}
	vars, err := compileFilterList(p, bits[1:])
	if err != nil {
		return nil, err
	}
	return &IfChangedNode{trueBody: trueBody, falseBody: falseBody, vars: vars}, nil
}

// WithNode renders its body with extra bindings pushed as a scope.
type WithNode struct {
	extra map[string]*FilterExpression
	body  NodeList
}

func (n *WithNode) Render(ctx *Context) (string, error) {
	scope := make(map[string]value.Value, len(n.extra))
	for name, fe := range n.extra {
		v, err := fe.Resolve(ctx)
		if err != nil {
			return "", err
		}
		scope[name] = v
	}
	release := ctx.Push(scope)
	defer release()
	return n.body.Render(ctx)
}

func compileWith(p *Parser, tok lexer.Token) (Node, error) {
	bits := SplitContents(tok.Contents)
	remaining := bits[1:]
	extra := make(map[string]*FilterExpression)

	// Legacy form: {% with expr as name %}.
	if len(remaining) == 3 && remaining[1] == "as" {
		fe, err := p.CompileFilter(remaining[0])
		if err != nil {
			return nil, err
		}
		extra[remaining[2]] = fe
	} else {
		for _, bit := range remaining {
			eq := strings.IndexByte(bit, '=')
			if eq <= 0 {
				return nil, syntaxErrorf("%q expected at least one variable assignment", bits[0])
			}
			fe, err := p.CompileFilter(bit[eq+1:])
			if err != nil {
				return nil, err
			}
			extra[bit[:eq]] = fe
		}
	}
	if len(extra) == 0 {
		return nil, syntaxErrorf("%q expected at least one variable assignment", bits[0])
	}

	body, err := p.Parse("endwith")
	if err != nil {
		return nil, err
	}
	p.DeleteFirstToken()
	return &WithNode{extra: extra, body: body}, nil
}

// FilterNode pipes its rendered body through a filter chain.
type FilterNode struct {
	fe   *FilterExpression
	body NodeList
}

func (n *FilterNode) Render(ctx *Context) (string, error) {
	out, err := n.body.Render(ctx)
	if err != nil {
		return "", err
	}
	release := ctx.Push(map[string]value.Value{"var": value.FromSafeString(out)})
	defer release()
	v, err := n.fe.Resolve(ctx)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

func compileFilterTag(p *Parser, tok lexer.Token) (Node, error) {
	rest := strings.TrimSpace(strings.TrimPrefix(tok.Contents, "filter"))
	if rest == "" {
		return nil, syntaxErrorf("'filter' tag requires at least one filter")
	}
	for _, part := range splitOutsideQuotes(rest, '|') {
		name := strings.TrimSpace(splitOutsideQuotes(part, ':')[0])
		if name == "escape" || name == "safe" {
			return nil, syntaxErrorf("%q is not permitted in the 'filter' tag, use the 'autoescape' tag instead", name)
		}
	}
	fe, err := p.CompileFilter("var|" + rest)
	if err != nil {
		return nil, err
	}
	body, err := p.Parse("endfilter")
	if err != nil {
		return nil, err
	}
	p.DeleteFirstToken()
	return &FilterNode{fe: fe, body: body}, nil
}

// AutoescapeNode forces the autoescape flag for its body.
type AutoescapeNode struct {
	setting bool
	body    NodeList
}

func (n *AutoescapeNode) Render(ctx *Context) (string, error) {
	old := ctx.SetAutoescape(n.setting)
	out, err := n.body.Render(ctx)
	ctx.SetAutoescape(old)
	return out, err
}

func compileAutoescape(p *Parser, tok lexer.Token) (Node, error) {
	args := strings.Fields(tok.Contents)
	if len(args) != 2 {
		return nil, syntaxErrorf("'autoescape' tag requires exactly one argument")
	}
	if args[1] != "on" && args[1] != "off" {
		return nil, syntaxErrorf("'autoescape' argument should be 'on' or 'off'")
	}
	body, err := p.Parse("endautoescape")
	if err != nil {
		return nil, err
	}
	p.DeleteFirstToken()
	return &AutoescapeNode{setting: args[1] == "on", body: body}, nil
}

// VerbatimNode emits its captured content untouched.
type VerbatimNode struct {
	content string
}

func (n *VerbatimNode) Render(ctx *Context) (string, error) {
	return n.content, nil
}

func compileVerbatim(p *Parser, tok lexer.Token) (Node, error) {
	body, err := p.Parse("endverbatim")
	if err != nil {
		return nil, err
	}
	p.DeleteFirstToken()
	// The lexer already turned the body into text tokens.
	var b strings.Builder
	for _, nd := range body {
		if tn, ok := nd.(*TextNode); ok {
			b.WriteString(tn.Text)
		}
	}
	return &VerbatimNode{content: b.String()}, nil
}

// CommentNode renders nothing.
type CommentNode struct{}

func (n *CommentNode) Render(ctx *Context) (string, error) {
	return "", nil
}

func compileComment(p *Parser, tok lexer.Token) (Node, error) {
	if err := p.SkipPast("endcomment"); err != nil {
		return nil, err
	}
	return &CommentNode{}, nil
}

// FirstOfNode emits the first truthy argument, optionally binding it
// instead of emitting.
type FirstOfNode struct {
	vars  []*FilterExpression
	asvar string
}

func (n *FirstOfNode) Render(ctx *Context) (string, error) {
	first := ""
	for _, fe := range n.vars {
		v := fe.ResolveIgnore(ctx)
		if v.IsTrue() {
			first = renderValue(ctx, v)
			break
		}
	}
	if n.asvar != "" {
		ctx.Set(n.asvar, value.FromSafeString(first))
		return "", nil
	}
	return first, nil
}

func compileFirstOf(p *Parser, tok lexer.Token) (Node, error) {
	bits := SplitContents(tok.Contents)[1:]
	if len(bits) == 0 {
		return nil, syntaxErrorf("'firstof' statement requires at least one argument")
	}
	asvar := ""
	if len(bits) >= 2 && bits[len(bits)-2] == "as" {
		asvar = bits[len(bits)-1]
		bits = bits[:len(bits)-2]
	}
	vars, err := compileFilterList(p, bits)
	if err != nil {
		return nil, err
	}
	return &FirstOfNode{vars: vars, asvar: asvar}, nil
}

// RegroupNode groups consecutive elements of a list by a common lookup
// and binds the grouped result. Each group is a map with "grouper" and
// "list" keys.
type RegroupNode struct {
	target     *FilterExpression
	expression *FilterExpression
	varName    string
}

func (n *RegroupNode) Render(ctx *Context) (string, error) {
	objList := n.target.ResolveIgnore(ctx)
	if objList.IsUndefined() || objList.IsNone() {
		ctx.Set(n.varName, value.FromSlice(nil))
		return "", nil
	}

	var groups []value.Value
	var currentKey value.Value
	var currentList []value.Value
	flush := func() {
		if currentList != nil {
			groups = append(groups, value.FromMap(map[string]value.Value{
				"grouper": currentKey,
				"list":    value.FromSlice(currentList),
			}))
		}
	}
	for _, obj := range objList.Iter() {
		// The grouping expression is written against varName, so the
		// element sits there temporarily while it resolves.
		ctx.Set(n.varName, obj)
		key := n.expression.ResolveIgnore(ctx)
		if currentList == nil || !value.Equal(key, currentKey) {
			flush()
			currentKey = key
			currentList = []value.Value{}
		}
		currentList = append(currentList, obj)
	}
	flush()
	ctx.Set(n.varName, value.FromSlice(groups))
	return "", nil
}

func compileRegroup(p *Parser, tok lexer.Token) (Node, error) {
	bits := SplitContents(tok.Contents)
	if len(bits) != 6 {
		return nil, syntaxErrorf("'regroup' tag takes five arguments")
	}
	if bits[2] != "by" {
		return nil, syntaxErrorf("second argument to 'regroup' tag must be 'by'")
	}
	if bits[4] != "as" {
		return nil, syntaxErrorf("next-to-last argument to 'regroup' tag must be 'as'")
	}
	target, err := p.CompileFilter(bits[1])
	if err != nil {
		return nil, err
	}
	varName := bits[5]
	expression, err := p.CompileFilter(varName + "." + bits[3])
	if err != nil {
		return nil, err
	}
	return &RegroupNode{target: target, expression: expression, varName: varName}, nil
}

// WidthRatioNode computes value/max scaled to a width. Zero division
// yields "0"; unresolvable or non-numeric inputs yield ""; a non-numeric
// final argument is a template bug and fails hard.
type WidthRatioNode struct {
	valExpr  *FilterExpression
	maxExpr  *FilterExpression
	maxWidth *FilterExpression
	asvar    string
}

func (n *WidthRatioNode) Render(ctx *Context) (string, error) {
	width, ok := looseInt(n.maxWidth.ResolveIgnore(ctx))
	if !ok {
		return "", NewError(ErrSyntax, "widthratio final argument must be a number")
	}

	result := ""
	v, okV := looseFloat(n.valExpr.ResolveIgnore(ctx))
	m, okM := looseFloat(n.maxExpr.ResolveIgnore(ctx))
	if okV && okM {
		if m == 0 {
			result = "0"
		} else {
			ratio := v / m * float64(width)
			if !math.IsInf(ratio, 0) && !math.IsNaN(ratio) {
				// Python-style round-half-to-even.
				result = strconv.FormatInt(int64(math.RoundToEven(ratio)), 10)
			}
		}
	}

	if n.asvar != "" {
		ctx.Set(n.asvar, value.FromString(result))
		return "", nil
	}
	return result, nil
}

func looseInt(v value.Value) (int64, bool) {
	if i, ok := v.AsInt(); ok {
		return i, true
	}
	if s, ok := v.AsString(); ok {
		if i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return i, true
		}
	}
	return 0, false
}

func looseFloat(v value.Value) (float64, bool) {
	if f, ok := v.AsFloat(); ok {
		return f, true
	}
	if b, ok := v.AsBool(); ok {
		if b {
			return 1, true
		}
		return 0, true
	}
	if s, ok := v.AsString(); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func compileWidthRatio(p *Parser, tok lexer.Token) (Node, error) {
	bits := SplitContents(tok.Contents)
	asvar := ""
	if len(bits) == 6 && bits[4] == "as" {
		asvar = bits[5]
		bits = bits[:4]
	}
	if len(bits) != 4 {
		return nil, syntaxErrorf("widthratio takes at least three arguments")
	}
	valExpr, err := p.CompileFilter(bits[1])
	if err != nil {
		return nil, err
	}
	maxExpr, err := p.CompileFilter(bits[2])
	if err != nil {
		return nil, err
	}
	maxWidth, err := p.CompileFilter(bits[3])
	if err != nil {
		return nil, err
	}
	return &WidthRatioNode{valExpr: valExpr, maxExpr: maxExpr, maxWidth: maxWidth, asvar: asvar}, nil
}

// TemplateTagNode emits one of the template delimiter bits.
type TemplateTagNode struct {
	tagtype string
}

var templateTagMapping = map[string]string{
	"openblock":     "{%",
	"closeblock":    "%}",
	"openvariable":  "{{",
	"closevariable": "}}",
	"openbrace":     "{",
	"closebrace":    "}",
	"opencomment":   "{#",
	"closecomment":  "#}",
}

func (n *TemplateTagNode) Render(ctx *Context) (string, error) {
	return templateTagMapping[n.tagtype], nil
}

func compileTemplateTag(p *Parser, tok lexer.Token) (Node, error) {
	bits := strings.Fields(tok.Contents)
	if len(bits) != 2 {
		return nil, syntaxErrorf("'templatetag' statement takes one argument")
	}
	if _, ok := templateTagMapping[bits[1]]; !ok {
		return nil, syntaxErrorf("invalid templatetag argument: %q", bits[1])
	}
	return &TemplateTagNode{tagtype: bits[1]}, nil
}

// SpacelessNode strips whitespace between HTML tags in its rendered body.
type SpacelessNode struct {
	body NodeList
}

var spacesBetweenTags = regexp.MustCompile(`>\s+<`)

func (n *SpacelessNode) Render(ctx *Context) (string, error) {
	out, err := n.body.Render(ctx)
	if err != nil {
		return "", err
	}
	return spacesBetweenTags.ReplaceAllString(strings.TrimSpace(out), "><"), nil
}

func compileSpaceless(p *Parser, tok lexer.Token) (Node, error) {
	body, err := p.Parse("endspaceless")
	if err != nil {
		return nil, err
	}
	p.DeleteFirstToken()
	return &SpacelessNode{body: body}, nil
}

// NowNode emits the current time formatted with a Go time layout.
type NowNode struct {
	layout string
	asvar  string
}

func (n *NowNode) Render(ctx *Context) (string, error) {
	formatted := time.Now().Format(n.layout)
	if n.asvar != "" {
		ctx.Set(n.asvar, value.FromString(formatted))
		return "", nil
	}
	return formatted, nil
}

func compileNow(p *Parser, tok lexer.Token) (Node, error) {
	bits := SplitContents(tok.Contents)
	asvar := ""
	if len(bits) == 4 && bits[2] == "as" {
		asvar = bits[3]
		bits = bits[:2]
	}
	if len(bits) != 2 {
		return nil, syntaxErrorf("'now' statement takes one argument")
	}
	layout := bits[1]
	if len(layout) >= 2 && (layout[0] == '"' || layout[0] == '\'') {
		layout = layout[1 : len(layout)-1]
	}
	return &NowNode{layout: layout, asvar: asvar}, nil
}

// LoadNode is kept for template compatibility; libraries are registered
// on the engine, so the tag renders nothing.
type LoadNode struct{}

func (n *LoadNode) Render(ctx *Context) (string, error) {
	return "", nil
}

func compileLoad(p *Parser, tok lexer.Token) (Node, error) {
	return &LoadNode{}, nil
}

func registerDefaultTags(lib *Library) {
	lib.AddTag("autoescape", compileAutoescape)
	lib.AddTag("comment", compileComment)
	lib.AddTag("cycle", compileCycle)
	lib.AddTag("filter", compileFilterTag)
	lib.AddTag("firstof", compileFirstOf)
	lib.AddTag("for", compileFor)
	lib.AddTag("if", compileIf)
	lib.AddTag("ifchanged", compileIfChanged)
	lib.AddTag("load", compileLoad)
	lib.AddTag("now", compileNow)
	lib.AddTag("regroup", compileRegroup)
	lib.AddTag("resetcycle", compileResetCycle)
	lib.AddTag("spaceless", compileSpaceless)
	lib.AddTag("templatetag", compileTemplateTag)
	lib.AddTag("verbatim", compileVerbatim)
	lib.AddTag("widthratio", compileWidthRatio)
	lib.AddTag("with", compileWith)
}
