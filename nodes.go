package tango

import (
	"strings"

	"github.com/oliverhaas/tango/format"
	"github.com/oliverhaas/tango/value"
)

// Node is one unit of a compiled template. Nodes are immutable and hold no
// per-render state; a compiled tree renders concurrently from many
// contexts. Stateful tags key their state into ctx.RenderContext by node
// identity instead.
type Node interface {
	Render(ctx *Context) (string, error)
}

// NodeList is a sequence of nodes rendering to the concatenation of its
// children's output.
type NodeList []Node

func (nl NodeList) Render(ctx *Context) (string, error) {
	if len(nl) == 1 {
		return nl[0].Render(ctx)
	}
	var b strings.Builder
	for _, n := range nl {
		s, err := n.Render(ctx)
		if err != nil {
			return "", err
		}
		b.WriteString(s)
	}
	return b.String(), nil
}

// TextNode is literal template text.
type TextNode struct {
	Text string
}

func (n *TextNode) Render(ctx *Context) (string, error) {
	return n.Text, nil
}

// VariableNode renders a {{ expression }}.
type VariableNode struct {
	fe *FilterExpression
}

func (n *VariableNode) Render(ctx *Context) (string, error) {
	v, err := n.fe.Resolve(ctx)
	if err != nil {
		return "", err
	}
	return renderValue(ctx, v), nil
}

// renderValue turns a resolved value into emitted text: undefined renders
// as the configured invalid string, localizable values go through the
// locale formatter, and the result is escaped unless autoescape is off or
// the value is safe.
func renderValue(ctx *Context, v value.Value) string {
	if v.IsUndefined() {
		s := ctx.stringIfInvalid()
		if ctx.Autoescape() {
			return EscapeHTML(s)
		}
		return s
	}
	s, localized := format.Localize(v, ctx.locale, ctx.useL10n)
	if !localized {
		s = v.String()
	}
	if ctx.Autoescape() && !v.IsSafe() {
		return EscapeHTML(s)
	}
	return s
}

// stringIfInvalid returns the text substituted for unresolvable
// variables.
func (c *Context) stringIfInvalid() string {
	if c.engine != nil {
		return c.engine.stringIfInvalid
	}
	return ""
}
