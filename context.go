package tango

import (
	"github.com/oliverhaas/tango/format"
	"github.com/oliverhaas/tango/value"
)

// builtins seeds the outermost scope frame of every context. Each
// Context gets its own copy so writes that land in the outermost frame
// (SetUpward with an unbound key shadowing a builtin) stay local to one
// render.
var builtins = map[string]value.Value{
	"True":  value.True(),
	"False": value.False(),
	"None":  value.None(),
}

// Context carries the per-render state: an ordered stack of variable
// scopes (innermost last), the scoped autoescape flag, and a side table
// for nodes that keep per-render state.
//
// A Context belongs to exactly one render call. The compiled node tree is
// shared across concurrent renders; the Context never is.
type Context struct {
	dicts      []map[string]value.Value
	autoescape bool

	// RenderContext maps a node to its per-render state. Stateful nodes
	// (cycle, ifchanged) key it by their own identity so the shared tree
	// stays immutable.
	RenderContext map[Node]any

	locale  *format.Locale
	useL10n bool

	engine *Engine

	// Request is an opaque ambient handle exposed to tags that need one.
	Request any

	// forloop is the innermost active loop frame, nil outside loops.
	forloop *LoopFrame
}

// ContextOption configures a new Context.
type ContextOption func(*Context)

// WithAutoescape sets the initial autoescape flag.
func WithAutoescape(on bool) ContextOption {
	return func(c *Context) { c.autoescape = on }
}

// WithLocale sets the formatting locale by name.
func WithLocale(name string) ContextOption {
	return func(c *Context) { c.locale = format.Get(name) }
}

// WithLocalize toggles locale-aware formatting of numbers and dates.
func WithLocalize(on bool) ContextOption {
	return func(c *Context) { c.useL10n = on }
}

// WithRequest attaches an ambient request handle.
func WithRequest(req any) ContextOption {
	return func(c *Context) { c.Request = req }
}

// NewContext builds a render context over the given data. The data map is
// converted once; the builtin True/False/None frame sits below it.
func NewContext(data map[string]any, opts ...ContextOption) *Context {
	top := make(map[string]value.Value, len(data))
	for k, v := range data {
		top[k] = value.FromAny(v)
	}
	base := make(map[string]value.Value, len(builtins))
	for k, v := range builtins {
		base[k] = v
	}
	c := &Context{
		dicts:         []map[string]value.Value{base, top},
		autoescape:    true,
		RenderContext: make(map[Node]any),
		locale:        format.English,
		useL10n:       true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Push appends a new scope frame and returns a release function that pops
// back to the depth before the push. Callers defer the release so the
// frame is popped on every exit path.
func (c *Context) Push(scope map[string]value.Value) func() {
	if scope == nil {
		scope = make(map[string]value.Value)
	}
	depth := len(c.dicts)
	c.dicts = append(c.dicts, scope)
	return func() {
		c.dicts = c.dicts[:depth]
	}
}

// top returns the innermost scope frame.
func (c *Context) top() map[string]value.Value {
	return c.dicts[len(c.dicts)-1]
}

// Get scans frames innermost-first and returns the first hit.
func (c *Context) Get(key string) (value.Value, bool) {
	for i := len(c.dicts) - 1; i >= 0; i-- {
		if v, ok := c.dicts[i][key]; ok {
			return v, true
		}
	}
	return value.Undefined(), false
}

// Has reports whether any frame holds the key.
func (c *Context) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Set binds the key in the innermost frame.
func (c *Context) Set(key string, v value.Value) {
	c.top()[key] = v
}

// SetUpward sets the key in the innermost frame that already contains it,
// or the innermost frame when none does. Tags that must outlive their own
// scope (a named cycle binding) use this to escape it.
func (c *Context) SetUpward(key string, v value.Value) {
	for i := len(c.dicts) - 1; i >= 0; i-- {
		if _, ok := c.dicts[i][key]; ok {
			c.dicts[i][key] = v
			return
		}
	}
	c.top()[key] = v
}

// Autoescape reports the current scoped autoescape flag.
func (c *Context) Autoescape() bool {
	return c.autoescape
}

// SetAutoescape sets the flag and returns the previous value so block
// tags can restore it.
func (c *Context) SetAutoescape(on bool) bool {
	prev := c.autoescape
	c.autoescape = on
	return prev
}

// Locale returns the active formatting locale.
func (c *Context) Locale() *format.Locale {
	return c.locale
}

// Localize reports whether locale-aware formatting is on.
func (c *Context) Localize() bool {
	return c.useL10n
}
