package tango

import (
	"fmt"
	"sync"

	"github.com/oliverhaas/tango/lexer"
)

// LoaderFunc is called by the engine to load a template not yet in the
// cache. A missing template is reported with a not-found error.
type LoaderFunc func(name string) (string, error)

// Engine holds the tag/filter library, engine-wide rendering defaults, and
// the compiled template cache. It is cheap to create and safe for
// concurrent use; compiled templates render concurrently.
type Engine struct {
	mu        sync.RWMutex
	templates map[string]*Template
	loader    LoaderFunc

	lib *Library

	autoescape      bool
	locale          string
	useL10n         bool
	debug           bool
	stringIfInvalid string
}

// New creates an engine with the built-in tags and filters, autoescaping
// on, and the default locale.
func New() *Engine {
	return &Engine{
		templates:  make(map[string]*Template),
		lib:        DefaultLibrary(),
		autoescape: true,
		locale:     "en",
		useL10n:    true,
	}
}

// Library returns the engine's tag and filter library. Custom tags and
// filters registered on it apply to templates compiled afterwards.
func (e *Engine) Library() *Library {
	return e.lib
}

// SetAutoescape sets the default autoescape flag for new renders.
func (e *Engine) SetAutoescape(on bool) {
	e.autoescape = on
}

// SetLocale sets the default formatting locale by name.
func (e *Engine) SetLocale(name string) {
	e.locale = name
}

// SetLocalize toggles locale-aware number and date formatting for new
// renders.
func (e *Engine) SetLocalize(on bool) {
	e.useL10n = on
}

// SetDebug enables debug mode.
func (e *Engine) SetDebug(on bool) {
	e.debug = on
}

// SetStringIfInvalid sets the text emitted for unresolvable variables.
// The default is the empty string.
func (e *Engine) SetStringIfInvalid(s string) {
	e.stringIfInvalid = s
}

// SetLoader installs a loader consulted by GetTemplate on cache misses.
func (e *Engine) SetLoader(fn LoaderFunc) {
	e.loader = fn
}

// AddTemplate compiles the source and stores it under the given name.
func (e *Engine) AddTemplate(name, source string) error {
	tmpl, err := e.compile(name, source)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.templates[name] = tmpl
	e.mu.Unlock()
	return nil
}

// RemoveTemplate drops a template from the cache.
func (e *Engine) RemoveTemplate(name string) {
	e.mu.Lock()
	delete(e.templates, name)
	e.mu.Unlock()
}

// GetTemplate returns the named template, loading and compiling it through
// the loader when it is not cached yet.
func (e *Engine) GetTemplate(name string) (*Template, error) {
	e.mu.RLock()
	tmpl, ok := e.templates[name]
	e.mu.RUnlock()
	if ok {
		return tmpl, nil
	}
	if e.loader == nil {
		return nil, NewError(ErrTemplateNotFound, name)
	}
	source, err := e.loader(name)
	if err != nil {
		return nil, NewError(ErrTemplateNotFound, fmt.Sprintf("%s: %s", name, err)).WithName(name)
	}
	tmpl, err = e.compile(name, source)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.templates[name] = tmpl
	e.mu.Unlock()
	return tmpl, nil
}

// FromString compiles a one-off template without caching it.
func (e *Engine) FromString(source string) (*Template, error) {
	return e.compile("<string>", source)
}

// RenderString compiles the source and renders it with the given data in
// one step.
func (e *Engine) RenderString(source string, data map[string]any) (string, error) {
	tmpl, err := e.FromString(source)
	if err != nil {
		return "", err
	}
	return tmpl.Render(data)
}

func (e *Engine) compile(name, source string) (*Template, error) {
	tokens := lexer.Tokenize(source)
	p := NewParser(tokens, e.lib, name)
	nl, err := p.Parse()
	if err != nil {
		return nil, err
	}
	return &Template{engine: e, name: name, nodelist: nl}, nil
}

// Template is a compiled template. It is immutable and safe to render from
// many goroutines at once; all per-render state lives in the Context.
type Template struct {
	engine   *Engine
	name     string
	nodelist NodeList
}

// Name returns the name the template was compiled under.
func (t *Template) Name() string {
	return t.name
}

// Render renders the template with the given data and the engine's default
// settings.
func (t *Template) Render(data map[string]any) (string, error) {
	ctx := NewContext(data,
		WithAutoescape(t.engine.autoescape),
		WithLocale(t.engine.locale),
		WithLocalize(t.engine.useL10n),
	)
	return t.RenderWithContext(ctx)
}

// RenderWithContext renders with a caller-built context, which carries its
// own autoescape, locale, and scope settings. The context must not be
// shared between concurrent renders.
func (t *Template) RenderWithContext(ctx *Context) (string, error) {
	ctx.engine = t.engine
	out, err := t.nodelist.Render(ctx)
	if err != nil {
		if te, ok := err.(*Error); ok && te.Name == "" {
			te.Name = t.name
		}
		return "", err
	}
	return out, nil
}
