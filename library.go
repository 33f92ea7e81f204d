package tango

import (
	"github.com/oliverhaas/tango/lexer"
	"github.com/oliverhaas/tango/value"
)

// TagFunc compiles one {% tag %} token into a node. Block tags consume
// their body from the parser up to their end tag.
type TagFunc func(p *Parser, tok lexer.Token) (Node, error)

// FilterFunc transforms a value. arg is Undefined when the filter was
// applied without an argument.
type FilterFunc func(v, arg value.Value) (value.Value, error)

// EscapeAwareFilterFunc is a filter that needs the live autoescape flag to
// escape its own inputs correctly.
type EscapeAwareFilterFunc func(v, arg value.Value, autoescape bool) (value.Value, error)

// filterEntry is one registered filter plus its safety metadata.
type filterEntry struct {
	fn    FilterFunc
	escFn EscapeAwareFilterFunc

	// isSafe means the filter does not introduce unsafe characters, so a
	// safe input yields a safe output. Filters that mutate content leave
	// it false and their output re-escapes.
	isSafe bool
}

func (e *filterEntry) apply(v, arg value.Value, autoescape bool) (value.Value, error) {
	inSafe := isSafeString(v)
	var out value.Value
	var err error
	if e.escFn != nil {
		out, err = e.escFn(v, arg, autoescape)
	} else {
		out, err = e.fn(v, arg)
	}
	if err != nil {
		return value.Undefined(), err
	}
	if e.isSafe && inSafe {
		out = out.MarkSafe()
	}
	return out, nil
}

func isSafeString(v value.Value) bool {
	_, isStr := v.AsString()
	return isStr && v.IsSafe()
}

// Library registers the tags and filters a parser compiles against.
type Library struct {
	tags    map[string]TagFunc
	filters map[string]*filterEntry
}

// NewLibrary creates an empty library.
func NewLibrary() *Library {
	return &Library{
		tags:    make(map[string]TagFunc),
		filters: make(map[string]*filterEntry),
	}
}

// DefaultLibrary returns a library with the built-in tags and filters.
func DefaultLibrary() *Library {
	lib := NewLibrary()
	registerDefaultTags(lib)
	registerDefaultFilters(lib)
	return lib
}

// AddTag registers a tag compile function.
func (l *Library) AddTag(name string, fn TagFunc) {
	l.tags[name] = fn
}

// AddFilter registers a filter whose output always re-escapes.
func (l *Library) AddFilter(name string, fn FilterFunc) {
	l.filters[name] = &filterEntry{fn: fn}
}

// AddSafeFilter registers a filter that preserves the safe status of its
// input.
func (l *Library) AddSafeFilter(name string, fn FilterFunc) {
	l.filters[name] = &filterEntry{fn: fn, isSafe: true}
}

// AddEscapeAwareFilter registers a filter that receives the autoescape
// flag and takes responsibility for escaping its own inputs. Its output is
// treated as safe when the input was.
func (l *Library) AddEscapeAwareFilter(name string, fn EscapeAwareFilterFunc) {
	l.filters[name] = &filterEntry{escFn: fn, isSafe: true}
}

func (l *Library) tag(name string) (TagFunc, bool) {
	fn, ok := l.tags[name]
	return fn, ok
}

func (l *Library) filter(name string) (*filterEntry, bool) {
	e, ok := l.filters[name]
	return e, ok
}
