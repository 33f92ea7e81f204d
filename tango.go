// Package tango is a template engine for Go.
//
// Templates mix literal text with {{ variable }} expressions, {% tag %}
// blocks, and {# comments #}. Variables resolve dotted paths against the
// render data silently: a missing key, index, or attribute renders as
// empty text instead of failing. Output is HTML-escaped by default;
// values marked safe, and blocks wrapped in {% autoescape off %}, skip
// escaping.
//
//	engine := tango.New()
//	tmpl, err := engine.FromString("Hello {{ name|upper }}!")
//	if err != nil {
//		panic(err)
//	}
//	out, err := tmpl.Render(map[string]any{"name": "World"})
//	// out == "Hello WORLD!"
//
// Compiled templates are immutable and render concurrently; all mutable
// render state lives in a per-render Context. Custom tags and filters
// register on the engine's Library before templates are compiled.
package tango
