package tango

import (
	"strings"
	"sync"
	"testing"

	"github.com/oliverhaas/tango/value"
)

func mustRender(t *testing.T, source string, data map[string]any) string {
	t.Helper()
	engine := New()
	tmpl, err := engine.FromString(source)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	out, err := tmpl.Render(data)
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	return out
}

func TestBasicRender(t *testing.T) {
	out := mustRender(t, "Hello {{ name }}!", map[string]any{"name": "World"})
	if out != "Hello World!" {
		t.Errorf("expected 'Hello World!', got %q", out)
	}
}

func TestVariableTypes(t *testing.T) {
	out := mustRender(t, "{{ str }} {{ num }} {{ float }} {{ bool }}", map[string]any{
		"str":   "hello",
		"num":   42,
		"float": 3.14,
		"bool":  true,
	})
	if out != "hello 42 3.14 True" {
		t.Errorf("expected 'hello 42 3.14 True', got %q", out)
	}
}

func TestWholeFloatKeepsDecimal(t *testing.T) {
	out := mustRender(t, "{{ f }}", map[string]any{"f": 2.0})
	if out != "2.0" {
		t.Errorf("expected '2.0', got %q", out)
	}
}

func TestMissingVariableRendersEmpty(t *testing.T) {
	out := mustRender(t, "[{{ missing }}]", nil)
	if out != "[]" {
		t.Errorf("expected '[]', got %q", out)
	}
}

func TestMissingAttributeRendersEmpty(t *testing.T) {
	out := mustRender(t, "[{{ user.name.first }}]", map[string]any{"user": map[string]any{}})
	if out != "[]" {
		t.Errorf("expected '[]', got %q", out)
	}
}

func TestStringIfInvalid(t *testing.T) {
	engine := New()
	engine.SetStringIfInvalid("INVALID")
	tmpl, err := engine.FromString("{{ missing }}")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	out, err := tmpl.Render(nil)
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if out != "INVALID" {
		t.Errorf("expected 'INVALID', got %q", out)
	}
}

func TestAutoescapeDefault(t *testing.T) {
	out := mustRender(t, "{{ html }}", map[string]any{"html": `<b>"x" & 'y'</b>`})
	want := "&lt;b&gt;&quot;x&quot; &amp; &#x27;y&#x27;&lt;/b&gt;"
	if out != want {
		t.Errorf("expected %q, got %q", want, out)
	}
}

func TestEngineAutoescapeOff(t *testing.T) {
	engine := New()
	engine.SetAutoescape(false)
	tmpl, err := engine.FromString("{{ html }}")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	out, err := tmpl.Render(map[string]any{"html": "<b>"})
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if out != "<b>" {
		t.Errorf("expected '<b>', got %q", out)
	}
}

func TestBuiltinConstants(t *testing.T) {
	out := mustRender(t, "{% if flag == True %}yes{% endif %}{% if nothing is None %} none{% endif %}",
		map[string]any{"flag": true, "nothing": nil})
	if out != "yes none" {
		t.Errorf("expected 'yes none', got %q", out)
	}
}

func TestStringLiteral(t *testing.T) {
	out := mustRender(t, `{{ "quoted text" }} {{ 'single' }}`, nil)
	if out != "quoted text single" {
		t.Errorf("expected 'quoted text single', got %q", out)
	}
}

func TestNumberLiteral(t *testing.T) {
	out := mustRender(t, "{{ 42 }} {{ -3 }} {{ 2.5 }}", nil)
	if out != "42 -3 2.5" {
		t.Errorf("expected '42 -3 2.5', got %q", out)
	}
}

func TestComment(t *testing.T) {
	out := mustRender(t, "a{# this is ignored #}b", nil)
	if out != "ab" {
		t.Errorf("expected 'ab', got %q", out)
	}
}

func TestRenderString(t *testing.T) {
	engine := New()
	out, err := engine.RenderString("{{ x }}", map[string]any{"x": 1})
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if out != "1" {
		t.Errorf("expected '1', got %q", out)
	}
}

func TestAddAndGetTemplate(t *testing.T) {
	engine := New()
	if err := engine.AddTemplate("greeting", "Hi {{ who }}"); err != nil {
		t.Fatalf("add error: %v", err)
	}
	tmpl, err := engine.GetTemplate("greeting")
	if err != nil {
		t.Fatalf("get error: %v", err)
	}
	if tmpl.Name() != "greeting" {
		t.Errorf("expected name 'greeting', got %q", tmpl.Name())
	}
	out, err := tmpl.Render(map[string]any{"who": "you"})
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if out != "Hi you" {
		t.Errorf("expected 'Hi you', got %q", out)
	}
}

func TestTemplateNotFound(t *testing.T) {
	engine := New()
	_, err := engine.GetTemplate("nope")
	if err == nil {
		t.Fatal("expected an error")
	}
	te, ok := err.(*Error)
	if !ok || te.Kind != ErrTemplateNotFound {
		t.Errorf("expected template not found error, got %v", err)
	}
}

func TestLoader(t *testing.T) {
	loads := 0
	engine := New()
	engine.SetLoader(func(name string) (string, error) {
		loads++
		return "loaded: " + name, nil
	})
	for i := 0; i < 3; i++ {
		tmpl, err := engine.GetTemplate("page")
		if err != nil {
			t.Fatalf("get error: %v", err)
		}
		out, err := tmpl.Render(nil)
		if err != nil {
			t.Fatalf("render error: %v", err)
		}
		if out != "loaded: page" {
			t.Errorf("expected 'loaded: page', got %q", out)
		}
	}
	if loads != 1 {
		t.Errorf("expected one load, got %d", loads)
	}
}

func TestUnknownTagError(t *testing.T) {
	engine := New()
	_, err := engine.FromString("{% bogus %}")
	if err == nil {
		t.Fatal("expected an error")
	}
	te, ok := err.(*Error)
	if !ok || te.Kind != ErrUnknownTag {
		t.Errorf("expected unknown tag error, got %v", err)
	}
}

func TestUnknownFilterError(t *testing.T) {
	engine := New()
	_, err := engine.FromString("{{ x|bogus }}")
	if err == nil {
		t.Fatal("expected an error")
	}
	te, ok := err.(*Error)
	if !ok || te.Kind != ErrUnknownFilter {
		t.Errorf("expected unknown filter error, got %v", err)
	}
}

func TestSyntaxErrorHasLine(t *testing.T) {
	engine := New()
	_, err := engine.FromString("line one\n{% if %}")
	if err == nil {
		t.Fatal("expected an error")
	}
	te, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if te.Line != 2 {
		t.Errorf("expected line 2, got %d", te.Line)
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Errorf("error text should mention the line: %v", err)
	}
}

func TestCustomFilter(t *testing.T) {
	engine := New()
	engine.Library().AddFilter("reverse", func(v, arg value.Value) (value.Value, error) {
		runes := []rune(v.String())
		for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
			runes[i], runes[j] = runes[j], runes[i]
		}
		return value.FromString(string(runes)), nil
	})
	tmpl, err := engine.FromString("{{ word|reverse }}")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	out, err := tmpl.Render(map[string]any{"word": "abc"})
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if out != "cba" {
		t.Errorf("expected 'cba', got %q", out)
	}
}

func TestLocaleGrouping(t *testing.T) {
	engine := New()
	engine.SetLocale("de")
	tmpl, err := engine.FromString("{{ n }}")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	out, err := tmpl.Render(map[string]any{"n": 1234567})
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if out != "1.234.567" {
		t.Errorf("expected '1.234.567', got %q", out)
	}
}

func TestLocalizeOff(t *testing.T) {
	engine := New()
	engine.SetLocale("de")
	engine.SetLocalize(false)
	tmpl, err := engine.FromString("{{ n }}")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	out, err := tmpl.Render(map[string]any{"n": 1234567})
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if out != "1234567" {
		t.Errorf("expected '1234567', got %q", out)
	}
}

func TestConcurrentRender(t *testing.T) {
	engine := New()
	tmpl, err := engine.FromString(
		"{% for x in items %}{% cycle 'a' 'b' %}{{ x }}{% endfor %}")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	want := "a1b2a3b4"
	data := map[string]any{"items": []int{1, 2, 3, 4}}

	var wg sync.WaitGroup
	errs := make(chan string, 64)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				out, err := tmpl.Render(data)
				if err != nil {
					errs <- err.Error()
					return
				}
				if out != want {
					errs <- out
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for bad := range errs {
		t.Errorf("concurrent render mismatch: %q", bad)
	}
}
