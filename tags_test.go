package tango

import (
	"strconv"
	"strings"
	"testing"
)

func TestIfCondition(t *testing.T) {
	out := mustRender(t, "{% if show %}visible{% endif %}", map[string]any{"show": true})
	if out != "visible" {
		t.Errorf("expected 'visible', got %q", out)
	}
	out = mustRender(t, "{% if show %}visible{% endif %}", map[string]any{"show": false})
	if out != "" {
		t.Errorf("expected '', got %q", out)
	}
}

func TestIfElse(t *testing.T) {
	out := mustRender(t, "{% if show %}yes{% else %}no{% endif %}", map[string]any{"show": 0})
	if out != "no" {
		t.Errorf("expected 'no', got %q", out)
	}
}

func TestIfElif(t *testing.T) {
	tmplSrc := "{% if n == 1 %}one{% elif n == 2 %}two{% elif n == 3 %}three{% else %}many{% endif %}"
	cases := map[int]string{1: "one", 2: "two", 3: "three", 9: "many"}
	for n, want := range cases {
		out := mustRender(t, tmplSrc, map[string]any{"n": n})
		if out != want {
			t.Errorf("n=%d: expected %q, got %q", n, want, out)
		}
	}
}

func TestIfComparisons(t *testing.T) {
	out := mustRender(t,
		"{% if a < b %}lt{% endif %}{% if b >= 2 %} ge{% endif %}{% if a != b %} ne{% endif %}",
		map[string]any{"a": 1, "b": 2})
	if out != "lt ge ne" {
		t.Errorf("expected 'lt ge ne', got %q", out)
	}
}

func TestIfIn(t *testing.T) {
	out := mustRender(t,
		"{% if x in items %}member{% endif %}{% if y not in items %} absent{% endif %}",
		map[string]any{"x": "b", "y": "z", "items": []string{"a", "b"}})
	if out != "member absent" {
		t.Errorf("expected 'member absent', got %q", out)
	}
}

func TestIfSubstring(t *testing.T) {
	out := mustRender(t, "{% if 'ell' in word %}yes{% endif %}", map[string]any{"word": "hello"})
	if out != "yes" {
		t.Errorf("expected 'yes', got %q", out)
	}
}

func TestIfNot(t *testing.T) {
	out := mustRender(t, "{% if not missing %}gone{% endif %}", nil)
	if out != "gone" {
		t.Errorf("expected 'gone', got %q", out)
	}
}

func TestIfPrecedence(t *testing.T) {
	// and binds tighter than or.
	out := mustRender(t, "{% if a or b and c %}yes{% else %}no{% endif %}",
		map[string]any{"a": true, "b": false, "c": false})
	if out != "yes" {
		t.Errorf("expected 'yes', got %q", out)
	}
	out = mustRender(t, "{% if a and b or c %}yes{% else %}no{% endif %}",
		map[string]any{"a": true, "b": false, "c": true})
	if out != "yes" {
		t.Errorf("expected 'yes', got %q", out)
	}
}

func TestIfFaultsAreFalse(t *testing.T) {
	// Comparing unordered types never raises, it just fails the branch.
	out := mustRender(t, "{% if n > 'text' %}a{% else %}b{% endif %}", map[string]any{"n": 5})
	if out != "b" {
		t.Errorf("expected 'b', got %q", out)
	}
	out = mustRender(t, "{% if x in n %}a{% else %}b{% endif %}", map[string]any{"n": 5, "x": 1})
	if out != "b" {
		t.Errorf("expected 'b', got %q", out)
	}
}

func TestIfEqualityOnFuncValues(t *testing.T) {
	// Context values Go cannot compare must fail the branch, not abort
	// the render.
	f := func(int) {}
	out := mustRender(t, "{% if f == f %}a{% else %}b{% endif %}", map[string]any{"f": f})
	if out != "b" {
		t.Errorf("expected 'b', got %q", out)
	}
}

func TestIfFilterInCondition(t *testing.T) {
	out := mustRender(t, "{% if items|length > 2 %}big{% endif %}",
		map[string]any{"items": []int{1, 2, 3}})
	if out != "big" {
		t.Errorf("expected 'big', got %q", out)
	}
}

func TestForLoop(t *testing.T) {
	out := mustRender(t, "{% for item in items %}{{ item }}{% endfor %}",
		map[string]any{"items": []string{"a", "b", "c"}})
	if out != "abc" {
		t.Errorf("expected 'abc', got %q", out)
	}
}

func TestForLoopEscapesItems(t *testing.T) {
	out := mustRender(t, "{% for item in items %}{{ item }},{% endfor %}",
		map[string]any{"items": []string{"<i>", "ok"}})
	if out != "&lt;i&gt;,ok," {
		t.Errorf("expected '&lt;i&gt;,ok,', got %q", out)
	}
}

func TestForLoopCounters(t *testing.T) {
	out := mustRender(t,
		"{% for x in items %}{{ forloop.counter }}/{{ forloop.counter0 }}/{{ forloop.revcounter }}/{{ forloop.revcounter0 }} {% endfor %}",
		map[string]any{"items": []int{10, 20, 30}})
	if out != "1/0/3/2 2/1/2/1 3/2/1/0 " {
		t.Errorf("counter mismatch: %q", out)
	}
}

func TestForLoopFirstLastLength(t *testing.T) {
	out := mustRender(t,
		"{% for x in items %}{% if forloop.first %}[{% endif %}{{ x }}{% if forloop.last %}]{{ forloop.length }}{% endif %}{% endfor %}",
		map[string]any{"items": []string{"a", "b"}})
	if out != "[ab]2" {
		t.Errorf("expected '[ab]2', got %q", out)
	}
}

func TestForLoopParentloop(t *testing.T) {
	out := mustRender(t,
		"{% for x in outer %}{% for y in inner %}{{ forloop.parentloop.counter }}{{ forloop.counter }} {% endfor %}{% endfor %}",
		map[string]any{"outer": []int{0, 0}, "inner": []int{0, 0}})
	if out != "11 12 21 22 " {
		t.Errorf("expected '11 12 21 22 ', got %q", out)
	}
}

func TestForLoopReversed(t *testing.T) {
	out := mustRender(t, "{% for x in items reversed %}{{ x }}{% endfor %}",
		map[string]any{"items": []int{1, 2, 3}})
	if out != "321" {
		t.Errorf("expected '321', got %q", out)
	}
}

func TestForLoopEmpty(t *testing.T) {
	out := mustRender(t, "{% for x in items %}{{ x }}{% empty %}nothing{% endfor %}",
		map[string]any{"items": []int{}})
	if out != "nothing" {
		t.Errorf("expected 'nothing', got %q", out)
	}
	out = mustRender(t, "{% for x in missing %}{{ x }}{% empty %}nothing{% endfor %}", nil)
	if out != "nothing" {
		t.Errorf("expected 'nothing', got %q", out)
	}
}

func TestForLoopUnpack(t *testing.T) {
	out := mustRender(t, "{% for k, v in pairs %}{{ k }}={{ v }};{% endfor %}",
		map[string]any{"pairs": []any{[]any{"a", 1}, []any{"b", 2}}})
	if out != "a=1;b=2;" {
		t.Errorf("expected 'a=1;b=2;', got %q", out)
	}
}

func TestForLoopUnpackMismatch(t *testing.T) {
	engine := New()
	tmpl, err := engine.FromString("{% for a, b in pairs %}x{% endfor %}")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	_, err = tmpl.Render(map[string]any{"pairs": []any{[]any{1, 2, 3}}})
	if err == nil {
		t.Fatal("expected an error")
	}
	te, ok := err.(*Error)
	if !ok || te.Kind != ErrUnpack {
		t.Errorf("expected unpack error, got %v", err)
	}
}

func TestForLoopScopeRestored(t *testing.T) {
	out := mustRender(t, "{% for x in items %}{{ x }}{% endfor %}-{{ x }}",
		map[string]any{"items": []int{1, 2}, "x": "outer"})
	if out != "12-outer" {
		t.Errorf("expected '12-outer', got %q", out)
	}
}

func TestForLoopOverMapIsSorted(t *testing.T) {
	out := mustRender(t, "{% for k in m %}{{ k }},{% endfor %}",
		map[string]any{"m": map[string]any{"b": 1, "a": 2, "c": 3}})
	if out != "a,b,c," {
		t.Errorf("expected 'a,b,c,', got %q", out)
	}
}

func TestForLoopOverString(t *testing.T) {
	out := mustRender(t, "{% for c in word %}{{ c }}.{% endfor %}",
		map[string]any{"word": "ab"})
	if out != "a.b." {
		t.Errorf("expected 'a.b.', got %q", out)
	}
}

func TestForLoopAttributes(t *testing.T) {
	users := []any{
		map[string]any{"name": "ann", "active": true},
		map[string]any{"name": "bob", "active": false},
	}
	out := mustRender(t, "{% for u in users %}{{ u.name }};{% endfor %}",
		map[string]any{"users": users})
	if out != "ann;bob;" {
		t.Errorf("expected 'ann;bob;', got %q", out)
	}

	out = mustRender(t, "{% for u in users %}{{ u.name|upper }};{% endfor %}",
		map[string]any{"users": users})
	if out != "ANN;BOB;" {
		t.Errorf("expected 'ANN;BOB;', got %q", out)
	}

	out = mustRender(t, "{% for u in users %}{% if u.active %}Y{% else %}N{% endif %}{% endfor %}",
		map[string]any{"users": users})
	if out != "YN" {
		t.Errorf("expected 'YN', got %q", out)
	}
}

func TestForLoopAttributeMissing(t *testing.T) {
	users := []any{
		map[string]any{"name": "ann"},
		map[string]any{},
	}
	out := mustRender(t, "{% for u in users %}[{{ u.name }}]{% endfor %}",
		map[string]any{"users": users})
	if out != "[ann][]" {
		t.Errorf("expected '[ann][]', got %q", out)
	}
}

func TestForLoopCallableItems(t *testing.T) {
	// Elements auto-call on emission the same way a scope lookup does,
	// whether or not the body writes to the scope.
	out := mustRender(t, "{% for f in fns %}{{ f }},{% endfor %}",
		map[string]any{"fns": []any{greeter{}, greeter{}}})
	if out != "called,called," {
		t.Errorf("expected 'called,called,', got %q", out)
	}
	out = mustRender(t, "{% for f in fns %}{{ forloop.counter }}:{{ f }} {% endfor %}",
		map[string]any{"fns": []any{greeter{}, "plain"}})
	if out != "1:called 2:plain " {
		t.Errorf("expected '1:called 2:plain ', got %q", out)
	}
}

func TestForLoopIfComparison(t *testing.T) {
	rows := []any{
		map[string]any{"level": 1},
		map[string]any{"level": 2},
		map[string]any{"level": 3},
	}
	out := mustRender(t,
		"{% for r in rows %}{% if r.level == 2 %}mid{% elif r.level > 2 %}high{% else %}low{% endif %} {% endfor %}",
		map[string]any{"rows": rows})
	if out != "low mid high " {
		t.Errorf("expected 'low mid high ', got %q", out)
	}
}

func TestForSequenceWithFilter(t *testing.T) {
	out := mustRender(t, "{% for x in items|slice:':2' %}{{ x }}{% endfor %}",
		map[string]any{"items": []int{1, 2, 3, 4}})
	if out != "12" {
		t.Errorf("expected '12', got %q", out)
	}
}

func TestCycle(t *testing.T) {
	out := mustRender(t, "{% for x in items %}{% cycle 'a' 'b' %}{% endfor %}",
		map[string]any{"items": []int{1, 2, 3, 4, 5}})
	if out != "ababa" {
		t.Errorf("expected 'ababa', got %q", out)
	}
}

func TestCycleEscapesLiterals(t *testing.T) {
	out := mustRender(t, "{% for x in items %}{% cycle '<' 'b' %}{% endfor %}",
		map[string]any{"items": []int{1, 2}})
	if out != "&lt;b" {
		t.Errorf("expected '&lt;b', got %q", out)
	}
}

func TestCycleVariables(t *testing.T) {
	out := mustRender(t, "{% for x in items %}{% cycle one two %}{% endfor %}",
		map[string]any{"items": []int{1, 2, 3}, "one": "x", "two": "y"})
	if out != "xyx" {
		t.Errorf("expected 'xyx', got %q", out)
	}
}

func TestCycleAsVariable(t *testing.T) {
	out := mustRender(t, "{% for x in items %}{% cycle 'r' 'g' as col %}-{{ col }} {% endfor %}",
		map[string]any{"items": []int{1, 2, 3}})
	if out != "r-r g-g r-r " {
		t.Errorf("expected 'r-r g-g r-r ', got %q", out)
	}
}

func TestCycleSilent(t *testing.T) {
	out := mustRender(t, "{% for x in items %}{% cycle 'a' 'b' as c silent %}{{ c }}{% endfor %}",
		map[string]any{"items": []int{1, 2, 3, 4}})
	if out != "abab" {
		t.Errorf("expected 'abab', got %q", out)
	}
}

func TestCycleAsBuiltinNameStaysPerRender(t *testing.T) {
	out := mustRender(t, "{% for x in items %}{% cycle 'a' 'b' as True silent %}{% endfor %}",
		map[string]any{"items": []int{1, 2}})
	if out != "" {
		t.Errorf("silent cycle renders nothing, got %q", out)
	}
	// The binding shadows the builtin only inside its own render.
	out = mustRender(t, "{{ True }}", nil)
	if out != "True" {
		t.Errorf("expected the stock builtin, got %q", out)
	}
}

func TestCycleUndeclaredNameFails(t *testing.T) {
	engine := New()
	_, err := engine.FromString("{% cycle nope %}")
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestResetCycle(t *testing.T) {
	out := mustRender(t,
		"{% for x in outer %}{% for y in inner %}{% cycle 'a' 'b' 'c' %}{% endfor %}{% resetcycle %}|{% endfor %}",
		map[string]any{"outer": []int{1, 2}, "inner": []int{1, 2}})
	if out != "ab|ab|" {
		t.Errorf("expected 'ab|ab|', got %q", out)
	}
}

func TestIfChanged(t *testing.T) {
	dates := []any{
		map[string]any{"month": "Jan", "day": 1},
		map[string]any{"month": "Jan", "day": 2},
		map[string]any{"month": "Feb", "day": 3},
	}
	out := mustRender(t,
		"{% for d in dates %}{% ifchanged %}{{ d.month }} {% endifchanged %}{{ d.day }} {% endfor %}",
		map[string]any{"dates": dates})
	if out != "Jan 1 2 Feb 3 " {
		t.Errorf("expected 'Jan 1 2 Feb 3 ', got %q", out)
	}
}

func TestIfChangedWithVariables(t *testing.T) {
	rows := []any{
		map[string]any{"g": "a", "v": 1},
		map[string]any{"g": "a", "v": 2},
		map[string]any{"g": "b", "v": 3},
	}
	out := mustRender(t,
		"{% for r in rows %}{% ifchanged r.g %}<{{ r.g }}>{% endifchanged %}{{ r.v }}{% endfor %}",
		map[string]any{"rows": rows})
	if out != "<a>12<b>3" {
		t.Errorf("ifchanged vars mismatch: %q", out)
	}
}

func TestIfChangedElse(t *testing.T) {
	out := mustRender(t,
		"{% for x in items %}{% ifchanged x %}new{% else %}same{% endifchanged %} {% endfor %}",
		map[string]any{"items": []int{1, 1, 2}})
	if out != "new same new " {
		t.Errorf("expected 'new same new ', got %q", out)
	}
}

func TestIfChangedResetsPerOuterIteration(t *testing.T) {
	out := mustRender(t,
		"{% for x in outer %}{% for y in inner %}{% ifchanged y %}{{ y }}{% endifchanged %}{% endfor %}|{% endfor %}",
		map[string]any{"outer": []int{1, 2}, "inner": []int{5, 5, 6}})
	if out != "56|56|" {
		t.Errorf("expected '56|56|', got %q", out)
	}
}

func TestWith(t *testing.T) {
	out := mustRender(t, "{% with total=items|length %}{{ total }}{% endwith %}",
		map[string]any{"items": []int{1, 2, 3}})
	if out != "3" {
		t.Errorf("expected '3', got %q", out)
	}
}

func TestWithLegacyForm(t *testing.T) {
	out := mustRender(t, "{% with name as alias %}{{ alias }}{% endwith %}",
		map[string]any{"name": "bound"})
	if out != "bound" {
		t.Errorf("expected 'bound', got %q", out)
	}
}

func TestWithScopeEnds(t *testing.T) {
	out := mustRender(t, "{% with x='inner' %}{{ x }}{% endwith %}-{{ x }}",
		map[string]any{"x": "outer"})
	if out != "inner-outer" {
		t.Errorf("expected 'inner-outer', got %q", out)
	}
}

func TestFilterTag(t *testing.T) {
	out := mustRender(t, "{% filter upper %}hello {{ name }}{% endfilter %}",
		map[string]any{"name": "world"})
	if out != "HELLO WORLD" {
		t.Errorf("expected 'HELLO WORLD', got %q", out)
	}
}

func TestFilterTagRejectsEscape(t *testing.T) {
	engine := New()
	_, err := engine.FromString("{% filter escape %}x{% endfilter %}")
	if err == nil {
		t.Fatal("expected an error")
	}
	_, err = engine.FromString("{% filter safe %}x{% endfilter %}")
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestAutoescapeTag(t *testing.T) {
	out := mustRender(t, "{% autoescape off %}{{ html }}{% endautoescape %}|{{ html }}",
		map[string]any{"html": "<b>"})
	if out != "<b>|&lt;b&gt;" {
		t.Errorf("expected '<b>|&lt;b&gt;', got %q", out)
	}
}

func TestAutoescapeTagBadArgument(t *testing.T) {
	engine := New()
	_, err := engine.FromString("{% autoescape maybe %}{% endautoescape %}")
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestVerbatim(t *testing.T) {
	out := mustRender(t, "{% verbatim %}{{ raw }} {% if %}{% endverbatim %}", nil)
	if out != "{{ raw }} {% if %}" {
		t.Errorf("expected raw output, got %q", out)
	}
}

func TestVerbatimNamed(t *testing.T) {
	out := mustRender(t,
		"{% verbatim outer %}{% endverbatim %}inside{% endverbatim outer %}", nil)
	if out != "{% endverbatim %}inside" {
		t.Errorf("expected '{%% endverbatim %%}inside', got %q", out)
	}
}

func TestCommentTag(t *testing.T) {
	out := mustRender(t, "a{% comment %}{{ anything }} {% bogus %}{% endcomment %}b", nil)
	if out != "ab" {
		t.Errorf("expected 'ab', got %q", out)
	}
}

func TestFirstOf(t *testing.T) {
	out := mustRender(t, "{% firstof a b c %}",
		map[string]any{"a": "", "b": "found", "c": "later"})
	if out != "found" {
		t.Errorf("expected 'found', got %q", out)
	}
	out = mustRender(t, "{% firstof a b 'fallback' %}", nil)
	if out != "fallback" {
		t.Errorf("expected 'fallback', got %q", out)
	}
}

func TestFirstOfAsVariable(t *testing.T) {
	out := mustRender(t, "{% firstof a b as pick %}[{{ pick }}]",
		map[string]any{"b": "val"})
	if out != "[val]" {
		t.Errorf("expected '[val]', got %q", out)
	}
}

func TestRegroup(t *testing.T) {
	people := []any{
		map[string]any{"name": "ann", "city": "Rome"},
		map[string]any{"name": "bob", "city": "Rome"},
		map[string]any{"name": "cid", "city": "Oslo"},
	}
	out := mustRender(t,
		"{% regroup people by city as grouped %}{% for g in grouped %}{{ g.grouper }}:{% for p in g.list %}{{ p.name }},{% endfor %};{% endfor %}",
		map[string]any{"people": people})
	if out != "Rome:ann,bob,;Oslo:cid,;" {
		t.Errorf("regroup mismatch: %q", out)
	}
}

func TestRegroupMissingTarget(t *testing.T) {
	out := mustRender(t,
		"{% regroup missing by x as grouped %}{{ grouped|length }}", nil)
	if out != "0" {
		t.Errorf("expected '0', got %q", out)
	}
}

func TestWidthRatio(t *testing.T) {
	out := mustRender(t, "{% widthratio a b 100 %}", map[string]any{"a": 175, "b": 200})
	if out != "88" {
		t.Errorf("expected '88', got %q", out)
	}
}

func TestWidthRatioZeroMax(t *testing.T) {
	out := mustRender(t, "{% widthratio a b 100 %}", map[string]any{"a": 5, "b": 0})
	if out != "0" {
		t.Errorf("expected '0', got %q", out)
	}
}

func TestWidthRatioBadInputs(t *testing.T) {
	out := mustRender(t, "{% widthratio a b 100 %}", map[string]any{"a": "x", "b": 10})
	if out != "" {
		t.Errorf("expected '', got %q", out)
	}
}

func TestWidthRatioBadWidthFails(t *testing.T) {
	engine := New()
	tmpl, err := engine.FromString("{% widthratio a b w %}")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	_, err = tmpl.Render(map[string]any{"a": 1, "b": 2, "w": "wide"})
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestWidthRatioAsVariable(t *testing.T) {
	out := mustRender(t, "{% widthratio a b 100 as w %}[{{ w }}]",
		map[string]any{"a": 50, "b": 100})
	if out != "[50]" {
		t.Errorf("expected '[50]', got %q", out)
	}
}

func TestSpaceless(t *testing.T) {
	out := mustRender(t, "{% spaceless %} <p>\n <a>x</a>  </p> {% endspaceless %}", nil)
	if out != "<p><a>x</a></p>" {
		t.Errorf("expected '<p><a>x</a></p>', got %q", out)
	}
}

func TestTemplateTag(t *testing.T) {
	out := mustRender(t, "{% templatetag openblock %} x {% templatetag closevariable %}", nil)
	if out != "{% x }}" {
		t.Errorf("expected '{%% x }}', got %q", out)
	}
}

func TestTemplateTagInvalid(t *testing.T) {
	engine := New()
	_, err := engine.FromString("{% templatetag bogus %}")
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestNow(t *testing.T) {
	out := mustRender(t, "{% now '2006' %}", nil)
	year, err := strconv.Atoi(out)
	if err != nil || year < 2020 {
		t.Errorf("expected a year, got %q", out)
	}
}

func TestNowAsVariable(t *testing.T) {
	out := mustRender(t, "{% now '2006' as y %}year={{ y }}", nil)
	if !strings.HasPrefix(out, "year=2") {
		t.Errorf("expected 'year=2...', got %q", out)
	}
}

func TestLoadIsNoop(t *testing.T) {
	out := mustRender(t, "{% load humanize %}ok", nil)
	if out != "ok" {
		t.Errorf("expected 'ok', got %q", out)
	}
}
