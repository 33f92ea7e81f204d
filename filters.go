package tango

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/oliverhaas/tango/value"
)

// The built-in filters. Filters receive the resolved value and an optional
// argument (Undefined when absent) and return a new value; escape-aware
// filters additionally receive the live autoescape flag. String-mutating
// filters stay unsafe so their output re-escapes.

func registerDefaultFilters(lib *Library) {
	lib.AddFilter("upper", filterUpper)
	lib.AddSafeFilter("lower", filterLower)
	lib.AddSafeFilter("capfirst", filterCapfirst)
	lib.AddSafeFilter("title", filterTitle)
	lib.AddSafeFilter("length", filterLength)
	lib.AddFilter("default", filterDefault)
	lib.AddFilter("default_if_none", filterDefaultIfNone)
	lib.AddEscapeAwareFilter("join", filterJoin)
	lib.AddFilter("first", filterFirst)
	lib.AddFilter("last", filterLast)
	lib.AddSafeFilter("safe", filterSafe)
	lib.AddSafeFilter("escape", filterEscape)
	lib.AddFilter("force_escape", filterForceEscape)
	lib.AddSafeFilter("striptags", filterStriptags)
	lib.AddFilter("cut", filterCut)
	lib.AddFilter("add", filterAdd)
	lib.AddSafeFilter("floatformat", filterFloatformat)
	lib.AddFilter("yesno", filterYesno)
	lib.AddFilter("pluralize", filterPluralize)
	lib.AddFilter("date", filterDate)
	lib.AddFilter("time", filterTime)
	lib.AddSafeFilter("slice", filterSlice)
	lib.AddSafeFilter("truncatechars", filterTruncatechars)
	lib.AddEscapeAwareFilter("linebreaksbr", filterLinebreaksbr)
}

func filterUpper(v, arg value.Value) (value.Value, error) {
	return value.FromString(strings.ToUpper(v.String())), nil
}

func filterLower(v, arg value.Value) (value.Value, error) {
	return value.FromString(strings.ToLower(v.String())), nil
}

func filterCapfirst(v, arg value.Value) (value.Value, error) {
	s := v.String()
	if s == "" {
		return value.FromString(""), nil
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return value.FromString(string(runes)), nil
}

func filterTitle(v, arg value.Value) (value.Value, error) {
	var b strings.Builder
	prevLetter := false
	for _, r := range strings.ToLower(v.String()) {
		if unicode.IsLetter(r) && !prevLetter {
			b.WriteRune(unicode.ToUpper(r))
		} else {
			b.WriteRune(r)
		}
		prevLetter = unicode.IsLetter(r) || r == '\''
	}
	return value.FromString(b.String()), nil
}

func filterLength(v, arg value.Value) (value.Value, error) {
	if n, ok := v.Len(); ok {
		return value.FromInt(int64(n)), nil
	}
	return value.FromInt(0), nil
}

func filterDefault(v, arg value.Value) (value.Value, error) {
	if !v.IsTrue() {
		return arg, nil
	}
	return v, nil
}

func filterDefaultIfNone(v, arg value.Value) (value.Value, error) {
	if v.IsNone() || v.IsUndefined() {
		return arg, nil
	}
	return v, nil
}

func filterJoin(v, arg value.Value, autoescape bool) (value.Value, error) {
	items := v.Iter()
	if items == nil {
		return v, nil
	}
	parts := make([]string, len(items))
	for i, item := range items {
		s := item.String()
		if autoescape {
			s = conditionalEscape(item, s)
		}
		parts[i] = s
	}
	sep := ""
	if !arg.IsUndefined() {
		sep = conditionalEscape(arg, arg.String())
	}
	return value.FromSafeString(strings.Join(parts, sep)), nil
}

func filterFirst(v, arg value.Value) (value.Value, error) {
	items := v.Iter()
	if len(items) == 0 {
		return value.FromString(""), nil
	}
	return items[0], nil
}

func filterLast(v, arg value.Value) (value.Value, error) {
	items := v.Iter()
	if len(items) == 0 {
		return value.FromString(""), nil
	}
	return items[len(items)-1], nil
}

func filterSafe(v, arg value.Value) (value.Value, error) {
	if _, ok := v.AsString(); ok {
		return v.MarkSafe(), nil
	}
	return value.FromSafeString(v.String()), nil
}

// filterEscape escapes now rather than deferring to emission, and marks the
// result safe so it is not escaped twice.
func filterEscape(v, arg value.Value) (value.Value, error) {
	return value.FromSafeString(conditionalEscape(v, v.String())), nil
}

// filterForceEscape escapes even already-safe input.
func filterForceEscape(v, arg value.Value) (value.Value, error) {
	return value.FromSafeString(EscapeHTML(v.String())), nil
}

var tagPattern = regexp.MustCompile(`<[^>]*?>`)

func filterStriptags(v, arg value.Value) (value.Value, error) {
	s := v.String()
	for strings.ContainsRune(s, '<') {
		stripped := tagPattern.ReplaceAllString(s, "")
		if stripped == s {
			break
		}
		s = stripped
	}
	return value.FromString(s), nil
}

func filterCut(v, arg value.Value) (value.Value, error) {
	return value.FromString(strings.ReplaceAll(v.String(), arg.String(), "")), nil
}

func filterAdd(v, arg value.Value) (value.Value, error) {
	// Integer coercion first, then value-level addition for sequences and
	// strings, then empty output.
	if vi, ok := looseInt(v); ok {
		if ai, ok2 := looseInt(arg); ok2 {
			return value.FromInt(vi + ai), nil
		}
	}
	if sum, ok := value.Add(v, arg); ok {
		return sum, nil
	}
	return value.FromString(""), nil
}

func filterFloatformat(v, arg value.Value) (value.Value, error) {
	f, ok := looseFloat(v)
	if !ok {
		return value.FromString(""), nil
	}
	prec := int64(-1)
	if !arg.IsUndefined() {
		p, ok := looseInt(arg)
		if !ok {
			return value.FromString(""), nil
		}
		prec = p
	}
	places := int(prec)
	if places < 0 {
		places = -places
	}

	pow := math.Pow(10, float64(places))
	rounded := math.RoundToEven(f*pow) / pow

	// A negative precision shows decimals only when there are any.
	if prec < 0 && rounded == math.Trunc(rounded) {
		return value.FromString(strconv.FormatFloat(rounded, 'f', 0, 64)), nil
	}
	return value.FromString(strconv.FormatFloat(rounded, 'f', places, 64)), nil
}

func filterYesno(v, arg value.Value) (value.Value, error) {
	mapping := []string{"yes", "no", "maybe"}
	if !arg.IsUndefined() {
		bits := strings.Split(arg.String(), ",")
		if len(bits) < 2 {
			// invalid mapping, pass the value through
			return v, nil
		}
		mapping = bits
	}
	switch {
	case v.IsNone() && len(mapping) > 2:
		return value.FromString(mapping[2]), nil
	case v.IsTrue():
		return value.FromString(mapping[0]), nil
	default:
		return value.FromString(mapping[1]), nil
	}
}

func filterPluralize(v, arg value.Value) (value.Value, error) {
	singular, plural := "", "s"
	if !arg.IsUndefined() {
		bits := strings.Split(arg.String(), ",")
		switch len(bits) {
		case 1:
			plural = bits[0]
		case 2:
			singular, plural = bits[0], bits[1]
		default:
			return value.FromString(""), nil
		}
	}
	n, ok := looseFloat(v)
	if !ok {
		if cnt, has := v.Len(); has {
			n, ok = float64(cnt), true
		}
	}
	if !ok {
		return value.FromString(""), nil
	}
	if n == 1 {
		return value.FromString(singular), nil
	}
	return value.FromString(plural), nil
}

func filterDate(v, arg value.Value) (value.Value, error) {
	t, ok := v.AsTime()
	if !ok {
		return value.FromString(""), nil
	}
	layout := "Jan. 2, 2006"
	if s, ok := arg.AsString(); ok {
		layout = s
	}
	return value.FromString(t.Format(layout)), nil
}

func filterTime(v, arg value.Value) (value.Value, error) {
	t, ok := v.AsTime()
	if !ok {
		return value.FromString(""), nil
	}
	layout := "3:04 pm"
	if s, ok := arg.AsString(); ok {
		layout = s
	}
	return value.FromString(t.Format(layout)), nil
}

// filterSlice applies "start:stop" subscripting to sequences and strings.
// Bounds clamp and negative bounds count from the end; a bare number means
// a prefix of that length.
func filterSlice(v, arg value.Value) (value.Value, error) {
	spec, ok := arg.AsString()
	if !ok {
		if n, isInt := arg.AsInt(); isInt {
			spec = strconv.FormatInt(n, 10)
		} else {
			return v, nil
		}
	}
	if s, isStr := v.AsString(); isStr {
		runes := []rune(s)
		lo, hi, ok := parseSliceBounds(spec, len(runes))
		if !ok {
			return v, nil
		}
		return value.FromString(string(runes[lo:hi])), nil
	}
	if items, isSeq := v.AsSlice(); isSeq {
		lo, hi, ok := parseSliceBounds(spec, len(items))
		if !ok {
			return v, nil
		}
		return value.FromSlice(items[lo:hi]), nil
	}
	return v, nil
}

func parseSliceBounds(spec string, length int) (int, int, bool) {
	parts := strings.Split(spec, ":")
	if len(parts) > 2 {
		return 0, 0, false
	}
	lo, hi := 0, length
	var err error
	if parts[0] != "" {
		lo, err = strconv.Atoi(parts[0])
		if err != nil {
			return 0, 0, false
		}
	}
	if len(parts) == 2 {
		if parts[1] != "" {
			hi, err = strconv.Atoi(parts[1])
			if err != nil {
				return 0, 0, false
			}
		}
	} else {
		hi = lo
		lo = 0
	}
	lo = clampIndex(lo, length)
	hi = clampIndex(hi, length)
	if hi < lo {
		hi = lo
	}
	return lo, hi, true
}

func clampIndex(i, length int) int {
	if i < 0 {
		i += length
	}
	if i < 0 {
		return 0
	}
	if i > length {
		return length
	}
	return i
}

func filterTruncatechars(v, arg value.Value) (value.Value, error) {
	n, ok := looseInt(arg)
	if !ok {
		return v, nil
	}
	runes := []rune(v.String())
	if int64(len(runes)) <= n {
		return value.FromString(string(runes)), nil
	}
	if n <= 0 {
		return value.FromString(""), nil
	}
	return value.FromString(string(runes[:n-1]) + "…"), nil
}

func filterLinebreaksbr(v, arg value.Value, autoescape bool) (value.Value, error) {
	s := v.String()
	if autoescape {
		s = conditionalEscape(v, s)
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return value.FromSafeString(strings.ReplaceAll(s, "\n", "<br>")), nil
}
