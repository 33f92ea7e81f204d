package format

import (
	"testing"
	"time"

	"github.com/oliverhaas/tango/value"
)

func plainLocale(grouping ...int) *Locale {
	return &Locale{
		Name:        "test",
		DecimalSep:  ".",
		ThousandSep: ",",
		Grouping:    grouping,
	}
}

func TestNumberIntPassThrough(t *testing.T) {
	loc := plainLocale(3)
	if got := Number(value.FromInt(1234567), NoDecimalPos, loc, false); got != "1234567" {
		t.Errorf("expected '1234567', got %q", got)
	}
}

func TestNumberGrouping(t *testing.T) {
	loc := plainLocale(3)
	cases := map[int64]string{
		1:          "1",
		999:        "999",
		1000:       "1,000",
		1234567:    "1,234,567",
		-1234567:   "-1,234,567",
		1000000000: "1,000,000,000",
	}
	for n, want := range cases {
		if got := Number(value.FromInt(n), NoDecimalPos, loc, true); got != want {
			t.Errorf("%d: expected %q, got %q", n, want, got)
		}
	}
}

func TestNumberIndianGrouping(t *testing.T) {
	// Intervals run least-significant first and the last one repeats.
	loc := plainLocale(3, 2)
	cases := map[int64]string{
		1234567:   "12,34,567",
		123456789: "12,34,56,789",
	}
	for n, want := range cases {
		if got := Number(value.FromInt(n), NoDecimalPos, loc, true); got != want {
			t.Errorf("%d: expected %q, got %q", n, want, got)
		}
	}
}

func TestNumberZeroIntervalRepeatsPredecessor(t *testing.T) {
	loc := plainLocale(3, 0)
	if got := Number(value.FromInt(1234567), NoDecimalPos, loc, true); got != "1,234,567" {
		t.Errorf("expected '1,234,567', got %q", got)
	}
}

func TestNumberDecimalPositions(t *testing.T) {
	loc := plainLocale(3)
	cases := []struct {
		v    value.Value
		pos  int
		want string
	}{
		{value.FromFloat(3.14159), 2, "3.14"},
		{value.FromFloat(3.1), 4, "3.1000"},
		{value.FromInt(7), 2, "7.00"},
		{value.FromFloat(-2.5), 1, "-2.5"},
	}
	for _, c := range cases {
		if got := Number(c.v, c.pos, loc, false); got != c.want {
			t.Errorf("%v@%d: expected %q, got %q", c.v, c.pos, c.want, got)
		}
	}
}

func TestNumberTinyValueCollapses(t *testing.T) {
	loc := plainLocale(3)
	if got := Number(value.FromFloat(1e-19), 2, loc, false); got != "0.00" {
		t.Errorf("expected '0.00', got %q", got)
	}
}

func TestNumberLargeFloatExpands(t *testing.T) {
	loc := plainLocale(3)
	got := Number(value.FromFloat(1e16), NoDecimalPos, loc, true)
	if got != "10,000,000,000,000,000" {
		t.Errorf("expected '10,000,000,000,000,000', got %q", got)
	}
}

func TestNumberExtremeMagnitudeKeepsExponent(t *testing.T) {
	loc := plainLocale(3)
	got := Number(value.FromFloat(1e250), NoDecimalPos, loc, false)
	if got != "1e+250" {
		t.Errorf("expected '1e+250', got %q", got)
	}
}

func TestNumberCustomSeparators(t *testing.T) {
	de := Get("de")
	if got := Number(value.FromFloat(1234.5), NoDecimalPos, de, false); got != "1.234,5" {
		t.Errorf("expected '1.234,5', got %q", got)
	}
}

func TestLocalizeStrings(t *testing.T) {
	s, ok := Localize(value.FromString("text"), English, true)
	if !ok || s != "text" {
		t.Errorf("strings pass through, got %q", s)
	}
}

func TestLocalizeBool(t *testing.T) {
	s, ok := Localize(value.True(), English, true)
	if !ok || s != "True" {
		t.Errorf("expected 'True', got %q", s)
	}
}

func TestLocalizeIntPlainByDefault(t *testing.T) {
	s, ok := Localize(value.FromInt(1234567), English, true)
	if !ok || s != "1234567" {
		t.Errorf("english does not group by default, got %q", s)
	}
	s, ok = Localize(value.FromInt(1234567), Get("de"), true)
	if !ok || s != "1.234.567" {
		t.Errorf("expected '1.234.567', got %q", s)
	}
}

func TestLocalizeFloat(t *testing.T) {
	s, ok := Localize(value.FromFloat(3.14), English, true)
	if !ok || s != "3.14" {
		t.Errorf("expected '3.14', got %q", s)
	}
	s, ok = Localize(value.FromFloat(3.14), Get("de"), true)
	if !ok || s != "3,14" {
		t.Errorf("expected '3,14', got %q", s)
	}
}

func TestLocalizeOffUsesPlainForms(t *testing.T) {
	s, ok := Localize(value.FromInt(1234567), Get("de"), false)
	if !ok || s != "1234567" {
		t.Errorf("expected '1234567', got %q", s)
	}
}

func TestLocalizeTimes(t *testing.T) {
	midnight := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)
	s, ok := Localize(value.FromTime(midnight), English, true)
	if !ok || s != "Mar. 5, 2024" {
		t.Errorf("expected date layout, got %q", s)
	}
	afternoon := time.Date(2024, time.March, 5, 14, 30, 0, 0, time.UTC)
	s, ok = Localize(value.FromTime(afternoon), English, true)
	if !ok || s != "Mar. 5, 2024, 2:30 pm" {
		t.Errorf("expected datetime layout, got %q", s)
	}
}

func TestLocalizeNonLocalizable(t *testing.T) {
	_, ok := Localize(value.FromSlice(nil), English, true)
	if ok {
		t.Error("sequences are not localizable")
	}
}

func TestGetUnknownLocaleFallsBack(t *testing.T) {
	if Get("zz") != English {
		t.Error("unknown locales fall back to English")
	}
}
