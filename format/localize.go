package format

import (
	"github.com/oliverhaas/tango/value"
)

// Localize formats a value according to the locale, returning the text
// and whether the value was localizable. Strings pass through unchanged;
// booleans render as True/False; numbers go through Number unless the
// locale's plain fast paths apply; times render with the locale layouts.
// Non-localizable values report false and the caller stringifies them.
func Localize(v value.Value, loc *Locale, useL10n bool) (string, bool) {
	if s, ok := v.AsString(); ok {
		return s, true
	}
	if _, ok := v.AsBool(); ok {
		return v.String(), true
	}

	if v.IsActualInt() {
		if !useL10n || !loc.UseGrouping {
			return v.String(), true
		}
		return Number(v, NoDecimalPos, loc, false), true
	}
	if v.IsActualFloat() {
		if !useL10n || loc.PlainFloats {
			return v.String(), true
		}
		return Number(v, NoDecimalPos, loc, false), true
	}

	if t, ok := v.AsTime(); ok {
		if !useL10n {
			return v.String(), true
		}
		h, m, s := t.Clock()
		if h == 0 && m == 0 && s == 0 {
			return t.Format(loc.DateLayout), true
		}
		return t.Format(loc.DateTimeLayout), true
	}

	return "", false
}
