package tango

import (
	"strings"

	"github.com/oliverhaas/tango/value"
)

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
)

// EscapeHTML escapes the five HTML-significant characters. Strings with
// none of them are returned unchanged without allocating.
func EscapeHTML(s string) string {
	if strings.IndexAny(s, `&<>"'`) < 0 {
		return s
	}
	return htmlEscaper.Replace(s)
}

// conditionalEscape escapes the string form of v unless the value is
// already tagged safe.
func conditionalEscape(v value.Value, s string) string {
	if v.IsSafe() {
		return s
	}
	return EscapeHTML(s)
}
