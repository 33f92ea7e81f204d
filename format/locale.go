// Package format provides locale-aware rendering of numbers, dates, and
// times for template output. Formatting parameters are looked up per
// locale and cached process-wide; concurrent renders share the cache.
package format

import "sync"

// Locale holds the formatting parameters for one locale.
type Locale struct {
	// Name is the locale identifier, e.g. "en" or "de".
	Name string

	// DecimalSep separates the integer and fractional digits.
	DecimalSep string

	// ThousandSep separates digit groups when grouping applies.
	ThousandSep string

	// Grouping lists group sizes from the least significant digits
	// outward. The last interval repeats; a trailing 0 repeats the
	// interval before it. {3} groups by thousands, {3, 2} is the
	// Indian convention.
	Grouping []int

	// UseGrouping enables the thousand separator by default. Individual
	// format calls can still force grouping on.
	UseGrouping bool

	// PlainFloats short-circuits float rendering to the plain string
	// form. Only valid when DecimalSep is "." and grouping is off, since
	// the plain form is then already the localized form.
	PlainFloats bool

	// Go time layouts for date, time, and combined values.
	DateLayout     string
	TimeLayout     string
	DateTimeLayout string
}

var (
	localesMu sync.RWMutex
	locales   = map[string]*Locale{}
)

// English is the default locale.
var English = &Locale{
	Name:           "en",
	DecimalSep:     ".",
	ThousandSep:    ",",
	Grouping:       []int{3},
	UseGrouping:    false,
	PlainFloats:    true,
	DateLayout:     "Jan. 2, 2006",
	TimeLayout:     "3:04 pm",
	DateTimeLayout: "Jan. 2, 2006, 3:04 pm",
}

func init() {
	Register(English)
	Register(&Locale{
		Name:           "de",
		DecimalSep:     ",",
		ThousandSep:    ".",
		Grouping:       []int{3},
		UseGrouping:    true,
		DateLayout:     "02.01.2006",
		TimeLayout:     "15:04",
		DateTimeLayout: "02.01.2006 15:04",
	})
	Register(&Locale{
		Name:           "fr",
		DecimalSep:     ",",
		ThousandSep:    " ",
		Grouping:       []int{3},
		UseGrouping:    true,
		DateLayout:     "2 January 2006",
		TimeLayout:     "15:04",
		DateTimeLayout: "2 January 2006 15:04",
	})
}

// Register adds or replaces a locale in the process-wide registry.
func Register(loc *Locale) {
	localesMu.Lock()
	locales[loc.Name] = loc
	localesMu.Unlock()
}

// Get returns the locale with the given name, falling back to English for
// unknown names.
func Get(name string) *Locale {
	localesMu.RLock()
	loc := locales[name]
	localesMu.RUnlock()
	if loc == nil {
		return English
	}
	return loc
}
