package format

import (
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/oliverhaas/tango/value"
)

// NoDecimalPos is passed as decimalPos when the caller does not fix the
// number of fractional digits.
const NoDecimalPos = -1

// Number formats a numeric value with the locale's separators.
//
// decimalPos, when not NoDecimalPos, fixes the count of fractional digits:
// extra digits are truncated, missing ones padded with zeros, and values
// smaller than the least representable magnitude collapse to zero.
// Grouping applies when the locale enables it or forceGrouping is set, and
// the locale defines a nonzero grouping interval.
func Number(v value.Value, decimalPos int, loc *Locale, forceGrouping bool) string {
	useGrouping := (loc.UseGrouping || forceGrouping) &&
		len(loc.Grouping) > 0 && loc.Grouping[0] != 0

	// Ints with no grouping and no fixed decimals need no work at all.
	if v.IsActualInt() && !useGrouping && decimalPos == NoDecimalPos {
		return v.String()
	}

	str := decimalString(v, decimalPos)
	if idx := strings.IndexByte(str, 'e'); idx >= 0 {
		// Scientific form from the extreme-magnitude path. Format the
		// coefficient normally and reattach the exponent.
		coefficient := formatPlain(str[:idx], decimalPos, loc, useGrouping)
		return coefficient + str[idx:]
	}
	return formatPlain(str, decimalPos, loc, useGrouping)
}

// decimalString renders the numeric value as a plain decimal string. Very
// large or very small floats, whose compact form is scientific, expand
// through big.Float; above 200 digits the scientific form is kept to bound
// the output size.
func decimalString(v value.Value, decimalPos int) string {
	if f, ok := v.Raw().(float64); ok {
		s := value.FormatFloat(f)
		if !strings.ContainsAny(s, "eE") {
			return s
		}
		if decimalPos != NoDecimalPos && math.Abs(f) < smallestAt(decimalPos) {
			return "0"
		}
		exp10 := int(math.Floor(math.Log10(math.Abs(f))))
		if exp10 > 200 || exp10 < -200 {
			return strconv.FormatFloat(f, 'e', -1, 64)
		}
		bf := new(big.Float).SetPrec(200).SetFloat64(f)
		return bf.Text('f', fracDigitsFor(exp10, decimalPos))
	}
	return v.String()
}

// smallestAt returns the smallest magnitude representable with the given
// number of fractional digits.
func smallestAt(decimalPos int) float64 {
	if decimalPos < 1 {
		decimalPos = 1
	}
	return math.Pow(10, -float64(decimalPos))
}

func fracDigitsFor(exp10, decimalPos int) int {
	if decimalPos != NoDecimalPos {
		return decimalPos
	}
	if exp10 >= 0 {
		return 0
	}
	// Enough fractional digits to show the value's leading digits.
	return -exp10 + 17
}

// formatPlain applies sign handling, decimal positioning, and grouping to
// a plain decimal string.
func formatPlain(str string, decimalPos int, loc *Locale, useGrouping bool) string {
	sign := ""
	if strings.HasPrefix(str, "-") {
		sign = "-"
		str = str[1:]
	}

	intPart := str
	decPart := ""
	if dot := strings.IndexByte(str, '.'); dot >= 0 {
		intPart = str[:dot]
		decPart = str[dot+1:]
		if decimalPos != NoDecimalPos && len(decPart) > decimalPos {
			decPart = decPart[:decimalPos]
		}
	}
	if decimalPos != NoDecimalPos && len(decPart) < decimalPos {
		decPart += strings.Repeat("0", decimalPos-len(decPart))
	}
	if decPart != "" {
		decPart = loc.DecimalSep + decPart
	}

	if useGrouping {
		intPart = group(intPart, loc.Grouping, loc.ThousandSep)
	}
	return sign + intPart + decPart
}

// group inserts the thousand separator into the integer digits, walking
// from the least significant end through the grouping intervals. The last
// interval repeats; a 0 interval repeats its predecessor.
func group(digits string, intervals []int, sep string) string {
	remaining := intervals
	active := remaining[0]
	remaining = remaining[1:]

	var b strings.Builder
	b.Grow(len(digits) + len(digits)/2*len(sep))
	cnt := 0
	for i := len(digits) - 1; i >= 0; i-- {
		if cnt > 0 && cnt == active {
			if len(remaining) > 0 {
				if next := remaining[0]; next != 0 {
					active = next
				}
				remaining = remaining[1:]
			}
			b.WriteString(reverse(sep))
			cnt = 0
		}
		b.WriteByte(digits[i])
		cnt++
	}
	return reverse(b.String())
}

func reverse(s string) string {
	if len(s) <= 1 {
		return s
	}
	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}
