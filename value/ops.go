package value

import (
	"math/big"
	"reflect"
	"strings"
)

// Equal reports value equality across kinds: numbers compare numerically
// regardless of int/float storage, strings compare as text (safe tagging
// is not part of identity), sequences and maps compare element-wise.
func Equal(a, b Value) bool {
	if a.IsUndefined() || b.IsUndefined() {
		return a.IsUndefined() && b.IsUndefined()
	}
	if a.IsNone() || b.IsNone() {
		return a.IsNone() && b.IsNone()
	}

	if ab, ok := a.AsBool(); ok {
		if bb, ok2 := b.AsBool(); ok2 {
			return ab == bb
		}
		// Python bools compare equal to 0/1.
		if bf, ok2 := b.AsFloat(); ok2 && b.Kind() == KindNumber {
			return boolToFloat(ab) == bf
		}
		return false
	}
	if bb, ok := b.AsBool(); ok {
		if af, ok2 := a.AsFloat(); ok2 && a.Kind() == KindNumber {
			return af == boolToFloat(bb)
		}
		return false
	}

	if a.Kind() == KindNumber && b.Kind() == KindNumber {
		return numericCompare(a, b) == 0
	}

	if as, ok := a.AsString(); ok {
		bs, ok2 := b.AsString()
		return ok2 && as == bs
	}

	if aSlice, ok := a.AsSlice(); ok {
		bSlice, ok2 := b.AsSlice()
		if !ok2 || len(aSlice) != len(bSlice) {
			return false
		}
		for i := range aSlice {
			if !Equal(aSlice[i], bSlice[i]) {
				return false
			}
		}
		return true
	}

	if aMap, ok := a.AsMap(); ok {
		bMap, ok2 := b.AsMap()
		if !ok2 || len(aMap) != len(bMap) {
			return false
		}
		for k, av := range aMap {
			bv, exists := bMap[k]
			if !exists || !Equal(av, bv) {
				return false
			}
		}
		return true
	}

	if at, ok := a.AsTime(); ok {
		bt, ok2 := b.AsTime()
		return ok2 && at.Equal(bt)
	}

	// Opaque values compare by Go equality when their type supports it.
	// Uncomparable types (funcs, slice-bearing structs) are never equal
	// rather than a panic mid-render.
	ta, tb := reflect.TypeOf(a.data), reflect.TypeOf(b.data)
	if ta == nil || ta != tb || !ta.Comparable() {
		return false
	}
	return a.data == b.data
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// numericCompare compares two number values, using big.Int arithmetic when
// either side exceeds int64.
func numericCompare(a, b Value) int {
	ai, aBig := a.data.(bigIntValue)
	bi, bBig := b.data.(bigIntValue)
	if aBig || bBig {
		av := bigOf(a, ai, aBig)
		bv := bigOf(b, bi, bBig)
		if av != nil && bv != nil {
			return av.Cmp(bv)
		}
	}
	af, _ := a.AsFloat()
	bf, _ := b.AsFloat()
	switch {
	case af < bf:
		return -1
	case af > bf:
		return 1
	default:
		return 0
	}
}

func bigOf(v Value, bi bigIntValue, isBig bool) *big.Float {
	if isBig {
		return new(big.Float).SetInt(bi.Int)
	}
	switch d := v.data.(type) {
	case int64:
		return new(big.Float).SetInt64(d)
	case float64:
		return big.NewFloat(d)
	default:
		return nil
	}
}

// Compare orders two values. The second result is false when the pair has
// no defined ordering (mixed kinds, containers); the smart-if evaluator
// turns that into a false condition rather than an error.
func Compare(a, b Value) (int, bool) {
	if a.Kind() == KindNumber && b.Kind() == KindNumber {
		return numericCompare(a, b), true
	}
	if as, ok := a.AsString(); ok {
		if bs, ok2 := b.AsString(); ok2 {
			return strings.Compare(as, bs), true
		}
	}
	if at, ok := a.AsTime(); ok {
		if bt, ok2 := b.AsTime(); ok2 {
			switch {
			case at.Before(bt):
				return -1, true
			case at.After(bt):
				return 1, true
			default:
				return 0, true
			}
		}
	}
	if ab, ok := a.AsBool(); ok {
		if bb, ok2 := b.AsBool(); ok2 {
			switch {
			case !ab && bb:
				return -1, true
			case ab && !bb:
				return 1, true
			default:
				return 0, true
			}
		}
	}
	return 0, false
}

// Contains reports whether needle occurs in haystack: substring for
// strings, element membership for sequences, key membership for maps. The
// second result is false when haystack supports no containment test.
func Contains(haystack, needle Value) (bool, bool) {
	switch d := haystack.data.(type) {
	case string:
		return stringContains(d, needle)
	case safeString:
		return stringContains(string(d), needle)
	case []Value:
		for _, item := range d {
			if Equal(item, needle) {
				return true, true
			}
		}
		return false, true
	case map[string]Value:
		s, ok := needle.AsString()
		if !ok {
			return false, true
		}
		_, exists := d[s]
		return exists, true
	default:
		return false, false
	}
}

func stringContains(s string, needle Value) (bool, bool) {
	sub, ok := needle.AsString()
	if !ok {
		return false, false
	}
	return strings.Contains(s, sub), true
}

// SameAs reports identity: for containers and objects, whether both values
// reference the same underlying Go data; for primitives, kind and value
// equality. This backs the `is` operator.
func SameAs(a, b Value) bool {
	switch ad := a.data.(type) {
	case []Value:
		bd, ok := b.data.([]Value)
		if !ok {
			return false
		}
		if len(ad) == 0 || len(bd) == 0 {
			return len(ad) == 0 && len(bd) == 0 && reflect.ValueOf(ad).Pointer() == reflect.ValueOf(bd).Pointer()
		}
		return len(ad) == len(bd) && &ad[0] == &bd[0]
	case map[string]Value:
		bd, ok := b.data.(map[string]Value)
		return ok && reflect.ValueOf(ad).Pointer() == reflect.ValueOf(bd).Pointer()
	case Object:
		bd, ok := b.data.(Object)
		if !ok {
			return false
		}
		ta := reflect.TypeOf(ad)
		if ta != reflect.TypeOf(bd) || !ta.Comparable() {
			return false
		}
		return ad == bd
	case undefinedType:
		return b.IsUndefined()
	case noneType, nil:
		return b.IsNone()
	case bool:
		bb, ok := b.data.(bool)
		return ok && ad == bb
	default:
		if a.Kind() != b.Kind() {
			return false
		}
		return Equal(a, b)
	}
}

// Add combines two values the way the add filter expects: numeric
// addition when both coerce to numbers, sequence concatenation for two
// sequences, string concatenation for two strings. The second result is
// false for unsupported pairs.
func Add(a, b Value) (Value, bool) {
	if a.Kind() == KindNumber && b.Kind() == KindNumber {
		return numericAdd(a, b), true
	}
	if aSlice, ok := a.AsSlice(); ok {
		if bSlice, ok2 := b.AsSlice(); ok2 {
			combined := make([]Value, 0, len(aSlice)+len(bSlice))
			combined = append(combined, aSlice...)
			combined = append(combined, bSlice...)
			return FromSlice(combined), true
		}
	}
	if as, ok := a.AsString(); ok {
		if bs, ok2 := b.AsString(); ok2 {
			return FromString(as + bs), true
		}
	}
	return Undefined(), false
}

func numericAdd(a, b Value) Value {
	if a.IsActualInt() && b.IsActualInt() {
		ai, aok := a.AsInt()
		bi, bok := b.AsInt()
		if aok && bok {
			sum := ai + bi
			// Overflow check; promote to big.Int on wraparound.
			if (sum > ai) == (bi > 0) {
				return FromInt(sum)
			}
		}
		av := bigIntOf(a)
		bv := bigIntOf(b)
		return FromBigInt(new(big.Int).Add(av, bv))
	}
	af, _ := a.AsFloat()
	bf, _ := b.AsFloat()
	return FromFloat(af + bf)
}

func bigIntOf(v Value) *big.Int {
	switch d := v.data.(type) {
	case bigIntValue:
		return d.Int
	case int64:
		return big.NewInt(d)
	default:
		return big.NewInt(0)
	}
}
