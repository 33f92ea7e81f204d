// Package value provides the dynamic value type used by the template engine.
//
// Template data arrives as arbitrary Go values and is normalized into the
// Value type, which carries a kind discriminant, safe-string tagging for the
// escaping pipeline, and the attribute/item access used by dotted variable
// lookups. Lookup misses never fail: accessing a missing key, index, or
// attribute yields Undefined(), which renders as empty text and evaluates as
// false in conditions.
//
// # Creating Values
//
//	name := value.FromString("World")
//	count := value.FromInt(42)
//	items := value.FromSlice([]value.Value{name, count})
//	user := value.FromMap(map[string]value.Value{"name": name})
//
// Arbitrary Go data is converted with FromAny:
//
//	val := value.FromAny(map[string]any{"name": "Alice", "age": 30})
//
// # Safe strings
//
// Strings can be tagged as safe, meaning they are already escaped (or known
// trusted) and must not be escaped again on emission:
//
//	html := value.FromSafeString("<b>bold</b>")
//	html.IsSafe() // true
package value

import (
	"fmt"
	"math"
	"math/big"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Callable is implemented by values that can be invoked with no arguments
// during variable resolution. When a dotted lookup lands on a callable
// segment, the resolver calls it and continues with the result.
type Callable interface {
	Call() (Value, error)
}

// AltersData marks a callable that must never be auto-called from a
// template because invoking it would mutate data. Resolution treats such a
// segment as a miss.
type AltersData interface {
	AltersData() bool
}

// DoNotCall marks a callable exempted from auto-calling. Resolution keeps
// the callable itself as the resolved value.
type DoNotCall interface {
	DoNotCall() bool
}

// Object is implemented by custom objects exposing attributes to dotted
// lookups. A missing attribute must return Undefined().
type Object interface {
	GetAttr(name string) Value
}

// MutableObject is an Object that also supports attribute assignment. The
// loop frame uses this to carry per-loop tag state.
type MutableObject interface {
	Object
	SetAttr(name string, v Value)
}

// ValueKind describes the type of a Value.
type ValueKind int

const (
	// KindUndefined represents a missing value: a failed variable lookup,
	// attribute access, or index. Renders as empty text, evaluates false.
	KindUndefined ValueKind = iota

	// KindNone represents an explicit nil.
	KindNone

	// KindBool represents true/false.
	KindBool

	// KindNumber represents an integer, big integer, or float.
	KindNumber

	// KindString represents text, safe or unsafe for auto-escaping.
	KindString

	// KindSeq represents an ordered sequence.
	KindSeq

	// KindMap represents a string-keyed mapping.
	KindMap

	// KindTime represents a date/time value, formatted by the locale
	// formatter on emission.
	KindTime

	// KindCallable represents a zero-argument callable.
	KindCallable

	// KindPlain represents an opaque or custom attribute-bearing object.
	KindPlain
)

func (k ValueKind) String() string {
	switch k {
	case KindUndefined:
		return "undefined"
	case KindNone:
		return "none"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindSeq:
		return "sequence"
	case KindMap:
		return "map"
	case KindTime:
		return "time"
	case KindCallable:
		return "callable"
	case KindPlain:
		return "plain object"
	default:
		return "unknown"
	}
}

// Value is a dynamically typed template value.
//
// Values are immutable for primitive types; sequences and maps reference
// the underlying Go slice or map, never copy it.
type Value struct {
	data any
}

type undefinedType struct{}
type noneType struct{}

// safeString is the internal tag for strings exempt from escaping.
type safeString string

// bigIntValue wraps a big.Int for integers outside the int64 range.
type bigIntValue struct {
	*big.Int
}

// Undefined returns the "does not exist" value produced by failed lookups.
func Undefined() Value {
	return Value{data: undefinedType{}}
}

// None returns the nil value.
func None() Value {
	return Value{data: noneType{}}
}

// True returns the boolean true value.
func True() Value {
	return Value{data: true}
}

// False returns the boolean false value.
func False() Value {
	return Value{data: false}
}

// FromBool creates a Value from a boolean.
func FromBool(v bool) Value {
	return Value{data: v}
}

// FromInt creates a Value from an int64.
func FromInt(v int64) Value {
	return Value{data: v}
}

// FromFloat creates a Value from a float64.
func FromFloat(v float64) Value {
	return Value{data: v}
}

// FromBigInt creates a Value from an arbitrary-precision integer.
func FromBigInt(v *big.Int) Value {
	return Value{data: bigIntValue{v}}
}

// FromString creates an unsafe (to-be-escaped) string Value.
func FromString(v string) Value {
	return Value{data: v}
}

// FromSafeString creates a string Value exempt from auto-escaping.
func FromSafeString(v string) Value {
	return Value{data: safeString(v)}
}

// FromTime creates a Value from a time.Time.
func FromTime(v time.Time) Value {
	return Value{data: v}
}

// FromSlice creates a sequence Value.
func FromSlice(v []Value) Value {
	return Value{data: v}
}

// FromMap creates a mapping Value.
func FromMap(v map[string]Value) Value {
	return Value{data: v}
}

// FromCallable creates a Value wrapping a zero-argument callable.
func FromCallable(c Callable) Value {
	return Value{data: c}
}

// FromObject creates a Value wrapping a custom attribute-bearing object.
func FromObject(o Object) Value {
	return Value{data: o}
}

// FromFunc wraps a plain Go function as a callable Value.
func FromFunc(f func() (Value, error)) Value {
	return Value{data: funcCallable(f)}
}

type funcCallable func() (Value, error)

func (f funcCallable) Call() (Value, error) { return f() }

// FromAny converts an arbitrary Go value using reflection: nil becomes
// None, primitives map to their kinds, slices/arrays and maps convert
// recursively, time.Time stays a time value, structs become objects whose
// exported fields and zero-argument methods are reachable as attributes,
// and zero-argument functions become callables.
func FromAny(v any) Value {
	if v == nil {
		return None()
	}
	switch t := v.(type) {
	case Value:
		return t
	case Object:
		return FromObject(t)
	case Callable:
		return FromCallable(t)
	case time.Time:
		return FromTime(t)
	case *big.Int:
		return FromBigInt(t)
	}
	return fromReflectValue(reflect.ValueOf(v))
}

func fromReflectValue(rv reflect.Value) Value {
	if !rv.IsValid() {
		return None()
	}
	if rv.CanInterface() {
		switch t := rv.Interface().(type) {
		case Value:
			return t
		case Object:
			return FromObject(t)
		case Callable:
			return FromCallable(t)
		case time.Time:
			return FromTime(t)
		}
	}

	switch rv.Kind() {
	case reflect.Bool:
		return FromBool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return FromInt(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return FromInt(int64(rv.Uint()))
	case reflect.Float32, reflect.Float64:
		return FromFloat(rv.Float())
	case reflect.String:
		return FromString(rv.String())
	case reflect.Slice, reflect.Array:
		slice := make([]Value, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			slice[i] = fromReflectValue(rv.Index(i))
		}
		return FromSlice(slice)
	case reflect.Map:
		m := make(map[string]Value, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k := iter.Key()
			var key string
			if k.Kind() == reflect.String {
				key = k.String()
			} else {
				key = fmt.Sprintf("%v", k.Interface())
			}
			m[key] = fromReflectValue(iter.Value())
		}
		return FromMap(m)
	case reflect.Struct:
		return FromObject(&structObject{rv: rv})
	case reflect.Func:
		return wrapFunc(rv)
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return None()
		}
		if rv.Kind() == reflect.Ptr && rv.Elem().Kind() == reflect.Struct {
			// Keep the pointer so methods with pointer receivers resolve.
			return FromObject(&structObject{rv: rv})
		}
		return fromReflectValue(rv.Elem())
	default:
		return Value{data: rv.Interface()}
	}
}

var errType = reflect.TypeOf((*error)(nil)).Elem()

// wrapFunc turns a zero-input Go function into a callable Value. Functions
// with required inputs are excluded from auto-calling and resolve as
// opaque plain values.
func wrapFunc(rv reflect.Value) Value {
	t := rv.Type()
	if t.NumIn() != 0 || t.NumOut() < 1 || t.NumOut() > 2 {
		return Value{data: rv.Interface()}
	}
	if t.NumOut() == 2 && t.Out(1) != errType {
		return Value{data: rv.Interface()}
	}
	return FromFunc(func() (Value, error) {
		out := rv.Call(nil)
		if len(out) == 2 {
			if e := out[1].Interface(); e != nil {
				return Undefined(), e.(error)
			}
		}
		return fromReflectValue(out[0]), nil
	})
}

// structObject adapts a Go struct (or pointer to struct) to the Object
// interface: exported fields resolve directly and exported methods with no
// inputs resolve as callables, so the resolver's attribute-then-call chain
// reaches them.
type structObject struct {
	rv reflect.Value
}

func (s *structObject) GetAttr(name string) Value {
	if m := s.rv.MethodByName(name); m.IsValid() {
		return wrapFunc(m)
	}
	elem := s.rv
	if elem.Kind() == reflect.Ptr {
		if elem.IsNil() {
			return Undefined()
		}
		elem = elem.Elem()
	}
	if elem.Kind() != reflect.Struct {
		return Undefined()
	}
	f := elem.FieldByName(name)
	if !f.IsValid() || !f.CanInterface() {
		return Undefined()
	}
	return fromReflectValue(f)
}

// Kind returns the kind of value.
func (v Value) Kind() ValueKind {
	switch v.data.(type) {
	case undefinedType:
		return KindUndefined
	case noneType, nil:
		return KindNone
	case bool:
		return KindBool
	case int64, float64, bigIntValue:
		return KindNumber
	case string, safeString:
		return KindString
	case []Value:
		return KindSeq
	case map[string]Value:
		return KindMap
	case time.Time:
		return KindTime
	case Callable:
		return KindCallable
	default:
		return KindPlain
	}
}

// IsUndefined reports whether the value is the lookup-miss signal.
func (v Value) IsUndefined() bool {
	_, ok := v.data.(undefinedType)
	return ok
}

// IsNone reports whether the value is the nil value.
func (v Value) IsNone() bool {
	if v.data == nil {
		return true
	}
	_, ok := v.data.(noneType)
	return ok
}

// IsSafe reports whether the value needs no escaping on emission. Strings
// are safe only when tagged; every non-string renders from its own
// formatter and is safe by construction.
func (v Value) IsSafe() bool {
	switch v.data.(type) {
	case safeString:
		return true
	case string:
		return false
	default:
		return true
	}
}

// MarkSafe returns the value with its string form tagged safe. Non-string
// values are returned unchanged.
func (v Value) MarkSafe() Value {
	if s, ok := v.data.(string); ok {
		return FromSafeString(s)
	}
	return v
}

// IsTrue returns the truthiness of the value: empty strings, zero numbers,
// empty containers, nil, undefined, zero times, and false are all false.
func (v Value) IsTrue() bool {
	switch d := v.data.(type) {
	case undefinedType, noneType, nil:
		return false
	case bool:
		return d
	case int64:
		return d != 0
	case bigIntValue:
		return d.Sign() != 0
	case float64:
		return d != 0 && !math.IsNaN(d)
	case string:
		return d != ""
	case safeString:
		return d != ""
	case []Value:
		return len(d) > 0
	case map[string]Value:
		return len(d) > 0
	case time.Time:
		return !d.IsZero()
	default:
		return true
	}
}

// String returns the rendered text form of the value. Numbers and times
// render here without locale awareness; the render pipeline routes them
// through the locale formatter first when localization applies.
func (v Value) String() string {
	switch d := v.data.(type) {
	case undefinedType:
		return ""
	case noneType, nil:
		return "None"
	case bool:
		if d {
			return "True"
		}
		return "False"
	case int64:
		return strconv.FormatInt(d, 10)
	case bigIntValue:
		return d.Int.String()
	case float64:
		return FormatFloat(d)
	case string:
		return d
	case safeString:
		return string(d)
	case []Value:
		parts := make([]string, len(d))
		for i, item := range d {
			parts[i] = item.Repr()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]Value:
		keys := make([]string, 0, len(d))
		for k := range d {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%q: %s", k, d[k].Repr())
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case time.Time:
		return d.Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprintf("%v", d)
	}
}

// FormatFloat renders a float the way templates expect: whole floats keep
// one decimal ("2.0"), everything else takes the shortest exact form.
func FormatFloat(f float64) string {
	if math.IsInf(f, 1) {
		return "inf"
	}
	if math.IsInf(f, -1) {
		return "-inf"
	}
	if math.IsNaN(f) {
		return "nan"
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e16 {
		return strconv.FormatFloat(f, 'f', 1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Repr returns a debug representation of the value.
func (v Value) Repr() string {
	switch d := v.data.(type) {
	case string:
		return fmt.Sprintf("%q", d)
	case safeString:
		return fmt.Sprintf("%q", string(d))
	default:
		return v.String()
	}
}

// AsString returns the string value if it is one.
func (v Value) AsString() (string, bool) {
	switch d := v.data.(type) {
	case string:
		return d, true
	case safeString:
		return string(d), true
	default:
		return "", false
	}
}

// AsInt returns the value as an int64 if it is an integral number.
func (v Value) AsInt() (int64, bool) {
	switch d := v.data.(type) {
	case int64:
		return d, true
	case bigIntValue:
		if d.IsInt64() {
			return d.Int64(), true
		}
		return 0, false
	case float64:
		if d == math.Trunc(d) && d >= math.MinInt64 && d <= math.MaxInt64 {
			return int64(d), true
		}
		return 0, false
	default:
		return 0, false
	}
}

// AsFloat returns the value as a float64 if it is numeric.
func (v Value) AsFloat() (float64, bool) {
	switch d := v.data.(type) {
	case int64:
		return float64(d), true
	case bigIntValue:
		f, _ := new(big.Float).SetInt(d.Int).Float64()
		return f, true
	case float64:
		return d, true
	default:
		return 0, false
	}
}

// AsBool returns the boolean value if it is one.
func (v Value) AsBool() (bool, bool) {
	b, ok := v.data.(bool)
	return b, ok
}

// AsSlice returns the sequence if it is one.
func (v Value) AsSlice() ([]Value, bool) {
	s, ok := v.data.([]Value)
	return s, ok
}

// AsMap returns the mapping if it is one.
func (v Value) AsMap() (map[string]Value, bool) {
	m, ok := v.data.(map[string]Value)
	return m, ok
}

// AsTime returns the time value if it is one.
func (v Value) AsTime() (time.Time, bool) {
	t, ok := v.data.(time.Time)
	return t, ok
}

// AsCallable returns the Callable if this value wraps one.
func (v Value) AsCallable() (Callable, bool) {
	c, ok := v.data.(Callable)
	return c, ok
}

// AsObject returns the Object if this value wraps one.
func (v Value) AsObject() (Object, bool) {
	o, ok := v.data.(Object)
	return o, ok
}

// IsActualInt reports whether the value is stored as an integer, as
// opposed to a whole float. Backs integer-only formatting fast paths.
func (v Value) IsActualInt() bool {
	switch v.data.(type) {
	case int64, bigIntValue:
		return true
	default:
		return false
	}
}

// IsActualFloat reports whether the value is stored as a float64.
func (v Value) IsActualFloat() bool {
	_, ok := v.data.(float64)
	return ok
}

// Len returns the length of the value if it has one.
func (v Value) Len() (int, bool) {
	switch d := v.data.(type) {
	case string:
		return len([]rune(d)), true
	case safeString:
		return len([]rune(string(d))), true
	case []Value:
		return len(d), true
	case map[string]Value:
		return len(d), true
	default:
		return 0, false
	}
}

// Iter returns the value's items for iteration, or nil when the value is
// not iterable. Maps iterate over their keys in sorted order so renders
// are deterministic; strings iterate over runes.
func (v Value) Iter() []Value {
	switch d := v.data.(type) {
	case []Value:
		return d
	case map[string]Value:
		keys := make([]string, 0, len(d))
		for k := range d {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		result := make([]Value, len(keys))
		for i, k := range keys {
			result[i] = FromString(k)
		}
		return result
	case string:
		return runeValues(d)
	case safeString:
		return runeValues(string(d))
	default:
		return nil
	}
}

func runeValues(s string) []Value {
	runes := []rune(s)
	result := make([]Value, len(runes))
	for i, r := range runes {
		result[i] = FromString(string(r))
	}
	return result
}

// GetItem gets an item by key: integer index for sequences and strings
// (negative indexes count from the end), string key for mappings. Misses
// return Undefined.
func (v Value) GetItem(key Value) Value {
	switch d := v.data.(type) {
	case []Value:
		if idx, ok := key.AsInt(); ok {
			if idx < 0 {
				idx += int64(len(d))
			}
			if idx >= 0 && idx < int64(len(d)) {
				return d[idx]
			}
		}
	case map[string]Value:
		if s, ok := key.AsString(); ok {
			if val, exists := d[s]; exists {
				return val
			}
		}
	case string:
		return stringIndex(d, key)
	case safeString:
		return stringIndex(string(d), key)
	case Object:
		if s, ok := key.AsString(); ok {
			return d.GetAttr(s)
		}
	}
	return Undefined()
}

func stringIndex(s string, key Value) Value {
	idx, ok := key.AsInt()
	if !ok {
		return Undefined()
	}
	runes := []rune(s)
	if idx < 0 {
		idx += int64(len(runes))
	}
	if idx >= 0 && idx < int64(len(runes)) {
		return FromString(string(runes[idx]))
	}
	return Undefined()
}

// GetAttr gets an attribute by name: mapping key or object attribute.
// Misses return Undefined.
func (v Value) GetAttr(name string) Value {
	switch d := v.data.(type) {
	case map[string]Value:
		if val, ok := d[name]; ok {
			return val
		}
	case Object:
		return d.GetAttr(name)
	}
	return Undefined()
}

// Raw returns the underlying Go value.
func (v Value) Raw() any {
	return v.data
}
