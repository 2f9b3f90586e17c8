package model

import (
	"math"
	"strconv"

	"github.com/yanun0323/decimal"
)

// Kind is the type tag of a field value.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindDecimal
	KindBytes
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindDecimal:
		return "decimal"
	case KindBytes:
		return "bytes"
	default:
		return "invalid"
	}
}

// IsAvailable reports whether the kind is a known value kind.
func (k Kind) IsAvailable() bool {
	return k >= KindString && k <= KindBytes
}

// Value is a single typed field value. The zero Value is invalid.
type Value struct {
	kind Kind
	str  string
	num  int64
	raw  []byte
}

func String(s string) Value { return Value{kind: KindString, str: s} }

func Int(i int64) Value { return Value{kind: KindInt, num: i} }

func Float(f float64) Value { return Value{kind: KindFloat, num: int64(math.Float64bits(f))} }

func Bool(b bool) Value {
	v := Value{kind: KindBool}
	if b {
		v.num = 1
	}
	return v
}

// Decimal stores d in its canonical string form.
func Decimal(d decimal.Decimal) Value { return DecimalString(d.String()) }

// DecimalString builds a decimal value from an already canonical decimal string.
func DecimalString(s string) Value { return Value{kind: KindDecimal, str: s} }

// Bytes copies b.
func Bytes(b []byte) Value {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Value{kind: KindBytes, raw: cp}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsValid() bool { return v.kind.IsAvailable() }

func (v Value) Str() (string, bool) { return v.str, v.kind == KindString }

func (v Value) Int() (int64, bool) { return v.num, v.kind == KindInt }

func (v Value) Float() (float64, bool) {
	return math.Float64frombits(uint64(v.num)), v.kind == KindFloat
}

func (v Value) Bool() (bool, bool) { return v.num != 0, v.kind == KindBool }

// DecimalText returns the canonical decimal string.
func (v Value) DecimalText() (string, bool) { return v.str, v.kind == KindDecimal }

// Decimal parses the stored decimal string.
func (v Value) Decimal() (decimal.Decimal, bool) {
	if v.kind != KindDecimal {
		return decimal.Zero, false
	}
	d, err := decimal.New(v.str)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// Raw returns the byte payload. The slice must not be modified.
func (v Value) Raw() ([]byte, bool) { return v.raw, v.kind == KindBytes }

// Bits returns the numeric storage used by int, float and bool values.
func (v Value) Bits() int64 { return v.num }

// Any converts the value into a plain Go value for JSON style output.
func (v Value) Any() any {
	switch v.kind {
	case KindString, KindDecimal:
		return v.str
	case KindInt:
		return v.num
	case KindFloat:
		f, _ := v.Float()
		return f
	case KindBool:
		return v.num != 0
	case KindBytes:
		return v.raw
	default:
		return nil
	}
}

// Equal compares kind and content.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind || v.str != o.str || v.num != o.num || len(v.raw) != len(o.raw) {
		return false
	}
	for i := range v.raw {
		if v.raw[i] != o.raw[i] {
			return false
		}
	}
	return true
}

func (v Value) String() string {
	switch v.kind {
	case KindString, KindDecimal:
		return v.str
	case KindInt:
		return strconv.FormatInt(v.num, 10)
	case KindFloat:
		f, _ := v.Float()
		return strconv.FormatFloat(f, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.num != 0)
	case KindBytes:
		return strconv.Quote(string(v.raw))
	default:
		return "<invalid>"
	}
}

// Field is a named value.
type Field struct {
	Name  string
	Value Value
}

// Fields is an ordered name to value mapping. Insertion order is kept.
type Fields struct {
	list []Field
}

// NewFields builds Fields from the given entries. A repeated name overwrites
// the earlier value in its original position.
func NewFields(entries ...Field) Fields {
	var f Fields
	for _, e := range entries {
		f.Set(e.Name, e.Value)
	}
	return f
}

// Set replaces the value of an existing name in place, or appends it.
func (f *Fields) Set(name string, v Value) {
	for i := range f.list {
		if f.list[i].Name == name {
			f.list[i].Value = v
			return
		}
	}
	f.list = append(f.list, Field{Name: name, Value: v})
}

// Append adds an entry without checking for duplicates. Decoders use it to
// rebuild a payload that was already de-duplicated when written.
func (f *Fields) Append(name string, v Value) {
	f.list = append(f.list, Field{Name: name, Value: v})
}

func (f Fields) Get(name string) (Value, bool) {
	for i := range f.list {
		if f.list[i].Name == name {
			return f.list[i].Value, true
		}
	}
	return Value{}, false
}

func (f Fields) Len() int { return len(f.list) }

func (f Fields) At(i int) Field { return f.list[i] }

func (f Fields) Names() []string {
	names := make([]string, len(f.list))
	for i := range f.list {
		names[i] = f.list[i].Name
	}
	return names
}

// Range calls fn for every entry in order until fn returns false.
func (f Fields) Range(fn func(name string, v Value) bool) {
	for _, e := range f.list {
		if !fn(e.Name, e.Value) {
			return
		}
	}
}

func (f Fields) Clone() Fields {
	if f.list == nil {
		return Fields{}
	}
	cp := make([]Field, len(f.list))
	copy(cp, f.list)
	return Fields{list: cp}
}

// Equal compares names, values and order.
func (f Fields) Equal(o Fields) bool {
	if len(f.list) != len(o.list) {
		return false
	}
	for i := range f.list {
		if f.list[i].Name != o.list[i].Name || !f.list[i].Value.Equal(o.list[i].Value) {
			return false
		}
	}
	return true
}
