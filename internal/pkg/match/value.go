// Package match models the alert match records handed over by the alerting engine.
// Records are ordered value trees: object members keep the order in which they were
// decoded so that formatted output is deterministic.
package match

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Kind identifies the type held by a Value.
type Kind int

// Kinds of Value, mirroring the JSON types.
const (
	KindNull Kind = iota // null, the zero Value
	KindBool
	KindNumber // held as its literal text
	KindString
	KindObject // ordered members
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return "unknown"
	}
}

// Member is a single key/value pair of an object.
type Member struct {
	Key   string
	Value Value
}

// Value is one node of a match record.
// The zero Value is null.
type Value struct {
	kind    Kind
	b       bool
	s       string // string contents, or the literal text of a number
	members []Member
	items   []Value
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Str returns a string value.
func Str(s string) Value { return Value{kind: KindString, s: s} }

// Num returns a number value from an integer.
func Num(n int64) Value { return Value{kind: KindNumber, s: strconv.FormatInt(n, 10)} }

// Float returns a number value using the shortest representation of f.
func Float(f float64) Value {
	return Value{kind: KindNumber, s: strconv.FormatFloat(f, 'g', -1, 64)}
}

// Literal returns a number value that renders exactly as lit.
func Literal(lit string) Value { return Value{kind: KindNumber, s: lit} }

// Object returns an object value with members in the given order.
func Object(members ...Member) Value { return Value{kind: KindObject, members: members} }

// Array returns an array value.
func Array(items ...Value) Value { return Value{kind: KindArray, items: items} }

// M is shorthand for building a Member.
func M(key string, v Value) Member { return Member{Key: key, Value: v} }

// Kind reports the JSON type of v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is JSON null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Members returns the object members in order, or nil for non-objects.
func (v Value) Members() []Member {
	if v.kind != KindObject {
		return nil
	}
	return v.members
}

// Items returns the array elements, or nil for non-arrays.
func (v Value) Items() []Value {
	if v.kind != KindArray {
		return nil
	}
	return v.items
}

// AsString returns the string contents and whether v is a string.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

// Get looks up key in an object. The first member with that key wins.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	for _, m := range v.members {
		if m.Key == key {
			return m.Value, true
		}
	}
	return Value{}, false
}

// Path walks nested objects. Any missing key or non-object intermediate yields false.
func (v Value) Path(keys ...string) (Value, bool) {
	cur := v
	for _, k := range keys {
		next, ok := cur.Get(k)
		if !ok {
			return Value{}, false
		}
		cur = next
	}
	return cur, true
}

// StringAt returns the string at the given path, or false if the path is absent
// or the terminal value is not a string.
func (v Value) StringAt(keys ...string) (string, bool) {
	found, ok := v.Path(keys...)
	if !ok {
		return "", false
	}
	return found.AsString()
}

// Text renders v for display: strings as-is, numbers as their literal, and
// composite values as compact JSON.
func (v Value) Text() string {
	switch v.kind {
	case KindString, KindNumber:
		return v.s
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNull:
		return "null"
	default:
		b, err := v.MarshalJSON()
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// MarshalJSON encodes v preserving member order.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.b))
	case KindNumber:
		buf.WriteString(v.s)
	case KindString:
		b, err := json.Marshal(v.s)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindObject:
		buf.WriteByte('{')
		for i, m := range v.members {
			if i > 0 {
				buf.WriteByte(',')
			}
			k, err := json.Marshal(m.Key)
			if err != nil {
				return err
			}
			buf.Write(k)
			buf.WriteByte(':')
			if err := m.Value.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case KindArray:
		buf.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	}
	return nil
}
