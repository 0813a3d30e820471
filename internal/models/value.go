package models

import (
	"encoding/json"
	"strings"
)

// ValueKind discriminates the three shapes a front-block value can take.
type ValueKind int

const (
	ValueNull ValueKind = iota
	ValueString
	ValueList
)

// Value is a front-block value: null, a string, or an ordered list of strings.
// The zero Value is null.
type Value struct {
	kind ValueKind
	str  string
	list []string
}

// Null returns the null value.
func Null() Value { return Value{} }

// String returns a string value.
func String(s string) Value { return Value{kind: ValueString, str: s} }

// List returns a list value. The slice is copied.
func List(items ...string) Value {
	cp := make([]string, len(items))
	copy(cp, items)
	return Value{kind: ValueList, list: cp}
}

// Kind reports the value's shape.
func (v Value) Kind() ValueKind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == ValueNull }

// Str returns the string payload and whether v is a string.
func (v Value) Str() (string, bool) {
	return v.str, v.kind == ValueString
}

// Items returns a copy of the list payload and whether v is a list.
func (v Value) Items() ([]string, bool) {
	if v.kind != ValueList {
		return nil, false
	}
	cp := make([]string, len(v.list))
	copy(cp, v.list)
	return cp, true
}

// Strings flattens v: null is empty, a string is a single element.
func (v Value) Strings() []string {
	switch v.kind {
	case ValueString:
		return []string{v.str}
	case ValueList:
		out, _ := v.Items()
		return out
	}
	return nil
}

// Equal reports whether two values have the same shape and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind || v.str != o.str || len(v.list) != len(o.list) {
		return false
	}
	for i := range v.list {
		if v.list[i] != o.list[i] {
			return false
		}
	}
	return true
}

// Display renders v for human output: lists are comma-joined, null is empty.
func (v Value) Display() string {
	switch v.kind {
	case ValueString:
		return v.str
	case ValueList:
		return strings.Join(v.list, ", ")
	}
	return ""
}

// MarshalJSON encodes null, string or array.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case ValueString:
		return json.Marshal(v.str)
	case ValueList:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	}
	return []byte("null"), nil
}

// Metadata is a front-block key → value map. Keys are case-sensitive.
type Metadata map[string]Value

// Get returns the value for key; missing keys are null.
func (m Metadata) Get(key string) Value {
	if m == nil {
		return Null()
	}
	return m[key]
}

// Has reports whether key is present, even with a null value.
func (m Metadata) Has(key string) bool {
	_, ok := m[key]
	return ok
}

// Str returns the string value of key, or "" when absent or not a string.
func (m Metadata) Str(key string) string {
	s, _ := m.Get(key).Str()
	return s
}

// Clone returns an independent copy.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		if v.kind == ValueList {
			v = List(v.list...)
		}
		out[k] = v
	}
	return out
}

// Equal reports whether both maps hold the same keys and values.
func (m Metadata) Equal(o Metadata) bool {
	if len(m) != len(o) {
		return false
	}
	for k, v := range m {
		ov, ok := o[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}
