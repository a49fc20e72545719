// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package jsonvalue holds the JSON value model used by the engine and a
// strict single-record parser for it.
package jsonvalue

import "math"

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is one JSON value. The zero Value is null.
//
// Only the field matching kind is meaningful. Values are immutable once
// built by the parser or the constructors below.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	arr  []Value
	obj  *Object
}

// Member is one key/value pair of an object.
type Member struct {
	Key   string
	Value Value
}

// Object is an insertion-ordered JSON object with unique keys.
type Object struct {
	members []Member
	index   map[string]int
}

// objects with more members than this get a key index
const indexThreshold = 8

func Null() Value             { return Value{} }
func Bool(b bool) Value       { return Value{kind: KindBool, b: b} }
func Number(n float64) Value  { return Value{kind: KindNumber, n: n} }
func String(s string) Value   { return Value{kind: KindString, s: s} }
func Array(vs ...Value) Value { return Value{kind: KindArray, arr: vs} }

// ObjectOf builds an object value. Later duplicates of a key replace the
// earlier value in place.
func ObjectOf(members ...Member) Value {
	o := &Object{members: make([]Member, 0, len(members))}
	for _, m := range members {
		o.set(m.Key, m.Value)
	}
	return Value{kind: KindObject, obj: o}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

// Bool returns the boolean and whether v is a boolean.
func (v Value) Bool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// Number returns the number and whether v is a number.
func (v Value) Number() (float64, bool) {
	return v.n, v.kind == KindNumber
}

// Str returns the string and whether v is a string.
func (v Value) Str() (string, bool) {
	return v.s, v.kind == KindString
}

// Array returns the elements and whether v is an array.
func (v Value) Array() ([]Value, bool) {
	return v.arr, v.kind == KindArray
}

// Object returns the object and whether v is an object.
func (v Value) Object() (*Object, bool) {
	return v.obj, v.kind == KindObject
}

// IsInteger reports whether v is a finite number without fractional part.
func (v Value) IsInteger() bool {
	return v.kind == KindNumber && isIntegral(v.n)
}

func isIntegral(f float64) bool {
	return !math.IsInf(f, 0) && f == math.Trunc(f)
}

// Len returns the number of members.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.members)
}

// Members returns the members in insertion order. The slice must not be
// modified.
func (o *Object) Members() []Member {
	if o == nil {
		return nil
	}
	return o.members
}

// Get looks up key.
func (o *Object) Get(key string) (Value, bool) {
	if o == nil {
		return Value{}, false
	}
	if o.index != nil {
		if i, ok := o.index[key]; ok {
			return o.members[i].Value, true
		}
		return Value{}, false
	}
	for i := range o.members {
		if o.members[i].Key == key {
			return o.members[i].Value, true
		}
	}
	return Value{}, false
}

func (o *Object) set(key string, v Value) {
	if o.index != nil {
		if i, ok := o.index[key]; ok {
			o.members[i].Value = v
			return
		}
		o.index[key] = len(o.members)
		o.members = append(o.members, Member{Key: key, Value: v})
		return
	}

	for i := range o.members {
		if o.members[i].Key == key {
			o.members[i].Value = v
			return
		}
	}
	o.members = append(o.members, Member{Key: key, Value: v})
	if len(o.members) > indexThreshold {
		o.index = make(map[string]int, len(o.members)*2)
		for i, m := range o.members {
			o.index[m.Key] = i
		}
	}
}
