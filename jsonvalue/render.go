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

package jsonvalue

import (
	"math"
	"slices"
	"strconv"
	"strings"
)

const hexDigits = "0123456789abcdef"

// String renders v as compact JSON. Object members keep their order.
func (v Value) String() string {
	return string(v.AppendJSON(nil))
}

// AppendJSON appends the compact JSON rendering of v to dst.
func (v Value) AppendJSON(dst []byte) []byte {
	return appendValue(dst, v, false)
}

// CanonicalKey renders v so that two values have the same key exactly when
// Equal reports them equal: object members are sorted by key and negative
// zero is written as zero.
func CanonicalKey(v Value) string {
	return string(appendValue(nil, v, true))
}

func appendValue(dst []byte, v Value, canonical bool) []byte {
	switch v.kind {
	case KindNull:
		return append(dst, "null"...)
	case KindBool:
		if v.b {
			return append(dst, "true"...)
		}
		return append(dst, "false"...)
	case KindNumber:
		n := v.n
		if canonical && n == 0 {
			n = 0
		}
		return AppendNumber(dst, n)
	case KindString:
		return AppendQuoted(dst, v.s)
	case KindArray:
		dst = append(dst, '[')
		for i, e := range v.arr {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = appendValue(dst, e, canonical)
		}
		return append(dst, ']')
	case KindObject:
		members := v.obj.Members()
		if canonical && len(members) > 1 {
			members = slices.Clone(members)
			slices.SortFunc(members, func(a, b Member) int {
				return strings.Compare(a.Key, b.Key)
			})
		}
		dst = append(dst, '{')
		for i, m := range members {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = AppendQuoted(dst, m.Key)
			dst = append(dst, ':')
			dst = appendValue(dst, m.Value, canonical)
		}
		return append(dst, '}')
	}
	return dst
}

// AppendNumber writes integral values without a fraction or exponent below
// 1e21 and uses the shortest round-tripping form otherwise.
func AppendNumber(dst []byte, n float64) []byte {
	if isIntegral(n) && math.Abs(n) < 1e21 {
		return strconv.AppendFloat(dst, n, 'f', -1, 64)
	}
	return strconv.AppendFloat(dst, n, 'g', -1, 64)
}

// AppendQuoted appends s as a JSON string literal. Only '"', '\\' and control
// characters are escaped.
func AppendQuoted(dst []byte, s string) []byte {
	dst = append(dst, '"')
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 0x20 && c != '"' && c != '\\' {
			continue
		}
		dst = append(dst, s[start:i]...)
		switch c {
		case '"', '\\':
			dst = append(dst, '\\', c)
		case '\n':
			dst = append(dst, '\\', 'n')
		case '\r':
			dst = append(dst, '\\', 'r')
		case '\t':
			dst = append(dst, '\\', 't')
		case '\b':
			dst = append(dst, '\\', 'b')
		case '\f':
			dst = append(dst, '\\', 'f')
		default:
			dst = append(dst, '\\', 'u', '0', '0', hexDigits[c>>4], hexDigits[c&0xf])
		}
		start = i + 1
	}
	dst = append(dst, s[start:]...)
	return append(dst, '"')
}

// Equal reports structural equality. Numbers compare with ==, so 1 and 1.0
// are equal and so are 0 and -0. Object member order is ignored.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindNumber:
		return a.n == b.n
	case KindString:
		return a.s == b.s
	case KindArray:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if a.obj.Len() != b.obj.Len() {
			return false
		}
		for _, m := range a.obj.Members() {
			other, ok := b.obj.Get(m.Key)
			if !ok || !Equal(m.Value, other) {
				return false
			}
		}
		return true
	}
	return false
}
