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

package schema

import (
	"fmt"
	"math"
	"strconv"
	"unicode/utf8"

	"github.com/cardinalhq/fastjsonl/jsonvalue"
)

// Validate checks v against the schema and returns the first failure, or
// nil. Callers holding an error variable should compare the result to nil
// before assigning it.
func (s *Schema) Validate(v jsonvalue.Value) *ValidationError {
	var st validation
	return st.check(s.root, v)
}

// AdditionalProperties reports the default policy the schema was compiled
// with.
func (s *Schema) AdditionalProperties() AdditionalProperties {
	return s.opts.additional
}

type validation struct {
	path []string
}

func (st *validation) fail(c Constraint, format string, args ...any) *ValidationError {
	return &ValidationError{
		Path:       append(Path(nil), st.path...),
		Constraint: c,
		Detail:     fmt.Sprintf(format, args...),
	}
}

func (st *validation) push(seg string) { st.path = append(st.path, seg) }
func (st *validation) pop()            { st.path = st.path[:len(st.path)-1] }

func (st *validation) check(n *node, v jsonvalue.Value) *ValidationError {
	if n.reject {
		return st.fail(ConstraintFalse, "no value is allowed here")
	}
	if n.types != 0 && !n.types.matches(v) {
		return st.fail(ConstraintType, "expected %s, found %s", n.types, kindName(v))
	}
	if n.enumKeys != nil && !n.enumKeys.Contains(jsonvalue.CanonicalKey(v)) {
		return st.fail(ConstraintEnum, "value %s is not one of the %d allowed values", abbreviate(v), len(n.enum))
	}
	if n.constant != nil && !jsonvalue.Equal(*n.constant, v) {
		return st.fail(ConstraintConst, "value %s does not equal %s", abbreviate(v), abbreviate(*n.constant))
	}

	switch v.Kind() {
	case jsonvalue.KindNumber:
		f, _ := v.Number()
		return st.checkNumber(n, f)
	case jsonvalue.KindString:
		s, _ := v.Str()
		return st.checkString(n, s)
	case jsonvalue.KindArray:
		elems, _ := v.Array()
		return st.checkArray(n, elems)
	case jsonvalue.KindObject:
		obj, _ := v.Object()
		return st.checkObject(n, obj)
	case jsonvalue.KindNull, jsonvalue.KindBool:
		return nil
	}
	return nil
}

func (st *validation) checkNumber(n *node, f float64) *ValidationError {
	if n.hasMinimum && f < n.minimum {
		return st.fail(ConstraintMinimum, "%s is less than the minimum of %s", formatNumber(f), formatNumber(n.minimum))
	}
	if n.hasMaximum && f > n.maximum {
		return st.fail(ConstraintMaximum, "%s is greater than the maximum of %s", formatNumber(f), formatNumber(n.maximum))
	}
	if n.hasExclMinimum && f <= n.exclusiveMinimum {
		return st.fail(ConstraintExclusiveMinimum, "%s is not greater than %s", formatNumber(f), formatNumber(n.exclusiveMinimum))
	}
	if n.hasExclMaximum && f >= n.exclusiveMaximum {
		return st.fail(ConstraintExclusiveMaximum, "%s is not less than %s", formatNumber(f), formatNumber(n.exclusiveMaximum))
	}
	if n.multipleOf > 0 {
		q := f / n.multipleOf
		if math.IsInf(q, 0) || q != math.Trunc(q) {
			return st.fail(ConstraintMultipleOf, "%s is not a multiple of %s", formatNumber(f), formatNumber(n.multipleOf))
		}
	}
	return nil
}

func (st *validation) checkString(n *node, s string) *ValidationError {
	if n.minLength >= 0 || n.maxLength >= 0 {
		length := utf8.RuneCountInString(s)
		if n.minLength >= 0 && length < n.minLength {
			return st.fail(ConstraintMinLength, "length %d is shorter than %d", length, n.minLength)
		}
		if n.maxLength >= 0 && length > n.maxLength {
			return st.fail(ConstraintMaxLength, "length %d is longer than %d", length, n.maxLength)
		}
	}
	if n.pattern != nil && !n.pattern.MatchString(s) {
		return st.fail(ConstraintPattern, "%q does not match pattern %q", s, n.pattern.String())
	}
	return nil
}

func (st *validation) checkArray(n *node, elems []jsonvalue.Value) *ValidationError {
	if n.minItems >= 0 && len(elems) < n.minItems {
		return st.fail(ConstraintMinItems, "array has %d items, fewer than %d", len(elems), n.minItems)
	}
	if n.maxItems >= 0 && len(elems) > n.maxItems {
		return st.fail(ConstraintMaxItems, "array has %d items, more than %d", len(elems), n.maxItems)
	}
	if n.uniqueItems && len(elems) > 1 {
		seen := make(map[string]int, len(elems))
		for i, e := range elems {
			key := jsonvalue.CanonicalKey(e)
			if j, dup := seen[key]; dup {
				return st.fail(ConstraintUniqueItems, "items %d and %d are equal", j, i)
			}
			seen[key] = i
		}
	}
	if n.items != nil {
		for i, e := range elems {
			st.push(strconv.Itoa(i))
			if err := st.check(n.items, e); err != nil {
				return err
			}
			st.pop()
		}
	}
	return nil
}

func (st *validation) checkObject(n *node, obj *jsonvalue.Object) *ValidationError {
	if n.minProperties >= 0 && obj.Len() < n.minProperties {
		return st.fail(ConstraintMinProperties, "object has %d properties, fewer than %d", obj.Len(), n.minProperties)
	}
	if n.maxProperties >= 0 && obj.Len() > n.maxProperties {
		return st.fail(ConstraintMaxProperties, "object has %d properties, more than %d", obj.Len(), n.maxProperties)
	}

	for _, name := range n.required {
		if _, ok := obj.Get(name); !ok {
			st.push(name)
			err := st.fail(ConstraintRequired, "missing required property %s", name)
			st.pop()
			return err
		}
	}

	for _, m := range obj.Members() {
		sub, declared := n.properties[m.Key]
		if !declared {
			switch n.additional {
			case additionalPermit:
				continue
			case additionalForbid:
				st.push(m.Key)
				err := st.fail(ConstraintAdditionalProperties, "property %s is not allowed", m.Key)
				st.pop()
				return err
			case additionalSchema:
				sub = n.additionalSchema
			}
		}
		st.push(m.Key)
		if err := st.check(sub, m.Value); err != nil {
			return err
		}
		st.pop()
	}
	return nil
}

func (t typeSet) matches(v jsonvalue.Value) bool {
	switch v.Kind() {
	case jsonvalue.KindNull:
		return t&typeNull != 0
	case jsonvalue.KindBool:
		return t&typeBoolean != 0
	case jsonvalue.KindNumber:
		if t&typeNumber != 0 {
			return true
		}
		return t&typeInteger != 0 && v.IsInteger()
	case jsonvalue.KindString:
		return t&typeString != 0
	case jsonvalue.KindArray:
		return t&typeArray != 0
	case jsonvalue.KindObject:
		return t&typeObject != 0
	}
	return false
}

func kindName(v jsonvalue.Value) string {
	if v.Kind() == jsonvalue.KindNumber && !v.IsInteger() {
		return "number with fractional part"
	}
	return v.Kind().String()
}

func formatNumber(f float64) string {
	return string(jsonvalue.AppendNumber(nil, f))
}

// values in error details are cut to keep messages readable
const maxDetailValue = 64

func abbreviate(v jsonvalue.Value) string {
	s := v.String()
	if len(s) <= maxDetailValue {
		return s
	}
	cut := maxDetailValue
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
