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

// Package schema compiles JSON Schema documents into an immutable form and
// validates parsed records against them.
//
// The supported subset is the structural one: type, required, properties,
// additionalProperties, items, enum, const, and the numeric, string, array
// and object bounds. Keywords that compose or reference other schemas are
// rejected at compile time rather than silently ignored.
package schema

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/cardinalhq/fastjsonl/jsonvalue"
)

// AdditionalProperties selects what happens to object keys that a schema
// node does not declare when the node has no additionalProperties keyword.
type AdditionalProperties uint8

const (
	PermitAdditional AdditionalProperties = iota
	ForbidAdditional
)

func (a AdditionalProperties) String() string {
	if a == ForbidAdditional {
		return "forbid"
	}
	return "permit"
}

// ParseAdditionalProperties accepts "permit" or "forbid".
func ParseAdditionalProperties(s string) (AdditionalProperties, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "permit", "allow":
		return PermitAdditional, nil
	case "forbid", "deny", "strict":
		return ForbidAdditional, nil
	default:
		return PermitAdditional, fmt.Errorf("unknown additional properties policy %q", s)
	}
}

// schema documents are parsed with a looser nesting bound than records
const schemaMaxDepth = 256

type compileOptions struct {
	additional AdditionalProperties
}

// CompileOption adjusts compilation.
type CompileOption func(*compileOptions)

// WithAdditionalProperties sets the policy for nodes that do not say.
func WithAdditionalProperties(a AdditionalProperties) CompileOption {
	return func(o *compileOptions) {
		o.additional = a
	}
}

// Schema is a compiled schema. It is never modified after Compile returns
// and may be shared between goroutines.
type Schema struct {
	root   *node
	source string
	opts   compileOptions
}

type typeSet uint8

const (
	typeNull typeSet = 1 << iota
	typeBoolean
	typeObject
	typeArray
	typeNumber
	typeString
	typeInteger
)

var typeNames = []struct {
	name string
	bit  typeSet
}{
	{"null", typeNull},
	{"boolean", typeBoolean},
	{"object", typeObject},
	{"array", typeArray},
	{"number", typeNumber},
	{"string", typeString},
	{"integer", typeInteger},
}

func (t typeSet) String() string {
	var names []string
	for _, tn := range typeNames {
		if t&tn.bit != 0 {
			names = append(names, tn.name)
		}
	}
	if len(names) == 1 {
		return names[0]
	}
	return "one of [" + strings.Join(names, ", ") + "]"
}

type additionalMode uint8

const (
	additionalPermit additionalMode = iota
	additionalForbid
	additionalSchema
)

type node struct {
	reject bool // the boolean schema false
	types  typeSet

	required         []string
	properties       map[string]*node
	additional       additionalMode
	additionalSchema *node
	minProperties    int
	maxProperties    int

	items       *node
	minItems    int
	maxItems    int
	uniqueItems bool

	enum     []jsonvalue.Value
	enumKeys mapset.Set[string]
	constant *jsonvalue.Value

	minimum, maximum                   float64
	hasMinimum, hasMaximum             bool
	exclusiveMinimum, exclusiveMaximum float64
	hasExclMinimum, hasExclMaximum     bool
	multipleOf                         float64

	minLength int
	maxLength int
	pattern   *regexp.Regexp
}

func newNode(additional AdditionalProperties) *node {
	n := &node{
		minProperties: -1,
		maxProperties: -1,
		minItems:      -1,
		maxItems:      -1,
		minLength:     -1,
		maxLength:     -1,
	}
	if additional == ForbidAdditional {
		n.additional = additionalForbid
	}
	return n
}

var unsupportedKeywords = mapset.NewThreadUnsafeSet(
	"$ref", "$dynamicRef", "$dynamicAnchor", "$recursiveRef",
	"allOf", "anyOf", "oneOf", "not", "if", "then", "else",
	"patternProperties", "propertyNames", "dependentRequired", "dependentSchemas",
	"dependencies", "unevaluatedProperties", "unevaluatedItems",
	"prefixItems", "contains", "minContains", "maxContains",
)

// Compile parses and compiles a schema document.
func Compile(text string, opts ...CompileOption) (*Schema, error) {
	var o compileOptions
	for _, opt := range opts {
		opt(&o)
	}

	p := jsonvalue.Parser{MaxDepth: schemaMaxDepth}
	doc, err := p.Parse([]byte(text))
	if err != nil {
		return nil, &CompileError{Reason: "schema is not valid JSON: " + err.Error()}
	}

	c := compiler{opts: o}
	root, cerr := c.compile(doc, nil)
	if cerr != nil {
		return nil, cerr
	}
	return &Schema{root: root, source: text, opts: o}, nil
}

type compiler struct {
	opts compileOptions
}

func (c *compiler) compile(doc jsonvalue.Value, loc Path) (*node, *CompileError) {
	if b, ok := doc.Bool(); ok {
		n := newNode(PermitAdditional)
		n.reject = !b
		return n, nil
	}
	obj, ok := doc.Object()
	if !ok {
		return nil, compileErrorf(loc, "schema must be an object or a boolean, found %s", doc.Kind())
	}

	n := newNode(c.opts.additional)
	for _, m := range obj.Members() {
		kw := append(loc[:len(loc):len(loc)], m.Key)
		if err := c.keyword(n, m.Key, m.Value, kw); err != nil {
			return nil, err
		}
	}
	return n, nil
}

func (c *compiler) keyword(n *node, key string, v jsonvalue.Value, loc Path) *CompileError {
	switch key {
	case "type":
		t, err := compileType(v, loc)
		if err != nil {
			return err
		}
		n.types = t

	case "required":
		elems, ok := v.Array()
		if !ok {
			return compileErrorf(loc, "required must be an array of strings")
		}
		seen := mapset.NewThreadUnsafeSetWithSize[string](len(elems))
		for _, e := range elems {
			s, ok := e.Str()
			if !ok {
				return compileErrorf(loc, "required must be an array of strings")
			}
			if seen.Add(s) {
				n.required = append(n.required, s)
			}
		}

	case "properties":
		obj, ok := v.Object()
		if !ok {
			return compileErrorf(loc, "properties must be an object")
		}
		n.properties = make(map[string]*node, obj.Len())
		for _, m := range obj.Members() {
			sub, err := c.compile(m.Value, append(loc[:len(loc):len(loc)], m.Key))
			if err != nil {
				return err
			}
			n.properties[m.Key] = sub
		}

	case "additionalProperties":
		if b, ok := v.Bool(); ok {
			if b {
				n.additional = additionalPermit
			} else {
				n.additional = additionalForbid
			}
			return nil
		}
		sub, err := c.compile(v, loc)
		if err != nil {
			return err
		}
		n.additional = additionalSchema
		n.additionalSchema = sub

	case "items":
		if _, isArray := v.Array(); isArray {
			return compileErrorf(loc, "tuple form of items is not supported")
		}
		sub, err := c.compile(v, loc)
		if err != nil {
			return err
		}
		n.items = sub

	case "enum":
		elems, ok := v.Array()
		if !ok {
			return compileErrorf(loc, "enum must be an array")
		}
		n.enum = elems
		n.enumKeys = mapset.NewThreadUnsafeSetWithSize[string](len(elems))
		for _, e := range elems {
			n.enumKeys.Add(jsonvalue.CanonicalKey(e))
		}

	case "const":
		cv := v
		n.constant = &cv

	case "minimum":
		return numberKeyword(v, loc, &n.minimum, &n.hasMinimum)
	case "maximum":
		return numberKeyword(v, loc, &n.maximum, &n.hasMaximum)
	case "exclusiveMinimum":
		return numberKeyword(v, loc, &n.exclusiveMinimum, &n.hasExclMinimum)
	case "exclusiveMaximum":
		return numberKeyword(v, loc, &n.exclusiveMaximum, &n.hasExclMaximum)
	case "multipleOf":
		f, ok := v.Number()
		if !ok || f <= 0 {
			return compileErrorf(loc, "multipleOf must be a number greater than zero")
		}
		n.multipleOf = f

	case "minLength":
		return countKeyword(v, loc, &n.minLength)
	case "maxLength":
		return countKeyword(v, loc, &n.maxLength)
	case "minItems":
		return countKeyword(v, loc, &n.minItems)
	case "maxItems":
		return countKeyword(v, loc, &n.maxItems)
	case "minProperties":
		return countKeyword(v, loc, &n.minProperties)
	case "maxProperties":
		return countKeyword(v, loc, &n.maxProperties)

	case "uniqueItems":
		b, ok := v.Bool()
		if !ok {
			return compileErrorf(loc, "uniqueItems must be a boolean")
		}
		n.uniqueItems = b

	case "pattern":
		s, ok := v.Str()
		if !ok {
			return compileErrorf(loc, "pattern must be a string")
		}
		re, err := regexp.Compile(s)
		if err != nil {
			return compileErrorf(loc, "pattern is not a valid regular expression: %v", err)
		}
		n.pattern = re

	default:
		if unsupportedKeywords.Contains(key) {
			return compileErrorf(loc, "unsupported keyword %q", key)
		}
		// title, description, format and any unknown keyword are
		// annotations and assert nothing
	}
	return nil
}

func compileType(v jsonvalue.Value, loc Path) (typeSet, *CompileError) {
	lookup := func(name string) (typeSet, bool) {
		for _, tn := range typeNames {
			if tn.name == name {
				return tn.bit, true
			}
		}
		return 0, false
	}

	if s, ok := v.Str(); ok {
		t, ok := lookup(s)
		if !ok {
			return 0, compileErrorf(loc, "unknown type %q", s)
		}
		return t, nil
	}

	elems, ok := v.Array()
	if !ok || len(elems) == 0 {
		return 0, compileErrorf(loc, "type must be a string or a non-empty array of strings")
	}
	var set typeSet
	for _, e := range elems {
		s, ok := e.Str()
		if !ok {
			return 0, compileErrorf(loc, "type must be a string or a non-empty array of strings")
		}
		t, ok := lookup(s)
		if !ok {
			return 0, compileErrorf(loc, "unknown type %q", s)
		}
		set |= t
	}
	return set, nil
}

func numberKeyword(v jsonvalue.Value, loc Path, dst *float64, has *bool) *CompileError {
	f, ok := v.Number()
	if !ok {
		return compileErrorf(loc, "%s must be a number", loc[len(loc)-1])
	}
	*dst = f
	*has = true
	return nil
}

func countKeyword(v jsonvalue.Value, loc Path, dst *int) *CompileError {
	f, ok := v.Number()
	if !ok || !v.IsInteger() || f < 0 || f > math.MaxInt32 {
		return compileErrorf(loc, "%s must be a non-negative integer", loc[len(loc)-1])
	}
	*dst = int(f)
	return nil
}
