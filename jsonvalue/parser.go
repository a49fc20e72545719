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
	"fmt"
	"math"
	"strconv"
	"unicode/utf8"
)

// DefaultMaxDepth is the deepest container nesting accepted when a Parser
// does not set MaxDepth.
const DefaultMaxDepth = 64

// ParseError describes why a record is not valid JSON.
type ParseError struct {
	// Offset is the byte offset of the problem, relative to the buffer the
	// record was taken from.
	Offset int
	// Line is the 1-based line of the record, when known.
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse error at line %d (offset %d): %s", e.Line, e.Offset, e.Reason)
	}
	return fmt.Sprintf("parse error at offset %d: %s", e.Offset, e.Reason)
}

// Parser turns one record's bytes into a Value. A Parser holds no state
// between calls and is safe for concurrent use.
type Parser struct {
	// MaxDepth bounds container nesting. Zero means DefaultMaxDepth.
	MaxDepth int
}

// Parse parses data with the default depth limit.
func Parse(data []byte) (Value, error) {
	var p Parser
	return p.ParseAt(data, 0)
}

// Parse parses data as exactly one JSON value surrounded by optional
// whitespace.
func (p *Parser) Parse(data []byte) (Value, error) {
	return p.ParseAt(data, 0)
}

// ParseAt is Parse for a record that starts at byte offset base of a larger
// buffer; error offsets are reported relative to that buffer.
func (p *Parser) ParseAt(data []byte, base int) (Value, error) {
	maxDepth := p.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	d := decoder{data: data, base: base, maxDepth: maxDepth}

	d.skipWhitespace()
	if d.pos >= len(d.data) {
		return Value{}, d.errorf("empty record")
	}
	v, err := d.value()
	if err != nil {
		return Value{}, err
	}
	d.skipWhitespace()
	if d.pos < len(d.data) {
		return Value{}, d.errorf("trailing characters after JSON value")
	}
	return v, nil
}

type decoder struct {
	data     []byte
	pos      int
	base     int
	depth    int
	maxDepth int
}

func (d *decoder) errorf(format string, args ...any) *ParseError {
	return &ParseError{Offset: d.base + d.pos, Reason: fmt.Sprintf(format, args...)}
}

func (d *decoder) skipWhitespace() {
	for d.pos < len(d.data) {
		switch d.data[d.pos] {
		case ' ', '\t', '\n', '\r':
			d.pos++
		default:
			return
		}
	}
}

func (d *decoder) value() (Value, error) {
	if d.pos >= len(d.data) {
		return Value{}, d.errorf("unexpected end of input")
	}
	switch c := d.data[d.pos]; {
	case c == '{':
		return d.object()
	case c == '[':
		return d.array()
	case c == '"':
		s, err := d.str()
		if err != nil {
			return Value{}, err
		}
		return String(s), nil
	case c == 't':
		return Bool(true), d.literal("true")
	case c == 'f':
		return Bool(false), d.literal("false")
	case c == 'n':
		return Null(), d.literal("null")
	case c == '-' || (c >= '0' && c <= '9'):
		return d.number()
	default:
		return Value{}, d.errorf("unexpected character %s", quoteByte(c))
	}
}

func (d *decoder) literal(word string) error {
	if len(d.data)-d.pos < len(word) || string(d.data[d.pos:d.pos+len(word)]) != word {
		return d.errorf("invalid literal, expected %q", word)
	}
	d.pos += len(word)
	return nil
}

func (d *decoder) enter() error {
	d.depth++
	if d.depth > d.maxDepth {
		return d.errorf("nesting depth exceeds limit of %d", d.maxDepth)
	}
	return nil
}

func (d *decoder) object() (Value, error) {
	if err := d.enter(); err != nil {
		return Value{}, err
	}
	d.pos++ // '{'
	obj := &Object{}

	d.skipWhitespace()
	if d.pos < len(d.data) && d.data[d.pos] == '}' {
		d.pos++
		d.depth--
		return Value{kind: KindObject, obj: obj}, nil
	}

	for {
		d.skipWhitespace()
		if d.pos >= len(d.data) {
			return Value{}, d.errorf("unterminated object")
		}
		if d.data[d.pos] != '"' {
			return Value{}, d.errorf("expected string for object key, found %s", quoteByte(d.data[d.pos]))
		}
		key, err := d.str()
		if err != nil {
			return Value{}, err
		}

		d.skipWhitespace()
		if d.pos >= len(d.data) {
			return Value{}, d.errorf("unterminated object")
		}
		if d.data[d.pos] != ':' {
			return Value{}, d.errorf("expected ':' after object key, found %s", quoteByte(d.data[d.pos]))
		}
		d.pos++

		d.skipWhitespace()
		v, err := d.value()
		if err != nil {
			return Value{}, err
		}
		obj.set(key, v)

		d.skipWhitespace()
		if d.pos >= len(d.data) {
			return Value{}, d.errorf("unterminated object")
		}
		switch d.data[d.pos] {
		case ',':
			d.pos++
		case '}':
			d.pos++
			d.depth--
			return Value{kind: KindObject, obj: obj}, nil
		default:
			return Value{}, d.errorf("expected ',' or '}' in object, found %s", quoteByte(d.data[d.pos]))
		}
	}
}

func (d *decoder) array() (Value, error) {
	if err := d.enter(); err != nil {
		return Value{}, err
	}
	d.pos++ // '['
	var elems []Value

	d.skipWhitespace()
	if d.pos < len(d.data) && d.data[d.pos] == ']' {
		d.pos++
		d.depth--
		return Value{kind: KindArray, arr: elems}, nil
	}

	for {
		d.skipWhitespace()
		if d.pos >= len(d.data) {
			return Value{}, d.errorf("unterminated array")
		}
		v, err := d.value()
		if err != nil {
			return Value{}, err
		}
		elems = append(elems, v)

		d.skipWhitespace()
		if d.pos >= len(d.data) {
			return Value{}, d.errorf("unterminated array")
		}
		switch d.data[d.pos] {
		case ',':
			d.pos++
		case ']':
			d.pos++
			d.depth--
			return Value{kind: KindArray, arr: elems}, nil
		default:
			return Value{}, d.errorf("expected ',' or ']' in array, found %s", quoteByte(d.data[d.pos]))
		}
	}
}

// str parses a string starting at the opening quote.
func (d *decoder) str() (string, error) {
	d.pos++ // opening quote
	start := d.pos

	// Plain ASCII without escapes needs no rewriting.
	for d.pos < len(d.data) {
		c := d.data[d.pos]
		if c == '"' {
			s := string(d.data[start:d.pos])
			d.pos++
			return s, nil
		}
		if c == '\\' || c < 0x20 || c >= utf8.RuneSelf {
			break
		}
		d.pos++
	}
	if d.pos >= len(d.data) {
		return "", d.errorf("unterminated string")
	}

	buf := make([]byte, d.pos-start, d.pos-start+16)
	copy(buf, d.data[start:d.pos])
	for d.pos < len(d.data) {
		c := d.data[d.pos]
		switch {
		case c == '"':
			d.pos++
			return string(buf), nil
		case c == '\\':
			var err error
			if buf, err = d.escape(buf); err != nil {
				return "", err
			}
		case c < 0x20:
			return "", d.errorf("invalid control character %s in string", quoteByte(c))
		case c < utf8.RuneSelf:
			buf = append(buf, c)
			d.pos++
		default:
			r, size := utf8.DecodeRune(d.data[d.pos:])
			if r == utf8.RuneError && size == 1 {
				return "", d.errorf("invalid UTF-8 in string")
			}
			buf = append(buf, d.data[d.pos:d.pos+size]...)
			d.pos += size
		}
	}
	return "", d.errorf("unterminated string")
}

// escape decodes one backslash escape at d.pos and appends it to buf.
func (d *decoder) escape(buf []byte) ([]byte, error) {
	if d.pos+1 >= len(d.data) {
		return buf, d.errorf("unterminated string")
	}
	c := d.data[d.pos+1]
	switch c {
	case '"', '\\', '/':
		buf = append(buf, c)
	case 'b':
		buf = append(buf, '\b')
	case 'f':
		buf = append(buf, '\f')
	case 'n':
		buf = append(buf, '\n')
	case 'r':
		buf = append(buf, '\r')
	case 't':
		buf = append(buf, '\t')
	case 'u':
		r, err := d.hex4(d.pos + 2)
		if err != nil {
			return buf, err
		}
		switch {
		case r >= 0xD800 && r < 0xDC00:
			if d.pos+7 >= len(d.data) || d.data[d.pos+6] != '\\' || d.data[d.pos+7] != 'u' {
				return buf, d.errorf("lone leading surrogate in \\u escape")
			}
			lo, err := d.hex4(d.pos + 8)
			if err != nil {
				return buf, err
			}
			if lo < 0xDC00 || lo > 0xDFFF {
				return buf, d.errorf("invalid trailing surrogate in \\u escape")
			}
			r = 0x10000 + (r-0xD800)<<10 + (lo - 0xDC00)
			d.pos += 6
		case r >= 0xDC00 && r <= 0xDFFF:
			return buf, d.errorf("lone trailing surrogate in \\u escape")
		}
		buf = utf8.AppendRune(buf, r)
		d.pos += 6
		return buf, nil
	default:
		return buf, d.errorf("invalid escape %s", quoteByte(c))
	}
	d.pos += 2
	return buf, nil
}

func (d *decoder) hex4(at int) (rune, error) {
	if at+4 > len(d.data) {
		d.pos = len(d.data)
		return 0, d.errorf("unterminated \\u escape")
	}
	var r rune
	for _, c := range d.data[at : at+4] {
		r <<= 4
		switch {
		case c >= '0' && c <= '9':
			r |= rune(c - '0')
		case c >= 'a' && c <= 'f':
			r |= rune(c-'a') + 10
		case c >= 'A' && c <= 'F':
			r |= rune(c-'A') + 10
		default:
			d.pos = at
			return 0, d.errorf("invalid hex digit %s in \\u escape", quoteByte(c))
		}
	}
	return r, nil
}

// maximum number of significant digits that still converts exactly without
// strconv
const fastDigits = 15

func (d *decoder) number() (Value, error) {
	start := d.pos
	neg := false
	if d.data[d.pos] == '-' {
		neg = true
		d.pos++
	}

	if d.pos >= len(d.data) {
		return Value{}, d.errorf("invalid number literal")
	}
	var mant uint64
	digits := 0
	switch c := d.data[d.pos]; {
	case c == '0':
		d.pos++
		digits = 1
	case c >= '1' && c <= '9':
		for d.pos < len(d.data) && d.data[d.pos] >= '0' && d.data[d.pos] <= '9' {
			mant = mant*10 + uint64(d.data[d.pos]-'0')
			d.pos++
			digits++
		}
	default:
		return Value{}, d.errorf("invalid number literal")
	}

	simple := true
	if d.pos < len(d.data) && d.data[d.pos] == '.' {
		simple = false
		d.pos++
		if !d.digits() {
			return Value{}, d.errorf("invalid number literal, expected digit after '.'")
		}
	}
	if d.pos < len(d.data) && (d.data[d.pos] == 'e' || d.data[d.pos] == 'E') {
		simple = false
		d.pos++
		if d.pos < len(d.data) && (d.data[d.pos] == '+' || d.data[d.pos] == '-') {
			d.pos++
		}
		if !d.digits() {
			return Value{}, d.errorf("invalid number literal, expected digit in exponent")
		}
	}

	if simple && digits <= fastDigits {
		f := float64(mant)
		if neg {
			f = -f
		}
		return Number(f), nil
	}

	f, err := strconv.ParseFloat(string(d.data[start:d.pos]), 64)
	if err != nil && !math.IsInf(f, 0) {
		d.pos = start
		return Value{}, d.errorf("invalid number literal")
	}
	if math.IsInf(f, 0) {
		d.pos = start
		return Value{}, d.errorf("number out of range")
	}
	return Number(f), nil
}

func (d *decoder) digits() bool {
	start := d.pos
	for d.pos < len(d.data) && d.data[d.pos] >= '0' && d.data[d.pos] <= '9' {
		d.pos++
	}
	return d.pos > start
}

func quoteByte(c byte) string {
	if c >= 0x20 && c < utf8.RuneSelf {
		return strconv.QuoteRune(rune(c))
	}
	return fmt.Sprintf("byte 0x%02x", c)
}
