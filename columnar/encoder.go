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

// Package columnar appends validated JSON records to Arrow column builders
// and seals them into immutable record batches.
package columnar

import (
	"math"
	"unicode/utf8"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/float16"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/cardinalhq/fastjsonl/jsonvalue"
)

// cell is one staged value. Only the field matching the column type is used.
type cell struct {
	valid bool
	i     int64
	u     uint64
	f     float64
	b     bool
	s     string
}

type stageFunc func(v jsonvalue.Value) (cell, *TypeMismatchError)

type column struct {
	field   arrow.Field
	builder array.Builder
	stage   stageFunc
	commit  func(c cell)
}

// Encoder accumulates rows for one target schema. An Encoder is owned by a
// single goroutine.
type Encoder struct {
	schema *arrow.Schema
	cols   []column
	staged []cell
	rows   int
}

// NewEncoder creates builders for every field of schema, each reserving room
// for capacity rows.
func NewEncoder(mem memory.Allocator, schema *arrow.Schema, capacity int) (*Encoder, error) {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	e := &Encoder{
		schema: schema,
		cols:   make([]column, 0, schema.NumFields()),
		staged: make([]cell, schema.NumFields()),
	}
	for _, f := range schema.Fields() {
		col, err := newColumn(mem, f)
		if err != nil {
			e.Release()
			return nil, err
		}
		if capacity > 0 {
			col.builder.Reserve(capacity)
		}
		e.cols = append(e.cols, col)
	}
	return e, nil
}

// Rows returns the number of committed rows.
func (e *Encoder) Rows() int {
	return e.rows
}

// Append adds v as one row. Every column is staged before any builder is
// touched, so a failing record leaves all columns at the same length. A
// record that is not an object yields a row of nulls.
func (e *Encoder) Append(v jsonvalue.Value, line int) error {
	obj, isObject := v.Object()
	for i := range e.cols {
		col := &e.cols[i]
		if !isObject {
			e.staged[i] = cell{}
			continue
		}
		fv, ok := obj.Get(col.field.Name)
		if !ok || fv.IsNull() {
			e.staged[i] = cell{}
			continue
		}
		c, terr := col.stage(fv)
		if terr != nil {
			terr.Column = col.field.Name
			terr.Line = line
			return terr
		}
		e.staged[i] = c
	}

	for i := range e.cols {
		e.cols[i].commit(e.staged[i])
		e.staged[i] = cell{}
	}
	e.rows++
	return nil
}

// Seal turns the accumulated rows into a Batch and leaves the encoder empty
// and ready for reuse.
func (e *Encoder) Seal() *Batch {
	arrays := make([]arrow.Array, len(e.cols))
	for i := range e.cols {
		arrays[i] = e.cols[i].builder.NewArray()
	}
	rec := array.NewRecord(e.schema, arrays, int64(e.rows))
	for _, a := range arrays {
		a.Release()
	}
	e.rows = 0
	return &Batch{rec: rec}
}

// Release frees the builders. The encoder must not be used afterwards.
func (e *Encoder) Release() {
	for i := range e.cols {
		if e.cols[i].builder != nil {
			e.cols[i].builder.Release()
			e.cols[i].builder = nil
		}
	}
}

// Supported reports whether the encoder can build a column of type dt.
func Supported(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64,
		arrow.FLOAT16, arrow.FLOAT32, arrow.FLOAT64,
		arrow.STRING, arrow.LARGE_STRING, arrow.BOOL:
		return true
	default:
		return false
	}
}

func newColumn(mem memory.Allocator, f arrow.Field) (column, error) {
	expected := f.Type.String()
	if !Supported(f.Type) {
		return column{}, &UnsupportedTypeError{Column: f.Name, Type: expected}
	}
	col := column{field: f, builder: array.NewBuilder(mem, f.Type)}

	switch b := col.builder.(type) {
	case *array.Int8Builder:
		col.stage = intStage(expected, math.MinInt8, math.MaxInt8)
		col.commit = func(c cell) {
			if c.valid {
				b.Append(int8(c.i))
			} else {
				b.AppendNull()
			}
		}
	case *array.Int16Builder:
		col.stage = intStage(expected, math.MinInt16, math.MaxInt16)
		col.commit = func(c cell) {
			if c.valid {
				b.Append(int16(c.i))
			} else {
				b.AppendNull()
			}
		}
	case *array.Int32Builder:
		col.stage = intStage(expected, math.MinInt32, math.MaxInt32)
		col.commit = func(c cell) {
			if c.valid {
				b.Append(int32(c.i))
			} else {
				b.AppendNull()
			}
		}
	case *array.Int64Builder:
		col.stage = intStage(expected, math.MinInt64, math.MaxInt64)
		col.commit = func(c cell) {
			if c.valid {
				b.Append(c.i)
			} else {
				b.AppendNull()
			}
		}
	case *array.Uint8Builder:
		col.stage = uintStage(expected, math.MaxUint8)
		col.commit = func(c cell) {
			if c.valid {
				b.Append(uint8(c.u))
			} else {
				b.AppendNull()
			}
		}
	case *array.Uint16Builder:
		col.stage = uintStage(expected, math.MaxUint16)
		col.commit = func(c cell) {
			if c.valid {
				b.Append(uint16(c.u))
			} else {
				b.AppendNull()
			}
		}
	case *array.Uint32Builder:
		col.stage = uintStage(expected, math.MaxUint32)
		col.commit = func(c cell) {
			if c.valid {
				b.Append(uint32(c.u))
			} else {
				b.AppendNull()
			}
		}
	case *array.Uint64Builder:
		col.stage = uintStage(expected, math.MaxUint64)
		col.commit = func(c cell) {
			if c.valid {
				b.Append(c.u)
			} else {
				b.AppendNull()
			}
		}
	case *array.Float16Builder:
		col.stage = floatStage(expected, maxFloat16)
		col.commit = func(c cell) {
			if c.valid {
				b.Append(float16.New(float32(c.f)))
			} else {
				b.AppendNull()
			}
		}
	case *array.Float32Builder:
		col.stage = floatStage(expected, math.MaxFloat32)
		col.commit = func(c cell) {
			if c.valid {
				b.Append(float32(c.f))
			} else {
				b.AppendNull()
			}
		}
	case *array.Float64Builder:
		col.stage = floatStage(expected, math.MaxFloat64)
		col.commit = func(c cell) {
			if c.valid {
				b.Append(c.f)
			} else {
				b.AppendNull()
			}
		}
	case *array.StringBuilder:
		col.stage = stringStage
		col.commit = func(c cell) {
			if c.valid {
				b.Append(c.s)
			} else {
				b.AppendNull()
			}
		}
	case *array.LargeStringBuilder:
		col.stage = stringStage
		col.commit = func(c cell) {
			if c.valid {
				b.Append(c.s)
			} else {
				b.AppendNull()
			}
		}
	case *array.BooleanBuilder:
		col.stage = boolStage(expected)
		col.commit = func(c cell) {
			if c.valid {
				b.Append(c.b)
			} else {
				b.AppendNull()
			}
		}
	default:
		col.builder.Release()
		return column{}, &UnsupportedTypeError{Column: f.Name, Type: expected}
	}
	return col, nil
}

func mismatch(expected string, v jsonvalue.Value) *TypeMismatchError {
	return &TypeMismatchError{Found: v.Kind().String(), Expected: expected, Value: abbreviate(v)}
}

// intStage accepts numbers without fractional part inside [lo, hi]. The
// bounds are compared as float64, which is exact for every power of two.
func intStage(expected string, lo, hi int64) stageFunc {
	flo, fhi := float64(lo), float64(hi)
	return func(v jsonvalue.Value) (cell, *TypeMismatchError) {
		f, ok := v.Number()
		if !ok || !v.IsInteger() {
			return cell{}, mismatch(expected, v)
		}
		// float64(MaxInt64) rounds up to 2^63, which is itself out of range
		if f < flo || f > fhi || (hi == math.MaxInt64 && f >= fhi) {
			return cell{}, mismatch(expected, v)
		}
		return cell{valid: true, i: int64(f)}, nil
	}
}

func uintStage(expected string, hi uint64) stageFunc {
	fhi := float64(hi)
	return func(v jsonvalue.Value) (cell, *TypeMismatchError) {
		f, ok := v.Number()
		if !ok || !v.IsInteger() || f < 0 || f > fhi || (hi == math.MaxUint64 && f >= fhi) {
			return cell{}, mismatch(expected, v)
		}
		return cell{valid: true, u: uint64(f)}, nil
	}
}

// largest finite half-precision value
const maxFloat16 = 65504

// floatStage rejects magnitudes the column cannot hold rather than storing
// them as infinities.
func floatStage(expected string, limit float64) stageFunc {
	return func(v jsonvalue.Value) (cell, *TypeMismatchError) {
		f, ok := v.Number()
		if !ok || math.Abs(f) > limit {
			return cell{}, mismatch(expected, v)
		}
		return cell{valid: true, f: f}, nil
	}
}

func boolStage(expected string) stageFunc {
	return func(v jsonvalue.Value) (cell, *TypeMismatchError) {
		b, ok := v.Bool()
		if !ok {
			return cell{}, mismatch(expected, v)
		}
		return cell{valid: true, b: b}, nil
	}
}

// stringStage stores strings as-is and any other value as its compact JSON.
func stringStage(v jsonvalue.Value) (cell, *TypeMismatchError) {
	if s, ok := v.Str(); ok {
		return cell{valid: true, s: s}, nil
	}
	return cell{valid: true, s: v.String()}, nil
}

const maxMismatchValue = 48

func abbreviate(v jsonvalue.Value) string {
	s := v.String()
	if len(s) <= maxMismatchValue {
		return s
	}
	cut := maxMismatchValue
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
