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

package columnar

import (
	"errors"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/fastjsonl/jsonvalue"
)

func parse(t *testing.T, s string) jsonvalue.Value {
	t.Helper()
	v, err := jsonvalue.Parse([]byte(s))
	require.NoError(t, err)
	return v
}

func TestEncoderRoundTrip(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	schema, err := ParseTableSchema("a:integer,b:string")
	require.NoError(t, err)

	enc, err := NewEncoder(mem, schema, 1)
	require.NoError(t, err)
	defer enc.Release()

	require.NoError(t, enc.Append(parse(t, `{"a": 12341, "b": "cool?"}`), 1))
	batch := enc.Seal()
	defer batch.Release()

	require.Equal(t, int64(1), batch.NumRows())
	require.Equal(t, 2, batch.NumCols())

	a, ok := batch.Column("a")
	require.True(t, ok)
	assert.Equal(t, int64(12341), a.(*array.Int64).Value(0))

	b, ok := batch.Column("b")
	require.True(t, ok)
	assert.Equal(t, "cool?", b.(*array.String).Value(0))

	_, ok = batch.Column("missing")
	assert.False(t, ok)
}

func TestEncoderNulls(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	schema, err := ParseTableSchema("id:int64,name:string,banned:bool")
	require.NoError(t, err)
	enc, err := NewEncoder(mem, schema, 4)
	require.NoError(t, err)
	defer enc.Release()

	require.NoError(t, enc.Append(parse(t, `{"id": 1, "name": "x", "banned": true}`), 1))
	require.NoError(t, enc.Append(parse(t, `{"id": 2}`), 2))
	require.NoError(t, enc.Append(parse(t, `{"id": null, "name": null, "banned": false}`), 3))
	require.NoError(t, enc.Append(parse(t, `[1, 2]`), 4))
	assert.Equal(t, 4, enc.Rows())

	batch := enc.Seal()
	defer batch.Release()
	require.Equal(t, int64(4), batch.NumRows())

	id, _ := batch.Column("id")
	name, _ := batch.Column("name")
	banned, _ := batch.Column("banned")

	assert.Equal(t, 2, id.NullN())
	assert.True(t, id.IsNull(2))
	assert.True(t, id.IsNull(3))
	assert.Equal(t, 3, name.NullN())
	assert.True(t, name.IsValid(0))
	assert.Equal(t, 2, banned.NullN())
	assert.False(t, banned.(*array.Boolean).Value(2))
}

func TestEncoderStringRendering(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	schema, err := ParseTableSchema("v:string,lv:large_string")
	require.NoError(t, err)
	enc, err := NewEncoder(mem, schema, 0)
	require.NoError(t, err)
	defer enc.Release()

	inputs := []string{
		`{"v": "plain", "lv": "plain"}`,
		`{"v": 42, "lv": 1.5}`,
		`{"v": true, "lv": [1, "two", null]}`,
		`{"v": {"b": 1, "a": {"c": []}}, "lv": "x\ny"}`,
	}
	for i, in := range inputs {
		require.NoError(t, enc.Append(parse(t, in), i+1))
	}
	batch := enc.Seal()
	defer batch.Release()

	v, _ := batch.Column("v")
	lv, _ := batch.Column("lv")
	strs := v.(*array.String)
	large := lv.(*array.LargeString)

	assert.Equal(t, []string{"plain", "42", "true", `{"b":1,"a":{"c":[]}}`},
		[]string{strs.Value(0), strs.Value(1), strs.Value(2), strs.Value(3)})
	assert.Equal(t, []string{"plain", "1.5", `[1,"two",null]`, "x\ny"},
		[]string{large.Value(0), large.Value(1), large.Value(2), large.Value(3)})
}

func TestEncoderNumericTypes(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	schema, err := ParseTableSchema("i8:int8,i16:int16,i32:int32,u8:uint8,u64:uint64,f16:float16,f32:float32,f64:double")
	require.NoError(t, err)
	enc, err := NewEncoder(mem, schema, 1)
	require.NoError(t, err)
	defer enc.Release()

	require.NoError(t, enc.Append(parse(t,
		`{"i8": -128, "i16": 32767, "i32": -5, "u8": 255, "u64": 18446744073709549568, "f16": 1.5, "f32": 0.25, "f64": 3}`), 1))
	batch := enc.Seal()
	defer batch.Release()

	col := func(name string) arrow.Array {
		c, ok := batch.Column(name)
		require.True(t, ok, name)
		return c
	}
	assert.Equal(t, int8(-128), col("i8").(*array.Int8).Value(0))
	assert.Equal(t, int16(32767), col("i16").(*array.Int16).Value(0))
	assert.Equal(t, int32(-5), col("i32").(*array.Int32).Value(0))
	assert.Equal(t, uint8(255), col("u8").(*array.Uint8).Value(0))
	assert.Equal(t, uint64(18446744073709549568), col("u64").(*array.Uint64).Value(0))
	assert.Equal(t, float32(1.5), col("f16").(*array.Float16).Value(0).Float32())
	assert.Equal(t, float32(0.25), col("f32").(*array.Float32).Value(0))
	assert.Equal(t, float64(3), col("f64").(*array.Float64).Value(0))
}

func TestEncoderFloatOverflowIsRejected(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	schema, err := ParseTableSchema("f16:float16,f32:float32")
	require.NoError(t, err)
	enc, err := NewEncoder(mem, schema, 0)
	require.NoError(t, err)
	defer enc.Release()

	tests := []struct {
		record string
		column string
	}{
		{`{"f16": 1e10}`, "f16"},
		{`{"f16": -65505}`, "f16"},
		{`{"f32": 1e300}`, "f32"},
		{`{"f16": 1, "f32": -1e39}`, "f32"},
	}
	for _, tt := range tests {
		err := enc.Append(parse(t, tt.record), 3)
		var tm *TypeMismatchError
		require.ErrorAs(t, err, &tm, tt.record)
		assert.Equal(t, tt.column, tm.Column)
		assert.Equal(t, "number", tm.Found)
		assert.Equal(t, 3, tm.Line)
	}
	assert.Equal(t, 0, enc.Rows())

	require.NoError(t, enc.Append(parse(t, `{"f16": 65504, "f32": -3.4e38}`), 4))
	batch := enc.Seal()
	defer batch.Release()
	f16, _ := batch.Column("f16")
	f32, _ := batch.Column("f32")
	assert.Equal(t, float32(65504), f16.(*array.Float16).Value(0).Float32())
	assert.Equal(t, float32(-3.4e38), f32.(*array.Float32).Value(0))
}

func TestEncoderTypeMismatchKeepsColumnsAligned(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	schema, err := ParseTableSchema("name:string,id:int64,flag:bool")
	require.NoError(t, err)
	enc, err := NewEncoder(mem, schema, 0)
	require.NoError(t, err)
	defer enc.Release()

	require.NoError(t, enc.Append(parse(t, `{"name": "ok", "id": 1, "flag": true}`), 1))

	tests := []struct {
		record   string
		column   string
		found    string
		expected string
	}{
		{`{"name": "bad", "id": "7"}`, "id", "string", "int64"},
		{`{"name": "bad", "id": 1.5}`, "id", "number", "int64"},
		{`{"name": "bad", "id": 9223372036854775808}`, "id", "number", "int64"},
		{`{"name": "bad", "id": 2, "flag": "yes"}`, "flag", "string", "bool"},
	}
	for _, tt := range tests {
		err := enc.Append(parse(t, tt.record), 7)
		require.Error(t, err, tt.record)

		var tm *TypeMismatchError
		require.True(t, errors.As(err, &tm))
		assert.Equal(t, tt.column, tm.Column)
		assert.Equal(t, 7, tm.Line)
		assert.Equal(t, tt.found, tm.Found)
		assert.Equal(t, tt.expected, tm.Expected)
	}

	require.NoError(t, enc.Append(parse(t, `{"name": "ok2", "id": 2}`), 8))
	assert.Equal(t, 2, enc.Rows())

	batch := enc.Seal()
	defer batch.Release()
	for i := range batch.NumCols() {
		assert.Equal(t, 2, batch.Record().Column(i).Len())
	}
	names, _ := batch.Column("name")
	assert.Equal(t, "ok2", names.(*array.String).Value(1))
}

func TestIntegerRange(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	schema, err := ParseTableSchema("i8:int8,u16:uint16")
	require.NoError(t, err)
	enc, err := NewEncoder(mem, schema, 0)
	require.NoError(t, err)
	defer enc.Release()

	assert.Error(t, enc.Append(parse(t, `{"i8": 128}`), 1))
	assert.Error(t, enc.Append(parse(t, `{"i8": -129}`), 1))
	assert.Error(t, enc.Append(parse(t, `{"u16": -1}`), 1))
	assert.Error(t, enc.Append(parse(t, `{"u16": 65536}`), 1))
	assert.NoError(t, enc.Append(parse(t, `{"i8": 127, "u16": 65535}`), 1))
	assert.NoError(t, enc.Append(parse(t, `{"i8": 1e2, "u16": 0}`), 2))

	batch := enc.Seal()
	batch.Release()
}

func TestTypeMismatchMessage(t *testing.T) {
	err := &TypeMismatchError{Column: "a", Line: 3, Found: "string", Expected: "int64", Value: `"x"`}
	assert.Equal(t, `type mismatch at line 3, column "a": expected int64, found string "x"`, err.Error())
}

func TestUnsupportedType(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "ts", Type: arrow.FixedWidthTypes.Timestamp_ms, Nullable: true},
	}, nil)
	_, err := NewEncoder(memory.DefaultAllocator, schema, 0)

	var ut *UnsupportedTypeError
	require.ErrorAs(t, err, &ut)
	assert.Equal(t, "ts", ut.Column)
}

func TestConcat(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	schema, err := ParseTableSchema("id:int64,name:string")
	require.NoError(t, err)

	var parts []*Batch
	id := 0
	for _, n := range []int{3, 0, 2} {
		enc, err := NewEncoder(mem, schema, n)
		require.NoError(t, err)
		for range n {
			v := jsonvalue.ObjectOf(
				jsonvalue.Member{Key: "id", Value: jsonvalue.Number(float64(id))},
				jsonvalue.Member{Key: "name", Value: jsonvalue.String(string(rune('a' + id)))},
			)
			require.NoError(t, enc.Append(v, id+1))
			id++
		}
		parts = append(parts, enc.Seal())
		enc.Release()
	}

	out, err := Concat(mem, schema, parts)
	require.NoError(t, err)
	defer out.Release()

	require.Equal(t, int64(5), out.NumRows())
	ids, _ := out.Column("id")
	names, _ := out.Column("name")
	for i := range 5 {
		assert.Equal(t, int64(i), ids.(*array.Int64).Value(i))
		assert.Equal(t, string(rune('a'+i)), names.(*array.String).Value(i))
	}
}

func TestConcatEdgeCases(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	schema, err := ParseTableSchema("id:int64")
	require.NoError(t, err)

	empty, err := Concat(mem, schema, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), empty.NumRows())
	assert.Equal(t, 1, empty.NumCols())
	empty.Release()

	enc, err := NewEncoder(mem, schema, 1)
	require.NoError(t, err)
	require.NoError(t, enc.Append(parse(t, `{"id": 9}`), 1))
	single := enc.Seal()
	enc.Release()

	out, err := Concat(mem, schema, []*Batch{single})
	require.NoError(t, err)
	assert.Equal(t, int64(1), out.NumRows())
	out.Release()
}

func TestParseTableSchema(t *testing.T) {
	schema, err := ParseTableSchema(" user_id:int64, username:string ,last_login:utf8,banned:bool,friends:string")
	require.NoError(t, err)
	require.Equal(t, 5, schema.NumFields())
	assert.Equal(t, "user_id", schema.Field(0).Name)
	assert.True(t, arrow.TypeEqual(arrow.PrimitiveTypes.Int64, schema.Field(0).Type))
	assert.True(t, arrow.TypeEqual(arrow.FixedWidthTypes.Boolean, schema.Field(3).Type))
	assert.True(t, schema.Field(4).Nullable)

	_, err = ParseTableSchema("a")
	require.Error(t, err)

	_, err = ParseTableSchema("a:int64,a:string,b:decimal,:int64")
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, `column "a" is defined more than once`)
	assert.Contains(t, msg, `unknown column type "decimal"`)
	assert.Contains(t, msg, "column 4 has no name")

	_, err = ParseTableSchema("")
	require.ErrorContains(t, err, "no columns")
}
