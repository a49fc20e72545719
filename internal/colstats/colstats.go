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

// Package colstats summarises the columns of a converted batch: null counts,
// approximate distinct counts, and quantiles for numeric columns.
package colstats

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"github.com/DataDog/sketches-go/ddsketch"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/axiomhq/hyperloglog"

	"github.com/cardinalhq/fastjsonl/columnar"
)

// relativeAccuracy bounds the quantile error of numeric columns.
const relativeAccuracy = 0.01

// Column holds the statistics of one column.
type Column struct {
	Name  string
	Type  string
	Rows  int64
	Nulls int64
	// Distinct is a HyperLogLog estimate over the non-null values.
	Distinct uint64

	// The remaining fields are set only for numeric columns with at least
	// one non-null value.
	Numeric bool
	Min     float64
	Max     float64
	Mean    float64
	P50     float64
	P90     float64
	P99     float64
}

// Compute returns statistics for every column of batch, in column order.
func Compute(batch *columnar.Batch) ([]Column, error) {
	rec := batch.Record()
	out := make([]Column, 0, rec.NumCols())
	for i, f := range rec.Schema().Fields() {
		c, err := column(f, rec.Column(i))
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", f.Name, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func column(f arrow.Field, arr arrow.Array) (Column, error) {
	c := Column{
		Name:  f.Name,
		Type:  f.Type.String(),
		Rows:  int64(arr.Len()),
		Nulls: int64(arr.NullN()),
	}

	hll := hyperloglog.New14()
	var (
		sketch *ddsketch.DDSketch
		sum    float64
		n      int
		key    [8]byte
	)

	for i := range arr.Len() {
		if arr.IsNull(i) {
			continue
		}
		if v, ok := numberAt(arr, i); ok {
			if sketch == nil {
				s, err := ddsketch.NewDefaultDDSketch(relativeAccuracy)
				if err != nil {
					return c, err
				}
				sketch = s
				c.Min, c.Max = v, v
			}
			if err := sketch.Add(v); err != nil {
				return c, err
			}
			c.Min = min(c.Min, v)
			c.Max = max(c.Max, v)
			sum += v
			n++
			binary.LittleEndian.PutUint64(key[:], math.Float64bits(v))
			hll.Insert(key[:])
			continue
		}
		hll.Insert(bytesAt(arr, i))
	}

	c.Distinct = hll.Estimate()
	if sketch == nil {
		return c, nil
	}

	c.Numeric = true
	c.Mean = sum / float64(n)
	qs, err := sketch.GetValuesAtQuantiles([]float64{0.5, 0.9, 0.99})
	if err != nil {
		return c, err
	}
	c.P50, c.P90, c.P99 = qs[0], qs[1], qs[2]
	return c, nil
}

func numberAt(arr arrow.Array, i int) (float64, bool) {
	switch a := arr.(type) {
	case *array.Int8:
		return float64(a.Value(i)), true
	case *array.Int16:
		return float64(a.Value(i)), true
	case *array.Int32:
		return float64(a.Value(i)), true
	case *array.Int64:
		return float64(a.Value(i)), true
	case *array.Uint8:
		return float64(a.Value(i)), true
	case *array.Uint16:
		return float64(a.Value(i)), true
	case *array.Uint32:
		return float64(a.Value(i)), true
	case *array.Uint64:
		return float64(a.Value(i)), true
	case *array.Float16:
		return float64(a.Value(i).Float32()), true
	case *array.Float32:
		return float64(a.Value(i)), true
	case *array.Float64:
		return a.Value(i), true
	}
	return 0, false
}

var (
	falseKey = []byte{0}
	trueKey  = []byte{1}
)

func bytesAt(arr arrow.Array, i int) []byte {
	switch a := arr.(type) {
	case *array.String:
		return []byte(a.Value(i))
	case *array.LargeString:
		return []byte(a.Value(i))
	case *array.Boolean:
		if a.Value(i) {
			return trueKey
		}
		return falseKey
	}
	return []byte(arr.ValueStr(i))
}

// Print writes stats as an aligned table.
func Print(w io.Writer, stats []Column) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "COLUMN\tTYPE\tROWS\tNULLS\tDISTINCT\tMIN\tP50\tP90\tP99\tMAX\tMEAN"); err != nil {
		return err
	}
	for _, c := range stats {
		if !c.Numeric {
			if _, err := fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t-\t-\t-\t-\t-\t-\n",
				c.Name, c.Type, c.Rows, c.Nulls, c.Distinct); err != nil {
				return err
			}
			continue
		}
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%g\t%g\t%g\t%g\t%g\t%g\n",
			c.Name, c.Type, c.Rows, c.Nulls, c.Distinct,
			c.Min, c.P50, c.P90, c.P99, c.Max, c.Mean); err != nil {
			return err
		}
	}
	return tw.Flush()
}
