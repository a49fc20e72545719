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
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Batch is an immutable set of equal-length named columns. The caller owns
// a Batch and must call Release when done with it.
type Batch struct {
	rec arrow.Record
}

// Empty returns a batch with the given schema and no rows.
func Empty(mem memory.Allocator, schema *arrow.Schema) (*Batch, error) {
	enc, err := NewEncoder(mem, schema, 0)
	if err != nil {
		return nil, err
	}
	defer enc.Release()
	return enc.Seal(), nil
}

// Record returns the underlying Arrow record. It stays valid until Release.
func (b *Batch) Record() arrow.Record {
	return b.rec
}

func (b *Batch) Schema() *arrow.Schema {
	return b.rec.Schema()
}

func (b *Batch) NumRows() int64 {
	return b.rec.NumRows()
}

func (b *Batch) NumCols() int {
	return int(b.rec.NumCols())
}

// Column returns the column called name.
func (b *Batch) Column(name string) (arrow.Array, bool) {
	idx := b.rec.Schema().FieldIndices(name)
	if len(idx) == 0 {
		return nil, false
	}
	return b.rec.Column(idx[0]), true
}

// Release drops the batch's reference to its memory.
func (b *Batch) Release() {
	if b.rec != nil {
		b.rec.Release()
		b.rec = nil
	}
}

// Concat joins batches in order into one batch with contiguous columns. The
// inputs are released whether or not Concat succeeds.
func Concat(mem memory.Allocator, schema *arrow.Schema, batches []*Batch) (*Batch, error) {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	defer func() {
		for _, b := range batches {
			b.Release()
		}
	}()

	switch len(batches) {
	case 0:
		return Empty(mem, schema)
	case 1:
		out := &Batch{rec: batches[0].rec}
		batches[0].rec = nil
		return out, nil
	}

	var rows int64
	for _, b := range batches {
		rows += b.NumRows()
	}

	cols := make([]arrow.Array, schema.NumFields())
	release := func() {
		for _, c := range cols {
			if c != nil {
				c.Release()
			}
		}
	}

	parts := make([]arrow.Array, len(batches))
	for i := range cols {
		for j, b := range batches {
			parts[j] = b.rec.Column(i)
		}
		c, err := array.Concatenate(parts, mem)
		if err != nil {
			release()
			return nil, fmt.Errorf("failed to concatenate column %s: %w", schema.Field(i).Name, err)
		}
		cols[i] = c
	}

	rec := array.NewRecord(schema, cols, rows)
	release()
	return &Batch{rec: rec}, nil
}
