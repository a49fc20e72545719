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

package engine

import (
	"context"
	"errors"
	"math"
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"golang.org/x/sync/errgroup"

	"github.com/cardinalhq/fastjsonl/columnar"
	"github.com/cardinalhq/fastjsonl/jsonvalue"
	"github.com/cardinalhq/fastjsonl/lineindex"
	"github.com/cardinalhq/fastjsonl/schema"
)

// ctxCheckInterval is how many records a worker processes between context
// checks.
const ctxCheckInterval = 64

// errAborted marks a partition that stopped because an earlier one failed.
var errAborted = errors.New("partition aborted")

type result struct {
	batch      *columnar.Batch
	partitions int
	records    int
}

// partition is one worker's output, stored at the partition's ordinal.
type partition struct {
	spans int
	done  int
	batch *columnar.Batch
	err   error
}

type worker struct {
	buf    []byte
	parser jsonvalue.Parser
	schema *schema.Schema
	table  *arrow.Schema
	mem    memory.Allocator

	// failed holds the lowest ordinal that has failed so far.
	failed atomic.Int64
}

// run drives one invocation. With a nil table only validation happens.
func (e *Engine) run(ctx context.Context, buf []byte, s *schema.Schema, table *arrow.Schema) (result, error) {
	if err := ctx.Err(); err != nil {
		return result{}, err
	}

	ranges := lineindex.Partition(buf, e.partitionCount(len(buf)))
	res := result{partitions: len(ranges)}
	if len(ranges) == 0 {
		if table != nil {
			b, err := columnar.Empty(e.opts.Allocator, table)
			if err != nil {
				return res, err
			}
			res.batch = b
		}
		return res, nil
	}

	w := &worker{
		buf:    buf,
		parser: e.parser,
		schema: s,
		table:  table,
		mem:    e.opts.Allocator,
	}
	w.failed.Store(math.MaxInt64)

	parts := make([]partition, len(ranges))
	var err error
	if len(ranges) == 1 {
		err = w.process(ctx, 0, ranges[0], &parts[0])
	} else {
		var g errgroup.Group
		g.SetLimit(e.opts.Parallelism)
		for i, r := range ranges {
			g.Go(func() error {
				return w.process(ctx, i, r, &parts[i])
			})
		}
		err = g.Wait()
	}
	if err != nil {
		releaseAll(parts)
		return res, err
	}

	return e.merge(parts, table, res)
}

// merge walks partitions in ordinal order. The first error found is the
// earliest failing record of the buffer; its line is rebased by the span
// counts of the partitions before it.
func (e *Engine) merge(parts []partition, table *arrow.Schema, res result) (result, error) {
	base := 0
	for i := range parts {
		p := &parts[i]
		res.records += p.done
		if p.err != nil {
			rebase(p.err, base)
			releaseAll(parts)
			return res, p.err
		}
		base += p.spans
	}

	if table == nil {
		return res, nil
	}
	batches := make([]*columnar.Batch, len(parts))
	for i := range parts {
		batches[i] = parts[i].batch
		parts[i].batch = nil
	}
	b, err := columnar.Concat(e.opts.Allocator, table, batches)
	if err != nil {
		return res, err
	}
	res.batch = b
	return res, nil
}

func (e *Engine) partitionCount(size int) int {
	n := min(size/e.opts.MinPartitionBytes, e.opts.Parallelism)
	return max(n, 1)
}

// process handles one partition. Record failures are stored in out; only
// context cancellation is returned.
func (w *worker) process(ctx context.Context, ordinal int, r lineindex.Range, out *partition) error {
	if w.aborted(ordinal) {
		out.err = errAborted
		return nil
	}
	spans := lineindex.IndexRange(w.buf, r)
	out.spans = len(spans)

	var enc *columnar.Encoder
	if w.table != nil {
		var err error
		enc, err = columnar.NewEncoder(w.mem, w.table, len(spans))
		if err != nil {
			out.err = err
			w.fail(ordinal)
			return nil
		}
		defer enc.Release()
	}

	for j, sp := range spans {
		if j%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if w.aborted(ordinal) {
			out.err = errAborted
			return nil
		}

		line := j + 1
		v, err := w.parser.ParseAt(sp.Bytes(w.buf), sp.Start)
		if err != nil {
			var pe *jsonvalue.ParseError
			if errors.As(err, &pe) {
				pe.Line = line
			}
			out.err = err
			w.fail(ordinal)
			return nil
		}
		if verr := w.schema.Validate(v); verr != nil {
			verr.Line = line
			out.err = verr
			w.fail(ordinal)
			return nil
		}
		if enc != nil {
			if err := enc.Append(v, line); err != nil {
				out.err = err
				w.fail(ordinal)
				return nil
			}
		}
		out.done++
	}

	if enc != nil {
		out.batch = enc.Seal()
	}
	return nil
}

// aborted reports whether an earlier partition has already failed, which
// makes this partition's work useless.
func (w *worker) aborted(ordinal int) bool {
	return w.failed.Load() < int64(ordinal)
}

func (w *worker) fail(ordinal int) {
	for {
		cur := w.failed.Load()
		if int64(ordinal) >= cur || w.failed.CompareAndSwap(cur, int64(ordinal)) {
			return
		}
	}
}

func rebase(err error, base int) {
	if base == 0 {
		return
	}
	var (
		pe *jsonvalue.ParseError
		ve *schema.ValidationError
		te *columnar.TypeMismatchError
	)
	switch {
	case errors.As(err, &pe):
		pe.Line += base
	case errors.As(err, &ve):
		ve.Line += base
	case errors.As(err, &te):
		te.Line += base
	}
}

func releaseAll(parts []partition) {
	for i := range parts {
		if parts[i].batch != nil {
			parts[i].batch.Release()
			parts[i].batch = nil
		}
	}
}
