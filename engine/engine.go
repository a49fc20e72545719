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

// Package engine validates JSONL buffers against a JSON Schema and converts
// them into Arrow record batches, splitting large buffers across workers.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/cardinalhq/fastjsonl/columnar"
	"github.com/cardinalhq/fastjsonl/internal/logctx"
	"github.com/cardinalhq/fastjsonl/jsonvalue"
	"github.com/cardinalhq/fastjsonl/lineindex"
	"github.com/cardinalhq/fastjsonl/schema"
)

// DefaultMinPartitionBytes is the smallest slice of the buffer worth handing
// to its own worker.
const DefaultMinPartitionBytes = 256 << 10

// ErrProbeTooLarge is returned by Probe for buffers holding more than one
// record.
var ErrProbeTooLarge = errors.New("probe accepts at most one record")

// Options configures an Engine. The zero value is usable; unset fields take
// the defaults described on each field.
type Options struct {
	// Parallelism caps the number of partitions processed at once.
	// Zero means GOMAXPROCS.
	Parallelism int
	// MinPartitionBytes is the smallest partition size. Buffers shorter than
	// twice this are processed by a single worker. Zero means
	// DefaultMinPartitionBytes.
	MinPartitionBytes int
	// MaxDepth bounds record nesting. Zero means jsonvalue.DefaultMaxDepth.
	MaxDepth int
	// AdditionalProperties applies to schema objects that do not say.
	AdditionalProperties schema.AdditionalProperties
	// Allocator backs the Arrow builders. Nil means memory.DefaultAllocator.
	Allocator memory.Allocator
	// SchemaCache, when set, is consulted before compiling schema text.
	SchemaCache *schema.Cache
}

// DefaultOptions returns the options used by the package-level functions.
func DefaultOptions() Options {
	return Options{
		Parallelism:       runtime.GOMAXPROCS(0),
		MinPartitionBytes: DefaultMinPartitionBytes,
		MaxDepth:          jsonvalue.DefaultMaxDepth,
		Allocator:         memory.DefaultAllocator,
	}
}

// Engine runs validate and convert invocations. It is safe for concurrent
// use; invocations share nothing but the optional schema cache.
type Engine struct {
	opts   Options
	parser jsonvalue.Parser
}

// New returns an Engine for opts, filling in defaults.
func New(opts Options) *Engine {
	if opts.Parallelism <= 0 {
		opts.Parallelism = runtime.GOMAXPROCS(0)
	}
	if opts.MinPartitionBytes <= 0 {
		opts.MinPartitionBytes = DefaultMinPartitionBytes
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = jsonvalue.DefaultMaxDepth
	}
	if opts.Allocator == nil {
		opts.Allocator = memory.DefaultAllocator
	}
	return &Engine{
		opts:   opts,
		parser: jsonvalue.Parser{MaxDepth: opts.MaxDepth},
	}
}

// Options returns the effective options.
func (e *Engine) Options() Options {
	return e.opts
}

// Validate checks every record in buf against schemaText and returns the
// first failure in line order, or nil.
func (e *Engine) Validate(ctx context.Context, buf []byte, schemaText string) error {
	start := time.Now()
	s, err := e.compile(schemaText)
	if err != nil {
		return err
	}

	res, err := e.run(ctx, buf, s, nil)
	e.finish(ctx, modeValidate, buf, res, err, start)
	return err
}

// Convert validates every record in buf and encodes it into a batch shaped
// by table. Either every record lands in the batch or an error is returned
// and no batch is. The caller must Release the batch.
func (e *Engine) Convert(ctx context.Context, buf []byte, schemaText string, table *arrow.Schema) (*columnar.Batch, error) {
	start := time.Now()
	s, err := e.prepare(schemaText, table)
	if err != nil {
		return nil, err
	}
	return e.convert(ctx, buf, s, table, start)
}

// Probe is Convert restricted to buffers of at most one record. It exists so
// callers can check a schema and table pairing without a real input.
func (e *Engine) Probe(ctx context.Context, buf []byte, schemaText string, table *arrow.Schema) (*columnar.Batch, error) {
	start := time.Now()
	s, err := e.prepare(schemaText, table)
	if err != nil {
		return nil, err
	}
	if len(lineindex.Index(buf)) > 1 {
		return nil, ErrProbeTooLarge
	}
	return e.convert(ctx, buf, s, table, start)
}

// prepare checks the table and compiles the schema, in that order, before
// any record is looked at.
func (e *Engine) prepare(schemaText string, table *arrow.Schema) (*schema.Schema, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	return e.compile(schemaText)
}

func (e *Engine) convert(ctx context.Context, buf []byte, s *schema.Schema, table *arrow.Schema, start time.Time) (*columnar.Batch, error) {
	res, err := e.run(ctx, buf, s, table)
	e.finish(ctx, modeConvert, buf, res, err, start)
	if err != nil {
		return nil, err
	}
	return res.batch, nil
}

func (e *Engine) compile(text string) (*schema.Schema, error) {
	opt := schema.WithAdditionalProperties(e.opts.AdditionalProperties)
	if e.opts.SchemaCache != nil {
		return e.opts.SchemaCache.Compile(text, opt)
	}
	return schema.Compile(text, opt)
}

func checkTable(table *arrow.Schema) error {
	if table == nil {
		return errors.New("target table schema is nil")
	}
	for _, f := range table.Fields() {
		if !columnar.Supported(f.Type) {
			return &columnar.UnsupportedTypeError{Column: f.Name, Type: f.Type.String()}
		}
	}
	return nil
}

type mode string

const (
	modeValidate mode = "validate"
	modeConvert  mode = "convert"
)

func (e *Engine) finish(ctx context.Context, m mode, buf []byte, res result, err error, start time.Time) {
	elapsed := time.Since(start)

	attr := modeValidateAttr
	if m == modeConvert {
		attr = modeConvertAttr
	}
	bytesCounter.Add(ctx, int64(len(buf)), attr)
	recordsCounter.Add(ctx, int64(res.records), attr)
	if err != nil && isRecordError(err) {
		failedInvocationsCounter.Add(ctx, 1, attr)
	}
	invocationDurationHist.Record(ctx, elapsed.Seconds(), attr)

	ll := logctx.FromContext(ctx)
	args := []any{
		slog.String("mode", string(m)),
		slog.Int("bytes", len(buf)),
		slog.Int("partitions", res.partitions),
		slog.Int("records", res.records),
		slog.Duration("elapsed", elapsed),
		slog.String("options", e.opts.String()),
	}
	if err != nil {
		args = append(args, slog.Any("error", err))
	}
	ll.Debug("jsonl invocation finished", args...)
}

func isRecordError(err error) bool {
	var (
		pe *jsonvalue.ParseError
		ve *schema.ValidationError
		te *columnar.TypeMismatchError
	)
	return errors.As(err, &pe) || errors.As(err, &ve) || errors.As(err, &te)
}

// CountLineTerminators returns the number of "\n" bytes in buf.
func CountLineTerminators(buf []byte) int {
	return lineindex.Count(buf)
}

// ValidateJSONL validates buf with DefaultOptions.
func ValidateJSONL(ctx context.Context, buf []byte, schemaText string) error {
	return New(DefaultOptions()).Validate(ctx, buf, schemaText)
}

// ValidateNDJSON is ValidateJSONL under its other common name.
func ValidateNDJSON(ctx context.Context, buf []byte, schemaText string) error {
	return ValidateJSONL(ctx, buf, schemaText)
}

// JSONLToTable converts buf with DefaultOptions.
func JSONLToTable(ctx context.Context, buf []byte, schemaText string, table *arrow.Schema) (*columnar.Batch, error) {
	return New(DefaultOptions()).Convert(ctx, buf, schemaText, table)
}

// Probe runs Engine.Probe with DefaultOptions.
func Probe(ctx context.Context, buf []byte, schemaText string, table *arrow.Schema) (*columnar.Batch, error) {
	return New(DefaultOptions()).Probe(ctx, buf, schemaText, table)
}

// String summarises the options for logs.
func (o Options) String() string {
	return fmt.Sprintf("parallelism=%d min_partition_bytes=%d max_depth=%d additional_properties=%s",
		o.Parallelism, o.MinPartitionBytes, o.MaxDepth, o.AdditionalProperties)
}
