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

// Package output writes converted batches to disk as Parquet, Arrow IPC or
// CSV.
package output

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cardinalhq/fastjsonl/columnar"
	"github.com/cardinalhq/fastjsonl/internal/logctx"
)

// Format selects the file format.
type Format string

const (
	FormatParquet Format = "parquet"
	FormatArrow   Format = "arrow"
	FormatCSV     Format = "csv"
)

// DefaultChunkSize is the default number of rows per Parquet row group.
const DefaultChunkSize = 128 * 1024

// ParseFormat accepts a format name or a file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "parquet", "pq":
		return FormatParquet, nil
	case "arrow", "ipc", "feather":
		return FormatArrow, nil
	case "csv":
		return FormatCSV, nil
	}
	return "", fmt.Errorf("unknown output format %q", s)
}

// FormatForPath guesses the format from a file name, defaulting to Parquet.
func FormatForPath(path string) Format {
	if f, err := ParseFormat(filepath.Ext(path)); err == nil {
		return f
	}
	return FormatParquet
}

// Options controls how a batch is written.
type Options struct {
	Format Format
	// Compression names the codec: zstd, snappy, gzip, lz4, or none.
	// Parquet supports all of them, Arrow IPC only zstd and lz4, CSV none.
	Compression string
	// ChunkSize is the maximum number of rows per Parquet row group.
	ChunkSize int64
}

// Write encodes batch to w. w is never closed.
func Write(ctx context.Context, w io.Writer, batch *columnar.Batch, opts Options) error {
	if batch == nil {
		return errors.New("no batch to write")
	}
	// Hide any Close method so the format writers cannot close w.
	sink := struct{ io.Writer }{w}

	switch opts.Format {
	case FormatParquet, "":
		return writeParquet(sink, batch, opts)
	case FormatArrow:
		return writeIPC(sink, batch, opts)
	case FormatCSV:
		return writeCSV(sink, batch)
	default:
		return fmt.Errorf("unknown output format %q", opts.Format)
	}
}

// WriteFile writes batch to path. The data goes to a temporary file in the
// same directory first, so path is either complete or untouched.
func WriteFile(ctx context.Context, path string, batch *columnar.Batch, opts Options) error {
	if opts.Format == "" {
		opts.Format = FormatForPath(path)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if err := Write(ctx, tmp, batch, opts); err != nil {
		return fmt.Errorf("failed to write %s: %w", opts.Format, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to move output into place: %w", err)
	}

	logctx.FromContext(ctx).Info("Wrote output file",
		"path", path,
		"format", string(opts.Format),
		"rows", batch.NumRows(),
		"columns", batch.NumCols())
	return nil
}
