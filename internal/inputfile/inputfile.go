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

// Package inputfile loads a JSONL file into memory, decompressing it first
// when the name ends in .gz or .zst.
package inputfile

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/cardinalhq/fastjsonl/internal/logctx"
)

// Compression identifies how an input file is encoded.
type Compression int

const (
	None Compression = iota
	Gzip
	Zstd
)

func (c Compression) String() string {
	switch c {
	case Gzip:
		return "gzip"
	case Zstd:
		return "zstd"
	default:
		return "none"
	}
}

// Detect picks the compression from the file extension.
func Detect(path string) Compression {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz", ".gzip":
		return Gzip
	case ".zst", ".zstd":
		return Zstd
	}
	return None
}

// Load reads path fully. "-" reads standard input.
func Load(ctx context.Context, path string) ([]byte, error) {
	var (
		r    io.Reader
		size int64
	)
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open input: %w", err)
		}
		defer func() { _ = f.Close() }()
		if st, err := f.Stat(); err == nil {
			size = st.Size()
		}
		r = f
	}

	comp := Detect(path)
	buf, err := Read(r, comp, size)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	logctx.FromContext(ctx).Debug("Loaded input file",
		"path", path,
		"compression", comp.String(),
		"fileBytes", size,
		"bytes", len(buf))
	return buf, nil
}

// Read decodes r according to comp. sizeHint, when positive, is the encoded
// size and is used to presize the buffer.
func Read(r io.Reader, comp Compression, sizeHint int64) ([]byte, error) {
	var buf bytes.Buffer
	if sizeHint > 0 {
		grow := sizeHint
		if comp != None {
			// JSON usually compresses several times over.
			grow *= 4
		}
		buf.Grow(int(grow))
	}

	switch comp {
	case Gzip:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		defer func() { _ = gz.Close() }()
		r = gz
	case Zstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		r = zr
	}

	if _, err := buf.ReadFrom(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
