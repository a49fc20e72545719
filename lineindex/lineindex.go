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

// Package lineindex locates record boundaries in a newline-delimited buffer.
//
// A Span addresses the bytes of one line, excluding the terminating "\n" and
// an optional "\r" immediately before it. Spans never overlap, are ordered by
// offset, and a final line without a terminator is still a span. A trailing
// "\n" does not produce an empty final span, but empty lines between two
// terminators do.
package lineindex

import (
	"bytes"
	"context"

	"golang.org/x/sync/errgroup"
)

// Span is a half-open byte range [Start, End) holding one record.
type Span struct {
	Start int
	End   int
}

// Len returns the number of bytes in the span.
func (s Span) Len() int {
	return s.End - s.Start
}

// Bytes returns the span's bytes within buf.
func (s Span) Bytes(buf []byte) []byte {
	return buf[s.Start:s.End]
}

// Range is a contiguous region of a buffer whose boundaries sit on line starts.
type Range struct {
	Start int
	End   int
}

// Count returns the number of "\n" bytes in buf. It does not care whether the
// last line is terminated, so it is the record count only for buffers that
// end with a newline.
func Count(buf []byte) int {
	return bytes.Count(buf, []byte{'\n'})
}

// Index returns every span in buf.
func Index(buf []byte) []Span {
	return IndexRange(buf, Range{Start: 0, End: len(buf)})
}

// IndexRange returns the spans inside r, with offsets relative to buf.
// r must start at a line start, which Partition guarantees.
func IndexRange(buf []byte, r Range) []Span {
	if r.End <= r.Start {
		return nil
	}
	region := buf[r.Start:r.End]
	spans := make([]Span, 0, bytes.Count(region, []byte{'\n'})+1)

	pos := 0
	for pos < len(region) {
		nl := bytes.IndexByte(region[pos:], '\n')
		if nl < 0 {
			spans = append(spans, trimCR(region, r.Start, pos, len(region)))
			break
		}
		spans = append(spans, trimCR(region, r.Start, pos, pos+nl))
		pos += nl + 1
	}
	return spans
}

func trimCR(region []byte, base, start, end int) Span {
	if end > start && region[end-1] == '\r' {
		end--
	}
	return Span{Start: base + start, End: base + end}
}

// Partition splits buf into at most n ranges of roughly equal size. Each
// nominal split point is moved forward to just past the next "\n", so no
// line is ever cut in two. Ranges are returned in buffer order, cover the
// whole buffer, and are never empty.
func Partition(buf []byte, n int) []Range {
	if len(buf) == 0 {
		return nil
	}
	if n <= 1 {
		return []Range{{Start: 0, End: len(buf)}}
	}

	chunk := len(buf) / n
	if chunk == 0 {
		chunk = 1
	}

	ranges := make([]Range, 0, n)
	start := 0
	for i := 1; i < n && start < len(buf); i++ {
		// Search from the byte before the nominal split so a split that
		// already sits on a line start is kept.
		from := i*chunk - 1
		if from < start {
			from = start
		}
		if from >= len(buf) {
			break
		}
		nl := bytes.IndexByte(buf[from:], '\n')
		if nl < 0 {
			break
		}
		end := from + nl + 1
		if end > start {
			ranges = append(ranges, Range{Start: start, End: end})
			start = end
		}
	}
	if start < len(buf) {
		ranges = append(ranges, Range{Start: start, End: len(buf)})
	}
	return ranges
}

// IndexParallel indexes buf using up to n goroutines. The result is identical
// to Index(buf).
func IndexParallel(ctx context.Context, buf []byte, n int) ([]Span, error) {
	ranges := Partition(buf, n)
	if len(ranges) <= 1 {
		return Index(buf), nil
	}

	parts := make([][]Span, len(ranges))
	g, gctx := errgroup.WithContext(ctx)
	for i, r := range ranges {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			parts[i] = IndexRange(buf, r)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, p := range parts {
		total += len(p)
	}
	spans := make([]Span, 0, total)
	for _, p := range parts {
		spans = append(spans, p...)
	}
	return spans, nil
}
