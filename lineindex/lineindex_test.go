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

package lineindex

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCount(t *testing.T) {
	tests := []struct {
		name string
		buf  string
		want int
	}{
		{"empty", "", 0},
		{"harness example", "line1\nline2\nline3\naaa\nsomething\n", 5},
		{"no trailing newline", "a\nb", 1},
		{"only newlines", "\n\n\n", 3},
		{"crlf", "a\r\nb\r\n", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Count([]byte(tt.buf)))
		})
	}
}

func TestIndex(t *testing.T) {
	tests := []struct {
		name string
		buf  string
		want []string
	}{
		{"empty", "", nil},
		{"single unterminated", `{"a":1}`, []string{`{"a":1}`}},
		{"single terminated", "{\"a\":1}\n", []string{`{"a":1}`}},
		{"trailing line", "a\nb", []string{"a", "b"}},
		{"empty lines", "a\n\nb\n", []string{"a", "", "b"}},
		{"leading empty line", "\na", []string{"", "a"}},
		{"crlf", "a\r\nb\r\nc", []string{"a", "b", "c"}},
		{"bare cr kept inside line", "a\rb\n", []string{"a\rb"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := []byte(tt.buf)
			spans := Index(buf)
			var got []string
			for _, s := range spans {
				got = append(got, string(s.Bytes(buf)))
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIndexSpansAreOrderedAndDisjoint(t *testing.T) {
	buf := []byte("one\r\ntwo\n\nthree\nfour")
	spans := Index(buf)
	require.Len(t, spans, 5)

	prevEnd := 0
	for _, s := range spans {
		assert.GreaterOrEqual(t, s.Start, prevEnd)
		assert.GreaterOrEqual(t, s.End, s.Start)
		prevEnd = s.End
	}
	assert.Equal(t, len(buf), spans[len(spans)-1].End)
}

func makeLines(n int) []byte {
	var b bytes.Buffer
	for i := range n {
		fmt.Fprintf(&b, "{\"id\":%d,\"pad\":%q}\n", i, strings.Repeat("x", i%17))
	}
	return b.Bytes()
}

func TestPartition(t *testing.T) {
	buf := makeLines(1000)

	for _, n := range []int{1, 2, 3, 7, 16, 64, 5000} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			ranges := Partition(buf, n)
			require.NotEmpty(t, ranges)
			assert.LessOrEqual(t, len(ranges), n)

			assert.Equal(t, 0, ranges[0].Start)
			assert.Equal(t, len(buf), ranges[len(ranges)-1].End)
			for i, r := range ranges {
				assert.Less(t, r.Start, r.End, "range %d is empty", i)
				if i > 0 {
					assert.Equal(t, ranges[i-1].End, r.Start)
					assert.Equal(t, byte('\n'), buf[r.Start-1], "range %d does not start on a line", i)
				}
			}
		})
	}
}

func TestPartitionEdgeCases(t *testing.T) {
	assert.Nil(t, Partition(nil, 4))
	assert.Equal(t, []Range{{0, 3}}, Partition([]byte("abc"), 4))
	assert.Equal(t, []Range{{0, 2}, {2, 4}}, Partition([]byte("a\nb\n"), 2))
}

func TestIndexRangeMatchesIndex(t *testing.T) {
	buf := append(makeLines(257), []byte("tail-without-newline")...)
	want := Index(buf)

	var got []Span
	for _, r := range Partition(buf, 9) {
		got = append(got, IndexRange(buf, r)...)
	}
	assert.Equal(t, want, got)
}

func TestIndexParallel(t *testing.T) {
	buf := append(makeLines(4096), []byte("\r\n\nlast")...)
	want := Index(buf)

	for _, n := range []int{1, 2, 8, 33} {
		got, err := IndexParallel(context.Background(), buf, n)
		require.NoError(t, err)
		assert.Equal(t, want, got, "n=%d", n)
	}
}

func TestIndexParallelCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := IndexParallel(ctx, makeLines(100), 4)
	require.ErrorIs(t, err, context.Canceled)
}

func BenchmarkIndex(b *testing.B) {
	buf := makeLines(100_000)
	b.SetBytes(int64(len(buf)))
	b.ResetTimer()
	for b.Loop() {
		_ = Index(buf)
	}
}
