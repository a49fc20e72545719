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

package output

import (
	"io"
	"sync"

	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/klauspost/compress/zstd"
)

// zstdCodec replaces arrow-go's registered zstd codec. The stock codec builds
// a fresh encoder, with its large history buffers, for every page it
// compresses; this one keeps encoders in a pool per level.
type zstdCodec struct {
	pools sync.Map // zstd.EncoderLevel -> *sync.Pool

	decoderOnce sync.Once
	decoder     *zstd.Decoder
}

var _ compress.Codec = (*zstdCodec)(nil)

func init() {
	compress.RegisterCodec(compress.Codecs.Zstd, &zstdCodec{})
}

func levelFor(level int) zstd.EncoderLevel {
	if level == compress.DefaultCompressionLevel {
		return zstd.SpeedDefault
	}
	return zstd.EncoderLevelFromZstd(level)
}

func (c *zstdCodec) pool(level zstd.EncoderLevel) *sync.Pool {
	if p, ok := c.pools.Load(level); ok {
		return p.(*sync.Pool)
	}
	p, _ := c.pools.LoadOrStore(level, &sync.Pool{
		New: func() any {
			enc, _ := zstd.NewWriter(nil, zstd.WithZeroFrames(true), zstd.WithEncoderLevel(level))
			return enc
		},
	})
	return p.(*sync.Pool)
}

func (c *zstdCodec) dec() *zstd.Decoder {
	c.decoderOnce.Do(func() {
		c.decoder, _ = zstd.NewReader(nil)
	})
	return c.decoder
}

func (c *zstdCodec) Encode(dst, src []byte) []byte {
	return c.EncodeLevel(dst, src, compress.DefaultCompressionLevel)
}

func (c *zstdCodec) EncodeLevel(dst, src []byte, level int) []byte {
	lvl := levelFor(level)
	p := c.pool(lvl)
	enc := p.Get().(*zstd.Encoder)
	defer p.Put(enc)
	return enc.EncodeAll(src, dst[:0])
}

func (c *zstdCodec) Decode(dst, src []byte) []byte {
	out, err := c.dec().DecodeAll(src, dst[:0])
	if err != nil {
		// compress.Codec has no error return; arrow-go's own codec panics too.
		panic(err)
	}
	return out
}

// CompressBound follows ZSTD_COMPRESSBOUND from zstd.h.
func (c *zstdCodec) CompressBound(n int64) int64 {
	extra := ((128 << 10) - n) >> 11
	if n >= 128<<10 {
		extra = 0
	}
	return n + (n >> 8) + extra
}

func (c *zstdCodec) NewReader(r io.Reader) io.ReadCloser {
	d, _ := zstd.NewReader(r)
	return d.IOReadCloser()
}

func (c *zstdCodec) NewWriter(w io.Writer) io.WriteCloser {
	wc, _ := c.NewWriterLevel(w, compress.DefaultCompressionLevel)
	return wc
}

func (c *zstdCodec) NewWriterLevel(w io.Writer, level int) (io.WriteCloser, error) {
	lvl := levelFor(level)
	enc := c.pool(lvl).Get().(*zstd.Encoder)
	enc.Reset(w)
	return &pooledWriter{Encoder: enc, pool: c.pool(lvl)}, nil
}

// pooledWriter returns its encoder to the pool on Close.
type pooledWriter struct {
	*zstd.Encoder
	pool *sync.Pool
}

func (w *pooledWriter) Close() error {
	err := w.Encoder.Close()
	w.Encoder.Reset(nil)
	w.pool.Put(w.Encoder)
	return err
}
