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

package schema

import (
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/jellydator/ttlcache/v3"
)

const (
	DefaultCacheTTL      = 10 * time.Minute
	defaultCacheCapacity = 256
)

// Cache keeps compiled schemas for callers that validate many buffers
// against the same few schema documents. Entries are keyed by a hash of the
// document and the compile options, and the source text is compared on a
// hit so a hash collision can never return the wrong schema.
type Cache struct {
	cache *ttlcache.Cache[uint64, *Schema]
}

// NewCache creates a cache whose entries expire ttl after insertion.
// Close must be called to stop the expiry goroutine.
func NewCache(ttl time.Duration, capacity uint64) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if capacity == 0 {
		capacity = defaultCacheCapacity
	}
	c := ttlcache.New(
		ttlcache.WithTTL[uint64, *Schema](ttl),
		ttlcache.WithDisableTouchOnHit[uint64, *Schema](),
		ttlcache.WithCapacity[uint64, *Schema](capacity),
	)
	go c.Start()
	return &Cache{cache: c}
}

// Compile returns the cached compilation of text, compiling it on a miss.
// Compile errors are not cached.
func (c *Cache) Compile(text string, opts ...CompileOption) (*Schema, error) {
	var o compileOptions
	for _, opt := range opts {
		opt(&o)
	}
	key := cacheKey(text, o)

	if item := c.cache.Get(key); item != nil {
		s := item.Value()
		if s.source == text && s.opts == o {
			return s, nil
		}
	}

	s, err := Compile(text, opts...)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, s, ttlcache.DefaultTTL)
	return s, nil
}

// Len returns the number of cached schemas.
func (c *Cache) Len() int {
	return c.cache.Len()
}

// Close stops the expiry goroutine.
func (c *Cache) Close() {
	c.cache.Stop()
}

func cacheKey(text string, o compileOptions) uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(text)
	_, _ = h.Write([]byte{byte(o.additional)})
	return h.Sum64()
}
