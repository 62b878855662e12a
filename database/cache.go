// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package database

import (
	"sync"

	"github.com/decred/dcrd/lru"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type cacheMetrics struct {
	hits   *prometheus.CounterVec
	misses *prometheus.CounterVec
}

func newCacheMetrics(promRegistry prometheus.Registerer) *cacheMetrics {
	if promRegistry == nil {
		return nil
	}
	promautoFactory := promauto.With(promRegistry)
	return &cacheMetrics{
		hits: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "database_cache_hits_total",
				Help: "Database read cache hits",
			},
			[]string{"cache"},
		),
		misses: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "database_cache_misses_total",
				Help: "Database read cache misses",
			},
			[]string{"cache"},
		),
	}
}

// recordCache is an LRU of committed records. Every invalidation bumps a
// generation counter, and a value loaded from the store is only inserted if
// no invalidation happened since the load started. This keeps a reader that
// raced a commit from caching the pre-commit value.
type recordCache struct {
	name    string
	cache   lru.KVCache
	metrics *cacheMetrics
	mu      sync.Mutex
	gen     uint64
	enabled bool
}

func newRecordCache(name string, size uint, metrics *cacheMetrics) *recordCache {
	c := &recordCache{
		name:    name,
		metrics: metrics,
		enabled: size > 0,
	}
	if c.enabled {
		c.cache = lru.NewKVCache(size)
	}
	return c
}

// lookup returns the cached value and the generation to pass to add on a miss
func (c *recordCache) lookup(key any) (any, uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return nil, c.gen, false
	}
	val, ok := c.cache.Lookup(key)
	if c.metrics != nil {
		if ok {
			c.metrics.hits.WithLabelValues(c.name).Inc()
		} else {
			c.metrics.misses.WithLabelValues(c.name).Inc()
		}
	}
	return val, c.gen, ok
}

func (c *recordCache) add(gen uint64, key any, val any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled || gen != c.gen {
		return
	}
	c.cache.Add(key, val)
}

func (c *recordCache) invalidate(key any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	if c.enabled {
		c.cache.Delete(key)
	}
}
