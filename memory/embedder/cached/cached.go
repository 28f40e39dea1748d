// Package cached puts an in-memory cache in front of an embedder, so texts
// that are embedded repeatedly (queries, re-imported history) are computed
// once.
package cached

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dgraph-io/ristretto"

	"github.com/becomeliminal/nim-memory/memory"
)

// DefaultMaxEntries is roughly how many embeddings the cache holds.
const DefaultMaxEntries = 10000

// Embedder caches the vectors of another embedder by text.
type Embedder struct {
	next  memory.Embedder
	cache *ristretto.Cache
}

var _ memory.Embedder = (*Embedder)(nil)

// Option configures an Embedder.
type Option func(*config)

type config struct {
	maxEntries int
	metrics    bool
}

// WithMaxEntries sizes the cache for about n embeddings.
func WithMaxEntries(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

// WithMetrics enables hit and miss counting for Stats.
func WithMetrics() Option {
	return func(c *config) {
		c.metrics = true
	}
}

// New wraps next.
func New(next memory.Embedder, opts ...Option) (*Embedder, error) {
	if next == nil {
		return nil, errors.New("cached embedder: nil embedder")
	}
	cfg := config{maxEntries: DefaultMaxEntries}
	for _, opt := range opts {
		opt(&cfg)
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: int64(cfg.maxEntries) * 10,
		MaxCost:     int64(cfg.maxEntries) * vectorCost(next.Dimensions()),
		BufferItems: 64,
		Metrics:     cfg.metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &Embedder{next: next, cache: cache}, nil
}

// Embed returns the cached vector for text, computing it on a miss.
// Failures are not cached.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.cache.Get(text); ok {
		return clone(v.([]float32)), nil
	}

	vec, err := e.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Set(text, clone(vec), vectorCost(len(vec)))
	return vec, nil
}

// Dimensions returns the dimensions of the wrapped embedder.
func (e *Embedder) Dimensions() int {
	return e.next.Dimensions()
}

// Wait blocks until pending cache writes are visible to Embed.
func (e *Embedder) Wait() {
	e.cache.Wait()
}

// Stats returns cache hits and misses. Both are zero unless WithMetrics
// was given.
func (e *Embedder) Stats() (hits, misses uint64) {
	if e.cache.Metrics == nil {
		return 0, 0
	}
	return e.cache.Metrics.Hits(), e.cache.Metrics.Misses()
}

// Close releases the cache and closes the wrapped embedder if it can be
// closed.
func (e *Embedder) Close() error {
	e.cache.Close()
	if c, ok := e.next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func vectorCost(dims int) int64 {
	if dims < 1 {
		dims = 1
	}
	return int64(dims) * 4
}

func clone(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
