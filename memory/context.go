package memory

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/becomeliminal/nim-memory/memory/index"
)

// ContextHeader starts every non-empty context block.
const ContextHeader = "Relevant past conversation context:\n"

// Hit is one search result.
type Hit struct {
	Record Record

	// Distance is the Euclidean distance between the unit query and
	// record vectors, in [0, 2].
	Distance float32

	// Similarity is Similarity(Distance).
	Similarity float64
}

// Similarity converts the distance between two unit vectors into their
// cosine similarity: 1 - d²/2. Identical vectors give 1, opposite vectors -1.
func Similarity(distance float32) float64 {
	d := float64(distance)
	return 1 - d*d/2
}

// Assemble renders hits, nearest first, into a context block. Hits below
// threshold are skipped. Each kept hit costs its rendered length plus 2
// characters against maxChars, the header counting too; the first hit that
// does not fit ends the block. Lengths are in characters, not bytes.
// Assemble returns "" when no hit is kept.
func Assemble(hits []Hit, threshold float64, maxChars int) string {
	total := utf8.RuneCountInString(ContextHeader)
	var entries []string
	for _, h := range hits {
		if h.Similarity < threshold {
			continue
		}
		entry := h.Record.Format()
		size := utf8.RuneCountInString(entry) + 2
		if total+size > maxChars {
			break
		}
		total += size
		entries = append(entries, entry)
	}
	if len(entries) == 0 {
		return ""
	}
	return ContextHeader + strings.Join(entries, "\n")
}

// SearchOption overrides a Config value for one SearchRelevantContext call.
type SearchOption func(*searchOptions)

type searchOptions struct {
	threshold float64
	maxChars  int
}

// WithThreshold overrides Config.ContextThreshold.
func WithThreshold(threshold float64) SearchOption {
	return func(o *searchOptions) {
		o.threshold = threshold
	}
}

// WithMaxChars overrides Config.MaxContextChars.
func WithMaxChars(n int) SearchOption {
	return func(o *searchOptions) {
		o.maxChars = n
	}
}

// Search returns the k stored turns nearest to query, nearest first. k is
// clamped to the number of stored turns.
func (s *Store) Search(ctx context.Context, query string, k int) ([]Hit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searchLocked(ctx, query, k)
}

func (s *Store) searchLocked(ctx context.Context, query string, k int) ([]Hit, error) {
	if strings.TrimSpace(query) == "" || len(s.records) == 0 || k <= 0 {
		return nil, nil
	}
	k = min(k, len(s.records))

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", ErrEmbedFailure, err)
	}
	if index.IsZero(vec) {
		s.logger.Debug("query has no embedding direction, nothing to match")
		return nil, nil
	}
	neighbors, err := s.idx.Search(index.Normalize(vec), k)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	hits := make([]Hit, 0, len(neighbors))
	for _, n := range neighbors {
		if n.Ordinal < 0 || n.Ordinal >= len(s.records) {
			continue
		}
		hits = append(hits, Hit{
			Record:     s.records[n.Ordinal],
			Distance:   n.Distance,
			Similarity: Similarity(n.Distance),
		})
	}
	return hits, nil
}

// SearchRelevantContext returns the context block for query, or "" when the
// query is blank, the store is empty, or nothing is similar enough. Search
// failures are logged and give "".
func (s *Store) SearchRelevantContext(ctx context.Context, query string, opts ...SearchOption) string {
	o := searchOptions{
		threshold: s.cfg.ContextThreshold,
		maxChars:  s.cfg.MaxContextChars,
	}
	for _, opt := range opts {
		opt(&o)
	}

	s.mu.Lock()
	hits, err := s.searchLocked(ctx, query, s.cfg.SearchK)
	s.mu.Unlock()
	if err != nil {
		s.logger.Warn("context search failed", zap.Error(err))
		return ""
	}

	out := Assemble(hits, o.threshold, o.maxChars)
	s.logger.Debug("assembled context",
		zap.Int("candidates", len(hits)),
		zap.Int("chars", utf8.RuneCountInString(out)),
	)
	return out
}
