// Package chromem keeps the summaries extracted from stored turns in a
// chromem-go collection, so they can be searched next to the raw turns.
package chromem

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/becomeliminal/nim-memory/core"
	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/memory/extract"
)

const collectionName = "summaries"

// SummaryStore wraps chromem-go for extracted summaries.
// chromem-go is a pure Go, embedded vector database.
type SummaryStore struct {
	db       *chromem.DB
	col      *chromem.Collection
	compress bool
	logger   *zap.Logger
	now      func() time.Time
}

var _ memory.SummaryStore = (*SummaryStore)(nil)

// Option configures a SummaryStore.
type Option func(*SummaryStore)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(s *SummaryStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCompression gzips the persisted documents.
func WithCompression() Option {
	return func(s *SummaryStore) {
		s.compress = true
	}
}

// Open opens the summary store persisted in dir, or an in-memory one when
// dir is empty. Summaries are embedded with embedder.
func Open(dir string, embedder memory.Embedder, opts ...Option) (*SummaryStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("open summary store: nil embedder")
	}
	s := &SummaryStore{
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if dir == "" {
		s.db = chromem.NewDB()
	} else {
		db, err := chromem.NewPersistentDB(dir, s.compress)
		if err != nil {
			return nil, fmt.Errorf("open chromem db: %w", err)
		}
		s.db = db
	}

	col, err := s.db.GetOrCreateCollection(collectionName, nil, embedder.Embed)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	s.col = col

	s.logger.Debug("opened summary store", zap.String("dir", dir), zap.Int("summaries", col.Count()))
	return s, nil
}

// Factory returns a memory.SummaryFactory that opens a persistent store in
// each scope's directory.
func Factory(opts ...Option) memory.SummaryFactory {
	return func(_ context.Context, dir string, embedder memory.Embedder) (memory.SummaryStore, error) {
		return Open(dir, embedder, opts...)
	}
}

// Add stores every memory with a non-blank summary.
func (s *SummaryStore) Add(ctx context.Context, role core.Role, memories []extract.Memory) error {
	created := s.now().UTC().Format(time.RFC3339)
	stored := 0
	for _, m := range memories {
		summary := strings.TrimSpace(m.Summary)
		if summary == "" {
			continue
		}

		doc := chromem.Document{
			ID:      uuid.New().String(),
			Content: summary,
			Metadata: map[string]string{
				"role":       string(role),
				"source":     m.Source,
				"tags":       strings.Join(m.Tags, ","),
				"created_at": created,
			},
		}
		if err := s.col.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("add document: %w", err)
		}
		stored++
	}

	s.logger.Debug("stored summaries", zap.Int("count", stored))
	return nil
}

// Search returns up to limit summaries by similarity to query, best first.
func (s *SummaryStore) Search(ctx context.Context, query string, limit int) ([]extract.Memory, error) {
	// chromem-go requires nResults <= collection size
	limit = min(limit, s.col.Count())
	if limit <= 0 || strings.TrimSpace(query) == "" {
		return nil, nil
	}

	results, err := s.col.Query(ctx, query, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	memories := make([]extract.Memory, 0, len(results))
	for _, r := range results {
		memories = append(memories, extract.Memory{
			Summary: r.Content,
			Tags:    splitTags(r.Metadata["tags"]),
			Source:  r.Metadata["source"],
		})
	}
	return memories, nil
}

// Len returns the number of stored summaries.
func (s *SummaryStore) Len() int {
	return s.col.Count()
}

// Close releases resources.
func (s *SummaryStore) Close() error {
	// Persistent chromem databases write on every add; nothing to flush.
	return nil
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
