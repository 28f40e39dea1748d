package memory_test

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/becomeliminal/nim-memory/core"
	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/memory/extract"
	"github.com/becomeliminal/nim-memory/memory/index"
)

// MockEmbedder returns fixed vectors for known texts and a deterministic
// hash-derived vector for everything else.
type MockEmbedder struct {
	dims    int
	vectors map[string][]float32
	fail    map[string]bool

	mu    sync.Mutex
	calls int
}

func NewMockEmbedder(dims int) *MockEmbedder {
	return &MockEmbedder{
		dims:    dims,
		vectors: make(map[string][]float32),
		fail:    make(map[string]bool),
	}
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.fail[text] {
		return nil, errors.New("mock embed failure")
	}
	if v, ok := m.vectors[text]; ok {
		return v, nil
	}

	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()
	vec := make([]float32, m.dims)
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}
	return index.Normalize(vec), nil
}

func (m *MockEmbedder) Dimensions() int {
	return m.dims
}

func (m *MockEmbedder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// testConfig returns the default config rooted in a temp dir.
func testConfig(t *testing.T) memory.Config {
	t.Helper()
	cfg := memory.DefaultConfig()
	cfg.RootDir = t.TempDir()
	return cfg
}

func observedLogger() (*zap.Logger, *observer.ObservedLogs) {
	obs, logs := observer.New(zapcore.DebugLevel)
	return zap.New(obs), logs
}

func openStore(t *testing.T, cfg memory.Config, emb memory.Embedder, opts ...memory.Option) *memory.Store {
	t.Helper()
	opts = append([]memory.Option{memory.WithEmbedder(emb)}, opts...)
	s, err := memory.Open(context.Background(), "char_01", cfg, opts...)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

// fakeHistory serves histories from memory.
type fakeHistory struct {
	histories map[string][]core.Message
	order     []string
	failGet   map[string]bool
	listErr   error
}

func (h *fakeHistory) ListHistories(ctx context.Context, scope string) ([]core.HistoryInfo, error) {
	if h.listErr != nil {
		return nil, h.listErr
	}
	infos := make([]core.HistoryInfo, 0, len(h.order))
	for _, id := range h.order {
		infos = append(infos, core.HistoryInfo{ID: id})
	}
	return infos, nil
}

func (h *fakeHistory) GetHistory(ctx context.Context, scope, id string) ([]core.Message, error) {
	if h.failGet[id] {
		return nil, errors.New("unreadable history")
	}
	return h.histories[id], nil
}

// fakeExtractor returns a fixed result and counts calls.
type fakeExtractor struct {
	result extract.Result
	calls  int
}

func (f *fakeExtractor) Extract(ctx context.Context, role core.Role, content, convContext string) extract.Result {
	f.calls++
	return f.result
}

// fakeSummaries records what was added.
type fakeSummaries struct {
	added  []extract.Memory
	closed bool
}

func (f *fakeSummaries) Add(ctx context.Context, role core.Role, memories []extract.Memory) error {
	f.added = append(f.added, memories...)
	return nil
}

func (f *fakeSummaries) Search(ctx context.Context, query string, limit int) ([]extract.Memory, error) {
	if limit > len(f.added) {
		limit = len(f.added)
	}
	return f.added[:limit], nil
}

func (f *fakeSummaries) Close() error {
	f.closed = true
	return nil
}
