package memory_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/becomeliminal/nim-memory/core"
	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/memory/embedder/hash"
	"github.com/becomeliminal/nim-memory/memory/extract"
	"github.com/becomeliminal/nim-memory/memory/index"
)

func TestSanitizeScope(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "char_01", want: "char_01"},
		{in: "  Alice-2  ", want: "Alice-2"},
		{in: "../../etc", wantErr: true},
		{in: "a/b", wantErr: true},
		{in: "has space", wantErr: true},
		{in: "émile", wantErr: true},
		{in: "", wantErr: true},
		{in: "   ", wantErr: true},
	}
	for _, tt := range tests {
		got, err := memory.SanitizeScope(tt.in)
		if tt.wantErr {
			if !errors.Is(err, memory.ErrInvalidScope) {
				t.Errorf("SanitizeScope(%q) err = %v, want ErrInvalidScope", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("SanitizeScope(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestOpen_RejectsTraversal(t *testing.T) {
	cfg := testConfig(t)
	_, err := memory.Open(context.Background(), "../../etc", cfg, memory.WithEmbedder(NewMockEmbedder(8)))
	if !errors.Is(err, memory.ErrInvalidScope) {
		t.Fatalf("err = %v, want ErrInvalidScope", err)
	}
	entries, _ := os.ReadDir(cfg.RootDir)
	if len(entries) != 0 {
		t.Errorf("root dir has %d entries after rejected open", len(entries))
	}
}

func TestOpen_ModelUnavailable(t *testing.T) {
	cfg := testConfig(t)

	_, err := memory.Open(context.Background(), "char_01", cfg)
	if !errors.Is(err, memory.ErrModelUnavailable) {
		t.Errorf("no factory: err = %v, want ErrModelUnavailable", err)
	}

	failing := func(context.Context, string, index.Device) (memory.Embedder, error) {
		return nil, errors.New("model file missing")
	}
	_, err = memory.Open(context.Background(), "char_01", cfg, memory.WithEmbedderFactory(failing))
	if !errors.Is(err, memory.ErrModelUnavailable) {
		t.Errorf("failing factory: err = %v, want ErrModelUnavailable", err)
	}
}

func TestOpen_FactoryGetsModelAndDevice(t *testing.T) {
	cfg := testConfig(t)
	cfg.EmbeddingModel = "test-model"
	cfg.Device = "cpu"

	var gotModel string
	var gotDevice index.Device
	factory := func(_ context.Context, model string, dev index.Device) (memory.Embedder, error) {
		gotModel, gotDevice = model, dev
		return NewMockEmbedder(8), nil
	}
	s, err := memory.Open(context.Background(), "char_01", cfg, memory.WithEmbedderFactory(factory))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if gotModel != "test-model" || gotDevice != index.DeviceCPU {
		t.Errorf("factory got (%q, %q)", gotModel, gotDevice)
	}
	if s.Dir() != filepath.Join(cfg.RootDir, "char_01") || s.Scope() != "char_01" {
		t.Errorf("dir = %q, scope = %q", s.Dir(), s.Scope())
	}
}

func TestStore_AddDeduplicates(t *testing.T) {
	ctx := context.Background()
	emb := NewMockEmbedder(8)
	s := openStore(t, testConfig(t), emb)

	if !s.Add(ctx, core.RoleHuman, "I like tea", "2024-01-01T10:00:00") {
		t.Fatal("first add was not stored")
	}
	calls := emb.Calls()
	if s.Add(ctx, core.RoleHuman, "I like tea", "2024-01-01T10:00:00") {
		t.Error("duplicate add was stored")
	}
	if emb.Calls() != calls {
		t.Error("duplicate add embedded the text again")
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d after duplicate, want 1", s.Len())
	}

	// Same content with another role or timestamp is a different turn.
	if !s.Add(ctx, core.RoleAssistant, "I like tea", "2024-01-01T10:00:00") {
		t.Error("add with different role was not stored")
	}
	if !s.Add(ctx, core.RoleHuman, "I like tea", "2024-01-02T10:00:00") {
		t.Error("add with different timestamp was not stored")
	}
	if s.Len() != 3 {
		t.Errorf("Len = %d, want 3", s.Len())
	}
}

func TestStore_AddIgnoresBlankContent(t *testing.T) {
	s := openStore(t, testConfig(t), NewMockEmbedder(8))
	for _, content := range []string{"", "   ", "\n\t"} {
		if s.Add(context.Background(), core.RoleHuman, content, "") {
			t.Errorf("blank content %q was stored", content)
		}
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0", s.Len())
	}
}

func TestStore_EmbedFailureDropsTurn(t *testing.T) {
	logger, logs := observedLogger()
	emb := NewMockEmbedder(8)
	emb.fail["boom"] = true
	s := openStore(t, testConfig(t), emb, memory.WithLogger(logger))

	if s.Add(context.Background(), core.RoleHuman, "boom", "") {
		t.Fatal("turn with failing embedding was stored")
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0", s.Len())
	}
	if logs.FilterMessage("dropping memory").Len() != 1 {
		t.Error("embedding failure was not logged")
	}

	if !s.Add(context.Background(), core.RoleHuman, "fine", "") {
		t.Error("store unusable after embedding failure")
	}
}

func TestStore_ZeroEmbeddingDropsTurn(t *testing.T) {
	ctx := context.Background()

	t.Run("mock", func(t *testing.T) {
		logger, logs := observedLogger()
		emb := NewMockEmbedder(8)
		emb.vectors["silence"] = make([]float32, 8)
		s := openStore(t, testConfig(t), emb, memory.WithLogger(logger))

		if s.Add(ctx, core.RoleHuman, "silence", "") {
			t.Fatal("turn with zero embedding was stored")
		}
		if s.Len() != 0 {
			t.Errorf("Len = %d, want 0", s.Len())
		}
		if logs.FilterMessage("dropping memory").Len() != 1 {
			t.Error("zero embedding was not logged")
		}
	})

	t.Run("hash embedder", func(t *testing.T) {
		s := openStore(t, testConfig(t), hash.New(64))
		if s.Add(ctx, core.RoleHuman, "😀😀😀", "") {
			t.Error("emoji-only turn was stored")
		}
		if !s.Add(ctx, core.RoleHuman, "I live in Lisbon", "") {
			t.Fatal("word turn was not stored")
		}
		if s.Len() != 1 {
			t.Errorf("Len = %d, want 1", s.Len())
		}
	})
}

func TestStore_ConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.SaveInterval = 7
	emb := NewMockEmbedder(8)
	s := openStore(t, cfg, emb)

	const (
		writers = 8
		shared  = 20
		own     = 5
	)
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < shared; i++ {
				s.Add(ctx, core.RoleHuman, fmt.Sprintf("shared turn %d", i), "t0")
				if i%5 == 0 {
					s.SearchRelevantContext(ctx, fmt.Sprintf("shared turn %d", i))
				}
			}
			for i := 0; i < own; i++ {
				s.Add(ctx, core.RoleAssistant, fmt.Sprintf("writer %d turn %d", w, i), "t0")
			}
			if err := s.Save(); err != nil {
				t.Errorf("Save: %v", err)
			}
		}(w)
	}
	wg.Wait()

	want := shared + writers*own
	if s.Len() != want {
		t.Fatalf("Len = %d, want %d", s.Len(), want)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	logger, logs := observedLogger()
	reopened := openStore(t, cfg, emb, memory.WithLogger(logger))
	if reopened.Len() != want {
		t.Errorf("reopened Len = %d, want %d", reopened.Len(), want)
	}
	if logs.FilterMessage("failed to load memory index, starting fresh").Len() != 0 {
		t.Error("index and records diverged under concurrent writes")
	}
	hits, err := reopened.Search(ctx, "writer 3 turn 4", want)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != want {
		t.Fatalf("reopened search: %d hits, want %d", len(hits), want)
	}
	if hits[0].Record.Content != "writer 3 turn 4" {
		t.Errorf("nearest hit = %+v", hits[0].Record)
	}
}

func TestOpen_ZeroConfigFillsDefaults(t *testing.T) {
	ctx := context.Background()
	s, err := memory.Open(ctx, "char_01", memory.Config{RootDir: t.TempDir()}, memory.WithEmbedder(NewMockEmbedder(8)))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	s.Add(ctx, core.RoleHuman, "I keep bees on the roof", "")
	got := s.SearchRelevantContext(ctx, "I keep bees on the roof")
	if got != memory.ContextHeader+"User: I keep bees on the roof" {
		t.Errorf("context = %q", got)
	}
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	emb := NewMockEmbedder(16)
	s := openStore(t, cfg, emb)

	s.Add(ctx, core.RoleHuman, "I adopted a cat named Miso", "t1")
	s.Add(ctx, core.RoleAssistant, "Miso is a lovely name", "t2")
	s.Add(ctx, core.RoleHuman, "I work night shifts as a nurse", "t3")
	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	before, err := s.Search(ctx, "tell me about my cat", 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	reopened := openStore(t, cfg, emb)
	if !reflect.DeepEqual(reopened.Records(), s.Records()) {
		t.Errorf("records after reload = %+v, want %+v", reopened.Records(), s.Records())
	}
	after, err := reopened.Search(ctx, "tell me about my cat", 3)
	if err != nil {
		t.Fatalf("Search after reload: %v", err)
	}
	if !reflect.DeepEqual(after, before) {
		t.Errorf("search after reload = %+v, want %+v", after, before)
	}

	// Loaded turns still deduplicate.
	if reopened.Add(ctx, core.RoleHuman, "I adopted a cat named Miso", "t1") {
		t.Error("duplicate of a loaded turn was stored")
	}
}

func TestStore_SaveEmptyWritesNothing(t *testing.T) {
	s := openStore(t, testConfig(t), NewMockEmbedder(8))
	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(s.Dir(), "index.bin")); !os.IsNotExist(err) {
		t.Errorf("index.bin written for empty store: %v", err)
	}
}

func TestStore_PeriodicSave(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.SaveInterval = 2
	s := openStore(t, cfg, NewMockEmbedder(8))
	indexPath := filepath.Join(s.Dir(), "index.bin")

	s.Add(ctx, core.RoleHuman, "one", "")
	if _, err := os.Stat(indexPath); !os.IsNotExist(err) {
		t.Fatal("saved before the interval was reached")
	}

	s.Add(ctx, core.RoleHuman, "two", "")
	if _, err := os.Stat(indexPath); err != nil {
		t.Fatalf("not saved after the interval: %v", err)
	}

	s.Add(ctx, core.RoleHuman, "three", "")
	if got := openStore(t, cfg, NewMockEmbedder(8)).Len(); got != 2 {
		t.Errorf("reloaded %d records, want the 2 saved ones", got)
	}
}

func TestStore_PeriodicSaveDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.SaveInterval = 0
	s := openStore(t, cfg, NewMockEmbedder(8))
	for _, c := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k"} {
		s.Add(context.Background(), core.RoleHuman, c, "")
	}
	if _, err := os.Stat(filepath.Join(s.Dir(), "index.bin")); !os.IsNotExist(err) {
		t.Error("saved with periodic saves disabled")
	}
}

func TestOpen_RecoversFromBadFiles(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, cfg memory.Config, dir string)
	}{
		{
			name: "metadata without index",
			setup: func(t *testing.T, cfg memory.Config, dir string) {
				writeFile(t, filepath.Join(dir, "metadata.json"), `[{"role":"human","content":"x","timestamp":""}]`)
			},
		},
		{
			name: "index without metadata",
			setup: func(t *testing.T, cfg memory.Config, dir string) {
				s := openStore(t, cfg, NewMockEmbedder(8))
				s.Add(context.Background(), core.RoleHuman, "x", "")
				s.Save()
				os.Remove(filepath.Join(dir, "metadata.json"))
			},
		},
		{
			name: "garbage index",
			setup: func(t *testing.T, cfg memory.Config, dir string) {
				writeFile(t, filepath.Join(dir, "index.bin"), "not an index")
				writeFile(t, filepath.Join(dir, "metadata.json"), `[]`)
			},
		},
		{
			name: "garbage metadata",
			setup: func(t *testing.T, cfg memory.Config, dir string) {
				s := openStore(t, cfg, NewMockEmbedder(8))
				s.Add(context.Background(), core.RoleHuman, "x", "")
				s.Save()
				writeFile(t, filepath.Join(dir, "metadata.json"), `{"broken":`)
			},
		},
		{
			name: "count mismatch",
			setup: func(t *testing.T, cfg memory.Config, dir string) {
				s := openStore(t, cfg, NewMockEmbedder(8))
				s.Add(context.Background(), core.RoleHuman, "x", "")
				s.Add(context.Background(), core.RoleHuman, "y", "")
				s.Save()
				writeFile(t, filepath.Join(dir, "metadata.json"), `[{"role":"human","content":"x","timestamp":""}]`)
			},
		},
		{
			name: "dimension mismatch",
			setup: func(t *testing.T, cfg memory.Config, dir string) {
				s := openStore(t, cfg, NewMockEmbedder(4))
				s.Add(context.Background(), core.RoleHuman, "x", "")
				s.Save()
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			dir := filepath.Join(cfg.RootDir, "char_01")
			if err := os.MkdirAll(dir, 0o755); err != nil {
				t.Fatal(err)
			}
			tt.setup(t, cfg, dir)

			logger, logs := observedLogger()
			s := openStore(t, cfg, NewMockEmbedder(8), memory.WithLogger(logger))

			if s.Len() != 0 {
				t.Errorf("Len = %d, want fresh store", s.Len())
			}
			if logs.FilterMessage("failed to load memory index, starting fresh").Len() != 1 {
				t.Error("recovery was not logged")
			}
			if !s.Add(context.Background(), core.RoleHuman, "after recovery", "") {
				t.Error("recovered store rejected an add")
			}
		})
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestStore_ImportHistory(t *testing.T) {
	cfg := testConfig(t)
	emb := NewMockEmbedder(8)
	history := &fakeHistory{
		order: []string{"a", "b", "c"},
		histories: map[string][]core.Message{
			"a": {
				{Role: core.RoleHuman, Content: "hi there", Timestamp: "1"},
				{Role: core.RoleAssistant, Content: "hello!", Timestamp: "2"},
				{Role: "system", Content: "be nice", Timestamp: "3"},
				{Role: core.RoleHuman, Content: "   ", Timestamp: "4"},
			},
			"b": {
				{Role: core.RoleHuman, Content: "hi there", Timestamp: "1"},
				{Role: core.RoleAssistant, Content: "hello!", Timestamp: "5"},
			},
		},
		failGet: map[string]bool{"c": true},
	}
	logger, logs := observedLogger()

	s := openStore(t, cfg, emb, memory.WithHistory(history), memory.WithLogger(logger))

	want := []memory.Record{
		{Role: core.RoleHuman, Content: "hi there", Timestamp: "1"},
		{Role: core.RoleAssistant, Content: "hello!", Timestamp: "2"},
		{Role: core.RoleAssistant, Content: "hello!", Timestamp: "5"},
	}
	if got := s.Records(); !reflect.DeepEqual(got, want) {
		t.Errorf("records = %+v, want %+v", got, want)
	}
	if logs.FilterMessage("skipping unreadable history").Len() != 1 {
		t.Error("unreadable history was not logged")
	}

	// The import was persisted, and a second open adds nothing.
	calls := emb.Calls()
	again := openStore(t, cfg, emb, memory.WithHistory(history))
	if again.Len() != 3 {
		t.Errorf("Len after reopen = %d, want 3", again.Len())
	}
	if emb.Calls() != calls {
		t.Errorf("reopen embedded %d turns, want 0", emb.Calls()-calls)
	}
}

func TestStore_ImportSavesOnce(t *testing.T) {
	cfg := testConfig(t)
	cfg.SaveInterval = 1
	msgs := []core.Message{
		{Role: core.RoleHuman, Content: "one"},
		{Role: core.RoleAssistant, Content: "two"},
		{Role: core.RoleHuman, Content: "three"},
	}
	logger, logs := observedLogger()
	s := openStore(t, cfg, NewMockEmbedder(8), memory.WithLogger(logger))

	if added := s.Import(context.Background(), msgs); added != 3 {
		t.Fatalf("Import added %d, want 3", added)
	}
	if n := logs.FilterMessage("saved memory index").Len(); n != 1 {
		t.Errorf("saved %d times during import, want 1", n)
	}
	if added := s.Import(context.Background(), msgs); added != 0 {
		t.Errorf("second Import added %d, want 0", added)
	}
}

func TestStore_HistoryListFailureIsNotFatal(t *testing.T) {
	logger, logs := observedLogger()
	history := &fakeHistory{listErr: errors.New("disk on fire")}
	s := openStore(t, testConfig(t), NewMockEmbedder(8), memory.WithHistory(history), memory.WithLogger(logger))
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0", s.Len())
	}
	if logs.FilterMessage("history import failed").Len() != 1 {
		t.Error("list failure was not logged")
	}
}

func parsedResult(importance float64, summaries ...string) extract.Result {
	x := extract.Extraction{Importance: importance, Memories: []extract.Memory{}}
	for _, s := range summaries {
		x.Memories = append(x.Memories, extract.Memory{Summary: s})
	}
	return extract.Result{Extraction: x, Status: extract.StatusParsed}
}

func TestStore_Remember(t *testing.T) {
	tests := []struct {
		name          string
		filtering     bool
		result        extract.Result
		wantStored    bool
		wantCalls     int
		wantSummaries int
	}{
		{
			name:       "filtering off",
			filtering:  false,
			result:     parsedResult(0),
			wantStored: true,
			wantCalls:  0,
		},
		{
			name:       "below threshold",
			filtering:  true,
			result:     parsedResult(0.2, "small talk"),
			wantStored: false,
			wantCalls:  1,
		},
		{
			name:          "at threshold",
			filtering:     true,
			result:        parsedResult(0.5, "has a cat", "cat is named Miso"),
			wantStored:    true,
			wantCalls:     1,
			wantSummaries: 2,
		},
		{
			name:       "defaulted",
			filtering:  true,
			result:     extract.Result{Extraction: extract.Extraction{Memories: []extract.Memory{}}, Err: extract.ErrNoJSON},
			wantStored: true,
			wantCalls:  1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.UseMemoryFiltering = tt.filtering
			ex := &fakeExtractor{result: tt.result}
			summaries := &fakeSummaries{}
			factory := func(context.Context, string, memory.Embedder) (memory.SummaryStore, error) {
				return summaries, nil
			}
			s := openStore(t, cfg, NewMockEmbedder(8), memory.WithExtractor(ex), memory.WithSummaries(factory))

			got := s.Remember(context.Background(), core.RoleHuman, "My cat is called Miso", "t1", "")
			if got != tt.wantStored || (s.Len() == 1) != tt.wantStored {
				t.Errorf("Remember = %v, Len = %d; want stored %v", got, s.Len(), tt.wantStored)
			}
			if ex.calls != tt.wantCalls {
				t.Errorf("extractor called %d times, want %d", ex.calls, tt.wantCalls)
			}
			if len(summaries.added) != tt.wantSummaries {
				t.Errorf("stored %d summaries, want %d", len(summaries.added), tt.wantSummaries)
			}
		})
	}
}

func TestStore_RememberSkipsExtractionForDuplicates(t *testing.T) {
	cfg := testConfig(t)
	cfg.UseMemoryFiltering = true
	ex := &fakeExtractor{result: parsedResult(0.9)}
	s := openStore(t, cfg, NewMockEmbedder(8), memory.WithExtractor(ex))

	s.Remember(context.Background(), core.RoleHuman, "same", "t", "")
	s.Remember(context.Background(), core.RoleHuman, "same", "t", "")
	if ex.calls != 1 {
		t.Errorf("extractor called %d times, want 1", ex.calls)
	}
}

func TestStore_CloseSavesAndReleases(t *testing.T) {
	summaries := &fakeSummaries{added: []extract.Memory{{Summary: "likes tea"}}}
	factory := func(context.Context, string, memory.Embedder) (memory.SummaryStore, error) {
		return summaries, nil
	}
	s := openStore(t, testConfig(t), NewMockEmbedder(8), memory.WithSummaries(factory))

	found, err := s.SearchSummaries(context.Background(), "tea", 5)
	if err != nil || len(found) != 1 {
		t.Errorf("SearchSummaries = %v, %v", found, err)
	}

	s.Add(context.Background(), core.RoleHuman, "unsaved turn", "")
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(filepath.Join(s.Dir(), "metadata.json")); err != nil {
		t.Errorf("Close did not save: %v", err)
	}
	if !summaries.closed {
		t.Error("summary store not closed")
	}
}

// deviceIndex stands in for an accelerator-resident index.
type deviceIndex struct {
	*index.Flat
}

func (d *deviceIndex) ToCPU() (*index.Flat, error) {
	return d.Flat.Clone(), nil
}

type fakeAccelerator struct {
	failAlloc bool
}

func (f *fakeAccelerator) Name() string    { return "fake" }
func (f *fakeAccelerator) Available() bool { return true }

func (f *fakeAccelerator) NewIndex(dim int) (index.Index, error) {
	if f.failAlloc {
		return nil, errors.New("out of device memory")
	}
	return &deviceIndex{Flat: index.NewFlat(dim)}, nil
}

func (f *fakeAccelerator) Upload(fl *index.Flat) (index.Index, error) {
	return &deviceIndex{Flat: fl}, nil
}

func TestStore_AcceleratorIndex(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	emb := NewMockEmbedder(8)

	s := openStore(t, cfg, emb, memory.WithAccelerator(&fakeAccelerator{}))
	if s.Device() != index.DeviceAccelerator {
		t.Fatalf("Device = %q, want accelerator", s.Device())
	}
	s.Add(ctx, core.RoleHuman, "stored on the device", "")
	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	cpu := openStore(t, cfg, emb)
	if cpu.Device() != index.DeviceCPU || cpu.Len() != 1 {
		t.Errorf("reopened on CPU: device %q, Len %d", cpu.Device(), cpu.Len())
	}
}

func TestStore_AcceleratorAllocationFailure(t *testing.T) {
	logger, logs := observedLogger()
	cfg := testConfig(t)
	cfg.Device = "accelerator"

	s := openStore(t, cfg, NewMockEmbedder(8),
		memory.WithAccelerator(&fakeAccelerator{failAlloc: true}),
		memory.WithLogger(logger),
	)
	if s.Device() != index.DeviceCPU {
		t.Errorf("Device = %q, want cpu", s.Device())
	}
	if logs.FilterMessage("failed to allocate accelerator index, falling back to CPU").Len() != 1 {
		t.Error("allocation failure was not logged")
	}
	if !s.Add(context.Background(), core.RoleHuman, "still works", "") {
		t.Error("add failed after fallback")
	}
}
