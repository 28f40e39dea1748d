package memory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/becomeliminal/nim-memory/core"
	"github.com/becomeliminal/nim-memory/memory/extract"
	"github.com/becomeliminal/nim-memory/memory/index"
)

const (
	indexFile    = "index.bin"
	metadataFile = "metadata.json"
	summariesDir = "summaries"
)

// Store is the semantic memory of one scope: an index of turn embeddings and
// the turns themselves, kept in lockstep.
type Store struct {
	scope     string
	dir       string
	cfg       Config
	embedder  Embedder
	accel     index.Accelerator
	history   HistorySource
	extractor Extractor
	summaries SummaryStore
	logger    *zap.Logger

	// mu guards everything below. Embedding runs under it; extraction
	// does not.
	mu        sync.Mutex
	idx       index.Index
	device    index.Device
	records   []Record
	seen      map[recordKey]struct{}
	unsaved   int
	importing bool
}

// Option configures Open.
type Option func(*options)

type options struct {
	embedders   EmbedderFactory
	accelerator index.Accelerator
	history     HistorySource
	extractor   Extractor
	summaries   SummaryFactory
	logger      *zap.Logger
}

// WithEmbedderFactory sets how the embedding model is loaded. Open fails
// with ErrModelUnavailable without one.
func WithEmbedderFactory(f EmbedderFactory) Option {
	return func(o *options) {
		o.embedders = f
	}
}

// WithEmbedder uses an already loaded embedder regardless of device.
func WithEmbedder(e Embedder) Option {
	return func(o *options) {
		o.embedders = func(context.Context, string, index.Device) (Embedder, error) {
			if e == nil {
				return nil, errors.New("nil embedder")
			}
			return e, nil
		}
	}
}

// WithAccelerator sets the accelerator probe. The default reports none.
func WithAccelerator(acc index.Accelerator) Option {
	return func(o *options) {
		o.accelerator = acc
	}
}

// WithHistory sets the source Open imports past conversations from.
func WithHistory(h HistorySource) Option {
	return func(o *options) {
		o.history = h
	}
}

// WithExtractor sets the extractor Remember consults when
// Config.UseMemoryFiltering is on.
func WithExtractor(e Extractor) Option {
	return func(o *options) {
		o.extractor = e
	}
}

// WithSummaries keeps extracted summaries in a store opened by f.
func WithSummaries(f SummaryFactory) Option {
	return func(o *options) {
		o.summaries = f
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		accelerator: index.NoAccelerator{},
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Open loads or creates the store for scopeID under cfg.RootDir, then
// imports any history turns it has not stored yet.
//
// cfg should start from DefaultConfig. Zero RootDir, EmbeddingModel, SearchK
// and MaxContextChars take their defaults; other zero values are kept, so a
// zero SaveInterval disables periodic saves and a zero ContextThreshold
// admits any non-negative similarity.
//
// Only an invalid scope, a missing embedding model or an unusable root
// directory make Open fail. Unreadable index files are logged and replaced
// by an empty index.
func Open(ctx context.Context, scopeID string, cfg Config, opts ...Option) (*Store, error) {
	scope, err := SanitizeScope(scopeID)
	if err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	o := buildOptions(opts)
	logger := o.logger.With(zap.String("scope", scope))

	pref, err := index.ParseDevice(cfg.Device)
	if err != nil {
		logger.Warn("ignoring device setting", zap.Error(err))
		pref = index.DeviceAuto
	}
	device := index.Resolve(pref, o.accelerator, logger)

	if o.embedders == nil {
		return nil, fmt.Errorf("%w: no embedder configured", ErrModelUnavailable)
	}
	embedder, err := o.embedders(ctx, cfg.EmbeddingModel, device)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrModelUnavailable, cfg.EmbeddingModel, err)
	}
	if embedder == nil || embedder.Dimensions() <= 0 {
		return nil, fmt.Errorf("%w: %s has no dimensions", ErrModelUnavailable, cfg.EmbeddingModel)
	}

	dir := filepath.Join(cfg.RootDir, scope)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create memory dir: %w", err)
	}

	s := &Store{
		scope:     scope,
		dir:       dir,
		cfg:       cfg,
		embedder:  embedder,
		accel:     o.accelerator,
		history:   o.history,
		extractor: o.extractor,
		logger:    logger,
		seen:      make(map[recordKey]struct{}),
	}
	s.load(device)

	if o.summaries != nil {
		summaries, err := o.summaries(ctx, filepath.Join(dir, summariesDir), embedder)
		if err != nil {
			logger.Warn("summary store unavailable, extracted summaries will not be kept", zap.Error(err))
		} else {
			s.summaries = summaries
		}
	}

	if s.history != nil {
		if _, err := s.ImportHistory(ctx); err != nil {
			logger.Warn("history import failed", zap.Error(err))
		}
	}

	logger.Info("memory store ready",
		zap.Int("records", len(s.records)),
		zap.String("device", string(s.device)),
	)
	return s, nil
}

// load restores index and records from disk, or starts empty.
func (s *Store) load(device index.Device) {
	idxPath := filepath.Join(s.dir, indexFile)
	metaPath := filepath.Join(s.dir, metadataFile)
	idxExists := fileExists(idxPath)
	metaExists := fileExists(metaPath)

	if !idxExists && !metaExists {
		s.logger.Info("creating new memory index", zap.Int("dim", s.embedder.Dimensions()))
		s.idx, s.device = index.Create(s.embedder.Dimensions(), device, s.accel, s.logger)
		return
	}

	flat, records, err := s.readFiles(idxPath, metaPath, idxExists, metaExists)
	if err != nil {
		s.logger.Warn("failed to load memory index, starting fresh", zap.Error(err))
		s.idx, s.device = index.Create(s.embedder.Dimensions(), device, s.accel, s.logger)
		return
	}

	s.idx, s.device = index.Place(flat, device, s.accel, s.logger)
	s.records = records
	for _, r := range records {
		s.seen[r.key()] = struct{}{}
	}
	s.logger.Info("loaded memory index", zap.Int("records", len(records)))
}

func (s *Store) readFiles(idxPath, metaPath string, idxExists, metaExists bool) (*index.Flat, []Record, error) {
	if !idxExists {
		return nil, nil, fmt.Errorf("%w: %s without %s", ErrIndexCorrupt, metadataFile, indexFile)
	}
	if !metaExists {
		return nil, nil, fmt.Errorf("%w: %s without %s", ErrIndexCorrupt, indexFile, metadataFile)
	}

	flat, err := index.LoadFile(idxPath)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrIndexCorrupt, err)
	}
	records, err := loadRecords(metaPath)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrIndexCorrupt, err)
	}

	if flat.Len() != len(records) {
		return nil, nil, fmt.Errorf("%w: %d vectors but %d records", ErrIndexCorrupt, flat.Len(), len(records))
	}
	if dim := s.embedder.Dimensions(); flat.Dim() != dim {
		return nil, nil, fmt.Errorf("%w: index dimension %d, model dimension %d", ErrIndexCorrupt, flat.Dim(), dim)
	}
	return flat, records, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Add stores one turn. Blank content and turns already stored with the same
// content, role and timestamp are ignored. Embedding and index failures are
// logged and the turn is dropped. Add reports whether the turn was stored.
func (s *Store) Add(ctx context.Context, role core.Role, content, timestamp string) bool {
	if strings.TrimSpace(content) == "" {
		return false
	}
	rec := Record{Role: role, Content: content, Timestamp: timestamp}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[rec.key()]; ok {
		return false
	}
	return s.addLocked(ctx, rec)
}

func (s *Store) addLocked(ctx context.Context, rec Record) bool {
	vec, err := s.embedder.Embed(ctx, rec.Content)
	if err != nil {
		s.logger.Warn("dropping memory", zap.Error(fmt.Errorf("%w: %v", ErrEmbedFailure, err)))
		return false
	}
	if index.IsZero(vec) {
		s.logger.Warn("dropping memory", zap.Error(fmt.Errorf("%w: zero vector", ErrEmbedFailure)))
		return false
	}
	if err := s.idx.Add(index.Normalize(vec)); err != nil {
		s.logger.Warn("dropping memory", zap.Error(fmt.Errorf("%w: %v", ErrIndexWrite, err)))
		return false
	}

	s.records = append(s.records, rec)
	s.seen[rec.key()] = struct{}{}
	s.unsaved++
	s.logger.Debug("stored memory", zap.String("role", string(rec.Role)), zap.Int("ordinal", len(s.records)-1))

	if !s.importing && s.cfg.SaveInterval > 0 && s.unsaved >= s.cfg.SaveInterval {
		_ = s.saveLocked()
	}
	return true
}

// Remember stores a turn the way the agent loop records conversations. With
// filtering enabled and an extractor configured, the turn is first scored:
// a parsed result below MinImportance is skipped, a parsed result at or above
// it is stored together with its summaries, and a defaulted result is stored
// as is. Without filtering Remember is Add.
func (s *Store) Remember(ctx context.Context, role core.Role, content, timestamp, convContext string) bool {
	if !s.cfg.UseMemoryFiltering || s.extractor == nil {
		return s.Add(ctx, role, content, timestamp)
	}
	if strings.TrimSpace(content) == "" || s.Contains(role, content, timestamp) {
		return false
	}

	res := s.extractor.Extract(ctx, role, content, convContext)
	if res.Parsed() && res.Importance < s.cfg.MinImportance {
		s.logger.Debug("skipping unimportant turn",
			zap.Float64("importance", res.Importance),
			zap.Float64("min_importance", s.cfg.MinImportance),
		)
		return false
	}
	if !res.Parsed() {
		s.logger.Info("importance extraction defaulted, storing turn unfiltered", zap.Error(res.Err))
	}

	added := s.Add(ctx, role, content, timestamp)
	if added && res.Parsed() && len(res.Memories) > 0 && s.summaries != nil {
		if err := s.summaries.Add(ctx, role, res.Memories); err != nil {
			s.logger.Warn("failed to store extracted summaries", zap.Error(err))
		}
	}
	return added
}

// Contains reports whether the exact turn is already stored.
func (s *Store) Contains(role core.Role, content, timestamp string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[recordKey{content: content, role: role, timestamp: timestamp}]
	return ok
}

// Save writes the index and records to disk. An empty store is not written.
// A failed save is logged and leaves the store usable; the error is returned
// for callers that want to report it.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	if len(s.records) == 0 {
		return nil
	}

	if err := index.Persist(filepath.Join(s.dir, indexFile), s.idx, s.logger); err != nil {
		err = fmt.Errorf("%w: index: %v", ErrPersist, err)
		s.logger.Error("failed to save memory index", zap.Error(err))
		return err
	}
	if err := saveRecords(filepath.Join(s.dir, metadataFile), s.records); err != nil {
		err = fmt.Errorf("%w: records: %v", ErrPersist, err)
		s.logger.Error("failed to save memory records", zap.Error(err))
		return err
	}

	s.unsaved = 0
	s.logger.Info("saved memory index", zap.Int("records", len(s.records)))
	return nil
}

// SearchSummaries returns extracted summaries related to query. It returns
// nothing when no summary store is configured.
func (s *Store) SearchSummaries(ctx context.Context, query string, limit int) ([]extract.Memory, error) {
	if s.summaries == nil || strings.TrimSpace(query) == "" || limit <= 0 {
		return nil, nil
	}
	return s.summaries.Search(ctx, query, limit)
}

// Close saves the store and releases the summary store and the embedder.
func (s *Store) Close() error {
	errs := []error{s.Save()}
	if s.summaries != nil {
		errs = append(errs, s.summaries.Close())
	}
	if c, ok := s.embedder.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// Len returns the number of stored turns.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Records returns a copy of the stored turns in insertion order.
func (s *Store) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// Device returns where the index lives.
func (s *Store) Device() index.Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.device
}

// Scope returns the sanitized scope id.
func (s *Store) Scope() string { return s.scope }

// Dir returns the directory the store persists to.
func (s *Store) Dir() string { return s.dir }
