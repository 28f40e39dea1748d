package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/becomeliminal/nim-memory/core"
)

// Registry is the Manager implementation. It opens one Store per scope the
// first time the scope is used and keeps it open until Close.
type Registry struct {
	cfg    Config
	opts   []Option
	logger *zap.Logger
	now    func() time.Time

	mu     sync.Mutex
	stores map[string]*Store
	closed bool
}

var _ Manager = (*Registry)(nil)

// ErrRegistryClosed is returned by a Registry after Close.
var ErrRegistryClosed = errors.New("memory registry closed")

// NewRegistry creates a Registry that opens stores with cfg and opts.
func NewRegistry(cfg Config, opts ...Option) *Registry {
	return &Registry{
		cfg:    cfg,
		opts:   opts,
		logger: buildOptions(opts).logger,
		now:    time.Now,
		stores: make(map[string]*Store),
	}
}

// Store returns the open store for scope, opening it on first use.
func (r *Registry) Store(ctx context.Context, scope string) (*Store, error) {
	key, err := SanitizeScope(scope)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRegistryClosed
	}
	if s, ok := r.stores[key]; ok {
		return s, nil
	}

	s, err := Open(ctx, key, r.cfg, r.opts...)
	if err != nil {
		return nil, err
	}
	r.stores[key] = s
	return s, nil
}

// Retrieve returns the context block for the user's message.
func (r *Registry) Retrieve(ctx context.Context, scope string, userMessage string) (string, error) {
	s, err := r.Store(ctx, scope)
	if err != nil {
		return "", err
	}

	out := s.SearchRelevantContext(ctx, userMessage)
	r.logger.Debug("retrieved memory context",
		zap.String("scope", s.Scope()),
		zap.Bool("found", out != ""),
	)
	return out, nil
}

// RecordConversation stores the user's message and the assistant's reply
// as two turns stamped with the current time. The user's message is the
// extraction context for the reply.
func (r *Registry) RecordConversation(ctx context.Context, scope string, userMessage string, assistantResponse string) error {
	s, err := r.Store(ctx, scope)
	if err != nil {
		return err
	}

	ts := r.now().UTC().Format(time.RFC3339Nano)
	s.Remember(ctx, core.RoleHuman, userMessage, ts, "")
	s.Remember(ctx, core.RoleAssistant, assistantResponse, ts, userMessage)
	return nil
}

// Close saves and closes every open store. The Registry cannot be used
// afterwards.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error
	for _, s := range r.stores {
		errs = append(errs, s.Close())
	}
	r.stores = nil
	return errors.Join(errs...)
}
