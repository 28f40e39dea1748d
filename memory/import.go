package memory

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/becomeliminal/nim-memory/core"
)

// ImportHistory adds every conversational turn of the configured history
// source that is not stored yet. It returns how many turns were added. A
// history that cannot be read is logged and skipped.
func (s *Store) ImportHistory(ctx context.Context) (int, error) {
	if s.history == nil {
		return 0, nil
	}

	infos, err := s.history.ListHistories(ctx, s.scope)
	if err != nil {
		return 0, fmt.Errorf("list histories: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.importing = true
	defer func() { s.importing = false }()

	added := 0
	for _, info := range infos {
		if ctx.Err() != nil {
			break
		}
		msgs, err := s.history.GetHistory(ctx, s.scope, info.ID)
		if err != nil {
			s.logger.Warn("skipping unreadable history", zap.String("history", info.ID), zap.Error(err))
			continue
		}
		added += s.importLocked(ctx, msgs)
	}

	s.finishImport(added)
	return added, ctx.Err()
}

// Import adds the conversational turns of msgs that are not stored yet and
// saves once at the end. It returns how many turns were added.
func (s *Store) Import(ctx context.Context, msgs []core.Message) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.importing = true
	defer func() { s.importing = false }()

	added := s.importLocked(ctx, msgs)
	s.finishImport(added)
	return added
}

func (s *Store) importLocked(ctx context.Context, msgs []core.Message) int {
	added := 0
	for _, m := range msgs {
		if !m.Role.Conversational() || strings.TrimSpace(m.Content) == "" {
			continue
		}
		rec := Record{Role: m.Role, Content: m.Content, Timestamp: m.Timestamp}
		if _, ok := s.seen[rec.key()]; ok {
			continue
		}
		if s.addLocked(ctx, rec) {
			added++
		}
	}
	return added
}

func (s *Store) finishImport(added int) {
	if added == 0 {
		return
	}
	s.logger.Info("imported history", zap.Int("added", added), zap.Int("records", len(s.records)))
	_ = s.saveLocked()
}
