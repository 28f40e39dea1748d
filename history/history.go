// Package history stores conversation histories as JSON files, one file per
// history under <root>/<scope>/<id>.json. It is the source a memory.Store
// imports past turns from.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/becomeliminal/nim-memory/core"
	"github.com/becomeliminal/nim-memory/memory"
)

const ext = ".json"

// ErrNotFound is returned for a history id that does not exist.
var ErrNotFound = errors.New("history not found")

// FileSource reads and writes histories on the local filesystem.
type FileSource struct {
	root string
	now  func() time.Time

	// mu serializes read-modify-write cycles of Append.
	mu sync.Mutex
}

var _ memory.HistorySource = (*FileSource)(nil)

// NewFileSource creates a FileSource rooted at root.
func NewFileSource(root string) *FileSource {
	return &FileSource{root: root, now: time.Now}
}

// ListHistories returns the histories of scope ordered by id. A scope
// without histories yields an empty list.
func (f *FileSource) ListHistories(ctx context.Context, scope string) ([]core.HistoryInfo, error) {
	dir, err := f.scopeDir(scope)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list histories: %w", err)
	}

	var infos []core.HistoryInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ext) {
			continue
		}
		infos = append(infos, core.HistoryInfo{ID: strings.TrimSuffix(e.Name(), ext)})
	}
	return infos, nil
}

// GetHistory returns the messages of one history in order.
func (f *FileSource) GetHistory(ctx context.Context, scope, id string) ([]core.Message, error) {
	path, err := f.path(scope, id)
	if err != nil {
		return nil, err
	}
	return readMessages(path)
}

// Create starts an empty history and returns its id.
func (f *FileSource) Create(ctx context.Context, scope string) (string, error) {
	id := uuid.New().String()
	path, err := f.path(scope, id)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create history dir: %w", err)
	}
	if err := writeMessages(path, []core.Message{}); err != nil {
		return "", err
	}
	return id, nil
}

// Append adds messages to an existing history. Messages without a
// timestamp are stamped with the current time.
func (f *FileSource) Append(ctx context.Context, scope, id string, msgs ...core.Message) error {
	path, err := f.path(scope, id)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	existing, err := readMessages(path)
	if err != nil {
		return err
	}
	ts := f.now().Format(time.RFC3339Nano)
	for _, m := range msgs {
		if m.Timestamp == "" {
			m.Timestamp = ts
		}
		existing = append(existing, m)
	}
	return writeMessages(path, existing)
}

func (f *FileSource) scopeDir(scope string) (string, error) {
	s, err := memory.SanitizeScope(scope)
	if err != nil {
		return "", err
	}
	return filepath.Join(f.root, s), nil
}

func (f *FileSource) path(scope, id string) (string, error) {
	dir, err := f.scopeDir(scope)
	if err != nil {
		return "", err
	}
	clean, err := memory.SanitizeScope(id)
	if err != nil {
		return "", fmt.Errorf("history id: %w", err)
	}
	return filepath.Join(dir, clean+ext), nil
}

func readMessages(path string) ([]core.Message, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, filepath.Base(path))
	}
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	var msgs []core.Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, fmt.Errorf("decode history %s: %w", filepath.Base(path), err)
	}
	return msgs, nil
}

func writeMessages(path string, msgs []core.Message) error {
	data, err := json.MarshalIndent(msgs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}
