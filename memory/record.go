package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/becomeliminal/nim-memory/core"
)

// Record is one stored conversation turn. Record i of a Store belongs to
// vector i of its index.
type Record struct {
	Role      core.Role `json:"role"`
	Content   string    `json:"content"`
	Timestamp string    `json:"timestamp"`
}

// Format renders the record the way it appears in assembled context,
// e.g. "User: I live in Lisbon".
func (r Record) Format() string {
	return r.Role.Label() + ": " + r.Content
}

// recordKey is the deduplication identity of a record.
type recordKey struct {
	content   string
	role      core.Role
	timestamp string
}

func (r Record) key() recordKey {
	return recordKey{content: r.Content, role: r.Role, timestamp: r.Timestamp}
}

// loadRecords reads a metadata file written by saveRecords.
func loadRecords(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return records, nil
}

// saveRecords writes records as an indented JSON array, replacing path
// atomically.
func saveRecords(path string, records []Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
