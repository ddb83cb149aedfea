package checkpoint

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"sync"

	"github.com/natefinch/atomic"
)

// Level identifies one hierarchy depth in the cursor store. The set of
// levels in use is small and fixed, one per grouping column.
type Level string

// LevelFor returns the level identifier for a zero-based hierarchy depth.
func LevelFor(depth int) Level {
	return Level("level" + strconv.Itoa(depth))
}

// Store holds one cursor string per hierarchy level. An empty cursor means
// no progress yet at that level. Cursors survive process restarts; the
// builder relies on write sequencing, not store-level atomicity, for
// correctness.
type Store interface {
	Cursor(level Level) (string, error)
	SetCursor(level Level, value string) error
}

// FileStore persists cursors as a JSON object, rewritten atomically on every
// update so a crash never leaves a truncated file.
type FileStore struct {
	path string

	mu      sync.Mutex
	cursors map[Level]string
}

// OpenFile loads the cursor file at path, creating an empty store if the
// file does not exist yet.
func OpenFile(path string) (*FileStore, error) {
	s := &FileStore{path: path, cursors: make(map[Level]string)}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cursor file: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &s.cursors); err != nil {
			return nil, fmt.Errorf("decode cursor file %s: %w", path, err)
		}
	}
	return s, nil
}

func (s *FileStore) Cursor(level Level) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursors[level], nil
}

func (s *FileStore) SetCursor(level Level, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.cursors[level]
	s.cursors[level] = value

	data, err := json.MarshalIndent(s.cursors, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cursors: %w", err)
	}
	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		if had {
			s.cursors[level] = prev
		} else {
			delete(s.cursors, level)
		}
		return fmt.Errorf("write cursor file: %w", err)
	}
	return nil
}

// Snapshot returns a copy of all persisted cursors.
func (s *FileStore) Snapshot() map[Level]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[Level]string, len(s.cursors))
	for k, v := range s.cursors {
		out[k] = v
	}
	return out
}

// Reset removes the cursor file at path. Missing files are not an error.
func Reset(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove cursor file: %w", err)
	}
	return nil
}

// MemStore is an in-memory Store for tests.
type MemStore struct {
	mu      sync.Mutex
	cursors map[Level]string
}

func NewMemStore() *MemStore {
	return &MemStore{cursors: make(map[Level]string)}
}

func (s *MemStore) Cursor(level Level) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursors[level], nil
}

func (s *MemStore) SetCursor(level Level, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors[level] = value
	return nil
}
