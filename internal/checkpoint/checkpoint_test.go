package checkpoint

import (
	"path/filepath"
	"testing"
)

func TestLevelFor(t *testing.T) {
	if got := LevelFor(0); got != "level0" {
		t.Errorf("LevelFor(0) = %q", got)
	}
	if got := LevelFor(1); got != "level1" {
		t.Errorf("LevelFor(1) = %q", got)
	}
}

func TestFileStore_EmptyByDefault(t *testing.T) {
	s, err := OpenFile(filepath.Join(t.TempDir(), "cursors.json"))
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	got, err := s.Cursor(LevelFor(0))
	if err != nil {
		t.Fatalf("Cursor: %v", err)
	}
	if got != "" {
		t.Errorf("fresh cursor = %q, want empty", got)
	}
}

func TestFileStore_DurableAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cursors.json")

	s, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if err := s.SetCursor(LevelFor(0), "Bronx"); err != nil {
		t.Fatalf("SetCursor: %v", err)
	}
	if err := s.SetCursor(LevelFor(1), "A"); err != nil {
		t.Fatalf("SetCursor: %v", err)
	}

	// Simulate a process restart.
	reopened, err := OpenFile(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got, _ := reopened.Cursor(LevelFor(0)); got != "Bronx" {
		t.Errorf("level0 = %q, want Bronx", got)
	}
	if got, _ := reopened.Cursor(LevelFor(1)); got != "A" {
		t.Errorf("level1 = %q, want A", got)
	}
}

func TestFileStore_ResetToEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cursors.json")
	s, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if err := s.SetCursor(LevelFor(0), "Queens"); err != nil {
		t.Fatalf("SetCursor: %v", err)
	}
	if err := s.SetCursor(LevelFor(0), ""); err != nil {
		t.Fatalf("SetCursor reset: %v", err)
	}

	reopened, err := OpenFile(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got, _ := reopened.Cursor(LevelFor(0)); got != "" {
		t.Errorf("level0 after reset = %q, want empty", got)
	}
}

func TestReset_RemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cursors.json")
	s, _ := OpenFile(path)
	if err := s.SetCursor(LevelFor(0), "Bronx"); err != nil {
		t.Fatalf("SetCursor: %v", err)
	}

	if err := Reset(path); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	// Resetting a missing file is fine.
	if err := Reset(path); err != nil {
		t.Fatalf("Reset missing: %v", err)
	}

	reopened, err := OpenFile(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got, _ := reopened.Cursor(LevelFor(0)); got != "" {
		t.Errorf("cursor after reset = %q, want empty", got)
	}
}
