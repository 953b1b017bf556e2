package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// newTestStore creates a new Store backed by a temporary database file.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})

	return s
}

func TestNew_CreatesFile(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "capture.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("database file missing: %v", err)
	}
	if s.Path() != dbPath {
		t.Errorf("Path() = %q, want %q", s.Path(), dbPath)
	}
}

func TestNew_BadPath(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "missing", "dir", "test.db")
	if _, err := New(dbPath); err == nil {
		t.Error("New() expected error for a path in a missing directory")
	}
}

func TestSchema(t *testing.T) {
	s := newTestStore(t)

	tests := []struct {
		kind string
		name string
	}{
		{"table", "sessions"},
		{"table", "stills"},
		{"index", "idx_sessions_started_at"},
		{"index", "idx_sessions_status"},
		{"index", "idx_stills_session_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var name string
			err := s.DB().QueryRow(
				"SELECT name FROM sqlite_master WHERE type = ? AND name = ?", tt.kind, tt.name,
			).Scan(&name)
			if err != nil {
				t.Errorf("%s %q missing: %v", tt.kind, tt.name, err)
			}
		})
	}

	v, err := s.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion() error: %v", err)
	}
	if v != len(migrations) {
		t.Errorf("SchemaVersion() = %d, want %d", v, len(migrations))
	}

	var fk int
	if err := s.DB().QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("PRAGMA foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Error("foreign keys should be enabled")
	}
}

func TestNew_ReopenKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if err := s.Sessions().Create(&Session{ID: "kept"}); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	s.Close()

	s, err = New(dbPath)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer s.Close()

	if _, err := s.Sessions().GetByID("kept"); err != nil {
		t.Errorf("session lost across reopen: %v", err)
	}
	if v, _ := s.SchemaVersion(); v != len(migrations) {
		t.Errorf("SchemaVersion() after reopen = %d", v)
	}
}

func TestStore_Close(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
	if _, err := s.DB().Exec("SELECT 1"); err == nil {
		t.Error("queries should fail after Close")
	}
}

func TestSessionRepository_Counts(t *testing.T) {
	s := newTestStore(t)
	repo := s.Sessions()

	statuses := []SessionStatus{StatusSucceeded, StatusSucceeded, StatusFailed, StatusRunning}
	for i, status := range statuses {
		id := string(rune('a' + i))
		if err := repo.Create(&Session{ID: id, StartedAt: time.Now()}); err != nil {
			t.Fatalf("Create(%s) error: %v", id, err)
		}
		if status == StatusRunning {
			continue
		}
		if err := repo.Finish(id, Outcome{Status: status}); err != nil {
			t.Fatalf("Finish(%s) error: %v", id, err)
		}
	}

	counts, err := repo.Counts()
	if err != nil {
		t.Fatalf("Counts() error: %v", err)
	}
	want := map[SessionStatus]int{StatusSucceeded: 2, StatusFailed: 1, StatusRunning: 1}
	for status, n := range want {
		if counts[status] != n {
			t.Errorf("counts[%s] = %d, want %d", status, counts[status], n)
		}
	}
	if counts[StatusCancelled] != 0 {
		t.Errorf("counts[cancelled] = %d, want 0", counts[StatusCancelled])
	}
}
