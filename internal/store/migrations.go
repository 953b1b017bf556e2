package store

import "fmt"

// migrations are applied in order; PRAGMA user_version records how many
// have run. Append only.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		challenge TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL CHECK(status IN ('running', 'succeeded', 'failed', 'cancelled')),
		failure_code INTEGER NOT NULL DEFAULT 0,
		"trigger" TEXT NOT NULL DEFAULT '',
		motion_score REAL NOT NULL DEFAULT 0,
		started_at DATETIME NOT NULL,
		finished_at DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at)`,

	// Stills of a successful session, positions 1 and 2.
	`CREATE TABLE IF NOT EXISTS stills (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		position INTEGER NOT NULL CHECK(position IN (1, 2)),
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		tags TEXT NOT NULL DEFAULT '[]',
		jpeg BLOB NOT NULL,
		captured_at DATETIME NOT NULL,
		UNIQUE(session_id, position)
	);
	CREATE INDEX IF NOT EXISTS idx_stills_session_id ON stills(session_id)`,

	`CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status)`,
}

// migrate applies the migrations newer than the database's user_version,
// each in its own transaction.
func (s *Store) migrate() error {
	current, err := s.SchemaVersion()
	if err != nil {
		return err
	}

	for i := current; i < len(migrations); i++ {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		// PRAGMA does not take bind parameters.
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}
