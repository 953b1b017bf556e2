package store

import (
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// SessionStatus is the lifecycle status of a stored session.
type SessionStatus string

const (
	StatusRunning   SessionStatus = "running"
	StatusSucceeded SessionStatus = "succeeded"
	StatusFailed    SessionStatus = "failed"
	StatusCancelled SessionStatus = "cancelled"
)

// Session is a capture attempt stored in the database.
type Session struct {
	ID          string        `json:"id"`
	Challenge   string        `json:"challenge"`
	Status      SessionStatus `json:"status"`
	FailureCode int           `json:"failure_code,omitempty"`
	Trigger     string        `json:"trigger,omitempty"`
	MotionScore float64       `json:"motion_score"`
	StartedAt   time.Time     `json:"started_at"`
	FinishedAt  *time.Time    `json:"finished_at,omitempty"`
}

// Outcome is what Finish records about a session.
type Outcome struct {
	Status      SessionStatus
	FailureCode int
	Trigger     string
	MotionScore float64
	FinishedAt  time.Time
}

// SessionRepository provides CRUD operations for sessions.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Create inserts a running session.
func (r *SessionRepository) Create(sess *Session) error {
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now()
	}
	if sess.Status == "" {
		sess.Status = StatusRunning
	}

	_, err := r.db.Exec(
		`INSERT INTO sessions (id, challenge, status, started_at) VALUES (?, ?, ?, ?)`,
		sess.ID, sess.Challenge, string(sess.Status), sess.StartedAt,
	)
	return err
}

// Finish records the outcome of a session.
func (r *SessionRepository) Finish(id string, o Outcome) error {
	if o.FinishedAt.IsZero() {
		o.FinishedAt = time.Now()
	}

	result, err := r.db.Exec(
		`UPDATE sessions SET status = ?, failure_code = ?, "trigger" = ?, motion_score = ?, finished_at = ?
		 WHERE id = ?`,
		string(o.Status), o.FailureCode, o.Trigger, o.MotionScore, o.FinishedAt, id,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

const sessionColumns = `id, challenge, status, failure_code, "trigger", motion_score, started_at, finished_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	sess := &Session{}
	var status string
	var finished sql.NullTime

	err := row.Scan(&sess.ID, &sess.Challenge, &status, &sess.FailureCode, &sess.Trigger,
		&sess.MotionScore, &sess.StartedAt, &finished)
	if err != nil {
		return nil, err
	}

	sess.Status = SessionStatus(status)
	if finished.Valid {
		t := finished.Time
		sess.FinishedAt = &t
	}
	return sess, nil
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	sess, err := scanSession(r.db.QueryRow(
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sess, nil
}

// List retrieves the most recent sessions first. A limit of zero or less
// returns all of them.
func (r *SessionRepository) List(limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.Query(
		`SELECT `+sessionColumns+` FROM sessions ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

// Delete removes a session and its stills.
func (r *SessionRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// Counts returns the number of sessions per status.
func (r *SessionRepository) Counts() (map[SessionStatus]int, error) {
	rows, err := r.db.Query(`SELECT status, COUNT(*) FROM sessions GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[SessionStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[SessionStatus(status)] = n
	}
	return counts, rows.Err()
}
