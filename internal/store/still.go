package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Still is a captured image stored as JPEG.
type Still struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	Position   int       `json:"position"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	Tags       []string  `json:"tags"`
	JPEG       []byte    `json:"-"`
	CapturedAt time.Time `json:"captured_at"`
}

// StillRepository provides access to captured stills.
type StillRepository struct {
	db *sql.DB
}

// Stills returns the still repository for this store.
func (s *Store) Stills() *StillRepository {
	return &StillRepository{db: s.db}
}

// Create inserts stills for a session in a single transaction.
func (r *StillRepository) Create(stills ...*Still) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO stills (id, session_id, position, width, height, tags, jpeg, captured_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, st := range stills {
		tags := st.Tags
		if tags == nil {
			tags = []string{}
		}
		data, err := json.Marshal(tags)
		if err != nil {
			return fmt.Errorf("encode tags: %w", err)
		}

		if _, err := stmt.Exec(st.ID, st.SessionID, st.Position, st.Width, st.Height,
			string(data), st.JPEG, st.CapturedAt); err != nil {
			return err
		}
	}

	return tx.Commit()
}

const stillColumns = `id, session_id, position, width, height, tags, jpeg, captured_at`

func scanStill(row scanner) (*Still, error) {
	st := &Still{}
	var tags string

	if err := row.Scan(&st.ID, &st.SessionID, &st.Position, &st.Width, &st.Height,
		&tags, &st.JPEG, &st.CapturedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &st.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	return st, nil
}

// ListBySession returns the stills of a session ordered by position.
func (r *StillRepository) ListBySession(sessionID string) ([]*Still, error) {
	rows, err := r.db.Query(
		`SELECT `+stillColumns+` FROM stills WHERE session_id = ? ORDER BY position`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stills []*Still
	for rows.Next() {
		st, err := scanStill(rows)
		if err != nil {
			return nil, err
		}
		stills = append(stills, st)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return stills, nil
}

// Get returns the still at position (1 or 2) of a session.
func (r *StillRepository) Get(sessionID string, position int) (*Still, error) {
	st, err := scanStill(r.db.QueryRow(
		`SELECT `+stillColumns+` FROM stills WHERE session_id = ? AND position = ?`,
		sessionID, position,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return st, nil
}
