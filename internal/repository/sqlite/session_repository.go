package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"facedetect/internal/model"
)

// SessionRepository implements repository.SessionRepository for SQLite.
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new SQLite session repository.
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Insert records the start of a session.
func (r *SessionRepository) Insert(s *model.Session) error {
	r.db.Lock()
	defer r.db.Unlock()

	_, err := r.db.Conn().Exec(`
		INSERT INTO sessions (id, device_index, scale_factor, started_at, frames, final_state)
		VALUES (?, ?, ?, ?, ?, ?)
	`, s.ID, s.DeviceIndex, s.ScaleFactor, s.StartedAt.UTC(), s.Frames, s.FinalState)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// Finish stores the end time, frame count and terminal state of a session.
func (r *SessionRepository) Finish(id string, endedAt time.Time, frames int64, finalState string) error {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		UPDATE sessions SET ended_at = ?, frames = ?, final_state = ? WHERE id = ?
	`, endedAt.UTC(), frames, finalState, id)
	if err != nil {
		return fmt.Errorf("failed to finish session: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to finish session: %s not found", id)
	}
	return nil
}

// GetByID retrieves a session by its ID. It returns nil when none exists.
func (r *SessionRepository) GetByID(id string) (*model.Session, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	row := r.db.Conn().QueryRow(`
		SELECT id, device_index, scale_factor, started_at, ended_at, frames, final_state
		FROM sessions WHERE id = ?
	`, id)

	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

// GetAll returns every session, newest first.
func (r *SessionRepository) GetAll() ([]model.Session, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT id, device_index, scale_factor, started_at, ended_at, frames, final_state
		FROM sessions ORDER BY started_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// GetStats returns snapshot and detection totals for a session.
func (r *SessionRepository) GetStats(id string) (*model.SessionStats, error) {
	session, err := r.GetByID(id)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fmt.Errorf("session %s not found", id)
	}

	r.db.RLock()
	defer r.db.RUnlock()

	stats := &model.SessionStats{Session: *session}

	if err := r.db.Conn().QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(filesize), 0) FROM snapshots WHERE session_id = ?
	`, id).Scan(&stats.Snapshots, &stats.TotalSizeBytes); err != nil {
		return nil, fmt.Errorf("failed to count snapshots: %w", err)
	}

	if err := r.db.Conn().QueryRow(`
		SELECT COUNT(*) FROM detections d
		JOIN snapshots s ON s.id = d.snapshot_id
		WHERE s.session_id = ?
	`, id).Scan(&stats.Detections); err != nil {
		return nil, fmt.Errorf("failed to count detections: %w", err)
	}

	return stats, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*model.Session, error) {
	var s model.Session
	var ended sql.NullTime
	if err := row.Scan(&s.ID, &s.DeviceIndex, &s.ScaleFactor, &s.StartedAt, &ended, &s.Frames, &s.FinalState); err != nil {
		return nil, err
	}
	if ended.Valid {
		t := ended.Time
		s.EndedAt = &t
	}
	return &s, nil
}
