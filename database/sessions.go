package database

import (
	"database/sql"
	"fmt"
	"time"

	"rtracker/model"
)

// CreateSession opens a new scan session and returns its id.
func CreateSession(q DBTX, userID int64, waybill string) (int64, error) {
	res, err := q.Exec(`
		INSERT INTO scan_sessions (user_id, waybill_number, start_time)
		VALUES (?, ?, ?)`,
		userID, waybill, time.Now().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("failed to create session for user %d: %w", userID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get session id: %w", err)
	}
	return id, nil
}

// GetSession loads one session.
func GetSession(q DBTX, sessionID int64) (*model.ScanSession, error) {
	var s model.ScanSession
	err := q.Get(&s, `
		SELECT session_id, user_id, waybill_number, start_time, end_time
		FROM scan_sessions WHERE session_id = ?`, sessionID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session %d: %w", sessionID, err)
	}
	return &s, nil
}

// OpenSessionForUser returns the user's most recent open session, or nil.
func OpenSessionForUser(q DBTX, userID int64) (*model.ScanSession, error) {
	var s model.ScanSession
	err := q.Get(&s, `
		SELECT session_id, user_id, waybill_number, start_time, end_time
		FROM scan_sessions
		WHERE user_id = ? AND end_time IS NULL
		ORDER BY start_time DESC LIMIT 1`, userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get open session for user %d: %w", userID, err)
	}
	return &s, nil
}

// EndSession marks a session closed. Closing twice is a no-op.
func EndSession(q DBTX, sessionID int64) error {
	_, err := q.Exec(`
		UPDATE scan_sessions SET end_time = ?
		WHERE session_id = ? AND end_time IS NULL`,
		time.Now().Format(time.RFC3339), sessionID)
	if err != nil {
		return fmt.Errorf("failed to end session %d: %w", sessionID, err)
	}
	return nil
}

// OpenSessions lists all sessions with no end time, oldest first. Used by
// the scheduler to refresh live summaries.
func OpenSessions(q DBTX) ([]model.ScanSession, error) {
	var sessions []model.ScanSession
	err := q.Select(&sessions, `
		SELECT session_id, user_id, waybill_number, start_time, end_time
		FROM scan_sessions
		WHERE end_time IS NULL
		ORDER BY session_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query open sessions: %w", err)
	}
	return sessions, nil
}
