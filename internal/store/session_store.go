package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/soyeahso/billable/internal/domain"
)

// timeLayout preserves sub-second precision and ordering for session timestamps.
const timeLayout = time.RFC3339Nano

// SQLiteSessionStore implements tracker.SessionStore backed by SQLite.
type SQLiteSessionStore struct {
	db *DB
}

// NewSQLiteSessionStore creates a session store using the given database.
func NewSQLiteSessionStore(db *DB) *SQLiteSessionStore {
	return &SQLiteSessionStore{db: db}
}

// Create inserts a new session row.
func (s *SQLiteSessionStore) Create(sess *domain.Session) error {
	recipients, err := json.Marshal(sess.Email.Recipients)
	if err != nil {
		return fmt.Errorf("encoding recipients: %w", err)
	}

	_, err = s.db.sql.Exec(
		`INSERT INTO sessions (id, user_id, recipients, subject, body, draft_id, message_id, thread_id,
		                       start_time, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.UserID, string(recipients), sess.Email.Subject, sess.Email.Body,
		sess.Email.DraftID, sess.Email.MessageID, sess.Email.ThreadID,
		sess.StartTime.Format(timeLayout), string(sess.Status),
	)
	if err != nil {
		return fmt.Errorf("creating session %s: %w", sess.ID, err)
	}
	return nil
}

// Update persists the session's mutable fields. Summary and billing are
// written together with status and durations, so the orchestrator's final
// write is a single atomic statement.
func (s *SQLiteSessionStore) Update(sess *domain.Session) error {
	recipients, err := json.Marshal(sess.Email.Recipients)
	if err != nil {
		return fmt.Errorf("encoding recipients: %w", err)
	}

	var endTime sql.NullString
	if sess.EndTime != nil {
		endTime = sql.NullString{String: sess.EndTime.Format(timeLayout), Valid: true}
	}

	var summary, billing sql.NullString
	if sess.Summary != nil {
		data, err := json.Marshal(sess.Summary)
		if err != nil {
			return fmt.Errorf("encoding summary: %w", err)
		}
		summary = sql.NullString{String: string(data), Valid: true}
	}
	if sess.Billing != nil {
		data, err := json.Marshal(sess.Billing)
		if err != nil {
			return fmt.Errorf("encoding billing: %w", err)
		}
		billing = sql.NullString{String: string(data), Valid: true}
	}

	res, err := s.db.sql.Exec(
		`UPDATE sessions SET
			recipients = ?, subject = ?, body = ?, draft_id = ?, message_id = ?, thread_id = ?,
			end_time = ?, total_duration = ?, active_duration = ?, pause_duration = ?,
			chars_typed = ?, words_typed = ?, deletions = ?,
			status = ?, summary = ?, billing = ?, updated_at = ?
		 WHERE id = ?`,
		string(recipients), sess.Email.Subject, sess.Email.Body,
		sess.Email.DraftID, sess.Email.MessageID, sess.Email.ThreadID,
		endTime, sess.TotalDuration, sess.ActiveDuration, sess.PauseDuration,
		sess.Typing.CharactersTyped, sess.Typing.WordsTyped, sess.Typing.Deletions,
		string(sess.Status), summary, billing, time.Now().UTC().Format(time.DateTime),
		sess.ID,
	)
	if err != nil {
		return fmt.Errorf("updating session %s: %w", sess.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("updating session %s: no such session", sess.ID)
	}
	return nil
}

// AppendActivity adds one activity to a session's ordered log.
func (s *SQLiteSessionStore) AppendActivity(sessionID string, act domain.Activity) error {
	var payload sql.NullString
	if len(act.Payload) > 0 {
		data, err := json.Marshal(act.Payload)
		if err != nil {
			return fmt.Errorf("encoding payload: %w", err)
		}
		payload = sql.NullString{String: string(data), Valid: true}
	}

	ts := act.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err := s.db.sql.Exec(
		`INSERT INTO activities (session_id, timestamp, kind, payload) VALUES (?, ?, ?, ?)`,
		sessionID, ts.Format(timeLayout), string(act.Kind), payload,
	)
	if err != nil {
		return fmt.Errorf("appending activity to %s: %w", sessionID, err)
	}

	_, err = s.db.sql.Exec(
		`UPDATE sessions SET updated_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.DateTime), sessionID,
	)
	if err != nil {
		return fmt.Errorf("touching session %s: %w", sessionID, err)
	}
	return nil
}

// Get returns a session with its activity log, or (nil, nil) if not found.
func (s *SQLiteSessionStore) Get(sessionID string) (*domain.Session, error) {
	row := s.db.sql.QueryRow(
		`SELECT id, user_id, recipients, subject, body, draft_id, message_id, thread_id,
		        start_time, end_time, total_duration, active_duration, pause_duration,
		        chars_typed, words_typed, deletions, status, summary, billing
		 FROM sessions WHERE id = ?`, sessionID,
	)

	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", sessionID, err)
	}

	sess.Activities, err = s.loadActivities(sessionID)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// ListByUser returns a user's sessions, most recent first.
func (s *SQLiteSessionStore) ListByUser(userID string, limit int) ([]*domain.Session, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.sql.Query(
		`SELECT id, user_id, recipients, subject, body, draft_id, message_id, thread_id,
		        start_time, end_time, total_duration, active_duration, pause_duration,
		        chars_typed, words_typed, deletions, status, summary, billing
		 FROM sessions WHERE user_id = ? ORDER BY start_time DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing sessions for %s: %w", userID, err)
	}
	defer rows.Close()

	return scanSessions(rows)
}

// FindStale returns sessions in the given status whose last write is older
// than the cutoff. Used by the abandonment sweep.
func (s *SQLiteSessionStore) FindStale(status domain.SessionStatus, cutoff time.Time) ([]*domain.Session, error) {
	rows, err := s.db.sql.Query(
		`SELECT id, user_id, recipients, subject, body, draft_id, message_id, thread_id,
		        start_time, end_time, total_duration, active_duration, pause_duration,
		        chars_typed, words_typed, deletions, status, summary, billing
		 FROM sessions WHERE status = ? AND updated_at < ?`,
		string(status), cutoff.UTC().Format(time.DateTime),
	)
	if err != nil {
		return nil, fmt.Errorf("finding stale sessions: %w", err)
	}
	defer rows.Close()

	return scanSessions(rows)
}

// loadActivities loads all activities for a session in append order.
func (s *SQLiteSessionStore) loadActivities(sessionID string) ([]domain.Activity, error) {
	rows, err := s.db.sql.Query(
		`SELECT timestamp, kind, payload FROM activities WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("loading activities for %s: %w", sessionID, err)
	}
	defer rows.Close()

	var acts []domain.Activity
	for rows.Next() {
		var act domain.Activity
		var ts string
		var payload sql.NullString

		if err := rows.Scan(&ts, (*string)(&act.Kind), &payload); err != nil {
			return nil, err
		}
		act.Timestamp, _ = time.Parse(timeLayout, ts)
		if payload.Valid && payload.String != "" {
			_ = json.Unmarshal([]byte(payload.String), &act.Payload)
		}
		acts = append(acts, act)
	}
	return acts, rows.Err()
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var sess domain.Session
	var recipients, startTime, status string
	var endTime, summary, billing sql.NullString

	err := row.Scan(
		&sess.ID, &sess.UserID, &recipients, &sess.Email.Subject, &sess.Email.Body,
		&sess.Email.DraftID, &sess.Email.MessageID, &sess.Email.ThreadID,
		&startTime, &endTime, &sess.TotalDuration, &sess.ActiveDuration, &sess.PauseDuration,
		&sess.Typing.CharactersTyped, &sess.Typing.WordsTyped, &sess.Typing.Deletions,
		&status, &summary, &billing,
	)
	if err != nil {
		return nil, err
	}

	_ = json.Unmarshal([]byte(recipients), &sess.Email.Recipients)
	sess.StartTime, _ = time.Parse(timeLayout, startTime)
	if endTime.Valid {
		t, err := time.Parse(timeLayout, endTime.String)
		if err == nil {
			sess.EndTime = &t
		}
	}
	sess.Status = domain.SessionStatus(status)
	if summary.Valid && summary.String != "" {
		_ = json.Unmarshal([]byte(summary.String), &sess.Summary)
	}
	if billing.Valid && billing.String != "" {
		_ = json.Unmarshal([]byte(billing.String), &sess.Billing)
	}
	return &sess, nil
}

func scanSessions(rows *sql.Rows) ([]*domain.Session, error) {
	var sessions []*domain.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}
