package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SessionRecord is the persisted part of a viewer session: its sealed
// backend cookies.
type SessionRecord struct {
	ID        string
	Cookies   []byte
	CreatedAt time.Time
	ExpiresAt time.Time
}

// SaveSession inserts or replaces a session record.
func SaveSession(ctx context.Context, db *sql.DB, rec SessionRecord) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO sessions (id, cookies, created_at, updated_at, expires_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		     cookies = excluded.cookies,
		     updated_at = excluded.updated_at,
		     expires_at = excluded.expires_at`,
		rec.ID, rec.Cookies, rec.CreatedAt.UTC(), time.Now().UTC(), rec.ExpiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// GetSession returns an unexpired session record, or nil when there is none.
func GetSession(ctx context.Context, db *sql.DB, id string, now time.Time) (*SessionRecord, error) {
	rec := &SessionRecord{}
	err := db.QueryRowContext(ctx,
		`SELECT id, cookies, created_at, expires_at
		 FROM sessions WHERE id = ? AND expires_at > ?`, id, now.UTC(),
	).Scan(&rec.ID, &rec.Cookies, &rec.CreatedAt, &rec.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}
	return rec, nil
}

// DeleteSession removes a session record.
func DeleteSession(ctx context.Context, db *sql.DB, id string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// PurgeExpiredSessions removes sessions that expired before now.
func PurgeExpiredSessions(ctx context.Context, db *sql.DB, now time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("purging sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// CountSessions returns the number of stored sessions.
func CountSessions(ctx context.Context, db *sql.DB) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting sessions: %w", err)
	}
	return n, nil
}
