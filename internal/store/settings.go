package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
)

const sessionSecretKey = "session_secret"

// GetSetting returns the value stored under key, or "" when there is none.
func GetSetting(ctx context.Context, db *sql.DB, key string) (string, error) {
	var value string
	err := db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("querying setting %s: %w", key, err)
	}
	return value, nil
}

// ensureSetting stores candidate under key unless a value exists and returns
// the stored value. INSERT OR IGNORE followed by a re-read lets concurrent
// starts agree on one value.
func ensureSetting(ctx context.Context, db *sql.DB, key, candidate string) (string, error) {
	if _, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)`, key, candidate,
	); err != nil {
		return "", fmt.Errorf("storing setting %s: %w", key, err)
	}
	return GetSetting(ctx, db, key)
}

// GetSessionSecret returns the secret that signs viewer tokens and seals
// persisted backend cookies, generating one on first use.
func GetSessionSecret(ctx context.Context, db *sql.DB) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating session secret: %w", err)
	}
	return ensureSetting(ctx, db, sessionSecretKey, hex.EncodeToString(buf))
}
