package prefstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/neuralliquid/portal/internal/store"
)

var sqliteMigrations = []store.Migration{
	{
		Version:     1,
		Description: "create theme_preferences table",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE theme_preferences (
					session_id TEXT    NOT NULL,
					key        TEXT    NOT NULL,
					value      TEXT    NOT NULL,
					expires_at INTEGER NOT NULL,
					updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
					PRIMARY KEY (session_id, key)
				)`)
			return err
		},
	},
	{
		Version:     2,
		Description: "index theme_preferences by expiry",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec("CREATE INDEX idx_theme_preferences_expires ON theme_preferences (expires_at)")
			return err
		},
	},
}

// SQLite is a SessionStore backed by the portal database. Expiry is stored as
// unix seconds; expired rows read as absent until PurgeExpired removes them.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite migrates the preference schema and returns the store.
func NewSQLite(ctx context.Context, s *store.SQLiteStore) (*SQLite, error) {
	if err := s.Migrate(ctx, "prefstore", sqliteMigrations); err != nil {
		return nil, fmt.Errorf("migrate prefstore: %w", err)
	}
	return &SQLite{db: s.DB(), now: time.Now}, nil
}

// Get implements SessionStore.
func (s *SQLite) Get(ctx context.Context, session, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM theme_preferences WHERE session_id = ? AND key = ? AND expires_at > ?",
		session, key, s.now().Unix(),
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get preference %q: %w", key, err)
	}
	return value, nil
}

// Set implements SessionStore.
func (s *SQLite) Set(ctx context.Context, session, key, value string, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO theme_preferences (session_id, key, value, expires_at, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (session_id, key) DO UPDATE SET
			value      = excluded.value,
			expires_at = excluded.expires_at,
			updated_at = CURRENT_TIMESTAMP`,
		session, key, value, s.now().Add(ttl).Unix(),
	)
	if err != nil {
		return fmt.Errorf("set preference %q: %w", key, err)
	}
	return nil
}

// Delete implements SessionStore.
func (s *SQLite) Delete(ctx context.Context, session string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM theme_preferences WHERE session_id = ?", session); err != nil {
		return fmt.Errorf("delete session preferences: %w", err)
	}
	return nil
}

// Ping implements SessionStore.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// PurgeExpired removes expired rows and reports how many were deleted.
func (s *SQLite) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM theme_preferences WHERE expires_at <= ?", s.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("purge expired preferences: %w", err)
	}
	return res.RowsAffected()
}
