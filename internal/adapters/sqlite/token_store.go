// Package sqlite persists inactive device tokens in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/bft-labs/pushgate/pkg/wire"
)

//go:embed schema.sql
var schemaSQL string

// InactiveToken is one stored feedback report.
type InactiveToken struct {
	Token [wire.TokenSize]byte
	// ReportedAt is when the push service last saw the token fail.
	ReportedAt time.Time
}

// TokenStore keeps the tokens reported by the feedback service.
type TokenStore struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates or opens the store at path. ":memory:" gives a private
// in-memory store.
func Open(path string) (*TokenStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// One connection: SQLite has a single writer, and each ":memory:"
	// connection would otherwise see its own database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &TokenStore{db: db, now: time.Now}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Close closes the database.
func (s *TokenStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// MarkInactive records that token was reported inactive at reportedAt. An
// older report never replaces a newer one.
func (s *TokenStore) MarkInactive(ctx context.Context, token [wire.TokenSize]byte, reportedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO inactive_tokens (token, reported_at, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(token) DO UPDATE SET
			reported_at = MAX(reported_at, excluded.reported_at),
			updated_at  = excluded.updated_at`,
		hex.EncodeToString(token[:]), reportedAt.Unix(), s.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to mark token inactive: %w", err)
	}
	return nil
}

// IsInactive reports whether token has been reported inactive.
func (s *TokenStore) IsInactive(ctx context.Context, token [wire.TokenSize]byte) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM inactive_tokens WHERE token = ?",
		hex.EncodeToString(token[:]),
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query token: %w", err)
	}
	return true, nil
}

// Forget removes token, for a device that registered again.
func (s *TokenStore) Forget(ctx context.Context, token [wire.TokenSize]byte) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM inactive_tokens WHERE token = ?",
		hex.EncodeToString(token[:]),
	); err != nil {
		return fmt.Errorf("failed to forget token: %w", err)
	}
	return nil
}

// List returns every stored token, most recently reported first.
func (s *TokenStore) List(ctx context.Context) ([]InactiveToken, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT token, reported_at FROM inactive_tokens ORDER BY reported_at DESC, token")
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}
	defer rows.Close()

	var out []InactiveToken
	for rows.Next() {
		var (
			encoded string
			at      int64
		)
		if err := rows.Scan(&encoded, &at); err != nil {
			return nil, fmt.Errorf("failed to scan token: %w", err)
		}
		raw, err := hex.DecodeString(encoded)
		if err != nil || len(raw) != wire.TokenSize {
			return nil, fmt.Errorf("corrupt token %q in store", encoded)
		}
		var it InactiveToken
		copy(it.Token[:], raw)
		it.ReportedAt = time.Unix(at, 0)
		out = append(out, it)
	}
	return out, rows.Err()
}
