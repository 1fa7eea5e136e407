package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MrEthical07/goShield/internal"
)

// DefaultTTL is how long a minted token stays valid.
const DefaultTTL = 5 * time.Minute

// ErrStoreUnavailable is an exported constant or variable used by the bot-mitigation engine.
var ErrStoreUnavailable = errors.New("token store unavailable")

// Schema is the durable layout expected by [Store]. Callers own migrations;
// the store never issues DDL.
const Schema = `
CREATE TABLE IF NOT EXISTS access_tokens (
    token       TEXT PRIMARY KEY,
    fingerprint TEXT NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL,
    expires_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS access_tokens_fingerprint_idx ON access_tokens (fingerprint);
CREATE INDEX IF NOT EXISTS access_tokens_expires_at_idx ON access_tokens (expires_at);
`

// DB is the subset of *pgxpool.Pool used by the store. pgxmock satisfies it
// in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the Postgres-backed access token registry.
//
// Store instances are intended to be configured during initialization and
// then treated as immutable unless documented otherwise.
type Store struct {
	db  DB
	ttl time.Duration
	now func() time.Time
}

// NewStore creates a token store. A non-positive ttl selects [DefaultTTL].
func NewStore(db DB, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		db:  db,
		ttl: ttl,
		now: time.Now,
	}
}

// Mint generates a fresh opaque token bound to fingerprint and persists it.
// It returns the token and its fixed expiry.
func (s *Store) Mint(ctx context.Context, fingerprint string) (string, time.Time, error) {
	tok, err := internal.NewAccessToken()
	if err != nil {
		return "", time.Time{}, err
	}

	now := s.now()
	expiresAt := now.Add(s.ttl)
	_, err = s.db.Exec(ctx,
		`INSERT INTO access_tokens (token, fingerprint, created_at, updated_at, expires_at)
		 VALUES ($1, $2, $3, $3, $4)`,
		tok, fingerprint, now, expiresAt,
	)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return tok, expiresAt, nil
}

// Validate reports whether tok is a live token minted for fingerprint. A
// successful validation refreshes the token's last-seen timestamp; the expiry
// is never moved.
func (s *Store) Validate(ctx context.Context, tok, fingerprint string) (bool, error) {
	if !internal.ValidAccessTokenShape(tok) {
		return false, nil
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE access_tokens SET updated_at = $3
		 WHERE token = $1 AND fingerprint = $2 AND expires_at > $3`,
		tok, fingerprint, s.now(),
	)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return tag.RowsAffected() > 0, nil
}

// HasValid reports whether fingerprint holds at least one live token.
func (s *Store) HasValid(ctx context.Context, fingerprint string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM access_tokens WHERE fingerprint = $1 AND expires_at > $2
		 )`,
		fingerprint, s.now(),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return exists, nil
}

// CleanupExpired removes lapsed tokens and returns the count removed.
func (s *Store) CleanupExpired(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM access_tokens WHERE expires_at < $1`, s.now(),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return tag.RowsAffected(), nil
}
