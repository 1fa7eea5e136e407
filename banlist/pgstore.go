package banlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the durable layout expected by [PGStore]. Callers own migrations;
// the store never issues DDL.
const Schema = `
CREATE TABLE IF NOT EXISTS ip_bans (
    id          UUID PRIMARY KEY,
    ip_or_cidr  TEXT NOT NULL UNIQUE,
    reason      TEXT NOT NULL DEFAULT '',
    origin      TEXT NOT NULL DEFAULT 'manual',
    fingerprint TEXT NOT NULL DEFAULT '',
    user_agent  TEXT NOT NULL DEFAULT '',
    banned_at   TIMESTAMPTZ NOT NULL,
    expires_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS ip_bans_expires_at_idx ON ip_bans (expires_at);
`

// DB is the subset of *pgxpool.Pool used by the durable stores. pgxmock
// satisfies it in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore is the Postgres-backed durable [Store].
type PGStore struct {
	db  DB
	now func() time.Time
}

// NewPGStore creates a durable ban store on top of db.
func NewPGStore(db DB) *PGStore {
	return &PGStore{
		db:  db,
		now: time.Now,
	}
}

const upsertBanQuery = `
INSERT INTO ip_bans (id, ip_or_cidr, reason, origin, fingerprint, user_agent, banned_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (ip_or_cidr) DO UPDATE SET
    expires_at  = GREATEST(ip_bans.expires_at, EXCLUDED.expires_at),
    reason      = EXCLUDED.reason,
    origin      = EXCLUDED.origin,
    fingerprint = EXCLUDED.fingerprint,
    user_agent  = EXCLUDED.user_agent
RETURNING id, banned_at, expires_at`

// Upsert inserts the ban or extends an existing one for the same key. The
// GREATEST on expires_at makes re-bans extend-only: a shorter re-ban never
// moves an expiry earlier.
func (s *PGStore) Upsert(ctx context.Context, ban Ban) (Ban, error) {
	row := s.db.QueryRow(ctx, upsertBanQuery,
		ban.ID, ban.Key, ban.Reason, string(ban.Origin),
		ban.Fingerprint, ban.UserAgent, ban.BannedAt, ban.ExpiresAt,
	)

	stored := ban
	if err := row.Scan(&stored.ID, &stored.BannedAt, &stored.ExpiresAt); err != nil {
		return Ban{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return stored, nil
}

const getBanQuery = `
SELECT id, ip_or_cidr, reason, origin, fingerprint, user_agent, banned_at, expires_at
FROM ip_bans
WHERE ip_or_cidr = $1
LIMIT 1`

// Get returns the ban row for key, or nil when none exists. Expired rows are
// returned as-is; callers decide liveness via [Ban.Active].
func (s *PGStore) Get(ctx context.Context, key string) (*Ban, error) {
	row := s.db.QueryRow(ctx, getBanQuery, key)

	var b Ban
	var origin string
	err := row.Scan(&b.ID, &b.Key, &b.Reason, &origin, &b.Fingerprint, &b.UserAgent, &b.BannedAt, &b.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	b.Origin = Origin(origin)
	return &b, nil
}

// Delete removes the ban row for key and reports whether one existed.
func (s *PGStore) Delete(ctx context.Context, key string) (bool, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM ip_bans WHERE ip_or_cidr = $1`, key)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return tag.RowsAffected() > 0, nil
}

const matchExactQuery = `
SELECT reason, expires_at
FROM ip_bans
WHERE ip_or_cidr = $1 AND expires_at > $2
LIMIT 1`

const matchCIDRQuery = `
SELECT ip_or_cidr, reason, expires_at
FROM ip_bans
WHERE ip_or_cidr LIKE '%/%' AND expires_at > $1`

// Match reports whether ip is covered by an active ban: an exact row first,
// then containment against active CIDR rows.
func (s *PGStore) Match(ctx context.Context, ip string) (Match, error) {
	now := s.now()

	var m Match
	err := s.db.QueryRow(ctx, matchExactQuery, ip, now).Scan(&m.Reason, &m.ExpiresAt)
	if err == nil {
		m.Banned = true
		return m, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Match{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	rows, err := s.db.Query(ctx, matchCIDRQuery, now)
	if err != nil {
		return Match{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, reason string
		var expiresAt time.Time
		if err := rows.Scan(&key, &reason, &expiresAt); err != nil {
			return Match{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if Contains(key, ip) {
			return Match{Banned: true, Reason: reason, ExpiresAt: expiresAt}, nil
		}
	}
	if err := rows.Err(); err != nil {
		return Match{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return Match{}, nil
}

const activeBansQuery = `
SELECT id, ip_or_cidr, reason, origin, fingerprint, user_agent, banned_at, expires_at
FROM ip_bans
WHERE expires_at > $1
ORDER BY ip_or_cidr`

// ActiveBans enumerates all non-expired rows. Used by sync and stats, never
// on the request path.
func (s *PGStore) ActiveBans(ctx context.Context) ([]Ban, error) {
	rows, err := s.db.Query(ctx, activeBansQuery, s.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var bans []Ban
	for rows.Next() {
		var b Ban
		var origin string
		if err := rows.Scan(&b.ID, &b.Key, &b.Reason, &origin, &b.Fingerprint, &b.UserAgent, &b.BannedAt, &b.ExpiresAt); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		b.Origin = Origin(origin)
		bans = append(bans, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return bans, nil
}

// DeleteExpired removes rows whose expiry is strictly in the past and returns
// the count removed. Called only by the scheduler's cleanup job.
func (s *PGStore) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM ip_bans WHERE expires_at < $1`, s.now())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return tag.RowsAffected(), nil
}

const statsQuery = `
SELECT COUNT(*), COUNT(*) FILTER (WHERE expires_at > $1)
FROM ip_bans`

// Stats returns row counts for observability.
func (s *PGStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.db.QueryRow(ctx, statsQuery, s.now()).Scan(&st.Total, &st.Active); err != nil {
		return Stats{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	st.Expired = st.Total - st.Active
	return st, nil
}
