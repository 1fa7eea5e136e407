package fingerprint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DefaultTTL is how long a reported fingerprint stays live.
const DefaultTTL = 5 * time.Minute

// ErrStoreUnavailable is an exported constant or variable used by the bot-mitigation engine.
var ErrStoreUnavailable = errors.New("fingerprint store unavailable")

// Schema is the durable layout expected by [Store]. Callers own migrations;
// the store never issues DDL.
const Schema = `
CREATE TABLE IF NOT EXISTS fingerprints (
    id         TEXT PRIMARY KEY,
    verified   BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL,
    expires_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS fingerprints_expires_at_idx ON fingerprints (expires_at);
`

// DB is the subset of *pgxpool.Pool used by the store. pgxmock satisfies it
// in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Report is the outcome of reporting a fingerprint sighting.
type Report struct {
	IsFirstVisit bool
	Verified     bool
}

// Status is a read-only view of one fingerprint record.
type Status struct {
	Exists   bool
	Verified bool
}

// Store is the Postgres-backed fingerprint registry.
//
// Store instances are intended to be configured during initialization and
// then treated as immutable unless documented otherwise.
type Store struct {
	db  DB
	ttl time.Duration
	now func() time.Time
}

// NewStore creates a fingerprint store. A non-positive ttl selects
// [DefaultTTL].
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

type record struct {
	verified  bool
	expiresAt time.Time
}

func (s *Store) get(ctx context.Context, id string) (*record, error) {
	var rec record
	err := s.db.QueryRow(ctx,
		`SELECT verified, expires_at FROM fingerprints WHERE id = $1`, id,
	).Scan(&rec.verified, &rec.expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return &rec, nil
}

// ReportFirstSeen records a sighting of id and reports whether this is the
// fingerprint's first visit within the TTL window. A lapsed record is
// replaced with a fresh unverified one and counts as a first visit again.
// Concurrent reports of the same new fingerprint race safely: exactly one
// caller observes the first visit.
func (s *Store) ReportFirstSeen(ctx context.Context, id string) (Report, error) {
	now := s.now()

	rec, err := s.get(ctx, id)
	if err != nil {
		return Report{}, err
	}

	if rec != nil {
		if rec.expiresAt.After(now) {
			return Report{Verified: rec.verified}, nil
		}

		// Lapsed row: reset it in place, guarded so only one racer wins.
		tag, err := s.db.Exec(ctx,
			`UPDATE fingerprints SET verified = FALSE, created_at = $2, expires_at = $3
			 WHERE id = $1 AND expires_at <= $2`,
			id, now, now.Add(s.ttl),
		)
		if err != nil {
			return Report{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if tag.RowsAffected() > 0 {
			return Report{IsFirstVisit: true}, nil
		}
		return s.reportExisting(ctx, id)
	}

	tag, err := s.db.Exec(ctx,
		`INSERT INTO fingerprints (id, verified, created_at, expires_at)
		 VALUES ($1, FALSE, $2, $3)
		 ON CONFLICT (id) DO NOTHING`,
		id, now, now.Add(s.ttl),
	)
	if err != nil {
		return Report{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if tag.RowsAffected() > 0 {
		return Report{IsFirstVisit: true}, nil
	}
	return s.reportExisting(ctx, id)
}

func (s *Store) reportExisting(ctx context.Context, id string) (Report, error) {
	rec, err := s.get(ctx, id)
	if err != nil {
		return Report{}, err
	}
	if rec == nil {
		return Report{}, nil
	}
	return Report{Verified: rec.verified}, nil
}

// MarkVerified flags a live fingerprint as having passed a challenge and
// reports whether a live record was updated. Absent or lapsed records are
// left untouched.
func (s *Store) MarkVerified(ctx context.Context, id string) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE fingerprints SET verified = TRUE WHERE id = $1 AND expires_at > $2`,
		id, s.now(),
	)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Status returns the live state of id. Lapsed records read as absent.
func (s *Store) Status(ctx context.Context, id string) (Status, error) {
	rec, err := s.get(ctx, id)
	if err != nil {
		return Status{}, err
	}
	if rec == nil || !rec.expiresAt.After(s.now()) {
		return Status{}, nil
	}
	return Status{Exists: true, Verified: rec.verified}, nil
}

// CleanupExpired removes lapsed records and returns the count removed.
func (s *Store) CleanupExpired(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM fingerprints WHERE expires_at < $1`, s.now(),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return tag.RowsAffected(), nil
}
