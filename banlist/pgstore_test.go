package banlist

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *PGStore, time.Time) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	store := NewPGStore(mock)
	store.now = func() time.Time { return now }
	return mock, store, now
}

var banColumns = []string{"id", "ip_or_cidr", "reason", "origin", "fingerprint", "user_agent", "banned_at", "expires_at"}

func TestPGStoreUpsert(t *testing.T) {
	mock, store, now := newMockStore(t)
	ctx := context.Background()

	ban := Ban{
		ID:        "ban-1",
		Key:       "203.0.113.7",
		Reason:    "abuse",
		Origin:    OriginManual,
		BannedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	}

	t.Run("extend only keeps the later expiry", func(t *testing.T) {
		// Existing row already expires later; the stored expiry wins.
		laterExpiry := now.Add(2 * time.Hour)
		earlierBannedAt := now.Add(-time.Hour)
		mock.ExpectQuery("INSERT INTO ip_bans").
			WithArgs(ban.ID, ban.Key, ban.Reason, "manual", ban.Fingerprint, ban.UserAgent, ban.BannedAt, ban.ExpiresAt).
			WillReturnRows(pgxmock.NewRows([]string{"id", "banned_at", "expires_at"}).
				AddRow("ban-0", earlierBannedAt, laterExpiry))

		stored, err := store.Upsert(ctx, ban)
		require.NoError(t, err)
		assert.Equal(t, "ban-0", stored.ID)
		assert.Equal(t, earlierBannedAt, stored.BannedAt)
		assert.Equal(t, laterExpiry, stored.ExpiresAt)
	})

	t.Run("database error", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO ip_bans").
			WithArgs(ban.ID, ban.Key, ban.Reason, "manual", ban.Fingerprint, ban.UserAgent, ban.BannedAt, ban.ExpiresAt).
			WillReturnError(fmt.Errorf("db error"))

		_, err := store.Upsert(ctx, ban)
		assert.ErrorIs(t, err, ErrStoreUnavailable)
	})
}

func TestPGStoreGet(t *testing.T) {
	mock, store, now := newMockStore(t)
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, ip_or_cidr").
			WithArgs("203.0.113.7").
			WillReturnRows(pgxmock.NewRows(banColumns).
				AddRow("ban-1", "203.0.113.7", "abuse", "auto", "fp-1", "agent", now, now.Add(time.Hour)))

		ban, err := store.Get(ctx, "203.0.113.7")
		require.NoError(t, err)
		require.NotNil(t, ban)
		assert.Equal(t, OriginAuto, ban.Origin)
		assert.Equal(t, "abuse", ban.Reason)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, ip_or_cidr").
			WithArgs("203.0.113.9").
			WillReturnError(pgx.ErrNoRows)

		ban, err := store.Get(ctx, "203.0.113.9")
		require.NoError(t, err)
		assert.Nil(t, ban)
	})
}

func TestPGStoreDelete(t *testing.T) {
	mock, store, _ := newMockStore(t)
	ctx := context.Background()

	t.Run("existing row", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM ip_bans WHERE ip_or_cidr").
			WithArgs("203.0.113.7").
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		existed, err := store.Delete(ctx, "203.0.113.7")
		require.NoError(t, err)
		assert.True(t, existed)
	})

	t.Run("missing row", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM ip_bans WHERE ip_or_cidr").
			WithArgs("203.0.113.7").
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		existed, err := store.Delete(ctx, "203.0.113.7")
		require.NoError(t, err)
		assert.False(t, existed)
	})
}

func TestPGStoreMatch(t *testing.T) {
	mock, store, now := newMockStore(t)
	ctx := context.Background()

	t.Run("exact hit", func(t *testing.T) {
		mock.ExpectQuery("SELECT reason, expires_at").
			WithArgs("203.0.113.7", now).
			WillReturnRows(pgxmock.NewRows([]string{"reason", "expires_at"}).
				AddRow("abuse", now.Add(time.Hour)))

		m, err := store.Match(ctx, "203.0.113.7")
		require.NoError(t, err)
		assert.True(t, m.Banned)
		assert.Equal(t, "abuse", m.Reason)
	})

	t.Run("cidr containment", func(t *testing.T) {
		mock.ExpectQuery("SELECT reason, expires_at").
			WithArgs("10.4.5.6", now).
			WillReturnError(pgx.ErrNoRows)
		mock.ExpectQuery("SELECT ip_or_cidr, reason, expires_at").
			WithArgs(now).
			WillReturnRows(pgxmock.NewRows([]string{"ip_or_cidr", "reason", "expires_at"}).
				AddRow("192.0.2.0/24", "scanner", now.Add(time.Hour)).
				AddRow("10.0.0.0/8", "abuse", now.Add(time.Hour)))

		m, err := store.Match(ctx, "10.4.5.6")
		require.NoError(t, err)
		assert.True(t, m.Banned)
		assert.Equal(t, "abuse", m.Reason)
	})

	t.Run("no match", func(t *testing.T) {
		mock.ExpectQuery("SELECT reason, expires_at").
			WithArgs("198.51.100.1", now).
			WillReturnError(pgx.ErrNoRows)
		mock.ExpectQuery("SELECT ip_or_cidr, reason, expires_at").
			WithArgs(now).
			WillReturnRows(pgxmock.NewRows([]string{"ip_or_cidr", "reason", "expires_at"}))

		m, err := store.Match(ctx, "198.51.100.1")
		require.NoError(t, err)
		assert.False(t, m.Banned)
	})

	t.Run("database error", func(t *testing.T) {
		mock.ExpectQuery("SELECT reason, expires_at").
			WithArgs("203.0.113.7", now).
			WillReturnError(fmt.Errorf("db error"))

		_, err := store.Match(ctx, "203.0.113.7")
		assert.True(t, errors.Is(err, ErrStoreUnavailable))
	})
}

func TestPGStoreActiveBans(t *testing.T) {
	mock, store, now := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT id, ip_or_cidr").
		WithArgs(now).
		WillReturnRows(pgxmock.NewRows(banColumns).
			AddRow("ban-1", "10.0.0.0/8", "abuse", "manual", "", "", now, now.Add(time.Hour)).
			AddRow("ban-2", "203.0.113.7", "scanner", "auto", "fp-1", "agent", now, now.Add(2*time.Hour)))

	bans, err := store.ActiveBans(ctx)
	require.NoError(t, err)
	require.Len(t, bans, 2)
	assert.Equal(t, "10.0.0.0/8", bans[0].Key)
	assert.Equal(t, OriginAuto, bans[1].Origin)
}

func TestPGStoreDeleteExpired(t *testing.T) {
	mock, store, now := newMockStore(t)
	ctx := context.Background()

	mock.ExpectExec("DELETE FROM ip_bans WHERE expires_at").
		WithArgs(now).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	removed, err := store.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)
}

func TestPGStoreStats(t *testing.T) {
	mock, store, now := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(now).
		WillReturnRows(pgxmock.NewRows([]string{"count", "active"}).AddRow(int64(10), int64(7)))

	st, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), st.Total)
	assert.Equal(t, int64(7), st.Active)
	assert.Equal(t, int64(3), st.Expired)
}
