package token

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/goShield/internal"
)

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *Store, time.Time) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	store := NewStore(mock, 5*time.Minute)
	store.now = func() time.Time { return now }
	return mock, store, now
}

func TestMint(t *testing.T) {
	mock, store, now := newMockStore(t)
	ctx := context.Background()

	mock.ExpectExec("INSERT INTO access_tokens").
		WithArgs(pgxmock.AnyArg(), "fp-1", now, now.Add(5*time.Minute)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tok, expiresAt, err := store.Mint(ctx, "fp-1")
	require.NoError(t, err)
	assert.Len(t, tok, internal.AccessTokenLength)
	assert.True(t, internal.ValidAccessTokenShape(tok))
	assert.Equal(t, now.Add(5*time.Minute), expiresAt)
}

func TestMintTokensAreUnique(t *testing.T) {
	mock, store, _ := newMockStore(t)
	ctx := context.Background()

	seen := map[string]bool{}
	for i := 0; i < 16; i++ {
		mock.ExpectExec("INSERT INTO access_tokens").
			WithArgs(pgxmock.AnyArg(), "fp-1", pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		tok, _, err := store.Mint(ctx, "fp-1")
		require.NoError(t, err)
		if seen[tok] {
			t.Fatalf("duplicate token minted: %s", tok)
		}
		seen[tok] = true
	}
}

func TestValidate(t *testing.T) {
	mock, store, now := newMockStore(t)
	ctx := context.Background()

	tok, err := internal.NewAccessToken()
	require.NoError(t, err)

	t.Run("live token refreshes last seen", func(t *testing.T) {
		mock.ExpectExec("UPDATE access_tokens SET updated_at").
			WithArgs(tok, "fp-1", now).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		ok, err := store.Validate(ctx, tok, "fp-1")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("expired or foreign token", func(t *testing.T) {
		mock.ExpectExec("UPDATE access_tokens SET updated_at").
			WithArgs(tok, "fp-2", now).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		ok, err := store.Validate(ctx, tok, "fp-2")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("malformed token skips the database", func(t *testing.T) {
		// No expectation registered: a malformed token must not reach Postgres.
		ok, err := store.Validate(ctx, "not-a-token", "fp-1")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestHasValid(t *testing.T) {
	mock, store, now := newMockStore(t)
	ctx := context.Background()

	t.Run("token present", func(t *testing.T) {
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("fp-1", now).
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

		ok, err := store.HasValid(ctx, "fp-1")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("no live token", func(t *testing.T) {
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("fp-2", now).
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

		ok, err := store.HasValid(ctx, "fp-2")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestTokenCleanupExpired(t *testing.T) {
	mock, store, now := newMockStore(t)
	ctx := context.Background()

	mock.ExpectExec("DELETE FROM access_tokens").
		WithArgs(now).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))

	removed, err := store.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)
}

func TestTokenStoreUnavailable(t *testing.T) {
	mock, store, _ := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("fp-1", pgxmock.AnyArg()).
		WillReturnError(fmt.Errorf("db error"))

	_, err := store.HasValid(ctx, "fp-1")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}
