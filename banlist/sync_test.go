package banlist

import (
	"context"
	"sync"
	"testing"
	"time"
)

// memoryStore is an in-memory Store with the same extend-only upsert
// semantics as the Postgres implementation.
type memoryStore struct {
	mu   sync.Mutex
	bans map[string]Ban
}

func newMemoryStore() *memoryStore {
	return &memoryStore{bans: map[string]Ban{}}
}

func (m *memoryStore) Upsert(_ context.Context, ban Ban) (Ban, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.bans[ban.Key]; ok {
		if existing.ExpiresAt.After(ban.ExpiresAt) {
			ban.ExpiresAt = existing.ExpiresAt
		}
		ban.ID = existing.ID
		ban.BannedAt = existing.BannedAt
	}
	m.bans[ban.Key] = ban
	return ban, nil
}

func (m *memoryStore) Get(_ context.Context, key string) (*Ban, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.bans[key]; ok {
		return &b, nil
	}
	return nil, nil
}

func (m *memoryStore) Delete(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.bans[key]
	delete(m.bans, key)
	return ok, nil
}

func (m *memoryStore) Match(_ context.Context, ip string) (Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for key, b := range m.bans {
		if b.Active(now) && Contains(key, ip) {
			return Match{Banned: true, Reason: b.Reason, ExpiresAt: b.ExpiresAt}, nil
		}
	}
	return Match{}, nil
}

func (m *memoryStore) ActiveBans(_ context.Context) ([]Ban, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	var out []Ban
	for _, b := range m.bans {
		if b.Active(now) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memoryStore) DeleteExpired(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	var removed int64
	for key, b := range m.bans {
		if !b.Active(now) {
			delete(m.bans, key)
			removed++
		}
	}
	return removed, nil
}

func (m *memoryStore) Stats(_ context.Context) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	st := Stats{Total: int64(len(m.bans))}
	for _, b := range m.bans {
		if b.Active(now) {
			st.Active++
		}
	}
	st.Expired = st.Total - st.Active
	return st, nil
}

func TestSyncDurableToCacheFillsMissingEntries(t *testing.T) {
	_, cache, done := newTestCache(t)
	defer done()
	ctx := context.Background()

	store := newMemoryStore()
	if _, err := store.Upsert(ctx, testBan("203.0.113.7", time.Hour)); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	report, err := NewSyncer(store, cache).Bidirectional(ctx)
	if err != nil {
		t.Fatalf("Bidirectional failed: %v", err)
	}
	if report.DurableToCache.Synced != 1 || report.DurableToCache.Merged != 0 {
		t.Fatalf("unexpected durable-to-cache report: %+v", report.DurableToCache)
	}

	cached, err := cache.Get(ctx, "203.0.113.7")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if cached == nil || cached.Reason != "abuse" {
		t.Fatalf("cache not populated: %+v", cached)
	}
}

func TestSyncCacheToDurablePersistsCacheOnlyBans(t *testing.T) {
	_, cache, done := newTestCache(t)
	defer done()
	ctx := context.Background()

	ban := testBan("198.51.100.4", time.Hour)
	ban.ID = ""
	if err := cache.Put(ctx, ban); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	store := newMemoryStore()
	report, err := NewSyncer(store, cache).Bidirectional(ctx)
	if err != nil {
		t.Fatalf("Bidirectional failed: %v", err)
	}
	if report.CacheToDurable.Synced != 1 || report.CacheToDurable.Updated != 0 {
		t.Fatalf("unexpected cache-to-durable report: %+v", report.CacheToDurable)
	}

	durable, err := store.Get(ctx, "198.51.100.4")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if durable == nil {
		t.Fatal("durable store not populated")
	}
	if durable.ID == "" {
		t.Fatal("persisted cache-only ban must get an ID")
	}
}

func TestSyncConvergesToLaterExpiry(t *testing.T) {
	_, cache, done := newTestCache(t)
	defer done()
	ctx := context.Background()

	short := testBan("203.0.113.7", time.Hour)
	long := short
	long.ExpiresAt = short.BannedAt.Add(3 * time.Hour)

	store := newMemoryStore()
	if _, err := store.Upsert(ctx, short); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := cache.Put(ctx, long); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	report, err := NewSyncer(store, cache).Bidirectional(ctx)
	if err != nil {
		t.Fatalf("Bidirectional failed: %v", err)
	}
	if report.CacheToDurable.Updated != 1 {
		t.Fatalf("expected one durable update, got %+v", report.CacheToDurable)
	}

	durable, err := store.Get(ctx, "203.0.113.7")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if durable.ExpiresAt.Unix() != long.ExpiresAt.Unix() {
		t.Fatalf("durable expiry not extended: got %v want %v", durable.ExpiresAt, long.ExpiresAt)
	}

	cached, err := cache.Get(ctx, "203.0.113.7")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if cached.ExpiresAt.Unix() != long.ExpiresAt.Unix() {
		t.Fatalf("cache expiry drifted: got %v want %v", cached.ExpiresAt, long.ExpiresAt)
	}
}

func TestSyncRaisesShorterCacheExpiry(t *testing.T) {
	_, cache, done := newTestCache(t)
	defer done()
	ctx := context.Background()

	long := testBan("203.0.113.7", 3*time.Hour)
	short := long
	short.ExpiresAt = long.BannedAt.Add(time.Hour)

	store := newMemoryStore()
	if _, err := store.Upsert(ctx, long); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := cache.Put(ctx, short); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	report, err := NewSyncer(store, cache).Bidirectional(ctx)
	if err != nil {
		t.Fatalf("Bidirectional failed: %v", err)
	}
	if report.DurableToCache.Merged != 1 {
		t.Fatalf("expected one cache merge, got %+v", report.DurableToCache)
	}

	cached, err := cache.Get(ctx, "203.0.113.7")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if cached.ExpiresAt.Unix() != long.ExpiresAt.Unix() {
		t.Fatalf("cache expiry not raised: got %v want %v", cached.ExpiresAt, long.ExpiresAt)
	}
}

func TestSyncIsIdempotent(t *testing.T) {
	_, cache, done := newTestCache(t)
	defer done()
	ctx := context.Background()

	store := newMemoryStore()
	if _, err := store.Upsert(ctx, testBan("203.0.113.7", time.Hour)); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := cache.Put(ctx, testBan("198.51.100.4", 2*time.Hour)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	syncer := NewSyncer(store, cache)
	if _, err := syncer.Bidirectional(ctx); err != nil {
		t.Fatalf("first pass failed: %v", err)
	}

	report, err := syncer.Bidirectional(ctx)
	if err != nil {
		t.Fatalf("second pass failed: %v", err)
	}
	if report.DurableToCache.Synced != 0 || report.DurableToCache.Merged != 0 {
		t.Fatalf("second pass did durable-to-cache work: %+v", report.DurableToCache)
	}
	if report.CacheToDurable.Synced != 0 || report.CacheToDurable.Updated != 0 {
		t.Fatalf("second pass did cache-to-durable work: %+v", report.CacheToDurable)
	}
}

func TestSyncDegradesWhenCacheUnavailable(t *testing.T) {
	mr, cache, _ := newTestCache(t)
	mr.Close()
	ctx := context.Background()

	store := newMemoryStore()
	if _, err := store.Upsert(ctx, testBan("203.0.113.7", time.Hour)); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	report, err := NewSyncer(store, cache).Bidirectional(ctx)
	if err != nil {
		t.Fatalf("Bidirectional must not fail on an unreachable cache: %v", err)
	}
	if !report.CacheUnavailable {
		t.Fatal("expected CacheUnavailable to be set")
	}
	if report.DurableToCache.Synced != 0 && report.CacheToDurable.Synced != 0 {
		t.Fatal("no sync work should be reported when the cache is down")
	}
}
