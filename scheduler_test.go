package goShield

import (
	"context"
	"testing"
	"time"

	"github.com/MrEthical07/goShield/banlist"
)

func TestManualCleanupRemovesExactlyExpired(t *testing.T) {
	engine, deps, done := newTestEngine(t, nil)
	defer done()

	ctx := WithClientIP(context.Background(), "198.51.100.1")

	if _, err := engine.ReportFingerprint(ctx, "fp-old"); err != nil {
		t.Fatalf("ReportFingerprint failed: %v", err)
	}

	deps.clock.Advance(6 * time.Minute)

	if _, err := engine.ReportFingerprint(ctx, "fp-new"); err != nil {
		t.Fatalf("ReportFingerprint failed: %v", err)
	}

	// One lapsed ban seeded directly; engine bans use wall-clock time.
	now := time.Now().UTC()
	if _, err := deps.banStore.Upsert(ctx, banlist.Ban{
		ID: "ban-old", Key: "203.0.113.9",
		BannedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour),
	}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if _, err := engine.BanIP(ctx, BanRequest{Key: "203.0.113.7", DurationMinutes: 60}); err != nil {
		t.Fatalf("BanIP failed: %v", err)
	}

	result := engine.ManualCleanup(ctx)
	if !result.Success {
		t.Fatalf("cleanup failed: %v", result.Err)
	}
	if result.PerStore["fingerprints"] != 1 {
		t.Fatalf("expected exactly one lapsed fingerprint removed, got %+v", result.PerStore)
	}
	if result.PerStore["bans"] != 1 {
		t.Fatalf("expected exactly one lapsed ban removed, got %+v", result.PerStore)
	}

	st, err := engine.FingerprintStatus(ctx, "fp-new")
	if err != nil {
		t.Fatalf("FingerprintStatus failed: %v", err)
	}
	if !st.Exists {
		t.Fatal("live fingerprint must survive cleanup")
	}

	check, err := engine.IsBanned(ctx, "203.0.113.7")
	if err != nil {
		t.Fatalf("IsBanned failed: %v", err)
	}
	if !check.Banned {
		t.Fatal("live ban must survive cleanup")
	}
}

func TestSchedulerStartStopIdempotent(t *testing.T) {
	engine, _, done := newTestEngine(t, nil)
	defer done()

	engine.StartScheduler()
	engine.StartScheduler()

	status := engine.SchedulerStatus()
	if !status.Running {
		t.Fatal("scheduler must report running after Start")
	}
	if !status.SyncEnabled {
		t.Fatal("sync must be enabled while the cache answers pings")
	}

	engine.StopScheduler()
	engine.StopScheduler()

	status = engine.SchedulerStatus()
	if status.Running {
		t.Fatal("scheduler must report stopped after Stop")
	}
}

func TestSchedulerStartDisablesSyncWhenCacheDown(t *testing.T) {
	engine, deps, done := newTestEngine(t, nil)
	defer done()

	deps.mr.Close()

	engine.StartScheduler()
	defer engine.StopScheduler()

	status := engine.SchedulerStatus()
	if !status.Running {
		t.Fatal("scheduler must still run for cleanup with the cache down")
	}
	if status.SyncEnabled {
		t.Fatal("sync must be disabled when the cache was unreachable at start")
	}
}

func TestManualSyncRunsEvenWhenSyncDisabled(t *testing.T) {
	engine, deps, done := newTestEngine(t, nil)
	defer done()

	deps.mr.Close()
	engine.StartScheduler()
	defer engine.StopScheduler()

	result := engine.ManualSync(context.Background())
	if result.Success {
		t.Fatal("sync against a dead cache must not report success")
	}
	if !result.Report.CacheUnavailable {
		t.Fatal("expected CacheUnavailable in the report")
	}
}

func TestManualSyncPopulatesCache(t *testing.T) {
	engine, _, done := newTestEngine(t, nil)
	defer done()

	ctx := WithClientIP(context.Background(), "198.51.100.1")
	if _, err := engine.BanIP(ctx, BanRequest{Key: "203.0.113.7", DurationMinutes: 60}); err != nil {
		t.Fatalf("BanIP failed: %v", err)
	}

	// Write-through already cached it; a second pass must be a no-op.
	result := engine.ManualSync(ctx)
	if !result.Success {
		t.Fatalf("sync failed: %v", result.Err)
	}

	again := engine.ManualSync(ctx)
	if again.Report.DurableToCache.Synced != 0 || again.Report.DurableToCache.Merged != 0 ||
		again.Report.CacheToDurable.Synced != 0 || again.Report.CacheToDurable.Updated != 0 {
		t.Fatalf("second sync pass must report zero work, got %+v", again.Report)
	}

	status := engine.SchedulerStatus()
	if status.LastSync.IsZero() {
		t.Fatal("LastSync must be recorded after a manual sync")
	}
}
