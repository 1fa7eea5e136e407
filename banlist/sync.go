package banlist

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
)

// SyncDirectionReport counts the work one direction of a sync pass performed.
// Synced counts records created on the target side; Merged/Updated counts
// records that existed on both sides and were changed. A sync pass over two
// backends that already agree reports all zeroes.
type SyncDirectionReport struct {
	Synced  int
	Merged  int
	Updated int
}

// SyncReport is the outcome of one bidirectional reconciliation pass.
type SyncReport struct {
	DurableToCache   SyncDirectionReport
	CacheToDurable   SyncDirectionReport
	CacheUnavailable bool
	StartedAt        time.Time
	Duration         time.Duration
}

// Syncer reconciles the durable ban store and the fast-path cache.
type Syncer struct {
	store Store
	cache Cache
	now   func() time.Time
}

// NewSyncer creates a reconciler over the two ban backends.
func NewSyncer(store Store, cache Cache) *Syncer {
	return &Syncer{
		store: store,
		cache: cache,
		now:   time.Now,
	}
}

// Bidirectional runs one full reconciliation pass: durable to cache first,
// then cache to durable. The pass is idempotent, so running it twice in a row
// reports zero work on the second run.
//
// An unreachable cache degrades the pass rather than failing it: the report
// comes back with CacheUnavailable set and no work done. A durable store
// failure aborts the pass with an error.
func (s *Syncer) Bidirectional(ctx context.Context) (SyncReport, error) {
	report := SyncReport{StartedAt: s.now()}
	defer func() {
		report.Duration = s.now().Sub(report.StartedAt)
	}()

	if err := s.cache.Ping(ctx); err != nil {
		log.Print("goShield: ban sync skipped, cache unreachable: ", err)
		report.CacheUnavailable = true
		return report, nil
	}

	// Snapshot once; phase 1 never writes to the durable side, so the same
	// snapshot serves phase 2.
	durable, err := s.store.ActiveBans(ctx)
	if err != nil {
		return report, err
	}

	if err := s.syncDurableToCache(ctx, durable, &report); err != nil {
		return report, err
	}
	if err := s.syncCacheToDurable(ctx, durable, &report); err != nil {
		return report, err
	}

	return report, nil
}

func (s *Syncer) syncDurableToCache(ctx context.Context, durable []Ban, report *SyncReport) error {
	for _, src := range durable {
		cached, err := s.cache.Get(ctx, src.Key)
		if err != nil {
			return err
		}

		if cached == nil || !cached.Active(s.now()) {
			if err := s.cache.Put(ctx, src); err != nil {
				return err
			}
			report.DurableToCache.Synced++
			continue
		}

		// Longest remaining ban wins; descriptive metadata always comes
		// from the durable side.
		merged := src
		if cached.ExpiresAt.After(merged.ExpiresAt) {
			merged.ExpiresAt = cached.ExpiresAt
		}
		if banRecordsEqual(*cached, merged) {
			continue
		}
		if err := s.cache.Put(ctx, merged); err != nil {
			return err
		}
		report.DurableToCache.Merged++
	}
	return nil
}

func (s *Syncer) syncCacheToDurable(ctx context.Context, durable []Ban, report *SyncReport) error {
	byKey := make(map[string]Ban, len(durable))
	for _, b := range durable {
		byKey[b.Key] = b
	}

	cached, err := s.cache.ActiveBans(ctx)
	if err != nil {
		return err
	}

	for _, src := range cached {
		existing, known := byKey[src.Key]
		if known && !src.ExpiresAt.After(existing.ExpiresAt) {
			continue
		}

		if src.ID == "" {
			src.ID = uuid.NewString()
		}
		if _, err := s.store.Upsert(ctx, src); err != nil {
			return err
		}
		if known {
			report.CacheToDurable.Updated++
		} else {
			report.CacheToDurable.Synced++
		}
	}
	return nil
}

// banRecordsEqual compares the fields reconciliation cares about. Second-level
// expiry comparison matches the cache codec's resolution.
func banRecordsEqual(a, b Ban) bool {
	return a.ExpiresAt.Unix() == b.ExpiresAt.Unix() &&
		a.Reason == b.Reason &&
		a.Origin == b.Origin &&
		a.Fingerprint == b.Fingerprint &&
		a.UserAgent == b.UserAgent
}
