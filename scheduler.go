package goShield

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/MrEthical07/goShield/banlist"
)

// cleaner is the shape shared by the fingerprint and token stores for TTL
// sweeping.
type cleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// Scheduler defines a public type used by goShield APIs.
//
// Scheduler owns the two background maintenance jobs: the TTL cleanup sweep
// over the durable stores and the bidirectional ban sync. The two run on
// independent tickers; a slow sync never delays cleanup and vice versa.
type Scheduler struct {
	cfg      SchedulerConfig
	cleaners map[string]cleaner
	banStore banlist.Store
	banCache banlist.Cache
	syncer   *banlist.Syncer
	metrics  *Metrics

	mu          sync.Mutex
	running     bool
	syncEnabled bool
	lastCleanup time.Time
	lastSync    time.Time
	done        chan struct{}
	wg          sync.WaitGroup
}

func newScheduler(
	cfg SchedulerConfig,
	fingerprints FingerprintStore,
	tokens AccessTokenStore,
	banStore banlist.Store,
	banCache banlist.Cache,
	syncer *banlist.Syncer,
	metrics *Metrics,
) *Scheduler {
	cleaners := map[string]cleaner{}
	if fingerprints != nil {
		cleaners["fingerprints"] = fingerprints
	}
	if tokens != nil {
		cleaners["tokens"] = tokens
	}

	return &Scheduler{
		cfg:      cfg,
		cleaners: cleaners,
		banStore: banStore,
		banCache: banCache,
		syncer:   syncer,
		metrics:  metrics,
	}
}

// Start describes the start operation and its observable behavior. Starting
// an already running scheduler is a no-op. The first cleanup fires
// immediately; sync runs only when the cache answered a ping at start time.
//
// Start does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Scheduler) Start() {
	if s == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}

	s.syncEnabled = false
	if s.banCache != nil && s.syncer != nil {
		if err := s.banCache.Ping(context.Background()); err != nil {
			log.Print("goShield: ban cache unreachable at scheduler start, sync disabled: ", err)
		} else {
			s.syncEnabled = true
		}
	}

	s.running = true
	s.done = make(chan struct{})

	s.wg.Add(1)
	go s.runCleanupLoop(s.done)

	if s.syncEnabled {
		s.wg.Add(1)
		go s.runSyncLoop(s.done)
	}
}

// Stop describes the stop operation and its observable behavior. Stopping an
// idle scheduler is a no-op; in-flight runs finish before Stop returns.
//
// Stop does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Scheduler) Stop() {
	if s == nil {
		return
	}

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	done := s.done
	s.mu.Unlock()

	close(done)
	s.wg.Wait()
}

func (s *Scheduler) runCleanupLoop(done chan struct{}) {
	defer s.wg.Done()

	s.runCleanup(context.Background())

	ticker := time.NewTicker(s.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runCleanup(context.Background())
		case <-done:
			return
		}
	}
}

func (s *Scheduler) runSyncLoop(done chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runSync(context.Background())
		case <-done:
			return
		}
	}
}

func (s *Scheduler) runCleanup(ctx context.Context) CleanupResult {
	result := CleanupResult{Success: true, PerStore: map[string]int64{}}

	for name, c := range s.cleaners {
		removed, err := c.CleanupExpired(ctx)
		if err != nil {
			log.Print("goShield: cleanup of ", name, " failed: ", err)
			result.Success = false
			result.Err = err
			continue
		}
		result.PerStore[name] = removed
		result.Deleted += removed
	}

	if s.banStore != nil {
		removed, err := s.banStore.DeleteExpired(ctx)
		if err != nil {
			log.Print("goShield: cleanup of bans failed: ", err)
			result.Success = false
			result.Err = err
		} else {
			result.PerStore["bans"] = removed
			result.Deleted += removed
		}
	}

	if s.metrics != nil {
		s.metrics.Inc(MetricCleanupRun)
	}

	s.mu.Lock()
	s.lastCleanup = time.Now()
	s.mu.Unlock()

	return result
}

func (s *Scheduler) runSync(ctx context.Context) SyncResult {
	if s.syncer == nil {
		return SyncResult{}
	}

	report, err := s.syncer.Bidirectional(ctx)
	result := SyncResult{Success: err == nil && !report.CacheUnavailable, Report: report, Err: err}
	if err != nil {
		log.Print("goShield: ban sync failed: ", err)
	}

	if s.metrics != nil {
		s.metrics.Inc(MetricSyncRun)
	}

	s.mu.Lock()
	s.lastSync = time.Now()
	s.mu.Unlock()

	return result
}

// ManualCleanup runs one cleanup sweep right now, independent of the ticker.
//
// ManualCleanup may return an error when input validation, dependency calls, or security checks fail.
// ManualCleanup does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Scheduler) ManualCleanup(ctx context.Context) CleanupResult {
	if s == nil {
		return CleanupResult{}
	}
	return s.runCleanup(ctx)
}

// ManualSync runs one sync pass right now, even when the periodic sync was
// disabled because the cache was down at start time.
//
// ManualSync may return an error when input validation, dependency calls, or security checks fail.
// ManualSync does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Scheduler) ManualSync(ctx context.Context) SyncResult {
	if s == nil {
		return SyncResult{}
	}
	return s.runSync(ctx)
}

// Status describes the status operation and its observable behavior. It is a
// pure read of scheduler state and never touches the backends.
//
// Status does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Scheduler) Status() SchedulerStatus {
	if s == nil {
		return SchedulerStatus{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return SchedulerStatus{
		Running:     s.running,
		SyncEnabled: s.syncEnabled,
		LastCleanup: s.lastCleanup,
		LastSync:    s.lastSync,
	}
}
