// Command goshield-loadtest measures the two goShield hot paths against a
// live Redis (or an embedded miniredis when no address is given): ban-list
// matching and rate-limit accounting.
//
// Usage:
//
//	go run ./cmd/goshield-loadtest -bans 100000 -concurrency 256 -ops 200000
//
// With no -redis-addr flag and no REDIS_ADDR env var, an in-process miniredis
// is started so the tool is self-contained.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goShield/banlist"
	"github.com/MrEthical07/goShield/internal/rate"
)

func main() {
	var (
		bans        = flag.Int("bans", 100000, "number of ban entries to seed")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per phase (match + allow)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		banPrefix   = flag.String("ban-prefix", "bgb", "ban cache key prefix")
		ratePrefix  = flag.String("rate-prefix", "bgr", "rate limiter key prefix")
	)
	flag.Parse()

	if *bans <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "bans, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	cache := banlist.NewRedisCache(client, *banPrefix)

	keys := make([]string, *bans)
	fmt.Printf("seeding %d bans...\n", *bans)
	startSeed := time.Now()
	now := time.Now().UTC()
	for i := 0; i < *bans; i++ {
		key := fmt.Sprintf("10.%d.%d.%d", i>>16&0xFF, i>>8&0xFF, i&0xFF)
		keys[i] = key
		ban := banlist.Ban{
			ID:        uuid.NewString(),
			Key:       key,
			Reason:    "loadtest",
			Origin:    banlist.OriginAuto,
			BannedAt:  now,
			ExpiresAt: now.Add(24 * time.Hour),
		}
		if err := cache.Put(ctx, ban); err != nil {
			fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	matchStats := runMatchPhase(ctx, cache, keys, *ops, *concurrency)

	limiter := rate.New(client, *ratePrefix)
	policy := rate.Policy{Name: "pub", Max: 1 << 30, Window: time.Minute}
	allowStats := runAllowPhase(ctx, limiter, policy, keys, *ops, *concurrency)

	fmt.Println("---- results ----")
	printStats("match", matchStats)
	printStats("allow", allowStats)
}

func runMatchPhase(ctx context.Context, cache banlist.Cache, keys []string, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				idx := r.Intn(len(keys))
				t0 := time.Now()
				m, err := cache.Match(ctx, keys[idx])
				d := time.Since(t0)
				if err != nil || !m.Banned {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

func runAllowPhase(ctx context.Context, limiter *rate.Limiter, policy rate.Policy, keys []string, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*6151))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				idx := r.Intn(len(keys))
				t0 := time.Now()
				res, err := limiter.Allow(ctx, policy, keys[idx])
				d := time.Since(t0)
				if err != nil || !res.Allowed {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
