package goShield

import (
	"context"
	"log"

	"github.com/MrEthical07/goShield/banlist"
	"github.com/MrEthical07/goShield/captcha"
	"github.com/MrEthical07/goShield/internal/rate"
)

// Engine defines a public type used by goShield APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config       Config
	fingerprints FingerprintStore
	tokens       AccessTokenStore
	banStore     banlist.Store
	banCache     banlist.Cache
	syncer       *banlist.Syncer
	picker       *captcha.Picker
	rateLimiter  *rate.Limiter
	scheduler    *Scheduler
	audit        *auditDispatcher
	metrics      *Metrics

	publicPolicy      rate.Policy
	fingerprintPolicy rate.Policy
	userReportPolicy  rate.Policy
	adminPolicy       rate.Policy
}

// Close describes the close operation and its observable behavior.
//
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.scheduler != nil {
		e.scheduler.Stop()
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// allow runs one rate-limit policy check. Redis failures fail open: the
// request proceeds and the incident is logged, so a cache outage never
// becomes a denial of service against legitimate clients.
func (e *Engine) allow(ctx context.Context, p rate.Policy, key string) error {
	if e.rateLimiter == nil || key == "" {
		return nil
	}

	decision, err := e.rateLimiter.Allow(ctx, p, key)
	if err != nil {
		log.Print("goShield: rate limiter unavailable, failing open: ", err)
		e.metricInc(MetricRateLimitFailOpen)
		return nil
	}
	if decision.Allowed {
		return nil
	}

	e.metricInc(MetricRateLimitHit)
	return &RateLimitError{Policy: p.Name, RetryAfter: decision.RetryAfter}
}
