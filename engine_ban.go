package goShield

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/goShield/banlist"
)

// IsBanned reports whether ip is covered by an active ban. The cache verdict
// is authoritative when the cache is reachable; only a cache read failure
// falls back to the durable store. When both backends fail the check answers
// not-banned, preferring availability of the protected surface over
// enforcement.
//
// IsBanned may return an error when input validation, dependency calls, or security checks fail.
// IsBanned does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) IsBanned(ctx context.Context, ip string) (BanCheck, error) {
	if e == nil || e.banStore == nil {
		return BanCheck{}, ErrEngineNotReady
	}

	normalized, err := banlist.NormalizeKey(ip)
	if err != nil {
		return BanCheck{}, ErrInvalidBanKey
	}

	start := time.Now()
	defer func() {
		if e.metrics.LatencyEnabled() {
			e.metrics.Observe(MetricBanCheckLatency, time.Since(start))
		}
	}()

	match, err := e.matchBan(ctx, normalized)
	if err != nil {
		log.Print("goShield: ban check degraded, answering not banned: ", err)
		return BanCheck{}, nil
	}

	if match.Banned {
		e.metricInc(MetricBanHit)
	} else {
		e.metricInc(MetricBanMiss)
	}
	return BanCheck{Banned: match.Banned, Reason: match.Reason, ExpiresAt: match.ExpiresAt}, nil
}

func (e *Engine) matchBan(ctx context.Context, ip string) (banlist.Match, error) {
	if e.banCache != nil {
		match, err := e.banCache.Match(ctx, ip)
		if err == nil {
			return match, nil
		}
		log.Print("goShield: ban cache unreachable, falling back to durable store: ", err)
		e.metricInc(MetricBanCacheFallback)
		e.emitAudit(ctx, auditEventBanCheckFallback, false, "", ip, ErrBanBackendUnavailable, nil)
	}
	return e.banStore.Match(ctx, ip)
}

// BanIP creates or extends a ban for req.Key. Re-banning an already banned
// key never shortens it: the later expiry of the two wins. The ban is written
// through to the cache; a cache failure is logged and the durable write still
// counts.
//
// BanIP may return an error when input validation, dependency calls, or security checks fail.
// BanIP does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) BanIP(ctx context.Context, req BanRequest) (BanResult, error) {
	if e == nil || e.banStore == nil {
		return BanResult{}, ErrEngineNotReady
	}

	if err := e.allow(ctx, e.adminPolicy, clientIPFromContext(ctx)); err != nil {
		e.emitAudit(ctx, auditEventBanRateLimited, false, req.Fingerprint, req.Key, err, nil)
		return BanResult{}, err
	}

	key, err := banlist.NormalizeKey(req.Key)
	if err != nil {
		return BanResult{}, ErrInvalidBanKey
	}

	origin := req.Origin
	if origin == "" {
		origin = banlist.OriginManual
	}
	userAgent := req.UserAgent
	if userAgent == "" {
		userAgent = userAgentFromContext(ctx)
	}

	now := time.Now().UTC()
	ban := banlist.Ban{
		ID:          uuid.NewString(),
		Key:         key,
		Reason:      req.Reason,
		Origin:      origin,
		Fingerprint: req.Fingerprint,
		UserAgent:   userAgent,
		BannedAt:    now,
		ExpiresAt:   now.Add(banlist.ClampDuration(req.DurationMinutes)),
	}

	stored, err := e.banStore.Upsert(ctx, ban)
	if err != nil {
		return BanResult{}, err
	}

	if e.banCache != nil {
		if err := e.banCache.Put(ctx, stored); err != nil {
			log.Print("goShield: ban cache write-through failed: ", err)
		}
	}

	e.metricInc(MetricBanCreated)
	e.emitAudit(ctx, auditEventBanCreated, true, req.Fingerprint, key, nil, func() map[string]string {
		return map[string]string{
			"reason": stored.Reason,
			"origin": string(stored.Origin),
		}
	})

	return BanResult{Key: key, BannedAt: stored.BannedAt, ExpiresAt: stored.ExpiresAt}, nil
}

// UnbanIP lifts the ban on key and reports whether a durable ban existed.
// The cache entry is deleted as well so the unban takes effect on the fast
// path immediately rather than after the next sync.
//
// UnbanIP may return an error when input validation, dependency calls, or security checks fail.
// UnbanIP does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) UnbanIP(ctx context.Context, key string) (bool, error) {
	if e == nil || e.banStore == nil {
		return false, ErrEngineNotReady
	}

	if err := e.allow(ctx, e.adminPolicy, clientIPFromContext(ctx)); err != nil {
		e.emitAudit(ctx, auditEventBanRateLimited, false, "", key, err, nil)
		return false, err
	}

	normalized, err := banlist.NormalizeKey(key)
	if err != nil {
		return false, ErrInvalidBanKey
	}

	existed, err := e.banStore.Delete(ctx, normalized)
	if err != nil {
		return false, err
	}

	if e.banCache != nil {
		if _, err := e.banCache.Delete(ctx, normalized); err != nil {
			log.Print("goShield: ban cache delete failed, entry expires on its own: ", err)
		}
	}

	if existed {
		e.metricInc(MetricBanRemoved)
	}
	e.emitAudit(ctx, auditEventBanRemoved, existed, "", normalized, nil, nil)

	return existed, nil
}

// BanStats returns durable ban row counts.
//
// BanStats may return an error when input validation, dependency calls, or security checks fail.
// BanStats does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) BanStats(ctx context.Context) (banlist.Stats, error) {
	if e == nil || e.banStore == nil {
		return banlist.Stats{}, ErrEngineNotReady
	}
	return e.banStore.Stats(ctx)
}
