package goShield

import (
	"context"
)

// ReportFingerprint records a sighting of fp and reports whether it is the
// first visit within the fingerprint TTL. Reports are throttled per IP, or
// per user+IP when an authenticated user ID is attached to ctx.
//
// ReportFingerprint may return an error when input validation, dependency calls, or security checks fail.
// ReportFingerprint does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ReportFingerprint(ctx context.Context, fp string) (FingerprintReport, error) {
	if e == nil || e.fingerprints == nil {
		return FingerprintReport{}, ErrEngineNotReady
	}
	if fp == "" {
		return FingerprintReport{}, ErrFingerprintRequired
	}

	ip := clientIPFromContext(ctx)
	policy, key := e.fingerprintPolicy, ip
	if userID := userIDFromContext(ctx); userID != "" {
		policy, key = e.userReportPolicy, userID+":"+ip
	}
	if err := e.allow(ctx, policy, key); err != nil {
		e.emitAudit(ctx, auditEventFingerprintRateLimit, false, fp, "", err, nil)
		return FingerprintReport{}, err
	}

	rep, err := e.fingerprints.ReportFirstSeen(ctx, fp)
	if err != nil {
		return FingerprintReport{}, err
	}

	if rep.IsFirstVisit {
		e.metricInc(MetricFingerprintFirstVisit)
	} else {
		e.metricInc(MetricFingerprintReturning)
	}
	e.emitAudit(ctx, auditEventFingerprintReported, true, fp, "", nil, func() map[string]string {
		return map[string]string{
			"first_visit": boolString(rep.IsFirstVisit),
			"verified":    boolString(rep.Verified),
		}
	})

	return FingerprintReport{IsFirstVisit: rep.IsFirstVisit, Verified: rep.Verified}, nil
}

// FingerprintStatus returns the live state of fp without recording a
// sighting.
//
// FingerprintStatus may return an error when input validation, dependency calls, or security checks fail.
// FingerprintStatus does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) FingerprintStatus(ctx context.Context, fp string) (FingerprintStatus, error) {
	if e == nil || e.fingerprints == nil {
		return FingerprintStatus{}, ErrEngineNotReady
	}
	if fp == "" {
		return FingerprintStatus{}, ErrFingerprintRequired
	}

	st, err := e.fingerprints.Status(ctx, fp)
	if err != nil {
		return FingerprintStatus{}, err
	}
	return FingerprintStatus{Exists: st.Exists, Verified: st.Verified}, nil
}

// VerifyChallenge checks a solved captcha for fp and mints an access token on
// success. A fingerprint that already holds a live token verifies immediately
// without contacting a provider or minting another token. A provider outage
// is indistinguishable from an unsolved challenge: both surface as
// [ErrChallengeFailed], so a failing provider never silently admits clients.
//
// VerifyChallenge may return an error when input validation, dependency calls, or security checks fail.
// VerifyChallenge does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) VerifyChallenge(ctx context.Context, fp, challengeToken string) (VerifyResult, error) {
	if e == nil || e.tokens == nil || e.fingerprints == nil || e.picker == nil {
		return VerifyResult{}, ErrEngineNotReady
	}
	if fp == "" {
		return VerifyResult{}, ErrFingerprintRequired
	}

	ip := clientIPFromContext(ctx)
	if err := e.allow(ctx, e.publicPolicy, ip); err != nil {
		e.emitAudit(ctx, auditEventChallengeRateLimit, false, fp, "", err, nil)
		return VerifyResult{}, err
	}

	hasToken, err := e.tokens.HasValid(ctx, fp)
	if err != nil {
		return VerifyResult{}, err
	}
	if hasToken {
		e.metricInc(MetricChallengeShortCircuit)
		e.emitAudit(ctx, auditEventChallengeShortCut, true, fp, "", nil, nil)
		return VerifyResult{Verified: true}, nil
	}

	verifier := e.picker.Pick(fp)
	result := verifier.Verify(ctx, challengeToken, ip)
	if !result.Success {
		e.metricInc(MetricChallengeFailure)
		e.emitAudit(ctx, auditEventChallengeFailure, false, fp, "", ErrChallengeFailed, func() map[string]string {
			return map[string]string{"provider": verifier.Name()}
		})
		return VerifyResult{}, ErrChallengeFailed
	}

	updated, err := e.fingerprints.MarkVerified(ctx, fp)
	if err != nil {
		return VerifyResult{}, err
	}
	if !updated {
		// The fingerprint lapsed between report and solve; the client has
		// to start over so the token TTL window stays anchored to a live
		// fingerprint.
		e.emitAudit(ctx, auditEventChallengeFailure, false, fp, "", ErrFingerprintExpired, nil)
		return VerifyResult{}, ErrFingerprintExpired
	}

	tok, expiresAt, err := e.tokens.Mint(ctx, fp)
	if err != nil {
		return VerifyResult{}, err
	}

	e.metricInc(MetricChallengeSuccess)
	e.metricInc(MetricTokenMinted)
	e.emitAudit(ctx, auditEventChallengeSuccess, true, fp, "", nil, func() map[string]string {
		return map[string]string{"provider": verifier.Name()}
	})

	return VerifyResult{Verified: true, AccessToken: tok, ExpiresAt: expiresAt}, nil
}

// CheckAccessToken reports whether tok is a live access token minted for fp.
//
// CheckAccessToken may return an error when input validation, dependency calls, or security checks fail.
// CheckAccessToken does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) CheckAccessToken(ctx context.Context, tok, fp string) (bool, error) {
	if e == nil || e.tokens == nil {
		return false, ErrEngineNotReady
	}
	if tok == "" || fp == "" {
		return false, nil
	}

	ok, err := e.tokens.Validate(ctx, tok, fp)
	if err != nil {
		return false, err
	}

	if ok {
		e.metricInc(MetricTokenValid)
	} else {
		e.metricInc(MetricTokenInvalid)
	}
	e.emitAudit(ctx, auditEventTokenChecked, ok, fp, "", nil, nil)

	return ok, nil
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
