package goShield

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventFingerprintReported  = "fingerprint_reported"
	auditEventFingerprintRateLimit = "fingerprint_rate_limited"
	auditEventChallengeSuccess     = "challenge_success"
	auditEventChallengeFailure     = "challenge_failure"
	auditEventChallengeShortCut    = "challenge_already_verified"
	auditEventChallengeRateLimit   = "challenge_rate_limited"
	auditEventTokenChecked         = "token_checked"
	auditEventBanCreated           = "ban_created"
	auditEventBanRemoved           = "ban_removed"
	auditEventBanRateLimited       = "ban_rate_limited"
	auditEventBanCheckFallback     = "ban_check_cache_fallback"
	auditEventCleanupRun           = "cleanup_run"
	auditEventSyncRun              = "sync_run"
)

// AuditErrorCode defines a public type used by goShield APIs.
//
// AuditErrorCode instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditErrorCode string

const (
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrChallengeFailed    AuditErrorCode = "challenge_failed"
	auditErrFingerprintExpired AuditErrorCode = "fingerprint_expired"
	auditErrFingerprintMissing AuditErrorCode = "fingerprint_required"
	auditErrInvalidKey         AuditErrorCode = "invalid_key"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	fingerprint string,
	key string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp:   time.Now().UTC(),
		EventType:   eventType,
		Fingerprint: fingerprint,
		UserID:      userIDFromContext(ctx),
		Key:         key,
		IP:          clientIPFromContext(ctx),
		Success:     success,
		Metadata:    metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrChallengeFailed):
		return auditErrChallengeFailed
	case errors.Is(err, ErrFingerprintExpired):
		return auditErrFingerprintExpired
	case errors.Is(err, ErrFingerprintRequired):
		return auditErrFingerprintMissing
	case errors.Is(err, ErrInvalidBanKey):
		return auditErrInvalidKey
	case errors.Is(err, ErrBanBackendUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
