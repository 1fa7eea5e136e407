package goShield

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEngineNotReady is an exported constant or variable used by the bot-mitigation engine.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrFingerprintRequired is an exported constant or variable used by the bot-mitigation engine.
	ErrFingerprintRequired = errors.New("fingerprint required")
	// ErrFingerprintExpired is an exported constant or variable used by the bot-mitigation engine.
	ErrFingerprintExpired = errors.New("fingerprint expired, restart verification")
	// ErrChallengeFailed is an exported constant or variable used by the bot-mitigation engine.
	ErrChallengeFailed = errors.New("challenge verification failed")
	// ErrInvalidBanKey is an exported constant or variable used by the bot-mitigation engine.
	ErrInvalidBanKey = errors.New("invalid ban key")
	// ErrBanBackendUnavailable is an exported constant or variable used by the bot-mitigation engine.
	ErrBanBackendUnavailable = errors.New("ban backend unavailable")
	// ErrRateLimited is an exported constant or variable used by the bot-mitigation engine.
	ErrRateLimited = errors.New("rate limited")
)

// RateLimitError defines a public type used by goShield APIs.
//
// RateLimitError instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RateLimitError struct {
	Policy     string
	RetryAfter time.Duration
}

// Error describes the error operation and its observable behavior.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited on %s policy, retry after %s", e.Policy, e.RetryAfter)
}

// Is reports whether target matches the generic [ErrRateLimited] sentinel, so
// callers can branch with errors.Is without caring which policy tripped.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}
