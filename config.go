package goShield

import (
	"errors"
	"time"
)

// Config defines a public type used by goShield APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Verification VerificationConfig
	Fingerprint  FingerprintConfig
	AccessToken  AccessTokenConfig
	Ban          BanConfig
	Scheduler    SchedulerConfig
	RateLimit    RateLimitConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
}

/*
====================================
VERIFICATION CONFIG
====================================
*/

// VerificationConfig defines a public type used by goShield APIs.
//
// VerificationConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type VerificationConfig struct {
	TurnstileSecret string
	HCaptchaSecret  string
	Disabled        bool
	Timeout         time.Duration
	PickerStrategy  string // "deterministic" (default) or "random"
}

/*
====================================
FINGERPRINT CONFIG
====================================
*/

// FingerprintConfig defines a public type used by goShield APIs.
//
// FingerprintConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type FingerprintConfig struct {
	TTL time.Duration
}

/*
====================================
ACCESS TOKEN CONFIG
====================================
*/

// AccessTokenConfig defines a public type used by goShield APIs.
//
// AccessTokenConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AccessTokenConfig struct {
	TTL time.Duration
}

/*
====================================
BAN CONFIG
====================================
*/

// BanConfig defines a public type used by goShield APIs.
//
// BanConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type BanConfig struct {
	RedisPrefix string
}

/*
====================================
SCHEDULER CONFIG
====================================
*/

// SchedulerConfig defines a public type used by goShield APIs.
//
// SchedulerConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SchedulerConfig struct {
	CleanupInterval time.Duration
	SyncInterval    time.Duration
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// PolicyConfig defines a public type used by goShield APIs.
//
// PolicyConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PolicyConfig struct {
	Max    int
	Window time.Duration
}

// RateLimitConfig defines a public type used by goShield APIs.
//
// RateLimitConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RateLimitConfig struct {
	RedisPrefix string
	Public      PolicyConfig
	Fingerprint PolicyConfig
	UserReport  PolicyConfig
	Admin       PolicyConfig
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig defines a public type used by goShield APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig defines a public type used by goShield APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

func defaultConfig() Config {
	return Config{
		Verification: VerificationConfig{
			Disabled:       false,
			Timeout:        10 * time.Second,
			PickerStrategy: "deterministic",
		},
		Fingerprint: FingerprintConfig{
			TTL: 5 * time.Minute,
		},
		AccessToken: AccessTokenConfig{
			TTL: 5 * time.Minute,
		},
		Ban: BanConfig{
			RedisPrefix: "bgb",
		},
		Scheduler: SchedulerConfig{
			CleanupInterval: 5 * time.Minute,
			SyncInterval:    5 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			RedisPrefix: "bgr",
			Public:      PolicyConfig{Max: 30, Window: time.Minute},
			Fingerprint: PolicyConfig{Max: 10, Window: time.Minute},
			UserReport:  PolicyConfig{Max: 5, Window: time.Minute},
			Admin:       PolicyConfig{Max: 60, Window: time.Minute},
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(c Config) Config {
	// All fields are value types today; the copy exists so callers can keep
	// mutating their Config after Build without affecting the engine.
	return c
}

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	// Verification
	if c.Verification.Timeout <= 0 {
		return errors.New("Verification Timeout must be > 0")
	}
	switch c.Verification.PickerStrategy {
	case "deterministic", "random":
	default:
		return errors.New("Verification PickerStrategy must be 'deterministic' or 'random'")
	}

	// Fingerprint
	if c.Fingerprint.TTL <= 0 {
		return errors.New("Fingerprint TTL must be > 0")
	}

	// Access token
	if c.AccessToken.TTL <= 0 {
		return errors.New("AccessToken TTL must be > 0")
	}

	// Ban
	if c.Ban.RedisPrefix == "" {
		return errors.New("Ban RedisPrefix is required")
	}

	// Scheduler
	if c.Scheduler.CleanupInterval <= 0 {
		return errors.New("Scheduler CleanupInterval must be > 0")
	}
	if c.Scheduler.SyncInterval <= 0 {
		return errors.New("Scheduler SyncInterval must be > 0")
	}

	// Rate limits
	if c.RateLimit.RedisPrefix == "" {
		return errors.New("RateLimit RedisPrefix is required")
	}
	for _, p := range []struct {
		name   string
		policy PolicyConfig
	}{
		{"Public", c.RateLimit.Public},
		{"Fingerprint", c.RateLimit.Fingerprint},
		{"UserReport", c.RateLimit.UserReport},
		{"Admin", c.RateLimit.Admin},
	} {
		if p.policy.Max <= 0 {
			return errors.New("RateLimit " + p.name + " Max must be > 0")
		}
		if p.policy.Window <= 0 {
			return errors.New("RateLimit " + p.name + " Window must be > 0")
		}
	}

	// Audit
	if c.Audit.Enabled {
		if c.Audit.BufferSize <= 0 {
			return errors.New("Audit BufferSize must be > 0 when audit is enabled")
		}
	}

	return nil
}
