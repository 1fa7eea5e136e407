package goShield

import (
	"context"
	"time"

	"github.com/MrEthical07/goShield/banlist"
	"github.com/MrEthical07/goShield/fingerprint"
)

// FingerprintStore defines a public type used by goShield APIs.
//
// FingerprintStore instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type FingerprintStore interface {
	ReportFirstSeen(ctx context.Context, id string) (fingerprint.Report, error)
	MarkVerified(ctx context.Context, id string) (bool, error)
	Status(ctx context.Context, id string) (fingerprint.Status, error)
	CleanupExpired(ctx context.Context) (int64, error)
}

// AccessTokenStore defines a public type used by goShield APIs.
//
// AccessTokenStore instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AccessTokenStore interface {
	Mint(ctx context.Context, fingerprint string) (string, time.Time, error)
	Validate(ctx context.Context, token, fingerprint string) (bool, error)
	HasValid(ctx context.Context, fingerprint string) (bool, error)
	CleanupExpired(ctx context.Context) (int64, error)
}

// FingerprintReport defines a public type used by goShield APIs.
//
// FingerprintReport instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type FingerprintReport struct {
	IsFirstVisit bool
	Verified     bool
}

// FingerprintStatus defines a public type used by goShield APIs.
//
// FingerprintStatus instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type FingerprintStatus struct {
	Exists   bool
	Verified bool
}

// VerifyResult defines a public type used by goShield APIs.
//
// VerifyResult instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type VerifyResult struct {
	Verified bool
	// AccessToken is empty when the fingerprint already held a live token
	// and no new one was minted.
	AccessToken string
	ExpiresAt   time.Time
}

// BanRequest defines a public type used by goShield APIs.
//
// BanRequest instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type BanRequest struct {
	Key             string
	Reason          string
	DurationMinutes int
	Origin          banlist.Origin
	Fingerprint     string
	UserAgent       string
}

// BanResult defines a public type used by goShield APIs.
//
// BanResult instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type BanResult struct {
	Key       string
	BannedAt  time.Time
	ExpiresAt time.Time
}

// BanCheck defines a public type used by goShield APIs.
//
// BanCheck instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type BanCheck struct {
	Banned    bool
	Reason    string
	ExpiresAt time.Time
}

// CleanupResult defines a public type used by goShield APIs.
//
// CleanupResult instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CleanupResult struct {
	Success bool
	Deleted int64
	// PerStore breaks the total down by record kind: "fingerprints",
	// "tokens", "bans".
	PerStore map[string]int64
	Err      error
}

// SyncResult defines a public type used by goShield APIs.
//
// SyncResult instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SyncResult struct {
	Success bool
	Report  banlist.SyncReport
	Err     error
}

// SchedulerStatus defines a public type used by goShield APIs.
//
// SchedulerStatus instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SchedulerStatus struct {
	Running     bool
	SyncEnabled bool
	LastCleanup time.Time
	LastSync    time.Time
}
