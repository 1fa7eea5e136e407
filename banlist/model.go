package banlist

import (
	"errors"
	"net/netip"
	"strings"
	"time"
)

// ErrInvalidKey is an exported constant or variable used by the bot-mitigation engine.
var ErrInvalidKey = errors.New("invalid ip or cidr")

// ErrCacheUnavailable is an exported constant or variable used by the bot-mitigation engine.
var ErrCacheUnavailable = errors.New("ban cache unavailable")

// ErrStoreUnavailable is an exported constant or variable used by the bot-mitigation engine.
var ErrStoreUnavailable = errors.New("ban store unavailable")

// Origin marks how a ban was created. Observability only: merge logic never
// consults it.
type Origin string

const (
	// OriginManual is an exported constant or variable used by the bot-mitigation engine.
	OriginManual Origin = "manual"
	// OriginAuto is an exported constant or variable used by the bot-mitigation engine.
	OriginAuto Origin = "auto"
)

const (
	minBanMinutes = 1
	maxBanMinutes = 1440
)

// Ban is one ban record, keyed by a normalized single address or CIDR block.
// At most one logically-active ban exists per key per backend.
type Ban struct {
	ID          string
	Key         string
	Reason      string
	Origin      Origin
	Fingerprint string
	UserAgent   string
	BannedAt    time.Time
	ExpiresAt   time.Time
}

// Active reports whether the ban is still in force at now.
func (b Ban) Active(now time.Time) bool {
	return b.ExpiresAt.After(now)
}

// IsCIDR reports whether the ban key is a CIDR block rather than a single
// address.
func (b Ban) IsCIDR() bool {
	return strings.Contains(b.Key, "/")
}

// Match is the result of a ban lookup against either backend.
type Match struct {
	Banned    bool
	Reason    string
	ExpiresAt time.Time
}

// Stats summarizes durable ban rows for observability.
type Stats struct {
	Total   int64
	Active  int64
	Expired int64
}

// ClampDuration converts a requested ban length in minutes into a duration,
// clamped to [1, 1440] minutes.
func ClampDuration(minutes int) time.Duration {
	if minutes < minBanMinutes {
		minutes = minBanMinutes
	}
	if minutes > maxBanMinutes {
		minutes = maxBanMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// NormalizeKey validates key as a single IPv4/IPv6 address or CIDR block and
// returns its canonical text form. CIDR blocks are masked to their prefix, so
// "10.1.2.3/8" and "10.0.0.0/8" normalize to the same key.
func NormalizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", ErrInvalidKey
	}

	if strings.Contains(key, "/") {
		p, err := netip.ParsePrefix(key)
		if err != nil {
			return "", ErrInvalidKey
		}
		return p.Masked().String(), nil
	}

	a, err := netip.ParseAddr(key)
	if err != nil {
		return "", ErrInvalidKey
	}
	return a.String(), nil
}

// Contains reports whether ip is covered by the normalized key: equal to a
// single banned address, or inside a banned CIDR block.
func Contains(key, ip string) bool {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return false
	}
	addr = addr.Unmap()

	if strings.Contains(key, "/") {
		p, err := netip.ParsePrefix(key)
		if err != nil {
			return false
		}
		return p.Contains(addr)
	}

	k, err := netip.ParseAddr(key)
	if err != nil {
		return false
	}
	return k.Unmap() == addr
}
