package captcha

import (
	"hash/fnv"
	"math/rand"
)

// Strategy defines a public type used by goShield APIs.
//
// Strategy instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Strategy int

const (
	// StrategyDeterministic routes each fingerprint to a stable provider, so
	// a visitor retrying a challenge always hits the same backend.
	StrategyDeterministic Strategy = iota
	// StrategyRandom picks a provider uniformly at random per request.
	StrategyRandom
)

// Picker selects one of two interchangeable providers per request.
type Picker struct {
	primary   Verifier
	secondary Verifier
	strategy  Strategy
}

// NewPicker creates a [Picker]. secondary may be nil, in which case every
// request goes to primary.
func NewPicker(primary, secondary Verifier, strategy Strategy) *Picker {
	return &Picker{
		primary:   primary,
		secondary: secondary,
		strategy:  strategy,
	}
}

// Pick returns the provider for one verification request. fingerprint seeds
// the deterministic strategy and is ignored by the random one.
func (p *Picker) Pick(fingerprint string) Verifier {
	if p == nil || p.primary == nil {
		return nil
	}
	if p.secondary == nil {
		return p.primary
	}

	switch p.strategy {
	case StrategyRandom:
		if rand.Intn(2) == 1 {
			return p.secondary
		}
		return p.primary
	default:
		h := fnv.New32a()
		_, _ = h.Write([]byte(fingerprint))
		if h.Sum32()%2 == 1 {
			return p.secondary
		}
		return p.primary
	}
}
