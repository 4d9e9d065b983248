package realtime

import (
	"math"
	"math/rand/v2"
	"time"
)

// Backoff computes redial delays: Initial * Multiplier^attempt, spread by
// Randomization and capped at Max.
type Backoff struct {
	Initial       time.Duration
	Max           time.Duration
	Multiplier    float64
	Randomization float64

	rand func() float64
}

// DefaultBackoff waits 1s before the first redial and never more than 5s.
func DefaultBackoff() Backoff {
	return Backoff{
		Initial:       time.Second,
		Max:           5 * time.Second,
		Multiplier:    2,
		Randomization: 0.5,
	}
}

func (b Backoff) withDefaults() Backoff {
	d := DefaultBackoff()
	if b.Initial <= 0 {
		b.Initial = d.Initial
	}
	if b.Max <= 0 {
		b.Max = d.Max
	}
	if b.Max < b.Initial {
		b.Max = b.Initial
	}
	if b.Multiplier < 1 {
		b.Multiplier = d.Multiplier
	}
	if b.Randomization < 0 || b.Randomization > 1 {
		b.Randomization = d.Randomization
	}
	if b.rand == nil {
		b.rand = rand.Float64
	}
	return b
}

// Delay returns the wait before redial number attempt (0-based).
func (b Backoff) Delay(attempt int) time.Duration {
	b = b.withDefaults()
	if attempt < 0 {
		attempt = 0
	}

	d := float64(b.Initial) * math.Pow(b.Multiplier, float64(attempt))
	if b.Randomization > 0 {
		r := b.rand()
		dev := r * b.Randomization * d
		if int(r*10)&1 == 0 {
			d -= dev
		} else {
			d += dev
		}
	}

	if d > float64(b.Max) || math.IsInf(d, 1) {
		return b.Max
	}
	if d < 0 {
		return 0
	}
	return time.Duration(d)
}
