package queue

import (
	"math"
	"time"
)

// Backoff defaults.
const (
	DefaultBackoffInitial = 2 * time.Second
	DefaultBackoffFactor  = 2.0
	DefaultBackoffMax     = 10 * time.Minute
)

// Backoff computes the delay before a failed item becomes eligible again.
// The delay grows exponentially with the retry count and is capped at Max.
type Backoff struct {
	Initial time.Duration
	Factor  float64
	Max     time.Duration
}

// DefaultBackoff returns the standard retry backoff policy.
func DefaultBackoff() Backoff {
	return Backoff{
		Initial: DefaultBackoffInitial,
		Factor:  DefaultBackoffFactor,
		Max:     DefaultBackoffMax,
	}
}

// Delay returns the wait before attempt number retries+1. retries is the
// number of failures so far, so the first retry waits Initial.
func (b Backoff) Delay(retries int) time.Duration {
	if retries < 0 {
		retries = 0
	}
	d := float64(b.Initial) * math.Pow(b.Factor, float64(retries))
	if d > float64(b.Max) || math.IsInf(d, 1) {
		return b.Max
	}
	return time.Duration(d)
}

// NextRetryAt returns the retry-not-before timestamp for an item that just
// failed its (retries+1)-th attempt.
func (b Backoff) NextRetryAt(now time.Time, retries int) time.Time {
	return now.Add(b.Delay(retries))
}
