package queue

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDelay(t *testing.T) {
	b := DefaultBackoff()

	tests := []struct {
		name    string
		retries int
		want    time.Duration
	}{
		{name: "first retry", retries: 0, want: 2 * time.Second},
		{name: "second retry", retries: 1, want: 4 * time.Second},
		{name: "third retry", retries: 2, want: 8 * time.Second},
		{name: "sixth retry", retries: 5, want: 64 * time.Second},
		{name: "capped at max", retries: 20, want: 10 * time.Minute},
		{name: "negative clamps to first", retries: -3, want: 2 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, b.Delay(tt.retries))
		})
	}
}

func TestBackoffDelayOverflow(t *testing.T) {
	b := Backoff{Initial: time.Hour, Factor: 1e300, Max: 10 * time.Minute}
	assert.Equal(t, 10*time.Minute, b.Delay(5))
}

func TestBackoffNextRetryAt(t *testing.T) {
	b := DefaultBackoff()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, now.Add(2*time.Second), b.NextRetryAt(now, 0))
	assert.Equal(t, now.Add(8*time.Second), b.NextRetryAt(now, 2))
}

func TestApproxOverflowSaturates(t *testing.T) {
	// The sentinel must sit above any real depth a bounded probe can report.
	assert.Equal(t, int64(math.MaxInt64), ApproxOverflow)
}

func TestKeyValuesAreCopied(t *testing.T) {
	vals := []any{int64(1), "a"}
	k := NewKey(vals...)

	vals[0] = int64(99)
	assert.Equal(t, []any{int64(1), "a"}, k.Values())

	got := k.Values()
	got[1] = "mutated"
	assert.Equal(t, []any{int64(1), "a"}, k.Values())
}
