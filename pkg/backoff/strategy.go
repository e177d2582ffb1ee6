package backoff

import "time"

// Penalty is the delay inserted after any failed claim cycle, regardless of
// the kind of failure or how many failures came before it.
const Penalty = 60 * time.Second

// Strategy defines the interface for backoff strategies
type Strategy interface {
	// Delay returns the duration to wait before the next attempt
	// attempt is 1-based (1 for first retry, 2 for second retry, etc.)
	Delay(attempt int) time.Duration
}

// Fixed implements a fixed delay strategy
type Fixed struct {
	Duration time.Duration
}

// NewFixed creates a new Fixed backoff strategy
func NewFixed(duration time.Duration) *Fixed {
	if duration < 0 {
		duration = 0
	}
	return &Fixed{
		Duration: duration,
	}
}

// Delay returns the fixed duration for any attempt
func (f *Fixed) Delay(attempt int) time.Duration {
	return f.Duration
}

// NewPolicy returns the backoff policy used by claim schedulers: a flat
// Penalty with no growth and no retry ceiling.
func NewPolicy() Strategy {
	return NewFixed(Penalty)
}
