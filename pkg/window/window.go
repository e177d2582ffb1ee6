// Package window turns server-supplied claim timing hints into concrete waits.
package window

import (
	"fmt"
	"math"
	"time"
)

const (
	// GracePeriod is added to the server's remaining time before claiming,
	// to absorb clock skew between us and the server.
	GracePeriod = 5 * time.Second

	// FallbackInterval is used when the server gives no usable next claim time.
	FallbackInterval = 12*time.Hour + time.Minute
)

// maxRemainingMs is the largest remaining time that still fits in a
// time.Duration once the grace period is added.
const maxRemainingMs = uint64((math.MaxInt64 - int64(GracePeriod)) / int64(time.Millisecond))

// ComputeWait returns how long to sleep until reference, an RFC 3339
// timestamp reported by the server. A nil, unparseable or non-future
// reference yields FallbackInterval.
func ComputeWait(reference *string, now time.Time) time.Duration {
	if reference == nil {
		return FallbackInterval
	}

	next, err := time.Parse(time.RFC3339Nano, *reference)
	if err != nil {
		return FallbackInterval
	}

	if !next.After(now) {
		return FallbackInterval
	}

	return next.Sub(now)
}

// HasUsableReference reports whether ComputeWait would use reference rather
// than falling back.
func HasUsableReference(reference *string, now time.Time) bool {
	if reference == nil {
		return false
	}
	next, err := time.Parse(time.RFC3339Nano, *reference)
	return err == nil && next.After(now)
}

// EligibilityWait returns the wait before claiming when the server says the
// reward becomes available in remainingMs milliseconds.
func EligibilityWait(remainingMs uint64) time.Duration {
	if remainingMs > maxRemainingMs {
		remainingMs = maxRemainingMs
	}
	return time.Duration(remainingMs)*time.Millisecond + GracePeriod
}

// FormatWait renders d as whole hours and minutes, e.g. "0m", "59m", "2h"
// or "2h 5m". Seconds are truncated.
func FormatWait(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	totalMinutes := int64(d / time.Minute)
	hours := totalMinutes / 60
	minutes := totalMinutes % 60

	switch {
	case hours == 0:
		return fmt.Sprintf("%dm", minutes)
	case minutes == 0:
		return fmt.Sprintf("%dh", hours)
	default:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
}
