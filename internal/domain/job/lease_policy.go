package job

import (
	"errors"
	"math"
	"time"
)

// ErrInvalidDefaultLease indicates the configured default lease duration is not positive.
var ErrInvalidDefaultLease = errors.New("default lease must be positive")

// LeasePolicy normalises requested lease durations to whole seconds for
// reservations and heartbeats. Zero requests fall back to the default,
// sub-second and negative requests clamp to one second.
type LeasePolicy struct {
	defaultLease time.Duration
}

// NewLeasePolicy constructs a LeasePolicy with the provided default lease duration.
func NewLeasePolicy(defaultLease time.Duration) (*LeasePolicy, error) {
	if defaultLease <= 0 {
		return nil, ErrInvalidDefaultLease
	}
	return &LeasePolicy{defaultLease: defaultLease}, nil
}

// Default returns the configured default lease duration.
func (p *LeasePolicy) Default() time.Duration {
	if p == nil {
		return 0
	}
	return p.defaultLease
}

// ResolveSeconds normalises the requested duration to whole seconds.
func (p *LeasePolicy) ResolveSeconds(request time.Duration) int {
	if p == nil {
		return 0
	}
	if request == 0 {
		request = p.defaultLease
	}
	return durationToSeconds(request)
}

func durationToSeconds(d time.Duration) int {
	seconds := int64(d / time.Second)
	if seconds <= 0 {
		return 1
	}
	if seconds > int64(math.MaxInt) {
		return math.MaxInt
	}
	return int(seconds)
}
