package statecache

import "time"

const (
	// DefaultSweepInterval is the period of the background sweeper.
	DefaultSweepInterval = 500 * time.Millisecond
	defaultSweepWorkers  = 1
)

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
