package statecache

import "time"

// timedEntry is one cached result with a sliding deadline.
// A zero deadline means the entry never expires.
// Guarded by the lock of the stateCache holding it.
type timedEntry struct {
	result   any
	ttl      time.Duration
	deadline time.Time
}

func newTimedEntry(result any, ttl time.Duration, now time.Time) *timedEntry {
	e := &timedEntry{result: result, ttl: ttl}
	e.touch(now)
	return e
}

// live reports whether the entry may still be served. The deadline itself is
// still live.
func (e *timedEntry) live(now time.Time) bool {
	return e.deadline.IsZero() || !now.After(e.deadline)
}

// touch pushes the deadline to now+ttl. No-op for untimed entries.
func (e *timedEntry) touch(now time.Time) {
	if e.ttl > 0 {
		e.deadline = now.Add(e.ttl)
	}
}
