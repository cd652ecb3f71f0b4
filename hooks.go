package statecache

import "github.com/unkn0wn-root/statecache/fingerprint"

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The engine calls them on hot paths, some while holding a StateCache lock.
type Hooks interface {
	// A cacheable call was served from the active StateCache.
	CacheHit(m Method, state fingerprint.Key)
	// A cacheable call invoked the real method (no entry, or the entry was dead).
	CacheMiss(m Method, state fingerprint.Key)

	// A mutator changed the active StateCache.
	// reused is true when an existing StateCache was reactivated.
	StateTransition(from, to fingerprint.Key, reused bool, registrySize int)

	// A sweep pass finished (background or RunSweepNow).
	Swept(stats SweepStats)

	// The real method failed; err is the underlying failure.
	InvocationFailed(m Method, err error)

	// Best-effort failures that never reach the caller.
	FlagWriteFailed(err error)
	FingerprintDegraded(state fingerprint.Key, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) CacheHit(Method, fingerprint.Key)                            {}
func (NopHooks) CacheMiss(Method, fingerprint.Key)                           {}
func (NopHooks) StateTransition(fingerprint.Key, fingerprint.Key, bool, int) {}
func (NopHooks) Swept(SweepStats)                                            {}
func (NopHooks) InvocationFailed(Method, error)                              {}
func (NopHooks) FlagWriteFailed(error)                                       {}
func (NopHooks) FingerprintDegraded(fingerprint.Key, error)                  {}
