// Package asynchook moves statecache.Hooks callbacks off the call path.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    HitEvery: 100, // sample logs: ~every 100th hit
//	})
//
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	eng, _ := statecache.New(target, statecache.Options{
//	    Dispatch: policy,
//	    Hooks:    hooks, // or `raw` if you don't want async
//	})
//
// Events are dropped when the queue is full; Dropped reports how many.
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/statecache"
	"github.com/unkn0wn-root/statecache/fingerprint"
)

type Hooks struct {
	inner   statecache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex // guards closed against sends on a closed q
	closed  bool
	dropped atomic.Uint64
}

var _ statecache.Hooks = (*Hooks)(nil)

func New(inner statecache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Later events are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped returns the number of events discarded so far.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default: // drop
		h.dropped.Add(1)
	}
}

func (h *Hooks) CacheHit(m statecache.Method, s fingerprint.Key) {
	h.try(func() { h.inner.CacheHit(m, s) })
}
func (h *Hooks) CacheMiss(m statecache.Method, s fingerprint.Key) {
	h.try(func() { h.inner.CacheMiss(m, s) })
}
func (h *Hooks) StateTransition(from, to fingerprint.Key, reused bool, n int) {
	h.try(func() { h.inner.StateTransition(from, to, reused, n) })
}
func (h *Hooks) Swept(s statecache.SweepStats) { h.try(func() { h.inner.Swept(s) }) }
func (h *Hooks) InvocationFailed(m statecache.Method, err error) {
	h.try(func() { h.inner.InvocationFailed(m, err) })
}
func (h *Hooks) FlagWriteFailed(err error) { h.try(func() { h.inner.FlagWriteFailed(err) }) }
func (h *Hooks) FingerprintDegraded(s fingerprint.Key, err error) {
	h.try(func() { h.inner.FingerprintDegraded(s, err) })
}
