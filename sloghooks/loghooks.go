// Package sloghooks implements statecache.Hooks on top of log/slog.
package sloghooks

import (
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/statecache"
	"github.com/unkn0wn-root/statecache/fingerprint"
)

type Options struct {
	// Sampling to avoid floods on the read path; 0/1 = log all.
	HitEvery  uint64
	MissEvery uint64
	// Optional state redactor. Defaults to the key's xxhash (Key.Short);
	// raw keys carry field values.
	Redact func(fingerprint.Key) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	hitCtr  atomic.Uint64
	missCtr atomic.Uint64
}

var _ statecache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k fingerprint.Key) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	return k.Short()
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) CacheHit(m statecache.Method, state fingerprint.Key) {
	if h.l == nil || !sample(h.opts.HitEvery, &h.hitCtr) {
		return
	}
	h.l.Debug("statecache.hit",
		"method", string(m),
		"state", h.redact(state))
}

func (h *Hooks) CacheMiss(m statecache.Method, state fingerprint.Key) {
	if h.l == nil || !sample(h.opts.MissEvery, &h.missCtr) {
		return
	}
	h.l.Debug("statecache.miss",
		"method", string(m),
		"state", h.redact(state))
}

func (h *Hooks) StateTransition(from, to fingerprint.Key, reused bool, registrySize int) {
	if h.l == nil || from == to {
		return
	}
	h.l.Debug("statecache.transition",
		"from", h.redact(from),
		"to", h.redact(to),
		"reused", reused,
		"states", registrySize)
}

func (h *Hooks) Swept(s statecache.SweepStats) {
	if h.l == nil || (s.EntriesRemoved == 0 && s.StatesRemoved == 0) {
		return
	}
	h.l.Info("statecache.swept",
		"entries_removed", s.EntriesRemoved,
		"states_removed", s.StatesRemoved,
		"states", s.StatesRemaining,
		"took", s.Duration)
}

func (h *Hooks) InvocationFailed(m statecache.Method, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("statecache.invocation_failed",
		"method", string(m),
		"err", err)
}

func (h *Hooks) FlagWriteFailed(err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("statecache.flag_write_failed", "err", err)
}

func (h *Hooks) FingerprintDegraded(state fingerprint.Key, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("statecache.fingerprint_degraded",
		"state", h.redact(state),
		"err", err)
}
