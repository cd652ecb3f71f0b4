package statecache

import (
	"context"
	"fmt"
	"time"

	"github.com/unkn0wn-root/statecache/fingerprint"
)

// Engine is the memoizing cache in front of one wrapped object. T is the type
// of the wrapped object, normally a pointer to a struct.
//
// A hand-written wrapper implements the object's interface by forwarding each
// method to Handle (or the typed Call helper).
type Engine[T any] interface {
	// Target returns the wrapped object.
	Target() T

	// Handle processes one intercepted call: mutators run and then move the
	// engine to the StateCache of the new state, cacheable methods are served
	// from the active StateCache when possible, other methods pass through.
	// Failures of the real method come back as *InvocationError.
	Handle(ctx context.Context, m Method, args ...any) (any, error)

	// ActiveState returns the fingerprint of the active StateCache.
	ActiveState() fingerprint.Key

	// SnapshotRegistry returns a read-only copy of the registry.
	SnapshotRegistry() Snapshot

	// RunSweepNow runs one sweep pass synchronously.
	RunSweepNow() SweepStats

	// StopBackgroundSweep stops the periodic sweeper. Idempotent.
	StopBackgroundSweep()

	// Close stops the sweeper. The engine keeps serving calls afterwards.
	Close() error
}

// Options tune the engine. Only Dispatch is required, and even that may come
// from the target itself (PolicyProvider).
type Options struct {
	Name     string   // labels logs and metrics; "" => random UUID
	Dispatch Dispatch // nil => target's CachePolicy()

	Invoker       Invoker                    // nil => ReflectInvoker
	HitFlag       HitFlag                    // nil => HitRecorder or `statecache:"hit"` field, if any
	Fingerprinter *fingerprint.Fingerprinter // nil => fingerprint.New()

	Logger Logger // if nil, NopLogger is used
	Hooks  Hooks  // if nil, NopHooks is used

	SweepInterval time.Duration // 0 => 500ms; < 0 disables the background sweeper
	SweepWorkers  int           // StateCaches pruned in parallel; 0 => 1

	// KeyArgs keys cached results by (method, arguments) instead of by method
	// alone. Off by default: two calls to the same cacheable method in the same
	// state share one result whatever their arguments.
	KeyArgs bool

	Now func() time.Time // nil => time.Now
}

// New wraps target and computes its initial state.
func New[T any](target T, opts Options) (Engine[T], error) {
	return newEngine(target, opts)
}

// Call is Handle with the result asserted to R. A nil result yields R's zero
// value.
func Call[R any, T any](ctx context.Context, e Engine[T], m Method, args ...any) (R, error) {
	var zero R
	res, err := e.Handle(ctx, m, args...)
	if res == nil {
		return zero, err
	}
	r, ok := res.(R)
	if !ok {
		if err != nil {
			return zero, err
		}
		return zero, fmt.Errorf("%w: %s returned %T", ErrResultType, m, res)
	}
	return r, err
}
