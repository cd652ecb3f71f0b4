package statecache

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/unkn0wn-root/statecache/fingerprint"
	"github.com/unkn0wn-root/statecache/internal/util"
)

var (
	hitTrue  = func() *bool { b := true; return &b }()
	hitFalse = func() *bool { b := false; return &b }()
)

// engine keeps three lock domains apart:
//   - regMu guards registry and swaps of active;
//   - each stateCache.mu guards that state's entries (read path, pruning);
//   - active is an atomic pointer, so the read path never touches regMu.
//
// Lock order is regMu before stateCache.mu. The read path holds only a
// stateCache.mu and drops it before calling reattach.
type engine[T any] struct {
	name     string
	target   T
	obj      any
	dispatch Dispatch
	invoker  Invoker
	resolver MethodResolver
	flag     HitFlag
	fp       *fingerprint.Fingerprinter
	log      Logger
	hooks    Hooks
	now      func() time.Time
	keyArgs  bool
	fields   Fields

	// flagMu serializes the engine's own writes of the hit flag.
	flagMu sync.Mutex

	regMu    sync.Mutex
	registry map[fingerprint.Key]*stateCache
	active   atomic.Pointer[stateCache]

	sweepInterval time.Duration
	sweepWorkers  int

	// background sweep
	ticker    *time.Ticker
	stopCh    chan struct{}
	closeWg   sync.WaitGroup
	closeOnce sync.Once
}

func newEngine[T any](target T, opts Options) (*engine[T], error) {
	obj := any(target)
	if isNilTarget(obj) {
		return nil, ErrNilTarget
	}

	dispatch := opts.Dispatch
	if dispatch == nil {
		if pp, ok := obj.(PolicyProvider); ok {
			dispatch = pp.CachePolicy()
		}
	}
	if dispatch == nil {
		return nil, ErrNoDispatch
	}

	e := &engine[T]{
		target:   target,
		obj:      obj,
		dispatch: dispatch,
		keyArgs:  opts.KeyArgs,
		registry: make(map[fingerprint.Key]*stateCache),
	}

	// defaults
	e.name = opts.Name
	if e.name == "" {
		e.name = uuid.NewString()
	}
	e.log = coalesce[Logger](opts.Logger, NopLogger{})
	e.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	e.invoker = coalesce[Invoker](opts.Invoker, ReflectInvoker{})
	e.resolver, _ = e.invoker.(MethodResolver)
	e.flag = opts.HitFlag
	if e.flag == nil {
		e.flag = defaultHitFlag(obj)
	}
	e.fp = opts.Fingerprinter
	if e.fp == nil {
		e.fp = fingerprint.New()
	}
	if ff, ok := e.flag.(fieldFlag); ok {
		e.fp = e.fp.Skipping(ff.name)
	}
	e.now = opts.Now
	if e.now == nil {
		e.now = time.Now
	}
	e.sweepInterval = coalesce(opts.SweepInterval, DefaultSweepInterval)
	e.sweepWorkers = coalesce(opts.SweepWorkers, defaultSweepWorkers)
	if e.sweepWorkers < 0 {
		e.log.Warn("negative SweepWorkers; using 1", Fields{"engine": e.name, "workers": opts.SweepWorkers})
		e.sweepWorkers = defaultSweepWorkers
	}
	e.fields = Fields{"engine": e.name}

	initial := newStateCache(e.fingerprint())
	e.registry[initial.key] = initial
	e.active.Store(initial)

	if e.sweepInterval > 0 {
		e.ticker = time.NewTicker(e.sweepInterval)
		e.stopCh = make(chan struct{})
		e.closeWg.Add(1)
		go e.sweepLoop()
	}
	return e, nil
}

func isNilTarget(obj any) bool {
	if obj == nil {
		return true
	}
	v := reflect.ValueOf(obj)
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}

func (e *engine[T]) Target() T { return e.target }

func (e *engine[T]) ActiveState() fingerprint.Key { return e.active.Load().key }

func (e *engine[T]) Close() error {
	e.StopBackgroundSweep()
	return nil
}

func (e *engine[T]) Handle(ctx context.Context, m Method, args ...any) (any, error) {
	e.setHit(nil)

	kind, ttl := classify(e.dispatch, m)
	if kind != kindPlain && e.resolver != nil && !e.resolver.HasMethod(e.obj, m) {
		e.log.Warn("dispatch metadata names a method the target lacks; passing through",
			e.fields.with("method", string(m), "kind", kind.String()))
		kind = kindPlain
	}

	switch kind {
	case kindMutator:
		return e.mutate(ctx, m, args)
	case kindCacheable:
		return e.readOrPopulate(ctx, m, ttl, args)
	default:
		return e.invoke(ctx, m, args)
	}
}

func (e *engine[T]) invoke(ctx context.Context, m Method, args []any) (any, error) {
	res, err := e.invoker.Invoke(ctx, e.obj, m, args)
	if err != nil {
		e.hooks.InvocationFailed(m, err)
		return res, wrapInvocation(m, err)
	}
	return res, nil
}

// mutate runs a mutator and, if it succeeded, moves to the new state.
func (e *engine[T]) mutate(ctx context.Context, m Method, args []any) (any, error) {
	res, err := e.invoke(ctx, m, args)
	if err != nil {
		return res, err
	}
	e.transition()
	return res, nil
}

// transition activates the StateCache of the target's current state, creating
// and registering it on first sight. The fingerprint is computed outside the
// registry lock; concurrent mutators of one target are not supported.
func (e *engine[T]) transition() {
	key := e.fingerprint()

	e.regMu.Lock()
	from := e.active.Load()
	st, reused := e.registry[key]
	if !reused {
		st = newStateCache(key)
		e.registry[key] = st
	}
	e.active.Store(st)
	size := len(e.registry)
	e.regMu.Unlock()

	if from != st {
		e.log.Debug("state transition", e.fields.with(
			"from", from.key.Short(), "to", key.Short(), "reused", reused, "states", size))
	}
	e.hooks.StateTransition(from.key, key, reused, size)
}

// readOrPopulate serves m from the active StateCache or runs it and stores the
// result. The real method runs under the StateCache lock.
func (e *engine[T]) readOrPopulate(ctx context.Context, m Method, ttl time.Duration, args []any) (any, error) {
	key := string(m)
	if e.keyArgs {
		k, err := util.ArgsKey(key, args)
		if err != nil {
			e.log.Warn("cannot key arguments; bypassing cache", e.fields.with("method", key, "err", err))
			return e.invoke(ctx, m, args)
		}
		key = k
	}

	st := e.lockActive()
	defer st.mu.Unlock()

	now := e.now()
	if ent, ok := st.entries[key]; ok && ent.live(now) {
		ent.touch(now)
		e.setHit(hitTrue)
		e.hooks.CacheHit(m, st.key)
		return ent.result, nil
	}

	e.hooks.CacheMiss(m, st.key)
	res, err := e.invoke(ctx, m, args)
	if err != nil {
		// failures are not cached and leave the flag unset
		return res, err
	}
	e.setHit(hitFalse)
	st.entries[key] = newTimedEntry(res, ttl, e.now())
	return res, nil
}

// lockActive returns the active StateCache with its lock held. A state the
// sweeper retired is replaced first.
func (e *engine[T]) lockActive() *stateCache {
	st := e.active.Load()
	for {
		st.mu.Lock()
		if !st.retired {
			return st
		}
		st.mu.Unlock()
		st = e.reattach(st)
	}
}

// reattach registers a fresh StateCache for a retired active state.
func (e *engine[T]) reattach(old *stateCache) *stateCache {
	e.regMu.Lock()
	defer e.regMu.Unlock()
	if cur := e.active.Load(); cur != old {
		return cur
	}
	st, ok := e.registry[old.key]
	if !ok {
		st = newStateCache(old.key)
		e.registry[old.key] = st
	}
	e.active.Store(st)
	e.log.Debug("active state was swept; re-registered", e.fields.with("state", old.key.Short()))
	return st
}

func (e *engine[T]) fingerprint() fingerprint.Key {
	k, err := e.fp.Of(e.obj)
	if err != nil {
		e.log.Warn("unreadable fields fingerprinted as empty", e.fields.with("state", k.Short(), "err", err))
		e.hooks.FingerprintDegraded(k, err)
	}
	return k
}

func (e *engine[T]) setHit(hit *bool) {
	if e.flag == nil {
		return
	}
	e.flagMu.Lock()
	err := e.writeFlag(hit)
	e.flagMu.Unlock()
	if err != nil {
		e.log.Warn("cannot set cache-hit flag", e.fields.with("err", err))
		e.hooks.FlagWriteFailed(err)
	}
}

func (e *engine[T]) writeFlag(hit *bool) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hit flag panicked: %v", r)
		}
	}()
	return e.flag.SetHit(e.obj, hit)
}
