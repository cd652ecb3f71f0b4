package statecache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/unkn0wn-root/statecache/fingerprint"
)

// ==============================
// Test doubles
// ==============================

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

var errBoom = errors.New("boom")

type fraction struct {
	num   int
	denum int
}

func (f *fraction) SetNum(n int)   { f.num = n }
func (f *fraction) SetDenum(d int) { f.denum = d }
func (f *fraction) DoubleValue() float64 {
	return float64(f.num) / float64(f.denum)
}

// fraction4Test counts real invocations and exposes the hit flag.
type fraction4Test struct {
	fraction
	ReturnFromCache *bool `statecache:"hit"`
	calls           int   `statecache:"-"`
}

func (f *fraction4Test) DoubleValue() float64 {
	f.calls++
	return f.fraction.DoubleValue()
}

// Scaled depends on its argument, which the default entry key ignores.
func (f *fraction4Test) Scaled(k int) float64 {
	f.calls++
	return float64(k) * f.fraction.DoubleValue()
}

func (f *fraction4Test) Fail() (float64, error) {
	f.calls++
	return 0, errBoom
}

func (f *fraction4Test) Explode() float64 {
	f.calls++
	panic("kaboom")
}

// SetNumChecked mutates and then fails for negative input.
func (f *fraction4Test) SetNumChecked(n int) error {
	f.num = n
	if n < 0 {
		return fmt.Errorf("negative numerator %d", n)
	}
	return nil
}

func (f *fraction4Test) Describe(ctx context.Context) string {
	v, _ := ctx.Value(ctxKey{}).(string)
	return v
}

// Reset is both a mutator and cacheable in some tests.
func (f *fraction4Test) Reset() float64 {
	f.calls++
	f.num, f.denum = 0, 1
	return 0
}

type ctxKey struct{}

func hit(f *fraction4Test) string {
	if f.ReturnFromCache == nil {
		return "unset"
	}
	return fmt.Sprint(*f.ReturnFromCache)
}

func fractionPolicy() *Policy {
	return NewPolicy().
		Mutator("SetNum", "SetDenum", "SetNumChecked").
		Cacheable("DoubleValue", time.Second).
		Cacheable("Scaled", time.Second).
		Cacheable("Fail", time.Second).
		Cacheable("Explode", time.Second)
}

type entry struct {
	msg string
	f   Fields
}

type recordingLogger struct {
	mu    sync.Mutex
	warns []entry
	errs  []entry
}

func (l *recordingLogger) Debug(string, Fields) {}
func (l *recordingLogger) Info(string, Fields)  {}
func (l *recordingLogger) Warn(msg string, f Fields) {
	l.mu.Lock()
	l.warns = append(l.warns, entry{msg, f})
	l.mu.Unlock()
}
func (l *recordingLogger) Error(msg string, f Fields) {
	l.mu.Lock()
	l.errs = append(l.errs, entry{msg, f})
	l.mu.Unlock()
}

func (l *recordingLogger) warnCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.warns)
}

type recordingHooks struct {
	NopHooks
	mu          sync.Mutex
	hits        int
	misses      int
	transitions []bool // reused flags
	sweeps      []SweepStats
	failures    []error
	flagErrs    int
	degraded    int
}

func (h *recordingHooks) CacheHit(Method, fingerprint.Key) {
	h.mu.Lock()
	h.hits++
	h.mu.Unlock()
}

func (h *recordingHooks) CacheMiss(Method, fingerprint.Key) {
	h.mu.Lock()
	h.misses++
	h.mu.Unlock()
}

func (h *recordingHooks) StateTransition(_, _ fingerprint.Key, reused bool, _ int) {
	h.mu.Lock()
	h.transitions = append(h.transitions, reused)
	h.mu.Unlock()
}

func (h *recordingHooks) Swept(s SweepStats) {
	h.mu.Lock()
	h.sweeps = append(h.sweeps, s)
	h.mu.Unlock()
}

func (h *recordingHooks) InvocationFailed(_ Method, err error) {
	h.mu.Lock()
	h.failures = append(h.failures, err)
	h.mu.Unlock()
}

func (h *recordingHooks) FlagWriteFailed(error) {
	h.mu.Lock()
	h.flagErrs++
	h.mu.Unlock()
}

func (h *recordingHooks) FingerprintDegraded(fingerprint.Key, error) {
	h.mu.Lock()
	h.degraded++
	h.mu.Unlock()
}

func newTestEngine(t *testing.T, target *fraction4Test, clk *fakeClock, optsOpt func(*Options)) Engine[*fraction4Test] {
	t.Helper()
	opts := Options{
		Name:          "test",
		Dispatch:      fractionPolicy(),
		SweepInterval: -1, // sweeps are driven by the test
		Now:           clk.Now,
	}
	if optsOpt != nil {
		optsOpt(&opts)
	}
	e, err := New(target, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func mustImpl[T any](t *testing.T, e Engine[T]) *engine[T] {
	t.Helper()
	impl, ok := e.(*engine[T])
	if !ok {
		t.Fatalf("unexpected concrete type for Engine")
	}
	return impl
}

func double(t *testing.T, e Engine[*fraction4Test]) float64 {
	t.Helper()
	v, err := Call[float64](context.Background(), e, "DoubleValue")
	if err != nil {
		t.Fatalf("DoubleValue: %v", err)
	}
	return v
}

func mutate(t *testing.T, e Engine[*fraction4Test], m Method, arg int) {
	t.Helper()
	if _, err := e.Handle(context.Background(), m, arg); err != nil {
		t.Fatalf("%s(%d): %v", m, arg, err)
	}
}
