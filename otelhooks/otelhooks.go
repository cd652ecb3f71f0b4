// Package otelhooks records engine events with OpenTelemetry metric
// instruments.
package otelhooks

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/unkn0wn-root/statecache"
	"github.com/unkn0wn-root/statecache/fingerprint"
)

// Hooks is a statecache.Hooks backed by an otel Meter. Hooks have no context,
// so measurements are recorded with context.Background().
type Hooks struct {
	engine attribute.KeyValue

	calls       metric.Int64Counter
	failures    metric.Int64Counter
	transitions metric.Int64Counter
	states      metric.Int64Gauge
	swept       metric.Int64Counter
	sweepDur    metric.Float64Histogram
	problems    metric.Int64Counter
}

var _ statecache.Hooks = (*Hooks)(nil)

func New(meter metric.Meter, engine string) (*Hooks, error) {
	h := &Hooks{engine: attribute.String("statecache.engine", engine)}
	var err error

	if h.calls, err = meter.Int64Counter(
		"statecache.calls",
		metric.WithDescription("Cacheable calls by outcome (hit or miss)"),
		metric.WithUnit("{call}"),
	); err != nil {
		return nil, fmt.Errorf("create calls counter: %w", err)
	}
	if h.failures, err = meter.Int64Counter(
		"statecache.invocation.failures",
		metric.WithDescription("Failed real method invocations"),
		metric.WithUnit("{error}"),
	); err != nil {
		return nil, fmt.Errorf("create failures counter: %w", err)
	}
	if h.transitions, err = meter.Int64Counter(
		"statecache.transitions",
		metric.WithDescription("State transitions after mutators"),
		metric.WithUnit("{transition}"),
	); err != nil {
		return nil, fmt.Errorf("create transitions counter: %w", err)
	}
	if h.states, err = meter.Int64Gauge(
		"statecache.registry.states",
		metric.WithDescription("State caches in the registry"),
		metric.WithUnit("{state}"),
	); err != nil {
		return nil, fmt.Errorf("create states gauge: %w", err)
	}
	if h.swept, err = meter.Int64Counter(
		"statecache.swept",
		metric.WithDescription("Entries and states removed by the sweeper"),
	); err != nil {
		return nil, fmt.Errorf("create swept counter: %w", err)
	}
	if h.sweepDur, err = meter.Float64Histogram(
		"statecache.sweep.duration",
		metric.WithDescription("Sweep pass duration in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, fmt.Errorf("create sweep histogram: %w", err)
	}
	if h.problems, err = meter.Int64Counter(
		"statecache.degraded",
		metric.WithDescription("Best-effort failures: flag writes and unreadable fields"),
	); err != nil {
		return nil, fmt.Errorf("create degraded counter: %w", err)
	}
	return h, nil
}

func (h *Hooks) attrs(kv ...attribute.KeyValue) metric.MeasurementOption {
	return metric.WithAttributes(append([]attribute.KeyValue{h.engine}, kv...)...)
}

func (h *Hooks) CacheHit(m statecache.Method, _ fingerprint.Key) {
	h.calls.Add(context.Background(), 1, h.attrs(
		attribute.String("statecache.method", string(m)),
		attribute.String("statecache.outcome", "hit")))
}

func (h *Hooks) CacheMiss(m statecache.Method, _ fingerprint.Key) {
	h.calls.Add(context.Background(), 1, h.attrs(
		attribute.String("statecache.method", string(m)),
		attribute.String("statecache.outcome", "miss")))
}

func (h *Hooks) StateTransition(_, _ fingerprint.Key, reused bool, registrySize int) {
	ctx := context.Background()
	h.transitions.Add(ctx, 1, h.attrs(attribute.Bool("statecache.reused", reused)))
	h.states.Record(ctx, int64(registrySize), h.attrs())
}

func (h *Hooks) Swept(s statecache.SweepStats) {
	ctx := context.Background()
	h.swept.Add(ctx, int64(s.EntriesRemoved), h.attrs(attribute.String("statecache.kind", "entry")))
	h.swept.Add(ctx, int64(s.StatesRemoved), h.attrs(attribute.String("statecache.kind", "state")))
	h.states.Record(ctx, int64(s.StatesRemaining), h.attrs())
	h.sweepDur.Record(ctx, float64(s.Duration.Microseconds())/1000, h.attrs())
}

func (h *Hooks) InvocationFailed(m statecache.Method, _ error) {
	h.failures.Add(context.Background(), 1, h.attrs(attribute.String("statecache.method", string(m))))
}

func (h *Hooks) FlagWriteFailed(error) {
	h.problems.Add(context.Background(), 1, h.attrs(attribute.String("statecache.kind", "flag")))
}

func (h *Hooks) FingerprintDegraded(fingerprint.Key, error) {
	h.problems.Add(context.Background(), 1, h.attrs(attribute.String("statecache.kind", "fingerprint")))
}
