// Package promhooks exports engine events as Prometheus metrics.
//
//	hooks := promhooks.New(prometheus.DefaultRegisterer, "fraction")
//	eng, _ := statecache.New(target, statecache.Options{Dispatch: p, Hooks: hooks})
package promhooks

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/unkn0wn-root/statecache"
	"github.com/unkn0wn-root/statecache/fingerprint"
)

const namespace = "statecache"

type Hooks struct {
	hits        *prometheus.CounterVec
	misses      *prometheus.CounterVec
	failures    *prometheus.CounterVec
	transitions *prometheus.CounterVec
	states      prometheus.Gauge
	removed     *prometheus.CounterVec
	sweepTime   prometheus.Histogram
	flagErrors  prometheus.Counter
	degraded    prometheus.Counter
}

var _ statecache.Hooks = (*Hooks)(nil)

// New registers the collectors on reg with an engine=<engine> const label.
// Registering two Hooks with the same engine label on one registry panics.
func New(reg prometheus.Registerer, engine string) *Hooks {
	f := promauto.With(reg)
	cl := prometheus.Labels{"engine": engine}
	return &Hooks{
		hits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "hits_total", ConstLabels: cl,
			Help: "Cacheable calls served from the active state cache.",
		}, []string{"method"}),
		misses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "misses_total", ConstLabels: cl,
			Help: "Cacheable calls that invoked the real method.",
		}, []string{"method"}),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "invocation_failures_total", ConstLabels: cl,
			Help: "Real method invocations that failed.",
		}, []string{"method"}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "transitions_total", ConstLabels: cl,
			Help: "State transitions after mutators, by whether the state cache was reused.",
		}, []string{"reused"}),
		states: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "registry_states", ConstLabels: cl,
			Help: "State caches in the registry as of the last transition or sweep.",
		}),
		removed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "swept_total", ConstLabels: cl,
			Help: "Objects removed by the sweeper.",
		}, []string{"kind"}),
		sweepTime: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "sweep_duration_seconds", ConstLabels: cl,
			Help:    "Duration of sweep passes.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
		flagErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "flag_write_failures_total", ConstLabels: cl,
			Help: "Failed writes of the cache-hit flag.",
		}),
		degraded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "fingerprint_degraded_total", ConstLabels: cl,
			Help: "Fingerprints computed with unreadable fields.",
		}),
	}
}

func (h *Hooks) CacheHit(m statecache.Method, _ fingerprint.Key) {
	h.hits.WithLabelValues(string(m)).Inc()
}

func (h *Hooks) CacheMiss(m statecache.Method, _ fingerprint.Key) {
	h.misses.WithLabelValues(string(m)).Inc()
}

func (h *Hooks) StateTransition(_, _ fingerprint.Key, reused bool, registrySize int) {
	label := "false"
	if reused {
		label = "true"
	}
	h.transitions.WithLabelValues(label).Inc()
	h.states.Set(float64(registrySize))
}

func (h *Hooks) Swept(s statecache.SweepStats) {
	h.removed.WithLabelValues("entry").Add(float64(s.EntriesRemoved))
	h.removed.WithLabelValues("state").Add(float64(s.StatesRemoved))
	h.states.Set(float64(s.StatesRemaining))
	h.sweepTime.Observe(s.Duration.Seconds())
}

func (h *Hooks) InvocationFailed(m statecache.Method, _ error) {
	h.failures.WithLabelValues(string(m)).Inc()
}

func (h *Hooks) FlagWriteFailed(error) { h.flagErrors.Inc() }

func (h *Hooks) FingerprintDegraded(fingerprint.Key, error) { h.degraded.Inc() }
