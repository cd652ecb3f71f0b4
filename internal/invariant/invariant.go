// Package invariant records conditions that must hold unless there is a bug in
// statecache itself. A violation never panics: it increments a prometheus
// counter and logs an error, and the caller still handles the bad case.
//
// Do not raise invariants for failures caused by the wrapped object (a
// panicking method, an unreadable field). Those are expected and reported
// through Logger and Hooks.
package invariant

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	promclient "github.com/prometheus/client_model/go"
)

var violations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "statecache",
	Name:      "invariants_total",
	Help:      "The total number of invariant violations",
}, []string{
	"module", // where the invariant is checked
	"type",   // short snake_case name of the invariant
})

// Raise records a violation of invariantType in module.
func Raise(module, invariantType, msg string, args ...any) {
	violations.WithLabelValues(module, invariantType).Inc()
	slog.With("invariant", invariantType, "module", module).Error(msg, args...)
}

// Count returns how many times the invariant has been raised.
func Count(module, invariantType string) int {
	m := &promclient.Metric{}
	if err := violations.WithLabelValues(module, invariantType).Write(m); err != nil {
		slog.Error(err.Error())
		return 0
	}
	return int(m.GetCounter().GetValue())
}
