package resilience

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricsOnce sync.Once

	// BreakerState exposes the current state per dependency (0 closed, 1 open, 2 half-open).
	BreakerState *prometheus.GaugeVec
	// BreakerOpenedTotal counts how often a breaker tripped open.
	BreakerOpenedTotal *prometheus.CounterVec
)

// MustRegisterMetrics initialises and registers breaker collectors. Safe to
// call more than once; only the first call registers.
func MustRegisterMetrics(namespace string, reg prometheus.Registerer) {
	metricsOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		BreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_state",
			Help:      "Current circuit breaker state per dependency.",
		}, []string{"target"})
		BreakerOpenedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaker_opened_total",
			Help:      "Number of times a circuit breaker tripped open.",
		}, []string{"target"})
		reg.MustRegister(BreakerState, BreakerOpenedTotal)
	})
}

func recordState(target string, state State) {
	if BreakerState == nil {
		return
	}
	BreakerState.WithLabelValues(target).Set(float64(state))
}

func recordOpened(target string) {
	if BreakerOpenedTotal == nil {
		return
	}
	BreakerOpenedTotal.WithLabelValues(target).Inc()
}
