package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// QuoteTotal counts delivery quote attempts by outcome.
	QuoteTotal *prometheus.CounterVec
	// QuoteLatency records geocode-and-quote latency in milliseconds.
	QuoteLatency *prometheus.HistogramVec
	// SubmitTotal counts order submissions by outcome.
	SubmitTotal *prometheus.CounterVec
	// DraftMutationTotal counts draft mutations by operation.
	DraftMutationTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers POS domain collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		QuoteTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_quote_total",
			Help:      "Count of delivery quote attempts by outcome.",
		}, []string{"result"})
		QuoteLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delivery_quote_duration_ms",
			Help:      "Latency of geocode-and-quote calls in milliseconds.",
			Buckets:   []float64{25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}, []string{"result"})
		SubmitTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_submit_total",
			Help:      "Count of order submissions by outcome.",
		}, []string{"result"})
		DraftMutationTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "draft_mutation_total",
			Help:      "Count of draft mutations by operation.",
		}, []string{"op"})

		QuoteTotal = registerCounterVec(reg, QuoteTotal)
		QuoteLatency = registerHistogramVec(reg, QuoteLatency)
		SubmitTotal = registerCounterVec(reg, SubmitTotal)
		DraftMutationTotal = registerCounterVec(reg, DraftMutationTotal)
	})
}

// CountQuote records one quote attempt outcome if metrics are registered.
func CountQuote(result string) {
	if QuoteTotal != nil {
		QuoteTotal.WithLabelValues(result).Inc()
	}
}

// ObserveQuoteLatency records quote latency if metrics are registered.
func ObserveQuoteLatency(result string, millis float64) {
	if QuoteLatency != nil {
		QuoteLatency.WithLabelValues(result).Observe(millis)
	}
}

// CountSubmit records one submission outcome if metrics are registered.
func CountSubmit(result string) {
	if SubmitTotal != nil {
		SubmitTotal.WithLabelValues(result).Inc()
	}
}

// CountMutation records one draft mutation if metrics are registered.
func CountMutation(op string) {
	if DraftMutationTotal != nil {
		DraftMutationTotal.WithLabelValues(op).Inc()
	}
}
