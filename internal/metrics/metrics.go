// Package metrics holds the Prometheus collectors exported by the status server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "starpoller"

// Poll loop metrics
var (
	// Attempts counts poll attempts by action and classified outcome.
	Attempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_total",
			Help:      "Poll attempts by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	// Successes mirrors the loop's success counter.
	Successes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "successes",
			Help:      "Confirmed successful poll attempts since start",
		},
	)
)

// Session metrics
var (
	// TokenRefreshes counts refresh exchanges by result (success|rejected|transport).
	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_refreshes_total",
			Help:      "Token refresh exchanges by result",
		},
		[]string{"result"},
	)

	// ExchangeDuration tracks upstream round-trip latency per exchange (login|refresh|add|remove).
	ExchangeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "exchange_duration_seconds",
			Help:      "Upstream exchange duration in seconds",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"exchange"},
	)
)
