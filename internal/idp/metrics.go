package idp

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	breakerState = promauto.NewGauge(prometheus.GaugeOpts{ //nolint:gochecknoglobals
		Name: "idp_breaker_state",
		Help: "Availability probe state: 0 available, 1 degraded, 2 probing.",
	})

	breakerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "idp_breaker_transitions_total",
		Help: "Availability probe state changes by target state.",
	}, []string{"to"})

	fallbackServed = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "idp_fallback_served_total",
		Help: "Calls answered from the fallback directory by operation.",
	}, []string{"op"})
)
