package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	writeFailures = promauto.NewCounter(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "audit_write_failures_total",
		Help: "Audit records that could not be persisted.",
	})

	sinkDegraded = promauto.NewGauge(prometheus.GaugeOpts{ //nolint:gochecknoglobals
		Name: "audit_sink_degraded",
		Help: "1 while consecutive audit write failures exceed the alert threshold.",
	})
)
