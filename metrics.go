package opendkim

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricCallback = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opendkim_callback_total",
			Help: "Engine callbacks seen by the dispatcher, by kind and outcome.",
		},
		[]string{
			"kind",
			"outcome", // "tryagain", "resolved", "error"
		},
	)
	metricSessionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "opendkim_sessions_open",
			Help: "Sessions created and not yet closed.",
		},
	)
)
