package dkim

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricSign = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dkim_sign_total",
			Help: "DKIM signatures generated, by algorithm.",
		},
		[]string{"algorithm"},
	)
	metricVerify = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dkim_verify_total",
			Help: "DKIM verifications completed, by final status.",
		},
		[]string{"status"},
	)
	metricKeyCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dkim_keycache_requests_total",
			Help: "Key cache lookups, result is hit, miss or expired.",
		},
		[]string{"result"},
	)
)
