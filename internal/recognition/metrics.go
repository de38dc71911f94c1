package recognition

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "inkmath",
		Name:      "recognition_requests_total",
		Help:      "Recognition requests by outcome",
	}, []string{"outcome"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "inkmath",
		Name:      "recognition_request_duration_seconds",
		Help:      "Latency of recognition requests",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	})

	strokesSent = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "inkmath",
		Name:      "recognition_strokes_per_request",
		Help:      "Number of strokes sent per recognition request",
		Buckets:   []float64{1, 2, 5, 10, 20, 50, 100},
	})
)
