package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	roundsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "inkmath",
		Name:      "session_rounds_total",
		Help:      "Recognition rounds by result",
	}, []string{"result"})

	editsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "inkmath",
		Name:      "session_edits_total",
		Help:      "Local tree edits by kind",
	}, []string{"kind"})

	pendingStrokes = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "inkmath",
		Name:      "session_pending_strokes",
		Help:      "Strokes waiting for an accepted recognition round",
	})
)
