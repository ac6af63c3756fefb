package httpapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/DoyleJ11/frc-plan-sync/internal/remote"
)

var (
	// writesTotal counts document writes by op kind
	writesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_document_writes_total",
		Help: "Document writes accepted by the server, by op kind",
	}, []string{"kind"})

	batchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "planner_batch_write_ops",
		Help:    "Ops per batch write",
		Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
	})

	subscribers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "planner_active_subscribers",
		Help: "Open websocket subscriptions by collection",
	}, []string{"collection"})
)

func recordWrite(kind remote.OpKind, n int) {
	writesTotal.WithLabelValues(string(kind)).Add(float64(n))
}

func subscriberOpened(c remote.Collection) { subscribers.WithLabelValues(string(c)).Inc() }
func subscriberClosed(c remote.Collection) { subscribers.WithLabelValues(string(c)).Dec() }
