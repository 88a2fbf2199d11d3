package upload

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// transfersTotal counts finished transfers by result.
	transfersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wanzami_upload_transfers_total",
		Help: "Finished file transfers by result",
	}, []string{"result"})

	// transferBytesTotal counts bytes accepted by the object store.
	transferBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wanzami_upload_transfer_bytes_total",
		Help: "Bytes of successfully transferred files",
	})

	// transferDuration observes the wall time of each transfer.
	transferDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wanzami_upload_transfer_duration_seconds",
		Help:    "Duration of file transfers in seconds",
		Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
	})

	// activeTransfers is the number of transfers in flight.
	activeTransfers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wanzami_upload_active_transfers",
		Help: "File transfers currently in flight",
	})

	// finalizeTotal counts finalize attempts made by the reconciler by result.
	finalizeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wanzami_upload_finalize_total",
		Help: "Finalize attempts by result",
	}, []string{"result"})
)
