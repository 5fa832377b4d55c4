package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "podfs",
			Subsystem: "device",
			Name:      "operations_total",
			Help:      "Total file service round trips.",
		},
		[]string{"op", "outcome"},
	)
	operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "podfs",
			Subsystem: "device",
			Name:      "operation_duration_seconds",
			Help:      "File service round trip duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op"},
	)
	transferBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "podfs",
			Subsystem: "device",
			Name:      "transfer_bytes_total",
			Help:      "File content bytes moved, by direction.",
		},
		[]string{"direction"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(operations, operationDuration, transferBytes)
	})
}

// RecordOp counts one round trip. outcome is "ok" or "fatal".
func RecordOp(op, outcome string, duration time.Duration) {
	RegisterMetrics()
	operations.WithLabelValues(op, outcome).Inc()
	operationDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordTransfer counts acknowledged content bytes; direction is
// "read" or "write".
func RecordTransfer(direction string, n int) {
	RegisterMetrics()
	transferBytes.WithLabelValues(direction).Add(float64(n))
}
