package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ItemsAddedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "convqueue_items_added_total",
			Help: "Total number of queue items added",
		},
		[]string{"conversion_type"},
	)

	ItemsCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "convqueue_items_completed_total",
			Help: "Total number of queue items that reached a terminal status",
		},
		[]string{"conversion_type", "status"},
	)

	EncoderAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "convqueue_encoder_attempts_total",
			Help: "Encoding tool invocations by outcome",
		},
		[]string{"result"},
	)

	ConversionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "convqueue_conversion_duration_seconds",
			Help:    "Time from item start to completion",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~1 hour
		},
		[]string{"conversion_type"},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "convqueue_queue_depth",
			Help: "Number of items waiting to be processed",
		},
	)

	Processing = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "convqueue_processing",
			Help: "1 while the worker loop is running",
		},
	)
)

func RecordItemAdded(conversionType string) {
	ItemsAddedTotal.WithLabelValues(conversionType).Inc()
}

func RecordItemCompleted(conversionType, status string, duration time.Duration) {
	ItemsCompletedTotal.WithLabelValues(conversionType, status).Inc()
	if duration > 0 {
		ConversionDuration.WithLabelValues(conversionType).Observe(duration.Seconds())
	}
}

func RecordEncoderAttempt(result string) {
	EncoderAttemptsTotal.WithLabelValues(result).Inc()
}

func SetQueueDepth(waiting int) {
	QueueDepth.Set(float64(waiting))
}

func SetProcessing(running bool) {
	if running {
		Processing.Set(1)
		return
	}
	Processing.Set(0)
}
