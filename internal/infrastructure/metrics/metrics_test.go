package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordItemAdded(t *testing.T) {
	ItemsAddedTotal.Reset()

	RecordItemAdded("create_optimized")
	RecordItemAdded("create_optimized")
	RecordItemAdded("rotate_video")

	if got := testutil.ToFloat64(ItemsAddedTotal.WithLabelValues("create_optimized")); got != 2 {
		t.Errorf("Expected create_optimized counter to be 2, got %f", got)
	}
	if got := testutil.ToFloat64(ItemsAddedTotal.WithLabelValues("rotate_video")); got != 1 {
		t.Errorf("Expected rotate_video counter to be 1, got %f", got)
	}
}

func TestRecordItemCompleted(t *testing.T) {
	ItemsCompletedTotal.Reset()
	ConversionDuration.Reset()

	RecordItemCompleted("create_optimized", "complete", 90*time.Second)
	RecordItemCompleted("create_optimized", "error", 0)

	if got := testutil.ToFloat64(ItemsCompletedTotal.WithLabelValues("create_optimized", "complete")); got != 1 {
		t.Errorf("Expected complete counter to be 1, got %f", got)
	}
	if got := testutil.ToFloat64(ItemsCompletedTotal.WithLabelValues("create_optimized", "error")); got != 1 {
		t.Errorf("Expected error counter to be 1, got %f", got)
	}
	if got := testutil.CollectAndCount(ConversionDuration); got != 1 {
		t.Errorf("Expected one duration series, got %d", got)
	}
}

func TestGauges(t *testing.T) {
	SetQueueDepth(4)
	if got := testutil.ToFloat64(QueueDepth); got != 4 {
		t.Errorf("Expected queue depth 4, got %f", got)
	}

	SetProcessing(true)
	if got := testutil.ToFloat64(Processing); got != 1 {
		t.Errorf("Expected processing 1, got %f", got)
	}
	SetProcessing(false)
	if got := testutil.ToFloat64(Processing); got != 0 {
		t.Errorf("Expected processing 0, got %f", got)
	}
}

func TestRecordEncoderAttempt(t *testing.T) {
	EncoderAttemptsTotal.Reset()

	RecordEncoderAttempt("failed")
	RecordEncoderAttempt("succeeded")
	RecordEncoderAttempt("failed")

	if got := testutil.ToFloat64(EncoderAttemptsTotal.WithLabelValues("failed")); got != 2 {
		t.Errorf("Expected failed attempts 2, got %f", got)
	}
}
