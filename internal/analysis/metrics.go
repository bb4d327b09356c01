package analysis

import "time"

// Outcome labels passed to Metrics.
const (
	OutcomeSuccess           = "success"
	OutcomeRecognitionFailed = "recognition_failed"
	OutcomeError             = "error"
	OutcomeUnavailable       = "unavailable"
	OutcomeSkipped           = "skipped"
)

// Metrics receives pipeline measurements. The observability package provides the Prometheus
// implementation.
type Metrics interface {
	RecordAnalysis(outcome string, duration time.Duration)
	RecordNutritionLookup(outcome string)
	RecordSave(outcome string, duration time.Duration)
	RecordPhotoEncodeFailure(format string)
	RecordStateTransition(from, to string)
}

type noopMetrics struct{}

func (noopMetrics) RecordAnalysis(string, time.Duration) {}
func (noopMetrics) RecordNutritionLookup(string)         {}
func (noopMetrics) RecordSave(string, time.Duration)     {}
func (noopMetrics) RecordPhotoEncodeFailure(string)      {}
func (noopMetrics) RecordStateTransition(string, string) {}
