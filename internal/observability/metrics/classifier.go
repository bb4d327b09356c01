package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mealsnap/mealsnap-go/internal/errors"
)

// ClassifierMetrics tracks image classification. It implements classifier.Recorder.
type ClassifierMetrics struct {
	ClassificationsTotal   *prometheus.CounterVec
	ClassificationErrors   *prometheus.CounterVec
	ClassificationDuration *prometheus.HistogramVec
	LabelsReturned         *prometheus.HistogramVec
}

// NewClassifierMetrics creates and registers classifier metrics.
func NewClassifierMetrics(registry *prometheus.Registry) (*ClassifierMetrics, error) {
	m := &ClassifierMetrics{
		ClassificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "classifications_total",
				Help:      "Total number of classification requests",
			},
			[]string{"model", "status"},
		),
		ClassificationErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "classification_errors_total",
				Help:      "Total number of classification errors",
			},
			[]string{"model", "error_type"},
		),
		ClassificationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "classification_duration_seconds",
				Help:      "Time taken to preprocess and classify an image",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
			},
			[]string{"model"},
		),
		LabelsReturned: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "classification_labels",
				Help:      "Number of labels above the confidence threshold",
				Buckets:   prometheus.LinearBuckets(0, 1, 6),
			},
			[]string{"model"},
		),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register classifier metrics: %w", err)
	}
	return m, nil
}

// RecordClassification records one classification call.
func (m *ClassifierMetrics) RecordClassification(model string, duration time.Duration, labels int, err error) {
	if err != nil {
		m.ClassificationsTotal.WithLabelValues(model, StatusError).Inc()
		m.ClassificationErrors.WithLabelValues(model, categorizeError(err)).Inc()
		return
	}
	m.ClassificationsTotal.WithLabelValues(model, StatusSuccess).Inc()
	m.ClassificationDuration.WithLabelValues(model).Observe(duration.Seconds())
	m.LabelsReturned.WithLabelValues(model).Observe(float64(labels))
}

// categorizeError uses the enhanced error category when there is one
func categorizeError(err error) string {
	var ee *errors.EnhancedError
	if errors.As(err, &ee) && ee.Category != "" {
		return string(ee.Category)
	}
	return "unknown"
}

// Describe implements the prometheus.Collector interface.
func (m *ClassifierMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.ClassificationsTotal.Describe(ch)
	m.ClassificationErrors.Describe(ch)
	m.ClassificationDuration.Describe(ch)
	m.LabelsReturned.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *ClassifierMetrics) Collect(ch chan<- prometheus.Metric) {
	m.ClassificationsTotal.Collect(ch)
	m.ClassificationErrors.Collect(ch)
	m.ClassificationDuration.Collect(ch)
	m.LabelsReturned.Collect(ch)
}
