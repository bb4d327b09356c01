package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// NutritionMetrics tracks calls to the nutrition API. It implements nutrition.Recorder.
type NutritionMetrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewNutritionMetrics creates and registers nutrition API metrics.
func NewNutritionMetrics(registry *prometheus.Registry) (*NutritionMetrics, error) {
	m := &NutritionMetrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "nutrition_api_requests_total",
				Help:      "Nutrition API requests partitioned by outcome (success, cache_hit, error).",
			},
			[]string{"outcome"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "nutrition_api_request_duration_seconds",
				Help:      "Nutrition API request latency.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 11), // 10ms to ~10s
			},
			[]string{"outcome"},
		),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register nutrition metrics: %w", err)
	}
	return m, nil
}

func (m *NutritionMetrics) RecordNutritionRequest(outcome string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(outcome).Inc()
	m.RequestDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// Describe implements the prometheus.Collector interface.
func (m *NutritionMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.RequestsTotal.Describe(ch)
	m.RequestDuration.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *NutritionMetrics) Collect(ch chan<- prometheus.Metric) {
	m.RequestsTotal.Collect(ch)
	m.RequestDuration.Collect(ch)
}
