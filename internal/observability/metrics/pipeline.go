package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics tracks analyses, nutrition enrichment, saves and state transitions.
// It implements analysis.Metrics.
type PipelineMetrics struct {
	AnalysesTotal       *prometheus.CounterVec
	AnalysisDuration    *prometheus.HistogramVec
	NutritionLookups    *prometheus.CounterVec
	SavesTotal          *prometheus.CounterVec
	SaveDuration        prometheus.Histogram
	PhotoEncodeFailures *prometheus.CounterVec
	StateTransitions    *prometheus.CounterVec
	CurrentState        *prometheus.GaugeVec
	MealsStored         prometheus.Gauge
}

// pipelineStates are the values of the state label on CurrentState.
var pipelineStates = []string{"idle", "loading", "success", "saved", "failed"}

// NewPipelineMetrics creates and registers pipeline metrics.
func NewPipelineMetrics(registry *prometheus.Registry) (*PipelineMetrics, error) {
	m := &PipelineMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register pipeline metrics: %w", err)
	}
	m.CurrentState.WithLabelValues("idle").Set(1)
	return m, nil
}

func (m *PipelineMetrics) initMetrics() {
	m.AnalysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "analyses_total",
			Help:      "Total number of meal analyses partitioned by outcome.",
		},
		[]string{"outcome"},
	)
	m.AnalysisDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Time taken to analyze a meal photo, including nutrition lookup.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		},
		[]string{"outcome"},
	)
	m.NutritionLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "nutrition_lookups_total",
			Help:      "Nutrition enrichment attempts partitioned by outcome.",
		},
		[]string{"outcome"},
	)
	m.SavesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "meal_saves_total",
			Help:      "Total number of meal save attempts partitioned by outcome.",
		},
		[]string{"outcome"},
	)
	m.SaveDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "meal_save_duration_seconds",
			Help:      "Time taken to encode and persist a meal.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)
	m.PhotoEncodeFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "photo_encode_failures_total",
			Help:      "Meals saved without a photo because encoding failed.",
		},
		[]string{"format"},
	)
	m.StateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "pipeline_transitions_total",
			Help:      "Pipeline state transitions.",
		},
		[]string{"from", "to"},
	)
	m.CurrentState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "pipeline_state",
			Help:      "Current pipeline state (1 for the active state, 0 otherwise).",
		},
		[]string{"state"},
	)
	m.MealsStored = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "meals_stored",
			Help:      "Number of saved meals in the datastore, refreshed periodically.",
		},
	)
}

// RecordAnalysis records one finished analysis.
func (m *PipelineMetrics) RecordAnalysis(outcome string, duration time.Duration) {
	m.AnalysesTotal.WithLabelValues(outcome).Inc()
	m.AnalysisDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (m *PipelineMetrics) RecordNutritionLookup(outcome string) {
	m.NutritionLookups.WithLabelValues(outcome).Inc()
}

func (m *PipelineMetrics) RecordSave(outcome string, duration time.Duration) {
	m.SavesTotal.WithLabelValues(outcome).Inc()
	if outcome == StatusSuccess {
		m.SaveDuration.Observe(duration.Seconds())
	}
}

func (m *PipelineMetrics) RecordPhotoEncodeFailure(format string) {
	m.PhotoEncodeFailures.WithLabelValues(format).Inc()
}

// RecordStateTransition counts the transition and moves the state gauge.
func (m *PipelineMetrics) RecordStateTransition(from, to string) {
	m.StateTransitions.WithLabelValues(from, to).Inc()
	for _, s := range pipelineStates {
		v := 0.0
		if s == to {
			v = 1
		}
		m.CurrentState.WithLabelValues(s).Set(v)
	}
}

// SetMealsStored records the current number of saved meals.
func (m *PipelineMetrics) SetMealsStored(n int64) {
	m.MealsStored.Set(float64(n))
}

// Describe implements the prometheus.Collector interface.
func (m *PipelineMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.AnalysesTotal.Describe(ch)
	m.AnalysisDuration.Describe(ch)
	m.NutritionLookups.Describe(ch)
	m.SavesTotal.Describe(ch)
	ch <- m.SaveDuration.Desc()
	m.PhotoEncodeFailures.Describe(ch)
	m.StateTransitions.Describe(ch)
	m.CurrentState.Describe(ch)
	ch <- m.MealsStored.Desc()
}

// Collect implements the prometheus.Collector interface.
func (m *PipelineMetrics) Collect(ch chan<- prometheus.Metric) {
	m.AnalysesTotal.Collect(ch)
	m.AnalysisDuration.Collect(ch)
	m.NutritionLookups.Collect(ch)
	m.SavesTotal.Collect(ch)
	ch <- m.SaveDuration
	m.PhotoEncodeFailures.Collect(ch)
	m.StateTransitions.Collect(ch)
	m.CurrentState.Collect(ch)
	ch <- m.MealsStored
}
