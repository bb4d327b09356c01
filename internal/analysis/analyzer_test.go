package analysis

import (
	"context"
	"fmt"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mealsnap/mealsnap-go/internal/classifier"
	"github.com/mealsnap/mealsnap-go/internal/errors"
	"github.com/mealsnap/mealsnap-go/internal/nutrition"
)

func newTestAnalyzer(r Recognizer, n NutritionLookup, m Metrics) *Analyzer {
	return NewAnalyzer(r, n, WithAnalyzerLogger(quietLogger()), WithAnalyzerMetrics(m))
}

func TestAnalyze_ScenarioA_LabelsAndNutrition(t *testing.T) {
	t.Parallel()

	rec := &fakeRecognizer{labels: []string{"apple", "fruit"}}
	nut := &fakeNutrition{facts: appleFacts()}
	metrics := &recordingMetrics{}
	img := testImage(t)

	result, err := newTestAnalyzer(rec, nut, metrics).Analyze(context.Background(), img)
	require.NoError(t, err)

	assert.Equal(t, []string{"apple", "fruit"}, result.Labels)
	assert.Equal(t, []string{"1 apple"}, nut.recorded())
	require.NotNil(t, result.Nutrition)
	assert.Equal(t, *appleFacts(), *result.Nutrition)
	assert.Equal(t, img, result.Image)
	assert.Equal(t, []string{OutcomeSuccess}, metrics.analyses)
	assert.Equal(t, []string{OutcomeSuccess}, metrics.lookups)
}

func TestAnalyze_ScenarioB_NoLabels(t *testing.T) {
	t.Parallel()

	rec := &fakeRecognizer{labels: []string{}}
	nut := &fakeNutrition{facts: appleFacts()}
	metrics := &recordingMetrics{}

	_, err := newTestAnalyzer(rec, nut, metrics).Analyze(context.Background(), testImage(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRecognitionFailed)
	assert.True(t, errors.IsCategory(err, errors.CategoryRecognition))
	assert.Empty(t, nut.recorded(), "nutrition must not be queried without a label")
	assert.Equal(t, []string{OutcomeRecognitionFailed}, metrics.analyses)
}

func TestAnalyze_ScenarioC_NutritionTimeout(t *testing.T) {
	t.Parallel()

	rec := &fakeRecognizer{labels: []string{"pizza"}}
	nut := &fakeNutrition{delay: time.Minute}
	metrics := &recordingMetrics{}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	result, err := newTestAnalyzer(rec, nut, metrics).Analyze(ctx, testImage(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"pizza"}, result.Labels)
	assert.Nil(t, result.Nutrition)
	assert.Equal(t, []string{"1 pizza"}, nut.recorded())
	assert.Equal(t, []string{OutcomeUnavailable}, metrics.lookups)
}

func TestAnalyze_NutritionFailureKinds(t *testing.T) {
	t.Parallel()

	failures := []error{
		nutrition.ErrInvalidURL,
		nutrition.ErrRequestFailed,
		nutrition.ErrInvalidResponse,
		nutrition.ErrDecodingFailed,
		fmt.Errorf("wrapped: %w", nutrition.ErrDecodingFailed),
	}
	for _, failure := range failures {
		t.Run(failure.Error(), func(t *testing.T) {
			t.Parallel()
			rec := &fakeRecognizer{labels: []string{"salad"}}
			nut := &fakeNutrition{err: failure}

			result, err := newTestAnalyzer(rec, nut, nil).Analyze(context.Background(), testImage(t))
			require.NoError(t, err)
			assert.Nil(t, result.Nutrition)
			assert.Equal(t, []string{"salad"}, result.Labels)
		})
	}
}

func TestAnalyze_KeepsFirstThreeLabelsInOrder(t *testing.T) {
	t.Parallel()

	labels := []string{"burger", "fries", "ketchup", "pickle", "soda"}
	rec := &fakeRecognizer{labels: labels}

	result, err := newTestAnalyzer(rec, &fakeNutrition{facts: appleFacts()}, nil).
		Analyze(context.Background(), testImage(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"burger", "fries", "ketchup"}, result.Labels)

	labels[0] = "changed"
	assert.Equal(t, "burger", result.Labels[0], "result must not alias the classifier slice")
}

func TestAnalyze_NilNutritionLookupSkipsEnrichment(t *testing.T) {
	t.Parallel()

	metrics := &recordingMetrics{}
	result, err := newTestAnalyzer(&fakeRecognizer{labels: []string{"tea"}}, nil, metrics).
		Analyze(context.Background(), testImage(t))
	require.NoError(t, err)
	assert.Nil(t, result.Nutrition)
	assert.Equal(t, []string{OutcomeSkipped}, metrics.lookups)
}

func TestAnalyze_ClassifierFailureKinds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name            string
		err             error
		wantRecognition bool
	}{
		{"image_processing", fmt.Errorf("%w: bad jpeg", classifier.ErrImageProcessingFailed), true},
		{"inference", fmt.Errorf("%w: tensor invoke failed", classifier.ErrInferenceFailed), true},
		{"canceled", context.Canceled, false},
		{"unknown", errors.NewStd("disk on fire"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			nut := &fakeNutrition{facts: appleFacts()}
			_, err := newTestAnalyzer(&fakeRecognizer{err: tt.err}, nut, nil).
				Analyze(context.Background(), testImage(t))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.err, "cause must stay in the chain")
			assert.Empty(t, nut.recorded())

			var underlying *UnderlyingError
			if tt.wantRecognition {
				assert.ErrorIs(t, err, ErrRecognitionFailed)
				assert.NotErrorAs(t, err, &underlying)
			} else {
				assert.NotErrorIs(t, err, ErrRecognitionFailed)
				require.ErrorAs(t, err, &underlying)
				assert.Equal(t, tt.err, underlying.Cause)
			}
		})
	}
}

// panickyModel and emptyModel drive a real classifier.Classifier.
type panickyModel struct{}

func (panickyModel) Name() string { return "panicky" }
func (panickyModel) Predict(context.Context, *image.NRGBA) ([]classifier.Prediction, error) {
	panic("corrupt tensor")
}
func (panickyModel) Close() error { return nil }

type staticModel struct{ predictions []classifier.Prediction }

func (staticModel) Name() string { return "static" }
func (m staticModel) Predict(context.Context, *image.NRGBA) ([]classifier.Prediction, error) {
	return m.predictions, nil
}
func (staticModel) Close() error { return nil }

func TestAnalyze_WithClassifier(t *testing.T) {
	t.Parallel()

	model := staticModel{predictions: []classifier.Prediction{
		{Label: "apple", Confidence: 0.8},
		{Label: "fruit", Confidence: 0.4},
		{Label: "table", Confidence: 0.01},
	}}
	c, err := classifier.New(model, classifier.WithLogger(quietLogger()))
	require.NoError(t, err)
	nut := &fakeNutrition{facts: appleFacts()}

	result, err := newTestAnalyzer(c, nut, nil).Analyze(context.Background(), testImage(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"apple", "fruit"}, result.Labels)
	assert.Equal(t, []string{"1 apple"}, nut.recorded())

	_, err = newTestAnalyzer(c, nut, nil).Analyze(context.Background(), []byte("not a photo"))
	assert.ErrorIs(t, err, ErrRecognitionFailed)
	assert.ErrorIs(t, err, classifier.ErrImageProcessingFailed)
}

func TestAnalyze_ClassifierPanicIsUnderlying(t *testing.T) {
	t.Parallel()

	c, err := classifier.New(panickyModel{}, classifier.WithLogger(quietLogger()))
	require.NoError(t, err)

	_, err = newTestAnalyzer(c, nil, nil).Analyze(context.Background(), testImage(t))
	require.Error(t, err)
	var underlying *UnderlyingError
	assert.ErrorAs(t, err, &underlying)
	assert.NotErrorIs(t, err, ErrRecognitionFailed)
}
