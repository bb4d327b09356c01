package analysis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mealsnap/mealsnap-go/internal/errors"
	"github.com/mealsnap/mealsnap-go/internal/meal"
	"github.com/mealsnap/mealsnap-go/internal/photo"
)

type fakeSaver struct {
	err error

	mu    sync.Mutex
	saved []meal.AnalyzedMeal
}

func (f *fakeSaver) Save(_ context.Context, m meal.AnalyzedMeal) (meal.SavedMealRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return meal.SavedMealRecord{}, f.err
	}
	f.saved = append(f.saved, m)
	return meal.SavedMealRecord{ID: "rec-1", IdentifiedFoods: m.IdentifiedFoods()}, nil
}

func newTestPipeline(r Recognizer, saver MealSaver) (*Pipeline, *[]string) {
	analyzer := newTestAnalyzer(r, &fakeNutrition{facts: appleFacts()}, nil)
	p := NewPipeline(analyzer, saver, WithPipelineLogger(quietLogger()))

	var mu sync.Mutex
	var transitions []string
	p.OnTransition(func(from, to State) {
		mu.Lock()
		defer mu.Unlock()
		transitions = append(transitions, from.String()+"->"+to.String())
	})
	return p, &transitions
}

func TestPipeline_CaptureAnalyzeSave(t *testing.T) {
	t.Parallel()

	saver := &fakeSaver{}
	p, transitions := newTestPipeline(&fakeRecognizer{labels: []string{"apple", "fruit"}}, saver)
	assert.IsType(t, Idle{}, p.State())

	require.NoError(t, p.Capture(testImage(t)))
	result, err := p.Analyze(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"apple", "fruit"}, result.Labels)

	success, ok := p.State().(Success)
	require.True(t, ok, "state is %s", p.State())
	assert.Equal(t, result.Labels, success.Meal.Labels)

	record, err := p.Save(context.Background())
	require.NoError(t, err)
	saved, ok := p.State().(Saved)
	require.True(t, ok)
	assert.Equal(t, record, saved.Record)
	require.Len(t, saver.saved, 1)

	assert.Equal(t, []string{
		"idle->idle",
		"idle->loading",
		"loading->success",
		"success->saved",
	}, *transitions)
}

func TestPipeline_ScenarioD_SaveWithoutResult(t *testing.T) {
	t.Parallel()

	saver := &fakeSaver{}
	p, transitions := newTestPipeline(&fakeRecognizer{labels: []string{"apple"}}, saver)

	_, err := p.Save(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.True(t, errors.IsCategory(err, errors.CategoryState))
	assert.IsType(t, Idle{}, p.State())
	assert.Empty(t, saver.saved)
	assert.Empty(t, *transitions)
}

func TestPipeline_AnalyzeWithoutImage(t *testing.T) {
	t.Parallel()

	rec := &fakeRecognizer{labels: []string{"apple"}}
	p, _ := newTestPipeline(rec, &fakeSaver{})

	_, err := p.Analyze(context.Background())
	require.ErrorIs(t, err, ErrNoImage)
	failed, ok := p.State().(Failed)
	require.True(t, ok)
	assert.Equal(t, MessageNoImage, failed.Message)
	assert.Zero(t, rec.callCount())
}

func TestPipeline_RecognitionFailureThenDismissAndRetry(t *testing.T) {
	t.Parallel()

	rec := &fakeRecognizer{labels: nil}
	p, _ := newTestPipeline(rec, &fakeSaver{})
	require.NoError(t, p.Capture(testImage(t)))

	_, err := p.Analyze(context.Background())
	require.ErrorIs(t, err, ErrRecognitionFailed)
	failed, ok := p.State().(Failed)
	require.True(t, ok)
	assert.Equal(t, MessageRecognitionFailed, failed.Message)

	require.NoError(t, p.Dismiss())
	assert.IsType(t, Idle{}, p.State())
	assert.True(t, p.HasImage(), "dismiss keeps the staged photo")

	rec.labels = []string{"pizza"}
	_, err = p.Analyze(context.Background())
	require.NoError(t, err)
	assert.IsType(t, Success{}, p.State())
	assert.Equal(t, 2, rec.callCount())
}

func TestPipeline_AnalyzeFromFailedDirectly(t *testing.T) {
	t.Parallel()

	rec := &fakeRecognizer{err: errors.NewStd("unexpected")}
	p, _ := newTestPipeline(rec, &fakeSaver{})
	require.NoError(t, p.Capture(testImage(t)))

	_, err := p.Analyze(context.Background())
	require.Error(t, err)
	failed, ok := p.State().(Failed)
	require.True(t, ok)
	assert.Equal(t, MessageGeneric, failed.Message)

	rec.err = nil
	rec.labels = []string{"soup"}
	_, err = p.Analyze(context.Background())
	require.NoError(t, err)
	assert.IsType(t, Success{}, p.State())
}

func TestPipeline_ResetClearsImage(t *testing.T) {
	t.Parallel()

	p, _ := newTestPipeline(&fakeRecognizer{labels: []string{"apple"}}, &fakeSaver{})
	require.NoError(t, p.Capture(testImage(t)))
	_, err := p.Analyze(context.Background())
	require.NoError(t, err)

	require.NoError(t, p.Reset())
	assert.IsType(t, Idle{}, p.State())
	assert.False(t, p.HasImage())

	_, err = p.Analyze(context.Background())
	assert.ErrorIs(t, err, ErrNoImage)
}

func TestPipeline_RejectedOperationsLeaveStateUnchanged(t *testing.T) {
	t.Parallel()

	p, _ := newTestPipeline(&fakeRecognizer{labels: []string{"apple"}}, &fakeSaver{})
	require.NoError(t, p.Capture(testImage(t)))
	_, err := p.Analyze(context.Background())
	require.NoError(t, err)

	_, err = p.Analyze(context.Background())
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.ErrorIs(t, p.Dismiss(), ErrInvalidTransition)
	assert.IsType(t, Success{}, p.State())

	_, err = p.Save(context.Background())
	require.NoError(t, err)
	_, err = p.Save(context.Background())
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = p.Analyze(context.Background())
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.IsType(t, Saved{}, p.State())
}

func TestPipeline_BusyWhileLoading(t *testing.T) {
	t.Parallel()

	rec := &fakeRecognizer{labels: []string{"apple"}, block: make(chan struct{})}
	p, _ := newTestPipeline(rec, &fakeSaver{})
	require.NoError(t, p.Capture(testImage(t)))

	done := make(chan error, 1)
	go func() {
		_, err := p.Analyze(context.Background())
		done <- err
	}()

	require.Eventually(t, func() bool {
		_, loading := p.State().(Loading)
		return loading
	}, time.Second, 5*time.Millisecond)

	_, err := p.Analyze(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
	assert.ErrorIs(t, p.Capture(testImage(t)), ErrBusy)
	assert.ErrorIs(t, p.Reset(), ErrBusy)
	_, err = p.Save(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
	assert.IsType(t, Loading{}, p.State())

	close(rec.block)
	require.NoError(t, <-done)
	assert.IsType(t, Success{}, p.State())
	assert.Equal(t, 1, rec.callCount())
}

func TestPipeline_SaveFailure(t *testing.T) {
	t.Parallel()

	saver := &fakeSaver{err: &UnderlyingError{Cause: errors.NewStd("db locked")}}
	p, _ := newTestPipeline(&fakeRecognizer{labels: []string{"apple"}}, saver)
	require.NoError(t, p.Capture(testImage(t)))
	_, err := p.Analyze(context.Background())
	require.NoError(t, err)

	_, err = p.Save(context.Background())
	require.Error(t, err)
	failed, ok := p.State().(Failed)
	require.True(t, ok)
	assert.Equal(t, MessageSaveFailed, failed.Message)

	require.NoError(t, p.Dismiss())
	assert.True(t, p.HasImage())
}

func TestPipeline_EndToEndWithStore(t *testing.T) {
	t.Parallel()

	metrics := &recordingMetrics{}
	gateway := NewGateway(newTestStore(t), newTestEncoder(t, photo.FormatJPEG),
		WithGatewayLogger(quietLogger()), WithGatewayMetrics(metrics))
	analyzer := NewAnalyzer(&fakeRecognizer{labels: []string{"apple", "fruit", "snack", "green"}},
		&fakeNutrition{facts: appleFacts()},
		WithAnalyzerLogger(quietLogger()), WithAnalyzerMetrics(metrics))
	p := NewPipeline(analyzer, gateway, WithPipelineLogger(quietLogger()), WithMetrics(metrics))

	require.NoError(t, p.Capture(testImage(t)))
	_, err := p.Analyze(context.Background())
	require.NoError(t, err)
	record, err := p.Save(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "apple,fruit,snack", record.IdentifiedFoods)
	loaded, err := gateway.Get(context.Background(), record.ID)
	require.NoError(t, err)
	assert.True(t, loaded.HasPhoto())

	assert.Equal(t, []string{"idle->idle", "idle->loading", "loading->success", "success->saved"}, metrics.transitions)
	assert.Equal(t, []string{OutcomeSuccess}, metrics.analyses)
	assert.Equal(t, []string{OutcomeSuccess}, metrics.saves)
}
