package analysis

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mealsnap/mealsnap-go/internal/conf"
	"github.com/mealsnap/mealsnap-go/internal/datastore"
	"github.com/mealsnap/mealsnap-go/internal/logger"
	"github.com/mealsnap/mealsnap-go/internal/meal"
	"github.com/mealsnap/mealsnap-go/internal/photo"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeRecognizer returns fixed labels or an error and records its calls.
type fakeRecognizer struct {
	labels []string
	err    error
	block  chan struct{}

	mu    sync.Mutex
	calls int
}

func (f *fakeRecognizer) Classify(ctx context.Context, _ []byte) ([]string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.labels, f.err
}

func (f *fakeRecognizer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeNutrition returns facts or an error and records queries.
type fakeNutrition struct {
	facts *meal.NutritionFacts
	err   error
	delay time.Duration

	mu      sync.Mutex
	queries []string
}

func (f *fakeNutrition) Lookup(ctx context.Context, query string) (*meal.NutritionFacts, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if f.delay > 0 {
		timer := time.NewTimer(f.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.facts, f.err
}

func (f *fakeNutrition) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

type recordingMetrics struct {
	mu             sync.Mutex
	analyses       []string
	lookups        []string
	saves          []string
	encodeFailures []string
	transitions    []string
}

func (r *recordingMetrics) RecordAnalysis(outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.analyses = append(r.analyses, outcome)
}

func (r *recordingMetrics) RecordNutritionLookup(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups = append(r.lookups, outcome)
}

func (r *recordingMetrics) RecordSave(outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves = append(r.saves, outcome)
}

func (r *recordingMetrics) RecordPhotoEncodeFailure(format string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.encodeFailures = append(r.encodeFailures, format)
}

func (r *recordingMetrics) RecordStateTransition(from, to string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, from+"->"+to)
}

func appleFacts() *meal.NutritionFacts {
	f := meal.NewNutritionFacts("94.64 kcal", "25.13 g", "0.31 g", "0.47 g")
	return &f
}

func quietLogger() logger.Logger {
	return logger.NewSlogLogger(&bytes.Buffer{}, logger.LogLevelError, time.UTC)
}

func testImage(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 48, 32))
	for y := range 32 {
		for x := range 48 {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 5), G: 120, B: uint8(y * 7), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// newTestStore opens a SQLite datastore in a temp dir.
func newTestStore(t *testing.T) datastore.Interface {
	t.Helper()
	settings := &conf.Settings{}
	settings.Datastore.Type = conf.DatastoreSQLite
	settings.Datastore.SQLite.Path = filepath.Join(t.TempDir(), "meals.db")

	store, err := datastore.New(settings)
	require.NoError(t, err)
	require.NoError(t, store.Open())
	t.Cleanup(func() {
		assert.NoError(t, store.Close())
	})
	return store
}

func newTestEncoder(t *testing.T, format string) *photo.Encoder {
	t.Helper()
	enc, err := photo.NewEncoder(format, photo.DefaultQuality)
	require.NoError(t, err)
	return enc
}
