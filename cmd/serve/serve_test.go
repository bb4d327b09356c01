package serve

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mealsnap/mealsnap-go/internal/logger"
)

type countingStore struct {
	mu     sync.Mutex
	counts []int64
	errs   []error
	calls  int
}

func (s *countingStore) Count(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := min(s.calls, len(s.counts)-1)
	s.calls++
	return s.counts[i], s.errs[i]
}

type gaugeRecorder struct {
	mu     sync.Mutex
	values []int64
}

func (g *gaugeRecorder) SetMealsStored(n int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.values = append(g.values, n)
}

func (g *gaugeRecorder) recorded() []int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]int64(nil), g.values...)
}

func TestReportStoredMeals_RefreshesUntilCanceled(t *testing.T) {
	t.Parallel()

	store := &countingStore{
		counts: []int64{3, 0, 5},
		errs:   []error{nil, errors.New("database is locked"), nil},
	}
	gauge := &gaugeRecorder{}
	var logs bytes.Buffer
	var logMu sync.Mutex
	log := logger.NewSlogLogger(&lockedWriter{w: &logs, mu: &logMu}, logger.LogLevelDebug, time.UTC)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() {
		done <- reportStoredMeals(ctx, store, gauge, 5*time.Millisecond, log)
	}()

	require.Eventually(t, func() bool {
		return len(gauge.recorded()) >= 2
	}, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("reporter did not stop after cancel")
	}

	values := gauge.recorded()
	assert.Equal(t, []int64{3, 5}, values[:2], "failed counts leave the gauge untouched")

	logMu.Lock()
	defer logMu.Unlock()
	assert.Contains(t, logs.String(), "failed to count stored meals")
}

func TestReportStoredMeals_StopsImmediatelyOnCanceledContext(t *testing.T) {
	t.Parallel()

	store := &countingStore{counts: []int64{7}, errs: []error{nil}}
	gauge := &gaugeRecorder{}
	log := logger.NewSlogLogger(&bytes.Buffer{}, logger.LogLevelError, time.UTC)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	require.NoError(t, reportStoredMeals(ctx, store, gauge, time.Hour, log))
	assert.Empty(t, gauge.recorded())
}

type lockedWriter struct {
	w  *bytes.Buffer
	mu *sync.Mutex
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
