package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/mealsnap/mealsnap-go/internal/classifier"
	"github.com/mealsnap/mealsnap-go/internal/errors"
	"github.com/mealsnap/mealsnap-go/internal/logger"
	"github.com/mealsnap/mealsnap-go/internal/meal"
)

// Recognizer labels the foods in an image, best match first.
type Recognizer interface {
	Classify(ctx context.Context, image []byte) ([]string, error)
}

// NutritionLookup fetches nutrition facts for a query such as "1 apple".
type NutritionLookup interface {
	Lookup(ctx context.Context, query string) (*meal.NutritionFacts, error)
}

// Analyzer turns a photo into an AnalyzedMeal. Nutrition failures never fail an analysis.
type Analyzer struct {
	recognizer Recognizer
	nutrition  NutritionLookup
	log        logger.Logger
	metrics    Metrics
}

// AnalyzerOption configures an Analyzer.
type AnalyzerOption func(*Analyzer)

func WithAnalyzerLogger(log logger.Logger) AnalyzerOption {
	return func(a *Analyzer) {
		if log != nil {
			a.log = log
		}
	}
}

func WithAnalyzerMetrics(m Metrics) AnalyzerOption {
	return func(a *Analyzer) {
		if m != nil {
			a.metrics = m
		}
	}
}

// NewAnalyzer creates an Analyzer. A nil nutrition lookup skips enrichment.
func NewAnalyzer(recognizer Recognizer, nutrition NutritionLookup, opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{
		recognizer: recognizer,
		nutrition:  nutrition,
		log:        GetLogger(),
		metrics:    noopMetrics{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NutritionQuery is the ingredient query sent for the top label.
func NutritionQuery(label string) string {
	return "1 " + label
}

// Analyze classifies image and looks up nutrition for the top label. Each collaborator is
// called once; there are no retries.
func (a *Analyzer) Analyze(ctx context.Context, image []byte) (meal.AnalyzedMeal, error) {
	start := time.Now()

	labels, err := a.recognizer.Classify(ctx, image)
	if err != nil {
		outcome := OutcomeError
		if classifier.IsClassifierError(err) {
			outcome = OutcomeRecognitionFailed
		}
		a.metrics.RecordAnalysis(outcome, time.Since(start))
		return meal.AnalyzedMeal{}, a.recognitionError(err)
	}
	if len(labels) == 0 {
		a.log.Info("no food recognized", logger.Int("image_bytes", len(image)))
		a.metrics.RecordAnalysis(OutcomeRecognitionFailed, time.Since(start))
		return meal.AnalyzedMeal{}, errors.New(ErrRecognitionFailed).
			Component("analysis").
			Category(errors.CategoryRecognition).
			Build()
	}

	nutrition := a.lookupNutrition(ctx, labels[0])

	result := meal.NewAnalyzedMeal(image, labels, nutrition)
	elapsed := time.Since(start)
	a.log.Info("meal analyzed",
		logger.String("foods", result.IdentifiedFoods()),
		logger.Bool("nutrition", nutrition != nil),
		logger.Duration("elapsed", elapsed))
	a.metrics.RecordAnalysis(OutcomeSuccess, elapsed)
	return result, nil
}

func (a *Analyzer) recognitionError(err error) error {
	if classifier.IsClassifierError(err) {
		a.log.Warn("recognition failed", logger.Error(err))
		return errors.New(fmt.Errorf("%w: %w", ErrRecognitionFailed, err)).
			Component("analysis").
			Category(errors.CategoryRecognition).
			Build()
	}

	a.log.Error("classifier returned unexpected error", logger.Error(err))
	category := errors.CategoryGeneric
	if errors.Is(err, context.Canceled) {
		category = errors.CategoryCancellation
	} else if errors.Is(err, context.DeadlineExceeded) {
		category = errors.CategoryTimeout
	}
	return errors.New(&UnderlyingError{Cause: err}).
		Component("analysis").
		Category(category).
		Build()
}

// lookupNutrition returns nil on any failure; the error is logged and dropped.
func (a *Analyzer) lookupNutrition(ctx context.Context, label string) *meal.NutritionFacts {
	if a.nutrition == nil {
		a.metrics.RecordNutritionLookup(OutcomeSkipped)
		return nil
	}

	query := NutritionQuery(label)
	facts, err := a.nutrition.Lookup(ctx, query)
	if err != nil {
		a.log.Warn("nutrition lookup failed",
			logger.String("query", query),
			logger.String("error", logger.RedactSensitiveData(err.Error())))
		a.metrics.RecordNutritionLookup(OutcomeUnavailable)
		return nil
	}
	if facts == nil {
		a.metrics.RecordNutritionLookup(OutcomeUnavailable)
		return nil
	}
	a.metrics.RecordNutritionLookup(OutcomeSuccess)
	return facts
}
