// Package classifier turns meal photos into ranked food labels using an injected vision model.
package classifier

import (
	"context"
	"fmt"
	"image"
	"runtime/debug"
	"time"

	"github.com/mealsnap/mealsnap-go/internal/errors"
	"github.com/mealsnap/mealsnap-go/internal/logger"
	"github.com/mealsnap/mealsnap-go/internal/photo"
)

const (
	// DefaultThreshold is the minimum confidence a label must exceed to be reported.
	DefaultThreshold float32 = 0.05
	// DefaultInputSize is the square input edge expected by MobileNet style models.
	DefaultInputSize = 224
)

var (
	// ErrImageProcessingFailed means the input could not be decoded or resized.
	ErrImageProcessingFailed = errors.NewStd("image processing failed")
	// ErrInferenceFailed means the model could not produce predictions.
	ErrInferenceFailed = errors.NewStd("inference failed")
	// ErrNilModel is returned by New when no model is given.
	ErrNilModel = errors.NewStd("classifier model is nil")
)

// Prediction is one label scored by a model.
type Prediction struct {
	Label      string  `json:"label"`
	Confidence float32 `json:"confidence"`
}

// Model scores a preprocessed square image. Predictions are returned in the model's ranking.
type Model interface {
	Name() string
	Predict(ctx context.Context, img *image.NRGBA) ([]Prediction, error)
	Close() error
}

// Result is delivered to ClassifyAsync callbacks.
type Result struct {
	Labels      []string
	Predictions []Prediction
	Err         error
}

// Recorder receives per-classification measurements.
type Recorder interface {
	RecordClassification(model string, duration time.Duration, labels int, err error)
}

// Classifier preprocesses images, runs the model and filters low confidence labels.
type Classifier struct {
	model     Model
	threshold float32
	inputSize int
	log       logger.Logger
	recorder  Recorder
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithThreshold sets the confidence a label must exceed.
func WithThreshold(threshold float32) Option {
	return func(c *Classifier) {
		c.threshold = threshold
	}
}

// WithInputSize sets the square edge images are resized to before inference.
func WithInputSize(size int) Option {
	return func(c *Classifier) {
		if size > 0 {
			c.inputSize = size
		}
	}
}

func WithLogger(log logger.Logger) Option {
	return func(c *Classifier) {
		if log != nil {
			c.log = log
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(c *Classifier) {
		c.recorder = r
	}
}

// New wraps model. The model is owned by the Classifier and closed by Close.
func New(model Model, opts ...Option) (*Classifier, error) {
	if model == nil {
		return nil, errors.New(ErrNilModel).
			Component("classifier").
			Category(errors.CategoryModelInit).
			Build()
	}

	c := &Classifier{
		model:     model,
		threshold: DefaultThreshold,
		inputSize: DefaultInputSize,
		log:       GetLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.threshold < 0 || c.threshold > 1 {
		return nil, errors.Newf("threshold must be between 0 and 1, got %g", c.threshold).
			Component("classifier").
			Category(errors.CategoryValidation).
			Build()
	}
	return c, nil
}

// ModelName returns the wrapped model's name.
func (c *Classifier) ModelName() string {
	return c.model.Name()
}

// Threshold returns the configured confidence threshold.
func (c *Classifier) Threshold() float32 {
	return c.threshold
}

// ClassifyAsync runs preprocessing and inference on a new goroutine and calls done exactly once.
func (c *Classifier) ClassifyAsync(ctx context.Context, data []byte, done func(Result)) {
	go func() {
		var result Result
		defer func() {
			if r := recover(); r != nil {
				c.log.Error("classification panicked",
					logger.Any("panic", r),
					logger.String("stack", string(debug.Stack())))
				result = Result{Err: errors.Newf("classification panicked: %v", r).
					Component("classifier").
					Category(errors.CategorySystem).
					Build()}
			}
			done(result)
		}()
		result = c.classify(ctx, data)
	}()
}

// Classify is the blocking form of ClassifyAsync. It returns early when ctx is done.
func (c *Classifier) Classify(ctx context.Context, data []byte) ([]string, error) {
	future := newOneShot(c.log)
	c.ClassifyAsync(ctx, data, future.fire)

	result, err := future.wait(ctx)
	if err != nil {
		return nil, err
	}
	return result.Labels, result.Err
}

func (c *Classifier) classify(ctx context.Context, data []byte) Result {
	start := time.Now()

	img, _, err := photo.Decode(data)
	var square *image.NRGBA
	if err == nil {
		square, err = photo.Square(img, c.inputSize)
	}
	if err != nil {
		err = errors.New(fmt.Errorf("%w: %w", ErrImageProcessingFailed, err)).
			Component("classifier").
			Category(errors.CategoryImageProcessing).
			Context("input_size", c.inputSize).
			Build()
		c.record(time.Since(start), 0, err)
		return Result{Err: err}
	}

	if err := ctx.Err(); err != nil {
		return Result{Err: err}
	}

	predictions, err := c.model.Predict(ctx, square)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{Err: ctxErr}
		}
		err = errors.New(fmt.Errorf("%w: %w", ErrInferenceFailed, err)).
			Component("classifier").
			Category(errors.CategoryModelInference).
			Context("model", c.model.Name()).
			Timing("predict", time.Since(start)).
			Build()
		c.record(time.Since(start), 0, err)
		return Result{Err: err}
	}

	kept := FilterPredictions(predictions, c.threshold)
	labels := make([]string, len(kept))
	for i, p := range kept {
		labels[i] = p.Label
	}

	elapsed := time.Since(start)
	c.log.Debug("classification finished",
		logger.String("model", c.model.Name()),
		logger.Int("predictions", len(predictions)),
		logger.Int("labels", len(labels)),
		logger.Duration("elapsed", elapsed))
	c.record(elapsed, len(labels), nil)

	return Result{Labels: labels, Predictions: kept}
}

func (c *Classifier) record(d time.Duration, labels int, err error) {
	if c.recorder != nil {
		c.recorder.RecordClassification(c.model.Name(), d, labels, err)
	}
}

// Close releases the model.
func (c *Classifier) Close() error {
	return c.model.Close()
}

// FilterPredictions keeps predictions whose confidence exceeds threshold, preserving order.
func FilterPredictions(predictions []Prediction, threshold float32) []Prediction {
	kept := make([]Prediction, 0, len(predictions))
	for _, p := range predictions {
		if p.Confidence > threshold {
			kept = append(kept, p)
		}
	}
	return kept
}

// IsClassifierError reports whether err is one of this package's failure kinds.
func IsClassifierError(err error) bool {
	return errors.Is(err, ErrImageProcessingFailed) || errors.Is(err, ErrInferenceFailed)
}
