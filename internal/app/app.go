// Package app wires the meal analysis pipeline together from settings.
package app

import (
	"net/http"

	"github.com/mealsnap/mealsnap-go/internal/analysis"
	"github.com/mealsnap/mealsnap-go/internal/buildinfo"
	"github.com/mealsnap/mealsnap-go/internal/classifier"
	"github.com/mealsnap/mealsnap-go/internal/conf"
	"github.com/mealsnap/mealsnap-go/internal/datastore"
	"github.com/mealsnap/mealsnap-go/internal/errors"
	"github.com/mealsnap/mealsnap-go/internal/httpclient"
	"github.com/mealsnap/mealsnap-go/internal/logger"
	"github.com/mealsnap/mealsnap-go/internal/nutrition"
	"github.com/mealsnap/mealsnap-go/internal/observability"
	"github.com/mealsnap/mealsnap-go/internal/photo"
)

// GetLogger returns the app package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("app")
}

// App holds the long lived components of one MealSnap process.
type App struct {
	Settings   *conf.Settings
	Store      datastore.Interface
	Classifier *classifier.Classifier
	Nutrition  *nutrition.Client
	Analyzer   *analysis.Analyzer
	Gateway    *analysis.Gateway
	Pipeline   *analysis.Pipeline
	Metrics    *observability.Metrics

	closers []func() error
}

type options struct {
	model      classifier.Model
	httpClient *http.Client
	metrics    *observability.Metrics
}

// Option customises New.
type Option func(*options)

// WithModel injects a classification model instead of building one from settings.
func WithModel(m classifier.Model) Option {
	return func(o *options) {
		o.model = m
	}
}

// WithHTTPClient sets the client used for nutrition API calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		o.httpClient = hc
	}
}

// WithMetrics reuses an existing metrics registry instead of creating one.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// New builds the full pipeline: datastore, classifier, nutrition client,
// analyzer, persistence gateway and state machine. The nutrition API key must be set.
// On error, everything opened so far is closed again.
func New(settings *conf.Settings, opts ...Option) (*App, error) {
	if err := conf.RequireNutritionKey(settings.Nutrition.APIKey); err != nil {
		return nil, err
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	a := &App{Settings: settings, Metrics: o.metrics}
	ready := false
	defer func() {
		if !ready {
			if err := a.Close(); err != nil {
				GetLogger().Warn("error releasing resources after failed startup", logger.Error(err))
			}
		}
	}()

	var err error

	if a.Metrics == nil && settings.Metrics.Enabled {
		if a.Metrics, err = observability.NewMetrics(); err != nil {
			return nil, err
		}
	}

	if a.Store, err = OpenStore(settings); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.Store.Close)

	model := o.model
	if model == nil {
		if model, err = NewModel(settings); err != nil {
			return nil, err
		}
	}

	if a.Classifier, err = newClassifier(settings, model, a.Metrics); err != nil {
		_ = model.Close()
		return nil, err
	}
	a.closers = append(a.closers, a.Classifier.Close)

	if a.Nutrition, err = newNutritionClient(settings, o.httpClient, a.Metrics); err != nil {
		return nil, err
	}

	encoder, err := photo.NewEncoder(settings.Photo.Format, settings.Photo.Quality)
	if err != nil {
		return nil, err
	}

	var analyzerOpts []analysis.AnalyzerOption
	var gatewayOpts []analysis.GatewayOption
	var pipelineOpts []analysis.PipelineOption
	if a.Metrics != nil {
		analyzerOpts = append(analyzerOpts, analysis.WithAnalyzerMetrics(a.Metrics.Pipeline))
		gatewayOpts = append(gatewayOpts, analysis.WithGatewayMetrics(a.Metrics.Pipeline))
		pipelineOpts = append(pipelineOpts, analysis.WithMetrics(a.Metrics.Pipeline))
	}

	a.Analyzer = analysis.NewAnalyzer(a.Classifier, a.Nutrition, analyzerOpts...)
	a.Gateway = analysis.NewGateway(a.Store, encoder, gatewayOpts...)
	a.Pipeline = analysis.NewPipeline(a.Analyzer, a.Gateway, pipelineOpts...)

	GetLogger().Info("pipeline ready",
		logger.String("model", a.Classifier.ModelName()),
		logger.Float32("threshold", a.Classifier.Threshold()),
		logger.String("datastore", settings.Datastore.Type),
		logger.String("photo_format", encoder.Format),
		logger.Bool("metrics", a.Metrics != nil))

	ready = true
	return a, nil
}

// Close releases the classifier and datastore in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// OpenStore creates and opens the configured datastore.
func OpenStore(settings *conf.Settings) (datastore.Interface, error) {
	store, err := datastore.New(settings)
	if err != nil {
		return nil, err
	}
	if err := store.Open(); err != nil {
		return nil, err
	}
	return store, nil
}

// NewModel loads the configured classification backend.
func NewModel(settings *conf.Settings) (classifier.Model, error) {
	c := settings.Classifier
	switch c.Backend {
	case conf.BackendTFLite, "":
		return classifier.NewTFLiteModel(classifier.ModelConfig{
			ModelPath: conf.ExpandPath(c.ModelPath),
			LabelPath: conf.ExpandPath(c.LabelPath),
			Threads:   c.Threads,
		})
	case conf.BackendOllama:
		return classifier.NewOllamaModel(classifier.OllamaConfig{
			URL:        c.Ollama.URL,
			Model:      c.Ollama.Model,
			Timeout:    c.Ollama.Timeout,
			HTTPClient: newHTTPClient("ollama"),
		})
	default:
		return nil, errors.Newf("unsupported classifier backend: %s", c.Backend).
			Component("app").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

// inputSizer is implemented by models with a fixed input tensor.
type inputSizer interface {
	InputSize() int
}

func newClassifier(settings *conf.Settings, model classifier.Model, m *observability.Metrics) (*classifier.Classifier, error) {
	inputSize := settings.Classifier.InputSize
	if s, ok := model.(inputSizer); ok && s.InputSize() > 0 {
		inputSize = s.InputSize()
	}

	opts := []classifier.Option{
		classifier.WithThreshold(float32(settings.Classifier.Threshold)),
	}
	if inputSize > 0 {
		opts = append(opts, classifier.WithInputSize(inputSize))
	}
	if m != nil {
		opts = append(opts, classifier.WithRecorder(m.Classifier))
	}
	return classifier.New(model, opts...)
}

// newHTTPClient returns a pooled client that tags requests with the build's User-Agent.
// Request deadlines come from the callers' contexts.
func newHTTPClient(service string) *http.Client {
	return httpclient.New(&httpclient.Config{
		UserAgent: buildinfo.Current().UserAgent(),
		Logger:    GetLogger().With(logger.String("service", service)),
	})
}

func newNutritionClient(settings *conf.Settings, hc *http.Client, m *observability.Metrics) (*nutrition.Client, error) {
	n := settings.Nutrition
	cfg := nutrition.DefaultConfig()
	cfg.APIKey = n.APIKey
	if n.BaseURL != "" {
		cfg.BaseURL = n.BaseURL
	}
	if n.Timeout > 0 {
		cfg.Timeout = n.Timeout
	}
	cfg.RateLimit = n.RateLimit
	cfg.CacheTTL = n.CacheTTL

	if hc == nil {
		hc = newHTTPClient("nutrition")
	}
	opts := []nutrition.Option{nutrition.WithHTTPClient(hc)}
	if m != nil {
		opts = append(opts, nutrition.WithRecorder(m.Nutrition))
	}
	return nutrition.NewClient(cfg, opts...)
}
