package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/mealsnap/mealsnap-go/internal/analysis"
	mw "github.com/mealsnap/mealsnap-go/internal/api/middleware"
	"github.com/mealsnap/mealsnap-go/internal/buildinfo"
	"github.com/mealsnap/mealsnap-go/internal/errors"
	"github.com/mealsnap/mealsnap-go/internal/logger"
	"github.com/mealsnap/mealsnap-go/internal/meal"
	"github.com/mealsnap/mealsnap-go/internal/observability"
)

// History reads saved meals. *analysis.Gateway satisfies it.
type History interface {
	Get(ctx context.Context, id string) (meal.SavedMealRecord, error)
	List(ctx context.Context, limit, offset int) ([]meal.SavedMealRecord, error)
}

// Server is the HTTP server for the MealSnap API.
// It owns a single pipeline, so concurrent requests serialise on the pipeline state.
type Server struct {
	echo   *echo.Echo
	config *Config
	log    logger.Logger

	pipeline *analysis.Pipeline
	history  History
	metrics  *observability.Metrics

	startTime time.Time
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithLogger sets the logger for the server.
func WithLogger(log logger.Logger) ServerOption {
	return func(s *Server) {
		s.log = log
	}
}

// WithMetrics sets the observability metrics for the server. The /metrics
// endpoint is only served when Config.MetricsEnabled is also set.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// New creates a new HTTP server around pipeline and history.
func New(config *Config, pipeline *analysis.Pipeline, history History, opts ...ServerOption) (*Server, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.New(fmt.Errorf("invalid server configuration: %w", err)).
			Component("api").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if pipeline == nil || history == nil {
		return nil, errors.Newf("api server requires a pipeline and a meal history").
			Component("api").
			Category(errors.CategoryValidation).
			Build()
	}

	s := &Server{
		config:    config,
		pipeline:  pipeline,
		history:   history,
		startTime: time.Now(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.log == nil {
		s.log = GetLogger()
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Debug = config.Debug
	s.echo.HTTPErrorHandler = s.errorHandler

	s.echo.Server.ReadTimeout = config.ReadTimeout
	s.echo.Server.WriteTimeout = config.WriteTimeout
	s.echo.Server.IdleTimeout = config.IdleTimeout

	s.setupMiddleware()
	s.setupRoutes()

	s.log.Info("HTTP server initialized",
		logger.String("address", config.Listen),
		logger.Bool("metrics", s.metricsEnabled()),
		logger.Bool("debug", config.Debug))

	return s, nil
}

// setupMiddleware configures the Echo middleware stack.
func (s *Server) setupMiddleware() {
	// Recovery middleware - should be first
	s.echo.Use(echomw.Recover())

	s.echo.Use(mw.NewRequestLoggerWithSkipper(s.log, func(c echo.Context) bool {
		return c.Path() == "/metrics" || c.Path() == "/health"
	}))

	if s.metrics != nil {
		s.echo.Use(mw.NewMetrics(s.metrics.HTTP))
	}

	s.echo.Use(echomw.BodyLimit(s.config.BodyLimit))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)

	v1 := s.echo.Group("/api/v1")
	v1.GET("/state", s.getState)
	v1.POST("/capture", s.capture)
	v1.POST("/analyze", s.analyze)
	v1.POST("/save", s.save)
	v1.POST("/dismiss", s.dismiss)
	v1.POST("/reset", s.reset)

	v1.GET("/meals", s.listMeals)
	v1.GET("/meals/:id", s.getMeal)
	v1.GET("/meals/:id/photo", s.getMealPhoto)

	if s.metricsEnabled() {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}
}

func (s *Server) metricsEnabled() bool {
	return s.config.MetricsEnabled && s.metrics != nil
}

// healthCheck handles the server health check endpoint.
func (s *Server) healthCheck(c echo.Context) error {
	uptime := time.Since(s.startTime)
	build := buildinfo.Current()
	return c.JSON(http.StatusOK, map[string]any{
		"status":         "healthy",
		"version":        build.GetVersion(),
		"build_date":     build.GetBuildDate(),
		"state":          s.pipeline.State().String(),
		"uptime":         uptime.String(),
		"uptime_seconds": uptime.Seconds(),
		"timestamp":      time.Now().Format(time.RFC3339),
	})
}

// Run serves HTTP requests until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting HTTP server", logger.String("address", s.config.Listen))
		err := s.echo.Start(s.config.Listen)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- errors.New(err).
				Component("api").
				Category(errors.CategoryNetwork).
				Context("address", s.config.Listen).
				Build()
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	if err := s.Shutdown(); err != nil {
		return err
	}
	return <-errCh
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := s.echo.Shutdown(ctx); err != nil {
		s.log.Error("error during server shutdown", logger.Error(err))
		return fmt.Errorf("shutdown error: %w", err)
	}
	s.log.Info("server shutdown complete")
	return nil
}

// Echo returns the underlying Echo instance.
// This is useful for testing or advanced configuration.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
