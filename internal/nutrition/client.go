package nutrition

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/mealsnap/mealsnap-go/internal/errors"
	"github.com/mealsnap/mealsnap-go/internal/logger"
	"github.com/mealsnap/mealsnap-go/internal/meal"
)

// maxResponseSize caps how much of a response body is read.
const maxResponseSize = 1 << 20

// Client looks up nutrition facts for a free text ingredient query
type Client struct {
	config      Config
	baseURL     *url.URL
	httpClient  *http.Client
	cache       *cache.Cache // nil when CacheTTL is 0
	rateLimiter *rate.Limiter
	recorder    Recorder
	log         logger.Logger
	firstCallMu sync.Once

	apiCalls    atomic.Int64
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
	apiErrors   atomic.Int64
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client. Its timeout is left as given.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(c *Client) {
		c.recorder = r
	}
}

func WithLogger(log logger.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// NewClient creates a new nutrition API client
func NewClient(config Config, opts ...Option) (*Client, error) {
	if config.APIKey == "" {
		return nil, errors.Newf("nutrition API key is required").
			Category(errors.CategoryConfiguration).
			Component("nutrition").
			Build()
	}

	// Use defaults for missing config values
	if config.BaseURL == "" {
		config.BaseURL = DefaultConfig().BaseURL
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}

	base, err := url.Parse(strings.TrimRight(config.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, errors.New(fmt.Errorf("%w: %q", ErrInvalidURL, config.BaseURL)).
			Category(errors.CategoryConfiguration).
			Component("nutrition").
			Build()
	}

	client := &Client{
		config:     config,
		baseURL:    base,
		httpClient: &http.Client{Timeout: config.Timeout},
		log:        GetLogger(),
	}
	if config.CacheTTL > 0 {
		client.cache = cache.New(config.CacheTTL, config.CacheTTL*2)
	}
	if config.RateLimit > 0 {
		client.rateLimiter = rate.NewLimiter(rate.Limit(config.RateLimit), 1)
	}
	for _, opt := range opts {
		opt(client)
	}

	client.log.Info("nutrition client initialized",
		logger.String("base_url", base.String()),
		logger.Duration("timeout", config.Timeout),
		logger.Float64("rate_limit_rps", config.RateLimit),
		logger.Duration("cache_ttl", config.CacheTTL),
		logger.Bool("api_key_configured", config.APIKey != ""))

	return client, nil
}

// Lookup parses query (for example "1 apple") and returns the nutrients of the first ingredient.
// No retries are attempted.
func (c *Client) Lookup(ctx context.Context, query string) (*meal.NutritionFacts, error) {
	start := time.Now()
	cacheKey := strings.ToLower(strings.TrimSpace(query))

	if c.cache != nil {
		if cached, found := c.cache.Get(cacheKey); found {
			if facts, ok := cached.(meal.NutritionFacts); ok {
				c.cacheHits.Add(1)
				c.record(OutcomeCacheHit, time.Since(start))
				c.log.Debug("nutrition cache hit", logger.String("query", query))
				return &facts, nil
			}
		}
		c.cacheMisses.Add(1)
	}

	facts, err := c.fetch(ctx, query)
	if err != nil {
		c.apiErrors.Add(1)
		c.record(OutcomeError, time.Since(start))
		return nil, err
	}

	if c.cache != nil {
		c.cache.Set(cacheKey, *facts, cache.DefaultExpiration)
	}
	c.record(OutcomeSuccess, time.Since(start))
	return facts, nil
}

func (c *Client) fetch(ctx context.Context, query string) (*meal.NutritionFacts, error) {
	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, errors.New(fmt.Errorf("%w: rate limiter: %w", ErrRequestFailed, err)).
				Category(errors.CategoryLimit).
				Context("operation", "rate_limiter_wait").
				Component("nutrition").
				Build()
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	endpoint := c.endpoint(query)
	safeURL := logger.RedactSensitiveData(endpoint)

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, errors.New(fmt.Errorf("%w: %w", ErrInvalidURL, err)).
			Category(errors.CategoryConfiguration).
			Context("url", safeURL).
			Component("nutrition").
			Build()
	}
	req.Header.Set("Accept", "application/json")

	c.apiCalls.Add(1)
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		category := errors.CategoryNetwork
		if reqCtx.Err() == context.DeadlineExceeded {
			category = errors.CategoryTimeout
		}
		// url.Error embeds the full URL, including the API key
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		c.log.Warn("nutrition request failed",
			logger.String("url", safeURL),
			logger.String("error", logger.RedactSensitiveData(err.Error())))
		return nil, errors.New(fmt.Errorf("%w: %w", ErrRequestFailed, err)).
			Category(category).
			NetworkContext(safeURL, c.config.Timeout).
			Timing("nutrition-request", time.Since(start)).
			Component("nutrition").
			Build()
	}
	defer resp.Body.Close() //nolint:errcheck // body fully read below

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, errors.New(fmt.Errorf("%w: reading body: %w", ErrRequestFailed, err)).
			Category(errors.CategoryNetwork).
			Context("url", safeURL).
			Context("status_code", resp.StatusCode).
			Component("nutrition").
			Build()
	}

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusPaymentRequired {
			c.log.Error("nutrition API authentication failed",
				logger.Int("status_code", resp.StatusCode),
				logger.String("url", safeURL),
				logger.String("message", "check nutrition.apikey in the configuration"))
		} else {
			c.log.Warn("nutrition API error response",
				logger.Int("status_code", resp.StatusCode),
				logger.String("url", safeURL),
				logger.String("response_preview", preview(body)))
		}
		return nil, errors.New(fmt.Errorf("%w: status %d", ErrInvalidResponse, resp.StatusCode)).
			Category(getErrorCategory(resp.StatusCode)).
			Context("status_code", resp.StatusCode).
			Context("url", safeURL).
			Component("nutrition").
			Build()
	}

	facts, err := parseNutrition(body)
	if err != nil {
		c.log.Warn("failed to parse nutrition response",
			logger.String("url", safeURL),
			logger.Int("response_size", len(body)),
			logger.String("response_preview", preview(body)),
			logger.Error(err))
		return nil, errors.New(fmt.Errorf("%w: %w", ErrDecodingFailed, err)).
			Category(errors.CategoryFileParsing).
			Context("url", safeURL).
			Context("response_size", len(body)).
			Component("nutrition").
			Build()
	}

	c.firstCallMu.Do(func() {
		c.log.Info("nutrition API authentication successful")
	})
	c.log.Debug("nutrition API response",
		logger.String("query", query),
		logger.Duration("duration", time.Since(start)),
		logger.Int("response_size", len(body)))

	return facts, nil
}

// endpoint builds {base}/recipes/parseIngredients with the query parameters set.
func (c *Client) endpoint(query string) string {
	u := c.baseURL.JoinPath("recipes", "parseIngredients")
	params := url.Values{}
	params.Set("ingredientList", query)
	params.Set("servings", "1")
	params.Set("apiKey", c.config.APIKey)
	u.RawQuery = params.Encode()
	return u.String()
}

func (c *Client) record(outcome string, d time.Duration) {
	if c.recorder != nil {
		c.recorder.RecordNutritionRequest(outcome, d)
	}
}

// ClearCache drops all cached responses
func (c *Client) ClearCache() {
	if c.cache != nil {
		c.cache.Flush()
	}
}

// GetMetrics returns current client counters
func (c *Client) GetMetrics() Metrics {
	return Metrics{
		APICalls:    c.apiCalls.Load(),
		CacheHits:   c.cacheHits.Load(),
		CacheMisses: c.cacheMisses.Load(),
		APIErrors:   c.apiErrors.Load(),
	}
}

func preview(body []byte) string {
	s := string(body)
	if len(s) > 500 {
		s = s[:500] + "..."
	}
	return logger.RedactSensitiveData(s)
}

// getErrorCategory determines the error category for a non-200 status code
func getErrorCategory(statusCode int) errors.ErrorCategory {
	switch statusCode {
	case http.StatusUnauthorized, http.StatusPaymentRequired, http.StatusForbidden:
		// Spoonacular answers 402 when the daily quota of the key is used up
		return errors.CategoryConfiguration
	case http.StatusTooManyRequests:
		return errors.CategoryLimit
	case http.StatusNotFound:
		return errors.CategoryNotFound
	default:
		return errors.CategoryHTTP
	}
}
