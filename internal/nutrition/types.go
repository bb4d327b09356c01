// Package nutrition provides a client for the Spoonacular ingredient parsing API
package nutrition

import (
	"time"

	"github.com/mealsnap/mealsnap-go/internal/errors"
)

var (
	// ErrInvalidURL means the request URL could not be built from the base URL.
	ErrInvalidURL = errors.NewStd("invalid nutrition API URL")
	// ErrRequestFailed means the HTTP request did not complete.
	ErrRequestFailed = errors.NewStd("nutrition request failed")
	// ErrInvalidResponse means the API answered with a status other than 200.
	ErrInvalidResponse = errors.NewStd("invalid nutrition API response")
	// ErrDecodingFailed means the body was not the expected ingredient array or it was empty.
	ErrDecodingFailed = errors.NewStd("failed to decode nutrition response")
)

// Config holds configuration for the nutrition client
type Config struct {
	APIKey    string        `json:"api_key"`
	BaseURL   string        `json:"base_url"`
	Timeout   time.Duration `json:"timeout"`
	RateLimit float64       `json:"rate_limit"` // requests per second, 0 disables limiting
	CacheTTL  time.Duration `json:"cache_ttl"`  // 0 disables the response cache
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		BaseURL:   "https://api.spoonacular.com",
		Timeout:   10 * time.Second,
		RateLimit: 1,
	}
}

// Outcomes reported to a Recorder.
const (
	OutcomeSuccess  = "success"
	OutcomeCacheHit = "cache_hit"
	OutcomeError    = "error"
)

// Recorder receives per-request measurements.
type Recorder interface {
	RecordNutritionRequest(outcome string, duration time.Duration)
}

// Metrics represents nutrition client counters
type Metrics struct {
	APICalls    int64 `json:"api_calls"`
	CacheHits   int64 `json:"cache_hits"`
	CacheMisses int64 `json:"cache_misses"`
	APIErrors   int64 `json:"api_errors"`
}
