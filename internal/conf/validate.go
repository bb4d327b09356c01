// conf/validate.go

package conf

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/mealsnap/mealsnap-go/internal/errors"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ErrMissingAPIKey is returned when the nutrition API key is empty or still a placeholder.
var ErrMissingAPIKey = errors.NewStd("nutrition API key is not configured")

// placeholderKeys are values shipped in sample configs that must never be sent to the API.
var placeholderKeys = []string{"your_api_key", "sua_chave_aqui", "changeme", "your-api-key", "api_key"}

var bracketPlaceholder = regexp.MustCompile(`^<.*>$`)

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	for _, validate := range []func(*Settings) error{
		validateClassifierSettings,
		validateNutritionSettings,
		validateDatastoreSettings,
		validatePhotoSettings,
		validateTelemetrySettings,
	} {
		if err := validate(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateClassifierSettings(s *Settings) error {
	c := &s.Classifier
	c.Backend = strings.ToLower(c.Backend)

	var errs []string
	switch c.Backend {
	case BackendTFLite:
		if c.ModelPath == "" {
			errs = append(errs, "classifier.modelpath is required for the tflite backend")
		}
		if c.LabelPath == "" {
			errs = append(errs, "classifier.labelpath is required for the tflite backend")
		}
	case BackendOllama:
		if _, err := url.ParseRequestURI(c.Ollama.URL); err != nil {
			errs = append(errs, fmt.Sprintf("classifier.ollama.url is invalid: %v", err))
		}
		if c.Ollama.Model == "" {
			errs = append(errs, "classifier.ollama.model is required for the ollama backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("classifier.backend must be %q or %q, got %q", BackendTFLite, BackendOllama, c.Backend))
	}

	if c.Threshold < 0 || c.Threshold > 1 {
		errs = append(errs, fmt.Sprintf("classifier.threshold must be between 0 and 1, got %g", c.Threshold))
	}
	if c.InputSize <= 0 {
		errs = append(errs, fmt.Sprintf("classifier.inputsize must be positive, got %d", c.InputSize))
	}
	if c.Threads < 0 {
		errs = append(errs, fmt.Sprintf("classifier.threads must be non-negative, got %d", c.Threads))
	}

	if len(errs) > 0 {
		return fmt.Errorf("classifier settings errors: %v", errs)
	}
	return nil
}

// validateNutritionSettings leaves the API key alone; RequireNutritionKey checks it for the
// commands that need it.
func validateNutritionSettings(s *Settings) error {
	n := &s.Nutrition
	var errs []string

	if _, err := url.ParseRequestURI(n.BaseURL); err != nil {
		errs = append(errs, fmt.Sprintf("nutrition.baseurl is invalid: %v", err))
	}
	if n.Timeout <= 0 {
		errs = append(errs, fmt.Sprintf("nutrition.timeout must be positive, got %s", n.Timeout))
	}
	if n.RateLimit < 0 {
		errs = append(errs, fmt.Sprintf("nutrition.ratelimit must be non-negative, got %g", n.RateLimit))
	}
	if n.CacheTTL < 0 {
		errs = append(errs, fmt.Sprintf("nutrition.cachettl must be non-negative, got %s", n.CacheTTL))
	}

	if len(errs) > 0 {
		return fmt.Errorf("nutrition settings errors: %v", errs)
	}
	return nil
}

func validateDatastoreSettings(s *Settings) error {
	d := &s.Datastore
	d.Type = strings.ToLower(d.Type)

	switch d.Type {
	case DatastoreSQLite:
		if d.SQLite.Path == "" {
			return fmt.Errorf("datastore.sqlite.path is required")
		}
	case DatastoreMySQL:
		if d.MySQL.Host == "" || d.MySQL.Database == "" {
			return fmt.Errorf("datastore.mysql.host and datastore.mysql.database are required")
		}
		if d.MySQL.Port < 1 || d.MySQL.Port > 65535 {
			return fmt.Errorf("datastore.mysql.port must be between 1 and 65535, got %d", d.MySQL.Port)
		}
	default:
		return fmt.Errorf("datastore.type must be %q or %q, got %q", DatastoreSQLite, DatastoreMySQL, d.Type)
	}
	return nil
}

func validatePhotoSettings(s *Settings) error {
	p := &s.Photo
	p.Format = strings.ToLower(p.Format)
	if p.Format == "jpg" {
		p.Format = PhotoFormatJPEG
	}

	if p.Format != PhotoFormatJPEG && p.Format != PhotoFormatWebP {
		return fmt.Errorf("photo.format must be %q or %q, got %q", PhotoFormatJPEG, PhotoFormatWebP, p.Format)
	}
	if p.Quality < 1 || p.Quality > 100 {
		return fmt.Errorf("photo.quality must be between 1 and 100, got %d", p.Quality)
	}
	return nil
}

func validateTelemetrySettings(s *Settings) error {
	t := &s.Telemetry
	if t.Enabled && t.DSN == "" {
		return fmt.Errorf("telemetry.dsn is required when telemetry is enabled")
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		return fmt.Errorf("telemetry.samplerate must be between 0 and 1, got %g", t.SampleRate)
	}
	return nil
}

// RequireNutritionKey fails when key is empty or a known placeholder such as YOUR_API_KEY or <key>.
func RequireNutritionKey(key string) error {
	k := strings.TrimSpace(key)
	if k == "" || bracketPlaceholder.MatchString(k) || isPlaceholderKey(k) {
		return errors.New(ErrMissingAPIKey).
			Component("configuration").
			Category(errors.CategoryConfiguration).
			Context("hint", "set nutrition.apikey or MEALSNAP_NUTRITION_APIKEY").
			Build()
	}
	return nil
}

func isPlaceholderKey(key string) bool {
	lower := strings.ToLower(key)
	for _, p := range placeholderKeys {
		if lower == p {
			return true
		}
	}
	return false
}
