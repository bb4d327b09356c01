// env.go - environment variable bindings and their validation
package conf

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// envBinding maps a config key to one or more environment variables.
type envBinding struct {
	ConfigKey string
	EnvVars   []string
	Validate  func(string) error
}

func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", []string{"MEALSNAP_DEBUG"}, validateEnvBool},

		{"classifier.backend", []string{"MEALSNAP_CLASSIFIER_BACKEND"}, validateEnvOneOf(BackendTFLite, BackendOllama)},
		{"classifier.modelpath", []string{"MEALSNAP_CLASSIFIER_MODELPATH"}, nil},
		{"classifier.labelpath", []string{"MEALSNAP_CLASSIFIER_LABELPATH"}, nil},
		{"classifier.threads", []string{"MEALSNAP_CLASSIFIER_THREADS"}, validateEnvNonNegativeInt},
		{"classifier.threshold", []string{"MEALSNAP_CLASSIFIER_THRESHOLD"}, validateEnvThreshold},
		{"classifier.ollama.url", []string{"MEALSNAP_OLLAMA_URL", "OLLAMA_HOST"}, validateEnvURL},
		{"classifier.ollama.model", []string{"MEALSNAP_OLLAMA_MODEL"}, nil},

		// SPOONACULAR_API_KEY is accepted for compatibility with existing deployments.
		{"nutrition.apikey", []string{"MEALSNAP_NUTRITION_APIKEY", "SPOONACULAR_API_KEY"}, nil},
		{"nutrition.baseurl", []string{"MEALSNAP_NUTRITION_BASEURL"}, validateEnvURL},
		{"nutrition.timeout", []string{"MEALSNAP_NUTRITION_TIMEOUT"}, validateEnvDuration},

		{"datastore.type", []string{"MEALSNAP_DATASTORE_TYPE"}, validateEnvOneOf(DatastoreSQLite, DatastoreMySQL)},
		{"datastore.sqlite.path", []string{"MEALSNAP_SQLITE_PATH"}, nil},
		{"datastore.mysql.host", []string{"MEALSNAP_MYSQL_HOST"}, nil},
		{"datastore.mysql.port", []string{"MEALSNAP_MYSQL_PORT"}, validateEnvPort},
		{"datastore.mysql.username", []string{"MEALSNAP_MYSQL_USERNAME"}, nil},
		{"datastore.mysql.password", []string{"MEALSNAP_MYSQL_PASSWORD"}, nil},
		{"datastore.mysql.database", []string{"MEALSNAP_MYSQL_DATABASE"}, nil},

		{"photo.format", []string{"MEALSNAP_PHOTO_FORMAT"}, validateEnvOneOf(PhotoFormatJPEG, PhotoFormatWebP)},
		{"webserver.listen", []string{"MEALSNAP_LISTEN"}, nil},
		{"metrics.enabled", []string{"MEALSNAP_METRICS_ENABLED"}, validateEnvBool},
		{"telemetry.enabled", []string{"MEALSNAP_TELEMETRY_ENABLED"}, validateEnvBool},
		{"telemetry.dsn", []string{"MEALSNAP_TELEMETRY_DSN", "SENTRY_DSN"}, nil},
	}
}

// bindEnvVars binds every variable and reports all invalid values in one error.
func bindEnvVars() error {
	var warnings []string

	for _, b := range getEnvBindings() {
		if err := viper.BindEnv(append([]string{b.ConfigKey}, b.EnvVars...)...); err != nil {
			warnings = append(warnings, fmt.Sprintf("failed to bind %s: %v", b.ConfigKey, err))
			continue
		}
		if b.Validate == nil {
			continue
		}
		for _, name := range b.EnvVars {
			value := os.Getenv(name)
			if value == "" {
				continue
			}
			if err := b.Validate(value); err != nil {
				warnings = append(warnings, fmt.Sprintf("invalid %s value %q: %v", name, value, err))
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}
	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("must be true/false, 1/0, t/f")
	}
	return nil
}

func validateEnvThreshold(value string) error {
	threshold, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid threshold: %w", err)
	}
	if threshold < 0.0 || threshold > 1.0 {
		return fmt.Errorf("threshold must be between 0.0 and 1.0, got %g", threshold)
	}
	return nil
}

func validateEnvNonNegativeInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid integer: %w", err)
	}
	if n < 0 {
		return fmt.Errorf("must be non-negative, got %d", n)
	}
	return nil
}

func validateEnvPort(value string) error {
	port, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid port: %w", err)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

func validateEnvDuration(value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("duration must be positive, got %s", d)
	}
	return nil
}

func validateEnvURL(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	return nil
}

func validateEnvOneOf(valid ...string) func(string) error {
	return func(value string) error {
		if slices.Contains(valid, strings.ToLower(value)) {
			return nil
		}
		return fmt.Errorf("must be one of: %s", strings.Join(valid, ", "))
	}
}
