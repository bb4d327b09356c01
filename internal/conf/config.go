// config.go: settings struct and the functions that load and save it.
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mealsnap/mealsnap-go/internal/errors"
	"github.com/mealsnap/mealsnap-go/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// Classifier backends.
const (
	BackendTFLite = "tflite"
	BackendOllama = "ollama"
)

// Datastore types.
const (
	DatastoreSQLite = "sqlite"
	DatastoreMySQL  = "mysql"
)

// Photo formats for saved meals.
const (
	PhotoFormatJPEG = "jpeg"
	PhotoFormatWebP = "webp"
)

// OllamaSettings configures the vision LLM backend.
type OllamaSettings struct {
	URL     string        `yaml:"url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// ClassifierSettings configures food recognition.
type ClassifierSettings struct {
	Backend   string         `yaml:"backend"`   // tflite or ollama
	ModelPath string         `yaml:"modelpath"` // path to .tflite model
	LabelPath string         `yaml:"labelpath"` // one label per line
	Threads   int            `yaml:"threads"`   // 0 = number of CPUs
	InputSize int            `yaml:"inputsize"` // square model input edge in pixels
	Threshold float64        `yaml:"threshold"` // minimum confidence kept
	Ollama    OllamaSettings `yaml:"ollama"`
}

// NutritionSettings configures the nutrition API client.
type NutritionSettings struct {
	APIKey    string        `yaml:"apikey"`
	BaseURL   string        `yaml:"baseurl"`
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit float64       `yaml:"ratelimit"` // requests per second, 0 = unlimited
	CacheTTL  time.Duration `yaml:"cachettl"`  // 0 disables the response cache
}

// SQLiteSettings locates the SQLite database file.
type SQLiteSettings struct {
	Path string `yaml:"path"`
}

// MySQLSettings holds MySQL connection parameters.
type MySQLSettings struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// DatastoreSettings selects and configures the meal store.
type DatastoreSettings struct {
	Type   string         `yaml:"type"`
	SQLite SQLiteSettings `yaml:"sqlite"`
	MySQL  MySQLSettings  `yaml:"mysql"`
}

// PhotoSettings controls how saved meal photos are encoded.
type PhotoSettings struct {
	Format  string `yaml:"format"`
	Quality int    `yaml:"quality"` // 1-100
}

// WebServerSettings configures the HTTP API.
type WebServerSettings struct {
	Listen string `yaml:"listen"`
}

// MetricsSettings toggles the Prometheus endpoint.
type MetricsSettings struct {
	Enabled bool `yaml:"enabled"`
}

// TelemetrySettings configures Sentry error reporting.
type TelemetrySettings struct {
	Enabled     bool    `yaml:"enabled"`
	DSN         string  `yaml:"dsn"`
	Environment string  `yaml:"environment"`
	SampleRate  float64 `yaml:"samplerate"`
}

// Settings contains all configuration options for MealSnap.
type Settings struct {
	Debug      bool                 `yaml:"debug"`
	Logging    logger.LoggingConfig `yaml:"logging"`
	Classifier ClassifierSettings   `yaml:"classifier"`
	Nutrition  NutritionSettings    `yaml:"nutrition"`
	Datastore  DatastoreSettings    `yaml:"datastore"`
	Photo      PhotoSettings        `yaml:"photo"`
	WebServer  WebServerSettings    `yaml:"webserver"`
	Metrics    MetricsSettings      `yaml:"metrics"`
	Telemetry  TelemetrySettings    `yaml:"telemetry"`
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables, validates the result and
// stores it as the current settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	if err := initViper(); err != nil {
		return nil, err
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, errors.New(fmt.Errorf("error unmarshaling config into struct: %w", err)).
			Component("configuration").
			Category(errors.CategoryFileParsing).
			Build()
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, errors.New(fmt.Errorf("error validating settings: %w", err)).
			Component("configuration").
			Category(errors.CategoryValidation).
			Build()
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper registers defaults and env bindings, then reads the config file. A file set with
// viper.SetConfigFile takes precedence over the default search paths.
func initViper() error {
	setDefaultConfig()

	if err := bindEnvVars(); err != nil {
		GetLogger().Warn("ignoring invalid environment configuration", logger.Error(err))
	}

	if viper.ConfigFileUsed() == "" {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")

		configPaths, err := GetDefaultConfigPaths()
		if err != nil {
			return err
		}
		for _, path := range configPaths {
			viper.AddConfigPath(path)
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return createDefaultConfig()
		}
		return errors.New(fmt.Errorf("fatal error reading config file: %w", err)).
			Component("configuration").
			Category(errors.CategoryFileIO).
			Build()
	}
	return nil
}

// createDefaultConfig writes the embedded config.yaml to the first default path and reads it back.
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return err
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return errors.New(fmt.Errorf("error creating directories for config file: %w", err)).
			Component("configuration").
			Category(errors.CategoryFileIO).
			Build()
	}

	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return errors.New(err).Component("configuration").Category(errors.CategoryFileIO).Build()
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return errors.New(fmt.Errorf("error writing default config file: %w", err)).
			Component("configuration").
			Category(errors.CategoryFileIO).
			Build()
	}

	GetLogger().Info("created default config file", logger.String("path", configPath))
	viper.SetConfigFile(configPath)
	return viper.ReadInConfig()
}

// DefaultConfig returns the embedded default configuration file.
func DefaultConfig() []byte {
	data, _ := fs.ReadFile(configFiles, "config.yaml")
	return data
}

// GetSettings returns the current settings instance, nil before Load.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveYAMLConfig writes settings to configPath through a temporary file and a rename.
// Comments in the existing file are not preserved.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return errors.New(fmt.Errorf("error marshaling settings to YAML: %w", err)).
			Component("configuration").
			Category(errors.CategoryFileParsing).
			Build()
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return errors.New(fmt.Errorf("error creating temporary file: %w", err)).
			Component("configuration").
			Category(errors.CategoryFileIO).
			Build()
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName) //nolint:errcheck // gone after a successful rename

	if _, err := tempFile.Write(yamlData); err != nil {
		_ = tempFile.Close()
		return errors.New(fmt.Errorf("error writing to temporary file: %w", err)).
			Component("configuration").
			Category(errors.CategoryFileIO).
			Build()
	}
	if err := tempFile.Close(); err != nil {
		return errors.New(fmt.Errorf("error closing temporary file: %w", err)).
			Component("configuration").
			Category(errors.CategoryFileIO).
			Build()
	}

	if err := moveFile(tempFileName, configPath); err != nil {
		return errors.New(fmt.Errorf("error replacing config file: %w", err)).
			Component("configuration").
			Category(errors.CategoryFileIO).
			Build()
	}
	return nil
}
