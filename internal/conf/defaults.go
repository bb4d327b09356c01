// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Default values shared with the embedded config.yaml.
const (
	DefaultThreshold        = 0.05
	DefaultInputSize        = 224
	DefaultNutritionBaseURL = "https://api.spoonacular.com"
	DefaultNutritionTimeout = 10 * time.Second
	DefaultPhotoQuality     = 80
	DefaultListen           = ":8080"
)

func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("logging.default_level", "info")
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.console.enabled", true)
	viper.SetDefault("logging.console.level", "info")
	viper.SetDefault("logging.file_output.enabled", false)
	viper.SetDefault("logging.file_output.path", "logs/mealsnap.log")
	viper.SetDefault("logging.file_output.level", "info")

	viper.SetDefault("classifier.backend", BackendTFLite)
	viper.SetDefault("classifier.modelpath", "model/food.tflite")
	viper.SetDefault("classifier.labelpath", "model/labels.txt")
	viper.SetDefault("classifier.threads", 0)
	viper.SetDefault("classifier.inputsize", DefaultInputSize)
	viper.SetDefault("classifier.threshold", DefaultThreshold)
	viper.SetDefault("classifier.ollama.url", "http://localhost:11434")
	viper.SetDefault("classifier.ollama.model", "llava")
	viper.SetDefault("classifier.ollama.timeout", 60*time.Second)

	viper.SetDefault("nutrition.apikey", "")
	viper.SetDefault("nutrition.baseurl", DefaultNutritionBaseURL)
	viper.SetDefault("nutrition.timeout", DefaultNutritionTimeout)
	viper.SetDefault("nutrition.ratelimit", 1.0)
	viper.SetDefault("nutrition.cachettl", time.Duration(0))

	viper.SetDefault("datastore.type", DatastoreSQLite)
	viper.SetDefault("datastore.sqlite.path", "mealsnap.db")
	viper.SetDefault("datastore.mysql.host", "localhost")
	viper.SetDefault("datastore.mysql.port", 3306)
	viper.SetDefault("datastore.mysql.username", "mealsnap")
	viper.SetDefault("datastore.mysql.password", "")
	viper.SetDefault("datastore.mysql.database", "mealsnap")

	viper.SetDefault("photo.format", PhotoFormatJPEG)
	viper.SetDefault("photo.quality", DefaultPhotoQuality)

	viper.SetDefault("webserver.listen", DefaultListen)

	viper.SetDefault("metrics.enabled", true)

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.dsn", "")
	viper.SetDefault("telemetry.environment", "production")
	viper.SetDefault("telemetry.samplerate", 1.0)
}
