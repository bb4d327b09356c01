package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/mealsnap/mealsnap-go/internal/errors"
)

const testConfig = `
classifier:
  backend: tflite
  modelpath: /opt/models/food.tflite
  labelpath: /opt/models/labels.txt
nutrition:
  apikey: test-key
  timeout: 3s
datastore:
  type: sqlite
  sqlite:
    path: meals.db
photo:
  format: JPG
`

// loadFromFile points the global viper at a temporary config file.
func loadFromFile(t *testing.T, content string) (*Settings, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	viper.SetConfigFile(path)
	return Load()
}

func TestLoadMergesFileAndDefaults(t *testing.T) {
	settings, err := loadFromFile(t, testConfig)
	require.NoError(t, err)

	assert.Equal(t, BackendTFLite, settings.Classifier.Backend)
	assert.Equal(t, "/opt/models/food.tflite", settings.Classifier.ModelPath)
	assert.InDelta(t, DefaultThreshold, settings.Classifier.Threshold, 1e-9)
	assert.Equal(t, DefaultInputSize, settings.Classifier.InputSize)
	assert.Equal(t, "test-key", settings.Nutrition.APIKey)
	assert.Equal(t, 3*time.Second, settings.Nutrition.Timeout)
	assert.Equal(t, DefaultNutritionBaseURL, settings.Nutrition.BaseURL)
	assert.Equal(t, PhotoFormatJPEG, settings.Photo.Format, "jpg alias is normalised")
	assert.Equal(t, DefaultPhotoQuality, settings.Photo.Quality)
	assert.Equal(t, "info", settings.Logging.DefaultLevel)
	assert.Same(t, settings, GetSettings())
}

func TestEnvironmentOverridesFile(t *testing.T) {
	t.Setenv("MEALSNAP_NUTRITION_APIKEY", "from-env")
	t.Setenv("MEALSNAP_DATASTORE_TYPE", "mysql")
	t.Setenv("MEALSNAP_MYSQL_HOST", "db.internal")

	settings, err := loadFromFile(t, testConfig)
	require.NoError(t, err)

	assert.Equal(t, "from-env", settings.Nutrition.APIKey)
	assert.Equal(t, DatastoreMySQL, settings.Datastore.Type)
	assert.Equal(t, "db.internal", settings.Datastore.MySQL.Host)
	assert.Equal(t, 3306, settings.Datastore.MySQL.Port)
}

func TestLegacyAPIKeyVariable(t *testing.T) {
	t.Setenv("SPOONACULAR_API_KEY", "legacy-key")

	settings, err := loadFromFile(t, "classifier:\n  modelpath: m.tflite\n  labelpath: l.txt\n")
	require.NoError(t, err)
	assert.Equal(t, "legacy-key", settings.Nutrition.APIKey)
}

func TestLoadReportsAllValidationErrors(t *testing.T) {
	t.Setenv("MEALSNAP_CLASSIFIER_THRESHOLD", "1.5")

	_, err := loadFromFile(t, `
classifier:
  backend: tensorflow
datastore:
  type: postgres
photo:
  quality: 0
`)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	var ve ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Len(t, ve.Errors, 3)
	assert.Contains(t, err.Error(), "classifier.backend")
	assert.Contains(t, err.Error(), "classifier.threshold")
	assert.Contains(t, err.Error(), "datastore.type")
	assert.Contains(t, err.Error(), "photo.quality")
}

func TestRequireNutritionKey(t *testing.T) {
	t.Parallel()

	rejected := []string{"", "   ", "YOUR_API_KEY", "your_api_key", "SUA_CHAVE_AQUI", "changeme", "<spoonacular-key>"}
	for _, key := range rejected {
		err := RequireNutritionKey(key)
		require.Error(t, err, "key %q", key)
		assert.ErrorIs(t, err, ErrMissingAPIKey)
		assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
	}

	assert.NoError(t, RequireNutritionKey("3f1c2a9e7b"))
}

func TestSaveYAMLConfigRoundTrip(t *testing.T) {
	settings, err := loadFromFile(t, testConfig)
	require.NoError(t, err)

	settings.Photo.Format = PhotoFormatWebP
	settings.Nutrition.CacheTTL = 10 * time.Minute

	path := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, SaveYAMLConfig(path, settings))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, yaml.Unmarshal(data, &raw))
	photo, ok := raw["photo"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "webp", photo["format"])

	reloaded, err := loadFromFile(t, string(data))
	require.NoError(t, err)
	assert.Equal(t, PhotoFormatWebP, reloaded.Photo.Format)
	assert.Equal(t, 10*time.Minute, reloaded.Nutrition.CacheTTL)
	assert.Equal(t, settings.Classifier, reloaded.Classifier)
}

func TestEmbeddedDefaultConfigParses(t *testing.T) {
	settings, err := loadFromFile(t, string(DefaultConfig()))
	require.NoError(t, err)

	assert.Equal(t, "YOUR_API_KEY", settings.Nutrition.APIKey)
	require.Error(t, RequireNutritionKey(settings.Nutrition.APIKey))
}

func TestExpandPath(t *testing.T) {
	t.Setenv("MEALSNAP_TEST_DIR", "/data")
	assert.Equal(t, "/data/meals.db", ExpandPath("$MEALSNAP_TEST_DIR/meals.db"))

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "models"), ExpandPath("~/models"))
}
