package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mealsnap/mealsnap-go/cmd/analyze"
	configcmd "github.com/mealsnap/mealsnap-go/cmd/config"
	"github.com/mealsnap/mealsnap-go/cmd/history"
	"github.com/mealsnap/mealsnap-go/cmd/serve"
	"github.com/mealsnap/mealsnap-go/internal/buildinfo"
	"github.com/mealsnap/mealsnap-go/internal/conf"
	"github.com/mealsnap/mealsnap-go/internal/errors"
	"github.com/mealsnap/mealsnap-go/internal/logger"
	"github.com/mealsnap/mealsnap-go/internal/privacy"
)

// telemetryFlushTimeout bounds how long exit waits for queued Sentry events.
const telemetryFlushTimeout = 2 * time.Second

// RootCommand creates and returns the root command. settings is filled from the
// config file, environment and flags before any subcommand runs.
func RootCommand(settings *conf.Settings) *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "mealsnap",
		Short:         "MealSnap meal photo analysis",
		Long:          "Identify the foods in a meal photo, look up their nutrition and keep a history of saved meals.",
		Version:       buildinfo.Current().GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	if err := setupFlags(rootCmd, &configFile); err != nil {
		// Flag names are static; a bind failure is a programming error.
		panic(err)
	}

	rootCmd.AddCommand(
		analyze.Command(settings),
		history.Command(settings),
		serve.Command(settings),
		configcmd.Command(settings),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return initialize(settings, configFile)
	}

	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		Shutdown()
	}

	return rootCmd
}

// initialize loads settings and sets up logging and telemetry before a subcommand runs.
func initialize(settings *conf.Settings, configFile string) error {
	if configFile != "" {
		viper.SetConfigFile(conf.ExpandPath(configFile))
	}

	loaded, err := conf.Load()
	if err != nil {
		return err
	}
	*settings = *loaded

	if settings.Debug {
		settings.Logging.DefaultLevel = "debug"
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = "debug"
		}
	}

	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(central)

	if settings.Telemetry.Enabled {
		errors.SetPrivacyScrubber(privacy.ScrubMessage)
		if err := errors.EnableSentry(errors.SentryOptions{
			DSN:         settings.Telemetry.DSN,
			Environment: settings.Telemetry.Environment,
			Release:     buildinfo.Current().Release(),
			SampleRate:  settings.Telemetry.SampleRate,
		}); err != nil {
			// Telemetry is optional; keep running without it.
			logger.Global().Module("main").Warn("error telemetry disabled", logger.Error(err))
		}
	}
	return nil
}

// Shutdown flushes telemetry and closes the log file.
func Shutdown() {
	errors.FlushTelemetry(telemetryFlushTimeout)
	_ = logger.Global().Close()
}

// setupFlags defines flags that are global to the command line interface and
// binds them to their configuration keys.
func setupFlags(rootCmd *cobra.Command, configFile *string) error {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(configFile, "config", "c", "", "Path to the config file")
	flags.BoolP("debug", "d", false, "Enable debug output")
	flags.Float64P("threshold", "t", 0.05, "Minimum classifier confidence for a label to be kept")
	flags.String("backend", conf.BackendTFLite, "Classifier backend: tflite or ollama")
	flags.String("datastore", conf.DatastoreSQLite, "Datastore type: sqlite or mysql")

	bindings := map[string]string{
		"debug":                "debug",
		"classifier.threshold": "threshold",
		"classifier.backend":   "backend",
		"datastore.type":       "datastore",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}
	return nil
}
