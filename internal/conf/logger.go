// Package conf loads, validates and saves MealSnap configuration.
package conf

import (
	"github.com/spf13/viper"

	"github.com/mealsnap/mealsnap-go/internal/logger"
)

// GetLogger returns the package logger. It is looked up on each call so it follows
// the global logger installed after startup.
func GetLogger() logger.Logger {
	return logger.Global().Module("config")
}

func currentConfigFile() string {
	return viper.ConfigFileUsed()
}
