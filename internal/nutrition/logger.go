package nutrition

import "github.com/mealsnap/mealsnap-go/internal/logger"

// GetLogger returns the nutrition package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("nutrition")
}
