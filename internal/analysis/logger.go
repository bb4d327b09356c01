// Package analysis runs the meal analysis pipeline: recognition, nutrition enrichment, the
// capture/analyze/save state machine and persistence of saved meals.
package analysis

import "github.com/mealsnap/mealsnap-go/internal/logger"

// GetLogger returns the analysis package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("analysis")
}
