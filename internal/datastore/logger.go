// Package datastore persists saved meals through GORM on SQLite or MySQL.
package datastore

import "github.com/mealsnap/mealsnap-go/internal/logger"

// GetLogger returns the datastore package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("datastore")
}
