// Package observability provides Prometheus metrics for monitoring the MealSnap service.
package observability

import "github.com/mealsnap/mealsnap-go/internal/logger"

// Package-level cached logger instance.
var log = logger.Global().Module("observability")
