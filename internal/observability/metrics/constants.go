// Package metrics provides the Prometheus collectors for the MealSnap pipeline.
package metrics

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Namespace prefixes every metric name.
const Namespace = "mealsnap"
