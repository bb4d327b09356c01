// Package meal defines the values passed between recognition, nutrition lookup and storage.
package meal

import (
	"slices"
	"strings"
	"time"
)

// MaxLabels is the number of recognised foods kept per meal.
const MaxLabels = 3

// NotAvailable marks a nutrient the API did not report.
const NotAvailable = "N/A"

// LabelSeparator joins labels in IdentifiedFoods.
const LabelSeparator = ","

// NutritionFacts holds nutrient amounts formatted as "<amount> <unit>", or NotAvailable.
type NutritionFacts struct {
	Calories      string `json:"calories"`
	Carbohydrates string `json:"carbohydrates"`
	Fat           string `json:"fat"`
	Protein       string `json:"protein"`
}

// NewNutritionFacts replaces empty values with NotAvailable.
func NewNutritionFacts(calories, carbohydrates, fat, protein string) NutritionFacts {
	return NutritionFacts{
		Calories:      orNotAvailable(calories),
		Carbohydrates: orNotAvailable(carbohydrates),
		Fat:           orNotAvailable(fat),
		Protein:       orNotAvailable(protein),
	}
}

func orNotAvailable(s string) string {
	if strings.TrimSpace(s) == "" {
		return NotAvailable
	}
	return s
}

// AnalyzedMeal is the outcome of a successful analysis. Nutrition is nil when the lookup failed.
type AnalyzedMeal struct {
	Image     []byte          `json:"-"`
	Labels    []string        `json:"labels"`
	Nutrition *NutritionFacts `json:"nutrition"`
}

// NewAnalyzedMeal keeps the first MaxLabels labels in order. The label slice is copied.
func NewAnalyzedMeal(image []byte, labels []string, nutrition *NutritionFacts) AnalyzedMeal {
	if len(labels) > MaxLabels {
		labels = labels[:MaxLabels]
	}
	var facts *NutritionFacts
	if nutrition != nil {
		n := *nutrition
		facts = &n
	}
	return AnalyzedMeal{
		Image:     image,
		Labels:    slices.Clone(labels),
		Nutrition: facts,
	}
}

// TopLabel returns the highest ranked label, or "" for a zero value.
func (m AnalyzedMeal) TopLabel() string {
	if len(m.Labels) == 0 {
		return ""
	}
	return m.Labels[0]
}

// IdentifiedFoods returns the labels joined with LabelSeparator.
func (m AnalyzedMeal) IdentifiedFoods() string {
	return strings.Join(m.Labels, LabelSeparator)
}

// SavedMealRecord is a persisted meal. Photo is nil when encoding failed at save time.
type SavedMealRecord struct {
	ID              string    `json:"id"`
	Timestamp       time.Time `json:"timestamp"`
	Photo           []byte    `json:"-"`
	PhotoFormat     string    `json:"photo_format,omitempty"`
	IdentifiedFoods string    `json:"identified_foods"`
}

// Foods splits IdentifiedFoods back into labels.
func (r SavedMealRecord) Foods() []string {
	if r.IdentifiedFoods == "" {
		return nil
	}
	return strings.Split(r.IdentifiedFoods, LabelSeparator)
}

// HasPhoto reports whether a photo was stored with the record.
func (r SavedMealRecord) HasPhoto() bool {
	return len(r.Photo) > 0
}
