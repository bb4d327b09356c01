// model.go defines the persisted meal record
package datastore

import (
	"time"

	"github.com/mealsnap/mealsnap-go/internal/meal"
)

// Meal is one saved analysis. Photo is nil when the image could not be encoded at save time.
type Meal struct {
	ID              string    `gorm:"primaryKey;size:36"`
	Timestamp       time.Time `gorm:"index:idx_meals_timestamp;not null"`
	Photo           []byte
	PhotoFormat     string `gorm:"size:8"`
	IdentifiedFoods string `gorm:"size:255;not null"`
}

// TableName pins the table name independent of GORM's naming strategy.
func (Meal) TableName() string {
	return "meals"
}

// FromRecord converts a domain record to its database row.
func FromRecord(r meal.SavedMealRecord) Meal {
	return Meal{
		ID:              r.ID,
		Timestamp:       r.Timestamp,
		Photo:           r.Photo,
		PhotoFormat:     r.PhotoFormat,
		IdentifiedFoods: r.IdentifiedFoods,
	}
}

// Record converts the row back to a domain record.
func (m Meal) Record() meal.SavedMealRecord {
	var photo []byte
	if len(m.Photo) > 0 {
		photo = m.Photo
	}
	return meal.SavedMealRecord{
		ID:              m.ID,
		Timestamp:       m.Timestamp,
		Photo:           photo,
		PhotoFormat:     m.PhotoFormat,
		IdentifiedFoods: m.IdentifiedFoods,
	}
}
