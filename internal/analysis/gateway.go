package analysis

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mealsnap/mealsnap-go/internal/datastore"
	"github.com/mealsnap/mealsnap-go/internal/errors"
	"github.com/mealsnap/mealsnap-go/internal/logger"
	"github.com/mealsnap/mealsnap-go/internal/meal"
	"github.com/mealsnap/mealsnap-go/internal/photo"
)

// MealStore is the subset of datastore.Interface the gateway needs.
type MealStore interface {
	Save(ctx context.Context, m *datastore.Meal) error
	Get(ctx context.Context, id string) (*datastore.Meal, error)
	List(ctx context.Context, limit, offset int) ([]datastore.Meal, error)
}

// Gateway converts analyzed meals into saved records and reads them back.
type Gateway struct {
	store   MealStore
	encoder *photo.Encoder
	format  string
	now     func() time.Time
	newID   func() string
	log     logger.Logger
	metrics Metrics
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithClock replaces time.Now for record timestamps.
func WithClock(now func() time.Time) GatewayOption {
	return func(g *Gateway) {
		if now != nil {
			g.now = now
		}
	}
}

// WithIDGenerator replaces uuid.NewString for record IDs.
func WithIDGenerator(newID func() string) GatewayOption {
	return func(g *Gateway) {
		if newID != nil {
			g.newID = newID
		}
	}
}

func WithGatewayLogger(log logger.Logger) GatewayOption {
	return func(g *Gateway) {
		if log != nil {
			g.log = log
		}
	}
}

func WithGatewayMetrics(m Metrics) GatewayOption {
	return func(g *Gateway) {
		if m != nil {
			g.metrics = m
		}
	}
}

// NewGateway creates a Gateway writing photos with encoder.
func NewGateway(store MealStore, encoder *photo.Encoder, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		store:   store,
		encoder: encoder,
		format:  encoder.Format,
		now:     time.Now,
		newID:   uuid.NewString,
		log:     GetLogger(),
		metrics: noopMetrics{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Save persists m under a fresh ID. A photo that cannot be encoded is dropped and the record
// is saved without it.
func (g *Gateway) Save(ctx context.Context, m meal.AnalyzedMeal) (meal.SavedMealRecord, error) {
	start := time.Now()

	record := meal.SavedMealRecord{
		ID:              g.newID(),
		Timestamp:       g.now(),
		IdentifiedFoods: m.IdentifiedFoods(),
	}

	encoded, err := g.encoder.EncodeBytes(m.Image)
	if err != nil {
		g.log.Warn("photo encoding failed, saving meal without photo",
			logger.String("meal_id", record.ID),
			logger.String("format", g.format),
			logger.Error(err))
		g.metrics.RecordPhotoEncodeFailure(g.format)
	} else {
		record.Photo = encoded
		record.PhotoFormat = g.format
	}

	row := datastore.FromRecord(record)
	if err := g.store.Save(ctx, &row); err != nil {
		g.log.Error("failed to save meal", logger.String("meal_id", record.ID), logger.Error(err))
		g.metrics.RecordSave(OutcomeError, time.Since(start))
		return meal.SavedMealRecord{}, errors.New(&UnderlyingError{Cause: err}).
			Component("analysis").
			Category(errors.CategoryDatabase).
			Context("meal_id", record.ID).
			Build()
	}

	g.log.Info("meal saved",
		logger.String("meal_id", record.ID),
		logger.String("foods", record.IdentifiedFoods),
		logger.Int("photo_bytes", len(record.Photo)))
	g.metrics.RecordSave(OutcomeSuccess, time.Since(start))
	return record, nil
}

// Get returns one saved meal. Unknown IDs yield a not-found error from the datastore.
func (g *Gateway) Get(ctx context.Context, id string) (meal.SavedMealRecord, error) {
	row, err := g.store.Get(ctx, id)
	if err != nil {
		if errors.IsNotFound(err) {
			return meal.SavedMealRecord{}, err
		}
		return meal.SavedMealRecord{}, errors.New(&UnderlyingError{Cause: err}).
			Component("analysis").
			Category(errors.CategoryDatabase).
			Context("meal_id", id).
			Build()
	}
	return row.Record(), nil
}

// List returns saved meals newest first.
func (g *Gateway) List(ctx context.Context, limit, offset int) ([]meal.SavedMealRecord, error) {
	rows, err := g.store.List(ctx, limit, offset)
	if err != nil {
		return nil, errors.New(&UnderlyingError{Cause: err}).
			Component("analysis").
			Category(errors.CategoryDatabase).
			Build()
	}
	records := make([]meal.SavedMealRecord, len(rows))
	for i, row := range rows {
		records[i] = row.Record()
	}
	return records, nil
}
