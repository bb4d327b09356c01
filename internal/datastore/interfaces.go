// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mealsnap/mealsnap-go/internal/conf"
	"github.com/mealsnap/mealsnap-go/internal/errors"
	"github.com/mealsnap/mealsnap-go/internal/logger"
)

// ErrMealNotFound is returned by Get for an unknown ID.
var ErrMealNotFound = errors.NewStd("meal not found")

// slowQueryThreshold is the duration above which statements are logged as slow.
const slowQueryThreshold = 200 * time.Millisecond

// Interface abstracts the underlying database implementation.
type Interface interface {
	Open() error
	Close() error
	// Save writes a meal inside a single transaction.
	Save(ctx context.Context, m *Meal) error
	Get(ctx context.Context, id string) (*Meal, error)
	// List returns meals newest first.
	List(ctx context.Context, limit, offset int) ([]Meal, error)
	Count(ctx context.Context) (int64, error)
}

// DataStore implements the query side of Interface on a GORM database.
type DataStore struct {
	DB *gorm.DB
}

// New creates a store for the configured datastore type. Open must be called before use.
func New(settings *conf.Settings) (Interface, error) {
	switch settings.Datastore.Type {
	case conf.DatastoreSQLite, "":
		return &SQLiteStore{Settings: settings}, nil
	case conf.DatastoreMySQL:
		return &MySQLStore{Settings: settings}, nil
	default:
		return nil, errors.Newf("unsupported datastore type %q", settings.Datastore.Type).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

// Save stores a meal as a single transaction in the database.
func (ds *DataStore) Save(ctx context.Context, m *Meal) error {
	if ds.DB == nil {
		return errNotOpen()
	}

	err := ds.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(m).Error
	})
	if err != nil {
		return errors.New(fmt.Errorf("saving meal: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "save_meal").
			Context("meal_id", m.ID).
			Build()
	}
	return nil
}

// Get retrieves a meal by its ID from the database.
func (ds *DataStore) Get(ctx context.Context, id string) (*Meal, error) {
	if ds.DB == nil {
		return nil, errNotOpen()
	}

	var m Meal
	err := ds.DB.WithContext(ctx).Where("id = ?", id).First(&m).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, errors.New(fmt.Errorf("%w: %s", ErrMealNotFound, id)).
			Component("datastore").
			Category(errors.CategoryNotFound).
			Context("meal_id", id).
			Build()
	case err != nil:
		return nil, errors.New(fmt.Errorf("getting meal %s: %w", id, err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "get_meal").
			Build()
	}
	return &m, nil
}

// List returns at most limit meals, newest first, skipping offset. A limit <= 0 returns all.
func (ds *DataStore) List(ctx context.Context, limit, offset int) ([]Meal, error) {
	if ds.DB == nil {
		return nil, errNotOpen()
	}

	query := ds.DB.WithContext(ctx).Order("timestamp DESC").Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var meals []Meal
	if err := query.Find(&meals).Error; err != nil {
		return nil, errors.New(fmt.Errorf("listing meals: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "list_meals").
			Context("limit", limit).
			Context("offset", offset).
			Build()
	}
	return meals, nil
}

// Count returns the number of saved meals.
func (ds *DataStore) Count(ctx context.Context) (int64, error) {
	if ds.DB == nil {
		return 0, errNotOpen()
	}

	var count int64
	if err := ds.DB.WithContext(ctx).Model(&Meal{}).Count(&count).Error; err != nil {
		return 0, errors.New(fmt.Errorf("counting meals: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return count, nil
}

// closeDB closes the generic database object behind db.
func (ds *DataStore) closeDB(dbType string) error {
	if ds.DB == nil {
		return errNotOpen()
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("db_type", dbType).
			Build()
	}
	if err := sqlDB.Close(); err != nil {
		return errors.New(fmt.Errorf("failed to close %s database: %w", dbType, err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	ds.DB = nil
	GetLogger().Debug("database connection closed", logger.String("db_type", dbType))
	return nil
}

func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if debug {
		GetLogger().Debug("running auto-migration",
			logger.String("db_type", dbType),
			logger.String("connection", logger.RedactSensitiveData(connectionInfo)))
	}

	if err := db.AutoMigrate(&Meal{}); err != nil {
		return errors.New(fmt.Errorf("failed to auto-migrate %s database: %w", dbType, err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("db_type", dbType).
			Build()
	}
	return nil
}

func createGormLogger() gormlogger.Interface {
	return logger.NewGormLoggerAdapter(GetLogger(), slowQueryThreshold)
}

func errNotOpen() error {
	return errors.Newf("database connection is not initialized").
		Component("datastore").
		Category(errors.CategoryState).
		Build()
}
