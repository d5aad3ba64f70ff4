package store

import (
	"context"
	"fmt"

	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UnknownCustomerError is returned when a Stripe customer has no mapping to an internal user
type UnknownCustomerError struct {
	StripeCustomerID string
}

func (e *UnknownCustomerError) Error() string {
	return fmt.Sprintf("no user is mapped to Stripe customer %q", e.StripeCustomerID)
}

// WriteError is returned when a row cannot be persisted
type WriteError struct {
	Entity string
	ID     string
	Err    error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("Cannot write %s %q: %v", e.Entity, e.ID, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Store handles the database operations for billing projections, customers and linked accounts
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Models lists every table the Store migrates, in dependency order
func Models() []interface{} {
	return []interface{}{
		&Product{},
		&Price{},
		&Customer{},
		&Profile{},
		&Subscription{},
		&Purchase{},
		&Receipt{},
		&TwitterToken{},
	}
}

// NewStore returns a new Store and migrates its tables
func NewStore(logger *zap.Logger, db *gorm.DB) (*Store, error) {
	if logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	if db == nil {
		return nil, fmt.Errorf("nil DB is invalid")
	}
	if err := db.AutoMigrate(Models()...); err != nil {
		return nil, extErrors.Wrap(err, "Cannot initilize store.Store")
	}
	return &Store{
		db:     db,
		logger: logger,
	}, nil
}

// upsert inserts the row, or overwrites every non-key column if the primary key already exists
func (s *Store) upsert(ctx context.Context, entity, id string, row interface{}) error {
	result := s.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(row)
	if result.Error != nil {
		s.logger.Error("Database returned error",
			zap.String("Entity", entity),
			zap.String("ID", id),
			zap.Error(result.Error),
		)
		return &WriteError{
			Entity: entity,
			ID:     id,
			Err:    result.Error,
		}
	}
	return nil
}
