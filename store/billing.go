package store

import (
	"context"
	"errors"

	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// UpsertProduct writes the Product keyed by its Stripe ID
func (s *Store) UpsertProduct(ctx context.Context, p *Product) error {
	return s.upsert(ctx, "product", p.ID, p)
}

// UpsertPrice writes the Price keyed by its Stripe ID. The owning Product must already exist
func (s *Store) UpsertPrice(ctx context.Context, p *Price) error {
	return s.upsert(ctx, "price", p.ID, p)
}

// UpsertSubscription overwrites the Subscription with the given snapshot
func (s *Store) UpsertSubscription(ctx context.Context, sub *Subscription) error {
	return s.upsert(ctx, "subscription", sub.ID, sub)
}

// UpsertPurchase writes the Purchase keyed by its payment ID
func (s *Store) UpsertPurchase(ctx context.Context, p *Purchase) error {
	return s.upsert(ctx, "purchase", p.PaymentID, p)
}

// UpsertReceipt writes the Receipt keyed by its URL
func (s *Store) UpsertReceipt(ctx context.Context, r *Receipt) error {
	return s.upsert(ctx, "receipt", r.ReceiptURL, r)
}

// GetProduct will try to return the product by id
func (s *Store) GetProduct(ctx context.Context, id string) (*Product, error) {
	var p Product
	if err := s.first(ctx, &p, "id = ?", id); err != nil {
		return nil, extErrors.Wrap(err, "Cannot get product by id")
	}
	if p.ID == "" {
		return nil, nil
	}
	return &p, nil
}

// GetPrice will try to return the price by id
func (s *Store) GetPrice(ctx context.Context, id string) (*Price, error) {
	var p Price
	if err := s.first(ctx, &p, "id = ?", id); err != nil {
		return nil, extErrors.Wrap(err, "Cannot get price by id")
	}
	if p.ID == "" {
		return nil, nil
	}
	return &p, nil
}

// GetSubscription will try to return the subscription by id
func (s *Store) GetSubscription(ctx context.Context, id string) (*Subscription, error) {
	var sub Subscription
	if err := s.first(ctx, &sub, "id = ?", id); err != nil {
		return nil, extErrors.Wrap(err, "Cannot get subscription by id")
	}
	if sub.ID == "" {
		return nil, nil
	}
	return &sub, nil
}

// LatestPurchase returns the most recently created purchase of the user, or nil if there is none
func (s *Store) LatestPurchase(ctx context.Context, userID string) (*Purchase, error) {
	var p Purchase
	result := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created desc").
		Limit(1).
		Find(&p)
	if result.Error != nil {
		s.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot get latest purchase")
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &p, nil
}

// LatestSubscription returns the most recently created subscription of the user whose status is one of statuses.
// All statuses match when none are given
func (s *Store) LatestSubscription(ctx context.Context, userID string, statuses ...string) (*Subscription, error) {
	var sub Subscription
	query := s.db.WithContext(ctx).
		Where("user_id = ?", userID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	result := query.
		Order("created desc").
		Limit(1).
		Find(&sub)
	if result.Error != nil {
		s.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot get latest subscription")
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &sub, nil
}

// ListReceipts returns the receipts of the user, newest first
func (s *Store) ListReceipts(ctx context.Context, userID string) ([]Receipt, error) {
	results := make([]Receipt, 0, 1)
	result := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created desc").
		Find(&results)
	if result.Error != nil {
		s.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot list receipts")
	}
	return results, nil
}

// first loads the first matching row into dest. A missing row leaves dest untouched and is not an error
func (s *Store) first(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	result := s.db.WithContext(ctx).Where(query, args...).First(dest)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil
	}
	if result.Error != nil {
		s.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return result.Error
	}
	return nil
}
