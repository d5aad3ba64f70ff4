package store

import (
	"context"
	"errors"

	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zllovesuki/plzdm/spec"
)

// CreateCustomer inserts the user to Stripe customer mapping
func (s *Store) CreateCustomer(ctx context.Context, c *Customer) error {
	result := s.db.WithContext(ctx).Create(c)
	if result.Error != nil {
		s.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return &WriteError{
			Entity: "customer",
			ID:     c.ID,
			Err:    result.Error,
		}
	}
	return nil
}

// CustomerByUserID will try to return the mapping of the user. nil is returned if the user has none yet
func (s *Store) CustomerByUserID(ctx context.Context, userID string) (*Customer, error) {
	var c Customer
	if err := s.first(ctx, &c, "id = ?", userID); err != nil {
		return nil, extErrors.Wrap(err, "Cannot get customer by user id")
	}
	if c.ID == "" {
		return nil, nil
	}
	return &c, nil
}

// UserIDByCustomerID resolves the internal user of a Stripe customer. UnknownCustomerError is returned if no mapping exists
func (s *Store) UserIDByCustomerID(ctx context.Context, stripeCustomerID string) (string, error) {
	var c Customer
	result := s.db.WithContext(ctx).
		Where("stripe_customer_id = ?", stripeCustomerID).
		First(&c)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return "", &UnknownCustomerError{StripeCustomerID: stripeCustomerID}
	}
	if result.Error != nil {
		s.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return "", extErrors.Wrap(result.Error, "Cannot get customer by stripe customer id")
	}
	return c.ID, nil
}

// UpdateBillingDetails writes the billing address and payment method details onto the user's profile
func (s *Store) UpdateBillingDetails(ctx context.Context, userID string, address, paymentMethod spec.Document) error {
	profile := &Profile{
		ID:             userID,
		BillingAddress: address,
		PaymentMethod:  paymentMethod,
	}
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"billing_address", "payment_method"}),
		}).
		Create(profile)
	if result.Error != nil {
		s.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return &WriteError{
			Entity: "profile",
			ID:     userID,
			Err:    result.Error,
		}
	}
	return nil
}

// GetProfile will try to return the profile of the user
func (s *Store) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	var p Profile
	if err := s.first(ctx, &p, "id = ?", userID); err != nil {
		return nil, extErrors.Wrap(err, "Cannot get profile by user id")
	}
	if p.ID == "" {
		return nil, nil
	}
	return &p, nil
}
