package customer

import (
	"context"
	"errors"
	"fmt"

	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/zllovesuki/plzdm/store"
)

// Provider creates customers in the billing provider
type Provider interface {
	NewCustomer(ctx context.Context, userID, email string) (string, error)
}

// ManagerOptions contains the dependencies of Manager
type ManagerOptions struct {
	Store    *store.Store
	Provider Provider
	Logger   *zap.Logger
}

// Manager maps users to their Stripe customers
type Manager struct {
	ManagerOptions
}

// NewManager returns a new Manager for customers
func NewManager(option ManagerOptions) (*Manager, error) {
	if option.Store == nil {
		return nil, fmt.Errorf("nil Store is invalid")
	}
	if option.Provider == nil {
		return nil, fmt.Errorf("nil Provider is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Manager{
		ManagerOptions: option,
	}, nil
}

// CreateOrRetrieve returns the Stripe customer of the user, creating it in Stripe and in the database on first use
func (m *Manager) CreateOrRetrieve(ctx context.Context, userID, email string) (*store.Customer, error) {
	logger := m.Logger.With(zap.String("UserID", userID))

	cust, err := m.Store.CustomerByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cust != nil {
		return cust, nil
	}

	stripeID, err := m.Provider.NewCustomer(ctx, userID, email)
	if err != nil {
		logger.Error("Stripe returned error",
			zap.Error(err),
		)
		return nil, err
	}

	cust = &store.Customer{
		ID:               userID,
		StripeCustomerID: stripeID,
	}
	err = m.Store.CreateCustomer(ctx, cust)
	if err == nil {
		logger.Info("New customer created", zap.String("CustomerID", stripeID))
		return cust, nil
	}

	// a concurrent request may have won the insert
	var writeErr *store.WriteError
	if !errors.As(err, &writeErr) {
		return nil, err
	}
	existing, rerr := m.Store.CustomerByUserID(ctx, userID)
	if rerr != nil || existing == nil {
		return nil, extErrors.Wrap(err, "Cannot create a New Customer")
	}
	logger.Warn("Stripe customer orphaned by concurrent creation",
		zap.String("CustomerID", stripeID),
	)
	return existing, nil
}
