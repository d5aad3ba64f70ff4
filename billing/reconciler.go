package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	extErrors "github.com/pkg/errors"
	"github.com/stripe/stripe-go/v72"
	"go.uber.org/zap"

	"github.com/zllovesuki/plzdm/spec"
	"github.com/zllovesuki/plzdm/store"
)

// ErrInvalidObject is returned when a Stripe object lacks a field the local projection requires
var ErrInvalidObject = errors.New("invalid Stripe object")

// Provider is the subset of the Stripe API the Reconciler fetches snapshots from
type Provider interface {
	GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error)
	GetCheckoutSession(ctx context.Context, id string) (*stripe.CheckoutSession, error)
	UpdateCustomer(ctx context.Context, id string, params *stripe.CustomerParams) error
}

// ReconcilerOptions contains the dependencies of Reconciler
type ReconcilerOptions struct {
	Store    *store.Store
	Provider Provider
	Logger   *zap.Logger
}

// Reconciler keeps the local billing projections consistent with Stripe
type Reconciler struct {
	ReconcilerOptions
}

// NewReconciler returns a Reconciler
func NewReconciler(option ReconcilerOptions) (*Reconciler, error) {
	if option.Store == nil {
		return nil, fmt.Errorf("nil Store is invalid")
	}
	if option.Provider == nil {
		return nil, fmt.Errorf("nil Provider is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Reconciler{
		ReconcilerOptions: option,
	}, nil
}

// UpsertProduct writes the local projection of a Stripe Product
func (r *Reconciler) UpsertProduct(ctx context.Context, product *stripe.Product) error {
	p, err := productFromStripe(product)
	if err != nil {
		return err
	}
	if err := r.Store.UpsertProduct(ctx, p); err != nil {
		return err
	}
	r.Logger.Info("Product inserted/updated", zap.String("ProductID", p.ID))
	return nil
}

// UpsertPrice writes the local projection of a Stripe Price
func (r *Reconciler) UpsertPrice(ctx context.Context, price *stripe.Price) error {
	p, err := priceFromStripe(price)
	if err != nil {
		return err
	}
	if err := r.Store.UpsertPrice(ctx, p); err != nil {
		return err
	}
	r.Logger.Info("Price inserted/updated", zap.String("PriceID", p.ID))
	return nil
}

// ReconcileSubscription fetches the latest snapshot of the subscription and overwrites the local row.
// For a new subscription the billing details of its default payment method are copied onto the customer last
func (r *Reconciler) ReconcileSubscription(ctx context.Context, subscriptionID, customerID string, isNew bool) error {
	logger := r.Logger.With(
		zap.String("SubscriptionID", subscriptionID),
		zap.String("CustomerID", customerID),
	)

	userID, err := r.Store.UserIDByCustomerID(ctx, customerID)
	if err != nil {
		return err
	}

	snapshot, err := r.Provider.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return err
	}

	sub, err := subscriptionFromStripe(snapshot, userID)
	if err != nil {
		return err
	}
	if err := r.Store.UpsertSubscription(ctx, sub); err != nil {
		return err
	}
	logger.Info("Inserted/updated subscription",
		zap.String("UserID", userID),
		zap.String("Status", sub.Status),
	)

	// costly and least critical, so it goes last
	if isNew && snapshot.DefaultPaymentMethod != nil {
		if err := r.copyBillingDetails(ctx, userID, customerID, snapshot.DefaultPaymentMethod); err != nil {
			return err
		}
	}
	return nil
}

// ReconcileOneTimePayment records the completed checkout session as a Purchase
func (r *Reconciler) ReconcileOneTimePayment(ctx context.Context, paymentID, customerID string, isNew bool, createdAt time.Time) error {
	userID, err := r.Store.UserIDByCustomerID(ctx, customerID)
	if err != nil {
		return err
	}

	session, err := r.Provider.GetCheckoutSession(ctx, paymentID)
	if err != nil {
		return err
	}
	if session.LineItems == nil || len(session.LineItems.Data) == 0 || session.LineItems.Data[0].Price == nil {
		return extErrors.Wrapf(ErrInvalidObject, "checkout session %q has no priced line item", paymentID)
	}

	purchase := &store.Purchase{
		PaymentID: paymentID,
		UserID:    userID,
		Created:   createdAt.UTC(),
		PriceID:   session.LineItems.Data[0].Price.ID,
	}
	if err := r.Store.UpsertPurchase(ctx, purchase); err != nil {
		return err
	}
	r.Logger.Info("Inserted/updated purchase",
		zap.String("PaymentID", paymentID),
		zap.String("UserID", userID),
		zap.Bool("New", isNew),
	)
	return nil
}

// AddReceipt records the hosted receipt of a charge for the customer
func (r *Reconciler) AddReceipt(ctx context.Context, receiptURL string, createdAt time.Time, customerID string) error {
	if len(receiptURL) == 0 {
		return extErrors.Wrap(ErrInvalidObject, "empty receipt url")
	}
	userID, err := r.Store.UserIDByCustomerID(ctx, customerID)
	if err != nil {
		return err
	}
	return r.Store.UpsertReceipt(ctx, &store.Receipt{
		ReceiptURL: receiptURL,
		UserID:     userID,
		Created:    createdAt.UTC(),
	})
}

func (r *Reconciler) copyBillingDetails(ctx context.Context, userID, customerID string, pm *stripe.PaymentMethod) error {
	details := pm.BillingDetails
	if details == nil {
		details = &stripe.BillingDetails{}
	}

	params := &stripe.CustomerParams{}
	if len(details.Name) > 0 {
		params.Name = stripe.String(details.Name)
	}
	if len(details.Phone) > 0 {
		params.Phone = stripe.String(details.Phone)
	}
	if details.Address != nil {
		params.Address = &stripe.AddressParams{
			Line1:      stripe.String(details.Address.Line1),
			Line2:      stripe.String(details.Address.Line2),
			City:       stripe.String(details.Address.City),
			State:      stripe.String(details.Address.State),
			PostalCode: stripe.String(details.Address.PostalCode),
			Country:    stripe.String(details.Address.Country),
		}
	}
	if err := r.Provider.UpdateCustomer(ctx, customerID, params); err != nil {
		return err
	}

	address, err := spec.ToDocument(details.Address)
	if err != nil {
		return extErrors.Wrap(err, "Cannot encode billing address")
	}
	method, err := spec.ToDocument(paymentMethodDetails(pm))
	if err != nil {
		return extErrors.Wrap(err, "Cannot encode payment method")
	}
	return r.Store.UpdateBillingDetails(ctx, userID, address, method)
}
