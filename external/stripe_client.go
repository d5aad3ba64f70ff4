package external

import (
	"context"
	"fmt"

	extErrors "github.com/pkg/errors"
	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
)

// NewStripeClient returns a Stripe API client bound to the given secret key
func NewStripeClient(key string) *client.API {
	sc := &client.API{}
	sc.Init(key, nil)
	return sc
}

// Stripe exposes the few Stripe calls the billing and customer flows need
type Stripe struct {
	api *client.API
}

// NewStripe wraps an initialized Stripe API client
func NewStripe(api *client.API) (*Stripe, error) {
	if api == nil {
		return nil, fmt.Errorf("nil Stripe API client is invalid")
	}
	return &Stripe{
		api: api,
	}, nil
}

// GetSubscription fetches the subscription snapshot with its default payment method expanded
func (s *Stripe) GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{
		Params: stripe.Params{
			Context: ctx,
		},
	}
	params.AddExpand("default_payment_method")
	sub, err := s.api.Subscriptions.Get(id, params)
	if err != nil {
		return nil, extErrors.Wrap(err, "Unable to fetch subscription from Stripe")
	}
	return sub, nil
}

// GetCheckoutSession fetches the checkout session with its line items expanded
func (s *Stripe) GetCheckoutSession(ctx context.Context, id string) (*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Params: stripe.Params{
			Context: ctx,
		},
	}
	params.AddExpand("line_items")
	session, err := s.api.CheckoutSessions.Get(id, params)
	if err != nil {
		return nil, extErrors.Wrap(err, "Unable to fetch checkout session from Stripe")
	}
	return session, nil
}

// UpdateCustomer applies params to the Stripe customer
func (s *Stripe) UpdateCustomer(ctx context.Context, id string, params *stripe.CustomerParams) error {
	params.Context = ctx
	if _, err := s.api.Customers.Update(id, params); err != nil {
		return extErrors.Wrap(err, "Unable to update customer in Stripe")
	}
	return nil
}

// NewCustomer creates a Stripe customer tagged with the internal user id and returns its id
func (s *Stripe) NewCustomer(ctx context.Context, userID, email string) (string, error) {
	params := &stripe.CustomerParams{
		Params: stripe.Params{
			Context: ctx,
		},
	}
	params.AddMetadata("supabaseUUID", userID)
	if len(email) > 0 {
		params.Email = stripe.String(email)
	}
	c, err := s.api.Customers.New(params)
	if err != nil {
		return "", extErrors.Wrap(err, "Cannot create a new Customer")
	}
	return c.ID, nil
}
