package billing

import (
	"time"

	extErrors "github.com/pkg/errors"
	"github.com/stripe/stripe-go/v72"

	"github.com/zllovesuki/plzdm/spec"
	"github.com/zllovesuki/plzdm/store"
)

func productFromStripe(p *stripe.Product) (*store.Product, error) {
	if p == nil || len(p.ID) == 0 {
		return nil, extErrors.Wrap(ErrInvalidObject, "product without id")
	}
	var image *string
	if len(p.Images) > 0 {
		image = stripe.String(p.Images[0])
	}
	return &store.Product{
		ID:          p.ID,
		Active:      p.Active,
		Name:        p.Name,
		Description: p.Description,
		Image:       image,
		Metadata:    spec.Metadata(p.Metadata).Clone(),
	}, nil
}

func priceFromStripe(p *stripe.Price) (*store.Price, error) {
	if p == nil || len(p.ID) == 0 {
		return nil, extErrors.Wrap(ErrInvalidObject, "price without id")
	}
	if p.Product == nil || len(p.Product.ID) == 0 {
		return nil, extErrors.Wrapf(ErrInvalidObject, "price %q without product", p.ID)
	}
	price := &store.Price{
		ID:          p.ID,
		ProductID:   p.Product.ID,
		Active:      p.Active,
		Currency:    string(p.Currency),
		Description: p.Nickname,
		Type:        string(p.Type),
		UnitAmount:  p.UnitAmount,
		Metadata:    spec.Metadata(p.Metadata).Clone(),
	}
	if p.Recurring != nil {
		price.Interval = stripe.String(string(p.Recurring.Interval))
		price.IntervalCount = stripe.Int64(p.Recurring.IntervalCount)
		if p.Recurring.TrialPeriodDays > 0 {
			price.TrialPeriodDays = stripe.Int64(p.Recurring.TrialPeriodDays)
		}
	}
	return price, nil
}

func subscriptionFromStripe(s *stripe.Subscription, userID string) (*store.Subscription, error) {
	if s == nil || len(s.ID) == 0 {
		return nil, extErrors.Wrap(ErrInvalidObject, "subscription without id")
	}
	if s.Items == nil || len(s.Items.Data) == 0 || s.Items.Data[0].Price == nil {
		return nil, extErrors.Wrapf(ErrInvalidObject, "subscription %q without priced item", s.ID)
	}
	return &store.Subscription{
		ID:                 s.ID,
		UserID:             userID,
		Status:             string(s.Status),
		PriceID:            s.Items.Data[0].Price.ID,
		Quantity:           s.Quantity,
		CancelAtPeriodEnd:  s.CancelAtPeriodEnd,
		CancelAt:           toDateTime(s.CancelAt),
		CanceledAt:         toDateTime(s.CanceledAt),
		CurrentPeriodStart: fromUnix(s.CurrentPeriodStart),
		CurrentPeriodEnd:   fromUnix(s.CurrentPeriodEnd),
		Created:            fromUnix(s.Created),
		EndedAt:            toDateTime(s.EndedAt),
		TrialStart:         toDateTime(s.TrialStart),
		TrialEnd:           toDateTime(s.TrialEnd),
		Metadata:           spec.Metadata(s.Metadata).Clone(),
	}, nil
}

// paymentMethodDetails returns the type-specific part of the payment method, e.g. the card for type "card"
func paymentMethodDetails(pm *stripe.PaymentMethod) interface{} {
	switch pm.Type {
	case stripe.PaymentMethodTypeCard:
		if pm.Card != nil {
			return pm.Card
		}
	case stripe.PaymentMethodTypeSepaDebit:
		if pm.SepaDebit != nil {
			return pm.SepaDebit
		}
	}
	return map[string]string{"type": string(pm.Type)}
}

func fromUnix(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

// toDateTime maps Stripe's zero timestamp to nil
func toDateTime(sec int64) *time.Time {
	if sec == 0 {
		return nil
	}
	t := fromUnix(sec)
	return &t
}
