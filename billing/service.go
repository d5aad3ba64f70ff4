package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	extErrors "github.com/pkg/errors"
	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/webhook"
	"go.uber.org/zap"

	"github.com/zllovesuki/plzdm/metrics"
	resp "github.com/zllovesuki/plzdm/response"
	"github.com/zllovesuki/plzdm/spec"
)

// ServiceOptions contains the configuration for the webhook router
type ServiceOptions struct {
	Reconciler    *Reconciler
	WebhookSecret string
	Logger        *zap.Logger

	// EventLog is optional. Without it every delivery is processed
	EventLog EventLog
}

// Service receives Stripe webhook deliveries and feeds them to the Reconciler
type Service struct {
	ServiceOptions
}

// NewService returns the webhook router
func NewService(option ServiceOptions) (*Service, error) {
	if option.Reconciler == nil {
		return nil, fmt.Errorf("nil Reconciler is invalid")
	}
	if len(option.WebhookSecret) == 0 {
		return nil, fmt.Errorf("empty WebhookSecret is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Service{
		ServiceOptions: option,
	}, nil
}

func (s *Service) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	eventType := "unknown"
	outcome := metrics.OutcomeRejected
	defer func() {
		metrics.WebhookEventsTotal.WithLabelValues(eventType, outcome).Inc()
		metrics.WebhookDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
	}()

	r.Body = http.MaxBytesReader(w, r.Body, spec.WebhookBodyLimit)
	payload, err := ioutil.ReadAll(r.Body)
	if err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Unable to read request body"))
		return
	}

	event, err := webhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), s.WebhookSecret)
	if err != nil {
		s.Logger.Warn("Unable to verify webhook signature",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Invalid Stripe signature"))
		return
	}
	eventType = event.Type

	logger := s.Logger.With(
		zap.String("EventID", event.ID),
		zap.String("EventType", event.Type),
	)

	if s.EventLog != nil {
		seen, err := s.EventLog.Processed(ctx, event.ID)
		if err != nil {
			logger.Error("Unable to query processed event log",
				zap.Error(err),
			)
			outcome = metrics.OutcomeFailed
			resp.WriteError(w, r, resp.ErrUnexpected())
			return
		}
		if seen {
			outcome = metrics.OutcomeDuplicate
			logger.Debug("Event was processed before")
			resp.WriteResponse(w, r, received{Received: true})
			return
		}
	}

	handled, err := s.handleEvent(ctx, &event)
	if err != nil {
		outcome = metrics.OutcomeFailed
		logger.Error("Unable to process webhook event",
			zap.Error(err),
		)
		if errors.Is(err, ErrInvalidObject) {
			resp.WriteError(w, r, resp.ErrBadRequest().AddMessages(err.Error()))
			return
		}
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Webhook handler failed"))
		return
	}

	if !handled {
		outcome = metrics.OutcomeIgnored
		resp.WriteResponse(w, r, received{Received: true})
		return
	}

	outcome = metrics.OutcomeProcessed
	if s.EventLog != nil {
		if err := s.EventLog.Mark(ctx, event.ID); err != nil {
			// the event itself went through, redelivery is harmless
			logger.Warn("Unable to mark event as processed",
				zap.Error(err),
			)
		}
	}
	resp.WriteResponse(w, r, received{Received: true})
}

type received struct {
	Received bool `json:"received"`
}

// handleEvent routes the event to the Reconciler. It returns false for event types it does not track
func (s *Service) handleEvent(ctx context.Context, event *stripe.Event) (bool, error) {
	switch event.Type {
	case "product.created", "product.updated":
		var product stripe.Product
		if err := decode(event, &product); err != nil {
			return true, err
		}
		return true, s.Reconciler.UpsertProduct(ctx, &product)

	case "price.created", "price.updated":
		var price stripe.Price
		if err := decode(event, &price); err != nil {
			return true, err
		}
		return true, s.Reconciler.UpsertPrice(ctx, &price)

	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := decode(event, &sub); err != nil {
			return true, err
		}
		if len(sub.ID) == 0 || sub.Customer == nil {
			return true, extErrors.Wrap(ErrInvalidObject, "subscription without id or customer")
		}
		isNew := event.Type == "customer.subscription.created"
		return true, s.Reconciler.ReconcileSubscription(ctx, sub.ID, sub.Customer.ID, isNew)

	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := decode(event, &session); err != nil {
			return true, err
		}
		if session.Customer == nil {
			return true, extErrors.Wrap(ErrInvalidObject, "checkout session without customer")
		}
		switch session.Mode {
		case stripe.CheckoutSessionModeSubscription:
			if session.Subscription == nil {
				return true, extErrors.Wrap(ErrInvalidObject, "subscription checkout session without subscription")
			}
			return true, s.Reconciler.ReconcileSubscription(ctx, session.Subscription.ID, session.Customer.ID, true)
		case stripe.CheckoutSessionModePayment:
			return true, s.Reconciler.ReconcileOneTimePayment(ctx, session.ID, session.Customer.ID, true, fromUnix(event.Created))
		default:
			return false, nil
		}

	case "charge.succeeded":
		var charge stripe.Charge
		if err := decode(event, &charge); err != nil {
			return true, err
		}
		if charge.Customer == nil {
			return true, extErrors.Wrap(ErrInvalidObject, "charge without customer")
		}
		return true, s.Reconciler.AddReceipt(ctx, charge.ReceiptURL, fromUnix(charge.Created), charge.Customer.ID)

	default:
		return false, nil
	}
}

func decode(event *stripe.Event, v interface{}) error {
	if event.Data == nil {
		return extErrors.Wrap(ErrInvalidObject, "event without data")
	}
	if err := json.Unmarshal(event.Data.Raw, v); err != nil {
		return extErrors.Wrap(ErrInvalidObject, err.Error())
	}
	return nil
}

// Router will return the routes under the webhook API
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Post("/", s.handleWebhook)

	return r
}
