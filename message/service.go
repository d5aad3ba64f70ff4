package message

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"go.uber.org/zap"

	"github.com/zllovesuki/plzdm/auth"
	"github.com/zllovesuki/plzdm/dispatch"
	"github.com/zllovesuki/plzdm/entitlement"
	"github.com/zllovesuki/plzdm/metrics"
	resp "github.com/zllovesuki/plzdm/response"
	"github.com/zllovesuki/plzdm/spec"
	"github.com/zllovesuki/plzdm/store"
)

// ServiceOptions contains the configuration for Service router
type ServiceOptions struct {
	Store      *store.Store
	Resolver   *entitlement.Resolver
	Assembler  *Assembler
	Dispatcher *dispatch.Client
	Logger     *zap.Logger

	// Now defaults to time.Now and is used to compute Retry-After
	Now func() time.Time
}

// Service is the welcome message API router
type Service struct {
	ServiceOptions
}

// NewService will create an instance of the welcome message API router
func NewService(option ServiceOptions) (*Service, error) {
	if option.Store == nil {
		return nil, fmt.Errorf("nil Store is invalid")
	}
	if option.Resolver == nil {
		return nil, fmt.Errorf("nil Resolver is invalid")
	}
	if option.Assembler == nil {
		return nil, fmt.Errorf("nil Assembler is invalid")
	}
	if option.Dispatcher == nil {
		return nil, fmt.Errorf("nil Dispatcher is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	if option.Now == nil {
		option.Now = time.Now
	}
	return &Service{
		ServiceOptions: option,
	}, nil
}

// WelcomeResponse is returned once the welcome message is created
type WelcomeResponse struct {
	Messages    *dispatch.WelcomeMessage `json:"messages"`
	Entitlement entitlement.Entitlement  `json:"entitlement"`
}

func (s *Service) createWelcomeMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, _ := auth.FromContext(ctx)

	logger := s.Logger.With(zap.String("UserID", claims.UserID()))

	r.Body = http.MaxBytesReader(w, r.Body, spec.MessageBodyLimit)
	var req Input
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Request body is too large"))
			return
		}
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}

	ent, err := s.Resolver.Resolve(ctx, claims.UserID())
	if err != nil {
		logger.Error("Unable to resolve entitlement",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to check your plan"))
		return
	}

	data, err := s.Assembler.Assemble(req, ent.Entitled())
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			resp.WriteError(w, r, resp.ErrBadRequest().AddMessages(verr.Messages()...).WithResult(verr.Fields))
			return
		}
		logger.Error("Unable to assemble welcome message",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}

	token, err := s.Store.LatestTwitterToken(ctx, claims.UserID())
	if err != nil {
		logger.Error("Unable to get linked Twitter account",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}
	if token == nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("No Twitter account is linked"))
		return
	}

	msg, err := s.Dispatcher.Dispatch(ctx, dispatch.Credentials{
		AccessTokenKey:    token.AccessTokenKey,
		AccessTokenSecret: token.AccessTokenSecret,
		ExternalAccountID: token.TwitterUserID,
		AccountHandle:     token.UserName,
	}, data)
	if err != nil {
		s.writeDispatchError(w, r, logger, err)
		return
	}

	metrics.DispatchTotal.WithLabelValues(metrics.OutcomeSent).Inc()
	resp.WriteResponse(w, r, WelcomeResponse{
		Messages:    msg,
		Entitlement: ent,
	})
}

func (s *Service) writeDispatchError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	var (
		rateLimit *dispatch.RateLimitError
		apiErr    *dispatch.APIError
		transport *dispatch.TransportError
	)
	switch {
	case errors.As(err, &rateLimit):
		metrics.DispatchTotal.WithLabelValues(metrics.OutcomeRateLimited).Inc()
		logger.Warn("Twitter rate limit exceeded",
			zap.Time("ResetAt", rateLimit.ResetAt),
		)
		e := resp.ErrTooManyRequests().AddMessages(rateLimit.Error())
		if !rateLimit.ResetAt.IsZero() {
			wait := math.Ceil(rateLimit.ResetAt.Sub(s.Now()).Seconds())
			if wait < 1 {
				wait = 1
			}
			e = e.WithHeader("Retry-After", strconv.Itoa(int(wait)))
		}
		resp.WriteError(w, r, e)

	case errors.As(err, &apiErr):
		metrics.DispatchTotal.WithLabelValues(metrics.OutcomeAPIError).Inc()
		logger.Error("Twitter returned error",
			zap.Int("Code", apiErr.Code),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrBadGateway().AddMessages(apiErr.Message))

	case errors.As(err, &transport):
		metrics.DispatchTotal.WithLabelValues(metrics.OutcomeTransport).Inc()
		logger.Error("Unable to reach Twitter",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrServiceUnavailable().AddMessages("Unable to reach Twitter, please try again later"))

	default:
		logger.Error("Unable to create welcome message",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
	}
}

// Router will return the routes under the welcome message API
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Post("/welcome", s.createWelcomeMessage)

	return r
}
