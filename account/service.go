// Package account serves the user's own records: linked Twitter accounts, plan and billing history
package account

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/zllovesuki/plzdm/auth"
	"github.com/zllovesuki/plzdm/entitlement"
	resp "github.com/zllovesuki/plzdm/response"
	"github.com/zllovesuki/plzdm/store"
)

var validate *validator.Validate = validator.New()

// Options contains the configuration for Service router
type Options struct {
	Store    *store.Store
	Resolver *entitlement.Resolver
	Logger   *zap.Logger
}

// Service is the linked account API router
type Service struct {
	Options
}

// NewService will create an instance of the linked account API router
func NewService(option Options) (*Service, error) {
	if option.Store == nil {
		return nil, fmt.Errorf("nil Store is invalid")
	}
	if option.Resolver == nil {
		return nil, fmt.Errorf("nil Resolver is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Service{
		Options: option,
	}, nil
}

// LinkRequest is the model of the OAuth result the frontend hands over after the Twitter sign-in
type LinkRequest struct {
	AccessTokenKey    string `json:"access_token_key" validate:"required"`
	AccessTokenSecret string `json:"access_token_secret" validate:"required"`
	TwitterUserID     string `json:"twitter_user_id" validate:"required,numeric"`
	UserName          string `json:"user_name" validate:"required,max=15"`
}

func (s *Service) link(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, _ := auth.FromContext(ctx)

	logger := s.Logger.With(zap.String("UserID", claims.UserID()))

	var req LinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	req.UserName = strings.TrimPrefix(strings.TrimSpace(req.UserName), "@")

	if err := validate.Struct(&req); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages(err.Error()))
		return
	}

	token := &store.TwitterToken{
		UserID:            claims.UserID(),
		AccessTokenKey:    req.AccessTokenKey,
		AccessTokenSecret: req.AccessTokenSecret,
		TwitterUserID:     req.TwitterUserID,
		UserName:          req.UserName,
	}
	if err := s.Store.CreateTwitterToken(ctx, token); err != nil {
		logger.Error("Unable to link Twitter account",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to link Twitter account"))
		return
	}

	logger.Info("Twitter account linked", zap.String("TwitterUserID", token.TwitterUserID))
	resp.WriteResponse(w, r, token)
}

func (s *Service) latest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, _ := auth.FromContext(ctx)

	token, err := s.Store.LatestTwitterToken(ctx, claims.UserID())
	if err != nil {
		s.Logger.Error("Unable to get linked Twitter account",
			zap.String("UserID", claims.UserID()),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}
	if token == nil {
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("No Twitter account is linked"))
		return
	}

	resp.WriteResponse(w, r, token)
}

// Plan is the resolved entitlement with the Price and Product it derives from
type Plan struct {
	Entitlement entitlement.Entitlement `json:"entitlement"`
	Price       *store.Price            `json:"price"`
	Product     *store.Product          `json:"product"`
}

func (s *Service) plan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, _ := auth.FromContext(ctx)

	logger := s.Logger.With(zap.String("UserID", claims.UserID()))

	ent, err := s.Resolver.Resolve(ctx, claims.UserID())
	if err != nil {
		logger.Error("Unable to resolve entitlement",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to check your plan"))
		return
	}

	p := Plan{
		Entitlement: ent,
	}
	if len(ent.PriceID) == 0 || ent.PriceID == entitlement.NoPrice {
		resp.WriteResponse(w, r, p)
		return
	}

	p.Price, err = s.Store.GetPrice(ctx, ent.PriceID)
	if err != nil {
		logger.Error("Unable to get price",
			zap.String("PriceID", ent.PriceID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}
	if p.Price != nil {
		p.Product, err = s.Store.GetProduct(ctx, p.Price.ProductID)
		if err != nil {
			logger.Error("Unable to get product",
				zap.String("ProductID", p.Price.ProductID),
				zap.Error(err),
			)
			resp.WriteError(w, r, resp.ErrUnexpected())
			return
		}
	}

	resp.WriteResponse(w, r, p)
}

// Billing is the billing profile and receipt history of the user
type Billing struct {
	Profile  *store.Profile  `json:"profile"`
	Receipts []store.Receipt `json:"receipts"`
}

func (s *Service) billing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, _ := auth.FromContext(ctx)

	logger := s.Logger.With(zap.String("UserID", claims.UserID()))

	profile, err := s.Store.GetProfile(ctx, claims.UserID())
	if err != nil {
		logger.Error("Unable to get billing profile",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}

	receipts, err := s.Store.ListReceipts(ctx, claims.UserID())
	if err != nil {
		logger.Error("Unable to list receipts",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}

	resp.WriteResponse(w, r, Billing{
		Profile:  profile,
		Receipts: receipts,
	})
}

// Router will return the routes under the linked account API
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Post("/twitter", s.link)
	r.Get("/twitter", s.latest)
	r.Get("/plan", s.plan)
	r.Get("/billing", s.billing)

	return r
}
