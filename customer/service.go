package customer

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi"
	"go.uber.org/zap"

	"github.com/zllovesuki/plzdm/auth"
	resp "github.com/zllovesuki/plzdm/response"
)

// Options contains the configuration for Service router
type Options struct {
	CustomerManager *Manager
	Logger          *zap.Logger
}

// Service is the customer API router
type Service struct {
	Options
}

// NewService will create an instance of the customer API router
func NewService(option Options) (*Service, error) {
	if option.CustomerManager == nil {
		return nil, fmt.Errorf("nil CustomerManager is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Service{
		Options: option,
	}, nil
}

// Response is the model of the customer returned to the user
type Response struct {
	CustomerID string `json:"customerId"`
}

func (s *Service) createOrRetrieve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, _ := auth.FromContext(ctx)

	cust, err := s.CustomerManager.CreateOrRetrieve(ctx, claims.UserID(), claims.Email)
	if err != nil {
		s.Logger.Error("Unable to create Customer",
			zap.String("UserID", claims.UserID()),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to create customer"))
		return
	}

	resp.WriteResponse(w, r, Response{
		CustomerID: cust.StripeCustomerID,
	})
}

// Router will return the routes under customer API
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Post("/", s.createOrRetrieve)

	return r
}
