package account

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/zllovesuki/plzdm/auth"
	"github.com/zllovesuki/plzdm/entitlement"
	"github.com/zllovesuki/plzdm/spec"
	"github.com/zllovesuki/plzdm/store"
	"github.com/zllovesuki/plzdm/store/storetest"
)

type fixture struct {
	store   *store.Store
	handler http.Handler
	claims  *auth.Claims
}

func newFixture(t *testing.T) *fixture {
	s, _ := storetest.New(t)
	logger := zaptest.NewLogger(t)

	resolver, err := entitlement.NewResolver(entitlement.Options{
		Store:  s,
		Policy: entitlement.PolicyPurchase,
		Logger: logger,
	})
	require.NoError(t, err)

	svc, err := NewService(Options{
		Store:    s,
		Resolver: resolver,
		Logger:   logger,
	})
	require.NoError(t, err)

	claims := &auth.Claims{}
	claims.Subject = uuid.New().String()

	return &fixture{
		store:   s,
		handler: svc.Router(),
		claims:  claims,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req = req.WithContext(auth.NewContext(req.Context(), f.claims))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestNewServiceRequiresResolver(t *testing.T) {
	s, _ := storetest.New(t)
	_, err := NewService(Options{
		Store:  s,
		Logger: zaptest.NewLogger(t),
	})
	assert.Error(t, err)
}

func TestLinkAndFetchTwitterAccount(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/twitter", nil).Code)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/twitter", LinkRequest{
		AccessTokenKey: "key",
		TwitterUserID:  "1234",
		UserName:       "plzdm",
	}).Code)

	rec := f.do(t, http.MethodPost, "/twitter", LinkRequest{
		AccessTokenKey:    "key",
		AccessTokenSecret: "secret",
		TwitterUserID:     "1234",
		UserName:          "@plzdm",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/twitter", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret")

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "plzdm", got["userName"])
	assert.Equal(t, "1234", got["twitterUserId"])
}

func TestPlanWithoutPurchase(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/plan", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var p Plan
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, entitlement.TierFree, p.Entitlement.Tier)
	assert.Nil(t, p.Price)
	assert.Nil(t, p.Product)
}

func TestPlanWithPurchase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.UpsertProduct(ctx, &store.Product{
		ID:       "prod_lifetime",
		Active:   true,
		Name:     "Lifetime",
		Metadata: spec.Metadata{},
	}))
	require.NoError(t, f.store.UpsertPrice(ctx, &store.Price{
		ID:         "price_lifetime",
		ProductID:  "prod_lifetime",
		Active:     true,
		Currency:   "usd",
		Type:       "one_time",
		UnitAmount: 2900,
		Metadata:   spec.Metadata{},
	}))
	require.NoError(t, f.store.UpsertPurchase(ctx, &store.Purchase{
		PaymentID: "cs_1",
		UserID:    f.claims.UserID(),
		Created:   time.Unix(1600000000, 0).UTC(),
		PriceID:   "price_lifetime",
	}))

	rec := f.do(t, http.MethodGet, "/plan", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var p Plan
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, entitlement.TierPurchase, p.Entitlement.Tier)
	require.NotNil(t, p.Price)
	assert.Equal(t, int64(2900), p.Price.UnitAmount)
	require.NotNil(t, p.Product)
	assert.Equal(t, "Lifetime", p.Product.Name)
}

func TestBillingHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec := f.do(t, http.MethodGet, "/billing", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var b Billing
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))
	assert.Nil(t, b.Profile)
	assert.Empty(t, b.Receipts)

	require.NoError(t, f.store.UpdateBillingDetails(ctx, f.claims.UserID(),
		spec.Document{"city": "London"},
		spec.Document{"brand": "visa", "last4": "4242"},
	))
	require.NoError(t, f.store.UpsertReceipt(ctx, &store.Receipt{
		ReceiptURL: "https://pay.stripe.com/receipts/1",
		UserID:     f.claims.UserID(),
		Created:    time.Unix(1600000000, 0).UTC(),
	}))

	rec = f.do(t, http.MethodGet, "/billing", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	b = Billing{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))
	require.NotNil(t, b.Profile)
	assert.Equal(t, "4242", b.Profile.PaymentMethod["last4"])
	require.Len(t, b.Receipts, 1)
	assert.Equal(t, "https://pay.stripe.com/receipts/1", b.Receipts[0].ReceiptURL)
}
