package entitlement_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/zllovesuki/plzdm/entitlement"
	"github.com/zllovesuki/plzdm/store"
	"github.com/zllovesuki/plzdm/store/storetest"
)

func newResolver(t *testing.T, s *store.Store, p entitlement.Policy) *entitlement.Resolver {
	r, err := entitlement.NewResolver(entitlement.Options{
		Store:  s,
		Policy: p,
		Logger: zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	return r
}

func TestParsePolicy(t *testing.T) {
	p, err := entitlement.ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, entitlement.PolicyPurchase, p)

	p, err = entitlement.ParsePolicy("any")
	require.NoError(t, err)
	assert.Equal(t, entitlement.PolicyAny, p)

	_, err = entitlement.ParsePolicy("premium")
	assert.Error(t, err)
}

func TestResolveWithoutRecords(t *testing.T) {
	s, _ := storetest.New(t)
	r := newResolver(t, s, "")

	e, err := r.Resolve(context.Background(), uuid.New().String())
	require.NoError(t, err)
	assert.Equal(t, entitlement.TierFree, e.Tier)
	assert.Equal(t, entitlement.NoPrice, e.PriceID)
	assert.False(t, e.Entitled())
}

func TestResolveLatestPurchase(t *testing.T) {
	s, _ := storetest.New(t)
	ctx := context.Background()
	userID := uuid.New().String()
	base := time.Unix(1600000000, 0).UTC()

	require.NoError(t, s.UpsertPurchase(ctx, &store.Purchase{PaymentID: "cs_1", UserID: userID, Created: base, PriceID: "price_basic"}))
	require.NoError(t, s.UpsertPurchase(ctx, &store.Purchase{PaymentID: "cs_2", UserID: userID, Created: base.Add(time.Hour), PriceID: "price_pro"}))

	e, err := newResolver(t, s, entitlement.PolicyPurchase).Resolve(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, entitlement.TierPurchase, e.Tier)
	assert.Equal(t, "price_pro", e.PriceID)
	assert.True(t, e.Entitled())
}

func TestPurchasePolicyIgnoresSubscriptions(t *testing.T) {
	s, _ := storetest.New(t)
	ctx := context.Background()
	userID := uuid.New().String()

	require.NoError(t, s.UpsertSubscription(ctx, &store.Subscription{
		ID:      "sub_1",
		UserID:  userID,
		Status:  "active",
		PriceID: "price_monthly",
		Created: time.Unix(1600000000, 0).UTC(),
	}))

	e, err := newResolver(t, s, entitlement.PolicyPurchase).Resolve(ctx, userID)
	require.NoError(t, err)
	assert.False(t, e.Entitled())

	e, err = newResolver(t, s, entitlement.PolicySubscription).Resolve(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, entitlement.TierSubscription, e.Tier)
	assert.Equal(t, "price_monthly", e.PriceID)

	e, err = newResolver(t, s, entitlement.PolicyAny).Resolve(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, entitlement.TierSubscription, e.Tier)
}

func TestSubscriptionPolicyRequiresLiveStatus(t *testing.T) {
	s, _ := storetest.New(t)
	ctx := context.Background()
	userID := uuid.New().String()

	require.NoError(t, s.UpsertSubscription(ctx, &store.Subscription{
		ID:      "sub_1",
		UserID:  userID,
		Status:  "canceled",
		PriceID: "price_monthly",
		Created: time.Unix(1600000000, 0).UTC(),
	}))

	e, err := newResolver(t, s, entitlement.PolicySubscription).Resolve(ctx, userID)
	require.NoError(t, err)
	assert.False(t, e.Entitled())
}

func TestPolicyNoneEntitlesEveryone(t *testing.T) {
	s, _ := storetest.New(t)

	e, err := newResolver(t, s, entitlement.PolicyNone).Resolve(context.Background(), uuid.New().String())
	require.NoError(t, err)
	assert.True(t, e.Entitled())
	assert.Equal(t, entitlement.NoPrice, e.PriceID)
}
