package store_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/schema"

	"github.com/zllovesuki/plzdm/spec"
	"github.com/zllovesuki/plzdm/store"
	"github.com/zllovesuki/plzdm/store/storetest"
)

func TestModelsParse(t *testing.T) {
	for _, m := range store.Models() {
		_, err := schema.Parse(m, &sync.Map{}, schema.NamingStrategy{})
		assert.NoError(t, err, fmt.Sprintf("%T", m))
	}

	profile, err := schema.Parse(&store.Profile{}, &sync.Map{}, schema.NamingStrategy{})
	require.NoError(t, err)
	for _, name := range []string{"BillingAddress", "PaymentMethod"} {
		f := profile.LookUpField(name)
		require.NotNil(t, f, name)
		assert.Equal(t, schema.DataType("json"), f.DataType, name)
	}
}

func TestUpsertProductIsIdempotent(t *testing.T) {
	s, db := storetest.New(t)
	ctx := context.Background()

	p := &store.Product{
		ID:       "prod_1",
		Active:   true,
		Name:     "Pro",
		Metadata: spec.Metadata{"tier": "pro"},
	}
	require.NoError(t, s.UpsertProduct(ctx, p))

	image := "https://files.stripe.com/pro.png"
	updated := &store.Product{
		ID:          "prod_1",
		Active:      false,
		Name:        "Pro (legacy)",
		Description: "Old plan",
		Image:       &image,
		Metadata:    spec.Metadata{"tier": "legacy"},
	}
	require.NoError(t, s.UpsertProduct(ctx, updated))
	require.NoError(t, s.UpsertProduct(ctx, updated))

	var count int64
	require.NoError(t, db.Model(&store.Product{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	got, err := s.GetProduct(ctx, "prod_1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.Active)
	assert.Equal(t, "Pro (legacy)", got.Name)
	assert.Equal(t, "Old plan", got.Description)
	require.NotNil(t, got.Image)
	assert.Equal(t, image, *got.Image)
	assert.Equal(t, spec.Metadata{"tier": "legacy"}, got.Metadata)
}

func TestUpsertPriceRequiresProduct(t *testing.T) {
	s, _ := storetest.New(t)
	ctx := context.Background()

	err := s.UpsertPrice(ctx, &store.Price{
		ID:        "price_orphan",
		ProductID: "prod_missing",
		Type:      "one_time",
	})
	var writeErr *store.WriteError
	require.True(t, errors.As(err, &writeErr))
	assert.Equal(t, "price", writeErr.Entity)
	assert.Equal(t, "price_orphan", writeErr.ID)

	got, err := s.GetPrice(ctx, "price_orphan")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpsertPriceIsIdempotent(t *testing.T) {
	s, db := storetest.New(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertProduct(ctx, &store.Product{ID: "prod_1", Active: true, Name: "Pro"}))

	interval := "month"
	count := int64(1)
	recurring := &store.Price{
		ID:            "price_1",
		ProductID:     "prod_1",
		Active:        true,
		Currency:      "usd",
		Type:          "recurring",
		UnitAmount:    900,
		Interval:      &interval,
		IntervalCount: &count,
	}
	require.NoError(t, s.UpsertPrice(ctx, recurring))

	oneTime := &store.Price{
		ID:         "price_1",
		ProductID:  "prod_1",
		Active:     true,
		Currency:   "usd",
		Type:       "one_time",
		UnitAmount: 4900,
	}
	require.NoError(t, s.UpsertPrice(ctx, oneTime))

	var rows int64
	require.NoError(t, db.Model(&store.Price{}).Count(&rows).Error)
	assert.EqualValues(t, 1, rows)

	got, err := s.GetPrice(ctx, "price_1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "one_time", got.Type)
	assert.EqualValues(t, 4900, got.UnitAmount)
	assert.Nil(t, got.Interval)
	assert.Nil(t, got.IntervalCount)
	assert.Nil(t, got.TrialPeriodDays)
}

func TestUpsertSubscriptionOverwritesSnapshot(t *testing.T) {
	s, db := storetest.New(t)
	ctx := context.Background()
	userID := uuid.New().String()

	created := time.Unix(1600000000, 0).UTC()
	sub := &store.Subscription{
		ID:                 "sub_1",
		UserID:             userID,
		Status:             "trialing",
		PriceID:            "price_1",
		Quantity:           1,
		Created:            created,
		CurrentPeriodStart: created,
		CurrentPeriodEnd:   created.AddDate(0, 1, 0),
	}
	require.NoError(t, s.UpsertSubscription(ctx, sub))

	canceledAt := created.AddDate(0, 0, 3)
	next := *sub
	next.Status = "canceled"
	next.CanceledAt = &canceledAt
	next.Metadata = spec.Metadata{"reason": "too_expensive"}
	require.NoError(t, s.UpsertSubscription(ctx, &next))
	require.NoError(t, s.UpsertSubscription(ctx, &next))

	var rows int64
	require.NoError(t, db.Model(&store.Subscription{}).Count(&rows).Error)
	assert.EqualValues(t, 1, rows)

	got, err := s.GetSubscription(ctx, "sub_1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "canceled", got.Status)
	require.NotNil(t, got.CanceledAt)
	assert.True(t, canceledAt.Equal(*got.CanceledAt))
	assert.Equal(t, "too_expensive", got.Metadata["reason"])
}

func TestLatestPurchase(t *testing.T) {
	s, db := storetest.New(t)
	ctx := context.Background()
	userID := uuid.New().String()

	got, err := s.LatestPurchase(ctx, userID)
	require.NoError(t, err)
	assert.Nil(t, got)

	base := time.Unix(1600000000, 0).UTC()
	require.NoError(t, s.UpsertPurchase(ctx, &store.Purchase{PaymentID: "cs_old", UserID: userID, Created: base, PriceID: "price_old"}))
	require.NoError(t, s.UpsertPurchase(ctx, &store.Purchase{PaymentID: "cs_new", UserID: userID, Created: base.Add(time.Hour), PriceID: "price_new"}))
	require.NoError(t, s.UpsertPurchase(ctx, &store.Purchase{PaymentID: "cs_new", UserID: userID, Created: base.Add(time.Hour), PriceID: "price_new"}))
	require.NoError(t, s.UpsertPurchase(ctx, &store.Purchase{PaymentID: "cs_other", UserID: uuid.New().String(), Created: base.Add(2 * time.Hour), PriceID: "price_other"}))

	var rows int64
	require.NoError(t, db.Model(&store.Purchase{}).Where("user_id = ?", userID).Count(&rows).Error)
	assert.EqualValues(t, 2, rows)

	got, err = s.LatestPurchase(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "price_new", got.PriceID)
}

func TestLatestSubscriptionFiltersStatus(t *testing.T) {
	s, _ := storetest.New(t)
	ctx := context.Background()
	userID := uuid.New().String()

	base := time.Unix(1600000000, 0).UTC()
	require.NoError(t, s.UpsertSubscription(ctx, &store.Subscription{ID: "sub_active", UserID: userID, Status: "active", PriceID: "price_a", Created: base}))
	require.NoError(t, s.UpsertSubscription(ctx, &store.Subscription{ID: "sub_canceled", UserID: userID, Status: "canceled", PriceID: "price_c", Created: base.Add(time.Hour)}))

	got, err := s.LatestSubscription(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "sub_canceled", got.ID)

	got, err = s.LatestSubscription(ctx, userID, "active", "trialing")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "sub_active", got.ID)

	got, err = s.LatestSubscription(ctx, userID, "past_due")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCustomerMapping(t *testing.T) {
	s, _ := storetest.New(t)
	ctx := context.Background()
	userID := uuid.New().String()

	_, err := s.UserIDByCustomerID(ctx, "cus_missing")
	var unknown *store.UnknownCustomerError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "cus_missing", unknown.StripeCustomerID)

	c, err := s.CustomerByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Nil(t, c)

	require.NoError(t, s.CreateCustomer(ctx, &store.Customer{ID: userID, StripeCustomerID: "cus_1"}))

	got, err := s.UserIDByCustomerID(ctx, "cus_1")
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	// the mapping is 1:1
	err = s.CreateCustomer(ctx, &store.Customer{ID: uuid.New().String(), StripeCustomerID: "cus_1"})
	var writeErr *store.WriteError
	assert.True(t, errors.As(err, &writeErr))
}

func TestUpdateBillingDetails(t *testing.T) {
	s, _ := storetest.New(t)
	ctx := context.Background()
	userID := uuid.New().String()

	require.NoError(t, s.UpdateBillingDetails(ctx, userID,
		spec.Document{"city": "Berlin"},
		spec.Document{"brand": "visa", "last4": "4242"},
	))
	require.NoError(t, s.UpdateBillingDetails(ctx, userID,
		spec.Document{"city": "Paris"},
		spec.Document{"brand": "mastercard", "last4": "4444"},
	))

	p, err := s.GetProfile(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Paris", p.BillingAddress["city"])
	assert.Equal(t, "4444", p.PaymentMethod["last4"])
}

func TestUpdateBillingDetailsWithoutAddress(t *testing.T) {
	s, _ := storetest.New(t)
	ctx := context.Background()
	userID := uuid.New().String()

	require.NoError(t, s.UpdateBillingDetails(ctx, userID, nil, spec.Document{"type": "sepa_debit"}))

	p, err := s.GetProfile(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Nil(t, p.BillingAddress)
	assert.Equal(t, "sepa_debit", p.PaymentMethod["type"])
}

func TestLatestTwitterToken(t *testing.T) {
	s, _ := storetest.New(t)
	ctx := context.Background()
	userID := uuid.New().String()

	got, err := s.LatestTwitterToken(ctx, userID)
	require.NoError(t, err)
	assert.Nil(t, got)

	base := time.Unix(1600000000, 0).UTC()
	require.NoError(t, s.CreateTwitterToken(ctx, &store.TwitterToken{
		UserID:            userID,
		AccessTokenKey:    "old-key",
		AccessTokenSecret: "old-secret",
		TwitterUserID:     "42",
		UserName:          "old_handle",
		CreatedAt:         base,
	}))
	require.NoError(t, s.CreateTwitterToken(ctx, &store.TwitterToken{
		UserID:            userID,
		AccessTokenKey:    "new-key",
		AccessTokenSecret: "new-secret",
		TwitterUserID:     "42",
		UserName:          "new_handle",
		CreatedAt:         base.Add(time.Minute),
	}))

	got, err = s.LatestTwitterToken(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "new-key", got.AccessTokenKey)
	assert.Equal(t, "new_handle", got.UserName)
}

func TestReceipts(t *testing.T) {
	s, _ := storetest.New(t)
	ctx := context.Background()
	userID := uuid.New().String()

	r := &store.Receipt{ReceiptURL: "https://pay.stripe.com/receipts/1", UserID: userID, Created: time.Unix(1600000000, 0).UTC()}
	require.NoError(t, s.UpsertReceipt(ctx, r))
	require.NoError(t, s.UpsertReceipt(ctx, r))

	list, err := s.ListReceipts(ctx, userID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, r.ReceiptURL, list[0].ReceiptURL)
}
