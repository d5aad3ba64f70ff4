package store

import (
	"time"

	"github.com/zllovesuki/plzdm/spec"
)

// Product mirrors a Stripe Product. Rows are never deleted, only marked inactive
type Product struct {
	ID          string        `json:"id" gorm:"primaryKey"`     // Corresponds to Stripe's Product ID
	Active      bool          `json:"active"`                   // Stripe's product.active
	Name        string        `json:"name"`                     // Shown to the customer
	Description string        `json:"description"`              // Shown to the customer
	Image       *string       `json:"image"`                    // First of product.images, if any
	Metadata    spec.Metadata `json:"metadata" gorm:"not null"` // Stripe's product.metadata
}

// Price mirrors a Stripe Price. Recurring fields are nil for one-time prices
type Price struct {
	ID              string        `json:"id" gorm:"primaryKey"`                  // Corresponds to Stripe's Price ID
	ProductID       string        `json:"productId" gorm:"index;not null"`       // Owning Product
	Product         *Product      `json:"-" gorm:"constraint:OnDelete:RESTRICT"` // Enforces that the Product exists
	Active          bool          `json:"active"`
	Currency        string        `json:"currency"`    // ISO currency code (e.g. usd)
	Description     string        `json:"description"` // Stripe's price.nickname
	Type            string        `json:"type"`        // one_time or recurring
	UnitAmount      int64         `json:"unitAmount"`  // Amount in minor currency units
	Interval        *string       `json:"interval"`    // day/week/month/year
	IntervalCount   *int64        `json:"intervalCount"`
	TrialPeriodDays *int64        `json:"trialPeriodDays"`
	Metadata        spec.Metadata `json:"metadata" gorm:"not null"`
}

// Customer maps an internal user to the Stripe customer. The mapping is 1:1
type Customer struct {
	ID               string `json:"id" gorm:"primaryKey"`                         // Internal user UUID from the identity provider
	StripeCustomerID string `json:"stripeCustomerId" gorm:"uniqueIndex;not null"` // Corresponds to Stripe's Customer ID
}

// Profile holds the billing details copied from a customer's default payment method
type Profile struct {
	ID             string        `json:"id" gorm:"primaryKey"` // Internal user UUID
	BillingAddress spec.Document `json:"billingAddress"`
	PaymentMethod  spec.Document `json:"paymentMethod"` // Type-specific details, e.g. the card brand and last4
}

// TableName keeps the profile columns on the users table
func (Profile) TableName() string {
	return "users"
}

// Subscription mirrors the latest Stripe snapshot of a subscription
type Subscription struct {
	ID                 string        `json:"id" gorm:"primaryKey"` // Corresponds to Stripe's Subscription ID
	UserID             string        `json:"userId" gorm:"index"`  // Owning user, resolved through Customer
	Status             string        `json:"status"`               // Stripe's status, stored verbatim
	PriceID            string        `json:"priceId"`              // Price of the first subscription item
	Quantity           int64         `json:"quantity"`
	CancelAtPeriodEnd  bool          `json:"cancelAtPeriodEnd"`
	CancelAt           *time.Time    `json:"cancelAt"`
	CanceledAt         *time.Time    `json:"canceledAt"`
	CurrentPeriodStart time.Time     `json:"currentPeriodStart"`
	CurrentPeriodEnd   time.Time     `json:"currentPeriodEnd"`
	Created            time.Time     `json:"created" gorm:"index"`
	EndedAt            *time.Time    `json:"endedAt"`
	TrialStart         *time.Time    `json:"trialStart"`
	TrialEnd           *time.Time    `json:"trialEnd"`
	Metadata           spec.Metadata `json:"metadata" gorm:"not null"`
}

// Purchase records a completed one-time checkout
type Purchase struct {
	PaymentID string    `json:"paymentId" gorm:"primaryKey"` // Corresponds to Stripe's Checkout Session ID
	UserID    string    `json:"userId" gorm:"index"`
	Created   time.Time `json:"created" gorm:"index"`
	PriceID   string    `json:"priceId"`
}

// Receipt points at the hosted receipt of a successful charge
type Receipt struct {
	ReceiptURL string    `json:"receiptUrl" gorm:"primaryKey"`
	UserID     string    `json:"userId" gorm:"index"`
	Created    time.Time `json:"created"`
}

// TwitterToken is the access token pair of a linked Twitter account. The newest row per user wins
type TwitterToken struct {
	ID                string    `json:"id" gorm:"primaryKey"`
	UserID            string    `json:"userId" gorm:"index;not null"`
	AccessTokenKey    string    `json:"-" gorm:"not null"`
	AccessTokenSecret string    `json:"-" gorm:"not null"`
	TwitterUserID     string    `json:"twitterUserId"`
	UserName          string    `json:"userName"`
	CreatedAt         time.Time `json:"createdAt" gorm:"index"`
}
