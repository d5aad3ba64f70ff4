// Package entitlement derives what a user has paid for from the local billing projections
package entitlement

import (
	"context"
	"fmt"

	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/zllovesuki/plzdm/store"
)

// Policy selects which billing records grant entitlement
type Policy string

// define policies
const (
	// PolicyNone disables the gate, every user is entitled
	PolicyNone         Policy = "none"
	PolicyPurchase     Policy = "purchase"
	PolicySubscription Policy = "subscription"
	// PolicyAny accepts a purchase first, then a live subscription
	PolicyAny Policy = "any"
)

// ParsePolicy validates a configured policy name
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicyNone, PolicyPurchase, PolicySubscription, PolicyAny:
		return p, nil
	case "":
		return PolicyPurchase, nil
	default:
		return "", fmt.Errorf("unknown entitlement policy %q", s)
	}
}

// Tier is the kind of record the entitlement derives from
type Tier string

// define tiers
const (
	TierFree         Tier = "free"
	TierPurchase     Tier = "purchase"
	TierSubscription Tier = "subscription"
)

// NoPrice is the price id reported when the user holds no entitlement
const NoPrice = "none"

// Entitlement is the resolved state of a user
type Entitlement struct {
	Tier    Tier   `json:"tier"`
	PriceID string `json:"priceId"`
	// Unrestricted is set when the gate is disabled by policy
	Unrestricted bool `json:"unrestricted"`
}

// Entitled reports whether the user may use paid features
func (e Entitlement) Entitled() bool {
	return e.Unrestricted || e.Tier != TierFree
}

var free = Entitlement{
	Tier:    TierFree,
	PriceID: NoPrice,
}

// live subscription statuses
var activeStatuses = []string{"active", "trialing"}

// Options contains the configuration of Resolver
type Options struct {
	Store  *store.Store
	Policy Policy
	Logger *zap.Logger
}

// Resolver resolves entitlements from the Store
type Resolver struct {
	Options
}

// NewResolver returns a Resolver. An empty Policy defaults to PolicyPurchase
func NewResolver(option Options) (*Resolver, error) {
	if option.Store == nil {
		return nil, fmt.Errorf("nil Store is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	p, err := ParsePolicy(string(option.Policy))
	if err != nil {
		return nil, err
	}
	option.Policy = p
	return &Resolver{
		Options: option,
	}, nil
}

// Resolve returns the entitlement of the user. Having none is not an error
func (r *Resolver) Resolve(ctx context.Context, userID string) (Entitlement, error) {
	switch r.Policy {
	case PolicyNone:
		e := free
		e.Unrestricted = true
		return e, nil
	case PolicyPurchase:
		return r.fromPurchase(ctx, userID)
	case PolicySubscription:
		return r.fromSubscription(ctx, userID)
	default:
		e, err := r.fromPurchase(ctx, userID)
		if err != nil || e.Entitled() {
			return e, err
		}
		return r.fromSubscription(ctx, userID)
	}
}

func (r *Resolver) fromPurchase(ctx context.Context, userID string) (Entitlement, error) {
	p, err := r.Store.LatestPurchase(ctx, userID)
	if err != nil {
		r.Logger.Error("Unable to get latest purchase",
			zap.String("UserID", userID),
			zap.Error(err),
		)
		return Entitlement{}, extErrors.Wrap(err, "Cannot resolve entitlement")
	}
	if p == nil {
		return free, nil
	}
	return Entitlement{
		Tier:    TierPurchase,
		PriceID: p.PriceID,
	}, nil
}

func (r *Resolver) fromSubscription(ctx context.Context, userID string) (Entitlement, error) {
	s, err := r.Store.LatestSubscription(ctx, userID, activeStatuses...)
	if err != nil {
		r.Logger.Error("Unable to get latest subscription",
			zap.String("UserID", userID),
			zap.Error(err),
		)
		return Entitlement{}, extErrors.Wrap(err, "Cannot resolve entitlement")
	}
	if s == nil {
		return free, nil
	}
	return Entitlement{
		Tier:    TierSubscription,
		PriceID: s.PriceID,
	}, nil
}
