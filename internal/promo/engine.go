package promo

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrInvalidCode is returned when the code does not resolve to an active promo.
	ErrInvalidCode = errors.New("promo code not valid")
	// ErrNotYetActive is returned when the promo window has not opened yet.
	ErrNotYetActive = errors.New("promo code not yet active")
	// ErrExpired is returned when the promo window has closed.
	ErrExpired = errors.New("promo code expired")
	// ErrUsageLimitReached indicates the promo exhausted its global usage quota.
	ErrUsageLimitReached = errors.New("promo usage limit reached")
	// ErrPerClientLimitReached indicates this realtor exceeded their allowance.
	ErrPerClientLimitReached = errors.New("promo per-client usage limit reached")
)

// Discount kinds. Amounts are fixed cents; percents are basis points.
const (
	KindAmount  = "amount"
	KindPercent = "percent"
)

// Rule captures the runtime constraints of a promo code. Usage counters are
// injected by the service from live queries before validation so the rule
// itself stays pure.
type Rule struct {
	ID                string
	Code              string
	Kind              string
	AmountCents       int64
	RateBps           int32
	StartsAt          *time.Time
	EndsAt            *time.Time
	MaxUsesTotal      *int32
	MaxUsesPerRealtor *int32
	ServiceIDs        []string
	Active            bool

	UsedTotal     int64
	UsedByRealtor int64
}

// Item represents a selected service line eligible for promo evaluation.
type Item struct {
	ServiceID  string
	PriceCents int64
}

// Validate checks the rule at the provided instant. Checks run in a fixed
// order and the first failure wins: active, date window (inclusive bounds),
// global usage cap, per-realtor cap.
func (r Rule) Validate(now time.Time) error {
	if !r.Active {
		return ErrInvalidCode
	}
	if r.StartsAt != nil && now.Before(*r.StartsAt) {
		return ErrNotYetActive
	}
	if r.EndsAt != nil && now.After(*r.EndsAt) {
		return ErrExpired
	}
	if r.MaxUsesTotal != nil && *r.MaxUsesTotal >= 0 && r.UsedTotal >= int64(*r.MaxUsesTotal) {
		return ErrUsageLimitReached
	}
	if r.MaxUsesPerRealtor != nil && *r.MaxUsesPerRealtor >= 0 && r.UsedByRealtor >= int64(*r.MaxUsesPerRealtor) {
		return ErrPerClientLimitReached
	}
	return nil
}

// EligibleSubtotal sums the prices of the selected services the promo may
// discount. An empty subset means the promo applies to every selected
// service.
func EligibleSubtotal(items []Item, r Rule) int64 {
	var total int64
	scoped := len(r.ServiceIDs) > 0
	for _, it := range items {
		if it.PriceCents <= 0 {
			continue
		}
		if !scoped || ruleMatchesItem(r, it) {
			total += it.PriceCents
		}
	}
	return total
}

// EligibleShares returns the per-item prices with ineligible services zeroed,
// preserving item order for proration.
func EligibleShares(items []Item, r Rule) []int64 {
	prices := make([]int64, len(items))
	scoped := len(r.ServiceIDs) > 0
	for i, it := range items {
		if it.PriceCents <= 0 {
			continue
		}
		if !scoped || ruleMatchesItem(r, it) {
			prices[i] = it.PriceCents
		}
	}
	return prices
}

func ruleMatchesItem(r Rule, it Item) bool {
	for _, id := range r.ServiceIDs {
		if strings.EqualFold(id, it.ServiceID) {
			return true
		}
	}
	return false
}

// Compute determines the discount amount from the rule and eligible subtotal,
// clamped to [0, eligible]. An empty eligible subtotal silently yields zero.
func Compute(eligible int64, r Rule) int64 {
	if eligible <= 0 {
		return 0
	}
	discount := r.AmountCents
	if strings.EqualFold(r.Kind, KindPercent) {
		if r.RateBps <= 0 {
			return 0
		}
		discount = (eligible*int64(r.RateBps) + 5000) / 10000
	}
	if discount > eligible {
		discount = eligible
	}
	if discount < 0 {
		return 0
	}
	return discount
}
