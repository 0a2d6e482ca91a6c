package promo

import (
	"errors"
	"testing"
	"time"
)

func TestValidateOrder(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	limit := int32(1)

	cases := []struct {
		name string
		rule Rule
		want error
	}{
		{"inactive", Rule{Active: false}, ErrInvalidCode},
		{"not yet active", Rule{Active: true, StartsAt: &future}, ErrNotYetActive},
		{"expired", Rule{Active: true, EndsAt: &past}, ErrExpired},
		{"usage cap", Rule{Active: true, MaxUsesTotal: &limit, UsedTotal: 1}, ErrUsageLimitReached},
		{"per client cap", Rule{Active: true, MaxUsesPerRealtor: &limit, UsedByRealtor: 1}, ErrPerClientLimitReached},
		{"ok", Rule{Active: true, StartsAt: &past, EndsAt: &future}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.rule.Validate(now)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestValidateInactiveWinsOverExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	rule := Rule{Active: false, EndsAt: &past}
	if !errors.Is(rule.Validate(now), ErrInvalidCode) {
		t.Fatal("inactive check must run before the date window")
	}
}

func TestValidateWindowBoundsInclusive(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rule := Rule{Active: true, StartsAt: &now, EndsAt: &now}
	if err := rule.Validate(now); err != nil {
		t.Fatalf("boundary instants should be accepted, got %v", err)
	}
}

func TestEligibleSubtotalUnscoped(t *testing.T) {
	items := []Item{{ServiceID: "a", PriceCents: 10000}, {ServiceID: "b", PriceCents: 5000}}
	if got := EligibleSubtotal(items, Rule{}); got != 15000 {
		t.Fatalf("expected 15000, got %d", got)
	}
}

func TestEligibleSubtotalScoped(t *testing.T) {
	items := []Item{{ServiceID: "a", PriceCents: 10000}, {ServiceID: "b", PriceCents: 5000}}
	rule := Rule{ServiceIDs: []string{"b"}}
	if got := EligibleSubtotal(items, rule); got != 5000 {
		t.Fatalf("expected 5000, got %d", got)
	}
}

func TestEligibleSubtotalNoOverlap(t *testing.T) {
	items := []Item{{ServiceID: "a", PriceCents: 10000}}
	rule := Rule{ServiceIDs: []string{"x", "y"}}
	if got := EligibleSubtotal(items, rule); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	// Zero eligible subtotal is a zero discount, never an error.
	if got := Compute(0, rule); got != 0 {
		t.Fatalf("expected zero discount, got %d", got)
	}
}

func TestComputeAmountClamped(t *testing.T) {
	rule := Rule{Kind: KindAmount, AmountCents: 3000}
	if got := Compute(15000, rule); got != 3000 {
		t.Fatalf("expected 3000, got %d", got)
	}
	if got := Compute(2000, rule); got != 2000 {
		t.Fatalf("expected clamp to eligible 2000, got %d", got)
	}
}

func TestComputePercent(t *testing.T) {
	rule := Rule{Kind: KindPercent, RateBps: 1000}
	if got := Compute(15000, rule); got != 1500 {
		t.Fatalf("expected 1500, got %d", got)
	}
}

func TestEligibleSharesPreserveOrder(t *testing.T) {
	items := []Item{
		{ServiceID: "a", PriceCents: 10000},
		{ServiceID: "b", PriceCents: 5000},
		{ServiceID: "c", PriceCents: 2000},
	}
	rule := Rule{ServiceIDs: []string{"a", "c"}}
	shares := EligibleShares(items, rule)
	want := []int64{10000, 0, 2000}
	for i := range want {
		if shares[i] != want[i] {
			t.Fatalf("share %d: expected %d, got %d", i, want[i], shares[i])
		}
	}
}
