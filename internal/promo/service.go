package promo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// Querier captures the database methods required by the promo service.
type Querier interface {
	GetPromoByCode(ctx context.Context, adminID, code string) (Rule, error)
	CountPromoUsage(ctx context.Context, promoID string) (int64, error)
	CountPromoUsageByRealtor(ctx context.Context, promoID, realtorEmail string) (int64, error)
}

// Result describes the outcome of evaluating a promo code against a booking.
type Result struct {
	PromoID        string  `json:"promoId"`
	Code           string  `json:"code"`
	DiscountCents  int64   `json:"discountCents"`
	EligibleCents  int64   `json:"eligibleCents"`
	EligibleShares []int64 `json:"-"`
}

// Service evaluates promo codes with live usage counts.
type Service struct {
	Q   Querier
	Now func() time.Time
}

// Evaluate validates the code for the admin's catalog and computes the raw
// discount over the selected services. Usage counts are only queried when the
// corresponding cap is configured. A promo whose service subset excludes
// every selected service is not an error; it contributes a zero discount.
func (s *Service) Evaluate(ctx context.Context, adminID, code, realtorEmail string, items []Item) (Result, error) {
	if s == nil || s.Q == nil {
		return Result{}, errors.New("promo service not configured")
	}
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return Result{}, ErrInvalidCode
	}
	rule, err := s.Q.GetPromoByCode(ctx, adminID, trimmed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Result{}, ErrInvalidCode
		}
		return Result{}, err
	}
	if rule.MaxUsesTotal != nil {
		used, err := s.Q.CountPromoUsage(ctx, rule.ID)
		if err != nil {
			return Result{}, err
		}
		rule.UsedTotal = used
	}
	if rule.MaxUsesPerRealtor != nil && strings.TrimSpace(realtorEmail) != "" {
		used, err := s.Q.CountPromoUsageByRealtor(ctx, rule.ID, strings.TrimSpace(realtorEmail))
		if err != nil {
			return Result{}, err
		}
		rule.UsedByRealtor = used
	}
	if err := rule.Validate(s.now()); err != nil {
		return Result{}, err
	}
	eligible := EligibleSubtotal(items, rule)
	discount := Compute(eligible, rule)
	return Result{
		PromoID:        rule.ID,
		Code:           rule.Code,
		DiscountCents:  discount,
		EligibleCents:  eligible,
		EligibleShares: EligibleShares(items, rule),
	}, nil
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
