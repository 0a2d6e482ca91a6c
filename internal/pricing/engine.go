package pricing

// Money represents a monetary value stored in minor units (cents).
type Money = int64

// Item describes a bookable service line used for pricing calculation.
// TaxRatesBps carries the linked tax rates in basis points; each rate is
// applied independently to the discounted base (rates never compound).
type Item struct {
	ServiceID   string
	ServiceName string
	PriceCents  Money
	TaxRatesBps []int32
}

// ItemQuote is the priced result for a single service line.
type ItemQuote struct {
	ServiceID      string
	ServiceName    string
	UnitPriceCents Money
	DiscountCents  Money
	TaxCents       Money
}

// Summary aggregates computed booking totals.
type Summary struct {
	SubtotalCents Money
	DiscountCents Money
	TaxCents      Money
	TotalCents    Money
	Items         []ItemQuote
}

// roundDiv divides a*b by d rounding half away from zero. All money math in
// this package goes through integer cents and basis points; the rounding rule
// is pinned here so proration and tax lines agree.
func roundDiv(a, b, d Money) Money {
	if d == 0 {
		return 0
	}
	return (a*b + d/2) / d
}

// Prorate splits discountCents across items proportionally to price. Shares
// sum to discountCents exactly and no share exceeds its item's price: all but
// the last priced item get a rounded proportional share, the last priced item
// absorbs the remainder clamped to its own price, and any overflow flows back
// to earlier lines with spare capacity. Zero-priced entries never receive a
// share. Callers must cap discountCents at the eligible subtotal first; a
// zero subtotal yields all-zero shares.
func Prorate(discountCents Money, prices []Money) []Money {
	shares := make([]Money, len(prices))
	if discountCents <= 0 || len(prices) == 0 {
		return shares
	}
	var subtotal Money
	last := -1
	for i, p := range prices {
		if p > 0 {
			subtotal += p
			last = i
		}
	}
	if subtotal == 0 {
		return shares
	}
	if discountCents > subtotal {
		discountCents = subtotal
	}
	remaining := discountCents
	for i, p := range prices {
		if remaining <= 0 {
			break
		}
		if p <= 0 {
			continue
		}
		if i == last {
			shares[i] = remaining
			remaining = 0
			break
		}
		share := roundDiv(discountCents, p, subtotal)
		if share > p {
			share = p
		}
		if share > remaining {
			share = remaining
		}
		shares[i] = share
		remaining -= share
	}
	// When earlier shares round low the remainder can exceed the last item's
	// price. The discount is capped at the subtotal, so earlier lines always
	// have room for the overflow.
	if last >= 0 && shares[last] > prices[last] {
		overflow := shares[last] - prices[last]
		shares[last] = prices[last]
		for i := 0; i < last && overflow > 0; i++ {
			if prices[i] <= 0 {
				continue
			}
			room := prices[i] - shares[i]
			if room <= 0 {
				continue
			}
			if room > overflow {
				room = overflow
			}
			shares[i] += room
			overflow -= room
		}
	}
	return shares
}

// TaxFor computes the tax owed on a discounted base. Each linked rate is
// rounded independently; there is no remainder correction across tax lines.
func TaxFor(baseCents Money, ratesBps []int32) Money {
	if baseCents <= 0 {
		return 0
	}
	var tax Money
	for _, rate := range ratesBps {
		if rate <= 0 {
			continue
		}
		tax += roundDiv(baseCents, Money(rate), 10000)
	}
	return tax
}

// Quote prices a booking: prorates the (pre-capped) discount across the
// items, taxes each discounted base, and aggregates totals. The total never
// goes negative.
func Quote(items []Item, discountCents Money) Summary {
	return QuoteScoped(items, discountCents, nil)
}

// QuoteScoped prices a booking where the discount only covers a subset of the
// items. eligible holds per-item prices with ineligible lines zeroed and must
// match items in length and order; a nil eligible means every item qualifies.
func QuoteScoped(items []Item, discountCents Money, eligible []Money) Summary {
	prices := make([]Money, len(items))
	var subtotal Money
	var eligibleTotal Money
	for i, it := range items {
		prices[i] = it.PriceCents
		if it.PriceCents > 0 {
			subtotal += it.PriceCents
		}
	}
	basis := prices
	if eligible != nil && len(eligible) == len(items) {
		basis = eligible
	}
	for _, p := range basis {
		if p > 0 {
			eligibleTotal += p
		}
	}
	if discountCents < 0 {
		discountCents = 0
	}
	if discountCents > eligibleTotal {
		discountCents = eligibleTotal
	}
	shares := Prorate(discountCents, basis)

	out := Summary{SubtotalCents: subtotal, DiscountCents: discountCents}
	out.Items = make([]ItemQuote, len(items))
	for i, it := range items {
		base := it.PriceCents - shares[i]
		if base < 0 {
			base = 0
		}
		tax := TaxFor(base, it.TaxRatesBps)
		out.Items[i] = ItemQuote{
			ServiceID:      it.ServiceID,
			ServiceName:    it.ServiceName,
			UnitPriceCents: it.PriceCents,
			DiscountCents:  shares[i],
			TaxCents:       tax,
		}
		out.TaxCents += tax
	}
	out.TotalCents = out.SubtotalCents - out.DiscountCents + out.TaxCents
	if out.TotalCents < 0 {
		out.TotalCents = 0
	}
	return out
}
