package pricing

import "math"

// Money represents a monetary value stored in minor units.
type Money = int64

// Default checkout policy constants. Amounts are minor currency units.
const (
	DefaultFreeShippingThreshold Money = 500_000
	DefaultShippingFee           Money = 30_000
	DefaultVATRateBps                  = 1000
)

// Item describes a line item used for pricing calculation.
type Item struct {
	Qty       int
	UnitPrice Money
}

// Breakdown aggregates the computed pricing components for a cart.
type Breakdown struct {
	Subtotal    Money `json:"subtotal"`
	ShippingFee Money `json:"shippingFee"`
	VAT         Money `json:"vat"`
	Discount    Money `json:"discountAmount"`
	Total       Money `json:"total"`
}

// Engine computes price breakdowns. The zero value applies the default
// storefront policy: free shipping from 500,000, a flat 30,000 fee below the
// threshold, and 10% VAT on the subtotal.
type Engine struct {
	FreeShippingThreshold Money
	ShippingFee           Money
	VATRateBps            int
}

func (e Engine) freeShippingThreshold() Money {
	if e.FreeShippingThreshold <= 0 {
		return DefaultFreeShippingThreshold
	}
	return e.FreeShippingThreshold
}

func (e Engine) baseShippingFee() Money {
	if e.ShippingFee <= 0 {
		return DefaultShippingFee
	}
	return e.ShippingFee
}

func (e Engine) vatRateBps() int {
	if e.VATRateBps <= 0 {
		return DefaultVATRateBps
	}
	return e.VATRateBps
}

// Subtotal sums unit price times quantity over all line items. Lines with a
// non-positive quantity are skipped.
func Subtotal(items []Item) Money {
	var subtotal Money
	for _, it := range items {
		if it.Qty <= 0 || it.UnitPrice < 0 {
			continue
		}
		subtotal += Money(it.Qty) * it.UnitPrice
	}
	return subtotal
}

// Quote computes the breakdown for the given items without a voucher.
func (e Engine) Quote(items []Item) Breakdown {
	return e.QuoteWithDiscount(items, 0)
}

// QuoteWithDiscount computes the breakdown applying a percentage voucher.
//
// The discount applies to the VAT-inclusive, shipping-inclusive amount, not
// the bare subtotal. The discount amount is rounded half-up to the nearest
// minor unit. An empty cart yields an all-zero breakdown.
func (e Engine) QuoteWithDiscount(items []Item, discountPercent float64) Breakdown {
	subtotal := Subtotal(items)
	if subtotal == 0 {
		return Breakdown{}
	}

	var shipping Money
	if subtotal < e.freeShippingThreshold() {
		shipping = e.baseShippingFee()
	}
	vat := subtotal * Money(e.vatRateBps()) / 10000

	base := subtotal + shipping + vat
	var discount Money
	if discountPercent > 0 {
		if discountPercent > 100 {
			discountPercent = 100
		}
		discount = roundHalfUp(float64(base) * discountPercent / 100)
		if discount > base {
			discount = base
		}
	}

	return Breakdown{
		Subtotal:    subtotal,
		ShippingFee: shipping,
		VAT:         vat,
		Discount:    discount,
		Total:       base - discount,
	}
}

func roundHalfUp(v float64) Money {
	return Money(math.Floor(v + 0.5))
}
