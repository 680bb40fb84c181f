package voucher

import (
	"context"
	"time"
)

// Voucher is a coupon the shopper has successfully applied to their cart.
type Voucher struct {
	Code            string    `json:"code"`
	DiscountPercent float64   `json:"discountPercent"`
	Expiry          time.Time `json:"expiry"`
	Description     string    `json:"description,omitempty"`
}

// CheckResult is the platform's verdict on a single coupon code. Fields the
// platform omitted or sent in an unusable shape arrive as zero values.
type CheckResult struct {
	Valid           bool
	DiscountPercent float64
	Expiry          time.Time
	Message         string
}

// CouponChecker verifies a coupon code against the platform coupon service.
// The current order total rides along so the platform can enforce
// minimum-order policies.
type CouponChecker interface {
	Check(ctx context.Context, code string, orderTotal int64) (CheckResult, error)
}

// CouponLister fetches the currently published coupons.
type CouponLister interface {
	List(ctx context.Context) ([]Voucher, error)
}
