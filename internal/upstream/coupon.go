package upstream

import (
	"context"

	"github.com/haln-dev/glowcart/internal/common"
	"github.com/haln-dev/glowcart/internal/voucher"
)

// CouponClient implements voucher.CouponChecker and voucher.CouponLister
// against the platform coupon service.
type CouponClient struct {
	Client
}

type checkCouponRequest struct {
	Code       string `json:"code"`
	OrderTotal int64  `json:"orderTotal"`
}

type checkCouponResponse struct {
	Valid    *bool              `json:"valid"`
	Discount common.LooseFloat  `json:"discount"`
	Expiry   common.LooseTime   `json:"expiry"`
	Message  common.LooseString `json:"message"`
}

// Check verifies a single coupon code. A missing or unparsable discount field
// yields a zero DiscountPercent, which downstream validation treats as
// unusable rather than as a free order.
func (c *CouponClient) Check(ctx context.Context, code string, orderTotal int64) (voucher.CheckResult, error) {
	var resp checkCouponResponse
	if err := c.postJSON(ctx, "/check-coupon", checkCouponRequest{Code: code, OrderTotal: orderTotal}, &resp); err != nil {
		return voucher.CheckResult{}, err
	}

	// Some deployments omit "valid" and signal rejection with a bare message.
	valid := resp.Discount.Valid
	if resp.Valid != nil {
		valid = *resp.Valid
	}

	return voucher.CheckResult{
		Valid:           valid,
		DiscountPercent: resp.Discount.Value,
		Expiry:          resp.Expiry.Value,
		Message:         resp.Message.Or(""),
	}, nil
}

type couponPayload struct {
	Code        common.LooseString `json:"code"`
	Discount    common.LooseFloat  `json:"discount"`
	Expiry      common.LooseTime   `json:"expiry"`
	Description common.LooseString `json:"description"`
}

type listCouponsResponse struct {
	Coupons []couponPayload `json:"coupons"`
	Data    []couponPayload `json:"data"`
}

// List fetches the published coupons. Entries without a code are dropped.
func (c *CouponClient) List(ctx context.Context) ([]voucher.Voucher, error) {
	var resp listCouponsResponse
	if err := c.getJSON(ctx, "", &resp); err != nil {
		return nil, err
	}

	payloads := resp.Coupons
	if len(payloads) == 0 {
		payloads = resp.Data
	}

	vouchers := make([]voucher.Voucher, 0, len(payloads))
	for _, p := range payloads {
		if !p.Code.Valid {
			continue
		}
		vouchers = append(vouchers, voucher.Voucher{
			Code:            p.Code.Value,
			DiscountPercent: p.Discount.Value,
			Expiry:          p.Expiry.Value,
			Description:     p.Description.Or(""),
		})
	}
	return vouchers, nil
}
