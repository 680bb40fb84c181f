package voucher

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/haln-dev/glowcart/internal/common"
	"github.com/haln-dev/glowcart/internal/obs"
)

// ErrCheckUnavailable marks a voucher check that failed for transient reasons.
// Callers holding a previously applied voucher keep it when they see this error.
var ErrCheckUnavailable = errors.New("voucher: check unavailable")

// Validator applies the coupon service's verdict plus local sanity rules.
type Validator struct {
	Coupons CouponChecker
	Logger  zerolog.Logger
	Now     func() time.Time
}

// Validate checks the code remotely and re-checks expiry locally. The local
// expiry check runs even when the platform says the coupon is valid, so a
// stale verdict can never discount an order past the cutoff. The caller's
// current subtotal is forwarded so the platform can reject codes below a
// minimum order value.
func (v *Validator) Validate(ctx context.Context, code string, subtotal int64) (Voucher, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Voucher{}, common.NewValidationError("voucher code must not be blank")
	}

	result, err := v.Coupons.Check(ctx, code, subtotal)
	if err != nil {
		v.Logger.Warn().Err(err).Str("code", code).Msg("voucher check failed upstream")
		recordCheck("error")
		return Voucher{}, &common.AppError{
			Code:       "VOUCHER_CHECK_UNAVAILABLE",
			Message:    "voucher check failed, please try again",
			HTTPStatus: http.StatusServiceUnavailable,
			Err:        errors.Join(ErrCheckUnavailable, err),
		}
	}

	if !result.Valid {
		recordCheck("invalid")
		message := result.Message
		if message == "" {
			message = "voucher is invalid or expired"
		}
		return Voucher{}, common.NewValidationError(message)
	}
	if result.DiscountPercent <= 0 || result.DiscountPercent > 100 {
		recordCheck("invalid")
		return Voucher{}, common.NewValidationError("voucher is invalid or expired")
	}

	now := time.Now()
	if v.Now != nil {
		now = v.Now()
	}
	if !result.Expiry.IsZero() && result.Expiry.Before(now) {
		recordCheck("expired")
		return Voucher{}, common.NewValidationError("voucher is invalid or expired")
	}

	recordCheck("valid")
	return Voucher{
		Code:            code,
		DiscountPercent: result.DiscountPercent,
		Expiry:          result.Expiry,
		Description:     result.Message,
	}, nil
}

func recordCheck(result string) {
	if obs.VoucherCheckTotal != nil {
		obs.VoucherCheckTotal.WithLabelValues(result).Inc()
	}
}
