package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/haln-dev/glowcart/internal/common"
	"github.com/haln-dev/glowcart/internal/obs"
	"github.com/haln-dev/glowcart/internal/pricing"
)

// State names a stage of the submission flow.
type State string

const (
	StateIdle                   State = "idle"
	StateValidatingInput        State = "validating_input"
	StateCreatingOrder          State = "creating_order"
	StateInitiatingPayment      State = "initiating_payment"
	StateRecordingPaymentStatus State = "recording_payment_status"
	StateDone                   State = "done"
	StateFailed                 State = "failed"
)

// SubmitInput is what the shopper sends to place their order.
type SubmitInput struct {
	Shipping    ShippingDetails `json:"shipping"`
	VoucherCode string          `json:"voucherCode,omitempty"`
}

// Result reports a finished submission.
type Result struct {
	State     State             `json:"state"`
	OrderID   string            `json:"orderId,omitempty"`
	PayURL    string            `json:"payUrl,omitempty"`
	Breakdown pricing.Breakdown `json:"breakdown"`
}

// Submitter drives a checkout from input validation through payment
// initiation. The flow is strictly linear. Once the order exists upstream it
// is never rolled back: a later payment failure leaves the order in place and
// the shopper retries payment from their order history.
type Submitter struct {
	Orders      OrderCreator
	Payments    PaymentGateway
	Engine      pricing.Engine
	Validate    *validator.Validate
	Logger      zerolog.Logger
	RedirectURL string
	CallbackURL string
}

// Submit runs the flow for one cart snapshot. It returns the stage reached
// and, on success, the payment URL the shopper is sent to.
func (s *Submitter) Submit(ctx context.Context, snap CartSnapshot, voucherCode string, discountPercent float64, input SubmitInput) (Result, error) {
	state := StateValidatingInput
	if err := s.validateInput(snap, input); err != nil {
		s.recordOutcome(state, "rejected")
		return Result{State: StateFailed}, err
	}

	breakdown := s.Engine.QuoteWithDiscount(snap.PricingItems(), discountPercent)

	state = StateCreatingOrder
	orderID, err := s.Orders.CreateOrder(ctx, OrderRequest{
		CartID:      snap.CartID,
		Items:       snap.Items,
		Shipping:    input.Shipping,
		VoucherCode: voucherCode,
		Breakdown:   breakdown,
	})
	if err != nil {
		s.Logger.Error().Err(err).Str("cart_id", snap.CartID).Msg("order creation failed")
		s.recordOutcome(state, "error")
		return Result{State: StateFailed, Breakdown: breakdown}, err
	}
	if orderID == "" {
		s.recordOutcome(state, "error")
		return Result{State: StateFailed, Breakdown: breakdown},
			common.NewMalformedResponseError("order service", "order id missing")
	}

	state = StateInitiatingPayment
	payment, err := s.Payments.InitiatePayment(ctx, PaymentRequest{
		OrderID:     orderID,
		Amount:      breakdown.Total,
		OrderInfo:   fmt.Sprintf("order %s", orderID),
		RedirectURL: s.RedirectURL,
		CallbackURL: s.CallbackURL,
	})
	if err != nil {
		// The order stays. There is no compensation step here: the shopper
		// can pay for the created order later from their order history.
		s.Logger.Error().Err(err).Str("order_id", orderID).Msg("payment initiation failed")
		s.recordOutcome(state, "error")
		return Result{State: StateFailed, OrderID: orderID, Breakdown: breakdown}, err
	}
	if payment.PayURL == "" {
		s.recordOutcome(state, "error")
		return Result{State: StateFailed, OrderID: orderID, Breakdown: breakdown},
			common.NewMalformedResponseError("payment service", "payUrl missing")
	}

	state = StateRecordingPaymentStatus
	s.recordPaymentStatus(ctx, orderID, payment)

	s.recordOutcome(StateDone, "ok")
	return Result{
		State:     StateDone,
		OrderID:   orderID,
		PayURL:    payment.PayURL,
		Breakdown: breakdown,
	}, nil
}

func (s *Submitter) validateInput(snap CartSnapshot, input SubmitInput) error {
	if snap.CartID == "" {
		return common.NewValidationError("cart id missing")
	}
	if len(snap.Items) == 0 {
		return common.NewValidationError("cart is empty")
	}
	if pricing.Subtotal(snap.PricingItems()) <= 0 {
		return common.NewValidationError("cart has no purchasable items")
	}
	if s.Validate == nil {
		return nil
	}
	if err := s.Validate.Struct(input); err != nil {
		var verrs validator.ValidationErrors
		fields := make([]string, 0, 4)
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				fields = append(fields, strings.ToLower(fe.Field()))
			}
		}
		appErr := common.NewValidationError("shipping details are incomplete")
		appErr.Details = map[string]any{"fields": fields}
		return appErr
	}
	return nil
}

// recordPaymentStatus is best effort bookkeeping. A failure here is logged
// and swallowed: the payment has already been initiated and the shopper must
// not see an error for a telemetry write.
func (s *Submitter) recordPaymentStatus(ctx context.Context, orderID string, payment PaymentInit) {
	rec := PaymentStatusRecord{
		OrderID:       orderID,
		RequestID:     payment.RequestID,
		TransactionID: payment.TransactionID,
		ResultCode:    payment.ResultCode,
		Message:       payment.Message,
	}
	if rec.RequestID == "" {
		rec.RequestID = orderID
	}
	if rec.TransactionID == "" {
		rec.TransactionID = orderID
	}
	if rec.Message == "" {
		rec.Message = "captured payment url"
	}

	if err := s.Payments.RecordPaymentStatus(ctx, rec); err != nil {
		s.Logger.Warn().Err(err).Str("order_id", orderID).Msg("payment status record failed, continuing")
		if obs.PaymentStatusRecordTotal != nil {
			obs.PaymentStatusRecordTotal.WithLabelValues("error").Inc()
		}
		return
	}
	if obs.PaymentStatusRecordTotal != nil {
		obs.PaymentStatusRecordTotal.WithLabelValues("ok").Inc()
	}
}

func (s *Submitter) recordOutcome(stage State, result string) {
	if obs.CheckoutSubmitTotal != nil {
		obs.CheckoutSubmitTotal.WithLabelValues(string(stage), result).Inc()
	}
}
