package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/haln-dev/glowcart/internal/common"
	"github.com/haln-dev/glowcart/internal/pricing"
)

type fakeOrders struct {
	orderID string
	err     error
	calls   int
	lastReq OrderRequest
}

func (f *fakeOrders) CreateOrder(_ context.Context, req OrderRequest) (string, error) {
	f.calls++
	f.lastReq = req
	return f.orderID, f.err
}

type fakePayments struct {
	init        PaymentInit
	initErr     error
	recordErr   error
	initCalls   int
	recordCalls int
	lastRecord  PaymentStatusRecord
}

func (f *fakePayments) InitiatePayment(context.Context, PaymentRequest) (PaymentInit, error) {
	f.initCalls++
	return f.init, f.initErr
}

func (f *fakePayments) RecordPaymentStatus(_ context.Context, rec PaymentStatusRecord) error {
	f.recordCalls++
	f.lastRecord = rec
	return f.recordErr
}

func testSnapshot() CartSnapshot {
	return CartSnapshot{
		CartID: "cart-1",
		Items: []LineItem{
			{ProductID: "p1", Name: "Serum", Qty: 2, UnitPrice: 120_000},
			{ProductID: "p2", Name: "Cleanser", Qty: 1, UnitPrice: 85_000},
		},
	}
}

func validInput() SubmitInput {
	return SubmitInput{Shipping: ShippingDetails{
		Name:    "Linh Tran",
		Phone:   "0901234567",
		Email:   "linh.tran@example.com",
		Address: "12 Nguyen Hue, District 1, HCMC",
	}}
}

func newSubmitter(orders *fakeOrders, payments *fakePayments) *Submitter {
	return &Submitter{
		Orders:      orders,
		Payments:    payments,
		Validate:    validator.New(),
		Logger:      zerolog.Nop(),
		RedirectURL: "https://shop.example/payment/result",
		CallbackURL: "https://shop.example/api/v1/payments/callback",
	}
}

func TestSubmitHappyPath(t *testing.T) {
	orders := &fakeOrders{orderID: "order-9"}
	payments := &fakePayments{init: PaymentInit{
		PayURL:        "https://pay.example/o/9",
		RequestID:     "req-1",
		TransactionID: "txn-1",
		ResultCode:    0,
	}}
	s := newSubmitter(orders, payments)

	result, err := s.Submit(context.Background(), testSnapshot(), "SPRING14", 14, validInput())
	require.NoError(t, err)
	require.Equal(t, StateDone, result.State)
	require.Equal(t, "order-9", result.OrderID)
	require.Equal(t, "https://pay.example/o/9", result.PayURL)
	require.Equal(t, 1, orders.calls)
	require.Equal(t, 1, payments.recordCalls)
	require.Equal(t, "SPRING14", orders.lastReq.VoucherCode)
	require.Equal(t, "linh.tran@example.com", orders.lastReq.Shipping.Email)
	require.Equal(t, result.Breakdown.Total, orders.lastReq.Breakdown.Total)
}

func TestSubmitRejectsEmptyCart(t *testing.T) {
	orders := &fakeOrders{orderID: "order-9"}
	payments := &fakePayments{}
	s := newSubmitter(orders, payments)

	result, err := s.Submit(context.Background(), CartSnapshot{CartID: "cart-1"}, "", 0, validInput())
	require.True(t, common.IsValidation(err))
	require.Equal(t, StateFailed, result.State)
	require.Zero(t, orders.calls, "no order may be created for a rejected cart")
	require.Zero(t, payments.initCalls)
}

func TestSubmitRejectsIncompleteShipping(t *testing.T) {
	orders := &fakeOrders{orderID: "order-9"}
	s := newSubmitter(orders, &fakePayments{})

	input := validInput()
	input.Shipping.Phone = ""
	_, err := s.Submit(context.Background(), testSnapshot(), "", 0, input)
	require.True(t, common.IsValidation(err))
	require.Zero(t, orders.calls)

	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Contains(t, appErr.Details.(map[string]any)["fields"], "phone")
}

func TestSubmitRejectsMissingEmail(t *testing.T) {
	orders := &fakeOrders{orderID: "order-9"}
	payments := &fakePayments{}
	s := newSubmitter(orders, payments)

	input := validInput()
	input.Shipping.Email = ""
	_, err := s.Submit(context.Background(), testSnapshot(), "", 0, input)
	require.True(t, common.IsValidation(err))
	require.Zero(t, orders.calls, "no order may be created without an email")
	require.Zero(t, payments.initCalls)

	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Contains(t, appErr.Details.(map[string]any)["fields"], "email")
}

func TestSubmitRejectsBadEmail(t *testing.T) {
	orders := &fakeOrders{orderID: "order-9"}
	s := newSubmitter(orders, &fakePayments{})

	input := validInput()
	input.Shipping.Email = "not-an-address"
	_, err := s.Submit(context.Background(), testSnapshot(), "", 0, input)
	require.True(t, common.IsValidation(err))
	require.Zero(t, orders.calls)
}

func TestSubmitRejectsMissingCartID(t *testing.T) {
	orders := &fakeOrders{orderID: "order-9"}
	payments := &fakePayments{}
	s := newSubmitter(orders, payments)

	snap := testSnapshot()
	snap.CartID = ""
	_, err := s.Submit(context.Background(), snap, "", 0, validInput())
	require.True(t, common.IsValidation(err))
	require.Zero(t, orders.calls, "no order may be created without a cart id")
	require.Zero(t, payments.initCalls)
}

func TestSubmitOrderFailureIsFatal(t *testing.T) {
	orders := &fakeOrders{err: common.NewRemoteCallError("order service", errors.New("boom"))}
	payments := &fakePayments{}
	s := newSubmitter(orders, payments)

	result, err := s.Submit(context.Background(), testSnapshot(), "", 0, validInput())
	require.True(t, common.IsRemoteCall(err))
	require.Equal(t, StateFailed, result.State)
	require.Empty(t, result.OrderID)
	require.Zero(t, payments.initCalls, "payment must not start without an order")
}

func TestSubmitPaymentFailureKeepsOrder(t *testing.T) {
	orders := &fakeOrders{orderID: "order-9"}
	payments := &fakePayments{initErr: common.NewRemoteCallError("payment service", errors.New("boom"))}
	s := newSubmitter(orders, payments)

	result, err := s.Submit(context.Background(), testSnapshot(), "", 0, validInput())
	require.Error(t, err)
	require.Equal(t, StateFailed, result.State)
	require.Equal(t, "order-9", result.OrderID, "created order id must be surfaced on payment failure")
	require.Equal(t, 1, orders.calls, "order creation must not be retried")
	require.Zero(t, payments.recordCalls)
}

func TestSubmitMissingPayURLIsFatal(t *testing.T) {
	orders := &fakeOrders{orderID: "order-9"}
	payments := &fakePayments{init: PaymentInit{RequestID: "req-1"}}
	s := newSubmitter(orders, payments)

	result, err := s.Submit(context.Background(), testSnapshot(), "", 0, validInput())
	require.True(t, common.IsMalformedResponse(err))
	require.Equal(t, StateFailed, result.State)
	require.Equal(t, 1, orders.calls)
	require.Zero(t, payments.recordCalls)
}

func TestSubmitRecordingFailureIsSwallowed(t *testing.T) {
	orders := &fakeOrders{orderID: "order-9"}
	payments := &fakePayments{
		init:      PaymentInit{PayURL: "https://pay.example/o/9"},
		recordErr: errors.New("bookkeeping down"),
	}
	s := newSubmitter(orders, payments)

	result, err := s.Submit(context.Background(), testSnapshot(), "", 0, validInput())
	require.NoError(t, err, "status bookkeeping failures must not fail the checkout")
	require.Equal(t, StateDone, result.State)
	require.Equal(t, 1, payments.recordCalls)
}

func TestSubmitRecordFallbacks(t *testing.T) {
	orders := &fakeOrders{orderID: "order-9"}
	payments := &fakePayments{init: PaymentInit{PayURL: "https://pay.example/o/9"}}
	s := newSubmitter(orders, payments)

	_, err := s.Submit(context.Background(), testSnapshot(), "", 0, validInput())
	require.NoError(t, err)
	require.Equal(t, "order-9", payments.lastRecord.RequestID, "missing requestId falls back to order id")
	require.Equal(t, "order-9", payments.lastRecord.TransactionID, "missing transactionId falls back to order id")
	require.Equal(t, "captured payment url", payments.lastRecord.Message, "missing message gets the capture default")
	require.Zero(t, payments.lastRecord.ResultCode)
}

func TestSubmitDiscountFlowsIntoOrder(t *testing.T) {
	orders := &fakeOrders{orderID: "order-9"}
	payments := &fakePayments{init: PaymentInit{PayURL: "https://pay.example/o/9"}}
	s := newSubmitter(orders, payments)

	snap := CartSnapshot{CartID: "c", Items: []LineItem{{ProductID: "p", Qty: 1, UnitPrice: 100_000}}}
	result, err := s.Submit(context.Background(), snap, "TET", 10, validInput())
	require.NoError(t, err)

	want := pricing.Engine{}.QuoteWithDiscount(snap.PricingItems(), 10)
	require.Equal(t, want, result.Breakdown)
	require.Equal(t, want, orders.lastReq.Breakdown)
}
