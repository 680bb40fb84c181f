package upstream

import (
	"context"

	"github.com/haln-dev/glowcart/internal/checkout"
	"github.com/haln-dev/glowcart/internal/common"
)

// PaymentClient implements checkout.PaymentGateway against the platform
// payment service, which fronts a MoMo-style wallet provider.
type PaymentClient struct {
	Client
}

type initiatePaymentRequest struct {
	OrderID     string `json:"orderId"`
	Amount      int64  `json:"amount"`
	OrderInfo   string `json:"orderInfo,omitempty"`
	RedirectURL string `json:"redirectUrl,omitempty"`
	IPNURL      string `json:"ipnUrl,omitempty"`
}

type initiatePaymentResponse struct {
	PayURL        common.LooseString `json:"payUrl"`
	RequestID     common.LooseString `json:"requestId"`
	TransactionID common.LooseString `json:"transId"`
	ResultCode    common.LooseInt64  `json:"resultCode"`
	Message       common.LooseString `json:"message"`
}

// InitiatePayment asks the provider for a payment URL.
func (p *PaymentClient) InitiatePayment(ctx context.Context, req checkout.PaymentRequest) (checkout.PaymentInit, error) {
	payload := initiatePaymentRequest{
		OrderID:     req.OrderID,
		Amount:      req.Amount,
		OrderInfo:   req.OrderInfo,
		RedirectURL: req.RedirectURL,
		IPNURL:      req.CallbackURL,
	}

	var resp initiatePaymentResponse
	if err := p.postJSON(ctx, "", payload, &resp); err != nil {
		return checkout.PaymentInit{}, err
	}

	return checkout.PaymentInit{
		PayURL:        resp.PayURL.Or(""),
		RequestID:     resp.RequestID.Or(""),
		TransactionID: resp.TransactionID.Or(""),
		ResultCode:    resp.ResultCode.Or(0),
		Message:       resp.Message.Or(""),
	}, nil
}

type updatePaymentStatusRequest struct {
	OrderID       string `json:"orderId"`
	RequestID     string `json:"requestId"`
	TransactionID string `json:"transId"`
	ResultCode    int64  `json:"resultCode"`
	Message       string `json:"message,omitempty"`
}

// RecordPaymentStatus writes the initiation outcome back to the platform.
func (p *PaymentClient) RecordPaymentStatus(ctx context.Context, rec checkout.PaymentStatusRecord) error {
	payload := updatePaymentStatusRequest{
		OrderID:       rec.OrderID,
		RequestID:     rec.RequestID,
		TransactionID: rec.TransactionID,
		ResultCode:    rec.ResultCode,
		Message:       rec.Message,
	}
	return p.postJSON(ctx, "/update-payment-status", payload, nil)
}
