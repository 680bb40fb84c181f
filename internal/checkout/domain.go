package checkout

import (
	"context"

	"github.com/haln-dev/glowcart/internal/pricing"
)

// LineItem is a cart line as the platform cart service reports it.
type LineItem struct {
	ProductID string        `json:"productId"`
	Name      string        `json:"name"`
	Qty       int           `json:"qty"`
	UnitPrice pricing.Money `json:"unitPrice"`
	ImageURL  string        `json:"imageUrl,omitempty"`
}

// CartSnapshot is the shopper's cart at the moment it was fetched.
type CartSnapshot struct {
	CartID string     `json:"cartId"`
	Items  []LineItem `json:"items"`
}

// PricingItems converts cart lines into pricing engine input.
func (c CartSnapshot) PricingItems() []pricing.Item {
	items := make([]pricing.Item, 0, len(c.Items))
	for _, line := range c.Items {
		items = append(items, pricing.Item{Qty: line.Qty, UnitPrice: line.UnitPrice})
	}
	return items
}

// ShippingDetails is the delivery information collected from the shopper.
type ShippingDetails struct {
	Name    string `json:"name" validate:"required,min=2,max=128"`
	Phone   string `json:"phone" validate:"required,min=8,max=20"`
	Email   string `json:"email" validate:"required,email"`
	Address string `json:"address" validate:"required,min=8,max=512"`
	Note    string `json:"note,omitempty" validate:"max=512"`
}

// OrderRequest is the payload sent to the platform order service.
type OrderRequest struct {
	CartID      string
	Items       []LineItem
	Shipping    ShippingDetails
	VoucherCode string
	Breakdown   pricing.Breakdown
}

// PaymentRequest asks the payment provider to start collecting Total.
type PaymentRequest struct {
	OrderID     string
	Amount      pricing.Money
	OrderInfo   string
	RedirectURL string
	CallbackURL string
}

// PaymentInit is the provider's answer to a payment request. Providers are
// inconsistent about which identifiers they echo back, so fields may be empty.
type PaymentInit struct {
	PayURL        string
	RequestID     string
	TransactionID string
	ResultCode    int64
	Message       string
}

// PaymentStatusRecord is the bookkeeping entry written after payment initiation.
type PaymentStatusRecord struct {
	OrderID       string
	RequestID     string
	TransactionID string
	ResultCode    int64
	Message       string
}

// CartSource fetches the caller's cart from the platform.
type CartSource interface {
	Cart(ctx context.Context) (CartSnapshot, error)
}

// OrderCreator places an order with the platform order service.
type OrderCreator interface {
	CreateOrder(ctx context.Context, req OrderRequest) (orderID string, err error)
}

// PaymentGateway starts payments and records their initiation status.
type PaymentGateway interface {
	InitiatePayment(ctx context.Context, req PaymentRequest) (PaymentInit, error)
	RecordPaymentStatus(ctx context.Context, rec PaymentStatusRecord) error
}
