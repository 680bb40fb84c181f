package upstream

import (
	"context"

	"github.com/haln-dev/glowcart/internal/checkout"
	"github.com/haln-dev/glowcart/internal/common"
)

// OrderClient implements checkout.OrderCreator against the platform order
// service.
type OrderClient struct {
	Client
}

type orderLinePayload struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Qty       int    `json:"qty"`
	UnitPrice int64  `json:"unitPrice"`
}

type createOrderRequest struct {
	CartID          string             `json:"cartId,omitempty"`
	Items           []orderLinePayload `json:"items"`
	ReceiverName    string             `json:"receiverName"`
	ReceiverPhone   string             `json:"receiverPhone"`
	ReceiverEmail   string             `json:"receiverEmail"`
	DeliveryAddress string             `json:"deliveryAddress"`
	Note            string             `json:"note,omitempty"`
	VoucherCode     string             `json:"voucherCode,omitempty"`
	Subtotal        int64              `json:"subtotal"`
	ShippingFee     int64              `json:"shippingFee"`
	VAT             int64              `json:"vat"`
	DiscountAmount  int64              `json:"discountAmount"`
	Total           int64              `json:"total"`
}

type createOrderResponse struct {
	Order *struct {
		ID common.LooseString `json:"id"`
	} `json:"order"`
	ID common.LooseString `json:"id"`
}

// CreateOrder places the order. The order service returns either a wrapped
// order object or a bare id depending on its version.
func (o *OrderClient) CreateOrder(ctx context.Context, req checkout.OrderRequest) (string, error) {
	payload := createOrderRequest{
		CartID:          req.CartID,
		Items:           make([]orderLinePayload, 0, len(req.Items)),
		ReceiverName:    req.Shipping.Name,
		ReceiverPhone:   req.Shipping.Phone,
		ReceiverEmail:   req.Shipping.Email,
		DeliveryAddress: req.Shipping.Address,
		Note:            req.Shipping.Note,
		VoucherCode:     req.VoucherCode,
		Subtotal:        req.Breakdown.Subtotal,
		ShippingFee:     req.Breakdown.ShippingFee,
		VAT:             req.Breakdown.VAT,
		DiscountAmount:  req.Breakdown.Discount,
		Total:           req.Breakdown.Total,
	}
	for _, line := range req.Items {
		payload.Items = append(payload.Items, orderLinePayload{
			ProductID: line.ProductID,
			Name:      line.Name,
			Qty:       line.Qty,
			UnitPrice: line.UnitPrice,
		})
	}

	var resp createOrderResponse
	if err := o.postJSON(ctx, "", payload, &resp); err != nil {
		return "", err
	}

	orderID := resp.ID.Or("")
	if resp.Order != nil {
		orderID = resp.Order.ID.Or(orderID)
	}
	if orderID == "" {
		return "", common.NewMalformedResponseError(o.Target, "order id missing")
	}
	return orderID, nil
}
