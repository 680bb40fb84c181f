package upstream

import (
	"context"

	"github.com/haln-dev/glowcart/internal/checkout"
	"github.com/haln-dev/glowcart/internal/common"
	"github.com/haln-dev/glowcart/internal/pricing"
)

// CartClient implements checkout.CartSource against the platform cart service.
type CartClient struct {
	Client
}

type cartLinePayload struct {
	ProductID      common.LooseString `json:"productId"`
	ID             common.LooseString `json:"id"`
	Name           common.LooseString `json:"name"`
	Qty            common.LooseInt64  `json:"qty"`
	Quantity       common.LooseInt64  `json:"quantity"`
	PromotionPrice common.LooseInt64  `json:"promotionPrice"`
	Price          common.LooseInt64  `json:"price"`
	UnitPrice      common.LooseInt64  `json:"unitPrice"`
	ImageRef       common.LooseString `json:"imageRef"`
	Image          common.LooseString `json:"image"`
}

type cartPayload struct {
	ID    common.LooseString `json:"id"`
	Items []cartLinePayload  `json:"items"`
}

type cartEnvelope struct {
	Cart  *cartPayload       `json:"cart"`
	ID    common.LooseString `json:"id"`
	Items []cartLinePayload  `json:"items"`
}

// Cart fetches the caller's cart. The cart service wraps the cart in an
// envelope on some deployments and returns it bare on others.
func (c *CartClient) Cart(ctx context.Context) (checkout.CartSnapshot, error) {
	var envelope cartEnvelope
	if err := c.getJSON(ctx, "", &envelope); err != nil {
		return checkout.CartSnapshot{}, err
	}

	payload := cartPayload{ID: envelope.ID, Items: envelope.Items}
	if envelope.Cart != nil {
		payload = *envelope.Cart
	}

	snap := checkout.CartSnapshot{
		CartID: payload.ID.Or(""),
		Items:  make([]checkout.LineItem, 0, len(payload.Items)),
	}
	for _, line := range payload.Items {
		// The promotion price, when present, is what the shopper actually pays.
		snap.Items = append(snap.Items, checkout.LineItem{
			ProductID: line.ProductID.Or(line.ID.Or("")),
			Name:      line.Name.Or("unknown item"),
			Qty:       int(line.Qty.Or(line.Quantity.Or(0))),
			UnitPrice: pricing.Money(line.PromotionPrice.Or(line.Price.Or(line.UnitPrice.Or(0)))),
			ImageURL:  line.ImageRef.Or(line.Image.Or("")),
		})
	}
	return snap, nil
}
