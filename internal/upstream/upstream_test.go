package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/haln-dev/glowcart/internal/auth"
	"github.com/haln-dev/glowcart/internal/checkout"
	"github.com/haln-dev/glowcart/internal/common"
	"github.com/haln-dev/glowcart/internal/resilience"
)

func newClient(t *testing.T, target, mount string, handler http.Handler) (Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return Client{
		Target:  target,
		BaseURL: srv.URL + mount,
		HTTP:    resilience.HTTPClient{Client: srv.Client(), Timeout: time.Second},
		Tokens:  auth.StaticTokenSource("service-token"),
	}, srv
}

func TestCartClientDecodesLoosePayload(t *testing.T) {
	var gotAuth string
	client, _ := newClient(t, "cart service", "/carts", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.Equal(t, "/carts", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"cart": {
				"id": 77,
				"items": [
					{"productId": "p1", "name": "Serum", "qty": "2", "price": "120000"},
					{"id": "p2", "quantity": 1, "unitPrice": 85000},
					{"productId": "p3", "name": "Mask", "qty": 1, "promotionPrice": "99000", "price": 150000, "imageRef": "img/mask.jpg"}
				]
			}
		}`))
	}))

	carts := &CartClient{Client: client}
	snap, err := carts.Cart(context.Background())
	require.NoError(t, err)
	require.Equal(t, "77", snap.CartID)
	require.Len(t, snap.Items, 3)
	require.Equal(t, 2, snap.Items[0].Qty)
	require.EqualValues(t, 120_000, snap.Items[0].UnitPrice)
	require.Equal(t, "p2", snap.Items[1].ProductID)
	require.Equal(t, "unknown item", snap.Items[1].Name)
	require.EqualValues(t, 99_000, snap.Items[2].UnitPrice, "promotion price wins over list price")
	require.Equal(t, "img/mask.jpg", snap.Items[2].ImageURL)
	require.Equal(t, "Bearer service-token", gotAuth)
}

func TestCartClientBearerFromContext(t *testing.T) {
	var gotAuth string
	client, _ := newClient(t, "cart service", "/carts", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"items": []}`))
	}))
	client.Tokens = auth.ContextTokenSource{Fallback: "service-token"}

	carts := &CartClient{Client: client}
	ctx := common.WithBearer(context.Background(), "shopper-token")
	_, err := carts.Cart(ctx)
	require.NoError(t, err)
	require.Equal(t, "Bearer shopper-token", gotAuth)
}

func TestCouponClientCheck(t *testing.T) {
	client, _ := newClient(t, "coupon service", "/coupons", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/coupons/check-coupon", r.URL.Path)
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "TET", req["code"])
		require.EqualValues(t, 325_000, req["orderTotal"])
		_, _ = w.Write([]byte(`{"valid": true, "discount": "14%", "expiry": "2026-12-31T23:59:59Z"}`))
	}))

	coupons := &CouponClient{Client: client}
	result, err := coupons.Check(context.Background(), "TET", 325_000)
	require.NoError(t, err)
	require.True(t, result.Valid)
	require.InDelta(t, 14.0, result.DiscountPercent, 0.001)
	require.Equal(t, 2026, result.Expiry.Year())
}

func TestCouponClientCheckNonNumericDiscount(t *testing.T) {
	client, _ := newClient(t, "coupon service", "/coupons", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"valid": true, "discount": "lots", "message": "weird coupon"}`))
	}))

	coupons := &CouponClient{Client: client}
	result, err := coupons.Check(context.Background(), "ODD", 100_000)
	require.NoError(t, err)
	require.True(t, result.Valid)
	require.Zero(t, result.DiscountPercent, "unparsable discount must decode to zero")
}

func TestCouponClientList(t *testing.T) {
	client, _ := newClient(t, "coupon service", "/coupons", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/coupons", r.URL.Path)
		_, _ = w.Write([]byte(`{"coupons": [
			{"code": "TET", "discount": 10, "description": "New year"},
			{"discount": 50}
		]}`))
	}))

	coupons := &CouponClient{Client: client}
	list, err := coupons.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1, "entries without a code are dropped")
	require.Equal(t, "TET", list[0].Code)
}

func TestOrderClientWrappedAndBareIDs(t *testing.T) {
	for name, body := range map[string]string{
		"wrapped": `{"order": {"id": "order-9"}}`,
		"bare":    `{"id": "order-9"}`,
		"numeric": `{"order": {"id": 9}}`,
	} {
		t.Run(name, func(t *testing.T) {
			payload := body
			client, _ := newClient(t, "order service", "/orders", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "/orders", r.URL.Path)
				_, _ = w.Write([]byte(payload))
			}))

			orders := &OrderClient{Client: client}
			id, err := orders.CreateOrder(context.Background(), checkout.OrderRequest{})
			require.NoError(t, err)
			require.NotEmpty(t, id)
		})
	}
}

func TestOrderClientSendsReceiverDetails(t *testing.T) {
	var got createOrderRequest
	client, _ := newClient(t, "order service", "/orders", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"id": "order-9"}`))
	}))

	orders := &OrderClient{Client: client}
	_, err := orders.CreateOrder(context.Background(), checkout.OrderRequest{
		CartID: "cart-1",
		Shipping: checkout.ShippingDetails{
			Name:    "Linh Tran",
			Phone:   "0901234567",
			Email:   "linh.tran@example.com",
			Address: "12 Nguyen Hue, District 1, HCMC",
		},
	})
	require.NoError(t, err)
	require.Equal(t, "Linh Tran", got.ReceiverName)
	require.Equal(t, "linh.tran@example.com", got.ReceiverEmail)
	require.Equal(t, "12 Nguyen Hue, District 1, HCMC", got.DeliveryAddress)
}

func TestOrderClientMissingID(t *testing.T) {
	client, _ := newClient(t, "order service", "/orders", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status": "created"}`))
	}))

	orders := &OrderClient{Client: client}
	_, err := orders.CreateOrder(context.Background(), checkout.OrderRequest{})
	require.True(t, common.IsMalformedResponse(err))
}

func TestPaymentClientInitiate(t *testing.T) {
	client, _ := newClient(t, "payment service", "/payments", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/payments", r.URL.Path)
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.EqualValues(t, 212_160, req["amount"])
		_, _ = w.Write([]byte(`{"payUrl": "https://pay.example/x", "requestId": "req-1", "resultCode": "0"}`))
	}))

	payments := &PaymentClient{Client: client}
	init, err := payments.InitiatePayment(context.Background(), checkout.PaymentRequest{
		OrderID: "order-9",
		Amount:  212_160,
	})
	require.NoError(t, err)
	require.Equal(t, "https://pay.example/x", init.PayURL)
	require.Equal(t, "req-1", init.RequestID)
	require.Zero(t, init.ResultCode)
}

func TestPaymentClientRecordStatus(t *testing.T) {
	var got updatePaymentStatusRequest
	client, _ := newClient(t, "payment service", "/payments", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/payments/update-payment-status", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))

	payments := &PaymentClient{Client: client}
	err := payments.RecordPaymentStatus(context.Background(), checkout.PaymentStatusRecord{
		OrderID:       "order-9",
		RequestID:     "order-9",
		TransactionID: "order-9",
	})
	require.NoError(t, err)
	require.Equal(t, "order-9", got.RequestID)
}

func TestClientMapsTransportAndContractErrors(t *testing.T) {
	client, srv := newClient(t, "cart service", "/carts", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))

	carts := &CartClient{Client: client}
	_, err := carts.Cart(context.Background())
	require.True(t, common.IsMalformedResponse(err))

	srv.Close()
	_, err = carts.Cart(context.Background())
	require.True(t, common.IsRemoteCall(err))
}

func TestClientNon2xxIsRemoteCallError(t *testing.T) {
	client, _ := newClient(t, "order service", "/orders", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))

	orders := &OrderClient{Client: client}
	_, err := orders.CreateOrder(context.Background(), checkout.OrderRequest{})
	require.True(t, common.IsRemoteCall(err))
}
