package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/haln-dev/glowcart/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.LoadForTests(map[string]string{
		"PLATFORM_BASE_URL": "https://api.example.test/api",
		"CART_API_URL":      "",
		"COUPON_API_URL":    "",
		"ORDER_API_URL":     "",
		"PAYMENT_API_URL":   "",
	})
	require.NoError(t, err)

	require.Equal(t, "https://api.example.test/api/carts", cfg.CartAPIURL)
	require.Equal(t, "https://api.example.test/api/coupons", cfg.CouponAPIURL)
	require.Equal(t, "https://api.example.test/api/orders", cfg.OrderAPIURL)
	require.Equal(t, "https://api.example.test/api/payments", cfg.PaymentAPIURL)

	require.Equal(t, int64(500_000), cfg.FreeShippingThreshold)
	require.Equal(t, int64(30_000), cfg.ShippingFee)
	require.Equal(t, 1000, cfg.VATRateBps)
	require.Equal(t, 10*time.Second, cfg.UpstreamTimeout)
	require.Equal(t, ":8080", cfg.HTTPAddr())
}

func TestLoadRequiresPlatformBaseURL(t *testing.T) {
	_, err := config.LoadForTests(map[string]string{
		"PLATFORM_BASE_URL": "",
	})
	require.Error(t, err)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := config.LoadForTests(map[string]string{
		"PLATFORM_BASE_URL":               "https://api.example.test/api/",
		"ORDER_API_URL":                   "https://orders.example.test/v2/orders",
		"PRICING_FREE_SHIPPING_THRESHOLD": "200000",
		"PRICING_VAT_RATE_BPS":            "800",
		"UPSTREAM_TIMEOUT":                "3s",
		"PORT":                            "9090",
	})
	require.NoError(t, err)

	require.Equal(t, "https://orders.example.test/v2/orders", cfg.OrderAPIURL)
	require.Equal(t, "https://api.example.test/api/carts", cfg.CartAPIURL)
	require.Equal(t, int64(200_000), cfg.FreeShippingThreshold)
	require.Equal(t, 800, cfg.VATRateBps)
	require.Equal(t, 3*time.Second, cfg.UpstreamTimeout)
	require.Equal(t, ":9090", cfg.HTTPAddr())
}

func TestLoadRejectsBadVATRate(t *testing.T) {
	_, err := config.LoadForTests(map[string]string{
		"PLATFORM_BASE_URL":    "https://api.example.test/api",
		"PRICING_VAT_RATE_BPS": "20000",
	})
	require.Error(t, err)
}
