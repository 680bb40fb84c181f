package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	CORSAllowedOrigins []string

	// Storefront platform collaborators. Each URL defaults to a path under
	// PlatformBaseURL but can be pointed elsewhere individually.
	PlatformBaseURL string
	CartAPIURL      string
	CouponAPIURL    string
	OrderAPIURL     string
	PaymentAPIURL   string

	// Pricing policy (minor currency units; bps for the VAT rate).
	FreeShippingThreshold int64
	ShippingFee           int64
	VATRateBps            int

	// Static redirect/callback URLs handed to the payment collaborator.
	PaymentRedirectURL string
	PaymentCallbackURL string

	UpstreamTimeout    time.Duration
	BreakerMinRequests int
	BreakerRatio       float64
	BreakerOpenFor     time.Duration

	RedisURL       string
	IdempotencyTTL time.Duration

	VoucherCheckWindow time.Duration
	VoucherCheckMax    int

	// Optional HS256 secret. When set, inbound bearer tokens are verified;
	// otherwise they are treated as opaque credentials and forwarded as-is.
	JWTSecret string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	base := strings.TrimRight(strings.TrimSpace(k.String("PLATFORM_BASE_URL")), "/")
	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		PlatformBaseURL: base,
		CartAPIURL:      valueOrDefault(k.String("CART_API_URL"), base+"/carts"),
		CouponAPIURL:    valueOrDefault(k.String("COUPON_API_URL"), base+"/coupons"),
		OrderAPIURL:     valueOrDefault(k.String("ORDER_API_URL"), base+"/orders"),
		PaymentAPIURL:   valueOrDefault(k.String("PAYMENT_API_URL"), base+"/payments"),

		FreeShippingThreshold: parseInt64(k.String("PRICING_FREE_SHIPPING_THRESHOLD"), 500_000),
		ShippingFee:           parseInt64(k.String("PRICING_SHIPPING_FEE"), 30_000),
		VATRateBps:            int(parseInt64(k.String("PRICING_VAT_RATE_BPS"), 1000)),

		PaymentRedirectURL: strings.TrimSpace(k.String("PAYMENT_REDIRECT_URL")),
		PaymentCallbackURL: strings.TrimSpace(k.String("PAYMENT_CALLBACK_URL")),

		UpstreamTimeout:    parseDuration(k.String("UPSTREAM_TIMEOUT"), "10s"),
		BreakerMinRequests: int(parseInt64(k.String("UPSTREAM_BREAKER_MIN_REQUESTS"), 10)),
		BreakerRatio:       parseFloat(k.String("UPSTREAM_BREAKER_FAILURE_RATIO"), 0.5),
		BreakerOpenFor:     parseDuration(k.String("UPSTREAM_BREAKER_OPEN_FOR"), "30s"),

		RedisURL:       strings.TrimSpace(k.String("REDIS_URL")),
		IdempotencyTTL: parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),

		VoucherCheckWindow: parseDuration(k.String("VOUCHER_CHECK_WINDOW"), "1m"),
		VoucherCheckMax:    int(parseInt64(k.String("VOUCHER_CHECK_MAX"), 10)),

		JWTSecret: k.String("JWT_SECRET"),
	}

	if cfg.PlatformBaseURL == "" {
		return nil, errors.New("PLATFORM_BASE_URL is required")
	}
	if cfg.VATRateBps < 0 || cfg.VATRateBps > 10000 {
		return nil, fmt.Errorf("PRICING_VAT_RATE_BPS out of range: %d", cfg.VATRateBps)
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt64(value string, fallback int64) int64 {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseFloat(value string, fallback float64) float64 {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

// LoadForTests allows tests to override environment variables without
// touching the real environment permanently.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
