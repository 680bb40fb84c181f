package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/go-playground/validator/v10"

	"github.com/haln-dev/glowcart/internal/auth"
	"github.com/haln-dev/glowcart/internal/checkout"
	"github.com/haln-dev/glowcart/internal/common"
	"github.com/haln-dev/glowcart/internal/config"
	"github.com/haln-dev/glowcart/internal/health"
	"github.com/haln-dev/glowcart/internal/lock"
	"github.com/haln-dev/glowcart/internal/obs"
	"github.com/haln-dev/glowcart/internal/pricing"
	"github.com/haln-dev/glowcart/internal/ratelimit"
	"github.com/haln-dev/glowcart/internal/resilience"
	"github.com/haln-dev/glowcart/internal/security"
	"github.com/haln-dev/glowcart/internal/upstream"
	"github.com/haln-dev/glowcart/internal/voucher"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "glowcart")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)
	resilience.MustRegisterMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "glowcart-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			SamplingRatio: sampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	// Redis is a soft dependency: without it idempotency, rate limiting, and
	// the distributed submit guard degrade to per-process behaviour.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("parse redis url")
		}
		redisClient = redis.NewClient(redisOpts)
		if err := redisotel.InstrumentTracing(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis tracing")
		}
		if metricsEnabled {
			if err := redisotel.InstrumentMetrics(redisClient); err != nil {
				logger.Error().Err(err).Msg("instrument redis metrics")
			}
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		}()

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			logger.Warn().Err(err).Msg("redis unreachable at startup, degraded mode")
		}
		cancel()
	}

	tokens := auth.ContextTokenSource{Fallback: envOrDefault("PLATFORM_SERVICE_TOKEN", "")}

	newUpstream := func(target, baseURL string) upstream.Client {
		breaker := resilience.NewBreaker(cfg.BreakerMinRequests, cfg.BreakerRatio, cfg.BreakerOpenFor).
			WithTarget(target).
			WithLogger(logger)
		return upstream.Client{
			Target:  target,
			BaseURL: baseURL,
			HTTP: resilience.HTTPClient{
				Client:  &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
				Breaker: breaker,
				Timeout: cfg.UpstreamTimeout,
			},
			Tokens: tokens,
		}
	}

	carts := &upstream.CartClient{Client: newUpstream("cart service", cfg.CartAPIURL)}
	coupons := &upstream.CouponClient{Client: newUpstream("coupon service", cfg.CouponAPIURL)}
	orders := &upstream.OrderClient{Client: newUpstream("order service", cfg.OrderAPIURL)}
	payments := &upstream.PaymentClient{Client: newUpstream("payment service", cfg.PaymentAPIURL)}

	engine := pricing.Engine{
		FreeShippingThreshold: cfg.FreeShippingThreshold,
		ShippingFee:           cfg.ShippingFee,
		VATRateBps:            cfg.VATRateBps,
	}

	var verifier *auth.Verifier
	if cfg.JWTSecret != "" {
		verifier = &auth.Verifier{
			Secret:    []byte(cfg.JWTSecret),
			Issuer:    envOrDefault("JWT_ISSUER", ""),
			Audience:  envOrDefault("JWT_AUDIENCE", ""),
			ClockSkew: 30 * time.Second,
		}
	}
	authMiddleware := auth.Middleware{Verifier: verifier}

	checkoutHandler := &checkout.Handler{
		Carts:   carts,
		Coupons: coupons,
		Validator: &voucher.Validator{
			Coupons: coupons,
			Logger:  logger,
		},
		Sessions: checkout.NewSessions(envDuration("CHECKOUT_SESSION_IDLE", 30*time.Minute)),
		Submitter: &checkout.Submitter{
			Orders:      orders,
			Payments:    payments,
			Engine:      engine,
			Validate:    validator.New(),
			Logger:      logger,
			RedirectURL: cfg.PaymentRedirectURL,
			CallbackURL: cfg.PaymentCallbackURL,
		},
		Guard:  lock.Guard{R: redisClient, TTL: envDuration("CHECKOUT_SUBMIT_LOCK_TTL", 30*time.Second)},
		Engine: engine,
		Logger: logger,
	}

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}
	voucherLimit := ratelimit.Handler{
		Limiter: ratelimit.Limiter{
			Client: redisClient,
			Prefix: "glowcart:rl:voucher:",
			Window: cfg.VoucherCheckWindow,
			Max:    cfg.VoucherCheckMax,
		},
		Key:     ratelimit.PerCaller,
		OnError: func(err error) { logger.Warn().Err(err).Msg("rate limiter unavailable") },
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{
		Enable:     envBool("SECURE_HEADERS", true),
		EnableHSTS: envBool("SECURE_HSTS", false),
	}.Middleware)
	r.Use(security.BodyLimit{Max: envInt64("SECURE_BODY_LIMIT_BYTES", 64<<10)}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", false) {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{
		Checker: readinessChecker{
			redis:    redisClient,
			platform: cfg.PlatformBaseURL,
		},
		RedisOptional: true,
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(authMiddleware.Capture)

		v.Get("/vouchers", checkoutHandler.ListVouchers)

		v.Route("/checkout", func(c chi.Router) {
			c.Get("/cart", checkoutHandler.GetCart)
			c.Post("/quote", checkoutHandler.Quote)
			c.With(voucherLimit.Middleware).Post("/voucher", checkoutHandler.ApplyVoucher)
			c.Delete("/voucher", checkoutHandler.RemoveVoucher)
			c.With(authMiddleware.RequireAuth, idem.Middleware).Post("/", checkoutHandler.Submit)
		})
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		errCh <- srv.ListenAndServe()
	}()
	health.SetReady(true)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	case sig := <-stop:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown failed")
		}
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

type readinessChecker struct {
	redis    *redis.Client
	platform string
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}

func (c readinessChecker) PingPlatform(ctx context.Context, timeout time.Duration) error {
	if c.platform == "" {
		return errors.New("platform not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.platform, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("platform returned %d", resp.StatusCode)
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/mutex", pprof.Handler("mutex"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
