package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/haln-dev/glowcart/internal/health"
)

type stubChecker struct {
	redisErr    error
	platformErr error
}

func (s stubChecker) PingRedis(context.Context, time.Duration) error {
	return s.redisErr
}

func (s stubChecker) PingPlatform(context.Context, time.Duration) error {
	return s.platformErr
}

func TestLive(t *testing.T) {
	handler := health.Handler{}
	rr := httptest.NewRecorder()
	handler.Live(rr, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())
}

func TestReadySuccess(t *testing.T) {
	health.SetReady(true)
	handler := health.Handler{Checker: stubChecker{}}

	rr := httptest.NewRecorder()
	handler.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var status map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
	require.Equal(t, "ok", status["redis"])
	require.Equal(t, "ok", status["platform"])
}

func TestReadyPlatformDown(t *testing.T) {
	health.SetReady(true)
	handler := health.Handler{Checker: stubChecker{platformErr: errors.New("platform down")}}

	rr := httptest.NewRecorder()
	handler.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestReadyRedisOptional(t *testing.T) {
	health.SetReady(true)
	handler := health.Handler{
		Checker:       stubChecker{redisErr: errors.New("redis down")},
		RedisOptional: true,
	}

	rr := httptest.NewRecorder()
	handler.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, rr.Code, "soft redis dependency must not fail readiness")
}

func TestReadinessAfterShutdown(t *testing.T) {
	handler := health.Handler{Checker: stubChecker{}}
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)

	health.SetReady(true)
	rr := httptest.NewRecorder()
	handler.Ready(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	health.SetReady(false)
	rr2 := httptest.NewRecorder()
	handler.Ready(rr2, req)
	require.Equal(t, http.StatusServiceUnavailable, rr2.Code)

	health.SetReady(true)
}
