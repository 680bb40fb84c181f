package resilience

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"
)

// HTTPClient wraps an http.Client with a per-call timeout and a circuit
// breaker. Each call is attempted exactly once: failed checkout calls are
// resubmitted by the user, never replayed automatically.
type HTTPClient struct {
	Client  *http.Client
	Breaker *Breaker
	Timeout time.Duration
}

// Do executes the request. When the breaker is open ErrOpenCircuit is
// returned without touching the network. Responses with a 5xx status count
// as breaker failures but are returned to the caller untouched.
func (cl HTTPClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if cl.Client == nil {
		return nil, errors.New("resilience: http client not configured")
	}
	breaker := cl.Breaker
	if breaker == nil {
		// default to a closed breaker that never trips
		breaker = NewBreaker(1, 1, time.Second)
	}
	if !breaker.Allow() {
		return nil, ErrOpenCircuit
	}

	callCtx := ctx
	var cancel context.CancelFunc
	if cl.Timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, cl.Timeout)
	} else {
		callCtx, cancel = context.WithCancel(ctx)
	}

	resp, err := cl.Client.Do(req.WithContext(callCtx))
	if err != nil {
		cancel()
		breaker.Report(false)
		return nil, err
	}
	if resp.Body != nil {
		resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	} else {
		cancel()
	}
	breaker.Report(resp.StatusCode < http.StatusInternalServerError)
	return resp, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
