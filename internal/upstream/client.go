// Package upstream holds the HTTP clients for the storefront platform
// services the gateway fronts: carts, coupons, orders, and payments.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/haln-dev/glowcart/internal/auth"
	"github.com/haln-dev/glowcart/internal/common"
	"github.com/haln-dev/glowcart/internal/obs"
	"github.com/haln-dev/glowcart/internal/resilience"
)

const maxBodyBytes = 1 << 20

// Client is the shared transport for one platform service.
type Client struct {
	Target  string
	BaseURL string
	HTTP    resilience.HTTPClient
	Tokens  auth.TokenSource
}

// getJSON performs a GET and decodes the response into out.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, out)
}

// postJSON performs a POST with a JSON body and decodes the response into out.
func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	return c.doJSON(ctx, http.MethodPost, path, body, out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("upstream: encode %s request: %w", c.Target, err)
		}
		reader = bytes.NewReader(buf)
	}

	url := strings.TrimRight(c.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("upstream: build %s request: %w", c.Target, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Tokens != nil {
		token, err := c.Tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("upstream: token for %s: %w", c.Target, err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		c.observe(start, "error")
		return common.NewRemoteCallError(c.Target, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.observe(start, fmt.Sprintf("http_%d", resp.StatusCode))
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return common.NewRemoteCallError(c.Target, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	if out != nil {
		if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
			c.observe(start, "malformed")
			return common.NewMalformedResponseError(c.Target, "body is not valid JSON")
		}
	}
	c.observe(start, "ok")
	return nil
}

func (c *Client) observe(start time.Time, result string) {
	if obs.UpstreamRequestDuration != nil {
		obs.UpstreamRequestDuration.WithLabelValues(c.Target, result).Observe(obs.DurationMillis(time.Since(start)))
	}
}
