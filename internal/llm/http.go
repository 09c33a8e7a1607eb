package llm

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gennaro-ai/gennaro/internal/backoff"
	"github.com/gennaro-ai/gennaro/internal/logger"
)

// HTTPClient performs provider HTTP requests with retry on transient
// failures. Response bodies are returned unread so callers can stream them.
type HTTPClient struct {
	client *http.Client
	policy backoff.Policy
}

// NewHTTPClient creates an HTTP client from a provider Config. Each client
// gets its own transport so unrelated providers do not share connection
// state.
func NewHTTPClient(cfg Config) *HTTPClient {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &HTTPClient{
		client: &http.Client{Transport: transport, Timeout: cfg.Timeout},
		policy: backoff.Policy{
			MaxRetries:  cfg.MaxRetries,
			Interval:    cfg.InitialInterval,
			MaxInterval: cfg.MaxInterval,
		},
	}
}

// Post performs a JSON POST request, retrying on network errors, 429 and
// 5xx. The returned body must be closed by the caller.
func (c *HTTPClient) Post(ctx context.Context, url string, body []byte, headers map[string]string) (io.ReadCloser, error) {
	var result io.ReadCloser

	err := backoff.Retry(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			logger.Warn(ctx, "LLM request failed", "url", url, "error", err)
			return err
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			result = resp.Body
			return nil
		}

		// Error bodies are small; read and close before a potential retry.
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
		_ = resp.Body.Close()
		return NewAPIError("llm", resp.StatusCode, string(errBody))
	}, c.policy, isRetriable)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func isRetriable(err error) bool {
	if apiErr, ok := err.(*APIError); ok {
		code := apiErr.StatusCode
		return code == http.StatusTooManyRequests || (code >= 500 && code <= 504)
	}
	// Network-level errors are always worth retrying.
	return true
}
