// Package httpx is the shared HTTP layer for every API the archiver talks
// to. It owns the cross-cutting transport concerns: default headers,
// request logging, typed status errors, rate limiting, and retries. Retries
// happen only here; callers above the transport never loop on failure.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"favescreen/pkg/config"
	"favescreen/pkg/errors"
	"favescreen/pkg/logger"
	"favescreen/pkg/ratelimit"
	"favescreen/pkg/retry"
)

// Client wraps http.Client with shared headers, pacing and retry policy.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	limiter    ratelimit.Limiter
	retrier    *retry.Retrier
	logger     logger.Logger
}

// New creates a client from the HTTP section of the configuration.
func New(cfg config.HTTPConfig, log logger.Logger) *Client {
	// Use default logger if none provided
	if log == nil {
		log = logger.GetLogger()
	}

	retrier := retry.NewRetrier(&retry.Config{
		MaxAttempts: cfg.MaxRetries,
		Backoff:     retry.DefaultExponentialBackoff(),
		RetryIf:     retry.DefaultRetryIf,
		Context:     context.Background(),
		Logger:      log,
	})

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		headers: map[string]string{
			"User-Agent":      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
			"Accept":          "application/json",
			"Accept-Language": "en-US,en;q=0.9",
		},
		limiter: ratelimit.PerMinute(cfg.RequestsPerMinute),
		retrier: retrier,
		logger:  log,
	}
}

// SetHeader sets a default header sent with every request.
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// SetHeaders sets multiple default headers at once.
func (c *Client) SetHeaders(headers map[string]string) {
	for key, value := range headers {
		c.headers[key] = value
	}
}

// SetCookieJar installs a cookie jar on the underlying http.Client. Session
// cookies issued by sign-in endpoints then ride along automatically.
func (c *Client) SetCookieJar(jar http.CookieJar) {
	c.httpClient.Jar = jar
}

// Do performs a single request attempt with the configured headers. Default
// headers never override ones already set on the request. The caller owns
// the response body.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		if req.Header.Get(key) == "" {
			req.Header.Set(key, value)
		}
	}

	c.limiter.Wait()

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.String(),
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, &errors.Error{
			Type:    errors.ErrorTypeNetwork,
			Message: fmt.Sprintf("network error: %v", err),
			Code:    0,
		}
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   req.Method,
		"url":      req.URL.String(),
		"status":   resp.StatusCode,
		"duration": duration,
	})

	return resp, nil
}

// GetJSON performs a GET request with retry and decodes the JSON response.
// It returns the response headers, which carry pagination state for some of
// the APIs we page through.
func (c *Client) GetJSON(ctx context.Context, rawURL string, target interface{}) (http.Header, error) {
	return retry.DoWithResult(func() (http.Header, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, &errors.Error{
				Type:    errors.ErrorTypeUnknown,
				Message: fmt.Sprintf("failed to create request: %v", err),
				Code:    0,
			}
		}

		resp, err := c.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if err := c.checkResponseStatus(resp); err != nil {
			return nil, err
		}

		if err := c.decodeJSON(resp, target); err != nil {
			return nil, err
		}
		return resp.Header, nil
	}, c.retrier.WithContext(ctx).Config())
}

// PostJSON performs a POST request with a JSON body, retrying on transport
// failures, and decodes the JSON response into target when target is
// non-nil.
func (c *Client) PostJSON(ctx context.Context, rawURL string, body interface{}, target interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &errors.Error{
			Type:    errors.ErrorTypeParsing,
			Message: fmt.Sprintf("failed to encode request body: %v", err),
			Code:    0,
		}
	}

	return retry.Do(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(payload))
		if err != nil {
			return &errors.Error{
				Type:    errors.ErrorTypeUnknown,
				Message: fmt.Sprintf("failed to create request: %v", err),
				Code:    0,
			}
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if err := c.checkResponseStatus(resp); err != nil {
			return err
		}

		if target == nil {
			io.Copy(io.Discard, resp.Body)
			return nil
		}
		return c.decodeJSON(resp, target)
	}, c.retrier.WithContext(ctx).Config())
}

// PostForm performs a POST request with a URL-encoded form body.
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values, target interface{}) error {
	return retry.Do(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
		if err != nil {
			return &errors.Error{
				Type:    errors.ErrorTypeUnknown,
				Message: fmt.Sprintf("failed to create request: %v", err),
				Code:    0,
			}
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := c.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if err := c.checkResponseStatus(resp); err != nil {
			return err
		}

		if target == nil {
			io.Copy(io.Discard, resp.Body)
			return nil
		}
		return c.decodeJSON(resp, target)
	}, c.retrier.WithContext(ctx).Config())
}

// decodeJSON reads and unmarshals the response body into target.
func (c *Client) decodeJSON(resp *http.Response, target interface{}) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &errors.Error{
			Type:    errors.ErrorTypeNetwork,
			Message: fmt.Sprintf("failed to read response body: %v", err),
			Code:    resp.StatusCode,
		}
	}

	if err := json.Unmarshal(body, target); err != nil {
		bodyPreview := string(body)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200] + "..."
		}

		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          resp.Request.URL.String(),
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": bodyPreview,
		})
		return &errors.Error{
			Type:    errors.ErrorTypeParsing,
			Message: fmt.Sprintf("failed to parse JSON: %v", err),
			Code:    resp.StatusCode,
		}
	}

	return nil
}

// checkResponseStatus maps the HTTP response status onto typed errors. Any
// 2xx status is a success; the upload endpoints answer 201.
func (c *Client) checkResponseStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		c.logger.WarnWithFields("authentication error", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return &errors.Error{
			Type:    errors.ErrorTypeAuth,
			Message: "authentication required",
			Code:    resp.StatusCode,
		}
	case http.StatusNotFound:
		c.logger.WarnWithFields("resource not found", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return &errors.Error{
			Type:    errors.ErrorTypeNotFound,
			Message: "resource not found",
			Code:    resp.StatusCode,
		}
	case http.StatusTooManyRequests:
		c.logger.WarnWithFields("rate limit exceeded", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return &errors.Error{
			Type:    errors.ErrorTypeRateLimit,
			Message: "rate limit exceeded",
			Code:    resp.StatusCode,
		}
	}

	if resp.StatusCode >= 500 {
		c.logger.ErrorWithFields("server error", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return &errors.Error{
			Type:    errors.ErrorTypeServerError,
			Message: "server error",
			Code:    resp.StatusCode,
		}
	}

	c.logger.ErrorWithFields("unexpected API error", map[string]interface{}{
		"status": resp.StatusCode,
		"url":    resp.Request.URL.String(),
	})
	return &errors.Error{
		Type:    errors.ErrorTypeUnknown,
		Message: fmt.Sprintf("unexpected status code: %d", resp.StatusCode),
		Code:    resp.StatusCode,
	}
}
