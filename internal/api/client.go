// Package api is the REST client for the monitoring backend.
//
// Every call attaches the bearer token when one is set and classifies
// failures into AuthError, ValidationError or NetworkError. Requests are
// never retried.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

type Config struct {
	BaseURL string
	Timeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		BaseURL: "http://127.0.0.1:8000",
		Timeout: 15 * time.Second,
	}
}

type Client struct {
	http   *resty.Client
	logger *zap.Logger

	mu             sync.RWMutex
	token          string
	onUnauthorized func(error)
}

func New(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")

	return &Client{http: httpClient, logger: logger}
}

// BaseURL returns the configured backend root.
func (c *Client) BaseURL() string {
	return c.http.BaseURL
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// OnUnauthorized registers fn to run on every 401, before the AuthError is
// returned to the caller.
func (c *Client) OnUnauthorized(fn func(error)) {
	c.mu.Lock()
	c.onUnauthorized = fn
	c.mu.Unlock()
}

func (c *Client) request(ctx context.Context) *resty.Request {
	req := c.http.R().SetContext(ctx)
	if tok := c.Token(); tok != "" {
		req.SetAuthToken(tok)
	}
	return req
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req := c.request(ctx)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	if out != nil {
		req.SetResult(out).ForceContentType("application/json")
	}
	resp, err := req.Execute(method, path)
	return c.check(method+" "+path, resp, err)
}

func (c *Client) check(op string, resp *resty.Response, err error) error {
	status := 0
	if resp != nil {
		status = resp.StatusCode()
	}

	if status == http.StatusUnauthorized {
		authErr := &AuthError{Op: op, Detail: parseDetail(resp.Body())}
		c.logger.Info("backend rejected credential", zap.String("op", op))
		c.mu.RLock()
		hook := c.onUnauthorized
		c.mu.RUnlock()
		if hook != nil {
			hook(authErr)
		}
		return authErr
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return &NetworkError{Op: op, Err: err}
		}
		c.logger.Warn("backend call failed", zap.String("op", op), zap.Int("status_code", status), zap.Error(err))
		return &NetworkError{Op: op, Status: failedStatus(status), Err: err}
	}

	switch {
	case status >= 500:
		c.logger.Warn("backend server error", zap.String("op", op), zap.Int("status_code", status))
		return &NetworkError{Op: op, Status: status, Err: fmt.Errorf("status %d", status)}
	case status >= 400:
		return &ValidationError{Op: op, Status: status, Detail: parseDetail(resp.Body())}
	}
	return nil
}

// failedStatus keeps the status only when it was an error status; a 2xx
// with an undecodable body is reported as a transport-level failure.
func failedStatus(status int) int {
	if status >= 400 {
		return status
	}
	return 0
}
