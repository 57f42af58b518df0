package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Retry and backoff constants.
const (
	defaultMaxRetries = 3
	baseBackoff       = 1 * time.Second
	maxBackoff        = 30 * time.Second
	backoffFactor     = 2.0
	jitterFraction    = 0.25
	defaultUserAgent  = "verbi-cli/0.1"
)

// requestIDHeader carries a per-request UUID so client and server logs can
// be correlated.
const requestIDHeader = "X-Request-ID"

// TokenSource provides the current access token. Defined at the consumer;
// satisfied by *tokenfile.Store.
type TokenSource interface {
	AccessToken() (string, bool)
}

// Client is an HTTP client for one Verbi service base URL.
// It handles request construction, bearer authentication, retry with
// exponential backoff, and error classification.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      TokenSource
	logger     *slog.Logger
	userAgent  string

	// MaxRetries is the number of retries for network errors and retryable
	// statuses.
	MaxRetries int

	// sleepFunc is called to wait between retries. Tests override it to
	// avoid real delays.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// NewClient creates an API client. baseURL is typically
// "http://host:port/api/v1". token may be nil for clients that only call
// unauthenticated endpoints.
func NewClient(baseURL string, httpClient *http.Client, token TokenSource, logger *slog.Logger, userAgent string) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		token:      token,
		logger:     logger,
		userAgent:  userAgent,
		MaxRetries: defaultMaxRetries,
		sleepFunc:  timeSleep,
	}
}

// request describes one API call.
type request struct {
	method string
	path   string
	query  url.Values
	header http.Header
	body   any  // JSON-encoded when non-nil
	auth   bool // attach the bearer token
}

// doJSON executes req and decodes a 2xx JSON response into out (if non-nil).
func (c *Client) doJSON(ctx context.Context, req *request, out any) error {
	resp, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("api: decoding %s %s response: %w", req.method, req.path, err)
	}

	return nil
}

// do executes req with retry. The caller closes the response body on
// success.
func (c *Client) do(ctx context.Context, req *request) (*http.Response, error) {
	var payload []byte

	if req.body != nil {
		var err error

		payload, err = json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("api: encoding request body: %w", err)
		}
	}

	target := c.baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	var attempt int
	for {
		reqID := uuid.NewString()

		resp, err := c.doOnce(ctx, req, target, payload, reqID)
		if err != nil {
			// Context cancellation is not retryable.
			if ctx.Err() != nil {
				return nil, fmt.Errorf("api: request canceled: %w", ctx.Err())
			}

			if attempt < c.MaxRetries {
				backoff := c.calcBackoff(attempt)
				c.logger.Warn("retrying after network error",
					slog.String("method", req.method),
					slog.String("path", req.path),
					slog.Int("attempt", attempt+1),
					slog.Duration("backoff", backoff),
					slog.String("error", err.Error()),
				)

				if sleepErr := c.sleepFunc(ctx, backoff); sleepErr != nil {
					return nil, fmt.Errorf("api: request canceled: %w", sleepErr)
				}

				attempt++

				continue
			}

			return nil, fmt.Errorf("api: %s %s failed after %d retries: %w", req.method, req.path, c.MaxRetries, err)
		}

		if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
			c.logger.Debug("request succeeded",
				slog.String("method", req.method),
				slog.String("path", req.path),
				slog.Int("status", resp.StatusCode),
			)

			return resp, nil
		}

		errBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if readErr != nil {
			errBody = []byte("(failed to read response body)")
		}

		if isRetryable(resp.StatusCode) && attempt < c.MaxRetries {
			backoff := c.retryBackoff(resp, attempt)
			c.logger.Warn("retrying after HTTP error",
				slog.String("method", req.method),
				slog.String("path", req.path),
				slog.Int("status", resp.StatusCode),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", backoff),
			)

			if err := c.sleepFunc(ctx, backoff); err != nil {
				return nil, fmt.Errorf("api: request canceled: %w", err)
			}

			attempt++

			continue
		}

		if echoed := resp.Header.Get(requestIDHeader); echoed != "" {
			reqID = echoed
		}

		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			RequestID:  reqID,
			Message:    errorMessage(errBody),
			Err:        classifyStatus(resp.StatusCode),
		}

		c.logger.Debug("request failed",
			slog.String("method", req.method),
			slog.String("path", req.path),
			slog.Int("status", resp.StatusCode),
			slog.Int("attempts", attempt+1),
		)

		return nil, apiErr
	}
}

// doOnce executes a single HTTP request (no retry).
func (c *Client) doOnce(ctx context.Context, req *request, target string, payload []byte, reqID string) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	for k, vs := range req.header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	if req.auth {
		c.authorize(httpReq)
	}

	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set(requestIDHeader, reqID)
	httpReq.Header.Set("Accept", "application/json")

	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(httpReq)
}

// authorize attaches the bearer token. Without one the request goes out
// unauthenticated and the server's 401 drives the session protocol.
func (c *Client) authorize(req *http.Request) {
	if c.token == nil {
		return
	}

	tok, ok := c.token.AccessToken()
	if !ok {
		c.logger.Debug("no access token stored, sending request unauthenticated")
		return
	}

	req.Header.Set("Authorization", "Bearer "+tok)
}

// retryBackoff returns the backoff duration for a retryable response.
// For 429 responses with a Retry-After header, that value is used.
func (c *Client) retryBackoff(resp *http.Response, attempt int) time.Duration {
	if resp.StatusCode == http.StatusTooManyRequests {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
				return time.Duration(secs) * time.Second
			}
		}
	}

	return c.calcBackoff(attempt)
}

// calcBackoff computes exponential backoff with ±25% jitter.
func (c *Client) calcBackoff(attempt int) time.Duration {
	backoff := float64(baseBackoff) * math.Pow(backoffFactor, float64(attempt))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}

	jitter := backoff * jitterFraction * (rand.Float64()*2 - 1) //nolint:gosec // jitter does not need crypto rand
	backoff += jitter

	return time.Duration(backoff)
}

// timeSleep waits for the given duration or until the context is canceled.
func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
