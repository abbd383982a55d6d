package rest

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
)

// Retry policy: base 1s, factor 2x, max 30s, ±25% jitter, max 3 retries.
// The orchestrator retries whole cycles every tick, so per-request retries
// stay short.
const (
	maxRetries     = 3
	baseBackoff    = 1 * time.Second
	maxBackoff     = 30 * time.Second
	backoffFactor  = 2.0
	jitterFraction = 0.25
)

// SessionSource supplies the current bearer credential. Defined at the
// consumer per "accept interfaces, return structs"; satisfied by
// *session.Provider. Implementations return an error when nobody is logged
// in; the client reports any such error as an auth error wrapping
// ErrNoSession, without sending the request.
type SessionSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// Client talks to the cloud record store. All row payloads are opaque JSON
// produced by the codec; the client adds authentication, retry with
// exponential backoff, and error classification.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	session    SessionSource
	logger     *slog.Logger

	// sleepFunc waits between retries. Tests override to avoid real delays.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// NewClient creates a record store client. baseURL is the REST root, e.g.
// "https://project.example.co/rest/v1".
func NewClient(baseURL, apiKey string, httpClient *http.Client, session SessionSource, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: httpClient,
		session:    session,
		logger:     logger,
		sleepFunc:  timeSleep,
	}
}

// Insert creates one row. A duplicate id returns an error matching
// IsDuplicate, which callers treat as success (idempotent insert).
func (c *Client) Insert(ctx context.Context, table string, body []byte) error {
	_, err := c.doRetry(ctx, http.MethodPost, "/"+table, body, http.Header{
		"Prefer": []string{"return=minimal"},
	})

	return err
}

// UpdateIfOlder overwrites the remote row only when its updated_at is
// strictly older than updatedBefore (ISO-8601). Matching zero rows is
// success: the remote copy is newer and the download pass reconciles it.
func (c *Client) UpdateIfOlder(ctx context.Context, table, id, updatedBefore string, body []byte) error {
	q := url.Values{}
	q.Set("id", "eq."+id)
	q.Set("updated_at", "lt."+updatedBefore)

	_, err := c.doRetry(ctx, http.MethodPatch, "/"+table+"?"+q.Encode(), body, http.Header{
		"Prefer": []string{"return=minimal"},
	})

	return err
}

// Select returns the user's rows whose watermark column (updated_at or
// created_at) is strictly greater than after (ISO-8601), ordered by
// created_at ascending.
func (c *Client) Select(ctx context.Context, table, userID, column, after string) ([]json.RawMessage, error) {
	q := url.Values{}
	q.Set("user_id", "eq."+userID)
	q.Set(column, "gt."+after)
	q.Set("order", "created_at.asc")

	resp, err := c.doRetry(ctx, http.MethodGet, "/"+table+"?"+q.Encode(), nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var rows []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("rest: decoding %s response: %w", table, err)
	}

	return rows, nil
}

// doRetry is the shared retry loop. On success the caller owns the response
// body; error paths drain and close it. Only network failures and the
// statuses isRetryable lists (408, 429, 500, 502, 503, 504) are retried;
// auth and all other 4xx responses are not.
func (c *Client) doRetry(
	ctx context.Context, method, path string, body []byte, extraHeaders http.Header,
) (*http.Response, error) {
	var attempt int

	for {
		resp, err := c.doOnce(ctx, method, path, body, extraHeaders)
		if err != nil {
			// A missing session never heals by retrying.
			if IsAuth(err) {
				return nil, err
			}

			if ctx.Err() != nil {
				return nil, fmt.Errorf("rest: request canceled: %w", ctx.Err())
			}

			if attempt < maxRetries {
				backoff := c.calcBackoff(attempt)
				c.logger.Warn("retrying after network error",
					slog.String("method", method),
					slog.String("path", path),
					slog.Int("attempt", attempt+1),
					slog.Duration("backoff", backoff),
					slog.String("error", err.Error()),
				)

				if sleepErr := c.sleepFunc(ctx, backoff); sleepErr != nil {
					return nil, fmt.Errorf("rest: request canceled: %w", sleepErr)
				}

				attempt++

				continue
			}

			return nil, fmt.Errorf("rest: %s %s failed after %d retries: %w", method, path, maxRetries, err)
		}

		if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
			return resp, nil
		}

		errBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if readErr != nil {
			errBody = []byte("(failed to read response body)")
		}

		if isRetryable(resp.StatusCode) && attempt < maxRetries {
			backoff := c.retryBackoff(resp, attempt)
			c.logger.Warn("retrying after HTTP error",
				slog.String("method", method),
				slog.String("path", path),
				slog.Int("status", resp.StatusCode),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", backoff),
			)

			if err := c.sleepFunc(ctx, backoff); err != nil {
				return nil, fmt.Errorf("rest: request canceled: %w", err)
			}

			attempt++

			continue
		}

		return nil, c.terminalError(method, path, resp.StatusCode, errBody, attempt)
	}
}

// doOnce executes a single HTTP request (no retry).
func (c *Client) doOnce(
	ctx context.Context, method, path string, body []byte, extraHeaders http.Header,
) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	tok, err := c.session.AccessToken(ctx)
	if err != nil {
		// Missing/expired sessions surface as auth errors, not transport
		// errors, so the uploader aborts the cycle instead of retrying.
		return nil, &Error{StatusCode: 0, Message: err.Error(), Err: ErrNoSession}
	}

	req.Header.Set("Authorization", "Bearer "+tok)

	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	for key, vals := range extraHeaders {
		for _, v := range vals {
			req.Header.Add(key, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("response received",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
	)

	return resp, nil
}

// terminalError builds an Error and logs the final failure.
func (c *Client) terminalError(method, path string, statusCode int, body []byte, attempt int) *Error {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)

	restErr := &Error{
		StatusCode: statusCode,
		Code:       eb.Code,
		Message:    string(body),
		Err:        classify(statusCode, body),
	}

	if attempt > 0 {
		c.logger.Error("request failed after retries",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", statusCode),
			slog.Int("attempts", attempt+1),
		)
	} else {
		c.logger.Warn("request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", statusCode),
		)
	}

	return restErr
}

// retryBackoff honors Retry-After on throttled responses before falling back
// to calculated backoff.
func (c *Client) retryBackoff(resp *http.Response, attempt int) time.Duration {
	if resp.StatusCode == http.StatusTooManyRequests {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if seconds, err := strconv.Atoi(ra); err == nil && seconds > 0 {
				return time.Duration(seconds) * time.Second
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

	jitter := backoff * jitterFraction * (rand.Float64()*2 - 1)
	backoff += jitter

	return time.Duration(backoff)
}

// timeSleep waits for d or until ctx is canceled. Default sleepFunc.
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
