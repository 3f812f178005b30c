// Package httpclient implements the §4.A signed HTTP client: a public
// (unauthenticated) mode and an authenticated mode that attaches the
// RSA-PSS signature headers from internal/sign, with retry-with-backoff
// and cursor pagination.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/aristath/marketedge/internal/domain"
	"github.com/aristath/marketedge/internal/ratelimit"
	"github.com/aristath/marketedge/internal/sign"
)

const (
	defaultRequestTimeout = 30 * time.Second
	maxRetries            = 5
	backoffBase           = 1 * time.Second
	backoffCap            = 60 * time.Second

	maxMarketsPageSize      = 1000
	maxEventsPageSize       = 200
	maxCandlesticksPageSize = 100
	maxFillsPageSize        = 200
)

// Client implements domain.MarketAPI. A nil signer means the client only
// supports unauthenticated (public) operations; authenticated methods
// return a domain.AuthError in that case.
type Client struct {
	baseURL    string
	httpClient *http.Client
	signer     *sign.Signer
	limiter    *ratelimit.Limiter
	log        zerolog.Logger
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithHTTPClient overrides the underlying *http.Client (tests use this to
// point at an httptest.Server without touching the default timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithSigner attaches request signing, switching the client into
// authenticated mode.
func WithSigner(s *sign.Signer) Option {
	return func(c *Client) { c.signer = s }
}

// New builds a Client against baseURL (e.g. the demo or prod API host).
func New(baseURL string, limiter *ratelimit.Limiter, log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		limiter:    limiter,
		log:        log.With().Str("component", "httpclient").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// apiError is the decoded shape of a 4xx/5xx error body.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// doRequest executes one signed or unsigned request, applying the retry
// policy from §4.A: 429/5xx/transport errors retry up to maxRetries times
// with exponential backoff (base 1s, cap 60s, full jitter); 429 honors
// Retry-After as a floor. Other 4xx are terminal.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, body []byte, authenticated bool, cost ratelimit.Cost) ([]byte, error) {
	var lastErr error
	var result []byte

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = backoffBase
	bo.MaxInterval = backoffCap
	bo.Multiplier = 1
	bo.RandomizationFactor = 1.0 // full jitter
	retryable := backoff.WithMaxRetries(bo, maxRetries)

	// retryFloor is the Retry-After of the last 429, counted from failedAt.
	// backoff reads InitialInterval only when Retry starts, so the floor is
	// enforced here, at the start of the next attempt.
	var retryFloor time.Duration
	var failedAt time.Time

	attempt := func() error {
		if wait := retryFloor - time.Since(failedAt); retryFloor > 0 && wait > 0 {
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
				return backoff.Permanent(ctx.Err())
			case <-time.After(wait):
			}
		}
		retryFloor = 0

		if err := c.waitLimiter(ctx, method, path, authenticated, cost); err != nil {
			return backoff.Permanent(err)
		}

		data, retryAfter, err := c.doOnce(ctx, method, path, query, body, authenticated)
		if err == nil {
			result = data
			return nil
		}

		var rle *domain.RateLimitedError
		if asRateLimited(err, &rle) {
			retryFloor, failedAt = retryAfter, time.Now()
			lastErr = err
			return err
		}
		var te *domain.TransportError
		if asTransport(err, &te) {
			lastErr = err
			return err
		}
		// Terminal 4xx or decode error: stop retrying.
		lastErr = err
		return backoff.Permanent(err)
	}

	if err := backoff.Retry(attempt, retryable); err != nil {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, err
	}
	return result, nil
}

func (c *Client) waitLimiter(ctx context.Context, method, path string, authenticated bool, cost ratelimit.Cost) error {
	if c.limiter == nil {
		return nil
	}
	op := method + " " + path
	if method == http.MethodGet {
		return c.limiter.WaitRead(ctx, op, cost)
	}
	return c.limiter.WaitWrite(ctx, op, cost)
}

// doOnce performs exactly one HTTP round trip, returning the raw body on
// success or a typed error (with a Retry-After duration hint, when present)
// on failure.
func (c *Client) doOnce(ctx context.Context, method, path string, query url.Values, body []byte, authenticated bool) ([]byte, time.Duration, error) {
	fullPath := path
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return nil, 0, &domain.TransportError{Op: fullPath, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "marketedge/1.0")

	if authenticated {
		if c.signer == nil {
			return nil, 0, &domain.AuthError{StatusCode: 0, Message: "client has no signer configured"}
		}
		headers, err := c.signer.Sign(method, fullPath, time.Now())
		if err != nil {
			return nil, 0, fmt.Errorf("httpclient: sign request: %w", err)
		}
		req.Header.Set("KEY-ID", headers.KeyID)
		req.Header.Set("KEY-TIMESTAMP", headers.Timestamp)
		req.Header.Set("KEY-SIGNATURE", headers.Signature)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, &domain.TransportError{Op: fullPath, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, &domain.TransportError{Op: fullPath, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		return respBody, 0, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, retryAfter, &domain.RateLimitedError{RetryAfter: resp.Header.Get("Retry-After")}
	case resp.StatusCode >= 500:
		return nil, 0, &domain.TransportError{Op: fullPath, Err: fmt.Errorf("server error %d", resp.StatusCode)}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, 0, &domain.AuthError{StatusCode: resp.StatusCode, Message: decodeAPIMessage(respBody)}
	default:
		c.log.Warn().Int("status", resp.StatusCode).Str("path", fullPath).Msg("terminal 4xx response")
		return nil, 0, &domain.ValidationError{Field: "response", Message: fmt.Sprintf("status %d: %s", resp.StatusCode, decodeAPIMessage(respBody))}
	}
}

func decodeAPIMessage(body []byte) string {
	var ae apiError
	if err := json.Unmarshal(body, &ae); err == nil && ae.Message != "" {
		return ae.Message
	}
	s := string(body)
	if len(s) > 300 {
		s = s[:300] + "..."
	}
	return s
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		return time.Until(t)
	}
	return 0
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}

func asRateLimited(err error, target **domain.RateLimitedError) bool {
	rle, ok := err.(*domain.RateLimitedError)
	if ok {
		*target = rle
	}
	return ok
}

func asTransport(err error, target **domain.TransportError) bool {
	te, ok := err.(*domain.TransportError)
	if ok {
		*target = te
	}
	return ok
}
