// Package api implements the client for the remote storefront REST API:
// catalogue queries, authentication, wishlist, orders, and reviews.
package api

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

	"github.com/googleapis/gax-go/v2"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/arthaus/storefront/internal/platform/observability"
)

const (
	headerRequestID      = "X-Request-Id"
	headerIdempotencyKey = "Idempotency-Key"

	defaultRetryAttempts = 3
	defaultRetryInitial  = 250 * time.Millisecond
	defaultRetryMax      = 2 * time.Second
)

// TokenSource supplies the current bearer token, reporting false while the
// session is anonymous.
type TokenSource func() (string, bool)

// Options configures a Client.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Token      TokenSource
	// OnUnauthorized runs whenever any authenticated call receives a 401,
	// implementing the application-wide session reset policy.
	OnUnauthorized func()
	Logger         *zap.Logger
	RetryAttempts  int
	RetryInitial   time.Duration
	RetryMax       time.Duration
}

// Client issues authenticated or anonymous requests against the storefront
// API and returns typed failures.
type Client struct {
	base           *url.URL
	http           *http.Client
	token          TokenSource
	onUnauthorized func()
	logger         *zap.Logger
	retryAttempts  int
	retryInitial   time.Duration
	retryMax       time.Duration
}

// New validates the options and constructs a Client.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimSpace(opts.BaseURL))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("api: invalid base URL %q", opts.BaseURL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	token := opts.Token
	if token == nil {
		token = func() (string, bool) { return "", false }
	}

	attempts := opts.RetryAttempts
	if attempts < 1 {
		attempts = defaultRetryAttempts
	}
	initial := opts.RetryInitial
	if initial <= 0 {
		initial = defaultRetryInitial
	}
	max := opts.RetryMax
	if max < initial {
		max = defaultRetryMax
	}

	return &Client{
		base:           base,
		http:           httpClient,
		token:          token,
		onUnauthorized: opts.OnUnauthorized,
		logger:         logger,
		retryAttempts:  attempts,
		retryInitial:   initial,
		retryMax:       max,
	}, nil
}

type call struct {
	operation string
	method    string
	path      string
	query     url.Values
	body      any
	out       any
	// authenticated attaches the bearer token and arms the 401 policy.
	authenticated bool
	// idempotent allows transparent retries on transient failures.
	idempotent bool
	headers    map[string]string
}

func (c *Client) do(ctx context.Context, req call) error {
	target := *c.base
	target.Path = strings.TrimSuffix(target.Path, "/") + req.path
	if len(req.query) > 0 {
		target.RawQuery = req.query.Encode()
	}

	var payload []byte
	if req.body != nil {
		encoded, err := json.Marshal(req.body)
		if err != nil {
			return &Error{Status: 0, cause: fmt.Errorf("encode request: %w", err)}
		}
		payload = encoded
	}

	ctx, span := observability.StartRemoteCall(ctx, req.operation, req.method, req.path)

	backoff := gax.Backoff{Initial: c.retryInitial, Max: c.retryMax, Multiplier: 2}
	attempts := 1
	if req.idempotent {
		attempts = c.retryAttempts
	}

	var lastErr error
	lastStatus := 0
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := gax.Sleep(ctx, backoff.Pause()); err != nil {
				lastErr = &Error{Status: 0, cause: err}
				break
			}
		}

		status, err := c.roundTrip(ctx, req, target.String(), payload)
		lastStatus = status
		if err == nil {
			observability.EndRemoteCall(ctx, span, req.operation, status, nil)
			return nil
		}
		lastErr = err

		apiErr, ok := AsError(err)
		if !ok || !apiErr.Temporary() {
			break
		}
		c.logger.Debug("remote call retrying",
			zap.String("operation", req.operation),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}

	observability.EndRemoteCall(ctx, span, req.operation, lastStatus, lastErr)
	return lastErr
}

func (c *Client) roundTrip(ctx context.Context, req call, target string, payload []byte) (int, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return 0, &Error{Status: 0, cause: err}
	}

	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(headerRequestID, ulid.Make().String())
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}
	if req.authenticated {
		if token, ok := c.token(); ok && token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return 0, &Error{Status: 0, cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if req.out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return resp.StatusCode, nil
		}
		if err := json.NewDecoder(resp.Body).Decode(req.out); err != nil {
			return resp.StatusCode, &Error{Status: 0, cause: fmt.Errorf("decode response: %w", err)}
		}
		return resp.StatusCode, nil
	}

	apiErr := decodeErrorEnvelope(resp)
	if apiErr.IsUnauthorized() && req.authenticated && c.onUnauthorized != nil {
		c.onUnauthorized()
	}
	return resp.StatusCode, apiErr
}

// decodeErrorEnvelope parses the canonical JSON error body, falling back to
// the HTTP status text for non-JSON responses.
func decodeErrorEnvelope(resp *http.Response) *Error {
	apiErr := &Error{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil || len(raw) == 0 {
		return apiErr
	}

	var envelope struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &envelope) == nil {
		if envelope.Error != "" {
			apiErr.Code = envelope.Error
		}
		if envelope.Message != "" {
			apiErr.Message = envelope.Message
		}
	}
	return apiErr
}
