// Package delivery posts events to hook endpoints over HTTP and classifies the result
package delivery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/marcelsud/webhook-dispatcher/dispatch"
	"github.com/marcelsud/webhook-dispatcher/hooks"
	"github.com/marcelsud/webhook-dispatcher/payload"
	"github.com/marcelsud/webhook-dispatcher/signature"
)

// DefaultTimeout bounds a single delivery attempt
const DefaultTimeout = 10 * time.Second

// HeaderEventKind carries the event kind next to the Standard Webhooks headers
const HeaderEventKind = "X-Event-Kind"

// maxErrorBody limits how much of a failed response ends up in the outcome reason
const maxErrorBody = 512

// Client is the HTTP Deliverer
type Client struct {
	http      *http.Client
	timeout   time.Duration
	userAgent string
	now       func() time.Time
	newID     func() string
}

// Option configures a Client
type Option func(*Client)

// WithTimeout sets the per-attempt timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithHTTPClient replaces the pooled client, mostly for tests
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithUserAgent sets the User-Agent header
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// NewClient creates a delivery client backed by a pooled transport
func NewClient(opts ...Option) *Client {
	c := &Client{
		http:      cleanhttp.DefaultPooledClient(),
		timeout:   DefaultTimeout,
		userAgent: "webhook-dispatcher/1.0",
		now:       time.Now,
		newID:     func() string { return "msg_" + uuid.New().String() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Deliver posts one event to hook and classifies what happened.
// It never returns before the timeout elapses or the endpoint answers.
func (c *Client) Deliver(ctx context.Context, hook hooks.Hook, p payload.Payload, eventKind string) dispatch.Outcome {
	req, err := c.newRequest(ctx, hook, p, eventKind)
	if err != nil {
		return dispatch.Permanent(0, "building request: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.http.Do(req.WithContext(ctx))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return dispatch.Transient(0, "timeout after %s", c.timeout)
		}
		return dispatch.Transient(0, "sending request: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return Classify(hook, resp.StatusCode, body)
}

func (c *Client) newRequest(ctx context.Context, hook hooks.Hook, p payload.Payload, eventKind string) (*http.Request, error) {
	now := c.now()
	env, err := payload.NewEnvelope(eventKind, p, now)
	if err != nil {
		return nil, err
	}
	body, err := env.Bytes()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	for k, v := range hook.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(HeaderEventKind, eventKind)

	// Retries of one job share the id so receivers can drop duplicates
	msgID := c.newID()
	if jobID := dispatch.JobIDFrom(ctx); jobID != "" {
		msgID = "msg_" + jobID
	}
	req.Header.Set(signature.HeaderID, msgID)
	req.Header.Set(signature.HeaderTimestamp, fmt.Sprintf("%d", now.Unix()))

	secret, err := hook.Secret()
	if err != nil {
		return nil, fmt.Errorf("parsing signing secret: %w", err)
	}
	if !secret.IsZero() {
		sig, err := signature.Sign(secret, msgID, now, body)
		if err != nil {
			return nil, fmt.Errorf("signing request: %w", err)
		}
		req.Header.Set(signature.HeaderSignature, sig)
	}

	return req, nil
}

/* Classify maps an HTTP answer to an outcome
 * 408, 409, 425, 429 and 5xx are worth another attempt; other 4xx and 3xx are not
 */
func Classify(hook hooks.Hook, statusCode int, body []byte) dispatch.Outcome {
	if hook.ExpectedStatus != 0 && statusCode == hook.ExpectedStatus {
		return dispatch.Success(statusCode)
	}
	if hook.ExpectedStatus == 0 && statusCode >= 200 && statusCode <= 299 {
		return dispatch.Success(statusCode)
	}

	reason := fmt.Sprintf("endpoint returned %d", statusCode)
	if len(body) > 0 {
		reason = fmt.Sprintf("%s: %s", reason, bytes.TrimSpace(body))
	}

	switch {
	case statusCode >= 500,
		statusCode == http.StatusRequestTimeout,
		statusCode == http.StatusConflict,
		statusCode == http.StatusTooEarly,
		statusCode == http.StatusTooManyRequests:
		return dispatch.Transient(statusCode, "%s", reason)
	case statusCode >= 200 && statusCode <= 299:
		return dispatch.Permanent(statusCode, "%s, expected %d", reason, hook.ExpectedStatus)
	default:
		return dispatch.Permanent(statusCode, "%s", reason)
	}
}

var _ dispatch.Deliverer = (*Client)(nil)
