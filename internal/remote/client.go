// Package remote is the HTTP client for the local tailoring/review service.
// Every call runs under its own timeout and is retried at most once on transport faults.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/apply-agent/internal/auth"
	"github.com/jonathan/apply-agent/internal/schemas"
	"github.com/jonathan/apply-agent/internal/types"
	embedded "github.com/jonathan/apply-agent/schemas"
)

// Default per-call timeouts.
const (
	DefaultTailorTimeout = 300 * time.Second
	DefaultReviewTimeout = 180 * time.Second
	DefaultHealthTimeout = 5 * time.Second
	DefaultFieldsTimeout = 30 * time.Second
	DefaultRetryDelay    = 500 * time.Millisecond
)

// DefaultBaseURL is where the service listens when nothing else is configured.
const DefaultBaseURL = "http://localhost:5001"

const maxResponseBytes = 16 << 20

// Options configures the client.
type Options struct {
	BaseURL       string
	TailorTimeout time.Duration
	ReviewTimeout time.Duration
	HealthTimeout time.Duration
	FieldsTimeout time.Duration
	// Retries is the number of extra attempts after a transient failure.
	Retries    int
	RetryDelay time.Duration
	// Signer, when set, adds a bearer token to every request.
	Signer     *auth.Signer
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// DefaultOptions returns sensible defaults for talking to a local service.
func DefaultOptions() *Options {
	return &Options{
		BaseURL:       DefaultBaseURL,
		TailorTimeout: DefaultTailorTimeout,
		ReviewTimeout: DefaultReviewTimeout,
		HealthTimeout: DefaultHealthTimeout,
		FieldsTimeout: DefaultFieldsTimeout,
		Retries:       1,
		RetryDelay:    DefaultRetryDelay,
	}
}

// Client talks to the tailoring service.
type Client struct {
	opts   Options
	http   *http.Client
	logger *zap.Logger
}

// NewClient creates a client. Zero-valued options fall back to defaults.
func NewClient(opts *Options) *Client {
	defaults := DefaultOptions()
	if opts == nil {
		opts = defaults
	}
	o := *opts
	if o.BaseURL == "" {
		o.BaseURL = defaults.BaseURL
	}
	o.BaseURL = strings.TrimRight(o.BaseURL, "/")
	if o.TailorTimeout <= 0 {
		o.TailorTimeout = defaults.TailorTimeout
	}
	if o.ReviewTimeout <= 0 {
		o.ReviewTimeout = defaults.ReviewTimeout
	}
	if o.HealthTimeout <= 0 {
		o.HealthTimeout = defaults.HealthTimeout
	}
	if o.FieldsTimeout <= 0 {
		o.FieldsTimeout = defaults.FieldsTimeout
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
	if o.RetryDelay < 0 {
		o.RetryDelay = 0
	}

	httpClient := o.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := o.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{opts: o, http: httpClient, logger: logger}
}

// BaseURL returns the service root this client talks to.
func (c *Client) BaseURL() string {
	return c.opts.BaseURL
}

// Health checks that the service is up.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	err := c.do(ctx, call{
		op:      "health",
		method:  http.MethodGet,
		path:    "/health",
		timeout: c.opts.HealthTimeout,
		schema:  embedded.HealthResponse,
	}, &out)
	if err != nil {
		return nil, err
	}
	if !out.Healthy() {
		return &out, &Error{Op: "health", Kind: KindRejected, Message: fmt.Sprintf("service reported status %q", out.Status)}
	}
	return &out, nil
}

// Tailor submits a resume for tailoring against a job description.
func (c *Client) Tailor(ctx context.Context, req TailorRequest) (*TailorResponse, error) {
	var out TailorResponse
	err := c.do(ctx, call{
		op:      "tailor",
		method:  http.MethodPost,
		path:    "/tailor",
		body:    req,
		timeout: c.opts.TailorTimeout,
		schema:  embedded.TailorResponse,
	}, &out)
	if err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, rejected("tailor", out.Error)
	}
	if strings.TrimSpace(out.TailoredText) == "" {
		return nil, &Error{Op: "tailor", Kind: KindInvalidPayload, Status: http.StatusOK, Message: "response has no tailored text"}
	}
	return &out, nil
}

// Review requests one additional reviewer pass over tailored text.
// A response with reviewerPassed=false is a valid answer, not an error.
func (c *Client) Review(ctx context.Context, req ReviewRequest) (*ReviewResponse, error) {
	var out ReviewResponse
	err := c.do(ctx, call{
		op:      "review",
		method:  http.MethodPost,
		path:    "/review",
		body:    req,
		timeout: c.opts.ReviewTimeout,
		schema:  embedded.ReviewResponse,
	}, &out)
	if err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, rejected("review", out.Error)
	}
	if strings.TrimSpace(out.ImprovedText) == "" {
		return nil, &Error{Op: "review", Kind: KindInvalidPayload, Status: http.StatusOK, Message: "response has no improved text"}
	}
	return &out, nil
}

// PullLearnedFields fetches the remote copy of the learned-field mapping.
func (c *Client) PullLearnedFields(ctx context.Context) (types.LearnedFields, error) {
	var out learnedFieldsPayload
	err := c.do(ctx, call{
		op:      "pull learned fields",
		method:  http.MethodGet,
		path:    "/learned-fields",
		timeout: c.opts.FieldsTimeout,
		schema:  embedded.LearnedFields,
	}, &out)
	if err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, rejected("pull learned fields", out.Error)
	}
	if out.Fields == nil {
		return types.LearnedFields{}, nil
	}
	return out.Fields, nil
}

// PushLearnedFields uploads the local mapping. The acknowledgement may carry
// fields the remote holds that were newer or unknown locally; nil means none.
func (c *Client) PushLearnedFields(ctx context.Context, fields types.LearnedFields) (types.LearnedFields, error) {
	if fields == nil {
		fields = types.LearnedFields{}
	}
	var out learnedFieldsPayload
	err := c.do(ctx, call{
		op:      "push learned fields",
		method:  http.MethodPost,
		path:    "/learned-fields",
		body:    pushFieldsRequest{Fields: fields},
		timeout: c.opts.FieldsTimeout,
		schema:  embedded.LearnedFields,
	}, &out)
	if err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, rejected("push learned fields", out.Error)
	}
	return out.Fields, nil
}

type call struct {
	op      string
	method  string
	path    string
	body    any
	timeout time.Duration
	schema  string
}

func rejected(op, msg string) error {
	if msg == "" {
		msg = "service reported failure"
	}
	return &Error{Op: op, Kind: KindRejected, Status: http.StatusOK, Message: msg}
}

// do executes c with at most opts.Retries extra attempts and decodes the body into out.
func (c *Client) do(ctx context.Context, cl call, out any) error {
	var payload []byte
	if cl.body != nil {
		b, err := json.Marshal(cl.body)
		if err != nil {
			return &Error{Op: cl.op, Kind: KindInvalidPayload, Message: "failed to encode request", Cause: err}
		}
		payload = b
	}

	var lastErr *Error
	for attempt := 0; attempt <= c.opts.Retries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("retrying service call",
				zap.String("op", cl.op),
				zap.Int("attempt", attempt+1),
				zap.Error(lastErr))
			if err := sleep(ctx, c.opts.RetryDelay); err != nil {
				return lastErr
			}
		}

		body, err := c.attempt(ctx, cl, payload)
		if err == nil {
			if err := json.Unmarshal(body, out); err != nil {
				return &Error{Op: cl.op, Kind: KindInvalidPayload, Status: http.StatusOK, Message: "failed to decode response", Cause: err}
			}
			return nil
		}
		lastErr = err
		if !err.retryable() || ctx.Err() != nil {
			break
		}
	}
	return lastErr
}

func (c *Client) attempt(ctx context.Context, cl call, payload []byte) ([]byte, *Error) {
	callCtx, cancel := context.WithTimeout(ctx, cl.timeout)
	defer cancel()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(callCtx, cl.method, c.opts.BaseURL+cl.path, reader)
	if err != nil {
		return nil, &Error{Op: cl.op, Kind: KindUnreachable, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.opts.Signer != nil {
		token, err := c.opts.Signer.Sign("apply-agent", cl.op)
		if err != nil {
			return nil, &Error{Op: cl.op, Kind: KindRejected, Message: "failed to sign request", Cause: err}
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransport(cl.op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, classifyTransport(cl.op, err)
	}

	c.logger.Debug("service call",
		zap.String("op", cl.op),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{
			Op:      cl.op,
			Kind:    KindHTTPStatus,
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("HTTP status %d: %s", resp.StatusCode, snippet(body)),
		}
	}

	if !json.Valid(body) {
		// Status 0 marks an undecodable body, which is worth one more try.
		return nil, &Error{Op: cl.op, Kind: KindInvalidPayload, Message: "response is not valid JSON: " + snippet(body)}
	}
	if cl.schema != "" {
		if err := schemas.ValidatePayload(cl.schema, body); err != nil {
			return nil, &Error{Op: cl.op, Kind: KindInvalidPayload, Status: resp.StatusCode, Message: "response failed schema validation", Cause: err}
		}
	}
	return body, nil
}

func classifyTransport(op string, err error) *Error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &Error{Op: op, Kind: KindTimeout, Message: "request timed out", Cause: err}
	}
	return &Error{Op: op, Kind: KindUnreachable, Message: "service unreachable", Cause: err}
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
