package realestate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/yourorg/overview-api/internal/logger"
)

const DefaultBaseURL = "https://mars.udacity.com/"

const maxPayload = 4 << 20 // 4MB guard

var (
	ErrDecode          = errors.New("realestate: malformed payload")
	ErrPayloadTooLarge = errors.New("realestate: payload too large")
)

// Response is the outcome of one round trip that reached the server.
// Records is nil unless the call was successful and the body decoded.
type Response struct {
	StatusCode int
	Records    []PropertyRecord
	// Empty is set for a 2xx reply without a usable body.
	Empty bool
}

func (r *Response) Successful() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Client performs GET <base>/realestate. It keeps no state between calls.
type Client struct {
	baseURL string
	http    *retryablehttp.Client
	limiter *rate.Limiter
}

type Option func(*Client)

// WithTimeout bounds a whole request. Zero leaves the transport default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.HTTPClient.Timeout = d }
}

// WithRateLimit throttles outbound requests; rps <= 0 disables the limiter.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithTransport wraps the underlying round tripper, e.g. with a connectivity check.
func WithTransport(wrap func(http.RoundTripper) http.RoundTripper) Option {
	return func(c *Client) {
		base := c.http.HTTPClient.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		c.http.HTTPClient.Transport = wrap(base)
	}
}

// WithLogger routes retryablehttp's own request logging to l.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) { c.http.Logger = logger.NewLeveledBridge(l) }
}

func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	rc := retryablehttp.NewClient()
	// one round trip per request, failures are reported as-is
	rc.RetryMax = 0
	rc.CheckRetry = neverRetry
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = nil

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    rc,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func neverRetry(_ context.Context, _ *http.Response, _ error) (bool, error) {
	return false, nil
}

func (c *Client) endpoint(filter Filter) string {
	u := c.baseURL + "/realestate"
	if v, ok := filter.QueryValue(); ok {
		q := url.Values{}
		q.Set("filter", v)
		u += "?" + q.Encode()
	}
	return u
}

// GetProperties fetches the listing for filter. A transport or decode failure
// is returned as error; a non-2xx reply is a Response with no records.
func (c *Client) GetProperties(ctx context.Context, filter Filter) (*Response, error) {
	log := logger.FromContext(ctx).WithFields(logger.Fields{
		"component": "realestate.Client",
		"filter":    filter.String(),
	})

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	u := c.endpoint(filter)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	if traceID := logger.TraceIDFromContext(ctx); traceID != "" {
		req.Header.Set("X-Trace-ID", traceID)
	}

	log.Debug("Sending realestate request", logger.Fields{"url": u})
	resp, err := c.http.Do(req)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, err
	}
	defer resp.Body.Close()

	out := &Response{StatusCode: resp.StatusCode}
	if !out.Successful() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxPayload))
		log.Warn("Realestate endpoint returned non-success status", logger.Fields{"status_code": resp.StatusCode})
		return out, nil
	}

	raw, err := ioReadAllLimit(resp.Body, maxPayload)
	if err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		out.Empty = true
		return out, nil
	}

	var records []PropertyRecord
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if records == nil {
		records = []PropertyRecord{}
	}
	out.Records = records

	log.Debug("Decoded realestate response", logger.Fields{"records": len(records)})
	return out, nil
}

func ioReadAllLimit(r io.Reader, limit int64) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > limit {
		return nil, ErrPayloadTooLarge
	}
	return b, nil
}
