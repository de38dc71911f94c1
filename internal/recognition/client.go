package recognition

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/starford/inkmath/internal/apperr"
	"github.com/starford/inkmath/internal/geom"
)

// DefaultURL is the batch recognition endpoint.
const DefaultURL = "https://cloud.myscript.com/api/v4.0/iink/batch"

// Recognizer turns strokes into a JIIX document.
type Recognizer interface {
	Recognize(ctx context.Context, strokes []*geom.Stroke, width, height int) ([]byte, error)
}

// Options configures a Client.
type Options struct {
	URL            string
	ApplicationKey string
	HMACKey        string
	Timeout        time.Duration
	RatePerSecond  float64
	Burst          int
}

// StatusError is returned for a non-2xx response. It wraps apperr.ErrUpstream.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("recognition: service returned %d: %s", e.Code, e.Body)
}

func (e *StatusError) Unwrap() error { return apperr.ErrUpstream }

// Client is the HTTP Recognizer.
type Client struct {
	opts    Options
	http    *http.Client
	limiter *rate.Limiter
}

var _ Recognizer = (*Client)(nil)

// NewClient creates a client. A zero RatePerSecond disables rate limiting.
func NewClient(opts Options) *Client {
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	burst := opts.Burst
	if burst < 1 {
		burst = 1
	}
	return &Client{
		opts:    opts,
		http:    &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Sign returns the hex HMAC-SHA512 of body keyed with appKey+hmacKey.
func Sign(body []byte, appKey, hmacKey string) string {
	mac := hmac.New(sha512.New, []byte(appKey+hmacKey))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Recognize sends strokes to the service and returns the raw JIIX response.
func (c *Client) Recognize(ctx context.Context, strokes []*geom.Stroke, width, height int) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		requestsTotal.WithLabelValues("throttled").Inc()
		return nil, fmt.Errorf("recognition: wait for rate limit: %w", err)
	}

	req := NewRequest(strokes, width, height)
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("recognition: encode request: %w", err)
	}
	strokesSent.Observe(float64(len(req.StrokeGroups[0].Strokes)))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("recognition: build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json,application/vnd.myscript.jiix")
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("applicationKey", c.opts.ApplicationKey)
	httpReq.Header.Set("hmac", Sign(body, c.opts.ApplicationKey, c.opts.HMACKey))

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	requestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		requestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("recognition: send request: %w: %w", apperr.ErrUpstream, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		requestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("recognition: read response: %w: %w", apperr.ErrUpstream, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		requestsTotal.WithLabelValues("rejected").Inc()
		return nil, &StatusError{Code: resp.StatusCode, Body: string(data)}
	}
	requestsTotal.WithLabelValues("ok").Inc()
	return data, nil
}
