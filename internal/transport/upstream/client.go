// Package upstream is the shared HTTP layer for requests to upstream catalogs.
// It applies per-catalog rate limits, records transport metrics and maps
// failures onto domain.UpstreamError.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/stacfed/internal/domain"
	"github.com/kailas-cloud/stacfed/internal/metrics"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "stacfed"
	maxErrorBody     = 64 << 10
)

// Config holds the upstream HTTP settings.
type Config struct {
	Timeout   time.Duration
	UserAgent string
	// RateLimit is the sustained requests per second allowed per catalog. 0 disables limiting.
	RateLimit float64
	Burst     int
	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client performs JSON GET requests against upstream catalogs.
type Client struct {
	http      *http.Client
	userAgent string
	rateLimit rate.Limit
	burst     int
	logger    *zap.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New creates an upstream client.
func New(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		http:      hc,
		userAgent: ua,
		rateLimit: rate.Limit(cfg.RateLimit),
		burst:     burst,
		logger:    logger,
		limiters:  make(map[string]*rate.Limiter),
	}
}

// GetJSON fetches rawURL on behalf of api and decodes the body into out.
// endpoint is a low-cardinality label for metrics and logs ("landing", "collections", ...).
func (c *Client) GetJSON(ctx context.Context, api, endpoint, rawURL string, out any) (http.Header, error) {
	if err := c.wait(ctx, api); err != nil {
		c.countError(api, endpoint, "rate_limit")
		return nil, domain.NewUpstreamError(api, 0, "rate limit wait: "+err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		c.countError(api, endpoint, "request")
		return nil, domain.NewUpstreamError(api, 0, "build request: "+err.Error())
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.http.Do(req)
	latency := time.Since(start)
	if err != nil {
		c.countError(api, endpoint, "transport")
		c.logger.Debug("upstream request failed",
			zap.String("api", api),
			zap.String("endpoint", endpoint),
			zap.Duration("latency", latency),
			zap.Error(err),
		)
		return nil, domain.NewUpstreamError(api, 0, err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	metrics.UpstreamRequestsTotal.WithLabelValues(api, endpoint, strconv.Itoa(resp.StatusCode)).Inc()
	metrics.UpstreamRequestDuration.WithLabelValues(api, endpoint).Observe(latency.Seconds())
	c.logger.Debug("upstream request",
		zap.String("api", api),
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", latency),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.UpstreamErrorsTotal.WithLabelValues(api, "status").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.Header, domain.NewUpstreamError(api, resp.StatusCode, extractDetail(body, resp.Status))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		metrics.UpstreamErrorsTotal.WithLabelValues(api, "decode").Inc()
		return resp.Header, domain.NewUpstreamError(api, resp.StatusCode, "decode response: "+err.Error())
	}
	return resp.Header, nil
}

func (c *Client) wait(ctx context.Context, api string) error {
	if c.rateLimit <= 0 {
		return nil
	}
	if err := c.limiter(api).Wait(ctx); err != nil {
		return fmt.Errorf("wait: %w", err)
	}
	return nil
}

func (c *Client) limiter(api string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[api]
	if !ok {
		l = rate.NewLimiter(c.rateLimit, c.burst)
		c.limiters[api] = l
	}
	return l
}

func (c *Client) countError(api, endpoint, errorType string) {
	metrics.UpstreamRequestsTotal.WithLabelValues(api, endpoint, "error").Inc()
	metrics.UpstreamErrorsTotal.WithLabelValues(api, errorType).Inc()
}

// extractDetail pulls a readable message out of the error formats STAC servers
// and CMR use, falling back to the raw body or the status line.
func extractDetail(body []byte, status string) string {
	var parsed struct {
		Detail      string   `json:"detail"`
		Description string   `json:"description"`
		Message     string   `json:"message"`
		Errors      []string `json:"errors"`
	}
	if json.Unmarshal(body, &parsed) == nil {
		switch {
		case parsed.Detail != "":
			return parsed.Detail
		case parsed.Description != "":
			return parsed.Description
		case parsed.Message != "":
			return parsed.Message
		case len(parsed.Errors) > 0:
			return strings.Join(parsed.Errors, "; ")
		}
	}
	if s := strings.TrimSpace(string(body)); s != "" {
		return s
	}
	return status
}

// Join appends path segments to a catalog base URL.
func Join(base string, segments ...string) string {
	out := strings.TrimRight(base, "/")
	for _, s := range segments {
		out += "/" + strings.Trim(s, "/")
	}
	return out
}
