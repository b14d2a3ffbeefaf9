package stacfed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "stacfed-sdk"
	maxErrorBody     = 64 << 10
)

// Client is the stacfed SDK entry point. It is safe for concurrent use.
type Client struct {
	base      *url.URL
	http      *http.Client
	apiKey    string
	userAgent string
	apis      APIConfigs
	hasAPIs   bool
	obs       *observer
}

// New creates a Client for the server at baseURL (e.g. "http://localhost:8080").
func New(baseURL string, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}

	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("stacfed: base url must be an absolute http(s) URL, got %q", baseURL)
	}

	hc := cfg.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	ua := cfg.userAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	return &Client{
		base:      base,
		http:      hc,
		apiKey:    cfg.apiKey,
		userAgent: ua,
		apis:      cfg.apis,
		hasAPIs:   cfg.hasAPIs,
		obs:       obs,
	}, nil
}

// Search fetches the first page of a federated search.
func (c *Client) Search(ctx context.Context, p SearchParams) (page Page, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search", start, err) }()

	if err = c.get(ctx, "search", c.endpoint("/collections", p.values()), &page); err != nil {
		return Page{}, err
	}
	page.resolveNext()
	return page, nil
}

// NextPage follows a next link returned by Search or NextPage. Relative links
// are resolved against the base URL; absolute ones must share its scheme and host.
func (c *Client) NextPage(ctx context.Context, next string) (page Page, err error) {
	start := time.Now()
	defer func() { c.obs.observe("next_page", start, err) }()

	if next == "" {
		return Page{}, ErrNoNextPage
	}
	ref, err := url.Parse(next)
	if err != nil {
		return Page{}, fmt.Errorf("parse next link: %w", err)
	}

	target := c.base.ResolveReference(ref)
	if !strings.EqualFold(target.Scheme, c.base.Scheme) || !strings.EqualFold(target.Host, c.base.Host) {
		return Page{}, fmt.Errorf("%w: %s", ErrForeignLink, target.Redacted())
	}

	if err = c.get(ctx, "next page", target.String(), &page); err != nil {
		return Page{}, err
	}
	page.resolveNext()
	return page, nil
}

// Conformance returns the conformance classes the selected upstreams share.
func (c *Client) Conformance(ctx context.Context, apis []string) (classes []string, err error) {
	start := time.Now()
	defer func() { c.obs.observe("conformance", start, err) }()

	var resp struct {
		ConformsTo []string `json:"conformsTo"`
	}
	if err = c.get(ctx, "conformance", c.endpoint("/conformance", apisQuery(apis)), &resp); err != nil {
		return nil, err
	}
	return resp.ConformsTo, nil
}

// Health probes the selected upstreams.
func (c *Client) Health(ctx context.Context, apis []string) (h Health, err error) {
	start := time.Now()
	defer func() { c.obs.observe("health", start, err) }()

	if err = c.get(ctx, "health check", c.endpoint("/_mgmt/health", apisQuery(apis)), &h); err != nil {
		return Health{}, err
	}
	return h, nil
}

// Docs returns the server's OpenAPI document.
func (c *Client) Docs(ctx context.Context) (doc map[string]any, err error) {
	start := time.Now()
	defer func() { c.obs.observe("docs", start, err) }()

	if err = c.get(ctx, "docs", c.endpoint("/api", nil), &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// APIs returns the upstream configuration used for client-side filtering: the
// WithAPIs value when set, otherwise the server's /apis listing.
func (c *Client) APIs(ctx context.Context) (apis APIConfigs, err error) {
	if c.hasAPIs {
		return c.apis, nil
	}

	start := time.Now()
	defer func() { c.obs.observe("apis", start, err) }()

	var resp struct {
		APIs APIConfigs `json:"apis"`
	}
	if err = c.get(ctx, "apis", c.endpoint("/apis", nil), &resp); err != nil {
		return nil, err
	}
	return resp.APIs, nil
}

// PurgeCache drops the server's cached upstream documents and returns the
// number of purged entries.
func (c *Client) PurgeCache(ctx context.Context) (n int, err error) {
	start := time.Now()
	defer func() { c.obs.observe("purge_cache", start, err) }()

	var resp struct {
		Purged int `json:"purged"`
	}
	if err = c.do(ctx, http.MethodDelete, "purge cache", c.endpoint("/_mgmt/cache", nil), &resp); err != nil {
		return 0, err
	}
	return resp.Purged, nil
}

func (c *Client) endpoint(path string, q url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = q.Encode()
	return u.String()
}

func apisQuery(apis []string) url.Values {
	if len(apis) == 0 {
		return nil
	}
	return url.Values{"apis": apis}
}

func (c *Client) get(ctx context.Context, op, rawURL string, out any) error {
	return c.do(ctx, http.MethodGet, op, rawURL, out)
}

func (c *Client) do(ctx context.Context, method, op, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return newAPIError(op, resp, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}
