package stacfed

import (
	"context"
	"fmt"
	"slices"

	domconf "github.com/kailas-cloud/stacfed/internal/domain/conformance"
	"github.com/kailas-cloud/stacfed/internal/domain/reconcile"
)

// SourceStats reports how client-side filtering treated one source catalog.
type SourceStats = reconcile.SourceStats

// Session is the browsing state of one user: which upstreams are active, what
// they can do, and the latest filtered page. It is owned by a single caller and
// not safe for concurrent use.
type Session struct {
	client *Client
	apis   APIConfigs
	active []string

	capabilities Capabilities
	upstreams    map[string][]string // collection-search classes per upstream, from health

	results   []Record
	sources   []SourceStats
	unsourced int
	next      string

	notices  []string // from Refresh and Docs
	warnings []string // from the latest search page
	err      error
}

// NewSession loads the upstream configuration and activates every upstream.
func NewSession(ctx context.Context, c *Client) (*Session, error) {
	apis, err := c.APIs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load apis: %w", err)
	}
	return &Session{
		client:       c,
		apis:         apis,
		active:       apis.URLs(),
		capabilities: domconf.Aggregate(nil),
	}, nil
}

// APIs returns the configured upstreams.
func (s *Session) APIs() APIConfigs { return s.apis }

// Active returns the active upstream URLs in configuration order.
func (s *Session) Active() []string { return slices.Clone(s.active) }

// IsActive reports whether url is part of the active set.
func (s *Session) IsActive(url string) bool { return slices.Contains(s.active, url) }

// SetActive replaces the active set. Unknown URLs are rejected with ErrUnknownAPI.
// Call Refresh afterwards to re-evaluate capabilities.
func (s *Session) SetActive(urls []string) error {
	selected, missing := s.apis.Select(urls)
	if len(missing) > 0 {
		return fmt.Errorf("%w: %v", ErrUnknownAPI, missing)
	}
	if len(urls) == 0 {
		selected = nil
	}
	s.active = selected.URLs()
	return nil
}

// Toggle flips one upstream in or out of the active set.
func (s *Session) Toggle(url string) error {
	if _, ok := s.apis.Lookup(url); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAPI, url)
	}
	next := slices.DeleteFunc(slices.Clone(s.active), func(u string) bool { return u == url })
	if len(next) == len(s.active) {
		next = append(next, url)
	}
	selected, _ := s.apis.Select(next)
	if len(next) == 0 {
		selected = nil
	}
	s.active = selected.URLs()
	return nil
}

// Refresh re-reads conformance and health for the active upstreams. Failures
// are kept as warnings and leave capabilities unrestricted.
func (s *Session) Refresh(ctx context.Context) {
	s.notices = nil
	s.capabilities = domconf.Aggregate(nil)
	s.upstreams = nil

	if len(s.active) == 0 {
		return
	}

	classes, err := s.client.Conformance(ctx, s.active)
	if err != nil {
		s.notices = append(s.notices, "conformance unavailable: "+err.Error())
	} else {
		s.capabilities = domconf.Evaluate(classes)
	}

	health, err := s.client.Health(ctx, s.active)
	if err != nil {
		s.notices = append(s.notices, "health check unavailable: "+err.Error())
		return
	}
	s.upstreams = health.Conformance()
	for _, url := range s.active {
		if u, ok := health.Upstreams[url]; ok && !u.Healthy {
			s.notices = append(s.notices, url+": "+u.Message)
		}
	}
}

// Capabilities are the flags of the last Refresh. Without conformance data
// nothing is restricted.
func (s *Session) Capabilities() Capabilities { return s.capabilities }

// Lacking lists the active upstreams whose health report shows no support for
// capability. It is empty when no health data is available.
func (s *Session) Lacking(capability Capability) []string {
	if s.upstreams == nil {
		return nil
	}
	return domconf.Lacking(s.upstreams, capability)
}

// Docs fetches the OpenAPI document. A failure is recorded as a warning and
// returns nil.
func (s *Session) Docs(ctx context.Context) map[string]any {
	doc, err := s.client.Docs(ctx)
	if err != nil {
		s.notices = append(s.notices, "api docs unavailable: "+err.Error())
		return nil
	}
	return doc
}

// Search runs a new search over the active upstreams, replacing the current
// results. On a request-level failure the results are cleared and the error is
// kept until the next successful search.
func (s *Session) Search(ctx context.Context, p SearchParams) error {
	if len(p.APIs) == 0 {
		p.APIs = s.Active()
	}
	if len(p.APIs) == 0 {
		return s.fail(ErrNoUpstreams)
	}

	page, err := s.client.Search(ctx, p)
	if err != nil {
		return s.fail(err)
	}
	s.accept(page)
	return nil
}

// Next replaces the results with the following page.
func (s *Session) Next(ctx context.Context) error {
	return s.Follow(ctx, s.next)
}

// Follow loads the page behind a next link from an earlier session.
func (s *Session) Follow(ctx context.Context, link string) error {
	if link == "" {
		return ErrNoNextPage
	}
	page, err := s.client.NextPage(ctx, link)
	if err != nil {
		return s.fail(err)
	}
	s.accept(page)
	return nil
}

func (s *Session) fail(err error) error {
	s.results, s.sources, s.unsourced, s.next = nil, nil, 0, ""
	s.warnings = nil
	s.err = err
	return err
}

func (s *Session) accept(page Page) {
	res := reconcile.Apply(page.Collections, s.apis)
	s.client.obs.page(res, page.Errors)

	s.results = res.Records
	s.sources = res.Sources
	s.unsourced = res.Unsourced
	s.next = page.Next
	s.err = nil

	s.warnings = make([]string, 0, len(page.Errors))
	for _, e := range page.Errors {
		s.warnings = append(s.warnings, e.String())
	}
}

// Results returns the filtered records of the current page.
func (s *Session) Results() []Record { return s.results }

// Sources reports per-source filtering of the current page.
func (s *Session) Sources() []SourceStats { return s.sources }

// Unsourced counts records dropped because their source catalog was unknown.
func (s *Session) Unsourced() int { return s.unsourced }

// HasNext reports whether Next can be called.
func (s *Session) HasNext() bool { return s.next != "" }

// NextLink is the href of the next page, empty on the last one.
func (s *Session) NextLink() string { return s.next }

// Err is the blocking error of the last search, nil after a successful one.
func (s *Session) Err() error { return s.err }

// Warnings returns the non-blocking problems: diagnostic fetch failures first,
// then per-upstream errors of the current page.
func (s *Session) Warnings() []string {
	return append(slices.Clone(s.notices), s.warnings...)
}
