package stacfed

import (
	"net/url"
	"strconv"

	"github.com/kailas-cloud/stacfed/internal/domain"
	"github.com/kailas-cloud/stacfed/internal/domain/collection"
	domconf "github.com/kailas-cloud/stacfed/internal/domain/conformance"
	"github.com/kailas-cloud/stacfed/internal/domain/extent"
	"github.com/kailas-cloud/stacfed/internal/domain/filter"
)

// Domain types shared with the server.
type (
	// Record is one collection document as returned by the server.
	Record = collection.Record
	// APIConfig is one configured upstream catalog.
	APIConfig = domain.APIConfig
	// APIConfigs is the ordered list of configured catalogs.
	APIConfigs = domain.APIConfigs
	// Rule is a declarative collection filter.
	Rule = filter.Rule
	// BBox is [west, south, east, north] in degrees.
	BBox = extent.BBox
	// Capabilities are the collection-search flags derived from conformance classes.
	Capabilities = domconf.Capabilities
	// Capability names one gated feature.
	Capability = domconf.Capability
)

// Gated features.
const (
	CollectionSearch = domconf.CollectionSearch
	FreeText         = domconf.FreeText
)

// Hint languages.
const (
	HintPython = "python"
	HintR      = "r"
)

// SearchParams are the filters of one federated search. Zero values are omitted.
type SearchParams struct {
	APIs     []string // empty searches every configured upstream
	BBox     *BBox
	Datetime string // "start/end" with ".." for an open bound
	Q        string
	Limit    int
	HintLang string
}

func (p SearchParams) values() url.Values {
	v := url.Values{}
	for _, api := range p.APIs {
		v.Add("apis", api)
	}
	if p.BBox != nil {
		v.Set("bbox", p.BBox.String())
	}
	if p.Datetime != "" {
		v.Set("datetime", p.Datetime)
	}
	if p.Q != "" {
		v.Set("q", p.Q)
	}
	if p.Limit > 0 {
		v.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.HintLang != "" {
		v.Set("hint_lang", p.HintLang)
	}
	return v
}

// Link is a hypermedia link from a search response.
type Link struct {
	Rel  string `json:"rel"`
	Type string `json:"type,omitempty"`
	Href string `json:"href"`
}

// FederatedError is a per-upstream failure inside an otherwise successful search.
type FederatedError struct {
	CatalogURL string `json:"catalog_url"`
	Message    string `json:"error_message"`
}

func (e FederatedError) String() string { return e.CatalogURL + ": " + e.Message }

// Page is one page of federated results as sent by the server.
type Page struct {
	Collections    []Record         `json:"collections"`
	Links          []Link           `json:"links"`
	Errors         []FederatedError `json:"errors"`
	NumberReturned int              `json:"numberReturned"`

	// Next is the href of the rel=next link, empty on the last page.
	Next string `json:"-"`
}

func (p *Page) resolveNext() {
	p.Next = ""
	for _, l := range p.Links {
		if l.Rel == "next" {
			p.Next = l.Href
			return
		}
	}
}

// UpstreamHealth is the probe result for one upstream catalog.
type UpstreamHealth struct {
	Healthy bool `json:"healthy"`
	// CollectionSearch lists the collection-search classes the upstream advertises.
	CollectionSearch []string `json:"collection_search_conformance,omitempty"`
	Message          string   `json:"message"`
}

// Capabilities evaluates the advertised collection-search classes.
func (u UpstreamHealth) Capabilities() Capabilities { return domconf.Evaluate(u.CollectionSearch) }

// Health is the server's diagnostic report.
type Health struct {
	Status   string `json:"status"` // UP or DEGRADED
	Lifespan struct {
		Status string `json:"status"`
	} `json:"lifespan"`
	Cache     string                    `json:"cache,omitempty"`
	Upstreams map[string]UpstreamHealth `json:"upstream_apis"`
}

// Up reports whether every probed component is healthy.
func (h Health) Up() bool { return h.Status == "UP" }

// Conformance returns the per-upstream collection-search classes keyed by URL.
func (h Health) Conformance() map[string][]string {
	out := make(map[string][]string, len(h.Upstreams))
	for api, u := range h.Upstreams {
		out[api] = u.CollectionSearch
	}
	return out
}
