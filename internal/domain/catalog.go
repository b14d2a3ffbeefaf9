package domain

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/stacfed/internal/domain/filter"
)

// CatalogKind is the protocol spoken by an upstream catalog.
type CatalogKind string

const (
	// KindSTAC is a STAC API (optionally with collection-search).
	KindSTAC CatalogKind = "stac"
	// KindCMR is a NASA Common Metadata Repository search endpoint.
	KindCMR CatalogKind = "cmr"
)

// APIConfig describes one operator-configured upstream catalog.
// It is read-only once loaded.
type APIConfig struct {
	URL               string       `json:"url"`
	Kind              CatalogKind  `json:"kind"`
	Filter            *filter.Rule `json:"filter,omitempty"`
	FilterDescription string       `json:"filter_description,omitempty"`
}

// HasFilter reports whether the API defines a collection predicate.
func (a APIConfig) HasFilter() bool { return a.Filter != nil }

// APIConfigs is the static list of configured catalogs.
type APIConfigs []APIConfig

// Lookup returns the configuration with an exact URL match.
func (c APIConfigs) Lookup(url string) (APIConfig, bool) {
	for _, a := range c {
		if a.URL == url {
			return a, true
		}
	}
	return APIConfig{}, false
}

// URLs returns the configured URLs in configuration order.
func (c APIConfigs) URLs() []string {
	urls := make([]string, len(c))
	for i, a := range c {
		urls[i] = a.URL
	}
	return urls
}

// Select returns the configurations matching urls, keeping configuration order.
// An empty urls selects every configured API. Unknown URLs are returned in missing.
func (c APIConfigs) Select(urls []string) (selected APIConfigs, missing []string) {
	if len(urls) == 0 {
		return append(APIConfigs(nil), c...), nil
	}
	want := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		if _, ok := c.Lookup(u); !ok {
			missing = append(missing, u)
			continue
		}
		want[u] = struct{}{}
	}
	for _, a := range c {
		if _, ok := want[a.URL]; ok {
			selected = append(selected, a)
		}
	}
	return selected, missing
}

// Landing is the subset of an upstream landing page the federation reads.
type Landing struct {
	ID          string   `json:"id"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	ConformsTo  []string `json:"conformsTo"`
}

// Resolve is Select for request handling: unknown URLs are rejected with
// ErrUnknownAPI and an empty selection with ErrNoUpstreams.
func (c APIConfigs) Resolve(urls []string) (APIConfigs, error) {
	selected, missing := c.Select(urls)
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAPI, strings.Join(missing, ", "))
	}
	if len(selected) == 0 {
		return nil, ErrNoUpstreams
	}
	return selected, nil
}
