// Package conformance derives feature flags from advertised conformance classes.
package conformance

import (
	"slices"
	"strings"
)

// Suffixes matched literally, without case folding or slash trimming.
const (
	collectionSearchSuffix = "collection-search"
	freeTextSuffix         = "collection-search#free-text"
)

// Well-known conformance classes.
const (
	ClassCore             = "https://api.stacspec.org/v1.0.0/core"
	ClassCollections      = "https://api.stacspec.org/v1.0.0/collections"
	ClassCollectionSearch = "https://api.stacspec.org/v1.0.0-rc.1/collection-search"
	ClassFreeText         = "https://api.stacspec.org/v1.0.0-rc.1/collection-search#free-text"
	ClassOGCCore          = "http://www.opengis.net/spec/ogcapi-common-1/1.0/conf/core"
)

// Capability names one gated feature.
type Capability string

const (
	// CollectionSearch gates bbox/datetime search on /collections.
	CollectionSearch Capability = "collection-search"
	// FreeText gates the q parameter.
	FreeText Capability = "free-text"
)

// Capabilities are the flags derived from one set of conformance URIs.
type Capabilities struct {
	CollectionSearch bool `json:"collection_search"`
	FreeText         bool `json:"free_text"`
}

// Has reports one capability.
func (c Capabilities) Has(capability Capability) bool {
	switch capability {
	case CollectionSearch:
		return c.CollectionSearch
	case FreeText:
		return c.FreeText
	}
	return false
}

// Evaluate checks both suffixes independently against the same URI list.
func Evaluate(uris []string) Capabilities {
	var c Capabilities
	for _, u := range uris {
		if IsCollectionSearch(u) {
			c.CollectionSearch = true
		}
		if IsFreeText(u) {
			c.FreeText = true
		}
	}
	return c
}

// IsCollectionSearch reports whether the URI declares collection-search.
func IsCollectionSearch(uri string) bool { return strings.HasSuffix(uri, collectionSearchSuffix) }

// IsFreeText reports whether the URI declares collection-search free text.
func IsFreeText(uri string) bool { return strings.HasSuffix(uri, freeTextSuffix) }

// SearchClasses keeps the collection-search and free-text URIs of a document, in order.
func SearchClasses(uris []string) []string {
	var out []string
	for _, u := range uris {
		if IsCollectionSearch(u) || IsFreeText(u) {
			out = append(out, u)
		}
	}
	return out
}

// Aggregate combines the documents that were actually fetched. A capability is
// absent only when some fetched document lacks it; with no documents nothing is
// restricted.
func Aggregate(fetched [][]string) Capabilities {
	agg := Capabilities{CollectionSearch: true, FreeText: true}
	for _, doc := range fetched {
		c := Evaluate(doc)
		agg.CollectionSearch = agg.CollectionSearch && c.CollectionSearch
		agg.FreeText = agg.FreeText && c.FreeText
	}
	return agg
}

// Lacking lists, in sorted order, the upstream URLs whose conformance lacks capability.
// A nil entry counts as lacking.
func Lacking(upstreams map[string][]string, capability Capability) []string {
	var out []string
	for url, uris := range upstreams {
		if !Evaluate(uris).Has(capability) {
			out = append(out, url)
		}
	}
	slices.Sort(out)
	return out
}

// Merge returns core followed by the collection-search classes advertised by every
// fetched document, in first-seen order. When every document advertises a
// capability under differing versions, the canonical class stands in for them.
func Merge(core []string, fetched [][]string) []string {
	out := slices.Clone(core)
	if len(fetched) == 0 {
		return out
	}
	for _, uri := range fetched[0] {
		if !IsCollectionSearch(uri) && !IsFreeText(uri) {
			continue
		}
		if slices.Contains(out, uri) {
			continue
		}
		shared := true
		for _, doc := range fetched[1:] {
			if !slices.Contains(doc, uri) {
				shared = false
				break
			}
		}
		if shared {
			out = append(out, uri)
		}
	}

	agg, have := Aggregate(fetched), Evaluate(out)
	if agg.CollectionSearch && !have.CollectionSearch {
		out = append(out, ClassCollectionSearch)
	}
	if agg.FreeText && !have.FreeText {
		out = append(out, ClassFreeText)
	}
	return out
}

// IsCore reports whether the URI is a STAC API core class of any version.
func IsCore(uri string) bool {
	return strings.HasPrefix(uri, "https://api.stacspec.org/") && strings.HasSuffix(uri, "/core")
}
