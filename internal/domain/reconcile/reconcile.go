// Package reconcile groups a federated result list by source catalog and applies
// each catalog's configured collection filter.
package reconcile

import (
	"github.com/kailas-cloud/stacfed/internal/domain"
	"github.com/kailas-cloud/stacfed/internal/domain/collection"
)

// SourceStats reports what happened to one source group.
type SourceStats struct {
	URL      string `json:"url"`
	Filtered bool   `json:"filtered"`
	Kept     int    `json:"kept"`
	Rejected int    `json:"rejected"`
}

// Result is the reconciled list plus per-source accounting.
type Result struct {
	Records []collection.Record `json:"-"`
	Sources []SourceStats       `json:"sources"`
	// Unsourced counts records dropped because no source URL could be derived.
	Unsourced int `json:"unsourced"`
}

// Rejected sums rejections across sources.
func (r Result) Rejected() int {
	n := 0
	for _, s := range r.Sources {
		n += s.Rejected
	}
	return n
}

// Apply filters records per source and flattens the groups in first-seen order.
//
// Records without a root link or legacy catalog_url are dropped, while records from
// sources with no configuration or no filter pass through unchanged. Each record is
// decided on its own.
func Apply(records []collection.Record, apis domain.APIConfigs) Result {
	var (
		order  []string
		groups = make(map[string][]collection.Record)
		res    Result
	)

	for _, rec := range records {
		url, ok := rec.SourceURL()
		if !ok {
			res.Unsourced++
			continue
		}
		if _, seen := groups[url]; !seen {
			order = append(order, url)
		}
		groups[url] = append(groups[url], rec)
	}

	res.Records = make([]collection.Record, 0, len(records)-res.Unsourced)
	for _, url := range order {
		group := groups[url]
		stats := SourceStats{URL: url}

		cfg, ok := apis.Lookup(url)
		if !ok || !cfg.HasFilter() {
			stats.Kept = len(group)
			res.Records = append(res.Records, group...)
			res.Sources = append(res.Sources, stats)
			continue
		}

		stats.Filtered = true
		for _, rec := range group {
			if cfg.Filter.Match(map[string]any(rec)) {
				stats.Kept++
				res.Records = append(res.Records, rec)
			} else {
				stats.Rejected++
			}
		}
		res.Sources = append(res.Sources, stats)
	}

	return res
}
