// Package collection wraps decoded STAC collection documents.
//
// Records are opaque JSON maps: unknown fields survive a round trip, and the
// accessors below read the handful of fields the pipeline understands.
package collection

import (
	"fmt"

	"github.com/kailas-cloud/stacfed/internal/domain/extent"
	"github.com/kailas-cloud/stacfed/internal/domain/temporal"
)

// Link relation types used by the pipeline.
const (
	RelRoot = "root"
	RelSelf = "self"
	RelNext = "next"
)

// legacyCatalogURL is the pre-links field some older responses use for the source.
const legacyCatalogURL = "catalog_url"

// Link is a STAC link object.
type Link struct {
	Rel   string `json:"rel"`
	Href  string `json:"href"`
	Type  string `json:"type,omitempty"`
	Title string `json:"title,omitempty"`
}

// Record is one collection document.
type Record map[string]any

// ID returns the collection id.
func (r Record) ID() string { return r.str("id") }

// Title returns the collection title.
func (r Record) Title() string { return r.str("title") }

// Description returns the (markdown) description.
func (r Record) Description() string { return r.str("description") }

// Keywords returns the string keywords, skipping non-string entries.
func (r Record) Keywords() []string {
	raw, _ := r["keywords"].([]any)
	out := make([]string, 0, len(raw))
	for _, k := range raw {
		if s, ok := k.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Links returns the well-formed link objects.
func (r Record) Links() []Link {
	raw, _ := r["links"].([]any)
	out := make([]Link, 0, len(raw))
	for _, l := range raw {
		m, ok := l.(map[string]any)
		if !ok {
			continue
		}
		link := Link{}
		link.Rel, _ = m["rel"].(string)
		link.Href, _ = m["href"].(string)
		link.Type, _ = m["type"].(string)
		link.Title, _ = m["title"].(string)
		out = append(out, link)
	}
	return out
}

// Link returns the first link with the given relation. Later links with the
// same relation are ignored even when the first one has an empty href.
func (r Record) Link(rel string) (Link, bool) {
	for _, l := range r.Links() {
		if l.Rel == rel {
			return l, true
		}
	}
	return Link{}, false
}

// SourceURL derives the originating catalog URL from the first root link.
// Only a record without any root link falls back to the legacy catalog_url field.
func (r Record) SourceURL() (string, bool) {
	if l, ok := r.Link(RelRoot); ok {
		return l.Href, l.Href != ""
	}
	if s := r.str(legacyCatalogURL); s != "" {
		return s, true
	}
	return "", false
}

// EnsureRoot points the record at href unless its first root link already has
// a target: an empty root href is filled in, a missing root link is appended.
func (r Record) EnsureRoot(href string) {
	links, _ := r["links"].([]any)
	for _, l := range links {
		m, ok := l.(map[string]any)
		if !ok || m["rel"] != RelRoot {
			continue
		}
		if h, _ := m["href"].(string); h == "" {
			m["href"] = href
		}
		return
	}
	r["links"] = append(links, map[string]any{
		"rel":  RelRoot,
		"href": href,
		"type": "application/json",
	})
}

// BBoxes returns extent.spatial.bbox entries that have 4 or 6 numeric values.
func (r Record) BBoxes() []extent.BBox {
	raw, _ := lookup(r, "extent", "spatial", "bbox").([]any)
	out := make([]extent.BBox, 0, len(raw))
	for _, entry := range raw {
		vals, ok := entry.([]any)
		if !ok {
			continue
		}
		nums := make([]float64, 0, len(vals))
		for _, v := range vals {
			f, ok := v.(float64)
			if !ok {
				break
			}
			nums = append(nums, f)
		}
		if len(nums) != len(vals) {
			continue
		}
		if b, ok := extent.FromSlice(nums); ok {
			out = append(out, b)
		}
	}
	return out
}

// Intervals returns extent.temporal.interval as raw ranges. Non-array entries
// become empty ranges so they format as invalid rather than disappear.
func (r Record) Intervals() []temporal.Range {
	raw, _ := lookup(r, "extent", "temporal", "interval").([]any)
	out := make([]temporal.Range, 0, len(raw))
	for _, entry := range raw {
		pair, ok := entry.([]any)
		if !ok {
			out = append(out, temporal.Range{})
			continue
		}
		rng := make(temporal.Range, len(pair))
		for i, v := range pair {
			switch s := v.(type) {
			case nil:
			case string:
				rng[i] = &s
			default:
				txt := fmt.Sprint(s)
				rng[i] = &txt
			}
		}
		out = append(out, rng)
	}
	return out
}

// FirstInterval returns the overall temporal interval, open when absent.
func (r Record) FirstInterval() temporal.Interval {
	ivs := r.Intervals()
	if len(ivs) == 0 || len(ivs[0]) < 2 {
		return temporal.Interval{}
	}
	return temporal.FromStrings(ivs[0][0], ivs[0][1])
}

func (r Record) str(key string) string {
	s, _ := r[key].(string)
	return s
}

func lookup(doc any, keys ...string) any {
	cur := doc
	for _, k := range keys {
		m, ok := cur.(map[string]any)
		if !ok {
			if rec, isRec := cur.(Record); isRec {
				m = rec
			} else {
				return nil
			}
		}
		cur = m[k]
	}
	return cur
}
