// Package cmr searches NASA's Common Metadata Repository and converts its
// collection entries into STAC-like collection records.
package cmr

import (
	"context"
	"net/url"
	"strconv"

	"github.com/kailas-cloud/stacfed/internal/domain"
	"github.com/kailas-cloud/stacfed/internal/domain/extent"
	"github.com/kailas-cloud/stacfed/internal/domain/temporal"
	"github.com/kailas-cloud/stacfed/internal/transport/upstream"
)

const hitsHeader = "CMR-Hits"

// Query is one CMR collection search.
type Query struct {
	BBox     *extent.BBox
	Interval *temporal.Interval
	Keyword  string
	PageSize int
	PageNum  int
}

// Page is one page of converted CMR results.
type Page struct {
	Entries []Entry
	// Hits is the total number of matching collections reported by CMR, -1 if unknown.
	Hits int
}

// Client searches CMR through the shared upstream client.
type Client struct {
	http *upstream.Client
}

// New creates a CMR client.
func New(http *upstream.Client) *Client {
	return &Client{http: http}
}

// Search runs q against the CMR search endpoint base (".../search/").
func (c *Client) Search(ctx context.Context, base string, q Query) (Page, error) {
	var body struct {
		Feed struct {
			Entry []Entry `json:"entry"`
		} `json:"feed"`
	}
	u := upstream.Join(base, "collections.json") + "?" + q.values().Encode()
	hdr, err := c.http.GetJSON(ctx, base, "collections", u, &body)
	if err != nil {
		return Page{}, err //nolint:wrapcheck // already an UpstreamError
	}

	hits := -1
	if n, convErr := strconv.Atoi(hdr.Get(hitsHeader)); convErr == nil {
		hits = n
	}
	return Page{Entries: body.Feed.Entry, Hits: hits}, nil
}

// Hits returns the total number of collections CMR reports, used as a health probe.
func (c *Client) Hits(ctx context.Context, base string) (int, error) {
	page, err := c.Search(ctx, base, Query{PageSize: 1})
	if err != nil {
		return 0, err
	}
	if page.Hits < 0 {
		return 0, domain.NewUpstreamError(base, 0, "missing "+hitsHeader+" header")
	}
	return page.Hits, nil
}

func (q Query) values() url.Values {
	v := url.Values{}
	if q.BBox != nil {
		v.Set("bounding_box", q.BBox.String())
	}
	if q.Interval != nil {
		v.Set("temporal", temporalParam(q.Interval))
	}
	if q.Keyword != "" {
		v.Set("keyword", q.Keyword)
	}
	if q.PageSize > 0 {
		v.Set("page_size", strconv.Itoa(q.PageSize))
	}
	if q.PageNum > 1 {
		v.Set("page_num", strconv.Itoa(q.PageNum))
	}
	return v
}

// temporalParam renders an interval the way CMR expects: "start,end" with
// empty sides for open bounds.
func temporalParam(iv *temporal.Interval) string {
	var start, end string
	if iv.Start != nil {
		start = iv.Start.UTC().Format("2006-01-02T15:04:05Z")
	}
	if iv.End != nil {
		end = iv.End.UTC().Format("2006-01-02T15:04:05Z")
	}
	return start + "," + end
}
