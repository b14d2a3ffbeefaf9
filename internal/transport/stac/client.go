// Package stac is a minimal STAC API client covering the landing page,
// conformance and the /collections listing (with collection-search parameters).
package stac

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/kailas-cloud/stacfed/internal/domain"
	"github.com/kailas-cloud/stacfed/internal/domain/collection"
	"github.com/kailas-cloud/stacfed/internal/domain/extent"
	"github.com/kailas-cloud/stacfed/internal/domain/temporal"
	"github.com/kailas-cloud/stacfed/internal/transport/upstream"
)

// Params are the collection-search query parameters.
type Params struct {
	BBox     *extent.BBox
	Interval *temporal.Interval
	Q        string
	Limit    int
}

// Page is one /collections response.
type Page struct {
	Collections []collection.Record
	// Next is the href of the rel=next link, empty on the last page.
	Next string
}

// Client talks to STAC APIs through the shared upstream client.
type Client struct {
	http *upstream.Client
}

// New creates a STAC client.
func New(http *upstream.Client) *Client {
	return &Client{http: http}
}

// Landing fetches the landing page of api. Catalogs that omit conformsTo on the
// landing page are asked for /conformance instead.
func (c *Client) Landing(ctx context.Context, api string) (domain.Landing, error) {
	var l domain.Landing
	if _, err := c.http.GetJSON(ctx, api, "landing", api, &l); err != nil {
		return domain.Landing{}, err //nolint:wrapcheck // already an UpstreamError
	}
	if len(l.ConformsTo) > 0 {
		return l, nil
	}

	var conf struct {
		ConformsTo []string `json:"conformsTo"`
	}
	_, err := c.http.GetJSON(ctx, api, "conformance", upstream.Join(api, "conformance"), &conf)
	var ue *domain.UpstreamError
	switch {
	case err == nil:
		l.ConformsTo = conf.ConformsTo
	case errors.As(err, &ue) && ue.Status == http.StatusNotFound:
	default:
		return domain.Landing{}, err //nolint:wrapcheck // already an UpstreamError
	}
	return l, nil
}

// Collections lists collections of api, forwarding the non-empty params.
func (c *Client) Collections(ctx context.Context, api string, p Params) (Page, error) {
	u := upstream.Join(api, "collections")
	if q := p.values().Encode(); q != "" {
		u += "?" + q
	}
	return c.page(ctx, api, u)
}

// Follow fetches the page behind a next link previously returned for api.
func (c *Client) Follow(ctx context.Context, api, href string) (Page, error) {
	return c.page(ctx, api, href)
}

func (c *Client) page(ctx context.Context, api, u string) (Page, error) {
	var body struct {
		Collections []collection.Record `json:"collections"`
		Links       []collection.Link   `json:"links"`
	}
	if _, err := c.http.GetJSON(ctx, api, "collections", u, &body); err != nil {
		return Page{}, err //nolint:wrapcheck // already an UpstreamError
	}

	page := Page{Collections: make([]collection.Record, 0, len(body.Collections))}
	for _, rec := range body.Collections {
		if rec == nil {
			continue
		}
		rec.EnsureRoot(api)
		page.Collections = append(page.Collections, rec)
	}
	for _, l := range body.Links {
		if l.Rel == collection.RelNext && l.Href != "" {
			page.Next = l.Href
			break
		}
	}
	return page, nil
}

func (p Params) values() url.Values {
	v := url.Values{}
	if p.BBox != nil {
		v.Set("bbox", p.BBox.String())
	}
	if p.Interval != nil {
		v.Set("datetime", p.Interval.String())
	}
	if p.Q != "" {
		v.Set("q", p.Q)
	}
	if p.Limit > 0 {
		v.Set("limit", strconv.Itoa(p.Limit))
	}
	return v
}
