package chi

import (
	"fmt"
	"net/url"

	"github.com/oapi-codegen/runtime"

	"github.com/kailas-cloud/stacfed/internal/domain/extent"
	"github.com/kailas-cloud/stacfed/internal/domain/hint"
	"github.com/kailas-cloud/stacfed/internal/domain/temporal"
	searchuc "github.com/kailas-cloud/stacfed/internal/usecase/search"
)

// SearchParams are the query parameters of GET /collections.
type SearchParams struct {
	// Apis restricts the search to these configured upstream URLs (repeat the parameter).
	Apis     *[]string
	Bbox     *string
	Datetime *string
	Q        *string
	Limit    *int
	HintLang *string
	// Token resumes a previous search and overrides every other parameter.
	Token *string
}

type queryBinding struct {
	name string
	dest any
}

func bindQuery(q url.Values, bindings ...queryBinding) error {
	for _, b := range bindings {
		if err := runtime.BindQueryParameter("form", true, false, b.name, q, b.dest); err != nil {
			return fmt.Errorf("%w: invalid format for parameter %s: %w", errBadRequest, b.name, err)
		}
	}
	return nil
}

// bindAPIs reads the repeated apis parameter.
func bindAPIs(q url.Values) ([]string, error) {
	var apis *[]string
	if err := bindQuery(q, queryBinding{"apis", &apis}); err != nil {
		return nil, err
	}
	if apis == nil {
		return nil, nil
	}
	return *apis, nil
}

func bindSearchParams(q url.Values) (SearchParams, error) {
	var p SearchParams
	err := bindQuery(q,
		queryBinding{"apis", &p.Apis},
		queryBinding{"bbox", &p.Bbox},
		queryBinding{"datetime", &p.Datetime},
		queryBinding{"q", &p.Q},
		queryBinding{"limit", &p.Limit},
		queryBinding{"hint_lang", &p.HintLang},
		queryBinding{"token", &p.Token},
	)
	return p, err
}

// bindSearchRequest validates the query parameters into a search request.
func bindSearchRequest(q url.Values) (searchuc.Request, error) {
	p, err := bindSearchParams(q)
	if err != nil {
		return searchuc.Request{}, err
	}

	var req searchuc.Request
	if p.Token != nil && *p.Token != "" {
		req.Token = *p.Token
		return req, nil
	}

	if p.Apis != nil {
		req.APIs = *p.Apis
	}
	if p.Bbox != nil && *p.Bbox != "" {
		b, err := extent.ParseBBox(*p.Bbox)
		if err != nil {
			return searchuc.Request{}, fmt.Errorf("parse bbox: %w", err)
		}
		req.BBox = &b
	}
	if p.Datetime != nil && *p.Datetime != "" {
		iv, err := temporal.ParseInterval(*p.Datetime)
		if err != nil {
			return searchuc.Request{}, fmt.Errorf("parse datetime: %w", err)
		}
		req.Interval = &iv
	}
	if p.Q != nil {
		req.Q = *p.Q
	}
	if p.Limit != nil {
		if *p.Limit < 1 {
			return searchuc.Request{}, fmt.Errorf("%w: limit must be a positive integer", errBadRequest)
		}
		req.Limit = *p.Limit
	}
	if p.HintLang != nil {
		lang, err := hint.ParseLang(*p.HintLang)
		if err != nil {
			return searchuc.Request{}, fmt.Errorf("%w: %w", errBadRequest, err)
		}
		req.HintLang = lang
	}
	return req, nil
}
