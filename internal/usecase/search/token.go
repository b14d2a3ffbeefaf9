package search

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/stacfed/internal/domain"
	"github.com/kailas-cloud/stacfed/internal/domain/extent"
	"github.com/kailas-cloud/stacfed/internal/domain/hint"
	"github.com/kailas-cloud/stacfed/internal/domain/temporal"
)

// Cursor is the resume position of one upstream.
type Cursor struct {
	// Next is the upstream's own rel=next href (collection-search STAC APIs).
	Next string `json:"next,omitempty"`
	// Text is set when the upstream applied q itself, so follow pages are not
	// matched again locally.
	Text bool `json:"text,omitempty"`
	// Page is the next CMR page number.
	Page int `json:"page,omitempty"`
	// Offset is the position in a locally filtered listing.
	Offset int `json:"offset,omitempty"`
}

// token is the decoded form of the opaque pagination token. It carries the
// query so a follow-up request needs nothing but the token.
type token struct {
	BBox     *extent.BBox      `json:"bbox,omitempty"`
	Datetime string            `json:"datetime,omitempty"`
	Q        string            `json:"q,omitempty"`
	Limit    int               `json:"limit"`
	HintLang hint.Lang         `json:"hint_lang,omitempty"`
	Cursors  map[string]Cursor `json:"cursors"`
}

func encodeToken(req Request, cursors map[string]Cursor) (string, error) {
	t := token{
		BBox:     req.BBox,
		Q:        req.Q,
		Limit:    req.Limit,
		HintLang: req.HintLang,
		Cursors:  cursors,
	}
	if req.Interval != nil {
		t.Datetime = req.Interval.String()
	}
	data, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("encode token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// decodeToken restores the query and cursors. Cursor URLs must be configured.
func decodeToken(s string, apis domain.APIConfigs) (Request, map[string]Cursor, error) {
	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Request{}, nil, fmt.Errorf("%w: %w", domain.ErrInvalidToken, err)
	}
	var t token
	if err := json.Unmarshal(data, &t); err != nil {
		return Request{}, nil, fmt.Errorf("%w: %w", domain.ErrInvalidToken, err)
	}
	if len(t.Cursors) == 0 {
		return Request{}, nil, fmt.Errorf("%w: no cursors", domain.ErrInvalidToken)
	}
	for url := range t.Cursors {
		if _, ok := apis.Lookup(url); !ok {
			return Request{}, nil, fmt.Errorf("%w: unknown api %s", domain.ErrInvalidToken, url)
		}
	}

	req := Request{BBox: t.BBox, Q: t.Q, Limit: t.Limit, HintLang: t.HintLang}
	if t.Datetime != "" {
		iv, err := temporal.ParseInterval(t.Datetime)
		if err != nil {
			return Request{}, nil, fmt.Errorf("%w: %w", domain.ErrInvalidToken, err)
		}
		req.Interval = &iv
	}
	return req, t.Cursors, nil
}
