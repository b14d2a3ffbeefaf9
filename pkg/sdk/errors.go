package stacfed

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kailas-cloud/stacfed/internal/domain"
	"github.com/kailas-cloud/stacfed/internal/domain/extent"
)

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidBBox        = domain.ErrInvalidBBox
	ErrInvalidDatetime    = domain.ErrInvalidDatetime
	ErrInvalidQuery       = domain.ErrInvalidQuery
	ErrInvalidToken       = domain.ErrInvalidToken
	ErrUnknownAPI         = domain.ErrUnknownAPI
	ErrNoUpstreams        = domain.ErrNoUpstreams
	ErrUpstream           = domain.ErrUpstream
	ErrNoRenderableExtent = extent.ErrNoRenderableExtent
)

// ErrNoNextPage is returned when a session has no next link to follow.
var ErrNoNextPage = errors.New("no next page")

// ErrForeignLink is returned by NextPage for a link outside the client's base
// URL. Such links are never requested, so the API key stays with the server.
var ErrForeignLink = errors.New("next link points outside the server")

// codeSentinels maps server error codes onto the re-exported sentinels.
var codeSentinels = map[string]error{
	"invalid_bbox":     domain.ErrInvalidBBox,
	"invalid_datetime": domain.ErrInvalidDatetime,
	"invalid_query":    domain.ErrInvalidQuery,
	"invalid_token":    domain.ErrInvalidToken,
	"unknown_api":      domain.ErrUnknownAPI,
	"no_upstreams":     domain.ErrNoUpstreams,
	"upstream_error":   domain.ErrUpstream,
}

// APIError is a non-2xx response from the stacfed server.
type APIError struct {
	Op     string // "search", "next page", "conformance", ...
	Status int
	Code   string // server error code, empty when the body was not JSON
	Detail string
}

func (e *APIError) Error() string { return e.Detail }

// Unwrap exposes the domain sentinel matching Code, if any.
func (e *APIError) Unwrap() error { return codeSentinels[e.Code] }

// newAPIError builds an APIError from a failed response body. The detail comes
// from the JSON detail field when present, otherwise from the status line.
func newAPIError(op string, resp *http.Response, body []byte) *APIError {
	apiErr := &APIError{Op: op, Status: resp.StatusCode}

	var parsed struct {
		Detail string `json:"detail"`
		Code   string `json:"code"`
	}
	if json.Unmarshal(body, &parsed) == nil {
		apiErr.Code = parsed.Code
		apiErr.Detail = parsed.Detail
	}
	if apiErr.Detail == "" {
		apiErr.Detail = fmt.Sprintf("%s failed with status %d: %s", op, resp.StatusCode, statusText(resp))
	}
	return apiErr
}

// statusText is the reason phrase of the status line, e.g. "Bad Gateway".
func statusText(resp *http.Response) string {
	if _, text, ok := strings.Cut(resp.Status, " "); ok && text != "" {
		return text
	}
	return http.StatusText(resp.StatusCode)
}
