package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidBBox signals a malformed bounding box parameter.
	ErrInvalidBBox = errors.New("invalid bbox")
	// ErrInvalidDatetime signals a malformed datetime interval parameter.
	ErrInvalidDatetime = errors.New("invalid datetime")
	// ErrInvalidQuery signals a free-text query that cannot be parsed.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrInvalidToken signals a pagination token that cannot be decoded.
	ErrInvalidToken = errors.New("invalid pagination token")
	// ErrUnknownAPI signals an upstream URL that is not in the configuration.
	ErrUnknownAPI = errors.New("unknown api")
	// ErrNoUpstreams signals a request that resolved to zero upstream catalogs.
	ErrNoUpstreams = errors.New("no upstream apis selected")
	// ErrUpstream signals a failed request to an upstream catalog.
	ErrUpstream = errors.New("upstream error")
)

// UpstreamError wraps ErrUpstream with the catalog URL and HTTP details.
type UpstreamError struct {
	API    string
	Status int
	Detail string
}

func (e *UpstreamError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s: %s", ErrUpstream.Error(), e.API, e.Detail)
	}
	return fmt.Sprintf("%s: %s returned %d: %s", ErrUpstream.Error(), e.API, e.Status, e.Detail)
}

func (e *UpstreamError) Unwrap() error { return ErrUpstream }

// NewUpstreamError creates an upstream error for the given catalog.
func NewUpstreamError(api string, status int, detail string) error {
	return &UpstreamError{API: api, Status: status, Detail: detail}
}
