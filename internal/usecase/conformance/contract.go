package conformance

import (
	"context"

	"github.com/kailas-cloud/stacfed/internal/domain"
)

// LandingFetcher loads an upstream landing page (usually through the document cache).
type LandingFetcher interface {
	Landing(ctx context.Context, api string) (domain.Landing, error)
}
