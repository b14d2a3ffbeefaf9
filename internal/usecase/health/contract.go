package health

import (
	"context"

	"github.com/kailas-cloud/stacfed/internal/domain"
)

// StorePinger checks cache store availability.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// LandingFetcher loads a STAC landing page directly from the upstream.
type LandingFetcher interface {
	Landing(ctx context.Context, api string) (domain.Landing, error)
}

// HitCounter reports the number of collections a CMR endpoint serves.
type HitCounter interface {
	Hits(ctx context.Context, base string) (int, error)
}
