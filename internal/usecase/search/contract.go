package search

import (
	"context"

	"github.com/kailas-cloud/stacfed/internal/domain"
	"github.com/kailas-cloud/stacfed/internal/transport/cmr"
	"github.com/kailas-cloud/stacfed/internal/transport/stac"
	conformanceuc "github.com/kailas-cloud/stacfed/internal/usecase/conformance"
)

// CapabilityProber resolves the conformance of upstream catalogs.
type CapabilityProber interface {
	Probe(ctx context.Context, apis domain.APIConfigs) []conformanceuc.Upstream
}

// STACClient lists collections of a STAC API.
type STACClient interface {
	Collections(ctx context.Context, api string, p stac.Params) (stac.Page, error)
	Follow(ctx context.Context, api, href string) (stac.Page, error)
}

// CMRClient searches a CMR endpoint.
type CMRClient interface {
	Search(ctx context.Context, base string, q cmr.Query) (cmr.Page, error)
}
