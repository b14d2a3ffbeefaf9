package conformance

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/stacfed/internal/domain"
	domconf "github.com/kailas-cloud/stacfed/internal/domain/conformance"
)

const defaultMaxConcurrency = 8

// CoreClasses are the classes the federation itself implements.
var CoreClasses = []string{
	domconf.ClassCore,
	domconf.ClassCollections,
	domconf.ClassOGCCore,
}

// cmrClasses stand in for CMR, which has no conformance document but supports
// spatial, temporal and keyword search natively.
var cmrClasses = []string{domconf.ClassCollectionSearch, domconf.ClassFreeText}

// Upstream is the conformance state of one configured catalog.
type Upstream struct {
	API        domain.APIConfig
	ConformsTo []string
	Err        error
}

// Capabilities returns the flags advertised by the upstream; none when it could not be fetched.
func (u Upstream) Capabilities() domconf.Capabilities {
	if u.Err != nil {
		return domconf.Capabilities{}
	}
	return domconf.Evaluate(u.ConformsTo)
}

// Service resolves upstream conformance.
type Service struct {
	apis           domain.APIConfigs
	landings       LandingFetcher
	maxConcurrency int
	logger         *zap.Logger
}

// New creates a conformance service.
func New(apis domain.APIConfigs, landings LandingFetcher, logger *zap.Logger) *Service {
	return &Service{apis: apis, landings: landings, maxConcurrency: defaultMaxConcurrency, logger: logger}
}

// WithMaxConcurrency bounds the number of parallel upstream requests.
func (s *Service) WithMaxConcurrency(n int) *Service {
	if n > 0 {
		s.maxConcurrency = n
	}
	return s
}

// Probe fetches the conformance classes of each API concurrently.
// Results keep the order of apis; failures are reported per upstream.
func (s *Service) Probe(ctx context.Context, apis domain.APIConfigs) []Upstream {
	out := make([]Upstream, len(apis))

	var g errgroup.Group
	g.SetLimit(s.maxConcurrency)
	for i, api := range apis {
		g.Go(func() error {
			out[i] = s.probe(ctx, api)
			return nil
		})
	}
	_ = g.Wait()

	return out
}

func (s *Service) probe(ctx context.Context, api domain.APIConfig) Upstream {
	if api.Kind == domain.KindCMR {
		return Upstream{API: api, ConformsTo: cmrClasses}
	}
	l, err := s.landings.Landing(ctx, api.URL)
	if err != nil {
		s.logger.Warn("conformance unavailable", zap.String("api", api.URL), zap.Error(err))
		return Upstream{API: api, Err: err}
	}
	return Upstream{API: api, ConformsTo: l.ConformsTo}
}

// Conformance returns the federation's conformance classes for the selected APIs:
// the core classes plus every collection-search class all fetched upstreams share.
func (s *Service) Conformance(ctx context.Context, urls []string) ([]string, error) {
	apis, err := s.apis.Resolve(urls)
	if err != nil {
		return nil, fmt.Errorf("resolve apis: %w", err)
	}

	var fetched [][]string
	for _, u := range s.Probe(ctx, apis) {
		if u.Err == nil {
			fetched = append(fetched, u.ConformsTo)
		}
	}
	if len(fetched) == 0 {
		return nil, fmt.Errorf("%w: no upstream conformance could be fetched", domain.ErrUpstream)
	}
	return domconf.Merge(CoreClasses, fetched), nil
}
