package health

import (
	"context"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/stacfed/internal/domain"
	domconf "github.com/kailas-cloud/stacfed/internal/domain/conformance"
)

// Status represents the aggregated health status.
type Status string

const (
	// Up indicates every selected upstream is reachable.
	Up Status = "UP"
	// Degraded indicates at least one failing upstream or cache.
	Degraded Status = "DEGRADED"
)

// LifespanUp is reported while the process is serving.
const LifespanUp = "up"

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Upstream messages.
const (
	msgHealthy       = "healthy"
	msgNoCore        = "does not conform to the 'core' conformance class"
	msgUnreachable   = "cannot be opened"
	msgNoCollections = "no collections"
)

// UpstreamHealth is the outcome of probing one catalog.
type UpstreamHealth struct {
	Healthy bool `json:"healthy"`
	// CollectionSearch lists the collection-search classes the upstream advertises.
	CollectionSearch []string `json:"collection_search_conformance,omitempty"`
	Message          string   `json:"message"`
}

// Report aggregates health check results.
type Report struct {
	Status    Status
	Lifespan  string
	Cache     CheckResult // empty when no cache store is configured
	Upstreams map[string]UpstreamHealth
}

// Service coordinates health checks.
type Service struct {
	apis           domain.APIConfigs
	landings       LandingFetcher
	cmr            HitCounter
	store          StorePinger
	maxConcurrency int
}

// New creates a Service. store can be nil.
func New(apis domain.APIConfigs, landings LandingFetcher, cmr HitCounter, store StorePinger) *Service {
	return &Service{apis: apis, landings: landings, cmr: cmr, store: store, maxConcurrency: 8}
}

// WithMaxConcurrency bounds the number of parallel upstream probes.
func (s *Service) WithMaxConcurrency(n int) *Service {
	if n > 0 {
		s.maxConcurrency = n
	}
	return s
}

// Check probes the selected upstreams (all when urls is empty) and the cache store.
func (s *Service) Check(ctx context.Context, urls []string) (Report, error) {
	apis, err := s.apis.Resolve(urls)
	if err != nil {
		return Report{}, fmt.Errorf("resolve apis: %w", err)
	}

	results := make([]UpstreamHealth, len(apis))
	var g errgroup.Group
	g.SetLimit(s.maxConcurrency)
	for i, api := range apis {
		g.Go(func() error {
			results[i] = s.checkUpstream(ctx, api)
			return nil
		})
	}
	_ = g.Wait()

	report := Report{
		Status:    Up,
		Lifespan:  LifespanUp,
		Upstreams: make(map[string]UpstreamHealth, len(apis)),
	}
	for i, api := range apis {
		report.Upstreams[api.URL] = results[i]
		if !results[i].Healthy {
			report.Status = Degraded
		}
	}

	if s.store != nil {
		report.Cache = CheckOK
		if err := s.store.Ping(ctx); err != nil {
			report.Cache = CheckError
			report.Status = Degraded
		}
	}
	return report, nil
}

func (s *Service) checkUpstream(ctx context.Context, api domain.APIConfig) UpstreamHealth {
	if api.Kind == domain.KindCMR {
		hits, err := s.cmr.Hits(ctx, api.URL)
		switch {
		case err != nil:
			return UpstreamHealth{Message: msgUnreachable + ": " + err.Error()}
		case hits == 0:
			return UpstreamHealth{CollectionSearch: cmrClasses(), Message: msgNoCollections}
		}
		return UpstreamHealth{Healthy: true, CollectionSearch: cmrClasses(), Message: msgHealthy}
	}

	l, err := s.landings.Landing(ctx, api.URL)
	if err != nil {
		return UpstreamHealth{Message: msgUnreachable + ": " + err.Error()}
	}
	h := UpstreamHealth{CollectionSearch: domconf.SearchClasses(l.ConformsTo)}
	if !slices.ContainsFunc(l.ConformsTo, domconf.IsCore) {
		h.Message = msgNoCore
		return h
	}
	h.Healthy = true
	h.Message = msgHealthy
	return h
}

// CMR has no conformance document; its keyword search covers both classes.
func cmrClasses() []string {
	return []string{domconf.ClassCollectionSearch, domconf.ClassFreeText}
}
