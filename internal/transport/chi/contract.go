package chi

import (
	"context"

	healthuc "github.com/kailas-cloud/stacfed/internal/usecase/health"
	searchuc "github.com/kailas-cloud/stacfed/internal/usecase/search"
)

// Searcher runs federated collection searches.
type Searcher interface {
	Search(ctx context.Context, req searchuc.Request) (searchuc.Result, error)
}

// ConformanceResolver aggregates upstream conformance classes.
type ConformanceResolver interface {
	Conformance(ctx context.Context, urls []string) ([]string, error)
}

// HealthChecker probes the selected upstreams.
type HealthChecker interface {
	Check(ctx context.Context, urls []string) (healthuc.Report, error)
}

// CachePurger drops cached upstream documents.
type CachePurger interface {
	Purge(ctx context.Context) (int, error)
}
