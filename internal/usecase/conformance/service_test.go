package conformance

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/stacfed/internal/domain"
	domconf "github.com/kailas-cloud/stacfed/internal/domain/conformance"
)

// --- Mocks ---

type mockLandings struct {
	mu       sync.Mutex
	landings map[string]domain.Landing
	errs     map[string]error
	calls    []string
}

func (m *mockLandings) Landing(_ context.Context, api string) (domain.Landing, error) {
	m.mu.Lock()
	m.calls = append(m.calls, api)
	m.mu.Unlock()
	if err := m.errs[api]; err != nil {
		return domain.Landing{}, err
	}
	return m.landings[api], nil
}

var apis = domain.APIConfigs{
	{URL: "https://a", Kind: domain.KindSTAC},
	{URL: "https://b", Kind: domain.KindSTAC},
	{URL: "https://cmr/search/", Kind: domain.KindCMR},
}

const csURI = "https://api.stacspec.org/v1.0.0-rc.1/collection-search"

// --- Tests ---

func TestProbe_OrderAndErrors(t *testing.T) {
	m := &mockLandings{
		landings: map[string]domain.Landing{"https://a": {ConformsTo: []string{csURI}}},
		errs:     map[string]error{"https://b": domain.NewUpstreamError("https://b", 500, "boom")},
	}
	svc := New(apis, m, zap.NewNop()).WithMaxConcurrency(1)

	got := svc.Probe(context.Background(), apis)
	if len(got) != 3 {
		t.Fatalf("expected 3 results, got %d", len(got))
	}
	if got[0].API.URL != "https://a" || !got[0].Capabilities().CollectionSearch {
		t.Errorf("unexpected first result %+v", got[0])
	}
	if got[1].Err == nil || got[1].Capabilities().CollectionSearch {
		t.Errorf("expected failed second result, got %+v", got[1])
	}
	caps := got[2].Capabilities()
	if !caps.CollectionSearch || !caps.FreeText {
		t.Errorf("CMR should advertise search and free text, got %+v", caps)
	}
	if slices.Contains(m.calls, "https://cmr/search/") {
		t.Error("CMR has no landing page to fetch")
	}
}

func TestConformance_MergesFetched(t *testing.T) {
	m := &mockLandings{
		landings: map[string]domain.Landing{"https://a": {ConformsTo: []string{csURI}}},
		errs:     map[string]error{"https://b": errors.New("down")},
	}
	svc := New(apis, m, zap.NewNop())

	got, err := svc.Conformance(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, c := range CoreClasses {
		if !slices.Contains(got, c) {
			t.Errorf("missing core class %s", c)
		}
	}
	if !slices.Contains(got, csURI) {
		t.Errorf("collection-search shared by a and CMR should be advertised: %v", got)
	}
	if domconf.Evaluate(got).FreeText {
		t.Errorf("free text is not advertised by a, got %v", got)
	}
}

func TestConformance_UnknownAPI(t *testing.T) {
	svc := New(apis, &mockLandings{}, zap.NewNop())
	if _, err := svc.Conformance(context.Background(), []string{"https://nope"}); !errors.Is(err, domain.ErrUnknownAPI) {
		t.Errorf("expected ErrUnknownAPI, got %v", err)
	}
}

func TestConformance_NothingFetched(t *testing.T) {
	m := &mockLandings{errs: map[string]error{"https://a": errors.New("down")}}
	svc := New(apis, m, zap.NewNop())

	_, err := svc.Conformance(context.Background(), []string{"https://a"})
	if !errors.Is(err, domain.ErrUpstream) {
		t.Errorf("expected ErrUpstream, got %v", err)
	}
}
