package stacfed

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"
	"testing"

	"github.com/kailas-cloud/stacfed/internal/domain/filter"
)

const (
	srcA = "https://earth-search.example.com/v1"
	srcB = "https://planetary.example.com/api/stac/v1"

	classCS = "https://api.stacspec.org/v1.0.0-rc.1/collection-search"
	classFT = "https://api.stacspec.org/v1.0.0-rc.1/collection-search#free-text"
)

func sessionAPIs() APIConfigs {
	return APIConfigs{
		{URL: srcA, Filter: &Rule{
			Path: "providers",
			Not:  true,
			Some: &Rule{All: []Rule{
				{Path: "name", Op: filter.OpEq, Value: "CMR"},
				{Path: "roles", Op: filter.OpContains, Value: "producer"},
			}},
		}, FilterDescription: "hide CMR-produced collections"},
		{URL: srcB},
	}
}

// threeRecordPage has two records from srcA, one of them CMR-produced, and one from srcB.
const threeRecordPage = `{
	"collections": [
		{"id": "a1", "links": [{"rel": "root", "href": "` + srcA + `"}], "providers": [{"name": "CMR", "roles": ["producer"]}]},
		{"id": "b1", "links": [{"rel": "root", "href": "` + srcB + `"}], "providers": [{"name": "CMR", "roles": ["producer"]}]},
		{"id": "a2", "links": [{"rel": "root", "href": "` + srcA + `"}]},
		{"id": "orphan"}
	],
	"links": [{"rel": "next", "href": "/collections?token=p2"}],
	"errors": [{"catalog_url": "https://down.example.com", "error_message": "timeout"}]
}`

func newTestSession(t *testing.T, c *Client) *Session {
	t.Helper()
	sess, err := NewSession(context.Background(), c)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return sess
}

func recordIDs(recs []Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID()
	}
	return out
}

// --- Tests ---

func TestSession_SearchFiltersPerSource(t *testing.T) {
	f, srv := newFakeServer(t)
	f.bodies["GET /collections"] = threeRecordPage
	sess := newTestSession(t, newTestClient(t, srv, WithAPIs(sessionAPIs())))

	if err := sess.Search(context.Background(), SearchParams{Q: "land"}); err != nil {
		t.Fatalf("Search: %v", err)
	}

	// a1 is rejected by srcA's filter, b1 passes (srcB has none), orphan is dropped.
	if got, want := recordIDs(sess.Results()), []string{"a2", "b1"}; !slices.Equal(got, want) {
		t.Errorf("results = %v, want %v", got, want)
	}
	if sess.Unsourced() != 1 {
		t.Errorf("unsourced = %d, want 1", sess.Unsourced())
	}
	if src := sess.Sources(); len(src) != 2 || src[0].URL != srcA || src[0].Rejected != 1 || src[1].Filtered {
		t.Errorf("sources = %+v", src)
	}
	if !sess.HasNext() || sess.NextLink() != "/collections?token=p2" {
		t.Errorf("next = %q", sess.NextLink())
	}
	if w := sess.Warnings(); len(w) != 1 || w[0] != "https://down.example.com: timeout" {
		t.Errorf("warnings = %v", w)
	}
	if sess.Err() != nil {
		t.Errorf("err = %v", sess.Err())
	}

	q := f.lastQuery("GET /collections")
	if strings.Count(q, "apis=") != 2 {
		t.Errorf("expected both active apis in %q", q)
	}
}

func TestSession_SearchErrorClearsResults(t *testing.T) {
	f, srv := newFakeServer(t)
	f.bodies["GET /collections"] = threeRecordPage
	sess := newTestSession(t, newTestClient(t, srv, WithAPIs(sessionAPIs())))

	if err := sess.Search(context.Background(), SearchParams{}); err != nil {
		t.Fatalf("Search: %v", err)
	}

	f.bodies["GET /collections"] = `{"detail": "Invalid datetime", "code": "invalid_datetime"}`
	f.statuses["GET /collections"] = http.StatusBadRequest
	err := sess.Search(context.Background(), SearchParams{Datetime: "yesterday"})
	if !errors.Is(err, ErrInvalidDatetime) {
		t.Fatalf("expected ErrInvalidDatetime, got %v", err)
	}
	if len(sess.Results()) != 0 || sess.HasNext() || len(sess.Warnings()) != 0 {
		t.Errorf("stale state after failure: results=%v next=%q warnings=%v",
			sess.Results(), sess.NextLink(), sess.Warnings())
	}
	if !errors.Is(sess.Err(), ErrInvalidDatetime) {
		t.Errorf("session err = %v", sess.Err())
	}
}

func TestSession_Next(t *testing.T) {
	f, srv := newFakeServer(t)
	f.bodies["GET /collections"] = threeRecordPage
	sess := newTestSession(t, newTestClient(t, srv, WithAPIs(sessionAPIs())))

	if err := sess.Next(context.Background()); !errors.Is(err, ErrNoNextPage) {
		t.Fatalf("expected ErrNoNextPage before any search, got %v", err)
	}
	if err := sess.Search(context.Background(), SearchParams{}); err != nil {
		t.Fatal(err)
	}

	f.bodies["GET /collections"] = `{"collections": [{"id": "b9", "links": [{"rel": "root", "href": "` + srcB + `"}]}], "links": []}`
	if err := sess.Next(context.Background()); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if q := f.lastQuery("GET /collections"); q != "token=p2" {
		t.Errorf("next query = %q", q)
	}
	if got := recordIDs(sess.Results()); !slices.Equal(got, []string{"b9"}) {
		t.Errorf("results = %v", got)
	}
	if sess.HasNext() || len(sess.Warnings()) != 0 {
		t.Errorf("last page should have no next and no warnings")
	}
}

func TestSession_ActiveSet(t *testing.T) {
	_, srv := newFakeServer(t)
	sess := newTestSession(t, newTestClient(t, srv, WithAPIs(sessionAPIs())))

	if got := sess.Active(); !slices.Equal(got, []string{srcA, srcB}) {
		t.Fatalf("initial active = %v", got)
	}
	if err := sess.Toggle(srcA); err != nil {
		t.Fatal(err)
	}
	if got := sess.Active(); !slices.Equal(got, []string{srcB}) {
		t.Errorf("after toggle off = %v", got)
	}
	if err := sess.Toggle(srcA); err != nil {
		t.Fatal(err)
	}
	if got := sess.Active(); !slices.Equal(got, []string{srcA, srcB}) {
		t.Errorf("toggle on keeps configuration order, got %v", got)
	}

	if err := sess.SetActive([]string{srcB, "https://nope"}); !errors.Is(err, ErrUnknownAPI) {
		t.Errorf("expected ErrUnknownAPI, got %v", err)
	}
	if err := sess.Toggle("https://nope"); !errors.Is(err, ErrUnknownAPI) {
		t.Errorf("expected ErrUnknownAPI, got %v", err)
	}

	if err := sess.SetActive(nil); err != nil {
		t.Fatal(err)
	}
	if sess.IsActive(srcA) || len(sess.Active()) != 0 {
		t.Errorf("expected empty active set, got %v", sess.Active())
	}
	if err := sess.Search(context.Background(), SearchParams{}); !errors.Is(err, ErrNoUpstreams) {
		t.Errorf("expected ErrNoUpstreams, got %v", err)
	}
}

func TestSession_RefreshCapabilities(t *testing.T) {
	f, srv := newFakeServer(t)
	f.bodies["GET /conformance"] = `{"conformsTo": ["https://api.stacspec.org/v1.0.0/core", "` + classCS + `"]}`
	f.bodies["GET /_mgmt/health"] = `{"status": "DEGRADED", "upstream_apis": {
		"` + srcA + `": {"healthy": true, "collection_search_conformance": ["` + classCS + `", "` + classFT + `"]},
		"` + srcB + `": {"healthy": false, "collection_search_conformance": ["` + classCS + `"], "message": "does not conform to the 'core' conformance class"}
	}}`
	sess := newTestSession(t, newTestClient(t, srv, WithAPIs(sessionAPIs())))

	sess.Refresh(context.Background())

	caps := sess.Capabilities()
	if !caps.CollectionSearch || caps.FreeText {
		t.Errorf("capabilities = %+v", caps)
	}
	if got := sess.Lacking(FreeText); !slices.Equal(got, []string{srcB}) {
		t.Errorf("lacking free-text = %v", got)
	}
	if got := sess.Lacking(CollectionSearch); len(got) != 0 {
		t.Errorf("lacking collection-search = %v", got)
	}
	if w := sess.Warnings(); len(w) != 1 || !strings.HasPrefix(w[0], srcB+": ") {
		t.Errorf("warnings = %v", w)
	}
}

func TestSession_RefreshFailsOpen(t *testing.T) {
	f, srv := newFakeServer(t)
	f.bodies["GET /conformance"] = `{"detail": "upstream error: no conformance", "code": "upstream_error"}`
	f.statuses["GET /conformance"] = http.StatusBadGateway
	sess := newTestSession(t, newTestClient(t, srv, WithAPIs(sessionAPIs())))

	sess.Refresh(context.Background())

	caps := sess.Capabilities()
	if !caps.CollectionSearch || !caps.FreeText {
		t.Errorf("missing diagnostics must not restrict, got %+v", caps)
	}
	if sess.Lacking(FreeText) != nil {
		t.Errorf("lacking without health data = %v", sess.Lacking(FreeText))
	}
	w := sess.Warnings()
	if len(w) != 2 || !strings.HasPrefix(w[0], "conformance unavailable") || !strings.HasPrefix(w[1], "health check unavailable") {
		t.Errorf("warnings = %v", w)
	}
}

func TestSession_DocsFailureIsWarning(t *testing.T) {
	_, srv := newFakeServer(t)
	sess := newTestSession(t, newTestClient(t, srv, WithAPIs(sessionAPIs())))

	if doc := sess.Docs(context.Background()); doc != nil {
		t.Errorf("doc = %v", doc)
	}
	if w := sess.Warnings(); len(w) != 1 || !strings.HasPrefix(w[0], "api docs unavailable") {
		t.Errorf("warnings = %v", w)
	}
	if sess.Err() != nil {
		t.Error("docs failure must not be blocking")
	}
}

func TestNewSession_LoadsServerAPIs(t *testing.T) {
	f, srv := newFakeServer(t)
	f.bodies["GET /apis"] = `{"apis": [{"url": "` + srcA + `", "kind": "stac"}]}`
	sess := newTestSession(t, newTestClient(t, srv))
	if got := sess.Active(); !slices.Equal(got, []string{srcA}) {
		t.Errorf("active = %v", got)
	}

	_, srv2 := newFakeServer(t)
	if _, err := NewSession(context.Background(), newTestClient(t, srv2)); err == nil {
		t.Error("expected error when /apis fails")
	}
}
