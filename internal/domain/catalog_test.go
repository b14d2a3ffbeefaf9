package domain

import (
	"errors"
	"slices"
	"testing"
)

func testConfigs() APIConfigs {
	return APIConfigs{
		{URL: "https://a", Kind: KindSTAC},
		{URL: "https://b", Kind: KindSTAC},
		{URL: "https://cmr/search/", Kind: KindCMR},
	}
}

func TestSelect_KeepsConfigOrder(t *testing.T) {
	selected, missing := testConfigs().Select([]string{"https://cmr/search/", "https://a", "https://nope"})
	if !slices.Equal(selected.URLs(), []string{"https://a", "https://cmr/search/"}) {
		t.Errorf("selected = %v", selected.URLs())
	}
	if !slices.Equal(missing, []string{"https://nope"}) {
		t.Errorf("missing = %v", missing)
	}
}

func TestSelect_EmptyMeansAll(t *testing.T) {
	selected, missing := testConfigs().Select(nil)
	if len(selected) != 3 || missing != nil {
		t.Errorf("Select(nil) = %v, %v", selected, missing)
	}
}

func TestResolve(t *testing.T) {
	if _, err := testConfigs().Resolve([]string{"https://nope"}); !errors.Is(err, ErrUnknownAPI) {
		t.Errorf("expected ErrUnknownAPI, got %v", err)
	}
	if _, err := (APIConfigs{}).Resolve(nil); !errors.Is(err, ErrNoUpstreams) {
		t.Errorf("expected ErrNoUpstreams, got %v", err)
	}
	got, err := testConfigs().Resolve([]string{"https://b"})
	if err != nil || len(got) != 1 || got[0].URL != "https://b" {
		t.Errorf("Resolve = %v, %v", got, err)
	}
}

func TestLookup(t *testing.T) {
	if _, ok := testConfigs().Lookup("https://a/"); ok {
		t.Error("lookup must be exact")
	}
	if a, ok := testConfigs().Lookup("https://cmr/search/"); !ok || a.Kind != KindCMR {
		t.Errorf("Lookup = %+v, %v", a, ok)
	}
}

func TestUpstreamError(t *testing.T) {
	err := NewUpstreamError("https://a", 503, "down")
	if !errors.Is(err, ErrUpstream) {
		t.Error("expected UpstreamError to unwrap to ErrUpstream")
	}
	if err.Error() != "upstream error: https://a returned 503: down" {
		t.Errorf("Error() = %q", err.Error())
	}
	if got := NewUpstreamError("https://a", 0, "timeout").Error(); got != "upstream error: https://a: timeout" {
		t.Errorf("Error() = %q", got)
	}
}
