package collection

import (
	"encoding/json"
	"testing"

	"github.com/kailas-cloud/stacfed/internal/domain/extent"
	"github.com/kailas-cloud/stacfed/internal/domain/temporal"
)

func mustRecord(t *testing.T, raw string) Record {
	t.Helper()
	var r Record
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return r
}

func TestRecord_SourceURL(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   string
		wantOK bool
	}{
		{"root link", `{"links":[{"rel":"self","href":"https://a/c/x"},{"rel":"root","href":"https://a/"}]}`, "https://a/", true},
		{"root wins over legacy", `{"catalog_url":"https://legacy","links":[{"rel":"root","href":"https://a/"}]}`, "https://a/", true},
		{"legacy fallback", `{"catalog_url":"https://legacy","links":[{"rel":"self","href":"https://a/c/x"}]}`, "https://legacy", true},
		{"root with empty href", `{"links":[{"rel":"root","href":""}]}`, "", false},
		{"first root decides", `{"links":[{"rel":"root","href":""},{"rel":"root","href":"https://b/"}]}`, "", false},
		{"empty root ignores legacy", `{"catalog_url":"https://legacy","links":[{"rel":"root"}]}`, "", false},
		{"nothing", `{"id":"x"}`, "", false},
		{"malformed links", `{"links":"https://a/"}`, "", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := mustRecord(t, tc.raw).SourceURL()
			if got != tc.want || ok != tc.wantOK {
				t.Errorf("SourceURL() = %q, %v; want %q, %v", got, ok, tc.want, tc.wantOK)
			}
		})
	}
}

func TestRecord_EnsureRoot(t *testing.T) {
	r := mustRecord(t, `{"id":"x","links":[{"rel":"self","href":"https://a/c/x"}]}`)
	r.EnsureRoot("https://a/")
	r.EnsureRoot("https://b/")

	if got := len(r.Links()); got != 2 {
		t.Fatalf("links = %d, want 2", got)
	}
	if u, _ := r.SourceURL(); u != "https://a/" {
		t.Errorf("SourceURL() = %q", u)
	}

	blank := mustRecord(t, `{"id":"y","links":[{"rel":"root","href":""},{"rel":"root","href":"https://z/"}]}`)
	blank.EnsureRoot("https://d/")
	if u, ok := blank.SourceURL(); !ok || u != "https://d/" || len(blank.Links()) != 2 {
		t.Errorf("empty root href should be filled in place, got %q, %v, %d links", u, ok, len(blank.Links()))
	}

	empty := Record{}
	empty.EnsureRoot("https://c/")
	if u, ok := empty.SourceURL(); !ok || u != "https://c/" {
		t.Errorf("SourceURL() on fresh record = %q, %v", u, ok)
	}
}

func TestRecord_Fields(t *testing.T) {
	r := mustRecord(t, `{
		"id": "s2",
		"title": "Sentinel-2",
		"description": "desc",
		"keywords": ["optical", 3, "esa"],
		"extent": {
			"spatial": {"bbox": [[-180, -90, 180, 90], [1, 2, 0, 3, 4, 10], [1, 2], ["a", 1, 2, 3]]},
			"temporal": {"interval": [["2015-06-27T10:25:31Z", null], "bad", [null]]}
		}
	}`)

	if r.ID() != "s2" || r.Title() != "Sentinel-2" || r.Description() != "desc" {
		t.Errorf("scalar accessors: %q %q %q", r.ID(), r.Title(), r.Description())
	}
	if kw := r.Keywords(); len(kw) != 2 || kw[0] != "optical" || kw[1] != "esa" {
		t.Errorf("Keywords() = %v", kw)
	}

	boxes := r.BBoxes()
	want := []extent.BBox{{-180, -90, 180, 90}, {1, 2, 3, 4}}
	if len(boxes) != len(want) {
		t.Fatalf("BBoxes() = %v, want %v", boxes, want)
	}
	for i := range want {
		if boxes[i] != want[i] {
			t.Errorf("BBoxes()[%d] = %v, want %v", i, boxes[i], want[i])
		}
	}

	got := temporal.FormatRanges(r.Intervals())
	if got != "2015-06-27 - , Invalid range, Invalid range" {
		t.Errorf("formatted intervals = %q", got)
	}

	iv := r.FirstInterval()
	if iv.Start == nil || iv.End != nil {
		t.Errorf("FirstInterval() = %v", iv)
	}
}

func TestRecord_MissingExtent(t *testing.T) {
	r := Record{"id": "x"}
	if len(r.BBoxes()) != 0 || len(r.Intervals()) != 0 {
		t.Error("expected no extents")
	}
	if iv := r.FirstInterval(); iv.Start != nil || iv.End != nil {
		t.Errorf("FirstInterval() = %v, want open", iv)
	}
}
