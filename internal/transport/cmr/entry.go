package cmr

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kailas-cloud/stacfed/internal/domain/collection"
	"github.com/kailas-cloud/stacfed/internal/domain/extent"
)

// ErrIncompleteEntry is returned for CMR entries missing a required field.
var ErrIncompleteEntry = errors.New("incomplete cmr collection entry")

// Record fields carrying CMR-specific identifiers.
const (
	FieldShortName  = "cmr:short_name"
	FieldVersionID  = "cmr:version_id"
	FieldDataCenter = "cmr:data_center"
)

// Entry is a collection in the CMR JSON response format.
type Entry struct {
	ID         string     `json:"id"`
	ShortName  string     `json:"short_name"`
	Title      string     `json:"title"`
	Summary    string     `json:"summary"`
	TimeStart  string     `json:"time_start"`
	TimeEnd    string     `json:"time_end"`
	DataCenter string     `json:"data_center"`
	VersionID  string     `json:"version_id"`
	Boxes      []string   `json:"boxes"`
	Polygons   [][]string `json:"polygons"`
}

// Validate checks the fields every converted record needs.
func (e Entry) Validate() error {
	required := []struct{ name, value string }{
		{"short_name", e.ShortName},
		{"id", e.ID},
		{"title", e.Title},
		{"data_center", e.DataCenter},
	}
	for _, f := range required {
		if f.value == "" {
			return fmt.Errorf("%w: collection %q has no %s", ErrIncompleteEntry, e.ID, f.name)
		}
	}
	return nil
}

// BBoxes converts CMR boxes ("S W N E") or, failing that, polygon rings
// ("lat lon lat lon ...") into west/south/east/north boxes.
func (e Entry) BBoxes() ([]extent.BBox, error) {
	var out []extent.BBox
	if len(e.Boxes) > 0 {
		for _, box := range e.Boxes {
			v, err := floats(box)
			if err != nil {
				return nil, err
			}
			if len(v) != 4 {
				return nil, fmt.Errorf("%w: box %q needs 4 values", ErrIncompleteEntry, box)
			}
			out = append(out, extent.BBox{v[1], v[0], v[3], v[2]})
		}
		return out, nil
	}

	for _, polygon := range e.Polygons {
		if len(polygon) == 0 {
			continue
		}
		v, err := floats(polygon[0])
		if err != nil {
			return nil, err
		}
		if len(v) < 2 || len(v)%2 != 0 {
			return nil, fmt.Errorf("%w: polygon needs lat/lon pairs", ErrIncompleteEntry)
		}
		b := extent.BBox{math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)}
		for i := 0; i < len(v); i += 2 {
			lat, lon := v[i], v[i+1]
			b[0] = math.Min(b[0], lon)
			b[1] = math.Min(b[1], lat)
			b[2] = math.Max(b[2], lon)
			b[3] = math.Max(b[3], lat)
		}
		out = append(out, b)
	}
	return out, nil
}

// Record converts the entry into a STAC-like collection record whose root link
// points at the CMR search endpoint base.
func (e Entry) Record(base string) (collection.Record, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	boxes, err := e.BBoxes()
	if err != nil {
		return nil, err
	}

	bbox := make([]any, len(boxes))
	for i, b := range boxes {
		bbox[i] = []any{b[0], b[1], b[2], b[3]}
	}
	interval := []any{optional(e.TimeStart), optional(e.TimeEnd)}

	rec := collection.Record{
		"type":        "Collection",
		"id":          e.ID,
		"title":       e.Title,
		"description": e.Summary,
		"keywords":    []any{},
		"extent": map[string]any{
			"spatial":  map[string]any{"bbox": bbox},
			"temporal": map[string]any{"interval": []any{interval}},
		},
		"links": []any{
			map[string]any{
				"rel":  "via",
				"href": strings.TrimRight(base, "/") + "/concepts/" + e.ID + ".json",
				"type": "application/json",
			},
		},
		FieldShortName:  e.ShortName,
		FieldDataCenter: e.DataCenter,
	}
	if e.VersionID != "" {
		rec[FieldVersionID] = e.VersionID
	}
	rec.EnsureRoot(base)
	return rec, nil
}

func optional(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func floats(s string) ([]float64, error) {
	fields := strings.Fields(s)
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: coordinate %q: %w", ErrIncompleteEntry, f, err)
		}
		out[i] = v
	}
	return out, nil
}
