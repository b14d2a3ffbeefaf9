// Package extent canonicalizes collection bounding boxes for map display
// and answers overlap questions for local search filtering.
package extent

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/twpayne/go-geom"

	"github.com/kailas-cloud/stacfed/internal/domain"
)

// Epsilon is the half-size used to inflate zero-width or zero-height extents.
const Epsilon = 1e-10

// padRatio is the fraction of each dimension added around a union view.
const padRatio = 0.1

// NoRenderableMessage is shown in place of a map when no extent survives normalization.
const NoRenderableMessage = "Could not normalize spatial extent data"

// ErrNoRenderableExtent is returned by NormalizeAll when every input extent is invalid.
var ErrNoRenderableExtent = errors.New("no renderable spatial extent")

// BBox is a raw [west, south, east, north] box in EPSG:4326 degrees.
type BBox [4]float64

// West returns the western longitude.
func (b BBox) West() float64 { return b[0] }

// South returns the southern latitude.
func (b BBox) South() float64 { return b[1] }

// East returns the eastern longitude.
func (b BBox) East() float64 { return b[2] }

// North returns the northern latitude.
func (b BBox) North() float64 { return b[3] }

// String renders the box as the comma-separated query parameter form.
func (b BBox) String() string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(parts, ",")
}

// CrossesAntimeridian reports whether west lies east of east.
func (b BBox) CrossesAntimeridian() bool { return b[0] > b[2] }

// parts splits an antimeridian-crossing box into its two halves.
func (b BBox) parts() []*geom.Bounds {
	south, north := math.Min(b[1], b[3]), math.Max(b[1], b[3])
	if !b.CrossesAntimeridian() {
		return []*geom.Bounds{geom.NewBounds(geom.XY).Set(b[0], south, b[2], north)}
	}
	return []*geom.Bounds{
		geom.NewBounds(geom.XY).Set(b[0], south, 180, north),
		geom.NewBounds(geom.XY).Set(-180, south, b[2], north),
	}
}

// Overlaps reports whether two boxes intersect, touching edges included.
func (b BBox) Overlaps(other BBox) bool {
	for _, p := range b.parts() {
		for _, q := range other.parts() {
			if p.Overlaps(geom.XY, q) {
				return true
			}
		}
	}
	return false
}

// Union returns the smallest box containing every input, or false for an empty input.
func Union(boxes []BBox) (BBox, bool) {
	if len(boxes) == 0 {
		return BBox{}, false
	}
	u := geom.NewBounds(geom.XY)
	for _, b := range boxes {
		u.Extend(geom.NewMultiPointFlat(geom.XY, []float64{b[0], b[1], b[2], b[3]}))
	}
	return BBox{u.Min(0), u.Min(1), u.Max(0), u.Max(1)}, true
}

// ParseBBox parses "west,south,east,north". Six-value 3D boxes keep their horizontal part.
func ParseBBox(s string) (BBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 && len(parts) != 6 {
		return BBox{}, fmt.Errorf("%w: expected 4 or 6 comma-separated numbers", domain.ErrInvalidBBox)
	}
	vals := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return BBox{}, fmt.Errorf("%w: %q is not a number", domain.ErrInvalidBBox, p)
		}
		vals[i] = v
	}
	b, _ := FromSlice(vals)
	if b.South() < -90 || b.North() > 90 || b.South() > b.North() {
		return BBox{}, fmt.Errorf("%w: latitude out of range", domain.ErrInvalidBBox)
	}
	if b.West() < -180 || b.West() > 180 || b.East() < -180 || b.East() > 180 {
		return BBox{}, fmt.Errorf("%w: longitude out of range", domain.ErrInvalidBBox)
	}
	return b, nil
}

// FromSlice builds a box from a 4-value or 6-value (3D) STAC bbox array.
func FromSlice(v []float64) (BBox, bool) {
	switch len(v) {
	case 4:
		return BBox{v[0], v[1], v[2], v[3]}, true
	case 6:
		return BBox{v[0], v[1], v[3], v[4]}, true
	}
	return BBox{}, false
}
