package extent

import (
	"math"

	"github.com/twpayne/go-geom"
)

// Extent is a normalized rectangle: South <= North, span below 360 degrees,
// and never zero-area.
type Extent struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

// View is the display frame for one record: every renderable extent plus a
// padded union that fits them all.
type View struct {
	Extents []Extent `json:"extents"`
	Bounds  Extent   `json:"bounds"`
	Dropped int      `json:"dropped"`
}

// Normalize canonicalizes one box for rendering. It returns false when the
// longitude span is 360 degrees or more.
//
// A west > east box crossing more than 180 degrees is shifted (west -= 360) to
// take the shorter path over the date line; shorter crossings are kept as given.
func Normalize(b BBox) (Extent, bool) {
	west, south, east, north := b.West(), b.South(), b.East(), b.North()

	if south > north {
		south, north = north, south
	}

	if west > east {
		if west-east >= 360 {
			return Extent{}, false
		}
		if west-east > 180 {
			west -= 360
		}
	}

	if math.Abs(north-south) < Epsilon {
		north += Epsilon
		south -= Epsilon
	}
	if math.Abs(east-west) < Epsilon {
		east += Epsilon
		west -= Epsilon
	}

	return Extent{West: west, South: south, East: east, North: north}, true
}

// NormalizeAll normalizes every box and frames the survivors in a union padded by
// 10% of each dimension and clamped to the legal lat/lon range.
// It returns ErrNoRenderableExtent when nothing survives.
func NormalizeAll(boxes []BBox) (View, error) {
	view := View{Extents: make([]Extent, 0, len(boxes))}
	union := geom.NewBounds(geom.XY)

	for _, b := range boxes {
		e, ok := Normalize(b)
		if !ok {
			view.Dropped++
			continue
		}
		view.Extents = append(view.Extents, e)
		union.Extend(geom.NewMultiPointFlat(geom.XY, []float64{e.West, e.South, e.East, e.North}))
	}

	if len(view.Extents) == 0 {
		return view, ErrNoRenderableExtent
	}

	latPad := (union.Max(1) - union.Min(1)) * padRatio
	lonPad := (union.Max(0) - union.Min(0)) * padRatio
	view.Bounds = Extent{
		West:  math.Max(-180, union.Min(0)-lonPad),
		South: math.Max(-90, union.Min(1)-latPad),
		East:  math.Min(180, union.Max(0)+lonPad),
		North: math.Min(90, union.Max(1)+latPad),
	}
	return view, nil
}
