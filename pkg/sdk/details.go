package stacfed

import (
	"github.com/kailas-cloud/stacfed/internal/domain/extent"
	"github.com/kailas-cloud/stacfed/internal/domain/temporal"
)

// Extent is a normalized rectangle safe to draw on a map.
type Extent = extent.Extent

// RecordDetails is the display form of one record's extents.
type RecordDetails struct {
	ID    string
	Title string
	// Extents and Bounds are set when at least one bbox is renderable.
	Extents []Extent
	Bounds  *Extent
	// ExtentMessage replaces the map when no bbox can be drawn.
	ExtentMessage string
	Temporal      string
}

// Details normalizes a record's spatial extents and formats its temporal
// ranges. Problems stay local to the record and are reported as messages.
func Details(rec Record) RecordDetails {
	d := RecordDetails{
		ID:       rec.ID(),
		Title:    rec.Title(),
		Temporal: temporal.FormatRanges(rec.Intervals()),
	}

	view, err := extent.NormalizeAll(rec.BBoxes())
	if err != nil {
		d.ExtentMessage = err.Error()
		return d
	}
	d.Extents = view.Extents
	d.Bounds = &view.Bounds
	return d
}
