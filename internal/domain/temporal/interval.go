// Package temporal parses datetime intervals for search and formats collection
// temporal extents for display.
package temporal

import (
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/stacfed/internal/domain"
)

// DatetimeHint is appended to datetime validation errors.
const DatetimeHint = "You must provide a datetime range e.g. 2021-02-01T00:00:00Z/.. " +
	"or 2024-06-01T00:00:00/2024-06-30T23:59:59Z"

// Timestamps without a zone are read as UTC.
var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime parses an ISO-8601 timestamp, date or naive datetime in UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// Interval is a time range with optional bounds. A nil bound is open.
type Interval struct {
	Start *time.Time
	End   *time.Time
}

// ParseInterval parses "start/end" where ".." or an empty side is open.
// A single timestamp becomes a closed interval on itself.
func ParseInterval(s string) (Interval, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Interval{}, fmt.Errorf("%w: empty interval. %s", domain.ErrInvalidDatetime, DatetimeHint)
	}

	parts := strings.Split(s, "/")
	switch len(parts) {
	case 1:
		t, err := ParseTime(parts[0])
		if err != nil {
			return Interval{}, fmt.Errorf("%w: %s. %s", domain.ErrInvalidDatetime, s, DatetimeHint)
		}
		return Interval{Start: &t, End: &t}, nil
	case 2:
	default:
		return Interval{}, fmt.Errorf("%w: %s. %s", domain.ErrInvalidDatetime, s, DatetimeHint)
	}

	var iv Interval
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || p == ".." {
			continue
		}
		t, err := ParseTime(p)
		if err != nil {
			return Interval{}, fmt.Errorf("%w: %s. %s", domain.ErrInvalidDatetime, s, DatetimeHint)
		}
		if i == 0 {
			iv.Start = &t
		} else {
			iv.End = &t
		}
	}

	if iv.Start == nil && iv.End == nil {
		return Interval{}, fmt.Errorf("%w: double open-ended intervals are not allowed", domain.ErrInvalidDatetime)
	}
	if iv.Start != nil && iv.End != nil && iv.End.Before(*iv.Start) {
		return Interval{}, fmt.Errorf("%w: end is before start", domain.ErrInvalidDatetime)
	}
	return iv, nil
}

// FromStrings builds an interval from a collection's [start, end] pair.
// Nil or unparseable bounds are treated as open.
func FromStrings(start, end *string) Interval {
	var iv Interval
	if start != nil {
		if t, err := ParseTime(*start); err == nil {
			iv.Start = &t
		}
	}
	if end != nil {
		if t, err := ParseTime(*end); err == nil {
			iv.End = &t
		}
	}
	return iv
}

// Overlaps reports whether the intervals share any instant. Open bounds extend to infinity.
func (i Interval) Overlaps(o Interval) bool {
	if i.End != nil && o.Start != nil && o.Start.After(*i.End) {
		return false
	}
	if o.End != nil && i.Start != nil && i.Start.After(*o.End) {
		return false
	}
	return true
}

// String renders "start/end" in RFC 3339 with ".." for open bounds.
func (i Interval) String() string {
	return bound(i.Start) + "/" + bound(i.End)
}

func bound(t *time.Time) string {
	if t == nil {
		return ".."
	}
	return t.UTC().Format(time.RFC3339)
}
