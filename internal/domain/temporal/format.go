package temporal

import "strings"

// Display strings.
const (
	Open           = "Open"
	InvalidDate    = "Invalid Date"
	Undefined      = "Undefined range"
	InvalidRange   = "Invalid range"
	NoTemporalData = "No temporal extent data"
)

// Range is one raw [start, end] pair from a collection's temporal extent.
// A nil element is an open bound.
type Range []*string

// FormatDate renders a timestamp as its UTC calendar date.
func FormatDate(s *string) string {
	if s == nil || *s == "" {
		return Open
	}
	t, err := ParseTime(*s)
	if err != nil {
		return InvalidDate
	}
	return t.Format("2006-01-02")
}

// FormatRange renders one pair. Pairs shorter than two elements are invalid;
// extra elements are ignored.
func FormatRange(r Range) string {
	if len(r) < 2 {
		return InvalidRange
	}
	start, end := FormatDate(r[0]), FormatDate(r[1])
	switch {
	case start == Open && end == Open:
		return Undefined
	case start == Open:
		return "- " + end
	case end == Open:
		return start + " - "
	}
	return start + " - " + end
}

// FormatRanges renders every pair joined by ", ".
func FormatRanges(ranges []Range) string {
	if len(ranges) == 0 {
		return NoTemporalData
	}
	out := make([]string, len(ranges))
	for i, r := range ranges {
		out[i] = FormatRange(r)
	}
	return strings.Join(out, ", ")
}
