package wire

import (
	"fmt"
	"time"
)

// ParseTimestamp parses an RFC3339 wire timestamp, requiring it to carry an
// explicit UTC offset (or "Z"). Naive timestamps (no offset, no "Z") fail
// validation per §4.C.
func ParseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("wire: empty timestamp")
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("wire: timestamp %q is not RFC3339: %w", s, err)
	}
	if _, offset := t.Zone(); offset != 0 {
		return time.Time{}, fmt.Errorf("wire: timestamp %q must be UTC, got offset %ds", s, offset)
	}
	return t.UTC(), nil
}

// ParseOptionalTimestamp is ParseTimestamp for a field that may legitimately
// be absent on the wire (e.g. settled_time before settlement).
func ParseOptionalTimestamp(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := ParseTimestamp(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
