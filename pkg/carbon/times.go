package carbon

import (
	"fmt"
	"strings"
	"time"
)

// naiveLayouts are the accepted boundary formats without a UTC offset. Naive
// values are interpreted as UTC, never as local time.
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseInstant parses a timestamp string and reports whether it carried an
// explicit UTC offset. Offset-aware values use RFC 3339; naive values use a
// date or date-time form and are interpreted as UTC.
func ParseInstant(s string) (ts time.Time, aware bool, err error) {
	v := strings.TrimSpace(s)
	if t, parseErr := time.Parse(time.RFC3339, v); parseErr == nil {
		return t, true, nil
	}
	for _, layout := range naiveLayouts {
		if t, parseErr := time.Parse(layout, v); parseErr == nil {
			return t, false, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("carbon: unrecognized timestamp %q: %w", s, ErrInvalidInput)
}

// UTCRange parses two range boundaries and normalizes both to UTC. Both must
// be offset-aware or both naive; mixing the two fails with ErrMixedTimezones
// before any cache or network access happens.
func UTCRange(start, end string) (time.Time, time.Time, error) {
	s, startAware, err := ParseInstant(start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	e, endAware, err := ParseInstant(end)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if startAware != endAware {
		return time.Time{}, time.Time{}, ErrMixedTimezones
	}
	return s.UTC(), e.UTC(), nil
}
