package schema

import (
	"fmt"
	"strings"
	"time"

	"tvetl/internal/ddl"
)

var timeLayouts = []string{"15:04", "15:04:05"}

var timestampLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05"}

// IsTemporal reports whether logical is a date, time or timestamp type.
func IsTemporal(logical string) bool {
	switch logical {
	case ddl.TypeDate, ddl.TypeTime, ddl.TypeTimestamp:
		return true
	}
	return false
}

// ParseTemporal parses the textual form of a date ("2006-01-02"), a time of
// day ("15:04" or "15:04:05") or a timestamp (RFC 3339). Times of day are
// returned on 0000-01-01 UTC.
func ParseTemporal(logical, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var layouts []string
	switch logical {
	case ddl.TypeDate:
		layouts = []string{"2006-01-02"}
	case ddl.TypeTime:
		layouts = timeLayouts
	case ddl.TypeTimestamp:
		layouts = timestampLayouts
	default:
		return time.Time{}, fmt.Errorf("schema: %q is not a temporal type", logical)
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("schema: cannot parse %q as %s", s, logical)
}

// TemporalValue converts a cell bound for a temporal column into a value a
// driver accepts. nil and "" become nil; time.Time passes through.
func TemporalValue(logical string, v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return x, nil
	case string:
		if strings.TrimSpace(x) == "" {
			return nil, nil
		}
		return ParseTemporal(logical, x)
	default:
		return nil, fmt.Errorf("schema: %T is not a %s value", v, logical)
	}
}
