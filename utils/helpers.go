package utils

import (
	"fmt"
	"strconv"
	"time"
)

// TruncateName shortens name to max runes, ending it with "..." when cut.
func TruncateName(name string, max int) string {
	runes := []rune(name)
	if len(runes) <= max || max <= 3 {
		return name
	}
	return string(runes[:max-3]) + "..."
}

// ParseTimestamp accepts RFC3339 or unix milliseconds, the two forms the
// dashboard date picker sends.
func ParseTimestamp(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	ms, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: use RFC3339 or unix milliseconds", value)
	}
	return time.UnixMilli(ms).UTC(), nil
}
