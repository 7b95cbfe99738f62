// Package day provides UTC calendar-day helpers. Day keys are always
// YYYY-MM-DD in UTC, regardless of the local timezone.
package day

import (
	"errors"
	"fmt"
	"time"
)

// Layout is the canonical day-key format.
const Layout = "2006-01-02"

// ErrInvalidKey is returned for strings that are not YYYY-MM-DD dates.
var ErrInvalidKey = errors.New("invalid day key")

// Key returns the UTC calendar date of t.
func Key(t time.Time) string {
	return t.UTC().Format(Layout)
}

// Parse returns midnight UTC at the start of the given day.
func Parse(key string) (time.Time, error) {
	t, err := time.ParseInLocation(Layout, key, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return t, nil
}

// EndOfDay returns 23:59:59.999 UTC of the given day. The last credited
// millisecond of a day is inclusive, so callers add one millisecond to get
// the start of the next day.
func EndOfDay(key string) (time.Time, error) {
	start, err := Parse(key)
	if err != nil {
		return time.Time{}, err
	}
	return start.Add(24*time.Hour - time.Millisecond), nil
}

// Next returns the day key one UTC calendar day after key.
func Next(key string) (string, error) {
	start, err := Parse(key)
	if err != nil {
		return "", err
	}
	return start.AddDate(0, 0, 1).Format(Layout), nil
}

// Cutoff returns the key of the earliest day still inside a window of
// days ending on the day of now. A window of 1 is just today.
func Cutoff(now time.Time, days int) string {
	if days < 1 {
		days = 1
	}
	return Key(now.UTC().AddDate(0, 0, -(days - 1)))
}
