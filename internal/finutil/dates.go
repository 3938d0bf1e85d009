package finutil

import (
	"fmt"
	"strings"
	"time"
)

var dateLayouts = []string{
	"02/01/2006",
	time.DateOnly,
	time.RFC3339,
	time.DateTime,
	"2006-01-02T15:04:05",
	"02/01/2006 15:04:05",
}

// ParseDate accepts dd/mm/yyyy first, then ISO dates and timestamps.
func ParseDate(s string) (time.Time, error) {
	clean := strings.TrimSpace(s)
	if clean == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, clean); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// DateOnly drops the clock part of t, keeping its calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Before reports whether a falls on an earlier calendar day than b.
func Before(a, b time.Time) bool {
	return DateOnly(a).Before(DateOnly(b))
}

// After reports whether a falls on a later calendar day than b.
func After(a, b time.Time) bool {
	return DateOnly(a).After(DateOnly(b))
}

// FormatDate prints the calendar day in ISO form.
func FormatDate(t time.Time) string {
	return DateOnly(t).Format(time.DateOnly)
}
