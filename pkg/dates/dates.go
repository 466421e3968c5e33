// Package dates parses the calendar dates and timestamps accepted by the API
// and the CSV importer.
package dates

import (
	"fmt"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

var dateLayouts = []string{DateLayout, time.RFC3339, "2006-01-02 15:04:05", "01/02/2006"}

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	DateLayout,
}

// ParseDate parses s as a calendar date and returns midnight UTC of that day.
func ParseDate(s string) (time.Time, error) {
	t, err := parse(s, dateLayouts)
	if err != nil {
		return time.Time{}, err
	}
	return StartOfDay(t), nil
}

// ParseDateTime parses s as a timestamp. Layouts without a zone are UTC.
func ParseDateTime(s string) (time.Time, error) {
	t, err := parse(s, dateTimeLayouts)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// Optional applies parse to a non-blank *s; nil and blank give nil.
func Optional(s *string, parse func(string) (time.Time, error)) (*time.Time, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	t, err := parse(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// StartOfDay truncates t to midnight in UTC.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func parse(s string, layouts []string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}
