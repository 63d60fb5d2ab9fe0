// Package core provides due date parsing utilities.
//
// Due dates arrive either as full RFC 3339 timestamps or as bare calendar
// dates. A bare date means midnight of that day in the caller's location.
package core

import (
	"errors"
	"strings"
	"time"
)

const dateOnlyLayout = "2006-01-02"

var ErrInvalidDueDate = errors.New("due date must be RFC 3339 or YYYY-MM-DD")

// ParseDueDate converts s into a timestamp.
//
// Examples:
//
//	ParseDueDate("2025-03-10T09:30:00Z", time.UTC) -> 2025-03-10 09:30:00 UTC
//	ParseDueDate("2025-03-10", rome)               -> 2025-03-10 00:00:00 CET
func ParseDueDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidDueDate
	}
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(dateOnlyLayout, s, loc); err == nil {
		return t, nil
	}
	return time.Time{}, ErrInvalidDueDate
}
