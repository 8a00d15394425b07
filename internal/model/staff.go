package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"salonbook/internal/civil"
)

// Staff belongs to exactly one tenant.
type Staff struct {
	ID       int64  `json:"id"`
	TenantID int64  `json:"tenant_id"`
	Name     string `json:"name"`
	// WorkingHours is the legacy free-text "HH:MM-HH:MM" window used when no shift exists.
	WorkingHours string    `json:"working_hours,omitempty"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

var workingHoursPattern = regexp.MustCompile(`^\s*(\d{1,2}:\d{2})\s*-\s*(\d{1,2}:\d{2})\s*$`)

// ParseWorkingHours parses the free-text window. ok is false when the text does not match.
func ParseWorkingHours(s string) (start, end civil.LocalTime, ok bool) {
	m := workingHoursPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, false
	}
	start, err := civil.ParseLocalTime(m[1])
	if err != nil {
		return 0, 0, false
	}
	end, err = civil.ParseLocalTime(m[2])
	if err != nil {
		return 0, 0, false
	}
	return start, end, true
}

// Interval is a half-open [Start, End) span of local time.
type Interval struct {
	Start civil.LocalTime `json:"start"`
	End   civil.LocalTime `json:"end"`
}

// Overlaps uses strict half-open semantics: touching intervals do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start < o.End && o.Start < i.End
}

// Contains reports whether o lies fully within i.
func (i Interval) Contains(o Interval) bool {
	return i.Start <= o.Start && o.End <= i.End
}

func (i Interval) String() string {
	return fmt.Sprintf("%s-%s", i.Start, i.End)
}

// Shift is one staff member's schedule for one calendar date.
type Shift struct {
	ID        int64            `json:"id"`
	StaffID   int64            `json:"staff_id"`
	TenantID  int64            `json:"tenant_id"`
	Date      civil.Date       `json:"date"`
	StartTime *civil.LocalTime `json:"start_time,omitempty"`
	EndTime   *civil.LocalTime `json:"end_time,omitempty"`
	IsOff     bool             `json:"is_off"`
	Breaks    []Interval       `json:"breaks,omitempty"`
}

// HasWindow reports whether both bounds are set.
func (s *Shift) HasWindow() bool {
	return s.StartTime != nil && s.EndTime != nil
}

// FormatBreaks renders breaks as "HH:MM-HH:MM,HH:MM-HH:MM" for storage.
func FormatBreaks(breaks []Interval) string {
	parts := make([]string, 0, len(breaks))
	for _, b := range breaks {
		parts = append(parts, b.String())
	}
	return strings.Join(parts, ",")
}

// ParseBreaks is the inverse of FormatBreaks. Invalid entries are skipped.
func ParseBreaks(s string) []Interval {
	var out []Interval
	for _, part := range strings.Split(s, ",") {
		start, end, ok := ParseWorkingHours(part)
		if !ok || !start.Before(end) {
			continue
		}
		out = append(out, Interval{Start: start, End: end})
	}
	return out
}
