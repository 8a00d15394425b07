// Package civil provides tenant-local wall-clock values.
//
// A Date or LocalTime carries no time zone. Conversion to and from time.Time
// happens only at the edges (HTTP, Telegram, database) through In and DateTimeOf.
package civil

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// MinutesPerDay is the exclusive upper bound of a day, representable as "24:00".
	MinutesPerDay = 24 * 60

	dateLayout = "2006-01-02"
)

// LocalTime is a wall-clock time expressed in minutes since local midnight.
// The valid range is [0, 1440]; 1440 stands for end of day ("24:00").
type LocalTime int

// Midnight and EndOfDay bound a full working day.
const (
	Midnight LocalTime = 0
	EndOfDay LocalTime = MinutesPerDay
)

// NewLocalTime builds a LocalTime from hour and minute.
func NewLocalTime(hour, minute int) LocalTime {
	return LocalTime(hour*60 + minute)
}

// ParseLocalTime parses "HH:MM" or "HH:MM:SS". Seconds are truncated.
func ParseLocalTime(s string) (LocalTime, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || len(parts[0]) == 0 || len(parts[0]) > 2 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	if len(parts) == 3 {
		sec, err := strconv.Atoi(parts[2])
		if err != nil || sec < 0 || sec > 59 {
			return 0, fmt.Errorf("invalid second in %q", s)
		}
	}
	if minute < 0 || minute > 59 || hour < 0 || hour > 24 || (hour == 24 && minute != 0) {
		return 0, fmt.Errorf("time %q out of range", s)
	}
	return NewLocalTime(hour, minute), nil
}

// MustParseLocalTime is ParseLocalTime for constants and tests.
func MustParseLocalTime(s string) LocalTime {
	t, err := ParseLocalTime(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t LocalTime) Hour() int   { return int(t) / 60 }
func (t LocalTime) Minute() int { return int(t) % 60 }

// Minutes returns minutes since midnight.
func (t LocalTime) Minutes() int { return int(t) }

// Add returns t shifted by the given number of minutes. The result may exceed EndOfDay.
func (t LocalTime) Add(minutes int) LocalTime { return t + LocalTime(minutes) }

func (t LocalTime) Before(u LocalTime) bool { return t < u }
func (t LocalTime) After(u LocalTime) bool  { return t > u }

// Valid reports whether t lies within a single day.
func (t LocalTime) Valid() bool { return t >= Midnight && t <= EndOfDay }

// String formats as "HH:MM". Values beyond a day keep counting hours ("25:15").
func (t LocalTime) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

func (t LocalTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *LocalTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseLocalTime(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Date is a calendar day in the tenant's local calendar.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses "YYYY-MM-DD".
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return DateOf(t), nil
}

// MustParseDate is ParseDate for constants and tests.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) IsZero() bool { return d == Date{} }

// String formats as ISO "YYYY-MM-DD".
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

func (d Date) midnightUTC() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// Weekday returns the day of week (Sunday = 0).
func (d Date) Weekday() time.Weekday {
	return d.midnightUTC().Weekday()
}

// AddDays returns the date n days later (n may be negative).
func (d Date) AddDays(n int) Date {
	return DateOf(d.midnightUTC().AddDate(0, 0, n))
}

func (d Date) Before(o Date) bool { return d.midnightUTC().Before(o.midnightUTC()) }
func (d Date) After(o Date) bool  { return d.midnightUTC().After(o.midnightUTC()) }

// DaysSince returns the number of days from o to d.
func (d Date) DaysSince(o Date) int {
	return int(d.midnightUTC().Sub(o.midnightUTC()).Hours() / 24)
}

// In returns the instant of local midnight of d in loc.
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value stores a Date as ISO text.
func (d Date) Value() (driver.Value, error) {
	return d.String(), nil
}

// Scan accepts ISO text, []byte or time.Time (the calendar day of the value as stored).
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*d = DateOf(v)
		return nil
	case string:
		return d.scanString(v)
	case []byte:
		return d.scanString(string(v))
	default:
		return fmt.Errorf("civil.Date: cannot scan %T", src)
	}
}

func (d *Date) scanString(s string) error {
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DateTime is a local date plus a local wall-clock time.
type DateTime struct {
	Date Date
	Time LocalTime
}

// ParseDateTime parses "YYYY-MM-DDTHH:MM[:SS]" (a space separator is accepted too).
// A trailing zone designator is rejected: callers must convert to local time first.
func ParseDateTime(s string) (DateTime, error) {
	s = strings.TrimSpace(s)
	sep := strings.IndexAny(s, "T ")
	if sep < 0 {
		return DateTime{}, fmt.Errorf("invalid datetime %q: expected YYYY-MM-DDTHH:MM:SS", s)
	}
	d, err := ParseDate(s[:sep])
	if err != nil {
		return DateTime{}, err
	}
	clock := s[sep+1:]
	if strings.ContainsAny(clock, "Z+") || strings.Count(clock, "-") > 0 {
		return DateTime{}, fmt.Errorf("invalid datetime %q: zone offsets are not accepted", s)
	}
	t, err := ParseLocalTime(clock)
	if err != nil {
		return DateTime{}, err
	}
	if t == EndOfDay {
		return DateTime{}, fmt.Errorf("invalid datetime %q: 24:00 is not a start time", s)
	}
	return DateTime{Date: d, Time: t}, nil
}

// DateTimeOf returns the wall clock of t in t's own location.
func DateTimeOf(t time.Time) DateTime {
	return DateTime{Date: DateOf(t), Time: NewLocalTime(t.Hour(), t.Minute())}
}

// In returns the instant of dt in loc.
func (dt DateTime) In(loc *time.Location) time.Time {
	return time.Date(dt.Date.Year, dt.Date.Month, dt.Date.Day, dt.Time.Hour(), dt.Time.Minute(), 0, 0, loc)
}

func (dt DateTime) IsZero() bool { return dt.Date.IsZero() && dt.Time == 0 }

func (dt DateTime) Before(o DateTime) bool {
	if dt.Date != o.Date {
		return dt.Date.Before(o.Date)
	}
	return dt.Time < o.Time
}

// String formats as "YYYY-MM-DDTHH:MM:00".
func (dt DateTime) String() string {
	return dt.Date.String() + "T" + dt.Time.String() + ":00"
}

func (dt DateTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(dt.String())
}

func (dt *DateTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDateTime(s)
	if err != nil {
		return err
	}
	*dt = parsed
	return nil
}

// Value stores a DateTime as "YYYY-MM-DD HH:MM:00" text, which sorts chronologically.
func (dt DateTime) Value() (driver.Value, error) {
	return dt.Date.String() + " " + dt.Time.String() + ":00", nil
}

// Scan accepts text or a time.Time whose wall clock is taken as-is.
func (dt *DateTime) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*dt = DateTimeOf(v)
		return nil
	case string:
		return dt.scanString(v)
	case []byte:
		return dt.scanString(string(v))
	default:
		return fmt.Errorf("civil.DateTime: cannot scan %T", src)
	}
}

func (dt *DateTime) scanString(s string) error {
	// sqlite may hand back RFC3339 text for DATETIME columns.
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		*dt = DateTimeOf(t)
		return nil
	}
	if len(s) > len("2006-01-02 15:04:05") {
		s = s[:len("2006-01-02 15:04:05")]
	}
	parsed, err := ParseDateTime(s)
	if err != nil {
		return err
	}
	*dt = parsed
	return nil
}
