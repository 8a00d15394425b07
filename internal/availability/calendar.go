package availability

import (
	"strconv"
	"strings"

	"salonbook/internal/civil"
	"salonbook/internal/model"
)

// Business hours used when a tenant defines nothing usable.
var (
	DefaultOpen  = civil.NewLocalTime(10, 0)
	DefaultClose = civil.NewLocalTime(19, 0)
)

// OpenWindow is the resolved business day. Reason is set only when closed.
type OpenWindow struct {
	IsOpen bool
	Open   civil.LocalTime
	Close  civil.LocalTime
	Reason string
}

// ResolveOpenWindow applies, in order: one-off closures, weekly closures,
// per-date special hours, then the weekday entry, the "default" entry and the
// built-in 10:00-19:00.
func ResolveOpenWindow(cal model.Calendar, date civil.Date) OpenWindow {
	if _, ok := cal.TemporaryClosedDays[date]; ok {
		return OpenWindow{Reason: "temporary closure"}
	}
	weekday := date.Weekday()
	if _, ok := cal.ClosedDays[weekday]; ok {
		return OpenWindow{Reason: "weekly closure (" + weekday.String() + ")"}
	}

	entry, found := cal.SpecialBusinessHours[date]
	if !found {
		entry, found = lookupWeekday(cal.BusinessHours, int(weekday), strings.ToLower(weekday.String()))
	}
	if found && entry.Closed() {
		return OpenWindow{Reason: "not operating this day"}
	}

	open, close := DefaultOpen, DefaultClose
	if found {
		open, close = hoursOrDefault(entry)
	}
	return OpenWindow{IsOpen: true, Open: open, Close: close}
}

func lookupWeekday(hours map[string]model.DayHours, weekday int, name string) (model.DayHours, bool) {
	for _, key := range []string{strconv.Itoa(weekday), name, "default"} {
		if h, ok := hours[key]; ok {
			return h, true
		}
	}
	return model.DayHours{}, false
}

// hoursOrDefault parses an entry, substituting the default for a missing or
// unparseable bound and for an inverted window.
func hoursOrDefault(h model.DayHours) (civil.LocalTime, civil.LocalTime) {
	open, err := civil.ParseLocalTime(h.Open)
	if err != nil {
		open = DefaultOpen
	}
	close, err := civil.ParseLocalTime(h.Close)
	if err != nil {
		close = DefaultClose
	}
	if !open.Before(close) {
		return DefaultOpen, DefaultClose
	}
	return open, close
}
