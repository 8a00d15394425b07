package availability

import (
	"salonbook/internal/civil"
	"salonbook/internal/model"
)

// StaffWindow is a staff member's working span for one date.
type StaffWindow struct {
	Available bool
	Start     civil.LocalTime
	End       civil.LocalTime
	Breaks    []model.Interval
	Reason    string
}

// Interval returns the working span.
func (w StaffWindow) Interval() model.Interval {
	return model.Interval{Start: w.Start, End: w.End}
}

// Fits reports whether span lies inside the window and misses every break.
func (w StaffWindow) Fits(span model.Interval) bool {
	if !w.Available || !w.Interval().Contains(span) {
		return false
	}
	return w.breakAt(span) == nil
}

func (w StaffWindow) breakAt(span model.Interval) *model.Interval {
	for i := range w.Breaks {
		if w.Breaks[i].Overlaps(span) {
			return &w.Breaks[i]
		}
	}
	return nil
}

// ResolveStaffWindow picks the window from the date's shift when there is one,
// then from the free-text working hours, and otherwise treats the whole day
// as workable. A day-off shift always wins.
func ResolveStaffWindow(staff *model.Staff, shift *model.Shift) StaffWindow {
	if !staff.IsActive {
		return StaffWindow{Reason: "inactive"}
	}
	if shift != nil {
		if shift.IsOff {
			return StaffWindow{Reason: "day off"}
		}
		if shift.HasWindow() && shift.StartTime.Before(*shift.EndTime) {
			return StaffWindow{
				Available: true,
				Start:     *shift.StartTime,
				End:       *shift.EndTime,
				Breaks:    shift.Breaks,
			}
		}
	}
	if start, end, ok := model.ParseWorkingHours(staff.WorkingHours); ok && start.Before(end) {
		return StaffWindow{Available: true, Start: start, End: end}
	}
	return StaffWindow{Available: true, Start: civil.Midnight, End: civil.EndOfDay}
}
