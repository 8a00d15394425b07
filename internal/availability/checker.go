package availability

import (
	"context"
	"fmt"

	"salonbook/internal/civil"
	"salonbook/internal/model"
)

// Day is everything needed to judge candidates on one date for one tenant.
// Reservations should hold only the confirmed bookings of that date; others
// are ignored.
type Day struct {
	Tenant       *model.Tenant
	Calendar     model.Calendar
	Date         civil.Date
	Staff        []model.Staff
	Shifts       map[int64]*model.Shift
	Reservations []model.Reservation
}

// NewDay decodes the tenant calendar and indexes shifts by staff.
func NewDay(ctx context.Context, tenant *model.Tenant, date civil.Date, staff []model.Staff, shifts []model.Shift, reservations []model.Reservation) *Day {
	byStaff := make(map[int64]*model.Shift, len(shifts))
	for i := range shifts {
		if shifts[i].Date == date {
			byStaff[shifts[i].StaffID] = &shifts[i]
		}
	}
	return &Day{
		Tenant:       tenant,
		Calendar:     tenant.Calendar(ctx),
		Date:         date,
		Staff:        staff,
		Shifts:       byStaff,
		Reservations: reservations,
	}
}

// Candidate is a proposed reservation on the Day's date.
type Candidate struct {
	Start    civil.LocalTime
	Duration int // minutes
	StaffID  *int64
}

func (c Candidate) interval() model.Interval {
	return model.Interval{Start: c.Start, End: c.Start.Add(c.Duration)}
}

func (d *Day) staff(id int64) *model.Staff {
	for i := range d.Staff {
		if d.Staff[i].ID == id {
			return &d.Staff[i]
		}
	}
	return nil
}

// OpenWindow resolves the business window of the Day.
func (d *Day) OpenWindow() OpenWindow {
	return ResolveOpenWindow(d.Calendar, d.Date)
}

// StaffWindow resolves one staff member's window on the Day.
func (d *Day) StaffWindow(s *model.Staff) StaffWindow {
	return ResolveStaffWindow(s, d.Shifts[s.ID])
}

// booked yields the confirmed reservations of the Day overlapping span.
func (d *Day) booked(span model.Interval, keep func(*model.Reservation) bool) []*model.Reservation {
	var out []*model.Reservation
	for i := range d.Reservations {
		r := &d.Reservations[i]
		if r.Status != model.StatusConfirmed || r.Start.Date != d.Date {
			continue
		}
		if keep != nil && !keep(r) {
			continue
		}
		if r.Interval().Overlaps(span) {
			out = append(out, r)
		}
	}
	return out
}

func (d *Day) validate(c Candidate) error {
	if c.Duration <= 0 {
		return fmt.Errorf("%w: duration must be positive", ErrInvalidRequest)
	}
	if !c.Start.Valid() || c.Start == civil.EndOfDay {
		return fmt.Errorf("%w: start %s", ErrInvalidRequest, c.Start)
	}
	if c.StaffID != nil {
		s := d.staff(*c.StaffID)
		if s == nil || s.TenantID != d.Tenant.ID {
			return fmt.Errorf("%w: staff %d", ErrNotFound, *c.StaffID)
		}
	}
	return nil
}

// CheckCandidate decides whether c can be booked. A returned error means the
// question itself was malformed; a rejection is reported in the Decision.
func CheckCandidate(d *Day, c Candidate) (Decision, error) {
	if err := d.validate(c); err != nil {
		return Decision{}, err
	}

	window := d.OpenWindow()
	if !window.IsOpen {
		return rejected(ReasonClosed, "closed: %s", window.Reason), nil
	}
	span := c.interval()
	if span.End.After(window.Close) {
		return rejected(ReasonExceedsClosing, "exceeds closing time (closes at %s)", window.Close), nil
	}

	if c.StaffID != nil {
		return d.checkStaff(d.staff(*c.StaffID), span), nil
	}
	return d.checkAnyStaff(span), nil
}

func (d *Day) checkStaff(s *model.Staff, span model.Interval) Decision {
	sw := d.StaffWindow(s)
	if !sw.Available {
		return rejected(ReasonStaffDayOff, "staff unavailable: %s", sw.Reason)
	}
	if span.Start.Before(sw.Start) {
		return rejected(ReasonStartsBeforeShift, "outside shift: starts before shift start %s", sw.Start)
	}
	if span.End.After(sw.End) {
		return rejected(ReasonEndsAfterShift, "outside shift: ends at %s after shift end %s", span.End, sw.End)
	}
	if b := sw.breakAt(span); b != nil {
		return rejected(ReasonStaffOnBreak, "staff on break %s", b)
	}

	conflicts := d.booked(span, func(r *model.Reservation) bool { return r.HasStaff(s.ID) })
	if len(conflicts) > 0 {
		dec := rejected(ReasonSlotBooked, "time slot already booked (existing reservation at %s)", conflicts[0].Start.Time)
		dec.Conflict = conflicts[0]
		return dec
	}
	return accepted()
}

// checkAnyStaff handles a request without a staff preference. Staff whose
// window fits the span are candidates; overlapping staff-less bookings each
// claim one free candidate. Only when no candidate is left does the tenant's
// concurrency cap decide.
func (d *Day) checkAnyStaff(span model.Interval) Decision {
	var free []int64
	working := 0
	for i := range d.Staff {
		s := &d.Staff[i]
		if s.TenantID != d.Tenant.ID || !d.StaffWindow(s).Fits(span) {
			continue
		}
		working++
		busy := d.booked(span, func(r *model.Reservation) bool { return r.HasStaff(s.ID) })
		if len(busy) == 0 {
			free = append(free, s.ID)
		}
	}
	if working == 0 {
		return rejected(ReasonNoStaffWorking, "no staff working this time slot")
	}

	unassigned := d.booked(span, func(r *model.Reservation) bool { return r.StaffID == nil })
	if len(free) > len(unassigned) {
		dec := accepted()
		dec.FreeStaffIDs = free
		return dec
	}

	overlapping := d.booked(span, nil)
	if len(overlapping) >= d.Tenant.MaxConcurrent() {
		return rejected(ReasonFullyBooked, "fully booked for this time slot")
	}
	return accepted()
}
