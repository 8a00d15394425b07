// Package availability decides whether a reservation fits a salon's calendar,
// its staff schedules and the bookings already on the books.
//
// Everything here is pure: callers load a Day snapshot and the package never
// touches storage, clocks or time zones.
package availability

import (
	"fmt"

	"salonbook/internal/model"
)

// Errors shared with the storage layer so callers can match either with errors.Is.
var (
	ErrInvalidRequest = model.ErrInvalidRequest
	ErrNotFound       = model.ErrNotFound
)

// Reason classifies a rejection.
type Reason string

const (
	ReasonClosed            Reason = "closed"
	ReasonExceedsClosing    Reason = "exceeds_closing_time"
	ReasonStaffDayOff       Reason = "staff_day_off"
	ReasonStartsBeforeShift Reason = "starts_before_shift"
	ReasonEndsAfterShift    Reason = "ends_after_shift"
	ReasonStaffOnBreak      Reason = "staff_on_break"
	ReasonSlotBooked        Reason = "slot_already_booked"
	ReasonNoStaffWorking    Reason = "no_staff_working"
	ReasonFullyBooked       Reason = "fully_booked"
)

// Decision is the outcome of checking one candidate. A rejection is a normal
// result and carries a user-readable Message.
type Decision struct {
	Accepted bool   `json:"accepted"`
	Reason   Reason `json:"reason,omitempty"`
	Message  string `json:"message,omitempty"`

	// Conflict is the existing reservation that blocked a staff-specific request.
	Conflict *model.Reservation `json:"conflict,omitempty"`
	// FreeStaffIDs lists staff able to take a staff-less booking, when any were found.
	FreeStaffIDs []int64 `json:"free_staff_ids,omitempty"`
}

func accepted() Decision {
	return Decision{Accepted: true}
}

func rejected(reason Reason, format string, args ...any) Decision {
	return Decision{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

func (d Decision) String() string {
	if d.Accepted {
		return "accepted"
	}
	return "rejected: " + d.Message
}
