package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"salonbook/internal/availability"
	"salonbook/internal/civil"
	"salonbook/internal/events"
	"salonbook/internal/metrics"
	"salonbook/internal/model"
	"salonbook/internal/store"
)

var transitionEvents = map[model.ReservationStatus]string{
	model.StatusConfirmed: events.ReservationConfirmed,
	model.StatusCancelled: events.ReservationCancelled,
	model.StatusCompleted: events.ReservationCompleted,
}

// Tenants lists the active tenants.
func (s *Service) Tenants(ctx context.Context) ([]model.Tenant, error) {
	tenants, err := s.store.ListTenants(ctx)
	if err != nil {
		return nil, s.storeErr(ctx, "list_tenants", err)
	}
	return tenants, nil
}

// Reservation loads one reservation of a tenant.
func (s *Service) Reservation(ctx context.Context, code string, id int64) (*model.Reservation, error) {
	tenant, err := s.Tenant(ctx, code)
	if err != nil {
		return nil, err
	}
	r, err := s.store.Reservation(ctx, tenant.ID, id)
	if err != nil {
		return nil, s.storeErr(ctx, "reservation", err)
	}
	return r, nil
}

// ListReservations returns reservations of a tenant. The filter's TenantID is overwritten.
func (s *Service) ListReservations(ctx context.Context, code string, f store.ReservationFilter) ([]model.Reservation, error) {
	tenant, err := s.Tenant(ctx, code)
	if err != nil {
		return nil, err
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", model.ErrInvalidRequest, f.Status)
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return nil, fmt.Errorf("%w: date range is inverted", model.ErrInvalidRequest)
	}
	f.TenantID = tenant.ID
	list, err := s.store.Reservations(ctx, f)
	if err != nil {
		return nil, s.storeErr(ctx, "reservations", err)
	}
	return list, nil
}

// SetStatus moves a reservation along its lifecycle.
func (s *Service) SetStatus(ctx context.Context, code string, id int64, to model.ReservationStatus) (*model.Reservation, error) {
	tenant, err := s.Tenant(ctx, code)
	if err != nil {
		return nil, err
	}
	r, err := s.store.Reservation(ctx, tenant.ID, id)
	if err != nil {
		return nil, s.storeErr(ctx, "reservation", err)
	}
	return s.transition(ctx, tenant, r, to)
}

func (s *Service) Confirm(ctx context.Context, code string, id int64) (*model.Reservation, error) {
	return s.SetStatus(ctx, code, id, model.StatusConfirmed)
}

func (s *Service) Cancel(ctx context.Context, code string, id int64) (*model.Reservation, error) {
	return s.SetStatus(ctx, code, id, model.StatusCancelled)
}

func (s *Service) Complete(ctx context.Context, code string, id int64) (*model.Reservation, error) {
	return s.SetStatus(ctx, code, id, model.StatusCompleted)
}

// CancelForCustomer cancels a reservation only if it belongs to the given
// Telegram user. Someone else's reservation reads as not found.
func (s *Service) CancelForCustomer(ctx context.Context, code string, id, telegramID int64) (*model.Reservation, error) {
	tenant, err := s.Tenant(ctx, code)
	if err != nil {
		return nil, err
	}
	r, err := s.store.Reservation(ctx, tenant.ID, id)
	if err != nil {
		return nil, s.storeErr(ctx, "reservation", err)
	}
	if telegramID == 0 || r.CustomerTelegramID != telegramID {
		return nil, fmt.Errorf("%w: reservation %d", model.ErrNotFound, id)
	}
	return s.transition(ctx, tenant, r, model.StatusCancelled)
}

// RejectedError reports a confirmation refused because the reservation no
// longer fits its day.
type RejectedError struct {
	Decision availability.Decision
}

func (e *RejectedError) Error() string {
	return "reservation cannot be confirmed: " + e.Decision.Message
}

func (s *Service) transition(ctx context.Context, tenant *model.Tenant, r *model.Reservation, to model.ReservationStatus) (*model.Reservation, error) {
	if !model.CanTransition(r.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", model.ErrInvalidTransition, r.Status, to)
	}

	var err error
	if to == model.StatusConfirmed {
		err = s.confirmInDayLock(ctx, tenant, r)
	} else {
		err = staleStatus(r, s.store.UpdateReservationStatus(ctx, tenant.ID, r.ID, r.Status, to))
	}
	var rejected *RejectedError
	switch {
	case errors.As(err, &rejected):
		metrics.IncBookingRejected(string(rejected.Decision.Reason))
		s.log(ctx).Info().
			Str("tenant", tenant.Code).
			Int64("reservation_id", r.ID).
			Str("reason", string(rejected.Decision.Reason)).
			Msg("confirmation rejected")
		return nil, err
	case errors.Is(err, ErrPersistence), errors.Is(err, model.ErrInvalidTransition):
		return nil, err
	case err != nil:
		return nil, s.storeErr(ctx, "update_status", err)
	}

	from := r.Status
	r.Status = to
	metrics.IncStatusChanged(string(to))
	s.log(ctx).Info().
		Str("tenant", tenant.Code).
		Int64("reservation_id", r.ID).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("reservation status changed")
	s.publish(ctx, transitionEvents[to], tenant, r)
	return r, nil
}

// confirmInDayLock runs the same check as Book against the day's confirmed
// reservations and confirms r only when it is accepted.
func (s *Service) confirmInDayLock(ctx context.Context, tenant *model.Tenant, r *model.Reservation) error {
	day, err := s.day(ctx, tenant, r.Start.Date, nil)
	if err != nil {
		return err
	}
	candidate := availability.Candidate{Start: r.Start.Time, Duration: r.EffectiveDuration(), StaffID: r.StaffID}

	return s.store.InDayLock(ctx, tenant.ID, r.Start.Date, func(tx store.DayTx) error {
		existing, err := tx.ConfirmedReservations(ctx)
		if err != nil {
			return err
		}
		day.Reservations = existing
		dec, err := availability.CheckCandidate(day, candidate)
		if err != nil {
			return err
		}
		if !dec.Accepted {
			return &RejectedError{Decision: dec}
		}
		return staleStatus(r, tx.UpdateStatus(ctx, r.ID, r.Status, model.StatusConfirmed))
	})
}

// staleStatus turns a missed conditional update into ErrInvalidTransition:
// someone else moved the reservation first.
func staleStatus(r *model.Reservation, err error) error {
	if errors.Is(err, model.ErrNotFound) {
		return fmt.Errorf("%w: reservation %d changed concurrently", model.ErrInvalidTransition, r.ID)
	}
	return err
}

// Customer finds or registers the customer a chat user books as.
func (s *Service) Customer(ctx context.Context, code string, c model.Customer) (*model.Customer, error) {
	tenant, err := s.Tenant(ctx, code)
	if err != nil {
		return nil, err
	}
	c.TenantID = tenant.ID
	if err := s.store.FindOrCreateCustomer(ctx, &c); err != nil {
		return nil, s.storeErr(ctx, "find_or_create_customer", err)
	}
	return &c, nil
}

// UpcomingReservations lists a customer's confirmed reservations from today on.
func (s *Service) UpcomingReservations(ctx context.Context, code string, customerID int64) ([]model.Reservation, error) {
	tenant, err := s.Tenant(ctx, code)
	if err != nil {
		return nil, err
	}
	today := civil.DateOf(s.now().In(tenant.Location()))
	list, err := s.store.Reservations(ctx, store.ReservationFilter{
		TenantID:   tenant.ID,
		From:       today,
		Status:     model.StatusConfirmed,
		CustomerID: &customerID,
	})
	if err != nil {
		return nil, s.storeErr(ctx, "reservations", err)
	}
	return list, nil
}

// Shifts returns the shifts recorded for a date.
func (s *Service) Shifts(ctx context.Context, code string, date civil.Date) ([]model.Shift, error) {
	tenant, err := s.Tenant(ctx, code)
	if err != nil {
		return nil, err
	}
	shifts, err := s.store.Shifts(ctx, tenant.ID, date)
	if err != nil {
		return nil, s.storeErr(ctx, "shifts", err)
	}
	return shifts, nil
}

// UpsertShifts validates and stores per-date shifts. The batch is all or nothing.
func (s *Service) UpsertShifts(ctx context.Context, code string, shifts []model.Shift) error {
	tenant, err := s.Tenant(ctx, code)
	if err != nil {
		return err
	}
	if len(shifts) == 0 {
		return fmt.Errorf("%w: no shifts given", model.ErrInvalidRequest)
	}
	for i := range shifts {
		if err := validateShift(&shifts[i]); err != nil {
			return fmt.Errorf("shift %d: %w", i, err)
		}
		shifts[i].TenantID = tenant.ID
	}
	if err := s.store.UpsertShifts(ctx, tenant.ID, shifts); err != nil {
		return s.storeErr(ctx, "upsert_shifts", err)
	}
	s.log(ctx).Info().Str("tenant", tenant.Code).Int("count", len(shifts)).Msg("shifts updated")
	return nil
}

func validateShift(sh *model.Shift) error {
	if sh.StaffID == 0 {
		return fmt.Errorf("%w: staff_id is required", model.ErrInvalidRequest)
	}
	if sh.Date.IsZero() {
		return fmt.Errorf("%w: date is required", model.ErrInvalidRequest)
	}
	if (sh.StartTime == nil) != (sh.EndTime == nil) {
		return fmt.Errorf("%w: start_time and end_time must be given together", model.ErrInvalidRequest)
	}
	if sh.IsOff {
		sh.Breaks = nil
		return nil
	}
	if !sh.HasWindow() {
		if len(sh.Breaks) > 0 {
			return fmt.Errorf("%w: breaks need a shift window", model.ErrInvalidRequest)
		}
		return nil
	}
	window := model.Interval{Start: *sh.StartTime, End: *sh.EndTime}
	if !window.Start.Valid() || !window.End.Valid() || !window.Start.Before(window.End) {
		return fmt.Errorf("%w: invalid shift window %s", model.ErrInvalidRequest, window)
	}
	for _, b := range sh.Breaks {
		if !b.Start.Before(b.End) || !window.Contains(b) {
			return fmt.Errorf("%w: break %s outside shift %s", model.ErrInvalidRequest, b, window)
		}
	}
	return nil
}

// CalendarSettings is the editable form of a tenant's calendar.
type CalendarSettings struct {
	MaxConcurrentReservations int                       `json:"max_concurrent_reservations,omitempty"`
	BusinessHours             map[string]model.DayHours `json:"business_hours"`
	ClosedDays                []int                     `json:"closed_days"`
	TemporaryClosedDays       []string                  `json:"temporary_closed_days"`
	SpecialBusinessHours      map[string]model.DayHours `json:"special_business_hours"`
}

// Calendar returns the stored calendar settings of a tenant. Malformed parts come back empty.
func (s *Service) Calendar(ctx context.Context, code string) (CalendarSettings, error) {
	tenant, err := s.Tenant(ctx, code)
	if err != nil {
		return CalendarSettings{}, err
	}
	cal := tenant.Calendar(ctx)
	out := CalendarSettings{
		MaxConcurrentReservations: tenant.MaxConcurrent(),
		BusinessHours:             cal.BusinessHours,
		ClosedDays:                []int{},
		TemporaryClosedDays:       []string{},
		SpecialBusinessHours:      make(map[string]model.DayHours, len(cal.SpecialBusinessHours)),
	}
	for d := range cal.ClosedDays {
		out.ClosedDays = append(out.ClosedDays, int(d))
	}
	sort.Ints(out.ClosedDays)
	for d := range cal.TemporaryClosedDays {
		out.TemporaryClosedDays = append(out.TemporaryClosedDays, d.String())
	}
	sort.Strings(out.TemporaryClosedDays)
	for d, h := range cal.SpecialBusinessHours {
		out.SpecialBusinessHours[d.String()] = h
	}
	return out, nil
}

// UpdateCalendar validates and replaces a tenant's calendar settings.
func (s *Service) UpdateCalendar(ctx context.Context, code string, cs CalendarSettings) error {
	tenant, err := s.Tenant(ctx, code)
	if err != nil {
		return err
	}
	if err := cs.validate(); err != nil {
		return err
	}
	hours, closed, temp, special, err := model.EncodeCalendar(cs.BusinessHours, cs.ClosedDays, cs.TemporaryClosedDays, cs.SpecialBusinessHours)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrInvalidRequest, err)
	}
	tenant.BusinessHoursJSON = hours
	tenant.ClosedDaysJSON = closed
	tenant.TemporaryClosedDaysJSON = temp
	tenant.SpecialBusinessHoursJSON = special
	if cs.MaxConcurrentReservations > 0 {
		tenant.MaxConcurrentReservations = cs.MaxConcurrentReservations
	}
	if err := s.store.UpdateTenantCalendar(ctx, tenant); err != nil {
		return s.storeErr(ctx, "update_calendar", err)
	}
	s.log(ctx).Info().Str("tenant", tenant.Code).Msg("calendar updated")
	return nil
}

var weekdayKeys = map[string]bool{
	"default": true, "sunday": true, "monday": true, "tuesday": true,
	"wednesday": true, "thursday": true, "friday": true, "saturday": true,
}

func (cs CalendarSettings) validate() error {
	if cs.MaxConcurrentReservations < 0 {
		return fmt.Errorf("%w: max_concurrent_reservations must not be negative", model.ErrInvalidRequest)
	}
	for key, h := range cs.BusinessHours {
		if n, err := strconv.Atoi(key); err == nil {
			if n < 0 || n > 6 {
				return fmt.Errorf("%w: business_hours key %q", model.ErrInvalidRequest, key)
			}
		} else if !weekdayKeys[key] {
			return fmt.Errorf("%w: business_hours key %q", model.ErrInvalidRequest, key)
		}
		if err := validateHours(h); err != nil {
			return fmt.Errorf("business_hours %s: %w", key, err)
		}
	}
	for _, d := range cs.ClosedDays {
		if d < 0 || d > 6 {
			return fmt.Errorf("%w: closed day %d", model.ErrInvalidRequest, d)
		}
	}
	for _, d := range cs.TemporaryClosedDays {
		if _, err := civil.ParseDate(d); err != nil {
			return fmt.Errorf("%w: temporary closed day %q", model.ErrInvalidRequest, d)
		}
	}
	for d, h := range cs.SpecialBusinessHours {
		if _, err := civil.ParseDate(d); err != nil {
			return fmt.Errorf("%w: special hours date %q", model.ErrInvalidRequest, d)
		}
		if err := validateHours(h); err != nil {
			return fmt.Errorf("special_business_hours %s: %w", d, err)
		}
	}
	return nil
}

func validateHours(h model.DayHours) error {
	if h.Closed() {
		return nil
	}
	open, err := civil.ParseLocalTime(h.Open)
	if err != nil {
		return fmt.Errorf("%w: open %q", model.ErrInvalidRequest, h.Open)
	}
	closeAt, err := civil.ParseLocalTime(h.Close)
	if err != nil {
		return fmt.Errorf("%w: close %q", model.ErrInvalidRequest, h.Close)
	}
	if !open.Before(closeAt) {
		return fmt.Errorf("%w: opens at %s after closing at %s", model.ErrInvalidRequest, open, closeAt)
	}
	return nil
}

// MarshalJSON keeps empty collections as [] and {} rather than null.
func (cs CalendarSettings) MarshalJSON() ([]byte, error) {
	type plain CalendarSettings
	if cs.BusinessHours == nil {
		cs.BusinessHours = map[string]model.DayHours{}
	}
	if cs.ClosedDays == nil {
		cs.ClosedDays = []int{}
	}
	if cs.TemporaryClosedDays == nil {
		cs.TemporaryClosedDays = []string{}
	}
	if cs.SpecialBusinessHours == nil {
		cs.SpecialBusinessHours = map[string]model.DayHours{}
	}
	return json.Marshal(plain(cs))
}
