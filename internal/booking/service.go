// Package booking runs availability checks against stored data and records
// reservations. Reads, checks and writes for one salon day happen under the
// store's day lock so two concurrent bookings cannot both pass the check.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"salonbook/internal/availability"
	"salonbook/internal/civil"
	"salonbook/internal/events"
	"salonbook/internal/metrics"
	"salonbook/internal/model"
	"salonbook/internal/store"
)

// ErrPersistence wraps every storage failure. Callers show a generic retry-later message.
var ErrPersistence = errors.New("persistence failure")

// Publisher receives reservation lifecycle events.
type Publisher interface {
	PublishJSON(ctx context.Context, eventType string, payload any) error
}

// Horizon bounds how far ahead customers may book.
type Horizon struct {
	MinAdvance time.Duration
	MaxAdvance time.Duration
}

type Service struct {
	store   store.Store
	bus     Publisher
	step    int
	horizon Horizon
	logger  *zerolog.Logger
	now     func() time.Time
}

func NewService(st store.Store, bus Publisher, step int, horizon Horizon, logger *zerolog.Logger) *Service {
	if step <= 0 {
		step = availability.DefaultSlotStep
	}
	return &Service{
		store:   st,
		bus:     bus,
		step:    step,
		horizon: horizon,
		logger:  logger,
		now:     time.Now,
	}
}

// CheckRequest identifies a candidate reservation.
type CheckRequest struct {
	TenantCode string
	Start      civil.DateTime
	MenuIDs    []int64
	StaffID    *int64
	// ForCustomer applies the booking horizon; staff tools leave it off.
	ForCustomer bool
}

// CheckResult is a decision plus the totals it was computed for.
type CheckResult struct {
	availability.Decision
	Totals availability.Totals `json:"totals"`
}

// BookRequest is a CheckRequest plus who the reservation is for.
type BookRequest struct {
	CheckRequest
	Customer model.Customer
	Notes    string
	Channel  string
}

// SlotQuery asks for the start times open on one date.
type SlotQuery struct {
	TenantCode  string
	Date        civil.Date
	MenuIDs     []int64
	StaffID     *int64
	ForCustomer bool
}

func (s *Service) log(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return s.logger
}

// storeErr passes domain errors through and wraps everything else in ErrPersistence.
func (s *Service) storeErr(ctx context.Context, op string, err error) error {
	if errors.Is(err, model.ErrNotFound) || errors.Is(err, model.ErrInvalidRequest) || errors.Is(err, context.Canceled) {
		return err
	}
	metrics.IncPersistenceFailure(op)
	s.log(ctx).Error().Err(err).Str("op", op).Msg("storage operation failed")
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}

func (s *Service) publish(ctx context.Context, eventType string, tenant *model.Tenant, r *model.Reservation) {
	if s.bus == nil {
		return
	}
	if err := s.bus.PublishJSON(ctx, eventType, events.NewReservationPayload(tenant, r)); err != nil {
		s.log(ctx).Warn().Err(err).Str("event_type", eventType).Msg("failed to publish event")
	}
}

// Tenant resolves an active tenant by code.
func (s *Service) Tenant(ctx context.Context, code string) (*model.Tenant, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: tenant code is required", model.ErrInvalidRequest)
	}
	t, err := s.store.TenantByCode(ctx, code)
	if err != nil {
		return nil, s.storeErr(ctx, "tenant_by_code", err)
	}
	return t, nil
}

// Menus lists the active services of a tenant.
func (s *Service) Menus(ctx context.Context, code string) ([]model.Menu, error) {
	tenant, err := s.Tenant(ctx, code)
	if err != nil {
		return nil, err
	}
	menus, err := s.store.Menus(ctx, tenant.ID)
	if err != nil {
		return nil, s.storeErr(ctx, "menus", err)
	}
	return menus, nil
}

// Staff lists the active staff of a tenant.
func (s *Service) Staff(ctx context.Context, code string) ([]model.Staff, error) {
	tenant, err := s.Tenant(ctx, code)
	if err != nil {
		return nil, err
	}
	staff, err := s.store.Staff(ctx, tenant.ID)
	if err != nil {
		return nil, s.storeErr(ctx, "staff", err)
	}
	return staff, nil
}

func (s *Service) totals(ctx context.Context, tenant *model.Tenant, menuIDs []int64) (availability.Totals, error) {
	menus, err := s.store.Menus(ctx, tenant.ID)
	if err != nil {
		return availability.Totals{}, s.storeErr(ctx, "menus", err)
	}
	return availability.ComputeTotals(tenant.ID, menuIDs, menus)
}

// day loads staff and shifts for a date. Reservations are supplied by the
// caller so the booking path can read them inside its transaction.
func (s *Service) day(ctx context.Context, tenant *model.Tenant, date civil.Date, reservations []model.Reservation) (*availability.Day, error) {
	staff, err := s.store.Staff(ctx, tenant.ID)
	if err != nil {
		return nil, s.storeErr(ctx, "staff", err)
	}
	shifts, err := s.store.Shifts(ctx, tenant.ID, date)
	if err != nil {
		return nil, s.storeErr(ctx, "shifts", err)
	}
	return availability.NewDay(ctx, tenant, date, staff, shifts, reservations), nil
}

func (s *Service) confirmed(ctx context.Context, tenantID int64, date civil.Date) ([]model.Reservation, error) {
	list, err := s.store.Reservations(ctx, store.ReservationFilter{
		TenantID: tenantID,
		From:     date,
		To:       date,
		Status:   model.StatusConfirmed,
	})
	if err != nil {
		return nil, s.storeErr(ctx, "reservations", err)
	}
	return list, nil
}

// checkHorizon rejects customer requests in the past or too far ahead.
func (s *Service) checkHorizon(tenant *model.Tenant, start civil.DateTime) error {
	loc := tenant.Location()
	now := s.now().In(loc)
	at := start.In(loc)
	if at.Before(now.Add(s.horizon.MinAdvance)) {
		return fmt.Errorf("%w: %s is in the past", model.ErrInvalidRequest, start)
	}
	if s.horizon.MaxAdvance > 0 && at.After(now.Add(s.horizon.MaxAdvance)) {
		return fmt.Errorf("%w: %s is too far in the future", model.ErrInvalidRequest, start)
	}
	return nil
}

// Check answers whether a candidate could be booked right now without booking it.
func (s *Service) Check(ctx context.Context, req CheckRequest) (CheckResult, error) {
	tenant, err := s.Tenant(ctx, req.TenantCode)
	if err != nil {
		return CheckResult{}, err
	}
	if req.ForCustomer {
		if err := s.checkHorizon(tenant, req.Start); err != nil {
			return CheckResult{}, err
		}
	}
	totals, err := s.totals(ctx, tenant, req.MenuIDs)
	if err != nil {
		return CheckResult{}, err
	}
	reservations, err := s.confirmed(ctx, tenant.ID, req.Start.Date)
	if err != nil {
		return CheckResult{}, err
	}
	day, err := s.day(ctx, tenant, req.Start.Date, reservations)
	if err != nil {
		return CheckResult{}, err
	}
	dec, err := availability.CheckCandidate(day, availability.Candidate{
		Start:    req.Start.Time,
		Duration: totals.TotalDuration,
		StaffID:  req.StaffID,
	})
	if err != nil {
		return CheckResult{}, err
	}
	return CheckResult{Decision: dec, Totals: totals}, nil
}

// AvailableSlots lists acceptable start times in ascending order.
func (s *Service) AvailableSlots(ctx context.Context, q SlotQuery) ([]civil.LocalTime, error) {
	started := s.now()
	defer metrics.ObserveSlotQuery(started)

	tenant, err := s.Tenant(ctx, q.TenantCode)
	if err != nil {
		return nil, err
	}
	menus, err := s.store.Menus(ctx, tenant.ID)
	if err != nil {
		return nil, s.storeErr(ctx, "menus", err)
	}
	reservations, err := s.confirmed(ctx, tenant.ID, q.Date)
	if err != nil {
		return nil, err
	}
	day, err := s.day(ctx, tenant, q.Date, reservations)
	if err != nil {
		return nil, err
	}
	slots, err := availability.EnumerateSlots(day, q.MenuIDs, menus, q.StaffID, s.step)
	if err != nil {
		return nil, err
	}
	if !q.ForCustomer {
		return slots, nil
	}
	open := slots[:0]
	for _, t := range slots {
		if s.checkHorizon(tenant, civil.DateTime{Date: q.Date, Time: t}) == nil {
			open = append(open, t)
		}
	}
	return open, nil
}

// errRejected aborts the day transaction when the candidate does not fit.
var errRejected = errors.New("candidate rejected")

// Book re-checks the candidate inside the day lock and inserts the
// reservation with its line items when it is accepted. A rejection is
// returned in the result with a nil reservation and a nil error.
func (s *Service) Book(ctx context.Context, req BookRequest) (*model.Reservation, CheckResult, error) {
	tenant, err := s.Tenant(ctx, req.TenantCode)
	if err != nil {
		return nil, CheckResult{}, err
	}
	if req.ForCustomer {
		if err := s.checkHorizon(tenant, req.Start); err != nil {
			return nil, CheckResult{}, err
		}
	}
	totals, err := s.totals(ctx, tenant, req.MenuIDs)
	if err != nil {
		return nil, CheckResult{}, err
	}
	if req.Customer.ID == 0 && req.Customer.Name == "" && req.Customer.TelegramID == 0 {
		return nil, CheckResult{}, fmt.Errorf("%w: customer is required", model.ErrInvalidRequest)
	}

	// Staff and shifts are read before taking the lock; only reservations
	// change under concurrent bookings.
	day, err := s.day(ctx, tenant, req.Start.Date, nil)
	if err != nil {
		return nil, CheckResult{}, err
	}
	candidate := availability.Candidate{Start: req.Start.Time, Duration: totals.TotalDuration, StaffID: req.StaffID}

	customer := req.Customer
	customer.TenantID = tenant.ID
	if customer.ID == 0 {
		if err := s.store.FindOrCreateCustomer(ctx, &customer); err != nil {
			return nil, CheckResult{}, s.storeErr(ctx, "find_or_create_customer", err)
		}
	}

	result := CheckResult{Totals: totals}
	var reservation *model.Reservation
	err = s.store.InDayLock(ctx, tenant.ID, req.Start.Date, func(tx store.DayTx) error {
		existing, err := tx.ConfirmedReservations(ctx)
		if err != nil {
			return err
		}
		day.Reservations = existing
		dec, err := availability.CheckCandidate(day, candidate)
		if err != nil {
			return err
		}
		result.Decision = dec
		if !dec.Accepted {
			return errRejected
		}

		reservation = &model.Reservation{
			TenantID:      tenant.ID,
			CustomerID:    customer.ID,
			StaffID:       req.StaffID,
			MenuID:        totals.PrimaryMenuID,
			Start:         req.Start,
			Status:        model.StatusConfirmed,
			TotalPrice:    totals.TotalPrice,
			TotalDuration: totals.TotalDuration,
			Notes:         req.Notes,
			Items:         totals.Items,
			CustomerName:  customer.Name,
		}
		return tx.InsertReservation(ctx, reservation)
	})
	switch {
	case errors.Is(err, errRejected):
		metrics.IncBookingRejected(string(result.Reason))
		s.log(ctx).Info().
			Str("tenant", tenant.Code).
			Str("start", req.Start.String()).
			Str("reason", string(result.Reason)).
			Msg("booking rejected")
		return nil, result, nil
	case errors.Is(err, model.ErrInvalidRequest), errors.Is(err, model.ErrNotFound):
		return nil, CheckResult{}, err
	case err != nil:
		return nil, CheckResult{}, s.storeErr(ctx, "book", err)
	}

	channel := req.Channel
	if channel == "" {
		channel = "api"
	}
	metrics.IncReservationCreated(channel)
	s.log(ctx).Info().
		Str("tenant", tenant.Code).
		Int64("reservation_id", reservation.ID).
		Str("start", reservation.Start.String()).
		Int("duration", reservation.TotalDuration).
		Msg("reservation created")
	s.publish(ctx, events.ReservationCreated, tenant, reservation)
	return reservation, result, nil
}
