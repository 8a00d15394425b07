// Package store defines the persistence contract shared by the sqlite and
// postgres backends and the caching decorator.
package store

import (
	"context"

	"salonbook/internal/civil"
	"salonbook/internal/model"
)

// ReservationFilter narrows Reservations. Zero values mean "any".
type ReservationFilter struct {
	TenantID   int64
	From       civil.Date // inclusive
	To         civil.Date // inclusive
	Status     model.ReservationStatus
	StaffID    *int64
	CustomerID *int64
	// ReminderPending keeps only reservations whose reminder has not been sent.
	ReminderPending bool
	Limit           int
}

// DayTx is the view of one (tenant, date) inside a locked transaction.
type DayTx interface {
	ConfirmedReservations(ctx context.Context) ([]model.Reservation, error)
	InsertReservation(ctx context.Context, r *model.Reservation) error
	// UpdateStatus behaves like Store.UpdateReservationStatus within the locked tenant.
	UpdateStatus(ctx context.Context, id int64, from, to model.ReservationStatus) error
}

// Store is implemented by every persistence backend. Lookups of missing rows
// return an error wrapping model.ErrNotFound.
type Store interface {
	TenantByCode(ctx context.Context, code string) (*model.Tenant, error)
	Tenant(ctx context.Context, id int64) (*model.Tenant, error)
	ListTenants(ctx context.Context) ([]model.Tenant, error)
	UpdateTenantCalendar(ctx context.Context, t *model.Tenant) error

	Menus(ctx context.Context, tenantID int64) ([]model.Menu, error)
	Staff(ctx context.Context, tenantID int64) ([]model.Staff, error)
	Shifts(ctx context.Context, tenantID int64, date civil.Date) ([]model.Shift, error)
	UpsertShifts(ctx context.Context, tenantID int64, shifts []model.Shift) error

	FindOrCreateCustomer(ctx context.Context, c *model.Customer) error

	Reservation(ctx context.Context, tenantID, id int64) (*model.Reservation, error)
	Reservations(ctx context.Context, f ReservationFilter) ([]model.Reservation, error)
	// UpdateReservationStatus moves a reservation from one status to another and
	// fails with model.ErrNotFound when it is not currently in from.
	UpdateReservationStatus(ctx context.Context, tenantID, id int64, from, to model.ReservationStatus) error
	MarkReminderSent(ctx context.Context, id int64) error

	// InDayLock runs fn in a transaction that excludes every other InDayLock
	// call for the same tenant and date until it commits or rolls back.
	InDayLock(ctx context.Context, tenantID int64, date civil.Date, fn func(tx DayTx) error) error

	Ping(ctx context.Context) error
	Close() error
}
