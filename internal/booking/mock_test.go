package booking

import (
	"context"

	"github.com/stretchr/testify/mock"

	"salonbook/internal/civil"
	"salonbook/internal/model"
	"salonbook/internal/store"
)

type mockStore struct {
	mock.Mock
	tx *mockTx
}

func (m *mockStore) TenantByCode(ctx context.Context, code string) (*model.Tenant, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Tenant), args.Error(1)
}
func (m *mockStore) Tenant(ctx context.Context, id int64) (*model.Tenant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Tenant), args.Error(1)
}
func (m *mockStore) ListTenants(ctx context.Context) ([]model.Tenant, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.Tenant), args.Error(1)
}
func (m *mockStore) UpdateTenantCalendar(ctx context.Context, t *model.Tenant) error {
	return m.Called(ctx, t).Error(0)
}
func (m *mockStore) Menus(ctx context.Context, tenantID int64) ([]model.Menu, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).([]model.Menu), args.Error(1)
}
func (m *mockStore) Staff(ctx context.Context, tenantID int64) ([]model.Staff, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).([]model.Staff), args.Error(1)
}
func (m *mockStore) Shifts(ctx context.Context, tenantID int64, date civil.Date) ([]model.Shift, error) {
	args := m.Called(ctx, tenantID, date)
	return args.Get(0).([]model.Shift), args.Error(1)
}
func (m *mockStore) UpsertShifts(ctx context.Context, tenantID int64, shifts []model.Shift) error {
	return m.Called(ctx, tenantID, shifts).Error(0)
}
func (m *mockStore) FindOrCreateCustomer(ctx context.Context, c *model.Customer) error {
	return m.Called(ctx, c).Error(0)
}
func (m *mockStore) Reservation(ctx context.Context, tenantID, id int64) (*model.Reservation, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Reservation), args.Error(1)
}
func (m *mockStore) Reservations(ctx context.Context, f store.ReservationFilter) ([]model.Reservation, error) {
	args := m.Called(ctx, f)
	return args.Get(0).([]model.Reservation), args.Error(1)
}
func (m *mockStore) UpdateReservationStatus(ctx context.Context, tenantID, id int64, from, to model.ReservationStatus) error {
	return m.Called(ctx, tenantID, id, from, to).Error(0)
}
func (m *mockStore) MarkReminderSent(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}
func (m *mockStore) InDayLock(ctx context.Context, tenantID int64, date civil.Date, fn func(store.DayTx) error) error {
	if err := m.Called(ctx, tenantID, date).Error(0); err != nil {
		return err
	}
	return fn(m.tx)
}
func (m *mockStore) Ping(ctx context.Context) error { return m.Called(ctx).Error(0) }
func (m *mockStore) Close() error                   { return m.Called().Error(0) }

type mockTx struct {
	mock.Mock
}

func (m *mockTx) ConfirmedReservations(ctx context.Context) ([]model.Reservation, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.Reservation), args.Error(1)
}
func (m *mockTx) InsertReservation(ctx context.Context, r *model.Reservation) error {
	return m.Called(ctx, r).Error(0)
}
func (m *mockTx) UpdateStatus(ctx context.Context, id int64, from, to model.ReservationStatus) error {
	return m.Called(ctx, id, from, to).Error(0)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishJSON(ctx context.Context, eventType string, payload any) error {
	return m.Called(ctx, eventType, payload).Error(0)
}
