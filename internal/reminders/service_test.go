package reminders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"salonbook/internal/civil"
	"salonbook/internal/model"
	"salonbook/internal/store"
)

type mockSource struct {
	mock.Mock
}

func (m *mockSource) ListTenants(ctx context.Context) ([]model.Tenant, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.Tenant), args.Error(1)
}

func (m *mockSource) Reservations(ctx context.Context, f store.ReservationFilter) ([]model.Reservation, error) {
	args := m.Called(ctx, f)
	return args.Get(0).([]model.Reservation), args.Error(1)
}

func (m *mockSource) MarkReminderSent(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) SendReminder(ctx context.Context, telegramID int64, tenant *model.Tenant, r *model.Reservation) error {
	return m.Called(ctx, telegramID, tenant.Code, r.ID).Error(0)
}

func at(date, clock string) civil.DateTime {
	return civil.DateTime{Date: civil.MustParseDate(date), Time: civil.MustParseLocalTime(clock)}
}

func newTestService(src Source, n Notifier) *Service {
	logger := zerolog.Nop()
	s := NewService(Config{Lead: 24 * time.Hour, RatePerSecond: 1000, Burst: 10}, src, n, &logger)
	loc, _ := time.LoadLocation("Asia/Tokyo")
	s.now = func() time.Time { return time.Date(2025, 1, 14, 9, 0, 0, 0, loc) }
	return s
}

func TestRunOnce(t *testing.T) {
	src := new(mockSource)
	n := new(mockNotifier)
	s := newTestService(src, n)

	src.On("ListTenants", mock.Anything).Return([]model.Tenant{
		{ID: 1, Code: "ginza", Timezone: "Asia/Tokyo", IsActive: true},
		{ID: 2, Code: "closed", Timezone: "Asia/Tokyo", IsActive: false},
	}, nil)
	src.On("Reservations", mock.Anything, store.ReservationFilter{
		TenantID:        1,
		From:            civil.MustParseDate("2025-01-14"),
		To:              civil.MustParseDate("2025-01-15"),
		Status:          model.StatusConfirmed,
		ReminderPending: true,
	}).Return([]model.Reservation{
		{ID: 1, Start: at("2025-01-14", "08:00"), CustomerTelegramID: 100}, // already started
		{ID: 2, Start: at("2025-01-14", "15:00"), CustomerTelegramID: 100},
		{ID: 3, Start: at("2025-01-15", "09:00"), CustomerTelegramID: 200},
		{ID: 4, Start: at("2025-01-15", "09:30"), CustomerTelegramID: 200}, // beyond lead
		{ID: 5, Start: at("2025-01-14", "16:00")},                          // no telegram
		{ID: 6, Start: at("2025-01-14", "17:00"), CustomerTelegramID: 300},
	}, nil)

	n.On("SendReminder", mock.Anything, int64(100), "ginza", int64(2)).Return(nil)
	n.On("SendReminder", mock.Anything, int64(200), "ginza", int64(3)).Return(nil)
	n.On("SendReminder", mock.Anything, int64(300), "ginza", int64(6)).Return(errors.New("blocked by user"))
	src.On("MarkReminderSent", mock.Anything, int64(2)).Return(nil)
	src.On("MarkReminderSent", mock.Anything, int64(3)).Return(nil)

	sent, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sent)

	n.AssertExpectations(t)
	src.AssertExpectations(t)
	src.AssertNotCalled(t, "MarkReminderSent", mock.Anything, int64(6))
	src.AssertNumberOfCalls(t, "Reservations", 1)
}

func TestRunOnce_StoreError(t *testing.T) {
	src := new(mockSource)
	s := newTestService(src, new(mockNotifier))

	src.On("ListTenants", mock.Anything).Return([]model.Tenant(nil), errors.New("database is locked"))
	sent, err := s.RunOnce(context.Background())
	assert.Error(t, err)
	assert.Zero(t, sent)
}

func TestRunOnce_MarkFailureStopsTenant(t *testing.T) {
	src := new(mockSource)
	n := new(mockNotifier)
	s := newTestService(src, n)

	src.On("ListTenants", mock.Anything).Return([]model.Tenant{{ID: 1, Code: "ginza", Timezone: "Asia/Tokyo", IsActive: true}}, nil)
	src.On("Reservations", mock.Anything, mock.Anything).Return([]model.Reservation{
		{ID: 2, Start: at("2025-01-14", "15:00"), CustomerTelegramID: 100},
		{ID: 3, Start: at("2025-01-14", "16:00"), CustomerTelegramID: 100},
	}, nil)
	n.On("SendReminder", mock.Anything, int64(100), "ginza", int64(2)).Return(nil)
	src.On("MarkReminderSent", mock.Anything, int64(2)).Return(errors.New("disk full"))

	sent, err := s.RunOnce(context.Background())
	assert.Error(t, err)
	assert.Zero(t, sent)
	n.AssertNotCalled(t, "SendReminder", mock.Anything, int64(100), "ginza", int64(3))
}

func TestConfigDefaults(t *testing.T) {
	var c Config
	c.applyDefaults()
	assert.Equal(t, 24*time.Hour, c.Lead)
	assert.Equal(t, 10*time.Minute, c.Interval)
	assert.Equal(t, 20.0, c.RatePerSecond)
	assert.Equal(t, 1, c.Burst)
}
