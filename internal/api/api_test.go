package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"salonbook/internal/availability"
	"salonbook/internal/booking"
	"salonbook/internal/civil"
	"salonbook/internal/model"
	"salonbook/internal/store"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) Menus(ctx context.Context, code string) ([]model.Menu, error) {
	args := m.Called(ctx, code)
	return args.Get(0).([]model.Menu), args.Error(1)
}
func (m *mockService) Staff(ctx context.Context, code string) ([]model.Staff, error) {
	args := m.Called(ctx, code)
	return args.Get(0).([]model.Staff), args.Error(1)
}
func (m *mockService) AvailableSlots(ctx context.Context, q booking.SlotQuery) ([]civil.LocalTime, error) {
	args := m.Called(ctx, q)
	return args.Get(0).([]civil.LocalTime), args.Error(1)
}
func (m *mockService) Check(ctx context.Context, req booking.CheckRequest) (booking.CheckResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(booking.CheckResult), args.Error(1)
}
func (m *mockService) Book(ctx context.Context, req booking.BookRequest) (*model.Reservation, booking.CheckResult, error) {
	args := m.Called(ctx, req)
	var r *model.Reservation
	if v := args.Get(0); v != nil {
		r = v.(*model.Reservation)
	}
	return r, args.Get(1).(booking.CheckResult), args.Error(2)
}
func (m *mockService) Reservation(ctx context.Context, code string, id int64) (*model.Reservation, error) {
	args := m.Called(ctx, code, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Reservation), args.Error(1)
}
func (m *mockService) ListReservations(ctx context.Context, code string, f store.ReservationFilter) ([]model.Reservation, error) {
	args := m.Called(ctx, code, f)
	return args.Get(0).([]model.Reservation), args.Error(1)
}
func (m *mockService) SetStatus(ctx context.Context, code string, id int64, to model.ReservationStatus) (*model.Reservation, error) {
	args := m.Called(ctx, code, id, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Reservation), args.Error(1)
}
func (m *mockService) Shifts(ctx context.Context, code string, date civil.Date) ([]model.Shift, error) {
	args := m.Called(ctx, code, date)
	return args.Get(0).([]model.Shift), args.Error(1)
}
func (m *mockService) UpsertShifts(ctx context.Context, code string, shifts []model.Shift) error {
	return m.Called(ctx, code, shifts).Error(0)
}
func (m *mockService) Calendar(ctx context.Context, code string) (booking.CalendarSettings, error) {
	args := m.Called(ctx, code)
	return args.Get(0).(booking.CalendarSettings), args.Error(1)
}
func (m *mockService) UpdateCalendar(ctx context.Context, code string, cs booking.CalendarSettings) error {
	return m.Called(ctx, code, cs).Error(0)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func setupServer(t *testing.T) (*Server, *mockService) {
	t.Helper()
	svc := new(mockService)
	logger := zerolog.Nop()
	return NewServer(svc, "secret", &logger), svc
}

func performRequest(s *Server, method, path string, body any, headers map[string]string) (*httptest.ResponseRecorder, envelope) {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp := httptest.NewRecorder()
	s.Handler().ServeHTTP(resp, req)

	var env envelope
	_ = json.Unmarshal(resp.Body.Bytes(), &env)
	return resp, env
}

var adminHeaders = map[string]string{"X-API-Key": "secret"}

func TestListSlots(t *testing.T) {
	s, svc := setupServer(t)
	staff := int64(3)
	svc.On("AvailableSlots", mock.Anything, booking.SlotQuery{
		TenantCode: "ginza", Date: civil.MustParseDate("2025-01-15"),
		MenuIDs: []int64{10, 11}, StaffID: &staff, ForCustomer: true,
	}).Return([]civil.LocalTime{civil.MustParseLocalTime("10:00"), civil.MustParseLocalTime("10:30")}, nil)

	resp, env := performRequest(s, http.MethodGet, "/api/v1/salons/ginza/slots?date=2025-01-15&menu_ids=10,11&staff_id=3", nil, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, env.Success)
	assert.JSONEq(t, `{"date":"2025-01-15","slots":["10:00","10:30"]}`, string(env.Data))
	assert.NotEmpty(t, resp.Header().Get("X-Request-ID"))
}

func TestListSlots_Validation(t *testing.T) {
	s, _ := setupServer(t)

	for _, path := range []string{
		"/api/v1/salons/ginza/slots?menu_ids=10",
		"/api/v1/salons/ginza/slots?date=15-01-2025&menu_ids=10",
		"/api/v1/salons/ginza/slots?date=2025-01-15",
		"/api/v1/salons/ginza/slots?date=2025-01-15&menu_ids=x",
		"/api/v1/salons/ginza/slots?date=2025-01-15&menu_ids=10&staff_id=-1",
	} {
		resp, env := performRequest(s, http.MethodGet, path, nil, nil)
		assert.Equal(t, http.StatusBadRequest, resp.Code, path)
		assert.Equal(t, "VALIDATION_ERROR", env.Error.Code, path)
	}
}

func TestCheckAvailability_RejectedIsOK(t *testing.T) {
	s, svc := setupServer(t)
	svc.On("Check", mock.Anything, mock.MatchedBy(func(req booking.CheckRequest) bool {
		return req.TenantCode == "ginza" && req.ForCustomer && req.Start.String() == "2025-01-15T18:30:00"
	})).Return(booking.CheckResult{Decision: availability.Decision{
		Reason: availability.ReasonExceedsClosing, Message: "exceeds closing time (closes at 19:00)",
	}}, nil)

	resp, env := performRequest(s, http.MethodPost, "/api/v1/salons/ginza/availability/check", map[string]any{
		"start": "2025-01-15T18:30:00", "menu_ids": []int64{10},
	}, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var data map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, false, data["accepted"])
	assert.Equal(t, "exceeds_closing_time", data["reason"])
}

func TestCreateReservation(t *testing.T) {
	s, svc := setupServer(t)
	start := civil.DateTime{Date: civil.MustParseDate("2025-01-15"), Time: civil.MustParseLocalTime("14:00")}

	svc.On("Book", mock.Anything, mock.MatchedBy(func(req booking.BookRequest) bool {
		return req.ForCustomer && req.Channel == "api" && req.Customer.Name == "Hanako" && req.Start == start
	})).Return(&model.Reservation{ID: 99, TenantID: 1, Start: start, Status: model.StatusConfirmed}, booking.CheckResult{
		Decision: availability.Decision{Accepted: true},
	}, nil).Once()

	resp, env := performRequest(s, http.MethodPost, "/api/v1/salons/ginza/reservations", map[string]any{
		"start": "2025-01-15T14:00:00", "menu_ids": []int64{10},
		"customer": map[string]string{"name": "Hanako", "email": "h@example.com"},
	}, nil)
	require.Equal(t, http.StatusCreated, resp.Code)
	assert.True(t, env.Success)
	assert.Contains(t, string(env.Data), `"id":99`)
	assert.Contains(t, string(env.Data), `"reservation_date":"2025-01-15T14:00:00"`)
}

func TestCreateReservation_Rejected(t *testing.T) {
	s, svc := setupServer(t)
	svc.On("Book", mock.Anything, mock.Anything).Return(nil, booking.CheckResult{
		Decision: availability.Decision{Reason: availability.ReasonFullyBooked, Message: "fully booked for this time slot"},
	}, nil).Once()

	resp, env := performRequest(s, http.MethodPost, "/api/v1/salons/ginza/reservations", map[string]any{
		"start": "2025-01-15T14:00:00", "menu_ids": []int64{10},
		"customer": map[string]string{"name": "Hanako"},
	}, nil)
	require.Equal(t, http.StatusConflict, resp.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "BOOKING_REJECTED", env.Error.Code)
	assert.Equal(t, "fully booked for this time slot", env.Error.Message)
	assert.Equal(t, "fully_booked", env.Error.Details["reason"])
}

func TestCreateReservation_ErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("%w: menu 404", model.ErrNotFound), http.StatusNotFound, "NOT_FOUND"},
		{fmt.Errorf("%w: in the past", model.ErrInvalidRequest), http.StatusBadRequest, "VALIDATION_ERROR"},
		{fmt.Errorf("%w: book: disk I/O error", booking.ErrPersistence), http.StatusServiceUnavailable, "TEMPORARILY_UNAVAILABLE"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			s, svc := setupServer(t)
			svc.On("Book", mock.Anything, mock.Anything).Return(nil, booking.CheckResult{}, tt.err)

			resp, env := performRequest(s, http.MethodPost, "/api/v1/salons/ginza/reservations", map[string]any{
				"start": "2025-01-15T14:00:00", "menu_ids": []int64{10},
				"customer": map[string]string{"name": "Hanako"},
			}, nil)
			assert.Equal(t, tt.status, resp.Code)
			assert.Equal(t, tt.code, env.Error.Code)
			assert.NotContains(t, env.Error.Message, "disk I/O")
		})
	}
}

func TestCreateReservation_InvalidBody(t *testing.T) {
	s, svc := setupServer(t)

	bodies := []map[string]any{
		{"menu_ids": []int64{10}, "customer": map[string]string{"name": "Hanako"}},
		{"start": "2025-01-15T14:00:00", "customer": map[string]string{"name": "Hanako"}},
		{"start": "2025-01-15T14:00:00", "menu_ids": []int64{10}},
		{"start": "2025-01-15T14:00:00+09:00", "menu_ids": []int64{10}, "customer": map[string]string{"name": "Hanako"}},
	}
	for _, body := range bodies {
		resp, _ := performRequest(s, http.MethodPost, "/api/v1/salons/ginza/reservations", body, nil)
		assert.Equal(t, http.StatusBadRequest, resp.Code, body)
	}
	svc.AssertNotCalled(t, "Book", mock.Anything, mock.Anything)
}

func TestAdminAuth(t *testing.T) {
	s, svc := setupServer(t)
	svc.On("ListReservations", mock.Anything, "ginza", mock.Anything).Return([]model.Reservation{}, nil)

	resp, env := performRequest(s, http.MethodGet, "/api/v1/admin/salons/ginza/reservations", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Equal(t, "AUTH_MISSING", env.Error.Code)

	resp, _ = performRequest(s, http.MethodGet, "/api/v1/admin/salons/ginza/reservations", nil, map[string]string{"X-API-Key": "wrong"})
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp, env = performRequest(s, http.MethodGet, "/api/v1/admin/salons/ginza/reservations", nil, adminHeaders)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"reservations":[]}`, string(env.Data))
}

func TestAdminAuth_DisabledWithoutKey(t *testing.T) {
	logger := zerolog.Nop()
	s := NewServer(new(mockService), "", &logger)
	resp, env := performRequest(s, http.MethodGet, "/api/v1/admin/salons/ginza/calendar", nil, map[string]string{"X-API-Key": ""})
	assert.Equal(t, http.StatusForbidden, resp.Code)
	assert.Equal(t, "ADMIN_DISABLED", env.Error.Code)
}

func TestListReservations_Filters(t *testing.T) {
	s, svc := setupServer(t)
	staff := int64(3)
	svc.On("ListReservations", mock.Anything, "ginza", store.ReservationFilter{
		From: civil.MustParseDate("2025-01-01"), To: civil.MustParseDate("2025-01-31"),
		Status: model.StatusConfirmed, StaffID: &staff, Limit: 20,
	}).Return([]model.Reservation{{ID: 1}}, nil)

	resp, _ := performRequest(s, http.MethodGet,
		"/api/v1/admin/salons/ginza/reservations?from=2025-01-01&to=2025-01-31&status=confirmed&staff_id=3&limit=20", nil, adminHeaders)
	assert.Equal(t, http.StatusOK, resp.Code)
	svc.AssertExpectations(t)
}

func TestUpdateStatus(t *testing.T) {
	s, svc := setupServer(t)
	svc.On("SetStatus", mock.Anything, "ginza", int64(5), model.StatusCancelled).
		Return(&model.Reservation{ID: 5, Status: model.StatusCancelled}, nil).Once()
	svc.On("SetStatus", mock.Anything, "ginza", int64(6), model.StatusConfirmed).
		Return(nil, fmt.Errorf("%w: completed -> confirmed", model.ErrInvalidTransition)).Once()
	svc.On("SetStatus", mock.Anything, "ginza", int64(7), model.StatusConfirmed).
		Return(nil, &booking.RejectedError{Decision: availability.Decision{
			Reason:  availability.ReasonSlotBooked,
			Message: "time slot already booked (existing reservation at 11:00)",
		}}).Once()

	resp, _ := performRequest(s, http.MethodPatch, "/api/v1/admin/salons/ginza/reservations/5/status", map[string]string{"status": "cancelled"}, adminHeaders)
	assert.Equal(t, http.StatusOK, resp.Code)

	resp, env := performRequest(s, http.MethodPatch, "/api/v1/admin/salons/ginza/reservations/6/status", map[string]string{"status": "confirmed"}, adminHeaders)
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, "INVALID_TRANSITION", env.Error.Code)

	resp, env = performRequest(s, http.MethodPatch, "/api/v1/admin/salons/ginza/reservations/7/status", map[string]string{"status": "confirmed"}, adminHeaders)
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, "BOOKING_REJECTED", env.Error.Code)
	assert.Equal(t, "slot_already_booked", env.Error.Details["reason"])

	resp, _ = performRequest(s, http.MethodPatch, "/api/v1/admin/salons/ginza/reservations/6/status", map[string]string{"status": "lost"}, adminHeaders)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp, env = performRequest(s, http.MethodPatch, "/api/v1/admin/salons/ginza/reservations/abc/status", map[string]string{"status": "cancelled"}, adminHeaders)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "INVALID_ID", env.Error.Code)
}

func TestUpsertShifts(t *testing.T) {
	s, svc := setupServer(t)
	svc.On("UpsertShifts", mock.Anything, "ginza", mock.MatchedBy(func(shifts []model.Shift) bool {
		return len(shifts) == 1 && shifts[0].StaffID == 3 && shifts[0].StartTime != nil &&
			*shifts[0].StartTime == civil.MustParseLocalTime("11:00") && len(shifts[0].Breaks) == 1
	})).Return(nil).Once()

	resp, _ := performRequest(s, http.MethodPut, "/api/v1/admin/salons/ginza/shifts", map[string]any{
		"shifts": []map[string]any{{
			"staff_id": 3, "date": "2025-01-15", "start_time": "11:00", "end_time": "17:00",
			"breaks": []map[string]string{{"start": "13:00", "end": "14:00"}},
		}},
	}, adminHeaders)
	assert.Equal(t, http.StatusOK, resp.Code)
	svc.AssertExpectations(t)
}

func TestSalesReport(t *testing.T) {
	s, svc := setupServer(t)
	svc.On("ListReservations", mock.Anything, "ginza", mock.Anything).Return([]model.Reservation{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/salons/ginza/reports/sales?from=2025-01-01&to=2025-01-31", nil)
	req.Header.Set("X-API-Key", "secret")
	resp := httptest.NewRecorder()
	s.Handler().ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, xlsxContentType, resp.Header().Get("Content-Type"))
	assert.Contains(t, resp.Header().Get("Content-Disposition"), "sales_ginza_2025-01-01_2025-01-31.xlsx")
	assert.Equal(t, "PK", resp.Body.String()[:2])

	resp2, env := performRequest(s, http.MethodGet, "/api/v1/admin/salons/ginza/reports/sales?from=2025-02-01&to=2025-01-01", nil, adminHeaders)
	assert.Equal(t, http.StatusBadRequest, resp2.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}

func TestNoRoute(t *testing.T) {
	s, _ := setupServer(t)
	resp, env := performRequest(s, http.MethodGet, "/nowhere", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}
