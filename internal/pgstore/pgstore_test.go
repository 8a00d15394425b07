package pgstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salonbook/internal/civil"
	"salonbook/internal/config"
	"salonbook/internal/model"
	"salonbook/internal/store"
)

func TestDayLockKey(t *testing.T) {
	day := civil.MustParseDate("2025-01-15")
	assert.Equal(t, "salonbook:day:7:2025-01-15", dayLockKey(7, day))
	assert.NotEqual(t, dayLockKey(7, day), dayLockKey(7, day.AddDays(1)))
	assert.NotEqual(t, dayLockKey(7, day), dayLockKey(7+1<<32, day), "tenant ids are not truncated")
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("boom")))
	assert.False(t, isUniqueViolation(nil))
}

func TestBuildReservationQuery(t *testing.T) {
	staff := int64(3)
	query, args := buildReservationQuery(store.ReservationFilter{
		TenantID:        1,
		From:            civil.MustParseDate("2025-01-15"),
		To:              civil.MustParseDate("2025-01-15"),
		Status:          model.StatusConfirmed,
		StaffID:         &staff,
		ReminderPending: true,
		Limit:           10,
	})

	assert.Contains(t, query, "r.tenant_id = $1")
	assert.Contains(t, query, "r.reservation_date >= $2")
	assert.Contains(t, query, "r.reservation_date < $3")
	assert.Contains(t, query, "r.status = $4")
	assert.Contains(t, query, "r.staff_id = $5")
	assert.Contains(t, query, "NOT r.reminder_sent")
	assert.Contains(t, query, "LIMIT 10")
	require.Len(t, args, 5)
	assert.Equal(t, time.Date(2025, 1, 16, 0, 0, 0, 0, time.UTC), args[2])
}

func TestBuildReservationQuery_Empty(t *testing.T) {
	query, args := buildReservationQuery(store.ReservationFilter{})
	assert.NotContains(t, query, "WHERE")
	assert.Empty(t, args)
}

// openTestStore connects to SALONBOOK_TEST_POSTGRES_URL and skips when it is unset.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("SALONBOOK_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("SALONBOOK_TEST_POSTGRES_URL not set")
	}
	logger := zerolog.Nop()
	s, err := Open(context.Background(), url, 4, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestInDayLock_OneWinner(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	code := fmt.Sprintf("pg-%d", time.Now().UnixNano())
	require.NoError(t, s.SyncCatalog(ctx, &config.CatalogConfig{Salons: []config.SalonConfig{{
		Code: code, Name: "Test", IsActive: true,
		Staff: []config.StaffConfig{{Name: "Aoi", WorkingHours: "10:00-19:00", IsActive: true}},
		Menus: []config.MenuConfig{{Name: "Cut", Price: 5000, Duration: 60, IsActive: true}},
	}}}))

	tenant, err := s.TenantByCode(ctx, code)
	require.NoError(t, err)
	menus, err := s.Menus(ctx, tenant.ID)
	require.NoError(t, err)
	require.Len(t, menus, 1)
	customer := &model.Customer{TenantID: tenant.ID, Name: "Hanako", TelegramID: 42}
	require.NoError(t, s.FindOrCreateCustomer(ctx, customer))

	date := civil.MustParseDate("2025-01-15")
	start := civil.DateTime{Date: date, Time: civil.MustParseLocalTime("14:00")}

	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.InDayLock(ctx, tenant.ID, date, func(tx store.DayTx) error {
				existing, err := tx.ConfirmedReservations(ctx)
				if err != nil {
					return err
				}
				if len(existing) > 0 {
					return nil
				}
				mu.Lock()
				created++
				mu.Unlock()
				return tx.InsertReservation(ctx, &model.Reservation{
					TenantID: tenant.ID, CustomerID: customer.ID, MenuID: menus[0].ID,
					Start: start, Status: model.StatusConfirmed, TotalPrice: 5000, TotalDuration: 60,
					Items: []model.ReservationItem{{MenuID: menus[0].ID, Name: "Cut", Price: 5000, Duration: 60}},
				})
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, created)

	list, err := s.Reservations(ctx, store.ReservationFilter{TenantID: tenant.ID, From: date, To: date})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, start, list[0].Start)
	assert.Len(t, list[0].Items, 1)
	assert.EqualValues(t, 42, list[0].CustomerTelegramID)
}
