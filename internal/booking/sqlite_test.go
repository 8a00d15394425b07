package booking

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salonbook/internal/availability"
	"salonbook/internal/civil"
	"salonbook/internal/config"
	"salonbook/internal/database"
	"salonbook/internal/model"
	"salonbook/internal/store"
)

func TestConfirm_PendingOverlapOnSQLite(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "salon.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.SyncCatalog(ctx, &config.CatalogConfig{Salons: []config.SalonConfig{{
		Code:     "ginza",
		Name:     "Ginza Hair",
		Timezone: "Asia/Tokyo",
		IsActive: true,
		Staff:    []config.StaffConfig{{Name: "Aiko", WorkingHours: "10:00-19:00", IsActive: true}},
		Menus:    []config.MenuConfig{{Name: "Cut", Price: 3000, Duration: 60, IsActive: true}},
	}}}))
	tenant, err := db.TenantByCode(ctx, "ginza")
	require.NoError(t, err)
	staff, err := db.Staff(ctx, tenant.ID)
	require.NoError(t, err)
	menus, err := db.Menus(ctx, tenant.ID)
	require.NoError(t, err)
	customer := &model.Customer{TenantID: tenant.ID, Name: "hana", Email: "hana@example.com"}
	require.NoError(t, db.FindOrCreateCustomer(ctx, customer))

	insert := func(clock string, status model.ReservationStatus) *model.Reservation {
		r := &model.Reservation{
			TenantID:      tenant.ID,
			CustomerID:    customer.ID,
			StaffID:       &staff[0].ID,
			MenuID:        menus[0].ID,
			Start:         civil.DateTime{Date: wednesday, Time: civil.MustParseLocalTime(clock)},
			Status:        status,
			TotalPrice:    3000,
			TotalDuration: 60,
		}
		require.NoError(t, db.InDayLock(ctx, tenant.ID, wednesday, func(tx store.DayTx) error {
			return tx.InsertReservation(ctx, r)
		}))
		return r
	}
	insert("11:00", model.StatusConfirmed)
	clashing := insert("11:00", model.StatusPending)
	later := insert("13:00", model.StatusPending)

	svc := NewService(db, nil, 30, Horizon{}, &logger)
	svc.now = func() time.Time { return time.Date(2025, 1, 14, 9, 0, 0, 0, tokyo) }

	_, err = svc.Confirm(ctx, "ginza", clashing.ID)
	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, availability.ReasonSlotBooked, rejected.Decision.Reason)

	got, err := db.Reservation(ctx, tenant.ID, clashing.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.Status)

	r, err := svc.Confirm(ctx, "ginza", later.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, r.Status)

	confirmed, err := db.Reservations(ctx, store.ReservationFilter{
		TenantID: tenant.ID, From: wednesday, To: wednesday, Status: model.StatusConfirmed, StaffID: &staff[0].ID,
	})
	require.NoError(t, err)
	assert.Len(t, confirmed, 2)
}
