package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salonbook/internal/model"
	"salonbook/internal/store"
)

type countingStore struct {
	store.Store
	tenant *model.Tenant
	calls  map[string]int
}

func (c *countingStore) TenantByCode(_ context.Context, code string) (*model.Tenant, error) {
	c.calls["tenant"]++
	if code != c.tenant.Code {
		return nil, model.ErrNotFound
	}
	t := *c.tenant
	return &t, nil
}

func (c *countingStore) Menus(context.Context, int64) ([]model.Menu, error) {
	c.calls["menus"]++
	return []model.Menu{{ID: 10, TenantID: 1, Name: "Cut", Price: 5000, Duration: 60, IsActive: true}}, nil
}

func (c *countingStore) Staff(context.Context, int64) ([]model.Staff, error) {
	c.calls["staff"]++
	return []model.Staff{{ID: 3, TenantID: 1, Name: "Aoi", WorkingHours: "10:00-19:00", IsActive: true}}, nil
}

func (c *countingStore) UpdateTenantCalendar(_ context.Context, t *model.Tenant) error {
	c.calls["update"]++
	c.tenant.BusinessHoursJSON = t.BusinessHoursJSON
	return nil
}

func newCached(t *testing.T) (*Store, *countingStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	next := &countingStore{
		tenant: &model.Tenant{
			ID: 1, Code: "ginza", Name: "Ginza", Timezone: "Asia/Tokyo", IsActive: true,
			BusinessHoursJSON: `{"default":{"open":"09:00","close":"18:00"}}`,
			ClosedDaysJSON:    "[0]",
		},
		calls: map[string]int{},
	}
	logger := zerolog.Nop()
	cached, ok := New(next, client, time.Minute, &logger).(*Store)
	require.True(t, ok)
	return cached, next, mr
}

func TestNew_DisabledReturnsNext(t *testing.T) {
	next := &countingStore{calls: map[string]int{}}
	logger := zerolog.Nop()
	assert.Same(t, next, New(next, nil, time.Minute, &logger))
}

func TestTenantByCode_KeepsCalendarColumns(t *testing.T) {
	cached, next, _ := newCached(t)
	ctx := context.Background()

	first, err := cached.TenantByCode(ctx, "ginza")
	require.NoError(t, err)
	second, err := cached.TenantByCode(ctx, "ginza")
	require.NoError(t, err)

	assert.Equal(t, 1, next.calls["tenant"])
	assert.Equal(t, first.BusinessHoursJSON, second.BusinessHoursJSON)
	assert.Equal(t, "[0]", second.ClosedDaysJSON)
	assert.Equal(t, "Asia/Tokyo", second.Timezone)
}

func TestTenantByCode_MissIsNotCached(t *testing.T) {
	cached, next, _ := newCached(t)
	ctx := context.Background()

	_, err := cached.TenantByCode(ctx, "nowhere")
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = cached.TenantByCode(ctx, "nowhere")
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.Equal(t, 2, next.calls["tenant"])
}

func TestUpdateTenantCalendar_Invalidates(t *testing.T) {
	cached, next, _ := newCached(t)
	ctx := context.Background()

	tenant, err := cached.TenantByCode(ctx, "ginza")
	require.NoError(t, err)
	tenant.BusinessHoursJSON = `{"default":{"open":"11:00","close":"20:00"}}`
	require.NoError(t, cached.UpdateTenantCalendar(ctx, tenant))

	fresh, err := cached.TenantByCode(ctx, "ginza")
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls["tenant"])
	assert.Contains(t, fresh.BusinessHoursJSON, "11:00")
}

func TestMenusAndStaff_CachedUntilFlushOrExpiry(t *testing.T) {
	cached, next, mr := newCached(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		menus, err := cached.Menus(ctx, 1)
		require.NoError(t, err)
		require.Len(t, menus, 1)
		staff, err := cached.Staff(ctx, 1)
		require.NoError(t, err)
		require.Len(t, staff, 1)
	}
	assert.Equal(t, 1, next.calls["menus"])
	assert.Equal(t, 1, next.calls["staff"])

	require.NoError(t, cached.Flush(ctx))
	_, err := cached.Menus(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls["menus"])

	mr.FastForward(2 * time.Minute)
	_, err = cached.Staff(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls["staff"])
}
