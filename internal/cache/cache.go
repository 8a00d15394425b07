// Package cache wraps a store.Store with a Redis read-through cache for
// tenant and catalog lookups. Reservations and shifts are never cached.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"salonbook/internal/model"
	"salonbook/internal/store"
)

const keyPrefix = "salonbook:"

type Store struct {
	store.Store
	redis  *redis.Client
	ttl    time.Duration
	logger *zerolog.Logger
}

// New returns next unchanged when client is nil or ttl is not positive.
func New(next store.Store, client *redis.Client, ttl time.Duration, logger *zerolog.Logger) store.Store {
	if client == nil || ttl <= 0 {
		return next
	}
	return &Store{Store: next, redis: client, ttl: ttl, logger: logger}
}

// tenantEntry carries the calendar columns that model.Tenant hides from JSON.
type tenantEntry struct {
	model.Tenant
	BusinessHours        string `json:"business_hours"`
	ClosedDays           string `json:"closed_days"`
	TemporaryClosedDays  string `json:"temporary_closed_days"`
	SpecialBusinessHours string `json:"special_business_hours"`
}

func tenantKey(code string) string { return keyPrefix + "tenant:" + code }
func menusKey(tenantID int64) string { return fmt.Sprintf("%smenus:%d", keyPrefix, tenantID) }
func staffKey(tenantID int64) string { return fmt.Sprintf("%sstaff:%d", keyPrefix, tenantID) }

func (s *Store) TenantByCode(ctx context.Context, code string) (*model.Tenant, error) {
	var entry tenantEntry
	if s.read(ctx, tenantKey(code), &entry) {
		t := entry.Tenant
		t.BusinessHoursJSON = entry.BusinessHours
		t.ClosedDaysJSON = entry.ClosedDays
		t.TemporaryClosedDaysJSON = entry.TemporaryClosedDays
		t.SpecialBusinessHoursJSON = entry.SpecialBusinessHours
		return &t, nil
	}

	t, err := s.Store.TenantByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	s.write(ctx, tenantKey(code), tenantEntry{
		Tenant:               *t,
		BusinessHours:        t.BusinessHoursJSON,
		ClosedDays:           t.ClosedDaysJSON,
		TemporaryClosedDays:  t.TemporaryClosedDaysJSON,
		SpecialBusinessHours: t.SpecialBusinessHoursJSON,
	})
	return t, nil
}

func (s *Store) Menus(ctx context.Context, tenantID int64) ([]model.Menu, error) {
	var menus []model.Menu
	if s.read(ctx, menusKey(tenantID), &menus) {
		return menus, nil
	}
	menus, err := s.Store.Menus(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	s.write(ctx, menusKey(tenantID), menus)
	return menus, nil
}

func (s *Store) Staff(ctx context.Context, tenantID int64) ([]model.Staff, error) {
	var staff []model.Staff
	if s.read(ctx, staffKey(tenantID), &staff) {
		return staff, nil
	}
	staff, err := s.Store.Staff(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	s.write(ctx, staffKey(tenantID), staff)
	return staff, nil
}

// UpdateTenantCalendar writes through and drops the cached tenant.
func (s *Store) UpdateTenantCalendar(ctx context.Context, t *model.Tenant) error {
	if err := s.Store.UpdateTenantCalendar(ctx, t); err != nil {
		return err
	}
	s.delete(ctx, tenantKey(t.Code))
	return nil
}

// Flush drops every cached entry. It runs after a catalog sync.
func (s *Store) Flush(ctx context.Context) error {
	iter := s.redis.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan cache keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return s.redis.Del(ctx, keys...).Err()
}

// read treats every Redis failure as a miss.
func (s *Store) read(ctx context.Context, key string, out any) bool {
	val, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.Debug().Err(err).Str("key", key).Msg("cache read failed")
		}
		return false
	}
	return json.Unmarshal(val, out) == nil
}

func (s *Store) write(ctx context.Context, key string, val any) {
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, key, data, s.ttl).Err(); err != nil {
		s.logger.Debug().Err(err).Str("key", key).Msg("cache write failed")
	}
}

func (s *Store) delete(ctx context.Context, key string) {
	if err := s.redis.Del(ctx, key).Err(); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("cache invalidation failed")
	}
}
