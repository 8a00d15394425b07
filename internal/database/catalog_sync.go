package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"salonbook/internal/config"
)

// SyncCatalog applies salons.yaml to the database.
// It upserts tenants, staff and menus by their natural keys and marks rows
// missing from the file inactive. Reservations are never touched.
func (db *DB) SyncCatalog(ctx context.Context, cfg *config.CatalogConfig) error {
	if cfg == nil {
		return fmt.Errorf("salon catalog is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	seen := make([]any, 0, len(cfg.Salons))

	for i := range cfg.Salons {
		salon := &cfg.Salons[i]
		tenantID, err := upsertTenant(ctx, tx, salon, now)
		if err != nil {
			return fmt.Errorf("sync salon %s: %w", salon.Code, err)
		}
		seen = append(seen, salon.Code)

		if err := syncStaff(ctx, tx, tenantID, salon.Staff, now); err != nil {
			return fmt.Errorf("sync salon %s staff: %w", salon.Code, err)
		}
		if err := syncMenus(ctx, tx, tenantID, salon.Menus, now); err != nil {
			return fmt.Errorf("sync salon %s menus: %w", salon.Code, err)
		}
	}

	// Deactivate salons that disappeared from config.
	if _, err := tx.ExecContext(ctx,
		"UPDATE tenants SET is_active = 0, updated_at = ? WHERE code NOT IN ("+placeholders(len(seen))+")",
		append([]any{now}, seen...)...,
	); err != nil {
		return fmt.Errorf("deactivate salons: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	db.logger.Info().Int("salons", len(cfg.Salons)).Msg("Salon catalog synced")
	return nil
}

func upsertTenant(ctx context.Context, tx *sql.Tx, s *config.SalonConfig, now time.Time) (int64, error) {
	hours, closed, temporary, special, err := s.CalendarJSON()
	if err != nil {
		return 0, fmt.Errorf("encode calendar: %w", err)
	}
	timezone := s.Timezone
	if timezone == "" {
		timezone = "Asia/Tokyo"
	}
	maxConcurrent := s.MaxConcurrentReservations
	if maxConcurrent == 0 {
		maxConcurrent = 3
	}

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO tenants (
			code, name, timezone, max_concurrent_reservations,
			business_hours, closed_days, temporary_closed_days, special_business_hours,
			is_active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			name = excluded.name,
			timezone = excluded.timezone,
			max_concurrent_reservations = excluded.max_concurrent_reservations,
			business_hours = excluded.business_hours,
			closed_days = excluded.closed_days,
			temporary_closed_days = excluded.temporary_closed_days,
			special_business_hours = excluded.special_business_hours,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
		RETURNING id`,
		s.Code, s.Name, timezone, maxConcurrent,
		hours, closed, temporary, special,
		boolToInt(s.IsActive), now, now,
	).Scan(&id)
	return id, err
}

func syncStaff(ctx context.Context, tx *sql.Tx, tenantID int64, staff []config.StaffConfig, now time.Time) error {
	names := make([]any, 0, len(staff))
	for _, st := range staff {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO staff (tenant_id, name, working_hours, is_active, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(tenant_id, name) DO UPDATE SET
				working_hours = excluded.working_hours,
				is_active = excluded.is_active,
				updated_at = excluded.updated_at`,
			tenantID, st.Name, st.WorkingHours, boolToInt(st.IsActive), now, now,
		); err != nil {
			return fmt.Errorf("upsert staff %s: %w", st.Name, err)
		}
		names = append(names, st.Name)
	}
	return deactivateMissing(ctx, tx, "staff", tenantID, names, now)
}

func syncMenus(ctx context.Context, tx *sql.Tx, tenantID int64, menus []config.MenuConfig, now time.Time) error {
	names := make([]any, 0, len(menus))
	for _, m := range menus {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO menus (tenant_id, name, price, duration, is_active, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(tenant_id, name) DO UPDATE SET
				price = excluded.price,
				duration = excluded.duration,
				is_active = excluded.is_active,
				updated_at = excluded.updated_at`,
			tenantID, m.Name, m.Price, m.Duration, boolToInt(m.IsActive), now, now,
		); err != nil {
			return fmt.Errorf("upsert menu %s: %w", m.Name, err)
		}
		names = append(names, m.Name)
	}
	return deactivateMissing(ctx, tx, "menus", tenantID, names, now)
}

func deactivateMissing(ctx context.Context, tx *sql.Tx, table string, tenantID int64, keep []any, now time.Time) error {
	query := "UPDATE " + table + " SET is_active = 0, updated_at = ? WHERE tenant_id = ?"
	args := []any{now, tenantID}
	if len(keep) > 0 {
		query += " AND name NOT IN (" + placeholders(len(keep)) + ")"
		args = append(args, keep...)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

func placeholders(n int) string {
	if n <= 0 {
		return "NULL"
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
