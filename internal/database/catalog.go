package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"salonbook/internal/civil"
	"salonbook/internal/model"
)

// Menus returns the active menus of a tenant.
func (db *DB) Menus(ctx context.Context, tenantID int64) ([]model.Menu, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, tenant_id, name, price, duration, category_id, is_active
		FROM menus
		WHERE tenant_id = ? AND is_active = 1
		ORDER BY id`,
		tenantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var menus []model.Menu
	for rows.Next() {
		var m model.Menu
		var category sql.NullInt64
		if err := rows.Scan(&m.ID, &m.TenantID, &m.Name, &m.Price, &m.Duration, &category, &m.IsActive); err != nil {
			return nil, err
		}
		if category.Valid {
			m.CategoryID = &category.Int64
		}
		menus = append(menus, m)
	}
	return menus, rows.Err()
}

// Staff returns the active staff of a tenant.
func (db *DB) Staff(ctx context.Context, tenantID int64) ([]model.Staff, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, tenant_id, name, working_hours, is_active, created_at, updated_at
		FROM staff
		WHERE tenant_id = ? AND is_active = 1
		ORDER BY id`,
		tenantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var staff []model.Staff
	for rows.Next() {
		var s model.Staff
		if err := rows.Scan(&s.ID, &s.TenantID, &s.Name, &s.WorkingHours, &s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		staff = append(staff, s)
	}
	return staff, rows.Err()
}

// Shifts returns every shift of a tenant on date.
func (db *DB) Shifts(ctx context.Context, tenantID int64, date civil.Date) ([]model.Shift, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, staff_id, tenant_id, date, start_time, end_time, is_off, breaks
		FROM staff_shifts
		WHERE tenant_id = ? AND date = ?`,
		tenantID, date,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shifts []model.Shift
	for rows.Next() {
		var s model.Shift
		var start, end sql.NullString
		var breaks string
		if err := rows.Scan(&s.ID, &s.StaffID, &s.TenantID, &s.Date, &start, &end, &s.IsOff, &breaks); err != nil {
			return nil, err
		}
		s.StartTime = parseOptionalTime(start)
		s.EndTime = parseOptionalTime(end)
		s.Breaks = model.ParseBreaks(breaks)
		shifts = append(shifts, s)
	}
	return shifts, rows.Err()
}

// parseOptionalTime drops values that do not parse so a bad row falls back to working hours.
func parseOptionalTime(v sql.NullString) *civil.LocalTime {
	if !v.Valid || v.String == "" {
		return nil
	}
	t, err := civil.ParseLocalTime(v.String)
	if err != nil {
		return nil
	}
	return &t
}

func formatOptionalTime(t *civil.LocalTime) any {
	if t == nil {
		return nil
	}
	return t.String()
}

// UpsertShifts creates or replaces shifts keyed by (tenant, staff, date) in one transaction.
func (db *DB) UpsertShifts(ctx context.Context, tenantID int64, shifts []model.Shift) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	for i := range shifts {
		s := &shifts[i]
		var owner int64
		err := tx.QueryRowContext(ctx, "SELECT tenant_id FROM staff WHERE id = ?", s.StaffID).Scan(&owner)
		if err == sql.ErrNoRows || (err == nil && owner != tenantID) {
			return fmt.Errorf("staff %d: %w", s.StaffID, model.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("check staff %d: %w", s.StaffID, err)
		}

		err = tx.QueryRowContext(ctx, `
			INSERT INTO staff_shifts (tenant_id, staff_id, date, start_time, end_time, is_off, breaks, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(tenant_id, staff_id, date) DO UPDATE SET
				start_time = excluded.start_time,
				end_time = excluded.end_time,
				is_off = excluded.is_off,
				breaks = excluded.breaks,
				updated_at = excluded.updated_at
			RETURNING id`,
			tenantID, s.StaffID, s.Date, formatOptionalTime(s.StartTime), formatOptionalTime(s.EndTime),
			boolToInt(s.IsOff), model.FormatBreaks(s.Breaks), now, now,
		).Scan(&s.ID)
		if err != nil {
			return fmt.Errorf("upsert shift staff %d %s: %w", s.StaffID, s.Date, err)
		}
		s.TenantID = tenantID
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
