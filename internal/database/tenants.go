package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"salonbook/internal/model"
)

const tenantColumns = `id, code, name, timezone, max_concurrent_reservations,
	business_hours, closed_days, temporary_closed_days, special_business_hours,
	is_active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTenant(row rowScanner) (*model.Tenant, error) {
	var t model.Tenant
	err := row.Scan(
		&t.ID, &t.Code, &t.Name, &t.Timezone, &t.MaxConcurrentReservations,
		&t.BusinessHoursJSON, &t.ClosedDaysJSON, &t.TemporaryClosedDaysJSON, &t.SpecialBusinessHoursJSON,
		&t.IsActive, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// TenantByCode returns an active tenant by its public code.
func (db *DB) TenantByCode(ctx context.Context, code string) (*model.Tenant, error) {
	t, err := scanTenant(db.QueryRowContext(ctx,
		"SELECT "+tenantColumns+" FROM tenants WHERE code = ? AND is_active = 1", code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("tenant %q: %w", code, model.ErrNotFound)
	}
	return t, err
}

// Tenant returns a tenant by id regardless of its active flag.
func (db *DB) Tenant(ctx context.Context, id int64) (*model.Tenant, error) {
	t, err := scanTenant(db.QueryRowContext(ctx,
		"SELECT "+tenantColumns+" FROM tenants WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("tenant %d: %w", id, model.ErrNotFound)
	}
	return t, err
}

// ListTenants returns active tenants ordered by id.
func (db *DB) ListTenants(ctx context.Context) ([]model.Tenant, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+tenantColumns+" FROM tenants WHERE is_active = 1 ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []model.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, *t)
	}
	return tenants, rows.Err()
}

// UpdateTenantCalendar stores the calendar settings and concurrency cap of t.
func (db *DB) UpdateTenantCalendar(ctx context.Context, t *model.Tenant) error {
	res, err := db.ExecContext(ctx, `
		UPDATE tenants SET
			max_concurrent_reservations = ?,
			business_hours = ?,
			closed_days = ?,
			temporary_closed_days = ?,
			special_business_hours = ?,
			updated_at = ?
		WHERE id = ?`,
		t.MaxConcurrentReservations, t.BusinessHoursJSON, t.ClosedDaysJSON,
		t.TemporaryClosedDaysJSON, t.SpecialBusinessHoursJSON, time.Now(), t.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("tenant %d: %w", t.ID, model.ErrNotFound)
	}
	return nil
}
