package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"salonbook/internal/model"
)

const tenantColumns = `id, code, name, timezone, max_concurrent_reservations,
	business_hours, closed_days, temporary_closed_days, special_business_hours,
	is_active, created_at, updated_at`

func scanTenant(row pgx.Row) (*model.Tenant, error) {
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

func (s *Store) TenantByCode(ctx context.Context, code string) (*model.Tenant, error) {
	t, err := scanTenant(s.pool.QueryRow(ctx,
		"SELECT "+tenantColumns+" FROM tenants WHERE code = $1 AND is_active", code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("tenant %q: %w", code, model.ErrNotFound)
	}
	return t, err
}

func (s *Store) Tenant(ctx context.Context, id int64) (*model.Tenant, error) {
	t, err := scanTenant(s.pool.QueryRow(ctx,
		"SELECT "+tenantColumns+" FROM tenants WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("tenant %d: %w", id, model.ErrNotFound)
	}
	return t, err
}

func (s *Store) ListTenants(ctx context.Context) ([]model.Tenant, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+tenantColumns+" FROM tenants WHERE is_active ORDER BY id")
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

func (s *Store) UpdateTenantCalendar(ctx context.Context, t *model.Tenant) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE tenants SET
			max_concurrent_reservations = $1,
			business_hours = $2,
			closed_days = $3,
			temporary_closed_days = $4,
			special_business_hours = $5,
			updated_at = now()
		WHERE id = $6`,
		t.MaxConcurrentReservations, t.BusinessHoursJSON, t.ClosedDaysJSON,
		t.TemporaryClosedDaysJSON, t.SpecialBusinessHoursJSON, t.ID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("tenant %d: %w", t.ID, model.ErrNotFound)
	}
	return nil
}
