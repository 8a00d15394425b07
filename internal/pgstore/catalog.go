package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"salonbook/internal/civil"
	"salonbook/internal/config"
	"salonbook/internal/model"
)

func (s *Store) Menus(ctx context.Context, tenantID int64) ([]model.Menu, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, name, price, duration, category_id, is_active
		FROM menus
		WHERE tenant_id = $1 AND is_active
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
		if err := rows.Scan(&m.ID, &m.TenantID, &m.Name, &m.Price, &m.Duration, &m.CategoryID, &m.IsActive); err != nil {
			return nil, err
		}
		menus = append(menus, m)
	}
	return menus, rows.Err()
}

func (s *Store) Staff(ctx context.Context, tenantID int64) ([]model.Staff, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, name, working_hours, is_active, created_at, updated_at
		FROM staff
		WHERE tenant_id = $1 AND is_active
		ORDER BY id`,
		tenantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var staff []model.Staff
	for rows.Next() {
		var st model.Staff
		if err := rows.Scan(&st.ID, &st.TenantID, &st.Name, &st.WorkingHours, &st.IsActive, &st.CreatedAt, &st.UpdatedAt); err != nil {
			return nil, err
		}
		staff = append(staff, st)
	}
	return staff, rows.Err()
}

func (s *Store) Shifts(ctx context.Context, tenantID int64, date civil.Date) ([]model.Shift, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, staff_id, tenant_id, date, start_time, end_time, is_off, breaks
		FROM staff_shifts
		WHERE tenant_id = $1 AND date = $2`,
		tenantID, localDate(date),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shifts []model.Shift
	for rows.Next() {
		var sh model.Shift
		var day time.Time
		var start, end *string
		var breaks string
		if err := rows.Scan(&sh.ID, &sh.StaffID, &sh.TenantID, &day, &start, &end, &sh.IsOff, &breaks); err != nil {
			return nil, err
		}
		sh.Date = civil.DateOf(day)
		sh.StartTime = parseOptionalTime(start)
		sh.EndTime = parseOptionalTime(end)
		sh.Breaks = model.ParseBreaks(breaks)
		shifts = append(shifts, sh)
	}
	return shifts, rows.Err()
}

func parseOptionalTime(v *string) *civil.LocalTime {
	if v == nil || *v == "" {
		return nil
	}
	t, err := civil.ParseLocalTime(*v)
	if err != nil {
		return nil
	}
	return &t
}

func formatOptionalTime(t *civil.LocalTime) *string {
	if t == nil {
		return nil
	}
	v := t.String()
	return &v
}

func (s *Store) UpsertShifts(ctx context.Context, tenantID int64, shifts []model.Shift) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		for i := range shifts {
			sh := &shifts[i]
			var owner int64
			err := tx.QueryRow(ctx, "SELECT tenant_id FROM staff WHERE id = $1", sh.StaffID).Scan(&owner)
			if errors.Is(err, pgx.ErrNoRows) || (err == nil && owner != tenantID) {
				return fmt.Errorf("staff %d: %w", sh.StaffID, model.ErrNotFound)
			}
			if err != nil {
				return fmt.Errorf("check staff %d: %w", sh.StaffID, err)
			}

			err = tx.QueryRow(ctx, `
				INSERT INTO staff_shifts (tenant_id, staff_id, date, start_time, end_time, is_off, breaks)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT (tenant_id, staff_id, date) DO UPDATE SET
					start_time = EXCLUDED.start_time,
					end_time = EXCLUDED.end_time,
					is_off = EXCLUDED.is_off,
					breaks = EXCLUDED.breaks,
					updated_at = now()
				RETURNING id`,
				tenantID, sh.StaffID, localDate(sh.Date), formatOptionalTime(sh.StartTime), formatOptionalTime(sh.EndTime),
				sh.IsOff, model.FormatBreaks(sh.Breaks),
			).Scan(&sh.ID)
			if err != nil {
				return fmt.Errorf("upsert shift staff %d %s: %w", sh.StaffID, sh.Date, err)
			}
			sh.TenantID = tenantID
		}
		return nil
	})
}

// SyncCatalog applies salons.yaml. Rows missing from the file are deactivated.
func (s *Store) SyncCatalog(ctx context.Context, cfg *config.CatalogConfig) error {
	if cfg == nil {
		return fmt.Errorf("salon catalog is nil")
	}
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		codes := make([]string, 0, len(cfg.Salons))
		for i := range cfg.Salons {
			salon := &cfg.Salons[i]
			tenantID, err := upsertTenant(ctx, tx, salon)
			if err != nil {
				return fmt.Errorf("sync salon %s: %w", salon.Code, err)
			}
			codes = append(codes, salon.Code)

			names := make([]string, 0, len(salon.Staff))
			for _, st := range salon.Staff {
				if _, err := tx.Exec(ctx, `
					INSERT INTO staff (tenant_id, name, working_hours, is_active)
					VALUES ($1, $2, $3, $4)
					ON CONFLICT (tenant_id, name) DO UPDATE SET
						working_hours = EXCLUDED.working_hours,
						is_active = EXCLUDED.is_active,
						updated_at = now()`,
					tenantID, st.Name, st.WorkingHours, st.IsActive,
				); err != nil {
					return fmt.Errorf("upsert staff %s: %w", st.Name, err)
				}
				names = append(names, st.Name)
			}
			if _, err := tx.Exec(ctx,
				"UPDATE staff SET is_active = FALSE, updated_at = now() WHERE tenant_id = $1 AND NOT (name = ANY($2))",
				tenantID, names,
			); err != nil {
				return fmt.Errorf("deactivate staff: %w", err)
			}

			names = names[:0]
			for _, m := range salon.Menus {
				if _, err := tx.Exec(ctx, `
					INSERT INTO menus (tenant_id, name, price, duration, is_active)
					VALUES ($1, $2, $3, $4, $5)
					ON CONFLICT (tenant_id, name) DO UPDATE SET
						price = EXCLUDED.price,
						duration = EXCLUDED.duration,
						is_active = EXCLUDED.is_active,
						updated_at = now()`,
					tenantID, m.Name, m.Price, m.Duration, m.IsActive,
				); err != nil {
					return fmt.Errorf("upsert menu %s: %w", m.Name, err)
				}
				names = append(names, m.Name)
			}
			if _, err := tx.Exec(ctx,
				"UPDATE menus SET is_active = FALSE, updated_at = now() WHERE tenant_id = $1 AND NOT (name = ANY($2))",
				tenantID, names,
			); err != nil {
				return fmt.Errorf("deactivate menus: %w", err)
			}
		}

		if _, err := tx.Exec(ctx,
			"UPDATE tenants SET is_active = FALSE, updated_at = now() WHERE NOT (code = ANY($1))", codes,
		); err != nil {
			return fmt.Errorf("deactivate salons: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info().Int("salons", len(cfg.Salons)).Msg("Salon catalog synced")
	return nil
}

func upsertTenant(ctx context.Context, tx pgx.Tx, salon *config.SalonConfig) (int64, error) {
	hours, closed, temporary, special, err := salon.CalendarJSON()
	if err != nil {
		return 0, fmt.Errorf("encode calendar: %w", err)
	}
	timezone := salon.Timezone
	if timezone == "" {
		timezone = model.DefaultTimezone
	}
	maxConcurrent := salon.MaxConcurrentReservations
	if maxConcurrent == 0 {
		maxConcurrent = model.DefaultMaxConcurrentReservations
	}

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO tenants (
			code, name, timezone, max_concurrent_reservations,
			business_hours, closed_days, temporary_closed_days, special_business_hours, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name,
			timezone = EXCLUDED.timezone,
			max_concurrent_reservations = EXCLUDED.max_concurrent_reservations,
			business_hours = EXCLUDED.business_hours,
			closed_days = EXCLUDED.closed_days,
			temporary_closed_days = EXCLUDED.temporary_closed_days,
			special_business_hours = EXCLUDED.special_business_hours,
			is_active = EXCLUDED.is_active,
			updated_at = now()
		RETURNING id`,
		salon.Code, salon.Name, timezone, maxConcurrent,
		hours, closed, temporary, special, salon.IsActive,
	).Scan(&id)
	return id, err
}
