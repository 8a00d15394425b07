package booking

import (
	"context"
	"errors"
	"time"

	"salonbook/internal/civil"
	"salonbook/internal/model"
	"salonbook/internal/store"
)

// AutoComplete marks confirmed reservations whose end has passed as completed
// and returns how many were moved. A failure for one tenant does not stop the others.
func (s *Service) AutoComplete(ctx context.Context) (int, error) {
	tenants, err := s.store.ListTenants(ctx)
	if err != nil {
		return 0, s.storeErr(ctx, "list_tenants", err)
	}

	total := 0
	var errs []error
	for i := range tenants {
		tenant := &tenants[i]
		if !tenant.IsActive {
			continue
		}
		n, err := s.autoCompleteTenant(ctx, tenant)
		total += n
		if err != nil {
			errs = append(errs, err)
		}
	}
	return total, errors.Join(errs...)
}

func (s *Service) autoCompleteTenant(ctx context.Context, tenant *model.Tenant) (int, error) {
	loc := tenant.Location()
	now := s.now().In(loc)
	list, err := s.store.Reservations(ctx, store.ReservationFilter{
		TenantID: tenant.ID,
		To:       civil.DateOf(now),
		Status:   model.StatusConfirmed,
	})
	if err != nil {
		return 0, s.storeErr(ctx, "reservations", err)
	}

	done := 0
	for i := range list {
		r := &list[i]
		if r.End(loc).After(now) {
			continue
		}
		if _, err := s.transition(ctx, tenant, r, model.StatusCompleted); err != nil {
			if errors.Is(err, model.ErrInvalidTransition) {
				continue
			}
			return done, err
		}
		done++
	}
	return done, nil
}

// StartAutoComplete runs AutoComplete every interval until ctx is done.
func (s *Service) StartAutoComplete(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.AutoComplete(ctx)
			if err != nil {
				s.log(ctx).Error().Err(err).Msg("auto-complete failed")
			}
			if n > 0 {
				s.log(ctx).Info().Int("count", n).Msg("reservations auto-completed")
			}
		}
	}
}
