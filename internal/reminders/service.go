// Package reminders notifies customers shortly before their reservations.
package reminders

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"salonbook/internal/civil"
	"salonbook/internal/metrics"
	"salonbook/internal/model"
	"salonbook/internal/store"
)

// Source is the part of the store reminders read and update.
type Source interface {
	ListTenants(ctx context.Context) ([]model.Tenant, error)
	Reservations(ctx context.Context, f store.ReservationFilter) ([]model.Reservation, error)
	MarkReminderSent(ctx context.Context, id int64) error
}

// Notifier delivers one reminder.
type Notifier interface {
	SendReminder(ctx context.Context, telegramID int64, tenant *model.Tenant, r *model.Reservation) error
}

// Config controls when and how fast reminders go out.
type Config struct {
	// Lead is how long before the start a reminder becomes due.
	Lead time.Duration
	// Interval between scans.
	Interval time.Duration
	// RatePerSecond caps sends across all tenants; Telegram allows about 30/s.
	RatePerSecond float64
	Burst         int
}

func (c *Config) applyDefaults() {
	if c.Lead <= 0 {
		c.Lead = 24 * time.Hour
	}
	if c.Interval <= 0 {
		c.Interval = 10 * time.Minute
	}
	if c.RatePerSecond <= 0 {
		c.RatePerSecond = 20
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
}

type Service struct {
	cfg      Config
	source   Source
	notifier Notifier
	limiter  *rate.Limiter
	logger   *zerolog.Logger
	now      func() time.Time
}

func NewService(cfg Config, source Source, notifier Notifier, logger *zerolog.Logger) *Service {
	cfg.applyDefaults()
	return &Service{
		cfg:      cfg,
		source:   source,
		notifier: notifier,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		logger:   logger,
		now:      time.Now,
	}
}

// Start scans immediately and then every interval until ctx is done.
func (s *Service) Start(ctx context.Context) {
	s.logger.Info().
		Dur("lead", s.cfg.Lead).
		Dur("interval", s.cfg.Interval).
		Msg("Reminder service started")

	s.runAndLog(ctx)
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Reminder service stopped")
			return
		case <-ticker.C:
			s.runAndLog(ctx)
		}
	}
}

func (s *Service) runAndLog(ctx context.Context) {
	sent, err := s.RunOnce(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error().Err(err).Msg("reminder scan failed")
	}
	if sent > 0 {
		s.logger.Info().Int("sent", sent).Msg("reminders sent")
	}
}

// RunOnce sends every due reminder and returns how many went out. A failed
// send is logged and retried on the next scan.
func (s *Service) RunOnce(ctx context.Context) (int, error) {
	tenants, err := s.source.ListTenants(ctx)
	if err != nil {
		return 0, err
	}
	sent := 0
	var errs []error
	for i := range tenants {
		if !tenants[i].IsActive {
			continue
		}
		n, err := s.runTenant(ctx, &tenants[i])
		sent += n
		if err != nil {
			if ctx.Err() != nil {
				return sent, err
			}
			errs = append(errs, err)
		}
	}
	return sent, errors.Join(errs...)
}

func (s *Service) runTenant(ctx context.Context, tenant *model.Tenant) (int, error) {
	loc := tenant.Location()
	now := s.now().In(loc)
	horizon := now.Add(s.cfg.Lead)

	list, err := s.source.Reservations(ctx, store.ReservationFilter{
		TenantID:        tenant.ID,
		From:            civil.DateOf(now),
		To:              civil.DateOf(horizon),
		Status:          model.StatusConfirmed,
		ReminderPending: true,
	})
	if err != nil {
		return 0, err
	}

	sent := 0
	for i := range list {
		r := &list[i]
		start := r.Start.In(loc)
		if start.Before(now) || start.After(horizon) {
			continue
		}
		if r.CustomerTelegramID == 0 {
			metrics.IncReminder("no_channel")
			continue
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return sent, err
		}
		if err := s.notifier.SendReminder(ctx, r.CustomerTelegramID, tenant, r); err != nil {
			metrics.IncReminder("failed")
			s.logger.Warn().Err(err).
				Str("tenant", tenant.Code).
				Int64("reservation_id", r.ID).
				Msg("reminder send failed")
			continue
		}
		if err := s.source.MarkReminderSent(ctx, r.ID); err != nil {
			metrics.IncReminder("failed")
			return sent, err
		}
		metrics.IncReminder("sent")
		sent++
	}
	return sent, nil
}
