package audit

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"salonbook/internal/civil"
	"salonbook/internal/model"
)

// Source provides tenants and their reservations.
type Source interface {
	ReservationSource
	Tenants(ctx context.Context) ([]model.Tenant, error)
}

// Notifier delivers a report file to managers.
type Notifier interface {
	SendDocument(ctx context.Context, filename string, data io.Reader, caption string) error
}

// Service sends every tenant's previous-month report on the first of each month.
type Service struct {
	source   Source
	writer   func() ExcelWriter
	notifier Notifier
	logger   *zerolog.Logger
	now      func() time.Time

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

func NewService(source Source, writerFactory func() ExcelWriter, notifier Notifier, logger *zerolog.Logger) *Service {
	if writerFactory == nil {
		writerFactory = NewExcelizeWriter
	}
	return &Service{
		source:   source,
		writer:   writerFactory,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

func (s *Service) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop()
	s.logger.Info().Msg("Monthly report service started")
}

func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info().Msg("Monthly report service stopped")
}

func (s *Service) loop() {
	defer s.wg.Done()

	next := nextFirstOfMonth(s.now())
	timer := time.NewTimer(time.Until(next))
	defer timer.Stop()
	s.logger.Info().Time("next_run", next).Msg("Next monthly report scheduled")

	for {
		select {
		case <-s.stopCh:
			return
		case <-timer.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
			if err := s.SendMonthly(ctx); err != nil {
				s.logger.Error().Err(err).Msg("Failed to send monthly reports")
			}
			cancel()

			next = nextFirstOfMonth(s.now())
			timer.Reset(time.Until(next))
		}
	}
}

func nextFirstOfMonth(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month()+1, 1, 0, 1, 0, 0, now.Location())
}

// PreviousMonth returns the first and last day of the month before now.
func PreviousMonth(now time.Time) (civil.Date, civil.Date) {
	first := time.Date(now.Year(), now.Month()-1, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return civil.DateOf(first), civil.DateOf(last)
}

// SendMonthly builds and delivers last month's report for every tenant. A
// failing tenant is logged and skipped.
func (s *Service) SendMonthly(ctx context.Context) error {
	tenants, err := s.source.Tenants(ctx)
	if err != nil {
		return fmt.Errorf("list tenants: %w", err)
	}

	sent := 0
	for i := range tenants {
		t := &tenants[i]
		from, to := PreviousMonth(s.now().In(t.Location()))

		var buf bytes.Buffer
		if err := WriteReport(ctx, s.source, s.writer, t.Code, from, to, &buf); err != nil {
			s.logger.Error().Err(err).Str("tenant", t.Code).Msg("Failed to build report")
			continue
		}
		caption := fmt.Sprintf("Sales report %s: %s - %s", t.Name, from, to)
		if err := s.notifier.SendDocument(ctx, Filename(t.Code, from, to), &buf, caption); err != nil {
			s.logger.Error().Err(err).Str("tenant", t.Code).Msg("Failed to send report")
			continue
		}
		sent++
	}
	s.logger.Info().Int("sent", sent).Int("tenants", len(tenants)).Msg("Monthly reports sent")
	return nil
}
