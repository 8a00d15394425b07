// Package google mirrors reservation events into a Google Sheets booking log.
package google

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"salonbook/internal/events"
)

// Header is the first row of the log sheet.
var Header = []any{"Reservation ID", "Salon", "Date", "Time", "Customer", "Staff ID", "Status", "Duration (min)", "Total price", "Menus", "Updated at"}

const statusColumn = "G"

// valuesAPI is the slice of the Sheets values API the log uses.
type valuesAPI interface {
	Append(ctx context.Context, spreadsheetID, rng string, row []any) (updatedRange string, err error)
	Update(ctx context.Context, spreadsheetID, rng string, row []any) error
}

type sheetsValues struct {
	svc *sheets.Service
}

func (v *sheetsValues) Append(ctx context.Context, spreadsheetID, rng string, row []any) (string, error) {
	resp, err := v.svc.Spreadsheets.Values.Append(spreadsheetID, rng, &sheets.ValueRange{Values: [][]any{row}}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return "", err
	}
	if resp.Updates == nil {
		return "", nil
	}
	return resp.Updates.UpdatedRange, nil
}

func (v *sheetsValues) Update(ctx context.Context, spreadsheetID, rng string, row []any) error {
	_, err := v.svc.Spreadsheets.Values.Update(spreadsheetID, rng, &sheets.ValueRange{Values: [][]any{row}}).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	return err
}

// SheetsService appends a row per new reservation and rewrites the status
// cell when the reservation changes state. Events are queued and written by
// Run so the booking path never waits on the Sheets API.
type SheetsService struct {
	values        valuesAPI
	spreadsheetID string
	sheetName     string
	logger        *zerolog.Logger

	queue chan events.Event

	mu       sync.Mutex
	rowCache map[int64]int // reservation id -> sheet row
}

// NewSheetsService authenticates with a service-account JSON key file.
func NewSheetsService(ctx context.Context, credentialsFile, spreadsheetID, sheetName string, logger *zerolog.Logger) (*SheetsService, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read google credentials: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, data, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse google credentials: %w", err)
	}
	svc, err := sheets.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("create sheets client: %w", err)
	}
	return newSheetsService(&sheetsValues{svc: svc}, spreadsheetID, sheetName, logger), nil
}

func newSheetsService(values valuesAPI, spreadsheetID, sheetName string, logger *zerolog.Logger) *SheetsService {
	if sheetName == "" {
		sheetName = "Bookings"
	}
	return &SheetsService{
		values:        values,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		logger:        logger,
		queue:         make(chan events.Event, 256),
		rowCache:      make(map[int64]int),
	}
}

// Attach subscribes the log to every reservation event on bus.
func (s *SheetsService) Attach(bus *events.EventBus) {
	bus.Subscribe(s.Enqueue, events.AllTypes...)
}

// Enqueue hands an event to Run. A full queue drops the event.
func (s *SheetsService) Enqueue(_ context.Context, e events.Event) error {
	select {
	case s.queue <- e:
		return nil
	default:
		return fmt.Errorf("sheets queue full, dropping %s event %s", e.Type, e.ID)
	}
}

// Run writes the header and then drains the queue until ctx is done.
func (s *SheetsService) Run(ctx context.Context) {
	if err := s.values.Update(ctx, s.spreadsheetID, s.sheetName+"!A1", Header); err != nil {
		s.logger.Error().Err(err).Msg("sheets: write header failed")
	}
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-s.queue:
			callCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			if err := s.Handle(callCtx, e); err != nil {
				s.logger.Error().Err(err).Str("event_type", e.Type).Str("event_id", e.ID).Msg("sheets: write failed")
			}
			cancel()
		}
	}
}

// Handle writes one event to the sheet.
func (s *SheetsService) Handle(ctx context.Context, e events.Event) error {
	p, err := e.Decode()
	if err != nil {
		return err
	}

	if e.Type != events.ReservationCreated {
		if row, ok := s.getCachedRow(p.ReservationID); ok {
			rng := fmt.Sprintf("%s!%s%d", s.sheetName, statusColumn, row)
			err := s.values.Update(ctx, s.spreadsheetID, rng, []any{string(p.Status)})
			if err == nil {
				return nil
			}
			// The row may have been moved or deleted by hand; log a fresh one.
			s.logger.Warn().Err(err).Int64("reservation_id", p.ReservationID).Msg("sheets: status update failed, appending")
			s.deleteCacheRow(p.ReservationID)
		}
	}

	updated, err := s.values.Append(ctx, s.spreadsheetID, s.sheetName+"!A:K", bookingRowValues(p, e.CreatedAt))
	if err != nil {
		return err
	}
	if row, ok := parseRowNumber(updated); ok {
		s.setCachedRow(p.ReservationID, row)
	}
	s.logger.Debug().Int64("reservation_id", p.ReservationID).Str("range", updated).Msg("sheets: row appended")
	return nil
}

func bookingRowValues(p events.ReservationPayload, at time.Time) []any {
	staff := "-"
	if p.StaffID != nil {
		staff = strconv.FormatInt(*p.StaffID, 10)
	}
	names := make([]string, 0, len(p.Items))
	for _, it := range p.Items {
		names = append(names, it.Name)
	}
	return []any{
		p.ReservationID,
		p.TenantCode,
		p.Start.Date.String(),
		p.Start.Time.String(),
		p.CustomerName,
		staff,
		string(p.Status),
		p.TotalDuration,
		p.TotalPrice,
		strings.Join(names, ", "),
		at.Format("2006-01-02 15:04:05"),
	}
}

var rowPattern = regexp.MustCompile(`![A-Z]+(\d+)`)

// parseRowNumber extracts 5 from "Bookings!A5:K5".
func parseRowNumber(updatedRange string) (int, bool) {
	m := rowPattern.FindStringSubmatch(updatedRange)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	return n, err == nil
}

func (s *SheetsService) getCachedRow(id int64) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rowCache[id]
	return row, ok
}

func (s *SheetsService) setCachedRow(id int64, row int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rowCache[id] = row
}

func (s *SheetsService) deleteCacheRow(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rowCache, id)
}

func (s *SheetsService) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rowCache = make(map[int64]int)
}
