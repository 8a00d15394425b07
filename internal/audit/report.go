// Package audit builds xlsx sales reports and mails them to managers monthly.
package audit

import (
	"context"
	"fmt"
	"io"
	"sort"

	"salonbook/internal/civil"
	"salonbook/internal/model"
	"salonbook/internal/store"
)

// ReservationSource lists a tenant's reservations.
type ReservationSource interface {
	ListReservations(ctx context.Context, code string, f store.ReservationFilter) ([]model.Reservation, error)
}

var (
	reservationColumns = []string{"ID", "Date", "Time", "Customer", "Staff", "Status", "Duration (min)", "Total price", "Notes"}
	itemColumns        = []string{"Reservation ID", "Menu ID", "Menu", "Price", "Duration (min)"}
	summaryColumns     = []string{"Status", "Reservations", "Revenue"}
)

// Filename names the report for a tenant and period.
func Filename(code string, from, to civil.Date) string {
	return fmt.Sprintf("sales_%s_%s_%s.xlsx", code, from, to)
}

// WriteReport renders the reservations of [from, to] for a tenant as an xlsx
// workbook with reservation, line-item and per-status summary sheets.
func WriteReport(ctx context.Context, src ReservationSource, newWriter func() ExcelWriter, code string, from, to civil.Date, out io.Writer) error {
	list, err := src.ListReservations(ctx, code, store.ReservationFilter{From: from, To: to})
	if err != nil {
		return err
	}

	xl := newWriter()
	defer func() { _ = xl.Close() }()

	if err := xl.AddSheet("Reservations"); err != nil {
		return err
	}
	if err := xl.WriteHeader(reservationColumns); err != nil {
		return err
	}
	for i := range list {
		r := &list[i]
		staff := r.StaffName
		if staff == "" {
			staff = "-"
		}
		row := []any{
			r.ID, r.Start.Date.String(), r.Start.Time.String(), r.CustomerName, staff,
			string(r.Status), r.EffectiveDuration(), r.TotalPrice, r.Notes,
		}
		if err := xl.WriteRow(row); err != nil {
			return err
		}
	}

	if err := xl.AddSheet("Items"); err != nil {
		return err
	}
	if err := xl.WriteHeader(itemColumns); err != nil {
		return err
	}
	for i := range list {
		for _, it := range list[i].Items {
			if err := xl.WriteRow([]any{list[i].ID, it.MenuID, it.Name, it.Price, it.Duration}); err != nil {
				return err
			}
		}
	}

	if err := xl.AddSheet("Summary"); err != nil {
		return err
	}
	if err := xl.WriteHeader(summaryColumns); err != nil {
		return err
	}
	for _, line := range Summarize(list) {
		if err := xl.WriteRow([]any{string(line.Status), line.Count, line.Revenue}); err != nil {
			return err
		}
	}

	return xl.Save(out)
}

// SummaryLine aggregates reservations of one status.
type SummaryLine struct {
	Status  model.ReservationStatus
	Count   int
	Revenue int64
}

// Summarize groups reservations by status. Revenue counts only confirmed and
// completed reservations.
func Summarize(list []model.Reservation) []SummaryLine {
	byStatus := map[model.ReservationStatus]*SummaryLine{}
	for i := range list {
		r := &list[i]
		line, ok := byStatus[r.Status]
		if !ok {
			line = &SummaryLine{Status: r.Status}
			byStatus[r.Status] = line
		}
		line.Count++
		if r.Status == model.StatusConfirmed || r.Status == model.StatusCompleted {
			line.Revenue += r.TotalPrice
		}
	}

	out := make([]SummaryLine, 0, len(byStatus))
	for _, line := range byStatus {
		out = append(out, *line)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Status < out[j].Status })
	return out
}
