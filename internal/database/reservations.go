package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"salonbook/internal/civil"
	"salonbook/internal/model"
	"salonbook/internal/store"
)

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const reservationSelect = `
	SELECT r.id, r.tenant_id, r.customer_id, r.staff_id, r.menu_id, r.reservation_date, r.status,
	       r.total_price, r.total_duration, r.notes, r.reminder_sent, r.created_at, r.updated_at,
	       COALESCE(m.duration, 0), COALESCE(c.name, ''), COALESCE(c.telegram_id, 0), COALESCE(s.name, '')
	FROM reservations r
	LEFT JOIN menus m ON m.id = r.menu_id
	LEFT JOIN customers c ON c.id = r.customer_id
	LEFT JOIN staff s ON s.id = r.staff_id`

func scanReservation(row rowScanner) (model.Reservation, error) {
	var r model.Reservation
	var staffID sql.NullInt64
	err := row.Scan(
		&r.ID, &r.TenantID, &r.CustomerID, &staffID, &r.MenuID, &r.Start, &r.Status,
		&r.TotalPrice, &r.TotalDuration, &r.Notes, &r.ReminderSent, &r.CreatedAt, &r.UpdatedAt,
		&r.MenuDuration, &r.CustomerName, &r.CustomerTelegramID, &r.StaffName,
	)
	if staffID.Valid {
		r.StaffID = &staffID.Int64
	}
	return r, err
}

func queryReservations(ctx context.Context, q querier, f store.ReservationFilter) ([]model.Reservation, error) {
	var where []string
	var args []any
	if f.TenantID != 0 {
		where = append(where, "r.tenant_id = ?")
		args = append(args, f.TenantID)
	}
	if !f.From.IsZero() {
		where = append(where, "r.reservation_date >= ?")
		args = append(args, f.From.String())
	}
	if !f.To.IsZero() {
		where = append(where, "r.reservation_date < ?")
		args = append(args, f.To.AddDays(1).String())
	}
	if f.Status != "" {
		where = append(where, "r.status = ?")
		args = append(args, string(f.Status))
	}
	if f.StaffID != nil {
		where = append(where, "r.staff_id = ?")
		args = append(args, *f.StaffID)
	}
	if f.CustomerID != nil {
		where = append(where, "r.customer_id = ?")
		args = append(args, *f.CustomerID)
	}
	if f.ReminderPending {
		where = append(where, "r.reminder_sent = 0")
	}

	query := reservationSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY r.reservation_date, r.id"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := loadItems(ctx, q, out); err != nil {
		return nil, err
	}
	return out, nil
}

// loadItems fills the line items of every reservation with one query.
func loadItems(ctx context.Context, q querier, reservations []model.Reservation) error {
	if len(reservations) == 0 {
		return nil
	}
	index := make(map[int64]int, len(reservations))
	placeholders := make([]string, 0, len(reservations))
	args := make([]any, 0, len(reservations))
	for i, r := range reservations {
		index[r.ID] = i
		placeholders = append(placeholders, "?")
		args = append(args, r.ID)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT reservation_id, menu_id, name, price, duration
		FROM reservation_menus
		WHERE reservation_id IN (`+strings.Join(placeholders, ",")+`)
		ORDER BY id`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("load reservation items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var reservationID int64
		var it model.ReservationItem
		if err := rows.Scan(&reservationID, &it.MenuID, &it.Name, &it.Price, &it.Duration); err != nil {
			return err
		}
		i := index[reservationID]
		reservations[i].Items = append(reservations[i].Items, it)
	}
	return rows.Err()
}

// Reservation returns one reservation of the tenant with its line items.
func (db *DB) Reservation(ctx context.Context, tenantID, id int64) (*model.Reservation, error) {
	r, err := scanReservation(db.QueryRowContext(ctx, reservationSelect+" WHERE r.tenant_id = ? AND r.id = ?", tenantID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reservation %d: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	list := []model.Reservation{r}
	if err := loadItems(ctx, db, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

// Reservations lists reservations matching f in start order.
func (db *DB) Reservations(ctx context.Context, f store.ReservationFilter) ([]model.Reservation, error) {
	return queryReservations(ctx, db, f)
}

// UpdateReservationStatus changes the status only when the current one is from.
func (db *DB) UpdateReservationStatus(ctx context.Context, tenantID, id int64, from, to model.ReservationStatus) error {
	return updateStatus(ctx, db, tenantID, id, from, to)
}

func updateStatus(ctx context.Context, q querier, tenantID, id int64, from, to model.ReservationStatus) error {
	res, err := q.ExecContext(ctx, `
		UPDATE reservations SET status = ?, updated_at = ?
		WHERE tenant_id = ? AND id = ? AND status = ?`,
		string(to), time.Now(), tenantID, id, string(from),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("reservation %d in status %s: %w", id, from, model.ErrNotFound)
	}
	return nil
}

// MarkReminderSent records that the reminder for a reservation went out.
func (db *DB) MarkReminderSent(ctx context.Context, id int64) error {
	_, err := db.ExecContext(ctx,
		"UPDATE reservations SET reminder_sent = 1, updated_at = ? WHERE id = ?",
		time.Now(), id,
	)
	return err
}

// InDayLock runs fn inside a BEGIN IMMEDIATE transaction. sqlite has a single
// writer, so this serializes every booking, not only those of the same day.
func (db *DB) InDayLock(ctx context.Context, tenantID int64, date civil.Date, fn func(tx store.DayTx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&dayTx{tx: tx, tenantID: tenantID, date: date}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type dayTx struct {
	tx       *sql.Tx
	tenantID int64
	date     civil.Date
}

func (d *dayTx) ConfirmedReservations(ctx context.Context) ([]model.Reservation, error) {
	return queryReservations(ctx, d.tx, store.ReservationFilter{
		TenantID: d.tenantID,
		From:     d.date,
		To:       d.date,
		Status:   model.StatusConfirmed,
	})
}

func (d *dayTx) UpdateStatus(ctx context.Context, id int64, from, to model.ReservationStatus) error {
	return updateStatus(ctx, d.tx, d.tenantID, id, from, to)
}

func (d *dayTx) InsertReservation(ctx context.Context, r *model.Reservation) error {
	if r.TenantID != d.tenantID || r.Start.Date != d.date {
		return fmt.Errorf("reservation outside locked day %d/%s", d.tenantID, d.date)
	}

	var staffID any
	if r.StaffID != nil {
		staffID = *r.StaffID
	}
	now := time.Now()
	res, err := d.tx.ExecContext(ctx, `
		INSERT INTO reservations (
			tenant_id, customer_id, staff_id, menu_id, reservation_date, status,
			total_price, total_duration, notes, reminder_sent, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		r.TenantID, r.CustomerID, staffID, r.MenuID, r.Start, string(r.Status),
		r.TotalPrice, r.TotalDuration, r.Notes, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	if r.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("get last id: %w", err)
	}

	for _, it := range r.Items {
		if _, err := d.tx.ExecContext(ctx, `
			INSERT INTO reservation_menus (reservation_id, menu_id, name, price, duration)
			VALUES (?, ?, ?, ?, ?)`,
			r.ID, it.MenuID, it.Name, it.Price, it.Duration,
		); err != nil {
			return fmt.Errorf("insert reservation item: %w", err)
		}
	}
	r.CreatedAt, r.UpdatedAt = now, now
	return nil
}
