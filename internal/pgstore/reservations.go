package pgstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"salonbook/internal/civil"
	"salonbook/internal/model"
	"salonbook/internal/store"
)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const reservationSelect = `
	SELECT r.id, r.tenant_id, r.customer_id, r.staff_id, r.menu_id, r.reservation_date, r.status,
	       r.total_price, r.total_duration, r.notes, r.reminder_sent, r.created_at, r.updated_at,
	       COALESCE(m.duration, 0), COALESCE(c.name, ''), COALESCE(c.telegram_id, 0), COALESCE(s.name, '')
	FROM reservations r
	LEFT JOIN menus m ON m.id = r.menu_id
	LEFT JOIN customers c ON c.id = r.customer_id
	LEFT JOIN staff s ON s.id = r.staff_id`

func scanReservation(row pgx.Row) (model.Reservation, error) {
	var r model.Reservation
	var start time.Time
	var status string
	err := row.Scan(
		&r.ID, &r.TenantID, &r.CustomerID, &r.StaffID, &r.MenuID, &start, &status,
		&r.TotalPrice, &r.TotalDuration, &r.Notes, &r.ReminderSent, &r.CreatedAt, &r.UpdatedAt,
		&r.MenuDuration, &r.CustomerName, &r.CustomerTelegramID, &r.StaffName,
	)
	r.Start = civil.DateTimeOf(start)
	r.Status = model.ReservationStatus(status)
	return r, err
}

// buildReservationQuery renders f as a WHERE clause with numbered placeholders.
func buildReservationQuery(f store.ReservationFilter) (string, []any) {
	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}
	if f.TenantID != 0 {
		add("r.tenant_id = ?", f.TenantID)
	}
	if !f.From.IsZero() {
		add("r.reservation_date >= ?", localDate(f.From))
	}
	if !f.To.IsZero() {
		add("r.reservation_date < ?", localDate(f.To.AddDays(1)))
	}
	if f.Status != "" {
		add("r.status = ?", string(f.Status))
	}
	if f.StaffID != nil {
		add("r.staff_id = ?", *f.StaffID)
	}
	if f.CustomerID != nil {
		add("r.customer_id = ?", *f.CustomerID)
	}
	if f.ReminderPending {
		where = append(where, "NOT r.reminder_sent")
	}

	query := reservationSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY r.reservation_date, r.id"
	if f.Limit > 0 {
		query += " LIMIT " + strconv.Itoa(f.Limit)
	}
	return query, args
}

func queryReservations(ctx context.Context, q querier, f store.ReservationFilter) ([]model.Reservation, error) {
	query, args := buildReservationQuery(f)
	rows, err := q.Query(ctx, query, args...)
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

func loadItems(ctx context.Context, q querier, reservations []model.Reservation) error {
	if len(reservations) == 0 {
		return nil
	}
	index := make(map[int64]int, len(reservations))
	ids := make([]int64, 0, len(reservations))
	for i, r := range reservations {
		index[r.ID] = i
		ids = append(ids, r.ID)
	}

	rows, err := q.Query(ctx, `
		SELECT reservation_id, menu_id, name, price, duration
		FROM reservation_menus
		WHERE reservation_id = ANY($1)
		ORDER BY id`,
		ids,
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

func (s *Store) Reservation(ctx context.Context, tenantID, id int64) (*model.Reservation, error) {
	r, err := scanReservation(s.pool.QueryRow(ctx, reservationSelect+" WHERE r.tenant_id = $1 AND r.id = $2", tenantID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("reservation %d: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	list := []model.Reservation{r}
	if err := loadItems(ctx, s.pool, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

func (s *Store) Reservations(ctx context.Context, f store.ReservationFilter) ([]model.Reservation, error) {
	return queryReservations(ctx, s.pool, f)
}

func (s *Store) UpdateReservationStatus(ctx context.Context, tenantID, id int64, from, to model.ReservationStatus) error {
	return updateStatus(ctx, s.pool, tenantID, id, from, to)
}

func updateStatus(ctx context.Context, q querier, tenantID, id int64, from, to model.ReservationStatus) error {
	tag, err := q.Exec(ctx, `
		UPDATE reservations SET status = $1, updated_at = now()
		WHERE tenant_id = $2 AND id = $3 AND status = $4`,
		string(to), tenantID, id, string(from),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("reservation %d in status %s: %w", id, from, model.ErrNotFound)
	}
	return nil
}

func (s *Store) MarkReminderSent(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, "UPDATE reservations SET reminder_sent = TRUE, updated_at = now() WHERE id = $1", id)
	return err
}

// InDayLock takes pg_advisory_xact_lock on (tenant, date) before running fn.
// The lock is released when the transaction ends.
func (s *Store) InDayLock(ctx context.Context, tenantID int64, date civil.Date, fn func(tx store.DayTx) error) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtextextended($1, 0))", dayLockKey(tenantID, date)); err != nil {
			return fmt.Errorf("lock day: %w", err)
		}
		return fn(&dayTx{tx: tx, tenantID: tenantID, date: date})
	})
}

type dayTx struct {
	tx       pgx.Tx
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

	err := d.tx.QueryRow(ctx, `
		INSERT INTO reservations (
			tenant_id, customer_id, staff_id, menu_id, reservation_date, status,
			total_price, total_duration, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`,
		r.TenantID, r.CustomerID, r.StaffID, r.MenuID, localTimestamp(r.Start), string(r.Status),
		r.TotalPrice, r.TotalDuration, r.Notes,
	).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}

	batch := &pgx.Batch{}
	for _, it := range r.Items {
		batch.Queue(`
			INSERT INTO reservation_menus (reservation_id, menu_id, name, price, duration)
			VALUES ($1, $2, $3, $4, $5)`,
			r.ID, it.MenuID, it.Name, it.Price, it.Duration,
		)
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := d.tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert reservation items: %w", err)
	}
	return nil
}
