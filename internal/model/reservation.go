package model

import (
	"time"

	"salonbook/internal/civil"
)

// DefaultReservationDuration applies to stored reservations with no resolvable duration.
const DefaultReservationDuration = 60

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
	StatusPending   ReservationStatus = "pending"
	StatusConfirmed ReservationStatus = "confirmed"
	StatusCompleted ReservationStatus = "completed"
	StatusCancelled ReservationStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s ReservationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

var allowedTransitions = map[ReservationStatus][]ReservationStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether a reservation may move from one status to another.
func CanTransition(from, to ReservationStatus) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Menu is a bookable service.
type Menu struct {
	ID         int64  `json:"id"`
	TenantID   int64  `json:"tenant_id"`
	Name       string `json:"name"`
	Price      int64  `json:"price"`    // smallest currency unit
	Duration   int    `json:"duration"` // minutes
	CategoryID *int64 `json:"category_id,omitempty"`
	IsActive   bool   `json:"is_active"`
}

// Customer is the person a reservation is made for.
type Customer struct {
	ID         int64     `json:"id"`
	TenantID   int64     `json:"tenant_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	TelegramID int64     `json:"telegram_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ReservationItem is one service line with the price charged at booking time.
type ReservationItem struct {
	MenuID   int64  `json:"menu_id"`
	Name     string `json:"name,omitempty"`
	Price    int64  `json:"price"`
	Duration int    `json:"duration"`
}

// Reservation is a booked appointment. Start is tenant-local wall-clock time.
type Reservation struct {
	ID            int64             `json:"id"`
	TenantID      int64             `json:"tenant_id"`
	CustomerID    int64             `json:"customer_id"`
	StaffID       *int64            `json:"staff_id,omitempty"`
	MenuID        int64             `json:"menu_id"`
	Start         civil.DateTime    `json:"reservation_date"`
	Status        ReservationStatus `json:"status"`
	TotalPrice    int64             `json:"total_price"`
	TotalDuration int               `json:"total_duration"`
	Notes         string            `json:"notes,omitempty"`
	Items         []ReservationItem `json:"items,omitempty"`
	ReminderSent  bool              `json:"reminder_sent"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`

	// MenuDuration is the primary menu's duration, used when nothing else resolves.
	MenuDuration int `json:"-"`
	// CustomerName and StaffName are filled by list queries for display.
	CustomerName string `json:"customer_name,omitempty"`
	StaffName    string `json:"staff_name,omitempty"`
	// CustomerTelegramID is set when the customer can be reached through the bot.
	CustomerTelegramID int64 `json:"-"`
}

// EffectiveDuration sums line items when present, then falls back to the stored
// total, the primary menu duration and finally DefaultReservationDuration.
func (r *Reservation) EffectiveDuration() int {
	if len(r.Items) > 0 {
		total := 0
		for _, it := range r.Items {
			total += it.Duration
		}
		if total > 0 {
			return total
		}
	}
	if r.TotalDuration > 0 {
		return r.TotalDuration
	}
	if r.MenuDuration > 0 {
		return r.MenuDuration
	}
	return DefaultReservationDuration
}

// Interval returns the occupied [start, start+duration) span within the day.
func (r *Reservation) Interval() Interval {
	return Interval{Start: r.Start.Time, End: r.Start.Time.Add(r.EffectiveDuration())}
}

// End returns the wall-clock instant the reservation ends at.
func (r *Reservation) End(loc *time.Location) time.Time {
	return r.Start.In(loc).Add(time.Duration(r.EffectiveDuration()) * time.Minute)
}

// HasStaff reports whether the reservation is assigned to id.
func (r *Reservation) HasStaff(id int64) bool {
	return r.StaffID != nil && *r.StaffID == id
}
