package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"salonbook/internal/civil"
	"salonbook/internal/model"
)

// Reservation lifecycle event types.
const (
	ReservationCreated   = "reservation.created"
	ReservationConfirmed = "reservation.confirmed"
	ReservationCancelled = "reservation.cancelled"
	ReservationCompleted = "reservation.completed"
)

// AllTypes lists every event type published by the booking service.
var AllTypes = []string{ReservationCreated, ReservationConfirmed, ReservationCancelled, ReservationCompleted}

// Event represents a lightweight domain event.
type Event struct {
	ID        string
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// ReservationPayload is the JSON body of every reservation event.
type ReservationPayload struct {
	TenantID      int64                   `json:"tenant_id"`
	TenantCode    string                  `json:"tenant_code"`
	ReservationID int64                   `json:"reservation_id"`
	CustomerID    int64                   `json:"customer_id"`
	CustomerName  string                  `json:"customer_name,omitempty"`
	StaffID       *int64                  `json:"staff_id,omitempty"`
	Start         civil.DateTime          `json:"reservation_date"`
	Status        model.ReservationStatus `json:"status"`
	TotalPrice    int64                   `json:"total_price"`
	TotalDuration int                     `json:"total_duration"`
	Items         []model.ReservationItem `json:"items,omitempty"`
}

// NewReservationPayload captures the event-relevant fields of r.
func NewReservationPayload(tenant *model.Tenant, r *model.Reservation) ReservationPayload {
	return ReservationPayload{
		TenantID:      tenant.ID,
		TenantCode:    tenant.Code,
		ReservationID: r.ID,
		CustomerID:    r.CustomerID,
		CustomerName:  r.CustomerName,
		StaffID:       r.StaffID,
		Start:         r.Start,
		Status:        r.Status,
		TotalPrice:    r.TotalPrice,
		TotalDuration: r.EffectiveDuration(),
		Items:         r.Items,
	}
}

// Decode unmarshals the payload of a reservation event.
func (e Event) Decode() (ReservationPayload, error) {
	var p ReservationPayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return p, fmt.Errorf("decode %s event %s: %w", e.Type, e.ID, err)
	}
	return p, nil
}

// EventHandler reacts to an event.
type EventHandler func(ctx context.Context, event Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	logger      *zerolog.Logger
}

// NewEventBus constructs an empty bus.
func NewEventBus(logger *zerolog.Logger) *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler), logger: logger}
}

// Subscribe registers a handler for the given event types.
func (b *EventBus) Subscribe(handler EventHandler, eventTypes ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range eventTypes {
		b.subscribers[t] = append(b.subscribers[t], handler)
	}
}

// Publish notifies subscribers of the event type. Handler errors are logged
// and never reach the publisher.
func (b *EventBus) Publish(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		if err := handler(ctx, event); err != nil {
			b.logger.Error().Err(err).Str("event_type", event.Type).Str("event_id", event.ID).Msg("event handler failed")
		}
	}
}

// PublishJSON marshals payload and publishes it under eventType.
func (b *EventBus) PublishJSON(ctx context.Context, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	b.Publish(ctx, Event{Type: eventType, Payload: data})
	return nil
}
