package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventReservationCommitted = "reservation_committed"
	EventPaymentReconciled    = "payment_reconciled"
	EventStatusChanged        = "event_status_changed"
	EventPromotionPaid        = "promotion_paid"
)

// ReservationPayload describes the minimal reservation snapshot for
// event consumers.
type ReservationPayload struct {
	BookingIDs   []int64   `json:"booking_ids"`
	UserID       int64     `json:"user_id"`
	HostID       int64     `json:"host_id"`
	BusinessType string    `json:"business_type"`
	SlotID       int64     `json:"slot_id"`
	Seats        int       `json:"seats"`
	Date         time.Time `json:"date"`
}

// PaymentPayload describes a reconciled checkout session.
type PaymentPayload struct {
	PaymentID         int64   `json:"payment_id"`
	CheckoutSessionID string  `json:"checkout_session_id"`
	UserID            int64   `json:"user_id"`
	HostID            int64   `json:"host_id"`
	Amount            float64 `json:"amount"`
	Currency          string  `json:"currency"`
	IsPromotion       bool    `json:"is_promotion"`
}

// Event represents a lightweight domain event.
type Event struct {
	ID        int64
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
