package events

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/njrgourav11/service-buddy-sub000/internal/models"
)

const (
	EventBookingCreated     = "booking_created"
	EventBookingConfirmed   = "booking_confirmed"
	EventPaymentVerified    = "booking_payment_verified"
	EventBookingAssigned    = "booking_assigned"
	EventBookingStarted     = "booking_started"
	EventBookingCompleted   = "booking_completed"
	EventBookingCancelled   = "booking_cancelled"
	EventBookingRescheduled = "booking_rescheduled"
)

// BookingEvents lists every booking event type, in lifecycle order.
var BookingEvents = []string{
	EventBookingCreated,
	EventBookingConfirmed,
	EventPaymentVerified,
	EventBookingAssigned,
	EventBookingStarted,
	EventBookingCompleted,
	EventBookingCancelled,
	EventBookingRescheduled,
}

// BookingEventPayload carries the booking as stored after the transition.
type BookingEventPayload struct {
	Booking   *models.Booking `json:"booking"`
	ChangedBy string          `json:"changed_by,omitempty"`
	Role      models.Role     `json:"role,omitempty"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// DecodeBooking unmarshals a BookingEventPayload from the event.
func (e *Event) DecodeBooking() (BookingEventPayload, error) {
	var p BookingEventPayload
	err := json.Unmarshal(e.Payload, &p)
	return p, err
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for the given event types.
func (b *EventBus) Subscribe(handler EventHandler, eventTypes ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range eventTypes {
		b.subscribers[t] = append(b.subscribers[t], handler)
	}
}

// Publish runs the subscribers of the event type synchronously and joins
// their errors. Every handler runs even if an earlier one fails.
func (b *EventBus) Publish(event *Event) error {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var errs []error
	for _, handler := range handlers {
		if err := handler(event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	event, err := NewJSONEvent(eventType, payload)
	if err != nil {
		return err
	}
	return b.Publish(&event)
}

// NewJSONEvent builds an Event with JSON payload for manual publishing.
func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}
