package events

import (
	"errors"
	"testing"

	"github.com/njrgourav11/service-buddy-sub000/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus()

	var received []*Event
	bus.Subscribe(func(event *Event) error {
		received = append(received, event)
		return nil
	}, EventBookingCreated, EventBookingAssigned)

	payload := BookingEventPayload{
		Booking:   &models.Booking{ID: "b1", Status: models.StatusAssigned, TechnicianID: "tech-1"},
		ChangedBy: "tech-user-1",
		Role:      models.RoleTechnician,
	}
	require.NoError(t, bus.PublishJSON(EventBookingAssigned, payload))
	require.NoError(t, bus.PublishJSON(EventBookingCompleted, payload))

	require.Len(t, received, 1)
	assert.Equal(t, EventBookingAssigned, received[0].Type)
	assert.False(t, received[0].CreatedAt.IsZero())

	decoded, err := received[0].DecodeBooking()
	require.NoError(t, err)
	assert.Equal(t, "b1", decoded.Booking.ID)
	assert.Equal(t, "tech-1", decoded.Booking.TechnicianID)
	assert.Equal(t, models.RoleTechnician, decoded.Role)
}

func TestEventBusHandlerErrors(t *testing.T) {
	bus := NewEventBus()
	var second int
	boom := errors.New("boom")

	bus.Subscribe(func(*Event) error { return boom }, "event")
	bus.Subscribe(func(*Event) error { second++; return nil }, "event")

	err := bus.Publish(&Event{Type: "event"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, second)
}

func TestEventBusNoSubscribers(t *testing.T) {
	bus := NewEventBus()
	assert.NoError(t, bus.Publish(&Event{Type: "unknown"}))
	assert.NoError(t, bus.PublishJSON("unknown", nil))

	var nilBus *EventBus
	assert.NoError(t, nilBus.PublishJSON(EventBookingCreated, nil))
}

func TestNewJSONEvent(t *testing.T) {
	event, err := NewJSONEvent("type", BookingEventPayload{Booking: &models.Booking{ID: "b-123"}})
	require.NoError(t, err)
	assert.Equal(t, "type", event.Type)
	assert.False(t, event.CreatedAt.IsZero())

	decoded, err := event.DecodeBooking()
	require.NoError(t, err)
	assert.Equal(t, "b-123", decoded.Booking.ID)

	_, err = NewJSONEvent("bad", make(chan int))
	assert.Error(t, err)
}
