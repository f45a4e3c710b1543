package messaging

import (
	"context"
)

// Broker publishes lifecycle events for downstream consumers (queue boards,
// notification displays).
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// Event is the envelope published on every committed appointment transition.
type Event struct {
	Type          string      `json:"type"`
	AppointmentID int64       `json:"appointment_id"`
	Payload       interface{} `json:"payload,omitempty"`
}
