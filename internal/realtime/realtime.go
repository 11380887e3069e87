// Package realtime fans order events out to connected clients.
//
// Delivery is best effort: a subscriber that falls behind loses events
// rather than slowing the publisher.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	EventStatusChanged    = "status-changed"
	EventDeliveryLocation = "delivery-location"
	EventNewMessage       = "new-message"
	EventOrderAssigned    = "order-assigned"
	EventOrderCreated     = "order-created"
)

// AdminTopic carries events operators watch across all orders.
const AdminTopic = "orders"

const subscriberBuffer = 32

// OrderTopic is the per-order channel name.
func OrderTopic(orderID uuid.UUID) string {
	return "order-" + orderID.String()
}

type Event struct {
	Type    string          `json:"type"`
	OrderID uuid.UUID       `json:"pedidoId"`
	Data    json.RawMessage `json:"data,omitempty"`
	At      time.Time       `json:"fecha"`
}

// NewEvent encodes payload into an event for orderID.
func NewEvent(eventType string, orderID uuid.UUID, payload any) (Event, error) {
	event := Event{Type: eventType, OrderID: orderID, At: time.Now().UTC()}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Event{}, fmt.Errorf("encode %s payload: %w", eventType, err)
		}
		event.Data = data
	}
	return event, nil
}

// Notifier publishes events. Callers must not treat a failure as a failure
// of the state change that produced the event.
type Notifier interface {
	Publish(ctx context.Context, topic string, event Event) error
}

// Broker is a Notifier that clients can also subscribe to.
type Broker interface {
	Notifier
	// Subscribe returns a channel of events on topic and a function that
	// cancels the subscription and closes the channel.
	Subscribe(ctx context.Context, topic string) (<-chan Event, func(), error)
	Close() error
}

type Config struct {
	Provider              string
	RedisConnectionString string
}

func NewBroker(cfg Config) (Broker, error) {
	switch cfg.Provider {
	case "memory", "":
		return NewMemoryBroker(), nil
	case "redis":
		return NewRedisBroker(cfg.RedisConnectionString)
	default:
		return nil, fmt.Errorf("unsupported realtime provider: %s", cfg.Provider)
	}
}
