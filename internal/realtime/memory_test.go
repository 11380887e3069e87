package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case event, ok := <-ch:
		if !ok {
			t.Fatal("channel closed before event arrived")
		}
		return event
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestMemoryBrokerDeliversToTopicSubscribers(t *testing.T) {
	t.Parallel()

	broker := NewMemoryBroker()
	defer broker.Close()

	orderID := uuid.New()
	ctx := context.Background()

	events, cancel, err := broker.Subscribe(ctx, OrderTopic(orderID))
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer cancel()

	other, cancelOther, err := broker.Subscribe(ctx, OrderTopic(uuid.New()))
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer cancelOther()

	event, err := NewEvent(EventDeliveryLocation, orderID, map[string]float64{"lat": 19.43, "lng": -99.13})
	if err != nil {
		t.Fatalf("NewEvent() error = %v", err)
	}
	if err := broker.Publish(ctx, OrderTopic(orderID), event); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	got := receive(t, events)
	if got.Type != EventDeliveryLocation || got.OrderID != orderID {
		t.Fatalf("unexpected event %+v", got)
	}
	var location map[string]float64
	if err := json.Unmarshal(got.Data, &location); err != nil || location["lat"] != 19.43 {
		t.Fatalf("unexpected payload %s (%v)", got.Data, err)
	}

	select {
	case unexpected := <-other:
		t.Fatalf("subscriber of another order received %+v", unexpected)
	default:
	}
}

func TestMemoryBrokerCancelClosesChannel(t *testing.T) {
	t.Parallel()

	broker := NewMemoryBroker()
	ctx, cancelCtx := context.WithCancel(context.Background())

	events, _, err := broker.Subscribe(ctx, AdminTopic)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	cancelCtx()

	select {
	case _, ok := <-events:
		if ok {
			t.Fatal("expected channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for close")
	}

	if err := broker.Publish(context.Background(), AdminTopic, Event{Type: EventOrderCreated}); err != nil {
		t.Fatalf("Publish() after cancel error = %v", err)
	}
}

func TestMemoryBrokerDropsWhenSubscriberIsFull(t *testing.T) {
	t.Parallel()

	broker := NewMemoryBroker()
	defer broker.Close()

	events, cancel, err := broker.Subscribe(context.Background(), AdminTopic)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer cancel()

	for i := 0; i < subscriberBuffer+10; i++ {
		if err := broker.Publish(context.Background(), AdminTopic, Event{Type: EventOrderCreated}); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}
	if len(events) != subscriberBuffer {
		t.Fatalf("expected buffer to hold %d events, got %d", subscriberBuffer, len(events))
	}
}

func TestMemoryBrokerClose(t *testing.T) {
	t.Parallel()

	broker := NewMemoryBroker()
	events, _, err := broker.Subscribe(context.Background(), AdminTopic)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if err := broker.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, ok := <-events; ok {
		t.Fatal("expected channel closed after broker close")
	}
	if _, _, err := broker.Subscribe(context.Background(), AdminTopic); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
