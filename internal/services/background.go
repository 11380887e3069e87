package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/realtime"
)

const backgroundTimeout = 10 * time.Second

// background runs side effects that must never fail or delay the request
// that triggered them. Work keeps the request's values but not its
// cancellation.
type background struct {
	wg sync.WaitGroup
}

func (b *background) Go(ctx context.Context, logger *slog.Logger, name string, fn func(ctx context.Context) error) {
	detached := context.WithoutCancel(ctx)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ctx, cancel := context.WithTimeout(detached, backgroundTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			logger.WarnContext(ctx, "background task failed", "task", name, "error", err)
		}
	}()
}

// Wait blocks until every started task returned.
func (b *background) Wait() {
	b.wg.Wait()
}

// publish sends one event per topic in the background.
func publish(ctx context.Context, bg *background, notifier realtime.Notifier, logger *slog.Logger, eventType string, orderID uuid.UUID, payload any, topics ...string) {
	if notifier == nil {
		return
	}
	event, err := realtime.NewEvent(eventType, orderID, payload)
	if err != nil {
		logger.WarnContext(ctx, "failed to build realtime event", "type", eventType, "error", err)
		return
	}
	for _, topic := range topics {
		topic := topic
		bg.Go(ctx, logger, "publish "+eventType, func(ctx context.Context) error {
			return notifier.Publish(ctx, topic, event)
		})
	}
}
