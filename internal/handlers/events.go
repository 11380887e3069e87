package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/realtime"
)

// OrderEvents streams one order's events as Server-Sent Events.
func (h *Handlers) OrderEvents(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.streamEvents(w, r, id)
}

// AllOrderEvents streams the operators' feed of every order.
func (h *Handlers) AllOrderEvents(w http.ResponseWriter, r *http.Request) {
	h.streamEvents(w, r, uuid.Nil)
}

func (h *Handlers) streamEvents(w http.ResponseWriter, r *http.Request, orderID uuid.UUID) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)
	actor, _ := identityFromContext(ctx)

	events, cancel, err := h.orderService.Subscribe(ctx, actor, orderID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer cancel()

	rc := http.NewResponseController(w)
	// Streams outlive the server's write timeout.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		logger.Debug("could not clear write deadline", "error", err)
	}

	headers := w.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	headers.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if _, err := io.WriteString(w, ": connected\n\n"); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		logger.Error("event stream does not support flushing", "error", err)
		return
	}
	logger.Debug("event stream opened", "order_id", orderID)

	keepAlive := time.NewTicker(h.eventsKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug("event stream closed by client", "order_id", orderID)
			return
		case <-keepAlive.C:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(w, event); err != nil {
				logger.Debug("event stream write failed", "error", err)
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

// writeEvent writes one SSE frame named after the event type.
func writeEvent(w io.Writer, event realtime.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
	return err
}
