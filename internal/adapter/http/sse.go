package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bnema/convqueue/internal/service"
)

const keepAliveInterval = 15 * time.Second

type EventSource interface {
	Subscribe() chan service.Event
	Unsubscribe(ch chan service.Event)
}

type SSEHandler struct {
	events   EventSource
	handlers *Handlers
}

func NewSSEHandler(events EventSource, handlers *Handlers) *SSEHandler {
	return &SSEHandler{
		events:   events,
		handlers: handlers,
	}
}

// sseWrite writes one event, splitting multi-line data into data lines.
func sseWrite(w http.ResponseWriter, id, eventName, data string) {
	if id != "" {
		_, _ = fmt.Fprintf(w, "id: %s\n", id)
	}
	_, _ = fmt.Fprintf(w, "event: %s\n", eventName)
	for _, line := range strings.Split(data, "\n") {
		_, _ = fmt.Fprintf(w, "data: %s\n", line)
	}
	_, _ = fmt.Fprint(w, "\n")
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func sendKeepAlive(w http.ResponseWriter) {
	_, _ = fmt.Fprint(w, ": keep-alive\n\n")
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func sendEvent(w http.ResponseWriter, ev service.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	sseWrite(w, ev.ID, string(ev.Type), string(data))
	return nil
}

// Events streams queue lifecycle events. The first event is a "snapshot" of
// the whole queue so clients never start from an empty view.
func (h *SSEHandler) Events() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		ch := h.events.Subscribe()
		defer h.events.Unsubscribe(ch)

		snapshot, err := json.Marshal(h.handlers.state())
		if err != nil {
			http.Error(w, "snapshot failed", http.StatusInternalServerError)
			return
		}
		sseWrite(w, "", "snapshot", string(snapshot))

		ctx := r.Context()
		keepAlive := time.NewTicker(keepAliveInterval)
		defer keepAlive.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-keepAlive.C:
				sendKeepAlive(w)
			case ev, ok := <-ch:
				if !ok {
					return
				}
				if err := sendEvent(w, ev); err != nil {
					return
				}
			}
		}
	}
}
