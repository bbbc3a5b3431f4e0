package http

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/convqueue/internal/domain"
	"github.com/bnema/convqueue/internal/service"
)

func TestSSEWrite_MultiLineData(t *testing.T) {
	rec := httptest.NewRecorder()

	sseWrite(rec, "ev-1", "item_updated", "line one\nline two")

	assert.Equal(t, "id: ev-1\nevent: item_updated\ndata: line one\ndata: line two\n\n", rec.Body.String())
	assert.True(t, rec.Flushed)
}

func TestSSEWrite_WithoutID(t *testing.T) {
	rec := httptest.NewRecorder()

	sseWrite(rec, "", "snapshot", "{}")

	assert.Equal(t, "event: snapshot\ndata: {}\n\n", rec.Body.String())
}

// readEvent reads lines up to the blank line ending one event.
func readEvent(t *testing.T, r *bufio.Reader) map[string]string {
	t.Helper()
	fields := map[string]string{}
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		if line == "" {
			if len(fields) == 0 {
				continue
			}
			return fields
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		k, v, _ := strings.Cut(line, ": ")
		fields[k] += v
	}
}

func TestSSEHandler_StreamsEvents(t *testing.T) {
	ts := newTestServer(t)
	ts.expectState(service.QueueIdle, nil, []*domain.QueueItem{})

	srv := httptest.NewServer(ts.server)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	snapshot := readEvent(t, reader)
	assert.Equal(t, "snapshot", snapshot["event"])
	assert.Contains(t, snapshot["data"], `"status":"idle"`)
	require.Equal(t, 1, ts.bus.SubscriberCount())

	ts.bus.Publish(service.Event{
		ID:          "ev-42",
		Type:        service.EventItemCompleted,
		Item:        &domain.QueueItem{ID: 9, Status: domain.ItemStatusComplete},
		QueueStatus: service.QueueProcessing,
		At:          time.Now(),
	})

	ev := readEvent(t, reader)
	assert.Equal(t, "ev-42", ev["id"])
	assert.Equal(t, "item_completed", ev["event"])
	assert.Contains(t, ev["data"], `"status":"complete"`)
}

func TestSSEHandler_UnsubscribesOnDisconnect(t *testing.T) {
	ts := newTestServer(t)
	ts.expectState(service.QueueIdle, nil, nil)

	srv := httptest.NewServer(ts.server)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	readEvent(t, bufio.NewReader(resp.Body))

	cancel()
	resp.Body.Close()

	assert.Eventually(t, func() bool { return ts.bus.SubscriberCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}
