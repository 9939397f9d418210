package commands

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tabledesk/tdk/internal/client"
)

func TestNotices(t *testing.T) {
	var buf bytes.Buffer
	PrintNotices(&buf) // Clear anything queued by other tests
	buf.Reset()

	AddNotice("job %s spawned", "job-1")
	AddNotice("transform %s suggested", "tf-1")

	PrintNotices(&buf)
	assert.Equal(t, "note: job job-1 spawned\nnote: transform tf-1 suggested\n", buf.String())

	// The queue is cleared after printing.
	buf.Reset()
	PrintNotices(&buf)
	assert.Empty(t, buf.String())
}

func TestStreamReplyDoneEvent(t *testing.T) {
	events := make(chan client.SSEEvent, 4)
	events <- client.SSEEvent{Type: client.EventDelta, Data: `{"text":"hello"}`}
	events <- client.SSEEvent{Type: client.EventDone, Data: `{}`}

	err := streamReply(context.Background(), events)
	assert.NoError(t, err)
}

func TestStreamReplyServerClose(t *testing.T) {
	events := make(chan client.SSEEvent, 4)
	events <- client.SSEEvent{Type: client.EventDelta, Data: `{"text":"partial"}`}
	close(events)

	err := streamReply(context.Background(), events)
	assert.NoError(t, err, "a closed stream without done is not an error")
}

func TestStreamReplyTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	events := make(chan client.SSEEvent) // Never delivers, never closes
	err := streamReply(ctx, events)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestStreamReplySkipsMalformedEvents(t *testing.T) {
	events := make(chan client.SSEEvent, 4)
	events <- client.SSEEvent{Type: client.EventDelta, Data: `{not json`}
	events <- client.SSEEvent{Type: client.EventDone, Data: `{}`}

	err := streamReply(context.Background(), events)
	assert.NoError(t, err)
}
