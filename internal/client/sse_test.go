package client

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// sseHandler writes a fixed event-stream body with flushing.
func sseHandler(t *testing.T, body string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if accept := r.Header.Get("Accept"); accept != "text/event-stream" {
			t.Errorf("expected Accept: text/event-stream, got %q", accept)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(body))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
}

// collectEvents drains the channel until close or timeout.
func collectEvents(t *testing.T, events <-chan SSEEvent) []SSEEvent {
	t.Helper()
	var got []SSEEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return got
			}
			got = append(got, ev)
		case <-timeout:
			t.Fatal("timed out waiting for events channel to close")
		}
	}
}

func TestSSEConnect(t *testing.T) {
	body := "event: delta\ndata: {\"text\":\"The EMEA\"}\n\n" +
		"event: delta\ndata: {\"text\":\" region grew fastest.\"}\n\n" +
		"event: done\ndata: {}\n\n"
	server := httptest.NewServer(sseHandler(t, body))
	defer server.Close()

	events, err := NewSSE("k").Connect(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Connect() error: %v", err)
	}

	got := collectEvents(t, events)
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d: %+v", len(got), got)
	}
	if got[0].Type != EventDelta {
		t.Errorf("expected delta event, got %q", got[0].Type)
	}
	d, err := got[0].DecodeDelta()
	if err != nil {
		t.Fatalf("DecodeDelta() error: %v", err)
	}
	if d.Text != "The EMEA" {
		t.Errorf("unexpected delta text %q", d.Text)
	}
	if got[2].Type != EventDone {
		t.Errorf("expected done event last, got %q", got[2].Type)
	}
}

func TestSSEAuthHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer stream-key" {
			t.Errorf("expected Bearer stream-key, got %q", auth)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("event: done\ndata: {}\n\n"))
	}))
	defer server.Close()

	events, err := NewSSE("stream-key").Connect(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	collectEvents(t, events)
}

func TestSSEConnectHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"session not found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	_, err := NewSSE("k").Connect(context.Background(), server.URL)
	clientErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %v", err)
	}
	if clientErr.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", clientErr.StatusCode)
	}
}

func TestSSEDefaultEventType(t *testing.T) {
	// No "event:" line: the SSE default type applies.
	body := "data: {\"message_id\":\"msg-1\",\"body\":\"hi\"}\n\n"
	server := httptest.NewServer(sseHandler(t, body))
	defer server.Close()

	events, err := NewSSE("k").Connect(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	got := collectEvents(t, events)
	if len(got) != 1 || got[0].Type != EventMessage {
		t.Fatalf("expected one message event, got %+v", got)
	}
	m, err := got[0].DecodeMessage()
	if err != nil {
		t.Fatalf("DecodeMessage() error: %v", err)
	}
	if m.MessageID != "msg-1" {
		t.Errorf("unexpected message id %q", m.MessageID)
	}
}

func TestSSEMultilineData(t *testing.T) {
	body := "data: line one\ndata: line two\n\n"
	server := httptest.NewServer(sseHandler(t, body))
	defer server.Close()

	events, err := NewSSE("k").Connect(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	got := collectEvents(t, events)
	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	if got[0].Data != "line one\nline two" {
		t.Errorf("expected joined data lines, got %q", got[0].Data)
	}
}

func TestSSEIgnoresCommentsAndRetry(t *testing.T) {
	body := ": keepalive\nretry: 3000\nid: 7\ndata: {\"text\":\"x\"}\n\n"
	server := httptest.NewServer(sseHandler(t, body))
	defer server.Close()

	events, err := NewSSE("k").Connect(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	got := collectEvents(t, events)
	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	if got[0].ID != "7" {
		t.Errorf("expected id 7, got %q", got[0].ID)
	}
}

func TestSSEOversizedEventDiscarded(t *testing.T) {
	// Many small data lines summing past the event cap, then a normal event.
	// The oversized event must be dropped without killing the stream.
	var b strings.Builder
	line := "data: " + strings.Repeat("a", MaxSSELineSize/2) + "\n"
	for written := 0; written <= MaxSSEEventSize; written += MaxSSELineSize / 2 {
		b.WriteString(line)
	}
	b.WriteString("\n")
	b.WriteString("event: done\ndata: {}\n\n")

	server := httptest.NewServer(sseHandler(t, b.String()))
	defer server.Close()

	events, err := NewSSE("k").Connect(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	got := collectEvents(t, events)
	if len(got) != 1 {
		t.Fatalf("expected only the done event, got %d: %+v", len(got), got)
	}
	if got[0].Type != EventDone {
		t.Errorf("expected done event, got %q", got[0].Type)
	}
}

func TestSSEContextCancel(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("event: delta\ndata: {\"text\":\"partial\"}\n\n"))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-release // Hold the connection open
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	events, err := NewSSE("k").Connect(ctx, server.URL)
	if err != nil {
		t.Fatalf("Connect() error: %v", err)
	}

	select {
	case ev := <-events:
		if ev.Type != EventDelta {
			t.Errorf("expected delta, got %q", ev.Type)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for first event")
	}

	cancel()

	select {
	case _, ok := <-events:
		if ok {
			// A buffered event may still arrive; the channel must close after.
			if _, ok := <-events; ok {
				t.Error("expected channel to close after cancel")
			}
		}
	case <-time.After(5 * time.Second):
		t.Fatal("channel not closed after context cancel")
	}
}

func TestSSEDecodeJob(t *testing.T) {
	body := fmt.Sprintf("event: job\ndata: {\"job_id\":\"job-1\",\"status\":%q,\"progress\":0.5}\n\n", JobRunning)
	server := httptest.NewServer(sseHandler(t, body))
	defer server.Close()

	events, err := NewSSE("k").Connect(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	got := collectEvents(t, events)
	if len(got) != 1 || got[0].Type != EventJob {
		t.Fatalf("expected one job event, got %+v", got)
	}
	j, err := got[0].DecodeJob()
	if err != nil {
		t.Fatalf("DecodeJob() error: %v", err)
	}
	if j.JobID != "job-1" || j.Status != JobRunning || j.Progress != 0.5 {
		t.Errorf("unexpected job payload %+v", j)
	}
}
