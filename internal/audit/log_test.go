package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"hullscope.io/internal/access"
	"hullscope.io/internal/obs"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	logger := obs.Logger()
	original := logger.Writer()
	logger.SetFlags(0)
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(original) })
	return &buf
}

func TestLogEvent(t *testing.T) {
	buf := captureLog(t)

	ctx := context.Background()
	ctx = WithRequestID(ctx, "req-123")
	ctx = access.ContextWithPrincipalID(ctx, "profile-42")

	if err := LogEvent(ctx, "audit.test", map[string]any{"foo": "bar"}); err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}

	line := buf.String()
	if line == "" {
		t.Fatal("expected log output")
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if entry["type"] != "audit" {
		t.Fatalf("unexpected type: %v", entry["type"])
	}
	if entry["event"] != "audit.test" {
		t.Fatalf("unexpected event: %v", entry["event"])
	}
	if entry["request_id"] != "req-123" {
		t.Fatalf("unexpected request id: %v", entry["request_id"])
	}
	if entry["principal_id"] != "profile-42" {
		t.Fatalf("unexpected principal id: %v", entry["principal_id"])
	}
	fields, ok := entry["fields"].(map[string]any)
	if !ok || fields["foo"] != "bar" {
		t.Fatalf("fields missing or incorrect: %v", entry["fields"])
	}
}

func TestLogEventRequiresName(t *testing.T) {
	if err := LogEvent(context.Background(), "  ", nil); err == nil {
		t.Fatal("expected error for empty event name")
	}
}

type recordingStore struct {
	events []access.Event
}

func (r *recordingStore) Append(ctx context.Context, evt access.Event) error {
	r.events = append(r.events, evt)
	return nil
}

type recordingPublisher struct {
	events []access.Event
}

func (r *recordingPublisher) Publish(evt access.Event) { r.events = append(r.events, evt) }

func TestSinkStampsAndFansOut(t *testing.T) {
	_ = captureLog(t)

	store := &recordingStore{}
	pub := &recordingPublisher{}
	sink := NewSink(store, pub)

	ctx := access.ContextWithPrincipalID(context.Background(), "profile-7")
	err := sink.Append(ctx, access.Event{
		Action:       "access.share.grant",
		ResourceType: "asset",
		ResourceID:   "asset-1",
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if len(store.events) != 1 || len(pub.events) != 1 {
		t.Fatalf("store=%d pub=%d, want 1 each", len(store.events), len(pub.events))
	}
	evt := store.events[0]
	if evt.ID == "" || evt.OccurredAt.IsZero() {
		t.Fatalf("event not stamped: %+v", evt)
	}
	if evt.ActorID != "profile-7" {
		t.Fatalf("actor not taken from context: %q", evt.ActorID)
	}
}
