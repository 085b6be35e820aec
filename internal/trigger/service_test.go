package trigger

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"

	"github.com/hushabye/hush-core/internal/bus"
	"github.com/hushabye/hush-core/internal/config"
	"github.com/hushabye/hush-core/internal/pipeline"
	"github.com/hushabye/hush-core/internal/protocol"
	"github.com/hushabye/hush-core/internal/storystore"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestTrigger stands up a NATS server, a mock-backed pipeline and a
// running trigger service. The returned conn is a second client for
// the test to publish requests and observe lifecycle subjects.
func newTestTrigger(t *testing.T) (*storystore.Store, *nats.Conn) {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1
	srv := test.RunServer(&opts)
	t.Cleanup(srv.Shutdown)

	cfg := config.Default()
	cfg.Generation.Provider = "mock"
	cfg.Synthesis.Provider = "mock"
	cfg.Story.SeedCacheDir = t.TempDir()
	cfg.Store.Path = filepath.Join(t.TempDir(), "stories.db")
	cfg.Bus.Embedded = false
	cfg.Bus.Servers = []string{srv.ClientURL()}

	st, err := storystore.Open(context.Background(), cfg.Store, newLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	busClient, err := bus.Connect(context.Background(), cfg.Bus, newLogger())
	if err != nil {
		t.Fatalf("connect bus: %v", err)
	}
	t.Cleanup(busClient.Close)

	stories, err := pipeline.NewService(cfg, st, newLogger())
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	svc := NewService(context.Background(), cfg.Trigger, busClient, stories, newLogger())
	if err := svc.Start(); err != nil {
		t.Fatalf("start trigger: %v", err)
	}
	t.Cleanup(svc.Close)
	if !svc.Healthy() {
		t.Fatalf("expected trigger to be healthy after start")
	}

	conn, err := nats.Connect(srv.ClientURL())
	if err != nil {
		t.Fatalf("connect test client: %v", err)
	}
	t.Cleanup(conn.Close)

	return st, conn
}

func subscribe(t *testing.T, conn *nats.Conn, subject string) *nats.Subscription {
	t.Helper()
	sub, err := conn.SubscribeSync(subject)
	if err != nil {
		t.Fatalf("subscribe %s: %v", subject, err)
	}
	return sub
}

func publishRequest(t *testing.T, conn *nats.Conn, req protocol.StoryRequest) {
	t.Helper()
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	if err := conn.Publish(protocol.SubjectStoryRequest, data); err != nil {
		t.Fatalf("publish request: %v", err)
	}
}

func nextEvent(t *testing.T, sub *nats.Subscription, timeout time.Duration) protocol.StreamEvent {
	t.Helper()
	msg, err := sub.NextMsg(timeout)
	if err != nil {
		t.Fatalf("waiting for stream event: %v", err)
	}
	var ev protocol.StreamEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		t.Fatalf("decode stream event: %v", err)
	}
	return ev
}

func TestTriggerRunsStoryAndPublishesReady(t *testing.T) {
	st, conn := newTestTrigger(t)

	events := subscribe(t, conn, protocol.SubjectStoryEvents)
	ready := subscribe(t, conn, protocol.SubjectStoryReady)
	if err := conn.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	publishRequest(t, conn, protocol.StoryRequest{
		RequestID: "req-1",
		Device:    "bedside",
		Universe:  "Paw Patrol",
		Timestamp: time.Now().UTC(),
	})

	var sawMetadata, sawText bool
	var complete protocol.StreamEvent
	deadline := time.Now().Add(5 * time.Second)
	for complete.Type != protocol.EventComplete {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			t.Fatalf("no complete event before deadline")
		}
		ev := nextEvent(t, events, remaining)
		switch ev.Type {
		case protocol.EventMetadata:
			sawMetadata = true
			if ev.Metadata == nil || ev.Metadata.Universe != "Paw Patrol" {
				t.Fatalf("unexpected metadata %+v", ev.Metadata)
			}
		case protocol.EventText:
			sawText = true
		case protocol.EventError:
			t.Fatalf("unexpected error event: %s", ev.Error)
		case protocol.EventComplete:
			complete = ev
		}
	}
	if !sawMetadata || !sawText {
		t.Fatalf("missing lifecycle events: metadata=%v text=%v", sawMetadata, sawText)
	}

	msg, err := ready.NextMsg(2 * time.Second)
	if err != nil {
		t.Fatalf("waiting for ready notice: %v", err)
	}
	var note protocol.StoryReady
	if err := json.Unmarshal(msg.Data, &note); err != nil {
		t.Fatalf("decode ready notice: %v", err)
	}
	if note.RequestID != "req-1" {
		t.Fatalf("unexpected request id %q", note.RequestID)
	}
	if note.StoryID != complete.StoryID || note.StoryID <= 0 {
		t.Fatalf("ready story id %d does not match complete event %d", note.StoryID, complete.StoryID)
	}
	if note.AudioPath != "mock-story.mp3" {
		t.Fatalf("unexpected audio path %q", note.AudioPath)
	}

	stored, err := st.StoryByID(context.Background(), note.StoryID)
	if err != nil {
		t.Fatalf("StoryByID: %v", err)
	}
	if stored.Universe != "Paw Patrol" {
		t.Fatalf("device override lost, stored universe %q", stored.Universe)
	}
	if stored.Title != note.Title {
		t.Fatalf("stored title %q does not match notice %q", stored.Title, note.Title)
	}
}

func TestTriggerDropsSecondRequestWhileBusy(t *testing.T) {
	_, conn := newTestTrigger(t)

	events := subscribe(t, conn, protocol.SubjectStoryEvents)
	busy := subscribe(t, conn, protocol.SubjectStoryBusy)
	ready := subscribe(t, conn, protocol.SubjectStoryReady)
	if err := conn.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	publishRequest(t, conn, protocol.StoryRequest{RequestID: "req-a", Timestamp: time.Now().UTC()})

	// The metadata event means the first request holds the gate.
	if ev := nextEvent(t, events, 2*time.Second); ev.Type != protocol.EventMetadata {
		t.Fatalf("expected metadata first, got %+v", ev)
	}

	publishRequest(t, conn, protocol.StoryRequest{RequestID: "req-b", Timestamp: time.Now().UTC()})

	msg, err := busy.NextMsg(2 * time.Second)
	if err != nil {
		t.Fatalf("waiting for busy notice: %v", err)
	}
	var notice protocol.StoryBusy
	if err := json.Unmarshal(msg.Data, &notice); err != nil {
		t.Fatalf("decode busy notice: %v", err)
	}
	if notice.RequestID != "req-b" {
		t.Fatalf("expected the second request dropped, got %q", notice.RequestID)
	}
	if notice.Reason == "" {
		t.Fatalf("expected a drop reason")
	}

	msg, err = ready.NextMsg(5 * time.Second)
	if err != nil {
		t.Fatalf("waiting for first request to finish: %v", err)
	}
	var note protocol.StoryReady
	if err := json.Unmarshal(msg.Data, &note); err != nil {
		t.Fatalf("decode ready notice: %v", err)
	}
	if note.RequestID != "req-a" {
		t.Fatalf("expected req-a to finish, got %q", note.RequestID)
	}
}

func TestTriggerSurvivesMalformedRequests(t *testing.T) {
	_, conn := newTestTrigger(t)

	ready := subscribe(t, conn, protocol.SubjectStoryReady)
	if err := conn.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	if err := conn.Publish(protocol.SubjectStoryRequest, []byte("not json")); err != nil {
		t.Fatalf("publish garbage: %v", err)
	}
	// An empty request is valid: elements randomize, the id is assigned.
	if err := conn.Publish(protocol.SubjectStoryRequest, []byte("{}")); err != nil {
		t.Fatalf("publish empty request: %v", err)
	}

	msg, err := ready.NextMsg(5 * time.Second)
	if err != nil {
		t.Fatalf("waiting for ready notice: %v", err)
	}
	var note protocol.StoryReady
	if err := json.Unmarshal(msg.Data, &note); err != nil {
		t.Fatalf("decode ready notice: %v", err)
	}
	if note.RequestID == "" {
		t.Fatalf("expected a generated request id")
	}
	if note.StoryID <= 0 {
		t.Fatalf("expected a persisted story id, got %d", note.StoryID)
	}
}

func TestTriggerDisabled(t *testing.T) {
	svc := NewService(context.Background(), config.TriggerConfig{Enabled: false}, nil, nil, newLogger())
	if err := svc.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !svc.Healthy() {
		t.Fatalf("disabled trigger should report healthy")
	}
	svc.Close()
}
