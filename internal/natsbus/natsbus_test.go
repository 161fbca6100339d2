package natsbus

import (
	"testing"
	"time"

	"github.com/akontos/sirena/internal/config"
	"github.com/nats-io/nats.go"
)

func newTestBus(t *testing.T) *Bus {
	t.Helper()
	bus, err := New(config.NATSConfig{
		Port:    -1, // random port
		DataDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("failed to create bus: %v", err)
	}
	t.Cleanup(bus.Close)
	return bus
}

func TestBusStartStop(t *testing.T) {
	bus := newTestBus(t)
	if bus.ClientURL() == "" {
		t.Fatal("expected non-empty client URL")
	}
}

func TestPubSub(t *testing.T) {
	bus := newTestBus(t)

	client, err := NewClient(bus)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	defer client.Close()

	received := make(chan string, 1)
	_, err = client.Subscribe(TopicEventsAll, func(msg *nats.Msg) {
		received <- msg.Subject
	})
	if err != nil {
		t.Fatalf("subscribe error: %v", err)
	}

	if err := client.Publish(TopicSilentSession("user-1"), []byte(`{"type":"activated"}`)); err != nil {
		t.Fatalf("publish error: %v", err)
	}
	client.Flush()

	select {
	case subject := <-received:
		if subject != "events.silent.user-1" {
			t.Errorf("expected subject events.silent.user-1, got %s", subject)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestTopicHelpers(t *testing.T) {
	if got := TopicRequestEvents("req-1"); got != "events.request.req-1" {
		t.Errorf("unexpected request topic: %s", got)
	}
	if got := TopicUserEvents("user-1"); got != "events.user.user-1" {
		t.Errorf("unexpected user topic: %s", got)
	}
	if got := TopicRoleEvents("field_agent"); got != "events.role.field_agent" {
		t.Errorf("unexpected role topic: %s", got)
	}
}
