package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
)

func TestNoopPublisher(t *testing.T) {
	pub := &NoopPublisher{}
	if err := pub.Publish(context.Background(), TopicEventClaimed, EventClaimed{}); err != nil {
		t.Fatalf("NoopPublisher.Publish returned unexpected error: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("NoopPublisher.Close returned unexpected error: %v", err)
	}
}

func TestPublishers_ImplementPublisher(t *testing.T) {
	var _ Publisher = (*NoopPublisher)(nil)
	var _ Publisher = (*NATSPublisher)(nil)
	var _ Publisher = (*MemoryPublisher)(nil)
}

func TestMemoryPublisher(t *testing.T) {
	pub := &MemoryPublisher{}
	ctx := context.Background()
	_ = pub.Publish(ctx, TopicEventClaimed, EventClaimed{EventID: "evt_1"})
	_ = pub.Publish(ctx, TopicEventProcessed, EventProcessed{EventID: "evt_1"})

	topics := pub.Topics()
	if len(topics) != 2 || topics[0] != TopicEventClaimed || topics[1] != TopicEventProcessed {
		t.Fatalf("Topics() = %v", topics)
	}
	ev, ok := pub.Events()[0].Event.(EventClaimed)
	if !ok || ev.EventID != "evt_1" {
		t.Fatalf("Events()[0] = %#v", pub.Events()[0])
	}

	pub.Err = errors.New("bus down")
	if err := pub.Publish(ctx, TopicAlert, Alert{}); err == nil {
		t.Fatal("expected configured error")
	}
	if len(pub.Events()) != 2 {
		t.Fatalf("failed publish should not be recorded, got %d events", len(pub.Events()))
	}
}

func TestNATSPublisher_Publish(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connecting subscriber: %v", err)
	}
	defer nc.Close()

	ch := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe(TopicEventClaimed, ch)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer sub.Unsubscribe() //nolint:errcheck
	nc.Flush()

	event := EventClaimed{EventID: "evt_pub1", EventType: "invoice.paid", Attempts: 1, Reason: "new"}
	if err := pub.Publish(context.Background(), TopicEventClaimed, event); err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	pub.conn.Flush()

	select {
	case msg := <-ch:
		var got EventClaimed
		if err := json.Unmarshal(msg.Data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got != event {
			t.Errorf("got %+v, want %+v", got, event)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published message")
	}
}

func TestNATSPublisher_CanceledContext(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := pub.Publish(ctx, TopicEventClaimed, EventClaimed{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNATSPublisher_PublishMultipleTopics(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connecting subscriber: %v", err)
	}
	defer nc.Close()

	ch := make(chan *nats.Msg, 4)
	sub, err := nc.ChanSubscribe(TopicAll, ch)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer sub.Unsubscribe() //nolint:errcheck
	nc.Flush()

	for _, tc := range []struct {
		topic string
		event any
	}{
		{TopicEventDuplicate, EventDuplicate{EventID: "evt_1", Reason: "already_processed"}},
		{TopicEventFailed, EventFailed{EventID: "evt_2", Attempts: 1, Error: "boom"}},
		{TopicEventExhausted, EventExhausted{EventID: "evt_2", Attempts: 3, MaxAttempts: 3}},
		{TopicAlert, Alert{Severity: "critical", Total: 5, Failed: 2}},
	} {
		if err := pub.Publish(context.Background(), tc.topic, tc.event); err != nil {
			t.Fatalf("Publish(%s): %v", tc.topic, err)
		}
	}
	pub.conn.Flush()

	for i := 0; i < 4; i++ {
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for message %d", i)
		}
	}
}
