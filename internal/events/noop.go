package events

import (
	"context"
	"sync"
)

// NoopPublisher is a Publisher that does nothing (used when NATS is not configured).
type NoopPublisher struct{}

func (n *NoopPublisher) Publish(ctx context.Context, topic string, event any) error {
	return nil
}

func (n *NoopPublisher) Close() error {
	return nil
}

// Published is one call recorded by MemoryPublisher.
type Published struct {
	Topic string
	Event any
}

// MemoryPublisher keeps every published event in memory. It is meant for
// tests and for embedding the ledger without a bus.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Published
	Err    error // returned from every Publish when set
}

func (m *MemoryPublisher) Publish(ctx context.Context, topic string, event any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.events = append(m.events, Published{Topic: topic, Event: event})
	return nil
}

func (m *MemoryPublisher) Close() error {
	return nil
}

// Events returns a copy of everything published so far.
func (m *MemoryPublisher) Events() []Published {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Published, len(m.events))
	copy(out, m.events)
	return out
}

// Topics returns the topics published so far, in order.
func (m *MemoryPublisher) Topics() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	for i, e := range m.events {
		out[i] = e.Topic
	}
	return out
}
