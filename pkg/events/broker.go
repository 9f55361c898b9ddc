// Package events delivers pipeline status events to subscribers.
// Delivery is best-effort: a slow or absent subscriber never blocks the
// publisher, which keeps stage transitions free of backpressure.
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// StatusEvent describes a single stage transition of one document.
type StatusEvent struct {
	DocumentID uuid.UUID      `json:"document_id"`
	From       string         `json:"from_state"`
	To         string         `json:"to_state"`
	Terminal   bool           `json:"terminal"`
	Payload    map[string]any `json:"payload,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Sink receives every published event, typically forwarding it out of process.
type Sink interface {
	Publish(ctx context.Context, ev StatusEvent) error
}

const subscriberBuffer = 16

type subscriber struct {
	ch   chan StatusEvent
	once sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.ch) })
}

// Broker fans status events out to per-document subscribers and global sinks.
type Broker struct {
	logger *slog.Logger
	sinks  []Sink

	mu   sync.Mutex
	subs map[uuid.UUID][]*subscriber
}

// NewBroker creates a Broker forwarding every event to the given sinks.
func NewBroker(logger *slog.Logger, sinks ...Sink) *Broker {
	return &Broker{
		logger: logger.With("system", "events"),
		sinks:  sinks,
		subs:   make(map[uuid.UUID][]*subscriber),
	}
}

// Subscribe returns a channel of status events for the given document and a
// cancel function releasing the subscription. The channel is closed when the
// document reaches a terminal stage or the subscription is cancelled. Events
// published before Subscribe are not replayed.
func (b *Broker) Subscribe(documentID uuid.UUID) (<-chan StatusEvent, func()) {
	sub := &subscriber{ch: make(chan StatusEvent, subscriberBuffer)}

	b.mu.Lock()
	b.subs[documentID] = append(b.subs[documentID], sub)
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		subs := b.subs[documentID]
		for i, s := range subs {
			if s == sub {
				b.subs[documentID] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		if len(b.subs[documentID]) == 0 {
			delete(b.subs, documentID)
		}
		b.mu.Unlock()
		sub.close()
	}

	return sub.ch, cancel
}

// Publish delivers ev to all subscribers of its document and to every sink.
// Subscribers with full buffers are skipped. Terminal events close the
// document's subscriptions after delivery.
func (b *Broker) Publish(ctx context.Context, ev StatusEvent) {
	b.mu.Lock()
	subs := append([]*subscriber(nil), b.subs[ev.DocumentID]...)
	if ev.Terminal {
		delete(b.subs, ev.DocumentID)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub.ch <- ev:
		default:
			b.logger.Warn(
				"dropping status event for slow subscriber",
				"document_id", ev.DocumentID,
				"to_state", ev.To,
			)
		}
		if ev.Terminal {
			sub.close()
		}
	}

	for _, sink := range b.sinks {
		go func(s Sink) {
			if err := s.Publish(ctx, ev); err != nil {
				b.logger.Warn(
					"event sink publish failed",
					"document_id", ev.DocumentID,
					"error", err,
				)
			}
		}(sink)
	}
}
