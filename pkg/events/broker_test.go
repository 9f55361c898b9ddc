package events_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ledgergate/ledgergate/pkg/events"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func receive(t *testing.T, ch <-chan events.StatusEvent) events.StatusEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("channel closed before event arrived")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return events.StatusEvent{}
	}
}

func TestSubscribeReceivesEvents(t *testing.T) {
	broker := events.NewBroker(testLogger())
	docID := uuid.New()

	ch, cancel := broker.Subscribe(docID)
	defer cancel()

	broker.Publish(context.Background(), events.StatusEvent{
		DocumentID: docID,
		From:       "ingested",
		To:         "extracting",
		Timestamp:  time.Now().UTC(),
	})

	ev := receive(t, ch)
	if ev.To != "extracting" {
		t.Errorf("to: got %q, want %q", ev.To, "extracting")
	}
}

func TestPublishIsolatesDocuments(t *testing.T) {
	broker := events.NewBroker(testLogger())
	docA := uuid.New()
	docB := uuid.New()

	chA, cancelA := broker.Subscribe(docA)
	defer cancelA()
	chB, cancelB := broker.Subscribe(docB)
	defer cancelB()

	broker.Publish(context.Background(), events.StatusEvent{DocumentID: docA, To: "extracting"})

	if ev := receive(t, chA); ev.DocumentID != docA {
		t.Errorf("document id: got %s, want %s", ev.DocumentID, docA)
	}
	select {
	case ev := <-chB:
		t.Errorf("unexpected event for other document: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTerminalEventClosesSubscription(t *testing.T) {
	broker := events.NewBroker(testLogger())
	docID := uuid.New()

	ch, cancel := broker.Subscribe(docID)
	defer cancel()

	broker.Publish(context.Background(), events.StatusEvent{
		DocumentID: docID,
		To:         "completed",
		Terminal:   true,
	})

	ev := receive(t, ch)
	if !ev.Terminal {
		t.Error("expected terminal event")
	}

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected channel to close after terminal event")
		}
	case <-time.After(time.Second):
		t.Error("channel not closed after terminal event")
	}
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	broker := events.NewBroker(testLogger())
	docID := uuid.New()

	_, cancel := broker.Subscribe(docID)
	defer cancel()

	// Publish far past the subscriber buffer without draining; Publish must
	// drop instead of blocking.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			broker.Publish(context.Background(), events.StatusEvent{DocumentID: docID, To: "extracting"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	broker := events.NewBroker(testLogger())
	docID := uuid.New()

	ch, cancel := broker.Subscribe(docID)
	cancel()

	broker.Publish(context.Background(), events.StatusEvent{DocumentID: docID, To: "extracting"})

	if _, ok := <-ch; ok {
		t.Error("expected closed channel after cancel")
	}
}

type recordingSink struct {
	mu     sync.Mutex
	events []events.StatusEvent
	err    error
}

func (s *recordingSink) Publish(ctx context.Context, ev events.StatusEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestSinkReceivesEveryEvent(t *testing.T) {
	sink := &recordingSink{}
	broker := events.NewBroker(testLogger(), sink)

	docID := uuid.New()
	for i := 0; i < 3; i++ {
		broker.Publish(context.Background(), events.StatusEvent{DocumentID: docID, To: "extracting"})
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if sink.count() == 3 {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Errorf("sink events: got %d, want 3", sink.count())
}

func TestSinkErrorDoesNotAffectSubscribers(t *testing.T) {
	sink := &recordingSink{err: errors.New("broker unavailable")}
	broker := events.NewBroker(testLogger(), sink)

	docID := uuid.New()
	ch, cancel := broker.Subscribe(docID)
	defer cancel()

	broker.Publish(context.Background(), events.StatusEvent{DocumentID: docID, To: "extracting"})

	if ev := receive(t, ch); ev.To != "extracting" {
		t.Errorf("to: got %q, want %q", ev.To, "extracting")
	}
}
