package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSSink publishes status events to a NATS subject per document
// (<subject>.<document_id>) for out-of-process progress consumers.
type NATSSink struct {
	conn    *nats.Conn
	subject string
}

// NewNATSSink connects to the NATS server at url. The connection retries in
// the background so an unavailable server does not block service startup.
func NewNATSSink(url, subject string, logger *slog.Logger) (*NATSSink, error) {
	log := logger.With("system", "events.nats")

	conn, err := nats.Connect(
		url,
		nats.Name("ledgergate"),
		nats.Timeout(2*time.Second),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(60),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	return &NATSSink{conn: conn, subject: subject}, nil
}

// Publish sends ev as JSON. Failures are reported to the caller but carry no
// delivery guarantee; the broker treats sinks as fire-and-forget.
func (s *NATSSink) Publish(_ context.Context, ev StatusEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal status event: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", s.subject, ev.DocumentID)
	if err := s.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish status event: %w", err)
	}
	return nil
}

// Close drains the underlying connection.
func (s *NATSSink) Close() {
	if s.conn != nil {
		s.conn.Close()
	}
}
