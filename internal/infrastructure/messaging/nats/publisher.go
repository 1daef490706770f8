// Package nats delivers outbox messages to a NATS broker. The relay drains
// PENDING outbox rows in the background and publishes them on
// "<prefix>.<event_type>" subjects; delivery is at-least-once, consumers
// deduplicate on event id.
package nats

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/Haleralex/walletledger/internal/application/ports"
)

// Config holds NATS connection settings.
type Config struct {
	// URL of the broker, e.g. nats://localhost:4222. Empty disables the
	// relay entirely.
	URL string

	// ClientName identifies this service on the broker.
	ClientName string

	// SubjectPrefix is prepended to every event type to form the subject.
	SubjectPrefix string

	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectTimeout time.Duration
}

// DefaultConfig returns settings suitable for local development.
func DefaultConfig() Config {
	return Config{
		URL:            nats.DefaultURL,
		ClientName:     "walletledger",
		SubjectPrefix:  "walletledger.events",
		MaxReconnects:  -1, // keep reconnecting
		ReconnectWait:  2 * time.Second,
		ConnectTimeout: 5 * time.Second,
	}
}

// Connect dials the broker with reconnect handling wired to the logger.
func Connect(cfg Config, log *slog.Logger) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name(cfg.ClientName),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.ConnectTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("NATS disconnected", slog.String("error", err.Error()))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Info("NATS connection closed")
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}

	return conn, nil
}

// Publisher publishes outbox messages on the broker.
type Publisher struct {
	conn   *nats.Conn
	prefix string
}

// NewPublisher creates a Publisher over an established connection.
func NewPublisher(conn *nats.Conn, subjectPrefix string) *Publisher {
	return &Publisher{
		conn:   conn,
		prefix: subjectPrefix,
	}
}

// SubjectFor builds the subject for an event type:
// "walletledger.events" + "transfer.completed" -> "walletledger.events.transfer.completed".
func (p *Publisher) SubjectFor(eventType string) string {
	return p.prefix + "." + eventType
}

// Publish sends one outbox message. The outbox row id travels in the header
// so consumers can deduplicate replays.
func (p *Publisher) Publish(msg ports.OutboxMessage) error {
	m := nats.NewMsg(p.SubjectFor(msg.EventType))
	m.Data = msg.Payload
	m.Header.Set("Event-Id", msg.ID.String())
	m.Header.Set("Event-Type", msg.EventType)
	m.Header.Set("Partition-Key", msg.PartitionKey)

	if err := p.conn.PublishMsg(m); err != nil {
		return fmt.Errorf("failed to publish %s: %w", msg.EventType, err)
	}
	return nil
}

// IsConnected reports broker connectivity.
func (p *Publisher) IsConnected() bool {
	return p.conn != nil && p.conn.IsConnected()
}

// Close drains the connection, flushing buffered publishes.
func (p *Publisher) Close() {
	if p.conn != nil && !p.conn.IsClosed() {
		_ = p.conn.Drain()
	}
}
