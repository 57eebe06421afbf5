// Package events publishes status and transcript events to NATS.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Publisher is the subset of *nats.Conn used for fire-and-forget events.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Status is emitted on every listener state change.
type Status struct {
	State     string `json:"state"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// Transcript is emitted once per flushed recording.
type Transcript struct {
	SessionID  string   `json:"session_id"`
	Text       string   `json:"text"`
	Entries    []string `json:"entries"`
	StartedAt  int64    `json:"started_at"`
	FinishedAt int64    `json:"finished_at"`
}

// Bus marshals events as JSON onto a Publisher.
type Bus struct {
	pub    Publisher
	conn   *nats.Conn
	logger *slog.Logger
}

// NewBus wraps an existing publisher.
func NewBus(pub Publisher, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Bus{pub: pub, logger: logger}
}

// Connect dials url with reconnect handling. Reconnects continue in the background.
func Connect(url string, logger *slog.Logger) (*Bus, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	opts := []nats.Option{
		nats.Name("dexter"),
		nats.Timeout(2 * time.Second),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	logger.Info("nats connected", "url", conn.ConnectedUrl())

	return &Bus{pub: conn, conn: conn, logger: logger}, nil
}

// PublishJSON marshals v and publishes it on subject.
func (b *Bus) PublishJSON(subject string, v any) error {
	if b == nil || b.pub == nil {
		return errors.New("nats connection not established")
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal event for %s: %w", subject, err)
	}
	if err := b.pub.Publish(subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	return nil
}

// Close drains pending publishes when the bus owns its connection.
func (b *Bus) Close() error {
	if b == nil || b.conn == nil {
		return nil
	}
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
		return fmt.Errorf("drain nats: %w", err)
	}
	return nil
}
