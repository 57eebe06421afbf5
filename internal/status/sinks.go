package status

import (
	"context"
	"log/slog"

	"github.com/rbright/dexter/internal/artifact"
	"github.com/rbright/dexter/internal/events"
)

// FileSink replaces the status artifact with the message text.
type FileSink struct {
	Path string
}

func (s FileSink) Publish(_ context.Context, snap Snapshot) error {
	return artifact.Write(s.Path, []byte(snap.Message), 0o644)
}

// LogSink records each status change.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Publish(ctx context.Context, snap Snapshot) error {
	if s.Logger == nil {
		return nil
	}
	s.Logger.InfoContext(ctx, "status", "state", string(snap.State), "message", snap.Message)
	return nil
}

// EventSink emits status events on a NATS subject.
type EventSink struct {
	Bus     *events.Bus
	Subject string
}

func (s EventSink) Publish(_ context.Context, snap Snapshot) error {
	return s.Bus.PublishJSON(s.Subject, events.Status{
		State:     string(snap.State),
		Message:   snap.Message,
		Timestamp: snap.At.UnixMilli(),
	})
}
