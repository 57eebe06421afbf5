package output

import (
	"context"

	"github.com/rbright/dexter/internal/events"
	"github.com/rbright/dexter/internal/history"
	"github.com/rbright/dexter/internal/session"
)

// Recorder stores completed sessions.
type Recorder interface {
	Insert(context.Context, history.Record) error
}

// History records each transcript in the session store.
type History struct {
	Store Recorder
}

func (h History) Follow(ctx context.Context, transcript session.Transcript) error {
	return h.Store.Insert(ctx, history.Record{
		ID:         transcript.ID,
		StartedAt:  transcript.StartedAt,
		FinishedAt: transcript.FinishedAt,
		Entries:    transcript.Entries,
		Text:       transcript.Text(),
	})
}

// Event publishes each transcript on a NATS subject.
type Event struct {
	Bus     *events.Bus
	Subject string
}

func (e Event) Follow(_ context.Context, transcript session.Transcript) error {
	return e.Bus.PublishJSON(e.Subject, events.Transcript{
		SessionID:  transcript.ID,
		Text:       transcript.Text(),
		Entries:    transcript.Entries,
		StartedAt:  transcript.StartedAt.UnixMilli(),
		FinishedAt: transcript.FinishedAt.UnixMilli(),
	})
}
