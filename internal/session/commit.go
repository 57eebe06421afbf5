package session

import (
	"context"
	"strings"
	"time"

	"github.com/rbright/dexter/internal/fsm"
)

// Transcript is one flushed recording session.
type Transcript struct {
	ID         string
	Entries    []string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Text joins entries with newlines, in utterance order.
func (t Transcript) Text() string {
	return strings.Join(t.Entries, "\n")
}

// Committer persists a transcript when a session times out.
type Committer interface {
	Commit(context.Context, Transcript) error
}

// CommitFunc adapts a function to the Committer interface.
type CommitFunc func(context.Context, Transcript) error

func (f CommitFunc) Commit(ctx context.Context, transcript Transcript) error {
	return f(ctx, transcript)
}

// Publisher announces state changes to observers.
type Publisher interface {
	Publish(ctx context.Context, state fsm.State, message string) error
}

// PublishFunc adapts a function to the Publisher interface.
type PublishFunc func(context.Context, fsm.State, string) error

func (f PublishFunc) Publish(ctx context.Context, state fsm.State, message string) error {
	return f(ctx, state, message)
}
