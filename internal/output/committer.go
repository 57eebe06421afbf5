// Package output persists flushed transcripts and hands them to followers.
package output

import (
	"context"
	"log/slog"

	"github.com/rbright/dexter/internal/artifact"
	"github.com/rbright/dexter/internal/session"
)

// Follower receives a transcript after the artifact is written.
type Follower interface {
	Follow(context.Context, session.Transcript) error
}

// FollowerFunc adapts a function to the Follower interface.
type FollowerFunc func(context.Context, session.Transcript) error

func (f FollowerFunc) Follow(ctx context.Context, transcript session.Transcript) error {
	return f(ctx, transcript)
}

// Named labels a follower in logs.
type Named struct {
	Name     string
	Follower Follower
}

// Committer writes the transcript artifact, then runs followers best-effort.
type Committer struct {
	path      string
	followers []Named
	logger    *slog.Logger
}

// NewCommitter constructs a committer targeting the transcript artifact at path.
func NewCommitter(path string, logger *slog.Logger, followers ...Named) *Committer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Committer{path: path, followers: followers, logger: logger}
}

// Commit overwrites the artifact. Only the artifact write can fail the commit;
// errors wrap artifact.ErrWrite.
func (c *Committer) Commit(ctx context.Context, transcript session.Transcript) error {
	if err := artifact.Write(c.path, []byte(transcript.Text()), 0o600); err != nil {
		return err
	}
	c.logger.Info("transcript written", "path", c.path, "session_id", transcript.ID, "entries", len(transcript.Entries))

	for _, f := range c.followers {
		if err := f.Follower.Follow(ctx, transcript); err != nil {
			c.logger.Error("transcript follower failed; artifact remains written", "follower", f.Name, "error", err.Error())
		}
	}
	return nil
}
