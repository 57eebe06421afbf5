// Package session owns the wake/record lifecycle: state, transcript buffer, and silence clock.
//
// A Session is driven from a single loop and is not safe for concurrent use.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rbright/dexter/internal/asr"
	"github.com/rbright/dexter/internal/fsm"
	"github.com/rbright/dexter/internal/status"
	"github.com/rbright/dexter/internal/wakeword"
)

// DefaultSilenceTimeout ends a recording after this much continuous silence.
const DefaultSilenceTimeout = 2 * time.Second

// Outcome describes how one utterance was routed.
type Outcome string

const (
	OutcomeIgnored   Outcome = "ignored"
	OutcomeWake      Outcome = "wake"
	OutcomeAppended  Outcome = "appended"
	OutcomeDuplicate Outcome = "duplicate"
)

// Config wires a Session's collaborators.
type Config struct {
	Matcher        wakeword.Matcher
	SilenceTimeout time.Duration
	Committer      Committer
	Publisher      Publisher
	Logger         *slog.Logger
	NewID          func() string
}

// Session is the Idle/Recording state machine.
type Session struct {
	matcher   wakeword.Matcher
	timeout   time.Duration
	committer Committer
	publisher Publisher
	logger    *slog.Logger
	newID     func() string

	state     fsm.State
	id        string
	buffer    []string
	startedAt time.Time
	clock     time.Time // last speech activity
}

// New constructs an idle Session with no-op fallbacks for missing collaborators.
func New(cfg Config) *Session {
	if cfg.SilenceTimeout <= 0 {
		cfg.SilenceTimeout = DefaultSilenceTimeout
	}
	if cfg.Committer == nil {
		cfg.Committer = CommitFunc(func(context.Context, Transcript) error { return nil })
	}
	if cfg.Publisher == nil {
		cfg.Publisher = PublishFunc(func(context.Context, fsm.State, string) error { return nil })
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}

	return &Session{
		matcher:   cfg.Matcher,
		timeout:   cfg.SilenceTimeout,
		committer: cfg.Committer,
		publisher: cfg.Publisher,
		logger:    cfg.Logger,
		newID:     cfg.NewID,
		state:     fsm.StateIdle,
	}
}

// State returns the current state.
func (s *Session) State() fsm.State { return s.state }

// ID returns the active recording id, or "" while idle.
func (s *Session) ID() string { return s.id }

// StartedAt returns when the active recording began.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// Entries returns a copy of the transcript buffer.
func (s *Session) Entries() []string {
	return append([]string(nil), s.buffer...)
}

// Announce publishes the current state without transitioning.
func (s *Session) Announce(ctx context.Context) error {
	return s.publisher.Publish(ctx, s.state, s.message())
}

// HandleUtterance routes one recognized utterance by state.
func (s *Session) HandleUtterance(ctx context.Context, u asr.Utterance) Outcome {
	switch s.state {
	case fsm.StateIdle:
		if !s.matcher.Matches(u.Text) {
			return OutcomeIgnored
		}
		if !s.apply(fsm.EventWake) {
			return OutcomeIgnored
		}
		s.id = s.newID()
		s.buffer = nil
		s.startedAt = u.Timestamp
		s.clock = u.Timestamp
		s.logger.Info("wake phrase detected", "session_id", s.id, "text", u.Text)
		s.publish(ctx)
		return OutcomeWake

	case fsm.StateRecording:
		if !s.apply(fsm.EventUtterance) {
			return OutcomeIgnored
		}
		s.clock = u.Timestamp
		if n := len(s.buffer); n > 0 && s.buffer[n-1] == u.Text {
			return OutcomeDuplicate
		}
		s.buffer = append(s.buffer, u.Text)
		return OutcomeAppended
	}
	return OutcomeIgnored
}

// NoteActivity resets the silence clock for a non-silent frame while recording.
func (s *Session) NoteActivity(now time.Time) {
	if s.state != fsm.StateRecording {
		return
	}
	if s.apply(fsm.EventActivity) {
		s.clock = now
	}
}

// CheckTimeout flushes the session once silence exceeds the timeout.
//
// A failed commit keeps the session recording with its buffer intact; the
// flush is retried after another full silence window.
func (s *Session) CheckTimeout(ctx context.Context, now time.Time) (bool, error) {
	if s.state != fsm.StateRecording {
		return false, nil
	}
	if now.Sub(s.clock) <= s.timeout {
		return false, nil
	}

	if len(s.buffer) > 0 {
		transcript := Transcript{
			ID:         s.id,
			Entries:    s.Entries(),
			StartedAt:  s.startedAt,
			FinishedAt: now,
		}
		if err := s.committer.Commit(ctx, transcript); err != nil {
			s.clock = now
			s.logger.Error("transcript flush failed", "session_id", s.id, "entries", len(s.buffer), "error", err)
			return false, fmt.Errorf("flush session %s: %w", s.id, err)
		}
		s.logger.Info("session flushed", "session_id", s.id, "entries", len(transcript.Entries))
	} else {
		s.logger.Info("session ended without speech", "session_id", s.id)
	}

	if !s.apply(fsm.EventTimeout) {
		return false, nil
	}
	s.buffer = nil
	s.id = ""
	s.publish(ctx)
	return true, nil
}

// Discard drops any in-progress recording without flushing and returns to Idle.
// It returns the number of discarded entries.
func (s *Session) Discard() int {
	dropped := len(s.buffer)
	if s.state == fsm.StateRecording {
		s.logger.Info("recording discarded", "session_id", s.id, "entries", dropped)
	}
	s.state = fsm.StateIdle
	s.buffer = nil
	s.id = ""
	return dropped
}

func (s *Session) apply(event fsm.Event) bool {
	next, err := fsm.Transition(s.state, event)
	if err != nil {
		s.logger.Error("session transition rejected", "error", err)
		return false
	}
	s.state = next
	return true
}

func (s *Session) publish(ctx context.Context) {
	if err := s.publisher.Publish(ctx, s.state, s.message()); err != nil {
		s.logger.Warn("status publish failed", "state", string(s.state), "error", err)
	}
}

func (s *Session) message() string {
	if s.state == fsm.StateRecording {
		return status.ListeningMessage
	}
	return status.WaitingMessage(s.matcher.Phrase())
}
