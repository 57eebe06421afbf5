// Package pipeline runs the capture -> recognize -> route loop for one listener.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/rbright/dexter/internal/asr"
	"github.com/rbright/dexter/internal/audio"
	"github.com/rbright/dexter/internal/fsm"
	"github.com/rbright/dexter/internal/metrics"
	"github.com/rbright/dexter/internal/session"
)

// Driver owns the listener loop. It does not own or close its collaborators.
type Driver struct {
	Source           audio.Source
	Recognizer       *asr.Recognizer
	Session          *session.Session
	SilenceThreshold int

	Metrics *metrics.Metrics // optional
	Echo    io.Writer        // optional; receives one "Heard: ..." line per utterance
	Dump    *AudioDump       // optional
	Now     func() time.Time
	Logger  *slog.Logger
}

// Run loops until ctx is cancelled or the source closes. Any open recording is
// discarded on exit. Transient read and recognizer errors never end the loop.
func (d *Driver) Run(ctx context.Context) error {
	if d.Source == nil || d.Recognizer == nil || d.Session == nil {
		return errors.New("driver requires source, recognizer, and session")
	}
	now := d.Now
	if now == nil {
		now = time.Now
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	threshold := d.SilenceThreshold
	if threshold <= 0 {
		threshold = audio.DefaultSilenceThreshold
	}

	for {
		frame, err := d.Source.ReadFrame(ctx)
		switch {
		case err == nil:
		case errors.Is(err, audio.ErrClosed), ctx.Err() != nil:
			d.stop(logger)
			return nil
		case errors.Is(err, audio.ErrRead):
			logger.Warn("audio read failed; treating frame as silent", "error", err)
			d.Metrics.ObserveReadError()
			frame = nil
		default:
			d.stop(logger)
			return fmt.Errorf("read frame: %w", err)
		}

		at := now()
		silent := audio.IsSilent(frame, threshold)
		d.Metrics.ObserveFrame(silent)
		d.Metrics.SetDropped(d.Source.Dropped())
		if !silent {
			d.Session.NoteActivity(at)
		}

		if len(frame) > 0 {
			d.recognize(ctx, frame, logger)
			if d.Session.State() == fsm.StateRecording {
				d.Dump.Add(frame)
			}
		}

		startedAt := d.Session.StartedAt()
		flushed, err := d.Session.CheckTimeout(ctx, at)
		if err != nil {
			d.Metrics.ObserveFlushFailure()
			continue
		}
		if flushed {
			d.Metrics.ObserveFlush(at.Sub(startedAt))
			d.Dump.Finish()
		}
	}
}

func (d *Driver) recognize(ctx context.Context, frame audio.Frame, logger *slog.Logger) {
	utterance, ok, err := d.Recognizer.Submit(frame)
	if err != nil {
		logger.Error("recognizer failed", "error", err)
		d.Metrics.ObserveRecognizerError()
		return
	}
	if !ok {
		return
	}

	if d.Echo != nil {
		fmt.Fprintf(d.Echo, "Heard: %s\n", utterance.Text)
	}
	outcome := d.Session.HandleUtterance(ctx, utterance)
	d.Metrics.ObserveUtterance(string(outcome))
	logger.Debug("utterance routed", "text", utterance.Text, "outcome", string(outcome))

	if outcome == session.OutcomeWake {
		d.Dump.Begin(d.Session.ID())
	}
}

func (d *Driver) stop(logger *slog.Logger) {
	if dropped := d.Session.Discard(); dropped > 0 {
		logger.Info("listener stopped with unflushed entries", "entries", dropped)
	}
	d.Metrics.ObserveState(fsm.StateIdle)
	d.Dump.Finish()
}
