// Package indicator surfaces listener state as desktop notifications and audio cues.
package indicator

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/dexter/internal/config"
	"github.com/rbright/dexter/internal/fsm"
	"github.com/rbright/dexter/internal/status"
)

// Notifier is a status sink: it notifies when recording starts and
// dismisses with a completion cue when the recording ends.
type Notifier struct {
	cfg    config.IndicatorConfig
	logger *slog.Logger

	mu                    sync.Mutex
	last                  fsm.State
	desktopNotificationID uint32
	soundMu               sync.Mutex
	cues                  sync.WaitGroup
}

// New creates a Notifier from config.
func New(cfg config.IndicatorConfig, logger *slog.Logger) *Notifier {
	return &Notifier{cfg: cfg, logger: logger, last: fsm.StateIdle}
}

// Publish reacts to state edges only; repeated snapshots are ignored.
func (n *Notifier) Publish(ctx context.Context, snap status.Snapshot) error {
	n.mu.Lock()
	prev := n.last
	n.last = snap.State
	n.mu.Unlock()

	if prev == snap.State {
		return nil
	}

	switch snap.State {
	case fsm.StateRecording:
		n.playCue(cueStart)
		if n.cfg.Enable {
			n.run(ctx, func(ctx context.Context) error {
				return n.notifyDesktop(ctx, snap.Message)
			})
		}
	case fsm.StateIdle:
		n.playCue(cueComplete)
		if n.cfg.Enable {
			n.run(ctx, n.dismissDesktop)
		}
	}
	return nil
}

// Wait blocks until queued cues finish playing.
func (n *Notifier) Wait() {
	n.cues.Wait()
}

// notifyDesktop sends a replaceable desktop notification and stores its ID.
func (n *Notifier) notifyDesktop(ctx context.Context, text string) error {
	n.mu.Lock()
	replaceID := n.desktopNotificationID
	n.mu.Unlock()

	appName := strings.TrimSpace(n.cfg.DesktopAppName)
	if appName == "" {
		appName = "dexter"
	}

	id, err := desktopNotify(ctx, appName, replaceID, text, n.cfg.TimeoutMS)
	if err != nil {
		return err
	}

	n.mu.Lock()
	n.desktopNotificationID = id
	n.mu.Unlock()
	return nil
}

// dismissDesktop closes the current desktop notification ID when present.
func (n *Notifier) dismissDesktop(ctx context.Context) error {
	n.mu.Lock()
	id := n.desktopNotificationID
	n.desktopNotificationID = 0
	n.mu.Unlock()

	if id == 0 {
		return nil
	}
	return desktopDismiss(ctx, id)
}

// run executes an indicator operation with a bounded timeout.
func (n *Notifier) run(ctx context.Context, fn func(context.Context) error) {
	runCtx, cancel := context.WithTimeout(ctx, 400*time.Millisecond)
	defer cancel()
	if err := fn(runCtx); err != nil {
		n.log("indicator dispatch failed", err)
	}
}

// playCue serializes cue playback and emits audio asynchronously.
func (n *Notifier) playCue(kind cueKind) {
	if !n.cfg.SoundEnable {
		return
	}
	n.cues.Add(1)
	go func() {
		defer n.cues.Done()
		n.soundMu.Lock()
		defer n.soundMu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 4*time.Second)
		defer cancel()
		if err := emitCue(ctx, kind, n.cfg); err != nil {
			n.log("indicator audio cue failed", err)
		}
	}()
}

// log emits debug-only indicator failures to the runtime logger.
func (n *Notifier) log(message string, err error) {
	if n.logger == nil || err == nil {
		return
	}
	n.logger.Debug(message, "error", err.Error())
}
