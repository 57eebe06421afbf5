// Package status fans listener state changes out to observers.
package status

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rbright/dexter/internal/fsm"
)

// ListeningMessage is published when a recording starts.
const ListeningMessage = "Wake word detected - Listening..."

// WaitingMessage is published while idle.
func WaitingMessage(phrase string) string {
	return fmt.Sprintf("Waiting for '%s'", phrase)
}

// Snapshot is one published status.
type Snapshot struct {
	State   fsm.State
	Message string
	At      time.Time
}

// Sink receives every published snapshot. Implementations must tolerate repeats.
type Sink interface {
	Publish(context.Context, Snapshot) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(context.Context, Snapshot) error

func (f SinkFunc) Publish(ctx context.Context, snap Snapshot) error {
	return f(ctx, snap)
}

// Named labels a sink in joined errors.
type Named struct {
	Name string
	Sink Sink
}

// Publisher records the latest snapshot and forwards it to every sink.
type Publisher struct {
	sinks []Named
	now   func() time.Time

	mu     sync.RWMutex
	latest Snapshot
	ok     bool
}

// NewPublisher builds a Publisher. A nil clock uses time.Now.
func NewPublisher(now func() time.Time, sinks ...Named) *Publisher {
	if now == nil {
		now = time.Now
	}
	return &Publisher{sinks: sinks, now: now}
}

// Publish forwards to all sinks even when some fail; failures are joined.
func (p *Publisher) Publish(ctx context.Context, state fsm.State, message string) error {
	snap := Snapshot{State: state, Message: message, At: p.now()}

	p.mu.Lock()
	p.latest = snap
	p.ok = true
	p.mu.Unlock()

	var errs []error
	for _, sink := range p.sinks {
		if err := sink.Sink.Publish(ctx, snap); err != nil {
			errs = append(errs, fmt.Errorf("%s sink: %w", sink.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Latest returns the most recent snapshot, if any. Safe for concurrent use.
func (p *Publisher) Latest() (Snapshot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest, p.ok
}
