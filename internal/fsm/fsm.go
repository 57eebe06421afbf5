// Package fsm defines the listener session states and their legal transitions.
package fsm

import "fmt"

type State string

type Event string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
)

const (
	// EventWake fires when a wake-phrase utterance arrives while idle.
	EventWake Event = "wake"
	// EventUtterance fires for every recognized utterance while recording.
	EventUtterance Event = "utterance"
	// EventActivity fires for every non-silent frame while recording.
	EventActivity Event = "activity"
	// EventTimeout fires once the silence clock exceeds the configured timeout.
	EventTimeout Event = "timeout"
)

func Transition(current State, event Event) (State, error) {
	switch current {
	case StateIdle:
		switch event {
		case EventWake:
			return StateRecording, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateRecording:
		switch event {
		case EventUtterance, EventActivity:
			return StateRecording, nil
		case EventTimeout:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
