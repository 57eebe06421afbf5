// Package asr turns audio frames into final, de-duplicated utterances.
package asr

import (
	"errors"
	"strings"
	"time"

	"github.com/rbright/dexter/internal/audio"
)

// ErrBackendInit marks a recognizer backend that could not be loaded. It is fatal at startup.
var ErrBackendInit = errors.New("recognizer backend init failed")

// Result is one backend response for one accepted frame.
type Result struct {
	Text  string
	Final bool
}

// Backend consumes frames in order and reports interim or final text.
type Backend interface {
	Accept(frame audio.Frame) (Result, error)
	Close() error
}

// Utterance is one finalized, non-empty recognition result.
type Utterance struct {
	Text      string
	Timestamp time.Time
}

// Recognizer filters backend results down to emitted utterances.
type Recognizer struct {
	backend  Backend
	now      func() time.Time
	lastText string
}

// NewRecognizer wraps backend. A nil clock uses time.Now.
func NewRecognizer(backend Backend, now func() time.Time) *Recognizer {
	if now == nil {
		now = time.Now
	}
	return &Recognizer{backend: backend, now: now}
}

// Submit feeds one frame. ok is false for interim, empty, or repeated text.
func (r *Recognizer) Submit(frame audio.Frame) (Utterance, bool, error) {
	result, err := r.backend.Accept(frame)
	if err != nil {
		return Utterance{}, false, err
	}
	if !result.Final {
		return Utterance{}, false, nil
	}

	text := normalize(result.Text)
	if text == "" || text == r.lastText {
		return Utterance{}, false, nil
	}
	r.lastText = text
	return Utterance{Text: text, Timestamp: r.now()}, true, nil
}

// Close releases the backend.
func (r *Recognizer) Close() error {
	return r.backend.Close()
}

func normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
