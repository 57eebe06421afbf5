package asr

import (
	"fmt"
	"time"

	"github.com/rbright/dexter/internal/audio"
)

// Inferencer transcribes one complete utterance of 16kHz mono samples in [-1, 1].
type Inferencer interface {
	Transcribe(samples []float32) (string, error)
	Close() error
}

// DefaultEndpoint is the trailing silence that closes an utterance when unset.
const DefaultEndpoint = 750 * time.Millisecond

// SegmenterConfig controls endpoint detection.
type SegmenterConfig struct {
	SilenceThreshold int
	Endpoint         time.Duration // trailing silence that ends an utterance
	MaxUtterance     time.Duration // hard cap on buffered speech
}

// Segmenter is a Backend for batch models: it buffers speech frames and runs
// inference once per utterance. Frames before speech onset yield empty interim results.
type Segmenter struct {
	infer Inferencer
	cfg   SegmenterConfig

	preroll  audio.Frame
	speech   []float32
	speaking bool
	trailing time.Duration
	buffered time.Duration
}

// NewSegmenter builds a Segmenter over infer.
func NewSegmenter(infer Inferencer, cfg SegmenterConfig) *Segmenter {
	if cfg.SilenceThreshold <= 0 {
		cfg.SilenceThreshold = audio.DefaultSilenceThreshold
	}
	if cfg.Endpoint <= 0 {
		cfg.Endpoint = DefaultEndpoint
	}
	return &Segmenter{infer: infer, cfg: cfg}
}

// Accept buffers frame and returns a Final result once an endpoint is reached.
func (s *Segmenter) Accept(frame audio.Frame) (Result, error) {
	silent := audio.IsSilent(frame, s.cfg.SilenceThreshold)

	if !s.speaking {
		if silent {
			s.preroll = frame
			return Result{}, nil
		}
		s.speaking = true
		if s.preroll != nil {
			s.append(s.preroll)
			s.preroll = nil
		}
	}

	s.append(frame)
	if silent {
		s.trailing += frame.Duration()
	} else {
		s.trailing = 0
	}

	if s.trailing >= s.cfg.Endpoint || (s.cfg.MaxUtterance > 0 && s.buffered >= s.cfg.MaxUtterance) {
		return s.finish()
	}
	return Result{}, nil
}

// Pending reports whether speech is buffered awaiting an endpoint.
func (s *Segmenter) Pending() bool {
	return s.speaking
}

// Close releases the inference model.
func (s *Segmenter) Close() error {
	return s.infer.Close()
}

func (s *Segmenter) append(frame audio.Frame) {
	for _, sample := range frame.Samples() {
		s.speech = append(s.speech, float32(sample)/32768)
	}
	s.buffered += frame.Duration()
}

func (s *Segmenter) finish() (Result, error) {
	samples := s.speech
	s.speech = nil
	s.speaking = false
	s.trailing = 0
	s.buffered = 0

	text, err := s.infer.Transcribe(samples)
	if err != nil {
		return Result{}, fmt.Errorf("transcribe utterance: %w", err)
	}
	return Result{Text: text, Final: true}, nil
}
