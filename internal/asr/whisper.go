//go:build whisper

package asr

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// whisperModel runs whisper.cpp inference on buffered utterances.
type whisperModel struct {
	model    whisper.Model
	language string
	threads  int
}

func openWhisper(cfg Config) (Inferencer, error) {
	model, err := whisper.New(cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("%w: load whisper model %q: %w", ErrBackendInit, cfg.Model, err)
	}

	w := &whisperModel{model: model, language: cfg.Language, threads: cfg.Threads}

	// Surface a bad language code at startup rather than on the first utterance.
	if _, err := w.newContext(); err != nil {
		_ = model.Close()
		return nil, fmt.Errorf("%w: %w", ErrBackendInit, err)
	}
	return w, nil
}

func (w *whisperModel) newContext() (whisper.Context, error) {
	ctx, err := w.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("create whisper context: %w", err)
	}
	if w.language != "" {
		if err := ctx.SetLanguage(w.language); err != nil {
			return nil, fmt.Errorf("set whisper language %q: %w", w.language, err)
		}
	}
	if w.threads > 0 {
		ctx.SetThreads(uint(w.threads))
	}
	return ctx, nil
}

func (w *whisperModel) Transcribe(samples []float32) (string, error) {
	if len(samples) == 0 {
		return "", nil
	}

	ctx, err := w.newContext()
	if err != nil {
		return "", err
	}
	if err := ctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper process: %w", err)
	}

	var segments []string
	for {
		segment, err := ctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper next segment: %w", err)
		}
		segments = append(segments, segment.Text)
	}
	return strings.TrimSpace(strings.Join(segments, " ")), nil
}

func (w *whisperModel) Close() error {
	return w.model.Close()
}
