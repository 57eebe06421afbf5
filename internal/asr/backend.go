package asr

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config selects and tunes the recognition backend.
type Config struct {
	Model            string
	Language         string
	Threads          int
	SilenceThreshold int
	Endpoint         time.Duration
	MaxUtterance     time.Duration
}

// Open loads the model and returns an endpointing Backend. Every error wraps ErrBackendInit.
func Open(cfg Config) (*Segmenter, error) {
	if err := CheckModel(cfg.Model); err != nil {
		return nil, err
	}
	infer, err := openWhisper(cfg)
	if err != nil {
		return nil, err
	}
	return NewSegmenter(infer, SegmenterConfig{
		SilenceThreshold: cfg.SilenceThreshold,
		Endpoint:         cfg.Endpoint,
		MaxUtterance:     cfg.MaxUtterance,
	}), nil
}

// CheckModel reports whether path names a readable model file.
func CheckModel(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("%w: recognizer.model is empty", ErrBackendInit)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: model %q: %w", ErrBackendInit, path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: model %q is a directory", ErrBackendInit, path)
	}
	return nil
}
