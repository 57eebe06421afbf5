// Package audio handles device discovery, selection, and fixed-size PCM frame capture.
package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

var (
	// ErrDevice marks a capture device that cannot be opened. It is fatal at startup.
	ErrDevice = errors.New("audio device unavailable")
	// ErrRead marks a transient frame read failure.
	ErrRead = errors.New("audio frame read failed")
	// ErrClosed is returned by ReadFrame once the source is closed and drained.
	ErrClosed = errors.New("audio source closed")
)

const (
	BackendPulse     = "pulse"
	BackendPortAudio = "portaudio"
)

// Options selects and configures a capture backend.
type Options struct {
	Backend   string
	Input     string
	Fallback  string
	FrameSize int // samples per frame
	Logger    *slog.Logger
}

// Source yields fixed-size frames from one open capture device.
type Source interface {
	// ReadFrame blocks until one full frame is available.
	ReadFrame(ctx context.Context) (Frame, error)
	Device() Device
	// Dropped reports frames discarded because the reader fell behind.
	Dropped() int64
	Close() error
}

// Open resolves the configured device and starts capture. Every error wraps ErrDevice.
func Open(ctx context.Context, opts Options) (Source, error) {
	if opts.FrameSize <= 0 {
		return nil, fmt.Errorf("%w: frame size must be > 0", ErrDevice)
	}

	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", BackendPulse:
		selection, err := SelectDevice(ctx, opts.Input, opts.Fallback)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDevice, err)
		}
		if selection.Warning != "" && opts.Logger != nil {
			opts.Logger.Warn(selection.Warning)
		}
		return openPulse(selection.Device, opts.FrameSize)
	case BackendPortAudio:
		return openPortAudio(opts.FrameSize)
	default:
		return nil, fmt.Errorf("%w: unknown audio backend %q", ErrDevice, opts.Backend)
	}
}

// DescribeDevice formats device metadata for logs.
func DescribeDevice(device Device) string {
	description := strings.TrimSpace(device.Description)
	id := strings.TrimSpace(device.ID)
	if description == "" {
		return id
	}
	if id == "" {
		return description
	}
	return fmt.Sprintf("%s (%s)", description, id)
}
