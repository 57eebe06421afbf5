//go:build portaudio

package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
)

// portaudioSource reads blocking frames from the PortAudio default input.
type portaudioSource struct {
	stream  *portaudio.Stream
	buf     []int16
	device  Device
	dropped atomic.Int64

	mu     sync.Mutex
	closed bool
}

func openPortAudio(frameSize int) (Source, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: initialize portaudio: %w", ErrDevice, err)
	}

	device := Device{ID: "portaudio:default", Description: "PortAudio default input", Available: true, Default: true}
	if info, err := portaudio.DefaultInputDevice(); err == nil && info != nil {
		device.Description = info.Name
	}

	buf := make([]int16, frameSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(SampleRate), len(buf), buf)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("%w: open portaudio stream: %w", ErrDevice, err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("%w: start portaudio stream: %w", ErrDevice, err)
	}

	return &portaudioSource{stream: stream, buf: buf, device: device}, nil
}

func (s *portaudioSource) Device() Device { return s.device }

func (s *portaudioSource) Dropped() int64 { return s.dropped.Load() }

// ReadFrame blocks for one buffer. Cancellation is observed between reads.
func (s *portaudioSource) ReadFrame(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	if err := s.stream.Read(); err != nil {
		if !errors.Is(err, portaudio.InputOverflowed) {
			return nil, fmt.Errorf("%w: %w", ErrRead, err)
		}
		// Overflowed buffers still hold a full frame of valid samples.
		s.dropped.Add(1)
	}
	return FrameFromSamples(s.buf), nil
}

func (s *portaudioSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	stopErr := s.stream.Stop()
	closeErr := s.stream.Close()
	termErr := portaudio.Terminate()
	return errors.Join(stopErr, closeErr, termErr)
}
