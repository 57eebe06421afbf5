package audio

import (
	"encoding/binary"
	"time"
)

const (
	// SampleRate is the capture rate expected by the recognizer.
	SampleRate = 16000
	// BytesPerSample is the width of one s16le mono sample.
	BytesPerSample = 2
	// DefaultSilenceThreshold is the mean absolute amplitude below which a frame is silent.
	DefaultSilenceThreshold = 500
)

// Frame is one fixed-size buffer of little-endian signed 16-bit mono PCM.
type Frame []byte

// FrameFromSamples encodes samples as a Frame.
func FrameFromSamples(samples []int16) Frame {
	frame := make(Frame, len(samples)*BytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(frame[i*BytesPerSample:], uint16(s))
	}
	return frame
}

// Samples decodes the frame. A trailing odd byte is ignored.
func (f Frame) Samples() []int16 {
	n := len(f) / BytesPerSample
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(f[i*BytesPerSample:]))
	}
	return out
}

// MeanAmplitude returns the mean absolute sample magnitude.
func (f Frame) MeanAmplitude() float64 {
	n := len(f) / BytesPerSample
	if n == 0 {
		return 0
	}
	var sum int64
	for i := 0; i < n; i++ {
		s := int64(int16(binary.LittleEndian.Uint16(f[i*BytesPerSample:])))
		if s < 0 {
			s = -s
		}
		sum += s
	}
	return float64(sum) / float64(n)
}

// Duration is the playback length of the frame at SampleRate.
func (f Frame) Duration() time.Duration {
	n := len(f) / BytesPerSample
	return time.Duration(n) * time.Second / SampleRate
}

// IsSilent reports whether the frame's mean amplitude is below threshold.
//
// A mean rather than a peak keeps single-sample clicks from registering as speech.
func IsSilent(f Frame, threshold int) bool {
	if len(f) < BytesPerSample {
		return true
	}
	return f.MeanAmplitude() < float64(threshold)
}
