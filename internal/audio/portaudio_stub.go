//go:build !portaudio

package audio

import "fmt"

func openPortAudio(int) (Source, error) {
	return nil, fmt.Errorf("%w: built without portaudio support (rebuild with -tags portaudio)", ErrDevice)
}
