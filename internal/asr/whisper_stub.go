//go:build !whisper

package asr

import "fmt"

func openWhisper(Config) (Inferencer, error) {
	return nil, fmt.Errorf("%w: built without whisper support (rebuild with -tags whisper)", ErrBackendInit)
}
