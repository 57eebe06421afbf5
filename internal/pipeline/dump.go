package pipeline

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/rbright/dexter/internal/audio"
)

// AudioDump writes the captured audio of each recording to a WAV file under Dir.
// A nil *AudioDump records nothing.
type AudioDump struct {
	dir    string
	now    func() time.Time
	logger *slog.Logger

	file    *os.File
	encoder *wav.Encoder
	path    string
}

// NewAudioDump targets dir. A nil clock uses time.Now.
func NewAudioDump(dir string, now func() time.Time, logger *slog.Logger) *AudioDump {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &AudioDump{dir: dir, now: now, logger: logger}
}

// Begin starts a new file for session id, finishing any open one.
func (d *AudioDump) Begin(id string) {
	if d == nil {
		return
	}
	d.Finish()

	if err := os.MkdirAll(d.dir, 0o700); err != nil {
		d.logger.Warn("unable to create debug audio dir", "error", err)
		return
	}
	name := fmt.Sprintf("audio-%s-%s.wav", d.now().Format("20060102-150405.000"), id)
	path := filepath.Join(d.dir, name)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		d.logger.Warn("unable to create debug audio dump", "path", path, "error", err)
		return
	}

	d.file = file
	d.path = path
	d.encoder = wav.NewEncoder(file, audio.SampleRate, 16, 1, 1)
}

// Add appends frame to the open file.
func (d *AudioDump) Add(frame audio.Frame) {
	if d == nil || d.encoder == nil {
		return
	}

	samples := frame.Samples()
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: audio.SampleRate},
		Data:           make([]int, len(samples)),
		SourceBitDepth: 16,
	}
	for i, s := range samples {
		buf.Data[i] = int(s)
	}
	if err := d.encoder.Write(buf); err != nil {
		d.logger.Warn("unable to write debug audio dump", "path", d.path, "error", err)
		d.Finish()
	}
}

// Finish finalizes the WAV header and closes the open file, if any.
func (d *AudioDump) Finish() {
	if d == nil || d.encoder == nil {
		return
	}

	if err := d.encoder.Close(); err != nil {
		d.logger.Warn("unable to finalize debug audio dump", "path", d.path, "error", err)
	}
	if err := d.file.Close(); err != nil {
		d.logger.Warn("unable to close debug audio dump", "path", d.path, "error", err)
	} else {
		d.logger.Info("debug audio dump written", "path", d.path)
	}
	d.encoder = nil
	d.file = nil
	d.path = ""
}
