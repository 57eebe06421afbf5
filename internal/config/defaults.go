package config

import (
	"path/filepath"
	"time"
)

const (
	DefaultWakePhrase       = "hey dexter"
	DefaultFrameSize        = 4096
	MinFrameSize            = 1024
	MaxFrameSize            = 16384
	DefaultSilenceThreshold = 500
)

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	clipboard := "wl-copy --trim-newline"
	state := defaultStateDir()

	return Config{
		Wake:    WakeConfig{Phrase: DefaultWakePhrase},
		Session: SessionConfig{SilenceTimeout: 2 * time.Second},
		Audio: AudioConfig{
			Backend:          "pulse",
			Input:            "default",
			Fallback:         "default",
			FrameSize:        DefaultFrameSize,
			SilenceThreshold: DefaultSilenceThreshold,
		},
		Recognizer: RecognizerConfig{
			Model:        filepath.Join(state, "models", "ggml-base.en.bin"),
			Language:     "en",
			Threads:      4,
			Endpoint:     750 * time.Millisecond,
			MaxUtterance: 15 * time.Second,
		},
		Output: OutputConfig{
			TranscriptPath: filepath.Join(state, "transcription", "transcription.txt"),
			StatusPath:     filepath.Join(state, "status", "wake_word_status.txt"),
			Clipboard:      false,
			Echo:           true,
		},
		Clipboard: CommandConfig{Raw: clipboard, Argv: mustParseArgv(clipboard)},
		Indicator: IndicatorConfig{
			Enable:         false,
			DesktopAppName: "dexter",
			TimeoutMS:      300000,
			SoundEnable:    true,
		},
		Events: EventsConfig{
			StatusSubject:     "dexter.status",
			TranscriptSubject: "dexter.transcripts",
		},
		History: HistoryConfig{
			Enable: true,
			Path:   filepath.Join(state, "history.db"),
		},
		Debug: DebugConfig{
			AudioDumpDir: filepath.Join(state, "debug"),
		},
	}
}

func defaultStateDir() string {
	dir, err := StateDir()
	if err != nil {
		return ".dexter"
	}
	return dir
}
