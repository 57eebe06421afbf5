// Package config resolves, parses, validates, and defaults dexter configuration.
package config

import "time"

// Config is the fully materialized runtime configuration used by dexter.
type Config struct {
	Wake       WakeConfig
	Session    SessionConfig
	Audio      AudioConfig
	Recognizer RecognizerConfig
	Output     OutputConfig
	Clipboard  CommandConfig
	Indicator  IndicatorConfig
	Events     EventsConfig
	Health     ListenConfig
	Metrics    ListenConfig
	History    HistoryConfig
	Debug      DebugConfig
}

// WakeConfig holds the trigger phrase.
type WakeConfig struct {
	Phrase string
}

// SessionConfig controls recording boundaries.
type SessionConfig struct {
	SilenceTimeout time.Duration
}

// AudioConfig controls capture backend, device selection, and frame classification.
type AudioConfig struct {
	Backend          string
	Input            string
	Fallback         string
	FrameSize        int
	SilenceThreshold int
}

// RecognizerConfig controls model loading and utterance endpointing.
type RecognizerConfig struct {
	Model        string
	Language     string
	Threads      int
	Endpoint     time.Duration
	MaxUtterance time.Duration
}

// OutputConfig controls artifact locations and transcript hand-off.
type OutputConfig struct {
	TranscriptPath string
	StatusPath     string
	Clipboard      bool
	Echo           bool
}

// IndicatorConfig controls desktop notifications and audio cues.
type IndicatorConfig struct {
	Enable            bool
	DesktopAppName    string
	TimeoutMS         int
	SoundEnable       bool
	SoundStartFile    string
	SoundCompleteFile string
}

// EventsConfig controls NATS event publishing. An empty URL disables it.
type EventsConfig struct {
	NATSURL           string
	StatusSubject     string
	TranscriptSubject string
}

// ListenConfig is a TCP listen address. Empty disables the listener.
type ListenConfig struct {
	Listen string
}

// HistoryConfig controls the completed-session store.
type HistoryConfig struct {
	Enable bool
	Path   string
}

// DebugConfig controls optional debug artifact output.
type DebugConfig struct {
	EnableAudioDump bool
	AudioDumpDir    string
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
