package config

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if strings.TrimSpace(cfg.Wake.Phrase) == "" {
		return nil, fmt.Errorf("wake.phrase must not be empty")
	}
	if cfg.Session.SilenceTimeout <= 0 {
		return nil, fmt.Errorf("session.silence_timeout_seconds must be > 0")
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.Audio.Backend))
	if backend != "pulse" && backend != "portaudio" {
		return nil, fmt.Errorf("audio.backend must be one of: pulse, portaudio")
	}
	if cfg.Audio.FrameSize < MinFrameSize || cfg.Audio.FrameSize > MaxFrameSize {
		return nil, fmt.Errorf("audio.frame_size must be between %d and %d", MinFrameSize, MaxFrameSize)
	}
	if cfg.Audio.FrameSize < 4096 || cfg.Audio.FrameSize > 8192 {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("audio.frame_size %d is outside the tuned range 4096-8192", cfg.Audio.FrameSize)})
	}
	if cfg.Audio.SilenceThreshold <= 0 {
		return nil, fmt.Errorf("audio.silence_threshold must be > 0")
	}

	if strings.TrimSpace(cfg.Recognizer.Model) == "" {
		return nil, fmt.Errorf("recognizer.model must not be empty")
	}
	if strings.TrimSpace(cfg.Recognizer.Language) == "" {
		return nil, fmt.Errorf("recognizer.language must not be empty")
	}
	if cfg.Recognizer.Threads <= 0 {
		return nil, fmt.Errorf("recognizer.threads must be > 0")
	}
	if cfg.Recognizer.Endpoint <= 0 {
		return nil, fmt.Errorf("recognizer.endpoint_ms must be > 0")
	}
	if cfg.Recognizer.MaxUtterance < cfg.Recognizer.Endpoint {
		return nil, fmt.Errorf("recognizer.max_utterance_ms must be >= recognizer.endpoint_ms")
	}
	if cfg.Recognizer.Endpoint >= cfg.Session.SilenceTimeout {
		warnings = append(warnings, Warning{Message: fmt.Sprintf(
			"recognizer.endpoint_ms (%s) is not shorter than the silence timeout (%s); sessions may end before the last utterance is recognized",
			cfg.Recognizer.Endpoint, cfg.Session.SilenceTimeout.Round(time.Millisecond),
		)})
	}

	if strings.TrimSpace(cfg.Output.TranscriptPath) == "" {
		return nil, fmt.Errorf("output.transcript_path must not be empty")
	}
	if strings.TrimSpace(cfg.Output.StatusPath) == "" {
		return nil, fmt.Errorf("output.status_path must not be empty")
	}
	if cfg.Output.TranscriptPath == cfg.Output.StatusPath {
		return nil, fmt.Errorf("output.transcript_path and output.status_path must differ")
	}
	if cfg.Output.Clipboard && len(cfg.Clipboard.Argv) == 0 {
		return nil, fmt.Errorf("clipboard_cmd must not be empty when output.clipboard=true")
	}

	if cfg.Indicator.Enable && strings.TrimSpace(cfg.Indicator.DesktopAppName) == "" {
		return nil, fmt.Errorf("indicator.desktop_app_name must not be empty when indicator.enable=true")
	}
	if cfg.Indicator.TimeoutMS < 0 {
		return nil, fmt.Errorf("indicator.timeout_ms must be >= 0")
	}

	if cfg.Events.NATSURL != "" {
		if strings.TrimSpace(cfg.Events.StatusSubject) == "" {
			return nil, fmt.Errorf("events.status_subject must not be empty when events.nats_url is set")
		}
		if strings.TrimSpace(cfg.Events.TranscriptSubject) == "" {
			return nil, fmt.Errorf("events.transcript_subject must not be empty when events.nats_url is set")
		}
	}

	if err := validateListen("health.listen", cfg.Health.Listen); err != nil {
		return nil, err
	}
	if err := validateListen("metrics.listen", cfg.Metrics.Listen); err != nil {
		return nil, err
	}
	if cfg.Health.Listen != "" && cfg.Health.Listen == cfg.Metrics.Listen {
		return nil, fmt.Errorf("health.listen and metrics.listen must differ")
	}

	if cfg.History.Enable && strings.TrimSpace(cfg.History.Path) == "" {
		return nil, fmt.Errorf("history.path must not be empty when history.enable=true")
	}
	if cfg.Debug.EnableAudioDump && strings.TrimSpace(cfg.Debug.AudioDumpDir) == "" {
		return nil, fmt.Errorf("debug.audio_dump_dir must not be empty when debug.audio_dump=true")
	}

	return warnings, nil
}

func validateListen(key string, addr string) error {
	if addr == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("%s %q: %w", key, addr, err)
	}
	return nil
}
