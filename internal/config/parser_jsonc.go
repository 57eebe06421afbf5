package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

type jsoncConfig struct {
	Wake       *jsoncWake       `json:"wake"`
	Session    *jsoncSession    `json:"session"`
	Audio      *jsoncAudio      `json:"audio"`
	Recognizer *jsoncRecognizer `json:"recognizer"`
	Output     *jsoncOutput     `json:"output"`
	Indicator  *jsoncIndicator  `json:"indicator"`
	Events     *jsoncEvents     `json:"events"`
	Health     *jsoncListen     `json:"health"`
	Metrics    *jsoncListen     `json:"metrics"`
	History    *jsoncHistory    `json:"history"`
	Debug      *jsoncDebug      `json:"debug"`

	ClipboardCmd *string `json:"clipboard_cmd"`
}

type jsoncWake struct {
	Phrase *string `json:"phrase"`
}

type jsoncSession struct {
	SilenceTimeoutSeconds *float64 `json:"silence_timeout_seconds"`
}

type jsoncAudio struct {
	Backend          *string `json:"backend"`
	Input            *string `json:"input"`
	Fallback         *string `json:"fallback"`
	FrameSize        *int    `json:"frame_size"`
	SilenceThreshold *int    `json:"silence_threshold"`
}

type jsoncRecognizer struct {
	Model          *string `json:"model"`
	Language       *string `json:"language"`
	Threads        *int    `json:"threads"`
	EndpointMS     *int    `json:"endpoint_ms"`
	MaxUtteranceMS *int    `json:"max_utterance_ms"`
}

type jsoncOutput struct {
	TranscriptPath *string `json:"transcript_path"`
	StatusPath     *string `json:"status_path"`
	Clipboard      *bool   `json:"clipboard"`
	Echo           *bool   `json:"echo"`
}

type jsoncIndicator struct {
	Enable            *bool   `json:"enable"`
	DesktopAppName    *string `json:"desktop_app_name"`
	TimeoutMS         *int    `json:"timeout_ms"`
	SoundEnable       *bool   `json:"sound_enable"`
	SoundStartFile    *string `json:"sound_start_file"`
	SoundCompleteFile *string `json:"sound_complete_file"`
}

type jsoncEvents struct {
	NATSURL           *string `json:"nats_url"`
	StatusSubject     *string `json:"status_subject"`
	TranscriptSubject *string `json:"transcript_subject"`
}

type jsoncListen struct {
	Listen *string `json:"listen"`
}

type jsoncHistory struct {
	Enable *bool   `json:"enable"`
	Path   *string `json:"path"`
}

type jsoncDebug struct {
	AudioDump    *bool   `json:"audio_dump"`
	AudioDumpDir *string `json:"audio_dump_dir"`
}

func parseJSONC(content string, base Config) (Config, []Warning, error) {
	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload jsoncConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}

	cfg := base
	warnings, err := payload.applyTo(&cfg)
	if err != nil {
		return Config{}, nil, err
	}

	validatedWarnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	warnings = append(warnings, validatedWarnings...)
	return cfg, warnings, nil
}

func (payload jsoncConfig) applyTo(cfg *Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if payload.Wake != nil && payload.Wake.Phrase != nil {
		cfg.Wake.Phrase = strings.TrimSpace(*payload.Wake.Phrase)
	}

	if payload.Session != nil && payload.Session.SilenceTimeoutSeconds != nil {
		seconds := *payload.Session.SilenceTimeoutSeconds
		cfg.Session.SilenceTimeout = time.Duration(seconds * float64(time.Second))
	}

	if payload.Audio != nil {
		if payload.Audio.Backend != nil {
			cfg.Audio.Backend = strings.ToLower(strings.TrimSpace(*payload.Audio.Backend))
		}
		if payload.Audio.Input != nil {
			cfg.Audio.Input = *payload.Audio.Input
		}
		if payload.Audio.Fallback != nil {
			cfg.Audio.Fallback = *payload.Audio.Fallback
		}
		if payload.Audio.FrameSize != nil {
			cfg.Audio.FrameSize = *payload.Audio.FrameSize
		}
		if payload.Audio.SilenceThreshold != nil {
			cfg.Audio.SilenceThreshold = *payload.Audio.SilenceThreshold
		}
	}

	if payload.Recognizer != nil {
		if payload.Recognizer.Model != nil {
			cfg.Recognizer.Model = expandUserPath(*payload.Recognizer.Model)
		}
		if payload.Recognizer.Language != nil {
			cfg.Recognizer.Language = strings.TrimSpace(*payload.Recognizer.Language)
		}
		if payload.Recognizer.Threads != nil {
			cfg.Recognizer.Threads = *payload.Recognizer.Threads
		}
		if payload.Recognizer.EndpointMS != nil {
			cfg.Recognizer.Endpoint = time.Duration(*payload.Recognizer.EndpointMS) * time.Millisecond
		}
		if payload.Recognizer.MaxUtteranceMS != nil {
			cfg.Recognizer.MaxUtterance = time.Duration(*payload.Recognizer.MaxUtteranceMS) * time.Millisecond
		}
	}

	if payload.Output != nil {
		if payload.Output.TranscriptPath != nil {
			cfg.Output.TranscriptPath = expandUserPath(*payload.Output.TranscriptPath)
		}
		if payload.Output.StatusPath != nil {
			cfg.Output.StatusPath = expandUserPath(*payload.Output.StatusPath)
		}
		if payload.Output.Clipboard != nil {
			cfg.Output.Clipboard = *payload.Output.Clipboard
		}
		if payload.Output.Echo != nil {
			cfg.Output.Echo = *payload.Output.Echo
		}
	}

	if payload.Indicator != nil {
		if payload.Indicator.Enable != nil {
			cfg.Indicator.Enable = *payload.Indicator.Enable
		}
		if payload.Indicator.DesktopAppName != nil {
			cfg.Indicator.DesktopAppName = strings.TrimSpace(*payload.Indicator.DesktopAppName)
		}
		if payload.Indicator.TimeoutMS != nil {
			cfg.Indicator.TimeoutMS = *payload.Indicator.TimeoutMS
		}
		if payload.Indicator.SoundEnable != nil {
			cfg.Indicator.SoundEnable = *payload.Indicator.SoundEnable
		}
		if payload.Indicator.SoundStartFile != nil {
			cfg.Indicator.SoundStartFile = expandUserPath(*payload.Indicator.SoundStartFile)
		}
		if payload.Indicator.SoundCompleteFile != nil {
			cfg.Indicator.SoundCompleteFile = expandUserPath(*payload.Indicator.SoundCompleteFile)
		}
	}

	if payload.Events != nil {
		if payload.Events.NATSURL != nil {
			cfg.Events.NATSURL = strings.TrimSpace(*payload.Events.NATSURL)
		}
		if payload.Events.StatusSubject != nil {
			cfg.Events.StatusSubject = strings.TrimSpace(*payload.Events.StatusSubject)
		}
		if payload.Events.TranscriptSubject != nil {
			cfg.Events.TranscriptSubject = strings.TrimSpace(*payload.Events.TranscriptSubject)
		}
	}

	if payload.Health != nil && payload.Health.Listen != nil {
		cfg.Health.Listen = strings.TrimSpace(*payload.Health.Listen)
	}
	if payload.Metrics != nil && payload.Metrics.Listen != nil {
		cfg.Metrics.Listen = strings.TrimSpace(*payload.Metrics.Listen)
	}

	if payload.History != nil {
		if payload.History.Enable != nil {
			cfg.History.Enable = *payload.History.Enable
		}
		if payload.History.Path != nil {
			cfg.History.Path = expandUserPath(*payload.History.Path)
		}
	}

	if payload.ClipboardCmd != nil {
		raw := *payload.ClipboardCmd
		argv, err := parseArgv(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid clipboard_cmd: %w", err)
		}
		cfg.Clipboard = CommandConfig{Raw: raw, Argv: argv}
	}

	if payload.Debug != nil {
		if payload.Debug.AudioDump != nil {
			cfg.Debug.EnableAudioDump = *payload.Debug.AudioDump
		}
		if payload.Debug.AudioDumpDir != nil {
			cfg.Debug.AudioDumpDir = expandUserPath(*payload.Debug.AudioDumpDir)
		}
	}

	return warnings, nil
}

func normalizeJSONC(content string) (string, error) {
	withoutComments, err := stripJSONCComments(content)
	if err != nil {
		return "", err
	}
	return stripJSONCTrailingCommas(withoutComments), nil
}

func stripJSONCComments(content string) (string, error) {
	var out strings.Builder
	out.Grow(len(content))

	inString := false
	escape := false
	lineComment := false
	blockComment := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if lineComment {
			if ch == '\n' {
				lineComment = false
				out.WriteByte(ch)
				continue
			}
			if ch == '\r' {
				lineComment = false
				out.WriteByte(ch)
				continue
			}
			out.WriteByte(' ')
			continue
		}

		if blockComment {
			if ch == '*' && i+1 < len(content) && content[i+1] == '/' {
				blockComment = false
				out.WriteString("  ")
				i++
				continue
			}
			if ch == '\n' || ch == '\r' || ch == '\t' {
				out.WriteByte(ch)
			} else {
				out.WriteByte(' ')
			}
			continue
		}

		if inString {
			out.WriteByte(ch)
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			out.WriteByte(ch)
			continue
		}

		if ch == '/' && i+1 < len(content) {
			next := content[i+1]
			if next == '/' {
				lineComment = true
				out.WriteString("  ")
				i++
				continue
			}
			if next == '*' {
				blockComment = true
				out.WriteString("  ")
				i++
				continue
			}
		}

		out.WriteByte(ch)
	}

	if blockComment {
		return "", fmt.Errorf("unterminated block comment in JSONC")
	}

	return out.String(), nil
}

func stripJSONCTrailingCommas(content string) string {
	var out strings.Builder
	out.Grow(len(content))

	inString := false
	escape := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if inString {
			out.WriteByte(ch)
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			out.WriteByte(ch)
			continue
		}

		if ch == ',' {
			j := i + 1
			for j < len(content) && isJSONWhitespace(content[j]) {
				j++
			}
			if j < len(content) && (content[j] == '}' || content[j] == ']') {
				continue
			}
		}

		out.WriteByte(ch)
	}

	return out.String()
}

func isJSONWhitespace(ch byte) bool {
	switch ch {
	case ' ', '\n', '\r', '\t':
		return true
	default:
		return false
	}
}

func ensureSingleJSONValue(decoder *json.Decoder) error {
	var extra struct{}
	err := decoder.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		return fmt.Errorf("multiple JSON values are not allowed")
	}
	return err
}

func wrapJSONDecodeError(content string, err error) error {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		line, col := offsetToLineCol(content, syntaxErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		line, col := offsetToLineCol(content, typeErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	return err
}

func offsetToLineCol(content string, offset int64) (int, int) {
	if offset <= 0 {
		return 1, 1
	}

	limit := int(offset)
	if limit > len(content) {
		limit = len(content)
	}

	line := 1
	col := 1
	for i := 0; i < limit-1; i++ {
		if content[i] == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
