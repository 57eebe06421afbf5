// Package doctor runs runtime readiness diagnostics for config, model, audio, and outputs.
package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rbright/dexter/internal/asr"
	"github.com/rbright/dexter/internal/audio"
	"github.com/rbright/dexter/internal/config"
	"github.com/rbright/dexter/internal/events"
	"github.com/rbright/dexter/internal/history"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, cfg config.Loaded) Report {
	checks := []Check{}

	checks = append(checks, Check{
		Name:    "config",
		Pass:    true,
		Message: fmt.Sprintf("loaded %q (wake phrase %q)", cfg.Path, cfg.Config.Wake.Phrase),
	})

	checks = append(checks, checkEnv("XDG_RUNTIME_DIR", func(v string) bool {
		return strings.TrimSpace(v) != ""
	}, "runtime dir available for the control socket", "XDG_RUNTIME_DIR is empty; stop and status cannot reach the listener"))

	checks = append(checks, checkModel(cfg.Config.Recognizer.Model))
	checks = append(checks, checkAudioSelection(ctx, cfg.Config))
	checks = append(checks, checkWritableDir("output.transcript_path", filepath.Dir(cfg.Config.Output.TranscriptPath)))
	checks = append(checks, checkWritableDir("output.status_path", filepath.Dir(cfg.Config.Output.StatusPath)))

	if cfg.Config.Output.Clipboard {
		checks = append(checks, checkCommand(cfg.Config.Clipboard.Argv, "clipboard_cmd"))
	}
	if cfg.Config.History.Enable {
		checks = append(checks, checkHistory(cfg.Config.History.Path))
	}
	if url := strings.TrimSpace(cfg.Config.Events.NATSURL); url != "" {
		checks = append(checks, checkNATS(url))
	}

	return Report{Checks: checks}
}

// checkEnv validates an environment variable through a caller-supplied predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	value := os.Getenv(name)
	if predicate(value) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	return checkBinary(argv[0], fmt.Sprintf("%s command is available", name))
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

func checkModel(path string) Check {
	if err := asr.CheckModel(path); err != nil {
		return Check{Name: "recognizer.model", Pass: false, Message: err.Error()}
	}
	return Check{Name: "recognizer.model", Pass: true, Message: fmt.Sprintf("found %q", path)}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(ctx context.Context, cfg config.Config) Check {
	if strings.EqualFold(cfg.Audio.Backend, audio.BackendPortAudio) {
		return Check{Name: "audio.device", Pass: true, Message: "portaudio uses the default input device"}
	}

	selection, err := audio.SelectDevice(ctx, cfg.Audio.Input, cfg.Audio.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

// checkWritableDir creates dir if needed and probes it with a temp file.
func checkWritableDir(name string, dir string) Check {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("create %s: %v", dir, err)}
	}
	probe, err := os.CreateTemp(dir, ".dexter-doctor-*")
	if err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("%s is not writable: %v", dir, err)}
	}
	_ = probe.Close()
	_ = os.Remove(probe.Name())
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("%s is writable", dir)}
}

func checkHistory(path string) Check {
	store, err := history.Open(path)
	if err != nil {
		return Check{Name: "history", Pass: false, Message: err.Error()}
	}
	_ = store.Close()
	return Check{Name: "history", Pass: true, Message: fmt.Sprintf("opened %s", path)}
}

func checkNATS(url string) Check {
	bus, err := events.Connect(url, nil)
	if err != nil {
		return Check{Name: "events.nats_url", Pass: false, Message: err.Error()}
	}
	_ = bus.Close()
	return Check{Name: "events.nats_url", Pass: true, Message: fmt.Sprintf("connected to %s", url)}
}
