package doctor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rbright/dexter/internal/config"
	"github.com/stretchr/testify/require"
)

func TestReportOKAndString(t *testing.T) {
	report := Report{Checks: []Check{
		{Name: "one", Pass: true, Message: "good"},
		{Name: "two", Pass: false, Message: "bad"},
	}}

	require.False(t, report.OK())
	text := report.String()
	require.Contains(t, text, "[OK] one: good")
	require.Contains(t, text, "[FAIL] two: bad")
}

func TestReportOKAllPassing(t *testing.T) {
	report := Report{Checks: []Check{{Name: "one", Pass: true}, {Name: "two", Pass: true}}}
	require.True(t, report.OK())
}

func TestCheckEnv(t *testing.T) {
	t.Setenv("TEST_DOCTOR_ENV", "/run/user/1000")

	check := checkEnv(
		"TEST_DOCTOR_ENV",
		func(v string) bool { return strings.TrimSpace(v) != "" },
		"looks good",
		"unexpected",
	)

	require.True(t, check.Pass)
	require.Equal(t, "looks good", check.Message)
}

func TestCheckCommandEmpty(t *testing.T) {
	check := checkCommand(nil, "clipboard_cmd")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "command is empty")
}

func TestCheckBinaryFound(t *testing.T) {
	check := checkBinary("sh", "shell available")
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "shell available")
}

func TestCheckBinaryMissing(t *testing.T) {
	check := checkBinary("definitely-not-a-real-binary", "unused")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "binary not found")
}

func TestCheckCommandUsesBinaryFromPath(t *testing.T) {
	dir := t.TempDir()
	scriptPath := filepath.Join(dir, "fake-bin")
	require.NoError(t, os.WriteFile(scriptPath, []byte("#!/usr/bin/env bash\nexit 0\n"), 0o755))
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))

	check := checkCommand([]string{"fake-bin", "--arg"}, "clipboard_cmd")
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "clipboard_cmd command is available")
}

func TestCheckModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ggml-base.en.bin")
	require.NoError(t, os.WriteFile(path, []byte("model"), 0o600))

	require.True(t, checkModel(path).Pass)

	missing := checkModel(filepath.Join(t.TempDir(), "missing.bin"))
	require.False(t, missing.Pass)
	require.Equal(t, "recognizer.model", missing.Name)
}

func TestCheckWritableDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "transcription")
	check := checkWritableDir("output.transcript_path", dir)
	require.True(t, check.Pass)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries, "probe file is removed")

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))
	require.False(t, checkWritableDir("output.status_path", filepath.Join(blocker, "status")).Pass)
}

func TestCheckHistoryOpensStore(t *testing.T) {
	check := checkHistory(filepath.Join(t.TempDir(), "history.db"))
	require.True(t, check.Pass, check.Message)
}

func TestCheckNATSUnreachable(t *testing.T) {
	check := checkNATS("nats://127.0.0.1:1")
	require.False(t, check.Pass)
	require.Equal(t, "events.nats_url", check.Name)
}

func TestCheckAudioSelectionFailureWithInvalidPulseServer(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	check := checkAudioSelection(context.Background(), config.Default())
	require.False(t, check.Pass)
	require.Contains(t, check.Name, "audio.device")
}

func TestCheckAudioSelectionSkipsPortAudio(t *testing.T) {
	cfg := config.Default()
	cfg.Audio.Backend = "portaudio"

	check := checkAudioSelection(context.Background(), cfg)
	require.True(t, check.Pass)
}

func TestRunIncludesOptionalChecksWhenEnabled(t *testing.T) {
	stateDir := t.TempDir()
	binDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(binDir, "fake-copy"), []byte("#!/usr/bin/env sh\nexit 0\n"), 0o755))
	t.Setenv("PATH", binDir+":"+os.Getenv("PATH"))
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())

	cfg := config.Default()
	cfg.Recognizer.Model = filepath.Join(stateDir, "missing.bin")
	cfg.Output.TranscriptPath = filepath.Join(stateDir, "transcription", "transcription.txt")
	cfg.Output.StatusPath = filepath.Join(stateDir, "status", "wake_word_status.txt")
	cfg.Output.Clipboard = true
	cfg.Clipboard = config.CommandConfig{Raw: "fake-copy", Argv: []string{"fake-copy"}}
	cfg.History = config.HistoryConfig{Enable: true, Path: filepath.Join(stateDir, "history.db")}
	cfg.Events.NATSURL = "nats://127.0.0.1:1"

	report := Run(context.Background(), config.Loaded{Path: "/tmp/config.jsonc", Config: cfg})
	require.False(t, report.OK())

	byName := map[string]Check{}
	for _, check := range report.Checks {
		byName[check.Name] = check
	}
	require.True(t, byName["config"].Pass)
	require.True(t, byName["XDG_RUNTIME_DIR"].Pass)
	require.False(t, byName["recognizer.model"].Pass)
	require.False(t, byName["audio.device"].Pass)
	require.True(t, byName["output.transcript_path"].Pass)
	require.True(t, byName["output.status_path"].Pass)
	require.True(t, byName["fake-copy"].Pass)
	require.True(t, byName["history"].Pass)
	require.False(t, byName["events.nats_url"].Pass)
}

func TestRunSkipsOptionalChecksWhenDisabled(t *testing.T) {
	stateDir := t.TempDir()
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	cfg := config.Default()
	cfg.Output.TranscriptPath = filepath.Join(stateDir, "transcription.txt")
	cfg.Output.StatusPath = filepath.Join(stateDir, "status.txt")
	cfg.Output.Clipboard = false
	cfg.History.Enable = false
	cfg.Events.NATSURL = ""

	report := Run(context.Background(), config.Loaded{Path: "/tmp/config.jsonc", Config: cfg})
	for _, check := range report.Checks {
		require.NotEqual(t, "history", check.Name)
		require.NotEqual(t, "events.nats_url", check.Name)
	}
}
