package indicator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbright/dexter/internal/config"
	"github.com/rbright/dexter/internal/fsm"
	"github.com/rbright/dexter/internal/status"
)

func TestNotifierDesktopLifecycle(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "busctl-args.log")
	t.Setenv("BUSCTL_ARGS_FILE", argsFile)
	installBusctlStub(t, `
printf '%s\n' "$*" >> "${BUSCTL_ARGS_FILE}"
if [[ "$*" == *" Notify "* ]]; then
  echo 'u 42'
fi
`)

	cfg := config.Default().Indicator
	cfg.Enable = true
	cfg.SoundEnable = false
	cfg.TimeoutMS = 5000

	notifier := New(cfg, nil)
	ctx := context.Background()
	require.NoError(t, notifier.Publish(ctx, status.Snapshot{State: fsm.StateIdle, Message: "Waiting for 'hey dexter'"}))
	require.NoError(t, notifier.Publish(ctx, status.Snapshot{State: fsm.StateRecording, Message: status.ListeningMessage}))
	require.NoError(t, notifier.Publish(ctx, status.Snapshot{State: fsm.StateRecording, Message: status.ListeningMessage}))
	require.NoError(t, notifier.Publish(ctx, status.Snapshot{State: fsm.StateIdle, Message: "Waiting for 'hey dexter'"}))

	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "Notify susssasa{sv}i dexter 0  Wake word detected - Listening...  0 0 5000")
	require.Contains(t, lines[1], "CloseNotification u 42")
}

func TestNotifierDisabledSkipsDesktop(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "busctl-args.log")
	t.Setenv("BUSCTL_ARGS_FILE", argsFile)
	installBusctlStub(t, `
printf '%s\n' "$*" >> "${BUSCTL_ARGS_FILE}"
`)

	cfg := config.Default().Indicator
	cfg.Enable = false
	cfg.SoundEnable = false

	notifier := New(cfg, nil)
	require.NoError(t, notifier.Publish(context.Background(), status.Snapshot{State: fsm.StateRecording}))
	require.NoError(t, notifier.Publish(context.Background(), status.Snapshot{State: fsm.StateIdle}))
	notifier.Wait()

	_, err := os.Stat(argsFile)
	require.True(t, os.IsNotExist(err))
}

func TestNotifierToleratesNotifyFailure(t *testing.T) {
	installBusctlStub(t, `
echo 'no bus' >&2
exit 1
`)

	cfg := config.Default().Indicator
	cfg.Enable = true
	cfg.SoundEnable = false

	notifier := New(cfg, nil)
	require.NoError(t, notifier.Publish(context.Background(), status.Snapshot{State: fsm.StateRecording}))
	require.NoError(t, notifier.Publish(context.Background(), status.Snapshot{State: fsm.StateIdle}))
}

func TestDesktopNotifyRejectsMalformedReply(t *testing.T) {
	installBusctlStub(t, `
echo 'garbage'
`)

	_, err := desktopNotify(context.Background(), "dexter", 0, "hi", 1000)
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid response")
}

func installBusctlStub(t *testing.T, body string) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "busctl")
	script := "#!/usr/bin/env bash\nset -euo pipefail\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))
}
