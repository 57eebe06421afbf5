package output

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/rbright/dexter/internal/session"
)

// Clipboard pipes transcript text into a clipboard command.
type Clipboard struct {
	Argv    []string
	Timeout time.Duration
}

func (c Clipboard) Follow(ctx context.Context, transcript session.Transcript) error {
	text := transcript.Text()
	if text == "" {
		return nil
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	clipboardCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := runCommandWithInput(clipboardCtx, c.Argv, text); err != nil {
		return fmt.Errorf("set clipboard: %w", err)
	}
	return nil
}

// runCommandWithInput executes argv and optionally writes input to stdin.
func runCommandWithInput(ctx context.Context, argv []string, input string) error {
	if len(argv) == 0 {
		return fmt.Errorf("command argv cannot be empty")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("open stdin for %s: %w", argv[0], err)
	}

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return fmt.Errorf("start command %s: %w", argv[0], err)
	}

	if input != "" {
		if _, err := stdin.Write([]byte(input)); err != nil {
			_ = stdin.Close()
			_ = cmd.Wait()
			return fmt.Errorf("write stdin for %s: %w", argv[0], err)
		}
	}
	_ = stdin.Close()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait for %s: %w", argv[0], err)
	}
	return nil
}
