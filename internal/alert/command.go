package alert

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
)

// Command runs an external notifier such as notify-send. Title and body are
// appended to Args; the key is exported as TASKMASTER_ALERT_KEY.
type Command struct {
	Path string
	Args []string
}

func (c Command) Show(ctx context.Context, a Alert) error {
	if c.Path == "" {
		return fmt.Errorf("command is required")
	}
	args := append(append([]string{}, c.Args...), a.Title, a.Body)
	cmd := exec.CommandContext(ctx, c.Path, args...)
	cmd.Env = append(os.Environ(), "TASKMASTER_ALERT_KEY="+strconv.FormatInt(a.Key, 10))
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("alert command error: %v; out=%s", err, string(out))
	}
	return nil
}
