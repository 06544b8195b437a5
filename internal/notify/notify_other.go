//go:build !darwin

package notify

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

type notifySendNotifier struct{}

// New returns a Notifier backed by notify-send, present on most Linux
// desktops.
func New() Notifier {
	return notifySendNotifier{}
}

func (notifySendNotifier) Notify(ctx context.Context, title, body string) error {
	cmd := exec.CommandContext(ctx, "notify-send", title, body)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("notify-send: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
