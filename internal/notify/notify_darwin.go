//go:build darwin

package notify

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

type osascriptNotifier struct{}

// New returns a Notifier backed by the macOS Notification Center.
func New() Notifier {
	return osascriptNotifier{}
}

func (osascriptNotifier) Notify(ctx context.Context, title, body string) error {
	script := fmt.Sprintf("display notification %q with title %q",
		sanitize(body), sanitize(title))
	cmd := exec.CommandContext(ctx, "osascript", "-e", script)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("osascript: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// sanitize keeps the text from breaking out of the AppleScript string literal.
func sanitize(s string) string {
	s = strings.ReplaceAll(s, `\`, ``)
	s = strings.ReplaceAll(s, `"`, `'`)
	return s
}
