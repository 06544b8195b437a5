// Package notify posts desktop notifications summarizing a completed run.
// Delivery is best effort; a failed notification is logged and dropped, never
// surfaced as a run failure.
package notify

import "context"

// Notifier posts one desktop notification.
type Notifier interface {
	Notify(ctx context.Context, title, body string) error
}
