// Package tracker runs the whole check: load credentials, drive the portal
// login, extract the usage figures, and commit one history record. The run
// either completes and records a snapshot, or fails and leaves the history
// untouched.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pmorrow/freedomtrack/internal/browser"
	"github.com/pmorrow/freedomtrack/internal/history"
	"github.com/pmorrow/freedomtrack/internal/portal"
	"github.com/pmorrow/freedomtrack/internal/vault"
)

// Summary is the outcome of one successful run.
type Summary struct {
	Record history.Record
	// Previous is the most recent snapshot from an earlier date, when one
	// exists.
	Previous *history.Record
	// DeltaGB is usage since Previous. It is nil on the first run and across
	// a cycle rollover, where the comparison would be meaningless.
	DeltaGB *float64
	// NewCycle is set when the figures show the billing cycle reset since
	// the previous snapshot.
	NewCycle bool
}

// Notification renders the summary as a desktop notification.
func (s Summary) Notification() (title, body string) {
	title = "Data usage"
	body = fmt.Sprintf("%.2f GB used", s.Record.UsedGB)
	if s.DeltaGB != nil {
		body += fmt.Sprintf(" (+%.2f GB since %s)",
			*s.DeltaGB, s.Previous.Date.Format("Jan 2"))
	}
	if s.NewCycle {
		body += " (new billing cycle)"
	}
	if s.Record.RemainingGB != nil {
		body += fmt.Sprintf(", %.2f GB remaining", *s.Record.RemainingGB)
		if pct, ok := s.Record.PercentUsed(); ok {
			body += fmt.Sprintf(" (%.0f%% of plan)", pct)
		}
	} else {
		body += ", unlimited plan"
	}
	return title, body
}

// Tracker wires the run's collaborators together. Every field must be set
// except Now, which defaults to the wall clock.
type Tracker struct {
	Vault       vault.Vault
	OpenBrowser func(ctx context.Context) (browser.Handle, error)
	Flow        *portal.Flow
	Extractor   *portal.Extractor
	Store       *history.Store

	Now func() time.Time
}

func (t *Tracker) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

// Run performs one complete check. The browser session lives exactly as long
// as the run and is closed on every exit path. Credentials pass through to
// the portal and are never written anywhere.
func (t *Tracker) Run(ctx context.Context) (Summary, error) {
	creds, err := vault.LoadCredentials(t.Vault)
	if err != nil {
		return Summary{}, fmt.Errorf("loading credentials: %w", err)
	}

	b, err := t.OpenBrowser(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("opening browser: %w", err)
	}
	defer func() {
		if cerr := b.Close(); cerr != nil {
			slog.Warn("closing browser", "error", cerr)
		}
	}()

	session, err := t.Flow.Login(ctx, b, creds)
	if err != nil {
		return Summary{}, err
	}
	slog.Info("signed in to the portal")

	ext, err := t.Extractor.Extract(ctx, session)
	if err != nil {
		return Summary{}, err
	}

	now := t.now()
	rec := history.Record{
		Date:        now,
		UsedGB:      ext.UsedGB,
		RemainingGB: ext.RemainingGB,
		CycleEnd:    ext.CycleEnd,
		CapturedAt:  now,
	}

	summary, err := t.summarize(rec)
	if err != nil {
		return Summary{}, err
	}

	if err := t.Store.Upsert(rec); err != nil {
		return Summary{}, err
	}
	slog.Info("snapshot recorded",
		"date", rec.Date.Format("2006-01-02"),
		"usedGB", rec.UsedGB)

	return summary, nil
}

// summarize compares the fresh record against the last snapshot from an
// earlier date. A drop in used data, or a rise in remaining data, means the
// billing cycle rolled over and day-to-day deltas do not apply.
func (t *Tracker) summarize(rec history.Record) (Summary, error) {
	records, err := t.Store.ReadAll()
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{Record: rec}
	today := rec.Date.Format("2006-01-02")
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].Date.Format("2006-01-02") < today {
			prev := records[i]
			summary.Previous = &prev
			break
		}
	}
	if summary.Previous == nil {
		return summary, nil
	}

	prev := *summary.Previous
	switch {
	case rec.UsedGB < prev.UsedGB:
		summary.NewCycle = true
	case rec.RemainingGB != nil && prev.RemainingGB != nil &&
		*rec.RemainingGB > *prev.RemainingGB:
		summary.NewCycle = true
	default:
		delta := rec.UsedGB - prev.UsedGB
		summary.DeltaGB = &delta
	}
	return summary, nil
}
