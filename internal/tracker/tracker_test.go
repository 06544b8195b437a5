package tracker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/pmorrow/freedomtrack/internal/browser"
	"github.com/pmorrow/freedomtrack/internal/history"
	"github.com/pmorrow/freedomtrack/internal/portal"
	"github.com/pmorrow/freedomtrack/internal/vault"
)

type mapVault map[string]string

func (m mapVault) Get(account string) (string, error) {
	v, ok := m[account]
	if !ok {
		return "", vault.ErrNotFound
	}
	return v, nil
}

func (m mapVault) Set(account, value string) error {
	m[account] = value
	return nil
}

// runBrowser plays a portal that signs in without an OTP challenge and serves
// a fixed dashboard. Enough surface for exercising the orchestration; the
// login flow's own scenarios live with that package.
type runBrowser struct {
	url       string
	signedIn  bool
	dashboard string
	badCreds  bool
	closed    bool
}

func (b *runBrowser) Navigate(ctx context.Context, url string) error {
	b.url = url
	return nil
}

func (b *runBrowser) CurrentURL(ctx context.Context) (string, error) {
	return b.url, nil
}

func (b *runBrowser) Find(ctx context.Context, sel browser.Selector) (browser.Element, error) {
	if !b.signedIn && (sel.Query == "#msisdnInput" || sel.Query == "#pinInput") {
		return browser.Element{Sel: sel}, nil
	}
	return browser.Element{}, fmt.Errorf("%q: %w", sel.Query, browser.ErrElementNotFound)
}

func (b *runBrowser) Text(ctx context.Context, el browser.Element) (string, error) {
	return "", nil
}

func (b *runBrowser) Click(ctx context.Context, el browser.Element) error { return nil }

func (b *runBrowser) Type(ctx context.Context, el browser.Element, text string) error {
	return nil
}

func (b *runBrowser) Submit(ctx context.Context, el browser.Element) error {
	if el.Sel.Query == "#pinInput" {
		if b.badCreds {
			return nil // URL never changes, the flow times out on the form
		}
		b.signedIn = true
		b.url = "https://portal.test/home"
	}
	return nil
}

func (b *runBrowser) SelectOption(ctx context.Context, el browser.Element, value string) error {
	return nil
}

func (b *runBrowser) Screenshot(ctx context.Context) ([]byte, error) {
	return []byte("png"), nil
}

func (b *runBrowser) PageSource(ctx context.Context) (string, error) {
	if b.signedIn {
		return b.dashboard, nil
	}
	return "<html><body></body></html>", nil
}

func (b *runBrowser) Close() error {
	b.closed = true
	return nil
}

const goodDashboard = `<html><body>
	<span>12.4 GB used / 5.6 GB remaining</span>
	<p>Billing cycle ends 2024-06-01</p>
</body></html>`

func newTestTracker(t *testing.T, b *runBrowser) *Tracker {
	t.Helper()
	return &Tracker{
		Vault: mapVault{"phone": "2045551234", "pin": "9876"},
		OpenBrowser: func(ctx context.Context) (browser.Handle, error) {
			return b, nil
		},
		Flow: &portal.Flow{
			LoginURL:     "https://portal.test/login",
			PageTimeout:  100 * time.Millisecond,
			PollInterval: 2 * time.Millisecond,
		},
		Extractor: &portal.Extractor{
			DashboardURL: "https://portal.test/overview",
			PageTimeout:  100 * time.Millisecond,
			PollInterval: 2 * time.Millisecond,
		},
		Store: history.New(t.TempDir()),
		Now: func() time.Time {
			return time.Date(2024, 5, 20, 9, 30, 0, 0, time.UTC)
		},
	}
}

func TestRunRecordsSnapshot(t *testing.T) {
	b := &runBrowser{dashboard: goodDashboard}
	tr := newTestTracker(t, b)

	summary, err := tr.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.Record.UsedGB != 12.4 {
		t.Errorf("UsedGB = %v, want 12.4", summary.Record.UsedGB)
	}
	if summary.Record.RemainingGB == nil || *summary.Record.RemainingGB != 5.6 {
		t.Errorf("RemainingGB = %v, want 5.6", summary.Record.RemainingGB)
	}
	if summary.Previous != nil || summary.DeltaGB != nil {
		t.Error("first run has nothing to compare against")
	}
	if !b.closed {
		t.Error("browser must be closed after the run")
	}

	records, err := tr.Store.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("recorded %d snapshots, want 1", len(records))
	}
	if got := records[0].Date.Format("2006-01-02"); got != "2024-05-20" {
		t.Errorf("snapshot date = %s, want 2024-05-20", got)
	}
}

func TestRunComputesDelta(t *testing.T) {
	b := &runBrowser{dashboard: goodDashboard}
	tr := newTestTracker(t, b)

	prev := history.Record{
		Date:       time.Date(2024, 5, 19, 0, 0, 0, 0, time.UTC),
		UsedGB:     10.0,
		CapturedAt: time.Date(2024, 5, 19, 9, 0, 0, 0, time.UTC),
	}
	if err := tr.Store.Upsert(prev); err != nil {
		t.Fatal(err)
	}

	summary, err := tr.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Previous == nil {
		t.Fatal("expected the previous snapshot in the summary")
	}
	if summary.NewCycle {
		t.Error("usage rose, no cycle rollover")
	}
	if summary.DeltaGB == nil || math.Abs(*summary.DeltaGB-2.4) > 1e-9 {
		t.Errorf("DeltaGB = %v, want 2.4", summary.DeltaGB)
	}
}

func TestRunDetectsCycleRollover(t *testing.T) {
	b := &runBrowser{dashboard: goodDashboard}
	tr := newTestTracker(t, b)

	prev := history.Record{
		Date:       time.Date(2024, 5, 19, 0, 0, 0, 0, time.UTC),
		UsedGB:     18.0, // above today's 12.4
		CapturedAt: time.Date(2024, 5, 19, 9, 0, 0, 0, time.UTC),
	}
	if err := tr.Store.Upsert(prev); err != nil {
		t.Fatal(err)
	}

	summary, err := tr.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !summary.NewCycle {
		t.Error("used data dropped, expected a cycle rollover")
	}
	if summary.DeltaGB != nil {
		t.Errorf("DeltaGB = %v, want nil across a rollover", *summary.DeltaGB)
	}
}

func TestRunRemainingRiseIsRollover(t *testing.T) {
	b := &runBrowser{dashboard: `<html><body>
		<span>0.4 GB used / 19.6 GB remaining</span>
	</body></html>`}
	tr := newTestTracker(t, b)

	rem := 2.0
	prev := history.Record{
		Date:        time.Date(2024, 5, 19, 0, 0, 0, 0, time.UTC),
		UsedGB:      0.1, // below today's 0.4, so only remaining reveals the reset
		RemainingGB: &rem,
		CapturedAt:  time.Date(2024, 5, 19, 9, 0, 0, 0, time.UTC),
	}
	if err := tr.Store.Upsert(prev); err != nil {
		t.Fatal(err)
	}

	summary, err := tr.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !summary.NewCycle {
		t.Error("remaining data rose, expected a cycle rollover")
	}
	if summary.DeltaGB != nil {
		t.Errorf("DeltaGB = %v, want nil across a rollover", *summary.DeltaGB)
	}
}

func TestRunExtractionFailureLeavesHistoryUntouched(t *testing.T) {
	b := &runBrowser{dashboard: `<html><body><span>4.0 GB used</span></body></html>`}
	tr := newTestTracker(t, b)

	_, err := tr.Run(context.Background())
	var fieldErr *portal.FieldNotFoundError
	if !errors.As(err, &fieldErr) {
		t.Fatalf("Run error = %v, want FieldNotFoundError", err)
	}

	records, readErr := tr.Store.ReadAll()
	if readErr != nil {
		t.Fatal(readErr)
	}
	if len(records) != 0 {
		t.Errorf("failed run wrote %d records, want none", len(records))
	}
	if !b.closed {
		t.Error("browser must be closed on the failure path")
	}
}

func TestRunLoginFailureLeavesHistoryUntouched(t *testing.T) {
	b := &runBrowser{dashboard: goodDashboard, badCreds: true}
	tr := newTestTracker(t, b)

	_, err := tr.Run(context.Background())
	if !errors.Is(err, portal.ErrPageLoad) {
		t.Fatalf("Run error = %v, want ErrPageLoad", err)
	}

	records, readErr := tr.Store.ReadAll()
	if readErr != nil {
		t.Fatal(readErr)
	}
	if len(records) != 0 {
		t.Errorf("failed run wrote %d records, want none", len(records))
	}
	if !b.closed {
		t.Error("browser must be closed on the failure path")
	}
}

func TestRunMissingCredentials(t *testing.T) {
	b := &runBrowser{dashboard: goodDashboard}
	tr := newTestTracker(t, b)
	tr.Vault = mapVault{}

	opened := false
	openBrowser := tr.OpenBrowser
	tr.OpenBrowser = func(ctx context.Context) (browser.Handle, error) {
		opened = true
		return openBrowser(ctx)
	}

	_, err := tr.Run(context.Background())
	if !errors.Is(err, vault.ErrNotFound) {
		t.Fatalf("Run error = %v, want ErrNotFound", err)
	}
	if opened {
		t.Error("no browser should launch without stored credentials")
	}
}

func TestNotificationText(t *testing.T) {
	rem := 5.6
	delta := 2.4
	prevDate := time.Date(2024, 5, 19, 0, 0, 0, 0, time.UTC)

	s := Summary{
		Record:   history.Record{UsedGB: 12.4, RemainingGB: &rem},
		Previous: &history.Record{Date: prevDate},
		DeltaGB:  &delta,
	}
	_, body := s.Notification()
	want := "12.40 GB used (+2.40 GB since May 19), 5.60 GB remaining (69% of plan)"
	if body != want {
		t.Errorf("body = %q, want %q", body, want)
	}

	s = Summary{
		Record:   history.Record{UsedGB: 0.4},
		NewCycle: true,
	}
	_, body = s.Notification()
	want = "0.40 GB used (new billing cycle), unlimited plan"
	if body != want {
		t.Errorf("body = %q, want %q", body, want)
	}
}
