package portal

import (
	"errors"
	"math"
	"testing"
)

// TestExtractUsedAndRemaining covers the dashboard's current phrasing:
// used and remaining stated side by side, cycle end spelled out.
func TestExtractUsedAndRemaining(t *testing.T) {
	source := `<html><body>
		<div class="usage-summary">
			<span>12.4 GB used / 5.6 GB remaining</span>
		</div>
		<p class="billing-cycle">Billing cycle ends 2024-06-01</p>
	</body></html>`

	ext, err := extractUsage(source)
	if err != nil {
		t.Fatalf("extractUsage: %v", err)
	}

	if ext.UsedGB != 12.4 {
		t.Errorf("UsedGB = %v, want 12.4", ext.UsedGB)
	}
	if ext.RemainingGB == nil || *ext.RemainingGB != 5.6 {
		t.Errorf("RemainingGB = %v, want 5.6", ext.RemainingGB)
	}
	if ext.CycleEnd == nil || *ext.CycleEnd != "2024-06-01" {
		t.Errorf("CycleEnd = %v, want 2024-06-01", ext.CycleEnd)
	}
}

// TestExtractPlanTotalForm covers the older phrasing where only the plan
// total is shown; remaining is derived from it.
func TestExtractPlanTotalForm(t *testing.T) {
	source := `<html><body>
		<div class="data-usage">7.25 GB used of 20 GB this cycle.</div>
	</body></html>`

	ext, err := extractUsage(source)
	if err != nil {
		t.Fatalf("extractUsage: %v", err)
	}
	if ext.UsedGB != 7.25 {
		t.Errorf("UsedGB = %v, want 7.25", ext.UsedGB)
	}
	if ext.RemainingGB == nil || math.Abs(*ext.RemainingGB-12.75) > 1e-9 {
		t.Errorf("RemainingGB = %v, want 12.75", ext.RemainingGB)
	}
	if ext.CycleEnd != nil {
		t.Errorf("CycleEnd = %v, want nil", *ext.CycleEnd)
	}
}

// TestExtractMegabytesNormalized verifies MB figures come back in GB.
func TestExtractMegabytesNormalized(t *testing.T) {
	source := `<html><body><span>512 MB used / 1024 MB remaining</span></body></html>`

	ext, err := extractUsage(source)
	if err != nil {
		t.Fatalf("extractUsage: %v", err)
	}
	if ext.UsedGB != 0.5 {
		t.Errorf("UsedGB = %v, want 0.5", ext.UsedGB)
	}
	if ext.RemainingGB == nil || *ext.RemainingGB != 1 {
		t.Errorf("RemainingGB = %v, want 1", ext.RemainingGB)
	}
}

// TestExtractUnlimitedPlan verifies an uncapped plan yields a nil remaining
// value rather than a failure.
func TestExtractUnlimitedPlan(t *testing.T) {
	source := `<html><body>
		<div class="usage">3.2 GB used</div>
		<div class="plan">Unlimited data</div>
	</body></html>`

	ext, err := extractUsage(source)
	if err != nil {
		t.Fatalf("extractUsage: %v", err)
	}
	if ext.UsedGB != 3.2 {
		t.Errorf("UsedGB = %v, want 3.2", ext.UsedGB)
	}
	if ext.RemainingGB != nil {
		t.Errorf("RemainingGB = %v, want nil for unlimited plan", *ext.RemainingGB)
	}
}

// TestExtractLandmarkFallback drops the "used" label so only the class-based
// landmark strategy can find the figure.
func TestExtractLandmarkFallback(t *testing.T) {
	source := `<html><body>
		<div class="data-consumption"><b>9.1 GB</b></div>
		<div class="data-remaining">0.9 GB</div>
	</body></html>`

	ext, err := extractUsage(source)
	if err != nil {
		t.Fatalf("extractUsage: %v", err)
	}
	if ext.UsedGB != 9.1 {
		t.Errorf("UsedGB = %v, want 9.1", ext.UsedGB)
	}
	if ext.RemainingGB == nil || *ext.RemainingGB != 0.9 {
		t.Errorf("RemainingGB = %v, want 0.9", ext.RemainingGB)
	}
}

// TestExtractRemainingMissing has a findable used figure but nothing any
// remaining strategy can use; the whole extraction must fail, field named.
func TestExtractRemainingMissing(t *testing.T) {
	source := `<html><body><div>4.0 GB used</div></body></html>`

	_, err := extractUsage(source)
	var fieldErr *FieldNotFoundError
	if !errors.As(err, &fieldErr) {
		t.Fatalf("extractUsage error = %v, want FieldNotFoundError", err)
	}
	if fieldErr.Field != "remaining" {
		t.Errorf("Field = %q, want %q", fieldErr.Field, "remaining")
	}
	if len(fieldErr.Attempts) == 0 {
		t.Error("expected raw attempts captured for diagnostics")
	}
}

// TestExtractNothingFound verifies a page with no usage figures at all fails
// on the used field.
func TestExtractNothingFound(t *testing.T) {
	source := `<html><body><h1>Welcome</h1></body></html>`

	_, err := extractUsage(source)
	var fieldErr *FieldNotFoundError
	if !errors.As(err, &fieldErr) {
		t.Fatalf("extractUsage error = %v, want FieldNotFoundError", err)
	}
	if fieldErr.Field != "used" {
		t.Errorf("Field = %q, want %q", fieldErr.Field, "used")
	}
}

// TestExtractAttemptsRecorded verifies every strategy leaves a raw-text
// attempt, successful or not.
func TestExtractAttemptsRecorded(t *testing.T) {
	source := `<html><body><span>12.4 GB used / 5.6 GB remaining</span></body></html>`

	ext, err := extractUsage(source)
	if err != nil {
		t.Fatalf("extractUsage: %v", err)
	}

	want := len(usedStrategies) + len(remainingStrategies) + len(cycleStrategies)
	if len(ext.Attempts) != want {
		t.Errorf("attempts = %d, want one per strategy (%d)", len(ext.Attempts), want)
	}
	if ext.Attempts[0].Field != "used" || ext.Attempts[0].RawText == "" {
		t.Errorf("first attempt should be the winning used-label match, got %+v", ext.Attempts[0])
	}
}

// TestExtractImplausiblePlanRejected verifies a plan total below the used
// figure is rejected so a later strategy can still win.
func TestExtractImplausiblePlanRejected(t *testing.T) {
	source := `<html><body>
		<span>12.4 GB used of 5 GB</span>
		<span class="remaining">7.6 GB</span>
	</body></html>`

	ext, err := extractUsage(source)
	if err != nil {
		t.Fatalf("extractUsage: %v", err)
	}
	if ext.RemainingGB == nil || *ext.RemainingGB != 7.6 {
		t.Errorf("RemainingGB = %v, want the landmark value 7.6", ext.RemainingGB)
	}

	var sawRejection bool
	for _, att := range ext.Attempts {
		if att.Strategy == "plan-total" && att.Err != nil {
			sawRejection = true
		}
	}
	if !sawRejection {
		t.Error("expected the implausible plan-total attempt to carry its rejection")
	}
}
