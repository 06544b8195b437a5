package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/pterm/pterm"

	"github.com/pmorrow/freedomtrack/internal/tracker"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+msg))
}

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	l := colorize(colorBold, label+":")
	fmt.Fprintf(os.Stderr, "  %s %s\n", l, val)
}

func printStep(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorCyan, "→ "+msg))
}

func printSummary(s tracker.Summary) {
	rec := s.Record
	printSuccess("Usage recorded for %s", rec.Date.Format("2006-01-02"))
	printStatus("Used", "%.2f GB", rec.UsedGB)
	if rec.RemainingGB != nil {
		printStatus("Remaining", "%.2f GB", *rec.RemainingGB)
	} else {
		printStatus("Remaining", "unlimited")
	}
	if rec.CycleEnd != nil {
		printStatus("Cycle ends", "%s", *rec.CycleEnd)
	}
	switch {
	case s.NewCycle:
		printStatus("Since last check", "new billing cycle")
	case s.DeltaGB != nil:
		printStatus("Since "+s.Previous.Date.Format("Jan 2"), "+%.2f GB", *s.DeltaGB)
	}
	if pct, ok := rec.PercentUsed(); ok {
		fmt.Fprintf(os.Stderr, "  %s\n", usageBar(pct))
	}
}

// usageBar renders plan consumption as a fixed-width bar, shifting color as
// the cap gets close.
func usageBar(pct float64) string {
	const width = 30
	filled := int(pct / 100 * width)
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	if !noColor {
		style := pterm.FgGreen
		switch {
		case pct >= 90:
			style = pterm.FgRed
		case pct >= 70:
			style = pterm.FgYellow
		}
		bar = style.Sprint(bar)
	}
	return fmt.Sprintf("%s %.0f%% of plan used", bar, pct)
}
