package portal

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// amountPattern matches a data amount with its unit suffix.
var amountPattern = regexp.MustCompile(`(?i)([0-9]+(?:\.[0-9]+)?)\s*(GB|MB)`)

// parseGB parses a data amount like "12.4 GB" or "512MB" and normalizes it to
// gigabytes. Empty or non-numeric text is rejected.
func parseGB(text string) (float64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, errors.New("empty amount")
	}
	m := amountPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, fmt.Errorf("no data amount in %q", text)
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %q: %w", m[1], err)
	}
	if strings.EqualFold(m[2], "MB") {
		v /= 1024
	}
	return v, nil
}

// datePattern matches either an ISO date or a short "Mon 2"-style date with
// an optional year.
const datePattern = `(?:\d{4}-\d{2}-\d{2}|[A-Z][a-z]{2}\s+\d{1,2}(?:,?\s*\d{4})?)`

var (
	// cycleRangePattern matches "Jun 1 - Jul 1" or "2024-05-02 to 2024-06-01"
	// style billing ranges; the second date is the cycle end.
	cycleRangePattern = regexp.MustCompile(
		`(` + datePattern + `)\s*(?:[-\x{2013}\x{2014}]|to)\s*(` + datePattern + `)`)
	// cycleEndsPattern matches explicit "cycle ends <date>" phrasing.
	cycleEndsPattern = regexp.MustCompile(
		`(?i:ends?|renews?|resets?)\s+(?i:on\s+)?(` + datePattern + `)`)
)

// parseCycleEnd pulls the billing-cycle end date out of text, keeping the
// matched text verbatim.
func parseCycleEnd(text string) (string, bool) {
	if m := cycleEndsPattern.FindStringSubmatch(text); m != nil {
		return m[1], true
	}
	if m := cycleRangePattern.FindStringSubmatch(text); m != nil {
		return m[2], true
	}
	return "", false
}
