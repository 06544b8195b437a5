package portal

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/pmorrow/freedomtrack/internal/diag"
)

// Extraction is the set of figures pulled from the dashboard. RemainingGB is
// nil for plans recognized as uncapped; CycleEnd is nil when no strategy
// found a cycle date. Attempts holds the raw text of every strategy match for
// diagnostics, regardless of outcome.
type Extraction struct {
	UsedGB      float64
	RemainingGB *float64
	CycleEnd    *string
	Attempts    []Attempt
}

// Extractor locates usage figures on the authenticated dashboard. The
// dashboard renders dynamically, so extraction re-reads the page until the
// figures parse or the timeout passes.
type Extractor struct {
	DashboardURL string
	PageTimeout  time.Duration
	PollInterval time.Duration
	Diag         *diag.Capturer
}

// Extract navigates to the dashboard and runs the selector strategies. A
// required field that no strategy yields fails the whole extraction; partial
// records are never returned.
func (e *Extractor) Extract(ctx context.Context, s *Session) (Extraction, error) {
	if err := s.Browser.Navigate(ctx, e.DashboardURL); err != nil {
		return Extraction{}, fmt.Errorf("opening dashboard: %w", err)
	}

	timeout := e.PageTimeout
	if timeout <= 0 {
		timeout = 25 * time.Second
	}
	interval := e.PollInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	deadline := time.Now().Add(timeout)

	var (
		ext     Extraction
		lastErr error
	)
	for {
		source, err := s.Browser.PageSource(ctx)
		if err != nil {
			lastErr = fmt.Errorf("reading dashboard source: %w", err)
		} else {
			ext, lastErr = extractUsage(source)
			if lastErr == nil {
				slog.Debug("usage extracted",
					"usedGB", ext.UsedGB,
					"strategies", len(ext.Attempts))
				return ext, nil
			}
		}

		if time.Now().After(deadline) {
			break
		}
		select {
		case <-ctx.Done():
			return Extraction{}, ctx.Err()
		case <-time.After(interval):
		}
	}

	e.Diag.Capture(ctx, s.Browser, "extract-failed")
	return Extraction{}, lastErr
}

// page is one parsed rendering of the dashboard.
type page struct {
	doc *goquery.Document
	// text is the page's flattened, whitespace-collapsed text content.
	text string
}

var innerWhitespace = regexp.MustCompile(`\s+`)

func collapseSpace(s string) string {
	return strings.TrimSpace(innerWhitespace.ReplaceAllString(s, " "))
}

// nodeText flattens the text content of an HTML subtree.
func nodeText(n *html.Node) string {
	var buf bytes.Buffer
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n == nil {
			return
		}
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
			buf.WriteString(" ")
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return buf.String()
}

func newPage(source string) (*page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(source))
	if err != nil {
		return nil, fmt.Errorf("parsing dashboard markup: %w", err)
	}
	var text strings.Builder
	for _, n := range doc.Selection.Nodes {
		text.WriteString(nodeText(n))
	}
	return &page{doc: doc, text: collapseSpace(text.String())}, nil
}

// selectionText returns the collapsed text of the first selection matching
// any of the given CSS queries whose text satisfies keep.
func (p *page) selectionText(keep func(string) bool, queries ...string) string {
	for _, q := range queries {
		var found string
		p.doc.Find(q).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			text := collapseSpace(sel.Text())
			if keep(text) {
				found = text
				return false
			}
			return true
		})
		if found != "" {
			return found
		}
	}
	return ""
}

var (
	usedPattern      = regexp.MustCompile(`(?i)([0-9]+(?:\.[0-9]+)?\s*(?:GB|MB))\s*used`)
	remainingPattern = regexp.MustCompile(`(?i)([0-9]+(?:\.[0-9]+)?\s*(?:GB|MB))\s*(?:remaining|left)`)
	planPattern      = regexp.MustCompile(`(?i)used\s*(?:of|/)\s*([0-9]+(?:\.[0-9]+)?\s*(?:GB|MB))`)
	anyAmountPattern = regexp.MustCompile(`(?i)[0-9]+(?:\.[0-9]+)?\s*(?:GB|MB)`)
	unlimitedPattern = regexp.MustCompile(`(?i)unlimited\s+data|no\s+data\s+cap`)
)

// usageClassQueries are the landmark selectors the portal has historically
// hung usage figures on.
var usageClassQueries = []string{
	"[class*='usage']", "[class*='data-used']", "[class*='progress']",
	"[data-usage]", "[data-used]", "[class*='consumption']",
}

// usedStrategies is the SelectorSet for the used-data field, in priority
// order. The first strategy whose text parses wins.
var usedStrategies = []struct {
	name  string
	match func(p *page) string
}{
	{
		name: "used-label",
		match: func(p *page) string {
			if m := usedPattern.FindStringSubmatch(p.text); m != nil {
				return m[1]
			}
			return ""
		},
	},
	{
		name: "usage-landmark",
		match: func(p *page) string {
			text := p.selectionText(func(t string) bool {
				return anyAmountPattern.MatchString(t)
			}, usageClassQueries...)
			return anyAmountPattern.FindString(text)
		},
	},
	{
		name: "page-scan",
		match: func(p *page) string {
			return anyAmountPattern.FindString(p.text)
		},
	},
}

// remainingStrategies is the SelectorSet for the remaining-data field. A
// parse that succeeds with a nil value means the plan has no cap.
var remainingStrategies = []struct {
	name  string
	match func(p *page) string
	parse func(raw string, usedGB float64) (*float64, error)
}{
	{
		name: "remaining-label",
		match: func(p *page) string {
			if m := remainingPattern.FindStringSubmatch(p.text); m != nil {
				return m[1]
			}
			return ""
		},
		parse: func(raw string, _ float64) (*float64, error) {
			v, err := parseGB(raw)
			if err != nil {
				return nil, err
			}
			return &v, nil
		},
	},
	{
		name: "plan-total",
		match: func(p *page) string {
			if m := planPattern.FindStringSubmatch(p.text); m != nil {
				return m[1]
			}
			return ""
		},
		parse: func(raw string, usedGB float64) (*float64, error) {
			plan, err := parseGB(raw)
			if err != nil {
				return nil, err
			}
			rem := plan - usedGB
			if rem < 0 {
				return nil, fmt.Errorf("plan total %s below used %.2f GB", raw, usedGB)
			}
			return &rem, nil
		},
	},
	{
		name: "remaining-landmark",
		match: func(p *page) string {
			text := p.selectionText(func(t string) bool {
				return anyAmountPattern.MatchString(t)
			}, "[class*='remaining']", "[class*='data-left']")
			return anyAmountPattern.FindString(text)
		},
		parse: func(raw string, _ float64) (*float64, error) {
			v, err := parseGB(raw)
			if err != nil {
				return nil, err
			}
			return &v, nil
		},
	},
	{
		name: "unlimited-plan",
		match: func(p *page) string {
			return unlimitedPattern.FindString(p.text)
		},
		parse: func(string, float64) (*float64, error) {
			return nil, nil
		},
	},
}

// cycleStrategies is the SelectorSet for the optional cycle-end field.
var cycleStrategies = []struct {
	name  string
	match func(p *page) string
}{
	{
		name: "cycle-landmark",
		match: func(p *page) string {
			text := p.selectionText(func(t string) bool {
				lower := strings.ToLower(t)
				return strings.Contains(lower, "cycle") || strings.Contains(lower, "billing")
			}, "[class*='cycle']", "[class*='billing']", "p", "span", "div")
			if end, ok := parseCycleEnd(text); ok {
				return end
			}
			return ""
		},
	},
	{
		name: "page-scan",
		match: func(p *page) string {
			if end, ok := parseCycleEnd(p.text); ok {
				return end
			}
			return ""
		},
	},
}

// extractUsage runs every SelectorSet against one rendering of the page.
func extractUsage(source string) (Extraction, error) {
	p, err := newPage(source)
	if err != nil {
		return Extraction{}, err
	}

	var ext Extraction

	foundUsed := false
	for _, s := range usedStrategies {
		att := Attempt{Field: "used", Strategy: s.name, RawText: s.match(p)}
		if att.RawText != "" && !foundUsed {
			v, err := parseGB(att.RawText)
			if err != nil {
				att.Err = err
			} else {
				ext.UsedGB = v
				foundUsed = true
			}
		}
		ext.Attempts = append(ext.Attempts, att)
	}
	if !foundUsed {
		return Extraction{}, &FieldNotFoundError{Field: "used", Attempts: ext.Attempts}
	}

	foundRemaining := false
	for _, s := range remainingStrategies {
		att := Attempt{Field: "remaining", Strategy: s.name, RawText: s.match(p)}
		if att.RawText != "" && !foundRemaining {
			v, err := s.parse(att.RawText, ext.UsedGB)
			if err != nil {
				att.Err = err
			} else {
				ext.RemainingGB = v
				foundRemaining = true
			}
		}
		ext.Attempts = append(ext.Attempts, att)
	}
	if !foundRemaining {
		return Extraction{}, &FieldNotFoundError{Field: "remaining", Attempts: ext.Attempts}
	}

	for _, s := range cycleStrategies {
		att := Attempt{Field: "cycleEnd", Strategy: s.name, RawText: s.match(p)}
		if att.RawText != "" && ext.CycleEnd == nil {
			end := att.RawText
			ext.CycleEnd = &end
		}
		ext.Attempts = append(ext.Attempts, att)
	}

	return ext, nil
}
