// Package browser defines the browser-automation capability the pipeline
// drives, and a chromedp-backed implementation of it. The login and
// extraction logic only ever sees the Handle interface, so tests run against
// scripted fakes.
package browser

import (
	"context"
	"errors"
)

// ErrElementNotFound is returned by Find when no matching element appears
// within the bounded wait.
var ErrElementNotFound = errors.New("element not found")

// Selector locates an element in the rendered page.
type Selector struct {
	Query string
	// XPath interprets Query as an XPath expression instead of a CSS
	// selector.
	XPath bool
}

// CSS returns a CSS selector.
func CSS(query string) Selector {
	return Selector{Query: query}
}

// XPath returns an XPath selector.
func XPath(query string) Selector {
	return Selector{Query: query, XPath: true}
}

// Element is a located page element, identified by the selector that found
// it. It stays valid only as long as the page it was found on.
type Element struct {
	Sel Selector
}

// Handle is one exclusively-owned browser session. It is acquired at the
// start of a run and must be closed on every exit path.
type Handle interface {
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
	// Find waits a bounded time for an element matching sel and returns
	// ErrElementNotFound when none appears.
	Find(ctx context.Context, sel Selector) (Element, error)
	Text(ctx context.Context, el Element) (string, error)
	Click(ctx context.Context, el Element) error
	// Type clears the element, then types text into it.
	Type(ctx context.Context, el Element, text string) error
	// Submit submits the form the element belongs to.
	Submit(ctx context.Context, el Element) error
	// SelectOption picks the option with the given value on a select element
	// and fires its change event.
	SelectOption(ctx context.Context, el Element, value string) error
	Screenshot(ctx context.Context) ([]byte, error)
	PageSource(ctx context.Context) (string, error)
	Close() error
}
