package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

const desktopUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Options configure the launched Chrome instance.
type Options struct {
	// FindWait bounds how long Find polls for an element.
	FindWait time.Duration
	// WindowWidth/WindowHeight size the visible window.
	WindowWidth  int
	WindowHeight int
	UserAgent    string
}

func (o Options) withDefaults() Options {
	if o.FindWait <= 0 {
		o.FindWait = 25 * time.Second
	}
	if o.WindowWidth <= 0 {
		o.WindowWidth = 1920
	}
	if o.WindowHeight <= 0 {
		o.WindowHeight = 1080
	}
	if o.UserAgent == "" {
		o.UserAgent = desktopUserAgent
	}
	return o
}

// Chrome drives a visible Chrome instance through chromedp. The window stays
// on screen so the operator can watch the login and read the OTP prompt in
// context.
type Chrome struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	findWait    time.Duration
}

// Open launches Chrome and waits for it to come up. The returned handle owns
// the process; Close terminates it.
func Open(ctx context.Context, opts Options) (*Chrome, error) {
	opts = opts.withDefaults()

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		// The operator has to see the session to supply the OTP.
		chromedp.Flag("headless", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(opts.WindowWidth, opts.WindowHeight),
		chromedp.UserAgent(opts.UserAgent),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	// Force the browser to start now so launch failures surface here instead
	// of on the first navigation.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	return &Chrome{
		ctx:         tabCtx,
		cancel:      tabCancel,
		allocCancel: allocCancel,
		findWait:    opts.FindWait,
	}, nil
}

func queryOpt(sel Selector) chromedp.QueryOption {
	if sel.XPath {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

func (c *Chrome) Navigate(ctx context.Context, url string) error {
	if err := chromedp.Run(c.ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	return nil
}

func (c *Chrome) CurrentURL(ctx context.Context) (string, error) {
	var url string
	if err := chromedp.Run(c.ctx, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("reading current location: %w", err)
	}
	return url, nil
}

// Find polls for the element until it appears or the wait expires. The caller
// context can cut the wait short.
func (c *Chrome) Find(ctx context.Context, sel Selector) (Element, error) {
	deadline := time.Now().Add(c.findWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	for {
		var nodes []*cdp.Node
		err := chromedp.Run(c.ctx,
			chromedp.Nodes(sel.Query, &nodes, queryOpt(sel), chromedp.AtLeast(0)))
		if err != nil {
			return Element{}, fmt.Errorf("querying %q: %w", sel.Query, err)
		}
		if len(nodes) > 0 {
			return Element{Sel: sel}, nil
		}
		if time.Now().After(deadline) {
			return Element{}, fmt.Errorf("%q: %w", sel.Query, ErrElementNotFound)
		}
		select {
		case <-ctx.Done():
			return Element{}, ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}
}

func (c *Chrome) Text(ctx context.Context, el Element) (string, error) {
	var text string
	err := chromedp.Run(c.ctx, chromedp.Text(el.Sel.Query, &text, queryOpt(el.Sel)))
	if err != nil {
		return "", fmt.Errorf("reading text of %q: %w", el.Sel.Query, err)
	}
	return text, nil
}

func (c *Chrome) Click(ctx context.Context, el Element) error {
	err := chromedp.Run(c.ctx, chromedp.Click(el.Sel.Query, queryOpt(el.Sel)))
	if err != nil {
		return fmt.Errorf("clicking %q: %w", el.Sel.Query, err)
	}
	return nil
}

func (c *Chrome) Type(ctx context.Context, el Element, text string) error {
	err := chromedp.Run(c.ctx,
		chromedp.Clear(el.Sel.Query, queryOpt(el.Sel)),
		chromedp.SendKeys(el.Sel.Query, text, queryOpt(el.Sel)),
	)
	if err != nil {
		return fmt.Errorf("typing into %q: %w", el.Sel.Query, err)
	}
	return nil
}

func (c *Chrome) Submit(ctx context.Context, el Element) error {
	err := chromedp.Run(c.ctx,
		chromedp.SendKeys(el.Sel.Query, kb.Enter, queryOpt(el.Sel)))
	if err != nil {
		return fmt.Errorf("submitting %q: %w", el.Sel.Query, err)
	}
	return nil
}

func (c *Chrome) SelectOption(ctx context.Context, el Element, value string) error {
	if el.Sel.XPath {
		return fmt.Errorf("select option needs a CSS selector, got xpath %q", el.Sel.Query)
	}
	// SetValue alone does not notify the page's framework, so dispatch the
	// change event the way a real selection would.
	js := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) return false;
		el.value = %q;
		el.dispatchEvent(new Event('input', {bubbles: true}));
		el.dispatchEvent(new Event('change', {bubbles: true}));
		return true;
	})()`, el.Sel.Query, value)

	var ok bool
	if err := chromedp.Run(c.ctx, chromedp.Evaluate(js, &ok)); err != nil {
		return fmt.Errorf("selecting option on %q: %w", el.Sel.Query, err)
	}
	if !ok {
		return fmt.Errorf("%q: %w", el.Sel.Query, ErrElementNotFound)
	}
	return nil
}

func (c *Chrome) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := chromedp.Run(c.ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("capturing screenshot: %w", err)
	}
	return buf, nil
}

func (c *Chrome) PageSource(ctx context.Context) (string, error) {
	var html string
	err := chromedp.Run(c.ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	if err != nil {
		return "", fmt.Errorf("reading page source: %w", err)
	}
	return html, nil
}

// Close shuts the tab down gracefully, then kills the browser process.
func (c *Chrome) Close() error {
	err := chromedp.Cancel(c.ctx)
	c.cancel()
	c.allocCancel()
	return err
}
