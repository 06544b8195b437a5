package portal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/pmorrow/freedomtrack/internal/browser"
	"github.com/pmorrow/freedomtrack/internal/diag"
	"github.com/pmorrow/freedomtrack/internal/vault"
)

// State names the position of a login attempt in the flow. Failure exits are
// possible from every state.
type State int

const (
	StateNavigatingToLogin State = iota
	StateCredentialsEntered
	StateAwaitingOTPTarget
	StateAwaitingOTPCode
	StateAuthenticated
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNavigatingToLogin:
		return "navigating-to-login"
	case StateCredentialsEntered:
		return "credentials-entered"
	case StateAwaitingOTPTarget:
		return "awaiting-otp-target"
	case StateAwaitingOTPCode:
		return "awaiting-otp-code"
	case StateAuthenticated:
		return "authenticated"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Session is an authenticated browser session, valid for the rest of the run.
// Sessions are never cached across runs; every run logs in fresh.
type Session struct {
	Browser browser.Handle
}

// Page structure the flow drives. The portal renders the login form with
// stable ids; everything else is located with layered fallbacks.
var (
	selPhoneModeLink = browser.XPath(`//a[contains(., 'Phone Number')] | //span[contains(., 'Phone Number')] | //button[contains(., 'Phone Number')]`)
	selPhoneInput    = browser.CSS("#msisdnInput")
	selPINInput      = browser.CSS("#pinInput")
	selChannelList   = browser.CSS("#maskedChannelList")
	selNextButton    = browser.XPath(`//button[contains(., 'Next')]`)
	selLoginError    = browser.XPath(`//*[contains(@class, 'error') or contains(@class, 'alert')][contains(., 'nvalid') or contains(., 'ncorrect')]`)
	selCodeSubmit    = browser.XPath(`//button[contains(., 'Verify')] | //button[contains(., 'Submit')] | //button[contains(., 'Confirm')] | //button[contains(., 'Next')]`)
	selCodeRejected  = browser.XPath(`//*[contains(., 'nvalid code') or contains(., 'ncorrect code') or contains(., 'try again')]`)
)

// Candidate fields for the verification-page phone entry and the code entry,
// in priority order. The login form's own inputs are excluded.
var (
	verifyPhoneInputs = []browser.Selector{
		browser.CSS("input[type='tel']:not(#msisdnInput)"),
		browser.CSS("input[type='number']"),
		browser.CSS("input[type='text']:not(#msisdnInput):not(#pinInput):not(#usernameInput):not(#passwordInput)"),
	}
	codeInputs = []browser.Selector{
		browser.CSS("input[autocomplete='one-time-code']"),
		browser.CSS("input[type='tel']:not(#msisdnInput)"),
		browser.CSS("input[type='number']"),
		browser.CSS("input[type='password']:not(#pinInput)"),
		browser.CSS("input[type='text']:not(#msisdnInput):not(#pinInput)"),
	}
)

// Flow drives the browser through credential entry, OTP verification, and on
// to an authenticated session.
type Flow struct {
	LoginURL     string
	Prompter     CodePrompter
	Diag         *diag.Capturer
	PageTimeout  time.Duration
	PollInterval time.Duration

	state State
}

// State reports where the flow currently is, for logging and failure
// reporting.
func (f *Flow) State() State {
	return f.state
}

func (f *Flow) setState(s State) {
	f.state = s
	slog.Debug("login flow", "state", s.String())
}

func (f *Flow) timeout() time.Duration {
	if f.PageTimeout > 0 {
		return f.PageTimeout
	}
	return 25 * time.Second
}

func (f *Flow) interval() time.Duration {
	if f.PollInterval > 0 {
		return f.PollInterval
	}
	return 500 * time.Millisecond
}

// quickFind looks for an element that is either already present or not
// coming, without waiting out the full page timeout.
func (f *Flow) quickFind(ctx context.Context, b browser.Handle, sel browser.Selector) (browser.Element, bool) {
	quickCtx, cancel := context.WithTimeout(ctx, 2*f.interval())
	defer cancel()
	el, err := b.Find(quickCtx, sel)
	return el, err == nil
}

// findFirst tries each candidate selector in order.
func (f *Flow) findFirst(ctx context.Context, b browser.Handle, sels []browser.Selector) (browser.Element, bool) {
	for _, sel := range sels {
		if el, ok := f.quickFind(ctx, b, sel); ok {
			return el, true
		}
	}
	return browser.Element{}, false
}

// fail records the failure state and captures diagnostics before handing the
// error up. Diagnostics failures never mask err.
func (f *Flow) fail(ctx context.Context, b browser.Handle, label string, err error) error {
	f.setState(StateFailed)
	f.Diag.Capture(ctx, b, label)
	return err
}

// authenticatedURL reports whether the browser has moved past both the login
// and verification pages.
func authenticatedURL(url string) bool {
	lower := strings.ToLower(url)
	return url != "" &&
		!strings.Contains(lower, "login") &&
		!strings.Contains(lower, "verification")
}

// Login performs one fresh login attempt. Invalid credentials are terminal —
// retrying could lock the account. The OTP code may be resubmitted exactly
// once with a fresh code; a second rejection is terminal.
func (f *Flow) Login(ctx context.Context, b browser.Handle, creds vault.Credentials) (*Session, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	f.setState(StateNavigatingToLogin)
	if err := b.Navigate(ctx, f.LoginURL); err != nil {
		return nil, f.fail(ctx, b, "login-page", fmt.Errorf("%w: %v", ErrPageLoad, err))
	}

	// The portal sometimes lands on the username form; switch to phone+PIN.
	if link, ok := f.quickFind(ctx, b, selPhoneModeLink); ok {
		if err := b.Click(ctx, link); err != nil {
			slog.Debug("could not switch login mode", "error", err)
		}
	}

	phoneInput, err := b.Find(ctx, selPhoneInput)
	if err != nil {
		return nil, f.fail(ctx, b, "login-form",
			fmt.Errorf("%w: phone field: %v", ErrPageLoad, err))
	}
	pinInput, err := b.Find(ctx, selPINInput)
	if err != nil {
		return nil, f.fail(ctx, b, "login-form",
			fmt.Errorf("%w: PIN field: %v", ErrPageLoad, err))
	}

	if err := b.Type(ctx, phoneInput, creds.Phone); err != nil {
		return nil, f.fail(ctx, b, "login-form", fmt.Errorf("entering phone number: %w", err))
	}
	if err := b.Type(ctx, pinInput, creds.PIN); err != nil {
		return nil, f.fail(ctx, b, "login-form", fmt.Errorf("entering PIN: %w", err))
	}
	if err := b.Submit(ctx, pinInput); err != nil {
		return nil, f.fail(ctx, b, "login-form", fmt.Errorf("submitting sign-in: %w", err))
	}
	f.setState(StateCredentialsEntered)

	outcome, err := f.waitLoginOutcome(ctx, b)
	if err != nil {
		return nil, f.fail(ctx, b, "sign-in", err)
	}

	switch outcome {
	case outcomeInvalidCredentials:
		return nil, f.fail(ctx, b, "sign-in", ErrInvalidCredentials)
	case outcomeAuthenticated:
		// No verification demanded this time.
	case outcomeVerification:
		if err := f.verify(ctx, b, creds); err != nil {
			return nil, err
		}
	}

	f.setState(StateAuthenticated)
	return &Session{Browser: b}, nil
}

type loginOutcome int

const (
	outcomeInvalidCredentials loginOutcome = iota
	outcomeVerification
	outcomeAuthenticated
)

func (f *Flow) waitLoginOutcome(ctx context.Context, b browser.Handle) (loginOutcome, error) {
	deadline := time.Now().Add(f.timeout())
	for {
		if _, ok := f.quickFind(ctx, b, selLoginError); ok {
			return outcomeInvalidCredentials, nil
		}

		url, err := b.CurrentURL(ctx)
		if err != nil {
			return 0, fmt.Errorf("reading location after sign-in: %w", err)
		}
		if strings.Contains(strings.ToLower(url), "account-verification") {
			return outcomeVerification, nil
		}
		if authenticatedURL(url) {
			return outcomeAuthenticated, nil
		}

		if time.Now().After(deadline) {
			return 0, fmt.Errorf("%w: no response after sign-in", ErrPageLoad)
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(f.interval()):
		}
	}
}

// verify walks the OTP challenge: pick the delivery target, request the SMS,
// then prompt the operator and submit the code, allowing one resubmission.
func (f *Flow) verify(ctx context.Context, b browser.Handle, creds vault.Credentials) error {
	challenge, err := f.selectOTPTarget(ctx, b, creds)
	if err != nil {
		return f.fail(ctx, b, "otp-target", err)
	}

	accepted, err := f.submitCode(ctx, b, challenge)
	if err != nil {
		return f.fail(ctx, b, "otp-code", err)
	}
	if !accepted {
		// Codes are short-lived and single-use; ask for a fresh one, once.
		slog.Warn("verification code rejected, requesting a fresh one")
		accepted, err = f.submitCode(ctx, b, challenge)
		if err != nil {
			return f.fail(ctx, b, "otp-code", err)
		}
		if !accepted {
			return f.fail(ctx, b, "otp-code", ErrOTPRejected)
		}
	}
	return nil
}

func (f *Flow) selectOTPTarget(ctx context.Context, b browser.Handle, creds vault.Credentials) (OTPChallenge, error) {
	f.setState(StateAwaitingOTPTarget)

	challenge := OTPChallenge{TargetMask: "number ending in " + creds.Suffix(2)}

	list, err := b.Find(ctx, selChannelList)
	if errors.Is(err, browser.ErrElementNotFound) {
		// Some sessions skip target selection and go straight to code entry.
		return challenge, nil
	}
	if err != nil {
		return challenge, fmt.Errorf("locating delivery targets: %w", err)
	}

	value, label, err := matchOTPTarget(ctx, b, creds)
	if err != nil {
		return challenge, err
	}
	if label != "" {
		challenge.TargetMask = label
	}

	if err := b.SelectOption(ctx, list, value); err != nil {
		return challenge, fmt.Errorf("selecting delivery target: %w", err)
	}
	slog.Info("OTP delivery target selected", "target", challenge.TargetMask)

	// The portal asks for the full number again once a target is picked.
	if input, ok := f.findFirst(ctx, b, verifyPhoneInputs); ok {
		if err := b.Type(ctx, input, creds.Phone); err != nil {
			return challenge, fmt.Errorf("confirming phone number: %w", err)
		}
	}

	if btn, ok := f.quickFind(ctx, b, selNextButton); ok {
		if err := b.Click(ctx, btn); err != nil {
			return challenge, fmt.Errorf("requesting SMS send: %w", err)
		}
	} else {
		slog.Warn("could not find the Next button, assuming the SMS was already sent")
	}

	return challenge, nil
}

// matchOTPTarget reads the masked delivery options off the page and picks the
// SMS entry ending in the stored number's suffix. E-mail targets never match.
func matchOTPTarget(ctx context.Context, b browser.Handle, creds vault.Credentials) (value, label string, err error) {
	source, err := b.PageSource(ctx)
	if err != nil {
		return "", "", fmt.Errorf("reading verification page: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(source))
	if err != nil {
		return "", "", fmt.Errorf("parsing verification page: %w", err)
	}

	suffix := creds.Suffix(2)
	doc.Find("select#maskedChannelList option").EachWithBreak(func(_ int, opt *goquery.Selection) bool {
		v, _ := opt.Attr("value")
		if v == "" || strings.Contains(v, "@") {
			return true
		}
		if strings.HasSuffix(v, suffix) {
			value = v
			label = collapseSpace(opt.Text())
			return false
		}
		return true
	})
	if value == "" {
		return "", "", ErrOTPTargetMismatch
	}
	return value, label, nil
}

// submitCode blocks on the operator for a code, submits it, and reports
// whether the portal accepted it. The prompt wait is unbounded; only the
// post-submit dashboard wait is timed, and running it out means the portal
// session died underneath us.
func (f *Flow) submitCode(ctx context.Context, b browser.Handle, challenge OTPChallenge) (bool, error) {
	f.setState(StateAwaitingOTPCode)

	code, err := f.Prompter.Prompt(ctx, challenge)
	if err != nil {
		return false, err
	}

	input, ok := f.findFirst(ctx, b, codeInputs)
	if !ok {
		return false, fmt.Errorf("%w: verification code field", ErrPageLoad)
	}
	if err := b.Type(ctx, input, code); err != nil {
		return false, fmt.Errorf("entering verification code: %w", err)
	}

	if btn, ok := f.quickFind(ctx, b, selCodeSubmit); ok {
		if err := b.Click(ctx, btn); err != nil {
			return false, fmt.Errorf("submitting verification code: %w", err)
		}
	} else if err := b.Submit(ctx, input); err != nil {
		return false, fmt.Errorf("submitting verification code: %w", err)
	}

	deadline := time.Now().Add(f.timeout())
	for {
		if _, rejected := f.quickFind(ctx, b, selCodeRejected); rejected {
			return false, nil
		}

		url, err := b.CurrentURL(ctx)
		if err != nil {
			return false, fmt.Errorf("reading location after verification: %w", err)
		}
		if authenticatedURL(url) {
			return true, nil
		}

		if time.Now().After(deadline) {
			return false, ErrSessionExpired
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(f.interval()):
		}
	}
}
