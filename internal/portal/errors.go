package portal

import (
	"errors"
	"fmt"
)

// Failure taxonomy of the login and extraction pipeline. Everything here
// propagates unrecovered to the orchestrator; only diagnostics-write failures
// are swallowed (see the diag package).
var (
	// ErrPageLoad means an expected page or form never appeared within the
	// bounded wait.
	ErrPageLoad = errors.New("expected page structure did not appear")
	// ErrInvalidCredentials is terminal: repeated bad attempts can lock the
	// account, so the flow never retries it.
	ErrInvalidCredentials = errors.New("portal rejected the phone number or PIN")
	// ErrOTPTargetMismatch means none of the portal's masked delivery targets
	// ends in the stored phone number's suffix.
	ErrOTPTargetMismatch = errors.New("no OTP delivery target matches the stored phone number")
	// ErrOTPRejected means the portal rejected the verification code twice;
	// a single resubmission with a fresh code is the only retry allowed.
	ErrOTPRejected = errors.New("verification code rejected twice")
	// ErrSessionExpired means the portal's own idle timeout ended the session
	// while the flow was waiting on it.
	ErrSessionExpired = errors.New("browser session expired")
)

// FieldNotFoundError reports that every selector strategy failed for a
// required dashboard field. Attempts carries the raw text each strategy
// matched, for selector repair.
type FieldNotFoundError struct {
	Field    string
	Attempts []Attempt
}

func (e *FieldNotFoundError) Error() string {
	return fmt.Sprintf("no selector strategy yielded a value for %q", e.Field)
}

// Attempt is the raw outcome of one strategy against one field.
type Attempt struct {
	Field    string
	Strategy string
	// RawText is what the strategy matched, empty when it matched nothing.
	RawText string
	// Err is the parse failure for a match that did not survive validation.
	Err error
}
