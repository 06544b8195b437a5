// Package vault stores the portal credentials outside the repository and the
// state file. On macOS that is the system Keychain; elsewhere a
// permission-restricted secrets file. The rest of the pipeline only sees the
// Vault capability and a transient Credentials copy.
package vault

import (
	"errors"
	"fmt"
	"strings"
)

// service is the keychain service / secrets namespace for this tool.
const service = "freedomtrack"

// Accounts stored under the service.
const (
	accountPhone = "phone"
	accountPIN   = "pin"
)

// ErrNotFound is returned when the requested secret has not been stored yet.
var ErrNotFound = errors.New("secret not found")

// Vault is the secret store capability. Implementations must overwrite on Set.
type Vault interface {
	Get(account string) (string, error)
	Set(account, value string) error
}

// Credentials is the phone number + PIN pair the portal login needs. It is
// read from the vault at login start and never persisted by the pipeline.
type Credentials struct {
	Phone string
	PIN   string
}

// NormalizePhone strips the formatting people habitually type into phone
// number prompts.
func NormalizePhone(raw string) string {
	r := strings.NewReplacer("-", "", " ", "", "(", "", ")", "")
	return r.Replace(strings.TrimSpace(raw))
}

func allDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}

// Validate enforces the portal's credential shape: a 10-digit phone number
// and a 4-digit PIN.
func (c Credentials) Validate() error {
	if len(c.Phone) != 10 || !allDigits(c.Phone) {
		return errors.New("phone number must be exactly 10 digits")
	}
	if len(c.PIN) != 4 || !allDigits(c.PIN) {
		return errors.New("PIN must be exactly 4 digits")
	}
	return nil
}

// Suffix returns the trailing digits of the phone number, used to match the
// portal's masked OTP delivery targets.
func (c Credentials) Suffix(n int) string {
	if n >= len(c.Phone) {
		return c.Phone
	}
	return c.Phone[len(c.Phone)-n:]
}

// LoadCredentials reads the stored phone + PIN.
func LoadCredentials(v Vault) (Credentials, error) {
	phone, err := v.Get(accountPhone)
	if err != nil {
		return Credentials{}, fmt.Errorf("reading stored phone number: %w", err)
	}
	pin, err := v.Get(accountPIN)
	if err != nil {
		return Credentials{}, fmt.Errorf("reading stored PIN: %w", err)
	}
	return Credentials{Phone: phone, PIN: pin}, nil
}

// SaveCredentials validates and stores the pair, replacing any previous one.
func SaveCredentials(v Vault, c Credentials) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := v.Set(accountPhone, c.Phone); err != nil {
		return fmt.Errorf("storing phone number: %w", err)
	}
	if err := v.Set(accountPIN, c.PIN); err != nil {
		return fmt.Errorf("storing PIN: %w", err)
	}
	return nil
}
