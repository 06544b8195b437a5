//go:build darwin

package vault

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// keychainVault talks to the macOS Keychain through the security CLI.
type keychainVault struct{}

// Open returns the platform vault: the macOS Keychain.
func Open() Vault {
	return keychainVault{}
}

func (keychainVault) Get(account string) (string, error) {
	out, err := exec.Command(
		"security", "find-generic-password",
		"-s", service,
		"-a", account,
		"-w",
	).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// security exits 44 (errSecItemNotFound) for missing items.
			return "", ErrNotFound
		}
		return "", fmt.Errorf("querying keychain: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (keychainVault) Set(account, value string) error {
	// add-generic-password refuses to overwrite, so delete first and ignore
	// the error when the item did not exist.
	exec.Command(
		"security", "delete-generic-password",
		"-s", service,
		"-a", account,
	).Run()

	if err := exec.Command(
		"security", "add-generic-password",
		"-s", service,
		"-a", account,
		"-w", value,
	).Run(); err != nil {
		return fmt.Errorf("storing keychain item: %w", err)
	}
	return nil
}
