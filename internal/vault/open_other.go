//go:build !darwin

package vault

import (
	"os"
	"path/filepath"
)

func secretsFilePath() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "freedomtrack", "secrets.json")
}

// Open returns the platform vault: a permission-restricted secrets file.
func Open() Vault {
	return NewFile(secretsFilePath())
}
