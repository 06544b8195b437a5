// Package config loads tool configuration from the platform-native backend
// with FREEDOMTRACK_* environment overrides.
//
// On macOS the backend is UserDefaults (domain: com.freedomtrack.app); on
// other platforms a JSON file at $XDG_CONFIG_HOME/freedomtrack/config.json.
// Environment variables override backend values on all platforms.
package config

import (
	"path/filepath"
	"time"
)

type Config struct {
	Portal      PortalConfig
	Storage     StorageConfig
	Diagnostics DiagnosticsConfig
	Log         LogConfig
}

type PortalConfig struct {
	LoginURL     string
	DashboardURL string
	// PageTimeout bounds automated waits on page structure. It never applies
	// to the operator's OTP entry, which may take arbitrary real-world time.
	PageTimeout string
}

type StorageConfig struct {
	DataDir string
}

type DiagnosticsConfig struct {
	Dir string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	dataDir := defaultDataDir()
	return Config{
		Portal: PortalConfig{
			LoginURL:     "https://myaccount.freedommobile.ca/login",
			DashboardURL: "https://myaccount.freedommobile.ca/overview",
			PageTimeout:  "25s",
		},
		Storage: StorageConfig{
			DataDir: dataDir,
		},
		Diagnostics: DiagnosticsConfig{
			Dir: filepath.Join(dataDir, "diagnostics"),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the platform backend, then applies
// environment overrides.
func Load() (Config, error) {
	return loadWith(newPlatformBackend())
}

func loadWith(b Backend) (Config, error) {
	cfg := defaults()
	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// Timeout parses the configured page timeout. The fallback is returned along
// with the parse error when the value is malformed, so callers can warn and
// continue.
func (p PortalConfig) Timeout(fallback time.Duration) (time.Duration, error) {
	d, err := time.ParseDuration(p.PageTimeout)
	if err != nil {
		return fallback, err
	}
	return d, nil
}
