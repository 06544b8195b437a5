package config

import (
	"fmt"
	"os"
)

type keySpec struct {
	key     string
	env     string
	apply   func(cfg *Config, v string)
	extract func(cfg Config) string
}

var specs = []keySpec{
	{
		key: "portal.login_url", env: "FREEDOMTRACK_PORTAL_LOGIN_URL",
		apply:   func(cfg *Config, v string) { cfg.Portal.LoginURL = v },
		extract: func(cfg Config) string { return cfg.Portal.LoginURL },
	},
	{
		key: "portal.dashboard_url", env: "FREEDOMTRACK_PORTAL_DASHBOARD_URL",
		apply:   func(cfg *Config, v string) { cfg.Portal.DashboardURL = v },
		extract: func(cfg Config) string { return cfg.Portal.DashboardURL },
	},
	{
		key: "portal.page_timeout", env: "FREEDOMTRACK_PORTAL_PAGE_TIMEOUT",
		apply:   func(cfg *Config, v string) { cfg.Portal.PageTimeout = v },
		extract: func(cfg Config) string { return cfg.Portal.PageTimeout },
	},
	{
		key: "storage.data_dir", env: "FREEDOMTRACK_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v string) { cfg.Storage.DataDir = v },
		extract: func(cfg Config) string { return cfg.Storage.DataDir },
	},
	{
		key: "diagnostics.dir", env: "FREEDOMTRACK_DIAGNOSTICS_DIR",
		apply:   func(cfg *Config, v string) { cfg.Diagnostics.Dir = v },
		extract: func(cfg Config) string { return cfg.Diagnostics.Dir },
	},
	{
		key: "log.level", env: "FREEDOMTRACK_LOG_LEVEL",
		apply:   func(cfg *Config, v string) { cfg.Log.Level = v },
		extract: func(cfg Config) string { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b Backend) error {
	for _, s := range specs {
		v, ok, err := b.Get(s.key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if ok && v != "" {
			s.apply(cfg, v)
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if raw := os.Getenv(s.env); raw != "" {
			s.apply(cfg, raw)
		}
	}
}
