//go:build !darwin

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "freedomtrack")
}

func defaultConfigPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "freedomtrack", "config.json")
}

// fileBackend stores config as a flat key/value JSON object.
type fileBackend struct {
	path string
}

func newPlatformBackend() Backend {
	return &fileBackend{path: defaultConfigPath()}
}

func (b *fileBackend) read() (map[string]string, error) {
	data, err := os.ReadFile(b.path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	var kv map[string]string
	if err := json.Unmarshal(data, &kv); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if kv == nil {
		kv = map[string]string{}
	}
	return kv, nil
}

func (b *fileBackend) writeAll(kv map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	out, err := json.MarshalIndent(kv, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(b.path, out, 0o644)
}

func (b *fileBackend) Get(key string) (string, bool, error) {
	kv, err := b.read()
	if err != nil {
		return "", false, err
	}
	v, ok := kv[key]
	return v, ok, nil
}

func (b *fileBackend) Set(key, val string) error {
	kv, err := b.read()
	if err != nil {
		return err
	}
	kv[key] = val
	return b.writeAll(kv)
}

func (b *fileBackend) Delete(key string) error {
	kv, err := b.read()
	if err != nil {
		return err
	}
	delete(kv, key)
	return b.writeAll(kv)
}
