package config

// Backend abstracts platform-specific config storage. macOS uses UserDefaults
// (via the `defaults` CLI), other platforms a JSON config file.
type Backend interface {
	Get(key string) (val string, ok bool, err error)
	Set(key, val string) error
	Delete(key string) error
}
