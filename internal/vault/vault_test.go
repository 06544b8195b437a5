package vault

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestVault(t *testing.T) Vault {
	t.Helper()
	return NewFile(filepath.Join(t.TempDir(), "secrets.json"))
}

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"6471234567", "6471234567"},
		{"(647) 123-4567", "6471234567"},
		{" 647 123 4567 ", "6471234567"},
	}
	for _, c := range cases {
		if got := NormalizePhone(c.in); got != c.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name  string
		creds Credentials
		ok    bool
	}{
		{"valid", Credentials{Phone: "6471234567", PIN: "1234"}, true},
		{"short phone", Credentials{Phone: "647123", PIN: "1234"}, false},
		{"letters in phone", Credentials{Phone: "64712345ab", PIN: "1234"}, false},
		{"short pin", Credentials{Phone: "6471234567", PIN: "12"}, false},
		{"long pin", Credentials{Phone: "6471234567", PIN: "12345"}, false},
		{"empty", Credentials{}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.creds.Validate()
			if c.ok && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
			if !c.ok && err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestSuffix(t *testing.T) {
	c := Credentials{Phone: "6471234567"}
	if got := c.Suffix(2); got != "67" {
		t.Errorf("Suffix(2) = %q, want %q", got, "67")
	}
	if got := c.Suffix(20); got != "6471234567" {
		t.Errorf("Suffix(20) = %q, want full number", got)
	}
}

// TestFileVaultRoundTrip saves credentials and reads them back through a
// fresh vault instance.
func TestFileVaultRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.json")

	creds := Credentials{Phone: "6471234567", PIN: "1234"}
	if err := SaveCredentials(NewFile(path), creds); err != nil {
		t.Fatalf("SaveCredentials: %v", err)
	}

	got, err := LoadCredentials(NewFile(path))
	if err != nil {
		t.Fatalf("LoadCredentials: %v", err)
	}
	if got != creds {
		t.Errorf("loaded %+v, want %+v", got, creds)
	}
}

func TestFileVaultSecretFileMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.json")
	if err := NewFile(path).Set("phone", "6471234567"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if mode := info.Mode().Perm(); mode != 0o600 {
		t.Errorf("secrets file mode = %o, want 600", mode)
	}
}

func TestGetMissing(t *testing.T) {
	v := newTestVault(t)
	if _, err := v.Get("phone"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get on empty vault = %v, want ErrNotFound", err)
	}
}

func TestSetOverwrites(t *testing.T) {
	v := newTestVault(t)
	if err := v.Set("pin", "1111"); err != nil {
		t.Fatal(err)
	}
	if err := v.Set("pin", "2222"); err != nil {
		t.Fatal(err)
	}
	got, err := v.Get("pin")
	if err != nil {
		t.Fatal(err)
	}
	if got != "2222" {
		t.Errorf("Get after overwrite = %q, want %q", got, "2222")
	}
}

func TestSaveCredentialsRejectsInvalid(t *testing.T) {
	v := newTestVault(t)
	err := SaveCredentials(v, Credentials{Phone: "123", PIN: "1234"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if _, err := v.Get("phone"); !errors.Is(err, ErrNotFound) {
		t.Error("invalid credentials should not be partially stored")
	}
}
