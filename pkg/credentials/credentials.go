// Package credentials manages credentials.toml in the .cozerelay/ directory:
// the app identity and signing key location used for the signed-assertion
// token exchange.
package credentials

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/bytewidget/cozerelay/pkg/dotdir"
)

const (
	credentialsFile = "credentials.toml"

	currentVersion = 0

	// DefaultProfile is the profile used when none is named.
	DefaultProfile = "default"
)

// Manager manages reading and writing credentials.toml in the .cozerelay/
// directory.
type Manager struct {
	ddm        *dotdir.Manager
	targetPath string
}

// NewManager creates a new credentials Manager. If override is non-empty it
// is used as the .cozerelay/ directory; otherwise the standard dotdir
// resolution applies. When no .cozerelay/ directory is found, one is created
// at ~/.cozerelay/.
func NewManager(override string) (*Manager, error) {
	mgr := &Manager{}
	mgr.ddm = dotdir.NewManager()

	target, err := mgr.ddm.Target(override)
	if err != nil {
		return nil, err
	}

	if target == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home dir: %w", err)
		}
		target = filepath.Join(home, ".cozerelay")
		if err := os.MkdirAll(target, 0o755); err != nil {
			return nil, fmt.Errorf("creating cozerelay dir: %w", err)
		}
	}

	mgr.targetPath = filepath.Join(target, credentialsFile)

	return mgr, nil
}

// Load reads credentials.toml from the target directory.
// Returns an empty Credentials if the file does not exist.
func (m *Manager) Load() (*Credentials, error) {
	data, err := os.ReadFile(m.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Credentials{
				Version:  currentVersion,
				Profiles: make(map[string]AppCredential),
			}, nil
		}
		return nil, fmt.Errorf("reading credentials: %w", err)
	}

	creds := &Credentials{}
	if err := toml.Unmarshal(data, creds); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}

	if creds.Profiles == nil {
		creds.Profiles = make(map[string]AppCredential)
	}

	return creds, nil
}

// Save writes credentials to credentials.toml with 0600 permissions.
func (m *Manager) Save(creds *Credentials) error {
	if creds == nil {
		return errors.New("cannot save nil credentials")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(creds); err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}

	if err := os.WriteFile(m.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}

	return nil
}

// SetProfile stores the app credential for the given profile.
func (m *Manager) SetProfile(profile string, cred AppCredential) error {
	creds, err := m.Load()
	if err != nil {
		return err
	}

	creds.Profiles[profile] = cred

	return m.Save(creds)
}

// GetProfile returns the stored app credential for the given profile.
// The second return value reports whether the profile exists.
func (m *Manager) GetProfile(profile string) (AppCredential, bool, error) {
	creds, err := m.Load()
	if err != nil {
		return AppCredential{}, false, err
	}

	cred, ok := creds.Profiles[profile]
	return cred, ok, nil
}

// RemoveProfile deletes the stored credential for a profile.
func (m *Manager) RemoveProfile(profile string) error {
	creds, err := m.Load()
	if err != nil {
		return err
	}

	delete(creds.Profiles, profile)

	return m.Save(creds)
}

// ListProfiles returns the names of profiles that have stored credentials.
func (m *Manager) ListProfiles() ([]string, error) {
	creds, err := m.Load()
	if err != nil {
		return nil, err
	}

	profiles := make([]string, 0, len(creds.Profiles))
	for name := range creds.Profiles {
		profiles = append(profiles, name)
	}

	sort.Strings(profiles)

	return profiles, nil
}

// ReadPrivateKey loads the PEM material referenced by a profile's
// private_key_path.
func (m *Manager) ReadPrivateKey(profile string) (string, error) {
	cred, ok, err := m.GetProfile(profile)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("no credentials stored for profile %q", profile)
	}
	if cred.PrivateKeyPath == "" {
		return "", fmt.Errorf("profile %q has no private key path", profile)
	}

	data, err := os.ReadFile(cred.PrivateKeyPath)
	if err != nil {
		return "", fmt.Errorf("reading private key: %w", err)
	}

	return string(data), nil
}

// GetTarget returns the resolved path to the credentials file.
func (m *Manager) GetTarget() string {
	return m.targetPath
}
