// Package auth exchanges a signed assertion (a short-lived RS256 JWT proving
// control of an application's private key) for an upstream access token, and
// caches the result until shortly before expiry.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrNotConfigured marks a validation failure: a required credential field
// is absent or unusable. No network I/O happens once this is returned.
var ErrNotConfigured = errors.New("credential issuer is not configured")

// defaultAudience is used when neither an audience nor a parseable base URL
// is configured.
const defaultAudience = "api.coze.cn"

// Config carries everything needed to mint assertions and request tokens.
type Config struct {
	// AppID is the OAuth application id; becomes the assertion issuer.
	AppID string
	// KeyID is the public key fingerprint; becomes the assertion kid header.
	KeyID string
	// PrivateKeyPEM is the RS256 signing key, PEM-encoded. Escaped "\n"
	// sequences are accepted (keys are routinely pasted into single-line
	// env vars) and normalized before parsing.
	PrivateKeyPEM string

	// BaseURL is the API origin hosting the token endpoint. Empty means the
	// default upstream origin.
	BaseURL string
	// Audience is the assertion aud claim. Empty derives it from the host
	// of BaseURL.
	Audience string

	// DurationSeconds is the requested token lifetime. Zero means the
	// upstream default.
	DurationSeconds int
	// Scope optionally narrows the granted token, as a raw JSON document.
	Scope json.RawMessage
	// SessionName optionally isolates sessions sharing one application.
	SessionName string
	// AccountID optionally pins the grant to a specific account.
	AccountID string
}

// Validate reports whether the config can possibly issue a token. All
// failures wrap ErrNotConfigured.
func (c *Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.AppID) == "" {
		missing = append(missing, "app id")
	}
	if strings.TrimSpace(c.KeyID) == "" {
		missing = append(missing, "key id")
	}
	if strings.TrimSpace(c.PrivateKeyPEM) == "" {
		missing = append(missing, "private key")
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrNotConfigured, strings.Join(missing, ", "))
	}

	return nil
}

// audience resolves the assertion aud claim: explicit config, then the
// base URL's host, then the default upstream host.
func (c *Config) audience() string {
	if c.Audience != "" {
		return c.Audience
	}
	if c.BaseURL != "" {
		if u, err := url.Parse(c.BaseURL); err == nil && u.Host != "" {
			return u.Host
		}
	}
	return defaultAudience
}

// NormalizePrivateKey converts escaped "\n" sequences into real newlines and
// trims surrounding whitespace, so PEM material survives transport through
// single-line environment variables.
func NormalizePrivateKey(pem string) string {
	return strings.TrimSpace(strings.ReplaceAll(pem, `\n`, "\n"))
}
