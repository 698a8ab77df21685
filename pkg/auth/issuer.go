package auth

import (
	"bytes"
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// tokenPath is the upstream endpoint exchanging assertions for tokens.
const tokenPath = "/api/permission/oauth2/token"

// grantType identifies the JWT-bearer OAuth grant on the wire.
const grantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"

// assertionLifetime bounds how long a signed assertion stays presentable.
// Assertions are minted per exchange, so this only needs to cover clock skew
// plus one round trip.
const assertionLifetime = 15 * time.Minute

// AccessToken is a granted upstream token with its computed expiry.
type AccessToken struct {
	Value     string
	TokenType string
	// ExpiresIn is the raw upstream expiry field, preserved for callers
	// that relay the grant verbatim.
	ExpiresIn int64
	// ExpiresAt is the resolved absolute expiry.
	ExpiresAt time.Time
}

// Issuer performs the signed-assertion exchange. Each Token call is one
// upstream POST; callers wanting reuse wrap the Issuer in a Cache.
type Issuer struct {
	cfg        Config
	key        *rsa.PrivateKey
	httpClient *http.Client
	now        func() time.Time
}

// NewIssuer validates cfg and parses the signing key. Configuration problems
// surface here, before any network I/O is attempted.
func NewIssuer(cfg Config, httpClient *http.Client) (*Issuer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(NormalizePrivateKey(cfg.PrivateKeyPEM)))
	if err != nil {
		return nil, fmt.Errorf("%w: unparseable private key: %v", ErrNotConfigured, err)
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Issuer{
		cfg:        cfg,
		key:        key,
		httpClient: httpClient,
		now:        time.Now,
	}, nil
}

// Token mints a fresh assertion, posts it to the token endpoint and returns
// the granted access token.
func (i *Issuer) Token(ctx context.Context) (*AccessToken, error) {
	assertion, err := i.signAssertion()
	if err != nil {
		return nil, fmt.Errorf("failed to sign assertion: %w", err)
	}

	body := map[string]any{
		"grant_type": grantType,
	}
	if i.cfg.DurationSeconds > 0 {
		body["duration_seconds"] = i.cfg.DurationSeconds
	}
	if len(i.cfg.Scope) > 0 {
		body["scope"] = i.cfg.Scope
	}
	if i.cfg.AccountID != "" {
		body["account_id"] = i.cfg.AccountID
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal token request: %w", err)
	}

	base := strings.TrimRight(i.cfg.BaseURL, "/")
	if base == "" {
		base = "https://" + defaultAudience
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+tokenPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+assertion)

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var granted struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
		TokenType   string `json:"token_type"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&granted); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if granted.AccessToken == "" {
		return nil, fmt.Errorf("token endpoint returned an empty access token")
	}

	return &AccessToken{
		Value:     granted.AccessToken,
		TokenType: granted.TokenType,
		ExpiresIn: granted.ExpiresIn,
		ExpiresAt: resolveExpiry(granted.ExpiresIn, i.now()),
	}, nil
}

// signAssertion builds and signs the RS256 assertion identifying this
// application to the token endpoint.
func (i *Issuer) signAssertion() (string, error) {
	now := i.now()

	claims := jwt.MapClaims{
		"iss": i.cfg.AppID,
		"aud": i.cfg.audience(),
		"iat": now.Unix(),
		"exp": now.Add(assertionLifetime).Unix(),
		"jti": uuid.NewString(),
	}
	if i.cfg.SessionName != "" {
		claims["session_name"] = i.cfg.SessionName
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = i.cfg.KeyID

	return tok.SignedString(i.key)
}

// resolveExpiry interprets the upstream expiry field. The endpoint reports
// an absolute unix timestamp in practice, but the OAuth field name promises
// a relative lifetime; values too large to be a sane lifetime are treated as
// absolute.
func resolveExpiry(expiresIn int64, now time.Time) time.Time {
	const absoluteThreshold = 1_000_000_000

	if expiresIn >= absoluteThreshold {
		return time.Unix(expiresIn, 0)
	}
	return now.Add(time.Duration(expiresIn) * time.Second)
}
