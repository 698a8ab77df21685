package credentials

// Credentials represents the stored app credentials in credentials.toml.
// Profiles let one machine hold credentials for several bot deployments
// ("default", "staging", ...).
type Credentials struct {
	Version  int                      `toml:"version"`
	Profiles map[string]AppCredential `toml:"profiles"`
}

// AppCredential identifies one OAuth application. The private key itself is
// never stored in the TOML; only a path to a PEM file, so the secret stays a
// plain file with its own permissions.
type AppCredential struct {
	AppID          string `toml:"app_id"`
	KeyID          string `toml:"key_id"`
	PrivateKeyPath string `toml:"private_key_path"`
}
