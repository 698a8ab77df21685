package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/bytewidget/cozerelay/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the COZERELAY_ prefix plus the COZE_* credential aliases.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (COZERELAY_SERVER_LISTEN, COZE_JWT_APP_ID, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: COZERELAY_SERVER_LISTEN,
	// COZERELAY_UPSTREAM_BOT_ID, etc.
	v.SetEnvPrefix("COZERELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindCredentialAliases(v)

	return v, nil
}

// bindCredentialAliases binds the well-known COZE_* environment variable
// names onto their config keys, so deployments configured for the widget's
// original serverless hosting carry over without renaming anything. The
// prefixed COZERELAY_* name is bound first and wins when both are set.
func bindCredentialAliases(v *viper.Viper) {
	aliases := map[string][]string{
		"auth.app_id":           {"COZE_JWT_APP_ID"},
		"auth.key_id":           {"COZE_JWT_KEY_ID"},
		"auth.private_key":      {"COZE_JWT_PRIVATE_KEY"},
		"auth.audience":         {"COZE_JWT_AUD"},
		"auth.duration_seconds": {"COZE_JWT_DURATION"},
		"auth.scope":            {"COZE_JWT_SCOPE"},
		"auth.session_name":     {"COZE_JWT_SESSION_NAME"},
		"auth.account_id":       {"COZE_JWT_ACCOUNT_ID"},
		"upstream.base_url":     {"COZE_API_BASE_URL", "COZE_JWT_BASE_URL"},
		"upstream.bot_id":       {"COZE_BOT_ID"},
		"upstream.user_id":      {"COZE_USER_ID"},
	}

	for key, names := range aliases {
		prefixed := "COZERELAY_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(append([]string{key, prefixed}, names...)...)
	}
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Server
	v.SetDefault("server.listen", d.Server.Listen)
	v.SetDefault("server.log_level", d.Server.LogLevel)

	// Upstream
	v.SetDefault("upstream.base_url", d.Upstream.BaseURL)
	v.SetDefault("upstream.bot_id", d.Upstream.BotID)
	v.SetDefault("upstream.user_id", d.Upstream.UserID)

	// Auth
	v.SetDefault("auth.app_id", d.Auth.AppID)
	v.SetDefault("auth.key_id", d.Auth.KeyID)
	v.SetDefault("auth.private_key", d.Auth.PrivateKey)
	v.SetDefault("auth.private_key_path", d.Auth.PrivateKeyPath)
	v.SetDefault("auth.audience", d.Auth.Audience)
	v.SetDefault("auth.duration_seconds", d.Auth.DurationSeconds)
	v.SetDefault("auth.scope", d.Auth.Scope)
	v.SetDefault("auth.session_name", d.Auth.SessionName)
	v.SetDefault("auth.account_id", d.Auth.AccountID)

	// History
	v.SetDefault("history.provider", d.History.Provider)
	v.SetDefault("history.sqlite_path", d.History.SQLitePath)
	v.SetDefault("history.postgres_dsn", d.History.PostgresDSN)

	// Devlog
	v.SetDefault("devlog.provider", d.Devlog.Provider)
	v.SetDefault("devlog.target", d.Devlog.Target)
	v.SetDefault("devlog.kafka_brokers", d.Devlog.KafkaBrokers)
	v.SetDefault("devlog.kafka_topic", d.Devlog.KafkaTopic)

	// Client
	v.SetDefault("client.target", d.Client.Target)
}
