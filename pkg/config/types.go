package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent cozerelay configuration stored as
// config.toml in the .cozerelay/ directory. The TOML layout uses sections
// for logical grouping.
type Config struct {
	Version  int            `toml:"version"`
	Server   ServerConfig   `toml:"server"`
	Upstream UpstreamConfig `toml:"upstream"`
	Auth     AuthConfig     `toml:"auth"`
	History  HistoryConfig  `toml:"history"`
	Devlog   DevlogConfig   `toml:"devlog"`
	Client   ClientConfig   `toml:"client"`
}

// ServerConfig holds relay server settings. LogLevel is re-read on config
// file changes while the server runs.
type ServerConfig struct {
	Listen   string `toml:"listen,omitempty"`
	LogLevel string `toml:"log_level,omitempty"`
}

// UpstreamConfig holds the upstream chat API settings. BotID and UserID are
// the server-resolved identity attached to every chat call.
type UpstreamConfig struct {
	BaseURL string `toml:"base_url,omitempty"`
	BotID   string `toml:"bot_id,omitempty"`
	UserID  string `toml:"user_id,omitempty"`
}

// AuthConfig holds the signed-assertion credential settings. PrivateKey
// carries PEM material directly (escaped newlines accepted); PrivateKeyPath
// points at a PEM file and wins when both are set.
type AuthConfig struct {
	AppID           string `toml:"app_id,omitempty"`
	KeyID           string `toml:"key_id,omitempty"`
	PrivateKey      string `toml:"private_key,omitempty"`
	PrivateKeyPath  string `toml:"private_key_path,omitempty"`
	Audience        string `toml:"audience,omitempty"`
	DurationSeconds int    `toml:"duration_seconds,omitempty"`
	Scope           string `toml:"scope,omitempty"`
	SessionName     string `toml:"session_name,omitempty"`
	AccountID       string `toml:"account_id,omitempty"`
}

// HistoryConfig holds history store settings.
type HistoryConfig struct {
	Provider    string `toml:"provider,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// DevlogConfig holds the dev answer-telemetry settings.
type DevlogConfig struct {
	Provider     string `toml:"provider,omitempty"`
	Target       string `toml:"target,omitempty"`
	KafkaBrokers string `toml:"kafka_brokers,omitempty"`
	KafkaTopic   string `toml:"kafka_topic,omitempty"`
}

// ClientConfig holds settings for CLI commands that connect to a running
// relay (e.g. cozerelay ask). Target is a full URL (scheme + host + port).
type ClientConfig struct {
	Target string `toml:"target,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"server.listen": {
		get: func(c *Config) string { return c.Server.Listen },
		set: func(c *Config, v string) error { c.Server.Listen = v; return nil },
	},
	"server.log_level": {
		get: func(c *Config) string { return c.Server.LogLevel },
		set: func(c *Config, v string) error { c.Server.LogLevel = v; return nil },
	},
	"upstream.base_url": {
		get: func(c *Config) string { return c.Upstream.BaseURL },
		set: func(c *Config, v string) error { c.Upstream.BaseURL = v; return nil },
	},
	"upstream.bot_id": {
		get: func(c *Config) string { return c.Upstream.BotID },
		set: func(c *Config, v string) error { c.Upstream.BotID = v; return nil },
	},
	"upstream.user_id": {
		get: func(c *Config) string { return c.Upstream.UserID },
		set: func(c *Config, v string) error { c.Upstream.UserID = v; return nil },
	},
	"auth.app_id": {
		get: func(c *Config) string { return c.Auth.AppID },
		set: func(c *Config, v string) error { c.Auth.AppID = v; return nil },
	},
	"auth.key_id": {
		get: func(c *Config) string { return c.Auth.KeyID },
		set: func(c *Config, v string) error { c.Auth.KeyID = v; return nil },
	},
	"auth.private_key_path": {
		get: func(c *Config) string { return c.Auth.PrivateKeyPath },
		set: func(c *Config, v string) error { c.Auth.PrivateKeyPath = v; return nil },
	},
	"auth.audience": {
		get: func(c *Config) string { return c.Auth.Audience },
		set: func(c *Config, v string) error { c.Auth.Audience = v; return nil },
	},
	"auth.duration_seconds": {
		get: func(c *Config) string {
			if c.Auth.DurationSeconds == 0 {
				return ""
			}
			return strconv.Itoa(c.Auth.DurationSeconds)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for auth.duration_seconds: %w", err)
			}
			c.Auth.DurationSeconds = n
			return nil
		},
	},
	"auth.session_name": {
		get: func(c *Config) string { return c.Auth.SessionName },
		set: func(c *Config, v string) error { c.Auth.SessionName = v; return nil },
	},
	"auth.account_id": {
		get: func(c *Config) string { return c.Auth.AccountID },
		set: func(c *Config, v string) error { c.Auth.AccountID = v; return nil },
	},
	"history.provider": {
		get: func(c *Config) string { return c.History.Provider },
		set: func(c *Config, v string) error { c.History.Provider = v; return nil },
	},
	"history.sqlite_path": {
		get: func(c *Config) string { return c.History.SQLitePath },
		set: func(c *Config, v string) error { c.History.SQLitePath = v; return nil },
	},
	"history.postgres_dsn": {
		get: func(c *Config) string { return c.History.PostgresDSN },
		set: func(c *Config, v string) error { c.History.PostgresDSN = v; return nil },
	},
	"devlog.provider": {
		get: func(c *Config) string { return c.Devlog.Provider },
		set: func(c *Config, v string) error { c.Devlog.Provider = v; return nil },
	},
	"devlog.target": {
		get: func(c *Config) string { return c.Devlog.Target },
		set: func(c *Config, v string) error { c.Devlog.Target = v; return nil },
	},
	"devlog.kafka_brokers": {
		get: func(c *Config) string { return c.Devlog.KafkaBrokers },
		set: func(c *Config, v string) error { c.Devlog.KafkaBrokers = v; return nil },
	},
	"devlog.kafka_topic": {
		get: func(c *Config) string { return c.Devlog.KafkaTopic },
		set: func(c *Config, v string) error { c.Devlog.KafkaTopic = v; return nil },
	},
	"client.target": {
		get: func(c *Config) string { return c.Client.Target },
		set: func(c *Config, v string) error { c.Client.Target = v; return nil },
	},
}
