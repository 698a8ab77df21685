package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --target
// on both "cozerelay ask" and future client commands).
type Flag struct {
	// Name is the long flag name (e.g. "listen").
	Name string

	// Shorthand is the one-letter short flag (e.g. "l"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "server.listen").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddIntFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagListen          = "listen"
	FlagUpstreamBaseURL = "upstream-base-url"
	FlagBotID           = "bot-id"
	FlagUserID          = "user-id"
	FlagHistoryProvider = "history-provider"
	FlagSQLitePath      = "sqlite-path"
	FlagPostgresDSN     = "postgres-dsn"
	FlagDevlogProvider  = "devlog-provider"
	FlagDevlogTarget    = "devlog-target"
	FlagKafkaBrokers    = "kafka-brokers"
	FlagKafkaTopic      = "kafka-topic"
	FlagTarget          = "target"
)

// Flags is the shared registry used by the cozerelay commands.
var Flags = FlagSet{
	FlagListen: {
		Name: "listen", Shorthand: "l", ViperKey: "server.listen",
		Description: "Address for the relay server to listen on",
	},
	FlagUpstreamBaseURL: {
		Name: "upstream-base-url", ViperKey: "upstream.base_url",
		Description: "Upstream chat API base URL",
	},
	FlagBotID: {
		Name: "bot-id", Shorthand: "b", ViperKey: "upstream.bot_id",
		Description: "Bot id chat requests are routed to",
	},
	FlagUserID: {
		Name: "user-id", ViperKey: "upstream.user_id",
		Description: "User identity attached to upstream requests",
	},
	FlagHistoryProvider: {
		Name: "history-provider", ViperKey: "history.provider",
		Description: "History store backend (sqlite, postgres, inmemory, none)",
	},
	FlagSQLitePath: {
		Name: "sqlite-path", Shorthand: "s", ViperKey: "history.sqlite_path",
		Description: "Path to the history SQLite database",
	},
	FlagPostgresDSN: {
		Name: "postgres-dsn", ViperKey: "history.postgres_dsn",
		Description: "PostgreSQL connection string for the history store",
	},
	FlagDevlogProvider: {
		Name: "devlog-provider", ViperKey: "devlog.provider",
		Description: "Answer telemetry backend (nop, http, kafka)",
	},
	FlagDevlogTarget: {
		Name: "devlog-target", ViperKey: "devlog.target",
		Description: "HTTP target for answer telemetry",
	},
	FlagKafkaBrokers: {
		Name: "kafka-brokers", ViperKey: "devlog.kafka_brokers",
		Description: "Comma-separated Kafka broker addresses for answer telemetry",
	},
	FlagKafkaTopic: {
		Name: "kafka-topic", ViperKey: "devlog.kafka_topic",
		Description: "Kafka topic for answer telemetry",
	},
	FlagTarget: {
		Name: "target", Shorthand: "t", ViperKey: "client.target",
		Description: "Base URL of the relay to connect to",
	},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddIntFlag registers an int flag on cmd from the given FlagSet.
func AddIntFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *int) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultInt(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().IntVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().IntVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultInt returns the default int value for a viper key from NewDefaultConfig.
func defaultInt(viperKey string) int {
	v := viper.New()
	setViperDefaults(v)
	return v.GetInt(viperKey)
}
