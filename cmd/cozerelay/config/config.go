// Package configcmder provides the config command for managing persistent
// cozerelay configuration stored in the .cozerelay/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent cozerelay configuration.

Configuration is stored as config.toml in the .cozerelay/ directory and
provides default values for command flags. CLI flags and environment
variables always take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  server.listen, server.log_level,
  upstream.base_url, upstream.bot_id, upstream.user_id,
  auth.app_id, auth.key_id, auth.private_key_path, auth.audience,
  auth.duration_seconds, auth.session_name, auth.account_id,
  history.provider, history.sqlite_path, history.postgres_dsn,
  devlog.provider, devlog.target, devlog.kafka_brokers, devlog.kafka_topic,
  client.target

Use subcommands to get, set, or list configuration values:
  cozerelay config set <key> <value>    Set a configuration value
  cozerelay config get <key>            Get a configuration value
  cozerelay config list                 List all configuration values

Examples:
  cozerelay config set upstream.bot_id 73428668
  cozerelay config set history.provider postgres
  cozerelay config get auth.app_id
  cozerelay config list`

const configShortDesc string = "Manage persistent cozerelay configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
