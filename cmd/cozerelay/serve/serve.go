// Package servecmder provides the serve command for running the relay server.
package servecmder

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bytewidget/cozerelay/pkg/auth"
	"github.com/bytewidget/cozerelay/pkg/config"
	"github.com/bytewidget/cozerelay/pkg/coze"
	"github.com/bytewidget/cozerelay/pkg/credentials"
	"github.com/bytewidget/cozerelay/pkg/dotdir"
	"github.com/bytewidget/cozerelay/pkg/history"
	"github.com/bytewidget/cozerelay/pkg/history/inmemory"
	"github.com/bytewidget/cozerelay/pkg/history/postgres"
	"github.com/bytewidget/cozerelay/pkg/history/sqlite"
	"github.com/bytewidget/cozerelay/pkg/logger"
	"github.com/bytewidget/cozerelay/relay"
)

type ServeCommander struct {
	listen          string
	baseURL         string
	botID           string
	userID          string
	historyProvider string
	sqlitePath      string
	postgresDSN     string
	debug           bool
	configDir       string

	viper  *viper.Viper
	level  *slog.LevelVar
	logger *slog.Logger
}

const serveLongDesc string = `Run the cozerelay server.

The server exchanges its signed assertion for upstream access tokens,
relays chat turns to browser widgets as NDJSON, and records asked
questions in the history store.

Credentials come from config.toml, the credentials.toml default profile,
or the COZE_JWT_* environment variables. Without credentials the server
still starts, but chat and token routes report a configuration error.

Examples:
  cozerelay serve
  cozerelay serve --listen :9000 --bot-id 73428668
  COZE_JWT_APP_ID=... COZE_JWT_KEY_ID=... COZE_JWT_PRIVATE_KEY=... cozerelay serve`

const serveShortDesc string = "Run the cozerelay server"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagListen, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagUpstreamBaseURL, &cmder.baseURL)
	config.AddStringFlag(cmd, config.Flags, config.FlagBotID, &cmder.botID)
	config.AddStringFlag(cmd, config.Flags, config.FlagUserID, &cmder.userID)
	config.AddStringFlag(cmd, config.Flags, config.FlagHistoryProvider, &cmder.historyProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLitePath, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgresDSN, &cmder.postgresDSN)

	return cmd
}

// setup wires the viper precedence chain (flags > env > file > defaults)
// and reads the effective values back into the commander.
func (c *ServeCommander) setup(cmd *cobra.Command) error {
	c.configDir, _ = cmd.Flags().GetString("config-dir")

	v, err := config.InitViper(c.configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	config.BindRegisteredFlags(v, cmd, config.Flags, []string{
		config.FlagListen,
		config.FlagUpstreamBaseURL,
		config.FlagBotID,
		config.FlagUserID,
		config.FlagHistoryProvider,
		config.FlagSQLitePath,
		config.FlagPostgresDSN,
	})

	c.viper = v
	c.listen = v.GetString("server.listen")
	c.baseURL = v.GetString("upstream.base_url")
	c.botID = v.GetString("upstream.bot_id")
	c.userID = v.GetString("upstream.user_id")
	c.historyProvider = v.GetString("history.provider")
	c.sqlitePath = v.GetString("history.sqlite_path")
	c.postgresDSN = v.GetString("history.postgres_dsn")

	return nil
}

func (c *ServeCommander) run() error {
	c.level = &slog.LevelVar{}
	c.level.Set(parseLevel(c.viper.GetString("server.log_level"), c.debug))
	c.logger = logger.New(
		logger.WithJSON(true),
		logger.WithLeveler(c.level),
	)

	issuer := c.createIssuer()

	records, err := c.createHistoryDriver()
	if err != nil {
		return err
	}
	if records != nil {
		defer records.Close()
	}

	r := relay.New(
		relay.Config{
			ListenAddr:      c.listen,
			BotID:           c.botID,
			UserID:          c.userID,
			AutoSaveHistory: true,
		},
		coze.NewClient(c.baseURL, nil),
		issuer,
		records,
		c.logger,
	)
	defer r.Close()

	c.watchConfig()

	errChan := make(chan error, 1)
	go func() {
		if err := r.Run(); err != nil {
			errChan <- fmt.Errorf("relay error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
		return nil
	}
}

// createIssuer assembles the credential config from viper, falling back to
// the credentials.toml default profile for anything still missing. A nil
// return means the server runs without upstream credentials.
func (c *ServeCommander) createIssuer() auth.TokenSource {
	v := c.viper

	cfg := auth.Config{
		AppID:           v.GetString("auth.app_id"),
		KeyID:           v.GetString("auth.key_id"),
		PrivateKeyPEM:   auth.NormalizePrivateKey(v.GetString("auth.private_key")),
		BaseURL:         c.baseURL,
		Audience:        v.GetString("auth.audience"),
		DurationSeconds: v.GetInt("auth.duration_seconds"),
		SessionName:     v.GetString("auth.session_name"),
		AccountID:       v.GetString("auth.account_id"),
	}
	if scope := v.GetString("auth.scope"); scope != "" {
		cfg.Scope = json.RawMessage(scope)
	}

	if cfg.PrivateKeyPEM == "" {
		if path := v.GetString("auth.private_key_path"); path != "" {
			pem, err := os.ReadFile(path)
			if err != nil {
				c.logger.Warn("could not read private key file", "path", path, "error", err)
			} else {
				cfg.PrivateKeyPEM = auth.NormalizePrivateKey(string(pem))
			}
		}
	}

	c.fillFromCredentials(&cfg)

	if err := cfg.Validate(); err != nil {
		c.logger.Warn("running without upstream credentials", "error", err)
		return nil
	}

	issuer, err := auth.NewIssuer(cfg, nil)
	if err != nil {
		c.logger.Warn("running without upstream credentials", "error", err)
		return nil
	}
	return issuer
}

// fillFromCredentials completes missing identity fields from the
// credentials.toml default profile.
func (c *ServeCommander) fillFromCredentials(cfg *auth.Config) {
	if cfg.AppID != "" && cfg.KeyID != "" && cfg.PrivateKeyPEM != "" {
		return
	}

	mgr, err := credentials.NewManager(c.configDir)
	if err != nil {
		return
	}

	cred, ok, err := mgr.GetProfile(credentials.DefaultProfile)
	if err != nil || !ok {
		return
	}

	if cfg.AppID == "" {
		cfg.AppID = cred.AppID
	}
	if cfg.KeyID == "" {
		cfg.KeyID = cred.KeyID
	}
	if cfg.PrivateKeyPEM == "" {
		if pem, err := mgr.ReadPrivateKey(credentials.DefaultProfile); err == nil {
			cfg.PrivateKeyPEM = auth.NormalizePrivateKey(pem)
		}
	}
}

func (c *ServeCommander) createHistoryDriver() (history.Driver, error) {
	ctx := context.Background()

	switch c.historyProvider {
	case "sqlite":
		path, err := c.resolveSQLitePath()
		if err != nil {
			return nil, err
		}
		driver, err := sqlite.NewDriver(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("creating sqlite history store: %w", err)
		}
		c.logger.Info("using sqlite history store", "path", path)
		return driver, nil

	case "postgres":
		driver, err := postgres.NewDriver(ctx, c.postgresDSN)
		if err != nil {
			return nil, fmt.Errorf("creating postgres history store: %w", err)
		}
		c.logger.Info("using postgres history store")
		return driver, nil

	case "inmemory":
		c.logger.Info("using in-memory history store")
		return inmemory.NewDriver(), nil

	case "none", "":
		c.logger.Info("history store disabled")
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown history provider %q", c.historyProvider)
	}
}

// resolveSQLitePath anchors a relative sqlite path in the .cozerelay/
// directory so the database lands next to config.toml rather than wherever
// the server happened to start.
func (c *ServeCommander) resolveSQLitePath() (string, error) {
	if filepath.IsAbs(c.sqlitePath) {
		return c.sqlitePath, nil
	}

	target, err := dotdir.NewManager().Target(c.configDir)
	if err != nil {
		return "", fmt.Errorf("resolving sqlite path: %w", err)
	}
	if target == "" {
		return c.sqlitePath, nil
	}
	return filepath.Join(target, c.sqlitePath), nil
}

// watchConfig applies log-level changes from config.toml without a restart.
// Everything else requires one; re-binding addresses live is not worth it.
func (c *ServeCommander) watchConfig() {
	c.viper.OnConfigChange(func(_ fsnotify.Event) {
		level := parseLevel(c.viper.GetString("server.log_level"), c.debug)
		if level != c.level.Level() {
			c.logger.Info("log level changed", "level", level.String())
			c.level.Set(level)
		}
	})
	c.viper.WatchConfig()
}

// parseLevel maps a config level name onto slog. The --debug flag floors the
// level at Debug regardless of config.
func parseLevel(name string, debug bool) slog.Level {
	if debug {
		return slog.LevelDebug
	}

	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
