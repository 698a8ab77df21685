// Package relay provides the HTTP server that bridges a browser chat widget
// to the upstream chat-bot API. It keeps the service credentials and bot
// identity server-side, authenticates with a cached access token and
// re-frames the upstream SSE stream as NDJSON for the browser.
package relay

import (
	"log/slog"
	"net"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/bytewidget/cozerelay/pkg/auth"
	"github.com/bytewidget/cozerelay/pkg/coze"
	"github.com/bytewidget/cozerelay/pkg/history"
)

// Relay is the chat relay server.
type Relay struct {
	config  Config
	chat    *coze.Client
	issuer  auth.TokenSource
	tokens  auth.TokenSource
	records history.Driver
	logger  *slog.Logger
	server  *fiber.App
}

// New creates a new Relay.
//
// issuer mints fresh access tokens; chat requests go through an internal
// cache wrapped around it so one token serves many turns. A nil issuer
// means credentials are not configured and the auth-dependent routes
// report a configuration error. records is optional; nil disables the
// history routes and the save-on-ask side effect.
func New(config Config, chat *coze.Client, issuer auth.TokenSource, records history.Driver, logger *slog.Logger) *Relay {
	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
		// Enable streaming
		StreamRequestBody: true,
	})

	// The widget is embedded on arbitrary pages.
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "POST, OPTIONS",
		AllowHeaders: "Content-Type",
	}))

	r := &Relay{
		config:  config,
		chat:    chat,
		issuer:  issuer,
		records: records,
		logger:  logger,
		server:  app,
	}
	if issuer != nil {
		r.tokens = auth.NewCache(issuer)
	}

	app.Post("/api/chat", r.handleChat)
	app.Get("/api/token", r.handleToken)
	app.Get("/api/history", r.handleHistoryList)
	app.Post("/api/history/answer", r.handleHistoryAnswer)
	app.Post("/__log", r.handleClientLog)

	return r
}

// Run starts the relay server on the configured address.
func (r *Relay) Run() error {
	r.logger.Info("starting relay server",
		"listen", r.config.ListenAddr,
		"bot_id", r.config.BotID,
	)

	return r.server.Listen(r.config.ListenAddr)
}

// RunWithListener starts the relay server using the provided listener.
func (r *Relay) RunWithListener(listener net.Listener) error {
	r.logger.Info("starting relay server",
		"listen", listener.Addr().String(),
		"bot_id", r.config.BotID,
	)

	return r.server.Listener(listener)
}

// Close gracefully shuts down the relay server. The history driver is owned
// by the caller and is not closed here.
func (r *Relay) Close() error {
	return r.server.Shutdown()
}
