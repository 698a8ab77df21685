// Package cozerelaycmder
package cozerelaycmder

import (
	"github.com/spf13/cobra"

	askcmder "github.com/bytewidget/cozerelay/cmd/cozerelay/ask"
	configcmder "github.com/bytewidget/cozerelay/cmd/cozerelay/config"
	servecmder "github.com/bytewidget/cozerelay/cmd/cozerelay/serve"
	versioncmder "github.com/bytewidget/cozerelay/cmd/version"
)

const cozerelayLongDesc string = `Cozerelay keeps chat-bot credentials off the browser.

It signs service assertions, exchanges them for short-lived access tokens,
and relays streaming chat turns to embedded widgets as NDJSON.

Run services and clients using:
  cozerelay serve      Run the relay server
  cozerelay ask        Ask a question through a running relay`

const cozerelayShortDesc string = "Cozerelay - Chat widget relay"

func NewCozerelayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cozerelay",
		Short: cozerelayShortDesc,
		Long:  cozerelayLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Directory containing config.toml (default: ./.cozerelay or ~/.cozerelay)")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(askcmder.NewAskCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
