package relay

// Config holds the relay server settings.
type Config struct {
	// ListenAddr is the address the HTTP server binds to, e.g. ":8090".
	ListenAddr string
	// BotID identifies the upstream bot every chat request is routed to.
	// Requests fail with a configuration error when unset.
	BotID string
	// UserID is the fixed user identity attached to upstream requests.
	UserID string
	// AutoSaveHistory asks the upstream to retain the conversation on
	// its side as well.
	AutoSaveHistory bool
}
