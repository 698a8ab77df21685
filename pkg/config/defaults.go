package config

const (
	defaultServerListen   = ":8090"
	defaultServerLogLevel = "info"

	defaultUpstreamBaseURL = "https://api.coze.cn"
	defaultUserID          = "web-user"

	defaultHistoryProvider = "sqlite"
	defaultSQLitePath      = "history.db"

	defaultDevlogProvider = "nop"
	defaultKafkaTopic     = "cozerelay.answers"

	defaultClientTarget = "http://localhost:8090"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Server: ServerConfig{
			Listen:   defaultServerListen,
			LogLevel: defaultServerLogLevel,
		},
		Upstream: UpstreamConfig{
			BaseURL: defaultUpstreamBaseURL,
			UserID:  defaultUserID,
		},
		History: HistoryConfig{
			Provider:   defaultHistoryProvider,
			SQLitePath: defaultSQLitePath,
		},
		Devlog: DevlogConfig{
			Provider:   defaultDevlogProvider,
			KafkaTopic: defaultKafkaTopic,
		},
		Client: ClientConfig{
			Target: defaultClientTarget,
		},
	}
}
