package relay

// ErrorResponse is the JSON body returned for failures that happen before
// any of the response has been written. Once streaming has begun the
// connection is closed instead; there is no way to retrofit an error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

const (
	errQuestionRequired     = "question is required"
	errBotNotConfigured     = "bot id is not configured"
	errAuthNotConfigured    = "credentials are not configured"
	errHistoryNotConfigured = "history is not configured"
	errUpstreamAuth         = "failed to authenticate with upstream"
	errUpstreamRequest      = "upstream request failed"
)
