package relay

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/bytewidget/cozerelay/pkg/coze"
	"github.com/bytewidget/cozerelay/pkg/history"
	"github.com/bytewidget/cozerelay/pkg/ndjson"
)

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Question string `json:"question"`
	// Options are caller-supplied upstream overrides. Identity keys
	// (bot_id, user_id) are always discarded in favor of the server's
	// configured values.
	Options map[string]any `json:"options"`
}

// AnswerUpdate is the body of POST /api/history/answer.
type AnswerUpdate struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// handleChat opens an upstream chat stream and relays it as NDJSON.
func (r *Relay) handleChat(c *fiber.Ctx) error {
	var req ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	question := strings.TrimSpace(req.Question)
	if question == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: errQuestionRequired})
	}
	if r.config.BotID == "" {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: errBotNotConfigured})
	}
	if r.tokens == nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: errAuthNotConfigured})
	}

	token, err := r.tokens.Token(c.Context())
	if err != nil {
		r.logger.Error("token resolution failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: errUpstreamAuth})
	}

	// Record the question before relaying, mirroring the widget's
	// save-on-ask. Best effort: a storage failure must not block the chat.
	if r.records != nil {
		if _, err := r.records.Insert(c.Context(), question, time.Now()); err != nil {
			r.logger.Warn("failed to record question", "error", err)
		}
	}

	// Use context.Background() instead of c.Context() because fasthttp
	// recycles its RequestCtx after the handler returns, but the stream pump
	// runs asynchronously in a separate goroutine and needs the upstream
	// connection to remain open.
	stream, err := r.chat.StreamChat(context.Background(), token.Value, &coze.StreamChatRequest{
		BotID:           r.config.BotID,
		UserID:          r.config.UserID,
		Question:        question,
		AutoSaveHistory: r.config.AutoSaveHistory,
		Extra:           req.Options,
	})
	if err != nil {
		r.logger.Error("upstream chat request failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: errUpstreamRequest})
	}

	c.Set(fiber.HeaderContentType, "application/x-ndjson; charset=utf-8")
	c.Set(fiber.HeaderCacheControl, "no-store")

	// io.Pipe gives direct backpressure: pw.Write blocks until fasthttp's
	// chunked writer has flushed the frame to the socket, so frames reach
	// the browser as they arrive instead of buffering.
	pr, pw := io.Pipe()
	go r.pumpStream(stream, pw)

	// Unknown size (-1) triggers chunked transfer encoding in fasthttp.
	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

// pumpStream pulls upstream chat events and writes them as NDJSON frames
// until the stream ends or the client goes away.
func (r *Relay) pumpStream(stream *coze.Stream, pw *io.PipeWriter) {
	defer stream.Close()
	defer pw.Close()

	w := ndjson.NewWriter(pw)
	for {
		ev, err := stream.Next()
		if err != nil {
			// Mid-stream failure: headers are long gone, closing the pipe
			// is the only signal left for the client.
			r.logger.Error("error reading upstream stream", "error", err)
			return
		}
		if ev == nil {
			return
		}

		if err := w.Write(ev); err != nil {
			// The client disconnected. Stop pulling so the upstream stream
			// is not drained for nobody.
			r.logger.Debug("client gone, aborting relay", "error", err)
			return
		}
	}
}

// handleToken issues a fresh access token for callers that talk to the
// upstream API directly. The cache is deliberately bypassed here.
func (r *Relay) handleToken(c *fiber.Ctx) error {
	c.Set(fiber.HeaderCacheControl, "no-store")

	if r.issuer == nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: errAuthNotConfigured})
	}

	token, err := r.issuer.Token(c.Context())
	if err != nil {
		r.logger.Error("token issuance failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: errUpstreamAuth})
	}

	return c.JSON(fiber.Map{
		"access_token": token.Value,
		"expires_in":   token.ExpiresIn,
		"token_type":   token.TokenType,
	})
}

// handleHistoryList returns recorded questions, newest first, optionally
// bounded by ?filter=all|today|week|month.
func (r *Relay) handleHistoryList(c *fiber.Ctx) error {
	if r.records == nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: errHistoryNotConfigured})
	}

	filter, err := history.ParseTimeFilter(c.Query("filter"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	records, err := r.records.List(c.Context(), filter)
	if err != nil {
		r.logger.Error("failed to list history", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to list history"})
	}

	return c.JSON(fiber.Map{
		"count":   len(records),
		"records": records,
	})
}

// handleHistoryAnswer attaches an answer to the newest record matching the
// question.
func (r *Relay) handleHistoryAnswer(c *fiber.Ctx) error {
	if r.records == nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: errHistoryNotConfigured})
	}

	var update AnswerUpdate
	if err := c.BodyParser(&update); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if strings.TrimSpace(update.Question) == "" || update.Answer == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "question and answer are required"})
	}

	updated, err := r.records.UpdateLatestAnswer(c.Context(), update.Question, update.Answer)
	if err != nil {
		r.logger.Error("failed to update answer", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to update answer"})
	}

	return c.JSON(fiber.Map{"updated": updated})
}

// handleClientLog is a development sink for widget-side log lines.
func (r *Relay) handleClientLog(c *fiber.Ctx) error {
	var entry struct {
		Text string `json:"text"`
	}
	if err := c.BodyParser(&entry); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	r.logger.Debug("client log", "text", entry.Text)

	return c.SendStatus(fiber.StatusNoContent)
}
