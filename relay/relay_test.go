package relay

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/bytewidget/cozerelay/pkg/coze"
	"github.com/bytewidget/cozerelay/pkg/history"
	"github.com/bytewidget/cozerelay/pkg/history/inmemory"
	"github.com/bytewidget/cozerelay/pkg/logger"
)

// chatUpstream fakes the upstream streaming chat endpoint. It records the
// last request it saw and replays a canned chat turn as SSE.
type chatUpstream struct {
	server   *httptest.Server
	auth     string
	body     []byte
	status   int
	respBody string
}

func newChatUpstream() *chatUpstream {
	u := &chatUpstream{status: http.StatusOK}
	u.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.auth = r.Header.Get("Authorization")
		u.body, _ = io.ReadAll(r.Body)

		if u.status != http.StatusOK {
			w.WriteHeader(u.status)
			fmt.Fprint(w, u.respBody)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		flusher, ok := w.(http.Flusher)
		Expect(ok).To(BeTrue())

		events := []string{
			"event: conversation.chat.created\ndata: {\"id\":\"chat-1\",\"status\":\"created\"}\n\n",
			"event: conversation.message.delta\ndata: {\"role\":\"assistant\",\"type\":\"answer\",\"content\":\"Hel\",\"content_type\":\"text\"}\n\n",
			"event: conversation.message.completed\ndata: {\"role\":\"assistant\",\"type\":\"answer\",\"content\":\"Hello!\",\"content_type\":\"text\"}\n\n",
			"event: done\ndata: [DONE]\n\n",
		}
		for _, event := range events {
			fmt.Fprint(w, event)
			flusher.Flush()
		}
	}))
	return u
}

func (u *chatUpstream) Close() { u.server.Close() }

// newTestRelay wires a Relay to the fake upstream with an in-memory history
// driver and a static token source.
func newTestRelay(upstreamURL string, issuer *staticTokens) (*Relay, *inmemory.Driver) {
	driver := inmemory.NewDriver()
	r := New(
		Config{
			ListenAddr: ":0",
			BotID:      "bot-1",
			UserID:     "web-user",
		},
		coze.NewClient(upstreamURL, nil),
		issuer,
		driver,
		logger.Nop(),
	)
	return r, driver
}

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// readFrames decodes an NDJSON response body into chat events.
func readFrames(body io.Reader) []coze.ChatEvent {
	var frames []coze.ChatEvent
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		Expect(json.Valid(line)).To(BeTrue(), "frame is not valid JSON: %s", line)

		var ev coze.ChatEvent
		Expect(json.Unmarshal(line, &ev)).To(Succeed())
		frames = append(frames, ev)
	}
	Expect(scanner.Err()).NotTo(HaveOccurred())
	return frames
}

var _ = Describe("Chat relay", func() {
	var (
		r        *Relay
		driver   *inmemory.Driver
		upstream *chatUpstream
		issuer   *staticTokens
	)

	BeforeEach(func() {
		upstream = newChatUpstream()
		issuer = newStaticTokens("tok-1")
		r, driver = newTestRelay(upstream.server.URL, issuer)
	})

	AfterEach(func() {
		if r != nil {
			r.Close()
		}
		if upstream != nil {
			upstream.Close()
		}
	})

	Describe("POST /api/chat", func() {
		It("relays the upstream turn as NDJSON frames", func() {
			resp, err := r.server.Test(postJSON("/api/chat", `{"question":"hi"}`), -1)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("application/x-ndjson; charset=utf-8"))
			Expect(resp.Header.Get("Cache-Control")).To(Equal("no-store"))

			frames := readFrames(resp.Body)
			Expect(frames).To(HaveLen(4))
			Expect(frames[0].Event).To(Equal(coze.EventChatCreated))
			Expect(frames[1].Event).To(Equal(coze.EventMessageDelta))
			Expect(frames[2].Event).To(Equal(coze.EventMessageCompleted))
			Expect(frames[3].Event).To(Equal(coze.EventDone))

			msg, err := frames[2].Message()
			Expect(err).NotTo(HaveOccurred())
			Expect(msg.Content).To(Equal("Hello!"))

			// The non-JSON terminal sentinel is carried as a JSON string.
			Expect(string(frames[3].Data)).To(Equal(`"[DONE]"`))
		})

		It("keeps identity server-side", func() {
			resp, err := r.server.Test(postJSON("/api/chat",
				`{"question":"hi","options":{"bot_id":"evil","user_id":"evil","conversation_id":"conv-9"}}`), -1)
			Expect(err).NotTo(HaveOccurred())
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()

			Expect(upstream.auth).To(Equal("Bearer tok-1"))

			var sent map[string]any
			Expect(json.Unmarshal(upstream.body, &sent)).To(Succeed())
			Expect(sent["bot_id"]).To(Equal("bot-1"))
			Expect(sent["user_id"]).To(Equal("web-user"))
			// Benign overrides survive.
			Expect(sent["conversation_id"]).To(Equal("conv-9"))
		})

		It("records the question before relaying", func() {
			resp, err := r.server.Test(postJSON("/api/chat", `{"question":"what is up?"}`), -1)
			Expect(err).NotTo(HaveOccurred())
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()

			records, err := driver.List(GinkgoT().Context(), history.FilterAll)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
			Expect(records[0].Question).To(Equal("what is up?"))
			Expect(records[0].Answer).To(BeNil())
		})

		It("rejects a blank question", func() {
			resp, err := r.server.Test(postJSON("/api/chat", `{"question":"   "}`), -1)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

			var body ErrorResponse
			Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
			Expect(body.Error).To(Equal(errQuestionRequired))

			// Nothing reached the upstream.
			Expect(upstream.auth).To(BeEmpty())
		})

		It("reports a missing bot id as a configuration error", func() {
			r.Close()
			r = New(Config{ListenAddr: ":0"}, coze.NewClient(upstream.server.URL, nil), issuer, nil, logger.Nop())

			resp, err := r.server.Test(postJSON("/api/chat", `{"question":"hi"}`), -1)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))

			var body ErrorResponse
			Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
			Expect(body.Error).To(Equal(errBotNotConfigured))
		})

		It("reports missing credentials as a configuration error", func() {
			r.Close()
			r = New(Config{ListenAddr: ":0", BotID: "bot-1"}, coze.NewClient(upstream.server.URL, nil), nil, nil, logger.Nop())

			resp, err := r.server.Test(postJSON("/api/chat", `{"question":"hi"}`), -1)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))

			var body ErrorResponse
			Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
			Expect(body.Error).To(Equal(errAuthNotConfigured))
		})

		It("reports a failed token resolution as an upstream auth error", func() {
			issuer.err = errors.New("key rejected")

			resp, err := r.server.Test(postJSON("/api/chat", `{"question":"hi"}`), -1)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))

			var body ErrorResponse
			Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
			Expect(body.Error).To(Equal(errUpstreamAuth))
		})

		It("reports an upstream rejection without streaming", func() {
			upstream.status = http.StatusForbidden
			upstream.respBody = `{"code":4100,"msg":"denied"}`

			resp, err := r.server.Test(postJSON("/api/chat", `{"question":"hi"}`), -1)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))

			var body ErrorResponse
			Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
			Expect(body.Error).To(Equal(errUpstreamRequest))
		})
	})

	Describe("GET /api/token", func() {
		It("issues a fresh token on every call", func() {
			for i := 1; i <= 2; i++ {
				resp, err := r.server.Test(httptest.NewRequest(http.MethodGet, "/api/token", nil), -1)
				Expect(err).NotTo(HaveOccurred())

				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(resp.Header.Get("Cache-Control")).To(Equal("no-store"))

				var body map[string]any
				Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
				resp.Body.Close()

				Expect(body["access_token"]).To(Equal("tok-1"))
				Expect(body["token_type"]).To(Equal("Bearer"))
				Expect(body["expires_in"]).To(BeNumerically("==", 900))
			}

			// The cache is bypassed: one issuance per request.
			Expect(issuer.calls).To(Equal(2))
		})

		It("fails without issuing when credentials are absent", func() {
			r.Close()
			r = New(Config{ListenAddr: ":0", BotID: "bot-1"}, coze.NewClient(upstream.server.URL, nil), nil, nil, logger.Nop())

			resp, err := r.server.Test(httptest.NewRequest(http.MethodGet, "/api/token", nil), -1)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
			Expect(resp.Header.Get("Cache-Control")).To(Equal("no-store"))

			var body ErrorResponse
			Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
			Expect(body.Error).To(Equal(errAuthNotConfigured))
		})

		It("reports issuance failure", func() {
			issuer.err = errors.New("upstream 401")

			resp, err := r.server.Test(httptest.NewRequest(http.MethodGet, "/api/token", nil), -1)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))

			var body ErrorResponse
			Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
			Expect(body.Error).To(Equal(errUpstreamAuth))
		})
	})

	Describe("history routes", func() {
		It("lists recorded questions newest first", func() {
			ctx := GinkgoT().Context()
			_, err := driver.Insert(ctx, "older?", time.Now().Add(-time.Hour))
			Expect(err).NotTo(HaveOccurred())
			_, err = driver.Insert(ctx, "newer?", time.Now())
			Expect(err).NotTo(HaveOccurred())

			resp, err := r.server.Test(httptest.NewRequest(http.MethodGet, "/api/history?filter=all", nil), -1)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var body struct {
				Count   int              `json:"count"`
				Records []history.Record `json:"records"`
			}
			Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
			Expect(body.Count).To(Equal(2))
			Expect(body.Records[0].Question).To(Equal("newer?"))
			Expect(body.Records[1].Question).To(Equal("older?"))
		})

		It("rejects an unknown filter", func() {
			resp, err := r.server.Test(httptest.NewRequest(http.MethodGet, "/api/history?filter=yesterday", nil), -1)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("updates the latest matching answer", func() {
			_, err := driver.Insert(GinkgoT().Context(), "q?", time.Now())
			Expect(err).NotTo(HaveOccurred())

			resp, err := r.server.Test(postJSON("/api/history/answer", `{"question":"q?","answer":"a."}`), -1)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var body map[string]bool
			Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
			Expect(body["updated"]).To(BeTrue())

			records, err := driver.List(GinkgoT().Context(), history.FilterAll)
			Expect(err).NotTo(HaveOccurred())
			Expect(records[0].Answer).NotTo(BeNil())
			Expect(*records[0].Answer).To(Equal("a."))
		})

		It("reports updated=false when nothing matches", func() {
			resp, err := r.server.Test(postJSON("/api/history/answer", `{"question":"never asked","answer":"a"}`), -1)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			var body map[string]bool
			Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
			Expect(body["updated"]).To(BeFalse())
		})

		It("fails when no history driver is configured", func() {
			r.Close()
			r = New(Config{ListenAddr: ":0", BotID: "bot-1"}, coze.NewClient(upstream.server.URL, nil), issuer, nil, logger.Nop())

			resp, err := r.server.Test(httptest.NewRequest(http.MethodGet, "/api/history", nil), -1)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
		})
	})

	Describe("CORS", func() {
		It("answers pre-flight requests with 204", func() {
			req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
			req.Header.Set("Origin", "https://example.com")
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			req.Header.Set("Access-Control-Request-Headers", "Content-Type")

			resp, err := r.server.Test(req, -1)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
			Expect(resp.Header.Get("Access-Control-Allow-Methods")).To(ContainSubstring("POST"))
		})

		It("exposes the wildcard origin on plain requests", func() {
			req := postJSON("/api/chat", `{"question":"hi"}`)
			req.Header.Set("Origin", "https://example.com")

			resp, err := r.server.Test(req, -1)
			Expect(err).NotTo(HaveOccurred())
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()

			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
		})
	})

	Describe("POST /__log", func() {
		It("accepts widget log lines", func() {
			resp, err := r.server.Test(postJSON("/__log", `{"text":"widget booted"}`), -1)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
		})
	})
})
