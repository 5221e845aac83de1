package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChamsBouzaiene/petchat/internal/ark"
	"github.com/ChamsBouzaiene/petchat/internal/engine"
	"github.com/ChamsBouzaiene/petchat/internal/gateway"
	"github.com/ChamsBouzaiene/petchat/internal/history"
	"github.com/ChamsBouzaiene/petchat/internal/media"
	"github.com/ChamsBouzaiene/petchat/internal/providers"
	"github.com/ChamsBouzaiene/petchat/internal/session"
)

type scriptedLLM struct {
	mu    sync.Mutex
	reply string
	err   error
	calls int
}

func (c *scriptedLLM) Chat(ctx context.Context, model string, messages []engine.ChatMessage, opts engine.ChatOptions) (engine.LLMResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return engine.LLMResponse{}, c.err
	}
	return engine.LLMResponse{Assistant: engine.ChatMessage{Role: engine.RoleAssistant, Content: c.reply}}, nil
}

func (c *scriptedLLM) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// countingVideo counts uploads reaching the video provider.
type countingVideo struct {
	gateway.VideoClient
	uploads atomic.Int32
}

func (c *countingVideo) UploadFile(ctx context.Context, path string, opts ark.UploadOptions) (ark.File, error) {
	c.uploads.Add(1)
	return c.VideoClient.UploadFile(ctx, path, opts)
}

type harness struct {
	server *Server
	store  *session.Store
	llm    *scriptedLLM
	video  *countingVideo
	media  *media.Storage
}

func newHarness(t *testing.T, maxSize int64) *harness {
	t.Helper()
	store := session.NewStore()
	t.Cleanup(func() { _ = store.Close() })

	storage, err := media.NewStorage(t.TempDir(), maxSize)
	require.NoError(t, err)

	llm := &scriptedLLM{reply: "hello"}
	video := &countingVideo{VideoClient: providers.NewMockVideoClient()}

	chat := gateway.NewChatGateway(llm, store, gateway.ChatConfig{Model: "test-model", Policy: history.DefaultPolicy()}, nil)
	analyzer := gateway.NewVideoGateway(video, store, gateway.VideoConfig{
		Model:  "test-video-model",
		Poll:   engine.PollPolicy{InitialInterval: time.Millisecond, MaxInterval: time.Millisecond, Multiplier: 1, Timeout: time.Second},
		Policy: history.DefaultPolicy(),
	}, nil)

	srv, err := New(Options{
		Chat:           chat,
		Video:          analyzer,
		Store:          store,
		Media:          storage,
		Provider:       "mock",
		GatewayTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	return &harness{server: srv, store: store, llm: llm, video: video, media: storage}
}

func (h *harness) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	return rec
}

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

type uploadPart struct {
	field    string
	filename string
	content  string
}

func multipartRequest(t *testing.T, path string, fields map[string]string, files ...uploadPart) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="`+f.field+`"; filename="`+f.filename+`"`)
		header.Set("Content-Type", "application/octet-stream")
		part, err := mw.CreatePart(header)
		require.NoError(t, err)
		_, err = io.WriteString(part, f.content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
}

func TestChatRecordsTurns(t *testing.T) {
	h := newHarness(t, 0)

	rec := h.do(t, postJSON("/chat", `{"message":"hi","session_id":"s1"}`))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "hello", body["response"])
	assert.Equal(t, false, body["degraded"])
	assert.Equal(t, "s1", body["session_id"])
	assert.NotEmpty(t, body["timestamp"])

	assert.Equal(t, []session.Turn{session.UserTurn("hi"), session.AssistantTurn("hello")}, h.store.Get("s1"))
}

func TestChatAPIPrefixAndDefaultSession(t *testing.T) {
	h := newHarness(t, 0)

	rec := h.do(t, postJSON("/api/chat", `{"message":"hi"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, session.DefaultID, decodeBody(t, rec)["session_id"])
	assert.Len(t, h.store.Get(session.DefaultID), 2)
}

func TestChatRejectsInvalidBodies(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "blank message", body: `{"message":"   "}`},
		{name: "missing message", body: `{"session_id":"s1"}`},
		{name: "empty body", body: ``},
		{name: "malformed", body: `{"message":`},
		{name: "wrong type", body: `{"message":42}`},
		{name: "unknown field", body: `{"message":"hi","extra":true}`},
		{name: "two objects", body: `{"message":"hi"}{"message":"again"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 0)
			rec := h.do(t, postJSON("/chat", tt.body))

			require.Equal(t, http.StatusBadRequest, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, false, body["success"])
			assert.NotEmpty(t, body["error"])
			assert.Zero(t, h.llm.callCount())
			assert.Zero(t, h.store.Count())
		})
	}
}

func TestChatUnreachableProviderReturnsBadGateway(t *testing.T) {
	h := newHarness(t, 0)
	h.llm.err = &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}

	rec := h.do(t, postJSON("/chat", `{"message":"hi","session_id":"s1"}`))
	require.Equal(t, http.StatusBadGateway, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "connection refused")

	assert.Equal(t, []session.Turn{session.UserTurn("hi")}, h.store.Get("s1"))
}

func TestChatModelFailureIsDegraded(t *testing.T) {
	h := newHarness(t, 0)
	h.llm.err = errors.New("error, status code: 500, message: boom")

	rec := h.do(t, postJSON("/chat", `{"message":"hi","session_id":"s1"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["degraded"])
	assert.Contains(t, body["response"], "Sorry")

	turns := h.store.Get("s1")
	require.Len(t, turns, 2)
	assert.Equal(t, body["response"], turns[1].Content)
}

type ctxRecorder struct {
	err      error
	deadline bool
}

func (p *ctxRecorder) Complete(ctx context.Context, sessionID, message string) (gateway.Result, error) {
	p.err = ctx.Err()
	_, p.deadline = ctx.Deadline()
	return gateway.Result{Text: "done", Status: gateway.StatusOK}, nil
}

func TestChatOutlivesClientDisconnect(t *testing.T) {
	h := newHarness(t, 0)
	recorder := &ctxRecorder{}
	srv, err := New(Options{Chat: recorder, Video: h.server.opts.Video, Store: h.store, Media: h.media, GatewayTimeout: time.Minute})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := postJSON("/chat", `{"message":"hi"}`).WithContext(ctx)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, recorder.err)
	assert.True(t, recorder.deadline)
}

func TestUploadAnalyzesVideo(t *testing.T) {
	h := newHarness(t, 1<<20)

	req := multipartRequest(t, "/upload",
		map[string]string{"message": "is he happy?", "session_id": "v1"},
		uploadPart{field: "video", filename: "my cat.mp4", content: "fake video bytes"})
	rec := h.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, false, body["degraded"])
	assert.Equal(t, "v1", body["session_id"])
	assert.EqualValues(t, len("fake video bytes"), body["filesize"])
	assert.Contains(t, body["response"], "This is a simulated video analysis result.")
	assert.Contains(t, body["response"], "is he happy?")

	filename, _ := body["filename"].(string)
	assert.True(t, strings.HasSuffix(filename, "_my_cat.mp4"), filename)
	_, err := os.Stat(filepath.Join(h.media.Dir(), filename))
	require.NoError(t, err)

	assert.EqualValues(t, 1, h.video.uploads.Load())
	turns := h.store.Get("v1")
	require.Len(t, turns, 2)
	assert.Equal(t, history.VideoMarker+" is he happy?", turns[0].Content)
	assert.Equal(t, body["response"], turns[1].Content)
}

func TestUploadWithoutCaptionUsesDefault(t *testing.T) {
	h := newHarness(t, 1<<20)

	rec := h.do(t, multipartRequest(t, "/api/upload", nil, uploadPart{field: "video", filename: "clip.webm", content: "x"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	turns := h.store.Get(session.DefaultID)
	require.Len(t, turns, 2)
	assert.Equal(t, history.VideoTurnContent(""), turns[0].Content)
}

func TestUploadRejectsBeforeExternalCall(t *testing.T) {
	tests := []struct {
		name   string
		req    func(t *testing.T) *http.Request
		status int
		errMsg string
	}{
		{
			name: "disallowed extension",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "/upload", map[string]string{"message": "look"},
					uploadPart{field: "video", filename: "virus.exe", content: "MZ"})
			},
			status: http.StatusBadRequest,
			errMsg: "mp4, avi, mov, mkv, webm",
		},
		{
			name: "missing file",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "/upload", map[string]string{"message": "look"})
			},
			status: http.StatusBadRequest,
			errMsg: "no video file",
		},
		{
			name: "empty filename",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "/upload", nil, uploadPart{field: "video", filename: "", content: "x"})
			},
			status: http.StatusBadRequest,
			errMsg: "no file selected",
		},
		{
			name: "not multipart",
			req: func(t *testing.T) *http.Request {
				return postJSON("/upload", `{"message":"look"}`)
			},
			status: http.StatusBadRequest,
			errMsg: "invalid upload",
		},
		{
			name: "too large",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "/upload", nil,
					uploadPart{field: "video", filename: "big.mp4", content: strings.Repeat("v", 64)})
			},
			status: http.StatusRequestEntityTooLarge,
			errMsg: "too large",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 16)
			rec := h.do(t, tt.req(t))

			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			body := decodeBody(t, rec)
			assert.Equal(t, false, body["success"])
			assert.Contains(t, body["error"], tt.errMsg)

			assert.Zero(t, h.video.uploads.Load())
			assert.Empty(t, h.store.Get(session.DefaultID))
			entries, err := os.ReadDir(h.media.Dir())
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestUploadBodyOverLimit(t *testing.T) {
	h := newHarness(t, 16)
	big := strings.Repeat("v", int(multipartOverhead)+1024)

	rec := h.do(t, multipartRequest(t, "/upload", nil, uploadPart{field: "video", filename: "big.mp4", content: big}))
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Zero(t, h.video.uploads.Load())
}

func TestVideoServing(t *testing.T) {
	h := newHarness(t, 0)
	stored, err := h.media.Save("clip.mp4", strings.NewReader("0123456789"))
	require.NoError(t, err)

	rec := h.do(t, httptest.NewRequest(http.MethodGet, "/video/"+stored.Name, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
	assert.Equal(t, "0123456789", rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/api/video/"+stored.Name, nil)
	req.Header.Set("Range", "bytes=2-4")
	rec = h.do(t, req)
	require.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "234", rec.Body.String())

	rec = h.do(t, httptest.NewRequest(http.MethodGet, "/video/missing.mp4", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["success"])
}

func TestHealth(t *testing.T) {
	h := newHarness(t, 0)
	h.store.Append("a", session.UserTurn("hi"))

	rec := h.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "petchat", body["service"])
	assert.Equal(t, "not_configured", body["api_status"])
	assert.Equal(t, "mock", body["provider"])
	assert.EqualValues(t, 1, body["sessions"])
	assert.True(t, strings.HasPrefix(body["go_version"].(string), "go"))
}

func TestHistoryAndClear(t *testing.T) {
	h := newHarness(t, 0)
	h.store.Append("s1", session.UserTurn("hi"))
	h.store.Append("s1", session.AssistantTurn("hello"))
	h.store.Append("s2", session.UserTurn("other"))

	rec := h.do(t, postJSON("/history", `{"session_id":"s1"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	var hist historyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hist))
	assert.True(t, hist.Success)
	assert.Equal(t, "s1", hist.SessionID)
	assert.Equal(t, 2, hist.Count)
	assert.Equal(t, []historyEntry{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "hello"}}, hist.History)

	rec = h.do(t, postJSON("/api/clear-history", `{"session_id":"s1"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["message"])

	assert.Empty(t, h.store.Get("s1"))
	assert.Len(t, h.store.Get("s2"), 1)

	rec = h.do(t, postJSON("/history", `{"session_id":"s1"}`))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hist))
	assert.Equal(t, 0, hist.Count)
	assert.NotNil(t, hist.History)
}

func TestHistoryEmptyBodyUsesDefaultSession(t *testing.T) {
	h := newHarness(t, 0)
	h.store.Append(session.DefaultID, session.UserTurn("hi"))

	rec := h.do(t, postJSON("/history", ``))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, session.DefaultID, body["session_id"])
	assert.EqualValues(t, 1, body["count"])

	rec = h.do(t, postJSON("/clear-history", `{"session_id":null}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, h.store.Get(session.DefaultID))

	rec = h.do(t, postJSON("/clear-history", `{"session_id":7}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := newHarness(t, 0)

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "content-type")
	rec := h.do(t, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
	assert.Equal(t, "content-type", rec.Header().Get("Access-Control-Allow-Headers"))
	assert.Zero(t, h.llm.callCount())

	rec = h.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestID(t *testing.T) {
	h := newHarness(t, 0)

	rec := h.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	_, err := uuid.Parse(rec.Header().Get(HeaderRequestID))
	assert.NoError(t, err)

	incoming := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(HeaderRequestID, incoming)
	rec = h.do(t, req)
	assert.Equal(t, incoming, rec.Header().Get(HeaderRequestID))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(HeaderRequestID, "not-a-uuid")
	rec = h.do(t, req)
	assert.NotEqual(t, "not-a-uuid", rec.Header().Get(HeaderRequestID))
}

type panickingChat struct{}

func (panickingChat) Complete(context.Context, string, string) (gateway.Result, error) {
	panic("boom")
}

func TestPanicBecomesInternalError(t *testing.T) {
	h := newHarness(t, 0)
	srv, err := New(Options{Chat: panickingChat{}, Video: h.server.opts.Video, Store: h.store, Media: h.media})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, postJSON("/chat", `{"message":"hi"}`))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.NotEmpty(t, body["error"])
}

func TestStaticDir(t *testing.T) {
	h := newHarness(t, 0)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>pets</h1>"), 0o644))

	srv, err := New(Options{Chat: h.server.opts.Chat, Video: h.server.opts.Video, Store: h.store, Media: h.media, StaticDir: dir})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pets")

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
