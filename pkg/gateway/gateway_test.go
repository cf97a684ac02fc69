package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maiahq/maia/pkg/agent"
	"github.com/maiahq/maia/pkg/apikey"
	"github.com/maiahq/maia/pkg/orchestrator"
	"github.com/maiahq/maia/pkg/session"
)

type echoBuilder struct {
	mu    sync.Mutex
	runs  int
	reply string
}

func (b *echoBuilder) Build(ctx context.Context, params agent.BuildParams) (agent.Runner, error) {
	return echoRunner{builder: b}, nil
}

type echoRunner struct {
	builder *echoBuilder
}

func (r echoRunner) Run(ctx context.Context, message string) (string, error) {
	r.builder.mu.Lock()
	defer r.builder.mu.Unlock()
	r.builder.runs++
	return r.builder.reply, nil
}

type testGateway struct {
	server    *Server
	backend   *session.MemoryBackend
	authority *apikey.Authority
}

func setupTestGateway(t *testing.T, keys []string, accounts []apikey.Account) *testGateway {
	t.Helper()

	backend := session.NewMemoryBackend()
	store, err := session.NewStore(session.Config{Backend: backend, TTL: time.Hour, Logger: zerolog.Nop()})
	require.NoError(t, err)

	authority := apikey.New(apikey.Config{Keys: keys, Accounts: accounts, Logger: zerolog.Nop()})

	orch, err := orchestrator.New(orchestrator.Config{
		Authority: authority,
		Store:     store,
		Builder:   &echoBuilder{reply: "Hi there"},
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)

	server, err := NewServer(Config{
		Host:         "127.0.0.1",
		Port:         8000,
		Orchestrator: orch,
		Authority:    authority,
		Logger:       zerolog.Nop(),
	})
	require.NoError(t, err)

	return &testGateway{server: server, backend: backend, authority: authority}
}

func doJSON(t *testing.T, handler http.Handler, method, path, apiKey string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestNewServer_Validation(t *testing.T) {
	_, err := NewServer(Config{Port: 0})
	assert.Error(t, err)

	_, err = NewServer(Config{Port: 8000})
	assert.Error(t, err)
}

func TestChat_AuthGate(t *testing.T) {
	gw := setupTestGateway(t, []string{"secret-key"}, nil)
	handler := gw.server.Handler()

	t.Run("missing key", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodPost, "/api/chat", "", chatRequest{Message: "hi"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong key", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodPost, "/api/chat", "wrong", chatRequest{Message: "hi"})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("valid key", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodPost, "/api/chat", "secret-key", chatRequest{Message: "hi"})
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestChat_NoKeysConfigured(t *testing.T) {
	gw := setupTestGateway(t, nil, nil)
	handler := gw.server.Handler()

	// The unconfigured-server condition wins regardless of what the caller sent
	t.Run("with header", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodPost, "/api/chat", "anything", chatRequest{Message: "hi"})
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("without header", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodPost, "/api/chat", "", chatRequest{Message: "hi"})
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestChat_ReturnsResponseAndSessionID(t *testing.T) {
	gw := setupTestGateway(t, []string{"secret-key"}, nil)
	handler := gw.server.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/chat", "secret-key", chatRequest{Message: "hello", SessionID: "work"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Hi there", resp.Response)
	assert.Equal(t, "work", resp.SessionID)
}

func TestChat_DefaultsSessionID(t *testing.T) {
	gw := setupTestGateway(t, []string{"secret-key"}, nil)
	handler := gw.server.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/chat", "secret-key", chatRequest{Message: "hello"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "default", resp.SessionID)
}

func TestChat_RejectsEmptyMessage(t *testing.T) {
	gw := setupTestGateway(t, []string{"secret-key"}, nil)
	handler := gw.server.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/chat", "secret-key", chatRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin(t *testing.T) {
	hash, err := apikey.HashPassword("hunter2")
	require.NoError(t, err)
	accounts := []apikey.Account{{Username: "alice", PasswordHash: hash}}

	t.Run("success mints a key that works", func(t *testing.T) {
		gw := setupTestGateway(t, nil, accounts)
		handler := gw.server.Handler()

		rec := doJSON(t, handler, http.MethodPost, "/api/login", "", loginRequest{Username: "alice", Password: "hunter2"})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp loginResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.NotEmpty(t, resp.APIKey)

		chat := doJSON(t, handler, http.MethodPost, "/api/chat", resp.APIKey, chatRequest{Message: "hi"})
		assert.Equal(t, http.StatusOK, chat.Code)
	})

	t.Run("bad password", func(t *testing.T) {
		gw := setupTestGateway(t, nil, accounts)
		rec := doJSON(t, gw.server.Handler(), http.MethodPost, "/api/login", "", loginRequest{Username: "alice", Password: "wrong"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown user", func(t *testing.T) {
		gw := setupTestGateway(t, nil, accounts)
		rec := doJSON(t, gw.server.Handler(), http.MethodPost, "/api/login", "", loginRequest{Username: "mallory", Password: "hunter2"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("no accounts configured", func(t *testing.T) {
		gw := setupTestGateway(t, nil, nil)
		rec := doJSON(t, gw.server.Handler(), http.MethodPost, "/api/login", "", loginRequest{Username: "alice", Password: "hunter2"})
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestSessionAdmin(t *testing.T) {
	gw := setupTestGateway(t, []string{"secret-key"}, nil)
	handler := gw.server.Handler()

	// seed a session through the chat endpoint
	rec := doJSON(t, handler, http.MethodPost, "/api/chat", "secret-key", chatRequest{Message: "hello", SessionID: "work"})
	require.Equal(t, http.StatusOK, rec.Code)

	t.Run("list", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodGet, "/api/sessions", "secret-key", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp map[string][]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Contains(t, resp["sessions"], "work")
	})

	t.Run("info", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodGet, "/api/sessions/work", "secret-key", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var info session.Info
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
		assert.Equal(t, "work", info.SessionID)
		assert.Equal(t, 2, info.MessageCount)
	})

	t.Run("info missing", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodGet, "/api/sessions/nope", "secret-key", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("delete", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodDelete, "/api/sessions/work", "secret-key", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = doJSON(t, handler, http.MethodGet, "/api/sessions/work", "secret-key", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHealth(t *testing.T) {
	gw := setupTestGateway(t, []string{"secret-key"}, nil)
	handler := gw.server.Handler()

	rec := doJSON(t, handler, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, true, resp["durable_store"])

	gw.backend.SetAvailable(false)
	// a turn observes the outage and flips the health signal
	doJSON(t, handler, http.MethodPost, "/api/chat", "secret-key", chatRequest{Message: "hi"})

	rec = doJSON(t, handler, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	gw := setupTestGateway(t, []string{"secret-key"}, nil)
	handler := gw.server.Handler()

	rec := doJSON(t, handler, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "durable_store_up")
}

func TestChatSocket(t *testing.T) {
	gw := setupTestGateway(t, []string{"secret-key"}, nil)
	srv := httptest.NewServer(gw.server.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat"
	header := http.Header{"X-API-Key": []string{"secret-key"}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(chatRequest{Message: "hello", SessionID: "ws"}))

	var frame wsFrame
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "status", frame.Type)

	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "response", frame.Type)
	assert.Equal(t, "Hi there", frame.Response)
	assert.Equal(t, "ws", frame.SessionID)
}

func TestChatSocket_RejectsMissingKey(t *testing.T) {
	gw := setupTestGateway(t, []string{"secret-key"}, nil)
	srv := httptest.NewServer(gw.server.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
