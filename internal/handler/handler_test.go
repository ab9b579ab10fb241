package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elderquery/elderquery/internal/config"
	"github.com/elderquery/elderquery/internal/domain"
	"github.com/elderquery/elderquery/internal/service"
	"github.com/elderquery/elderquery/internal/session"
	"github.com/elderquery/elderquery/internal/store"
)

type stubPipeline struct {
	answer string
}

func (p *stubPipeline) GenerateAnswer(ctx context.Context, query string, history []domain.Message) (string, error) {
	return p.answer, nil
}

func (p *stubPipeline) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	return []domain.SearchResult{{Title: "result", URL: "https://example.com"}}, nil
}

func (p *stubPipeline) SearchYouTube(ctx context.Context, query string) ([]domain.YouTubeResult, error) {
	return nil, nil
}

type testApp struct {
	server *httptest.Server
	keys   *service.APIKeyService
}

func newTestApp(t *testing.T, withRemote bool) *testApp {
	t.Helper()
	ctx := context.Background()

	local, err := store.NewLocal(filepath.Join(t.TempDir(), "local.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = local.Close() })

	var remote store.Store
	if withRemote {
		r, err := store.NewLocal(filepath.Join(t.TempDir(), "remote.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = r.Close() })
		remote = r
	}

	stores := service.NewStoreSelector(local, remote)
	keys := service.NewAPIKeyService(stores)
	manager := service.NewConversationManager(stores, &stubPipeline{answer: "an answer"}, keys)
	require.NoError(t, manager.SetIdentity(ctx, ""))

	h := New(Deps{
		Cfg:      &config.Config{Port: 8080, AllowedOrigins: []string{"*"}},
		Manager:  manager,
		Keys:     keys,
		Sessions: session.NewHMACProvider("test-secret"),
	})

	server := httptest.NewServer(h.Routes())
	t.Cleanup(server.Close)
	return &testApp{server: server, keys: keys}
}

func (a *testApp) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, a.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (a *testApp) setKeys(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, a.keys.SetKey(ctx, domain.ProviderTavily, "tvly-test"))
	require.NoError(t, a.keys.SetKey(ctx, domain.ProviderOpenAI, "sk-test"))
}

func decodeSnapshot(t *testing.T, resp *http.Response) service.Snapshot {
	t.Helper()
	var snap service.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	return snap
}

func TestQueryEndpoint(t *testing.T) {
	app := newTestApp(t, false)
	app.setKeys(t)

	resp := app.do(t, http.MethodPost, "/api/query", map[string]string{"text": "hello"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	snap := decodeSnapshot(t, resp)
	require.Len(t, snap.Conversations, 1)
	conv := snap.Conversations[0]
	assert.Equal(t, "hello", conv.Title)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "an answer", conv.Messages[1].Content)
	assert.Equal(t, conv.ID, snap.ActiveID)
	assert.False(t, snap.SignedIn)
}

func TestQueryEndpointEmptyText(t *testing.T) {
	app := newTestApp(t, false)
	app.setKeys(t)

	resp := app.do(t, http.MethodPost, "/api/query", map[string]string{"text": "   "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestQueryEndpointMissingKeys(t *testing.T) {
	app := newTestApp(t, false)

	resp := app.do(t, http.MethodPost, "/api/query", map[string]string{"text": "hello"})
	assert.Equal(t, http.StatusPreconditionFailed, resp.StatusCode)
}

func TestCreateAndActivateConversation(t *testing.T) {
	app := newTestApp(t, false)

	resp := app.do(t, http.MethodPost, "/api/conversations", map[string]bool{"activate": true})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var conv domain.Conversation
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&conv))
	assert.Equal(t, domain.DefaultTitle, conv.Title)

	resp = app.do(t, http.MethodGet, "/api/state", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap := decodeSnapshot(t, resp)
	assert.Equal(t, conv.ID, snap.ActiveID)
}

func TestCreateConversationEmptyBody(t *testing.T) {
	app := newTestApp(t, false)

	resp := app.do(t, http.MethodPost, "/api/conversations", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = app.do(t, http.MethodGet, "/api/state", nil)
	snap := decodeSnapshot(t, resp)
	assert.Empty(t, snap.ActiveID)
}

func TestDeleteConversation(t *testing.T) {
	app := newTestApp(t, false)

	resp := app.do(t, http.MethodPost, "/api/conversations", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var conv domain.Conversation
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&conv))

	resp = app.do(t, http.MethodDelete, "/api/conversations/"+conv.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = app.do(t, http.MethodGet, "/api/state", nil)
	snap := decodeSnapshot(t, resp)
	assert.Empty(t, snap.Conversations)
}

func TestKeyEndpoints(t *testing.T) {
	app := newTestApp(t, false)

	resp := app.do(t, http.MethodPut, "/api/keys/"+domain.ProviderTavily, map[string]string{"key": "tvly-test"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Presence only, never the key itself.
	resp = app.do(t, http.MethodGet, "/api/keys", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var presence map[string]bool
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&presence))
	assert.True(t, presence[domain.ProviderTavily])
	assert.False(t, presence[domain.ProviderOpenAI])

	resp = app.do(t, http.MethodDelete, "/api/keys/"+domain.ProviderTavily, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = app.do(t, http.MethodPut, "/api/keys/bogus", map[string]string{"key": "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = app.do(t, http.MethodPut, "/api/keys/"+domain.ProviderTavily, map[string]string{"key": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSignInAndOut(t *testing.T) {
	app := newTestApp(t, true)

	resp := app.do(t, http.MethodPost, "/api/session", map[string]string{"token": "some-token"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap := decodeSnapshot(t, resp)
	assert.True(t, snap.SignedIn)

	resp = app.do(t, http.MethodDelete, "/api/session", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap = decodeSnapshot(t, resp)
	assert.False(t, snap.SignedIn)
}

func TestSignInEmptyToken(t *testing.T) {
	app := newTestApp(t, true)

	resp := app.do(t, http.MethodPost, "/api/session", map[string]string{"token": ""})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSignInWithoutRemote(t *testing.T) {
	app := newTestApp(t, false)

	resp := app.do(t, http.MethodPost, "/api/session", map[string]string{"token": "some-token"})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	app := newTestApp(t, false)

	resp := app.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	app := newTestApp(t, false)

	req, err := http.NewRequest(http.MethodOptions, app.server.URL+"/api/state", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := app.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
}
