package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fileflow/fileflow/internal/chain"
	"github.com/fileflow/fileflow/internal/watcher"
	"github.com/fileflow/fileflow/processor"
)

type echoProcessor struct{}

func (echoProcessor) Name() string                  { return "echo" }
func (echoProcessor) SupportedExtensions() []string { return []string{".txt"} }
func (echoProcessor) Process(ctx context.Context, path string, chainCtx map[string]interface{}) (*processor.Result, error) {
	return &processor.Result{Success: true}, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	reg := processor.NewRegistry(processor.FromInstances("test", echoProcessor{}))
	reg.Discover()
	executor := chain.New(reg, time.Second, 1)
	dispatcher := watcher.New(watcher.Config{Root: t.TempDir()}, reg, executor)
	return NewServer(0, reg, executor, dispatcher)
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	return resp
}

func TestHandleStatus(t *testing.T) {
	s := newTestServer(t)

	rr := httptest.NewRecorder()
	s.handleStatus(rr, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	resp := decodeResponse(t, rr)
	assert.True(t, resp.Success)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, data, "watcher")
	assert.Contains(t, data, "registry")
	assert.Contains(t, data, "processing")
}

func TestHandleStatusRejectsPost(t *testing.T) {
	s := newTestServer(t)

	rr := httptest.NewRecorder()
	s.handleStatus(rr, httptest.NewRequest(http.MethodPost, "/api/status", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.False(t, decodeResponse(t, rr).Success)
}

func TestHandleProcessors(t *testing.T) {
	s := newTestServer(t)

	rr := httptest.NewRecorder()
	s.handleProcessors(rr, httptest.NewRequest(http.MethodGet, "/api/processors", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	resp := decodeResponse(t, rr)
	require.True(t, resp.Success)

	list, ok := resp.Data.([]interface{})
	require.True(t, ok)
	require.Len(t, list, 1)
	first := list[0].(map[string]interface{})
	assert.Equal(t, "echo", first["name"])
}

func TestHandleReload(t *testing.T) {
	s := newTestServer(t)

	rr := httptest.NewRecorder()
	s.handleReload(rr, httptest.NewRequest(http.MethodPost, "/api/reload", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, decodeResponse(t, rr).Success)

	rr = httptest.NewRecorder()
	s.handleReload(rr, httptest.NewRequest(http.MethodGet, "/api/reload", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestHandleResetStats(t *testing.T) {
	s := newTestServer(t)
	s.executor.ProcessFile(context.Background(), "a.txt")
	require.NotZero(t, s.executor.Stats().FilesProcessed)

	rr := httptest.NewRecorder()
	s.handleResetStats(rr, httptest.NewRequest(http.MethodPost, "/api/stats/reset", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Zero(t, s.executor.Stats().FilesProcessed)
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t)

	rr := httptest.NewRecorder()
	s.handleHealth(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	resp := decodeResponse(t, rr)
	require.True(t, resp.Success)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "healthy", data["status"])
	assert.Equal(t, false, data["watching"])
}

func TestAuthMiddleware(t *testing.T) {
	s := newTestServer(t)
	s.EnableAuth("admin", "secret")

	handler := s.authMiddleware(s.handleStatus)

	rr := httptest.NewRecorder()
	handler(rr, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.SetBasicAuth("admin", "wrong")
	handler(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.SetBasicAuth("admin", "secret")
	handler(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}
