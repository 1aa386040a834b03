package internal_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/koopa0/session-relay/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// handlerFixture 組裝 HTTP 處理器
func handlerFixture(t *testing.T, staticDir string) (*internal.Handler, *internal.Registry) {
	t.Helper()
	logger := testLogger()
	registry := internal.NewRegistry(logger)
	hub := internal.NewHub(logger)
	hub.Attach(internal.NewCoordinator(registry, hub, logger))
	t.Cleanup(hub.Stop)
	return internal.NewHandler(registry, hub, staticDir, logger), registry
}

// TestHandler_Health 測試健康檢查
func TestHandler_Health(t *testing.T) {
	handler, _ := handlerFixture(t, "")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
	assert.NotZero(t, resp["time"])
}

// TestHandler_Stats 測試統計端點
func TestHandler_Stats(t *testing.T) {
	handler, registry := handlerFixture(t, "")

	// 造一個等待中的房間
	sess := testSession(t, "conn_a", "Alice", internal.PreferWhite, 10)
	registry.CreateRoom(sess, internal.ColorWhite)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, float64(1), resp["total_rooms"])
	assert.Equal(t, float64(1), resp["waiting_rooms"])
	assert.Equal(t, float64(0), resp["full_rooms"])
	assert.Equal(t, float64(0), resp["connections"])
}

// TestHandler_Static 測試客戶端靜態資源
func TestHandler_Static(t *testing.T) {
	dir := t.TempDir()
	index := []byte("<html><body>對局大廳</body></html>")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), index, 0o644))

	handler, _ := handlerFixture(t, dir)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "對局大廳")
}

// TestHandler_NoStaticDir 測試未配置靜態目錄時根路徑不可用
func TestHandler_NoStaticDir(t *testing.T) {
	handler, _ := handlerFixture(t, "")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
