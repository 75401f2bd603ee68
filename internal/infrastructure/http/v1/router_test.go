package v1

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmalewski/kartotherian/internal/infrastructure/http/v1/dto"
	"github.com/mmalewski/kartotherian/internal/infrastructure/http/v1/handler"
	"github.com/mmalewski/kartotherian/internal/store"
	"github.com/mmalewski/kartotherian/internal/usecase"
	"github.com/mmalewski/kartotherian/pkg/logger"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s, err := store.New(store.Config{
		Driver:          "sqlite",
		Database:        filepath.Join(t.TempDir(), "tiles.db"),
		CreateIfMissing: true,
		MaxBatchSize:    100,
	}, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	uc := usecase.NewTileUseCase(s, logger.NewNop())
	h := handler.NewHandler(validator.New(), uc)
	return NewRouter(h, logger.NewNop(), false)
}

func do(r *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestTileLifecycleOverHTTP(t *testing.T) {
	r := newTestRouter(t)

	w := do(r, http.MethodGet, "/api/v1/tile/5/1/2", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodPut, "/api/v1/tile/5/1/2", []byte("some vector tile bytes"))
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/api/v1/tile/5/1/2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/x-protobuf", w.Header().Get("Content-Type"))
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte{0x1f, 0x8b}))

	w = do(r, http.MethodDelete, "/api/v1/tile/5/1/2", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/api/v1/tile/5/1/2", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTileBadCoordinates(t *testing.T) {
	r := newTestRouter(t)

	w := do(r, http.MethodGet, "/api/v1/tile/abc/1/2", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Write outside the default [0, 14] window.
	w = do(r, http.MethodPut, "/api/v1/tile/20/1/2", []byte("x"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Read outside the window is just a miss.
	w = do(r, http.MethodGet, "/api/v1/tile/20/1/2", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInfoOverHTTP(t *testing.T) {
	r := newTestRouter(t)

	w := do(r, http.MethodGet, "/api/v1/info", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var info map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.EqualValues(t, 14, info["maxzoom"])

	doc := `{"name":"test-layer","version":"3.0.0","minzoom":0,"maxzoom":14}`
	w = do(r, http.MethodPut, "/api/v1/info", []byte(doc))
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/api/v1/info", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, "test-layer", info["name"])
}

func TestQueryStreamOverHTTP(t *testing.T) {
	r := newTestRouter(t)

	for x := 0; x < 4; x++ {
		w := do(r, http.MethodPut, fmt.Sprintf("/api/v1/tile/2/%d/0", x), []byte("payload"))
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := do(r, http.MethodGet, "/api/v1/tiles?zoom=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/x-ndjson", w.Header().Get("Content-Type"))

	var lines int
	scanner := bufio.NewScanner(strings.NewReader(w.Body.String()))
	for scanner.Scan() {
		var rec dto.TileRecordResponse
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		assert.Equal(t, 2, rec.Zoom)
		lines++
	}
	assert.Equal(t, 4, lines)
}

func TestQueryRejectsDates(t *testing.T) {
	r := newTestRouter(t)

	for _, q := range []string{
		"zoom=2&dateFrom=2024-01-01",
		"zoom=2&dateBefore=2024-06-01T12:00:00Z",
	} {
		w := do(r, http.MethodGet, "/api/v1/tiles?"+q, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
		assert.Contains(t, w.Body.String(), "not supported", q)
	}
}

func TestQueryRejectsMalformedDates(t *testing.T) {
	r := newTestRouter(t)

	w := do(r, http.MethodGet, "/api/v1/tiles?zoom=2&dateFrom=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid dateFrom")

	w = do(r, http.MethodGet, "/api/v1/tiles?zoom=2&dateBefore=13/37/2024", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid dateBefore")
}

func TestQueryRequiresZoom(t *testing.T) {
	r := newTestRouter(t)

	w := do(r, http.MethodGet, "/api/v1/tiles", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBulkLoadOverHTTP(t *testing.T) {
	r := newTestRouter(t)

	req := dto.BulkTileRequest{
		Tiles: []dto.BulkTileEntry{
			{Z: 3, X: 0, Y: 0, Tile: []byte("a")},
			{Z: 3, X: 1, Y: 1, Tile: []byte("b")},
		},
	}
	body, err := json.Marshal(req)
	require.NoError(t, err)

	w := do(r, http.MethodPost, "/api/v1/tiles", body)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/api/v1/tile/3/1/1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
