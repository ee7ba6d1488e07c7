package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/tmx-importer/internal/importer"
	"github.com/annel0/tmx-importer/internal/storage"
)

const testMap = `<?xml version="1.0" encoding="UTF-8"?>
<map version="1.10" orientation="orthogonal" width="2" height="1" tilewidth="16" tileheight="16">
 <tileset firstgid="1" name="terrain" tilewidth="16" tileheight="16">
  <image source="art/terrain.png" width="32" height="16"/>
 </tileset>
 <layer id="1" name="ground" width="2" height="1">
  <properties>
   <property name="solid" value="yes"/>
  </properties>
  <data encoding="csv">1,2</data>
 </layer>
</map>
`

type apiFixture struct {
	src    string
	repo   *storage.AssetStore
	im     *importer.Importer
	server *RestServer
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	root := t.TempDir()
	f := &apiFixture{
		src:  filepath.Join(root, "incoming"),
		repo: storage.NewAssetStore(storage.NewMemoryBackend(), nil),
	}
	require.NoError(t, os.MkdirAll(f.src, 0o755))

	var err error
	f.im, err = importer.New(importer.Config{
		Repo:      f.repo,
		TargetDir: "assets/maps",
		BackupDir: filepath.Join(root, "backup"),
	})
	require.NoError(t, err)

	f.server = NewRestServer(Config{
		Repo:      f.repo,
		Importer:  f.im,
		SourceDir: f.src,
		Registry:  prometheus.NewRegistry(),
	})
	return f
}

func (f *apiFixture) do(t *testing.T, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)
	return w
}

func (f *apiFixture) importLevel(t *testing.T, name string) {
	t.Helper()
	p := filepath.Join(f.src, name+".tmx")
	require.NoError(t, os.WriteFile(p, []byte(testMap), 0o644))
	_, err := f.im.ImportFile(context.Background(), p)
	require.NoError(t, err)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "ok", body["status"])
	process, ok := body["process"].(map[string]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, process["uptime"])
	assert.Greater(t, process["goroutines"].(float64), float64(0))
	assert.NotEmpty(t, w.Header().Get("X-Trace-Id"))
}

func TestListAndDescribeMaps(t *testing.T) {
	f := newAPIFixture(t)
	f.importLevel(t, "level1")
	f.importLevel(t, "level2")

	w := f.do(t, http.MethodGet, "/api/maps", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var list struct {
		Data struct {
			Maps  []MapSummary `json:"maps"`
			Total int          `json:"total"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 2, list.Data.Total)
	assert.Equal(t, []MapSummary{
		{Name: "level1", Key: "assets/maps/level1.asset"},
		{Name: "level2", Key: "assets/maps/level2.asset"},
	}, list.Data.Maps)

	w = f.do(t, http.MethodGet, "/api/maps/level1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var info struct {
		Data MapInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, "assets/maps/level1.asset", info.Data.Key)
	assert.NotZero(t, info.Data.Identity)
	assert.Equal(t, "compatible", info.Data.LookupMode)
	require.Len(t, info.Data.Layers, 1)
	assert.Equal(t, "ground", info.Data.Layers[0].Name)
	assert.Equal(t, 2, info.Data.Layers[0].UsedTiles)
	require.Len(t, info.Data.Tilesets, 1)
	assert.Equal(t, "terrain", info.Data.Tilesets[0].Image)
	assert.Equal(t, 2, info.Data.Tilesets[0].TileCount)
}

func TestGetMap_NotFound(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodGet, "/api/maps/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestResolveTile(t *testing.T) {
	f := newAPIFixture(t)
	f.importLevel(t, "level1")

	w := f.do(t, http.MethodGet, "/api/maps/level1/tiles/2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var tile struct {
		Data TileInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tile))
	assert.Equal(t, "terrain", tile.Data.Tileset)
	assert.Equal(t, 16, tile.Data.Rect.X)
	assert.Equal(t, 0, tile.Data.Rect.Y)

	// За концом единственного тайлсета: совместимый режим отдаёт его же, строгий отказывает
	w = f.do(t, http.MethodGet, "/api/maps/level1/tiles/5", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = f.do(t, http.MethodGet, "/api/maps/level1/tiles/5?strict=true", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = f.do(t, http.MethodGet, "/api/maps/level1/tiles/0", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	w = f.do(t, http.MethodGet, "/api/maps/level1/tiles/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = f.do(t, http.MethodGet, "/api/maps/missing/tiles/1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestImportEndpoint_ScansSourceDir(t *testing.T) {
	f := newAPIFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.src, "a.tmx"), []byte(testMap), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(f.src, "b.tmx"), []byte("<map"), 0o644))

	w := f.do(t, http.MethodPost, "/api/import", nil)
	assert.Equal(t, http.StatusMultiStatus, w.Code)

	var resp struct {
		Success bool                 `json:"success"`
		Data    importer.BatchReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, 1, resp.Data.Created)
	assert.Equal(t, 1, resp.Data.Failed)

	_, found, err := f.repo.Load(context.Background(), "assets/maps/a.asset")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestImportEndpoint_ExplicitPaths(t *testing.T) {
	f := newAPIFixture(t)
	p := filepath.Join(f.src, "only.tmx")
	require.NoError(t, os.WriteFile(p, []byte(testMap), 0o644))

	body, err := json.Marshal(ImportRequest{Paths: []string{p}})
	require.NoError(t, err)

	w := f.do(t, http.MethodPost, "/api/import", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode(t, w)["success"].(bool))

	w = f.do(t, http.MethodPost, "/api/import", []byte("{not json"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestImportEndpoint_RejectsPathsOutsideSourceDir(t *testing.T) {
	f := newAPIFixture(t)
	outside := filepath.Join(t.TempDir(), "elsewhere.tmx")
	require.NoError(t, os.WriteFile(outside, []byte(testMap), 0o644))

	for _, p := range []string{
		outside,
		filepath.Join(f.src, "..", "escape.tmx"),
		f.src,
	} {
		body, err := json.Marshal(ImportRequest{Paths: []string{p}})
		require.NoError(t, err)

		w := f.do(t, http.MethodPost, "/api/import", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, p)
	}

	// Файл вне каталога не тронут и не импортирован
	assert.FileExists(t, outside)
	keys, err := f.repo.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestImportEndpoint_DisabledWithoutImporter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	server := NewRestServer(Config{Repo: storage.NewAssetStore(storage.NewMemoryBackend(), nil)})

	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/import", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.do(t, http.MethodGet, "/api/maps", nil)

	w := f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "tmx_api_http_request_duration_seconds")
}
