package api

import (
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/annel0/tmx-importer/internal/asset"
	"github.com/annel0/tmx-importer/internal/atlas"
	"github.com/annel0/tmx-importer/internal/importerr"
	"github.com/annel0/tmx-importer/internal/tilemap"
	"github.com/annel0/tmx-importer/internal/vec"
)

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// MapSummary - элемент списка карт
type MapSummary struct {
	Name string `json:"name"`
	Key  string `json:"key"`
}

// LayerInfo описывает слой карты
type LayerInfo struct {
	Name       string             `json:"name"`
	Width      int                `json:"width"`
	Height     int                `json:"height"`
	Properties []tilemap.Property `json:"properties"`
	UsedTiles  int                `json:"used_tiles"`
}

// TilesetInfo описывает тайлсет атласа
type TilesetInfo struct {
	FirstGID  int    `json:"first_gid"`
	Name      string `json:"name"`
	TileSize  int    `json:"tile_size"`
	Image     string `json:"image"`
	TileCount int    `json:"tile_count"`
}

// MapInfo - подробное описание ассета карты
type MapInfo struct {
	Name         string        `json:"name"`
	Key          string        `json:"key"`
	Identity     int64         `json:"identity"`
	NeedsRefresh bool          `json:"needs_refresh"`
	Size         vec.Vec2      `json:"size"`
	LookupMode   string        `json:"lookup_mode"`
	Layers       []LayerInfo   `json:"layers"`
	Tilesets     []TilesetInfo `json:"tilesets"`
}

// TileInfo - результат разрешения GID
type TileInfo struct {
	GID     int      `json:"gid"`
	Tileset string   `json:"tileset"`
	Image   string   `json:"image"`
	Rect    vec.Rect `json:"rect"`
	Mode    string   `json:"mode"`
}

// ImportRequest - тело POST /api/import; пустой Paths означает сканирование каталога
type ImportRequest struct {
	Paths []string `json:"paths"`
}

func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"time":    time.Now().Unix(),
		"process": rs.metrics.Snapshot(),
	})
}

func (rs *RestServer) handleListMaps(c *gin.Context) {
	keys, err := rs.repo.List(c.Request.Context())
	if err != nil {
		rs.fail(c, http.StatusInternalServerError, "Не удалось получить список карт", err)
		return
	}

	maps := make([]MapSummary, 0, len(keys))
	for _, k := range keys {
		maps = append(maps, MapSummary{Name: rs.mapName(k), Key: k})
	}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Список карт получен",
		Data:    gin.H{"maps": maps, "total": len(maps)},
	})
}

func (rs *RestServer) handleGetMap(c *gin.Context) {
	key, a, ok := rs.loadMap(c)
	if !ok {
		return
	}

	info := MapInfo{
		Name:         c.Param("name"),
		Key:          key,
		Identity:     a.Identity(),
		NeedsRefresh: a.NeedsRefresh(),
		Size:         a.Size(),
		LookupMode:   a.Atlas().LookupMode().String(),
	}
	for _, g := range a.Tilemaps() {
		info.Layers = append(info.Layers, LayerInfo{
			Name:       g.Name(),
			Width:      g.Width(),
			Height:     g.Height(),
			Properties: g.Properties().All(),
			UsedTiles:  len(g.UsedGIDs()),
		})
	}
	for _, ts := range a.Atlas().Tilesets() {
		info.Tilesets = append(info.Tilesets, TilesetInfo{
			FirstGID:  ts.FirstGID(),
			Name:      ts.Name(),
			TileSize:  ts.TileSize(),
			Image:     ts.ImageName(),
			TileCount: ts.TileCount(),
		})
	}

	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Карта найдена", Data: info})
}

func (rs *RestServer) handleResolveTile(c *gin.Context) {
	gid, err := strconv.Atoi(c.Param("gid"))
	if err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "Неверный GID"})
		return
	}

	_, a, ok := rs.loadMap(c)
	if !ok {
		return
	}

	mode := a.Atlas().LookupMode()
	if strict, _ := strconv.ParseBool(c.Query("strict")); strict {
		mode = atlas.StrictLookup
	}

	ref, err := a.Atlas().ResolveWith(gid, mode)
	if errors.Is(err, importerr.ErrResolutionFailure) {
		rs.fail(c, http.StatusUnprocessableEntity, "GID не покрыт ни одним тайлсетом", err)
		return
	}
	if err != nil {
		rs.fail(c, http.StatusInternalServerError, "Ошибка разрешения GID", err)
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "GID разрешён",
		Data: TileInfo{
			GID:     gid,
			Tileset: ref.Tileset.Name(),
			Image:   ref.ImageName,
			Rect:    ref.Rect,
			Mode:    mode.String(),
		},
	})
}

func (rs *RestServer) handleImport(c *gin.Context) {
	if rs.importer == nil {
		c.JSON(http.StatusServiceUnavailable, GenericResponse{Success: false, Message: "Импорт отключён"})
		return
	}

	var req ImportRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			rs.fail(c, http.StatusBadRequest, "Неверный формат запроса", err)
			return
		}
	}

	ctx := c.Request.Context()
	paths := req.Paths
	for _, p := range paths {
		if !rs.inSourceDir(p) {
			c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "Путь вне каталога импорта: " + p})
			return
		}
	}
	if len(paths) == 0 {
		found, err := rs.importer.Pending(rs.sourceDir)
		if err != nil {
			rs.fail(c, http.StatusInternalServerError, "Не удалось просканировать каталог", err)
			return
		}
		paths = found
	}

	report := rs.importer.ProcessBatch(ctx, paths)
	status := http.StatusOK
	if !report.OK() {
		status = http.StatusMultiStatus
	}
	c.JSON(status, GenericResponse{Success: report.OK(), Message: "Импорт выполнен", Data: report})
}

// loadMap загружает ассет по имени из пути; при ошибке уже отправляет ответ
func (rs *RestServer) loadMap(c *gin.Context) (string, *asset.TmxAsset, bool) {
	key := rs.assetKey(c.Param("name"))
	a, found, err := rs.repo.Load(c.Request.Context(), key)
	if err != nil {
		rs.fail(c, http.StatusInternalServerError, "Не удалось загрузить карту", err)
		return key, nil, false
	}
	if !found {
		c.JSON(http.StatusNotFound, GenericResponse{Success: false, Message: "Карта не найдена"})
		return key, nil, false
	}
	return key, a, true
}

// inSourceDir сообщает, что p лежит внутри каталога импорта
func (rs *RestServer) inSourceDir(p string) bool {
	if rs.sourceDir == "" {
		return false
	}
	root, err := filepath.Abs(rs.sourceDir)
	if err != nil {
		return false
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (rs *RestServer) assetKey(name string) string {
	if rs.importer == nil {
		return name
	}
	return rs.importer.AssetKey(name)
}

func (rs *RestServer) mapName(key string) string {
	if rs.importer == nil {
		return key
	}
	return rs.importer.MapName(key)
}

func (rs *RestServer) fail(c *gin.Context, status int, message string, err error) {
	c.JSON(status, GenericResponse{Success: false, Message: message + ": " + err.Error()})
}
