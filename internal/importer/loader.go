// Package importer связывает разбор TMX, построение ассета и его сохранение
// в единый конвейер импорта с архивированием исходных файлов.
package importer

import (
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/annel0/tmx-importer/internal/asset"
	"github.com/annel0/tmx-importer/internal/atlas"
	"github.com/annel0/tmx-importer/internal/tilemap"
	"github.com/annel0/tmx-importer/internal/tmx"
)

// Loader строит TmxAsset из TMX-документа
type Loader struct {
	mode atlas.LookupMode
}

// NewLoader создаёт загрузчик; mode задаётся атласу каждого построенного ассета
func NewLoader(mode atlas.LookupMode) *Loader {
	return &Loader{mode: mode}
}

// Load разбирает документ и возвращает инициализированный ассет
func (l *Loader) Load(r io.Reader) (*asset.TmxAsset, error) {
	m, err := tmx.Parse(r)
	if err != nil {
		return nil, err
	}
	return l.Build(m)
}

// LoadFile - Load для файла на диске
func (l *Loader) LoadFile(p string) (*asset.TmxAsset, error) {
	m, err := tmx.ParseFile(p)
	if err != nil {
		return nil, err
	}
	return l.Build(m)
}

// Build превращает разобранную модель в ассет.
// Ошибки геометрии возникают до создания ассета, частичный результат не возвращается.
func (l *Loader) Build(m *tmx.Map) (*asset.TmxAsset, error) {
	tilesets := make([]*atlas.Tileset, 0, len(m.Tilesets))
	for _, decl := range m.Tilesets {
		ts, err := atlas.NewTileset(decl.FirstGID, decl.Name, decl.TileWidth,
			ImageName(decl.Image.Source), decl.Image.Width, decl.Image.Height)
		if err != nil {
			return nil, fmt.Errorf("тайлсет %q: %w", decl.Name, err)
		}
		tilesets = append(tilesets, ts)
	}
	tiles := atlas.NewTilesetManager(tilesets)
	tiles.SetLookupMode(l.mode)

	grids := make([]*tilemap.TilemapData, 0, len(m.Layers))
	for _, layer := range m.Layers {
		var props tilemap.Properties
		for _, p := range layer.Properties {
			props.Add(p.Name, p.Value)
		}
		grid, err := tilemap.NewTilemapData(layer.Name, m.Width, m.Height, layer.Tiles, props)
		if err != nil {
			return nil, fmt.Errorf("слой %q: %w", layer.Name, err)
		}
		grids = append(grids, grid)
	}

	a := asset.New()
	if err := a.Initialize(grids, tiles); err != nil {
		return nil, err
	}
	return a, nil
}

// ImageName возвращает логическое имя изображения: базовое имя source без расширения.
// Разделители путей Windows тоже учитываются.
func ImageName(source string) string {
	base := path.Base(strings.ReplaceAll(source, "\\", "/"))
	return strings.TrimSuffix(base, path.Ext(base))
}
