// Package tilemap содержит неизменяемый тайловый слой карты.
package tilemap

import (
	"math"

	"github.com/annel0/tmx-importer/internal/importerr"
	"github.com/annel0/tmx-importer/internal/vec"
)

// EmptyTile - GID пустой клетки
const EmptyTile int32 = 0

// MaxCells - верхняя граница width*height слоя
const MaxCells = math.MaxInt32

// TilemapData - именованный слой GID размером width*height (row-major) со списком свойств.
// После создания не изменяется; обновление - только созданием нового слоя.
type TilemapData struct {
	name       string
	width      int
	height     int
	tiles      []int32
	properties Properties
}

// NewTilemapData создаёт слой, копируя tiles и свойства
func NewTilemapData(name string, width, height int, tiles []int32, properties Properties) (*TilemapData, error) {
	const op = "tilemap"

	if width <= 0 || height <= 0 {
		return nil, importerr.New(importerr.InvalidGeometry, op, "размер слоя %q %dx%d должен быть положительным", name, width, height)
	}
	if width > MaxCells/height {
		return nil, importerr.New(importerr.InvalidGeometry, op, "размер слоя %q %dx%d превышает %d клеток", name, width, height, MaxCells)
	}
	if len(tiles) != width*height {
		return nil, importerr.New(importerr.MalformedDocument, op, "слой %q: %d тайлов вместо %d", name, len(tiles), width*height)
	}

	copied := make([]int32, len(tiles))
	copy(copied, tiles)

	return &TilemapData{
		name:       name,
		width:      width,
		height:     height,
		tiles:      copied,
		properties: NewProperties(properties.items...),
	}, nil
}

// Name возвращает имя слоя (пустая строка, если не задано)
func (t *TilemapData) Name() string {
	return t.name
}

func (t *TilemapData) Width() int {
	return t.width
}

func (t *TilemapData) Height() int {
	return t.height
}

// Size возвращает размер слоя в клетках
func (t *TilemapData) Size() vec.Vec2 {
	return vec.Vec2{X: t.width, Y: t.height}
}

// TileAt возвращает GID клетки (x, y); вне слоя - EmptyTile
func (t *TilemapData) TileAt(x, y int) int32 {
	size := t.Size()
	if !size.Contains(x, y) {
		return EmptyTile
	}
	return t.tiles[size.Index(x, y)]
}

// Tiles возвращает копию плоского массива GID
func (t *TilemapData) Tiles() []int32 {
	out := make([]int32, len(t.tiles))
	copy(out, t.tiles)
	return out
}

// Properties возвращает список свойств слоя
func (t *TilemapData) Properties() Properties {
	return NewProperties(t.properties.items...)
}

// HasProperty проверяет наличие свойства
func (t *TilemapData) HasProperty(key string) bool {
	return t.properties.Has(key)
}

// GetProperty возвращает значение первого свойства с ключом key
func (t *TilemapData) GetProperty(key string) (string, bool) {
	return t.properties.Get(key)
}

// Equal сравнивает размер, имя и тайлы. Свойства не сравниваются.
func (t *TilemapData) Equal(other *TilemapData) bool {
	if t == nil || other == nil {
		return t == other
	}
	if t.width != other.width || t.height != other.height || t.name != other.name {
		return false
	}
	if len(t.tiles) != len(other.tiles) {
		return false
	}
	for i := range t.tiles {
		if t.tiles[i] != other.tiles[i] {
			return false
		}
	}
	return true
}

// UsedGIDs возвращает множество непустых GID слоя
func (t *TilemapData) UsedGIDs() map[int32]struct{} {
	used := make(map[int32]struct{})
	for _, gid := range t.tiles {
		if gid != EmptyTile {
			used[gid] = struct{}{}
		}
	}
	return used
}
