// Package tmx читает подмножество формата карт Tiled (TMX) в промежуточную модель.
//
// Поддерживается только ортогональная ориентация, встроенные тайлсеты с одним
// изображением и данные слоёв в виде CSV. Всё остальное (изометрия, base64,
// сжатие, бесконечные карты, внешние .tsx) отвергается с UnsupportedFormat,
// а не разбирается наполовину.
package tmx

import (
	"strings"

	"github.com/annel0/tmx-importer/internal/vec"
)

// Orientation определяет ориентацию карты
type Orientation uint8

const (
	Orthogonal Orientation = iota
	Isometric
	Staggered
	Hexagonal
)

// String возвращает значение атрибута orientation
func (o Orientation) String() string {
	switch o {
	case Orthogonal:
		return "orthogonal"
	case Isometric:
		return "isometric"
	case Staggered:
		return "staggered"
	case Hexagonal:
		return "hexagonal"
	default:
		return "unknown"
	}
}

// ParseOrientation разбирает значение атрибута orientation без учёта регистра
func ParseOrientation(s string) (Orientation, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "orthogonal":
		return Orthogonal, true
	case "isometric":
		return Isometric, true
	case "staggered":
		return Staggered, true
	case "hexagonal":
		return Hexagonal, true
	default:
		return 0, false
	}
}

// Map - один разобранный TMX-документ
type Map struct {
	Orientation Orientation
	Version     string // Передаётся как есть

	Width, Height         int // Размер карты в клетках
	TileWidth, TileHeight int // Размер клетки в пикселях

	Tilesets []TilesetDecl // В порядке документа
	Layers   []LayerDecl   // В порядке документа, не пусто
}

// Size возвращает размер карты в клетках
func (m *Map) Size() vec.Vec2 {
	return vec.Vec2{X: m.Width, Y: m.Height}
}

// TileSize возвращает размер клетки в пикселях
func (m *Map) TileSize() vec.Vec2 {
	return vec.Vec2{X: m.TileWidth, Y: m.TileHeight}
}

// TilesetDecl - объявление встроенного тайлсета
type TilesetDecl struct {
	FirstGID   int
	Name       string
	TileWidth  int
	TileHeight int
	Image      ImageDecl
}

// ImageDecl - изображение тайлсета
type ImageDecl struct {
	Source string // Путь как записан в документе
	Width  int
	Height int
}

// LayerDecl - тайловый слой
type LayerDecl struct {
	Name       string
	Tiles      []int32 // row-major, len == Width*Height карты
	Properties []PropertyDecl
}

// PropertyDecl - пользовательское свойство слоя. Дубликаты ключей сохраняются.
type PropertyDecl struct {
	Name  string
	Value string
}
