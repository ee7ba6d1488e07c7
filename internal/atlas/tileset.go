package atlas

import (
	"github.com/annel0/tmx-importer/internal/importerr"
	"github.com/annel0/tmx-importer/internal/vec"
)

// Tileset - одно изображение, нарезанное на равномерную сетку квадратных тайлов.
// Покрывает диапазон GID [FirstGID, FirstGID+TileCount()).
type Tileset struct {
	firstGID    int
	name        string
	tileSize    int
	imageName   string
	imageWidth  int
	imageHeight int
}

// NewTileset создаёт тайлсет, проверяя геометрию.
// imageName - логическое имя изображения атласа, а не путь к файлу.
func NewTileset(firstGID int, name string, tileSize int, imageName string, imageWidth, imageHeight int) (*Tileset, error) {
	const op = "tileset"

	if firstGID < 1 {
		return nil, importerr.New(importerr.InvalidGeometry, op, "firstGID=%d должен быть >= 1", firstGID)
	}
	if tileSize <= 0 {
		return nil, importerr.New(importerr.InvalidGeometry, op, "размер тайла %d должен быть положительным", tileSize)
	}
	if imageWidth <= 0 || imageHeight <= 0 {
		return nil, importerr.New(importerr.InvalidGeometry, op, "размер изображения %dx%d должен быть положительным", imageWidth, imageHeight)
	}
	if imageWidth%tileSize != 0 {
		return nil, importerr.New(importerr.InvalidGeometry, op, "ширина изображения %d не кратна размеру тайла %d", imageWidth, tileSize)
	}
	if imageHeight%tileSize != 0 {
		return nil, importerr.New(importerr.InvalidGeometry, op, "высота изображения %d не кратна размеру тайла %d", imageHeight, tileSize)
	}

	return &Tileset{
		firstGID:    firstGID,
		name:        name,
		tileSize:    tileSize,
		imageName:   imageName,
		imageWidth:  imageWidth,
		imageHeight: imageHeight,
	}, nil
}

func (ts *Tileset) FirstGID() int { return ts.firstGID }
func (ts *Tileset) Name() string { return ts.name }
func (ts *Tileset) TileSize() int { return ts.tileSize }
func (ts *Tileset) ImageName() string { return ts.imageName }
func (ts *Tileset) ImageWidth() int { return ts.imageWidth }
func (ts *Tileset) ImageHeight() int { return ts.imageHeight }

// TilesPerRow возвращает число тайлов в строке изображения
func (ts *Tileset) TilesPerRow() int {
	return ts.imageWidth / ts.tileSize
}

// TilesPerColumn возвращает число тайлов в столбце изображения
func (ts *Tileset) TilesPerColumn() int {
	return ts.imageHeight / ts.tileSize
}

// TileCount возвращает общее число тайлов
func (ts *Tileset) TileCount() int {
	return ts.TilesPerRow() * ts.TilesPerColumn()
}

// Contains проверяет, что gid лежит в диапазоне тайлсета
func (ts *Tileset) Contains(gid int) bool {
	return gid >= ts.firstGID && gid < ts.firstGID+ts.TileCount()
}

// SourceRect вычисляет прямоугольник тайла в пикселях изображения.
// Границу диапазона не проверяет: это делает TilesetManager в строгом режиме.
func (ts *Tileset) SourceRect(gid int) vec.Rect {
	local := gid - ts.firstGID
	perRow := ts.TilesPerRow()
	col := local % perRow
	row := local / perRow
	return vec.Rect{
		X:      col * ts.tileSize,
		Y:      row * ts.tileSize,
		Width:  ts.tileSize,
		Height: ts.tileSize,
	}
}

// Equal сравнивает все поля тайлсетов
func (ts *Tileset) Equal(other *Tileset) bool {
	if ts == nil || other == nil {
		return ts == other
	}
	return *ts == *other
}
