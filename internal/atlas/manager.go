// Package atlas сопоставляет глобальный идентификатор тайла (GID)
// конкретному прямоугольнику в изображении одного из тайлсетов карты.
package atlas

import (
	"sort"

	"github.com/annel0/tmx-importer/internal/importerr"
	"github.com/annel0/tmx-importer/internal/vec"
)

// LookupMode определяет политику поиска тайлсета по GID
type LookupMode uint8

const (
	// CompatibleLookup берёт тайлсет с наибольшим FirstGID <= gid и не проверяет
	// верхнюю границу диапазона. GID за пределами последнего тайлсета молча
	// приписывается ему же.
	CompatibleLookup LookupMode = iota
	// StrictLookup дополнительно требует gid < FirstGID+TileCount
	StrictLookup
)

// String возвращает имя режима
func (m LookupMode) String() string {
	switch m {
	case CompatibleLookup:
		return "compatible"
	case StrictLookup:
		return "strict"
	default:
		return "unknown"
	}
}

// TileRef - результат разрешения GID
type TileRef struct {
	Tileset   *Tileset
	ImageName string
	Rect      vec.Rect
}

// TilesetManager хранит тайлсеты карты, отсортированные по FirstGID
type TilesetManager struct {
	tilesets []*Tileset
	mode     LookupMode
}

// NewTilesetManager создаёт атлас из тайлсетов в любом порядке.
// Режим поиска по умолчанию - CompatibleLookup.
func NewTilesetManager(tilesets []*Tileset) *TilesetManager {
	sorted := make([]*Tileset, 0, len(tilesets))
	for _, ts := range tilesets {
		if ts != nil {
			sorted = append(sorted, ts)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].firstGID < sorted[j].firstGID
	})

	return &TilesetManager{tilesets: sorted}
}

// SetLookupMode задаёт режим, используемый Resolve
func (m *TilesetManager) SetLookupMode(mode LookupMode) {
	m.mode = mode
}

// LookupMode возвращает текущий режим поиска
func (m *TilesetManager) LookupMode() LookupMode {
	return m.mode
}

// Tilesets возвращает копию списка тайлсетов по возрастанию FirstGID
func (m *TilesetManager) Tilesets() []*Tileset {
	out := make([]*Tileset, len(m.tilesets))
	copy(out, m.tilesets)
	return out
}

// Len возвращает число тайлсетов
func (m *TilesetManager) Len() int {
	return len(m.tilesets)
}

// FindTileset возвращает тайлсет, которому принадлежит gid.
// GID 0 означает пустую клетку и не может быть разрешён.
func (m *TilesetManager) FindTileset(gid int, mode LookupMode) (*Tileset, error) {
	const op = "resolve"

	if gid <= 0 {
		return nil, importerr.New(importerr.ResolutionFailure, op, "GID %d не указывает на тайл", gid)
	}
	if len(m.tilesets) == 0 {
		return nil, importerr.New(importerr.ResolutionFailure, op, "атлас пуст, GID %d не разрешается", gid)
	}

	// Идём от наибольшего FirstGID: первый тайлсет с нижней границей <= gid
	for i := len(m.tilesets) - 1; i >= 0; i-- {
		ts := m.tilesets[i]
		if gid < ts.firstGID {
			continue
		}
		if mode == StrictLookup && !ts.Contains(gid) {
			return nil, importerr.New(importerr.ResolutionFailure, op,
				"GID %d вне диапазона тайлсета %q [%d, %d)", gid, ts.name, ts.firstGID, ts.firstGID+ts.TileCount())
		}
		return ts, nil
	}

	return nil, importerr.New(importerr.ResolutionFailure, op,
		"GID %d меньше FirstGID первого тайлсета (%d)", gid, m.tilesets[0].firstGID)
}

// Resolve разрешает gid в режиме, заданном SetLookupMode
func (m *TilesetManager) Resolve(gid int) (TileRef, error) {
	return m.ResolveWith(gid, m.mode)
}

// ResolveWith разрешает gid в имя изображения и прямоугольник в нём
func (m *TilesetManager) ResolveWith(gid int, mode LookupMode) (TileRef, error) {
	ts, err := m.FindTileset(gid, mode)
	if err != nil {
		return TileRef{}, err
	}
	return TileRef{
		Tileset:   ts,
		ImageName: ts.imageName,
		Rect:      ts.SourceRect(gid),
	}, nil
}

// Equal сравнивает списки тайлсетов поэлементно
func (m *TilesetManager) Equal(other *TilesetManager) bool {
	if m == nil || other == nil {
		return m == other
	}
	if len(m.tilesets) != len(other.tilesets) {
		return false
	}
	for i := range m.tilesets {
		if !m.tilesets[i].Equal(other.tilesets[i]) {
			return false
		}
	}
	return true
}
