// Package asset содержит TmxAsset - сохраняемый агрегат импортированной карты:
// слои, атлас тайлсетов и стабильный идентификатор, переживающий повторные импорты.
package asset

import (
	"encoding/binary"
	"sync"

	"github.com/annel0/tmx-importer/internal/atlas"
	"github.com/annel0/tmx-importer/internal/importerr"
	"github.com/annel0/tmx-importer/internal/tilemap"
	"github.com/annel0/tmx-importer/internal/vec"
	"github.com/google/uuid"
)

// AssetMerged - исходящее уведомление о слиянии свежих данных в существующий ассет
type AssetMerged struct {
	Identity int64
}

// newIdentity генерирует ненулевой непрозрачный идентификатор
var newIdentity = func() int64 {
	for {
		id := uuid.New()
		v := int64(binary.BigEndian.Uint64(id[:8]) &^ (1 << 63))
		if v != 0 {
			return v
		}
	}
}

// TmxAsset - импортированная карта.
//
// Жизненный цикл: New() создаёт пустой экземпляр, Initialize заполняет его и
// выдаёт identity, CopyFrom перезаполняет тот же экземпляр из свежего импорта,
// не меняя identity, и сигнализирует Changed.
type TmxAsset struct {
	mu sync.RWMutex

	tilemaps     []*tilemap.TilemapData
	atlas        *atlas.TilesetManager
	identity     int64
	needsRefresh bool

	listenersMu  sync.Mutex
	listeners    map[int]func()
	nextListener int
}

// New создаёт пустой, неинициализированный ассет
func New() *TmxAsset {
	return &TmxAsset{
		listeners: make(map[int]func()),
	}
}

// Initialize заполняет ассет слоями и атласом.
// Identity выдаётся только при первой инициализации экземпляра.
func (a *TmxAsset) Initialize(grids []*tilemap.TilemapData, tiles *atlas.TilesetManager) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.initializeLocked(grids, tiles)
}

func (a *TmxAsset) initializeLocked(grids []*tilemap.TilemapData, tiles *atlas.TilesetManager) error {
	const op = "initialize asset"

	if len(grids) == 0 {
		return importerr.New(importerr.MalformedDocument, op, "ассет должен содержать хотя бы один слой")
	}
	for i, g := range grids {
		if g == nil {
			return importerr.New(importerr.MalformedDocument, op, "слой #%d пуст", i)
		}
	}
	if tiles == nil {
		return importerr.New(importerr.MalformedDocument, op, "атлас тайлсетов не задан")
	}

	a.tilemaps = make([]*tilemap.TilemapData, len(grids))
	copy(a.tilemaps, grids)
	a.atlas = tiles

	if a.identity == 0 {
		a.identity = newIdentity()
	}
	return nil
}

// CopyFrom перезаполняет ассет данными other, сохраняя identity этого экземпляра.
// Выставляет NeedsRefresh и вызывает подписчиков OnChanged.
func (a *TmxAsset) CopyFrom(other *TmxAsset) (AssetMerged, error) {
	if other == nil {
		return AssetMerged{}, importerr.New(importerr.MalformedDocument, "merge asset", "источник слияния не задан")
	}

	// Снимок источника берём до захвата своей блокировки: other может совпадать с a
	grids, tiles := other.snapshot()
	if tiles != nil {
		copied := atlas.NewTilesetManager(tiles.Tilesets())
		copied.SetLookupMode(tiles.LookupMode())
		tiles = copied
	}

	a.mu.Lock()
	if err := a.initializeLocked(grids, tiles); err != nil {
		a.mu.Unlock()
		return AssetMerged{}, err
	}
	a.needsRefresh = true
	ev := AssetMerged{Identity: a.identity}
	a.mu.Unlock()

	a.notifyChanged()
	return ev, nil
}

func (a *TmxAsset) snapshot() ([]*tilemap.TilemapData, *atlas.TilesetManager) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	grids := make([]*tilemap.TilemapData, len(a.tilemaps))
	copy(grids, a.tilemaps)
	return grids, a.atlas
}

// OnChanged подписывает fn на сигнал изменения. Возвращает функцию отписки.
// Подписчики вызываются синхронно после каждого CopyFrom.
func (a *TmxAsset) OnChanged(fn func()) (unsubscribe func()) {
	a.listenersMu.Lock()
	defer a.listenersMu.Unlock()

	if a.listeners == nil {
		a.listeners = make(map[int]func())
	}
	id := a.nextListener
	a.nextListener++
	a.listeners[id] = fn

	return func() {
		a.listenersMu.Lock()
		delete(a.listeners, id)
		a.listenersMu.Unlock()
	}
}

func (a *TmxAsset) notifyChanged() {
	a.listenersMu.Lock()
	fns := make([]func(), 0, len(a.listeners))
	for _, fn := range a.listeners {
		fns = append(fns, fn)
	}
	a.listenersMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Identity возвращает непрозрачный идентификатор (0 до первой инициализации)
func (a *TmxAsset) Identity() int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.identity
}

// Initialized сообщает, был ли ассет заполнен
func (a *TmxAsset) Initialized() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.tilemaps) > 0
}

// NeedsRefresh сообщает потребителям, что данные обновились после слияния
func (a *TmxAsset) NeedsRefresh() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.needsRefresh
}

// ClearRefresh сбрасывает флаг после того, как потребитель перерисовал карту
func (a *TmxAsset) ClearRefresh() {
	a.mu.Lock()
	a.needsRefresh = false
	a.mu.Unlock()
}

// Tilemaps возвращает копию списка слоёв
func (a *TmxAsset) Tilemaps() []*tilemap.TilemapData {
	grids, _ := a.snapshot()
	return grids
}

// Tilemap возвращает первый слой с данным именем
func (a *TmxAsset) Tilemap(name string) (*tilemap.TilemapData, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, g := range a.tilemaps {
		if g.Name() == name {
			return g, true
		}
	}
	return nil, false
}

// Atlas возвращает атлас тайлсетов
func (a *TmxAsset) Atlas() *atlas.TilesetManager {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.atlas
}

// Size возвращает размер карты - размер первого слоя
func (a *TmxAsset) Size() vec.Vec2 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if len(a.tilemaps) == 0 {
		return vec.Vec2{}
	}
	return a.tilemaps[0].Size()
}

// Resolve разрешает GID через атлас ассета в его текущем режиме
func (a *TmxAsset) Resolve(gid int) (atlas.TileRef, error) {
	tiles := a.Atlas()
	if tiles == nil {
		return atlas.TileRef{}, importerr.New(importerr.ResolutionFailure, "resolve", "ассет не инициализирован")
	}
	return tiles.Resolve(gid)
}

// Equal - см. AreEqual
func (a *TmxAsset) Equal(other *TmxAsset) bool {
	return AreEqual(a, other)
}

// AreEqual сравнивает ассеты: число слоёв, размер карты и попарно размер, имя
// и тайлы каждого слоя. Свойства слоёв и атлас не сравниваются.
func AreEqual(a, b *TmxAsset) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a == b {
		return true
	}

	ga, _ := a.snapshot()
	gb, _ := b.snapshot()

	if len(ga) != len(gb) {
		return false
	}
	if len(ga) == 0 {
		return true
	}
	if ga[0].Size() != gb[0].Size() {
		return false
	}
	for i := range ga {
		if !ga[i].Equal(gb[i]) {
			return false
		}
	}
	return true
}
