package atlas

import (
	"testing"

	"github.com/annel0/tmx-importer/internal/importerr"
	"github.com/annel0/tmx-importer/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTileset(t *testing.T, firstGID int, name string, tileSize, w, h int) *Tileset {
	t.Helper()
	ts, err := NewTileset(firstGID, name, tileSize, name, w, h)
	require.NoError(t, err)
	return ts
}

func TestNewTileset_DerivedCounts(t *testing.T) {
	ts := mustTileset(t, 1, "terrain", 16, 64, 32)

	assert.Equal(t, 4, ts.TilesPerRow())
	assert.Equal(t, 2, ts.TilesPerColumn())
	assert.Equal(t, 8, ts.TileCount())
	assert.True(t, ts.Contains(1))
	assert.True(t, ts.Contains(8))
	assert.False(t, ts.Contains(9))
	assert.False(t, ts.Contains(0))
}

func TestNewTileset_InvalidGeometry(t *testing.T) {
	cases := []struct {
		name           string
		firstGID, size int
		w, h           int
	}{
		{"width not divisible", 1, 16, 50, 32},
		{"height not divisible", 1, 16, 64, 33},
		{"zero tile size", 1, 0, 64, 32},
		{"negative image", 1, 16, -16, 32},
		{"zero first gid", 0, 16, 64, 32},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts, err := NewTileset(tc.firstGID, "bad", tc.size, "bad", tc.w, tc.h)
			assert.Nil(t, ts)
			assert.ErrorIs(t, err, importerr.ErrInvalidGeometry)
		})
	}
}

func TestResolve_RectangleCorrectness(t *testing.T) {
	m := NewTilesetManager([]*Tileset{mustTileset(t, 1, "terrain", 16, 64, 32)})

	expected := map[int]vec.Rect{
		1: {X: 0, Y: 0, Width: 16, Height: 16},
		4: {X: 48, Y: 0, Width: 16, Height: 16},
		5: {X: 0, Y: 16, Width: 16, Height: 16},
		8: {X: 48, Y: 16, Width: 16, Height: 16},
	}
	for gid, rect := range expected {
		ref, err := m.Resolve(gid)
		require.NoError(t, err, "gid %d", gid)
		assert.Equal(t, "terrain", ref.ImageName)
		assert.Equal(t, rect, ref.Rect, "gid %d", gid)
	}
}

func TestResolve_RangePartition(t *testing.T) {
	// Передаём не по порядку: атлас сам сортирует по FirstGID
	a := mustTileset(t, 1, "a", 16, 64, 32) // 1..8
	c := mustTileset(t, 13, "c", 8, 16, 16) // 13..16
	b := mustTileset(t, 9, "b", 32, 64, 64) // 9..12
	m := NewTilesetManager([]*Tileset{c, a, b})

	sorted := m.Tilesets()
	require.Len(t, sorted, 3)
	assert.Equal(t, []int{1, 9, 13}, []int{sorted[0].FirstGID(), sorted[1].FirstGID(), sorted[2].FirstGID()})

	for _, mode := range []LookupMode{CompatibleLookup, StrictLookup} {
		for _, ts := range sorted {
			for gid := ts.FirstGID(); gid < ts.FirstGID()+ts.TileCount(); gid++ {
				found, err := m.FindTileset(gid, mode)
				require.NoError(t, err)
				assert.Same(t, ts, found, "gid %d, режим %s", gid, mode)
			}
		}
	}

	// Локальный индекс считается от FirstGID своего тайлсета
	ref, err := m.Resolve(10)
	require.NoError(t, err)
	assert.Equal(t, "b", ref.ImageName)
	assert.Equal(t, vec.Rect{X: 32, Y: 0, Width: 32, Height: 32}, ref.Rect)
}

func TestResolve_CompatibleVersusStrict(t *testing.T) {
	m := NewTilesetManager([]*Tileset{
		mustTileset(t, 1, "a", 16, 32, 16), // 1..2
		mustTileset(t, 5, "b", 16, 32, 16), // 5..6, дыра 3..4
	})

	// Совместимый режим: дыра и хвост приписываются предыдущему тайлсету
	ts, err := m.FindTileset(3, CompatibleLookup)
	require.NoError(t, err)
	assert.Equal(t, "a", ts.Name())

	ts, err = m.FindTileset(100, CompatibleLookup)
	require.NoError(t, err)
	assert.Equal(t, "b", ts.Name())

	// Строгий режим отвергает оба случая
	_, err = m.FindTileset(3, StrictLookup)
	assert.ErrorIs(t, err, importerr.ErrResolutionFailure)
	_, err = m.FindTileset(100, StrictLookup)
	assert.ErrorIs(t, err, importerr.ErrResolutionFailure)

	// Режим по умолчанию - совместимый, переключается SetLookupMode
	assert.Equal(t, CompatibleLookup, m.LookupMode())
	_, err = m.Resolve(100)
	assert.NoError(t, err)
	m.SetLookupMode(StrictLookup)
	_, err = m.Resolve(100)
	assert.ErrorIs(t, err, importerr.ErrResolutionFailure)
}

func TestResolve_PreconditionViolations(t *testing.T) {
	empty := NewTilesetManager(nil)
	_, err := empty.Resolve(1)
	assert.ErrorIs(t, err, importerr.ErrResolutionFailure)

	m := NewTilesetManager([]*Tileset{mustTileset(t, 10, "late", 16, 16, 16)})
	_, err = m.Resolve(0)
	assert.ErrorIs(t, err, importerr.ErrResolutionFailure, "GID 0 - пустая клетка")
	_, err = m.Resolve(-3)
	assert.ErrorIs(t, err, importerr.ErrResolutionFailure)
	_, err = m.Resolve(9)
	assert.ErrorIs(t, err, importerr.ErrResolutionFailure, "GID ниже всех FirstGID")
}

func TestTilesetManager_Equal(t *testing.T) {
	a := NewTilesetManager([]*Tileset{mustTileset(t, 1, "a", 16, 32, 16)})
	b := NewTilesetManager([]*Tileset{mustTileset(t, 1, "a", 16, 32, 16)})
	c := NewTilesetManager([]*Tileset{mustTileset(t, 1, "a", 16, 64, 16)})

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(nil))
}
