package asset

import (
	"fmt"

	"github.com/annel0/tmx-importer/internal/atlas"
	"github.com/annel0/tmx-importer/internal/importerr"
	"github.com/annel0/tmx-importer/internal/tilemap"
)

// RecordVersion - версия схемы сохраняемой записи
const RecordVersion = 1

// Record - сохраняемое представление TmxAsset
type Record struct {
	Version      int             `json:"version" bson:"version"`
	Identity     int64           `json:"identity" bson:"identity"`
	NeedsRefresh bool            `json:"needs_refresh" bson:"needs_refresh"`
	LookupMode   uint8           `json:"lookup_mode" bson:"lookup_mode"`
	Tilemaps     []TilemapRecord `json:"tilemaps" bson:"tilemaps"`
	Tilesets     []TilesetRecord `json:"tilesets" bson:"tilesets"`
}

// TilemapRecord - сохраняемый слой
type TilemapRecord struct {
	Name       string             `json:"name" bson:"name"`
	Width      int                `json:"width" bson:"width"`
	Height     int                `json:"height" bson:"height"`
	Tiles      []int32            `json:"tiles" bson:"tiles"`
	Properties []tilemap.Property `json:"properties" bson:"properties"`
}

// TilesetRecord - сохраняемый тайлсет
type TilesetRecord struct {
	FirstGID    int    `json:"first_gid" bson:"first_gid"`
	Name        string `json:"name" bson:"name"`
	TileSize    int    `json:"tile_size" bson:"tile_size"`
	ImageName   string `json:"image_name" bson:"image_name"`
	ImageWidth  int    `json:"image_width" bson:"image_width"`
	ImageHeight int    `json:"image_height" bson:"image_height"`
}

// ToRecord снимает сохраняемое представление ассета
func (a *TmxAsset) ToRecord() Record {
	a.mu.RLock()
	defer a.mu.RUnlock()

	rec := Record{
		Version:      RecordVersion,
		Identity:     a.identity,
		NeedsRefresh: a.needsRefresh,
		Tilemaps:     make([]TilemapRecord, 0, len(a.tilemaps)),
	}

	for _, g := range a.tilemaps {
		rec.Tilemaps = append(rec.Tilemaps, TilemapRecord{
			Name:       g.Name(),
			Width:      g.Width(),
			Height:     g.Height(),
			Tiles:      g.Tiles(),
			Properties: g.Properties().All(),
		})
	}

	if a.atlas != nil {
		rec.LookupMode = uint8(a.atlas.LookupMode())
		tilesets := a.atlas.Tilesets()
		rec.Tilesets = make([]TilesetRecord, 0, len(tilesets))
		for _, ts := range tilesets {
			rec.Tilesets = append(rec.Tilesets, TilesetRecord{
				FirstGID:    ts.FirstGID(),
				Name:        ts.Name(),
				TileSize:    ts.TileSize(),
				ImageName:   ts.ImageName(),
				ImageWidth:  ts.ImageWidth(),
				ImageHeight: ts.ImageHeight(),
			})
		}
	}

	return rec
}

// FromRecord восстанавливает ассет из записи, сохраняя identity как есть
func FromRecord(rec Record) (*TmxAsset, error) {
	const op = "load asset record"

	if rec.Version != RecordVersion {
		return nil, importerr.New(importerr.MalformedDocument, op, "неизвестная версия записи %d", rec.Version)
	}
	if rec.Identity == 0 {
		return nil, importerr.New(importerr.MalformedDocument, op, "запись без identity")
	}

	tilesets := make([]*atlas.Tileset, 0, len(rec.Tilesets))
	for _, tr := range rec.Tilesets {
		ts, err := atlas.NewTileset(tr.FirstGID, tr.Name, tr.TileSize, tr.ImageName, tr.ImageWidth, tr.ImageHeight)
		if err != nil {
			return nil, fmt.Errorf("тайлсет %q: %w", tr.Name, err)
		}
		tilesets = append(tilesets, ts)
	}
	tiles := atlas.NewTilesetManager(tilesets)
	tiles.SetLookupMode(atlas.LookupMode(rec.LookupMode))

	grids := make([]*tilemap.TilemapData, 0, len(rec.Tilemaps))
	for _, mr := range rec.Tilemaps {
		g, err := tilemap.NewTilemapData(mr.Name, mr.Width, mr.Height, mr.Tiles, tilemap.NewProperties(mr.Properties...))
		if err != nil {
			return nil, fmt.Errorf("слой %q: %w", mr.Name, err)
		}
		grids = append(grids, g)
	}

	a := New()
	a.identity = rec.Identity
	if err := a.Initialize(grids, tiles); err != nil {
		return nil, err
	}
	a.needsRefresh = rec.NeedsRefresh
	return a, nil
}
