package tmx

import (
	"encoding/xml"
	"io"
	"strconv"
	"strings"
)

type xmlMap struct {
	XMLName     xml.Name     `xml:"map"`
	Version     string       `xml:"version,attr,omitempty"`
	Orientation string       `xml:"orientation,attr"`
	Width       int          `xml:"width,attr"`
	Height      int          `xml:"height,attr"`
	TileWidth   int          `xml:"tilewidth,attr"`
	TileHeight  int          `xml:"tileheight,attr"`
	Tilesets    []xmlTileset `xml:"tileset"`
	Layers      []xmlLayer   `xml:"layer"`
}

type xmlTileset struct {
	FirstGID   int      `xml:"firstgid,attr"`
	Name       string   `xml:"name,attr"`
	TileWidth  int      `xml:"tilewidth,attr"`
	TileHeight int      `xml:"tileheight,attr"`
	Image      xmlImage `xml:"image"`
}

type xmlImage struct {
	Source string `xml:"source,attr"`
	Width  int    `xml:"width,attr"`
	Height int    `xml:"height,attr"`
}

type xmlLayer struct {
	Name       string         `xml:"name,attr"`
	Width      int            `xml:"width,attr"`
	Height     int            `xml:"height,attr"`
	Properties *xmlProperties `xml:"properties,omitempty"`
	Data       xmlData        `xml:"data"`
}

type xmlProperties struct {
	Items []xmlProperty `xml:"property"`
}

type xmlProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type xmlData struct {
	Encoding string `xml:"encoding,attr"`
	Text     string `xml:",chardata"`
}

// Encode записывает карту обратно в TMX (CSV-данные) в том подмножестве,
// которое понимает Parse. Parse(Encode(m)) восстанавливает эквивалентную модель.
func Encode(w io.Writer, m *Map) error {
	doc := xmlMap{
		Version:     m.Version,
		Orientation: m.Orientation.String(),
		Width:       m.Width,
		Height:      m.Height,
		TileWidth:   m.TileWidth,
		TileHeight:  m.TileHeight,
		Tilesets:    make([]xmlTileset, 0, len(m.Tilesets)),
		Layers:      make([]xmlLayer, 0, len(m.Layers)),
	}

	for _, ts := range m.Tilesets {
		doc.Tilesets = append(doc.Tilesets, xmlTileset{
			FirstGID:   ts.FirstGID,
			Name:       ts.Name,
			TileWidth:  ts.TileWidth,
			TileHeight: ts.TileHeight,
			Image: xmlImage{
				Source: ts.Image.Source,
				Width:  ts.Image.Width,
				Height: ts.Image.Height,
			},
		})
	}

	for _, l := range m.Layers {
		layer := xmlLayer{
			Name:   l.Name,
			Width:  m.Width,
			Height: m.Height,
			Data: xmlData{
				Encoding: "csv",
				Text:     encodeCSV(l.Tiles, m.Width),
			},
		}
		if len(l.Properties) > 0 {
			layer.Properties = &xmlProperties{Items: make([]xmlProperty, 0, len(l.Properties))}
			for _, p := range l.Properties {
				layer.Properties.Items = append(layer.Properties.Items, xmlProperty{Name: p.Name, Value: p.Value})
			}
		}
		doc.Layers = append(doc.Layers, layer)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", " ")
	if err := enc.Encode(doc); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// encodeCSV пишет GID построчно, как это делает Tiled
func encodeCSV(tiles []int32, width int) string {
	var sb strings.Builder
	sb.WriteByte('\n')
	for i, gid := range tiles {
		sb.WriteString(strconv.FormatInt(int64(gid), 10))
		if i < len(tiles)-1 {
			sb.WriteByte(',')
		}
		if width > 0 && (i+1)%width == 0 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
