package tmx

import (
	"encoding/xml"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/annel0/tmx-importer/internal/importerr"
)

// Биты отражения/поворота в старших разрядах GID
const (
	FlipHorizontal uint32 = 0x80000000
	FlipVertical   uint32 = 0x40000000
	FlipDiagonal   uint32 = 0x20000000

	flipMask = FlipHorizontal | FlipVertical | FlipDiagonal
)

// MaxCells - верхняя граница width*height карты
const MaxCells = math.MaxInt32

type rawMap struct {
	XMLName  xml.Name     `xml:"map"`
	Attrs    []xml.Attr   `xml:",any,attr"`
	Tilesets []rawTileset `xml:"tileset"`
	Layers   []rawLayer   `xml:"layer"`
	Groups   []struct{}   `xml:"group"`
}

type rawTileset struct {
	Attrs  []xml.Attr `xml:",any,attr"`
	Images []rawImage `xml:"image"`
}

type rawImage struct {
	Attrs []xml.Attr `xml:",any,attr"`
}

type rawLayer struct {
	Attrs      []xml.Attr     `xml:",any,attr"`
	Properties *rawProperties `xml:"properties"`
	Data       *rawData       `xml:"data"`
}

type rawProperties struct {
	Items []rawProperty `xml:"property"`
}

type rawProperty struct {
	Attrs []xml.Attr `xml:",any,attr"`
	Text  string     `xml:",chardata"`
}

type rawData struct {
	Attrs  []xml.Attr `xml:",any,attr"`
	Tiles  []struct{} `xml:"tile"`
	Chunks []struct{} `xml:"chunk"`
	Text   string     `xml:",chardata"`
}

// attrSet - доступ к атрибутам элемента по имени
type attrSet []xml.Attr

func (a attrSet) lookup(name string) (string, bool) {
	for _, at := range a {
		if at.Name.Local == name {
			return at.Value, true
		}
	}
	return "", false
}

func (a attrSet) str(name string) string {
	v, _ := a.lookup(name)
	return v
}

// requireInt читает обязательный целочисленный атрибут
func (a attrSet) requireInt(op, name string) (int, error) {
	v, ok := a.lookup(name)
	if !ok {
		return 0, importerr.New(importerr.MalformedDocument, op, "отсутствует атрибут %q", name)
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, importerr.New(importerr.MalformedDocument, op, "атрибут %q=%q не является целым числом", name, v)
	}
	return n, nil
}

// optionalInt читает необязательный целочисленный атрибут, def если атрибута нет
func (a attrSet) optionalInt(op, name string, def int) (int, error) {
	if _, ok := a.lookup(name); !ok {
		return def, nil
	}
	return a.requireInt(op, name)
}

// requirePositive читает обязательный атрибут, который должен быть > 0
func (a attrSet) requirePositive(op, name string) (int, error) {
	n, err := a.requireInt(op, name)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, importerr.New(importerr.InvalidGeometry, op, "%s=%d должно быть положительным", name, n)
	}
	return n, nil
}

// ParseFile открывает и разбирает TMX-файл
func ParseFile(path string) (*Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, importerr.Wrap(importerr.IOFailure, "open "+path, err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse разбирает TMX-документ. Порядок тайлсетов и слоёв в результате
// совпадает с порядком в документе.
func Parse(r io.Reader) (*Map, error) {
	var raw rawMap
	if err := xml.NewDecoder(r).Decode(&raw); err != nil {
		return nil, importerr.Wrap(importerr.MalformedDocument, "decode map", err)
	}

	m, err := parseMapAttrs(attrSet(raw.Attrs))
	if err != nil {
		return nil, err
	}

	if len(raw.Groups) > 0 {
		return nil, importerr.New(importerr.UnsupportedFormat, "map", "группы слоёв не поддерживаются")
	}

	m.Tilesets = make([]TilesetDecl, 0, len(raw.Tilesets))
	for i := range raw.Tilesets {
		ts, err := parseTileset(&raw.Tilesets[i], i)
		if err != nil {
			return nil, err
		}
		m.Tilesets = append(m.Tilesets, ts)
	}

	if len(raw.Layers) == 0 {
		return nil, importerr.New(importerr.MalformedDocument, "map", "карта не содержит тайловых слоёв")
	}

	m.Layers = make([]LayerDecl, 0, len(raw.Layers))
	for i := range raw.Layers {
		layer, err := parseLayer(&raw.Layers[i], i, m.Width*m.Height)
		if err != nil {
			return nil, err
		}
		m.Layers = append(m.Layers, layer)
	}

	return m, nil
}

func parseMapAttrs(a attrSet) (*Map, error) {
	const op = "map"

	orientation, ok := a.lookup("orientation")
	if !ok {
		return nil, importerr.New(importerr.MalformedDocument, op, "отсутствует атрибут %q", "orientation")
	}
	o, known := ParseOrientation(orientation)
	if !known || o != Orthogonal {
		return nil, importerr.New(importerr.UnsupportedFormat, op, "ориентация %q не поддерживается, только orthogonal", orientation)
	}

	infinite, err := a.optionalInt(op, "infinite", 0)
	if err != nil {
		return nil, err
	}
	if infinite != 0 {
		return nil, importerr.New(importerr.UnsupportedFormat, op, "бесконечные карты не поддерживаются")
	}

	m := &Map{Orientation: o, Version: a.str("version")}
	if m.Width, err = a.requirePositive(op, "width"); err != nil {
		return nil, err
	}
	if m.Height, err = a.requirePositive(op, "height"); err != nil {
		return nil, err
	}
	if m.Width > MaxCells/m.Height {
		return nil, importerr.New(importerr.InvalidGeometry, op, "размер карты %dx%d превышает %d клеток", m.Width, m.Height, MaxCells)
	}
	if m.TileWidth, err = a.requirePositive(op, "tilewidth"); err != nil {
		return nil, err
	}
	if m.TileHeight, err = a.requirePositive(op, "tileheight"); err != nil {
		return nil, err
	}
	return m, nil
}

func parseTileset(raw *rawTileset, index int) (TilesetDecl, error) {
	a := attrSet(raw.Attrs)
	op := "tileset #" + strconv.Itoa(index)
	if name := a.str("name"); name != "" {
		op = "tileset " + strconv.Quote(name)
	}

	if src, ok := a.lookup("source"); ok {
		return TilesetDecl{}, importerr.New(importerr.UnsupportedFormat, op, "внешние тайлсеты (%s) не поддерживаются", src)
	}

	var (
		ts  = TilesetDecl{Name: a.str("name")}
		err error
	)
	if ts.FirstGID, err = a.requireInt(op, "firstgid"); err != nil {
		return ts, err
	}
	if ts.FirstGID < 1 {
		return ts, importerr.New(importerr.MalformedDocument, op, "firstgid=%d должен быть >= 1", ts.FirstGID)
	}
	if ts.TileWidth, err = a.requirePositive(op, "tilewidth"); err != nil {
		return ts, err
	}
	if ts.TileHeight, err = a.requirePositive(op, "tileheight"); err != nil {
		return ts, err
	}
	if ts.TileWidth != ts.TileHeight {
		return ts, importerr.New(importerr.InvalidGeometry, op, "тайлы должны быть квадратными, получено %dx%d", ts.TileWidth, ts.TileHeight)
	}

	// Отступы между тайлами ломают равномерную нарезку атласа
	for _, name := range []string{"spacing", "margin"} {
		v, err := a.optionalInt(op, name, 0)
		if err != nil {
			return ts, err
		}
		if v != 0 {
			return ts, importerr.New(importerr.UnsupportedFormat, op, "%s=%d не поддерживается", name, v)
		}
	}

	if len(raw.Images) == 0 {
		return ts, importerr.New(importerr.UnsupportedFormat, op, "тайлсет без изображения (коллекция изображений) не поддерживается")
	}

	// Читаем только первое изображение
	img := attrSet(raw.Images[0].Attrs)
	ts.Image.Source = strings.TrimSpace(img.str("source"))
	if ts.Image.Source == "" {
		return ts, importerr.New(importerr.MalformedDocument, op, "у изображения отсутствует source")
	}
	if ts.Image.Width, err = img.requirePositive(op+" image", "width"); err != nil {
		return ts, err
	}
	if ts.Image.Height, err = img.requirePositive(op+" image", "height"); err != nil {
		return ts, err
	}

	return ts, nil
}

func parseLayer(raw *rawLayer, index int, cells int) (LayerDecl, error) {
	a := attrSet(raw.Attrs)
	layer := LayerDecl{Name: a.str("name")}
	op := "layer #" + strconv.Itoa(index)
	if layer.Name != "" {
		op = "layer " + strconv.Quote(layer.Name)
	}

	if raw.Properties != nil {
		layer.Properties = make([]PropertyDecl, 0, len(raw.Properties.Items))
		for _, p := range raw.Properties.Items {
			pa := attrSet(p.Attrs)
			name, ok := pa.lookup("name")
			if !ok {
				return layer, importerr.New(importerr.MalformedDocument, op, "у свойства отсутствует name")
			}
			// Многострочные значения Tiled пишет текстом элемента
			value, ok := pa.lookup("value")
			if !ok {
				value = p.Text
			}
			layer.Properties = append(layer.Properties, PropertyDecl{Name: name, Value: value})
		}
	}

	if raw.Data == nil {
		return layer, importerr.New(importerr.MalformedDocument, op, "отсутствует элемент data")
	}

	tiles, err := decodeData(raw.Data, op)
	if err != nil {
		return layer, err
	}
	if len(tiles) != cells {
		return layer, importerr.New(importerr.MalformedDocument, op, "число тайлов %d не совпадает с размером карты %d", len(tiles), cells)
	}
	layer.Tiles = tiles

	return layer, nil
}

// decodeData разбирает CSV-список GID. Любая другая кодировка - ошибка.
func decodeData(d *rawData, op string) ([]int32, error) {
	a := attrSet(d.Attrs)

	switch enc := a.str("encoding"); enc {
	case "", "csv":
	default:
		return nil, importerr.New(importerr.UnsupportedFormat, op, "кодировка данных %q не поддерживается", enc)
	}
	if c := a.str("compression"); c != "" {
		return nil, importerr.New(importerr.UnsupportedFormat, op, "сжатие данных %q не поддерживается", c)
	}
	if len(d.Chunks) > 0 {
		return nil, importerr.New(importerr.UnsupportedFormat, op, "данные чанками (бесконечные карты) не поддерживаются")
	}
	if len(d.Tiles) > 0 {
		return nil, importerr.New(importerr.UnsupportedFormat, op, "XML-кодировка тайлов не поддерживается")
	}

	text := strings.TrimSpace(d.Text)
	if text == "" {
		return []int32{}, nil
	}

	fields := strings.Split(text, ",")
	tiles := make([]int32, 0, len(fields))
	for i, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			return nil, importerr.New(importerr.MalformedDocument, op, "пустое значение на позиции %d", i)
		}
		v, err := strconv.ParseUint(f, 10, 32)
		if err != nil {
			return nil, importerr.New(importerr.MalformedDocument, op, "значение %q на позиции %d не является GID", f, i)
		}
		gid := uint32(v)
		if gid&flipMask != 0 {
			return nil, importerr.New(importerr.UnsupportedFormat, op, "отражённые/повёрнутые тайлы не поддерживаются (позиция %d)", i)
		}
		tiles = append(tiles, int32(gid))
	}

	return tiles, nil
}
