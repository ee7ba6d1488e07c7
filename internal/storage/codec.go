package storage

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/annel0/tmx-importer/internal/asset"
	"github.com/klauspost/compress/zstd"
)

// Codec сериализует записи ассетов для Backend
type Codec interface {
	Encode(rec asset.Record) ([]byte, error)
	Decode(data []byte) (asset.Record, error)
}

// JSONCodec хранит записи как JSON
type JSONCodec struct{}

func (JSONCodec) Encode(rec asset.Record) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации ассета: %w", err)
	}
	return data, nil
}

func (JSONCodec) Decode(data []byte) (asset.Record, error) {
	var rec asset.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return asset.Record{}, fmt.Errorf("ошибка десериализации ассета: %w", err)
	}
	return rec, nil
}

// zstdMagic - первые байты кадра zstd
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// CompressedCodec хранит JSON, сжатый zstd.
// Несжатые записи (например, сохранённые до включения сжатия) читаются как есть.
type CompressedCodec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewCompressedCodec создаёт кодек со скоростью сжатия по умолчанию
func NewCompressedCodec() (*CompressedCodec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &CompressedCodec{encoder: enc, decoder: dec}, nil
}

func (c *CompressedCodec) Encode(rec asset.Record) ([]byte, error) {
	raw, err := JSONCodec{}.Encode(rec)
	if err != nil {
		return nil, err
	}
	return c.encoder.EncodeAll(raw, make([]byte, 0, len(raw)/2)), nil
}

func (c *CompressedCodec) Decode(data []byte) (asset.Record, error) {
	if !bytes.HasPrefix(data, zstdMagic) {
		return JSONCodec{}.Decode(data)
	}
	raw, err := c.decoder.DecodeAll(data, nil)
	if err != nil {
		return asset.Record{}, fmt.Errorf("ошибка распаковки ассета: %w", err)
	}
	return JSONCodec{}.Decode(raw)
}

// Close освобождает ресурсы кодера и декодера
func (c *CompressedCodec) Close() {
	c.encoder.Close()
	c.decoder.Close()
}
