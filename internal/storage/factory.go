package storage

import (
	"context"
	"fmt"

	"github.com/annel0/tmx-importer/internal/config"
	"github.com/annel0/tmx-importer/internal/logging"
)

// OpenBackend создаёт бэкенд по конфигурации
func OpenBackend(ctx context.Context, cfg config.StorageConfig) (Backend, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return NewMemoryBackend(), nil
	case config.BackendFile:
		return NewFileBackend(cfg.Path)
	case config.BackendBadger:
		return NewBadgerBackend(cfg.Path)
	case config.BackendMaria:
		return NewMariaBackend(ctx, cfg.GetMariaDSN())
	case config.BackendMongo:
		return NewMongoBackend(ctx, MongoConfig{
			URI:        cfg.Mongo.URI,
			Database:   cfg.Mongo.Database,
			Collection: cfg.Mongo.Collection,
		})
	case config.BackendRedis:
		return NewRedisBackend(ctx, RedisConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
	default:
		return nil, fmt.Errorf("неизвестный бэкенд хранилища %q", cfg.Backend)
	}
}

// Open создаёт AssetStore поверх бэкенда из конфигурации
func Open(ctx context.Context, cfg config.StorageConfig) (*AssetStore, error) {
	backend, err := OpenBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var codec Codec = JSONCodec{}
	if cfg.Compress {
		codec, err = NewCompressedCodec()
		if err != nil {
			backend.Close()
			return nil, err
		}
	}

	logging.Info("📦 Хранилище ассетов: %s (сжатие: %v)", cfg.Backend, cfg.Compress)
	return NewAssetStore(backend, codec), nil
}
