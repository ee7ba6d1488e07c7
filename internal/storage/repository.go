// Package storage хранит импортированные ассеты карт.
//
// Repository - абстракция хранилища ассетов хоста (create/load/mark-dirty/save).
// AssetStore реализует её поверх любого Backend: в памяти, в файлах, BadgerDB,
// MariaDB, MongoDB или Redis.
package storage

import (
	"context"
	"errors"
	"path"
	"strings"

	"github.com/annel0/tmx-importer/internal/asset"
)

var (
	// ErrNotFound - по ключу ничего не сохранено
	ErrNotFound = errors.New("storage: asset not found")
	// ErrAlreadyExists - ассет по этому пути уже создан
	ErrAlreadyExists = errors.New("storage: asset already exists")
	// ErrInvalidKey - путь ассета пуст или выходит за пределы хранилища
	ErrInvalidKey = errors.New("storage: invalid asset path")
	// ErrClosed - хранилище уже закрыто
	ErrClosed = errors.New("storage: closed")
)

// Repository определяет интерфейс хранилища ассетов.
// Один путь - один живой экземпляр TmxAsset: повторный Load возвращает тот же
// указатель, поэтому слияние на месте видно всем, кто держит ссылку.
type Repository interface {
	// Load возвращает ассет по пути.
	// Возвращает:
	//   *asset.TmxAsset - ассет или nil
	//   bool - false если по пути ничего нет
	//   error - ошибка чтения/декодирования
	Load(ctx context.Context, path string) (*asset.TmxAsset, bool, error)

	// Create регистрирует новый инициализированный ассет по пути и помечает его грязным.
	Create(ctx context.Context, path string, a *asset.TmxAsset) error

	// MarkDirty помечает ассет как изменённый, чтобы Save его записал.
	MarkDirty(path string) error

	// Save записывает все грязные ассеты в бэкенд.
	Save(ctx context.Context) error

	// List возвращает пути всех известных ассетов в лексикографическом порядке.
	List(ctx context.Context) ([]string, error)

	// Close закрывает бэкенд.
	Close() error
}

// NormalizeKey приводит путь ассета к каноническому виду "dir/name.asset"
func NormalizeKey(p string) (string, error) {
	p = strings.ReplaceAll(strings.TrimSpace(p), "\\", "/")
	if p == "" {
		return "", ErrInvalidKey
	}
	clean := path.Clean(p)
	if path.IsAbs(clean) || clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", ErrInvalidKey
	}
	return clean, nil
}
