package storage

import "context"

// Backend - постоянное key/value хранилище сериализованных записей ассетов.
// Ключи уже нормализованы через NormalizeKey.
type Backend interface {
	// Load возвращает значение или ErrNotFound.
	Load(ctx context.Context, key string) ([]byte, error)

	// Store сохраняет значение (last-write-wins).
	Store(ctx context.Context, key string, value []byte) error

	// Delete удаляет ключ; отсутствие ключа не ошибка.
	Delete(ctx context.Context, key string) error

	// Keys возвращает все сохранённые ключи.
	Keys(ctx context.Context) ([]string, error)

	// Close закрывает соединение с хранилищем.
	Close() error
}
