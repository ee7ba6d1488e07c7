package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

// MariaBackend хранит записи ассетов в таблице tmx_assets базы MariaDB/MySQL.
type MariaBackend struct {
	db *sql.DB
}

// NewMariaBackend подключается к базе и создаёт таблицу, если её нет.
//
// Параметры:
//
//	dsn - строка подключения к базе данных (user:pass@tcp(host:port)/dbname)
func NewMariaBackend(ctx context.Context, dsn string) (*MariaBackend, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к MariaDB: %w", err)
	}

	// Проверяем соединение
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось проверить соединение с MariaDB: %w", err)
	}

	b := &MariaBackend{db: db}
	if err := b.createTable(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось создать таблицу: %w", err)
	}

	return b, nil
}

func (b *MariaBackend) createTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS tmx_assets (
			path       VARCHAR(512) PRIMARY KEY,
			payload    LONGBLOB     NOT NULL,
			updated_at TIMESTAMP    DEFAULT CURRENT_TIMESTAMP
			           ON UPDATE    CURRENT_TIMESTAMP,
			INDEX idx_updated_at (updated_at)
		) ENGINE=InnoDB
	`

	if _, err := b.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ошибка создания таблицы tmx_assets: %w", err)
	}
	return nil
}

func (b *MariaBackend) Load(ctx context.Context, key string) ([]byte, error) {
	var payload []byte
	err := b.db.QueryRowContext(ctx, `SELECT payload FROM tmx_assets WHERE path = ?`, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки ассета %s: %w", key, err)
	}
	return payload, nil
}

// Store использует INSERT ... ON DUPLICATE KEY UPDATE
func (b *MariaBackend) Store(ctx context.Context, key string, data []byte) error {
	query := `
		INSERT INTO tmx_assets (path, payload)
		VALUES (?, ?)
		ON DUPLICATE KEY UPDATE
			payload = VALUES(payload),
			updated_at = CURRENT_TIMESTAMP
	`

	if _, err := b.db.ExecContext(ctx, query, key, data); err != nil {
		return fmt.Errorf("ошибка сохранения ассета %s: %w", key, err)
	}
	return nil
}

func (b *MariaBackend) Delete(ctx context.Context, key string) error {
	if _, err := b.db.ExecContext(ctx, `DELETE FROM tmx_assets WHERE path = ?`, key); err != nil {
		return fmt.Errorf("ошибка удаления ассета %s: %w", key, err)
	}
	return nil
}

func (b *MariaBackend) Keys(ctx context.Context) ([]string, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT path FROM tmx_assets ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка ассетов: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Close закрывает соединение с базой данных.
func (b *MariaBackend) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}
