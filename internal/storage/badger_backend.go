package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v3"
)

const badgerKeyPrefix = "asset:"

// BadgerBackend хранит записи ассетов во встроенной BadgerDB под ключами asset:<path>
type BadgerBackend struct {
	db      *badger.DB
	mutex   sync.RWMutex
	isReady bool
}

// NewBadgerBackend открывает (или создаёт) базу в каталоге dir
func NewBadgerBackend(dir string) (*BadgerBackend, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	return &BadgerBackend{db: db, isReady: true}, nil
}

func (b *BadgerBackend) Load(_ context.Context, key string) ([]byte, error) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	if !b.isReady {
		return nil, ErrClosed
	}

	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(badgerKeyPrefix + key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}
	return data, nil
}

func (b *BadgerBackend) Store(_ context.Context, key string, data []byte) error {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	if !b.isReady {
		return ErrClosed
	}

	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(badgerKeyPrefix+key), data)
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}
	return nil
}

func (b *BadgerBackend) Delete(_ context.Context, key string) error {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	if !b.isReady {
		return ErrClosed
	}

	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(badgerKeyPrefix + key))
	})
}

func (b *BadgerBackend) Keys(_ context.Context) ([]string, error) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	if !b.isReady {
		return nil, ErrClosed
	}

	var keys []string
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(badgerKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			k := string(it.Item().Key())
			keys = append(keys, strings.TrimPrefix(k, badgerKeyPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка обхода BadgerDB: %w", err)
	}
	return keys, nil
}

// Close закрывает базу
func (b *BadgerBackend) Close() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if !b.isReady {
		return nil
	}
	b.isReady = false
	return b.db.Close()
}
