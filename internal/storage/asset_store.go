package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/annel0/tmx-importer/internal/asset"
	"github.com/annel0/tmx-importer/internal/logging"
)

// AssetStore реализует Repository поверх Backend.
// Держит живые экземпляры ассетов и множество грязных путей до Save.
type AssetStore struct {
	backend Backend
	codec   Codec

	mu     sync.RWMutex
	live   map[string]*asset.TmxAsset
	dirty  map[string]struct{}
	closed bool
}

// NewAssetStore создаёт хранилище; codec == nil означает JSONCodec
func NewAssetStore(backend Backend, codec Codec) *AssetStore {
	if codec == nil {
		codec = JSONCodec{}
	}
	return &AssetStore{
		backend: backend,
		codec:   codec,
		live:    make(map[string]*asset.TmxAsset),
		dirty:   make(map[string]struct{}),
	}
}

// Load возвращает живой экземпляр или читает его из бэкенда
func (s *AssetStore) Load(ctx context.Context, p string) (*asset.TmxAsset, bool, error) {
	key, err := NormalizeKey(p)
	if err != nil {
		return nil, false, err
	}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, false, ErrClosed
	}
	if a, ok := s.live[key]; ok {
		s.mu.RUnlock()
		return a, true, nil
	}
	s.mu.RUnlock()

	data, err := s.backend.Load(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("ошибка чтения ассета %s: %w", key, err)
	}

	rec, err := s.codec.Decode(data)
	if err != nil {
		return nil, false, fmt.Errorf("ассет %s: %w", key, err)
	}
	a, err := asset.FromRecord(rec)
	if err != nil {
		return nil, false, fmt.Errorf("ассет %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Другой вызов мог успеть загрузить тот же ключ
	if existing, ok := s.live[key]; ok {
		return existing, true, nil
	}
	s.live[key] = a
	return a, true, nil
}

// Create регистрирует новый ассет. Ассет должен быть инициализирован.
func (s *AssetStore) Create(ctx context.Context, p string, a *asset.TmxAsset) error {
	key, err := NormalizeKey(p)
	if err != nil {
		return err
	}
	if a == nil || !a.Initialized() {
		return fmt.Errorf("ассет %s не инициализирован", key)
	}

	// Проверяем бэкенд до захвата блокировки: Load может быть медленным
	_, found, err := s.Load(ctx, key)
	if err != nil {
		return err
	}
	if found {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, ok := s.live[key]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, key)
	}
	s.live[key] = a
	s.dirty[key] = struct{}{}
	return nil
}

// MarkDirty помечает загруженный ассет для записи
func (s *AssetStore) MarkDirty(p string) error {
	key, err := NormalizeKey(p)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.live[key]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	s.dirty[key] = struct{}{}
	return nil
}

// Save записывает грязные ассеты. Не записанные из-за ошибки остаются грязными.
func (s *AssetStore) Save(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	pending := make(map[string]*asset.TmxAsset, len(s.dirty))
	for key := range s.dirty {
		pending[key] = s.live[key]
	}
	s.mu.Unlock()

	keys := make([]string, 0, len(pending))
	for key := range pending {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		data, err := s.codec.Encode(pending[key].ToRecord())
		if err != nil {
			return fmt.Errorf("ассет %s: %w", key, err)
		}
		if err := s.backend.Store(ctx, key, data); err != nil {
			return fmt.Errorf("ошибка записи ассета %s: %w", key, err)
		}

		s.mu.Lock()
		delete(s.dirty, key)
		s.mu.Unlock()

		logging.Debug("💾 Ассет %s сохранён (%d байт)", key, len(data))
	}

	return nil
}

// List объединяет ключи бэкенда и ещё не сохранённые ассеты
func (s *AssetStore) List(ctx context.Context) ([]string, error) {
	keys, err := s.backend.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка ассетов: %w", err)
	}

	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	s.mu.RLock()
	for k := range s.live {
		set[k] = struct{}{}
	}
	s.mu.RUnlock()

	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

// DirtyCount возвращает число ассетов, ожидающих Save
func (s *AssetStore) DirtyCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.dirty)
}

// Close закрывает бэкенд. Несохранённые изменения теряются.
func (s *AssetStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if len(s.dirty) > 0 {
		logging.Warn("⚠️ Хранилище закрывается с %d несохранёнными ассетами", len(s.dirty))
	}
	s.mu.Unlock()

	if c, ok := s.codec.(*CompressedCodec); ok {
		c.Close()
	}
	return s.backend.Close()
}
