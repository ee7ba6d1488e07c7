package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/annel0/tmx-importer/internal/fsutil"
)

const fileRecordExt = ".json"

// FileBackend хранит каждую запись отдельным файлом <key>.json внутри базового каталога
type FileBackend struct {
	root string
}

// NewFileBackend создаёт каталог root при необходимости
func NewFileBackend(root string) (*FileBackend, error) {
	if root == "" {
		return nil, fmt.Errorf("не указан каталог файлового хранилища")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("некорректный каталог %s: %w", root, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("не удалось создать каталог %s: %w", abs, err)
	}
	return &FileBackend{root: abs}, nil
}

// pathFor переводит ключ в путь файла, не выпуская его за пределы root
func (f *FileBackend) pathFor(key string) (string, error) {
	full := filepath.Join(f.root, filepath.FromSlash(key)+fileRecordExt)
	rel, err := filepath.Rel(f.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrInvalidKey, key)
	}
	return full, nil
}

func (f *FileBackend) Load(_ context.Context, key string) ([]byte, error) {
	p, err := f.pathFor(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Store пишет во временный файл и переименовывает его
func (f *FileBackend) Store(_ context.Context, key string, data []byte) error {
	p, err := f.pathFor(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, p); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

func (f *FileBackend) Delete(_ context.Context, key string) error {
	p, err := f.pathFor(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (f *FileBackend) Keys(_ context.Context) ([]string, error) {
	files, err := fsutil.FindFilesByExtension(f.root, fileRecordExt)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(files))
	for _, file := range files {
		rel, err := filepath.Rel(f.root, file)
		if err != nil {
			continue
		}
		rel = rel[:len(rel)-len(fileRecordExt)]
		keys = append(keys, filepath.ToSlash(rel))
	}
	return keys, nil
}

func (f *FileBackend) Close() error { return nil }
