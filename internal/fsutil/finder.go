// Package fsutil содержит вспомогательные функции для работы с файловой системой.
package fsutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FindFilesByExtension рекурсивно ищет в root файлы с расширением extension
// (без учёта регистра) и возвращает их пути в лексикографическом порядке.
// Отсутствующий root не ошибка: возвращается пустой список.
func FindFilesByExtension(root string, extension string) ([]string, error) {
	if extension == "" {
		panic("extension must not be empty")
	}
	extension = strings.ToLower(extension)

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root && errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			return err
		}
		if !d.IsDir() && HasExtension(d.Name(), extension) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// HasExtension сообщает, оканчивается ли имя на extension (без учёта регистра)
func HasExtension(name, extension string) bool {
	return strings.HasSuffix(strings.ToLower(name), strings.ToLower(extension))
}

// TrimExtension возвращает базовое имя файла без последнего расширения
func TrimExtension(p string) string {
	base := filepath.Base(p)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Exists сообщает, существует ли path
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
