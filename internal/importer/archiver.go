package importer

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/annel0/tmx-importer/internal/importerr"
)

// DefaultMaxBackupSlots - число нумерованных слотов по умолчанию
const DefaultMaxBackupSlots = 1000

// Archiver копирует исходные файлы в каталог резервных копий.
// Существующая копия с тем же именем сдвигается в первый свободный слот name_1, name_2, …
type Archiver struct {
	dir      string
	maxSlots int
}

// NewArchiver создаёт архиватор; maxSlots <= 0 означает DefaultMaxBackupSlots
func NewArchiver(dir string, maxSlots int) *Archiver {
	if maxSlots <= 0 {
		maxSlots = DefaultMaxBackupSlots
	}
	return &Archiver{dir: dir, maxSlots: maxSlots}
}

// Dir возвращает каталог резервных копий
func (a *Archiver) Dir() string {
	return a.dir
}

// Archive копирует src в <dir>/<base name of src> и возвращает путь копии
func (a *Archiver) Archive(src string) (string, error) {
	const op = "archive source"

	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return "", importerr.Wrap(importerr.IOFailure, op, err)
	}

	// Сначала копия во временный файл: существующая копия сдвигается только после успешного копирования
	tmp, err := copyToTemp(src, a.dir)
	if err != nil {
		return "", importerr.Wrap(importerr.IOFailure, op, err)
	}
	defer os.Remove(tmp)

	dest := filepath.Join(a.dir, filepath.Base(src))
	if _, err := os.Lstat(dest); err == nil {
		slot, err := a.freeSlot(dest)
		if err != nil {
			return "", err
		}
		if err := os.Rename(dest, slot); err != nil {
			return "", importerr.Wrap(importerr.IOFailure, op, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", importerr.Wrap(importerr.IOFailure, op, err)
	}

	if err := os.Rename(tmp, dest); err != nil {
		return "", importerr.Wrap(importerr.IOFailure, op, err)
	}
	return dest, nil
}

// freeSlot ищет первый свободный dest_N, N от 1 до maxSlots
func (a *Archiver) freeSlot(dest string) (string, error) {
	for i := 1; i <= a.maxSlots; i++ {
		slot := fmt.Sprintf("%s_%d", dest, i)
		_, err := os.Lstat(slot)
		if errors.Is(err, fs.ErrNotExist) {
			return slot, nil
		}
		if err != nil {
			return "", importerr.Wrap(importerr.IOFailure, "archive source", err)
		}
	}
	return "", importerr.New(importerr.IOFailure, "archive source",
		"все %d слотов резервных копий для %s заняты", a.maxSlots, filepath.Base(dest))
}

// copyToTemp копирует src во временный файл каталога dir и возвращает его путь
func copyToTemp(src, dir string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	out, err := os.CreateTemp(dir, "."+filepath.Base(src)+".*.tmp")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(out.Name())
		return "", err
	}
	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return "", err
	}
	return out.Name(), nil
}
