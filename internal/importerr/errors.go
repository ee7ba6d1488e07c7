// Package importerr описывает таксономию ошибок импорта TMX-карт.
//
// Каждая ошибка несёт Kind, по которому оператор (и тесты) понимают,
// на каком этапе сломался импорт файла:
//
//	err := importerr.New(importerr.MalformedDocument, "layer", "нет элемента data")
//	errors.Is(err, importerr.ErrMalformedDocument) // true
package importerr

import (
	"errors"
	"fmt"
)

// Kind определяет категорию ошибки импорта
type Kind uint8

const (
	// Unknown используется для ошибок, не относящихся к таксономии
	Unknown Kind = iota
	// UnsupportedFormat - неподдерживаемая ориентация или кодировка данных
	UnsupportedFormat
	// MalformedDocument - отсутствует атрибут/элемент, не число, неверное число тайлов
	MalformedDocument
	// InvalidGeometry - размеры изображения не кратны тайлу, нулевые/отрицательные размеры
	InvalidGeometry
	// ResolutionFailure - GID не покрыт ни одним тайлсетом
	ResolutionFailure
	// IOFailure - ошибка копирования/удаления файлов при архивации
	IOFailure
)

// String возвращает строковое представление категории
func (k Kind) String() string {
	switch k {
	case UnsupportedFormat:
		return "UnsupportedFormat"
	case MalformedDocument:
		return "MalformedDocument"
	case InvalidGeometry:
		return "InvalidGeometry"
	case ResolutionFailure:
		return "ResolutionFailure"
	case IOFailure:
		return "IOFailure"
	default:
		return "Unknown"
	}
}

// Error - ошибка импорта с категорией и местом возникновения
type Error struct {
	Kind Kind
	Op   string // Что делали: "parse map", "tileset", "resolve"...
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is позволяет сравнивать ошибки по категории через errors.Is
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	// Сентинелы не имеют Op и Err - совпадает любая ошибка той же категории
	return t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

// Сентинелы категорий для errors.Is
var (
	ErrUnsupportedFormat = &Error{Kind: UnsupportedFormat}
	ErrMalformedDocument = &Error{Kind: MalformedDocument}
	ErrInvalidGeometry   = &Error{Kind: InvalidGeometry}
	ErrResolutionFailure = &Error{Kind: ResolutionFailure}
	ErrIOFailure         = &Error{Kind: IOFailure}
)

// New создаёт ошибку указанной категории с форматированным сообщением
func New(kind Kind, op string, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap оборачивает существующую ошибку в категорию.
// Если err уже является *Error, его категория сохраняется.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var ie *Error
	if errors.As(err, &ie) {
		return &Error{Kind: ie.Kind, Op: op, Err: err}
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf извлекает категорию из цепочки ошибок
func KindOf(err error) Kind {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return Unknown
}
