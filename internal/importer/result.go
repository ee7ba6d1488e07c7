package importer

import (
	"fmt"
	"time"

	"github.com/annel0/tmx-importer/internal/importerr"
)

// Outcome - итог обработки одного файла
type Outcome uint8

const (
	OutcomeSkipped Outcome = iota // файл не подходит по расширению
	OutcomeCreated
	OutcomeMerged
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeCreated:
		return "created"
	case OutcomeMerged:
		return "merged"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText позволяет отдавать Outcome строкой в JSON
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText разбирает строковое представление Outcome
func (o *Outcome) UnmarshalText(text []byte) error {
	for _, c := range []Outcome{OutcomeSkipped, OutcomeCreated, OutcomeMerged, OutcomeFailed} {
		if c.String() == string(text) {
			*o = c
			return nil
		}
	}
	return fmt.Errorf("неизвестный результат импорта %q", text)
}

// FileResult описывает обработку одного исходного файла.
// При Outcome Created/Merged ошибка Err может относиться только к архивированию.
type FileResult struct {
	Source     string         `json:"source"`
	Target     string         `json:"target,omitempty"`
	Outcome    Outcome        `json:"outcome"`
	Identity   int64          `json:"identity,omitempty"`
	Unchanged  bool           `json:"unchanged,omitempty"`
	ArchivedTo string         `json:"archived_to,omitempty"`
	Kind       importerr.Kind `json:"-"`
	KindName   string         `json:"kind,omitempty"`
	Error      string         `json:"error,omitempty"`
	Err        error          `json:"-"`
}

func (r *FileResult) setErr(err error) {
	r.Err = err
	r.Error = err.Error()
	r.Kind = importerr.KindOf(err)
	r.KindName = r.Kind.String()
}

// ArchiveFailed сообщает, что ассет обновлён, но исходник не заархивирован или не удалён
func (r FileResult) ArchiveFailed() bool {
	return r.Err != nil && (r.Outcome == OutcomeCreated || r.Outcome == OutcomeMerged)
}

func (r FileResult) resultLabel() string {
	if r.Outcome == OutcomeMerged && r.Unchanged {
		return "unchanged"
	}
	return r.Outcome.String()
}

// BatchReport - сводка по пакету файлов
type BatchReport struct {
	Results   []FileResult  `json:"results"`
	Created   int           `json:"created"`
	Merged    int           `json:"merged"`
	Unchanged int           `json:"unchanged"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Archive   int           `json:"archive_failures"`
	Duration  time.Duration `json:"duration_ns"`
}

func (b *BatchReport) add(r FileResult) {
	b.Results = append(b.Results, r)
	switch r.Outcome {
	case OutcomeCreated:
		b.Created++
	case OutcomeMerged:
		b.Merged++
		if r.Unchanged {
			b.Unchanged++
		}
	case OutcomeFailed:
		b.Failed++
	case OutcomeSkipped:
		b.Skipped++
	}
	if r.ArchiveFailed() {
		b.Archive++
	}
}

// OK сообщает, что в пакете нет ни одной ошибки
func (b BatchReport) OK() bool {
	return b.Failed == 0 && b.Archive == 0
}
