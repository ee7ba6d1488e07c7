package importer

import (
	"context"
	"os"
	"time"

	"github.com/annel0/tmx-importer/internal/importerr"
)

// fileStamp фиксирует версию файла на диске
type fileStamp struct {
	modTime time.Time
	size    int64
}

func stampOf(p string) (fileStamp, bool) {
	info, err := os.Stat(p)
	if err != nil {
		return fileStamp{}, false
	}
	return fileStamp{modTime: info.ModTime(), size: info.Size()}, true
}

// Watcher периодически сканирует каталог и передаёт найденные файлы импортёру.
// Файл, обработка которого завершилась ошибкой, повторно не берётся, пока не
// изменятся его mtime или размер.
type Watcher struct {
	im     *Importer
	dir    string
	failed map[string]fileStamp
}

// NewWatcher создаёт наблюдатель за каталогом dir
func NewWatcher(im *Importer, dir string) *Watcher {
	return &Watcher{im: im, dir: dir, failed: make(map[string]fileStamp)}
}

// Deferred возвращает число файлов, отложенных до изменения
func (w *Watcher) Deferred() int {
	return len(w.failed)
}

// Scan выполняет один проход по каталогу
func (w *Watcher) Scan(ctx context.Context) (BatchReport, error) {
	files, err := w.im.Pending(w.dir)
	if err != nil {
		return BatchReport{}, importerr.Wrap(importerr.IOFailure, "scan source dir", err)
	}

	present := make(map[string]struct{}, len(files))
	stamps := make(map[string]fileStamp, len(files))
	batch := make([]string, 0, len(files))
	for _, f := range files {
		present[f] = struct{}{}
		st, ok := stampOf(f)
		if !ok {
			continue
		}
		if prev, held := w.failed[f]; held && prev == st {
			continue
		}
		stamps[f] = st
		batch = append(batch, f)
	}

	// Удалённые файлы больше не отслеживаются
	for f := range w.failed {
		if _, ok := present[f]; !ok {
			delete(w.failed, f)
		}
	}

	if len(batch) == 0 {
		return BatchReport{}, nil
	}

	report := w.im.ProcessBatch(ctx, batch)
	for _, res := range report.Results {
		if res.Outcome == OutcomeFailed || res.ArchiveFailed() {
			w.failed[res.Source] = stamps[res.Source]
			w.im.log.Warn("⏸️ %s отложен до изменения файла: %s", res.Source, res.Error)
			continue
		}
		delete(w.failed, res.Source)
	}
	return report, nil
}

// Run сканирует каталог с интервалом до отмены ctx; onReport вызывается для непустых пакетов
func (w *Watcher) Run(ctx context.Context, interval time.Duration, onReport func(BatchReport)) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	w.im.log.Info("👀 Наблюдение за %s каждые %s", w.dir, interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		report, err := w.Scan(ctx)
		if err != nil {
			w.im.log.Error("❌ Ошибка сканирования %s: %v", w.dir, err)
		} else if len(report.Results) > 0 && onReport != nil {
			onReport(report)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
