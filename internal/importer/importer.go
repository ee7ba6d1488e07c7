package importer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/annel0/tmx-importer/internal/asset"
	"github.com/annel0/tmx-importer/internal/atlas"
	"github.com/annel0/tmx-importer/internal/config"
	"github.com/annel0/tmx-importer/internal/eventbus"
	"github.com/annel0/tmx-importer/internal/fsutil"
	"github.com/annel0/tmx-importer/internal/importerr"
	"github.com/annel0/tmx-importer/internal/logging"
	"github.com/annel0/tmx-importer/internal/observability"
	"github.com/annel0/tmx-importer/internal/storage"
)

// EventSource - значение Envelope.Source для событий импортёра
const EventSource = "tmx-importer"

// Config содержит зависимости и параметры конвейера.
// Repo обязателен; Bus, Metrics, Logger и Tracer необязательны.
type Config struct {
	Repo    storage.Repository
	Bus     eventbus.EventBus
	Metrics *Metrics
	Logger  *logging.Logger
	Tracer  trace.Tracer

	SourceExt      string // ".tmx"
	TargetDir      string // префикс ключей ассетов в хранилище
	AssetExt       string // ".asset"
	BackupDir      string
	MaxBackupSlots int
	LookupMode     atlas.LookupMode
}

// ConfigFromSettings переносит секцию importer конфигурации в Config
func ConfigFromSettings(s config.ImporterConfig) Config {
	mode := atlas.CompatibleLookup
	if s.StrictLookup {
		mode = atlas.StrictLookup
	}
	return Config{
		SourceExt:      s.SourceExt,
		TargetDir:      s.TargetDir,
		AssetExt:       s.AssetExt,
		BackupDir:      s.BackupDir,
		MaxBackupSlots: s.MaxBackupSlots,
		LookupMode:     mode,
	}
}

// Importer выполняет импорт пакетов исходных файлов.
// Пакеты обрабатываются строго по одному, файлы внутри пакета последовательно.
type Importer struct {
	mu       sync.Mutex
	cfg      Config
	loader   *Loader
	archiver *Archiver
	log      *logging.Logger
	tracer   trace.Tracer
}

// New создаёт конвейер импорта
func New(cfg Config) (*Importer, error) {
	if cfg.Repo == nil {
		return nil, fmt.Errorf("importer: не задано хранилище ассетов")
	}
	if cfg.BackupDir == "" {
		return nil, fmt.Errorf("importer: не задан каталог резервных копий")
	}
	if cfg.SourceExt == "" {
		cfg.SourceExt = ".tmx"
	}
	if cfg.AssetExt == "" {
		cfg.AssetExt = ".asset"
	}

	im := &Importer{
		cfg:      cfg,
		loader:   NewLoader(cfg.LookupMode),
		archiver: NewArchiver(cfg.BackupDir, cfg.MaxBackupSlots),
		log:      cfg.Logger,
		tracer:   cfg.Tracer,
	}
	if im.log == nil {
		im.log = logging.Default()
	}
	if im.tracer == nil {
		im.tracer = observability.Tracer()
	}
	return im, nil
}

// Eligible сообщает, подходит ли файл для импорта
func (im *Importer) Eligible(p string) bool {
	return fsutil.HasExtension(p, im.cfg.SourceExt)
}

// TargetPath возвращает ключ ассета для исходного файла:
// то же базовое имя в фиксированном каталоге назначения.
func (im *Importer) TargetPath(source string) string {
	return im.AssetKey(fsutil.TrimExtension(source))
}

// AssetKey возвращает ключ ассета карты с именем name
func (im *Importer) AssetKey(name string) string {
	return path.Join(im.cfg.TargetDir, name+im.cfg.AssetExt)
}

// MapName выделяет имя карты из ключа ассета
func (im *Importer) MapName(key string) string {
	return strings.TrimSuffix(path.Base(key), im.cfg.AssetExt)
}

// Pending возвращает исходные файлы, ожидающие импорта в dir
func (im *Importer) Pending(dir string) ([]string, error) {
	return fsutil.FindFilesByExtension(dir, im.cfg.SourceExt)
}

// Loader возвращает загрузчик конвейера
func (im *Importer) Loader() *Loader {
	return im.loader
}

// ImportFile импортирует один файл. Ошибка возвращается и в FileResult.Err.
func (im *Importer) ImportFile(ctx context.Context, source string) (FileResult, error) {
	im.mu.Lock()
	defer im.mu.Unlock()
	return im.importFile(ctx, source)
}

// ProcessBatch обрабатывает пакет путей по порядку.
// Ошибка одного файла не прерывает обработку остальных.
func (im *Importer) ProcessBatch(ctx context.Context, sources []string) BatchReport {
	im.mu.Lock()
	defer im.mu.Unlock()

	start := time.Now()
	report := BatchReport{Results: make([]FileResult, 0, len(sources))}
	for _, src := range sources {
		res, _ := im.importFile(ctx, src)
		report.add(res)
	}
	report.Duration = time.Since(start)

	if len(sources) > 0 {
		im.log.Info("📥 Пакет из %d файлов: создано %d, обновлено %d (без изменений %d), ошибок %d, архивирование %d",
			len(sources), report.Created, report.Merged, report.Unchanged, report.Failed, report.Archive)
	}
	return report
}

// ImportDir находит все исходные файлы в dir и обрабатывает их одним пакетом
func (im *Importer) ImportDir(ctx context.Context, dir string) (BatchReport, error) {
	files, err := im.Pending(dir)
	if err != nil {
		return BatchReport{}, importerr.Wrap(importerr.IOFailure, "scan source dir", err)
	}
	return im.ProcessBatch(ctx, files), nil
}

func (im *Importer) importFile(ctx context.Context, source string) (res FileResult, err error) {
	res = FileResult{Source: source}
	if !im.Eligible(source) {
		res.Outcome = OutcomeSkipped
		im.log.Debug("⏭️ %s пропущен: расширение не %s", source, im.cfg.SourceExt)
		im.cfg.Metrics.observe(res, 0)
		return res, nil
	}

	start := time.Now()
	ctx, span := im.tracer.Start(ctx, "importer.ImportFile",
		trace.WithAttributes(attribute.String("tmx.source", source)))
	defer func() {
		span.SetAttributes(attribute.String("tmx.outcome", res.resultLabel()))
		if res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, res.Kind.String())
		}
		span.End()
		im.cfg.Metrics.observe(res, time.Since(start))
	}()

	res.Target = im.TargetPath(source)
	span.SetAttributes(attribute.String("tmx.target", res.Target))

	if err := im.updateAsset(ctx, &res); err != nil {
		res.Outcome = OutcomeFailed
		res.setErr(err)
		im.log.Error("❌ Импорт %s не выполнен [%s]: %v", source, res.Kind, err)
		return res, res.Err
	}

	im.publish(ctx, res)

	if err := im.archiveSource(source, &res); err != nil {
		res.setErr(err)
		im.log.Error("❌ %s: ассет %s обновлён, но исходник не заархивирован [%s]: %v",
			source, res.Target, res.Kind, err)
		return res, res.Err
	}

	im.log.Info("✅ %s → %s (%s, identity=%d)", source, res.Target, res.resultLabel(), res.Identity)
	return res, nil
}

// updateAsset выполняет разбор и создаёт или обновляет ассет в хранилище
func (im *Importer) updateAsset(ctx context.Context, res *FileResult) error {
	fresh, err := im.loader.LoadFile(res.Source)
	if err != nil {
		return err
	}

	existing, found, err := im.cfg.Repo.Load(ctx, res.Target)
	if err != nil {
		return importerr.Wrap(importerr.IOFailure, "load asset", err)
	}

	if found {
		// Обновляем всегда, даже если содержимое совпадает
		res.Unchanged = asset.AreEqual(existing, fresh)
		merged, err := existing.CopyFrom(fresh)
		if err != nil {
			return err
		}
		if err := im.cfg.Repo.MarkDirty(res.Target); err != nil {
			return importerr.Wrap(importerr.IOFailure, "mark asset dirty", err)
		}
		res.Outcome = OutcomeMerged
		res.Identity = merged.Identity
	} else {
		if err := im.cfg.Repo.Create(ctx, res.Target, fresh); err != nil {
			return importerr.Wrap(importerr.IOFailure, "create asset", err)
		}
		res.Outcome = OutcomeCreated
		res.Identity = fresh.Identity()
	}

	if err := im.cfg.Repo.Save(ctx); err != nil {
		return importerr.Wrap(importerr.IOFailure, "save assets", err)
	}
	return nil
}

func (im *Importer) publish(ctx context.Context, res FileResult) {
	if im.cfg.Bus == nil {
		return
	}

	eventType := eventbus.EventAssetCreated
	if res.Outcome == OutcomeMerged {
		eventType = eventbus.EventAssetMerged
	}

	layers := 0
	if a, found, err := im.cfg.Repo.Load(ctx, res.Target); err == nil && found {
		layers = len(a.Tilemaps())
	}

	env, err := eventbus.NewAssetEnvelope(eventType, EventSource, eventbus.AssetEvent{
		Identity:  res.Identity,
		Path:      res.Target,
		Source:    res.Source,
		Layers:    layers,
		Unchanged: res.Unchanged,
	})
	if err != nil {
		im.log.Warn("⚠️ Событие %s для %s не создано: %v", eventType, res.Target, err)
		return
	}
	if err := im.cfg.Bus.Publish(ctx, env); err != nil {
		im.log.Warn("⚠️ Событие %s для %s не опубликовано: %v", eventType, res.Target, err)
	}
}

// archiveSource копирует исходник в резервный каталог и удаляет его.
// Без успешной копии исходник не удаляется.
func (im *Importer) archiveSource(source string, res *FileResult) error {
	dest, err := im.archiver.Archive(source)
	if err != nil {
		return err
	}
	res.ArchivedTo = dest

	if err := os.Remove(source); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return importerr.Wrap(importerr.IOFailure, "remove source", err)
	}
	return nil
}
