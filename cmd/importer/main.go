package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/annel0/tmx-importer/internal/api"
	"github.com/annel0/tmx-importer/internal/config"
	"github.com/annel0/tmx-importer/internal/eventbus"
	"github.com/annel0/tmx-importer/internal/importer"
	"github.com/annel0/tmx-importer/internal/logging"
	"github.com/annel0/tmx-importer/internal/observability"
	"github.com/annel0/tmx-importer/internal/storage"
	"github.com/annel0/tmx-importer/internal/tmx"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (по умолчанию $TMX_IMPORTER_CONFIG)")
	watch := flag.Bool("watch", false, "периодически сканировать source_dir")
	serve := flag.Bool("serve", false, "запустить REST API")
	strict := flag.Bool("strict", false, "строгий поиск тайлсета по GID")
	dump := flag.String("dump", "", "разобрать TMX файл и вывести нормализованный документ")
	flag.Parse()

	if *dump != "" {
		if err := dumpMap(*dump); err != nil {
			log.Fatalf("❌ %v", err)
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}
	if *strict {
		cfg.Importer.StrictLookup = true
	}
	if *serve {
		cfg.Server.Enabled = true
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	if err := logging.InitDefaultLogger(logging.Options{
		Dir:          cfg.Logging.Dir,
		ConsoleLevel: level,
		MaxSizeMB:    cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAgeDays:   cfg.Logging.MaxAgeDays,
	}); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()
	defer logging.GetLoggerManager().CloseAll()

	if err := run(cfg, *watch, flag.Args()); err != nil {
		logging.Error("❌ %v", err)
		logging.CloseDefaultLogger()
		os.Exit(1)
	}
}

func run(cfg *config.Config, watch bool, paths []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info("🗺️ Запуск импортёра TMX: source=%s target=%s", cfg.Importer.SourceDir, cfg.Importer.TargetDir)

	// === TELEMETRY ===
	shutdownTelemetry, err := observability.InitTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("телеметрия: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(sctx)
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// === STORAGE ===
	repo, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("хранилище: %w", err)
	}
	defer repo.Close()

	// === EVENT BUS ===
	bus, err := openBus(cfg.EventBus)
	if err != nil {
		return fmt.Errorf("шина событий: %w", err)
	}
	defer bus.Close()

	if _, err := eventbus.StartLoggingListener(bus); err != nil {
		return err
	}
	busMetrics := eventbus.NewMetricsExporter(bus, registry)
	busMetrics.Start(5 * time.Second)
	defer busMetrics.Stop()

	// === IMPORTER ===
	imCfg := importer.ConfigFromSettings(cfg.Importer)
	imCfg.Repo = repo
	imCfg.Bus = bus
	imCfg.Metrics = importer.NewMetrics(registry)
	imCfg.Logger = logging.GetImporterLogger()
	im, err := importer.New(imCfg)
	if err != nil {
		return err
	}

	if len(paths) > 0 {
		report := im.ProcessBatch(ctx, paths)
		logReport(report)
		if !watch && !cfg.Server.Enabled {
			if !report.OK() {
				return fmt.Errorf("импорт завершился с ошибками: %d из %d", report.Failed+report.Archive, len(report.Results))
			}
			return nil
		}
	} else if !watch && !cfg.Server.Enabled {
		report, err := im.ImportDir(ctx, cfg.Importer.SourceDir)
		if err != nil {
			return err
		}
		logReport(report)
		if !report.OK() {
			return fmt.Errorf("импорт завершился с ошибками: %d из %d", report.Failed+report.Archive, len(report.Results))
		}
		return nil
	}

	// === SERVERS ===
	var rest *api.RestServer
	var metricsSrv *http.Server
	if cfg.Server.Enabled {
		rest = api.NewRestServer(api.Config{
			Port:      fmt.Sprintf(":%d", cfg.Server.GetRESTPort()),
			Repo:      repo,
			Importer:  im,
			SourceDir: cfg.Importer.SourceDir,
			Registry:  registry,
			Logger:    logging.GetAPILogger(),
		})
		go func() {
			if err := rest.Start(); err != nil {
				logging.Error("❌ REST API остановлен: %v", err)
				stop()
			}
		}()
	} else {
		metricsSrv = serveMetrics(registry, cfg.Server.GetMetricsPort())
	}

	if watch {
		importer.NewWatcher(im, cfg.Importer.SourceDir).Run(ctx, cfg.Importer.PollInterval, logReport)
	} else {
		<-ctx.Done()
	}

	// === GRACEFUL SHUTDOWN ===
	logging.Info("📡 Завершение работы...")
	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if rest != nil {
		if err := rest.Stop(sctx); err != nil {
			logging.Error("❌ Ошибка остановки REST API: %v", err)
		}
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(sctx)
	}
	if err := repo.Save(sctx); err != nil {
		logging.Error("❌ Ошибка сохранения ассетов: %v", err)
	}

	logging.Info("👋 Импортёр остановлен")
	return nil
}

func openBus(cfg config.EventBusConfig) (eventbus.EventBus, error) {
	url := cfg.GetURL()
	if url == "" {
		logging.Info("📨 Шина событий: в памяти")
		return eventbus.NewMemoryBus(1024), nil
	}
	bus, err := eventbus.NewJetStreamBus(url, cfg.Stream, time.Duration(cfg.Retention)*time.Hour)
	if err != nil {
		return nil, err
	}
	logging.Info("📨 Шина событий: NATS JetStream %s (stream %s)", url, cfg.Stream)
	return bus, nil
}

func serveMetrics(registry *prometheus.Registry, port int) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Warn("⚠️ Эндпоинт метрик недоступен: %v", err)
		}
	}()
	logging.Info("📈 Метрики: http://localhost:%d/metrics", port)
	return srv
}

func logReport(r importer.BatchReport) {
	logging.Info("📊 Пакет: создано=%d обновлено=%d без изменений=%d ошибок=%d пропущено=%d ошибок архива=%d за %s",
		r.Created, r.Merged, r.Unchanged, r.Failed, r.Skipped, r.Archive, r.Duration)
	for _, res := range r.Results {
		if res.Err != nil {
			logging.Warn("⚠️ %s: %s", res.Source, res.Error)
		}
	}
}

func dumpMap(path string) error {
	m, err := tmx.ParseFile(path)
	if err != nil {
		return err
	}
	return tmx.Encode(os.Stdout, m)
}
