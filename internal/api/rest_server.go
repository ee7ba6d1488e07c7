package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/annel0/tmx-importer/internal/importer"
	"github.com/annel0/tmx-importer/internal/logging"
	"github.com/annel0/tmx-importer/internal/middleware"
	"github.com/annel0/tmx-importer/internal/storage"
)

// RestServer отдаёт read-only сведения об импортированных картах и запускает импорт
type RestServer struct {
	router     *gin.Engine
	repo       storage.Repository
	importer   *importer.Importer
	sourceDir  string
	port       string
	metrics    *ServerMetrics
	httpServer *http.Server
}

// Config содержит конфигурацию для REST сервера
type Config struct {
	Port      string               // адрес для запуска сервера, например ":8088"
	Repo      storage.Repository   // хранилище ассетов
	Importer  *importer.Importer   // конвейер импорта; nil отключает POST /api/import
	SourceDir string               // каталог, сканируемый POST /api/import без тела
	Registry  *prometheus.Registry // реестр для HTTP-метрик и /metrics; nil - собственный
	Logger    *logging.Logger
}

// NewRestServer создает новый REST API сервер
func NewRestServer(config Config) *RestServer {
	if config.Port == "" {
		config.Port = ":8088"
	}

	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	// === Observability middleware ===
	router.Use(middleware.NewRequestLogger(config.Logger).Handler())
	router.Use(otelgin.Middleware("tmx_importer_api"))

	registry := config.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	promMw := middleware.NewPrometheusMiddleware("tmx_api", registry, registry)
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router)

	server := &RestServer{
		router:    router,
		repo:      config.Repo,
		importer:  config.Importer,
		sourceDir: config.SourceDir,
		port:      config.Port,
		metrics:   NewServerMetrics(),
	}

	server.setupRoutes()
	return server
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	rs.router.GET("/health", rs.handleHealth)

	api := rs.router.Group("/api")
	{
		api.GET("/maps", rs.handleListMaps)
		api.GET("/maps/:name", rs.handleGetMap)
		api.GET("/maps/:name/tiles/:gid", rs.handleResolveTile)
		api.POST("/import", rs.handleImport)
	}
}

// Handler возвращает http.Handler сервера (для тестов и встраивания)
func (rs *RestServer) Handler() http.Handler {
	return rs.router
}

// Start запускает REST сервер и блокируется до Stop
func (rs *RestServer) Start() error {
	rs.httpServer = &http.Server{
		Addr:              rs.port,
		Handler:           rs.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logging.Info("🌐 REST API слушает %s", rs.port)
	if err := rs.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop выполняет graceful shutdown
func (rs *RestServer) Stop(ctx context.Context) error {
	if rs.httpServer == nil {
		return nil
	}
	return rs.httpServer.Shutdown(ctx)
}
