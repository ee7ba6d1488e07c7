package config

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации импортёра.
type Config struct {
	Importer  ImporterConfig  `yaml:"importer"`
	Storage   StorageConfig   `yaml:"storage"`
	EventBus  EventBusConfig  `yaml:"eventbus"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ImporterConfig описывает каталоги конвейера импорта
type ImporterConfig struct {
	SourceDir      string        `yaml:"source_dir"`
	TargetDir      string        `yaml:"target_dir"`
	BackupDir      string        `yaml:"backup_dir"`
	SourceExt      string        `yaml:"source_ext"`
	AssetExt       string        `yaml:"asset_ext"`
	MaxBackupSlots int           `yaml:"max_backup_slots"`
	StrictLookup   bool          `yaml:"strict_lookup"`
	PollInterval   time.Duration `yaml:"poll_interval"`
}

// Поддерживаемые бэкенды хранилища
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendBadger = "badger"
	BackendMaria  = "mariadb"
	BackendMongo  = "mongodb"
	BackendRedis  = "redis"
)

type StorageConfig struct {
	Backend  string      `yaml:"backend"`
	Compress bool        `yaml:"compress"`
	Path     string      `yaml:"path"` // каталог для file и badger
	MariaDSN string      `yaml:"maria_dsn"`
	Mongo    MongoConfig `yaml:"mongo"`
	Redis    RedisConfig `yaml:"redis"`
}

type MongoConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

type EventBusConfig struct {
	URL       string `yaml:"url"` // пусто = шина в памяти
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
}

type ServerConfig struct {
	Enabled     bool `yaml:"enabled"`
	RESTPort    int  `yaml:"rest_port"`
	MetricsPort int  `yaml:"metrics_port"`
}

type LoggingConfig struct {
	Dir        string `yaml:"dir"`
	Level      string `yaml:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
	Endpoint    string `yaml:"endpoint"`
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		Importer: ImporterConfig{
			SourceDir:      "incoming",
			TargetDir:      "assets/maps",
			BackupDir:      "backup",
			SourceExt:      ".tmx",
			AssetExt:       ".asset",
			MaxBackupSlots: 1000,
			PollInterval:   2 * time.Second,
		},
		Storage: StorageConfig{
			Backend: BackendBadger,
			Path:    "data/assets",
			Redis:   RedisConfig{Addr: "localhost:6379", KeyPrefix: "tmx:asset:"},
		},
		EventBus: EventBusConfig{Stream: "TMX_EVENTS", Retention: 24},
		Server:   ServerConfig{},
		Logging:  LoggingConfig{Dir: "logs", Level: "info", MaxSizeMB: 10, MaxBackups: 3, MaxAgeDays: 7},
		Telemetry: TelemetryConfig{
			ServiceName: "tmx-importer",
			Endpoint:    "localhost:4318",
		},
	}
}

// GetRESTPort возвращает REST API порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "TMX_REST_PORT", 8088)
}

// GetMetricsPort возвращает Prometheus метрики порт с поддержкой fallback значений
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "TMX_METRICS_PORT", 2112)
}

// GetMariaDSN возвращает DSN с приоритетом config -> env
func (s *StorageConfig) GetMariaDSN() string {
	if s.MariaDSN != "" {
		return s.MariaDSN
	}
	return os.Getenv("TMX_MARIA_DSN")
}

// GetURL возвращает адрес NATS с приоритетом config -> env
func (e *EventBusConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	return os.Getenv("TMX_NATS_URL")
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

// Validate проверяет согласованность настроек
func (c *Config) Validate() error {
	imp := c.Importer
	if imp.SourceDir == "" || imp.TargetDir == "" || imp.BackupDir == "" {
		return fmt.Errorf("importer: source_dir, target_dir и backup_dir обязательны")
	}
	if !relativeKeyDir(imp.TargetDir) {
		return fmt.Errorf("importer: target_dir %q должен быть относительным путём внутри хранилища", imp.TargetDir)
	}
	if imp.SourceExt == "" {
		return fmt.Errorf("importer: source_ext не может быть пустым")
	}
	if imp.MaxBackupSlots <= 0 {
		return fmt.Errorf("importer: max_backup_slots должен быть > 0, получено %d", imp.MaxBackupSlots)
	}

	switch c.Storage.Backend {
	case BackendMemory, BackendRedis:
	case BackendFile, BackendBadger:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage: для бэкенда %s нужен path", c.Storage.Backend)
		}
	case BackendMaria:
		if c.Storage.GetMariaDSN() == "" {
			return fmt.Errorf("storage: для mariadb нужен maria_dsn или TMX_MARIA_DSN")
		}
	case BackendMongo:
		if c.Storage.Mongo.URI == "" {
			return fmt.Errorf("storage: для mongodb нужен mongo.uri")
		}
	default:
		return fmt.Errorf("storage: неизвестный бэкенд %q", c.Storage.Backend)
	}

	return nil
}

// relativeKeyDir проверяет, что dir годится как префикс ключей ассетов
func relativeKeyDir(dir string) bool {
	if filepath.IsAbs(dir) {
		return false
	}
	clean := path.Clean(strings.ReplaceAll(dir, "\\", "/"))
	return !path.IsAbs(clean) && clean != ".." && !strings.HasPrefix(clean, "../")
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", пытается прочитать из ENV TMX_IMPORTER_CONFIG или возвращает Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("TMX_IMPORTER_CONFIG")
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("ошибка разбора %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
