package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1000, cfg.Importer.MaxBackupSlots)
	assert.Equal(t, ".tmx", cfg.Importer.SourceExt)
	assert.Equal(t, BackendBadger, cfg.Storage.Backend)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	doc := `
importer:
  source_dir: in
  strict_lookup: true
  poll_interval: 500ms
storage:
  backend: memory
server:
  rest_port: 9090
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "in", cfg.Importer.SourceDir)
	assert.Equal(t, "assets/maps", cfg.Importer.TargetDir)
	assert.True(t, cfg.Importer.StrictLookup)
	assert.Equal(t, 500*time.Millisecond, cfg.Importer.PollInterval)
	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
	assert.Equal(t, 9090, cfg.Server.GetRESTPort())
}

func TestLoadFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  backend: file\n"), 0o644))
	t.Setenv("TMX_IMPORTER_CONFIG", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, BackendFile, cfg.Storage.Backend)
}

func TestLoadWithoutPath(t *testing.T) {
	t.Setenv("TMX_IMPORTER_CONFIG", "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(c *Config){
		"unknown backend": func(c *Config) { c.Storage.Backend = "sqlite" },
		"empty source":    func(c *Config) { c.Importer.SourceDir = "" },
		"zero slots":      func(c *Config) { c.Importer.MaxBackupSlots = 0 },
		"absolute target": func(c *Config) { c.Importer.TargetDir = "/srv/assets" },
		"escaping target": func(c *Config) { c.Importer.TargetDir = "../assets" },
		"badger no path":  func(c *Config) { c.Storage.Path = "" },
		"maria no dsn":    func(c *Config) { c.Storage.Backend = BackendMaria },
		"mongo no uri":    func(c *Config) { c.Storage.Backend = BackendMongo },
	}
	t.Setenv("TMX_MARIA_DSN", "")
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateAcceptsNestedTarget(t *testing.T) {
	cfg := Default()
	cfg.Importer.TargetDir = "./assets/maps/"
	assert.NoError(t, cfg.Validate())
}

func TestPortEnvFallback(t *testing.T) {
	t.Setenv("TMX_REST_PORT", "7001")
	s := ServerConfig{}
	assert.Equal(t, 7001, s.GetRESTPort())
	t.Setenv("TMX_METRICS_PORT", "bogus")
	assert.Equal(t, 2112, s.GetMetricsPort())
}
