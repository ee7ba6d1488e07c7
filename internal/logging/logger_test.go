package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, DEBUG, lvl)

	lvl, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, INFO, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestWriterLogger_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger("importer", &buf, WARN)

	l.Info("скрыто")
	l.Warn("видно %d", 1)

	out := buf.String()
	assert.NotContains(t, out, "скрыто")
	assert.Contains(t, out, "[WARN] [importer] видно 1")
}

func TestPackageFunctionsUseDefault(t *testing.T) {
	var buf bytes.Buffer
	restore := SetDefault(NewWriterLogger("", &buf, DEBUG))
	defer restore()

	Debug("отладка")
	Trace("трассировка")
	assert.Contains(t, buf.String(), "[DEBUG] отладка")
	assert.NotContains(t, buf.String(), "трассировка")
}

func TestFileLogger_WritesAllLevels(t *testing.T) {
	dir := t.TempDir()
	l, err := NewFileLogger("audit", Options{Dir: dir, ConsoleLevel: ERROR, MaxSizeMB: 1})
	require.NoError(t, err)

	l.Trace("trace line")
	l.Info("info line")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(filepath.Join(dir, "audit.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "[TRACE] [audit] trace line")
	assert.Contains(t, string(data), "[INFO] [audit] info line")

	// После Close запись в файл прекращается без паники
	l.Info("after close")
}

func TestLoggerManager_CachesComponents(t *testing.T) {
	lm := &LoggerManager{loggers: make(map[string]*Logger)}
	a, err := lm.GetLogger("b")
	require.NoError(t, err)
	again, err := lm.GetLogger("b")
	require.NoError(t, err)
	assert.Same(t, a, again)

	_, err = lm.GetLogger("a")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, lm.ListComponents())

	require.NoError(t, lm.SetLogLevel("a", ERROR, ERROR))
	assert.Error(t, lm.SetLogLevel("missing", INFO, INFO))
	require.NoError(t, lm.CloseAll())
	assert.Empty(t, lm.ListComponents())
}
