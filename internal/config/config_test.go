package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reqreplay/pkg/model"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewConfig(t *testing.T) {
	t.Parallel()

	c := NewConfig()
	require.NoError(t, c.Validate())
	assert.Equal(t, "reqreplay.db", c.Sqlite.Dsn)
	assert.Equal(t, "reqreplay_", c.Sqlite.Prefix)
	assert.Equal(t, []model.Kind{model.KindXHR, model.KindFetch}, c.Record.Filters)
	assert.Equal(t, 3000, c.DevTools.ProcessTimeoutMS)
	assert.Equal(t, 8, c.DevTools.Workers)
}

func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("missing_file_defaults", func(t *testing.T) {
		c, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
		require.NoError(t, err)
		assert.Equal(t, NewConfig(), c)
	})

	t.Run("empty_path_defaults", func(t *testing.T) {
		c, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, "info", c.Log.Level)
	})

	t.Run("overrides", func(t *testing.T) {
		path := writeFile(t, `
sqlite:
  dsn: /tmp/x.db
log:
  level: debug
  writer: [console, file]
record:
  filters: [xhr, doc]
devtools:
  url: http://localhost:9333
`)
		c, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "/tmp/x.db", c.Sqlite.Dsn)
		assert.Equal(t, "reqreplay_", c.Sqlite.Prefix)
		assert.Equal(t, "debug", c.Log.Level)
		assert.Equal(t, []string{"console", "file"}, c.Log.Writer)
		assert.Equal(t, []model.Kind{model.KindXHR, model.KindDoc}, c.Record.Filters)
		assert.Equal(t, "http://localhost:9333", c.DevTools.URL)
		assert.Equal(t, 3000, c.DevTools.ProcessTimeoutMS)
	})

	t.Run("invalid_yaml", func(t *testing.T) {
		_, err := Load(writeFile(t, "sqlite: [unclosed"))
		assert.Error(t, err)
	})

	t.Run("invalid_kind", func(t *testing.T) {
		_, err := Load(writeFile(t, "record:\n  filters: [video]\n"))
		assert.Error(t, err)
	})

	t.Run("invalid_writer", func(t *testing.T) {
		_, err := Load(writeFile(t, "log:\n  writer: [syslog]\n"))
		assert.Error(t, err)
	})
}
