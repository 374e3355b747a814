package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, ":8080", c.Addr)
	assert.Equal(t, "Todo App", c.Page.Title)
	assert.Equal(t, "A single-page todo list", c.Page.Description)
	assert.Equal(t, 1024, c.Form.MaxLength)
	assert.False(t, c.Form.RequireNonEmpty)
	assert.False(t, c.Form.ServerAction)
	assert.Equal(t, uint64(1<<20), c.API.MaxRequestBodySize)
	assert.Equal(t, 30*time.Second, c.API.StreamHeartbeat)
	assert.NoError(t, c.Validate())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestLoad_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "todoform.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: 127.0.0.1:9000
page:
  title: Chores
form:
  require_non_empty: true
  max_length: 64
  server_action: true
log:
  level: debug
  format: json
api:
  cors_origins: [https://app.example.com]
  stream_heartbeat: 5s
`), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", c.Addr)
	assert.Equal(t, "Chores", c.Page.Title)
	assert.Equal(t, "A single-page todo list", c.Page.Description)
	assert.True(t, c.Form.RequireNonEmpty)
	assert.Equal(t, 64, c.Form.MaxLength)
	assert.True(t, c.Form.ServerAction)
	assert.Equal(t, "json", c.Log.Format)
	assert.Equal(t, []string{"https://app.example.com"}, c.API.CORSOrigins)
	assert.Equal(t, 5*time.Second, c.API.StreamHeartbeat)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TODOFORM_ADDR", ":7000")
	t.Setenv("TODOFORM_REQUIRE_NON_EMPTY", "true")
	t.Setenv("TODOFORM_CORS_ORIGINS", "https://a.test,https://b.test")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7000", c.Addr)
	assert.True(t, c.Form.RequireNonEmpty)
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, c.API.CORSOrigins)
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("bad env bool", func(t *testing.T) {
		t.Setenv("TODOFORM_REQUIRE_NON_EMPTY", "sometimes")
		_, err := Load("")
		assert.ErrorContains(t, err, "TODOFORM_REQUIRE_NON_EMPTY")
	})
	t.Run("bad level", func(t *testing.T) {
		t.Setenv("TODOFORM_LOG_LEVEL", "loud")
		_, err := Load("")
		assert.ErrorContains(t, err, "log level")
	})
	t.Run("bad yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("addr: [unterminated"), 0o644))
		_, err := Load(path)
		assert.ErrorContains(t, err, "parse config")
	})
}

func TestWrite_RoundTrips(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Default()))
	assert.Contains(t, buf.String(), "title: Todo App")

	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := LogConfig{Level: "warn", Format: "json"}.NewLogger(&buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", slog.String("k", "v"))
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"k":"v"`)

	_, err = LogConfig{Level: "info", Format: "xml"}.NewLogger(&buf)
	assert.Error(t, err)
}
