package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/enginebridge/internal/bridge"
	"github.com/roach88/enginebridge/internal/engine"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
[bridge]
sentinel_prefix = "@@"
sentinel_length = 20
small_array_limit = 10

[engine]
max_callback_depth = 8

[workspace]
db = "state/ws.db"
name = "lab"

[log]
level = "debug"
format = "json"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "@@", cfg.Bridge.SentinelPrefix)
	assert.Equal(t, 20, cfg.Bridge.SentinelLength)
	assert.Equal(t, 10, cfg.Bridge.SmallArrayLimit)
	assert.Equal(t, "thinwrapper", cfg.Bridge.ThinWrapperClass, "unset keys keep their defaults")
	assert.Equal(t, "invoke_by_id", cfg.Bridge.AdapterName)
	assert.Equal(t, 8, cfg.Engine.MaxCallbackDepth)
	assert.Equal(t, "lab", cfg.Workspace.Name)
	assert.Equal(t, filepath.Join(dir, "state", "ws.db"), cfg.DBPath())
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(filepath.Join(dir, FileName))
	require.NoError(t, err)

	assert.Equal(t, bridge.DefaultOptions(), cfg.BridgeOptions())
	assert.Equal(t, engine.DefaultMaxCallbackDepth, cfg.Engine.MaxCallbackDepth)
	assert.Equal(t, "default", cfg.Workspace.Name)
	assert.Equal(t, dir, cfg.Dir)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"syntax", "[bridge\n", "parse error"},
		{"unknown key", "[bridge]\nsentinel = 3\n", "unknown keys"},
		{"unknown section", "[server]\nport = 1\n", "unknown keys"},
		{"short sentinel", "[bridge]\nsentinel_length = 2\n", "sentinel_length"},
		{"negative depth", "[engine]\nmax_callback_depth = -1\n", "max_callback_depth"},
		{"bad level", "[log]\nlevel = \"loud\"\n", "log.level"},
		{"bad format", "[log]\nformat = \"xml\"\n", "log.format"},
		{"empty adapter", "[bridge]\nadapter_name = \"\"\n", "adapter_name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.content)
			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFindAndLoad_WalksUp(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "[workspace]\nname = \"found\"\n")
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))

	cfg, err := FindAndLoad(nested)
	require.NoError(t, err)
	assert.Equal(t, "found", cfg.Workspace.Name)
	assert.Equal(t, root, cfg.Dir)
}

func TestFindAndLoad_NoFile(t *testing.T) {
	dir := t.TempDir()

	cfg, err := FindAndLoad(dir)
	require.NoError(t, err)
	assert.Equal(t, "default", cfg.Workspace.Name)
	assert.Equal(t, filepath.Join(dir, ".enginebridge", "workspace.db"), cfg.DBPath())
}

func TestCatalog(t *testing.T) {
	cfg := Default()
	cat, err := cfg.Catalog()
	require.NoError(t, err)
	assert.NotNil(t, cat)

	cfg.Dir = t.TempDir()
	cfg.Engine.CatalogDir = "missing"
	_, err = cfg.Catalog()
	assert.Error(t, err)
}

func TestEngineOptions(t *testing.T) {
	cfg := Default()
	cfg.Engine.MaxCallbackDepth = 3

	var buf bytes.Buffer
	logger, err := cfg.Logger(&buf)
	require.NoError(t, err)

	opts, err := cfg.EngineOptions(logger)
	require.NoError(t, err)
	e := engine.New(opts...)
	defer e.Close()
	assert.Equal(t, 3, e.MaxCallbackDepth())
}

func TestLogger(t *testing.T) {
	tests := []struct {
		name    string
		log     Log
		wantOut string
		quiet   bool
	}{
		{"text", Log{Level: "info", Format: "text"}, "level=INFO msg=hello", false},
		{"json", Log{Level: "info", Format: "json"}, `"msg":"hello"`, false},
		{"level filters", Log{Level: "warn", Format: "text"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Log = tt.log

			var buf bytes.Buffer
			logger, err := cfg.Logger(&buf)
			require.NoError(t, err)
			logger.Info("hello")

			if tt.quiet {
				assert.Empty(t, buf.String())
				return
			}
			assert.True(t, strings.Contains(buf.String(), tt.wantOut), "got %q", buf.String())
		})
	}
}
