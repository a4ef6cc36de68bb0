package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Config_DefaultsNormalize(t *testing.T) {
	cfg := Default()
	cfg.Roots = []string{t.TempDir()}
	cfg.DataDir = t.TempDir()

	require.NoError(t, cfg.Normalize())

	assert.Equal(t, time.Second, cfg.DebounceWindow())
	assert.Equal(t, time.Hour, cfg.VacuumEvery())
	assert.Equal(t, 30*time.Second, cfg.HeartbeatEvery())
	assert.Equal(t, filepath.Join(cfg.DataDir, "index.bleve"), cfg.IndexPath)
	assert.Equal(t, filepath.Join(cfg.DataDir, "status.json"), cfg.StatusPath)
	assert.Equal(t, int64(1_000_000), cfg.MaxFileSize)
	assert.Contains(t, cfg.Extensions, ".md")
}

func Test_Config_LoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "contentindex.yaml")
	yamlContent := `roots:
  - ` + dir + `
extensions: [md, ".TXT"]
debounce: 250ms
vacuum_interval: "0"
max_file_size: 2048
`
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	cfg.DataDir = dir
	require.NoError(t, cfg.Normalize())

	assert.Equal(t, []string{".md", ".txt"}, cfg.Extensions)
	assert.Equal(t, 250*time.Millisecond, cfg.DebounceWindow())
	assert.Equal(t, time.Duration(0), cfg.VacuumEvery())
	assert.Equal(t, int64(2048), cfg.MaxFileSize)
	// Untouched fields keep their defaults.
	assert.Equal(t, DefaultHTTPAddr, cfg.HTTPAddr)
}

func Test_Config_LoadTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "contentindex.toml")
	tomlContent := `roots = ["` + filepath.ToSlash(dir) + `"]
http_addr = ""
heartbeat_interval = "5s"
exclude_patterns = ["**/drafts/**"]
`
	require.NoError(t, os.WriteFile(path, []byte(tomlContent), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	cfg.DataDir = dir
	require.NoError(t, cfg.Normalize())

	assert.Equal(t, "", cfg.HTTPAddr)
	assert.Equal(t, 5*time.Second, cfg.HeartbeatEvery())
	assert.Equal(t, []string{"**/drafts/**"}, cfg.ExcludePatterns)
}

func Test_Config_InvalidDuration(t *testing.T) {
	cfg := Default()
	cfg.Roots = []string{t.TempDir()}
	cfg.DataDir = t.TempDir()
	cfg.Debounce = "soon"

	err := cfg.Normalize()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "debounce")
}

func Test_Config_InvalidLogLevel(t *testing.T) {
	cfg := Default()
	cfg.Roots = []string{t.TempDir()}
	cfg.DataDir = t.TempDir()
	cfg.LogLevel = "verbose"

	require.Error(t, cfg.Normalize())
}

func Test_Config_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
