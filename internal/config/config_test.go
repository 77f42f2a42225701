package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testLoader(dir string, env Environment, vars map[string]string) *Loader {
	return &Loader{
		dir:         dir,
		environment: env,
		getenv:      func(name string) string { return vars[name] },
	}
}

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
}

func TestLoad_Layering(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
server:
  port: 9000
  request_timeout: 5s
batch:
  max_concurrency: 2
storage:
  tables:
    recipes: base-recipes
`)
	writeFile(t, dir, "production.yaml", `
batch:
  max_concurrency: 8
`)

	cfg, err := testLoader(dir, Production, map[string]string{
		"RECIPES_TABLE_NAME": "env-recipes",
		"JWT_SECRET":         "s3cret",
	}).Load()
	require.NoError(t, err)

	assert.Equal(t, Production, cfg.Environment)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, 8, cfg.Batch.MaxConcurrency, "environment file overrides base")
	assert.Equal(t, "env-recipes", cfg.Storage.Tables.Recipes, "variables override files")
	assert.Equal(t, "savethespice-categories", cfg.Storage.Tables.Categories)
	assert.Equal(t, DriverDynamoDB, cfg.Storage.Driver)
	assert.Len(t, cfg.LoadedFrom, 4)
	assert.Equal(t, "env-recipes", cfg.RepositoryTables().Recipes)
}

func TestLoad_DevelopmentDefaults(t *testing.T) {
	cfg, err := testLoader(t.TempDir(), Development, nil).Load()
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, AuthNone, cfg.Auth.Mode)
	assert.Equal(t, 4, cfg.Batch.MaxConcurrency)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
	}{
		{"bad port", map[string]string{"SERVER_PORT": "http"}},
		{"port out of range", map[string]string{"SERVER_PORT": "70000"}},
		{"zero concurrency", map[string]string{"BATCH_MAX_CONCURRENCY": "0"}},
		{"bad timeout", map[string]string{"REQUEST_TIMEOUT": "soon"}},
		{"unknown driver", map[string]string{"STORAGE_DRIVER": "postgres"}},
		{"jwt without secret", map[string]string{"AUTH_MODE": "jwt"}},
		{"empty table", map[string]string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if tt.name == "empty table" {
				writeFile(t, dir, "base.yaml", "storage:\n  tables:\n    meta: \"\"\n")
			}
			_, err := testLoader(dir, Development, tt.vars).Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "server: [unclosed")
	_, err := testLoader(dir, Development, nil).Load()
	assert.Error(t, err)
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "batch:\n  max_concurrency: 2\n")
	loader := testLoader(dir, Development, nil)
	initial, err := loader.Load()
	require.NoError(t, err)

	w, err := newWatcher(loader, initial, zap.NewNop(), 20*time.Millisecond)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	var seen atomic.Int64
	w.OnChange(func(cfg *Config) { seen.Store(int64(cfg.Batch.MaxConcurrency)) })

	writeFile(t, dir, "base.yaml", "batch:\n  max_concurrency: 6\n")
	require.Eventually(t, func() bool { return seen.Load() == 6 }, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, 6, w.Current().Batch.MaxConcurrency)

	require.NoError(t, w.Close())
	writeFile(t, dir, "base.yaml", "batch:\n  max_concurrency: 0\n")
	w.reload()
	assert.Equal(t, 6, w.Current().Batch.MaxConcurrency, "invalid reloads are dropped")
}
