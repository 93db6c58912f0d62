package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLayout(t *testing.T) {
	cfg := Default("/srv/stagehand")
	assert.Equal(t, "/srv/stagehand/state.db", cfg.DBPath)
	assert.Equal(t, "/srv/stagehand/definitions", cfg.DefinitionsDir)
	assert.Equal(t, "/srv/stagehand/outbox", cfg.OutboxDir)
	assert.Equal(t, "/srv/stagehand/brands/_shared/pattern-library.jsonl", cfg.PatternLibrary)
}

func TestResolveRootPrecedence(t *testing.T) {
	t.Setenv(EnvRoot, "/env/root")

	root, err := ResolveRoot("/flag/root")
	require.NoError(t, err)
	assert.Equal(t, "/flag/root", root)

	root, err = ResolveRoot("")
	require.NoError(t, err)
	assert.Equal(t, "/env/root", root)
}

func TestLoadWithoutConfigFile(t *testing.T) {
	root := t.TempDir()

	cfg, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, Default(root), cfg)
}

func TestLoadMergesConfigFile(t *testing.T) {
	root := t.TempDir()
	body := `
dbPath: /custom/state.db
execTimeout: 2m
notify:
  command: notify-send
  args: ["--to", "{{destination}}", "--message", "{{message}}"]
  timeout: 30s
`
	require.NoError(t, os.WriteFile(filepath.Join(root, "config.yaml"), []byte(body), 0o644))

	cfg, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, "/custom/state.db", cfg.DBPath)
	assert.Equal(t, 2*time.Minute, cfg.ExecTimeout.Std())
	assert.Equal(t, "notify-send", cfg.Notify.Command)
	assert.Equal(t, 30*time.Second, cfg.Notify.Timeout.Std())
	// untouched settings keep their defaults
	assert.Equal(t, filepath.Join(root, "outbox"), cfg.OutboxDir)
}

func TestLoadMalformedConfig(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "config.yaml"), []byte("dbPath: [broken"), 0o644))

	_, err := Load(root)
	require.Error(t, err)
}

func TestEnsureDirs(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "root")
	cfg := Default(root)

	require.NoError(t, cfg.EnsureDirs())
	assert.DirExists(t, cfg.DefinitionsDir)
	assert.DirExists(t, cfg.OutboxDir)
	assert.DirExists(t, filepath.Dir(cfg.PatternLibrary))
}
