package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"rowsync-core/internal/config/schema"
	"rowsync-core/internal/config/source"
	coreerrors "rowsync-core/internal/core/errors"
)

func withConfigFile(t *testing.T, path string) {
	t.Helper()
	prev := configFile
	configFile = path
	t.Cleanup(func() { configFile = prev })
}

func TestLoadConfig_OverridesAreValidated(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rowsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sync:\n  base_delay: 2s\n"), 0o644))
	withConfigFile(t, path)

	cfg, err := loadConfig(func(cfg *schema.Root) {
		cfg.API.Listen = "127.0.0.1:9999"
	})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9999", cfg.API.Listen)
	assert.Equal(t, "2s", cfg.Sync.BaseDelay.String())

	_, err = loadConfig(func(cfg *schema.Root) {
		cfg.Sync.Transport = "carrier-pigeon"
	})
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeConfigError))
}

func TestRenderConfig_MasksSecrets(t *testing.T) {
	cfg := source.GetDefaultConfig()
	cfg.Postgres.DSN = schema.NewSecret("postgres://user:hunter2@db/app")

	data, err := renderConfig(cfg)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hunter2")

	var back schema.Root
	require.NoError(t, yaml.Unmarshal(data, &back))
	assert.Equal(t, cfg.Sync.MaxDelay, back.Sync.MaxDelay)
	assert.Equal(t, cfg.API.Listen, back.API.Listen)
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "rowsync.yaml")
	require.NoError(t, runConfigInit(configInitCmd, []string{path}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# rowsync configuration")

	err = runConfigInit(configInitCmd, []string{path})
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeInvalidParam), "refuses to overwrite without --force")

	withConfigFile(t, path)
	_, err = loadConfig(nil)
	assert.NoError(t, err, "the generated file loads cleanly")
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	defer versionCmd.SetOut(nil)

	runVersion(versionCmd, nil)
	assert.Contains(t, buf.String(), "rowsync syncd")
}
