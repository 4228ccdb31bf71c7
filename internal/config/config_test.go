package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse("inline", []byte(`
[app]
name = "demo"

[scheduler]
mode = "parallel"
workers = 4

[logging]
level = "debug"

[data]
spawn_list = "data/people.yaml"
`))
	require.NoError(t, err)
	assert.Equal(t, "demo", cfg.App.Name)
	assert.Equal(t, "parallel", cfg.Scheduler.Mode)
	assert.Equal(t, 4, cfg.Scheduler.Workers)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format, "unset keys keep their default")
	assert.Equal(t, 1024, cfg.World.EntityCapacity)
	assert.Equal(t, "data/people.yaml", cfg.Data.SpawnList)
}

func TestParseRejects(t *testing.T) {
	for name, src := range map[string]string{
		"syntax":   `[app`,
		"mode":     "[scheduler]\nmode = \"eager\"",
		"workers":  "[scheduler]\nworkers = -1",
		"capacity": "[world]\nentity_capacity = -5",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(name, []byte(src))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thallium.toml")
	require.NoError(t, os.WriteFile(path, []byte("[scripting]\nenabled = true\ndir = \"lua\"\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Scripting.Enabled)
	assert.Equal(t, "lua", cfg.Scripting.Dir)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
