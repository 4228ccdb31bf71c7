package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l1jgo/thallium/internal/app"
	"github.com/l1jgo/thallium/internal/component"
	"github.com/l1jgo/thallium/internal/config"
)

func TestLoadConfigFallsBackOnlyForDefaultPath(t *testing.T) {
	t.Setenv("THALLIUM_CONFIG", "")
	dir := t.TempDir()

	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)

	_, err = loadConfig(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)

	env := filepath.Join(dir, "env.toml")
	require.NoError(t, os.WriteFile(env, []byte("[app]\nname = \"env\"\n"), 0o644))
	t.Setenv("THALLIUM_CONFIG", env)
	cfg, err = loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "env", cfg.App.Name)
}

func TestSeedFromSpawnList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "people.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
entities:
  - name: alice
    components:
      Person: {name: Alice, age: 23}
  - name: grandpa
    components:
      Person: {name: Abe, age: 80}
      Retired: {}
`), 0o644))

	a := app.New()
	require.NoError(t, seed(a, config.DataConfig{SpawnList: path}, nil))
	a.RegisterSystem(agingSystem())
	require.NoError(t, a.Update())

	var ages []int
	for e := range a.World().Entities().All() {
		p, ok := app.Component[component.Person](a, e)
		require.True(t, ok)
		ages = append(ages, p.Age)
	}
	assert.Equal(t, []int{24, 80}, ages, "retired people do not age")
}

func TestSeedDefaultScenario(t *testing.T) {
	a := app.New()
	require.NoError(t, seed(a, config.DataConfig{}, nil))
	a.RegisterSystem(agingSystem())
	require.NoError(t, a.Update())

	var got []component.Person
	for e := range a.World().Entities().All() {
		p, _ := app.Component[component.Person](a, e)
		got = append(got, p)
	}
	assert.Equal(t, []component.Person{{Name: "Alice", Age: 24}, {Name: "Bob", Age: 26}}, got)
}

func TestNewLogger(t *testing.T) {
	log, err := newLogger(config.LoggingConfig{Level: "nonsense", Format: "json"})
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(0), "bad level falls back to info")
	assert.False(t, log.Core().Enabled(-1))
}
