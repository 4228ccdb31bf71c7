package data

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l1jgo/thallium/internal/component"
	"github.com/l1jgo/thallium/internal/core/ecs"
)

const people = `
entities:
  - name: alice
    components:
      Person: {name: Alice, age: 23}
  - name: bob
    components:
      Person: {name: Bob, age: 25}
      Position: {x: 3, y: 4}
  - name: drifter
    count: 3
    components:
      Position: {x: 0, y: 0}
      Velocity: {dx: 1, dy: -1}
`

func catalog() *Catalog {
	c := NewCatalog()
	Register[component.Person](c, "Person")
	Register[component.Position](c, "Position")
	Register[component.Velocity](c, "Velocity")
	return c
}

func TestSpawnList(t *testing.T) {
	list, err := ParseSpawnList([]byte(people))
	require.NoError(t, err)
	assert.Equal(t, 5, list.Total())

	w := ecs.NewWorld()
	spawned, err := catalog().Spawn(w, list, nil)
	require.NoError(t, err)
	require.Len(t, spawned, 5)

	alice, ok := ecs.Get[component.Person](w, spawned[0])
	require.True(t, ok)
	assert.Equal(t, component.Person{Name: "Alice", Age: 23}, alice)

	pos, ok := ecs.Get[component.Position](w, spawned[1])
	require.True(t, ok)
	assert.Equal(t, component.Position{X: 3, Y: 4}, pos)

	assert.Equal(t, 2, ecs.Count[component.Person](w))
	assert.Equal(t, 3, ecs.Count[component.Velocity](w))
}

func TestSpawnListRejectsUnknownComponent(t *testing.T) {
	list, err := ParseSpawnList([]byte("entities:\n  - name: ghost\n    components:\n      Spirit: {}\n"))
	require.NoError(t, err)

	w := ecs.NewWorld()
	_, err = catalog().Spawn(w, list, nil)
	assert.ErrorContains(t, err, "unknown component")
	assert.Equal(t, 0, w.Entities().Len(), "nothing is spawned from a bad list")
}

func TestSpawnListBadBody(t *testing.T) {
	list, err := ParseSpawnList([]byte("entities:\n  - name: x\n    components:\n      Person: {age: old}\n"))
	require.NoError(t, err)
	_, err = catalog().Spawn(ecs.NewWorld(), list, nil)
	assert.Error(t, err)
}

func TestParseSpawnListErrors(t *testing.T) {
	_, err := ParseSpawnList([]byte("entities: [\n"))
	assert.Error(t, err)
	_, err = ParseSpawnList([]byte("entities:\n  - name: x\n    count: -1\n"))
	assert.Error(t, err)
}

func TestLoadSpawnList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spawn.yaml")
	require.NoError(t, os.WriteFile(path, []byte(people), 0o644))
	list, err := LoadSpawnList(path)
	require.NoError(t, err)
	assert.Len(t, list.Entities, 3)

	_, err = LoadSpawnList(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCatalogNames(t *testing.T) {
	assert.Equal(t, []string{"Person", "Position", "Velocity"}, catalog().Names())
}
