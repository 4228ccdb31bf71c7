package ecs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandsApplyInOrder(t *testing.T) {
	w := NewWorld()
	victim := w.CreateEntity()
	keep := w.CreateEntity()
	require.NoError(t, Add(w, keep, health{HP: 1}))

	c := NewCommands()
	c.Spawn(With(health{HP: 9}), With(position{1, 1}))
	c.Destroy(victim)
	c.Edit(keep, Without[health](), With(position{4, 4}))
	c.Schedule(func(w *World) error { return InsertResource(w, clock{Frames: 1}) })
	assert.Equal(t, 4, c.Len())
	assert.Equal(t, 2, w.Entities().Len(), "nothing applied yet")

	require.NoError(t, c.Apply(w))
	assert.Equal(t, 0, c.Len())
	assert.False(t, w.Alive(victim))
	assert.False(t, Has[health](w, keep))
	p, _ := Get[position](w, keep)
	assert.Equal(t, position{4, 4}, p)
	assert.Equal(t, 1, Count[health](w))
	_, ok := ResourceOf[clock](w)
	assert.True(t, ok)
}

func TestCommandsCollectErrors(t *testing.T) {
	w := NewWorld()
	gone := w.CreateEntity()
	require.NoError(t, w.DestroyEntity(gone))

	c := NewCommands()
	c.Destroy(gone)
	c.Edit(gone, With(health{}))
	c.Spawn(With(health{}))

	err := c.Apply(w)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStaleEntity)
	assert.Equal(t, 1, Count[health](w), "later commands still run")
}
