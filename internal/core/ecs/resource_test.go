package ecs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ Frames int }

func TestResourceLifecycle(t *testing.T) {
	w := NewWorld()
	_, ok := ResourceOf[clock](w)
	assert.False(t, ok)

	require.NoError(t, InsertResource(w, clock{Frames: 1}))
	got, ok := ResourceOf[clock](w)
	require.True(t, ok)
	assert.Equal(t, 1, got.Frames)

	require.NoError(t, InsertResource(w, clock{Frames: 2}))
	got, _ = ResourceOf[clock](w)
	assert.Equal(t, 2, got.Frames)

	v, ok, err := RemoveResource[clock](w)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, v.Frames)
	_, ok = ResourceOf[clock](w)
	assert.False(t, ok)
}

func TestResourceHandles(t *testing.T) {
	w := NewWorld()
	require.NoError(t, InsertResource(w, clock{}))
	lastRun := w.Tick()
	w.NextTick()

	write := Borrow{Key: resourceKey[clock](), Access: Exclusive}
	h, err := w.OpenResource(write, false, lastRun)
	require.NoError(t, err)

	_, err = w.OpenResource(Borrow{Key: resourceKey[clock](), Access: Shared}, false, lastRun)
	assert.ErrorIs(t, err, ErrBorrowConflict)
	assert.ErrorIs(t, InsertResource(w, clock{}), ErrBorrowConflict)

	m := ResMutOf[clock](h)
	assert.False(t, m.Changed())
	m.Ptr().Frames += 3
	assert.True(t, m.Changed())
	assert.Panics(t, func() { ResOf[health](h) })
	h.Release()
	h.Release()

	got, _ := ResourceOf[clock](w)
	assert.Equal(t, 3, got.Frames)
}

func TestResourceMissing(t *testing.T) {
	w := NewWorld()
	b := Borrow{Key: resourceKey[clock](), Access: Shared}
	_, err := w.OpenResource(b, false, 0)
	assert.ErrorIs(t, err, ErrNoSuchResource)

	h, err := w.OpenResource(b, true, 0)
	require.NoError(t, err)
	defer h.Release()
	r := ResOf[clock](h)
	assert.False(t, r.Ok())
	assert.Equal(t, clock{}, r.Get())
	assert.Panics(t, func() { ResMutOf[clock](h) }, "shared handle used exclusively")
}
