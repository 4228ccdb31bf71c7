package ecs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tag struct{}

func collect(q *Query) []Entity {
	var out []Entity
	for e := range q.Iter() {
		out = append(out, e)
	}
	return out
}

func TestQueryIntersection(t *testing.T) {
	w := NewWorld()
	var onlyA, onlyB []Entity
	for range 5 {
		e := w.CreateEntity()
		require.NoError(t, Add(w, e, health{}))
		onlyA = append(onlyA, e)
	}
	x := w.CreateEntity()
	require.NoError(t, Add(w, x, health{HP: 1}))
	require.NoError(t, Add(w, x, position{1, 1}))
	for range 3 {
		e := w.CreateEntity()
		require.NoError(t, Add(w, e, position{}))
		onlyB = append(onlyB, e)
	}

	q, err := w.Query(MustDescriptor(Read[health](), Read[position]()))
	require.NoError(t, err)
	defer q.Release()

	assert.Equal(t, []Entity{x}, collect(q))
	assert.Equal(t, 1, q.Count())

	_, ok := q.Get(x)
	assert.True(t, ok)
	_, ok = q.Get(onlyA[0])
	assert.False(t, ok, "missing component is an absent result")
	_, ok = q.Get(onlyB[0])
	assert.False(t, ok)
}

func TestQueryReadAndWrite(t *testing.T) {
	w := NewWorld()
	e := w.CreateEntity()
	require.NoError(t, Add(w, e, health{HP: 5}))
	require.NoError(t, Add(w, e, position{2, 3}))

	q, err := w.Query(MustDescriptor(Read[position](), Write[health]()))
	require.NoError(t, err)
	for _, row := range q.Iter() {
		p := RefOf[position](row).Get()
		h := RefMutOf[health](row)
		h.Ptr().HP += p.X + p.Y
	}
	q.Release()

	got, _ := Get[health](w, e)
	assert.Equal(t, 10, got.HP)
}

func TestQueryIterIsRestartable(t *testing.T) {
	w := NewWorld()
	a := w.CreateEntity()
	require.NoError(t, Add(w, a, health{}))

	q, err := w.Query(MustDescriptor(Read[health]()))
	require.NoError(t, err)
	first := collect(q)
	second := collect(q)
	q.Release()
	assert.Equal(t, first, second)

	b := w.CreateEntity()
	require.NoError(t, Add(w, b, health{}))
	q, err = w.Query(MustDescriptor(Read[health]()))
	require.NoError(t, err)
	defer q.Release()
	assert.Equal(t, []Entity{a, b}, collect(q))
}

func TestQueryUnknownTypeMatchesNothing(t *testing.T) {
	w := NewWorld()
	w.CreateEntity()
	q, err := w.Query(MustDescriptor(Read[tag]()))
	require.NoError(t, err)
	defer q.Release()
	assert.Empty(t, collect(q))
}

func TestQueryOptionalTerms(t *testing.T) {
	w := NewWorld()
	a, b := w.CreateEntity(), w.CreateEntity()
	require.NoError(t, Add(w, a, health{HP: 1}))
	require.NoError(t, Add(w, b, health{HP: 2}))
	require.NoError(t, Add(w, b, position{7, 7}))

	q, err := w.Query(MustDescriptor(Read[health](), Maybe(Write[position]())))
	require.NoError(t, err)
	defer q.Release()

	seen := map[Entity]bool{}
	for e, row := range q.Iter() {
		p := RefMutOf[position](row)
		seen[e] = p.Ok()
		if !p.Ok() {
			assert.Nil(t, p.Ptr())
			assert.False(t, p.Set(position{}))
			assert.Equal(t, position{}, p.Get())
		}
	}
	assert.Equal(t, map[Entity]bool{a: false, b: true}, seen)
}

func TestQueryOnlyOptionalMatchesAllLive(t *testing.T) {
	w := NewWorld()
	a, b := w.CreateEntity(), w.CreateEntity()
	dead := w.CreateEntity()
	require.NoError(t, w.DestroyEntity(dead))
	require.NoError(t, Add(w, b, tag{}))

	q, err := w.Query(MustDescriptor(Maybe(Read[tag]())))
	require.NoError(t, err)
	defer q.Release()
	assert.Equal(t, []Entity{a, b}, collect(q))
}

func TestQueryGetMany(t *testing.T) {
	w := NewWorld()
	a, b, c := w.CreateEntity(), w.CreateEntity(), w.CreateEntity()
	require.NoError(t, Add(w, a, health{HP: 42}))
	require.NoError(t, Add(w, b, health{HP: 44}))

	q, err := w.Query(MustDescriptor(Write[health]()))
	require.NoError(t, err)
	defer q.Release()

	rows, ok := q.GetMany(a, b)
	require.True(t, ok)
	RefMutOf[health](rows[0]).Ptr().HP++
	RefMutOf[health](rows[1]).Ptr().HP--
	assert.Equal(t, 43, RefOf[health](rows[0]).Get().HP)
	assert.Equal(t, 43, RefOf[health](rows[1]).Get().HP)

	_, ok = q.GetMany(a, a)
	assert.False(t, ok, "duplicates are rejected")
	_, ok = q.GetMany(a, c)
	assert.False(t, ok, "every entity must match")
}

func TestQueryAccessMisusePanics(t *testing.T) {
	w := NewWorld()
	e := w.CreateEntity()
	require.NoError(t, Add(w, e, health{}))
	q, err := w.Query(MustDescriptor(Read[health]()))
	require.NoError(t, err)
	row, ok := q.Get(e)
	require.True(t, ok)

	assert.Panics(t, func() { RefMutOf[health](row) }, "shared term used exclusively")
	assert.Panics(t, func() { RefOf[position](row) }, "undeclared type")

	q.Release()
	assert.Panics(t, func() { RefOf[health](row).Get() }, "row used after release")
	assert.Panics(t, func() { collect(q) })
}

func TestQueryConflictsWithOpenQuery(t *testing.T) {
	w := NewWorld()
	reader, err := w.Query(MustDescriptor(Read[health]()))
	require.NoError(t, err)

	_, err = w.Query(MustDescriptor(Read[position](), Write[health]()))
	require.ErrorIs(t, err, ErrBorrowConflict)
	assert.Equal(t, Access(0), w.Arbiter().Held(componentKey[position]()))

	second, err := w.Query(MustDescriptor(Read[health]()))
	require.NoError(t, err, "shared readers coexist")
	second.Release()
	reader.Release()
	assert.True(t, w.Arbiter().Idle())
}

func TestDescriptorValidation(t *testing.T) {
	_, err := NewDescriptor(Read[health](), Write[health]())
	assert.ErrorIs(t, err, ErrInvalidQuery)
	_, err = NewDescriptor(Write[health](), Write[health]())
	assert.ErrorIs(t, err, ErrInvalidQuery)
	_, err = NewDescriptor(Term{})
	assert.ErrorIs(t, err, ErrInvalidQuery)

	d, err := NewDescriptor(Read[health](), Read[health]())
	require.NoError(t, err)
	assert.Len(t, d.Borrows(), 1)
	assert.Len(t, d.Terms(), 2)
}

func TestChangeDetection(t *testing.T) {
	w := NewWorld()
	a, b := w.CreateEntity(), w.CreateEntity()
	require.NoError(t, Add(w, a, health{}))
	require.NoError(t, Add(w, b, health{}))
	lastRun := w.Tick()
	w.NextTick()

	q, err := w.QuerySince(MustDescriptor(Write[health]()), lastRun)
	require.NoError(t, err)
	row, _ := q.Get(a)
	RefMutOf[health](row).Set(health{HP: 1})
	q.Release()

	q, err = w.QuerySince(MustDescriptor(Read[health]()), lastRun)
	require.NoError(t, err)
	defer q.Release()
	changed := map[Entity]bool{}
	for e, row := range q.Iter() {
		ref := RefOf[health](row)
		changed[e] = ref.Changed()
		assert.False(t, ref.Added())
	}
	assert.Equal(t, map[Entity]bool{a: true, b: false}, changed)
}

func BenchmarkQueryIter2(b *testing.B) {
	w := NewWorld()
	for i := range 10000 {
		e := w.CreateEntity()
		_ = Add(w, e, health{HP: i})
		if i%10 == 0 {
			_ = Add(w, e, position{})
		}
	}
	d := MustDescriptor(Write[health](), Read[position]())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		q, _ := w.Query(d)
		for _, row := range q.Iter() {
			RefMutOf[health](row).Ptr().HP++
		}
		q.Release()
	}
}
