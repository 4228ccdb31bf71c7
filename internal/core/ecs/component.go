package ecs

import (
	"iter"
	"reflect"
)

// store is the narrow, type-erased view the World and queries keep of every
// Storage. The only down-cast back to *Storage[T] lives in storageAs.
type store interface {
	componentType() reflect.Type
	remove(e Entity) bool
	contains(e Entity) bool
	position(e Entity) (int32, bool)
	entityAt(pos int32) Entity
	size() int
}

type slot[T any] struct {
	entity  Entity
	added   uint64
	changed uint64
	value   T
}

// Storage maps live entities to at most one T. It is a sparse set: sparse is
// indexed by entity slot, dense holds the values packed. Iteration walks the
// dense array, which stays in insertion order until a removal swaps the last
// value into the hole.
type Storage[T any] struct {
	sparse []int32
	dense  []slot[T]
}

func NewStorage[T any](capacity int) *Storage[T] {
	return &Storage[T]{
		dense: make([]slot[T], 0, capacity),
	}
}

// Insert stores v for e and returns the value it replaced, if any. An entry
// left behind by an older generation of the same slot is overwritten, not
// returned.
func (s *Storage[T]) Insert(e Entity, v T, tick uint64) (T, bool) {
	var prev T
	idx := int(e.Index())
	if idx >= len(s.sparse) {
		grow := idx + 1 - len(s.sparse)
		for range grow {
			s.sparse = append(s.sparse, -1)
		}
	}
	if pos := s.sparse[idx]; pos >= 0 {
		sl := &s.dense[pos]
		if sl.entity == e {
			prev = sl.value
			sl.value = v
			sl.changed = tick
			return prev, true
		}
		*sl = slot[T]{entity: e, added: tick, changed: tick, value: v}
		return prev, false
	}
	s.sparse[idx] = int32(len(s.dense))
	s.dense = append(s.dense, slot[T]{entity: e, added: tick, changed: tick, value: v})
	return prev, false
}

// Remove deletes and returns the value stored for e.
func (s *Storage[T]) Remove(e Entity) (T, bool) {
	var zero T
	pos, ok := s.position(e)
	if !ok {
		return zero, false
	}
	v := s.dense[pos].value
	last := int32(len(s.dense) - 1)
	if pos != last {
		moved := s.dense[last]
		s.dense[pos] = moved
		s.sparse[moved.entity.Index()] = pos
	}
	s.dense[last] = slot[T]{}
	s.dense = s.dense[:last]
	s.sparse[e.Index()] = -1
	return v, true
}

func (s *Storage[T]) Get(e Entity) (T, bool) {
	var zero T
	pos, ok := s.position(e)
	if !ok {
		return zero, false
	}
	return s.dense[pos].value, true
}

// GetMut returns a pointer into the storage. It is invalidated by the next
// Insert or Remove on this storage.
func (s *Storage[T]) GetMut(e Entity) (*T, bool) {
	pos, ok := s.position(e)
	if !ok {
		return nil, false
	}
	return &s.dense[pos].value, true
}

func (s *Storage[T]) Contains(e Entity) bool {
	_, ok := s.position(e)
	return ok
}

func (s *Storage[T]) Len() int { return len(s.dense) }

// All yields every stored value in dense order.
func (s *Storage[T]) All() iter.Seq2[Entity, *T] {
	return func(yield func(Entity, *T) bool) {
		for i := range s.dense {
			if !yield(s.dense[i].entity, &s.dense[i].value) {
				return
			}
		}
	}
}

func (s *Storage[T]) componentType() reflect.Type { return reflect.TypeFor[T]() }

func (s *Storage[T]) remove(e Entity) bool {
	_, ok := s.Remove(e)
	return ok
}

func (s *Storage[T]) contains(e Entity) bool { return s.Contains(e) }
func (s *Storage[T]) size() int              { return len(s.dense) }
func (s *Storage[T]) entityAt(pos int32) Entity {
	return s.dense[pos].entity
}

func (s *Storage[T]) position(e Entity) (int32, bool) {
	idx := int(e.Index())
	if idx >= len(s.sparse) {
		return -1, false
	}
	pos := s.sparse[idx]
	if pos < 0 || s.dense[pos].entity != e {
		return -1, false
	}
	return pos, true
}

func (s *Storage[T]) slotAt(pos int32) *slot[T] { return &s.dense[pos] }
