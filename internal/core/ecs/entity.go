package ecs

import (
	"fmt"
	"iter"
	"math"
)

// Entity encodes a 32-bit slot index in the lower bits and a 32-bit
// generation in the upper bits. Live generations are always odd, so the zero
// Entity never refers to a live slot.
type Entity uint64

// Nil is the zero Entity. It is never alive.
const Nil Entity = 0

func NewEntity(index uint32, generation uint32) Entity {
	return Entity(uint64(generation)<<32 | uint64(index))
}

func (e Entity) Index() uint32      { return uint32(e) }
func (e Entity) Generation() uint32 { return uint32(e >> 32) }
func (e Entity) IsNil() bool        { return e == Nil }

func (e Entity) String() string {
	return fmt.Sprintf("%dv%d", e.Index(), e.Generation())
}

// Allocator manages entity allocation with generational indices and a free list.
//
// A slot's generation is odd while the slot is occupied and even while it is
// free. Destroy bumps the generation, so every handle issued for the previous
// occupant stops matching. A slot whose generation would wrap is retired
// instead of recycled.
type Allocator struct {
	generations []uint32
	freeList    []uint32
	live        int
}

func NewAllocator(capacity int) *Allocator {
	return &Allocator{
		generations: make([]uint32, 0, capacity),
		freeList:    make([]uint32, 0, capacity/4),
	}
}

// Create returns a live handle that differs from every other live handle.
func (a *Allocator) Create() Entity {
	a.live++
	if n := len(a.freeList); n > 0 {
		idx := a.freeList[n-1]
		a.freeList = a.freeList[:n-1]
		a.generations[idx]++
		return NewEntity(idx, a.generations[idx])
	}
	idx := uint32(len(a.generations))
	a.generations = append(a.generations, 1)
	return NewEntity(idx, 1)
}

func (a *Allocator) Alive(e Entity) bool {
	idx := e.Index()
	if int(idx) >= len(a.generations) {
		return false
	}
	gen := a.generations[idx]
	return gen&1 == 1 && gen == e.Generation()
}

// Destroy frees the slot of e. It reports false, with no side effects, when
// e is stale, already destroyed or out of range.
func (a *Allocator) Destroy(e Entity) bool {
	if !a.Alive(e) {
		return false
	}
	idx := e.Index()
	a.live--
	if a.generations[idx] == math.MaxUint32 {
		a.generations[idx] = 0
		return true
	}
	a.generations[idx]++
	a.freeList = append(a.freeList, idx)
	return true
}

// Len returns the number of live entities.
func (a *Allocator) Len() int { return a.live }

// All yields every live entity in slot order.
func (a *Allocator) All() iter.Seq[Entity] {
	return func(yield func(Entity) bool) {
		for idx, gen := range a.generations {
			if gen&1 == 0 {
				continue
			}
			if !yield(NewEntity(uint32(idx), gen)) {
				return
			}
		}
	}
}

// Entities is the read-only view of the live entity set handed to systems.
type Entities struct {
	alloc *Allocator
}

func (e Entities) Alive(x Entity) bool { return e.alloc.Alive(x) }
func (e Entities) Len() int            { return e.alloc.Len() }

// All yields the live entities at the time of each step of the iteration.
func (e Entities) All() iter.Seq[Entity] { return e.alloc.All() }
