package ecs

import (
	"reflect"

	"github.com/rotisserie/eris"
	"go.uber.org/multierr"
)

// World is the top-level ECS container. It owns the entity allocator, the
// component registry, the resources, the borrow arbiter, and a deferred
// destruction queue. All structural mutation goes through it.
type World struct {
	entities     *Allocator
	registry     *Registry
	resources    map[reflect.Type]*resourceSlot
	arbiter      *Arbiter
	tick         uint64
	destroyQueue []Entity
	hooks        Hooks
}

// Hooks observe entity lifecycle. Either field may be nil. They run
// synchronously inside CreateEntity and DestroyEntity.
type Hooks struct {
	Spawned   func(Entity)
	Destroyed func(Entity)
}

func NewWorld() *World {
	return NewWorldSized(1024, 256)
}

// NewWorldSized preallocates room for entityCap entities and componentCap
// values per component storage.
func NewWorldSized(entityCap, componentCap int) *World {
	return &World{
		entities:     NewAllocator(entityCap),
		registry:     NewRegistry(componentCap),
		resources:    make(map[reflect.Type]*resourceSlot),
		arbiter:      NewArbiter(),
		tick:         1,
		destroyQueue: make([]Entity, 0, 64),
	}
}

func (w *World) SetHooks(h Hooks) { w.hooks = h }

func (w *World) Registry() *Registry { return w.registry }
func (w *World) Arbiter() *Arbiter   { return w.arbiter }

// Tick is the current change-detection tick. It starts at 1.
func (w *World) Tick() uint64 { return w.tick }
func (w *World) NextTick()    { w.tick++ }

func (w *World) CreateEntity() Entity {
	e := w.entities.Create()
	if w.hooks.Spawned != nil {
		w.hooks.Spawned(e)
	}
	return e
}

func (w *World) Alive(e Entity) bool {
	return w.entities.Alive(e)
}

func (w *World) Entities() Entities {
	return Entities{alloc: w.entities}
}

// DestroyEntity removes every component of e and frees its slot. It fails
// with ErrStaleEntity if e is not alive and with ErrBorrowConflict if any of
// e's storages is borrowed.
func (w *World) DestroyEntity(e Entity) error {
	if !w.entities.Alive(e) {
		return eris.Wrapf(ErrStaleEntity, "destroy %s", e)
	}
	for _, s := range w.registry.containing(e) {
		if err := w.checkIdle(Key{Space: ComponentSpace, Type: s.componentType()}); err != nil {
			return err
		}
	}
	w.registry.RemoveAll(e)
	w.entities.Destroy(e)
	if w.hooks.Destroyed != nil {
		w.hooks.Destroyed(e)
	}
	return nil
}

// MarkForDestruction queues e for FlushDestroyQueue.
func (w *World) MarkForDestruction(e Entity) {
	w.destroyQueue = append(w.destroyQueue, e)
}

// FlushDestroyQueue destroys all queued entities. Entities that died in the
// meantime are skipped.
func (w *World) FlushDestroyQueue() error {
	var errs error
	for _, e := range w.destroyQueue {
		if !w.entities.Alive(e) {
			continue
		}
		errs = multierr.Append(errs, w.DestroyEntity(e))
	}
	w.destroyQueue = w.destroyQueue[:0]
	return errs
}

// checkIdle rejects structural mutation of a type while a view of it is out.
func (w *World) checkIdle(k Key) error {
	if held := w.arbiter.Held(k); held != 0 {
		return &BorrowError{Key: k, Held: held, Requested: Exclusive, Reason: "structural change while borrowed"}
	}
	return nil
}

// Add attaches v to e, replacing any existing T.
func Add[T any](w *World, e Entity, v T) error {
	if !w.entities.Alive(e) {
		return eris.Wrapf(ErrStaleEntity, "add %s to %s", reflect.TypeFor[T](), e)
	}
	if err := w.checkIdle(componentKey[T]()); err != nil {
		return err
	}
	ensureStorage[T](w.registry).Insert(e, v, w.tick)
	return nil
}

// Remove detaches and returns e's T, if it had one.
func Remove[T any](w *World, e Entity) (T, bool, error) {
	var zero T
	if !w.entities.Alive(e) {
		return zero, false, eris.Wrapf(ErrStaleEntity, "remove %s from %s", reflect.TypeFor[T](), e)
	}
	s := lookupStorage[T](w.registry)
	if s == nil {
		return zero, false, nil
	}
	if err := w.checkIdle(componentKey[T]()); err != nil {
		return zero, false, err
	}
	v, ok := s.Remove(e)
	return v, ok, nil
}

// Get returns a copy of e's T. Reading a type that is exclusively borrowed
// is a programming error and panics with a *BorrowError.
func Get[T any](w *World, e Entity) (T, bool) {
	var zero T
	if !w.entities.Alive(e) {
		return zero, false
	}
	k := componentKey[T]()
	if held := w.arbiter.Held(k); held == Exclusive {
		panic(&BorrowError{Key: k, Held: held, Requested: Shared})
	}
	s := lookupStorage[T](w.registry)
	if s == nil {
		return zero, false
	}
	return s.Get(e)
}

func Has[T any](w *World, e Entity) bool {
	if !w.entities.Alive(e) {
		return false
	}
	s := lookupStorage[T](w.registry)
	return s != nil && s.Contains(e)
}

// Count returns how many entities hold a T.
func Count[T any](w *World) int {
	s := lookupStorage[T](w.registry)
	if s == nil {
		return 0
	}
	return s.Len()
}

func componentKey[T any]() Key {
	return Key{Space: ComponentSpace, Type: reflect.TypeFor[T]()}
}
