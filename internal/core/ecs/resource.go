package ecs

import (
	"reflect"

	"github.com/rotisserie/eris"
)

// resourceSlot holds a *T as any.
type resourceSlot struct {
	value   any
	changed uint64
}

func resourceKey[T any]() Key {
	return Key{Space: ResourceSpace, Type: reflect.TypeFor[T]()}
}

// InsertResource stores v as the World's single T, replacing any previous one.
func InsertResource[T any](w *World, v T) error {
	k := resourceKey[T]()
	if err := w.checkIdle(k); err != nil {
		return err
	}
	if rs, ok := w.resources[k.Type]; ok {
		*rs.value.(*T) = v
		rs.changed = w.tick
		return nil
	}
	w.resources[k.Type] = &resourceSlot{value: &v, changed: w.tick}
	return nil
}

// RemoveResource removes and returns the World's T.
func RemoveResource[T any](w *World) (T, bool, error) {
	var zero T
	k := resourceKey[T]()
	rs, ok := w.resources[k.Type]
	if !ok {
		return zero, false, nil
	}
	if err := w.checkIdle(k); err != nil {
		return zero, false, err
	}
	delete(w.resources, k.Type)
	return *rs.value.(*T), true, nil
}

// ResourceOf returns a copy of the World's T. Like Get, it panics if T is
// exclusively borrowed.
func ResourceOf[T any](w *World) (T, bool) {
	var zero T
	k := resourceKey[T]()
	if held := w.arbiter.Held(k); held == Exclusive {
		panic(&BorrowError{Key: k, Held: held, Requested: Shared})
	}
	rs, ok := w.resources[k.Type]
	if !ok {
		return zero, false
	}
	return *rs.value.(*T), true
}

// ResourceHandle is an open borrow of one resource.
type ResourceHandle struct {
	world    *World
	borrow   Borrow
	slot     *resourceSlot
	guard    *Guard
	lastRun  uint64
	released bool
}

// OpenResource borrows the resource named by b. A missing resource is
// ErrNoSuchResource unless optional is set, in which case the handle reports
// absent values.
func (w *World) OpenResource(b Borrow, optional bool, lastRun uint64) (*ResourceHandle, error) {
	rs, ok := w.resources[b.Key.Type]
	if !ok && !optional {
		return nil, eris.Wrapf(ErrNoSuchResource, "%s", b.Key.Type)
	}
	g, err := w.arbiter.Acquire(b)
	if err != nil {
		return nil, err
	}
	return &ResourceHandle{world: w, borrow: b, slot: rs, guard: g, lastRun: lastRun}, nil
}

func (h *ResourceHandle) Borrow() Borrow { return h.borrow }

func (h *ResourceHandle) Release() {
	if h.released {
		return
	}
	h.released = true
	h.guard.Release()
}

func (h *ResourceHandle) check(t reflect.Type, want Access) {
	if h.released {
		panic(&BorrowError{Key: h.borrow.Key, Reason: "resource used after release"})
	}
	if t != h.borrow.Key.Type {
		panic(&BorrowError{Key: Key{Space: ResourceSpace, Type: t}, Requested: want, Reason: "handle is for " + h.borrow.Key.Type.String()})
	}
	if want == Exclusive && h.borrow.Access != Exclusive {
		panic(&BorrowError{Key: h.borrow.Key, Held: Shared, Requested: Exclusive, Reason: "declared shared, used exclusively"})
	}
}

// Res is shared access to a resource.
type Res[T any] struct {
	ptr     *T
	slot    *resourceSlot
	lastRun uint64
}

// ResOf views h as a T.
func ResOf[T any](h *ResourceHandle) Res[T] {
	h.check(reflect.TypeFor[T](), Shared)
	if h.slot == nil {
		return Res[T]{}
	}
	return Res[T]{ptr: h.slot.value.(*T), slot: h.slot, lastRun: h.lastRun}
}

func (r Res[T]) Ok() bool { return r.ptr != nil }

func (r Res[T]) Get() T {
	var zero T
	if r.ptr == nil {
		return zero
	}
	return *r.ptr
}

func (r Res[T]) Changed() bool { return r.slot != nil && r.slot.changed > r.lastRun }

// ResMut is exclusive access to a resource.
type ResMut[T any] struct {
	Res[T]
	tick uint64
}

// ResMutOf views h as a mutable T. h must be an exclusive borrow.
func ResMutOf[T any](h *ResourceHandle) ResMut[T] {
	h.check(reflect.TypeFor[T](), Exclusive)
	if h.slot == nil {
		return ResMut[T]{}
	}
	return ResMut[T]{
		Res:  Res[T]{ptr: h.slot.value.(*T), slot: h.slot, lastRun: h.lastRun},
		tick: h.world.tick,
	}
}

// Ptr returns the resource and marks it changed.
func (r ResMut[T]) Ptr() *T {
	if r.ptr == nil {
		return nil
	}
	r.slot.changed = r.tick
	return r.ptr
}

func (r ResMut[T]) Set(v T) bool {
	p := r.Ptr()
	if p == nil {
		return false
	}
	*p = v
	return true
}
