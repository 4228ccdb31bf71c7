package ecs

import (
	"fmt"
	"reflect"
)

// Registry tracks one storage per component type. Storages are created on
// first use and live as long as the Registry.
type Registry struct {
	stores   map[reflect.Type]store
	order    []reflect.Type
	capacity int
}

func NewRegistry(capacity int) *Registry {
	return &Registry{
		stores:   make(map[reflect.Type]store, 16),
		order:    make([]reflect.Type, 0, 16),
		capacity: capacity,
	}
}

func (r *Registry) lookup(t reflect.Type) store {
	return r.stores[t]
}

// Types returns the registered component types in first-use order.
func (r *Registry) Types() []reflect.Type {
	return append([]reflect.Type(nil), r.order...)
}

func (r *Registry) Len() int { return len(r.order) }

// containing returns the storages that currently hold a value for e.
func (r *Registry) containing(e Entity) []store {
	var out []store
	for _, t := range r.order {
		if s := r.stores[t]; s.contains(e) {
			out = append(out, s)
		}
	}
	return out
}

// RemoveAll clears e from every storage.
func (r *Registry) RemoveAll(e Entity) {
	for _, t := range r.order {
		r.stores[t].remove(e)
	}
}

// ensureStorage returns the storage for T, creating it on first use.
func ensureStorage[T any](r *Registry) *Storage[T] {
	t := reflect.TypeFor[T]()
	if s, ok := r.stores[t]; ok {
		return storageAs[T](s)
	}
	s := NewStorage[T](r.capacity)
	r.stores[t] = s
	r.order = append(r.order, t)
	return s
}

// lookupStorage returns the storage for T, or nil if T was never stored.
func lookupStorage[T any](r *Registry) *Storage[T] {
	s, ok := r.stores[reflect.TypeFor[T]()]
	if !ok {
		return nil
	}
	return storageAs[T](s)
}

func storageAs[T any](s store) *Storage[T] {
	typed, ok := s.(*Storage[T])
	if !ok {
		panic(fmt.Sprintf("ecs: storage for %s holds %s", reflect.TypeFor[T](), s.componentType()))
	}
	return typed
}
