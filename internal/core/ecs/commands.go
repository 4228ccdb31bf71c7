package ecs

import "go.uber.org/multierr"

// Edit is one deferred change to an entity's components.
type Edit func(w *World, e Entity) error

// With adds or replaces v.
func With[T any](v T) Edit {
	return func(w *World, e Entity) error {
		return Add(w, e, v)
	}
}

// Without removes the entity's T, if any.
func Without[T any]() Edit {
	return func(w *World, e Entity) error {
		_, _, err := Remove[T](w, e)
		return err
	}
}

// Commands queues structural changes made from inside a system. They are
// applied in order once the system's borrows are released.
type Commands struct {
	ops []func(*World) error
}

func NewCommands() *Commands {
	return &Commands{}
}

// Spawn creates an entity and applies edits to it.
func (c *Commands) Spawn(edits ...Edit) {
	c.ops = append(c.ops, func(w *World) error {
		e := w.CreateEntity()
		return applyEdits(w, e, edits)
	})
}

func (c *Commands) Destroy(e Entity) {
	c.ops = append(c.ops, func(w *World) error {
		return w.DestroyEntity(e)
	})
}

func (c *Commands) Edit(e Entity, edits ...Edit) {
	c.ops = append(c.ops, func(w *World) error {
		return applyEdits(w, e, edits)
	})
}

// Schedule queues an arbitrary mutation.
func (c *Commands) Schedule(fn func(*World) error) {
	c.ops = append(c.ops, fn)
}

func (c *Commands) Len() int { return len(c.ops) }

func (c *Commands) Reset() { c.ops = c.ops[:0] }

// Apply runs every queued command, continuing past failures, and empties
// the queue. The returned error combines all failures.
func (c *Commands) Apply(w *World) error {
	var errs error
	for _, op := range c.ops {
		errs = multierr.Append(errs, op(w))
	}
	c.Reset()
	return errs
}

func applyEdits(w *World, e Entity, edits []Edit) error {
	var errs error
	for _, edit := range edits {
		errs = multierr.Append(errs, edit(w, e))
	}
	return errs
}
