package system

import (
	"fmt"
	"reflect"

	"github.com/l1jgo/thallium/internal/core/ecs"
	"github.com/l1jgo/thallium/internal/core/event"
)

// UndeclaredError is the panic value raised when a body asks its Context for
// a parameter it did not declare. The Runner turns it into an error.
type UndeclaredError struct {
	System string
	Param  string
}

func (e *UndeclaredError) Error() string {
	return fmt.Sprintf("system %s: %s parameter not declared", e.System, e.Param)
}

func (e *UndeclaredError) Unwrap() error        { return ErrUndeclaredParam }
func (e *UndeclaredError) Is(target error) bool { return target == ErrUndeclaredParam }

// Context carries the resolved parameters of one system execution. It is
// valid only while the body runs.
type Context struct {
	world     *ecs.World
	system    *System
	bus       *event.Bus
	entities  bool
	tick      bool
	events    bool
	queries   map[*QueryParam]*ecs.Query
	resources map[reflect.Type]*ecs.ResourceHandle
	handles   []*ecs.ResourceHandle
	declared  map[*NestedParam]bool
	nested    []*ecs.Query
	commands  *ecs.Commands
	current   uint64
	lastRun   uint64
}

// resolve acquires every borrow s declares. On failure nothing stays held.
func resolve(w *ecs.World, bus *event.Bus, s *System) (*Context, error) {
	ctx := &Context{
		world:   w,
		system:  s,
		bus:     bus,
		current: w.Tick(),
		lastRun: s.lastRun,
	}
	for _, p := range s.params {
		switch p := p.(type) {
		case *QueryParam:
			q, err := w.QuerySince(p.desc, s.lastRun)
			if err != nil {
				ctx.release()
				return nil, err
			}
			if ctx.queries == nil {
				ctx.queries = make(map[*QueryParam]*ecs.Query)
			}
			ctx.queries[p] = q
		case *ResourceParam:
			h, err := w.OpenResource(p.borrow, p.optional, s.lastRun)
			if err != nil {
				ctx.release()
				return nil, err
			}
			if ctx.resources == nil {
				ctx.resources = make(map[reflect.Type]*ecs.ResourceHandle)
			}
			if _, dup := ctx.resources[p.borrow.Key.Type]; !dup {
				ctx.resources[p.borrow.Key.Type] = h
			}
			ctx.handles = append(ctx.handles, h)
		case *NestedParam:
			if ctx.declared == nil {
				ctx.declared = make(map[*NestedParam]bool)
			}
			ctx.declared[p] = true
		default:
			switch p.Kind() {
			case KindEntities:
				ctx.entities = true
			case KindTick:
				ctx.tick = true
			case KindEvents:
				ctx.events = true
			case KindCommands:
				ctx.commands = ecs.NewCommands()
			}
		}
	}
	return ctx, nil
}

// release returns every borrow the context holds, nested queries included.
func (c *Context) release() {
	for _, q := range c.nested {
		q.Release()
	}
	for _, q := range c.queries {
		q.Release()
	}
	for _, h := range c.handles {
		h.Release()
	}
}

func (c *Context) undeclared(what string) {
	panic(&UndeclaredError{System: c.system.name, Param: what})
}

func (c *Context) SystemName() string { return c.system.name }

func (c *Context) Entities() ecs.Entities {
	if !c.entities {
		c.undeclared("entities")
	}
	return c.world.Entities()
}

// Query returns the open view for p.
func (c *Context) Query(p *QueryParam) *ecs.Query {
	q, ok := c.queries[p]
	if !ok {
		c.undeclared("query")
	}
	return q
}

// Nested opens the declared nested query p for the rest of this execution.
// It fails with ecs.ErrBorrowConflict if p overlaps a borrow already held.
func (c *Context) Nested(p *NestedParam) (*ecs.Query, error) {
	if !c.declared[p] {
		c.undeclared("nested query")
	}
	q, err := c.world.QuerySince(p.desc, c.lastRun)
	if err != nil {
		return nil, err
	}
	c.nested = append(c.nested, q)
	return q, nil
}

func (c *Context) Commands() *ecs.Commands {
	if c.commands == nil {
		c.undeclared("commands")
	}
	return c.commands
}

func (c *Context) Events() *event.Bus {
	if !c.events || c.bus == nil {
		c.undeclared("events")
	}
	return c.bus
}

func (c *Context) CurrentTick() uint64 {
	if !c.tick {
		c.undeclared("tick")
	}
	return c.current
}

// LastRunTick is the tick this system last completed at, or 0.
func (c *Context) LastRunTick() uint64 {
	if !c.tick {
		c.undeclared("tick")
	}
	return c.lastRun
}

func (c *Context) resource(t reflect.Type) *ecs.ResourceHandle {
	h, ok := c.resources[t]
	if !ok {
		c.undeclared("resource " + t.String())
	}
	return h
}

// Resource returns shared access to the declared resource T.
func Resource[T any](c *Context) ecs.Res[T] {
	return ecs.ResOf[T](c.resource(reflect.TypeFor[T]()))
}

// ResourceMut returns exclusive access to the declared resource T.
func ResourceMut[T any](c *Context) ecs.ResMut[T] {
	return ecs.ResMutOf[T](c.resource(reflect.TypeFor[T]()))
}
