package scripting

import (
	"fmt"
	"reflect"

	lua "github.com/yuin/gopher-lua"

	"github.com/l1jgo/thallium/internal/core/ecs"
	"github.com/l1jgo/thallium/internal/core/system"
)

// System builds a system that calls the global Lua function fn once per row
// of a query over terms, as fn(entity, components, tick). components maps
// each bound name to a table; absent optional components are nil. Tables of
// Write terms are decoded back into the component after the call and stored
// only if the script assigned some field a new value.
func (e *Engine) System(name, fn string, terms ...ecs.Term) (*system.System, error) {
	e.mu.Lock()
	bs := make([]*binding, len(terms))
	for i, t := range terms {
		b, ok := e.byType[t.Type()]
		if !ok {
			e.mu.Unlock()
			return nil, fmt.Errorf("script system %s: component %v is not bound", name, t.Type())
		}
		bs[i] = b
	}
	e.mu.Unlock()

	q := system.Query(terms...)
	return system.New(name, func(ctx *system.Context) error {
		return e.run(ctx, fn, q, bs)
	}, q, system.Tick)
}

func (e *Engine) run(ctx *system.Context, fnName string, q *system.QueryParam, bs []*binding) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	fn, ok := e.vm.GetGlobal(fnName).(*lua.LFunction)
	if !ok {
		return fmt.Errorf("lua function %s not found", fnName)
	}
	terms := q.Descriptor().Terms()
	tick := lua.LNumber(ctx.CurrentTick())
	vals := make([]reflect.Value, len(bs))
	sent := make([][]lua.LValue, len(bs))

	for ent, row := range ctx.Query(q).Iter() {
		comps := e.vm.NewTable()
		for i, b := range bs {
			v, ok := b.read(row)
			vals[i], sent[i] = v, nil
			if ok {
				var tbl *lua.LTable
				tbl, sent[i] = b.toTable(e.vm, v)
				comps.RawSetString(b.name, tbl)
			}
		}
		if err := e.vm.CallByParam(lua.P{
			Fn:      fn,
			NRet:    0,
			Protect: true,
		}, lua.LString(ent.String()), comps, tick); err != nil {
			return fmt.Errorf("lua %s on %s: %w", fnName, ent, err)
		}
		for i, b := range bs {
			if terms[i].Access() != ecs.Exclusive || !vals[i].IsValid() {
				continue
			}
			tbl, ok := comps.RawGetString(b.name).(*lua.LTable)
			if !ok {
				continue
			}
			next := reflect.New(b.typ).Elem()
			next.Set(vals[i])
			changed, err := b.fromTable(tbl, next, sent[i])
			if err != nil {
				return fmt.Errorf("lua %s on %s: %w", fnName, ent, err)
			}
			if changed {
				b.write(row, next)
			}
		}
	}
	return nil
}

// Declared builds the systems listed in the global Lua table `systems`:
//
//	systems = {
//	  { name = "drift", fn = "drift", write = {"Position"}, read = {"Velocity"} },
//	}
//
// fn defaults to name. maybe_read and maybe_write list optional terms.
// A script without a `systems` table declares nothing.
func (e *Engine) Declared() ([]*system.System, error) {
	type decl struct {
		name, fn string
		terms    []ecs.Term
	}
	var decls []decl

	e.mu.Lock()
	list, ok := e.vm.GetGlobal("systems").(*lua.LTable)
	if !ok {
		e.mu.Unlock()
		return nil, nil
	}
	var err error
	list.ForEach(func(_, v lua.LValue) {
		if err != nil {
			return
		}
		t, ok := v.(*lua.LTable)
		if !ok {
			err = fmt.Errorf("systems: entry is %s, want table", v.Type())
			return
		}
		d := decl{name: lua.LVAsString(t.RawGetString("name"))}
		if d.name == "" {
			err = fmt.Errorf("systems: entry without name")
			return
		}
		d.fn = lua.LVAsString(t.RawGetString("fn"))
		if d.fn == "" {
			d.fn = d.name
		}
		for _, group := range []struct {
			key      string
			write    bool
			optional bool
		}{
			{"read", false, false},
			{"write", true, false},
			{"maybe_read", false, true},
			{"maybe_write", true, true},
		} {
			names, ok := t.RawGetString(group.key).(*lua.LTable)
			if !ok {
				continue
			}
			names.ForEach(func(_, n lua.LValue) {
				if err != nil {
					return
				}
				b, ok := e.byName[lua.LVAsString(n)]
				if !ok {
					err = fmt.Errorf("systems: %s: component %q is not bound", d.name, lua.LVAsString(n))
					return
				}
				term := b.readTerm
				if group.write {
					term = b.writeTerm
				}
				if group.optional {
					term = ecs.Maybe(term)
				}
				d.terms = append(d.terms, term)
			})
		}
		decls = append(decls, d)
	})
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make([]*system.System, 0, len(decls))
	for _, d := range decls {
		sys, err := e.System(d.name, d.fn, d.terms...)
		if err != nil {
			return nil, err
		}
		out = append(out, sys)
	}
	return out, nil
}
