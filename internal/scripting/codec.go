package scripting

import (
	"fmt"
	"math"
	"reflect"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/l1jgo/thallium/internal/core/ecs"
)

type field struct {
	index int
	key   string
}

// binding is a component type exposed to Lua as a table.
type binding struct {
	name   string
	typ    reflect.Type
	fields []field

	// read and write close over the concrete component type.
	read  func(row ecs.Row) (reflect.Value, bool)
	write func(row ecs.Row, v reflect.Value)

	readTerm, writeTerm ecs.Term
}

// Bind exposes component type T to script systems under name. T must be a
// struct; its exported fields of bool, string, integer or float kind become
// table keys, named by the `lua` tag or the lower-cased field name.
func Bind[T any](e *Engine, name string) error {
	t := reflect.TypeFor[T]()
	if t.Kind() != reflect.Struct {
		return fmt.Errorf("bind %s: %s is not a struct", name, t)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, dup := e.byName[name]; dup {
		return fmt.Errorf("bind %s: name already bound", name)
	}
	if prev, dup := e.byType[t]; dup {
		return fmt.Errorf("bind %s: %s already bound as %s", name, t, prev.name)
	}

	b := &binding{name: name, typ: t, readTerm: ecs.Read[T](), writeTerm: ecs.Write[T]()}
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		key := f.Tag.Get("lua")
		if key == "-" {
			continue
		}
		if key == "" {
			key = strings.ToLower(f.Name)
		}
		if !supported(f.Type.Kind()) {
			return fmt.Errorf("bind %s: field %s has unsupported kind %s", name, f.Name, f.Type.Kind())
		}
		b.fields = append(b.fields, field{index: i, key: key})
	}
	b.read = func(row ecs.Row) (reflect.Value, bool) {
		ref := ecs.RefOf[T](row)
		if !ref.Ok() {
			return reflect.Value{}, false
		}
		v := ref.Get()
		return reflect.ValueOf(&v).Elem(), true
	}
	b.write = func(row ecs.Row, v reflect.Value) {
		ecs.RefMutOf[T](row).Set(v.Interface().(T))
	}

	e.byName[name] = b
	e.byType[t] = b
	return nil
}

func supported(k reflect.Kind) bool {
	switch k {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// toTable encodes v as a table. sent holds the value stored under each field
// key, in field order, so fromTable can tell which keys the script assigned.
func (b *binding) toTable(L *lua.LState, v reflect.Value) (t *lua.LTable, sent []lua.LValue) {
	t = L.NewTable()
	sent = make([]lua.LValue, len(b.fields))
	for i, f := range b.fields {
		fv := v.Field(f.index)
		var lv lua.LValue
		switch fv.Kind() {
		case reflect.Bool:
			lv = lua.LBool(fv.Bool())
		case reflect.String:
			lv = lua.LString(fv.String())
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			lv = lua.LNumber(fv.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			lv = lua.LNumber(fv.Uint())
		case reflect.Float32, reflect.Float64:
			lv = lua.LNumber(fv.Float())
		}
		t.RawSetString(f.key, lv)
		sent[i] = lv
	}
	return t, sent
}

// fromTable copies the keys the script reassigned into v and reports whether
// any did. A key still holding its sent value leaves the field untouched, so
// integers beyond float64 precision survive a script that never wrote them.
// Missing keys also leave the field unchanged; a value of the wrong Lua type,
// or a fractional number for an integer field, is an error.
func (b *binding) fromTable(t *lua.LTable, v reflect.Value, sent []lua.LValue) (changed bool, err error) {
	for i, f := range b.fields {
		lv := t.RawGetString(f.key)
		if lv == lua.LNil || lv == sent[i] {
			continue
		}
		fv := v.Field(f.index)
		switch fv.Kind() {
		case reflect.Bool:
			bv, ok := lv.(lua.LBool)
			if !ok {
				return false, b.typeError(f, "boolean", lv)
			}
			fv.SetBool(bool(bv))
		case reflect.String:
			sv, ok := lv.(lua.LString)
			if !ok {
				return false, b.typeError(f, "string", lv)
			}
			fv.SetString(string(sv))
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			n, err := b.integer(f, lv)
			if err != nil {
				return false, err
			}
			if n < -(1<<63) || n >= 1<<63 || fv.OverflowInt(int64(n)) {
				return false, fmt.Errorf("%s.%s: %v overflows %s", b.name, f.key, lv, fv.Type())
			}
			fv.SetInt(int64(n))
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			n, err := b.integer(f, lv)
			if err != nil {
				return false, err
			}
			if n < 0 || n >= 1<<64 || fv.OverflowUint(uint64(n)) {
				return false, fmt.Errorf("%s.%s: %v overflows %s", b.name, f.key, lv, fv.Type())
			}
			fv.SetUint(uint64(n))
		case reflect.Float32, reflect.Float64:
			n, ok := lv.(lua.LNumber)
			if !ok {
				return false, b.typeError(f, "number", lv)
			}
			fv.SetFloat(float64(n))
		}
		changed = true
	}
	return changed, nil
}

// integer returns lv as a whole float64, rejecting fractions and non-finite values.
func (b *binding) integer(f field, lv lua.LValue) (float64, error) {
	n, ok := lv.(lua.LNumber)
	if !ok {
		return 0, b.typeError(f, "number", lv)
	}
	x := float64(n)
	if math.IsNaN(x) || math.IsInf(x, 0) || x != math.Trunc(x) {
		return 0, fmt.Errorf("%s.%s: %v is not an integer", b.name, f.key, lv)
	}
	return x, nil
}

func (b *binding) typeError(f field, want string, got lua.LValue) error {
	return fmt.Errorf("%s.%s: want %s, got %s", b.name, f.key, want, got.Type())
}
