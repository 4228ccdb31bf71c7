package system

import (
	"github.com/rotisserie/eris"

	"github.com/l1jgo/thallium/internal/core/ecs"
)

var (
	// ErrInvalidSystem is returned when a system's declaration is rejected
	// at registration.
	ErrInvalidSystem = eris.New("invalid system")
	// ErrUndeclaredParam is raised when a body reads a parameter it did not declare.
	ErrUndeclaredParam = eris.New("undeclared parameter")
)

// Func is a system body. Its parameters are resolved into ctx before it runs.
type Func func(ctx *Context) error

// System is a named body plus its declared parameters. The declaration is
// validated once, when the System is built.
type System struct {
	name    string
	fn      Func
	params  []Param
	borrows []ecs.Borrow
	lastRun uint64
}

// New validates params and builds a System. Two parameters of one system may
// not borrow the same type unless both borrows are shared. Nested parameters
// are exempt from that check but still count in ConflictsWith.
func New(name string, fn Func, params ...Param) (*System, error) {
	if fn == nil {
		return nil, eris.Wrapf(ErrInvalidSystem, "%s: nil body", name)
	}
	var held, borrows []ecs.Borrow
	for i, p := range params {
		if p == nil {
			return nil, eris.Wrapf(ErrInvalidSystem, "%s: parameter %d is nil", name, i)
		}
		switch p := p.(type) {
		case *QueryParam:
			if p.err != nil {
				return nil, eris.Wrapf(ErrInvalidSystem, "%s: parameter %d: %v", name, i, p.err)
			}
		case *NestedParam:
			if p.err != nil {
				return nil, eris.Wrapf(ErrInvalidSystem, "%s: parameter %d: %v", name, i, p.err)
			}
		}
		for _, prev := range params[:i] {
			if prev == p && p.Kind() != KindEntities && p.Kind() != KindTick && p.Kind() != KindEvents {
				return nil, eris.Wrapf(ErrInvalidSystem, "%s: %s parameter declared twice", name, p.Kind())
			}
		}
		borrows = append(borrows, p.Borrows()...)
		if p.Kind() == KindNested {
			// Opened on demand; the arbiter checks it against held borrows then.
			continue
		}
		for _, b := range p.Borrows() {
			for _, prev := range held {
				if b.Conflicts(prev) {
					return nil, eris.Wrapf(ErrInvalidSystem, "%s: %s conflicts with %s", name, b, prev)
				}
			}
			held = append(held, b)
		}
	}
	return &System{
		name:    name,
		fn:      fn,
		params:  append([]Param(nil), params...),
		borrows: borrows,
	}, nil
}

func MustNew(name string, fn Func, params ...Param) *System {
	s, err := New(name, fn, params...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *System) Name() string          { return s.name }
func (s *System) Params() []Param       { return append([]Param(nil), s.params...) }
func (s *System) Borrows() []ecs.Borrow { return append([]ecs.Borrow(nil), s.borrows...) }

// LastRun is the tick the system last completed at, or 0.
func (s *System) LastRun() uint64 { return s.lastRun }

// ConflictsWith reports whether s and o may not run at the same time:
// some type is borrowed by both and exclusively by at least one.
func (s *System) ConflictsWith(o *System) bool {
	for _, a := range s.borrows {
		for _, b := range o.borrows {
			if a.Conflicts(b) {
				return true
			}
		}
	}
	return false
}
