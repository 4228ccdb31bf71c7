package system

import (
	"fmt"
	"reflect"

	"github.com/l1jgo/thallium/internal/core/ecs"
)

// Kind enumerates the parameter shapes the Runner can resolve.
type Kind int

const (
	KindEntities Kind = iota
	KindQuery
	KindResource
	KindCommands
	KindTick
	KindEvents
	KindNested
)

func (k Kind) String() string {
	switch k {
	case KindEntities:
		return "entities"
	case KindQuery:
		return "query"
	case KindResource:
		return "resource"
	case KindCommands:
		return "commands"
	case KindTick:
		return "tick"
	case KindEvents:
		return "events"
	case KindNested:
		return "nested query"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Param declares one input of a system. The set of implementations is
// closed; anything else does not compile.
type Param interface {
	Kind() Kind
	Borrows() []ecs.Borrow
	sealed()
}

type simpleParam Kind

func (p simpleParam) Kind() Kind            { return Kind(p) }
func (p simpleParam) Borrows() []ecs.Borrow { return nil }
func (simpleParam) sealed()                 {}

var (
	// Entities resolves to the live entity set.
	Entities Param = simpleParam(KindEntities)
	// Commands resolves to a queue of deferred structural changes.
	Commands Param = simpleParam(KindCommands)
	// Tick resolves to the current tick and the system's last run tick.
	Tick Param = simpleParam(KindTick)
	// Events resolves to the App's event bus.
	Events Param = simpleParam(KindEvents)
)

// QueryParam declares a query. Its identity is the lookup key in Context.
type QueryParam struct {
	desc *ecs.Descriptor
	err  error
}

// Query declares a query over terms. An invalid term list is reported when
// the system is built.
func Query(terms ...ecs.Term) *QueryParam {
	d, err := ecs.NewDescriptor(terms...)
	return &QueryParam{desc: d, err: err}
}

func (p *QueryParam) Kind() Kind { return KindQuery }
func (*QueryParam) sealed()      {}

func (p *QueryParam) Descriptor() *ecs.Descriptor { return p.desc }

func (p *QueryParam) Borrows() []ecs.Borrow {
	if p.desc == nil {
		return nil
	}
	return p.desc.Borrows()
}

// NestedParam declares a query the body opens itself with Context.Nested.
// Its borrows count when scheduling, but are only acquired when opened.
type NestedParam struct {
	desc *ecs.Descriptor
	err  error
}

// Nested declares a query opened during the body rather than before it.
func Nested(terms ...ecs.Term) *NestedParam {
	d, err := ecs.NewDescriptor(terms...)
	return &NestedParam{desc: d, err: err}
}

func (p *NestedParam) Kind() Kind { return KindNested }
func (*NestedParam) sealed()      {}

func (p *NestedParam) Descriptor() *ecs.Descriptor { return p.desc }

func (p *NestedParam) Borrows() []ecs.Borrow {
	if p.desc == nil {
		return nil
	}
	return p.desc.Borrows()
}

// ResourceParam declares access to the World's single value of a type.
type ResourceParam struct {
	borrow   ecs.Borrow
	optional bool
}

func ReadResource[T any]() *ResourceParam {
	return &ResourceParam{borrow: resourceBorrow[T](ecs.Shared)}
}

func WriteResource[T any]() *ResourceParam {
	return &ResourceParam{borrow: resourceBorrow[T](ecs.Exclusive)}
}

// Optional returns a copy of p that resolves even when the resource is absent.
func (p *ResourceParam) Optional() *ResourceParam {
	c := *p
	c.optional = true
	return &c
}

func (p *ResourceParam) Kind() Kind            { return KindResource }
func (p *ResourceParam) Borrows() []ecs.Borrow { return []ecs.Borrow{p.borrow} }
func (*ResourceParam) sealed()                 {}

func resourceBorrow[T any](a ecs.Access) ecs.Borrow {
	return ecs.Borrow{Key: ecs.Key{Space: ecs.ResourceSpace, Type: reflect.TypeFor[T]()}, Access: a}
}
