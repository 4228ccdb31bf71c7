package ecs

import (
	"iter"
	"reflect"

	"github.com/rotisserie/eris"
)

// Term is one (component type, access mode) requirement of a query.
type Term struct {
	typ      reflect.Type
	access   Access
	optional bool
}

// Read requests shared access to T.
func Read[T any]() Term {
	return Term{typ: reflect.TypeFor[T](), access: Shared}
}

// Write requests exclusive access to T.
func Write[T any]() Term {
	return Term{typ: reflect.TypeFor[T](), access: Exclusive}
}

// Maybe makes t non-filtering: entities lacking the type still match and
// their Ref reports Ok() == false.
func Maybe(t Term) Term {
	t.optional = true
	return t
}

func (t Term) Type() reflect.Type { return t.typ }
func (t Term) Access() Access     { return t.access }
func (t Term) Optional() bool     { return t.optional }

func (t Term) Borrow() Borrow {
	return Borrow{Key: Key{Space: ComponentSpace, Type: t.typ}, Access: t.access}
}

// Descriptor is a validated list of terms. It owns no data.
type Descriptor struct {
	terms []Term
}

// NewDescriptor validates terms. A type may repeat only if every
// occurrence is shared.
func NewDescriptor(terms ...Term) (*Descriptor, error) {
	for i, t := range terms {
		if t.typ == nil || t.access == 0 {
			return nil, eris.Wrapf(ErrInvalidQuery, "term %d is not initialized", i)
		}
		for _, o := range terms[:i] {
			if t.Borrow().Conflicts(o.Borrow()) {
				return nil, eris.Wrapf(ErrInvalidQuery, "%s requested twice with %s and %s access", t.typ, o.access, t.access)
			}
		}
	}
	return &Descriptor{terms: append([]Term(nil), terms...)}, nil
}

func MustDescriptor(terms ...Term) *Descriptor {
	d, err := NewDescriptor(terms...)
	if err != nil {
		panic(err)
	}
	return d
}

func (d *Descriptor) Terms() []Term { return append([]Term(nil), d.terms...) }

// Borrows returns the borrows needed to open d, one per distinct type.
func (d *Descriptor) Borrows() []Borrow {
	out := make([]Borrow, 0, len(d.terms))
	for _, t := range d.terms {
		b := t.Borrow()
		dup := false
		for _, o := range out {
			if o.Key == b.Key {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, b)
		}
	}
	return out
}

func (d *Descriptor) termIndex(t reflect.Type) int {
	for i, term := range d.terms {
		if term.typ == t {
			return i
		}
	}
	return -1
}

// Query is an open view over the storages named by a Descriptor. It holds
// the descriptor's borrows until Release.
type Query struct {
	world    *World
	desc     *Descriptor
	stores   []store
	guards   []*Guard
	lastRun  uint64
	released bool
}

// Query opens d with change detection relative to tick 0.
func (w *World) Query(d *Descriptor) (*Query, error) {
	return w.QuerySince(d, 0)
}

// QuerySince opens d. Ref.Changed and Ref.Added compare against lastRun.
func (w *World) QuerySince(d *Descriptor, lastRun uint64) (*Query, error) {
	guards, err := w.arbiter.AcquireAll(d.Borrows())
	if err != nil {
		return nil, err
	}
	stores := make([]store, len(d.terms))
	for i, t := range d.terms {
		stores[i] = w.registry.lookup(t.typ)
	}
	return &Query{
		world:   w,
		desc:    d,
		stores:  stores,
		guards:  guards,
		lastRun: lastRun,
	}, nil
}

// Release returns the query's borrows. Rows obtained from the query must not
// be used afterwards.
func (q *Query) Release() {
	if q.released {
		return
	}
	q.released = true
	for _, g := range q.guards {
		g.Release()
	}
}

func (q *Query) Descriptor() *Descriptor { return q.desc }

// Row is the combined view of one matching entity.
type Row struct {
	q   *Query
	e   Entity
	pos []int32
}

func (r Row) Entity() Entity { return r.e }

// Get returns the row for e if e is alive and holds every required type.
func (q *Query) Get(e Entity) (Row, bool) {
	q.checkOpen()
	if !q.world.entities.Alive(e) {
		return Row{}, false
	}
	return q.row(e)
}

func (q *Query) row(e Entity) (Row, bool) {
	pos := make([]int32, len(q.desc.terms))
	for i, t := range q.desc.terms {
		s := q.stores[i]
		if s == nil {
			if !t.optional {
				return Row{}, false
			}
			pos[i] = -1
			continue
		}
		p, ok := s.position(e)
		if !ok && !t.optional {
			return Row{}, false
		}
		pos[i] = p
	}
	return Row{q: q, e: e, pos: pos}, true
}

// GetMany returns a row per entity, in order. It fails if any entity does
// not match or appears more than once.
func (q *Query) GetMany(entities ...Entity) ([]Row, bool) {
	rows := make([]Row, 0, len(entities))
	for i, e := range entities {
		for _, prev := range entities[:i] {
			if prev == e {
				return nil, false
			}
		}
		r, ok := q.Get(e)
		if !ok {
			return nil, false
		}
		rows = append(rows, r)
	}
	return rows, true
}

// Iter yields every matching entity. Iteration is driven by the smallest
// required storage; with no required terms it walks all live entities.
// Each call recomputes from the current storage contents.
func (q *Query) Iter() iter.Seq2[Entity, Row] {
	return func(yield func(Entity, Row) bool) {
		q.checkOpen()
		driver := -1
		for i, t := range q.desc.terms {
			if t.optional {
				continue
			}
			s := q.stores[i]
			if s == nil {
				return
			}
			if driver < 0 || s.size() < q.stores[driver].size() {
				driver = i
			}
		}
		if driver < 0 {
			for e := range q.world.entities.All() {
				r, _ := q.row(e)
				if !yield(e, r) {
					return
				}
			}
			return
		}
		s := q.stores[driver]
		for p := int32(0); int(p) < s.size(); p++ {
			e := s.entityAt(p)
			if !q.world.entities.Alive(e) {
				continue
			}
			r, ok := q.row(e)
			if !ok {
				continue
			}
			if !yield(e, r) {
				return
			}
		}
	}
}

// Count returns the number of matching entities.
func (q *Query) Count() int {
	n := 0
	for range q.Iter() {
		n++
	}
	return n
}

func (q *Query) checkOpen() {
	if q.released {
		panic(&BorrowError{Reason: "query used after release"})
	}
}

// Ref is shared access to one component of a row.
type Ref[T any] struct {
	s       *slot[T]
	q       *Query
	lastRun uint64
}

// RefOf returns the T of r. T must be one of the query's terms.
func RefOf[T any](r Row) Ref[T] {
	s := lookupTerm[T](r, Shared)
	return Ref[T]{s: s, q: r.q, lastRun: r.q.lastRun}
}

func (r Ref[T]) Ok() bool { return r.s != nil }

// Get returns a copy of the component, or the zero value if absent.
func (r Ref[T]) Get() T {
	var zero T
	if r.s == nil {
		return zero
	}
	r.q.checkOpen()
	return r.s.value
}

// Changed reports whether the value was written after the system last ran.
func (r Ref[T]) Changed() bool { return r.s != nil && r.s.changed > r.lastRun }

// Added reports whether the value was attached after the system last ran.
func (r Ref[T]) Added() bool { return r.s != nil && r.s.added > r.lastRun }

// RefMut is exclusive access to one component of a row.
type RefMut[T any] struct {
	Ref[T]
	tick uint64
}

// RefMutOf returns mutable access to the T of r. T must be a Write term.
func RefMutOf[T any](r Row) RefMut[T] {
	s := lookupTerm[T](r, Exclusive)
	return RefMut[T]{Ref: Ref[T]{s: s, q: r.q, lastRun: r.q.lastRun}, tick: r.q.world.tick}
}

// Ptr returns a pointer to the component and marks it changed. It returns
// nil if the optional component is absent.
func (r RefMut[T]) Ptr() *T {
	if r.s == nil {
		return nil
	}
	r.q.checkOpen()
	r.s.changed = r.tick
	return &r.s.value
}

// Set overwrites the component. It reports false if the optional component
// is absent.
func (r RefMut[T]) Set(v T) bool {
	p := r.Ptr()
	if p == nil {
		return false
	}
	*p = v
	return true
}

func lookupTerm[T any](r Row, want Access) *slot[T] {
	if r.q == nil {
		panic(&BorrowError{Reason: "zero Row"})
	}
	t := reflect.TypeFor[T]()
	key := Key{Space: ComponentSpace, Type: t}
	i := r.q.desc.termIndex(t)
	if i < 0 {
		panic(&BorrowError{Key: key, Requested: want, Reason: "type not declared by query"})
	}
	if want == Exclusive && r.q.desc.terms[i].access != Exclusive {
		panic(&BorrowError{Key: key, Held: Shared, Requested: Exclusive, Reason: "declared shared, used exclusively"})
	}
	if r.pos[i] < 0 {
		return nil
	}
	return storageAs[T](r.q.stores[i]).slotAt(r.pos[i])
}
