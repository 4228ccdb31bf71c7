package ecs

import (
	"fmt"
	"reflect"
	"sync"
)

// Access is the mode a component or resource type is borrowed in.
type Access uint8

const (
	Shared Access = iota + 1
	Exclusive
)

func (a Access) String() string {
	switch a {
	case Shared:
		return "shared"
	case Exclusive:
		return "exclusive"
	default:
		return "none"
	}
}

// Namespace separates component borrows from resource borrows of the same Go type.
type Namespace uint8

const (
	ComponentSpace Namespace = iota
	ResourceSpace
)

// Key identifies one borrowable type.
type Key struct {
	Space Namespace
	Type  reflect.Type
}

func (k Key) String() string {
	if k.Space == ResourceSpace {
		return "resource " + k.Type.String()
	}
	return "component " + k.Type.String()
}

// Borrow is a declared access to one type.
type Borrow struct {
	Key    Key
	Access Access
}

// Conflicts reports whether b and o cannot be held at the same time.
func (b Borrow) Conflicts(o Borrow) bool {
	return b.Key == o.Key && (b.Access == Exclusive || o.Access == Exclusive)
}

func (b Borrow) String() string {
	return fmt.Sprintf("%s %s", b.Access, b.Key)
}

// BorrowError describes a rejected borrow. It matches ErrBorrowConflict.
type BorrowError struct {
	Key       Key
	Held      Access
	Requested Access
	Reason    string
}

func (e *BorrowError) Error() string {
	if e.Key.Type == nil {
		return "borrow conflict: " + e.Reason
	}
	if e.Reason != "" {
		return fmt.Sprintf("borrow conflict on %s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("borrow conflict on %s: held %s, requested %s", e.Key, e.Held, e.Requested)
}

func (e *BorrowError) Unwrap() error        { return ErrBorrowConflict }
func (e *BorrowError) Is(target error) bool { return target == ErrBorrowConflict }

type borrowState struct {
	shared    int
	exclusive bool
}

func (s *borrowState) held() Access {
	switch {
	case s.exclusive:
		return Exclusive
	case s.shared > 0:
		return Shared
	default:
		return 0
	}
}

// Arbiter tracks outstanding borrows per type and rejects incompatible ones
// immediately. It never blocks.
type Arbiter struct {
	mu     sync.Mutex
	states map[Key]*borrowState
}

func NewArbiter() *Arbiter {
	return &Arbiter{states: make(map[Key]*borrowState)}
}

// Guard is one granted borrow. Release returns it to the Arbiter.
type Guard struct {
	arbiter  *Arbiter
	borrow   Borrow
	released bool
}

func (g *Guard) Borrow() Borrow { return g.borrow }

// Release is idempotent.
func (g *Guard) Release() {
	if g == nil || g.released {
		return
	}
	g.released = true
	g.arbiter.release(g.borrow)
}

func (a *Arbiter) Acquire(b Borrow) (*Guard, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.acquireLocked(b); err != nil {
		return nil, err
	}
	return &Guard{arbiter: a, borrow: b}, nil
}

// AcquireAll grants every borrow or none of them.
func (a *Arbiter) AcquireAll(bs []Borrow) ([]*Guard, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	guards := make([]*Guard, 0, len(bs))
	for _, b := range bs {
		if err := a.acquireLocked(b); err != nil {
			for _, g := range guards {
				g.released = true
				a.releaseLocked(g.borrow)
			}
			return nil, err
		}
		guards = append(guards, &Guard{arbiter: a, borrow: b})
	}
	return guards, nil
}

// Held reports the mode k is currently borrowed in, or 0.
func (a *Arbiter) Held(k Key) Access {
	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok := a.states[k]; ok {
		return s.held()
	}
	return 0
}

// Idle reports whether no borrows are outstanding.
func (a *Arbiter) Idle() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.states) == 0
}

func (a *Arbiter) acquireLocked(b Borrow) error {
	s, ok := a.states[b.Key]
	if !ok {
		s = &borrowState{}
		a.states[b.Key] = s
	}
	if held := s.held(); held == Exclusive || (held == Shared && b.Access == Exclusive) {
		return &BorrowError{Key: b.Key, Held: held, Requested: b.Access}
	}
	if b.Access == Exclusive {
		s.exclusive = true
	} else {
		s.shared++
	}
	return nil
}

func (a *Arbiter) release(b Borrow) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.releaseLocked(b)
}

func (a *Arbiter) releaseLocked(b Borrow) {
	s, ok := a.states[b.Key]
	if !ok {
		return
	}
	if b.Access == Exclusive {
		s.exclusive = false
	} else if s.shared > 0 {
		s.shared--
	}
	if s.held() == 0 {
		delete(a.states, b.Key)
	}
}
