package system

// Set is an ordered, named collection of systems. Registration order is
// execution order.
//
// Systems are also partitioned into stages of consecutive, mutually
// compatible systems. A system joins the last stage only if it conflicts with
// nothing already in it, so two conflicting systems always run in
// registration order even when a stage runs in parallel.
type Set struct {
	name    string
	systems []*System
	stages  [][]*System
}

func NewSet(name string) *Set {
	return &Set{name: name}
}

// Single wraps one system in a set of size one.
func Single(s *System) *Set {
	set := NewSet(s.name)
	set.Add(s)
	return set
}

func (s *Set) Name() string { return s.name }
func (s *Set) Len() int     { return len(s.systems) }

// Add appends sys. It does not run it. Adding the same system twice runs it
// twice, never concurrently with itself.
func (s *Set) Add(sys *System) {
	s.systems = append(s.systems, sys)
	if n := len(s.stages); n > 0 && !conflictsAny(sys, s.stages[n-1]) {
		s.stages[n-1] = append(s.stages[n-1], sys)
		return
	}
	s.stages = append(s.stages, []*System{sys})
}

// Register builds a system from fn and params and appends it.
func (s *Set) Register(name string, fn Func, params ...Param) (*System, error) {
	sys, err := New(name, fn, params...)
	if err != nil {
		return nil, err
	}
	s.Add(sys)
	return sys, nil
}

func (s *Set) Systems() []*System {
	return append([]*System(nil), s.systems...)
}

// Stages returns the parallel-compatible partition of the set.
func (s *Set) Stages() [][]*System {
	out := make([][]*System, len(s.stages))
	for i, st := range s.stages {
		out[i] = append([]*System(nil), st...)
	}
	return out
}

func conflictsAny(sys *System, stage []*System) bool {
	for _, o := range stage {
		if o == sys || sys.ConflictsWith(o) {
			return true
		}
	}
	return false
}
