package system

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/l1jgo/thallium/internal/core/ecs"
	"github.com/l1jgo/thallium/internal/core/event"
)

// Mode selects how a Runner walks a Set.
type Mode int

const (
	// Sequential runs systems one at a time in registration order and stops
	// at the first failure.
	Sequential Mode = iota
	// Parallel runs each stage of a Set concurrently. Stages still run in
	// order, and a failing stage stops the run. A stray panic in any system
	// is raised again on the caller's goroutine once its stage has finished.
	Parallel
)

func (m Mode) String() string {
	if m == Parallel {
		return "parallel"
	}
	return "sequential"
}

// ParseMode maps the scheduler.mode config value to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sequential":
		return Sequential, nil
	case "parallel":
		return Parallel, nil
	default:
		return Sequential, fmt.Errorf("unknown scheduler mode %q", s)
	}
}

// Runner executes system sets against one World.
type Runner struct {
	world   *ecs.World
	bus     *event.Bus
	log     *zap.Logger
	mode    Mode
	workers int
}

// NewRunner returns a sequential runner. bus may be nil, in which case
// systems cannot declare Events and failures are only logged.
func NewRunner(world *ecs.World, bus *event.Bus, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{world: world, bus: bus, log: log}
}

// SetMode switches the execution mode. workers caps concurrent systems per
// stage in Parallel mode; 0 means no cap.
func (r *Runner) SetMode(m Mode, workers int) {
	r.mode = m
	r.workers = workers
}

func (r *Runner) Mode() Mode { return r.mode }

// Run executes set. Effects of systems that completed before a failure stay
// applied.
func (r *Runner) Run(set *Set) error {
	if r.mode == Parallel {
		return r.runParallel(set)
	}
	for _, sys := range set.systems {
		cmds, err := r.execute(sys)
		if err != nil {
			return err
		}
		if err := r.apply(sys, cmds); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runParallel(set *Set) error {
	for _, stage := range set.stages {
		cmds := make([]*ecs.Commands, len(stage))
		errs := make([]error, len(stage))
		panics := make([]any, len(stage))

		var g errgroup.Group
		if r.workers > 0 {
			g.SetLimit(r.workers)
		}
		for i, sys := range stage {
			g.Go(func() error {
				defer func() { panics[i] = recover() }()
				cmds[i], errs[i] = r.execute(sys)
				return nil
			})
		}
		_ = g.Wait()
		for _, p := range panics {
			if p != nil {
				panic(p)
			}
		}

		var stageErr error
		for i, sys := range stage {
			if errs[i] != nil {
				stageErr = multierr.Append(stageErr, errs[i])
				continue
			}
			stageErr = multierr.Append(stageErr, r.apply(sys, cmds[i]))
		}
		if stageErr != nil {
			return stageErr
		}
	}
	return nil
}

// execute resolves sys, runs its body and releases every borrow. Borrow
// and undeclared-parameter panics raised by the body come back as errors;
// any other panic propagates.
func (r *Runner) execute(sys *System) (cmds *ecs.Commands, err error) {
	ctx, err := resolve(r.world, r.bus, sys)
	if err != nil {
		err = fmt.Errorf("system %s: %w", sys.name, err)
		r.fail(sys, err)
		return nil, err
	}
	defer ctx.release()
	defer func() {
		p := recover()
		if p == nil {
			return
		}
		var cause error
		switch v := p.(type) {
		case *ecs.BorrowError:
			cause = v
		case *UndeclaredError:
			cause = v
		default:
			panic(p)
		}
		cmds = nil
		err = fmt.Errorf("system %s: %w", sys.name, cause)
		r.fail(sys, err)
	}()

	start := time.Now()
	if err := sys.fn(ctx); err != nil {
		err = fmt.Errorf("system %s: %w", sys.name, err)
		r.fail(sys, err)
		return nil, err
	}
	sys.lastRun = ctx.current
	r.log.Debug("system ran",
		zap.String("system", sys.name),
		zap.Duration("took", time.Since(start)),
	)
	return ctx.commands, nil
}

func (r *Runner) apply(sys *System, cmds *ecs.Commands) error {
	if cmds == nil || cmds.Len() == 0 {
		return nil
	}
	if err := cmds.Apply(r.world); err != nil {
		err = fmt.Errorf("system %s: commands: %w", sys.name, err)
		r.fail(sys, err)
		return err
	}
	return nil
}

func (r *Runner) fail(sys *System, err error) {
	r.log.Error("system failed", zap.String("system", sys.name), zap.Error(err))
	if r.bus != nil {
		event.Emit(r.bus, event.SystemFailed{System: sys.name, Err: err})
	}
}
