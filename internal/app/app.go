package app

import (
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/l1jgo/thallium/internal/config"
	"github.com/l1jgo/thallium/internal/core/ecs"
	"github.com/l1jgo/thallium/internal/core/event"
	"github.com/l1jgo/thallium/internal/core/system"
)

// App owns a World for its whole lifetime together with the registered
// systems, the event bus and the runner that executes them.
type App struct {
	name    string
	world   *ecs.World
	bus     *event.Bus
	runner  *system.Runner
	systems *system.Set
	log     *zap.Logger
}

type settings struct {
	name         string
	log          *zap.Logger
	mode         system.Mode
	workers      int
	entityCap    int
	componentCap int
}

type Option func(*settings)

func WithName(name string) Option {
	return func(s *settings) { s.name = name }
}

func WithLogger(log *zap.Logger) Option {
	return func(s *settings) { s.log = log }
}

// WithScheduler selects the execution mode. workers only matters in
// system.Parallel mode.
func WithScheduler(mode system.Mode, workers int) Option {
	return func(s *settings) {
		s.mode = mode
		s.workers = workers
	}
}

func WithCapacity(entities, components int) Option {
	return func(s *settings) {
		s.entityCap = entities
		s.componentCap = components
	}
}

func New(opts ...Option) *App {
	s := settings{name: "app", entityCap: 1024, componentCap: 256}
	for _, o := range opts {
		o(&s)
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}

	a := &App{
		name:    s.name,
		world:   ecs.NewWorldSized(s.entityCap, s.componentCap),
		bus:     event.NewBus(),
		systems: system.NewSet(s.name),
		log:     s.log,
	}
	a.runner = system.NewRunner(a.world, a.bus, s.log)
	a.runner.SetMode(s.mode, s.workers)
	a.world.SetHooks(ecs.Hooks{
		Spawned:   func(e ecs.Entity) { event.Emit(a.bus, event.EntitySpawned{Entity: e}) },
		Destroyed: func(e ecs.Entity) { event.Emit(a.bus, event.EntityDestroyed{Entity: e}) },
	})
	return a
}

// FromConfig builds an App from the [app], [world] and [scheduler] sections.
func FromConfig(cfg *config.Config, log *zap.Logger) (*App, error) {
	mode, err := system.ParseMode(cfg.Scheduler.Mode)
	if err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}
	return New(
		WithName(cfg.App.Name),
		WithLogger(log),
		WithScheduler(mode, cfg.Scheduler.Workers),
		WithCapacity(cfg.World.EntityCapacity, cfg.World.ComponentCapacity),
	), nil
}

func (a *App) Name() string         { return a.name }
func (a *App) World() *ecs.World    { return a.world }
func (a *App) Bus() *event.Bus      { return a.bus }
func (a *App) Logger() *zap.Logger  { return a.log }
func (a *App) Systems() *system.Set { return a.systems }

func (a *App) CreateEntity() ecs.Entity {
	return a.world.CreateEntity()
}

// DestroyEntity fails with ecs.ErrStaleEntity if e is not alive.
func (a *App) DestroyEntity(e ecs.Entity) error {
	return a.world.DestroyEntity(e)
}

// DestroyLater queues e for destruction at the end of RunRegistered.
func (a *App) DestroyLater(e ecs.Entity) {
	a.world.MarkForDestruction(e)
}

func (a *App) Alive(e ecs.Entity) bool {
	return a.world.Alive(e)
}

// AddComponent attaches v to e, replacing any existing T.
func AddComponent[T any](a *App, e ecs.Entity, v T) error {
	return ecs.Add(a.world, e, v)
}

// RemoveComponent detaches e's T. Removing a T the entity does not have is
// not an error.
func RemoveComponent[T any](a *App, e ecs.Entity) (T, bool, error) {
	return ecs.Remove[T](a.world, e)
}

func Component[T any](a *App, e ecs.Entity) (T, bool) {
	return ecs.Get[T](a.world, e)
}

func InsertResource[T any](a *App, v T) error {
	return ecs.InsertResource(a.world, v)
}

// RegisterSystem appends sys to the registered set. It does not run it.
func (a *App) RegisterSystem(sys *system.System) {
	a.systems.Add(sys)
	a.log.Debug("system registered",
		zap.String("set", a.systems.Name()),
		zap.String("system", sys.Name()),
	)
}

// Register builds a system and registers it.
func (a *App) Register(name string, fn system.Func, params ...system.Param) (*system.System, error) {
	sys, err := system.New(name, fn, params...)
	if err != nil {
		return nil, err
	}
	a.RegisterSystem(sys)
	return sys, nil
}

// RunOnce builds a throwaway system and runs it immediately.
func (a *App) RunOnce(name string, fn system.Func, params ...system.Param) error {
	sys, err := system.New(name, fn, params...)
	if err != nil {
		return err
	}
	return a.RunSystem(sys)
}

func (a *App) RunSystem(sys *system.System) error {
	return a.runner.Run(system.Single(sys))
}

// Run executes every system of set in order against the current World.
func (a *App) Run(set *system.Set) error {
	return a.runner.Run(set)
}

// RunRegistered runs the registered set, then flushes queued destruction
// and delivers this frame's events. Events are delivered even when a
// system failed.
func (a *App) RunRegistered() error {
	err := a.runner.Run(a.systems)
	err = multierr.Append(err, a.world.FlushDestroyQueue())
	a.bus.SwapBuffers()
	a.bus.DispatchAll()
	return err
}

// NextTick advances the change-detection tick.
func (a *App) NextTick() {
	a.world.NextTick()
}

// Update is one frame: RunRegistered followed by NextTick.
func (a *App) Update() error {
	err := a.RunRegistered()
	a.NextTick()
	return err
}
