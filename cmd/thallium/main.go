package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"

	"github.com/pkg/profile"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/l1jgo/thallium/internal/app"
	"github.com/l1jgo/thallium/internal/component"
	"github.com/l1jgo/thallium/internal/config"
	"github.com/l1jgo/thallium/internal/core/ecs"
	"github.com/l1jgo/thallium/internal/core/event"
	"github.com/l1jgo/thallium/internal/core/system"
	"github.com/l1jgo/thallium/internal/data"
	"github.com/l1jgo/thallium/internal/scripting"
)

const defaultConfigPath = "config/thallium.toml"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := flag.String("config", "", "config file (default $THALLIUM_CONFIG or "+defaultConfigPath+")")
	ticks := flag.Int("ticks", 1, "frames to run")
	prof := flag.String("profile", "", `write a "cpu" or "mem" profile to the working directory`)
	flag.Parse()

	// 1. Load config
	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	switch *prof {
	case "":
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	case "mem":
		defer profile.Start(profile.MemProfileAllocs, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	default:
		return fmt.Errorf("unknown profile %q", *prof)
	}

	// 3. Build the app and seed the world
	a, err := app.FromConfig(cfg, log)
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	event.Subscribe(a.Bus(), func(ev event.EntityDestroyed) {
		log.Debug("entity destroyed", zap.Stringer("entity", ev.Entity))
	})

	if err := seed(a, cfg.Data, log); err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	// 4. Register systems: report, age, report again, then scripts
	report := reportSystem()
	a.RegisterSystem(report)
	a.RegisterSystem(agingSystem())
	a.RegisterSystem(report)

	if cfg.Scripting.Enabled {
		engine, err := scripting.NewEngine(cfg.Scripting.Dir, log)
		if err != nil {
			return fmt.Errorf("scripting: %w", err)
		}
		defer engine.Close()
		if err := bindComponents(engine); err != nil {
			return fmt.Errorf("scripting: %w", err)
		}
		scripted, err := engine.Declared()
		if err != nil {
			return fmt.Errorf("scripting: %w", err)
		}
		for _, s := range scripted {
			a.RegisterSystem(s)
		}
		log.Info("script systems registered", zap.Int("count", len(scripted)))
	}

	log.Info("running",
		zap.String("app", a.Name()),
		zap.Int("systems", a.Systems().Len()),
		zap.Int("stages", len(a.Systems().Stages())),
		zap.Int("ticks", *ticks),
	)

	// 5. Frame loop
	for i := range *ticks {
		fmt.Printf("-- tick %d\n", i+1)
		if err := a.Update(); err != nil {
			return fmt.Errorf("tick %d: %w", i+1, err)
		}
	}
	return nil
}

// loadConfig resolves the path from the flag, then $THALLIUM_CONFIG, then
// the default. Only a missing default file falls back to built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	explicit := true
	if path == "" {
		path = os.Getenv("THALLIUM_CONFIG")
	}
	if path == "" {
		path, explicit = defaultConfigPath, false
	}
	cfg, err := config.Load(path)
	if err != nil && !explicit && errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}
	return cfg, err
}

func seed(a *app.App, cfg config.DataConfig, log *zap.Logger) error {
	if cfg.SpawnList == "" {
		for _, p := range []component.Person{{Name: "Alice", Age: 23}, {Name: "Bob", Age: 25}} {
			if err := app.AddComponent(a, a.CreateEntity(), p); err != nil {
				return err
			}
		}
		return nil
	}

	catalog := data.NewCatalog()
	data.Register[component.Person](catalog, "Person")
	data.Register[component.Position](catalog, "Position")
	data.Register[component.Velocity](catalog, "Velocity")
	data.Register[component.Retired](catalog, "Retired")

	list, err := data.LoadSpawnList(cfg.SpawnList)
	if err != nil {
		return err
	}
	_, err = catalog.Spawn(a.World(), list, log)
	return err
}

func bindComponents(e *scripting.Engine) error {
	if err := scripting.Bind[component.Person](e, "Person"); err != nil {
		return err
	}
	if err := scripting.Bind[component.Position](e, "Position"); err != nil {
		return err
	}
	if err := scripting.Bind[component.Velocity](e, "Velocity"); err != nil {
		return err
	}
	return scripting.Bind[component.Retired](e, "Retired")
}

func reportSystem() *system.System {
	people := system.Query(ecs.Read[component.Person]())
	return system.MustNew("report", func(ctx *system.Context) error {
		for _, row := range ctx.Query(people).Iter() {
			p := ecs.RefOf[component.Person](row).Get()
			fmt.Printf("%s is %d\n", p.Name, p.Age)
		}
		return nil
	}, people)
}

func agingSystem() *system.System {
	people := system.Query(ecs.Write[component.Person](), ecs.Maybe(ecs.Read[component.Retired]()))
	return system.MustNew("age", func(ctx *system.Context) error {
		for _, row := range ctx.Query(people).Iter() {
			if ecs.RefOf[component.Retired](row).Ok() {
				continue
			}
			ecs.RefMutOf[component.Person](row).Ptr().Age++
		}
		return nil
	}, people)
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
