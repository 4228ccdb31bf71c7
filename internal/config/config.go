package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

type Config struct {
	App       AppConfig       `toml:"app"`
	World     WorldConfig     `toml:"world"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Logging   LoggingConfig   `toml:"logging"`
	Scripting ScriptingConfig `toml:"scripting"`
	Data      DataConfig      `toml:"data"`
}

type AppConfig struct {
	Name string `toml:"name"`
}

type WorldConfig struct {
	EntityCapacity    int `toml:"entity_capacity"`
	ComponentCapacity int `toml:"component_capacity"` // initial slots per component storage
}

type SchedulerConfig struct {
	Mode    string `toml:"mode"`    // "sequential" or "parallel"
	Workers int    `toml:"workers"` // 0 = one goroutine per system in a stage
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

type ScriptingConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

type DataConfig struct {
	SpawnList string `toml:"spawn_list"` // empty = spawn the built-in scenario
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(path, data)
}

// Parse decodes TOML data over the defaults. path is only used in errors.
func Parse(path string, data []byte) (*Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.World.EntityCapacity < 0 || c.World.ComponentCapacity < 0 {
		return fmt.Errorf("world capacities must not be negative")
	}
	if c.Scheduler.Workers < 0 {
		return fmt.Errorf("scheduler.workers must not be negative")
	}
	switch c.Scheduler.Mode {
	case "", "sequential", "parallel":
	default:
		return fmt.Errorf("unknown scheduler.mode %q", c.Scheduler.Mode)
	}
	return nil
}

func Default() *Config {
	return &Config{
		App: AppConfig{
			Name: "thallium",
		},
		World: WorldConfig{
			EntityCapacity:    1024,
			ComponentCapacity: 256,
		},
		Scheduler: SchedulerConfig{
			Mode:    "sequential",
			Workers: 0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Scripting: ScriptingConfig{
			Enabled: false,
			Dir:     "scripts",
		},
	}
}
