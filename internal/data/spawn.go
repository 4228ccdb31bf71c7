package data

import (
	"fmt"
	"os"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/l1jgo/thallium/internal/core/ecs"
)

// SpawnEntry describes Count identical entities.
type SpawnEntry struct {
	Name       string               `yaml:"name"`
	Count      int                  `yaml:"count"` // 0 means 1
	Components map[string]yaml.Node `yaml:"components"`
}

type SpawnList struct {
	Entities []SpawnEntry `yaml:"entities"`
}

// Total is the number of entities the list creates.
func (l *SpawnList) Total() int {
	n := 0
	for i := range l.Entities {
		n += l.Entities[i].count()
	}
	return n
}

func (e *SpawnEntry) count() int {
	if e.Count == 0 {
		return 1
	}
	return e.Count
}

// LoadSpawnList loads a spawn list from a YAML file.
func LoadSpawnList(path string) (*SpawnList, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spawn_list: %w", err)
	}
	return ParseSpawnList(raw)
}

func ParseSpawnList(raw []byte) (*SpawnList, error) {
	var l SpawnList
	if err := yaml.Unmarshal(raw, &l); err != nil {
		return nil, fmt.Errorf("parse spawn_list: %w", err)
	}
	for i := range l.Entities {
		if l.Entities[i].Count < 0 {
			return nil, fmt.Errorf("parse spawn_list: %s: negative count", l.Entities[i].Name)
		}
	}
	return &l, nil
}

// Spawn creates the entities of list in order. Every component body is
// decoded before the first entity is created, so a bad list spawns nothing.
func (c *Catalog) Spawn(w *ecs.World, list *SpawnList, log *zap.Logger) ([]ecs.Entity, error) {
	if log == nil {
		log = zap.NewNop()
	}
	plan := make([][]ecs.Edit, len(list.Entities))
	for i := range list.Entities {
		edits, err := c.edits(&list.Entities[i])
		if err != nil {
			return nil, fmt.Errorf("spawn_list: %w", err)
		}
		plan[i] = edits
	}

	spawned := make([]ecs.Entity, 0, list.Total())
	var errs error
	for i := range list.Entities {
		entry := &list.Entities[i]
		for range entry.count() {
			e := w.CreateEntity()
			for _, edit := range plan[i] {
				errs = multierr.Append(errs, edit(w, e))
			}
			spawned = append(spawned, e)
		}
	}
	log.Info("spawn list applied",
		zap.Int("entries", len(list.Entities)),
		zap.Int("entities", len(spawned)),
	)
	return spawned, errs
}
