package data

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/l1jgo/thallium/internal/core/ecs"
)

// decodeFunc turns one YAML component body into an edit that attaches it.
type decodeFunc func(n *yaml.Node) (ecs.Edit, error)

// Catalog maps the component names used in spawn lists to Go types.
type Catalog struct {
	decoders map[string]decodeFunc
}

func NewCatalog() *Catalog {
	return &Catalog{decoders: make(map[string]decodeFunc)}
}

// Register binds name to T. Bodies are decoded with T's yaml tags.
// Registering a name twice replaces the earlier binding.
func Register[T any](c *Catalog, name string) {
	c.decoders[name] = func(n *yaml.Node) (ecs.Edit, error) {
		var v T
		if err := n.Decode(&v); err != nil {
			return nil, err
		}
		return ecs.With(v), nil
	}
}

// Names returns the registered component names, sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.decoders))
	for n := range c.decoders {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// edits decodes every component of entry. Components are applied in name
// order so storages are created in the same order on every run.
func (c *Catalog) edits(entry *SpawnEntry) ([]ecs.Edit, error) {
	names := make([]string, 0, len(entry.Components))
	for n := range entry.Components {
		names = append(names, n)
	}
	sort.Strings(names)

	out := make([]ecs.Edit, 0, len(names))
	for _, name := range names {
		dec, ok := c.decoders[name]
		if !ok {
			return nil, fmt.Errorf("%s: unknown component %q", entry.Name, name)
		}
		node := entry.Components[name]
		edit, err := dec(&node)
		if err != nil {
			return nil, fmt.Errorf("%s: component %s: %w", entry.Name, name, err)
		}
		out = append(out, edit)
	}
	return out, nil
}
