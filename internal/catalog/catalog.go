// Package catalog holds the known conflicts and their combatants.
package catalog

import (
	_ "embed"
	"fmt"
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/okian/enemy/internal/domain/model"
)

//go:embed default.toml
var defaultDocument string

type conflictEntry struct {
	Name       string   `toml:"name"`
	Combatants []string `toml:"combatants"`
}

type document struct {
	Conflicts []conflictEntry `toml:"conflict"`
}

// Catalog is an immutable, ordered set of conflicts.
type Catalog struct {
	conflicts []model.Conflict
	byName    map[string]model.Conflict
	owners    map[string]string
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(defaultDocument)
}

// Load decodes the catalog file at path, or the embedded one when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	var doc document
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return build(doc)
}

// Parse decodes a catalog from TOML text.
func Parse(text string) (*Catalog, error) {
	var doc document
	if _, err := toml.Decode(text, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return build(doc)
}

func build(doc document) (*Catalog, error) {
	if len(doc.Conflicts) == 0 {
		return nil, fmt.Errorf("%w: no conflicts", ErrInvalidCatalog)
	}
	c := &Catalog{
		conflicts: make([]model.Conflict, 0, len(doc.Conflicts)),
		byName:    make(map[string]model.Conflict, len(doc.Conflicts)),
		owners:    make(map[string]string),
	}
	for _, e := range doc.Conflicts {
		if e.Name == "" {
			return nil, fmt.Errorf("%w: conflict without name", ErrInvalidCatalog)
		}
		if _, dup := c.byName[e.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate conflict %q", ErrInvalidCatalog, e.Name)
		}
		if len(e.Combatants) != 2 || e.Combatants[0] == "" || e.Combatants[1] == "" || e.Combatants[0] == e.Combatants[1] {
			return nil, fmt.Errorf("%w: conflict %q needs two distinct combatants", ErrInvalidCatalog, e.Name)
		}
		conflict := model.Conflict{Name: e.Name, Combatant1: e.Combatants[0], Combatant2: e.Combatants[1]}
		c.conflicts = append(c.conflicts, conflict)
		c.byName[e.Name] = conflict
		for _, name := range e.Combatants {
			c.owners[name] = e.Name
		}
	}
	return c, nil
}

// Conflicts returns the conflicts in document order.
func (c *Catalog) Conflicts() []model.Conflict {
	out := make([]model.Conflict, len(c.conflicts))
	copy(out, c.conflicts)
	return out
}

// Conflict looks up a conflict by name.
func (c *Catalog) Conflict(name string) (model.Conflict, error) {
	conflict, ok := c.byName[name]
	if !ok {
		return model.Conflict{}, fmt.Errorf("%w: %s", model.ErrUnknownConflict, name)
	}
	return conflict, nil
}

// HasCombatant reports whether any conflict names the combatant.
func (c *Catalog) HasCombatant(name string) bool {
	_, ok := c.owners[name]
	return ok
}

// Combatant checks that name is known.
func (c *Catalog) Combatant(name string) error {
	if !c.HasCombatant(name) {
		return fmt.Errorf("%w: %s", model.ErrUnknownCombatant, name)
	}
	return nil
}

// Combatants returns every combatant name, sorted.
func (c *Catalog) Combatants() []string {
	out := make([]string, 0, len(c.owners))
	for name := range c.owners {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
