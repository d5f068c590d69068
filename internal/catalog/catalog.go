// Package catalog is the read-only registry of known models.
//
// A Catalog is built once at startup, either from Builtin or from a catalog
// file, and passed to the components that need it. Lookups hand out copies so
// descriptors can never be mutated after construction.
package catalog

import (
	"fmt"

	"tutord/pkg/types"
)

// Catalog maps model ids to descriptors and remembers the default entry.
type Catalog struct {
	entries   []types.ModelDescriptor
	byID      map[string]int
	defaultID string
}

// New validates entries and builds a Catalog. An empty defaultID selects the
// first entry.
func New(entries []types.ModelDescriptor, defaultID string) (*Catalog, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("catalog: no models")
	}
	c := &Catalog{
		entries: make([]types.ModelDescriptor, 0, len(entries)),
		byID:    make(map[string]int, len(entries)),
	}
	for _, d := range entries {
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("catalog: %w", err)
		}
		if _, dup := c.byID[d.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate model id %q", d.ID)
		}
		c.byID[d.ID] = len(c.entries)
		c.entries = append(c.entries, clone(d))
	}
	if defaultID == "" {
		defaultID = c.entries[0].ID
	}
	if _, ok := c.byID[defaultID]; !ok {
		return nil, fmt.Errorf("catalog: default model %q not found", defaultID)
	}
	c.defaultID = defaultID
	return c, nil
}

// Get returns the descriptor for id.
func (c *Catalog) Get(id string) (types.ModelDescriptor, bool) {
	i, ok := c.byID[id]
	if !ok {
		return types.ModelDescriptor{}, false
	}
	return clone(c.entries[i]), true
}

// List returns all descriptors in declaration order.
func (c *Catalog) List() []types.ModelDescriptor {
	out := make([]types.ModelDescriptor, len(c.entries))
	for i, d := range c.entries {
		out[i] = clone(d)
	}
	return out
}

// Default returns the default descriptor.
func (c *Catalog) Default() types.ModelDescriptor {
	return clone(c.entries[c.byID[c.defaultID]])
}

// DefaultID returns the id of the default descriptor.
func (c *Catalog) DefaultID() string { return c.defaultID }

// clone deep-copies the pointer fields of a descriptor.
func clone(d types.ModelDescriptor) types.ModelDescriptor {
	if d.Tokenizer == nil {
		return d
	}
	tk := *d.Tokenizer
	tk.PadID = cloneInt(tk.PadID)
	tk.BosID = cloneInt(tk.BosID)
	tk.EosID = cloneInt(tk.EosID)
	d.Tokenizer = &tk
	return d
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
