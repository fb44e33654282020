package catalog

import (
	"fmt"
	"sort"
)

// =============================================================================
// Catalog
// =============================================================================

// Catalog is the set of known application templates and bundles.
// Declaration order is preserved: the planner uses it as the stable
// tie-break when ordering services for start.
type Catalog struct {
	entries []Entry
	byID    map[string]int // id → declaration index
	bundles map[string]Bundle
}

// New builds a catalog from entries and bundles, validating the closed
// schema as it goes.
func New(entries []Entry, bundles []Bundle) (*Catalog, error) {
	c := &Catalog{
		entries: make([]Entry, 0, len(entries)),
		byID:    make(map[string]int, len(entries)),
		bundles: make(map[string]Bundle, len(bundles)),
	}

	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.byID[e.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateEntry, e.ID)
		}
		c.byID[e.ID] = len(c.entries)
		c.entries = append(c.entries, e)
	}

	for _, b := range bundles {
		if len(b.Members) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrEmptyBundle, b.Name)
		}
		if _, dup := c.bundles[b.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateBundle, b.Name)
		}
		c.bundles[b.Name] = b
	}

	return c, nil
}

// Get returns the entry with the given id.
func (c *Catalog) Get(id string) (Entry, bool) {
	idx, ok := c.byID[id]
	if !ok {
		return Entry{}, false
	}
	return c.entries[idx], true
}

// DeclarationIndex returns the position of an entry in catalog order.
// Unknown ids sort last.
func (c *Catalog) DeclarationIndex(id string) int {
	if idx, ok := c.byID[id]; ok {
		return idx
	}
	return len(c.entries)
}

// Bundle returns the named bundle.
func (c *Catalog) Bundle(name string) (Bundle, bool) {
	b, ok := c.bundles[name]
	return b, ok
}

// Entries returns all entries in declaration order.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Bundles returns all bundles sorted by name.
func (c *Catalog) Bundles() []Bundle {
	out := make([]Bundle, 0, len(c.bundles))
	for _, b := range c.bundles {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
