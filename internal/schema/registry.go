package schema

import (
	"fmt"
	"sort"
	"sync"

	"github.com/JonMunkholm/csvparse/internal/parser"
)

// Definition is a named, registrable schema.
type Definition struct {
	Name        string      // Unique identifier: "people"
	Description string      // One line shown by listings
	FieldSpecs  []FieldSpec // Columns in order
}

// Tuple returns the positional checker for the definition's fields.
func (d Definition) Tuple() *Tuple {
	return NewTuple(d.FieldSpecs...)
}

// Schema returns a schema producing Records keyed by field name.
func (d Definition) Schema() parser.Schema[Record] {
	t := d.Tuple()
	return Transform(t, func(v Values) (Record, error) {
		return t.Record(v), nil
	})
}

// Columns returns the field names in order.
func (d Definition) Columns() []string {
	cols := make([]string, len(d.FieldSpecs))
	for i, spec := range d.FieldSpecs {
		cols[i] = spec.Name
	}
	return cols
}

var (
	registry   = make(map[string]Definition)
	registryMu sync.RWMutex
)

// Register adds a definition to the registry.
// Panics if a definition with the same name is already registered.
func Register(def Definition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if def.Name == "" {
		panic("schema: definition without a name")
	}
	if _, exists := registry[def.Name]; exists {
		panic(fmt.Sprintf("schema already registered: %s", def.Name))
	}
	registry[def.Name] = def
}

// Get returns a definition by name.
func Get(name string) (Definition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[name]
	return def, ok
}

// All returns all registered definitions sorted by name.
func All() []Definition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]Definition, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

// Names returns the registered names, sorted.
func Names() []string {
	defs := All()
	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Name
	}
	return names
}

// Count returns the number of registered definitions.
func Count() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// Clear removes all registered definitions.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]Definition)
}
