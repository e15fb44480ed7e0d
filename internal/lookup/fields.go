package lookup

import (
	"fmt"

	"github.com/ostafen/doclookup/internal/vars"
	"github.com/ostafen/doclookup/pkg/table"
)

// DefaultCapacity is the number of cells of the field table of a location.
const DefaultCapacity = 64

// Fields is the set of variables declared for a location: the registry
// owning their slots and the table used to find a slot from a document key.
// It is built at startup and read-only afterwards.
type Fields struct {
	prefix   string
	registry *vars.Registry
	table    *table.Table[vars.Slot]
}

func NewFields(capacity int, prefix string) (*Fields, error) {
	tb, err := table.New[vars.Slot](capacity)
	if err != nil {
		return nil, fmt.Errorf("could not allocate field table: %w", err)
	}

	return &Fields{
		prefix:   prefix,
		registry: vars.NewRegistry(),
		table:    tb,
	}, nil
}

// Declare templates field, registers the resulting variable and makes it
// reachable from the table. It returns the variable name.
//
// Declaring a field twice returns table.ErrDuplicate and leaves the first
// declaration in place. table.ErrFull is returned when the table has no room
// left; in that case nothing is registered.
func (f *Fields) Declare(field string) (string, error) {
	name := vars.Name(f.prefix, field)

	if _, ok := f.registry.Lookup(name); ok {
		return name, fmt.Errorf("field %q: %w", field, table.ErrDuplicate)
	}
	if f.table.Len() == f.table.Cap() {
		return name, fmt.Errorf("field %q: %w", field, table.ErrFull)
	}

	slot, _ := f.registry.Add(name)
	if err := f.table.Add([]byte(name), slot); err != nil {
		return name, fmt.Errorf("field %q: %w", field, err)
	}
	return name, nil
}

func (f *Fields) Prefix() string {
	return f.prefix
}

func (f *Fields) Registry() *vars.Registry {
	return f.registry
}

// Slot returns the slot of the variable called name.
func (f *Fields) Slot(name []byte) (vars.Slot, bool) {
	return f.table.Get(name)
}

func (f *Fields) Len() int {
	return f.registry.Len()
}

// NewValues allocates the output array of one resolution.
func (f *Fields) NewValues() *vars.Values {
	return f.registry.NewValues()
}
