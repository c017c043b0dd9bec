package wire

import (
	"github.com/ventosil/reliudp/reliudperr"
)

// Registry maps numeric type id and symbolic name to message
// definitions. Uniqueness is enforced on both axes: Add fails if
// either the type id or the name is already registered. A Registry is
// constructed explicitly per isolated namespace; DefaultRegistry is
// the process-scoped instance applications use unless they need
// isolation (e.g. running two unrelated protocols in one process).
type Registry struct {
	byID   map[byte]*Definition
	byName map[string]*Definition
}

// NewRegistry returns an empty registry with the nine built-in
// control messages pre-registered.
func NewRegistry() *Registry {
	r := &Registry{
		byID:   make(map[byte]*Definition),
		byName: make(map[string]*Definition),
	}
	// Builtins can never collide with each other; ignore the error.
	_ = r.Add(builtinDefinitions()...)
	return r
}

// Add registers one or more definitions, failing on the first
// duplicate type id or name.
func (r *Registry) Add(defs ...*Definition) error {
	for _, d := range defs {
		if _, exists := r.byID[d.TypeID]; exists {
			return reliudperr.NewMessageError("message id %d is already registered", d.TypeID)
		}
		if _, exists := r.byName[d.Name]; exists {
			return reliudperr.NewMessageError("message name %q is already registered", d.Name)
		}
		r.byID[d.TypeID] = d
		r.byName[d.Name] = d
	}
	return nil
}

// GetByID resolves a definition by its wire type id.
func (r *Registry) GetByID(id byte) (*Definition, error) {
	d, ok := r.byID[id]
	if !ok {
		return nil, reliudperr.NewMessageError("no message exists with id %d", id)
	}
	return d, nil
}

// GetByName resolves a definition by its symbolic name.
func (r *Registry) GetByName(name string) (*Definition, error) {
	d, ok := r.byName[name]
	if !ok {
		return nil, reliudperr.NewMessageError("no message exists with name %q", name)
	}
	return d, nil
}

// IsA reports whether m was constructed from the definition registered
// under name.
func (r *Registry) IsA(m *Message, name string) bool {
	d, err := r.GetByName(name)
	if err != nil {
		return false
	}
	return m.Def == d
}

// DefaultRegistry is the process-scoped registry used by callers that
// do not need namespace isolation.
var DefaultRegistry = NewRegistry()
