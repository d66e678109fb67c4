package sim

import (
	"fmt"
	"reflect"
)

// ComponentArray is an ordered, extensible collection of sibling components
// of one module type. Elements are named after the array with their index
// appended; removed elements leave a nil slot that Insert can reuse.
type ComponentArray struct {
	sim      *Simulation
	owner    ComponentID
	name     string
	elemType *ModuleType
	params   map[string]string
	elems    []Component
}

// NewComponentArray creates an array of size elements of the registered type
// elemType under owner. params are applied to every element, including those
// added later by Extend.
func (s *Simulation) NewComponentArray(owner Component, name, elemType string, size int, params map[string]string) (*ComponentArray, error) {
	t, err := LookupModuleType(elemType)
	if err != nil {
		return nil, err
	}
	if size < 0 {
		return nil, fmt.Errorf("array %q: negative size %d", name, size)
	}
	a, err := s.newArray(owner, name, t, params)
	if err != nil {
		return nil, err
	}
	for i := 0; i < size; i++ {
		if _, _, err := a.Extend(); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (s *Simulation) newArray(owner Component, name string, t *ModuleType, params map[string]string) (*ComponentArray, error) {
	om, err := s.live(owner)
	if err != nil {
		return nil, err
	}
	if om.SubmoduleArray(name) != nil || om.Submodule(name) != nil {
		return nil, fmt.Errorf("%s: duplicate submodule %q", om.FullPath(), name)
	}
	a := &ComponentArray{
		sim:      s,
		owner:    om.id,
		name:     name,
		elemType: t,
		params:   mergeParams(params, nil),
	}
	om.arrays = append(om.arrays, a)
	return a, nil
}

func (a *ComponentArray) Name() string          { return a.name }
func (a *ComponentArray) ElemType() *ModuleType { return a.elemType }

// Owner returns the component that owns the array.
func (a *ComponentArray) Owner() Component { return a.sim.Component(a.owner) }

// Len returns the number of slots, including empty ones.
func (a *ComponentArray) Len() int { return len(a.elems) }

// Count returns the number of live elements.
func (a *ComponentArray) Count() int {
	n := 0
	for _, c := range a.elems {
		if c != nil {
			n++
		}
	}
	return n
}

// At returns element i, or nil for an empty or out-of-range slot.
func (a *ComponentArray) At(i int) Component {
	if i < 0 || i >= len(a.elems) {
		return nil
	}
	return a.elems[i]
}

// Elements returns a copy of the slots; empty slots are nil.
func (a *ComponentArray) Elements() []Component {
	return append([]Component(nil), a.elems...)
}

// Extend appends a new element built from the array's type and parameters
// and returns it with its index.
func (a *ComponentArray) Extend() (Component, int, error) {
	return a.extendWith(nil, nil)
}

func (a *ComponentArray) extendWith(extra map[string]string, inst Component) (Component, int, error) {
	owner := a.Owner()
	if owner == nil {
		return nil, -1, fmt.Errorf("array %q: owner deleted: %w", a.name, ErrUnknownComponent)
	}
	idx := len(a.elems)
	a.elems = append(a.elems, nil)
	c, err := a.sim.construct(a.elemType, a.name, owner, a, idx, mergeParams(a.params, extra), inst)
	if err != nil {
		a.elems = a.elems[:idx]
		return nil, -1, err
	}
	return c, idx, nil
}

// Insert constructs the caller-allocated instance c in the first empty slot,
// appending when there is none. c must be of the array's element type and
// must not have been constructed yet.
func (a *ComponentArray) Insert(c Component) (int, error) {
	if c == nil {
		return -1, fmt.Errorf("array %q: insert nil component", a.name)
	}
	if want, got := reflect.TypeOf(a.elemType.New()), reflect.TypeOf(c); want != got {
		return -1, fmt.Errorf("array %q holds %s (%v), not %v: %w", a.name, a.elemType.Name, want, got, ErrTypeMismatch)
	}
	if c.module().sim != nil {
		return -1, fmt.Errorf("array %q: %s is already part of a network", a.name, c.module().FullPath())
	}
	owner := a.Owner()
	if owner == nil {
		return -1, fmt.Errorf("array %q: owner deleted: %w", a.name, ErrUnknownComponent)
	}
	for i, el := range a.elems {
		if el != nil {
			continue
		}
		if _, err := a.sim.construct(a.elemType, a.name, owner, a, i, a.params, c); err != nil {
			a.elems[i] = nil
			return -1, err
		}
		return i, nil
	}
	_, idx, err := a.extendWith(nil, c)
	return idx, err
}

// Remove deletes element i and its subtree, leaving an empty slot.
func (a *ComponentArray) Remove(i int) error {
	c := a.At(i)
	if c == nil {
		return fmt.Errorf("array %q: no element at %d: %w", a.name, i, ErrUnknownComponent)
	}
	return a.sim.DeleteModule(c)
}
