package sim

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// ModuleType is the static descriptor of a component type: how to allocate
// it, which gates and parameters it declares, which submodules it contains
// and which signals it emits. Generic construction consults it; no runtime
// type introspection is needed.
type ModuleType struct {
	Name       string
	Doc        string
	New        func() Component
	Gates      []GateDecl
	Params     []ParamDecl
	Submodules []SubmoduleDecl
	Signals    []string
}

// SubmoduleDecl declares a static child. Vector children become a
// ComponentArray of Size elements (Size may be 0).
type SubmoduleDecl struct {
	Name   string
	Type   string
	Vector bool
	Size   int
	Params map[string]string
}

// Validate checks the descriptor for duplicate or empty names.
func (t *ModuleType) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("module type has no name")
	}
	if t.New == nil {
		return fmt.Errorf("module type %q: New is nil", t.Name)
	}
	seen := make(map[string]bool)
	for _, g := range t.Gates {
		if g.Name == "" || seen["gate:"+g.Name] {
			return fmt.Errorf("module type %q: empty or duplicate gate %q", t.Name, g.Name)
		}
		if g.Size < 0 || (!g.Vector && g.Size != 0) {
			return fmt.Errorf("module type %q: gate %q: invalid size %d", t.Name, g.Name, g.Size)
		}
		seen["gate:"+g.Name] = true
	}
	for _, p := range t.Params {
		if p.Name == "" || seen["param:"+p.Name] {
			return fmt.Errorf("module type %q: empty or duplicate parameter %q", t.Name, p.Name)
		}
		seen["param:"+p.Name] = true
	}
	for _, sm := range t.Submodules {
		if sm.Name == "" || seen["sub:"+sm.Name] {
			return fmt.Errorf("module type %q: empty or duplicate submodule %q", t.Name, sm.Name)
		}
		if sm.Size < 0 || (!sm.Vector && sm.Size != 0) {
			return fmt.Errorf("module type %q: submodule %q: invalid size %d", t.Name, sm.Name, sm.Size)
		}
		seen["sub:"+sm.Name] = true
	}
	return nil
}

var moduleTypes = struct {
	sync.RWMutex
	byName map[string]*ModuleType
}{byName: make(map[string]*ModuleType)}

// RegisterModuleType makes t constructible by name and registers its signals.
func RegisterModuleType(t *ModuleType) error {
	if err := t.Validate(); err != nil {
		return err
	}
	moduleTypes.Lock()
	defer moduleTypes.Unlock()
	if _, exists := moduleTypes.byName[t.Name]; exists {
		return fmt.Errorf("module type %q already registered", t.Name)
	}
	for _, name := range t.Signals {
		RegisterSignal(name)
	}
	moduleTypes.byName[t.Name] = t
	return nil
}

// MustRegisterModuleType is RegisterModuleType for init() functions.
func MustRegisterModuleType(t *ModuleType) {
	if err := RegisterModuleType(t); err != nil {
		panic(err.Error())
	}
}

// LookupModuleType returns the registered type with the given name.
func LookupModuleType(name string) (*ModuleType, error) {
	moduleTypes.RLock()
	defer moduleTypes.RUnlock()
	t, ok := moduleTypes.byName[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownModuleType)
	}
	return t, nil
}

// ModuleTypes returns every registered type sorted by name.
func ModuleTypes() []*ModuleType {
	moduleTypes.RLock()
	defer moduleTypes.RUnlock()
	out := make([]*ModuleType, 0, len(moduleTypes.byName))
	for _, t := range moduleTypes.byName {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Network is a plain compound module without gates or behavior, used as the
// root of networks assembled by an external builder.
type Network struct {
	Module
}

// NetworkType describes Network.
var NetworkType = &ModuleType{
	Name: "Network",
	Doc:  "compound root module without gates or behavior",
	New:  func() Component { return &Network{} },
}

func init() {
	MustRegisterModuleType(NetworkType)
}

// Construct instantiates the registered type typeName as a child of owner
// (nil owner creates the root). Parameters not supplied fall back to the
// declared defaults; dotted keys such as "host.rate" are forwarded to static
// submodules.
func (s *Simulation) Construct(typeName, name string, owner Component, params map[string]string) (Component, error) {
	t, err := LookupModuleType(typeName)
	if err != nil {
		return nil, err
	}
	return s.ConstructType(t, name, owner, params)
}

// ConstructType is Construct with a descriptor instead of a registered name.
func (s *Simulation) ConstructType(t *ModuleType, name string, owner Component, params map[string]string) (Component, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return s.construct(t, name, owner, nil, -1, params, nil)
}

// ConstructRoot creates the root component.
func (s *Simulation) ConstructRoot(typeName, name string, params map[string]string) (Component, error) {
	return s.Construct(typeName, name, nil, params)
}

// construct builds one component. inst, when non-nil, is a caller-allocated
// instance used instead of t.New().
func (s *Simulation) construct(t *ModuleType, name string, owner Component, array *ComponentArray, index int, params map[string]string, inst Component) (Component, error) {
	if name == "" || strings.ContainsAny(name, ".[]") {
		return nil, fmt.Errorf("invalid component name %q", name)
	}
	var ownerID ComponentID
	if owner == nil {
		if s.root != NoComponent {
			return nil, fmt.Errorf("%s: root already exists; an owner is required", name)
		}
	} else {
		om, err := s.live(owner)
		if err != nil {
			return nil, err
		}
		ownerID = om.id
		if array == nil && (om.Submodule(name) != nil || om.SubmoduleArray(name) != nil) {
			return nil, fmt.Errorf("%s: duplicate submodule %q", om.FullPath(), name)
		}
	}

	c := inst
	if c == nil {
		c = t.New()
	}
	if c == nil {
		return nil, fmt.Errorf("module type %q: New returned nil", t.Name)
	}
	m := c.module()
	*m = Module{
		sim:        s,
		self:       c,
		typ:        t,
		owner:      ownerID,
		name:       name,
		index:      index,
		array:      array,
		gateGroups: make(map[string]*gateGroup),
		params:     make(map[string]*Param),
	}
	m.id = s.register(c)
	switch {
	case array != nil:
		array.elems[index] = c
	case owner == nil:
		s.root = m.id
	default:
		owner.module().children = append(owner.module().children, m.id)
	}

	if err := s.populate(m, params); err != nil {
		_ = s.DeleteModule(c)
		return nil, err
	}
	logrus.Debugf("constructed %s (%s)", m.FullPath(), t.Name)
	return c, nil
}

// populate creates gates, resolves parameters and builds static submodules.
func (s *Simulation) populate(m *Module, params map[string]string) error {
	t := m.typ
	for i := range t.Gates {
		m.addGateGroup(t.Gates[i])
	}

	own, forwarded := splitParams(params)
	for name := range own {
		if t.paramDecl(name) == nil {
			return fmt.Errorf("%s: parameter %q: %w", m.FullPath(), name, ErrUnknownParameter)
		}
	}
	for i := range t.Params {
		d := t.Params[i]
		raw, supplied := own[d.Name]
		p, err := newParam(d, raw, supplied)
		if err != nil {
			return fmt.Errorf("%s: %w", m.FullPath(), err)
		}
		if err := p.resolve(m.paramRNG(d.Name)); err != nil {
			return fmt.Errorf("%s: %w", m.FullPath(), err)
		}
		m.params[d.Name] = p
		m.paramOrder = append(m.paramOrder, d.Name)
	}

	for prefix := range forwarded {
		if !t.hasSubmodule(prefix) {
			return fmt.Errorf("%s: parameter target %q: %w", m.FullPath(), prefix, ErrUnknownComponent)
		}
	}
	for _, sd := range t.Submodules {
		st, err := LookupModuleType(sd.Type)
		if err != nil {
			return fmt.Errorf("%s: submodule %q: %w", m.FullPath(), sd.Name, err)
		}
		if !sd.Vector {
			if _, err := s.construct(st, sd.Name, m.self, nil, -1, mergeParams(sd.Params, forwarded[sd.Name]), nil); err != nil {
				return err
			}
			continue
		}
		arr, err := s.newArray(m.self, sd.Name, st, mergeParams(sd.Params, forwarded[sd.Name]))
		if err != nil {
			return err
		}
		for i := 0; i < sd.Size; i++ {
			if _, _, err := arr.extendWith(forwarded[fmt.Sprintf("%s[%d]", sd.Name, i)], nil); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *ModuleType) paramDecl(name string) *ParamDecl {
	for i := range t.Params {
		if t.Params[i].Name == name {
			return &t.Params[i]
		}
	}
	return nil
}

// hasSubmodule accepts "host" and, for vectors, "host[3]".
func (t *ModuleType) hasSubmodule(prefix string) bool {
	base := prefix
	if i := strings.IndexByte(prefix, '['); i > 0 {
		base = prefix[:i]
	}
	for _, sd := range t.Submodules {
		if sd.Name == base && (base == prefix || sd.Vector) {
			return true
		}
	}
	return false
}

// splitParams separates "name" keys from "sub.name" keys grouped by prefix.
func splitParams(params map[string]string) (map[string]string, map[string]map[string]string) {
	own := make(map[string]string)
	forwarded := make(map[string]map[string]string)
	for k, v := range params {
		i := strings.IndexByte(k, '.')
		if i < 0 {
			own[k] = v
			continue
		}
		prefix, rest := k[:i], k[i+1:]
		if forwarded[prefix] == nil {
			forwarded[prefix] = make(map[string]string)
		}
		forwarded[prefix][rest] = v
	}
	return own, forwarded
}

// mergeParams returns base overlaid by over; neither input is modified.
func mergeParams(base, over map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}
