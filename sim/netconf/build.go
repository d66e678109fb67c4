package netconf

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/desim-project/desim/sim"
	"github.com/sirupsen/logrus"
)

// gateRef is a parsed "a.b[1].gate[2]" or "a.gate++" reference.
type gateRef struct {
	modules []string // full names from the root down
	gate    string
	index   int  // -1 for scalar or unindexed
	plus    bool // first free element of a vector
}

func (g gateRef) root() string {
	name := g.modules[0]
	if i := strings.IndexByte(name, '['); i >= 0 {
		return name[:i]
	}
	return name
}

func parseGateRef(ref string) (gateRef, error) {
	parts := strings.Split(ref, ".")
	if len(parts) < 2 {
		return gateRef{}, fmt.Errorf("gate reference %q: want module.gate", ref)
	}
	gr := gateRef{modules: parts[:len(parts)-1], index: -1}
	for _, p := range gr.modules {
		if p == "" {
			return gateRef{}, fmt.Errorf("gate reference %q: empty module name", ref)
		}
	}
	gate := parts[len(parts)-1]
	if strings.HasSuffix(gate, "++") {
		gr.plus = true
		gate = strings.TrimSuffix(gate, "++")
	}
	if open := strings.IndexByte(gate, '['); open >= 0 {
		if gr.plus || !strings.HasSuffix(gate, "]") {
			return gateRef{}, fmt.Errorf("gate reference %q: malformed gate index", ref)
		}
		i, err := strconv.Atoi(gate[open+1 : len(gate)-1])
		if err != nil || i < 0 {
			return gateRef{}, fmt.Errorf("gate reference %q: malformed gate index", ref)
		}
		gr.index = i
		gate = gate[:open]
	}
	if gate == "" {
		return gateRef{}, fmt.Errorf("gate reference %q: empty gate name", ref)
	}
	gr.gate = gate
	return gr, nil
}

// resolve finds the gate below root. An explicit index beyond the size of an
// extensible vector grows the vector.
func (g gateRef) resolve(root sim.Component) (*sim.Gate, error) {
	mod := sim.ModuleOf(root).ModuleByPath(strings.Join(g.modules, "."))
	if mod == nil {
		return nil, fmt.Errorf("module %s: %w", strings.Join(g.modules, "."), sim.ErrUnknownComponent)
	}
	m := sim.ModuleOf(mod)
	switch {
	case g.plus:
		return m.FreeGate(g.gate)
	case g.index >= 0:
		if g.index >= m.GateSize(g.gate) && m.HasGate(g.gate) {
			if err := m.SetGateSize(g.gate, g.index+1); err != nil {
				return nil, err
			}
		}
		return m.GateAt(g.gate, g.index)
	}
	return m.Gate(g.gate)
}

// Build constructs the described network in s and returns its root. The
// spec should have passed Validate; construction errors are returned with
// the offending module or connection named.
func Build(s *sim.Simulation, n *NetworkSpec) (sim.Component, error) {
	root, err := s.ConstructRoot(n.Root.Type, n.Name, n.Root.Params)
	if err != nil {
		return nil, fmt.Errorf("root: %w", err)
	}
	for i, m := range n.Modules {
		if m.Size == nil {
			if _, err := s.Construct(m.Type, m.Name, root, m.Params); err != nil {
				return nil, fmt.Errorf("modules[%d] (%s): %w", i, m.Name, err)
			}
			continue
		}
		if _, err := s.NewComponentArray(root, m.Name, m.Type, *m.Size, m.Params); err != nil {
			return nil, fmt.Errorf("modules[%d] (%s): %w", i, m.Name, err)
		}
	}
	for i, c := range n.Connections {
		if err := connect(s, root, n, c); err != nil {
			return nil, fmt.Errorf("connections[%d] (%s -> %s): %w", i, c.From, c.To, err)
		}
	}
	logrus.Infof("built network %q: %d modules, %d connections", n.Name, len(n.Modules), len(n.Connections))
	return root, nil
}

func connect(s *sim.Simulation, root sim.Component, n *NetworkSpec, c ConnectionSpec) error {
	from, err := parseGateRef(c.From)
	if err != nil {
		return err
	}
	to, err := parseGateRef(c.To)
	if err != nil {
		return err
	}
	src, err := from.resolve(root)
	if err != nil {
		return err
	}
	dst, err := to.resolve(root)
	if err != nil {
		return err
	}

	var ch sim.Channel
	switch {
	case c.Channel != nil:
		ch, err = c.Channel.Build()
	case c.Use != "":
		tmpl, ok := n.Channels[c.Use]
		if !ok {
			return fmt.Errorf("unknown channel %q", c.Use)
		}
		ch, err = tmpl.Build()
	}
	if err != nil {
		return err
	}
	return s.Connect(src, dst, ch)
}

// LoadAndBuild loads, validates and builds the network file at path.
func LoadAndBuild(s *sim.Simulation, path string) (*NetworkSpec, sim.Component, error) {
	spec, err := LoadNetworkSpec(path)
	if err != nil {
		return nil, nil, err
	}
	if err := spec.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid network spec %s: %w", path, err)
	}
	root, err := Build(s, spec)
	if err != nil {
		return nil, nil, err
	}
	return spec, root, nil
}
