package sim

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// GateDir is the direction of a gate.
type GateDir int

const (
	Input GateDir = iota
	Output
	InOut
)

// String returns the lowercase direction name.
func (d GateDir) String() string {
	switch d {
	case Input:
		return "input"
	case Output:
		return "output"
	case InOut:
		return "inout"
	}
	return fmt.Sprintf("GateDir(%d)", int(d))
}

// ParseGateDir parses "input", "output" or "inout".
func ParseGateDir(s string) (GateDir, error) {
	switch strings.ToLower(s) {
	case "input", "in":
		return Input, nil
	case "output", "out":
		return Output, nil
	case "inout":
		return InOut, nil
	}
	return 0, fmt.Errorf("unknown gate direction %q", s)
}

// GateDecl declares a scalar gate or, with Vector set, a gate vector of Size
// elements. A zero-size vector is extensible at build time.
type GateDecl struct {
	Name   string
	Dir    GateDir
	Vector bool
	Size   int
}

type gateGroup struct {
	decl  GateDecl
	gates []*Gate
}

// Gate is a directional port on a module. An outgoing connection is kept on
// the sending side together with its channel; the receiving side records
// where its incoming connection comes from.
type Gate struct {
	sim   *Simulation
	owner ComponentID
	name  string
	dir   GateDir
	index int

	peer    *Gate
	from    *Gate
	channel Channel

	// finish is the end of the last transmission started on the channel.
	finish Time
	stats  ChannelStats
}

func (g *Gate) Name() string   { return g.name }
func (g *Gate) Dir() GateDir   { return g.dir }
func (g *Gate) Index() int     { return g.index }
func (g *Gate) IsVector() bool { return g.index >= 0 }

// FullName returns the name with a bracketed index for vector gates.
func (g *Gate) FullName() string {
	if g.index < 0 {
		return g.name
	}
	return g.name + "[" + strconv.Itoa(g.index) + "]"
}

// FullPath returns the owner's path followed by the gate's full name.
func (g *Gate) FullPath() string {
	if o := g.Owner(); o != nil {
		return o.module().FullPath() + "." + g.FullName()
	}
	return g.FullName()
}

func (g *Gate) String() string { return g.FullPath() }

// Owner returns the module the gate belongs to.
func (g *Gate) Owner() Component { return g.sim.Component(g.owner) }

// OwnerID returns the id of the owning module.
func (g *Gate) OwnerID() ComponentID { return g.owner }

// Peer returns the gate this gate sends to, or nil.
func (g *Gate) Peer() *Gate { return g.peer }

// From returns the gate whose outgoing connection ends here, or nil.
func (g *Gate) From() *Gate { return g.from }

// Channel returns the channel of the outgoing connection, or nil for a direct
// connection or an unconnected gate.
func (g *Gate) Channel() Channel { return g.channel }

// IsConnected reports whether the gate has an incoming or outgoing connection.
func (g *Gate) IsConnected() bool { return g.peer != nil || g.from != nil }

// TransmissionFinishTime returns when the last transmission on the outgoing
// channel ends. It is in the past when the channel is idle.
func (g *Gate) TransmissionFinishTime() Time { return g.finish }

// IsBusy reports whether a transmission on the outgoing channel is still in progress.
func (g *Gate) IsBusy() bool { return g.finish > g.sim.clock }

// ChannelStats returns the counters of the outgoing connection.
func (g *Gate) ChannelStats() ChannelStats { return g.stats }

// ResetChannel clears the busy state and the counters of the outgoing connection.
func (g *Gate) ResetChannel() {
	g.finish = 0
	g.stats = ChannelStats{}
}

// Disconnect removes the gate's outgoing and incoming connections. The
// reverse half of a duplex connection is removed too.
func (g *Gate) Disconnect() {
	if p := g.peer; p != nil {
		p.from = nil
		g.peer = nil
		g.channel = nil
	}
	if f := g.from; f != nil {
		f.peer = nil
		f.channel = nil
		g.from = nil
	}
	g.ResetChannel()
}

func (g *Gate) canSend() bool    { return g.dir == Output || g.dir == InOut }
func (g *Gate) canReceive() bool { return g.dir == Input || g.dir == InOut }

func (m *Module) addGateGroup(d GateDecl) *gateGroup {
	grp := &gateGroup{decl: d}
	m.gateGroups[d.Name] = grp
	if !d.Vector {
		m.newGate(grp, -1)
		return grp
	}
	for i := 0; i < d.Size; i++ {
		m.newGate(grp, i)
	}
	return grp
}

func (m *Module) newGate(grp *gateGroup, index int) *Gate {
	g := &Gate{sim: m.sim, owner: m.id, name: grp.decl.Name, dir: grp.decl.Dir, index: index}
	grp.gates = append(grp.gates, g)
	m.gates = append(m.gates, g)
	return g
}

// AddGate declares a gate at run or build time, in addition to the gates of
// the module type.
func (m *Module) AddGate(d GateDecl) error {
	if d.Name == "" || strings.ContainsAny(d.Name, ".[]") {
		return fmt.Errorf("%s: invalid gate name %q", m.FullPath(), d.Name)
	}
	if _, exists := m.gateGroups[d.Name]; exists {
		return fmt.Errorf("%s: gate %q already exists", m.FullPath(), d.Name)
	}
	if d.Size < 0 || (!d.Vector && d.Size != 0) {
		return fmt.Errorf("%s: gate %q: invalid size %d", m.FullPath(), d.Name, d.Size)
	}
	m.addGateGroup(d)
	return nil
}

// Gates returns every gate of the module in declaration order.
func (m *Module) Gates() []*Gate {
	return append([]*Gate(nil), m.gates...)
}

// HasGate reports whether a gate or gate vector with the given name exists.
func (m *Module) HasGate(name string) bool {
	_, ok := m.gateGroups[name]
	return ok
}

// Gate resolves a scalar gate name or a vector element written as "name[i]".
func (m *Module) Gate(ref string) (*Gate, error) {
	name, index, err := splitIndex(ref)
	if err != nil {
		return nil, fmt.Errorf("%s: gate %q: %w", m.FullPath(), ref, err)
	}
	if index >= 0 {
		return m.GateAt(name, index)
	}
	grp, ok := m.gateGroups[name]
	if !ok {
		return nil, fmt.Errorf("%s: gate %q: %w", m.FullPath(), ref, ErrUnknownGate)
	}
	if grp.decl.Vector {
		return nil, fmt.Errorf("%s: gate %q is a vector; an index is required: %w", m.FullPath(), ref, ErrUnknownGate)
	}
	return grp.gates[0], nil
}

// GateAt returns element i of a gate vector.
func (m *Module) GateAt(name string, i int) (*Gate, error) {
	grp, ok := m.gateGroups[name]
	if !ok || !grp.decl.Vector {
		return nil, fmt.Errorf("%s: gate vector %q: %w", m.FullPath(), name, ErrUnknownGate)
	}
	if i < 0 || i >= len(grp.gates) {
		return nil, fmt.Errorf("%s: gate %s[%d] out of range (size %d): %w", m.FullPath(), name, i, len(grp.gates), ErrUnknownGate)
	}
	return grp.gates[i], nil
}

// GateSize returns the size of a gate vector, 1 for a scalar gate and 0 for
// an unknown name.
func (m *Module) GateSize(name string) int {
	grp, ok := m.gateGroups[name]
	if !ok {
		return 0
	}
	return len(grp.gates)
}

// SetGateSize grows a gate vector to n elements. Vectors cannot shrink.
func (m *Module) SetGateSize(name string, n int) error {
	grp, ok := m.gateGroups[name]
	if !ok || !grp.decl.Vector {
		return fmt.Errorf("%s: gate vector %q: %w", m.FullPath(), name, ErrUnknownGate)
	}
	if n < len(grp.gates) {
		return fmt.Errorf("%s: gate vector %q cannot shrink from %d to %d", m.FullPath(), name, len(grp.gates), n)
	}
	for i := len(grp.gates); i < n; i++ {
		m.newGate(grp, i)
	}
	return nil
}

// FreeGate returns the first unconnected element of a gate vector, growing
// the vector by one when every element is taken.
func (m *Module) FreeGate(name string) (*Gate, error) {
	grp, ok := m.gateGroups[name]
	if !ok || !grp.decl.Vector {
		return nil, fmt.Errorf("%s: gate vector %q: %w", m.FullPath(), name, ErrUnknownGate)
	}
	for _, g := range grp.gates {
		if !g.IsConnected() {
			return g, nil
		}
	}
	return m.newGate(grp, len(grp.gates)), nil
}

// splitIndex parses "name" (index -1) or "name[i]".
func splitIndex(ref string) (string, int, error) {
	open := strings.IndexByte(ref, '[')
	if open < 0 {
		return ref, -1, nil
	}
	if !strings.HasSuffix(ref, "]") || open == 0 {
		return "", 0, fmt.Errorf("malformed index in %q", ref)
	}
	i, err := strconv.Atoi(ref[open+1 : len(ref)-1])
	if err != nil || i < 0 {
		return "", 0, fmt.Errorf("malformed index in %q", ref)
	}
	return ref[:open], i, nil
}

// Connect wires src to dst, directly when ch is nil or through ch. When
// both gates are InOut the connection is duplex and the reverse direction
// uses a clone of ch.
func (s *Simulation) Connect(src, dst *Gate, ch Channel) error {
	if src == nil || dst == nil {
		return fmt.Errorf("connect: nil gate: %w", ErrUnknownGate)
	}
	if src.sim != s || dst.sim != s || s.Component(src.owner) == nil || s.Component(dst.owner) == nil {
		return fmt.Errorf("connect %s -> %s: %w", src.FullPath(), dst.FullPath(), ErrUnknownComponent)
	}
	if src == dst {
		return fmt.Errorf("connect %s to itself: %w", src.FullPath(), ErrDirectionMismatch)
	}
	if !src.canSend() || !dst.canReceive() {
		return fmt.Errorf("connect %s (%s) -> %s (%s): %w",
			src.FullPath(), src.dir, dst.FullPath(), dst.dir, ErrDirectionMismatch)
	}
	duplex := src.dir == InOut && dst.dir == InOut
	busy := src.peer != nil || dst.from != nil
	if duplex {
		busy = busy || src.from != nil || dst.peer != nil
	}
	if busy {
		return fmt.Errorf("connect %s -> %s: %w", src.FullPath(), dst.FullPath(), ErrGateAlreadyConnected)
	}
	if v, ok := ch.(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("connect %s -> %s: %w", src.FullPath(), dst.FullPath(), err)
		}
	}

	src.peer, src.channel, dst.from = dst, ch, src
	src.ResetChannel()
	if duplex {
		var back Channel
		if ch != nil {
			back = ch.Clone()
		}
		dst.peer, dst.channel, src.from = src, back, dst
		dst.ResetChannel()
	}
	logrus.Debugf("connected %s -> %s (%s, duplex=%v)", src.FullPath(), dst.FullPath(), channelName(ch), duplex)
	return nil
}

func channelName(ch Channel) string {
	if ch == nil {
		return "direct"
	}
	return fmt.Sprintf("%T", ch)
}
