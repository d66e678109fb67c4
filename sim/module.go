package sim

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// Component is any node of the module tree. Implementations embed Module,
// which is the only way to satisfy the interface.
type Component interface {
	module() *Module
}

// Handler receives messages dispatched by the kernel. Returning an error
// aborts the run; messages a component does not understand should be passed
// to Module.Unhandled instead.
type Handler interface {
	HandleMessage(msg Message) error
}

// Initializer takes part in staged initialization. Initialize is called once
// per full-tree pass with stage = 0, 1, 2, ... and returns done=true once the
// component needs no further stages.
type Initializer interface {
	Initialize(stage int) (done bool, err error)
}

// Finisher is called once, children first, after the dispatch loop ends.
type Finisher interface {
	Finish() error
}

// Named is implemented by everything that appears in the module tree:
// components and gates.
type Named interface {
	FullName() string
	FullPath() string
}

// Module is the base embedded by every component. Its zero value is not
// usable; components come to life through Simulation.Construct.
type Module struct {
	sim   *Simulation
	self  Component
	typ   *ModuleType
	id    ComponentID
	owner ComponentID
	name  string
	index int

	// array is the container this module is an element of, if any.
	array    *ComponentArray
	children []ComponentID
	arrays   []*ComponentArray

	gates      []*Gate
	gateGroups map[string]*gateGroup
	params     map[string]*Param
	paramOrder []string

	listeners map[SignalID][]binding
	deleted   bool
}

func (m *Module) module() *Module { return m }

// ModuleOf returns the Module embedded in c, or nil.
func ModuleOf(c Component) *Module {
	if c == nil {
		return nil
	}
	return c.module()
}

// PathOf returns the full path of c, or "" for nil.
func PathOf(c Component) string {
	if c == nil {
		return ""
	}
	return c.module().FullPath()
}

// ID returns the arena id.
func (m *Module) ID() ComponentID { return m.id }

// Sim returns the simulation the module belongs to.
func (m *Module) Sim() *Simulation { return m.sim }

// Type returns the descriptor the module was constructed from.
func (m *Module) Type() *ModuleType { return m.typ }

// Name returns the module name without index.
func (m *Module) Name() string { return m.name }

// Index returns the position in the owning array, or -1.
func (m *Module) Index() int { return m.index }

// IsArrayElement reports whether the module is an element of a ComponentArray.
func (m *Module) IsArrayElement() bool { return m.index >= 0 }

// Self returns the outer component that embeds this Module.
func (m *Module) Self() Component { return m.self }

// FullName returns the name with a bracketed index for array elements.
func (m *Module) FullName() string {
	if m.index < 0 {
		return m.name
	}
	return m.name + "[" + strconv.Itoa(m.index) + "]"
}

// FullPath returns the dot-joined full names from the root down to m.
func (m *Module) FullPath() string {
	if m.sim == nil {
		return m.FullName()
	}
	parts := []string{m.FullName()}
	for o := m.sim.Component(m.owner); o != nil; o = m.sim.Component(o.module().owner) {
		parts = append(parts, o.module().FullName())
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, ".")
}

// String returns the full path.
func (m *Module) String() string { return m.FullPath() }

// Owner returns the owning component, or nil for the root.
func (m *Module) Owner() Component {
	if m.sim == nil {
		return nil
	}
	return m.sim.Component(m.owner)
}

// Array returns the ComponentArray m is an element of, or nil.
func (m *Module) Array() *ComponentArray { return m.array }

// childIDs lists plain submodules followed by the live elements of every array.
func (m *Module) childIDs() []ComponentID {
	ids := make([]ComponentID, 0, len(m.children))
	ids = append(ids, m.children...)
	for _, a := range m.arrays {
		for _, el := range a.elems {
			if el != nil {
				ids = append(ids, el.module().id)
			}
		}
	}
	return ids
}

// Submodules returns the direct child components.
func (m *Module) Submodules() []Component {
	ids := m.childIDs()
	out := make([]Component, 0, len(ids))
	for _, id := range ids {
		if c := m.sim.Component(id); c != nil {
			out = append(out, c)
		}
	}
	return out
}

// Submodule returns the direct child with the given full name ("host[2]"), or nil.
func (m *Module) Submodule(fullName string) Component {
	for _, c := range m.Submodules() {
		if c.module().FullName() == fullName {
			return c
		}
	}
	return nil
}

// SubmoduleArray returns the array with the given name, or nil.
func (m *Module) SubmoduleArray(name string) *ComponentArray {
	for _, a := range m.arrays {
		if a.name == name {
			return a
		}
	}
	return nil
}

// ForEachChild visits the direct children: gates first, then submodules.
// Returning false from fn stops the iteration.
func (m *Module) ForEachChild(fn func(Named) bool) {
	for _, g := range m.gates {
		if !fn(g) {
			return
		}
	}
	for _, c := range m.Submodules() {
		if !fn(c.module()) {
			return
		}
	}
}

// Find returns the first child whose full name matches, searching the whole
// subtree in pre-order when deep is true: each module is tested before its
// own children, and its subtree is searched before its next sibling. Gates
// and modules both match; a module result is returned as its *Module, use
// Self for the outer type.
func (m *Module) Find(name string, deep bool) Named {
	var found Named
	m.ForEachChild(func(n Named) bool {
		if n.FullName() == name {
			found = n
			return false
		}
		if sub, ok := n.(*Module); ok && deep {
			found = sub.Find(name, true)
		}
		return found == nil
	})
	return found
}

// FindModule is Find restricted to components.
func (m *Module) FindModule(name string, deep bool) Component {
	for _, c := range m.Submodules() {
		if c.module().FullName() == name {
			return c
		}
		if !deep {
			continue
		}
		if found := c.module().FindModule(name, true); found != nil {
			return found
		}
	}
	return nil
}

// ModuleByPath resolves a dot-separated path relative to m, e.g. "net.host[1]".
func (m *Module) ModuleByPath(path string) Component {
	var cur Component = m.self
	for _, part := range strings.Split(path, ".") {
		if cur = cur.module().Submodule(part); cur == nil {
			return nil
		}
	}
	return cur
}

// Now returns the current simulation time.
func (m *Module) Now() Time { return m.sim.clock }

// RNG returns the module's own random stream, named after its full path.
func (m *Module) RNG() *rand.Rand {
	return m.sim.RNG(StreamModulePrefix + m.FullPath())
}

// Log returns a logger carrying the simulation time and the module path.
func (m *Module) Log() *logrus.Entry {
	return logrus.WithFields(logrus.Fields{
		"t":      m.sim.clock.String(),
		"module": m.FullPath(),
	})
}

// Schedule sends msg to the module itself after delay: a timer.
func (m *Module) Schedule(delay Time, msg Message) (*Event, error) {
	t, err := m.sim.after(delay)
	if err != nil {
		return nil, err
	}
	return m.ScheduleAt(t, msg)
}

// ScheduleAt sends msg to the module itself at absolute time t.
func (m *Module) ScheduleAt(t Time, msg Message) (*Event, error) {
	ev, err := m.sim.ScheduleAt(t, m.self, msg)
	if err != nil {
		return nil, err
	}
	h := msg.msg()
	h.senderModule = m.id
	h.senderGate = nil
	h.sendTime = m.sim.clock
	return ev, nil
}

// Cancel cancels a pending event; see Simulation.Cancel.
func (m *Module) Cancel(ev *Event) bool { return m.sim.Cancel(ev) }

// CancelMessage cancels the pending event carrying msg.
func (m *Module) CancelMessage(msg Message) bool { return m.sim.CancelMessage(msg) }

// EndSimulation asks the kernel to stop after the current event.
func (m *Module) EndSimulation() {
	m.Log().Info("simulation end requested")
	m.sim.EndSimulation()
}

// Unhandled reports a message the module does not understand. The event is
// otherwise ignored and the run continues.
func (m *Module) Unhandled(msg Message) error {
	m.Log().Warnf("ignoring unexpected message %s (%T)", msg.msg().describe(), msg)
	return nil
}

// NewMsg creates a message stamped with the current time.
func (m *Module) NewMsg(name string, kind int) *Msg {
	return NewMsg(name, kind, m.sim.clock)
}

// NewPacket creates a packet of byteLength bytes stamped with the current time.
func (m *Module) NewPacket(name string, kind int, byteLength int64) *Packet {
	return NewPacket(name, kind, byteLength, m.sim.clock)
}

// DeleteModule removes c and its whole subtree: gates are disconnected,
// pending events addressed to the subtree are cancelled and listener
// bindings are dropped. The root cannot be deleted while running.
func (s *Simulation) DeleteModule(c Component) error {
	m, err := s.live(c)
	if err != nil {
		return err
	}
	if m.id == s.root && s.running {
		return fmt.Errorf("%s: cannot delete the root while running", m.FullPath())
	}
	path := m.FullPath()
	doomed := make(map[ComponentID]bool)
	s.walk(c, func(x Component) bool {
		doomed[x.module().id] = true
		return true
	})

	var pending []*Event
	s.fel.each(func(ev *Event) {
		if doomed[ev.target] {
			pending = append(pending, ev)
		}
	})
	for _, ev := range pending {
		s.Cancel(ev)
	}

	_ = s.walkPost(c, func(x Component) error {
		xm := x.module()
		for _, g := range xm.gates {
			g.Disconnect()
		}
		for sig, bs := range xm.listeners {
			s.listenerCount[sig] -= len(bs)
		}
		xm.listeners = nil
		xm.deleted = true
		s.components[xm.id] = nil
		return nil
	})

	if m.array != nil {
		m.array.elems[m.index] = nil
	} else if o := s.Component(m.owner); o != nil {
		om := o.module()
		for i, id := range om.children {
			if id == m.id {
				om.children = append(om.children[:i], om.children[i+1:]...)
				break
			}
		}
	}
	if m.id == s.root {
		s.root = NoComponent
	}
	logrus.Debugf("[t=%s] deleted module %s (%d components)", s.clock, path, len(doomed))
	return nil
}
