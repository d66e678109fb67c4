package sim

import (
	"fmt"
	"sync"
)

// SignalID identifies a registered signal. Ids are process-wide and stable
// for the lifetime of the process.
type SignalID int

var signalRegistry = struct {
	sync.RWMutex
	byName map[string]SignalID
	names  []string
}{byName: make(map[string]SignalID)}

// RegisterSignal returns the id for name, registering it on first use.
func RegisterSignal(name string) SignalID {
	signalRegistry.Lock()
	defer signalRegistry.Unlock()
	if id, ok := signalRegistry.byName[name]; ok {
		return id
	}
	id := SignalID(len(signalRegistry.names))
	signalRegistry.names = append(signalRegistry.names, name)
	signalRegistry.byName[name] = id
	return id
}

// LookupSignal returns the id of a registered signal.
func LookupSignal(name string) (SignalID, bool) {
	signalRegistry.RLock()
	defer signalRegistry.RUnlock()
	id, ok := signalRegistry.byName[name]
	return id, ok
}

// SignalNames returns every registered signal name in id order.
func SignalNames() []string {
	signalRegistry.RLock()
	defer signalRegistry.RUnlock()
	return append([]string(nil), signalRegistry.names...)
}

func (id SignalID) valid() bool {
	signalRegistry.RLock()
	defer signalRegistry.RUnlock()
	return id >= 0 && int(id) < len(signalRegistry.names)
}

// String returns the registered name.
func (id SignalID) String() string {
	signalRegistry.RLock()
	defer signalRegistry.RUnlock()
	if id < 0 || int(id) >= len(signalRegistry.names) {
		return fmt.Sprintf("signal(%d)", int(id))
	}
	return signalRegistry.names[id]
}

// Listener receives emitted signal values. Values are shared with every
// other listener and must not be modified.
type Listener interface {
	ReceiveSignal(source Component, signal SignalID, value any, t Time)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(source Component, signal SignalID, value any, t Time)

// ReceiveSignal calls f.
func (f ListenerFunc) ReceiveSignal(source Component, signal SignalID, value any, t Time) {
	f(source, signal, value, t)
}

// ListenerHandle identifies one subscription.
type ListenerHandle uint64

type binding struct {
	handle   ListenerHandle
	listener Listener
}

// Subscribe binds l to signal at c. The listener receives every emission of
// signal by c or by any component below c.
func (s *Simulation) Subscribe(c Component, signal SignalID, l Listener) (ListenerHandle, error) {
	m, err := s.live(c)
	if err != nil {
		return 0, err
	}
	if l == nil {
		return 0, fmt.Errorf("%s: subscribe to %s: nil listener", m.FullPath(), signal)
	}
	if !signal.valid() {
		return 0, fmt.Errorf("%s: subscribe: signal %d is not registered", m.FullPath(), int(signal))
	}
	if m.listeners == nil {
		m.listeners = make(map[SignalID][]binding)
	}
	s.nextHandle++
	h := s.nextHandle
	m.listeners[signal] = append(m.listeners[signal], binding{handle: h, listener: l})
	s.listenerCount[signal]++
	return h, nil
}

// Unsubscribe removes the binding created by Subscribe. It reports whether
// a binding was removed; components of another simulation are never touched.
func (s *Simulation) Unsubscribe(c Component, signal SignalID, h ListenerHandle) bool {
	m, err := s.live(c)
	if err != nil {
		return false
	}
	bs := m.listeners[signal]
	for i, b := range bs {
		if b.handle != h {
			continue
		}
		// a fresh slice keeps an in-progress Emit's copy intact
		rest := make([]binding, 0, len(bs)-1)
		rest = append(rest, bs[:i]...)
		rest = append(rest, bs[i+1:]...)
		if len(rest) == 0 {
			delete(m.listeners, signal)
		} else {
			m.listeners[signal] = rest
		}
		s.listenerCount[signal]--
		return true
	}
	return false
}

// Emit delivers value to every listener bound to signal at c or at one of
// its ancestors, nearest first.
func (s *Simulation) Emit(c Component, signal SignalID, value any) {
	if c == nil || c.module().deleted || s.listenerCount[signal] == 0 {
		return
	}
	for cur := c; cur != nil; cur = s.Component(cur.module().owner) {
		bs := cur.module().listeners[signal]
		for _, b := range bs {
			b.listener.ReceiveSignal(c, signal, value, s.clock)
		}
	}
}

// MayHaveListeners reports whether an emission of signal at c would reach
// any listener.
func (s *Simulation) MayHaveListeners(c Component, signal SignalID) bool {
	if c == nil || s.listenerCount[signal] == 0 {
		return false
	}
	for cur := c; cur != nil; cur = s.Component(cur.module().owner) {
		if len(cur.module().listeners[signal]) > 0 {
			return true
		}
	}
	return false
}

// Subscribe binds l to signal at m.
func (m *Module) Subscribe(signal SignalID, l Listener) (ListenerHandle, error) {
	return m.sim.Subscribe(m.self, signal, l)
}

// Unsubscribe removes a binding at m.
func (m *Module) Unsubscribe(signal SignalID, h ListenerHandle) bool {
	return m.sim.Unsubscribe(m.self, signal, h)
}

// Emit emits value on signal with m as the source.
func (m *Module) Emit(signal SignalID, value any) {
	m.sim.Emit(m.self, signal, value)
}

// MayHaveListeners reports whether emitting signal at m would reach anyone.
func (m *Module) MayHaveListeners(signal SignalID) bool {
	return m.sim.MayHaveListeners(m.self, signal)
}
