package sim

import (
	"fmt"
	"math/rand"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/desim-project/desim/sim"

// DefaultMaxInitStages bounds the initialization passes when Config leaves
// MaxInitStages at zero.
const DefaultMaxInitStages = 16

// ComponentID is a stable index into a Simulation's component arena.
type ComponentID int

// NoComponent is the zero ComponentID. The root's owner is NoComponent.
const NoComponent ComponentID = 0

// Config groups the run-scoped settings of a Simulation.
type Config struct {
	Name          string // run label used in logs and spans
	Seed          int64  // master seed for every RNG stream
	MaxInitStages int    // stage limit for initialization (0 = DefaultMaxInitStages)

	// TracerProvider receives the kernel's spans. Nil uses the global provider.
	TracerProvider trace.TracerProvider
}

// RunStats counts kernel activity for one run.
type RunStats struct {
	Scheduled  uint64 // events inserted into the FEL
	Dispatched uint64 // events popped and delivered
	Cancelled  uint64 // events removed by Cancel
	Discarded  uint64 // messages dropped by channels
	Dropped    uint64 // events whose target was deleted before dispatch
	InitPasses int    // full-tree initialization passes performed
}

// Simulation is the run-scoped context: the clock, the future event list, the
// component arena and the RNG streams. Every kernel operation goes through it.
type Simulation struct {
	cfg   Config
	clock Time
	fel   FutureEventList
	seq   uint64
	rng   *PartitionedRNG

	// components is the arena; slot 0 stays nil so NoComponent never resolves.
	components []Component
	root       ComponentID

	// listenerCount counts bindings per signal across the whole tree so that
	// MayHaveListeners can answer false without walking.
	listenerCount map[SignalID]int
	nextHandle    ListenerHandle

	stats        RunStats
	runs         int
	initialized  bool
	running      bool
	finished     bool
	failed       bool
	endRequested bool

	tracer trace.Tracer
}

// NewSimulation creates an empty simulation context.
func NewSimulation(cfg Config) *Simulation {
	if cfg.MaxInitStages <= 0 {
		cfg.MaxInitStages = DefaultMaxInitStages
	}
	if cfg.Name == "" {
		cfg.Name = "simulation"
	}
	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Simulation{
		cfg:           cfg,
		rng:           NewPartitionedRNG(NewSimulationKey(cfg.Seed)),
		components:    make([]Component, 1),
		listenerCount: make(map[SignalID]int),
		tracer:        tp.Tracer(tracerName),
	}
}

// Config returns the configuration the simulation was created with.
func (s *Simulation) Config() Config { return s.cfg }

// Now returns the current simulation time.
func (s *Simulation) Now() Time { return s.clock }

// Stats returns the activity counters of the current run.
func (s *Simulation) Stats() RunStats { return s.stats }

// EventCount returns the number of events popped from the FEL so far,
// dropped ones included.
func (s *Simulation) EventCount() uint64 { return s.stats.Dispatched + s.stats.Dropped }

// FELLen returns the number of pending events.
func (s *Simulation) FELLen() int { return s.fel.Len() }

// RNG returns the named random stream. See PartitionedRNG.
func (s *Simulation) RNG(name string) *rand.Rand { return s.rng.Stream(name) }

// Component resolves an id, returning nil for deleted or unknown ids.
func (s *Simulation) Component(id ComponentID) Component {
	if id <= NoComponent || int(id) >= len(s.components) {
		return nil
	}
	return s.components[id]
}

// Root returns the root component, or nil before one is constructed.
func (s *Simulation) Root() Component { return s.Component(s.root) }

// Walk visits every live component depth-first, parents before children.
// Returning false from fn stops the walk.
func (s *Simulation) Walk(fn func(Component) bool) {
	root := s.Root()
	if root == nil {
		return
	}
	s.walk(root, fn)
}

func (s *Simulation) walk(c Component, fn func(Component) bool) bool {
	if !fn(c) {
		return false
	}
	for _, id := range c.module().childIDs() {
		child := s.Component(id)
		if child == nil {
			continue
		}
		if !s.walk(child, fn) {
			return false
		}
	}
	return true
}

// walkPost visits children before their parent.
func (s *Simulation) walkPost(c Component, fn func(Component) error) error {
	for _, id := range c.module().childIDs() {
		if child := s.Component(id); child != nil {
			if err := s.walkPost(child, fn); err != nil {
				return err
			}
		}
	}
	return fn(c)
}

// EndSimulation asks the dispatch loop to stop after the current event.
func (s *Simulation) EndSimulation() {
	s.endRequested = true
}

// live checks that c belongs to this simulation and has not been deleted.
func (s *Simulation) live(c Component) (*Module, error) {
	if c == nil {
		return nil, fmt.Errorf("nil component: %w", ErrUnknownComponent)
	}
	m := c.module()
	if m.sim != s || s.Component(m.id) == nil {
		return nil, fmt.Errorf("%s: %w", m.FullPath(), ErrUnknownComponent)
	}
	return m, nil
}

// ScheduleAt inserts msg for delivery to target at absolute time t.
// Scheduling before Now fails with ErrInvalidSchedule.
func (s *Simulation) ScheduleAt(t Time, target Component, msg Message) (*Event, error) {
	if msg == nil {
		return nil, fmt.Errorf("%w: nil message", ErrInvalidSchedule)
	}
	return s.insert(t, target, msg, nil, nil)
}

// Schedule inserts msg for delivery to target after delay.
func (s *Simulation) Schedule(delay Time, target Component, msg Message) (*Event, error) {
	t, err := s.after(delay)
	if err != nil {
		return nil, err
	}
	return s.ScheduleAt(t, target, msg)
}

// ScheduleFuncAt inserts a closure event for target at absolute time t.
func (s *Simulation) ScheduleFuncAt(t Time, target Component, fn EventFunc) (*Event, error) {
	if fn == nil {
		return nil, fmt.Errorf("%w: nil function", ErrInvalidSchedule)
	}
	return s.insert(t, target, nil, fn, nil)
}

// ScheduleFunc inserts a closure event for target after delay.
func (s *Simulation) ScheduleFunc(delay Time, target Component, fn EventFunc) (*Event, error) {
	t, err := s.after(delay)
	if err != nil {
		return nil, err
	}
	return s.ScheduleFuncAt(t, target, fn)
}

func (s *Simulation) after(delay Time) (Time, error) {
	if delay < 0 {
		return 0, &Error{Time: s.clock, Err: fmt.Errorf("%w: negative delay %s", ErrInvalidSchedule, delay)}
	}
	if delay > MaxTime-s.clock {
		return 0, &Error{Time: s.clock, Err: fmt.Errorf("%w: delay %s overflows simulation time", ErrInvalidSchedule, delay)}
	}
	return s.clock + delay, nil
}

// insert places an event in the FEL. For message events the arrival fields
// are stamped; via is the gate the message arrives on, nil for self-messages.
func (s *Simulation) insert(t Time, target Component, msg Message, fn EventFunc, via *Gate) (*Event, error) {
	m, err := s.live(target)
	if err != nil {
		return nil, &Error{Time: s.clock, Err: err}
	}
	if t < s.clock {
		return nil, &Error{Time: s.clock, Path: m.FullPath(),
			Err: fmt.Errorf("%w: time %s is before now", ErrInvalidSchedule, t)}
	}
	ev := &Event{time: t, target: m.id, fn: fn, index: -1}
	if msg != nil {
		h := msg.msg()
		if h.event != nil && h.event.Pending() {
			return nil, &Error{Time: s.clock, Path: m.FullPath(),
				Err: fmt.Errorf("%w: %s", ErrMessageScheduled, h.describe())}
		}
		h.ensureID()
		h.event = ev
		h.arrivalModule = m.id
		h.arrivalGate = via
		h.arrivalTime = t
		ev.msg = msg
		ev.priority = h.priority
	}
	s.seq++
	ev.seq = s.seq
	s.fel.Insert(ev)
	s.stats.Scheduled++
	logrus.Debugf("[t=%s] scheduled event #%d for %s at %s", s.clock, ev.seq, m.FullPath(), t)
	return ev, nil
}

// Cancel removes a pending event. Cancelling an event that already fired or
// was already cancelled is a no-op. It reports whether an event was removed.
func (s *Simulation) Cancel(ev *Event) bool {
	if ev == nil || !s.fel.Remove(ev) {
		return false
	}
	s.stats.Cancelled++
	logrus.Debugf("[t=%s] cancelled event #%d", s.clock, ev.seq)
	return true
}

// CancelMessage cancels the pending event carrying msg, if any.
func (s *Simulation) CancelMessage(msg Message) bool {
	if msg == nil {
		return false
	}
	return s.Cancel(msg.msg().event)
}

// register places c in the arena and returns its id.
func (s *Simulation) register(c Component) ComponentID {
	s.components = append(s.components, c)
	return ComponentID(len(s.components) - 1)
}

// Reset returns the simulation to time zero so the same network can be run
// again: the FEL is cleared, RNG streams restart from their seeds, channel
// state is cleared and every component will be initialized anew.
func (s *Simulation) Reset() {
	s.fel.Clear()
	s.clock = 0
	s.seq = 0
	s.stats = RunStats{}
	s.rng.Reset()
	s.initialized = false
	s.finished = false
	s.failed = false
	s.endRequested = false
	s.Walk(func(c Component) bool {
		for _, g := range c.module().gates {
			g.ResetChannel()
		}
		return true
	})
}
