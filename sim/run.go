package sim

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Termination is the reason a run ended.
type Termination int

const (
	EmptyFEL Termination = iota
	TimeLimitReached
	EventLimitReached
	PredicateSatisfied
	EndRequested
	Interrupted
	Failed
)

var terminationNames = [...]string{
	EmptyFEL:           "empty-fel",
	TimeLimitReached:   "time-limit",
	EventLimitReached:  "event-limit",
	PredicateSatisfied: "predicate",
	EndRequested:       "end-requested",
	Interrupted:        "interrupted",
	Failed:             "failed",
}

func (t Termination) String() string {
	if t >= 0 && int(t) < len(terminationNames) {
		return terminationNames[t]
	}
	return fmt.Sprintf("Termination(%d)", int(t))
}

// StopCondition bounds a run. Zero fields mean no bound; with all fields zero
// the run ends when the FEL is empty.
type StopCondition struct {
	// TimeLimit stops before the first event later than the limit; that
	// event stays in the FEL and the clock is set to the limit.
	TimeLimit Time
	// EventLimit stops after this many events.
	EventLimit uint64
	// Until is checked before every event.
	Until func(*Simulation) bool
}

// Run initializes the tree if needed, then dispatches events until stop is
// met, the FEL empties, a module ends the simulation or ctx is cancelled.
// Finish is called on every Finisher, children first, unless the run failed.
// After a failed run the simulation must be Reset before it runs again.
// root must be the simulation's root; nil selects it.
func (s *Simulation) Run(ctx context.Context, root Component, stop StopCondition) (reason Termination, err error) {
	if root == nil {
		root = s.Root()
	}
	if root == nil || s.Root() == nil || root.module().id != s.root {
		return Failed, fmt.Errorf("run: %w: not the root of this simulation", ErrUnknownComponent)
	}
	if s.running {
		return Failed, fmt.Errorf("run: already running")
	}
	if s.finished {
		return Failed, fmt.Errorf("run: simulation finished; call Reset before running again")
	}
	if s.failed {
		return Failed, fmt.Errorf("run: previous run failed; call Reset before running again")
	}

	ctx, span := s.tracer.Start(ctx, "sim.run", trace.WithAttributes(
		attribute.String("sim.name", s.cfg.Name),
		attribute.Int64("sim.seed", s.cfg.Seed),
	))
	defer func() {
		span.SetAttributes(
			attribute.String("sim.termination", reason.String()),
			attribute.Int64("sim.events", int64(s.EventCount())),
			attribute.String("sim.time", s.clock.String()),
		)
		if err != nil {
			s.failed = true
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if s.runs > 0 {
		if err := s.resolveVolatile(); err != nil {
			return Failed, err
		}
	}
	s.runs++
	if err := s.Initialize(ctx); err != nil {
		return Failed, err
	}

	s.running = true
	logrus.Infof("[t=%s] run %q started with %d pending events", s.clock, s.cfg.Name, s.fel.Len())
	reason, err = s.loop(ctx, stop)
	s.running = false
	if err != nil {
		logrus.Errorf("[t=%s] run %q aborted: %v", s.clock, s.cfg.Name, err)
		return Failed, err
	}

	s.finished = true
	if err := s.walkPost(s.Root(), func(c Component) error {
		if f, ok := c.(Finisher); ok {
			if err := f.Finish(); err != nil {
				return s.wrap(err, c.module())
			}
		}
		return nil
	}); err != nil {
		return Failed, err
	}
	logrus.Infof("[t=%s] run %q ended (%s) after %d events", s.clock, s.cfg.Name, reason, s.EventCount())
	return reason, nil
}

func (s *Simulation) loop(ctx context.Context, stop StopCondition) (Termination, error) {
	for {
		switch {
		case s.endRequested:
			return EndRequested, nil
		case ctx.Err() != nil:
			return Interrupted, nil
		case stop.Until != nil && stop.Until(s):
			return PredicateSatisfied, nil
		case stop.EventLimit > 0 && s.EventCount() >= stop.EventLimit:
			return EventLimitReached, nil
		}
		next := s.fel.Peek()
		if next == nil {
			return EmptyFEL, nil
		}
		if stop.TimeLimit > 0 && next.time > stop.TimeLimit {
			s.clock = stop.TimeLimit
			return TimeLimitReached, nil
		}
		ev := s.fel.PopNext()
		if ev.time < s.clock {
			return Failed, &Error{Time: s.clock, Path: s.targetPath(ev),
				Err: fmt.Errorf("%w: event #%d at %s", ErrNonMonotonicTime, ev.seq, ev.time)}
		}
		s.clock = ev.time
		if err := s.dispatch(ev); err != nil {
			return Failed, err
		}
	}
}

func (s *Simulation) targetPath(ev *Event) string {
	if c := s.Component(ev.target); c != nil {
		return c.module().FullPath()
	}
	return fmt.Sprintf("component #%d", ev.target)
}

// dispatch delivers one popped event.
func (s *Simulation) dispatch(ev *Event) error {
	c := s.Component(ev.target)
	if c == nil {
		s.stats.Dropped++
		logrus.Warnf("[t=%s] dropping event #%d: target component #%d no longer exists", s.clock, ev.seq, ev.target)
		return nil
	}
	m := c.module()
	if ev.fn != nil {
		s.stats.Dispatched++
		logrus.Tracef("[t=%s] Executing closure event #%d on %s", s.clock, ev.seq, m.FullPath())
		if err := ev.fn(); err != nil {
			return s.wrap(err, m)
		}
		return nil
	}
	h, ok := c.(Handler)
	if !ok {
		s.stats.Dropped++
		logrus.Warnf("[t=%s] dropping %s: %s (%T) does not handle messages",
			s.clock, ev.msg.msg().describe(), m.FullPath(), c)
		return nil
	}
	s.stats.Dispatched++
	logrus.Tracef("[t=%s] Executing %s on %s", s.clock, ev.msg.msg().describe(), m.FullPath())
	if err := h.HandleMessage(ev.msg); err != nil {
		return s.wrap(err, m)
	}
	return nil
}
