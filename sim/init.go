package sim

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Initialize runs the staged initialization: full-tree passes, parents before
// children, with stage = 0, 1, 2, ... until every Initializer reports done
// in the same pass. It is a no-op once the simulation is initialized.
func (s *Simulation) Initialize(ctx context.Context) (err error) {
	if s.initialized {
		return nil
	}
	if s.Root() == nil {
		return fmt.Errorf("initialize: no root component: %w", ErrUnknownComponent)
	}
	ctx, span := s.tracer.Start(ctx, "sim.initialize",
		trace.WithAttributes(attribute.String("sim.name", s.cfg.Name)))
	defer func() {
		span.SetAttributes(attribute.Int("sim.init.passes", s.stats.InitPasses))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	var pending []string
	for stage := 0; stage < s.cfg.MaxInitStages; stage++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		pending, err = s.initPass(stage)
		s.stats.InitPasses = stage + 1
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			s.initialized = true
			logrus.Infof("[t=%s] initialization complete after %d passes", s.clock, stage+1)
			return nil
		}
		logrus.Debugf("[t=%s] init stage %d: %d components pending", s.clock, stage, len(pending))
	}
	return &Error{Time: s.clock, Err: fmt.Errorf("%w after %d stages; not done: %s",
		ErrInitializationDidNotConverge, s.cfg.MaxInitStages, strings.Join(pending, ", "))}
}

// initPass calls Initialize(stage) on every Initializer and returns the full
// paths of those not yet done.
func (s *Simulation) initPass(stage int) ([]string, error) {
	var pending []string
	var err error
	s.Walk(func(c Component) bool {
		in, ok := c.(Initializer)
		if !ok {
			return true
		}
		done, ierr := in.Initialize(stage)
		if ierr != nil {
			err = s.wrap(ierr, c.module())
			return false
		}
		if !done {
			pending = append(pending, c.module().FullPath())
		}
		return true
	})
	return pending, err
}

// wrap attaches the simulation time and the component path to err unless it
// already carries them.
func (s *Simulation) wrap(err error, m *Module) error {
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	path := ""
	if m != nil {
		path = m.FullPath()
	}
	return &Error{Time: s.clock, Path: path, Err: err}
}
