package trace

import (
	"fmt"
	"io"

	"github.com/desim-project/desim/sim"
	"gopkg.in/yaml.v3"
)

// Recorder is a sim.Listener that appends every received emission to a
// SimulationTrace.
type Recorder struct {
	trace   *SimulationTrace
	filter  map[string]bool
	handles map[sim.SignalID]sim.ListenerHandle
	at      sim.Component
}

// NewRecorder returns a recorder writing into st.
func NewRecorder(st *SimulationTrace) *Recorder {
	r := &Recorder{trace: st, handles: make(map[sim.SignalID]sim.ListenerHandle)}
	if len(st.Config.Signals) > 0 {
		r.filter = make(map[string]bool, len(st.Config.Signals))
		for _, name := range st.Config.Signals {
			r.filter[name] = true
		}
	}
	return r
}

// Trace returns the trace being filled.
func (r *Recorder) Trace() *SimulationTrace { return r.trace }

// ReceiveSignal implements sim.Listener.
func (r *Recorder) ReceiveSignal(source sim.Component, signal sim.SignalID, value any, t sim.Time) {
	rec := SignalRecord{
		Time:   int64(t),
		Source: sim.PathOf(source),
		Signal: signal.String(),
	}
	if v, ok := numeric(value); ok {
		rec.Value = v
	} else {
		rec.Text = fmt.Sprint(value)
	}
	r.trace.RecordSignal(rec)
}

// Attach subscribes the recorder at component at to every registered signal
// selected by the trace config. Nothing is subscribed when the level is none.
func (r *Recorder) Attach(s *sim.Simulation, at sim.Component) error {
	if !r.trace.Enabled() {
		return nil
	}
	if r.filter != nil {
		for name := range r.filter {
			if _, ok := sim.LookupSignal(name); !ok {
				return fmt.Errorf("trace: unknown signal %q", name)
			}
		}
	}
	for _, name := range sim.SignalNames() {
		if r.filter != nil && !r.filter[name] {
			continue
		}
		id, _ := sim.LookupSignal(name)
		h, err := s.Subscribe(at, id, r)
		if err != nil {
			return fmt.Errorf("trace: subscribe to %s: %w", name, err)
		}
		r.handles[id] = h
	}
	r.at = at
	return nil
}

// Detach removes every subscription made by Attach.
func (r *Recorder) Detach(s *sim.Simulation) {
	for id, h := range r.handles {
		s.Unsubscribe(r.at, id, h)
	}
	r.handles = make(map[sim.SignalID]sim.ListenerHandle)
}

// WriteYAML writes the trace and its summary.
func WriteYAML(w io.Writer, st *SimulationTrace) error {
	doc := struct {
		Summary *TraceSummary    `yaml:"summary"`
		Trace   *SimulationTrace `yaml:"trace"`
	}{Summarize(st), st}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode trace: %w", err)
	}
	return enc.Close()
}

func numeric(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint64:
		return float64(x), true
	case sim.Time:
		return x.Seconds(), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
