package stats

import (
	"fmt"

	"github.com/desim-project/desim/sim"
	"github.com/prometheus/client_golang/prometheus"
)

// SignalCollector is a sim.Listener that turns signal emissions into
// Prometheus metrics labeled by signal name and source path.
type SignalCollector struct {
	gatherer prometheus.Gatherer

	Emissions *prometheus.CounterVec
	Values    *prometheus.HistogramVec
	Last      *prometheus.GaugeVec
}

// NewSignalCollector registers signal metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewSignalCollector(reg prometheus.Registerer) (*SignalCollector, error) {
	reg, gatherer := gathererFor(reg)

	emissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "desim_signal_emissions_total",
		Help: "Number of signal emissions, labeled by signal and source module path.",
	}, []string{"signal", "source"})
	emissions, err := registerCounterVec(reg, emissions, "desim_signal_emissions_total")
	if err != nil {
		return nil, err
	}

	values := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "desim_signal_value",
		Help:    "Distribution of numeric signal values, labeled by signal.",
		Buckets: prometheus.ExponentialBuckets(1e-6, 10, 14),
	}, []string{"signal"})
	values, err = registerHistogramVec(reg, values, "desim_signal_value")
	if err != nil {
		return nil, err
	}

	last := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "desim_signal_last_value",
		Help: "Most recent numeric value of a signal, labeled by signal and source module path.",
	}, []string{"signal", "source"})
	last, err = registerGaugeVec(reg, last, "desim_signal_last_value")
	if err != nil {
		return nil, err
	}

	return &SignalCollector{
		gatherer:  gatherer,
		Emissions: emissions,
		Values:    values,
		Last:      last,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *SignalCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ReceiveSignal implements sim.Listener.
func (c *SignalCollector) ReceiveSignal(source sim.Component, signal sim.SignalID, value any, t sim.Time) {
	if c == nil {
		return
	}
	name, path := signal.String(), sim.PathOf(source)
	c.Emissions.WithLabelValues(name, path).Inc()
	v, ok := toFloat(value)
	if !ok {
		return
	}
	c.Values.WithLabelValues(name).Observe(v)
	c.Last.WithLabelValues(name, path).Set(v)
}

// Attach subscribes the collector at component at to the named signals, or
// to every registered signal when names is empty.
func (c *SignalCollector) Attach(s *sim.Simulation, at sim.Component, names ...string) error {
	if len(names) == 0 {
		names = sim.SignalNames()
	}
	for _, name := range names {
		id, ok := sim.LookupSignal(name)
		if !ok {
			return fmt.Errorf("stats: unknown signal %q", name)
		}
		if _, err := s.Subscribe(at, id, c); err != nil {
			return fmt.Errorf("stats: subscribe to %s: %w", name, err)
		}
	}
	return nil
}

func toFloat(v any) (float64, bool) {
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
	}
	return 0, false
}
