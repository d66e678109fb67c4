package stats

import (
	"github.com/desim-project/desim/sim"
	"github.com/prometheus/client_golang/prometheus"
)

// RunCollector snapshots kernel counters and per-connection channel
// statistics into Prometheus gauges.
type RunCollector struct {
	gatherer prometheus.Gatherer

	SimTime    prometheus.Gauge
	Events     *prometheus.GaugeVec
	InitPasses prometheus.Gauge
	Channels   *prometheus.GaugeVec
}

// NewRunCollector registers run metrics against the provided registerer,
// defaulting to the global Prometheus registry when nil.
func NewRunCollector(reg prometheus.Registerer) (*RunCollector, error) {
	reg, gatherer := gathererFor(reg)

	simTime, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "desim_simulation_time_seconds",
		Help: "Simulation clock at the end of the run.",
	}), "desim_simulation_time_seconds")
	if err != nil {
		return nil, err
	}

	events, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "desim_events",
		Help: "Kernel event counters for the run, labeled by outcome.",
	}, []string{"outcome"}), "desim_events")
	if err != nil {
		return nil, err
	}

	passes, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "desim_init_passes",
		Help: "Full-tree initialization passes performed.",
	}), "desim_init_passes")
	if err != nil {
		return nil, err
	}

	channels, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "desim_channel",
		Help: "Per-connection channel counters, labeled by source gate path and counter.",
	}, []string{"gate", "counter"}), "desim_channel")
	if err != nil {
		return nil, err
	}

	return &RunCollector{
		gatherer:   gatherer,
		SimTime:    simTime,
		Events:     events,
		InitPasses: passes,
		Channels:   channels,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *RunCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Observe copies the current counters of s into the gauges.
func (c *RunCollector) Observe(s *sim.Simulation) {
	if c == nil || s == nil {
		return
	}
	st := s.Stats()
	c.SimTime.Set(s.Now().Seconds())
	c.InitPasses.Set(float64(st.InitPasses))
	c.Events.WithLabelValues("scheduled").Set(float64(st.Scheduled))
	c.Events.WithLabelValues("dispatched").Set(float64(st.Dispatched))
	c.Events.WithLabelValues("cancelled").Set(float64(st.Cancelled))
	c.Events.WithLabelValues("discarded").Set(float64(st.Discarded))
	c.Events.WithLabelValues("dropped").Set(float64(st.Dropped))
	c.Events.WithLabelValues("pending").Set(float64(s.FELLen()))

	s.Walk(func(comp sim.Component) bool {
		for _, g := range sim.ModuleOf(comp).Gates() {
			if g.Peer() == nil || g.Channel() == nil {
				continue
			}
			cs := g.ChannelStats()
			path := g.FullPath()
			c.Channels.WithLabelValues(path, "messages").Set(float64(cs.Messages))
			c.Channels.WithLabelValues(path, "discarded").Set(float64(cs.Discarded))
			c.Channels.WithLabelValues(path, "bit_errors").Set(float64(cs.BitErrors))
			c.Channels.WithLabelValues(path, "bits").Set(float64(cs.Bits))
			c.Channels.WithLabelValues(path, "busy_seconds").Set(cs.BusyTime.Seconds())
		}
		return true
	})
}
