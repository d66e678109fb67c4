// Package topology turns the gate connections of a simulation into a
// weighted directed graph and answers shortest-path queries on it.
package topology

import (
	"fmt"
	"math"
	"sort"

	"github.com/desim-project/desim/sim"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

// Weight selects the edge weight used for shortest paths.
type Weight int

const (
	// Hops weights every connection 1.
	Hops Weight = iota
	// Delay weights a connection by its channel's nominal propagation delay
	// in seconds.
	Delay
)

// Link is one connection between two modules.
type Link struct {
	From, To sim.ComponentID
	Gate     *sim.Gate // sending gate
	Weight   float64
}

// Topology is a snapshot of the connection graph. It is not updated when
// the network changes; extract a new one instead.
type Topology struct {
	sim    *sim.Simulation
	g      *simple.WeightedDirectedGraph
	links  map[[2]int64]Link
	cached map[int64]path.Shortest
}

// Extract builds the graph: a node for every module with at least one
// connected gate and an edge for every outgoing connection. When several
// connections join the same pair the lightest one is kept.
func Extract(s *sim.Simulation, w Weight) *Topology {
	t := &Topology{
		sim:    s,
		g:      simple.NewWeightedDirectedGraph(0, math.Inf(1)),
		links:  make(map[[2]int64]Link),
		cached: make(map[int64]path.Shortest),
	}
	s.Walk(func(c sim.Component) bool {
		m := sim.ModuleOf(c)
		for _, gate := range m.Gates() {
			peer := gate.Peer()
			if peer == nil {
				continue
			}
			from, to := int64(m.ID()), int64(peer.OwnerID())
			if from == to {
				continue
			}
			weight := 1.0
			if w == Delay {
				weight = sim.NominalDelay(gate.Channel()).Seconds()
			}
			key := [2]int64{from, to}
			if old, ok := t.links[key]; ok && old.Weight <= weight {
				continue
			}
			t.links[key] = Link{From: m.ID(), To: peer.OwnerID(), Gate: gate, Weight: weight}
			t.g.SetWeightedEdge(simple.WeightedEdge{F: t.node(from), T: t.node(to), W: weight})
		}
		return true
	})
	return t
}

func (t *Topology) node(id int64) graph.Node {
	if n := t.g.Node(id); n != nil {
		return n
	}
	n := simple.Node(id)
	t.g.AddNode(n)
	return n
}

// NodeCount returns the number of modules in the graph.
func (t *Topology) NodeCount() int { return t.g.Nodes().Len() }

// Links returns every edge sorted by source and destination id.
func (t *Topology) Links() []Link {
	out := make([]Link, 0, len(t.links))
	for _, l := range t.links {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}

// shortestFrom returns the cached shortest-path tree rooted at from.
func (t *Topology) shortestFrom(from int64) path.Shortest {
	if sp, ok := t.cached[from]; ok {
		return sp
	}
	sp := path.DijkstraFrom(t.g.Node(from), t.g)
	t.cached[from] = sp
	return sp
}

// ShortestPath returns the modules on the lightest path from src to dst,
// both included, and the path weight.
func (t *Topology) ShortestPath(src, dst sim.Component) ([]sim.Component, float64, error) {
	from, to := int64(sim.ModuleOf(src).ID()), int64(sim.ModuleOf(dst).ID())
	if t.g.Node(from) == nil || t.g.Node(to) == nil {
		return nil, 0, fmt.Errorf("path %s -> %s: module not connected", sim.PathOf(src), sim.PathOf(dst))
	}
	nodes, weight := t.shortestFrom(from).To(to)
	if len(nodes) == 0 {
		return nil, math.Inf(1), fmt.Errorf("path %s -> %s: unreachable", sim.PathOf(src), sim.PathOf(dst))
	}
	out := make([]sim.Component, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, t.sim.Component(sim.ComponentID(n.ID())))
	}
	return out, weight, nil
}

// NextHopGate returns the gate of src through which the shortest path to
// dst leaves src.
func (t *Topology) NextHopGate(src, dst sim.Component) (*sim.Gate, error) {
	hops, _, err := t.ShortestPath(src, dst)
	if err != nil {
		return nil, err
	}
	if len(hops) < 2 {
		return nil, fmt.Errorf("path %s -> %s: source and destination coincide", sim.PathOf(src), sim.PathOf(dst))
	}
	key := [2]int64{int64(sim.ModuleOf(hops[0]).ID()), int64(sim.ModuleOf(hops[1]).ID())}
	return t.links[key].Gate, nil
}
