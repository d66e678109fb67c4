package sim

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// arrival is one message delivery observed by a testNode.
type arrival struct {
	at   Time
	name string
	gate string // full gate name, "" for self-messages
}

// testNode records what happens to it. Initialization is done once the
// stage reaches initStages; onMessage, when set, runs after recording.
type testNode struct {
	Module

	arrivals   []arrival
	onMessage  func(n *testNode, msg Message) error
	onInit     func(n *testNode, stage int) error
	initStages int
	initCalls  []int
	initLog    *[]string // shared across nodes to observe pass order
	finished   int
}

var testNodeType = &ModuleType{
	Name: "testNode",
	New:  func() Component { return &testNode{} },
	Gates: []GateDecl{
		{Name: "in", Dir: Input},
		{Name: "out", Dir: Output},
		{Name: "io", Dir: InOut},
		{Name: "vin", Dir: Input, Vector: true},
		{Name: "vout", Dir: Output, Vector: true, Size: 2},
	},
	Params: []ParamDecl{
		{Name: "label", Kind: StringParam},
		{Name: "weight", Kind: DoubleParam, Default: "1.5"},
	},
}

// testPair is a compound type with two static children and a vector.
var testPairType = &ModuleType{
	Name: "testPair",
	New:  func() Component { return &Network{} },
	Submodules: []SubmoduleDecl{
		{Name: "left", Type: "testNode"},
		{Name: "right", Type: "testNode", Params: map[string]string{"label": "r"}},
		{Name: "hosts", Type: "testNode", Vector: true, Size: 2},
	},
}

// passive has no behavior; messages addressed to it are dropped.
type passive struct {
	Module
}

var passiveType = &ModuleType{
	Name: "testPassive",
	New:  func() Component { return &passive{} },
}

func init() {
	MustRegisterModuleType(testNodeType)
	MustRegisterModuleType(testPairType)
	MustRegisterModuleType(passiveType)
}

func (n *testNode) HandleMessage(msg Message) error {
	h := MsgOf(msg)
	gate := ""
	if g := h.ArrivalGate(); g != nil {
		gate = g.FullName()
	}
	n.arrivals = append(n.arrivals, arrival{at: n.Now(), name: h.Name(), gate: gate})
	if n.onMessage != nil {
		return n.onMessage(n, msg)
	}
	return nil
}

func (n *testNode) Initialize(stage int) (bool, error) {
	n.initCalls = append(n.initCalls, stage)
	if n.initLog != nil {
		*n.initLog = append(*n.initLog, fmt.Sprintf("%s@%d", n.FullPath(), stage))
	}
	if n.onInit != nil {
		if err := n.onInit(n, stage); err != nil {
			return false, err
		}
	}
	return stage >= n.initStages, nil
}

func (n *testNode) Finish() error {
	n.finished++
	return nil
}

// newTestSim returns a simulation with an empty Network root named "net".
func newTestSim(t *testing.T) (*Simulation, Component) {
	t.Helper()
	s := NewSimulation(Config{Name: "test", Seed: 7})
	root, err := s.ConstructRoot("Network", "net", nil)
	require.NoError(t, err)
	return s, root
}

func addNode(t *testing.T, s *Simulation, owner Component, name string) *testNode {
	t.Helper()
	c, err := s.Construct("testNode", name, owner, nil)
	require.NoError(t, err)
	return c.(*testNode)
}

func mustGate(t *testing.T, c Component, ref string) *Gate {
	t.Helper()
	g, err := c.module().Gate(ref)
	require.NoError(t, err)
	return g
}

// signalLog collects signal deliveries.
type signalLog struct {
	values  []any
	sources []string
}

func (l *signalLog) ReceiveSignal(source Component, _ SignalID, value any, _ Time) {
	l.values = append(l.values, value)
	l.sources = append(l.sources, PathOf(source))
}
