package models

import (
	"github.com/desim-project/desim/sim"
)

// RelayType describes Relay.
var RelayType = &sim.ModuleType{
	Name: "Relay",
	Doc:  "forwards messages from any in gate to the out gates in round-robin order",
	New:  func() sim.Component { return &Relay{} },
	Gates: []sim.GateDecl{
		{Name: "in", Dir: sim.Input, Vector: true},
		{Name: "out", Dir: sim.Output, Vector: true},
	},
	Signals: []string{SignalPacketForwarded},
}

// Relay forwards every message it receives. When the chosen out gate's
// transmission channel is busy the send is delayed until it is free.
type Relay struct {
	sim.Module

	next      int
	forwarded int64
}

// Forwarded returns the number of forwarded messages.
func (r *Relay) Forwarded() int64 { return r.forwarded }

func (r *Relay) Initialize(stage int) (bool, error) {
	r.next, r.forwarded = 0, 0
	return true, nil
}

func (r *Relay) HandleMessage(msg sim.Message) error {
	out := r.pickOut()
	if out == nil {
		r.Log().Warn("no connected out gate; dropping message")
		return nil
	}
	var delay sim.Time
	if out.IsBusy() {
		delay = out.TransmissionFinishTime() - r.Now()
	}
	if err := r.SendDelayedOn(msg, delay, out); err != nil {
		return err
	}
	r.forwarded++
	if pkt, ok := sim.AsPacket(msg); ok {
		r.Emit(packetForwardedSignal, pkt.BitLength())
	}
	return nil
}

// pickOut returns the next connected out gate in round-robin order.
func (r *Relay) pickOut() *sim.Gate {
	n := r.GateSize("out")
	for i := 0; i < n; i++ {
		g, err := r.GateAt("out", (r.next+i)%n)
		if err != nil || g.Peer() == nil {
			continue
		}
		r.next = (r.next + i + 1) % n
		return g
	}
	return nil
}
