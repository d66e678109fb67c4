package models

import (
	"github.com/desim-project/desim/sim"
)

// EchoType describes Echo.
var EchoType = &sim.ModuleType{
	Name: "Echo",
	Doc:  "returns a duplicate of every message arriving on in through out",
	New:  func() sim.Component { return &Echo{} },
	Gates: []sim.GateDecl{
		{Name: "in", Dir: sim.Input},
		{Name: "out", Dir: sim.Output},
	},
	Params: []sim.ParamDecl{
		{Name: "delay", Kind: sim.TimeParam, Default: "0s"},
	},
	Signals: []string{SignalPacketEchoed},
}

// Echo sends a duplicate of each message it receives back after a delay.
type Echo struct {
	sim.Module

	echoed int64
}

// Echoed returns the number of messages sent back.
func (e *Echo) Echoed() int64 { return e.echoed }

func (e *Echo) Initialize(stage int) (bool, error) {
	e.echoed = 0
	return true, nil
}

func (e *Echo) HandleMessage(msg sim.Message) error {
	if !sim.MsgOf(msg).ArrivedOn("in") {
		return e.Unhandled(msg)
	}
	delay, err := e.ParTime("delay")
	if err != nil {
		return err
	}
	dup, err := sim.Duplicate(msg)
	if err != nil {
		return err
	}
	if err := e.SendDelayed(dup, delay, "out"); err != nil {
		return err
	}
	e.echoed++
	e.Emit(packetEchoedSignal, e.echoed)
	return nil
}
