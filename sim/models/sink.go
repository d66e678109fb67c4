package models

import (
	"github.com/desim-project/desim/sim"
)

// SinkType describes Sink.
var SinkType = &sim.ModuleType{
	Name: "Sink",
	Doc:  "consumes packets arriving on any element of gate vector in",
	New:  func() sim.Component { return &Sink{} },
	Gates: []sim.GateDecl{
		{Name: "in", Dir: sim.Input, Vector: true},
	},
	Signals: []string{SignalPacketReceived, SignalEndToEndDelay},
}

// Sink counts received packets and emits their length and end-to-end delay.
type Sink struct {
	sim.Module

	received  int64
	bits      int64
	bitErrors int64
}

func (s *Sink) Received() int64  { return s.received }
func (s *Sink) Bits() int64      { return s.bits }
func (s *Sink) BitErrors() int64 { return s.bitErrors }

func (s *Sink) Initialize(stage int) (bool, error) {
	if stage == 0 {
		s.received, s.bits, s.bitErrors = 0, 0, 0
	}
	return true, nil
}

func (s *Sink) HandleMessage(msg sim.Message) error {
	pkt, ok := sim.AsPacket(msg)
	if !ok {
		return s.Unhandled(msg)
	}
	s.received++
	s.bits += pkt.BitLength()
	if pkt.HasBitError() {
		s.bitErrors++
	}
	s.Emit(packetReceivedSignal, pkt.BitLength())
	if s.MayHaveListeners(endToEndDelaySignal) {
		s.Emit(endToEndDelaySignal, (s.Now() - pkt.CreationTime()).Seconds())
	}
	return nil
}

func (s *Sink) Finish() error {
	s.Log().Infof("received %d packets (%d bits, %d with bit errors)", s.received, s.bits, s.bitErrors)
	return nil
}
