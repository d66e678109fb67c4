package models

import (
	"fmt"

	"github.com/desim-project/desim/sim"
)

// SourceType describes Source.
var SourceType = &sim.ModuleType{
	Name: "Source",
	Doc:  "generates packets on gate out at a configurable interval",
	New:  func() sim.Component { return &Source{} },
	Gates: []sim.GateDecl{
		{Name: "out", Dir: sim.Output},
	},
	Params: []sim.ParamDecl{
		{Name: "interval", Kind: sim.TimeParam, Default: "1s", Volatile: true, Doc: "time between packets"},
		{Name: "packetLength", Kind: sim.IntParam, Default: "1000", Unit: "B"},
		{Name: "count", Kind: sim.IntParam, Default: "0", Doc: "packets to send, 0 for unbounded"},
		{Name: "startTime", Kind: sim.TimeParam, Default: "0s"},
	},
	Signals: []string{SignalPacketSent},
}

// Source sends packets through "out". When the outgoing transmission channel
// is still busy the next packet waits for it.
type Source struct {
	sim.Module

	length int64
	count  int64
	timer  *sim.Msg
	sent   int64
}

// Sent returns the number of packets sent so far.
func (s *Source) Sent() int64 { return s.sent }

func (s *Source) Initialize(stage int) (bool, error) {
	if stage > 0 {
		return true, nil
	}
	var err error
	if s.length, err = s.ParInt("packetLength"); err != nil {
		return false, err
	}
	if s.count, err = s.ParInt("count"); err != nil {
		return false, err
	}
	start, err := s.ParTime("startTime")
	if err != nil {
		return false, err
	}
	s.sent = 0
	s.timer = s.NewMsg("sendTimer", KindTimer)
	if _, err := s.ScheduleAt(start, s.timer); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Source) HandleMessage(msg sim.Message) error {
	if msg != sim.Message(s.timer) {
		return s.Unhandled(msg)
	}
	out, err := s.Gate("out")
	if err != nil {
		return err
	}
	if out.IsBusy() {
		_, err := s.ScheduleAt(out.TransmissionFinishTime(), s.timer)
		return err
	}

	pkt := s.NewPacket(fmt.Sprintf("pkt-%d", s.sent), KindData, s.length)
	if err := s.SendOn(pkt, out); err != nil {
		return err
	}
	s.sent++
	s.Emit(packetSentSignal, pkt.BitLength())
	if s.count > 0 && s.sent >= s.count {
		return nil
	}

	if err := s.Redraw("interval"); err != nil {
		return err
	}
	interval, err := s.ParTime("interval")
	if err != nil {
		return err
	}
	_, err = s.Schedule(interval, s.timer)
	return err
}

func (s *Source) Finish() error {
	s.Log().Infof("sent %d packets", s.sent)
	return nil
}
