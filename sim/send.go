package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Send sends msg through the named output gate ("out" or "out[2]").
func (m *Module) Send(msg Message, gateRef string) error {
	g, err := m.Gate(gateRef)
	if err != nil {
		return &Error{Time: m.sim.clock, Path: m.FullPath(), Err: err}
	}
	return m.sim.send(m, msg, g, 0)
}

// SendOn sends msg through g, which must belong to m.
func (m *Module) SendOn(msg Message, g *Gate) error {
	return m.sim.send(m, msg, g, 0)
}

// SendDelayed sends msg through the named gate as if the send happened delay
// later. The transmission starts at that time.
func (m *Module) SendDelayed(msg Message, delay Time, gateRef string) error {
	g, err := m.Gate(gateRef)
	if err != nil {
		return &Error{Time: m.sim.clock, Path: m.FullPath(), Err: err}
	}
	return m.sim.send(m, msg, g, delay)
}

// SendDelayedOn is SendDelayed with a gate instead of a gate reference.
func (m *Module) SendDelayedOn(msg Message, delay Time, g *Gate) error {
	return m.sim.send(m, msg, g, delay)
}

// SendDirect delivers msg to the input gate target after delay without
// following any connection. target may belong to any module.
func (m *Module) SendDirect(msg Message, delay Time, target *Gate) error {
	s := m.sim
	if target == nil || target.sim != s || !target.canReceive() {
		return &Error{Time: s.clock, Path: m.FullPath(),
			Err: fmt.Errorf("send direct: target is not an input gate of this simulation: %w", ErrUnknownGate)}
	}
	at, err := s.after(delay)
	if err != nil {
		return err
	}
	h, err := checkSendable(msg)
	if err != nil {
		return &Error{Time: s.clock, Path: m.FullPath(), Err: err}
	}
	if _, err := s.insert(at, target.Owner(), msg, nil, target); err != nil {
		return err
	}
	h.senderModule, h.senderGate, h.sendTime = m.id, nil, s.clock
	return nil
}

func checkSendable(msg Message) (*Msg, error) {
	if msg == nil {
		return nil, fmt.Errorf("send: nil message")
	}
	h := msg.msg()
	if h.IsScheduled() {
		return nil, fmt.Errorf("send %s: %w", h.describe(), ErrMessageScheduled)
	}
	return h, nil
}

// send runs the transmission protocol: the busy check, the channel's verdict
// and the scheduling of the arrival event on the peer's owner.
func (s *Simulation) send(m *Module, msg Message, g *Gate, delay Time) error {
	fail := func(err error) error {
		return &Error{Time: s.clock, Path: m.FullPath(), Err: err}
	}
	if g == nil || g.sim != s || g.owner != m.id {
		return fail(fmt.Errorf("send on a gate not owned by the sender: %w", ErrUnknownGate))
	}
	if !g.canSend() {
		return fail(fmt.Errorf("send on %s gate %s: %w", g.dir, g.FullName(), ErrDirectionMismatch))
	}
	h, err := checkSendable(msg)
	if err != nil {
		return fail(err)
	}
	if g.peer == nil {
		return fail(fmt.Errorf("send on %s: %w", g.FullName(), ErrGateNotConnected))
	}
	start, err := s.after(delay)
	if err != nil {
		return err
	}

	arrival := start
	if ch := g.channel; ch != nil {
		tx := ch.IsTransmissionChannel()
		if tx && g.finish > start {
			return fail(fmt.Errorf("send on %s at %s: transmission in progress until %s: %w",
				g.FullName(), start, g.finish, ErrChannelBusy))
		}
		p, isPacket := AsPacket(msg)
		if isPacket {
			p.duration = 0
		}
		res := ch.ProcessMessage(msg, start, s.RNG(StreamChannelPrefix+g.FullPath()))
		g.stats.Messages++
		if res.Discard {
			g.stats.Discarded++
			s.stats.Discarded++
			logrus.Debugf("[t=%s] channel of %s discarded %s", s.clock, g.FullPath(), h.describe())
			return nil
		}
		if tx {
			g.finish = start + res.Duration
			g.stats.BusyTime += res.Duration
		}
		if isPacket {
			p.duration = res.Duration
			g.stats.Bits += p.bitLength
			if p.bitError {
				g.stats.BitErrors++
			}
		}
		arrival = start + res.Delay + res.Duration
		if arrival < start {
			return fail(fmt.Errorf("%w: arrival time overflows", ErrInvalidSchedule))
		}
	}

	dst := g.peer
	if _, err := s.insert(arrival, dst.Owner(), msg, nil, dst); err != nil {
		return err
	}
	h.senderModule, h.senderGate, h.sendTime = m.id, g, start
	return nil
}
