package sim

import (
	"fmt"
	"math"
	"math/rand"
)

// TransmissionResult is a channel's verdict on one message.
type TransmissionResult struct {
	Delay    Time // propagation delay
	Duration Time // transmission duration, zero for non-packets
	Discard  bool
}

// Channel mediates a connection. The kernel calls ProcessMessage once per
// send, after checking that a transmission channel is idle; the channel may
// set the bit-error flag of a packet but must not otherwise modify it.
type Channel interface {
	ProcessMessage(msg Message, start Time, rng *rand.Rand) TransmissionResult
	// IsTransmissionChannel reports whether the channel models a data rate
	// and therefore a busy period per message.
	IsTransmissionChannel() bool
	// Clone returns an independent copy used for the reverse half of a
	// duplex connection.
	Clone() Channel
}

// ChannelStats counts the traffic of one connection.
type ChannelStats struct {
	Messages  uint64 // messages offered to the channel
	Discarded uint64
	BitErrors uint64
	Bits      int64 // bits of transmitted packets
	BusyTime  Time  // sum of transmission durations
}

// NominalDelay returns the fixed propagation delay of ch, zero for a direct
// connection and for channels without one.
func NominalDelay(ch Channel) Time {
	switch c := ch.(type) {
	case *DelayChannel:
		return c.Delay
	case *TransmissionChannel:
		return c.Delay
	case interface{ NominalDelay() Time }:
		return c.NominalDelay()
	}
	return 0
}

// IdealChannel has zero delay and zero duration; it is equivalent to a direct
// connection.
type IdealChannel struct{}

func (*IdealChannel) ProcessMessage(Message, Time, *rand.Rand) TransmissionResult {
	return TransmissionResult{}
}

func (*IdealChannel) IsTransmissionChannel() bool { return false }
func (*IdealChannel) Clone() Channel              { return &IdealChannel{} }

// DelayChannel adds a fixed propagation delay. Messages sent while Disabled
// are discarded.
type DelayChannel struct {
	Delay    Time
	Disabled bool
}

func (c *DelayChannel) ProcessMessage(Message, Time, *rand.Rand) TransmissionResult {
	if c.Disabled {
		return TransmissionResult{Discard: true}
	}
	return TransmissionResult{Delay: c.Delay}
}

func (c *DelayChannel) IsTransmissionChannel() bool { return false }

func (c *DelayChannel) Clone() Channel {
	cp := *c
	return &cp
}

// Validate rejects negative delays.
func (c *DelayChannel) Validate() error {
	if c.Delay < 0 {
		return fmt.Errorf("delay channel: negative delay %s", c.Delay)
	}
	return nil
}

// TransmissionChannel models a link with a data rate, a propagation delay
// with optional uniform jitter, and bit and packet error rates.
type TransmissionChannel struct {
	Delay    Time
	Datarate float64 // bits per second, 0 means infinite
	BER      float64 // bit error rate
	PER      float64 // packet error rate
	Jitter   Time    // propagation jitter, uniform in [0, Jitter)
	Disabled bool
}

func (c *TransmissionChannel) IsTransmissionChannel() bool { return true }

func (c *TransmissionChannel) Clone() Channel {
	cp := *c
	return &cp
}

// Validate checks parameter ranges.
func (c *TransmissionChannel) Validate() error {
	switch {
	case c.Delay < 0:
		return fmt.Errorf("transmission channel: negative delay %s", c.Delay)
	case c.Jitter < 0:
		return fmt.Errorf("transmission channel: negative jitter %s", c.Jitter)
	case c.Datarate < 0 || math.IsNaN(c.Datarate):
		return fmt.Errorf("transmission channel: invalid datarate %g", c.Datarate)
	case c.BER < 0 || c.BER > 1 || math.IsNaN(c.BER):
		return fmt.Errorf("transmission channel: BER %g outside [0,1]", c.BER)
	case c.PER < 0 || c.PER > 1 || math.IsNaN(c.PER):
		return fmt.Errorf("transmission channel: PER %g outside [0,1]", c.PER)
	}
	return nil
}

// TransmissionDuration returns the time needed to put bits on the link.
func (c *TransmissionChannel) TransmissionDuration(bits int64) Time {
	if c.Datarate <= 0 || bits <= 0 {
		return 0
	}
	return FromSeconds(float64(bits) / c.Datarate)
}

func (c *TransmissionChannel) ProcessMessage(msg Message, start Time, rng *rand.Rand) TransmissionResult {
	if c.Disabled {
		return TransmissionResult{Discard: true}
	}
	res := TransmissionResult{Delay: c.Delay}
	if c.Jitter > 0 {
		res.Delay += Time(rng.Int63n(int64(c.Jitter)))
	}
	p, ok := AsPacket(msg)
	if !ok {
		return res
	}
	res.Duration = c.TransmissionDuration(p.bitLength)
	if c.BER > 0 || c.PER > 0 {
		intact := math.Pow(1-c.BER, float64(p.bitLength)) * (1 - c.PER)
		if rng.Float64() >= intact {
			p.bitError = true
		}
	}
	return res
}
