package sim

import (
	"fmt"
	"sync/atomic"
)

// Message is anything the kernel can schedule and route. Implementations
// embed Msg (or Packet).
type Message interface {
	msg() *Msg
}

// Duplicator is implemented by message types that carry fields of their own.
// Duplicate must return a value copy whose embedded Msg or Packet comes from
// Msg.Dup or Packet.Dup.
type Duplicator interface {
	Duplicate() Message
}

var lastMsgID atomic.Uint64

// Msg is the base message. The zero value is usable; it receives an id the
// first time it is scheduled.
type Msg struct {
	name     string
	kind     int
	priority int
	id       uint64
	treeID   uint64

	created   Time
	sendTime  Time
	timestamp Time

	arrivalTime   Time
	senderModule  ComponentID
	senderGate    *Gate
	arrivalModule ComponentID
	arrivalGate   *Gate

	controlInfo  any
	encapsulated Message

	// event is the pending event carrying this message, if any.
	event *Event
}

// NewMsg returns a message created at the given time.
func NewMsg(name string, kind int, created Time) *Msg {
	m := &Msg{}
	m.Init(name, kind, created)
	return m
}

// Init sets the identity fields of an embedded Msg.
func (m *Msg) Init(name string, kind int, created Time) {
	*m = Msg{name: name, kind: kind, created: created, timestamp: created}
	m.ensureID()
}

func (m *Msg) msg() *Msg { return m }

// MsgOf returns the Msg embedded in any message type.
func MsgOf(m Message) *Msg {
	if m == nil {
		return nil
	}
	return m.msg()
}

func (m *Msg) ensureID() {
	if m.id == 0 {
		m.id = lastMsgID.Add(1)
	}
	if m.treeID == 0 {
		m.treeID = m.id
	}
}

func (m *Msg) describe() string {
	return fmt.Sprintf("%q (id=%d, kind=%d)", m.name, m.id, m.kind)
}

// Name returns the message name.
func (m *Msg) Name() string { return m.name }

// SetName renames the message.
func (m *Msg) SetName(name string) { m.name = name }

// Kind returns the model-defined kind tag.
func (m *Msg) Kind() int { return m.kind }

// SetKind sets the kind tag.
func (m *Msg) SetKind(kind int) { m.kind = kind }

// Priority returns the scheduling priority; lower values dispatch first
// among events at the same time.
func (m *Msg) Priority() int { return m.priority }

// SetPriority sets the scheduling priority. It takes effect the next time
// the message is scheduled.
func (m *Msg) SetPriority(p int) { m.priority = p }

// ID is unique per message instance.
func (m *Msg) ID() uint64 { return m.id }

// TreeID is shared by a message and all of its duplicates.
func (m *Msg) TreeID() uint64 { return m.treeID }

func (m *Msg) CreationTime() Time { return m.created }
func (m *Msg) SendTime() Time     { return m.sendTime }
func (m *Msg) ArrivalTime() Time  { return m.arrivalTime }

// Timestamp is a model-controlled time field, initialized to the creation time.
func (m *Msg) Timestamp() Time { return m.timestamp }

// SetTimestamp sets the model-controlled time field.
func (m *Msg) SetTimestamp(t Time) { m.timestamp = t }

// SenderModule returns the id of the module that last sent or scheduled the message.
func (m *Msg) SenderModule() ComponentID { return m.senderModule }

// SenderGate returns the gate the message was last sent from, or nil.
func (m *Msg) SenderGate() *Gate { return m.senderGate }

// ArrivalModule returns the id of the module the message is (or was last) delivered to.
func (m *Msg) ArrivalModule() ComponentID { return m.arrivalModule }

// ArrivalGate returns the gate the message arrives on, nil for self-messages.
func (m *Msg) ArrivalGate() *Gate { return m.arrivalGate }

// ArrivedOn reports whether the message arrived on the named gate.
func (m *Msg) ArrivedOn(gateName string) bool {
	return m.arrivalGate != nil && m.arrivalGate.name == gateName
}

// IsSelfMessage reports whether the message was scheduled rather than sent
// through a gate.
func (m *Msg) IsSelfMessage() bool { return m.arrivalGate == nil }

// IsScheduled reports whether the message sits in the future event list.
func (m *Msg) IsScheduled() bool { return m.event != nil && m.event.Pending() }

// ControlInfo returns the attached inter-layer control information.
func (m *Msg) ControlInfo() any { return m.controlInfo }

// SetControlInfo attaches control information. It is not copied by Dup.
func (m *Msg) SetControlInfo(ci any) { m.controlInfo = ci }

// RemoveControlInfo detaches and returns the control information.
func (m *Msg) RemoveControlInfo() any {
	ci := m.controlInfo
	m.controlInfo = nil
	return ci
}

// Encapsulated returns the inner message without detaching it. The result
// may be shared with duplicates and must be treated as read-only.
func (m *Msg) Encapsulated() Message { return m.encapsulated }

// Dup returns a value copy with a fresh id and the same tree id. The
// encapsulated message is shared, not copied; control info and scheduling
// state are not carried over.
func (m *Msg) Dup() *Msg {
	c := *m
	c.id = 0
	c.event = nil
	c.controlInfo = nil
	if c.treeID == 0 {
		m.ensureID()
		c.treeID = m.treeID
	}
	c.ensureID()
	return &c
}

// Encapsulate makes inner the sole encapsulated message of m.
func (m *Msg) Encapsulate(inner Message) error {
	if inner == nil {
		return fmt.Errorf("encapsulate into %s: nil message", m.describe())
	}
	h := inner.msg()
	if h == m {
		return fmt.Errorf("encapsulate %s into itself", m.describe())
	}
	if m.encapsulated != nil {
		return fmt.Errorf("%s: %w", m.describe(), ErrAlreadyEncapsulated)
	}
	if h.IsScheduled() {
		return fmt.Errorf("encapsulate %s: %w", h.describe(), ErrMessageScheduled)
	}
	m.encapsulated = inner
	return nil
}

// Decapsulate detaches the inner message and returns a fresh duplicate of it,
// so the caller may mutate the result without affecting any other holder of
// the shared reference. It returns nil, nil when nothing is encapsulated.
func (m *Msg) Decapsulate() (Message, error) {
	if m.encapsulated == nil {
		return nil, nil
	}
	inner, err := Duplicate(m.encapsulated)
	if err != nil {
		return nil, err
	}
	m.encapsulated = nil
	return inner, nil
}

// Packet is a Message with a length, a transmission duration and a
// bit-error flag.
type Packet struct {
	Msg
	bitLength int64
	duration  Time
	bitError  bool
}

// NewPacket returns a packet of byteLength bytes created at the given time.
func NewPacket(name string, kind int, byteLength int64, created Time) *Packet {
	p := &Packet{}
	p.Msg.Init(name, kind, created)
	p.bitLength = byteLength * 8
	return p
}

func (p *Packet) pkt() *Packet { return p }

type packetCarrier interface {
	pkt() *Packet
}

// AsPacket returns the Packet embedded in m, if m is a packet type.
func AsPacket(m Message) (*Packet, bool) {
	pc, ok := m.(packetCarrier)
	if !ok {
		return nil, false
	}
	return pc.pkt(), true
}

func (p *Packet) BitLength() int64  { return p.bitLength }
func (p *Packet) ByteLength() int64 { return (p.bitLength + 7) / 8 }

// SetBitLength sets the length; negative values are clamped to zero.
func (p *Packet) SetBitLength(bits int64) { p.bitLength = max(bits, 0) }

func (p *Packet) SetByteLength(bytes int64) { p.SetBitLength(bytes * 8) }

// AddBitLength grows (or with a negative delta shrinks) the packet.
func (p *Packet) AddBitLength(delta int64) { p.SetBitLength(p.bitLength + delta) }

// Duration returns the transmission duration set by the last channel, zero
// after ideal or delay channels.
func (p *Packet) Duration() Time { return p.duration }

func (p *Packet) HasBitError() bool     { return p.bitError }
func (p *Packet) SetBitError(flag bool) { p.bitError = flag }

// Dup is Msg.Dup for packets.
func (p *Packet) Dup() *Packet {
	c := *p
	c.Msg = *p.Msg.Dup()
	return &c
}

// Encapsulate makes inner the encapsulated message and, when inner is a
// packet, adds its length to p.
func (p *Packet) Encapsulate(inner Message) error {
	if err := p.Msg.Encapsulate(inner); err != nil {
		return err
	}
	if ip, ok := AsPacket(inner); ok {
		p.AddBitLength(ip.bitLength)
	}
	return nil
}

// Decapsulate returns a duplicate of the inner message, subtracts its length
// from p and hands a bit error on p down to the inner packet.
func (p *Packet) Decapsulate() (Message, error) {
	inner, err := p.Msg.Decapsulate()
	if err != nil || inner == nil {
		return inner, err
	}
	if ip, ok := AsPacket(inner); ok {
		p.AddBitLength(-ip.bitLength)
		if p.bitError {
			ip.bitError = true
		}
	}
	return inner, nil
}

// Duplicate copies m. Msg and Packet are copied directly; any other type
// must implement Duplicator or the call fails with ErrNotImplemented.
func Duplicate(m Message) (Message, error) {
	if m == nil {
		return nil, fmt.Errorf("duplicate: nil message")
	}
	if d, ok := m.(Duplicator); ok {
		c := d.Duplicate()
		if c == nil || c.msg() == m.msg() {
			return nil, fmt.Errorf("duplicate %T: Duplicate returned the original or nil", m)
		}
		return c, nil
	}
	switch v := m.(type) {
	case *Msg:
		return v.Dup(), nil
	case *Packet:
		return v.Dup(), nil
	}
	return nil, fmt.Errorf("duplicate %T: %w", m, ErrNotImplemented)
}
