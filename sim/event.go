package sim

// EventFunc is a closure payload. A non-nil error aborts the run.
type EventFunc func() error

// Event is a scheduled dispatch: a payload delivered to a target component at
// an absolute time. The *Event returned by the scheduling calls is the handle
// passed to Cancel.
type Event struct {
	time     Time
	priority int
	seq      uint64
	target   ComponentID
	msg      Message
	fn       EventFunc

	// index is the heap position while pending, -1 once popped or cancelled.
	index int
}

// Time returns the absolute dispatch time.
func (e *Event) Time() Time { return e.time }

// Priority returns the tie-break priority (lower first).
func (e *Event) Priority() int { return e.priority }

// Seq returns the scheduling sequence number.
func (e *Event) Seq() uint64 { return e.seq }

// Target returns the id of the component the event is delivered to.
func (e *Event) Target() ComponentID { return e.target }

// Message returns the message payload, or nil for closure events.
func (e *Event) Message() Message { return e.msg }

// Pending reports whether the event is still in the future event list.
func (e *Event) Pending() bool { return e.index >= 0 }
