package sim

import "container/heap"

// eventHeap implements heap.Interface with deterministic ordering.
// Order by: time → priority → scheduling sequence.
type eventHeap []*Event

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	ei, ej := h[i], h[j]
	if ei.time != ej.time {
		return ei.time < ej.time
	}
	if ei.priority != ej.priority {
		return ei.priority < ej.priority
	}
	return ei.seq < ej.seq
}

func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *eventHeap) Push(x any) {
	e := x.(*Event)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// FutureEventList is the time-ordered queue of pending events.
type FutureEventList struct {
	events eventHeap
}

// Len returns the number of pending events.
func (f *FutureEventList) Len() int { return len(f.events) }

// Insert adds an event.
func (f *FutureEventList) Insert(e *Event) {
	heap.Push(&f.events, e)
}

// PopNext removes and returns the earliest event, or nil when empty.
func (f *FutureEventList) PopNext() *Event {
	if len(f.events) == 0 {
		return nil
	}
	return heap.Pop(&f.events).(*Event)
}

// Peek returns the earliest event without removing it.
func (f *FutureEventList) Peek() *Event {
	if len(f.events) == 0 {
		return nil
	}
	return f.events[0]
}

// Remove takes e out of the list. It reports false when e is not pending
// in this list.
func (f *FutureEventList) Remove(e *Event) bool {
	if e == nil || e.index < 0 || e.index >= len(f.events) || f.events[e.index] != e {
		return false
	}
	heap.Remove(&f.events, e.index)
	return true
}

// each calls fn for every pending event in heap order (not time order).
func (f *FutureEventList) each(fn func(*Event)) {
	for _, e := range f.events {
		fn(e)
	}
}

// Clear drops every pending event.
func (f *FutureEventList) Clear() {
	for _, e := range f.events {
		e.index = -1
	}
	f.events = nil
}
