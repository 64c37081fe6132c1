package transport

import (
	"sync"
)

// Endpoint is one side of an in-memory datagram pipe. Delivery is
// synchronous: Send invokes the remote OnReceive before returning.
type Endpoint struct {
	mu        sync.Mutex
	remote    *Endpoint
	events    Events
	connected bool
	closed    bool
	filter    func(data []byte) bool
}

// Pipe returns two connected endpoints. Neither reports Connected until Up.
func Pipe() (*Endpoint, *Endpoint) {
	a, b := &Endpoint{}, &Endpoint{}
	a.remote, b.remote = b, a
	return a, b
}

// Attach sets the event sink.
func (e *Endpoint) Attach(events Events) {
	e.mu.Lock()
	e.events = events
	e.mu.Unlock()
}

// SetFilter installs a predicate on outbound datagrams; false drops the datagram.
func (e *Endpoint) SetFilter(filter func(data []byte) bool) {
	e.mu.Lock()
	e.filter = filter
	e.mu.Unlock()
}

// Up marks both sides connected, then notifies them.
func (e *Endpoint) Up() {
	e.transition(true, StateConnected)
}

// Down marks both sides disconnected, then notifies them.
func (e *Endpoint) Down() {
	e.transition(false, StateDisconnected)
}

// Send delivers a copy of data to the remote endpoint.
func (e *Endpoint) Send(data []byte) error {
	e.mu.Lock()
	closed, connected, filter := e.closed, e.connected, e.filter
	e.mu.Unlock()

	switch {
	case closed:
		return ErrClosed
	case !connected:
		return ErrNotConnected
	case filter != nil && !filter(data):
		return nil
	}

	e.remote.deliver(append([]byte(nil), data...))
	return nil
}

// Close stops delivery in both directions for this endpoint.
func (e *Endpoint) Close() error {
	e.mu.Lock()
	e.closed = true
	e.connected = false
	e.mu.Unlock()
	return nil
}

func (e *Endpoint) deliver(data []byte) {
	e.mu.Lock()
	events, ok := e.events, !e.closed && e.connected
	e.mu.Unlock()

	if ok && events != nil {
		events.OnReceive(data)
	}
}

func (e *Endpoint) transition(connected bool, state State) {
	sides := []*Endpoint{e, e.remote}
	notify := make([]Events, 0, len(sides))
	for _, side := range sides {
		side.mu.Lock()
		if !side.closed {
			side.connected = connected
			if side.events != nil {
				notify = append(notify, side.events)
			}
		}
		side.mu.Unlock()
	}

	for _, events := range notify {
		events.OnStateChanged(state)
	}
}
