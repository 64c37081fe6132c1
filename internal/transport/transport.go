// Package transport provides the datagram channels peer links run over.
package transport

import (
	"errors"
	"fmt"
)

// State is the connectivity of a transport.
type State int

const (
	StateConnected State = iota
	StateDisconnected
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrNotConnected is returned by Send before the channel is up.
	ErrNotConnected = errors.New("transport: not connected")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("transport: closed")
)

// Events receives notifications from a transport. OnReceive data is only
// valid for the duration of the call.
type Events interface {
	OnStateChanged(state State)
	OnCandidate(candidate string)
	OnGatheringDone()
	OnReceive(data []byte)
}
