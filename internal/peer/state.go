package peer

import (
	"fmt"
)

// State is the protocol state of a link.
type State int32

const (
	StateIdle State = iota
	StateHandshaking
	StateConnected
	StateDisconnected
	StateClosed
)

var stateNames = [...]string{
	StateIdle:         "idle",
	StateHandshaking:  "handshaking",
	StateConnected:    "connected",
	StateDisconnected: "disconnected",
	StateClosed:       "closed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

func parseState(name string) State {
	for s, n := range stateNames {
		if n == name {
			return State(s)
		}
	}
	return StateIdle
}

// State machine events.
const (
	eventTransportUp       = "transport_up"
	eventPong              = "pong"
	eventTransportDown     = "transport_down"
	eventTransportRestored = "transport_restored"
	eventClose             = "close"
)
