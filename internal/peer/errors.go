package peer

import "errors"

var (
	// ErrClosed is returned by operations on a closed link.
	ErrClosed = errors.New("peer: link closed")
	// ErrNegotiationUnsupported is returned when the transport has no signaling surface.
	ErrNegotiationUnsupported = errors.New("peer: transport does not support negotiation")
	// ErrInvalidConfig is returned by NewLink for inconsistent sizing.
	ErrInvalidConfig = errors.New("peer: invalid link config")
)
