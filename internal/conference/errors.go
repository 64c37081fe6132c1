package conference

import "errors"

var (
	// ErrTableFull is returned by Add when every peer slot is taken.
	ErrTableFull = errors.New("conference: peer table full")
	// ErrDuplicatePeer is returned by Add for an id already in the table.
	ErrDuplicatePeer = errors.New("conference: duplicate peer")
	// ErrPeerNotFound is returned for an id not in the table.
	ErrPeerNotFound = errors.New("conference: peer not found")
)
