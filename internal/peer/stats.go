package peer

import (
	"time"
)

// Stats is a point-in-time snapshot of a link.
type Stats struct {
	State           State
	LastSequence    uint32
	SendSequence    uint32
	Received        uint64
	Lost            uint64
	Duplicates      uint64
	Malformed       uint64
	Resyncs         uint64
	BufferedSamples int
	BaseSampleID    int64
	Offset          int64
	OffsetSet       bool
	RoundTrip       time.Duration
}

// Stats returns a snapshot of the link's counters and alignment.
func (l *Link) Stats() Stats {
	s := Stats{
		State:        l.State(),
		SendSequence: l.sendSeq.Load(),
		Received:     l.received.Load(),
		Lost:         l.lost.Load(),
		Duplicates:   l.duplicates.Load(),
		Malformed:    l.malformed.Load(),
		Resyncs:      l.resyncs.Load(),
		RoundTrip:    time.Duration(l.rtt.Load()),
	}

	l.seqMu.Lock()
	s.LastSequence = l.lastSeq
	l.seqMu.Unlock()

	l.mu.Lock()
	s.BufferedSamples = l.buffer.Len()
	s.BaseSampleID = l.buffer.Base()
	s.Offset = l.offset
	s.OffsetSet = l.offsetSet
	l.mu.Unlock()

	return s
}
