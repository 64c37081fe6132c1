// Package peer implements the per-peer protocol link: handshake, framing,
// receive buffering and alignment of the remote sample clock to local playback.
package peer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"github.com/Raikerian/go-voice-mesh/internal/codec"
	"github.com/Raikerian/go-voice-mesh/internal/jitter"
	"github.com/Raikerian/go-voice-mesh/internal/metrics"
	"github.com/Raikerian/go-voice-mesh/internal/transport"
	"github.com/Raikerian/go-voice-mesh/internal/wire"
	"github.com/Raikerian/go-voice-mesh/pkg/util"
)

// Transport is the datagram channel a link sends on. Send must not retain data.
type Transport interface {
	Send(data []byte) error
	Close() error
}

// Negotiator is implemented by transports that exchange descriptions and
// candidates through signaling.
type Negotiator interface {
	LocalDescription() (string, error)
	SetRemoteDescription(description string) error
	AddRemoteCandidates(candidates []string) error
}

// Observer receives link events destined for the signaling layer.
type Observer interface {
	LinkStateChanged(id string, from, to State)
	CandidatesGathered(id string, candidates []string)
}

// TransportFactory creates the transport for a link, delivering events to it.
type TransportFactory func(events transport.Events) (Transport, error)

// CodecFactory creates the codec instance owned by a link.
type CodecFactory func() (codec.Codec, error)

// Params holds the dependencies of NewLink.
type Params struct {
	ID           string
	Config       Config
	Logger       *zap.Logger
	Metrics      *metrics.Metrics
	NewCodec     CodecFactory
	NewTransport TransportFactory
	Observer     Observer // optional
}

// Link is the protocol endpoint for one remote peer. OnReceive and the
// transport callbacks run in the network context; Send and Read run in the
// audio context and never block on the network.
type Link struct {
	id       string
	cfg      Config
	logger   *zap.Logger
	metrics  *metrics.Peer
	observer Observer

	codec     codec.Codec
	transport Transport
	fsm       *fsm.FSM
	state     atomic.Int32
	epoch     time.Time
	grace     *util.Debouncer

	// mu guards the receive buffer and clock alignment.
	mu         sync.Mutex
	buffer     *jitter.Buffer
	offset     int64
	offsetSet  bool
	emptyReads int

	// seqMu guards inbound sequence tracking.
	seqMu   sync.Mutex
	lastSeq uint32
	seqSeen bool

	sendSeq atomic.Uint32
	sendBuf []byte // audio context only
	gain    atomic.Uint32

	pingSentAt atomic.Int64
	rtt        atomic.Int64

	received   atomic.Uint64
	lost       atomic.Uint64
	duplicates atomic.Uint64
	malformed  atomic.Uint64
	resyncs    atomic.Uint64

	ctlMu      sync.Mutex
	pingStop   chan struct{}
	candidates []string
}

// NewLink builds a link in the Idle state. Codec or transport construction
// failures are returned and the link is not created.
func NewLink(params Params) (*Link, error) {
	if err := params.Config.validate(); err != nil {
		return nil, err
	}

	buffer, err := jitter.New(params.Config.Format.Channels, params.Config.Capacity)
	if err != nil {
		return nil, fmt.Errorf("failed to create jitter buffer: %w", err)
	}

	c, err := params.NewCodec()
	if err != nil {
		return nil, fmt.Errorf("failed to create codec: %w", err)
	}

	l := &Link{
		id:       params.ID,
		cfg:      params.Config,
		logger:   params.Logger.With(zap.String("peer_id", params.ID)),
		metrics:  params.Metrics.ForPeer(params.ID),
		observer: params.Observer,
		codec:    c,
		epoch:    time.Now(),
		buffer:   buffer,
		sendBuf:  make([]byte, 0, wire.AudioHeaderSize+4000),
	}
	l.gain.Store(math.Float32bits(1))
	l.grace = util.NewDebouncer(params.Config.DisconnectGrace, l.expireGrace)
	l.fsm = fsm.NewFSM(
		StateIdle.String(),
		fsm.Events{
			{Name: eventTransportUp, Src: []string{StateIdle.String()}, Dst: StateHandshaking.String()},
			{Name: eventPong, Src: []string{StateHandshaking.String()}, Dst: StateConnected.String()},
			{Name: eventTransportDown, Src: []string{StateHandshaking.String(), StateConnected.String()}, Dst: StateDisconnected.String()},
			{Name: eventTransportRestored, Src: []string{StateDisconnected.String()}, Dst: StateConnected.String()},
			{Name: eventClose, Src: []string{
				StateIdle.String(), StateHandshaking.String(), StateConnected.String(), StateDisconnected.String(),
			}, Dst: StateClosed.String()},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) { l.enterState(e) },
		},
	)

	t, err := params.NewTransport(l)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}
	l.transport = t

	return l, nil
}

// ID is the remote peer identifier.
func (l *Link) ID() string { return l.id }

// State is the current protocol state.
func (l *Link) State() State { return State(l.state.Load()) }

// Gain is the playback gain applied by the mixer.
func (l *Link) Gain() float32 { return math.Float32frombits(l.gain.Load()) }

// SetGain changes the playback gain.
func (l *Link) SetGain(gain float32) { l.gain.Store(math.Float32bits(gain)) }

// LocalDescription returns the transport's local description.
func (l *Link) LocalDescription() (string, error) {
	n, ok := l.transport.(Negotiator)
	if !ok {
		return "", ErrNegotiationUnsupported
	}
	return n.LocalDescription()
}

// SetRemoteDescription hands the remote description to the transport.
func (l *Link) SetRemoteDescription(description string) error {
	if l.State() == StateClosed {
		return ErrClosed
	}
	n, ok := l.transport.(Negotiator)
	if !ok {
		return ErrNegotiationUnsupported
	}
	return n.SetRemoteDescription(description)
}

// AddRemoteCandidates hands remote candidates to the transport.
func (l *Link) AddRemoteCandidates(candidates []string) error {
	if l.State() == StateClosed {
		return ErrClosed
	}
	n, ok := l.transport.(Negotiator)
	if !ok {
		return ErrNegotiationUnsupported
	}
	return n.AddRemoteCandidates(candidates)
}

// Send encodes one interleaved frame captured at localSampleID and transmits
// it. It is a no-op unless the link is Connected. Frames the codec cannot
// encode are dropped.
func (l *Link) Send(pcm []float32, localSampleID int64) {
	if l.State() != StateConnected {
		return
	}

	payload := l.codec.Encode(pcm)
	if len(payload) == 0 {
		l.metrics.DroppedEncode.Inc()
		return
	}

	msg := wire.Audio(l.nextSeq(), localSampleID, l.cfg.StreamID, uint8(l.cfg.Format.Channels), payload)
	buf, err := msg.Append(l.sendBuf[:0])
	if err != nil {
		l.metrics.DroppedEncode.Inc()
		l.logger.Debug("Dropping unencodable audio frame", zap.Error(err))
		return
	}
	l.sendBuf = buf

	if err := l.transport.Send(buf); err != nil {
		l.metrics.DroppedTransport.Inc()
		l.logger.Debug("Failed to send audio frame", zap.Error(err))
		return
	}
	l.metrics.FramesSent.Inc()
}

// Read adds count frames of this peer's audio, aligned to the local playback
// id local and scaled by gain, into out. The contract is additive: out is
// never overwritten. It returns the number of frames that carried real
// samples.
func (l *Link) Read(out [][]float32, count int, local int64, gain float32) int {
	state := l.State()
	if state != StateConnected && state != StateDisconnected {
		return 0
	}

	var (
		anchored bool
		resynced bool
		offset   int64
		n        int
	)

	l.mu.Lock()
	if !l.offsetSet {
		held := l.buffer.Len()
		if held == 0 || held < l.cfg.Headroom {
			l.mu.Unlock()
			return 0
		}
		l.offset = l.buffer.Base() + int64(held-l.cfg.Headroom) - local
		l.offsetSet = true
		l.emptyReads = 0
		anchored = true
	}
	offset = l.offset

	n = l.buffer.Read(out, count, local+offset, gain)
	if n > 0 {
		l.emptyReads = 0
	} else if state == StateConnected {
		// While Disconnected the grace timer owns the reset.
		l.emptyReads++
		if l.emptyReads >= l.cfg.MaxZeroReads {
			l.resetAlignmentLocked()
			resynced = true
		}
	}
	buffered := l.buffer.Len()
	l.mu.Unlock()

	l.metrics.BufferedSamples.Set(float64(buffered))
	if anchored {
		l.logger.Debug("Clock offset established", zap.Int64("offset", offset), zap.Int64("local_sample_id", local))
	}
	if n == 0 {
		l.metrics.EmptyReads.Inc()
	}
	if resynced {
		l.resyncs.Add(1)
		l.metrics.Resyncs.Inc()
		l.logger.Debug("Playback starved, realigning clock", zap.Int("max_zero_reads", l.cfg.MaxZeroReads))
	}

	return n
}

// Close tears down the transport, then releases buffered audio. Further
// calls return nil.
func (l *Link) Close() error {
	if l.State() == StateClosed {
		return nil
	}
	if err := l.fsm.Event(context.Background(), eventClose); err != nil {
		var invalid fsm.InvalidEventError
		if errors.As(err, &invalid) {
			// Lost a race with a concurrent Close.
			return nil
		}
		return fmt.Errorf("failed to close link: %w", err)
	}

	err := l.transport.Close()
	l.grace.Stop()

	l.mu.Lock()
	l.resetAlignmentLocked()
	l.mu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to close transport: %w", err)
	}
	return nil
}

// OnStateChanged implements transport.Events.
func (l *Link) OnStateChanged(state transport.State) {
	l.logger.Debug("Transport state changed", zap.Stringer("transport_state", state), zap.Stringer("state", l.State()))

	switch state {
	case transport.StateConnected:
		switch l.State() {
		case StateIdle:
			l.fire(eventTransportUp)
		case StateDisconnected:
			l.fire(eventTransportRestored)
		}
	case transport.StateDisconnected, transport.StateFailed, transport.StateClosed:
		switch l.State() {
		case StateHandshaking, StateConnected:
			l.fire(eventTransportDown)
		case StateIdle:
			if state == transport.StateFailed {
				l.logger.Warn("Transport failed before connecting")
			}
		}
	}
}

// OnCandidate implements transport.Events.
func (l *Link) OnCandidate(candidate string) {
	l.ctlMu.Lock()
	l.candidates = append(l.candidates, candidate)
	l.ctlMu.Unlock()
}

// OnGatheringDone implements transport.Events.
func (l *Link) OnGatheringDone() {
	l.ctlMu.Lock()
	candidates := l.candidates
	l.candidates = nil
	l.ctlMu.Unlock()

	l.logger.Debug("Candidate gathering finished", zap.Int("candidates", len(candidates)))
	if l.observer != nil {
		l.observer.CandidatesGathered(l.id, candidates)
	}
}

// OnReceive implements transport.Events. Malformed datagrams are dropped
// before any protocol state is touched.
func (l *Link) OnReceive(data []byte) {
	if l.State() == StateClosed {
		return
	}

	msg, err := wire.Parse(data)
	if err != nil {
		l.malformed.Add(1)
		l.metrics.PacketsMalformed.Inc()
		l.logger.Debug("Dropping malformed message", zap.Int("size", len(data)), zap.Error(err))
		return
	}

	l.received.Add(1)
	l.metrics.PacketsReceived.Inc()
	l.trackSequence(msg.Sequence)

	switch msg.Type {
	case wire.TypePing:
		l.sendPong()
	case wire.TypePong:
		l.onPong(msg)
	case wire.TypeAudio:
		l.onAudio(msg)
	}
}

func (l *Link) onPong(msg wire.Message) {
	if sent := l.pingSentAt.Load(); sent > 0 {
		rtt := time.Duration(l.now() - sent)
		l.rtt.Store(int64(rtt))
		l.metrics.RoundTripSeconds.Set(rtt.Seconds())
	}
	if l.State() == StateHandshaking {
		l.logger.Debug("Handshake acknowledged", zap.Int64("remote_timestamp", msg.Timestamp))
		l.fire(eventPong)
	}
}

func (l *Link) onAudio(msg wire.Message) {
	if l.State() != StateConnected {
		return
	}
	channels := l.cfg.Format.Channels
	if int(msg.Channels) != channels {
		l.logger.Debug("Dropping audio with unexpected channel count",
			zap.Uint8("channels", msg.Channels), zap.Int("expected", channels))
		return
	}

	samples := l.codec.Decode(msg.Payload, l.cfg.Format.FrameSize)
	if len(samples) == 0 {
		l.logger.Debug("Failed to decode audio frame", zap.Uint32("sequence", msg.Sequence))
		return
	}

	l.mu.Lock()
	l.buffer.Write(samples, len(samples)/channels, msg.SampleID)
	buffered := l.buffer.Len()
	l.mu.Unlock()

	l.metrics.BufferedSamples.Set(float64(buffered))
}

func (l *Link) trackSequence(seq uint32) {
	l.seqMu.Lock()
	defer l.seqMu.Unlock()

	if l.seqSeen {
		expected := l.lastSeq + 1
		if diff := int32(seq - expected); diff > 0 {
			l.lost.Add(uint64(diff))
			l.metrics.PacketsLost.Add(float64(diff))
			l.logger.Debug("Packet loss detected",
				zap.Uint32("expected", expected), zap.Uint32("sequence", seq), zap.Int32("lost", diff))
		} else if diff < 0 {
			l.duplicates.Add(1)
			l.metrics.PacketsDuplicate.Inc()
			l.logger.Debug("Out of order packet", zap.Uint32("expected", expected), zap.Uint32("sequence", seq))
		}
	}
	l.lastSeq = seq
	l.seqSeen = true
}

func (l *Link) sendPing() {
	buf, _ := wire.Ping(l.nextSeq()).Append(make([]byte, 0, wire.HeaderSize))
	l.pingSentAt.Store(l.now())
	if err := l.transport.Send(buf); err != nil {
		l.logger.Debug("Failed to send ping", zap.Error(err))
	}
}

func (l *Link) sendPong() {
	buf, _ := wire.Pong(l.nextSeq(), l.now()).Append(make([]byte, 0, wire.PongSize))
	if err := l.transport.Send(buf); err != nil {
		l.logger.Debug("Failed to send pong", zap.Error(err))
	}
}

func (l *Link) nextSeq() uint32 {
	return l.sendSeq.Add(1) - 1
}

// now is monotonic nanoseconds since the link was created, never zero.
func (l *Link) now() int64 {
	return int64(time.Since(l.epoch)) + 1
}

func (l *Link) fire(event string) {
	if err := l.fsm.Event(context.Background(), event); err != nil {
		l.logger.Debug("Ignoring link event", zap.String("event", event), zap.Error(err))
	}
}

func (l *Link) enterState(e *fsm.Event) {
	from, to := parseState(e.Src), parseState(e.Dst)
	l.state.Store(int32(to))
	l.metrics.Transition(to.String())

	switch to {
	case StateHandshaking:
		l.startPinging()
	case StateConnected:
		l.stopPinging()
		l.grace.Cancel()
	case StateDisconnected:
		l.stopPinging()
		l.grace.Arm()
	case StateClosed:
		l.stopPinging()
		l.grace.Cancel()
	}

	l.logger.Info("Link state changed", zap.Stringer("from", from), zap.Stringer("to", to))
	if l.observer != nil {
		l.observer.LinkStateChanged(l.id, from, to)
	}
}

func (l *Link) startPinging() {
	stop := make(chan struct{})

	l.ctlMu.Lock()
	if l.pingStop != nil {
		close(l.pingStop)
	}
	l.pingStop = stop
	l.ctlMu.Unlock()

	go func() {
		ticker := time.NewTicker(l.cfg.PingInterval)
		defer ticker.Stop()
		for {
			if l.State() != StateHandshaking {
				return
			}
			l.sendPing()
			select {
			case <-stop:
				return
			case <-ticker.C:
			}
		}
	}()
}

func (l *Link) stopPinging() {
	l.ctlMu.Lock()
	defer l.ctlMu.Unlock()
	if l.pingStop != nil {
		close(l.pingStop)
		l.pingStop = nil
	}
}

func (l *Link) expireGrace() {
	if l.State() != StateDisconnected {
		return
	}

	l.mu.Lock()
	l.resetAlignmentLocked()
	l.mu.Unlock()

	l.metrics.BufferedSamples.Set(0)
	l.logger.Info("Disconnect grace period expired, dropped buffered audio", zap.Duration("grace", l.cfg.DisconnectGrace))
}

func (l *Link) resetAlignmentLocked() {
	l.buffer.Reset()
	l.offset = 0
	l.offsetSet = false
	l.emptyReads = 0
}
