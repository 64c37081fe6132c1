package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/pion/ice/v2"
	"github.com/pion/stun"
	"go.uber.org/zap"
)

const maxDatagram = 1 << 16

// ErrInvalidDescription is returned for a remote description not of the form ufrag:pwd.
var ErrInvalidDescription = errors.New("transport: invalid description")

// ICEConfig configures an ICE transport.
type ICEConfig struct {
	STUNServers []string
	// Controlling selects the ICE role. Exactly one side of a pair must control.
	Controlling bool
}

// ICE is a NAT-traversed datagram channel backed by a pion ICE agent.
type ICE struct {
	logger      *zap.Logger
	agent       *ice.Agent
	events      Events
	controlling bool

	gatherOnce sync.Once
	ctx        context.Context
	cancel     context.CancelFunc

	mu       sync.Mutex
	conn     *ice.Conn
	reported State
	ready    bool
	closed   bool
}

// NewICE creates an agent and wires its callbacks to events.
func NewICE(cfg ICEConfig, events Events, logger *zap.Logger) (*ICE, error) {
	urls := make([]*stun.URI, 0, len(cfg.STUNServers))
	for _, raw := range cfg.STUNServers {
		uri, err := stun.ParseURI(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid stun server %q: %w", raw, err)
		}
		urls = append(urls, uri)
	}

	agent, err := ice.NewAgent(&ice.AgentConfig{
		Urls:         urls,
		NetworkTypes: []ice.NetworkType{ice.NetworkTypeUDP4, ice.NetworkTypeUDP6},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ice agent: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &ICE{
		logger:      logger,
		agent:       agent,
		events:      events,
		controlling: cfg.Controlling,
		ctx:         ctx,
		cancel:      cancel,
		reported:    StateDisconnected,
	}

	if err := agent.OnCandidate(t.onCandidate); err != nil {
		cancel()
		_ = agent.Close()
		return nil, fmt.Errorf("failed to register candidate handler: %w", err)
	}
	if err := agent.OnConnectionStateChange(t.onConnectionState); err != nil {
		cancel()
		_ = agent.Close()
		return nil, fmt.Errorf("failed to register state handler: %w", err)
	}

	return t, nil
}

// LocalDescription returns the local credentials as ufrag:pwd.
func (t *ICE) LocalDescription() (string, error) {
	ufrag, pwd, err := t.agent.GetLocalUserCredentials()
	if err != nil {
		return "", err
	}
	return ufrag + ":" + pwd, nil
}

// SetRemoteDescription starts candidate gathering and connectivity checks
// against the remote credentials. Only the first call has an effect.
func (t *ICE) SetRemoteDescription(description string) error {
	ufrag, pwd, ok := strings.Cut(description, ":")
	if !ok || ufrag == "" || pwd == "" {
		return fmt.Errorf("%w: %q", ErrInvalidDescription, description)
	}

	var err error
	t.gatherOnce.Do(func() {
		if err = t.agent.GatherCandidates(); err != nil {
			err = fmt.Errorf("failed to gather candidates: %w", err)
			return
		}
		go t.connect(ufrag, pwd)
	})
	return err
}

// AddRemoteCandidates adds marshalled remote candidates. Unparseable entries
// are logged and skipped.
func (t *ICE) AddRemoteCandidates(candidates []string) error {
	for _, raw := range candidates {
		c, err := ice.UnmarshalCandidate(raw)
		if err != nil {
			t.logger.Debug("Skipping invalid remote candidate", zap.String("candidate", raw), zap.Error(err))
			continue
		}
		if err := t.agent.AddRemoteCandidate(c); err != nil {
			return fmt.Errorf("failed to add remote candidate: %w", err)
		}
	}
	return nil
}

// Send writes one datagram.
func (t *ICE) Send(data []byte) error {
	t.mu.Lock()
	conn, closed := t.conn, t.closed
	t.mu.Unlock()

	switch {
	case closed:
		return ErrClosed
	case conn == nil:
		return ErrNotConnected
	}

	_, err := conn.Write(data)
	return err
}

// Close tears down the agent. No events are delivered afterwards.
func (t *ICE) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	t.cancel()
	return t.agent.Close()
}

func (t *ICE) connect(ufrag, pwd string) {
	var (
		conn *ice.Conn
		err  error
	)
	if t.controlling {
		conn, err = t.agent.Dial(t.ctx, ufrag, pwd)
	} else {
		conn, err = t.agent.Accept(t.ctx, ufrag, pwd)
	}
	if err != nil {
		if t.ctx.Err() == nil {
			t.logger.Warn("ICE connectivity checks failed", zap.Error(err))
			t.report(StateFailed)
		}
		return
	}

	t.mu.Lock()
	t.conn = conn
	t.ready = true
	t.mu.Unlock()

	t.report(StateConnected)
	t.readLoop(conn)
}

func (t *ICE) readLoop(conn *ice.Conn) {
	buf := make([]byte, maxDatagram)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			if t.ctx.Err() == nil {
				t.logger.Debug("ICE read loop ended", zap.Error(err))
			}
			return
		}
		if t.isClosed() {
			return
		}
		t.events.OnReceive(buf[:n])
	}
}

func (t *ICE) onCandidate(c ice.Candidate) {
	if t.isClosed() {
		return
	}
	if c == nil {
		t.events.OnGatheringDone()
		return
	}
	t.events.OnCandidate(c.Marshal())
}

func (t *ICE) onConnectionState(state ice.ConnectionState) {
	t.logger.Debug("ICE connection state changed", zap.String("state", state.String()))

	switch state {
	case ice.ConnectionStateConnected, ice.ConnectionStateCompleted:
		t.mu.Lock()
		ready := t.ready
		t.mu.Unlock()
		// The first Connected is reported once the conn exists.
		if ready {
			t.report(StateConnected)
		}
	case ice.ConnectionStateDisconnected:
		t.report(StateDisconnected)
	case ice.ConnectionStateFailed:
		t.report(StateFailed)
	}
}

// report forwards a state change, suppressing repeats and anything after Close.
func (t *ICE) report(state State) {
	t.mu.Lock()
	if t.closed || t.reported == state {
		t.mu.Unlock()
		return
	}
	t.reported = state
	t.mu.Unlock()

	t.events.OnStateChanged(state)
}

func (t *ICE) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
