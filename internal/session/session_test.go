package session_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Raikerian/go-voice-mesh/internal/codec"
	"github.com/Raikerian/go-voice-mesh/internal/conference"
	"github.com/Raikerian/go-voice-mesh/internal/config"
	"github.com/Raikerian/go-voice-mesh/internal/metrics"
	"github.com/Raikerian/go-voice-mesh/internal/peer"
	"github.com/Raikerian/go-voice-mesh/internal/session"
	"github.com/Raikerian/go-voice-mesh/internal/transport"
)

type negotiator struct {
	mu          sync.Mutex
	remote      []string
	candidates  []string
	closed      bool
	description string
}

func (n *negotiator) Send([]byte) error { return nil }

func (n *negotiator) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	return nil
}

func (n *negotiator) LocalDescription() (string, error) { return n.description, nil }

func (n *negotiator) SetRemoteDescription(d string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.remote = append(n.remote, d)
	return nil
}

func (n *negotiator) AddRemoteCandidates(c []string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.candidates = append(n.candidates, c...)
	return nil
}

type signaler struct {
	mu         sync.Mutex
	connects   []string
	candidates map[string][]string
}

func (s *signaler) SendConnect(dst, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connects = append(s.connects, dst+" "+description)
	return nil
}

func (s *signaler) SendCandidates(dst string, c []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.candidates == nil {
		s.candidates = map[string][]string{}
	}
	s.candidates[dst] = append(s.candidates[dst], c...)
	return nil
}

type fixture struct {
	session    *session.Session
	mixer      *conference.Mixer
	signaler   *signaler
	transports map[string]*negotiator
	links      map[string]*peer.Link
	failNext   error
}

func newFixture(t *testing.T, maxPeers int) *fixture {
	t.Helper()
	cfg := &config.Config{}
	cfg.Link.Codec = codec.NamePCM16
	cfg.Conference.MaxPeers = maxPeers
	cfg.ApplyDefaults()

	m := metrics.New(prometheus.NewRegistry())
	mixer, err := conference.New(zap.NewNop(), cfg, m)
	require.NoError(t, err)

	f := &fixture{
		mixer:      mixer,
		signaler:   &signaler{},
		transports: map[string]*negotiator{},
		links:      map[string]*peer.Link{},
	}

	factory := func(remoteID string, obs peer.Observer) (*peer.Link, error) {
		if f.failNext != nil {
			return nil, f.failNext
		}
		link, err := peer.NewLink(peer.Params{
			ID:       remoteID,
			Config:   peer.ConfigFrom(cfg),
			Logger:   zap.NewNop(),
			Metrics:  m,
			Observer: obs,
			NewCodec: func() (codec.Codec, error) { return codec.NewPCM16(cfg.Audio.Channels), nil },
			NewTransport: func(transport.Events) (peer.Transport, error) {
				n := &negotiator{description: "ufrag-" + remoteID + ":pwd"}
				f.transports[remoteID] = n
				return n, nil
			},
		})
		if err == nil {
			f.links[remoteID] = link
		}
		return link, err
	}

	f.session, err = session.New(zap.NewNop(), cfg, mixer, f.signaler, factory)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mixer.Close() })
	return f
}

func TestHelloCreatesLinkAndOffers(t *testing.T) {
	f := newFixture(t, 4)

	f.session.OnHello("bob")
	f.session.OnHello("bob")

	_, ok := f.mixer.Lookup("bob")
	assert.True(t, ok)
	assert.Equal(t, []string{"bob ufrag-bob:pwd"}, f.signaler.connects)
	assert.Equal(t, []string{"bob"}, f.session.Peers())
}

func TestConnectFromUnknownPeerAnswers(t *testing.T) {
	f := newFixture(t, 4)

	f.session.OnConnect("carol", "their:desc")

	assert.Equal(t, []string{"carol ufrag-carol:pwd"}, f.signaler.connects)
	assert.Equal(t, []string{"their:desc"}, f.transports["carol"].remote)

	// A second offer does not create another link.
	f.session.OnConnect("carol", "again:desc")
	assert.Len(t, f.signaler.connects, 1)
	assert.Equal(t, []string{"their:desc", "again:desc"}, f.transports["carol"].remote)
}

func TestEarlyCandidatesAreParked(t *testing.T) {
	f := newFixture(t, 4)

	f.session.OnCandidates("dave", []string{"c1"})
	f.session.OnCandidates("dave", []string{"c2"})
	assert.Empty(t, f.transports)

	f.session.OnConnect("dave", "d:d")
	assert.Equal(t, []string{"c1", "c2"}, f.transports["dave"].candidates)

	f.session.OnCandidates("dave", []string{"c3"})
	assert.Equal(t, []string{"c1", "c2", "c3"}, f.transports["dave"].candidates)
}

func TestGatheredCandidatesAreRelayed(t *testing.T) {
	f := newFixture(t, 4)
	f.session.OnHello("erin")

	link := f.links["erin"]
	link.OnCandidate("a")
	link.OnCandidate("b")
	link.OnGatheringDone()

	assert.Equal(t, []string{"a", "b"}, f.signaler.candidates["erin"])
}

func TestByeRemovesLink(t *testing.T) {
	f := newFixture(t, 4)
	f.session.OnHello("frank")
	f.session.OnBye("frank")
	f.session.OnBye("frank")

	_, ok := f.mixer.Lookup("frank")
	assert.False(t, ok)
	assert.True(t, f.transports["frank"].closed)
	assert.Equal(t, peer.StateClosed, f.links["frank"].State())
	assert.Empty(t, f.session.Peers())
}

func TestTableFullClosesLink(t *testing.T) {
	f := newFixture(t, 1)
	f.session.OnHello("a")
	f.session.OnHello("b")

	assert.Equal(t, []string{"a"}, f.session.Peers())
	assert.True(t, f.transports["b"].closed)
	assert.Len(t, f.signaler.connects, 1)
}

func TestLinkFactoryFailure(t *testing.T) {
	f := newFixture(t, 4)
	f.failNext = errors.New("no transport")

	f.session.OnHello("g")
	assert.Empty(t, f.session.Peers())
	assert.Empty(t, f.signaler.connects)
}

func TestICELinkFactoryBuildsLink(t *testing.T) {
	cfg := &config.Config{}
	cfg.Transport.STUNServers = []string{"stun:127.0.0.1:3478"}
	cfg.ApplyDefaults()

	factory := session.NewICELinkFactory(zap.NewNop(), cfg, metrics.New(prometheus.NewRegistry()), "alice")
	link, err := factory("bob", nil)
	require.NoError(t, err)
	defer link.Close()

	desc, err := link.LocalDescription()
	require.NoError(t, err)
	assert.Contains(t, desc, ":")
	assert.Equal(t, peer.StateIdle, link.State())
}
