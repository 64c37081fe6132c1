// Package session turns signaling events into peer links in the conference.
package session

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/Raikerian/go-voice-mesh/internal/conference"
	"github.com/Raikerian/go-voice-mesh/internal/config"
	"github.com/Raikerian/go-voice-mesh/internal/peer"
)

// Signaler relays negotiation data to other participants.
type Signaler interface {
	SendConnect(dst, description string) error
	SendCandidates(dst string, candidates []string) error
}

// Table is the peer table links are placed in.
type Table interface {
	Add(link conference.Link) error
	Remove(id string) error
}

// LinkFactory builds the link to a remote participant.
type LinkFactory func(remoteID string, observer peer.Observer) (*peer.Link, error)

// Session implements signaling.Handler and peer.Observer.
type Session struct {
	logger   *zap.Logger
	table    Table
	signaler Signaler
	newLink  LinkFactory

	// mu serializes signaling handling so a peer is created at most once.
	mu      sync.Mutex
	links   map[string]*peer.Link
	pending *lru.Cache[string, []string]
}

// New creates a session. Candidates that arrive before their link are
// parked in a bounded cache.
func New(logger *zap.Logger, cfg *config.Config, table Table, signaler Signaler, newLink LinkFactory) (*Session, error) {
	pending, err := lru.New[string, []string](cfg.Signaling.PendingCandidates)
	if err != nil {
		return nil, fmt.Errorf("failed to create pending candidate cache: %w", err)
	}

	return &Session{
		logger:   logger,
		table:    table,
		signaler: signaler,
		newLink:  newLink,
		links:    make(map[string]*peer.Link),
		pending:  pending,
	}, nil
}

// OnHello creates a link to a newly announced participant and offers our description.
func (s *Session) OnHello(sender string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.links[sender]; ok {
		return
	}
	if _, err := s.connectLocked(sender); err != nil {
		s.logger.Error("Failed to connect to peer", zap.String("peer_id", sender), zap.Error(err))
	}
}

// OnConnect accepts a remote description, creating the link first if needed.
func (s *Session) OnConnect(sender, description string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, ok := s.links[sender]
	if !ok {
		var err error
		if link, err = s.connectLocked(sender); err != nil {
			s.logger.Error("Failed to connect to peer", zap.String("peer_id", sender), zap.Error(err))
			return
		}
	}

	if err := link.SetRemoteDescription(description); err != nil {
		s.logger.Error("Failed to set remote description", zap.String("peer_id", sender), zap.Error(err))
	}
}

// OnCandidates applies remote candidates, parking them if the link does not exist yet.
func (s *Session) OnCandidates(sender string, candidates []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, ok := s.links[sender]
	if !ok {
		parked, _ := s.pending.Get(sender)
		s.pending.Add(sender, append(parked, candidates...))
		s.logger.Debug("Parked candidates for unknown peer", zap.String("peer_id", sender), zap.Int("candidates", len(candidates)))
		return
	}

	if err := link.AddRemoteCandidates(candidates); err != nil {
		s.logger.Warn("Failed to add remote candidates", zap.String("peer_id", sender), zap.Error(err))
	}
}

// OnBye removes the participant's link.
func (s *Session) OnBye(sender string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending.Remove(sender)
	if _, ok := s.links[sender]; !ok {
		return
	}
	delete(s.links, sender)

	if err := s.table.Remove(sender); err != nil {
		s.logger.Warn("Failed to remove peer", zap.String("peer_id", sender), zap.Error(err))
	}
}

// LinkStateChanged implements peer.Observer.
func (s *Session) LinkStateChanged(id string, from, to peer.State) {
	s.logger.Debug("Peer link state changed", zap.String("peer_id", id),
		zap.Stringer("from", from), zap.Stringer("to", to))
}

// CandidatesGathered implements peer.Observer.
func (s *Session) CandidatesGathered(id string, candidates []string) {
	if len(candidates) == 0 {
		return
	}
	if err := s.signaler.SendCandidates(id, candidates); err != nil {
		s.logger.Warn("Failed to send candidates", zap.String("peer_id", id), zap.Error(err))
	}
}

// Peers returns the ids of the participants with a link.
func (s *Session) Peers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.links))
	for id := range s.links {
		ids = append(ids, id)
	}
	return ids
}

// Close forgets every link. The links themselves are owned by the table.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.links)
	s.pending.Purge()
}

func (s *Session) connectLocked(remoteID string) (*peer.Link, error) {
	link, err := s.newLink(remoteID, s)
	if err != nil {
		return nil, err
	}

	if err := s.table.Add(link); err != nil {
		_ = link.Close()
		return nil, err
	}
	s.links[remoteID] = link

	description, err := link.LocalDescription()
	if err != nil {
		return link, fmt.Errorf("failed to read local description: %w", err)
	}
	if err := s.signaler.SendConnect(remoteID, description); err != nil {
		return link, fmt.Errorf("failed to send connect: %w", err)
	}

	if parked, ok := s.pending.Get(remoteID); ok {
		s.pending.Remove(remoteID)
		if err := link.AddRemoteCandidates(parked); err != nil {
			s.logger.Warn("Failed to add parked candidates", zap.String("peer_id", remoteID), zap.Error(err))
		}
	}

	s.logger.Info("Connecting to peer", zap.String("peer_id", remoteID))
	return link, nil
}
