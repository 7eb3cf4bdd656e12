package state

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wgrelay/wireguard-relay/model"
	"github.com/wgrelay/wireguard-relay/util"
)

// PeerPatch carries the peer fields an update supplies. Nil fields are left alone.
// There is no way to change a peer's private key through a patch.
type PeerPatch struct {
	Device     *string
	AllowedIPs *string // comma separated
	PublicKey  *string
	Active     *bool
}

// PeerStore is an ordered collection of peers. It is not safe for concurrent use,
// State serializes access to it.
type PeerStore struct {
	peers []model.Peer
}

// NewPeerStore returns a store over a copy of peers
func NewPeerStore(peers []model.Peer) *PeerStore {
	s := &PeerStore{peers: make([]model.Peer, 0, len(peers))}
	for _, p := range peers {
		s.peers = append(s.peers, p.Clone())
	}
	return s
}

// Peers returns a copy of the peers in insertion order
func (s *PeerStore) Peers() []model.Peer {
	out := make([]model.Peer, 0, len(s.peers))
	for _, p := range s.peers {
		out = append(out, p.Clone())
	}
	return out
}

// Len returns the number of peers
func (s *PeerStore) Len() int {
	return len(s.peers)
}

// NextID returns max(ids)+1, or 1 when the store is empty.
// It is recomputed on every call so a deleted maximum id becomes free again.
func (s *PeerStore) NextID() int {
	max := 0
	for _, p := range s.peers {
		if p.ID > max {
			max = p.ID
		}
	}
	return max + 1
}

func (s *PeerStore) indexOf(id int) int {
	for i, p := range s.peers {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// FindByID returns a copy of the peer with the given id
func (s *PeerStore) FindByID(id int) (model.Peer, error) {
	i := s.indexOf(id)
	if i == -1 {
		return model.Peer{}, fmt.Errorf("%w: %d", ErrPeerNotFound, id)
	}
	return s.peers[i].Clone(), nil
}

// Insert appends peer at the end of the store
func (s *PeerStore) Insert(peer model.Peer) error {
	if peer.ID <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPeerID, peer.ID)
	}
	if s.indexOf(peer.ID) != -1 {
		return fmt.Errorf("%w: %d", ErrDuplicatePeer, peer.ID)
	}
	s.peers = append(s.peers, peer.Clone())
	return nil
}

// Update applies patch to the peer with the given id. An invalid allowed ip
// list rejects the whole patch before anything is changed.
func (s *PeerStore) Update(id int, patch PeerPatch) error {
	i := s.indexOf(id)
	if i == -1 {
		return fmt.Errorf("%w: %d", ErrPeerNotFound, id)
	}

	if patch.AllowedIPs != nil && !util.ValidateAllowedIPList(*patch.AllowedIPs) {
		return fmt.Errorf("%w: %q", ErrInvalidAllowedIPs, *patch.AllowedIPs)
	}

	peer := &s.peers[i]
	if patch.Device != nil {
		peer.Device = *patch.Device
	}
	if patch.AllowedIPs != nil {
		peer.AllowedIPs = util.SplitAllowedIPs(*patch.AllowedIPs)
	}
	if patch.PublicKey != nil {
		peer.PublicKey = *patch.PublicKey
	}
	if patch.Active != nil {
		peer.Active = *patch.Active
	}
	peer.UpdatedAt = time.Now().UTC()
	return nil
}

// Remove deletes the peer with the given id, keeping the order of the others
func (s *PeerStore) Remove(id int) error {
	i := s.indexOf(id)
	if i == -1 {
		return fmt.Errorf("%w: %d", ErrPeerNotFound, id)
	}
	s.peers = append(s.peers[:i], s.peers[i+1:]...)
	return nil
}

// ParsePeerID converts a textual peer id to its numeric form. A key that is
// not an integer cannot match any peer and is reported as not found.
func ParsePeerID(raw string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrPeerNotFound, raw)
	}
	return id, nil
}
