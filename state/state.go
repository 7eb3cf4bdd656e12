// Package state owns the relay's server config for the lifetime of the process.
//
// Every mutating operation is serialized and follows the same path: the change
// is staged on a deep copy, the copy is persisted, and only a successful save
// commits it to memory. A failed save therefore never leaves memory ahead of
// durable storage. Read-only queries work on the committed snapshot and are
// not blocked by an in-flight save.
package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wgrelay/wireguard-relay/keypair"
	"github.com/wgrelay/wireguard-relay/model"
	"github.com/wgrelay/wireguard-relay/store"
)

// State is the single owner of the server config
type State struct {
	// writeMu serializes mutating operations, including their key generation and persistence
	writeMu sync.Mutex

	mu     sync.RWMutex
	config model.ServerConfig

	db   store.IStore
	keys keypair.Provider
}

// New wraps a loaded server config
func New(config model.ServerConfig, db store.IStore, keys keypair.Provider) *State {
	config = config.Clone()
	if config.Peers == nil {
		config.Peers = []model.Peer{}
	}
	peersGauge.Set(float64(len(config.Peers)))
	return &State{
		config: config,
		db:     db,
		keys:   keys,
	}
}

// Load reads the server config from db and wraps it
func Load(db store.IStore, keys keypair.Provider) (*State, error) {
	config, err := db.LoadServerConfig()
	if err != nil {
		return nil, fmt.Errorf("cannot load server config: %w", err)
	}
	return New(config, db, keys), nil
}

// Snapshot returns a deep copy of the committed server config
func (s *State) Snapshot() model.ServerConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config.Clone()
}

// Peer returns a copy of a single committed peer
func (s *State) Peer(id int) (model.Peer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return NewPeerStore(s.config.Peers).FindByID(id)
}

// mutate stages fn on a copy of the config, persists the copy and commits it.
// The caller must hold writeMu.
func (s *State) mutate(ctx context.Context, fn func(staged *model.ServerConfig) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	staged := s.config.Clone()
	s.mu.RUnlock()

	if err := fn(&staged); err != nil {
		return err
	}
	staged.UpdatedAt = time.Now().UTC()

	if err := s.db.SaveServerConfig(staged); err != nil {
		persistenceFailures.Inc()
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	s.mu.Lock()
	s.config = staged
	s.mu.Unlock()
	peersGauge.Set(float64(len(staged.Peers)))
	return nil
}

// CreatePeer provisions a new active peer with a fresh key pair.
// Nothing is changed or saved if the key pair cannot be generated.
func (s *State) CreatePeer(ctx context.Context) (model.Peer, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	pair, err := s.keys.Generate(ctx)
	if err != nil {
		return model.Peer{}, fmt.Errorf("%w: %w", ErrKeyGeneration, err)
	}

	var peer model.Peer
	err = s.mutate(ctx, func(staged *model.ServerConfig) error {
		peers := NewPeerStore(staged.Peers)
		now := time.Now().UTC()
		peer = model.Peer{
			ID:         peers.NextID(),
			Device:     "",
			AllowedIPs: []string{},
			PublicKey:  pair.PublicKey,
			PrivateKey: pair.PrivateKey,
			Active:     true,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := peers.Insert(peer); err != nil {
			return err
		}
		staged.Peers = peers.Peers()
		return nil
	})
	if err != nil {
		return model.Peer{}, err
	}
	return peer, nil
}

// UpdatePeer applies patch to a peer and returns the updated peer
func (s *State) UpdatePeer(ctx context.Context, id int, patch PeerPatch) (model.Peer, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var peer model.Peer
	err := s.mutate(ctx, func(staged *model.ServerConfig) error {
		peers := NewPeerStore(staged.Peers)
		if err := peers.Update(id, patch); err != nil {
			return err
		}
		peer, _ = peers.FindByID(id)
		staged.Peers = peers.Peers()
		return nil
	})
	if err != nil {
		return model.Peer{}, err
	}
	return peer, nil
}

// DeletePeer removes a peer
func (s *State) DeletePeer(ctx context.Context, id int) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.mutate(ctx, func(staged *model.ServerConfig) error {
		peers := NewPeerStore(staged.Peers)
		if err := peers.Remove(id); err != nil {
			return err
		}
		staged.Peers = peers.Peers()
		return nil
	})
}

// UpdateSettings overwrites the five server identity fields. The public key
// and the peers are left untouched.
func (s *State) UpdateSettings(ctx context.Context, settings model.ServerSettings) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.mutate(ctx, func(staged *model.ServerConfig) error {
		staged.IPAddress = settings.IPAddress
		staged.Port = settings.Port
		staged.CIDR = settings.CIDR
		staged.PrivateKey = settings.PrivateKey
		staged.NetworkAdapter = settings.NetworkAdapter
		return nil
	})
}

// RegenerateServerKeyPair replaces the server private and public key together
func (s *State) RegenerateServerKeyPair(ctx context.Context) (model.KeyPair, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	pair, err := s.keys.Generate(ctx)
	if err != nil {
		return model.KeyPair{}, fmt.Errorf("%w: %w", ErrKeyGeneration, err)
	}

	err = s.mutate(ctx, func(staged *model.ServerConfig) error {
		staged.PrivateKey = pair.PrivateKey
		staged.PublicKey = pair.PublicKey
		return nil
	})
	if err != nil {
		return model.KeyPair{}, err
	}
	return pair, nil
}

// WriteWireGuardConfig renders the committed config and hands it to the store.
// It only reads the state.
func (s *State) WriteWireGuardConfig(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.db.SaveWireGuardConfig(s.Snapshot()); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}
