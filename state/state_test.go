package state

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wgrelay/wireguard-relay/keypair"
	"github.com/wgrelay/wireguard-relay/model"
)

// memStore is an in-memory IStore that records every save
type memStore struct {
	mu       sync.Mutex
	config   model.ServerConfig
	saves    int
	saveErr  error
	wgErr    error
	wgWrites []model.ServerConfig
	// block, if set, is waited on inside SaveServerConfig
	block chan struct{}
}

func (m *memStore) Init() error { return nil }

func (m *memStore) LoadServerConfig() (model.ServerConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config.Clone(), nil
}

func (m *memStore) SaveServerConfig(config model.ServerConfig) error {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.config = config.Clone()
	return nil
}

func (m *memStore) SaveWireGuardConfig(config model.ServerConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.wgErr != nil {
		return m.wgErr
	}
	m.wgWrites = append(m.wgWrites, config.Clone())
	return nil
}

func (m *memStore) saved() model.ServerConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config.Clone()
}

// counterKeys returns predictable key pairs
func counterKeys() keypair.Provider {
	var mu sync.Mutex
	n := 0
	return keypair.ProviderFunc(func(context.Context) (model.KeyPair, error) {
		mu.Lock()
		defer mu.Unlock()
		n++
		return model.KeyPair{
			PrivateKey: "PRIV" + string(rune('0'+n)),
			PublicKey:  "PUB" + string(rune('0'+n)),
		}, nil
	})
}

func baseConfig() model.ServerConfig {
	return model.ServerConfig{
		IPAddress:      "1.2.3.4",
		Port:           51820,
		CIDR:           "10.0.0.1/24",
		PrivateKey:     "SERVERPRIV",
		PublicKey:      "SERVERPUB",
		NetworkAdapter: "eth0",
		Peers:          []model.Peer{},
	}
}

func newTestState(t *testing.T) (*State, *memStore) {
	t.Helper()
	db := &memStore{config: baseConfig()}
	st, err := Load(db, counterKeys())
	require.NoError(t, err)
	return st, db
}

func TestCreatePeer(t *testing.T) {
	st, db := newTestState(t)
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		peer, err := st.CreatePeer(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, peer.ID)
		assert.True(t, peer.Active)
		assert.Empty(t, peer.Device)
		assert.Empty(t, peer.AllowedIPs)
		assert.NotEmpty(t, peer.PrivateKey)
		assert.NotEmpty(t, peer.PublicKey)
	}

	assert.Equal(t, []int{1, 2, 3}, ids(st.Snapshot().Peers))
	assert.Equal(t, []int{1, 2, 3}, ids(db.saved().Peers))
	assert.Equal(t, 3, db.saves)
}

func TestCreatePeer_AfterDelete(t *testing.T) {
	st, _ := newTestState(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := st.CreatePeer(ctx)
		require.NoError(t, err)
	}

	require.NoError(t, st.DeletePeer(ctx, 2))
	peer, err := st.CreatePeer(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, peer.ID)

	require.NoError(t, st.DeletePeer(ctx, 4))
	peer, err = st.CreatePeer(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, peer.ID)

	assert.Equal(t, []int{1, 3, 4}, ids(st.Snapshot().Peers))
}

func TestCreatePeer_KeyGenerationFails(t *testing.T) {
	db := &memStore{config: baseConfig()}
	boom := errors.New("entropy exhausted")
	st := New(db.config, db, keypair.ProviderFunc(func(context.Context) (model.KeyPair, error) {
		return model.KeyPair{}, boom
	}))

	_, err := st.CreatePeer(context.Background())
	assert.ErrorIs(t, err, ErrKeyGeneration)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, st.Snapshot().Peers)
	assert.Equal(t, 0, db.saves)
}

func TestCreatePeer_PersistenceFails(t *testing.T) {
	st, db := newTestState(t)
	db.saveErr = errors.New("disk full")

	_, err := st.CreatePeer(context.Background())
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Empty(t, st.Snapshot().Peers)

	// the next successful save starts from the committed state
	db.saveErr = nil
	peer, err := st.CreatePeer(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, peer.ID)
}

func TestCreatePeer_Canceled(t *testing.T) {
	st, db := newTestState(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := st.CreatePeer(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, st.Snapshot().Peers)
	assert.Equal(t, 0, db.saves)
}

func TestUpdatePeer(t *testing.T) {
	st, db := newTestState(t)
	ctx := context.Background()
	created, err := st.CreatePeer(ctx)
	require.NoError(t, err)

	updated, err := st.UpdatePeer(ctx, created.ID, PeerPatch{
		Device:     strPtr("laptop"),
		AllowedIPs: strPtr("10.0.0.2/32, 10.0.0.3/32"),
		PublicKey:  strPtr("OTHERPUB"),
		Active:     boolPtr(false),
	})
	require.NoError(t, err)
	assert.Equal(t, "laptop", updated.Device)
	assert.Equal(t, []string{"10.0.0.2/32", "10.0.0.3/32"}, updated.AllowedIPs)
	assert.Equal(t, "OTHERPUB", updated.PublicKey)
	assert.Equal(t, created.PrivateKey, updated.PrivateKey)
	assert.False(t, updated.Active)

	persisted, err := NewPeerStore(db.saved().Peers).FindByID(created.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.AllowedIPs, persisted.AllowedIPs)
}

func TestUpdatePeer_InvalidAllowedIPs(t *testing.T) {
	st, db := newTestState(t)
	ctx := context.Background()
	created, err := st.CreatePeer(ctx)
	require.NoError(t, err)
	_, err = st.UpdatePeer(ctx, created.ID, PeerPatch{AllowedIPs: strPtr("10.0.0.2/32")})
	require.NoError(t, err)
	saves := db.saves

	_, err = st.UpdatePeer(ctx, created.ID, PeerPatch{
		Device:     strPtr("x"),
		AllowedIPs: strPtr("10.0.0.5/32,bad,10.0.0.6/32"),
	})
	assert.ErrorIs(t, err, ErrValidation)

	peer, err := st.Peer(created.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.2/32"}, peer.AllowedIPs)
	assert.Empty(t, peer.Device)
	assert.Equal(t, saves, db.saves)
}

func TestUpdatePeer_NotFound(t *testing.T) {
	st, db := newTestState(t)
	_, err := st.UpdatePeer(context.Background(), 42, PeerPatch{Device: strPtr("x")})
	assert.ErrorIs(t, err, ErrPeerNotFound)
	assert.Equal(t, 0, db.saves)
}

func TestUpdatePeer_PersistenceFails(t *testing.T) {
	st, db := newTestState(t)
	ctx := context.Background()
	created, err := st.CreatePeer(ctx)
	require.NoError(t, err)

	db.saveErr = errors.New("read-only file system")
	_, err = st.UpdatePeer(ctx, created.ID, PeerPatch{Device: strPtr("laptop")})
	assert.ErrorIs(t, err, ErrPersistence)

	peer, err := st.Peer(created.ID)
	require.NoError(t, err)
	assert.Empty(t, peer.Device)
}

func TestDeletePeer(t *testing.T) {
	st, db := newTestState(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := st.CreatePeer(ctx)
		require.NoError(t, err)
	}

	require.NoError(t, st.DeletePeer(ctx, 2))
	assert.Equal(t, []int{1, 3}, ids(st.Snapshot().Peers))
	assert.Equal(t, []int{1, 3}, ids(db.saved().Peers))

	err := st.DeletePeer(ctx, 2)
	assert.ErrorIs(t, err, ErrPeerNotFound)
	assert.Len(t, st.Snapshot().Peers, 2)
}

func TestDeletePeer_PersistenceFails(t *testing.T) {
	st, db := newTestState(t)
	ctx := context.Background()
	_, err := st.CreatePeer(ctx)
	require.NoError(t, err)

	db.saveErr = errors.New("disk full")
	assert.ErrorIs(t, st.DeletePeer(ctx, 1), ErrPersistence)
	assert.Len(t, st.Snapshot().Peers, 1)
}

func TestUpdateSettings(t *testing.T) {
	st, db := newTestState(t)
	ctx := context.Background()
	_, err := st.CreatePeer(ctx)
	require.NoError(t, err)
	peersBefore := st.Snapshot().Peers

	err = st.UpdateSettings(ctx, model.ServerSettings{
		IPAddress:      "5.6.7.8",
		Port:           51821,
		CIDR:           "10.9.0.1/16",
		PrivateKey:     "NEWSERVERPRIV",
		NetworkAdapter: "ens3",
	})
	require.NoError(t, err)

	snap := st.Snapshot()
	assert.Equal(t, "5.6.7.8", snap.IPAddress)
	assert.Equal(t, 51821, snap.Port)
	assert.Equal(t, "10.9.0.1/16", snap.CIDR)
	assert.Equal(t, "NEWSERVERPRIV", snap.PrivateKey)
	assert.Equal(t, "ens3", snap.NetworkAdapter)
	assert.Equal(t, "SERVERPUB", snap.PublicKey)
	assert.Equal(t, peersBefore, snap.Peers)
	assert.Equal(t, "5.6.7.8", db.saved().IPAddress)
}

func TestUpdateSettings_PersistenceFails(t *testing.T) {
	st, db := newTestState(t)
	db.saveErr = errors.New("disk full")

	err := st.UpdateSettings(context.Background(), model.ServerSettings{IPAddress: "5.6.7.8", Port: 1})
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Equal(t, "1.2.3.4", st.Snapshot().IPAddress)
}

func TestRegenerateServerKeyPair(t *testing.T) {
	st, db := newTestState(t)

	pair, err := st.RegenerateServerKeyPair(context.Background())
	require.NoError(t, err)

	snap := st.Snapshot()
	assert.Equal(t, pair.PrivateKey, snap.PrivateKey)
	assert.Equal(t, pair.PublicKey, snap.PublicKey)
	assert.Equal(t, pair.PublicKey, db.saved().PublicKey)
}

func TestWriteWireGuardConfig(t *testing.T) {
	st, db := newTestState(t)
	ctx := context.Background()
	_, err := st.CreatePeer(ctx)
	require.NoError(t, err)
	saves := db.saves

	require.NoError(t, st.WriteWireGuardConfig(ctx))
	require.Len(t, db.wgWrites, 1)
	assert.Equal(t, st.Snapshot(), db.wgWrites[0])
	assert.Equal(t, saves, db.saves)

	db.wgErr = errors.New("permission denied")
	assert.ErrorIs(t, st.WriteWireGuardConfig(ctx), ErrPersistence)
}

func TestSnapshotIsACopy(t *testing.T) {
	st, _ := newTestState(t)
	ctx := context.Background()
	created, err := st.CreatePeer(ctx)
	require.NoError(t, err)
	_, err = st.UpdatePeer(ctx, created.ID, PeerPatch{AllowedIPs: strPtr("10.0.0.2/32")})
	require.NoError(t, err)

	snap := st.Snapshot()
	snap.Peers[0].AllowedIPs[0] = "mutated"
	snap.Peers = nil

	peer, err := st.Peer(created.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.2/32"}, peer.AllowedIPs)
}

func TestConcurrentCreatePeer(t *testing.T) {
	db := &memStore{config: baseConfig()}
	st := New(db.config, db, keypair.NewWgProvider())
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := st.CreatePeer(ctx)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got := ids(st.Snapshot().Peers)
	want := make([]int, n)
	for i := range want {
		want[i] = i + 1
	}
	assert.Equal(t, want, got)
	assert.Equal(t, want, ids(db.saved().Peers))
}

func TestReadsAreNotBlockedBySave(t *testing.T) {
	db := &memStore{config: baseConfig(), block: make(chan struct{})}
	st := New(db.config, db, counterKeys())

	done := make(chan error, 1)
	go func() {
		_, err := st.CreatePeer(context.Background())
		done <- err
	}()

	// the save is blocked, reads still see the committed snapshot
	read := make(chan model.ServerConfig, 1)
	go func() { read <- st.Snapshot() }()
	select {
	case snap := <-read:
		assert.Empty(t, snap.Peers)
	case <-time.After(2 * time.Second):
		t.Fatal("snapshot blocked by an in-flight save")
	}

	close(db.block)
	require.NoError(t, <-done)
	assert.Len(t, st.Snapshot().Peers, 1)
}
