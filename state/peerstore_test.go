package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wgrelay/wireguard-relay/model"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool { return &b }

func ids(peers []model.Peer) []int {
	out := make([]int, 0, len(peers))
	for _, p := range peers {
		out = append(out, p.ID)
	}
	return out
}

func TestPeerStore_NextID(t *testing.T) {
	s := NewPeerStore(nil)
	assert.Equal(t, 1, s.NextID())

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Insert(model.Peer{ID: s.NextID()}))
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5}, ids(s.Peers()))

	// a deleted id in the middle is not reused
	require.NoError(t, s.Remove(3))
	assert.Equal(t, 6, s.NextID())

	// a deleted maximum is
	require.NoError(t, s.Remove(5))
	assert.Equal(t, 5, s.NextID())

	for _, id := range []int{1, 2, 4} {
		require.NoError(t, s.Remove(id))
	}
	assert.Equal(t, 1, s.NextID())
}

func TestPeerStore_NextIDUnordered(t *testing.T) {
	s := NewPeerStore([]model.Peer{{ID: 7}, {ID: 2}, {ID: 4}})
	assert.Equal(t, 8, s.NextID())
}

func TestPeerStore_Insert(t *testing.T) {
	s := NewPeerStore([]model.Peer{{ID: 1}})

	assert.ErrorIs(t, s.Insert(model.Peer{ID: 1}), ErrDuplicatePeer)
	assert.ErrorIs(t, s.Insert(model.Peer{ID: 0}), ErrInvalidPeerID)
	assert.ErrorIs(t, s.Insert(model.Peer{ID: -2}), ErrInvalidPeerID)
	assert.Equal(t, 1, s.Len())

	require.NoError(t, s.Insert(model.Peer{ID: 9}))
	assert.Equal(t, []int{1, 9}, ids(s.Peers()))
}

func TestPeerStore_FindByID(t *testing.T) {
	s := NewPeerStore([]model.Peer{{ID: 1, Device: "a"}, {ID: 2, Device: "b"}})

	p, err := s.FindByID(2)
	require.NoError(t, err)
	assert.Equal(t, "b", p.Device)

	_, err = s.FindByID(3)
	assert.ErrorIs(t, err, ErrPeerNotFound)
}

func TestPeerStore_Update(t *testing.T) {
	s := NewPeerStore([]model.Peer{{ID: 1, Device: "old", PublicKey: "PUB", PrivateKey: "PRIV", AllowedIPs: []string{}, Active: true}})

	err := s.Update(1, PeerPatch{
		Device:     strPtr("phone"),
		AllowedIPs: strPtr("10.0.0.2/32, 10.0.0.3/32"),
		PublicKey:  strPtr("NEWPUB"),
		Active:     boolPtr(false),
	})
	require.NoError(t, err)

	p, err := s.FindByID(1)
	require.NoError(t, err)
	assert.Equal(t, "phone", p.Device)
	assert.Equal(t, []string{"10.0.0.2/32", "10.0.0.3/32"}, p.AllowedIPs)
	assert.Equal(t, "NEWPUB", p.PublicKey)
	assert.Equal(t, "PRIV", p.PrivateKey)
	assert.False(t, p.Active)
}

func TestPeerStore_UpdatePartial(t *testing.T) {
	s := NewPeerStore([]model.Peer{{ID: 1, Device: "old", PublicKey: "PUB", AllowedIPs: []string{"10.0.0.2/32"}, Active: true}})

	require.NoError(t, s.Update(1, PeerPatch{Active: boolPtr(false)}))

	p, _ := s.FindByID(1)
	assert.Equal(t, "old", p.Device)
	assert.Equal(t, "PUB", p.PublicKey)
	assert.Equal(t, []string{"10.0.0.2/32"}, p.AllowedIPs)
	assert.False(t, p.Active)
}

func TestPeerStore_UpdateRejectsInvalidAllowedIPs(t *testing.T) {
	s := NewPeerStore([]model.Peer{{ID: 1, Device: "old", AllowedIPs: []string{"10.0.0.2/32"}}})

	err := s.Update(1, PeerPatch{
		Device:     strPtr("new"),
		AllowedIPs: strPtr("10.0.0.3/32, 10.0.0.4, 10.0.0.5/32"),
	})
	assert.ErrorIs(t, err, ErrInvalidAllowedIPs)
	assert.ErrorIs(t, err, ErrValidation)

	p, _ := s.FindByID(1)
	assert.Equal(t, "old", p.Device)
	assert.Equal(t, []string{"10.0.0.2/32"}, p.AllowedIPs)
}

func TestPeerStore_UpdateNotFound(t *testing.T) {
	s := NewPeerStore([]model.Peer{{ID: 1}})
	assert.ErrorIs(t, s.Update(2, PeerPatch{Device: strPtr("x")}), ErrPeerNotFound)
}

func TestPeerStore_Remove(t *testing.T) {
	s := NewPeerStore([]model.Peer{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}})

	require.NoError(t, s.Remove(2))
	assert.Equal(t, []int{1, 3, 4}, ids(s.Peers()))

	assert.ErrorIs(t, s.Remove(2), ErrPeerNotFound)
	assert.Equal(t, 3, s.Len())
}

func TestPeerStore_CopiesInput(t *testing.T) {
	input := []model.Peer{{ID: 1, AllowedIPs: []string{"10.0.0.2/32"}}}
	s := NewPeerStore(input)

	require.NoError(t, s.Update(1, PeerPatch{AllowedIPs: strPtr("10.0.0.9/32")}))
	assert.Equal(t, []string{"10.0.0.2/32"}, input[0].AllowedIPs)

	out := s.Peers()
	out[0].AllowedIPs[0] = "mutated"
	p, _ := s.FindByID(1)
	assert.Equal(t, []string{"10.0.0.9/32"}, p.AllowedIPs)
}

func TestParsePeerID(t *testing.T) {
	id, err := ParsePeerID("12")
	require.NoError(t, err)
	assert.Equal(t, 12, id)

	id, err = ParsePeerID(" 3 ")
	require.NoError(t, err)
	assert.Equal(t, 3, id)

	for _, raw := range []string{"", "abc", "1.5", "0x10"} {
		_, err := ParsePeerID(raw)
		assert.ErrorIs(t, err, ErrPeerNotFound, raw)
	}
}
