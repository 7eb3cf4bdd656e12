package model

import (
	"time"
)

// ServerConfig holds the relay identity and its peers. It is persisted as one unit.
type ServerConfig struct {
	IPAddress      string    `json:"ip_address"`
	Port           int       `json:"port"`
	CIDR           string    `json:"cidr"`
	PrivateKey     string    `json:"private_key"`
	PublicKey      string    `json:"public_key"`
	NetworkAdapter string    `json:"network_adapter"`
	Peers          []Peer    `json:"peers"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Clone deep-copies the server config including every peer
func (s ServerConfig) Clone() ServerConfig {
	c := s
	if s.Peers != nil {
		c.Peers = make([]Peer, len(s.Peers))
		for i, p := range s.Peers {
			c.Peers[i] = p.Clone()
		}
	}
	return c
}

// ServerSettings is the full replacement payload for the server identity fields
type ServerSettings struct {
	IPAddress      string
	Port           int
	CIDR           string
	PrivateKey     string
	NetworkAdapter string
}

// ServerInfo is the public view of the server, without key material that must stay private
type ServerInfo struct {
	IPAddress      string    `json:"ip_address"`
	Port           int       `json:"port"`
	CIDR           string    `json:"cidr"`
	PublicKey      string    `json:"public_key"`
	NetworkAdapter string    `json:"network_adapter"`
	Peers          []Peer    `json:"peers"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Info builds the public view of s
func (s ServerConfig) Info() ServerInfo {
	peers := make([]Peer, 0, len(s.Peers))
	for _, p := range s.Peers {
		peers = append(peers, p.Public())
	}
	return ServerInfo{
		IPAddress:      s.IPAddress,
		Port:           s.Port,
		CIDR:           s.CIDR,
		PublicKey:      s.PublicKey,
		NetworkAdapter: s.NetworkAdapter,
		Peers:          peers,
		UpdatedAt:      s.UpdatedAt,
	}
}
