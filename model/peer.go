package model

import (
	"time"
)

// Peer model
type Peer struct {
	ID         int       `json:"id"`
	Device     string    `json:"device"`
	AllowedIPs []string  `json:"allowed_ips"`
	PublicKey  string    `json:"public_key"`
	PrivateKey string    `json:"private_key"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Clone returns a copy of the peer that shares no slices with p
func (p Peer) Clone() Peer {
	c := p
	if p.AllowedIPs != nil {
		c.AllowedIPs = append([]string(nil), p.AllowedIPs...)
	}
	return c
}

// Public strips the private key so the peer can be handed out over the API
func (p Peer) Public() Peer {
	c := p.Clone()
	c.PrivateKey = ""
	return c
}

// KeyPair is a freshly generated asymmetric key pair
type KeyPair struct {
	PrivateKey string `json:"private_key"`
	PublicKey  string `json:"public_key"`
}
