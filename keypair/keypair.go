// Package keypair provisions WireGuard key pairs for the relay and its peers.
package keypair

import (
	"context"

	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"

	"github.com/wgrelay/wireguard-relay/model"
)

// Provider generates a new asymmetric key pair
type Provider interface {
	Generate(ctx context.Context) (model.KeyPair, error)
}

// ProviderFunc adapts a plain function to Provider
type ProviderFunc func(ctx context.Context) (model.KeyPair, error)

// Generate calls f(ctx)
func (f ProviderFunc) Generate(ctx context.Context) (model.KeyPair, error) {
	return f(ctx)
}

// WgProvider generates curve25519 key pairs with wgtypes
type WgProvider struct{}

// NewWgProvider returns a Provider backed by wgtypes
func NewWgProvider() *WgProvider {
	return &WgProvider{}
}

// Generate creates a new private key and derives its public key
func (p *WgProvider) Generate(ctx context.Context) (model.KeyPair, error) {
	if err := ctx.Err(); err != nil {
		return model.KeyPair{}, err
	}

	key, err := wgtypes.GeneratePrivateKey()
	if err != nil {
		return model.KeyPair{}, err
	}

	return model.KeyPair{
		PrivateKey: key.String(),
		PublicKey:  key.PublicKey().String(),
	}, nil
}
