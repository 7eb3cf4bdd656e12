package store

import (
	"context"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/wgrelay/wireguard-relay/keypair"
	"github.com/wgrelay/wireguard-relay/model"
	"github.com/wgrelay/wireguard-relay/util"
)

// IStore persists the server config and writes the rendered wireguard config
type IStore interface {
	Init() error
	LoadServerConfig() (model.ServerConfig, error)
	SaveServerConfig(config model.ServerConfig) error
	SaveWireGuardConfig(config model.ServerConfig) error
}

// DefaultServerConfig builds the server config used on first start.
// Values come from the environment, the key pair is freshly generated.
func DefaultServerConfig(ctx context.Context, keys keypair.Provider) (model.ServerConfig, error) {
	pair, err := keys.Generate(ctx)
	if err != nil {
		return model.ServerConfig{}, err
	}

	ipAddress := util.LookupEnvOrString(util.ServerIPAddressEnvVar, "")
	if ipAddress == "" {
		// automatically find an external IP address
		publicInterface, err := util.GetPublicIP()
		if err != nil {
			log.Warnf("Cannot detect public ip address, set %s or update the server settings: %v", util.ServerIPAddressEnvVar, err)
		} else {
			ipAddress = publicInterface.IPAddress
		}
	}

	return model.ServerConfig{
		IPAddress:      ipAddress,
		Port:           util.LookupEnvOrInt(util.ServerPortEnvVar, util.DefaultServerPort),
		CIDR:           util.LookupEnvOrString(util.ServerCIDREnvVar, util.DefaultServerCIDR),
		PrivateKey:     pair.PrivateKey,
		PublicKey:      pair.PublicKey,
		NetworkAdapter: util.LookupEnvOrString(util.ServerNetworkAdapterVar, util.DefaultNetworkAdapter),
		Peers:          []model.Peer{},
		UpdatedAt:      time.Now().UTC(),
	}, nil
}
