package jsondb

import (
	"context"
	"fmt"
	"os"
	"path"

	"github.com/sdomino/scribble"

	"github.com/wgrelay/wireguard-relay/keypair"
	"github.com/wgrelay/wireguard-relay/model"
	"github.com/wgrelay/wireguard-relay/store"
	"github.com/wgrelay/wireguard-relay/util"
)

const (
	serverCollection = "server"
	configResource   = "config"
)

type JsonDB struct {
	conn           *scribble.Driver
	dbPath         string
	configFilePath string
	keys           keypair.Provider
}

// New returns a new pointer JsonDB
func New(dbPath string, configFilePath string, keys keypair.Provider) (*JsonDB, error) {
	conn, err := scribble.New(dbPath, nil)
	if err != nil {
		return nil, err
	}
	ans := JsonDB{
		conn:           conn,
		dbPath:         dbPath,
		configFilePath: configFilePath,
		keys:           keys,
	}
	return &ans, nil
}

// Init writes a default server config if the database does not have one yet
func (o *JsonDB) Init() error {
	var serverConfigPath string = path.Join(o.dbPath, serverCollection, configResource+".json")

	if _, err := os.Stat(serverConfigPath); os.IsNotExist(err) {
		serverConfig, err := store.DefaultServerConfig(context.Background(), o.keys)
		if err != nil {
			return fmt.Errorf("cannot create default server config: %w", err)
		}
		if err := o.conn.Write(serverCollection, configResource, serverConfig); err != nil {
			return err
		}
	}

	return nil
}

// LoadServerConfig func to query the server config and its peers from the database
func (o *JsonDB) LoadServerConfig() (model.ServerConfig, error) {
	serverConfig := model.ServerConfig{}
	if err := o.conn.Read(serverCollection, configResource, &serverConfig); err != nil {
		return serverConfig, err
	}
	if serverConfig.Peers == nil {
		serverConfig.Peers = []model.Peer{}
	}
	return serverConfig, nil
}

func (o *JsonDB) SaveServerConfig(serverConfig model.ServerConfig) error {
	return o.conn.Write(serverCollection, configResource, serverConfig)
}

func (o *JsonDB) SaveWireGuardConfig(serverConfig model.ServerConfig) error {
	return util.WriteWireGuardServerConfig(o.configFilePath, serverConfig)
}

func (o *JsonDB) GetPath() string {
	return o.dbPath
}
