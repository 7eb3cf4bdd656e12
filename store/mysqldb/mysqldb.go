// Package mysqldb provides a MySQL storage backend for the relay
package mysqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/labstack/gommon/log"

	"github.com/wgrelay/wireguard-relay/keypair"
	"github.com/wgrelay/wireguard-relay/model"
	"github.com/wgrelay/wireguard-relay/store"
	"github.com/wgrelay/wireguard-relay/util"
)

// String to split each item in array
var arrayDelimiter = ","

const schema = `
CREATE TABLE IF NOT EXISTS server_config (
	id TINYINT NOT NULL PRIMARY KEY,
	ip_address VARCHAR(255) NOT NULL,
	port INT NOT NULL,
	cidr VARCHAR(64) NOT NULL,
	private_key VARCHAR(255) NOT NULL,
	public_key VARCHAR(255) NOT NULL,
	network_adapter VARCHAR(64) NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS peers (
	id INT NOT NULL PRIMARY KEY,
	position INT NOT NULL,
	device VARCHAR(255) NOT NULL,
	allowed_ips TEXT NOT NULL,
	public_key VARCHAR(255) NOT NULL,
	private_key VARCHAR(255) NOT NULL,
	active BOOLEAN NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);`

// the relay has exactly one server row
const serverRowID = 1

// MySQLDB - Representation of MySQL database backend
type MySQLDB struct {
	conn           *sql.DB
	configFilePath string
	keys           keypair.Provider
}

// New returns pointer to MySQL database
func New(uname string, pwd string, host string, port int, database string, tls string, configFilePath string, keys keypair.Provider) (*MySQLDB, error) {
	// Set connection config
	config := mysql.NewConfig()
	config.User = uname
	config.Passwd = pwd
	config.Net = "tcp"
	config.Addr = fmt.Sprintf("%s:%d", host, port)
	config.DBName = database
	config.MultiStatements = true
	config.ParseTime = true
	config.TLSConfig = tls

	// Open connection pool
	conn, err := sql.Open("mysql", config.FormatDSN())
	if err != nil {
		return nil, err
	}
	conn.SetConnMaxLifetime(time.Minute * 3)
	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(10)

	// Test the connection
	if err := conn.Ping(); err != nil {
		return nil, err
	}

	ans := MySQLDB{
		conn:           conn,
		configFilePath: configFilePath,
		keys:           keys,
	}
	return &ans, nil
}

// Init creates the schema and the default server row
func (o *MySQLDB) Init() error {
	if _, err := o.conn.Exec(schema); err != nil {
		return err
	}

	var count int
	if err := o.conn.QueryRow("SELECT COUNT(*) FROM server_config WHERE id = ?;", serverRowID).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	log.Info("Initializing database")
	serverConfig, err := store.DefaultServerConfig(context.Background(), o.keys)
	if err != nil {
		return fmt.Errorf("cannot create default server config: %w", err)
	}
	return o.SaveServerConfig(serverConfig)
}

// LoadServerConfig func to query the server row and all peers in insertion order
func (o *MySQLDB) LoadServerConfig() (model.ServerConfig, error) {
	serverConfig := model.ServerConfig{Peers: []model.Peer{}}

	if err := o.conn.QueryRow(
		"SELECT ip_address, port, cidr, private_key, public_key, network_adapter, updated_at FROM server_config WHERE id = ?;",
		serverRowID,
	).Scan(
		&serverConfig.IPAddress,
		&serverConfig.Port,
		&serverConfig.CIDR,
		&serverConfig.PrivateKey,
		&serverConfig.PublicKey,
		&serverConfig.NetworkAdapter,
		&serverConfig.UpdatedAt,
	); err != nil {
		return serverConfig, err
	}

	rows, err := o.conn.Query("SELECT id, device, allowed_ips, public_key, private_key, active, created_at, updated_at FROM peers ORDER BY position;")
	if err != nil {
		return serverConfig, err
	}
	defer rows.Close()

	for rows.Next() {
		peer := model.Peer{}
		var allowedIPs string
		if err := rows.Scan(
			&peer.ID,
			&peer.Device,
			&allowedIPs,
			&peer.PublicKey,
			&peer.PrivateKey,
			&peer.Active,
			&peer.CreatedAt,
			&peer.UpdatedAt,
		); err != nil {
			return serverConfig, err
		}
		peer.AllowedIPs = splitArray(allowedIPs)
		serverConfig.Peers = append(serverConfig.Peers, peer)
	}

	return serverConfig, rows.Err()
}

// SaveServerConfig replaces the server row and the whole peer table in one transaction
func (o *MySQLDB) SaveServerConfig(serverConfig model.ServerConfig) error {
	tx, err := o.conn.Begin()
	if err != nil {
		return err
	}

	if _, err := tx.Exec(`
		INSERT INTO server_config (id, ip_address, port, cidr, private_key, public_key, network_adapter, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			ip_address = VALUES(ip_address),
			port = VALUES(port),
			cidr = VALUES(cidr),
			private_key = VALUES(private_key),
			public_key = VALUES(public_key),
			network_adapter = VALUES(network_adapter),
			updated_at = VALUES(updated_at);`,
		serverRowID,
		serverConfig.IPAddress,
		serverConfig.Port,
		serverConfig.CIDR,
		serverConfig.PrivateKey,
		serverConfig.PublicKey,
		serverConfig.NetworkAdapter,
		serverConfig.UpdatedAt,
	); err != nil {
		_ = tx.Rollback()
		return err
	}

	if _, err := tx.Exec("DELETE FROM peers;"); err != nil {
		_ = tx.Rollback()
		return err
	}

	for i, peer := range serverConfig.Peers {
		if _, err := tx.Exec(
			"INSERT INTO peers (id, position, device, allowed_ips, public_key, private_key, active, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);",
			peer.ID,
			i,
			peer.Device,
			strings.Join(peer.AllowedIPs, arrayDelimiter),
			peer.PublicKey,
			peer.PrivateKey,
			peer.Active,
			peer.CreatedAt,
			peer.UpdatedAt,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

func (o *MySQLDB) SaveWireGuardConfig(serverConfig model.ServerConfig) error {
	return util.WriteWireGuardServerConfig(o.configFilePath, serverConfig)
}

func splitArray(value string) []string {
	if value == "" {
		return []string{}
	}
	return strings.Split(value, arrayDelimiter)
}
