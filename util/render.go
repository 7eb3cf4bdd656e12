package util

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"

	"github.com/skip2/go-qrcode"

	"github.com/wgrelay/wireguard-relay/model"
	"github.com/wgrelay/wireguard-relay/templates"
)

// ErrRenderFailed is returned when a config artifact cannot be rendered
var ErrRenderFailed = errors.New("could not render config")

var (
	funcs = template.FuncMap{
		"StringsJoin": strings.Join,
	}
	clientTemplate = template.Must(template.New("client.conf").Funcs(funcs).ParseFS(templates.FS, "client.conf"))
	serverTemplate = template.Must(template.New("wg.conf").Funcs(funcs).ParseFS(templates.FS, "wg.conf"))
)

type clientConfigData struct {
	PrivateKey          string
	Address             string
	DNS                 string
	ServerPublicKey     string
	AllowedIPs          string
	Endpoint            string
	PersistentKeepalive int
}

// BuildClientConfig renders the wireguard config for a single peer
func BuildClientConfig(peer model.Peer, server model.ServerConfig, setting model.ClientSettings) (string, error) {
	var missing []string
	if peer.PrivateKey == "" {
		missing = append(missing, "peer private key")
	}
	if len(peer.AllowedIPs) == 0 {
		missing = append(missing, "peer allowed ips")
	}
	if server.PublicKey == "" {
		missing = append(missing, "server public key")
	}
	if server.IPAddress == "" {
		missing = append(missing, "server ip address")
	}
	if server.Port == 0 {
		missing = append(missing, "server port")
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: missing %s", ErrRenderFailed, strings.Join(missing, ", "))
	}

	allowedIPs := setting.AllowedIPs
	if len(allowedIPs) == 0 {
		allowedIPs = []string{DefaultClientAllowedIPs}
	}

	data := clientConfigData{
		PrivateKey:          peer.PrivateKey,
		Address:             strings.Join(peer.AllowedIPs, ","),
		DNS:                 strings.Join(setting.DNSServers, ","),
		ServerPublicKey:     server.PublicKey,
		AllowedIPs:          strings.Join(allowedIPs, ","),
		Endpoint:            net.JoinHostPort(server.IPAddress, strconv.Itoa(server.Port)),
		PersistentKeepalive: setting.PersistentKeepalive,
	}

	var buf bytes.Buffer
	if err := clientTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}
	return buf.String(), nil
}

// BuildClientQRCode encodes a rendered client config as a PNG QR code
func BuildClientQRCode(config string) ([]byte, error) {
	png, err := qrcode.Encode(config, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}
	return png, nil
}

// BuildServerConfig renders the wireguard interface config of the relay with all of its peers
func BuildServerConfig(server model.ServerConfig) (string, error) {
	if server.PrivateKey == "" || server.CIDR == "" || server.Port == 0 {
		return "", fmt.Errorf("%w: server private key, cidr and port are required", ErrRenderFailed)
	}

	var buf bytes.Buffer
	if err := serverTemplate.Execute(&buf, server); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}
	return buf.String(), nil
}

// WriteWireGuardServerConfig to write Wireguard server config. e.g. wg0.conf
func WriteWireGuardServerConfig(path string, server model.ServerConfig) error {
	config, err := BuildServerConfig(server)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}

	// write to a temp file first so a crash never leaves a half written config behind
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(config); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}
