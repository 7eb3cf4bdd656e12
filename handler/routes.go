package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/wgrelay/wireguard-relay/emailer"
	"github.com/wgrelay/wireguard-relay/model"
	"github.com/wgrelay/wireguard-relay/state"
	"github.com/wgrelay/wireguard-relay/util"
)

type jsonHTTPResponse struct {
	Status  bool   `json:"success"`
	Message string `json:"message"`
}

type peerCreatedResponse struct {
	ID        int    `json:"id"`
	PublicKey string `json:"public_key"`
}

type peerUpdatePayload struct {
	Device     *string `json:"device" validate:"required"`
	AllowedIPs *string `json:"allowed_ips" validate:"required"`
	PublicKey  *string `json:"public_key" validate:"required"`
	Active     *bool   `json:"active" validate:"required"`
}

type serverSettingsPayload struct {
	IPAddress      *string `json:"ip_address" validate:"required"`
	Port           *int    `json:"port" validate:"required"`
	CIDR           *string `json:"cidr" validate:"required"`
	PrivateKey     *string `json:"private_key" validate:"required"`
	NetworkAdapter *string `json:"network_adapter" validate:"required"`
}

type emailPeerPayload struct {
	Name  string `json:"name"`
	Email string `json:"email" validate:"required,email"`
}

// createError maps a state error to its HTTP status. Only server side failures are logged as errors.
func createError(c echo.Context, err error, msg string) error {
	switch {
	case errors.Is(err, state.ErrValidation):
		log.Warnf("%s: %v", msg, err)
		return c.JSON(http.StatusBadRequest, jsonHTTPResponse{false, msg})
	case errors.Is(err, state.ErrPeerNotFound):
		return c.JSON(http.StatusNotFound, jsonHTTPResponse{false, "Peer not found"})
	case errors.Is(err, util.ErrRenderFailed):
		// the peer or the server is not configured enough to produce a client config
		log.Warnf("%s: %v", msg, err)
		return c.JSON(http.StatusUnprocessableEntity, jsonHTTPResponse{false, err.Error()})
	default:
		log.Errorf("%s: %v", msg, err)
		return c.JSON(http.StatusInternalServerError, jsonHTTPResponse{false, msg})
	}
}

// GetServer handler returns the public server identity and its peers
func GetServer(st *state.State) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, st.Snapshot().Info())
	}
}

// GetPeers handler
func GetPeers(st *state.State) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, st.Snapshot().Info().Peers)
	}
}

// GetPeer handler
func GetPeer(st *state.State) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := state.ParsePeerID(c.Param("id"))
		if err != nil {
			return createError(c, err, "Cannot find peer")
		}

		peer, err := st.Peer(id)
		if err != nil {
			return createError(c, err, "Cannot find peer")
		}

		return c.JSON(http.StatusOK, peer.Public())
	}
}

// NewPeer handler
func NewPeer(st *state.State) echo.HandlerFunc {
	return func(c echo.Context) error {
		peer, err := st.CreatePeer(c.Request().Context())
		if err != nil {
			if errors.Is(err, state.ErrKeyGeneration) {
				return createError(c, err, "Cannot generate Wireguard key pair")
			}
			return createError(c, err, "Cannot save server config")
		}

		log.Infof("Created wireguard peer: %d", peer.ID)
		return c.JSON(http.StatusCreated, peerCreatedResponse{peer.ID, peer.PublicKey})
	}
}

// UpdatePeer handler
func UpdatePeer(st *state.State) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := state.ParsePeerID(c.Param("id"))
		if err != nil {
			return createError(c, err, "Cannot find peer")
		}

		payload := new(peerUpdatePayload)
		if err := c.Bind(payload); err != nil {
			return c.JSON(http.StatusBadRequest, jsonHTTPResponse{false, "Bad post data"})
		}
		if err := c.Validate(payload); err != nil {
			return c.JSON(http.StatusBadRequest, jsonHTTPResponse{false, err.Error()})
		}

		peer, err := st.UpdatePeer(c.Request().Context(), id, state.PeerPatch{
			Device:     payload.Device,
			AllowedIPs: payload.AllowedIPs,
			PublicKey:  payload.PublicKey,
			Active:     payload.Active,
		})
		if err != nil {
			if errors.Is(err, state.ErrInvalidAllowedIPs) {
				return createError(c, err, "Allowed IPs must be in CIDR format")
			}
			return createError(c, err, "Cannot save server config")
		}

		log.Infof("Updated wireguard peer: %d", peer.ID)
		return c.JSON(http.StatusOK, jsonHTTPResponse{true, "Updated peer successfully"})
	}
}

// RemovePeer handler
func RemovePeer(st *state.State) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := state.ParsePeerID(c.Param("id"))
		if err != nil {
			return createError(c, err, "Cannot find peer")
		}

		if err := st.DeletePeer(c.Request().Context(), id); err != nil {
			return createError(c, err, "Cannot save server config")
		}

		log.Infof("Removed wireguard peer: %d", id)
		return c.JSON(http.StatusOK, jsonHTTPResponse{true, "Peer removed"})
	}
}

// SaveServerSettings handler replaces the server identity fields
func SaveServerSettings(st *state.State) echo.HandlerFunc {
	return func(c echo.Context) error {
		payload := new(serverSettingsPayload)
		if err := c.Bind(payload); err != nil {
			return c.JSON(http.StatusBadRequest, jsonHTTPResponse{false, "Bad post data"})
		}
		if err := c.Validate(payload); err != nil {
			return c.JSON(http.StatusBadRequest, jsonHTTPResponse{false, err.Error()})
		}

		err := st.UpdateSettings(c.Request().Context(), model.ServerSettings{
			IPAddress:      *payload.IPAddress,
			Port:           *payload.Port,
			CIDR:           *payload.CIDR,
			PrivateKey:     *payload.PrivateKey,
			NetworkAdapter: *payload.NetworkAdapter,
		})
		if err != nil {
			return createError(c, err, "Cannot save server config")
		}

		log.Infof("Updated wireguard server settings: %s:%d %s %s", *payload.IPAddress, *payload.Port, *payload.CIDR, *payload.NetworkAdapter)
		return c.JSON(http.StatusOK, jsonHTTPResponse{true, "Updated server settings successfully"})
	}
}

// WireGuardServerKeyPair handler to generate private and public keys
func WireGuardServerKeyPair(st *state.State) echo.HandlerFunc {
	return func(c echo.Context) error {
		pair, err := st.RegenerateServerKeyPair(c.Request().Context())
		if err != nil {
			if errors.Is(err, state.ErrKeyGeneration) {
				return createError(c, err, "Cannot generate Wireguard key pair")
			}
			return createError(c, err, "Cannot save server config")
		}

		log.Infof("Regenerated wireguard server key pair, public key %s", pair.PublicKey)
		return c.JSON(http.StatusOK, map[string]string{"public_key": pair.PublicKey})
	}
}

// buildPeerConfig renders the client config of the peer named by the :id param
func buildPeerConfig(c echo.Context, st *state.State) (int, string, error) {
	id, err := state.ParsePeerID(c.Param("id"))
	if err != nil {
		return 0, "", err
	}

	server := st.Snapshot()
	peer, err := state.NewPeerStore(server.Peers).FindByID(id)
	if err != nil {
		return 0, "", err
	}

	config, err := util.BuildClientConfig(peer, server, util.ClientSettingsFromEnv())
	if err != nil {
		return 0, "", err
	}
	return id, config, nil
}

// DownloadPeer handler returns the client config as an attachment
func DownloadPeer(st *state.State) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, config, err := buildPeerConfig(c, st)
		if err != nil {
			return createError(c, err, "Cannot render client config")
		}

		c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=client_config_%d.conf", id))
		return c.Blob(http.StatusOK, echo.MIMETextPlain, []byte(config))
	}
}

// PeerQRCode handler returns the client config as a PNG QR code
func PeerQRCode(st *state.State) echo.HandlerFunc {
	return func(c echo.Context) error {
		_, config, err := buildPeerConfig(c, st)
		if err != nil {
			return createError(c, err, "Cannot render client config")
		}

		png, err := util.BuildClientQRCode(config)
		if err != nil {
			return createError(c, err, "Cannot generate QR code")
		}

		return c.Blob(http.StatusOK, "image/png", png)
	}
}

// EmailPeer handler sends the client config to the given address
func EmailPeer(st *state.State, mailer emailer.Emailer, emailSubject, emailContent string) echo.HandlerFunc {
	return func(c echo.Context) error {
		payload := new(emailPeerPayload)
		if err := c.Bind(payload); err != nil {
			return c.JSON(http.StatusBadRequest, jsonHTTPResponse{false, "Bad post data"})
		}
		if err := c.Validate(payload); err != nil {
			return c.JSON(http.StatusBadRequest, jsonHTTPResponse{false, err.Error()})
		}

		id, config, err := buildPeerConfig(c, st)
		if err != nil {
			return createError(c, err, "Cannot render client config")
		}

		attachments := []emailer.Attachment{
			{Name: "client_config_" + strconv.Itoa(id) + ".conf", Data: []byte(config), MimeType: echo.MIMETextPlain},
		}
		if png, err := util.BuildClientQRCode(config); err == nil {
			attachments = append(attachments, emailer.Attachment{Name: "client_config_" + strconv.Itoa(id) + ".png", Data: png, MimeType: "image/png"})
		} else {
			log.Warnf("Cannot generate QR code for peer %d: %v", id, err)
		}

		if err := mailer.Send(payload.Name, payload.Email, emailSubject, emailContent, attachments); err != nil {
			log.Errorf("Cannot send email for peer %d: %v", id, err)
			return c.JSON(http.StatusInternalServerError, jsonHTTPResponse{false, err.Error()})
		}

		log.Infof("Sent client config of peer %d to %s", id, payload.Email)
		return c.JSON(http.StatusOK, jsonHTTPResponse{true, "Email sent successfully"})
	}
}

// ApplyServerConfig handler to write the wireguard server config file
func ApplyServerConfig(st *state.State) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := st.WriteWireGuardConfig(c.Request().Context()); err != nil {
			return createError(c, err, "Cannot apply server config")
		}

		return c.JSON(http.StatusCreated, jsonHTTPResponse{true, "Applied server config successfully"})
	}
}

// MachineIPAddresses handler to get local interface ip addresses
func MachineIPAddresses() echo.HandlerFunc {
	return func(c echo.Context) error {
		// get private ip addresses
		interfaceList, err := util.GetInterfaceIPs()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, jsonHTTPResponse{false, "Cannot get machine ip addresses"})
		}

		// get public ip address
		publicInterface, err := util.GetPublicIP()
		if err != nil {
			log.Warn("Cannot get machine public ip address: ", err)
		} else {
			interfaceList = append(interfaceList, publicInterface)
		}

		return c.JSON(http.StatusOK, interfaceList)
	}
}
