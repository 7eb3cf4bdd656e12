package model

// Interface model
type Interface struct {
	Name      string `json:"name"`
	IPAddress string `json:"ip_address"`
}

// ClientSettings are the runtime knobs applied to every rendered client config
type ClientSettings struct {
	DNSServers          []string
	AllowedIPs          []string
	PersistentKeepalive int
}
