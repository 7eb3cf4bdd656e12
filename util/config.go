package util

// Runtime config
var (
	BindAddress         string
	DBType              string
	DBPath              string
	ConfigFilePath      string
	MetricsEnabled      bool
	DNSServers          []string
	ClientAllowedIPs    []string
	PersistentKeepalive int
	SendgridApiKey      string
	EmailFrom           string
	EmailFromName       string
	SmtpHostname        string
	SmtpPort            int
	SmtpUsername        string
	SmtpPassword        string
	SmtpNoTLSCheck      bool
	SmtpEncryption      string
	SmtpAuthType        string
	MysqlHost           string
	MysqlPort           int
	MysqlUser           string
	MysqlPassword       string
	MysqlDatabase       string
	MysqlTLS            string
)

const (
	DefaultDBPath              = "./db"
	DefaultConfigFilePath      = "/etc/wireguard/wg0.conf"
	DefaultServerCIDR          = "10.252.1.1/24"
	DefaultServerPort          = 51820
	DefaultNetworkAdapter      = "eth0"
	DefaultClientAllowedIPs    = "0.0.0.0/0"
	DefaultPersistentKeepalive = 15
	DefaultEmailFromName       = "WireGuard Relay"
	DefaultEmailSubject        = "Your wireguard configuration"
	DefaultEmailContent        = `Hi,</br>
<p>attached is your personal configuration for our wireguard relay.</p>

<p>Best</p>
`
)

const (
	LogLevel                  = "LOG_LEVEL"
	ServerIPAddressEnvVar     = "WGUI_SERVER_IP_ADDRESS"
	ServerCIDREnvVar          = "WGUI_SERVER_CIDR"
	ServerPortEnvVar          = "WGUI_SERVER_PORT"
	ServerNetworkAdapterVar   = "WGUI_SERVER_NETWORK_ADAPTER"
	ConfigFilePathEnvVar      = "WGUI_CONFIG_FILE_PATH"
	DNSEnvVar                 = "WGUI_DNS"
	ClientAllowedIPsEnvVar    = "WGUI_CLIENT_ALLOWED_IPS"
	PersistentKeepaliveEnvVar = "WGUI_PERSISTENT_KEEPALIVE"
)
