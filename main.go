package main

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wgrelay/wireguard-relay/emailer"
	"github.com/wgrelay/wireguard-relay/handler"
	"github.com/wgrelay/wireguard-relay/keypair"
	"github.com/wgrelay/wireguard-relay/router"
	"github.com/wgrelay/wireguard-relay/state"
	"github.com/wgrelay/wireguard-relay/store"
	"github.com/wgrelay/wireguard-relay/store/jsondb"
	"github.com/wgrelay/wireguard-relay/store/mysqldb"
	"github.com/wgrelay/wireguard-relay/util"
)

var (
	// command-line banner information
	appVersion = "development"
	gitCommit  = "N/A"
	buildTime  = time.Now().UTC().Format("01-02-2006 15:04:05")
	// configuration variables
	flagBindAddress         string = "0.0.0.0:5000"
	flagDBType              string = "jsondb"
	flagDBPath              string = util.DefaultDBPath
	flagConfigFilePath      string = util.DefaultConfigFilePath
	flagMetricsEnabled      bool   = false
	flagDNS                 string
	flagClientAllowedIPs    string = util.DefaultClientAllowedIPs
	flagPersistentKeepalive int    = util.DefaultPersistentKeepalive
	flagSendgridApiKey      string
	flagEmailFrom           string
	flagEmailFromName       string = util.DefaultEmailFromName
	flagSmtpHostname        string
	flagSmtpPort            int    = 587
	flagSmtpUsername        string
	flagSmtpPassword        string
	flagSmtpNoTLSCheck      bool
	flagSmtpEncryption      string = "STARTTLS"
	flagSmtpAuthType        string = "NONE"
	flagMysqlHost           string = "127.0.0.1"
	flagMysqlPort           int    = 3306
	flagMysqlUser           string
	flagMysqlPassword       string
	flagMysqlDatabase       string = "wgrelay"
	flagMysqlTLS            string = "false"
)

func init() {

	// command-line flags and env variables
	flag.StringVar(&flagBindAddress, "bind-address", util.LookupEnvOrString("BIND_ADDRESS", flagBindAddress), "Address:Port to which the app will be bound.")
	flag.StringVar(&flagDBType, "db-type", util.LookupEnvOrString("DB_TYPE", flagDBType), "Storage backend: jsondb or mysql.")
	flag.StringVar(&flagDBPath, "db-path", util.LookupEnvOrString("DB_PATH", flagDBPath), "Directory of the json database.")
	flag.StringVar(&flagConfigFilePath, "config-file-path", util.LookupEnvOrString(util.ConfigFilePathEnvVar, flagConfigFilePath), "Where the rendered wireguard server config is written.")
	flag.BoolVar(&flagMetricsEnabled, "metrics", util.LookupEnvOrBool("METRICS_ENABLED", flagMetricsEnabled), "Expose prometheus metrics on /metrics.")
	flag.StringVar(&flagDNS, "dns", util.LookupEnvOrString(util.DNSEnvVar, flagDNS), "Comma separated DNS servers written to client configs.")
	flag.StringVar(&flagClientAllowedIPs, "client-allowed-ips", util.LookupEnvOrString(util.ClientAllowedIPsEnvVar, flagClientAllowedIPs), "Comma separated networks routed through the tunnel by clients.")
	flag.IntVar(&flagPersistentKeepalive, "persistent-keepalive", util.LookupEnvOrInt(util.PersistentKeepaliveEnvVar, flagPersistentKeepalive), "Persistent keepalive written to client configs, 0 to disable.")
	flag.StringVar(&flagSendgridApiKey, "sendgrid-api-key", util.LookupEnvOrString("SENDGRID_API_KEY", flagSendgridApiKey), "Your sendgrid api key.")
	flag.StringVar(&flagEmailFrom, "email-from", util.LookupEnvOrString("EMAIL_FROM_ADDRESS", flagEmailFrom), "'From' email address.")
	flag.StringVar(&flagEmailFromName, "email-from-name", util.LookupEnvOrString("EMAIL_FROM_NAME", flagEmailFromName), "'From' email name.")
	flag.StringVar(&flagSmtpHostname, "smtp-hostname", util.LookupEnvOrString("SMTP_HOSTNAME", flagSmtpHostname), "SMTP Hostname, leave empty to use sendgrid.")
	flag.IntVar(&flagSmtpPort, "smtp-port", util.LookupEnvOrInt("SMTP_PORT", flagSmtpPort), "SMTP Port")
	flag.StringVar(&flagSmtpUsername, "smtp-username", util.LookupEnvOrString("SMTP_USERNAME", flagSmtpUsername), "SMTP Username")
	flag.StringVar(&flagSmtpPassword, "smtp-password", util.LookupEnvOrString("SMTP_PASSWORD", flagSmtpPassword), "SMTP Password")
	flag.BoolVar(&flagSmtpNoTLSCheck, "smtp-no-tls-check", util.LookupEnvOrBool("SMTP_NO_TLS_CHECK", flagSmtpNoTLSCheck), "Disable TLS verification for SMTP. This is potentially dangerous.")
	flag.StringVar(&flagSmtpEncryption, "smtp-encryption", util.LookupEnvOrString("SMTP_ENCRYPTION", flagSmtpEncryption), "SMTP Encryption : NONE, SSL, SSLTLS, TLS or STARTTLS (by default)")
	flag.StringVar(&flagSmtpAuthType, "smtp-auth-type", util.LookupEnvOrString("SMTP_AUTH_TYPE", flagSmtpAuthType), "SMTP Auth Type : PLAIN, LOGIN or NONE.")
	flag.StringVar(&flagMysqlHost, "mysql-host", util.LookupEnvOrString("MYSQL_HOST", flagMysqlHost), "MySQL host.")
	flag.IntVar(&flagMysqlPort, "mysql-port", util.LookupEnvOrInt("MYSQL_PORT", flagMysqlPort), "MySQL port.")
	flag.StringVar(&flagMysqlUser, "mysql-user", util.LookupEnvOrString("MYSQL_USER", flagMysqlUser), "MySQL user.")
	flag.StringVar(&flagMysqlPassword, "mysql-password", util.LookupEnvOrString("MYSQL_PASSWORD", flagMysqlPassword), "MySQL password.")
	flag.StringVar(&flagMysqlDatabase, "mysql-database", util.LookupEnvOrString("MYSQL_DATABASE", flagMysqlDatabase), "MySQL database name.")
	flag.StringVar(&flagMysqlTLS, "mysql-tls", util.LookupEnvOrString("MYSQL_TLS", flagMysqlTLS), "MySQL TLS mode: true, false, skip-verify or preferred.")
	flag.Parse()

	// update runtime config
	util.BindAddress = flagBindAddress
	util.DBType = flagDBType
	util.DBPath = flagDBPath
	util.ConfigFilePath = flagConfigFilePath
	util.MetricsEnabled = flagMetricsEnabled
	util.DNSServers = util.SplitList(flagDNS)
	util.ClientAllowedIPs = util.SplitList(flagClientAllowedIPs)
	util.PersistentKeepalive = flagPersistentKeepalive
	util.SendgridApiKey = flagSendgridApiKey
	util.EmailFrom = flagEmailFrom
	util.EmailFromName = flagEmailFromName
	util.SmtpHostname = flagSmtpHostname
	util.SmtpPort = flagSmtpPort
	util.SmtpUsername = flagSmtpUsername
	util.SmtpPassword = flagSmtpPassword
	util.SmtpNoTLSCheck = flagSmtpNoTLSCheck
	util.SmtpEncryption = flagSmtpEncryption
	util.SmtpAuthType = flagSmtpAuthType
	util.MysqlHost = flagMysqlHost
	util.MysqlPort = flagMysqlPort
	util.MysqlUser = flagMysqlUser
	util.MysqlPassword = flagMysqlPassword
	util.MysqlDatabase = flagMysqlDatabase
	util.MysqlTLS = flagMysqlTLS

	// print app information
	fmt.Println("Wireguard Relay")
	fmt.Println("App Version\t:", appVersion)
	fmt.Println("Git Commit\t:", gitCommit)
	fmt.Println("Build Time\t:", buildTime)
	fmt.Println("Bind address\t:", util.BindAddress)
	fmt.Println("Storage\t\t:", util.DBType)
	fmt.Println("Config file\t:", util.ConfigFilePath)
	fmt.Println("Metrics\t\t:", util.MetricsEnabled)
	fmt.Println("Email from\t:", util.EmailFrom)
	fmt.Println("Email from name\t:", util.EmailFromName)
}

func main() {
	lvl, err := util.ParseLogLevel(util.LookupEnvOrString(util.LogLevel, "INFO"))
	if err != nil {
		log.Fatal(err)
	}
	log.SetLevel(lvl)

	keys := keypair.NewWgProvider()

	db, err := newStore(keys)
	if err != nil {
		log.Fatal("Cannot open database: ", err)
	}
	if err := db.Init(); err != nil {
		log.Fatal("Cannot init database: ", err)
	}

	// the server config is loaded once and owned by st for the lifetime of the process
	st, err := state.Load(db, keys)
	if err != nil {
		log.Fatal(err)
	}

	if util.MetricsEnabled {
		if err := state.RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
			log.Fatal("Cannot register metrics: ", err)
		}
	}

	sendmail := emailer.New(emailer.SmtpSettings{
		Hostname:   util.SmtpHostname,
		Port:       util.SmtpPort,
		Username:   util.SmtpUsername,
		Password:   util.SmtpPassword,
		AuthType:   util.SmtpAuthType,
		Encryption: util.SmtpEncryption,
		NoTLSCheck: util.SmtpNoTLSCheck,
	}, util.SendgridApiKey, util.EmailFromName, util.EmailFrom)

	// register routes
	app := router.New(lvl, util.MetricsEnabled)
	registerRoutes(app, st, sendmail)

	app.Logger.Fatal(app.Start(util.BindAddress))
}

func newStore(keys keypair.Provider) (store.IStore, error) {
	switch strings.ToLower(util.DBType) {
	case "", "jsondb":
		return jsondb.New(util.DBPath, util.ConfigFilePath, keys)
	case "mysql":
		return mysqldb.New(util.MysqlUser, util.MysqlPassword, util.MysqlHost, util.MysqlPort, util.MysqlDatabase, util.MysqlTLS, util.ConfigFilePath, keys)
	default:
		return nil, fmt.Errorf("unsupported db type: %s", util.DBType)
	}
}

func registerRoutes(app *echo.Echo, st *state.State, sendmail emailer.Emailer) {
	app.GET("/api/server", handler.GetServer(st))
	app.GET("/api/peers", handler.GetPeers(st))
	app.GET("/api/peer/:id", handler.GetPeer(st))
	app.POST("/api/peer", handler.NewPeer(st))
	app.PUT("/api/peer/:id", handler.UpdatePeer(st), handler.ContentTypeJson)
	app.DELETE("/api/peer/:id", handler.RemovePeer(st))
	app.PUT("/api/server_settings/save", handler.SaveServerSettings(st), handler.ContentTypeJson)
	app.POST("/api/server/keypair", handler.WireGuardServerKeyPair(st))
	app.GET("/api/download/:id", handler.DownloadPeer(st))
	app.GET("/api/qrcode/:id", handler.PeerQRCode(st))
	app.POST("/api/email/:id", handler.EmailPeer(st, sendmail, util.DefaultEmailSubject, util.DefaultEmailContent), handler.ContentTypeJson)
	app.GET("/api/createwireguardconfig", handler.ApplyServerConfig(st))
	app.GET("/api/machine-ips", handler.MachineIPAddresses())
}
