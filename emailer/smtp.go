package emailer

import (
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	mail "github.com/xhit/go-simple-mail/v2"
)

// SmtpSettings describes how to reach the SMTP relay
type SmtpSettings struct {
	Hostname   string
	Port       int
	Username   string
	Password   string
	AuthType   string
	Encryption string
	NoTLSCheck bool
}

type SmtpMail struct {
	settings   SmtpSettings
	authType   mail.AuthType
	encryption mail.Encryption
	fromName   string
	from       string
}

func authType(authType string) mail.AuthType {
	switch strings.ToUpper(authType) {
	case "PLAIN":
		return mail.AuthPlain
	case "LOGIN":
		return mail.AuthLogin
	default:
		return mail.AuthNone
	}
}

func encryptionType(encryptionType string) mail.Encryption {
	switch strings.ToUpper(encryptionType) {
	case "NONE":
		return mail.EncryptionNone
	case "SSL":
		return mail.EncryptionSSL
	case "SSLTLS":
		return mail.EncryptionSSLTLS
	case "TLS":
		return mail.EncryptionTLS
	default:
		return mail.EncryptionSTARTTLS
	}
}

func NewSmtpMail(settings SmtpSettings, fromName, from string) *SmtpMail {
	return &SmtpMail{
		settings:   settings,
		authType:   authType(settings.AuthType),
		encryption: encryptionType(settings.Encryption),
		fromName:   fromName,
		from:       from,
	}
}

func addressField(address string, name string) string {
	if name == "" {
		return address
	}
	return fmt.Sprintf("%s <%s>", name, address)
}

func (o *SmtpMail) Send(toName string, to string, subject string, content string, attachments []Attachment) error {
	server := mail.NewSMTPClient()

	server.Host = o.settings.Hostname
	server.Port = o.settings.Port
	server.Authentication = o.authType
	server.Username = o.settings.Username
	server.Password = o.settings.Password
	server.Encryption = o.encryption
	server.KeepAlive = false
	server.ConnectTimeout = 10 * time.Second
	server.SendTimeout = 10 * time.Second

	if o.settings.NoTLSCheck {
		server.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}

	smtpClient, err := server.Connect()
	if err != nil {
		return fmt.Errorf("cannot connect to smtp server %s: %w", o.settings.Hostname, err)
	}
	defer smtpClient.Close()

	email := mail.NewMSG()
	email.SetFrom(addressField(o.from, o.fromName)).
		AddTo(addressField(to, toName)).
		SetSubject(subject).
		SetBody(mail.TextHTML, content)

	for _, a := range attachments {
		email.Attach(&mail.File{Name: a.Name, Data: a.Data, MimeType: mimeTypeOrDefault(a.MimeType)})
	}
	if email.Error != nil {
		return email.Error
	}

	return email.Send(smtpClient)
}
