// Package emailer delivers rendered client configs by email.
package emailer

// Attachment is a named file sent along with an email
type Attachment struct {
	Name     string
	Data     []byte
	MimeType string
}

type Emailer interface {
	Send(toName string, to string, subject string, content string, attachments []Attachment) error
}

// New picks the SMTP mailer when a hostname is configured and SendGrid otherwise
func New(smtp SmtpSettings, sendgridApiKey string, fromName string, from string) Emailer {
	if smtp.Hostname != "" {
		return NewSmtpMail(smtp, fromName, from)
	}
	return NewSendgridApiMail(sendgridApiKey, fromName, from)
}

func mimeTypeOrDefault(mimeType string) string {
	if mimeType == "" {
		return "application/octet-stream"
	}
	return mimeType
}
