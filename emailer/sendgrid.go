package emailer

import (
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type SendgridApiMail struct {
	apiKey   string
	fromName string
	from     string
}

func NewSendgridApiMail(apiKey, fromName, from string) *SendgridApiMail {
	return &SendgridApiMail{apiKey: apiKey, fromName: fromName, from: from}
}

// buildMessage assembles the v3 mail payload
func (o *SendgridApiMail) buildMessage(toName string, to string, subject string, content string, attachments []Attachment) *mail.SGMailV3 {
	m := mail.NewV3Mail()
	m.SetFrom(mail.NewEmail(o.fromName, o.from))
	m.AddContent(mail.NewContent("text/html", content))

	personalization := mail.NewPersonalization()
	personalization.AddTos(mail.NewEmail(toName, to))
	personalization.Subject = subject
	m.AddPersonalizations(personalization)

	toAdd := make([]*mail.Attachment, 0, len(attachments))
	for i := range attachments {
		att := mail.NewAttachment()
		att.SetContent(base64.StdEncoding.EncodeToString(attachments[i].Data))
		att.SetType(mimeTypeOrDefault(attachments[i].MimeType))
		att.SetFilename(attachments[i].Name)
		att.SetDisposition("attachment")
		toAdd = append(toAdd, att)
	}
	m.AddAttachment(toAdd...)

	return m
}

func (o *SendgridApiMail) Send(toName string, to string, subject string, content string, attachments []Attachment) error {
	if o.apiKey == "" {
		return fmt.Errorf("sendgrid api key is not configured")
	}

	request := sendgrid.GetRequest(o.apiKey, "/v3/mail/send", "https://api.sendgrid.com")
	request.Method = http.MethodPost
	request.Body = mail.GetRequestBody(o.buildMessage(toName, to, subject, content, attachments))

	resp, err := sendgrid.API(request)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid rejected the email: %d %s", resp.StatusCode, resp.Body)
	}
	return nil
}
