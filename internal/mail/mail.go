// Package mail renders and sends the transactional emails: address
// verification and password reset.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"text/template"
	"time"
)

// Message is a plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender delivers through an SMTP relay with optional PLAIN auth.
type SMTPSender struct {
	addr string
	host string
	from string
	auth smtp.Auth
}

// NewSMTPSender returns an SMTP sender. Auth is used only when username is set.
func NewSMTPSender(host string, port int, username, password, from string) *SMTPSender {
	s := &SMTPSender{
		addr: fmt.Sprintf("%s:%d", host, port),
		host: host,
		from: from,
	}
	if username != "" {
		s.auth = smtp.PlainAuth("", username, password, host)
	}
	return s
}

// Send writes RFC 5322 headers and the body and hands them to the relay.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := smtp.SendMail(s.addr, s.auth, s.from, []string{msg.To}, s.encode(msg)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	return nil
}

func (s *SMTPSender) encode(msg Message) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", s.from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return b.Bytes()
}

// LogSender logs messages instead of sending them. Used in development
// when no SMTP host is configured.
type LogSender struct{}

func (LogSender) Send(_ context.Context, msg Message) error {
	slog.Info("email (not sent, no SMTP host configured)",
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Body,
	)
	return nil
}

var (
	verifyTmpl = template.Must(template.New("verify").Parse(`Hi {{.Name}},

Welcome to Inkpress. Confirm your email address by opening this link:

{{.Link}}

The link expires in 24 hours. If you did not sign up, ignore this email.
`))

	resetTmpl = template.Must(template.New("reset").Parse(`Hi {{.Name}},

Someone asked to reset the password of your Inkpress account. Choose a new
password here:

{{.Link}}

The link expires in 1 hour and works once. Resetting signs you out everywhere.
If you did not ask for this, ignore this email.
`))
)

type emailData struct {
	Name string
	Link string
}

func render(t *template.Template, data emailData) (string, error) {
	var b bytes.Buffer
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render %s email: %w", t.Name(), err)
	}
	return b.String(), nil
}

// VerifyEmail builds the address verification message.
func VerifyEmail(baseURL, to, name, token string) (Message, error) {
	body, err := render(verifyTmpl, emailData{
		Name: name,
		Link: baseURL + "/users/verify?token=" + token,
	})
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: "Confirm your Inkpress email", Body: body}, nil
}

// PasswordReset builds the password reset message.
func PasswordReset(baseURL, to, name, token string) (Message, error) {
	body, err := render(resetTmpl, emailData{
		Name: name,
		Link: baseURL + "/reset-password?token=" + token,
	})
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: "Reset your Inkpress password", Body: body}, nil
}
