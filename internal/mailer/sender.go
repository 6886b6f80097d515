// Package mailer drains the notification queue. A cron-scheduled Dispatcher
// reads queued thank-you jobs, hands each to a Sender and deletes it only
// once the send succeeded, so a failed delivery is retried on a later tick.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/smtp"
	"strconv"
	"strings"
)

// Sender delivers one HTML email.
type Sender interface {
	Send(ctx context.Context, to, subject, html string) error
}

// SMTPSender relays through an SMTP server with PLAIN auth when User is set.
type SMTPSender struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string

	// sendMail is smtp.SendMail; swapped in tests.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPSender returns a sender for host:port.
func NewSMTPSender(host string, port int, user, password, from string) *SMTPSender {
	return &SMTPSender{Host: host, Port: port, User: user, Password: password, From: from, sendMail: smtp.SendMail}
}

var errHeaderInjection = errors.New("header value contains a line break")

// Send builds a single-part HTML message and relays it.
func (s *SMTPSender) Send(ctx context.Context, to, subject, html string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, v := range []string{to, subject, s.From} {
		if strings.ContainsAny(v, "\r\n") {
			return errHeaderInjection
		}
	}

	var auth smtp.Auth
	if s.User != "" {
		auth = smtp.PlainAuth("", s.User, s.Password, s.Host)
	}
	addr := s.Host + ":" + strconv.Itoa(s.Port)

	send := s.sendMail
	if send == nil {
		send = smtp.SendMail
	}
	if err := send(addr, auth, s.From, []string{to}, buildMessage(s.From, to, subject, html)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func buildMessage(from, to, subject, html string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(html)
	b.WriteString("\r\n")
	return []byte(b.String())
}
