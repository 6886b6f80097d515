package services

import (
	"fmt"
	"html"
)

const (
	defaultSignature = "The Event Team"
	defaultEvent     = "our celebration"
)

// MailTemplate renders the thank-you notification for a guest.
type MailTemplate struct {
	Event     string
	Signature string
}

// Render returns the subject and HTML body for author. The author name is
// escaped in the body.
func (t MailTemplate) Render(author string) (subject, body string) {
	event, sig := t.Event, t.Signature
	if event == "" {
		event = defaultEvent
	}
	if sig == "" {
		sig = defaultSignature
	}
	subject = fmt.Sprintf("Thank You for Your Message, %s!", author)
	body = fmt.Sprintf(
		"<p>Dear %s,</p>"+
			"<p>Thank you for your kind words and wishes for %s. Your message means a lot to us.</p>"+
			"<p>With love,<br/>%s</p>",
		html.EscapeString(author), html.EscapeString(event), html.EscapeString(sig),
	)
	return subject, body
}
