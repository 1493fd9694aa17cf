// Package mailer is the outbound-notification capability: "send a
// message with a link". The transport is behind the Sender interface so
// the completion notifier does not care whether mail goes over SMTP or,
// in development, into the log.
package mailer

import (
	"fmt"
	"net/smtp"
	"strings"

	"kybervision-api/internal/logging"
)

// Sender delivers one message to one recipient.
type Sender interface {
	Send(to, subject, body string) error
}

// SMTPSender sends through a plain SMTP relay.
type SMTPSender struct {
	addr string // host:port
	from string
}

// NewSMTPSender creates a sender for the given relay address.
func NewSMTPSender(addr, from string) *SMTPSender {
	return &SMTPSender{addr: addr, from: from}
}

// Send delivers the message. Recipient addresses are trusted here; they
// come from the user table, not from request input.
func (s *SMTPSender) Send(to, subject, body string) error {
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", s.from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(body)

	if err := smtp.SendMail(s.addr, nil, s.from, []string{to}, []byte(msg.String())); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", to, err)
	}
	return nil
}

// LogSender writes messages to the log instead of delivering them.
// Used when SMTP is not configured.
type LogSender struct{}

// Send logs the message.
func (LogSender) Send(to, subject, body string) error {
	logging.Info("mail (log-only) to=%s subject=%q body=%q", to, subject, body)
	return nil
}
