package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// SMTPSender delivers mail through a plain SMTP relay.
type SMTPSender struct {
	Addr string // host:port
	From string
	Auth smtp.Auth // nil for an unauthenticated relay
}

func (s *SMTPSender) Send(_ context.Context, m *Message) error {
	if m.Body == "" {
		return fmt.Errorf("notify: message %s has no rendered body", m.ID)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.From)
	fmt.Fprintf(&b, "To: %s\r\n", m.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", m.Subject)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(m.Body)
	return smtp.SendMail(s.Addr, s.Auth, s.From, []string{m.To}, []byte(b.String()))
}
