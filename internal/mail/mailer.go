// Package mail delivers workflow-step notification emails. Delivery is
// advisory: the persisted submission is the source of truth and a
// failed send is logged by the caller, never retried.
package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// SMTPMailer sends workflow-step emails over plain SMTP.
type SMTPMailer struct {
	addr string
	from string
	auth smtp.Auth
}

func NewSMTPMailer(host string, port int, username, password, from string) *SMTPMailer {
	m := &SMTPMailer{
		addr: fmt.Sprintf("%s:%d", host, port),
		from: from,
	}
	if username != "" {
		m.auth = smtp.PlainAuth("", username, password, host)
	}
	return m
}

// SendWorkflowStepEmail notifies every recipient of the next workflow
// step, with a link to continue the response.
func (m *SMTPMailer) SendWorkflowStepEmail(ctx context.Context, recipients []string, formTitle, responseURL string) error {
	if len(recipients) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := buildWorkflowStepMessage(m.from, recipients, formTitle, responseURL)
	if err := smtp.SendMail(m.addr, m.auth, m.from, recipients, msg); err != nil {
		return fmt.Errorf("send workflow step email: %w", err)
	}
	return nil
}

func buildWorkflowStepMessage(from string, recipients []string, formTitle, responseURL string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(recipients, ", "))
	fmt.Fprintf(&b, "Subject: Action required: %s\r\n", formTitle)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "You have been requested to fill in the next portion of \"%s\".\r\n\r\n", formTitle)
	fmt.Fprintf(&b, "Continue the response here: %s\r\n", responseURL)
	return []byte(b.String())
}
