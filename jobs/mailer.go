package jobs

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// Sender delivers a single message.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPSender delivers mail over plain SMTP. The stdlib client is enough
// here: the worker only sends short transactional text mails to a relay.
type SMTPSender struct {
	addr string
	from string
}

// NewSMTPSender constructs an SMTPSender for host:port.
func NewSMTPSender(host string, port int, from string) *SMTPSender {
	return &SMTPSender{addr: fmt.Sprintf("%s:%d", host, port), from: from}
}

// Send delivers one message to a single recipient.
func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var msg strings.Builder
	msg.WriteString("From: " + s.from + "\r\n")
	msg.WriteString("To: " + to + "\r\n")
	msg.WriteString("Subject: " + subject + "\r\n")
	msg.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)
	msg.WriteString("\r\n")
	return smtp.SendMail(s.addr, nil, s.from, []string{to}, []byte(msg.String()))
}

// Enqueuer hands outbound mail to the queue instead of delivering inline,
// so a slow or offline relay never stalls an HTTP request.
type Enqueuer struct {
	client *Client
}

// NewEnqueuer wraps a queue client as a mail enqueuer.
func NewEnqueuer(client *Client) *Enqueuer {
	return &Enqueuer{client: client}
}

// Enqueue queues one message for background delivery.
func (e *Enqueuer) Enqueue(ctx context.Context, to, subject, body string) error {
	_, err := e.client.EnqueueSendEmail(ctx, SendEmailPayload{To: to, Subject: subject, Body: body})
	return err
}
