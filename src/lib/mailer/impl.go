package mailer

import (
	"bookpay/src/config"
	"bookpay/src/lib"
	"bookpay/src/types"
	"context"
	"encoding/json"
	"fmt"
)

// Mailer delivers one email.
type Mailer interface {
	Send(ctx context.Context, input *lib.SendMailInput) error
}

type SMTPMailer struct {
	cfg *config.Config
}

func (m *SMTPMailer) Send(ctx context.Context, input *lib.SendMailInput) error {
	if input.From == "" {
		input.From = m.cfg.SMTPFrom
	}
	return lib.SendMail(ctx, m.cfg, input)
}

// QueueMailer hands emails to the mail worker through SQS.
type QueueMailer struct {
	queue  string
	from   string
	client lib.SQSAPI
}

func NewQueueMailer(queue, from string, client lib.SQSAPI) *QueueMailer {
	return &QueueMailer{queue: queue, from: from, client: client}
}

func (m *QueueMailer) Send(ctx context.Context, input *lib.SendMailInput) error {
	if input.From == "" {
		input.From = m.from
	}
	body, err := json.Marshal(queueMessage(input))
	if err != nil {
		return err
	}
	if err := lib.SQSProduceMessage(ctx, m.client, m.queue, string(body)); err != nil {
		return fmt.Errorf("error sending message to queue: %s", err.Error())
	}
	return nil
}

func queueMessage(input *lib.SendMailInput) types.JSONB {
	return types.JSONB{
		"from":      input.From,
		"from-name": input.FromName,
		"to":        input.To,
		"cc":        input.Cc,
		"bcc":       input.Bcc,
		"reply-to":  input.ReplyTo,
		"body":      input.Body,
		"html":      input.Html,
		"subject":   input.Subject,
	}
}

// New picks the SQS queue when EMAIL_QUEUE is configured and direct SMTP
// otherwise.
func New(ctx context.Context, cfg *config.Config) (Mailer, error) {
	if cfg.EmailQueue == "" {
		return &SMTPMailer{cfg: cfg}, nil
	}
	client, err := lib.AWSGetSQSClient(ctx)
	if err != nil {
		return nil, err
	}
	return NewQueueMailer(cfg.EmailQueue, cfg.SMTPFrom, client), nil
}
