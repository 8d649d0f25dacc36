package lib

import (
	"bookpay/src/config"
	"context"
	"log"

	"github.com/wneessen/go-mail"
)

func GetSMTPClient(cfg *config.Config) (*mail.Client, error) {
	c, err := mail.NewClient(
		cfg.SMTPHost,
		mail.WithPort(cfg.SMTPPort),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.SMTPUsername),
		mail.WithPassword(cfg.SMTPPassword),
	)
	if err != nil {
		log.Printf("Could not initialize smtp client: %s\n", err.Error())
		return nil, err
	}
	return c, nil
}

// NewMessage builds a go-mail message from input. Address errors are logged
// and the offending header is skipped.
func NewMessage(inputParams *SendMailInput) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.FromFormat(inputParams.FromName, inputParams.From); err != nil {
		log.Printf("Failed to set From address: %s\n", err.Error())
		return nil, err
	}
	if err := msg.To(inputParams.To...); err != nil {
		log.Printf("Failed to set To address: %s\n", err.Error())
		return nil, err
	}
	if inputParams.ReplyTo != "" {
		if err := msg.ReplyTo(inputParams.ReplyTo); err != nil {
			log.Printf("Failed to set Reply-To address: %s\n", err.Error())
		}
	}
	if len(inputParams.Cc) > 0 {
		if err := msg.Cc(inputParams.Cc...); err != nil {
			log.Printf("Failed to set Cc address: %s\n", err.Error())
		}
	}
	if len(inputParams.Bcc) > 0 {
		if err := msg.Bcc(inputParams.Bcc...); err != nil {
			log.Printf("Failed to set Bcc address: %s\n", err.Error())
		}
	}
	msg.Subject(inputParams.Subject)
	if inputParams.Html {
		msg.SetBodyString(mail.TypeTextHTML, inputParams.Body)
	} else {
		msg.SetBodyString(mail.TypeTextPlain, inputParams.Body)
	}
	return msg, nil
}

func SendMail(ctx context.Context, cfg *config.Config, inputParams *SendMailInput) error {
	msg, err := NewMessage(inputParams)
	if err != nil {
		return err
	}
	c, err := GetSMTPClient(cfg)
	if err != nil {
		return err
	}
	return c.DialAndSendWithContext(ctx, msg)
}

type SendMailInput struct {
	From     string
	FromName string
	To       []string
	Cc       []string
	Bcc      []string
	ReplyTo  string
	Subject  string
	Body     string
	Html     bool
}
