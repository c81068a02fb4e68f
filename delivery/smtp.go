package delivery

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"github.com/santokhan/authkit"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender mails links. It only serves email recipients.
type SMTPSender struct {
	cfg      SMTPConfig
	auth     smtp.Auth
	sendMail sendMailFunc
}

var _ authkit.Delivery = (*SMTPSender)(nil)

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPSender{cfg: cfg, auth: auth, sendMail: smtp.SendMail}
}

func (s *SMTPSender) SendResetLink(ctx context.Context, to authkit.Recipient, link string) error {
	return s.send(ctx, KindPasswordReset, to, link)
}

func (s *SMTPSender) SendVerificationLink(ctx context.Context, to authkit.Recipient, link string) error {
	return s.send(ctx, KindEmailVerification, to, link)
}

func (s *SMTPSender) send(ctx context.Context, kind Kind, to authkit.Recipient, link string) error {
	if to.Channel != authkit.ChannelEmail {
		return fmt.Errorf("%w: %s", ErrUnsupportedChannel, to.Channel)
	}
	if strings.ContainsAny(to.Address, "\r\n") {
		return fmt.Errorf("smtp: invalid recipient address")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))
	if err := s.sendMail(addr, s.auth, s.cfg.From, []string{to.Address}, s.message(kind, to, link)); err != nil {
		return fmt.Errorf("smtp send %s: %w", kind, err)
	}
	return nil
}

func (s *SMTPSender) message(kind Kind, to authkit.Recipient, link string) []byte {
	var b strings.Builder
	b.WriteString("From: " + s.cfg.From + "\r\n")
	b.WriteString("To: " + to.Address + "\r\n")
	b.WriteString("Subject: " + subject(kind) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(body(kind, to, link))
	return []byte(b.String())
}
