package mail

import (
	"context"
	"fmt"
	"net"
	netmail "net/mail"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// SMTPConfig holds the relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender delivers messages through an SMTP relay, upgrading to STARTTLS
// when the relay offers it and authenticating with PLAIN when a username is set.
type SMTPSender struct {
	cfg  SMTPConfig
	from *netmail.Address
}

func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	from, err := netmail.ParseAddress(cfg.From)
	if err != nil {
		return nil, fmt.Errorf("parse MAIL_FROM: %w", err)
	}
	if _, err := newSMTPClient(cfg, gomail.DefaultTimeout); err != nil {
		return nil, err
	}
	return &SMTPSender{cfg: cfg, from: from}, nil
}

// Send delivers msg within ctx. The whole SMTP session, including a relay
// that accepts the connection but never answers, is bounded by ctx's deadline.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m, err := s.buildMessage(msg)
	if err != nil {
		return err
	}

	timeout := gomail.DefaultTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			return context.DeadlineExceeded
		}
	}
	client, err := newSMTPClient(s.cfg, timeout)
	if err != nil {
		return err
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (s *SMTPSender) buildMessage(msg Message) (*gomail.Msg, error) {
	to, err := netmail.ParseAddress(msg.To)
	if err != nil {
		return nil, fmt.Errorf("parse recipient: %w", err)
	}

	m := gomail.NewMsg()
	if err := m.From(s.from.String()); err != nil {
		return nil, fmt.Errorf("set sender: %w", err)
	}
	if err := m.To(to.Address); err != nil {
		return nil, fmt.Errorf("set recipient: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetDate()
	m.SetMessageID()
	m.SetBodyString(gomail.TypeTextHTML, msg.HTMLBody)
	return m, nil
}

func newSMTPClient(cfg SMTPConfig, timeout time.Duration) (*gomail.Client, error) {
	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(timeout),
		gomail.WithDialContextFunc(dialWithDeadline),
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}
	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return client, nil
}

// dialWithDeadline carries the dial deadline onto the connection so the
// greeting and handshake reads cannot block past it.
func dialWithDeadline(ctx context.Context, network, addr string) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}
	return conn, nil
}
