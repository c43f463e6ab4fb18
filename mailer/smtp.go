package mailer

import (
	"context"
	"errors"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"time"

	"github.com/jordan-wright/email"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// SMTPConfig configures [SMTP].
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string

	// MaxRetries is the number of resends after the first failed attempt.
	MaxRetries uint64
	RetryBase  time.Duration
}

// SMTP sends messages through an SMTP relay. Transient failures are retried
// with exponential backoff; 5xx replies are permanent.
type SMTP struct {
	cfg  SMTPConfig
	addr string
	auth smtp.Auth
	send func(e *email.Email, addr string, a smtp.Auth) error
}

// NewSMTP validates cfg and returns a sender.
func NewSMTP(cfg SMTPConfig) (*SMTP, error) {
	if cfg.Host == "" {
		return nil, oops.Code("MAILER_CONFIG").Errorf("smtp host must be set")
	}
	if cfg.Port <= 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		return nil, oops.Code("MAILER_CONFIG").Errorf("smtp from address must be set")
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 200 * time.Millisecond
	}

	s := &SMTP{
		cfg:  cfg,
		addr: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		send: func(e *email.Email, addr string, a smtp.Auth) error { return e.Send(addr, a) },
	}
	if cfg.Username != "" {
		s.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return s, nil
}

// Send delivers msg, retrying transient failures until ctx is done.
func (s *SMTP) Send(ctx context.Context, msg Message) error {
	e := email.NewEmail()
	e.From = s.cfg.From
	e.To = []string{msg.To}
	e.Subject = msg.Subject
	e.HTML = []byte(msg.HTML)

	backoff := retry.WithMaxRetries(s.cfg.MaxRetries, retry.NewExponential(s.cfg.RetryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := s.send(e, s.addr, s.auth); err != nil {
			if permanent(err) {
				return err
			}
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return oops.Code("SMTP_SEND_FAILED").
			With("kind", string(msg.Kind)).
			With("addr", s.addr).
			Wrap(err)
	}
	return nil
}

// permanent reports a 5xx SMTP reply, which a resend cannot fix.
func permanent(err error) bool {
	var tpErr *textproto.Error
	return errors.As(err, &tpErr) && tpErr.Code >= 500
}
