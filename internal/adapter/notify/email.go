package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/semmidev/dailybackup/internal/config"
	"github.com/semmidev/dailybackup/internal/domain"
	"github.com/semmidev/dailybackup/internal/infrastructure/logger"
)

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailAlerter delivers alerts through an SMTP relay.
type EmailAlerter struct {
	addr     string
	auth     smtp.Auth
	sender   string
	sendMail sendMailFunc
	now      func() time.Time
}

func NewEmail(cfg *config.SMTPConfig, resolver domain.SecretResolver) (*EmailAlerter, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}

	port := cfg.Port
	if port == 0 {
		port = 25
	}

	var auth smtp.Auth
	if cfg.Username != "" {
		password, err := resolver.Resolve(cfg.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve smtp password: %w", err)
		}
		auth = smtp.PlainAuth("", cfg.Username, password, cfg.Host)
	}

	return &EmailAlerter{
		addr:     net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
		auth:     auth,
		sender:   cfg.From,
		sendMail: smtp.SendMail,
		now:      time.Now,
	}, nil
}

func (e *EmailAlerter) SendAlert(ctx context.Context, a domain.Alert) error {
	if a.To == "" {
		logger.FromContext(ctx).Debugw("No e-mail recipient, skipping e-mail alert", "subject", a.Subject)
		return nil
	}

	// a configured sender replaces the alert's address in both the envelope
	// and the header; replies still reach the alert's address
	replyTo := ""
	if e.sender != "" && e.sender != a.From {
		replyTo = a.From
		a.From = e.sender
	}

	msg := buildMessage(a, replyTo, e.now())
	if err := e.sendMail(e.addr, e.auth, a.From, []string{a.To}, msg); err != nil {
		return fmt.Errorf("failed to send e-mail to %s: %w", a.To, err)
	}
	return nil
}

func buildMessage(a domain.Alert, replyTo string, now time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", a.From)
	if replyTo != "" {
		fmt.Fprintf(&b, "Reply-To: %s\r\n", replyTo)
	}
	fmt.Fprintf(&b, "To: %s\r\n", a.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", a.Subject)
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")

	body := strings.ReplaceAll(a.Body, "\r\n", "\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}
