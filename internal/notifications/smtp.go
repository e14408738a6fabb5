package notifications

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/bdt-io/bdt/internal/config"
)

// EmailMessage is one rendered notification.
type EmailMessage struct {
	To      []string
	Subject string
	Text    string
	HTML    string
}

// EmailProvider delivers rendered notifications.
type EmailProvider interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// SMTPProvider sends mail through the configured relay, one connection
// per message.
type SMTPProvider struct {
	cfg    *config.EmailConfig
	dialer net.Dialer
}

func NewSMTPProvider(cfg *config.EmailConfig) *SMTPProvider {
	return &SMTPProvider{cfg: cfg, dialer: net.Dialer{Timeout: 15 * time.Second}}
}

func (s *SMTPProvider) Send(ctx context.Context, msg EmailMessage) error {
	if s.cfg == nil || !s.cfg.Enabled {
		return nil
	}
	if len(msg.To) == 0 {
		return fmt.Errorf("no recipients specified")
	}
	from := s.cfg.From
	if from == "" {
		from = s.cfg.SMTP.User
	}
	if from == "" {
		from = "noreply@localhost"
	}

	var buf bytes.Buffer
	if err := BuildMIME(&buf, s.cfg.FromName, from, msg); err != nil {
		return err
	}

	client, err := s.dial(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := s.authenticate(client); err != nil {
		return err
	}

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	for _, to := range msg.To {
		if err := client.Rcpt(to); err != nil {
			return fmt.Errorf("failed to set recipient %s: %w", to, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to initiate data transfer: %w", err)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close data transfer: %w", err)
	}

	if err := client.Quit(); err != nil {
		return fmt.Errorf("failed to quit SMTP session: %w", err)
	}
	return nil
}

// dial connects according to the TLS mode. The context deadline bounds the
// whole SMTP session.
func (s *SMTPProvider) dial(ctx context.Context) (*smtp.Client, error) {
	host := s.cfg.SMTP.Host
	addr := net.JoinHostPort(host, strconv.Itoa(s.cfg.SMTP.Port))
	tlsConfig := &tls.Config{
		ServerName:         host,
		InsecureSkipVerify: s.cfg.SMTP.SkipVerify, //nolint:gosec
	}

	conn, err := s.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	mode := s.cfg.EffectiveTLSMode()
	if mode == "smtps" {
		tlsConn := tls.Client(conn, tlsConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to connect via SMTPS: %w", err)
		}
		conn = tlsConn
	}

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create SMTP client: %w", err)
	}
	if mode == "starttls" {
		if err := client.StartTLS(tlsConfig); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to start TLS: %w", err)
		}
	}
	return client, nil
}

func (s *SMTPProvider) authenticate(client *smtp.Client) error {
	if s.cfg.SMTP.User == "" || s.cfg.SMTP.Password == "" {
		return nil
	}

	var auth smtp.Auth
	switch strings.ToLower(strings.TrimSpace(s.cfg.SMTP.AuthType)) {
	case "login":
		auth = &loginAuth{username: s.cfg.SMTP.User, password: s.cfg.SMTP.Password}
	default:
		auth = smtp.PlainAuth("", s.cfg.SMTP.User, s.cfg.SMTP.Password, s.cfg.SMTP.Host)
	}

	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP authentication failed: %w", err)
	}
	return nil
}

// loginAuth implements SMTP LOGIN authentication
type loginAuth struct {
	username, password string
}

func (a *loginAuth) Start(_ *smtp.ServerInfo) (string, []byte, error) {
	return "LOGIN", []byte{}, nil
}

func (a *loginAuth) Next(fromServer []byte, more bool) ([]byte, error) {
	if more {
		switch string(fromServer) {
		case "Username:":
			return []byte(a.username), nil
		case "Password:":
			return []byte(a.password), nil
		default:
			return nil, fmt.Errorf("unexpected server challenge: %s", fromServer)
		}
	}
	return nil, nil
}
